package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/clinimetric-scale-server/internal/domain"
	"github.com/clinimetric-scale-server/internal/ingest"
)

const (
	optionScopeGlobal = "global"
	optionScopeGroup  = "group"
	optionScopeItem   = "item"
)

const scaleColumns = `id, content_hash, name, abbreviation, description, category, total_items,
		scoring_method, score_range_min, score_range_max, status, version, created_at, updated_at`

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ScaleRepository handles scale definition persistence in PostgreSQL
type ScaleRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewScaleRepository creates a new scale repository
func NewScaleRepository(db *pgxpool.Pool, logger *logrus.Logger) *ScaleRepository {
	return &ScaleRepository{
		db:  db,
		log: logger,
	}
}

// Save upserts the scale row and replaces all of its child records in one transaction
func (r *ScaleRepository) Save(ctx context.Context, scale *domain.Scale) error {
	if scale == nil || scale.ID == "" {
		return fmt.Errorf("saving scale: %w", domain.NewValidationError("id", "scale id is required", nil))
	}

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		return r.saveTx(ctx, tx, scale)
	})
	if err != nil {
		return err
	}

	r.log.WithFields(logrus.Fields{
		"scale_id":     scale.ID,
		"content_hash": scale.ContentHash,
		"status":       scale.Status,
		"items":        len(scale.Items),
	}).Info("Scale saved successfully")

	return nil
}

// Supersede updates the status of current and saves next in one transaction
func (r *ScaleRepository) Supersede(ctx context.Context, current, next *domain.Scale) error {
	if current == nil || next == nil || next.ID == "" {
		return fmt.Errorf("superseding scale: %w", domain.NewValidationError("id", "scale id is required", nil))
	}

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE scales SET status = $3, updated_at = NOW() WHERE id = $1 AND content_hash = $2`,
			current.ID, current.ContentHash, string(current.Status),
		)
		if err != nil {
			return fmt.Errorf("updating scale status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("scale %s@%s: %w", current.ID, current.ContentHash, domain.ErrNotFound)
		}
		return r.saveTx(ctx, tx, next)
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"scale_id":     next.ID,
			"previous":     current.ContentHash,
			"content_hash": next.ContentHash,
			"error":        err,
		}).Error("Failed to supersede scale")
		return err
	}

	r.log.WithFields(logrus.Fields{
		"scale_id":     next.ID,
		"previous":     current.ContentHash,
		"content_hash": next.ContentHash,
	}).Info("Scale superseded successfully")
	return nil
}

func (r *ScaleRepository) saveTx(ctx context.Context, tx pgx.Tx, scale *domain.Scale) error {
	hash := scale.ContentHash
	if hash == "" {
		hash = domain.ContentHash(scale)
	}

	createdAt := scale.CreatedAt.UTC()
	if scale.CreatedAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := scale.UpdatedAt.UTC()
	if scale.UpdatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO scales (`+scaleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id, content_hash) DO UPDATE SET
			status = EXCLUDED.status,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at`,
		scale.ID, hash, scale.Name, scale.Abbreviation, scale.Description, scale.Category,
		scale.TotalItems, string(scale.ScoringMethod), scale.ScoreRangeMin, scale.ScoreRangeMax,
		string(statusOrDraft(scale.Status)), scale.Version, createdAt, updatedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"scale_id":     scale.ID,
			"content_hash": hash,
			"error":        err,
		}).Error("Failed to save scale")
		return fmt.Errorf("saving scale: %w", err)
	}

	for _, table := range []string{
		"scale_items", "scale_response_groups", "scale_response_options",
		"scale_subscales", "scale_interpretation_rules",
	} {
		query := fmt.Sprintf("DELETE FROM %s WHERE scale_id = $1 AND content_hash = $2", table)
		if _, err := tx.Exec(ctx, query, scale.ID, hash); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	batch := childRecordBatch(scale, hash)
	if batch.Len() > 0 {
		results := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("saving scale child records: %w", err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("saving scale child records: %w", err)
		}
	}
	return nil
}

// Get returns the most recently updated version of a scale
func (r *ScaleRepository) Get(ctx context.Context, id string) (*domain.Scale, error) {
	query := `SELECT ` + scaleColumns + ` FROM scales WHERE id = $1 ORDER BY updated_at DESC, version DESC LIMIT 1`
	return r.getOne(ctx, "scale "+id, query, id)
}

// GetActive returns the active version of a scale
func (r *ScaleRepository) GetActive(ctx context.Context, id string) (*domain.Scale, error) {
	query := `SELECT ` + scaleColumns + ` FROM scales WHERE id = $1 AND status = 'active'`
	return r.getOne(ctx, "active scale "+id, query, id)
}

// GetByHash returns a specific version of a scale
func (r *ScaleRepository) GetByHash(ctx context.Context, id, contentHash string) (*domain.Scale, error) {
	query := `SELECT ` + scaleColumns + ` FROM scales WHERE id = $1 AND content_hash = $2`
	return r.getOne(ctx, "scale "+id+"@"+contentHash, query, id, contentHash)
}

// SetStatus moves a stored version to a new lifecycle state
func (r *ScaleRepository) SetStatus(ctx context.Context, id, contentHash string, status domain.ScaleStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE scales SET status = $3, updated_at = NOW() WHERE id = $1 AND content_hash = $2`,
		id, contentHash, string(status),
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"scale_id":     id,
			"content_hash": contentHash,
			"status":       status,
			"error":        err,
		}).Error("Failed to update scale status")
		return fmt.Errorf("updating scale status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("scale %s@%s: %w", id, contentHash, domain.ErrNotFound)
	}
	return nil
}

// List returns the latest version of every scale ordered by id
func (r *ScaleRepository) List(ctx context.Context, status domain.ScaleStatus) ([]*domain.Scale, error) {
	query := `
		SELECT DISTINCT ON (id) ` + scaleColumns + `
		FROM scales
		WHERE ($1 = '' OR status = $1)
		ORDER BY id, updated_at DESC, version DESC`

	rows, err := r.db.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("listing scales: %w", err)
	}
	scales, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Scale, error) {
		return scanScale(row)
	})
	if err != nil {
		return nil, fmt.Errorf("listing scales: %w", err)
	}

	for _, scale := range scales {
		if err := loadChildren(ctx, r.db, scale); err != nil {
			return nil, err
		}
	}
	return scales, nil
}

func (r *ScaleRepository) getOne(ctx context.Context, what, query string, args ...any) (*domain.Scale, error) {
	scale, err := scanScale(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", what, domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"lookup": what,
			"error":  err,
		}).Error("Failed to get scale")
		return nil, fmt.Errorf("getting %s: %w", what, err)
	}

	if err := loadChildren(ctx, r.db, scale); err != nil {
		return nil, err
	}
	return scale, nil
}

func scanScale(row pgx.Row) (*domain.Scale, error) {
	var s domain.Scale
	var method, status string
	err := row.Scan(
		&s.ID, &s.ContentHash, &s.Name, &s.Abbreviation, &s.Description, &s.Category, &s.TotalItems,
		&method, &s.ScoreRangeMin, &s.ScoreRangeMax, &status, &s.Version, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.ScoringMethod = domain.ScoringMethod(method)
	s.Status = domain.ScaleStatus(status)
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}

func loadChildren(ctx context.Context, q querier, s *domain.Scale) error {
	if err := loadItems(ctx, q, s); err != nil {
		return fmt.Errorf("loading items of %s: %w", s.ID, err)
	}
	if err := loadGroups(ctx, q, s); err != nil {
		return fmt.Errorf("loading response groups of %s: %w", s.ID, err)
	}
	if err := loadOptions(ctx, q, s); err != nil {
		return fmt.Errorf("loading response options of %s: %w", s.ID, err)
	}
	if err := loadSubscales(ctx, q, s); err != nil {
		return fmt.Errorf("loading subscales of %s: %w", s.ID, err)
	}
	if err := loadRules(ctx, q, s); err != nil {
		return fmt.Errorf("loading interpretation rules of %s: %w", s.ID, err)
	}
	return nil
}

func loadItems(ctx context.Context, q querier, s *domain.Scale) error {
	rows, err := q.Query(ctx, `
		SELECT item_id, number, text, question_type, response_group, reverse_scored, alert_threshold, alert_message
		FROM scale_items WHERE scale_id = $1 AND content_hash = $2 ORDER BY position`,
		s.ID, s.ContentHash)
	if err != nil {
		return err
	}
	s.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Item, error) {
		var item domain.Item
		var questionType, alertMessage string
		var threshold *float64
		err := row.Scan(&item.ID, &item.Number, &item.Text, &questionType, &item.ResponseGroup,
			&item.ReverseScored, &threshold, &alertMessage)
		item.QuestionType = domain.QuestionType(questionType)
		if threshold != nil {
			item.Alert = &domain.ItemAlert{Threshold: *threshold, Message: alertMessage}
		}
		return item, err
	})
	return err
}

func loadGroups(ctx context.Context, q querier, s *domain.Scale) error {
	rows, err := q.Query(ctx, `
		SELECT group_key, name FROM scale_response_groups
		WHERE scale_id = $1 AND content_hash = $2 ORDER BY position`,
		s.ID, s.ContentHash)
	if err != nil {
		return err
	}
	groups, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ResponseGroup, error) {
		var g domain.ResponseGroup
		err := row.Scan(&g.Key, &g.Name)
		return g, err
	})
	if len(groups) > 0 {
		s.ResponseGroups = groups
	}
	return err
}

func loadOptions(ctx context.Context, q querier, s *domain.Scale) error {
	rows, err := q.Query(ctx, `
		SELECT scope, owner, value, label, score, sort_order FROM scale_response_options
		WHERE scale_id = $1 AND content_hash = $2 ORDER BY scope, owner, position`,
		s.ID, s.ContentHash)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var scope, owner, value string
		var opt domain.ResponseOption
		if err := rows.Scan(&scope, &owner, &value, &opt.Label, &opt.Score, &opt.Order); err != nil {
			return err
		}
		opt.Value = domain.Value(value)

		switch scope {
		case optionScopeGlobal:
			s.ResponseOptions = append(s.ResponseOptions, opt)
		case optionScopeGroup:
			if g, ok := s.ResponseGroupByKey(owner); ok {
				g.Options = append(g.Options, opt)
			}
		case optionScopeItem:
			pos, err := strconv.Atoi(owner)
			if err != nil || pos < 0 || pos >= len(s.Items) {
				return fmt.Errorf("option owner %q does not reference an item", owner)
			}
			s.Items[pos].Options = append(s.Items[pos].Options, opt)
		}
	}
	return rows.Err()
}

func loadSubscales(ctx context.Context, q querier, s *domain.Scale) error {
	rows, err := q.Query(ctx, `
		SELECT subscale_id, name, items, description, reliability FROM scale_subscales
		WHERE scale_id = $1 AND content_hash = $2 ORDER BY position`,
		s.ID, s.ContentHash)
	if err != nil {
		return err
	}
	subscales, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Subscale, error) {
		var sub domain.Subscale
		var items string
		if err := row.Scan(&sub.ID, &sub.Name, &items, &sub.Description, &sub.Reliability); err != nil {
			return sub, err
		}
		members, err := ingest.ParseItemList(items)
		sub.Items = members
		return sub, err
	})
	if len(subscales) > 0 {
		s.Subscales = subscales
	}
	return err
}

func loadRules(ctx context.Context, q querier, s *domain.Scale) error {
	rows, err := q.Query(ctx, `
		SELECT subscale_id, min_score, max_score, label, severity, description, recommendations
		FROM scale_interpretation_rules
		WHERE scale_id = $1 AND content_hash = $2 ORDER BY position`,
		s.ID, s.ContentHash)
	if err != nil {
		return err
	}
	rules, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.InterpretationRule, error) {
		var rule domain.InterpretationRule
		err := row.Scan(&rule.SubscaleID, &rule.MinScore, &rule.MaxScore, &rule.Label,
			&rule.Severity, &rule.Description, &rule.Recommendations)
		if len(rule.Recommendations) == 0 {
			rule.Recommendations = nil
		}
		return rule, err
	})
	if len(rules) > 0 {
		s.InterpretationRules = rules
	}
	return err
}

func childRecordBatch(s *domain.Scale, hash string) *pgx.Batch {
	batch := &pgx.Batch{}

	for pos, item := range s.Items {
		var threshold *float64
		var message string
		if item.Alert != nil {
			t := item.Alert.Threshold
			threshold = &t
			message = item.Alert.Message
		}
		batch.Queue(`
			INSERT INTO scale_items (scale_id, content_hash, number, position, item_id, text,
				question_type, response_group, reverse_scored, alert_threshold, alert_message)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			s.ID, hash, item.Number, pos, item.ID, item.Text, string(item.QuestionType),
			item.ResponseGroup, item.ReverseScored, threshold, message)
		queueOptions(batch, s.ID, hash, optionScopeItem, strconv.Itoa(pos), item.Options)
	}

	for pos, g := range s.ResponseGroups {
		batch.Queue(`
			INSERT INTO scale_response_groups (scale_id, content_hash, position, group_key, name)
			VALUES ($1, $2, $3, $4, $5)`,
			s.ID, hash, pos, g.Key, g.Name)
		queueOptions(batch, s.ID, hash, optionScopeGroup, g.Key, g.Options)
	}

	queueOptions(batch, s.ID, hash, optionScopeGlobal, "", s.ResponseOptions)

	for pos, sub := range s.Subscales {
		batch.Queue(`
			INSERT INTO scale_subscales (scale_id, content_hash, position, subscale_id, name, items, description, reliability)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			s.ID, hash, pos, sub.ID, sub.Name, ingest.FormatItemList(sub.Items), sub.Description, sub.Reliability)
	}

	for pos, rule := range s.InterpretationRules {
		recommendations := rule.Recommendations
		if recommendations == nil {
			recommendations = []string{}
		}
		batch.Queue(`
			INSERT INTO scale_interpretation_rules (scale_id, content_hash, position, subscale_id,
				min_score, max_score, label, severity, description, recommendations)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			s.ID, hash, pos, rule.SubscaleID, rule.MinScore, rule.MaxScore, rule.Label,
			rule.Severity, rule.Description, recommendations)
	}

	return batch
}

func queueOptions(batch *pgx.Batch, scaleID, hash, scope, owner string, opts []domain.ResponseOption) {
	for pos, opt := range opts {
		batch.Queue(`
			INSERT INTO scale_response_options (scale_id, content_hash, scope, owner, position, value, label, score, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			scaleID, hash, scope, owner, pos, string(opt.Value), opt.Label, opt.Score, opt.Order)
	}
}

func statusOrDraft(status domain.ScaleStatus) domain.ScaleStatus {
	if status == "" {
		return domain.StatusDraft
	}
	return status
}
