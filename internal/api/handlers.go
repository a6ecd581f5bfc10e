package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/clinimetric-scale-server/internal/domain"
	"github.com/clinimetric-scale-server/internal/ingest"
	"github.com/clinimetric-scale-server/internal/middleware"
	"github.com/clinimetric-scale-server/internal/service"
)

type activateRequest struct {
	ContentHash string `json:"contentHash"`
}

type interpretRequest struct {
	Score      *float64 `json:"score" binding:"required"`
	SubscaleID string   `json:"subscaleId"`
}

type interpretResponse struct {
	ScaleID        string                 `json:"scaleId"`
	Score          float64                `json:"score"`
	SubscaleID     string                 `json:"subscaleId,omitempty"`
	Matched        bool                   `json:"matched"`
	Overlapping    bool                   `json:"overlapping"`
	Interpretation *domain.Interpretation `json:"interpretation"`
}

type importResponse struct {
	Scale  *domain.Scale            `json:"scale"`
	Report *domain.ValidationReport `json:"report"`
}

// readBody reads a size-limited request body and picks its format from the
// Content-Type header.
func readBody(c *gin.Context) ([]byte, ingest.Format, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read request body: %w", err)
	}
	return data, ingest.FormatFromContentType(c.ContentType()), nil
}

func (s *Server) handleValidate(c *gin.Context) {
	data, format, err := readBody(c)
	if err != nil {
		s.respondDecodeError(c, err)
		return
	}
	scale, err := ingest.DecodeScale(data, format)
	if err != nil {
		s.respondDecodeError(c, err)
		return
	}

	report := s.catalog.ValidateDefinition(c.Request.Context(), scale)
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleValidateBatch(c *gin.Context) {
	data, format, err := readBody(c)
	if err != nil {
		s.respondDecodeError(c, err)
		return
	}
	entries, err := ingest.DecodeScaleEntries(data, format)
	if err != nil {
		s.respondDecodeError(c, err)
		return
	}

	inputs := make([]service.BatchInput, len(entries))
	for i, e := range entries {
		inputs[i] = service.BatchInput{Source: e.Source, ID: e.ID, Scale: e.Scale, Err: e.Err}
	}
	report := s.batch.ValidateInputs(c.Request.Context(), inputs)
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleImport(c *gin.Context) {
	data, format, err := readBody(c)
	if err != nil {
		s.respondDecodeError(c, err)
		return
	}
	scale, err := ingest.DecodeScale(data, format)
	if err != nil {
		s.respondDecodeError(c, err)
		return
	}

	stored, report, err := s.catalog.Import(c.Request.Context(), scale)
	if err != nil {
		s.respondError(c, err, report)
		return
	}
	c.JSON(http.StatusCreated, importResponse{Scale: stored, Report: report})
}

func (s *Server) handleList(c *gin.Context) {
	status := domain.ScaleStatus(c.Query("status"))
	if status != "" && !status.IsValid() {
		s.respondError(c, domain.NewValidationError("status", "unknown lifecycle status", c.Query("status")), nil)
		return
	}

	scales, err := s.catalog.List(c.Request.Context(), status)
	if err != nil {
		s.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"scales": scales,
		"count":  len(scales),
	})
}

func (s *Server) handleGet(c *gin.Context) {
	scale, err := s.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, scale)
}

func (s *Server) handleActivate(c *gin.Context) {
	var req activateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			s.respondDecodeError(c, err)
			return
		}
	}

	scale, report, err := s.catalog.Activate(c.Request.Context(), c.Param("id"), req.ContentHash)
	if err != nil {
		s.respondError(c, err, report)
		return
	}
	c.JSON(http.StatusOK, importResponse{Scale: scale, Report: report})
}

func (s *Server) handleDeactivate(c *gin.Context) {
	scale, err := s.catalog.Deactivate(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, scale)
}

func (s *Server) handleScore(c *gin.Context) {
	sub, ok := s.decodeSubmission(c)
	if !ok {
		return
	}
	if sub.Scale != nil {
		s.respondError(c, domain.NewValidationError("scale",
			"inline definitions are scored at /api/v1/assessments/score", nil), nil)
		return
	}

	result, err := s.catalog.Score(c.Request.Context(), c.Param("id"), sub.SubjectRef, sub.Responses)
	if err != nil {
		s.respondError(c, err, nil)
		return
	}
	s.logResult(c, result)
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleScoreInline(c *gin.Context) {
	sub, ok := s.decodeSubmission(c)
	if !ok {
		return
	}
	if sub.Scale == nil {
		s.respondError(c, domain.NewValidationError("scale", "an inline scale definition is required", nil), nil)
		return
	}

	result, report, err := s.catalog.PreviewScore(c.Request.Context(), sub.Scale, sub.Responses)
	if err != nil {
		s.respondError(c, err, report)
		return
	}
	s.logResult(c, result)
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleInterpret(c *gin.Context) {
	var req interpretRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, domain.NewValidationError("score", "a numeric score is required", nil), nil)
		return
	}

	id := c.Param("id")
	outcome, err := s.catalog.Interpret(c.Request.Context(), id, *req.Score, req.SubscaleID)
	if err != nil {
		s.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, interpretResponse{
		ScaleID:        id,
		Score:          *req.Score,
		SubscaleID:     req.SubscaleID,
		Matched:        outcome.Matched,
		Overlapping:    outcome.Overlapping(),
		Interpretation: outcome.Interpretation,
	})
}

func (s *Server) decodeSubmission(c *gin.Context) (*ingest.Submission, bool) {
	data, format, err := readBody(c)
	if err != nil {
		s.respondDecodeError(c, err)
		return nil, false
	}
	sub, err := ingest.DecodeSubmission(data, format)
	if err != nil {
		s.respondDecodeError(c, err)
		return nil, false
	}
	return sub, true
}

func (s *Server) logResult(c *gin.Context, result *domain.AssessmentResult) {
	s.logger.WithFields(logrus.Fields{
		"request_id": c.GetString(middleware.RequestIDKey),
		"scale_id":   result.ScaleID,
		"score":      result.TotalScore.Raw,
		"complete":   result.Complete,
		"anomalies":  len(result.Anomalies),
		"alerts":     len(result.Alerts),
	}).Info("Scored assessment")
}
