package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/clinimetric-scale-server/internal/domain"
	"github.com/clinimetric-scale-server/internal/ingest"
	"github.com/clinimetric-scale-server/internal/service"
)

// LoadSummary describes one pass over the scales directory.
type LoadSummary struct {
	Files     int
	Loaded    int
	Activated int
	Rejected  int
}

// loadScales imports every definition file in dir and activates the valid ones.
// Unreadable files are logged and skipped so one bad file cannot block startup.
func loadScales(ctx context.Context, dir string, catalog *service.ScaleCatalog, logger *logrus.Logger) (LoadSummary, error) {
	var summary LoadSummary

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return summary, nil
		}
		return summary, fmt.Errorf("failed to read scales directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".json", ".yaml", ".yml":
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)

	for _, path := range files {
		summary.Files++
		log := logger.WithField("file", path)

		data, err := os.ReadFile(path)
		if err != nil {
			log.WithError(err).Warn("Failed to read scale file")
			continue
		}
		decoded, err := ingest.DecodeScaleEntries(data, ingest.DetectFormat(path))
		if err != nil {
			log.WithError(err).Warn("Failed to parse scale file")
			continue
		}

		for _, e := range decoded {
			if e.Err != nil {
				summary.Rejected++
				log.WithError(e.Err).WithFields(logrus.Fields{"scale_id": e.ID, "entry": e.Source}).Warn("Failed to decode scale definition")
				continue
			}
			scale := e.Scale
			stored, report, err := catalog.Import(ctx, scale)
			if err != nil {
				log.WithError(err).WithField("scale_id", scale.ID).Warn("Failed to import scale")
				continue
			}
			summary.Loaded++

			if !report.IsValid {
				summary.Rejected++
				log.WithFields(logrus.Fields{
					"scale_id": stored.ID,
					"errors":   len(report.Errors),
				}).Warn("Scale definition is invalid and stays in draft")
				continue
			}
			if stored.Status == domain.StatusActive {
				summary.Activated++
				continue
			}
			if _, _, err := catalog.Activate(ctx, stored.ID, stored.ContentHash); err != nil {
				log.WithError(err).WithField("scale_id", stored.ID).Warn("Failed to activate scale")
				continue
			}
			summary.Activated++
		}
	}

	logger.WithFields(logrus.Fields{
		"dir":       dir,
		"files":     summary.Files,
		"loaded":    summary.Loaded,
		"activated": summary.Activated,
		"rejected":  summary.Rejected,
	}).Info("Loaded scale definitions")
	return summary, nil
}
