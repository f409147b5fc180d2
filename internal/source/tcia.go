package source

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/covidct/builder/internal/models"
)

// TCIAProcessor handles The Cancer Imaging Archive COVID cohort: one
// DICOM series per subject with a central label CSV.
//
// Metadata files:
//
//	labels (required) subject_id,covid_positive with values Yes/No
type TCIAProcessor struct{}

func NewTCIAProcessor() *TCIAProcessor { return &TCIAProcessor{} }

func (p *TCIAProcessor) Name() string { return "tcia" }

func (p *TCIAProcessor) Process(cfg Config) ([]models.ManifestEntry, error) {
	log := cfg.Log().With(zap.String("source", p.Name()))

	labelsPath, err := cfg.MetadataPath("labels")
	if err != nil {
		return nil, err
	}
	rows, err := loadCSV(labelsPath, true)
	if err != nil {
		return nil, fmt.Errorf("%w: labels (%v)", ErrMetadataMissing, err)
	}

	entries := make([]models.ManifestEntry, 0)
	skipped := 0
	for i, row := range rows {
		if len(row) < 2 {
			log.Warn("unreadable label row", zap.Strings("row", row))
			continue
		}
		caseID := strings.TrimSpace(row[0])

		var class models.ClassLabel
		switch strings.ToLower(strings.TrimSpace(row[1])) {
		case "yes":
			class = models.ClassCOVID19
		case "no":
			class = models.ClassNormal
		default:
			log.Warn("unreadable label row", zap.Strings("row", row))
			continue
		}

		caseEntries, err := processDICOMCase(cfg, p.Name(), caseID, filepath.Join(cfg.Root, caseID), class, nil)
		if err != nil {
			skipped++
			log.Warn("skipping case", zap.String("case", caseID), zap.Error(err))
			continue
		}
		entries = append(entries, caseEntries...)
		cfg.reportProgress(i+1, len(rows))
	}
	if skipped > 0 {
		log.Warn("cases skipped", zap.Int("skipped", skipped), zap.Int("total", len(rows)))
	}
	return entries, nil
}
