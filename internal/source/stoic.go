package source

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/covidct/builder/internal/models"
	"github.com/covidct/builder/internal/volume"
)

// STOICProcessor handles the STOIC challenge data: one NIfTI volume per
// patient plus a reference CSV with the RT-PCR outcome.
//
// Layout and metadata:
//
//	<root>/data/<patient_id>.nii.gz
//	reference (required) patient_id,prob_covid with prob_covid in {0,1}
type STOICProcessor struct{}

func NewSTOICProcessor() *STOICProcessor { return &STOICProcessor{} }

func (p *STOICProcessor) Name() string { return "stoic" }

func (p *STOICProcessor) Process(cfg Config) ([]models.ManifestEntry, error) {
	log := cfg.Log().With(zap.String("source", p.Name()))

	refPath, err := cfg.MetadataPath("reference")
	if err != nil {
		return nil, err
	}
	rows, err := loadCSV(refPath, true)
	if err != nil {
		return nil, fmt.Errorf("%w: reference (%v)", ErrMetadataMissing, err)
	}

	entries := make([]models.ManifestEntry, 0)
	skipped := 0
	for i, row := range rows {
		if len(row) < 2 {
			log.Warn("unreadable reference row", zap.Strings("row", row))
			continue
		}
		caseID := strings.TrimSpace(row[0])

		var class models.ClassLabel
		switch strings.TrimSpace(row[1]) {
		case "1":
			class = models.ClassCOVID19
		case "0":
			class = models.ClassNormal
		default:
			log.Warn("unreadable reference row", zap.Strings("row", row))
			continue
		}

		vol, err := volume.LoadNIfTI(filepath.Join(cfg.Root, "data", caseID+".nii.gz"))
		if err != nil {
			skipped++
			log.Warn("skipping case", zap.String("case", caseID), zap.Error(err))
			continue
		}
		caseEntries, err := writeVolumeSlices(cfg, p.Name(), caseID, vol, class, nil)
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
