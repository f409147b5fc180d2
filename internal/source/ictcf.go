package source

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/covidct/builder/internal/models"
	"github.com/covidct/builder/internal/volume"
	"github.com/covidct/builder/internal/window"
)

// ICTCFProcessor handles iCTCF: per-patient JPEG slice directories with
// a morbidity CSV. Morbidity buckets map onto classes; suspected cases
// without a confirmed outcome are excluded entirely.
//
// Metadata files:
//
//	morbidity (required) patient_id,morbidity
type ICTCFProcessor struct{}

func NewICTCFProcessor() *ICTCFProcessor { return &ICTCFProcessor{} }

func (p *ICTCFProcessor) Name() string { return "ictcf" }

// ictcfClass maps the iCTCF morbidity vocabulary onto class labels.
// The bool result is false for buckets that are dropped.
func ictcfClass(morbidity string) (models.ClassLabel, bool) {
	switch strings.ToLower(strings.TrimSpace(morbidity)) {
	case "control":
		return models.ClassNormal, true
	case "community-acquired pneumonia", "cap":
		return models.ClassPneumonia, true
	case "mild", "regular", "severe", "critically ill":
		return models.ClassCOVID19, true
	default:
		// "suspected" and anything unrecognized.
		return 0, false
	}
}

func (p *ICTCFProcessor) Process(cfg Config) ([]models.ManifestEntry, error) {
	log := cfg.Log().With(zap.String("source", p.Name()))

	morbidityPath, err := cfg.MetadataPath("morbidity")
	if err != nil {
		return nil, err
	}
	rows, err := loadCSV(morbidityPath, true)
	if err != nil {
		return nil, fmt.Errorf("%w: morbidity (%v)", ErrMetadataMissing, err)
	}

	labels := make(map[string]models.ClassLabel, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		if class, ok := ictcfClass(row[1]); ok {
			labels[sanitizeCaseID(row[0])] = class
		}
	}

	cases, err := listCaseDirs(cfg.Root)
	if err != nil {
		return nil, err
	}

	entries := make([]models.ManifestEntry, 0)
	skipped := 0
	for i, caseID := range cases {
		class, ok := labels[sanitizeCaseID(caseID)]
		if !ok {
			// Unlabeled or suspected patient.
			continue
		}

		caseEntries, err := p.processCase(cfg, caseID, class)
		if err != nil {
			skipped++
			log.Warn("skipping case", zap.String("case", caseID), zap.Error(err))
			continue
		}
		entries = append(entries, caseEntries...)
		cfg.reportProgress(i+1, len(cases))
	}
	if skipped > 0 {
		log.Warn("cases skipped", zap.Int("skipped", skipped), zap.Int("total", len(cases)))
	}
	return entries, nil
}

func (p *ICTCFProcessor) processCase(cfg Config, caseID string, class models.ClassLabel) ([]models.ManifestEntry, error) {
	caseDir := filepath.Join(cfg.Root, caseID)
	files, err := listImageFiles(caseDir)
	if err != nil {
		return nil, err
	}

	entries := make([]models.ManifestEntry, 0, len(files))
	for idx, file := range files {
		vol, err := volume.LoadImageSlice(filepath.Join(caseDir, file))
		if err != nil {
			return nil, fmt.Errorf("slice %s: %w", file, err)
		}
		pixels := window.RescaleMinMax(vol.Data)
		if window.IsEmptySlice(pixels) {
			continue
		}

		name := SliceFilename(p.Name(), caseID, idx)
		if err := writeSlice(cfg, pixels, vol.Width, vol.Height, name); err != nil {
			return nil, err
		}
		entries = append(entries, models.ManifestEntry{
			Filename:   name,
			Class:      class,
			Source:     p.Name(),
			CaseID:     caseID,
			SliceIndex: idx,
		})
	}
	return entries, nil
}
