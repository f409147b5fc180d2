package source

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/covidct/builder/internal/models"
	"github.com/covidct/builder/internal/volume"
	"github.com/covidct/builder/internal/window"
)

// CNCBProcessor handles the CNCB/China National Center for
// Bioinformation release: per-case directories of pre-exported PNG
// slices with a case-level label CSV, an exclusion list of poor-quality
// images and an extra-lesion CSV that forces slice ranges to COVID-19
// regardless of the case-level label.
//
// Metadata files:
//
//	labels  (required)  case_id,label with label in {Normal,CP,NCP}
//	exclude (optional)  one slice filename per line, relative to case dir
//	lesions (optional)  case_id,first_slice,last_slice (inclusive)
type CNCBProcessor struct{}

func NewCNCBProcessor() *CNCBProcessor { return &CNCBProcessor{} }

func (p *CNCBProcessor) Name() string { return "cncb" }

// cncbLabel maps the CNCB label vocabulary onto class labels.
func cncbLabel(raw string) (models.ClassLabel, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "NORMAL":
		return models.ClassNormal, nil
	case "CP":
		return models.ClassPneumonia, nil
	case "NCP":
		return models.ClassCOVID19, nil
	default:
		return 0, fmt.Errorf("unknown cncb label %q", raw)
	}
}

type sliceRange struct{ first, last int }

func (p *CNCBProcessor) Process(cfg Config) ([]models.ManifestEntry, error) {
	log := cfg.Log().With(zap.String("source", p.Name()))

	labelsPath, err := cfg.MetadataPath("labels")
	if err != nil {
		return nil, err
	}
	rows, err := loadCSV(labelsPath, true)
	if err != nil {
		return nil, fmt.Errorf("%w: labels (%v)", ErrMetadataMissing, err)
	}
	labels := make(map[string]models.ClassLabel, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		class, err := cncbLabel(row[1])
		if err != nil {
			log.Warn("unreadable label row", zap.Strings("row", row), zap.Error(err))
			continue
		}
		labels[strings.TrimSpace(row[0])] = class
	}

	excluded := map[string]struct{}{}
	if path, ok := cfg.OptionalMetadataPath("exclude"); ok {
		if excluded, err = loadIDSet(path); err != nil {
			return nil, fmt.Errorf("loading exclusion list: %w", err)
		}
	}

	lesions := map[string]sliceRange{}
	if path, ok := cfg.OptionalMetadataPath("lesions"); ok {
		lrows, err := loadCSV(path, true)
		if err != nil {
			return nil, fmt.Errorf("loading lesion ranges: %w", err)
		}
		for _, row := range lrows {
			if len(row) < 3 {
				continue
			}
			first, err1 := strconv.Atoi(strings.TrimSpace(row[1]))
			last, err2 := strconv.Atoi(strings.TrimSpace(row[2]))
			if err1 != nil || err2 != nil {
				log.Warn("unreadable lesion row", zap.Strings("row", row))
				continue
			}
			lesions[strings.TrimSpace(row[0])] = sliceRange{first: first, last: last}
		}
	}

	cases, err := listCaseDirs(cfg.Root)
	if err != nil {
		return nil, err
	}

	entries := make([]models.ManifestEntry, 0)
	skipped := 0
	for i, caseID := range cases {
		class, ok := labels[caseID]
		if !ok {
			skipped++
			log.Warn("case has no label, skipping", zap.String("case", caseID))
			continue
		}

		caseEntries, err := p.processCase(cfg, caseID, class, excluded, lesions)
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

func (p *CNCBProcessor) processCase(cfg Config, caseID string, class models.ClassLabel, excluded map[string]struct{}, lesions map[string]sliceRange) ([]models.ManifestEntry, error) {
	caseDir := filepath.Join(cfg.Root, caseID)
	files, err := listImageFiles(caseDir)
	if err != nil {
		return nil, err
	}

	lesion, hasLesion := lesions[caseID]
	entries := make([]models.ManifestEntry, 0, len(files))
	for idx, file := range files {
		if _, skip := excluded[file]; skip {
			continue
		}

		sliceClass := class
		if hasLesion && idx >= lesion.first && idx <= lesion.last {
			// Annotated lesion slices override the case-level label.
			sliceClass = models.ClassCOVID19
		}

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
			Class:      sliceClass,
			Source:     p.Name(),
			CaseID:     caseID,
			SliceIndex: idx,
		})
	}
	return entries, nil
}
