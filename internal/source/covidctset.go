package source

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/covidct/builder/internal/models"
	"github.com/covidct/builder/internal/volume"
	"github.com/covidct/builder/internal/window"
)

// COVIDCTSetProcessor handles COVID-CTset: 16-bit grayscale slice
// exports grouped by class directory, one subdirectory per patient.
// The class comes from the directory layout, there is no label CSV.
//
// Layout:
//
//	<root>/COVID/<patient>/*.png
//	<root>/Normal/<patient>/*.png
type COVIDCTSetProcessor struct{}

func NewCOVIDCTSetProcessor() *COVIDCTSetProcessor { return &COVIDCTSetProcessor{} }

func (p *COVIDCTSetProcessor) Name() string { return "covidctset" }

var covidCTSetGroups = []struct {
	dir   string
	class models.ClassLabel
}{
	{dir: "COVID", class: models.ClassCOVID19},
	{dir: "Normal", class: models.ClassNormal},
}

func (p *COVIDCTSetProcessor) Process(cfg Config) ([]models.ManifestEntry, error) {
	log := cfg.Log().With(zap.String("source", p.Name()))

	entries := make([]models.ManifestEntry, 0)
	for _, group := range covidCTSetGroups {
		groupDir := filepath.Join(cfg.Root, group.dir)
		patients, err := listCaseDirs(groupDir)
		if err != nil {
			return nil, err
		}

		skipped := 0
		for i, patient := range patients {
			// Patient IDs repeat across class groups, so the group is
			// part of the case identity.
			caseID := fmt.Sprintf("%s_%s", group.dir, patient)
			caseEntries, err := p.processCase(cfg, caseID, filepath.Join(groupDir, patient), group.class)
			if err != nil {
				skipped++
				log.Warn("skipping case", zap.String("case", caseID), zap.Error(err))
				continue
			}
			entries = append(entries, caseEntries...)
			cfg.reportProgress(i+1, len(patients))
		}
		if skipped > 0 {
			log.Warn("cases skipped", zap.String("group", group.dir), zap.Int("skipped", skipped), zap.Int("total", len(patients)))
		}
	}
	return entries, nil
}

func (p *COVIDCTSetProcessor) processCase(cfg Config, caseID, caseDir string, class models.ClassLabel) ([]models.ManifestEntry, error) {
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
