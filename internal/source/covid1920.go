package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/covidct/builder/internal/models"
	"github.com/covidct/builder/internal/volume"
	"github.com/covidct/builder/internal/window"
)

// COVID1920Processor handles the COVID-19-20 challenge release: NIfTI
// volumes with matching lesion segmentation masks. Every case is a
// confirmed COVID-19 study; only slices with lesion tissue in the mask
// are kept.
//
// Layout:
//
//	<root>/volumes/<case>_ct.nii.gz
//	<root>/masks/<case>_seg.nii.gz
type COVID1920Processor struct{}

func NewCOVID1920Processor() *COVID1920Processor { return &COVID1920Processor{} }

func (p *COVID1920Processor) Name() string { return "covid1920" }

const (
	covid1920VolumeSuffix = "_ct.nii.gz"
	covid1920MaskSuffix   = "_seg.nii.gz"

	// Minimum fraction of lesion voxels for a slice to count as annotated.
	covid1920MinMaskCoverage = 0.001
)

func (p *COVID1920Processor) Process(cfg Config) ([]models.ManifestEntry, error) {
	log := cfg.Log().With(zap.String("source", p.Name()))

	volumesDir := filepath.Join(cfg.Root, "volumes")
	files, err := os.ReadDir(volumesDir)
	if err != nil {
		return nil, fmt.Errorf("enumerating volumes: %w", err)
	}

	cases := make([]string, 0, len(files))
	for _, f := range files {
		if !f.IsDir() && strings.HasSuffix(f.Name(), covid1920VolumeSuffix) {
			cases = append(cases, strings.TrimSuffix(f.Name(), covid1920VolumeSuffix))
		}
	}
	sort.Strings(cases)

	entries := make([]models.ManifestEntry, 0)
	skipped := 0
	for i, caseID := range cases {
		caseEntries, err := p.processCase(cfg, caseID)
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

func (p *COVID1920Processor) processCase(cfg Config, caseID string) ([]models.ManifestEntry, error) {
	vol, err := volume.LoadNIfTI(filepath.Join(cfg.Root, "volumes", caseID+covid1920VolumeSuffix))
	if err != nil {
		return nil, fmt.Errorf("loading volume: %w", err)
	}
	mask, err := volume.LoadNIfTI(filepath.Join(cfg.Root, "masks", caseID+covid1920MaskSuffix))
	if err != nil {
		return nil, fmt.Errorf("loading mask: %w", err)
	}
	if mask.Depth != vol.Depth || mask.Width != vol.Width || mask.Height != vol.Height {
		return nil, fmt.Errorf("mask dimensions %dx%dx%d do not match volume %dx%dx%d",
			mask.Width, mask.Height, mask.Depth, vol.Width, vol.Height, vol.Depth)
	}

	keep := func(z int) bool {
		m, err := mask.Slice(z)
		if err != nil {
			return false
		}
		return window.MaskCoverage(m) >= covid1920MinMaskCoverage
	}
	return writeVolumeSlices(cfg, p.Name(), caseID, vol, models.ClassCOVID19, keep)
}
