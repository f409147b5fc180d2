package source

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/covidct/builder/internal/models"
)

// LIDCProcessor handles LIDC-IDRI: one DICOM series per case directory.
// The cohort predates COVID-19 and contributes Normal slices only. An
// optional exclusion list drops duplicate and poor-quality cases.
type LIDCProcessor struct{}

func NewLIDCProcessor() *LIDCProcessor { return &LIDCProcessor{} }

func (p *LIDCProcessor) Name() string { return "lidc" }

func (p *LIDCProcessor) Process(cfg Config) ([]models.ManifestEntry, error) {
	log := cfg.Log().With(zap.String("source", p.Name()))

	excluded := map[string]struct{}{}
	if path, ok := cfg.OptionalMetadataPath("exclude"); ok {
		var err error
		if excluded, err = loadIDSet(path); err != nil {
			return nil, fmt.Errorf("loading exclusion list: %w", err)
		}
	}

	cases, err := listCaseDirs(cfg.Root)
	if err != nil {
		return nil, err
	}

	entries := make([]models.ManifestEntry, 0)
	skipped := 0
	for i, caseID := range cases {
		if _, skip := excluded[caseID]; skip {
			continue
		}
		caseEntries, err := processDICOMCase(cfg, p.Name(), caseID, filepath.Join(cfg.Root, caseID), models.ClassNormal, nil)
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
