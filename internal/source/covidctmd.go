package source

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/covidct/builder/internal/models"
)

// COVIDCTMDProcessor handles COVID-CT-MD: DICOM case directories split
// into normal, CAP (community-acquired pneumonia) and COVID groups.
// COVID cases come with radiologist slice-level annotations; only the
// annotated slices of a COVID case are kept, while normal and CAP cases
// keep every non-degenerate slice.
//
// Metadata files:
//
//	lesions (required) case_id,"i;j;k" semicolon-separated slice indices
type COVIDCTMDProcessor struct{}

func NewCOVIDCTMDProcessor() *COVIDCTMDProcessor { return &COVIDCTMDProcessor{} }

func (p *COVIDCTMDProcessor) Name() string { return "covidctmd" }

var covidCTMDGroups = []struct {
	dir   string
	class models.ClassLabel
}{
	{dir: "normal", class: models.ClassNormal},
	{dir: "cap", class: models.ClassPneumonia},
	{dir: "covid", class: models.ClassCOVID19},
}

func (p *COVIDCTMDProcessor) Process(cfg Config) ([]models.ManifestEntry, error) {
	log := cfg.Log().With(zap.String("source", p.Name()))

	lesionsPath, err := cfg.MetadataPath("lesions")
	if err != nil {
		return nil, err
	}
	rows, err := loadCSV(lesionsPath, true)
	if err != nil {
		return nil, fmt.Errorf("%w: lesions (%v)", ErrMetadataMissing, err)
	}

	lesionSlices := make(map[string]map[int]struct{}, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		indices := make(map[int]struct{})
		for _, tok := range strings.Split(row[1], ";") {
			idx, err := strconv.Atoi(strings.TrimSpace(tok))
			if err != nil {
				log.Warn("unreadable lesion index", zap.Strings("row", row))
				continue
			}
			indices[idx] = struct{}{}
		}
		lesionSlices[strings.TrimSpace(row[0])] = indices
	}

	entries := make([]models.ManifestEntry, 0)
	for _, group := range covidCTMDGroups {
		groupDir := filepath.Join(cfg.Root, group.dir)
		cases, err := listCaseDirs(groupDir)
		if err != nil {
			return nil, err
		}

		skipped := 0
		for i, caseID := range cases {
			var keep func(z int) bool
			if group.class == models.ClassCOVID19 {
				annotated, ok := lesionSlices[caseID]
				if !ok {
					// COVID case without annotations carries no usable
					// slice labels.
					skipped++
					log.Warn("covid case has no lesion annotations, skipping", zap.String("case", caseID))
					continue
				}
				keep = func(z int) bool {
					_, ok := annotated[z]
					return ok
				}
			}

			caseEntries, err := processDICOMCase(cfg, p.Name(), caseID, filepath.Join(groupDir, caseID), group.class, keep)
			if err != nil {
				skipped++
				log.Warn("skipping case", zap.String("case", caseID), zap.Error(err))
				continue
			}
			entries = append(entries, caseEntries...)
			cfg.reportProgress(i+1, len(cases))
		}
		if skipped > 0 {
			log.Warn("cases skipped", zap.String("group", group.dir), zap.Int("skipped", skipped), zap.Int("total", len(cases)))
		}
	}
	return entries, nil
}
