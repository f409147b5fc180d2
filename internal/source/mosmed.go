package source

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/covidct/builder/internal/models"
	"github.com/covidct/builder/internal/volume"
)

const mosMedName = "mosmed"

// MosMedProcessor handles MosMedData, the optional variant-B source:
// NIfTI studies bucketed by severity grade. CT-0 studies show no signs
// of pneumonia and contribute Normal slices; CT-1 through CT-4 are
// COVID-19 of increasing severity.
//
// Layout:
//
//	<root>/studies/CT-<grade>/study_<id>.nii.gz
type MosMedProcessor struct{}

func NewMosMedProcessor() *MosMedProcessor { return &MosMedProcessor{} }

func (p *MosMedProcessor) Name() string { return mosMedName }

// mosMedStudy is one NIfTI study located under a severity grade.
type mosMedStudy struct {
	grade string
	file  string
	class models.ClassLabel
}

func (p *MosMedProcessor) Process(cfg Config) ([]models.ManifestEntry, error) {
	log := cfg.Log().With(zap.String("source", p.Name()))

	studiesDir := filepath.Join(cfg.Root, "studies")
	grades, err := listCaseDirs(studiesDir)
	if err != nil {
		return nil, err
	}

	// All grades are enumerated up front so progress counts the whole
	// source, not one grade bucket at a time.
	studies := make([]mosMedStudy, 0)
	for _, grade := range grades {
		if !strings.HasPrefix(grade, "CT-") {
			continue
		}
		class := models.ClassCOVID19
		if grade == "CT-0" {
			class = models.ClassNormal
		}

		files, err := os.ReadDir(filepath.Join(studiesDir, grade))
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(files))
		for _, f := range files {
			if !f.IsDir() && strings.HasSuffix(f.Name(), ".nii.gz") {
				names = append(names, f.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			studies = append(studies, mosMedStudy{grade: grade, file: name, class: class})
		}
	}

	entries := make([]models.ManifestEntry, 0)
	skipped := 0
	for i, study := range studies {
		caseID := strings.TrimSuffix(study.file, ".nii.gz")
		vol, err := volume.LoadNIfTI(filepath.Join(studiesDir, study.grade, study.file))
		if err != nil {
			skipped++
			log.Warn("skipping case", zap.String("case", caseID), zap.Error(err))
			continue
		}
		caseEntries, err := writeVolumeSlices(cfg, p.Name(), caseID, vol, study.class, nil)
		if err != nil {
			skipped++
			log.Warn("skipping case", zap.String("case", caseID), zap.Error(err))
			continue
		}
		entries = append(entries, caseEntries...)
		cfg.reportProgress(i+1, len(studies))
	}
	if skipped > 0 {
		log.Warn("cases skipped", zap.Int("skipped", skipped), zap.Int("total", len(studies)))
	}
	return entries, nil
}
