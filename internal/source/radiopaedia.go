package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/covidct/builder/internal/models"
	"github.com/covidct/builder/internal/volume"
	"github.com/covidct/builder/internal/window"
)

// RadiopaediaProcessor handles cases exported from Radiopaedia: each
// case directory holds the saved case page (case.html) alongside the
// slice images. The diagnosis is parsed out of the HTML, there is no
// central label CSV for this source.
type RadiopaediaProcessor struct{}

func NewRadiopaediaProcessor() *RadiopaediaProcessor { return &RadiopaediaProcessor{} }

func (p *RadiopaediaProcessor) Name() string { return "radiopaedia" }

const radiopaediaCasePage = "case.html"

func (p *RadiopaediaProcessor) Process(cfg Config) ([]models.ManifestEntry, error) {
	log := cfg.Log().With(zap.String("source", p.Name()))

	cases, err := listCaseDirs(cfg.Root)
	if err != nil {
		return nil, err
	}

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

func (p *RadiopaediaProcessor) processCase(cfg Config, caseID string) ([]models.ManifestEntry, error) {
	caseDir := filepath.Join(cfg.Root, caseID)

	class, err := p.parseCasePage(filepath.Join(caseDir, radiopaediaCasePage))
	if err != nil {
		return nil, err
	}

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

// parseCasePage extracts the diagnosis from a saved case page. The
// dedicated diagnosis element is preferred; older exports only carry
// the diagnosis in the body text.
func (p *RadiopaediaProcessor) parseCasePage(path string) (models.ClassLabel, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening case page: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return 0, fmt.Errorf("parsing case page: %w", err)
	}

	text := doc.Find(".diagnosis, .diagnostic-certainty, #case-diagnosis").Text()
	if strings.TrimSpace(text) == "" {
		text = doc.Find("body").Text()
	}
	return classifyDiagnosisText(text), nil
}

// classifyDiagnosisText maps free-text diagnosis wording onto a class.
// COVID wording wins over generic pneumonia wording since COVID case
// pages routinely mention pneumonia as well.
func classifyDiagnosisText(text string) models.ClassLabel {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "covid"), strings.Contains(t, "sars-cov-2"):
		return models.ClassCOVID19
	case strings.Contains(t, "pneumonia"):
		return models.ClassPneumonia
	default:
		return models.ClassNormal
	}
}
