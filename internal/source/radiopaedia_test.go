package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covidct/builder/internal/models"
	"github.com/covidct/builder/internal/testutil"
	"github.com/covidct/builder/internal/window"
)

func TestClassifyDiagnosisText(t *testing.T) {
	cases := []struct {
		text string
		want models.ClassLabel
	}{
		{"COVID-19 pneumonia", models.ClassCOVID19},
		{"Confirmed SARS-CoV-2 infection", models.ClassCOVID19},
		{"Bacterial pneumonia, right lower lobe", models.ClassPneumonia},
		{"Normal chest CT", models.ClassNormal},
		{"", models.ClassNormal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, classifyDiagnosisText(tc.text), "text %q", tc.text)
	}
}

func writeRadiopaediaCase(t *testing.T, root, caseID, diagnosis string, slices int) {
	t.Helper()
	caseDir := filepath.Join(root, caseID)
	require.NoError(t, os.MkdirAll(caseDir, 0755))

	html := `<html><body>
<h1>Case presentation</h1>
<div class="diagnosis">` + diagnosis + `</div>
</body></html>`
	require.NoError(t, os.WriteFile(filepath.Join(caseDir, radiopaediaCasePage), []byte(html), 0644))

	for i := 0; i < slices; i++ {
		testutil.WriteGrayPNG(t, filepath.Join(caseDir, filenameFor(i)), 32, 32)
	}
}

func filenameFor(i int) string {
	return string(rune('a'+i)) + ".png"
}

func TestRadiopaediaProcess(t *testing.T) {
	root := t.TempDir()
	writeRadiopaediaCase(t, root, "case-1", "COVID-19 pneumonia", 2)
	writeRadiopaediaCase(t, root, "case-2", "Lobar pneumonia", 1)

	cfg := Config{
		Root:       root,
		OutDir:     t.TempDir(),
		TargetSize: 16,
		Window:     window.DefaultLung,
	}
	entries, err := NewRadiopaediaProcessor().Process(cfg)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	byCase := make(map[string]models.ClassLabel)
	for _, e := range entries {
		byCase[e.CaseID] = e.Class
		_, err := os.Stat(filepath.Join(cfg.OutDir, e.Filename))
		assert.NoError(t, err)
	}
	assert.Equal(t, models.ClassCOVID19, byCase["case-1"])
	assert.Equal(t, models.ClassPneumonia, byCase["case-2"])
}

func TestRadiopaediaCaseWithoutPageIsSkipped(t *testing.T) {
	root := t.TempDir()
	writeRadiopaediaCase(t, root, "case-ok", "Normal chest CT", 1)

	// A case directory without a saved page cannot be labeled.
	testutil.WriteGrayPNG(t, filepath.Join(root, "case-broken", "a.png"), 32, 32)

	cfg := Config{
		Root:       root,
		OutDir:     t.TempDir(),
		TargetSize: 16,
		Window:     window.DefaultLung,
	}
	entries, err := NewRadiopaediaProcessor().Process(cfg)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "case-ok", entries[0].CaseID)
}
