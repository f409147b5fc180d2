package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covidct/builder/internal/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "builder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
output_dir: /data/out
version: 3B
window:
  width: 1200
  level: -500
sources:
  cncb:
    root: /data/raw/cncb
    metadata:
      labels: /data/meta/cncb-labels.csv
  mosmed:
    root: /data/raw/mosmed
    enabled: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	t.Run("explicit fields", func(t *testing.T) {
		assert.Equal(t, "/data/out", cfg.OutputDir)
		assert.Equal(t, "3B", cfg.Version)
		assert.Equal(t, 1200.0, cfg.Window.Width)
		assert.Equal(t, -500.0, cfg.Window.Level)
		assert.Equal(t, "/data/raw/cncb", cfg.Sources["cncb"].Root)
		assert.Equal(t, "/data/meta/cncb-labels.csv", cfg.Sources["cncb"].Metadata["labels"])
	})

	t.Run("defaults", func(t *testing.T) {
		assert.Equal(t, 512, cfg.TargetSize)
		assert.Equal(t, "manifest.txt", cfg.ManifestName)
		assert.Equal(t, "127.0.0.1:8080", cfg.ServerAddr())
	})

	t.Run("parsed version", func(t *testing.T) {
		v, err := cfg.ParsedVersion()
		require.NoError(t, err)
		assert.Equal(t, models.Version{Major: 3, Variant: models.VariantB}, v)
	})

	t.Run("source enablement", func(t *testing.T) {
		assert.True(t, cfg.SourceEnabled("cncb"))
		assert.False(t, cfg.SourceEnabled("mosmed"), "explicitly disabled")
		assert.False(t, cfg.SourceEnabled("tcia"), "not configured at all")
	})

	t.Run("manifest path lives in the output dir", func(t *testing.T) {
		assert.Equal(t, filepath.Join("/data/out", "manifest.txt"), cfg.ManifestPath())
	})
}

func TestLoadDefaultWindow(t *testing.T) {
	cfg, err := Load(writeConfig(t, "output_dir: /data/out\nversion: 1A\n"))
	require.NoError(t, err)
	assert.Equal(t, 1500.0, cfg.Window.Width)
	assert.Equal(t, -600.0, cfg.Window.Level)
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing output_dir", "version: 3A\n"},
		{"missing version", "output_dir: /data/out\n"},
		{"bad version tag", "output_dir: /data/out\nversion: 3X\n"},
		{"bad target size", "output_dir: /data/out\nversion: 3A\ntarget_size: -4\n"},
		{"not yaml", "{{{\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := &Config{
		OutputDir:   filepath.Join(base, "out"),
		CatalogPath: filepath.Join(base, "catalog", "runs.duckdb"),
	}
	require.NoError(t, cfg.EnsureDirectories())

	for _, dir := range []string{cfg.OutputDir, filepath.Dir(cfg.CatalogPath)} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
