// Package config loads the builder's YAML configuration: output
// location, normalization settings, dataset version and the per-source
// paths.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/covidct/builder/internal/models"
	"github.com/covidct/builder/internal/window"
)

// Config is the root configuration document.
type Config struct {
	// OutputDir is the shared sink every processor writes into.
	OutputDir string `yaml:"output_dir"`
	// TargetSize is the square output resolution in pixels.
	TargetSize int `yaml:"target_size"`
	// Window is the HU display window shared by all HU sources.
	Window window.Window `yaml:"window"`
	// Version is the dataset version tag, e.g. "3B".
	Version string `yaml:"version"`
	// SplitDir holds the externally supplied split files.
	SplitDir string `yaml:"split_dir"`
	// CatalogPath is the DuckDB manifest catalog location. Empty
	// disables catalog recording.
	CatalogPath string `yaml:"catalog_path"`
	// ManifestName is the manifest file written into OutputDir.
	ManifestName string `yaml:"manifest_name"`

	Server  ServerConfig            `yaml:"server"`
	Sources map[string]SourceConfig `yaml:"sources"`
}

// ServerConfig configures the review API server.
type ServerConfig struct {
	Port        int    `yaml:"port"`
	BindAddress string `yaml:"bind_address"`
	EnableCORS  bool   `yaml:"enable_cors"`
}

// SourceConfig locates one source's raw data and metadata files.
type SourceConfig struct {
	Root     string            `yaml:"root"`
	Metadata map[string]string `yaml:"metadata"`
	// Enabled defaults to true when omitted.
	Enabled *bool `yaml:"enabled"`
}

// Load reads and validates a configuration file, applying defaults for
// omitted fields.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{
		TargetSize:   512,
		Window:       window.DefaultLung,
		ManifestName: "manifest.txt",
		Server: ServerConfig{
			Port:        8080,
			BindAddress: "127.0.0.1",
		},
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("config: output_dir is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("config: version is required")
	}
	if _, err := cfg.ParsedVersion(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.TargetSize <= 0 {
		return nil, fmt.Errorf("config: target_size must be positive")
	}

	return cfg, nil
}

// ParsedVersion returns the structured dataset version.
func (c *Config) ParsedVersion() (models.Version, error) {
	return models.ParseVersion(c.Version)
}

// SourceEnabled reports whether a source is configured and not
// explicitly disabled.
func (c *Config) SourceEnabled(name string) bool {
	sc, ok := c.Sources[name]
	if !ok {
		return false
	}
	return sc.Enabled == nil || *sc.Enabled
}

// ServerAddr returns the listen address of the review server.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// EnsureDirectories creates the output and catalog directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.OutputDir}
	if c.CatalogPath != "" {
		dirs = append(dirs, filepath.Dir(c.CatalogPath))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}

// ManifestPath returns the manifest file location inside the output
// directory.
func (c *Config) ManifestPath() string {
	return filepath.Join(c.OutputDir, c.ManifestName)
}
