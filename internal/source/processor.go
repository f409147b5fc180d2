// Package source holds one processor per public CT source. Every
// processor consumes its source's raw directory plus metadata files,
// writes normalized slice images into the shared output directory and
// returns the ordered (filename, class) pairs it produced.
package source

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/covidct/builder/internal/models"
	"github.com/covidct/builder/internal/window"
)

// ErrMetadataMissing marks a processor that cannot run because a
// required metadata file is absent. Unlike per-case input errors this
// is fatal for the whole processor: without labels there is nothing to
// assign.
var ErrMetadataMissing = errors.New("required metadata file missing")

// ProgressCallback is called as cases complete so the driver can report
// progress on long-running sources.
type ProgressCallback func(casesDone, casesTotal int)

// Config carries everything a processor needs for one run.
type Config struct {
	// Root is the source's raw data directory.
	Root string
	// Metadata maps well-known metadata names (per processor) to paths.
	Metadata map[string]string
	// OutDir is the shared output directory all processors write into.
	OutDir string
	// TargetSize is the square output resolution in pixels.
	TargetSize int
	// Window is the shared HU display window.
	Window window.Window

	Logger   *zap.Logger
	Progress ProgressCallback
}

// MetadataPath resolves a named metadata file, failing with
// ErrMetadataMissing when it is not configured or not on disk.
func (c Config) MetadataPath(name string) (string, error) {
	path, ok := c.Metadata[name]
	if !ok || path == "" {
		return "", fmt.Errorf("%w: %s not configured", ErrMetadataMissing, name)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s (%s)", ErrMetadataMissing, name, path)
	}
	return path, nil
}

// OptionalMetadataPath resolves a metadata file that a processor can
// run without (exclusion lists, overrides). Returns false when the file
// is not configured or not on disk.
func (c Config) OptionalMetadataPath(name string) (string, bool) {
	path, ok := c.Metadata[name]
	if !ok || path == "" {
		return "", false
	}
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// Log returns the configured logger, or a no-op logger.
func (c Config) Log() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c Config) reportProgress(done, total int) {
	if c.Progress != nil {
		c.Progress(done, total)
	}
}

// Processor is the per-source ETL contract.
type Processor interface {
	// Name returns the unique source tag, also embedded in filenames.
	Name() string
	// Process runs the full extract/transform/load pass for the source
	// and returns its manifest entries in production order.
	Process(cfg Config) ([]models.ManifestEntry, error)
}
