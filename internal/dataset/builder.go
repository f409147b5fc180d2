package dataset

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/covidct/builder/internal/catalog"
	"github.com/covidct/builder/internal/config"
	"github.com/covidct/builder/internal/models"
	"github.com/covidct/builder/internal/source"
)

// Builder runs every configured source processor once, in registry
// order, and concatenates the results into the global manifest. Any
// processor error aborts the build; per-case problems are handled
// inside the processors.
type Builder struct {
	cfg      *config.Config
	registry *source.Registry
	log      *zap.Logger
	observer Observer
	catalog  *catalog.Catalog
}

// Result is the outcome of a completed build.
type Result struct {
	RunID    string
	Version  models.Version
	Manifest *models.Manifest
	Counts   map[models.ClassLabel]int
}

// New creates a builder. The catalog may be nil, in which case the run
// is not recorded.
func New(cfg *config.Config, registry *source.Registry, log *zap.Logger, observer Observer, cat *catalog.Catalog) *Builder {
	if observer == nil {
		observer = NopObserver{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{
		cfg:      cfg,
		registry: registry,
		log:      log,
		observer: observer,
		catalog:  cat,
	}
}

// Run executes the full dataset construction.
func (b *Builder) Run() (*Result, error) {
	version, err := b.cfg.ParsedVersion()
	if err != nil {
		return nil, err
	}

	processors := b.registry.ForVersion(version)
	manifest := models.NewManifest()
	runID := uuid.New().String()

	for i, p := range processors {
		name := p.Name()
		if !b.cfg.SourceEnabled(name) {
			b.log.Info("source not configured, skipping", zap.String("source", name))
			continue
		}
		sc := b.cfg.Sources[name]

		b.observer.ProcessorStarted(name, i, len(processors))
		entries, err := p.Process(source.Config{
			Root:       sc.Root,
			Metadata:   sc.Metadata,
			OutDir:     b.cfg.OutputDir,
			TargetSize: b.cfg.TargetSize,
			Window:     b.cfg.Window,
			Logger:     b.log,
			Progress: func(done, total int) {
				b.observer.ProcessorProgress(name, done, total)
			},
		})
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", name, err)
		}

		manifest.Append(entries...)
		b.observer.ProcessorFinished(name, len(entries))
	}

	counts := manifest.CountByClass()

	if err := manifest.WriteFile(b.cfg.ManifestPath()); err != nil {
		return nil, err
	}

	if b.catalog != nil {
		if err := b.catalog.RecordRun(runID, version.Tag(), manifest.Entries); err != nil {
			return nil, fmt.Errorf("recording run %s: %w", runID, err)
		}
	}

	b.observer.BuildFinished(manifest.Len(), counts)
	return &Result{
		RunID:    runID,
		Version:  version,
		Manifest: manifest,
		Counts:   counts,
	}, nil
}
