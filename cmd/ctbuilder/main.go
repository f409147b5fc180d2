// ctbuilder assembles a labeled CT-scan image dataset from the public
// sources configured in builder.yaml, verifies it against split files
// and serves the resulting manifest for review.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/covidct/builder/internal/api"
	"github.com/covidct/builder/internal/catalog"
	"github.com/covidct/builder/internal/config"
	"github.com/covidct/builder/internal/dataset"
	"github.com/covidct/builder/internal/models"
	"github.com/covidct/builder/internal/source"
	"github.com/covidct/builder/internal/split"
)

// Version info (set during build)
var (
	Version = "dev"
)

var (
	configPath string
	verbose    bool
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ctbuilder",
	Short: "CT dataset builder",
	Long: `ctbuilder assembles a labeled CT-scan image dataset from multiple
public sources. Each source processor extracts 2D slices from the raw
scans, applies a shared HU window, writes normalized PNGs into the
output directory and contributes (filename, class) pairs to the global
manifest. The verify command cross-checks the output against the
train/val/test split files.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run every configured source processor and assemble the dataset",
	RunE:  runBuild,
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the output directory against the split files",
	RunE:  runVerify,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print per-class and per-source counts of the latest build",
	RunE:  runStats,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the manifest review API",
	RunE:  runServe,
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.CatalogPath == "" {
		return nil, nil
	}
	return catalog.Open(cfg.CatalogPath)
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cat, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	if cat != nil {
		defer cat.Close()
	}

	builder := dataset.New(cfg, source.NewRegistry(), logger,
		&dataset.LogObserver{Log: logger, ProgressEvery: 50}, cat)
	result, err := builder.Run()
	if err != nil {
		return err
	}

	fmt.Printf("Dataset %s constructed: %d images\n", result.Version.Tag(), result.Manifest.Len())
	for _, c := range models.ClassLabels {
		fmt.Printf("  %-10s %d\n", c.String()+":", result.Counts[c])
	}
	fmt.Printf("Manifest: %s\n", cfg.ManifestPath())
	if cat != nil {
		fmt.Printf("Run ID:   %s\n", result.RunID)
	}
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	version, err := cfg.ParsedVersion()
	if err != nil {
		return err
	}

	files, err := split.Discover(cfg.SplitDir, version)
	if err != nil {
		return err
	}
	for _, f := range files {
		note := ""
		if f.FromBase {
			note = " (substituted from base variant)"
		}
		logger.Info("using split file",
			zap.String("partition", string(f.Partition)),
			zap.String("path", f.Path+note))
	}

	report, err := split.Verify(cfg.OutputDir, files, logger)
	if err != nil {
		return err
	}

	for _, p := range models.Partitions {
		if tally, ok := report.PerPartition[p]; ok {
			fmt.Printf("  %-6s %d/%d\n", p, tally.Found, tally.Total)
		}
	}
	fmt.Println(report.Summary())
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.CatalogPath == "" {
		return fmt.Errorf("stats requires catalog_path in the config")
	}

	cat, err := catalog.Open(cfg.CatalogPath)
	if err != nil {
		return err
	}
	defer cat.Close()

	run, err := cat.LatestRun()
	if err != nil {
		return err
	}
	byClass, err := cat.CountsByClass(run.ID)
	if err != nil {
		return err
	}
	bySource, err := cat.CountsBySource(run.ID)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s (version %s, %s): %d images\n",
		run.ID, run.Version, run.CreatedAt.Format("2006-01-02 15:04:05"), run.EntryCount)
	for _, c := range models.ClassLabels {
		fmt.Printf("  %-10s %d\n", c.String()+":", byClass[c])
	}
	fmt.Println("By source:")
	for src, n := range bySource {
		fmt.Printf("  %-12s %d\n", src+":", n)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.CatalogPath == "" {
		return fmt.Errorf("serve requires catalog_path in the config")
	}

	cat, err := catalog.Open(cfg.CatalogPath)
	if err != nil {
		return err
	}
	defer cat.Close()

	h := api.NewHandler(cat, cfg, logger, Version)
	logger.Info("review server listening", zap.String("addr", cfg.ServerAddr()))
	return api.Serve(cfg, h)
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "builder.yaml", "path to the builder configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(buildCmd, verifyCmd, statsCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
