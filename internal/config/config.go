// Package config holds the analyzer configuration: the indicator thresholds,
// resource limits and scan options, loadable from flags and PDFRECON_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultMaxFileSize   = 1000 * 1024 * 1024 // 1000MB
	DefaultMaxStreamSize = 64 * 1024 * 1024   // 64MiB
	DefaultLogLevel      = "info"
)

// Config holds all tunables for the forensic analyzer. The numeric cutoffs
// are policy, not physics; every evaluator threshold is exposed here.
type Config struct {
	// Indicator thresholds
	TextPositioningThreshold int     `validate:"min=1"`
	DrawingOpsThreshold      int     `validate:"min=1"`
	OrphanObjectsThreshold   int     `validate:"min=0"`
	ObjectGapFraction        float64 `validate:"gt=0,lte=1"`
	FormFieldsThreshold      int     `validate:"min=1"`
	WhiteRectThreshold       int     `validate:"min=1"`
	WhiteColorThreshold      int     `validate:"min=1"`

	// Visual identity check
	VisualCheckPages int `validate:"min=1,max=100"`
	VisualCheckDPI   int `validate:"min=18,max=600"`

	// Resource limits
	MaxFileSize   int64 `validate:"min=1"`
	MaxStreamSize int64 `validate:"min=1"`

	// Revision extraction
	RevisionOutputDir string `validate:"required"`

	// Batch scanning
	MaxConcurrentScans int `validate:"min=1,max=64"`

	// Application
	LogLevel string `validate:"oneof=debug info warn error"`
}

// Default returns a configuration with the documented defaults.
func Default() *Config {
	return &Config{
		TextPositioningThreshold: 40,
		DrawingOpsThreshold:      50,
		OrphanObjectsThreshold:   10,
		ObjectGapFraction:        0.30,
		FormFieldsThreshold:      50,
		WhiteRectThreshold:       2,
		WhiteColorThreshold:      20,
		VisualCheckPages:         5,
		VisualCheckDPI:           72,
		MaxFileSize:              DefaultMaxFileSize,
		MaxStreamSize:            DefaultMaxStreamSize,
		RevisionOutputDir:        "Altered_files",
		MaxConcurrentScans:       defaultConcurrency(),
		LogLevel:                 DefaultLogLevel,
	}
}

func defaultConcurrency() int {
	n := runtime.NumCPU() * 2
	if n > 16 {
		n = 16
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// LoadFromFlags parses command line flags (with PDFRECON_* environment
// overrides) and returns a validated configuration plus the scan targets
// left as positional arguments.
func LoadFromFlags() (*Config, []string, error) {
	cfg := Default()

	viper.SetEnvPrefix("PDFRECON")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("text-positioning-threshold", cfg.TextPositioningThreshold)
	viper.SetDefault("drawing-ops-threshold", cfg.DrawingOpsThreshold)
	viper.SetDefault("orphan-objects-threshold", cfg.OrphanObjectsThreshold)
	viper.SetDefault("object-gap-fraction", cfg.ObjectGapFraction)
	viper.SetDefault("form-fields-threshold", cfg.FormFieldsThreshold)
	viper.SetDefault("white-rect-threshold", cfg.WhiteRectThreshold)
	viper.SetDefault("white-color-threshold", cfg.WhiteColorThreshold)
	viper.SetDefault("visual-check-pages", cfg.VisualCheckPages)
	viper.SetDefault("visual-check-dpi", cfg.VisualCheckDPI)
	viper.SetDefault("max-file-size", cfg.MaxFileSize)
	viper.SetDefault("max-stream-size", cfg.MaxStreamSize)
	viper.SetDefault("revision-output-dir", cfg.RevisionOutputDir)
	viper.SetDefault("concurrency", cfg.MaxConcurrentScans)
	viper.SetDefault("loglevel", cfg.LogLevel)

	pflag.Int("text-positioning-threshold", cfg.TextPositioningThreshold,
		"Text positioning operators per BT/ET block before flagging")
	pflag.Int("drawing-ops-threshold", cfg.DrawingOpsThreshold,
		"Drawing operators per page before flagging")
	pflag.Int("orphan-objects-threshold", cfg.OrphanObjectsThreshold,
		"Unreferenced objects tolerated before flagging")
	pflag.Float64("object-gap-fraction", cfg.ObjectGapFraction,
		"Fraction of missing object numbers before flagging")
	pflag.Int("form-fields-threshold", cfg.FormFieldsThreshold,
		"AcroForm fields tolerated before flagging")
	pflag.Int("white-rect-threshold", cfg.WhiteRectThreshold,
		"White-filled rectangles per page before flagging")
	pflag.Int("white-color-threshold", cfg.WhiteColorThreshold,
		"White color-setting operators per page before flagging")
	pflag.Int("visual-check-pages", cfg.VisualCheckPages,
		"Pages compared during the visual identity check")
	pflag.Int("visual-check-dpi", cfg.VisualCheckDPI,
		"Rendering DPI for the visual identity check")
	pflag.Int64("max-file-size", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	pflag.Int64("max-stream-size", cfg.MaxStreamSize, "Maximum decoded stream size in bytes")
	pflag.String("revision-output-dir", cfg.RevisionOutputDir,
		"Folder name for extracted revisions, relative to each input file")
	pflag.Int("concurrency", cfg.MaxConcurrentScans, "Maximum concurrent file scans")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")

	bindFlags()
	setupUsage()
	pflag.Parse()

	cfg.TextPositioningThreshold = viper.GetInt("text-positioning-threshold")
	cfg.DrawingOpsThreshold = viper.GetInt("drawing-ops-threshold")
	cfg.OrphanObjectsThreshold = viper.GetInt("orphan-objects-threshold")
	cfg.ObjectGapFraction = viper.GetFloat64("object-gap-fraction")
	cfg.FormFieldsThreshold = viper.GetInt("form-fields-threshold")
	cfg.WhiteRectThreshold = viper.GetInt("white-rect-threshold")
	cfg.WhiteColorThreshold = viper.GetInt("white-color-threshold")
	cfg.VisualCheckPages = viper.GetInt("visual-check-pages")
	cfg.VisualCheckDPI = viper.GetInt("visual-check-dpi")
	cfg.MaxFileSize = viper.GetInt64("max-file-size")
	cfg.MaxStreamSize = viper.GetInt64("max-stream-size")
	cfg.RevisionOutputDir = viper.GetString("revision-output-dir")
	cfg.MaxConcurrentScans = viper.GetInt("concurrency")
	cfg.LogLevel = viper.GetString("loglevel")

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	targets := pflag.Args()
	for i, t := range targets {
		if abs, err := filepath.Abs(t); err == nil {
			targets[i] = abs
		}
	}
	return cfg, targets, nil
}

func bindFlags() {
	for _, name := range []string{
		"text-positioning-threshold", "drawing-ops-threshold",
		"orphan-objects-threshold", "object-gap-fraction",
		"form-fields-threshold", "white-rect-threshold", "white-color-threshold",
		"visual-check-pages", "visual-check-dpi",
		"max-file-size", "max-stream-size",
		"revision-output-dir", "concurrency", "loglevel",
	} {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

func setupUsage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nPDFRecon - forensic analysis of PDF files\n\n")
		fmt.Fprintf(os.Stderr, "  %s [options] <file-or-directory>...\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables use the PDFRECON_ prefix, "+
			"e.g. PDFRECON_LOGLEVEL=debug\n")
	}
}

// IsDebug reports whether debug logging is enabled.
func (c *Config) IsDebug() bool { return c.LogLevel == "debug" }
