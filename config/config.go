// Package config holds the single explicit configuration passed to every stage of
// generation and sampling.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	json "github.com/KevinWang15/go-json5"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/bob-anderson-ok/kilonovagen/archive"
	kerrors "github.com/bob-anderson-ok/kilonovagen/internal/errors"
	"github.com/bob-anderson-ok/kilonovagen/lightcurve"
	"github.com/bob-anderson-ok/kilonovagen/params"
)

// Config is the complete run configuration.
type Config struct {
	Generation  Generation
	Simulation  lightcurve.Simulation
	Bands       []int                      // Indices into lightcurve.BandNames
	ObjectStore *archive.ObjectStoreConfig // nil when uploads are off
	Manifest    string                     // SQLite ledger path; empty disables it
	Sampling    Sampling
	LogLevel    string
}

// Generation configures the partitioned generation harness.
type Generation struct {
	Workers     int
	Input       string
	Dataset     string
	OutputBase  string
	Format      archive.Format
	FailFast    bool
	Timeout     time.Duration // Zero means no limit
	ReportEvery int           // Progress line every N rows of the reporting worker
}

// Sampling configures the conditional-sampling diagnostic.
type Sampling struct {
	Priors         string  // Whitespace separated m1 m2 l1 l2 rows
	Archive        string  // Partition artifact supplying the time axis and the reference trajectories
	Mode           string  // "mean" or "priors"
	Samples        int     // Draws per band in mean mode
	Neighbours     int     // Archived trajectories blended per draw
	RangeThreshold float64 // Samples with max-min at or above this are dropped
	Sigma          float64 // Width of the plotted band in standard deviations
	Seed           int64
	Plot           string // PNG output; empty disables plotting
}

const (
	SampleModeMean   = "mean"
	SampleModePriors = "priors"
)

// Default returns the configuration used when a parameter file omits a value.
func Default() Config {
	return Config{
		Generation: Generation{
			Workers:     16,
			Dataset:     params.DefaultDataset,
			OutputBase:  "lightcurves",
			Format:      archive.FormatJSONL,
			ReportEvery: 10,
		},
		Simulation: lightcurve.DefaultSimulation(),
		Bands:      append([]int(nil), lightcurve.DefaultBands...),
		Sampling: Sampling{
			Mode:           SampleModeMean,
			Samples:        1000,
			Neighbours:     4,
			RangeThreshold: 2e10,
			Sigma:          3,
			Seed:           1,
		},
		LogLevel: "info",
	}
}

// Load reads a json5 or yaml parameter file over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		table, err := readTable(path)
		if err != nil {
			return Config{}, err
		}
		if err := fill(table, &cfg); err != nil {
			return Config{}, kerrors.Wrapf(err, "in %s", path)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readTable(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, kerrors.WithCode(kerrors.CodeConfiguration, err, "reading parameter file")
	}

	var table map[string]interface{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &table)
	default:
		err = json.Unmarshal(data, &table)
	}
	if err != nil {
		return nil, kerrors.WithCode(kerrors.CodeConfiguration, err, "format error in "+path)
	}
	if table == nil {
		table = map[string]interface{}{}
	}
	return table, nil
}

// LoadDotEnv loads variables from the given .env files (default ".env") without overriding
// ones already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return kerrors.WithCode(kerrors.CodeConfiguration, err, "loading "+f)
		}
	}
	return nil
}

// ApplyEnv overrides file values with KNGEN_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("KNGEN_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return kerrors.Configuration("KNGEN_WORKERS: %q is not an integer", v)
		}
		c.Generation.Workers = n
	}
	c.Generation.Input = getEnvOrDefault("KNGEN_INPUT", c.Generation.Input)
	c.Generation.OutputBase = getEnvOrDefault("KNGEN_OUTPUT_BASE", c.Generation.OutputBase)
	c.Manifest = getEnvOrDefault("KNGEN_MANIFEST", c.Manifest)
	c.LogLevel = getEnvOrDefault("KNGEN_LOG_LEVEL", c.LogLevel)
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Validate checks the values that no stage can recover from.
func (c Config) Validate() error {
	g := c.Generation
	if g.Workers < 1 {
		return kerrors.Configuration("generation.workers must be positive, got %d", g.Workers)
	}
	if g.OutputBase == "" {
		return kerrors.Configuration("generation.output_base is empty")
	}
	if g.Timeout < 0 {
		return kerrors.Configuration("generation.timeout_seconds must not be negative")
	}
	if g.ReportEvery < 1 {
		return kerrors.Configuration("generation.report_every must be positive, got %d", g.ReportEvery)
	}
	if _, err := archive.ParseFormat(string(g.Format)); err != nil {
		return err
	}
	if err := c.Simulation.Validate(); err != nil {
		return err
	}
	if err := lightcurve.ValidateBands(c.Bands); err != nil {
		return err
	}
	if c.ObjectStore != nil {
		if err := c.ObjectStore.Validate(); err != nil {
			return err
		}
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return kerrors.Configuration("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}

	s := c.Sampling
	if s.Mode != SampleModeMean && s.Mode != SampleModePriors {
		return kerrors.Configuration("sampling.mode %q is not %q or %q", s.Mode, SampleModeMean, SampleModePriors)
	}
	if s.Samples < 1 {
		return kerrors.Configuration("sampling.samples must be positive, got %d", s.Samples)
	}
	if s.Neighbours < 1 {
		return kerrors.Configuration("sampling.neighbours must be positive, got %d", s.Neighbours)
	}
	if !(s.RangeThreshold > 0) {
		return kerrors.Configuration("sampling.range_threshold must be positive")
	}
	if !(s.Sigma > 0) {
		return kerrors.Configuration("sampling.sigma must be positive")
	}
	return nil
}
