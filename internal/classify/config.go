package classify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ankinstructor/ank-admin-api/internal/logger"
)

// Config centralizes every heuristic threshold as a named field. Historical
// revisions of the classifier disagreed on several of these values; the
// defaults below are the canonical picks and any deployment-specific override
// goes through a YAML file, never an edit to call sites.
type Config struct {
	// MinNonEmptyLines is the floor below which textual sniffers do not run.
	// Structural formats (JSON, CSV) are exempt: a two-row CSV export is
	// legitimately short.
	MinNonEmptyLines int `yaml:"min_nonempty_lines"`

	QAMarkerMin      int `yaml:"qa_marker_min"`
	QuoteMarkerMin   int `yaml:"quote_marker_min"`
	SpeakerMarkerMin int `yaml:"speaker_marker_min"`
	GenericMinLines  int `yaml:"generic_min_lines"`

	// MarkerScanLines bounds how many non-empty lines the marker counters
	// look at; CSVScanLines bounds the CSV header probe.
	MarkerScanLines int `yaml:"marker_scan_lines"`
	CSVScanLines    int `yaml:"csv_scan_lines"`

	MinSampleBytes     int64 `yaml:"min_sample_bytes"`
	MaxSampleBytes     int64 `yaml:"max_sample_bytes"`
	DefaultSampleBytes int64 `yaml:"default_sample_bytes"`
}

func DefaultConfig() Config {
	return Config{
		MinNonEmptyLines:   10,
		QAMarkerMin:        6,
		QuoteMarkerMin:     6,
		SpeakerMarkerMin:   10,
		GenericMinLines:    30,
		MarkerScanLines:    2000,
		CSVScanLines:       200,
		MinSampleBytes:     10_000,
		MaxSampleBytes:     2_000_000,
		DefaultSampleBytes: 2_000_000,
	}
}

// LoadConfig returns the defaults, layered with overrides from the YAML file
// at path when one is given. Unset fields in the file keep their defaults.
func LoadConfig(path string, log *logger.Logger) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read classify config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("invalid classify config %q: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("classify config %q: %w", path, err)
	}
	if log != nil {
		log.Info("classifier thresholds overridden from file", "path", path)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.MinNonEmptyLines < 1 {
		return fmt.Errorf("min_nonempty_lines must be >= 1")
	}
	if c.QAMarkerMin < 1 || c.QuoteMarkerMin < 1 || c.SpeakerMarkerMin < 1 {
		return fmt.Errorf("marker thresholds must be >= 1")
	}
	if c.GenericMinLines < c.MinNonEmptyLines {
		return fmt.Errorf("generic_min_lines must be >= min_nonempty_lines")
	}
	if c.MarkerScanLines < 1 || c.CSVScanLines < 2 {
		return fmt.Errorf("scan windows too small")
	}
	if c.MinSampleBytes < 1 || c.MaxSampleBytes < c.MinSampleBytes {
		return fmt.Errorf("sample byte bounds inverted")
	}
	if c.DefaultSampleBytes < c.MinSampleBytes || c.DefaultSampleBytes > c.MaxSampleBytes {
		return fmt.Errorf("default_sample_bytes outside [min,max]")
	}
	return nil
}

// ClampSampleBytes maps a caller-supplied byte budget into the allowed range.
// Zero or negative means "use the default".
func (c Config) ClampSampleBytes(n int64) int64 {
	if n <= 0 {
		return c.DefaultSampleBytes
	}
	if n < c.MinSampleBytes {
		return c.MinSampleBytes
	}
	if n > c.MaxSampleBytes {
		return c.MaxSampleBytes
	}
	return n
}
