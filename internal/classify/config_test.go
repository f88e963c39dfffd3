package classify

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClampSampleBytes(t *testing.T) {
	cfg := DefaultConfig()

	cases := []struct {
		name string
		in   int64
		want int64
	}{
		{"zero uses default", 0, cfg.DefaultSampleBytes},
		{"negative uses default", -5, cfg.DefaultSampleBytes},
		{"below floor clamps up", 100, cfg.MinSampleBytes},
		{"above ceiling clamps down", 50_000_000, cfg.MaxSampleBytes},
		{"in range passes through", 500_000, 500_000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cfg.ClampSampleBytes(tc.in); got != tc.want {
				t.Fatalf("ClampSampleBytes(%d) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestLoadConfigOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "classify.yaml")
	yaml := "min_nonempty_lines: 5\nspeaker_marker_min: 2\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := LoadConfig(path, nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.MinNonEmptyLines != 5 {
		t.Fatalf("override not applied: MinNonEmptyLines=%d", cfg.MinNonEmptyLines)
	}
	if cfg.SpeakerMarkerMin != 2 {
		t.Fatalf("override not applied: SpeakerMarkerMin=%d", cfg.SpeakerMarkerMin)
	}
	// Untouched fields keep their defaults.
	if cfg.QAMarkerMin != DefaultConfig().QAMarkerMin {
		t.Fatalf("unrelated default lost: QAMarkerMin=%d", cfg.QAMarkerMin)
	}
}

func TestLoadConfigMissingPathIsDefault(t *testing.T) {
	cfg, err := LoadConfig("", nil)
	if err != nil {
		t.Fatalf("LoadConfig(\"\"): %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("empty path must yield defaults, got %+v", cfg)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "classify.yaml")
	if err := os.WriteFile(path, []byte("min_nonempty_lines: 0\n"), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	if _, err := LoadConfig(path, nil); err == nil {
		t.Fatalf("expected validation error for zero floor")
	}
}
