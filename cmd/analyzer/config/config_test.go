package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		RunID:               "run-1",
		MeterPath:           "power.ndjson",
		EstimatorPath:       "estimates.json",
		Precedence:          "estimate-first",
		WattsPerCore:        1.0,
		MaxRejectedFraction: 0.2,
		Storage:             "memory",
		Serve:               true,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing run ID", func(c *Config) { c.RunID = "" }, true},
		{"run ID with slash", func(c *Config) { c.RunID = "a/b" }, true},
		{"missing meter path", func(c *Config) { c.MeterPath = "" }, true},
		{"missing estimator path", func(c *Config) { c.EstimatorPath = "" }, true},
		{
			"resource-only without resource path",
			func(c *Config) { c.Precedence = "resource-only"; c.EstimatorPath = "" },
			true,
		},
		{
			"resource-only with resource path",
			func(c *Config) { c.Precedence = "resource-only"; c.EstimatorPath = ""; c.ResourcePath = "cpu.json" },
			false,
		},
		{"unknown precedence", func(c *Config) { c.Precedence = "meter-first" }, true},
		{"zero watts per core", func(c *Config) { c.WattsPerCore = 0 }, true},
		{"rejected fraction of one", func(c *Config) { c.MaxRejectedFraction = 1 }, true},
		{"negative workers", func(c *Config) { c.Workers = -1 }, true},
		{"unknown storage", func(c *Config) { c.Storage = "postgres" }, true},
		{"no serve and no output", func(c *Config) { c.Serve = false }, true},
		{"no serve with output", func(c *Config) { c.Serve = false; c.OutputFile = "-" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_DefaultsRunTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.RunTimeout = 0
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.RunTimeout != 2*time.Minute {
		t.Errorf("run timeout = %v, want 2m default", cfg.RunTimeout)
	}
}

func TestApplyManifest(t *testing.T) {
	manifest := `
run: checkout-load
sources:
  meter:
    path: captures/power.ndjson
    timestampFormat: unix
    skewTolerance: 4s
  estimator:
    path: captures/estimates.json
  resource:
    path: captures/cpu.json
    serviceLabel: container
alignment:
  resolution: 5s
  precedence: resource-first
  wattsPerCore: 3.5
integration:
  maxGap: 20s
  workers: 4
ingest:
  maxRejectedFraction: 0.1
`
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte(manifest), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := validConfig()
	cfg.ManifestFile = path
	cfg.RunID = "from-flags" // manifest wins

	if err := ApplyManifest(cfg); err != nil {
		t.Fatalf("ApplyManifest: %v", err)
	}

	if cfg.RunID != "checkout-load" {
		t.Errorf("run ID = %q", cfg.RunID)
	}
	if cfg.MeterPath != "captures/power.ndjson" || cfg.MeterTimestampFormat != "unix" || cfg.MeterSkew != 4*time.Second {
		t.Errorf("meter source not merged: %+v", cfg)
	}
	if cfg.ResourceServiceLabel != "container" {
		t.Errorf("service label = %q", cfg.ResourceServiceLabel)
	}
	if cfg.Resolution != 5*time.Second || cfg.Precedence != "resource-first" || cfg.WattsPerCore != 3.5 {
		t.Errorf("alignment not merged: %+v", cfg)
	}
	if cfg.MaxGap != 20*time.Second || cfg.Workers != 4 || cfg.MaxRejectedFraction != 0.1 {
		t.Errorf("integration/ingest not merged: %+v", cfg)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("merged config should validate: %v", err)
	}
}

func TestApplyManifest_EmptyFileOverridesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := validConfig()
	cfg.ManifestFile = path
	if err := ApplyManifest(cfg); err != nil {
		t.Fatalf("ApplyManifest: %v", err)
	}
	if cfg.RunID != "run-1" || cfg.MeterPath != "power.ndjson" {
		t.Errorf("empty manifest should not override: %+v", cfg)
	}
}

func TestApplyManifest_Errors(t *testing.T) {
	cfg := validConfig()
	cfg.ManifestFile = filepath.Join(t.TempDir(), "missing.yaml")
	if err := ApplyManifest(cfg); err == nil {
		t.Error("expected error for missing manifest")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(bad, []byte("run: [unterminated"), 0o600)
	cfg = validConfig()
	cfg.ManifestFile = bad
	if err := ApplyManifest(cfg); err == nil {
		t.Error("expected error for malformed manifest")
	}
}

func TestGetEnvHelpers(t *testing.T) {
	os.Setenv("GM_TEST_STR", "hello")
	os.Setenv("GM_TEST_INT", "42")
	os.Setenv("GM_TEST_FLOAT", "2.5")
	os.Setenv("GM_TEST_DUR", "90s")
	os.Setenv("GM_TEST_BOOL", "true")
	defer func() {
		for _, k := range []string{"GM_TEST_STR", "GM_TEST_INT", "GM_TEST_FLOAT", "GM_TEST_DUR", "GM_TEST_BOOL"} {
			os.Unsetenv(k)
		}
	}()

	if got := getEnv("GM_TEST_STR", "d"); got != "hello" {
		t.Errorf("getEnv = %q", got)
	}
	if got := getEnv("GM_TEST_UNSET", "d"); got != "d" {
		t.Errorf("getEnv default = %q", got)
	}
	if got := getEnvInt("GM_TEST_INT", 1); got != 42 {
		t.Errorf("getEnvInt = %d", got)
	}
	if got := getEnvInt("GM_TEST_STR", 1); got != 1 {
		t.Errorf("getEnvInt on non-int = %d", got)
	}
	if got := getEnvFloat("GM_TEST_FLOAT", 1); got != 2.5 {
		t.Errorf("getEnvFloat = %v", got)
	}
	if got := getEnvDuration("GM_TEST_DUR", time.Second); got != 90*time.Second {
		t.Errorf("getEnvDuration = %v", got)
	}
	if got := getEnvBool("GM_TEST_BOOL", false); !got {
		t.Error("getEnvBool = false")
	}
}
