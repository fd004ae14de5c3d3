package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
provider:
  api_key: test-key
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Throttle.RequestsPerMinute != 60 {
		t.Errorf("requests_per_minute %d, want default 60", cfg.Throttle.RequestsPerMinute)
	}
	if cfg.Cache.TTL != 24*time.Hour {
		t.Errorf("cache ttl %v, want default 24h", cfg.Cache.TTL)
	}
	if cfg.Duplicate.SimilarityThreshold != 0.8 {
		t.Errorf("similarity_threshold %v, want default 0.8", cfg.Duplicate.SimilarityThreshold)
	}
	if cfg.Duplicate.PivotLanguage != "en" {
		t.Errorf("pivot_language %q, want default en", cfg.Duplicate.PivotLanguage)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000

provider:
  provider: anthropic
  api_key: test-key

throttle:
  requests_per_minute: 5
  burst_limit: 2

duplicate_detection:
  similarity_threshold: 0.9
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("port %d, want 9000", cfg.Server.Port)
	}
	if cfg.Provider.Provider != "anthropic" {
		t.Errorf("provider %q, want anthropic", cfg.Provider.Provider)
	}
	if cfg.Throttle.RequestsPerMinute != 5 || cfg.Throttle.BurstLimit != 2 {
		t.Errorf("throttle %+v, want rpm=5 burst=2", cfg.Throttle)
	}
	if cfg.Duplicate.SimilarityThreshold != 0.9 {
		t.Errorf("similarity_threshold %v, want 0.9", cfg.Duplicate.SimilarityThreshold)
	}
	// Untouched sections keep their defaults.
	if cfg.Throttle.RequestsPerHour != 1000 {
		t.Errorf("requests_per_hour %d, want default 1000", cfg.Throttle.RequestsPerHour)
	}
}

func TestEnvVarInterpolation(t *testing.T) {
	t.Setenv("TRUSTLENS_TEST_KEY", "secret-from-env")

	path := writeConfig(t, `
provider:
  api_key: ${TRUSTLENS_TEST_KEY}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider.APIKey != "secret-from-env" {
		t.Errorf("api_key %q, want secret-from-env", cfg.Provider.APIKey)
	}
}

func TestUnsetEnvVarKeptVerbatim(t *testing.T) {
	got := interpolateEnvVars("key: ${TRUSTLENS_DEFINITELY_UNSET_VAR}")
	if got != "key: ${TRUSTLENS_DEFINITELY_UNSET_VAR}" {
		t.Errorf("unset variable rewritten to %q", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "-generate-config") {
		t.Errorf("error should point at -generate-config: %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Provider.APIKey = "test-key"
		return cfg
	}

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "default is valid", mutate: func(*Config) {}},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid port",
		},
		{
			name:    "unknown store driver",
			mutate:  func(c *Config) { c.Store.Driver = "etcd" },
			wantErr: "unsupported store driver",
		},
		{
			name:    "redis without address",
			mutate:  func(c *Config) { c.Store.Driver = "redis" },
			wantErr: "redis_addr is required",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Provider.Provider = "gemini" },
			wantErr: "unsupported analysis provider",
		},
		{
			name:    "missing api key",
			mutate:  func(c *Config) { c.Provider.APIKey = "" },
			wantErr: "API key is required",
		},
		{
			name:    "zero throttle rate",
			mutate:  func(c *Config) { c.Throttle.RequestsPerMinute = 0 },
			wantErr: "requests_per_minute must be positive",
		},
		{
			name:    "threshold out of range",
			mutate:  func(c *Config) { c.Duplicate.SimilarityThreshold = 1.5 },
			wantErr: "similarity_threshold",
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			cfg := valid()
			c.mutate(cfg)
			err := cfg.Validate()
			if c.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), c.wantErr) {
				t.Fatalf("error %v, want containing %q", err, c.wantErr)
			}
		})
	}
}

func TestGenerateSampleRoundTrips(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sample-key")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := GenerateSample(path); err != nil {
		t.Fatalf("GenerateSample failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("generated sample does not load: %v", err)
	}
	if cfg.Provider.APIKey != "sample-key" {
		t.Errorf("api_key %q, want sample-key", cfg.Provider.APIKey)
	}
}
