package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cardset.yaml")
	content := `input: listings.json
images: ./images
output: ./dataset
parquet: true
exclude:
  - "111"
  - "222"
log_level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Input != "listings.json" || cfg.ImagesDir != "./images" || cfg.OutputDir != "./dataset" {
		t.Errorf("Unexpected paths: %+v", cfg)
	}
	if !cfg.Parquet || cfg.Incremental {
		t.Errorf("Unexpected flags: parquet=%v incremental=%v", cfg.Parquet, cfg.Incremental)
	}
	if !reflect.DeepEqual(cfg.Exclude, []string{"111", "222"}) {
		t.Errorf("Unexpected exclude list: %v", cfg.Exclude)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "auto" {
		t.Errorf("Expected file level and default format, got %s/%s", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoadMissingDefaultIsFine(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Expected defaults when cardset.yaml is absent, got %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level, got %s", cfg.LogLevel)
	}
}

func TestLoadMissingExplicitFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing explicit config, got nil")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("exclude: [unclosed"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected parse error, got nil")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"CARDSET_OUTPUT":      "/data/out",
		"CARDSET_INCREMENTAL": "true",
		"CARDSET_EXCLUDE":     "1, 2,,3",
		"CARDSET_LOG_FORMAT":  "json",
		"CARDSET_INPUT":       "  ",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := Default()
	cfg.Input = "from-file.json"
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}

	if cfg.OutputDir != "/data/out" || !cfg.Incremental || cfg.LogFormat != "json" {
		t.Errorf("Env overrides not applied: %+v", cfg)
	}
	if cfg.Input != "from-file.json" {
		t.Errorf("Expected blank env value to be ignored, got %q", cfg.Input)
	}
	if !reflect.DeepEqual(cfg.Exclude, []string{"1", "2", "3"}) {
		t.Errorf("Unexpected exclude list: %v", cfg.Exclude)
	}
}

func TestApplyEnvBadBool(t *testing.T) {
	lookup := func(key string) (string, bool) {
		if key == "CARDSET_PARQUET" {
			return "maybe", true
		}
		return "", false
	}
	if err := Default().ApplyEnv(lookup); err == nil {
		t.Error("Expected error for invalid boolean, got nil")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Input = "cards.json"
		cfg.ImagesDir = "images"
		cfg.OutputDir = "out"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing input", func(c *Config) { c.Input = "" }, "input is required"},
		{"missing images", func(c *Config) { c.ImagesDir = " " }, "images directory is required"},
		{"missing output", func(c *Config) { c.OutputDir = "" }, "output directory is required"},
		{"output equals images", func(c *Config) { c.OutputDir = "./images/" }, "must differ"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "unsupported log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	if got := SplitList(" a ,b,, c "); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("Unexpected split: %v", got)
	}
	if got := SplitList(""); got != nil {
		t.Errorf("Expected nil for empty input, got %v", got)
	}
}
