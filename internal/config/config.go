package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given. A missing default
// file is not an error.
const DefaultPath = "cardset.yaml"

// EnvPrefix namespaces the environment overrides, e.g. CARDSET_OUTPUT
const EnvPrefix = "CARDSET_"

// Config holds the settings of an export run
type Config struct {
	Input       string   `yaml:"input"`
	ImagesDir   string   `yaml:"images"`
	OutputDir   string   `yaml:"output"`
	Parquet     bool     `yaml:"parquet"`
	Incremental bool     `yaml:"incremental"`
	Exclude     []string `yaml:"exclude"`
	RunLog      string   `yaml:"run_log"`
	LogLevel    string   `yaml:"log_level"`
	LogFormat   string   `yaml:"log_format"`
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "auto",
	}
}

// Load reads the YAML file at path on top of the defaults. When path is
// empty the default file is tried and silently skipped if absent.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overlays CARDSET_* variables using lookup, normally os.LookupEnv
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
		}
		*dst = b
		return nil
	}

	str("INPUT", &c.Input)
	str("IMAGES", &c.ImagesDir)
	str("OUTPUT", &c.OutputDir)
	str("RUN_LOG", &c.RunLog)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)

	if err := boolean("PARQUET", &c.Parquet); err != nil {
		return err
	}
	if err := boolean("INCREMENTAL", &c.Incremental); err != nil {
		return err
	}

	if v, ok := lookup(EnvPrefix + "EXCLUDE"); ok {
		c.Exclude = SplitList(v)
	}
	return nil
}

// SplitList splits a comma separated list, dropping blanks
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks that an export can run with these settings
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Input) == "" {
		return errors.New("input is required (--input or CARDSET_INPUT)")
	}
	if strings.TrimSpace(c.ImagesDir) == "" {
		return errors.New("images directory is required (--images or CARDSET_IMAGES)")
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return errors.New("output directory is required (--output or CARDSET_OUTPUT)")
	}
	if samePath(c.ImagesDir, c.OutputDir) {
		return fmt.Errorf("output directory must differ from images directory: %s", c.OutputDir)
	}

	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "", "auto", "text", "json":
	default:
		return fmt.Errorf("unsupported log format %q (want auto, text or json)", c.LogFormat)
	}
	return nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
