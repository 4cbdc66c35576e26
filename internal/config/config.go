package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration parameters
type Config struct {
	BaseURL             string `json:"base_url" yaml:"base_url"`
	DataRoot            string `json:"data_root" yaml:"data_root"`
	ResultsDir          string `json:"results_dir" yaml:"results_dir"`
	DBPath              string `json:"db_path" yaml:"db_path"`
	MetricsPath         string `json:"metrics_path" yaml:"metrics_path"`
	ProjectName         string `json:"project_name" yaml:"project_name"`
	DatabasePrefix      string `json:"database_prefix" yaml:"database_prefix"`
	FixtureNodes        int    `json:"fixture_nodes" yaml:"fixture_nodes"`
	NavigationTimeoutMs int    `json:"navigation_timeout_ms" yaml:"navigation_timeout_ms"`
	ActionTimeoutMs     int    `json:"action_timeout_ms" yaml:"action_timeout_ms"`
	LandingTimeoutMs    int    `json:"landing_timeout_ms" yaml:"landing_timeout_ms"`
	ImportTimeoutMs     int    `json:"import_timeout_ms" yaml:"import_timeout_ms"`
	IterationTimeoutMs  int    `json:"iteration_timeout_ms" yaml:"iteration_timeout_ms"`
	Headless            *bool  `json:"headless" yaml:"headless"`
	ChromePath          string `json:"chrome_path" yaml:"chrome_path"`
	ViewportWidth       int    `json:"viewport_width" yaml:"viewport_width"`
	ViewportHeight      int    `json:"viewport_height" yaml:"viewport_height"`
	Preflight           *bool  `json:"preflight" yaml:"preflight"`
	LogLevel            string `json:"log_level" yaml:"log_level"`
}

// Default values
const (
	DefaultBaseURL        = "https://novagraph-test.up.railway.app/app"
	DefaultResultsDir     = "results"
	DefaultDBPath         = "import-bench.db"
	DefaultMetricsPath    = "import-bench-metrics.json"
	DefaultProjectName    = "chromium"
	DefaultDatabasePrefix = "benchmark"
	DefaultFixtureNodes   = 12
)

// DefaultDataRoot is data/import/csv under the working directory
func DefaultDataRoot() string {
	cwd, err := os.Getwd()
	if err != nil {
		return filepath.Join("data", "import", "csv")
	}
	return filepath.Join(cwd, "data", "import", "csv")
}

// Default returns a configuration with every default applied and environment
// overrides honored, without reading a config file
func Default() (*Config, error) {
	var cfg Config
	applyDefaults(&cfg)
	applyEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// LoadConfig reads and validates configuration from a JSON or YAML file.
// An empty path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path) // #nosec G304 - path is operator supplied
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	// Apply defaults for missing values
	applyDefaults(&cfg)

	// Environment wins over the file
	applyEnv(&cfg)

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadEnvFile loads KEY=value pairs from a .env file without overriding
// variables already present in the environment
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// NavigationTimeout bounds page load plus network idle
func (c *Config) NavigationTimeout() time.Duration {
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// ActionTimeout bounds each UI interaction such as the import dialog appearing
func (c *Config) ActionTimeout() time.Duration {
	return time.Duration(c.ActionTimeoutMs) * time.Millisecond
}

// LandingTimeout bounds the wait for the optional landing page CTA
func (c *Config) LandingTimeout() time.Duration {
	return time.Duration(c.LandingTimeoutMs) * time.Millisecond
}

// ImportTimeout bounds the wait for import completion
func (c *Config) ImportTimeout() time.Duration {
	return time.Duration(c.ImportTimeoutMs) * time.Millisecond
}

// IterationTimeout bounds one whole iteration
func (c *Config) IterationTimeout() time.Duration {
	return time.Duration(c.IterationTimeoutMs) * time.Millisecond
}

// IsHeadless reports whether Chromium runs without a window
func (c *Config) IsHeadless() bool {
	return c.Headless == nil || *c.Headless
}

// PreflightEnabled reports whether the target is probed before the run
func (c *Config) PreflightEnabled() bool {
	return c.Preflight == nil || *c.Preflight
}

// applyDefaults sets default values for unspecified fields
func applyDefaults(cfg *Config) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.DataRoot == "" {
		cfg.DataRoot = DefaultDataRoot()
	}
	if cfg.ResultsDir == "" {
		cfg.ResultsDir = DefaultResultsDir
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = DefaultMetricsPath
	}
	if cfg.ProjectName == "" {
		cfg.ProjectName = DefaultProjectName
	}
	if cfg.DatabasePrefix == "" {
		cfg.DatabasePrefix = DefaultDatabasePrefix
	}
	if cfg.FixtureNodes == 0 {
		cfg.FixtureNodes = DefaultFixtureNodes
	}
	if cfg.NavigationTimeoutMs == 0 {
		cfg.NavigationTimeoutMs = 30000
	}
	if cfg.ActionTimeoutMs == 0 {
		cfg.ActionTimeoutMs = 10000
	}
	if cfg.LandingTimeoutMs == 0 {
		cfg.LandingTimeoutMs = 5000
	}
	if cfg.ImportTimeoutMs == 0 {
		cfg.ImportTimeoutMs = 45000
	}
	if cfg.IterationTimeoutMs == 0 {
		cfg.IterationTimeoutMs = 120000
	}
	if cfg.ViewportWidth == 0 {
		cfg.ViewportWidth = 1280
	}
	if cfg.ViewportHeight == 0 {
		cfg.ViewportHeight = 720
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// applyEnv overrides fields from IMPORT_BENCH_* variables and CSV_DATA_ROOT
func applyEnv(cfg *Config) {
	cfg.BaseURL = getStringEnv("IMPORT_BENCH_BASE_URL", cfg.BaseURL)
	cfg.DataRoot = getStringEnv("CSV_DATA_ROOT", cfg.DataRoot)
	cfg.ResultsDir = getStringEnv("IMPORT_BENCH_RESULTS_DIR", cfg.ResultsDir)
	cfg.DBPath = getStringEnv("IMPORT_BENCH_DB_PATH", cfg.DBPath)
	cfg.MetricsPath = getStringEnv("IMPORT_BENCH_METRICS_PATH", cfg.MetricsPath)
	cfg.ChromePath = getStringEnv("IMPORT_BENCH_CHROME_PATH", cfg.ChromePath)
	cfg.LogLevel = getStringEnv("IMPORT_BENCH_LOG_LEVEL", cfg.LogLevel)
	cfg.FixtureNodes = getIntEnv("IMPORT_BENCH_FIXTURE_NODES", cfg.FixtureNodes)
	cfg.ImportTimeoutMs = getIntEnv("IMPORT_BENCH_IMPORT_TIMEOUT_MS", cfg.ImportTimeoutMs)

	if v := os.Getenv("IMPORT_BENCH_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Headless = &b
		}
	}
}

// Validate re-checks a configuration after command-line overrides
func (c *Config) Validate() error {
	if err := validate(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// validate checks that required fields are present and values are sensible
func validate(cfg *Config) error {
	var errs []string

	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		errs = append(errs, "base_url must be an http(s) URL")
	}
	if cfg.NavigationTimeoutMs < 1000 {
		errs = append(errs, "navigation_timeout_ms must be >= 1000")
	}
	if cfg.ActionTimeoutMs < 100 {
		errs = append(errs, "action_timeout_ms must be >= 100")
	}
	if cfg.LandingTimeoutMs < 0 {
		errs = append(errs, "landing_timeout_ms must be >= 0")
	}
	if cfg.ImportTimeoutMs < 1000 {
		errs = append(errs, "import_timeout_ms must be >= 1000")
	}
	if cfg.IterationTimeoutMs < cfg.ImportTimeoutMs {
		errs = append(errs, "iteration_timeout_ms must be >= import_timeout_ms")
	}
	if cfg.ViewportWidth < 1 || cfg.ViewportHeight < 1 {
		errs = append(errs, "viewport dimensions must be positive")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		errs = append(errs, "log_level must be one of: debug, info, warn, error")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// ValidationError represents configuration validation errors
type ValidationError struct {
	Errors []string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func getIntEnv(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}

func getStringEnv(key, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}
