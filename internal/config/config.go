package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultDatasetFile is relative to the base directory.
	DefaultDatasetFile = "data/aqi_5_years.csv"
	// DefaultModelFile is relative to the base directory.
	DefaultModelFile = "aqi_model.json.zst"
)

// Config holds trainer and dashboard configuration loaded from YAML and env.
type Config struct {
	BaseDir     string
	DatasetPath string
	ModelPath   string

	ServerPort     string
	RequestTimeout time.Duration

	RateLimitRPS   int
	RateLimitBurst int

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration

	OverloadWindow       time.Duration
	OverloadThresholdPct int
	DegradedWindow       time.Duration
	DegradedErrorPct     int

	// Timezone deciding which calendar day is "today" for forecasts.
	Location *time.Location
}

type fileConfig struct {
	Paths struct {
		BaseDir string `yaml:"base_dir"`
		Dataset string `yaml:"dataset"`
		Model   string `yaml:"model"`
	} `yaml:"paths"`

	Server struct {
		Port     string `yaml:"port"`
		Timezone string `yaml:"timezone"`
	} `yaml:"server"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		OverloadWindow       string `yaml:"overload_window"`
		OverloadThresholdPct int    `yaml:"overload_threshold_pct"`
		DegradedWindow       string `yaml:"degraded_window"`
		DegradedErrorPct     int    `yaml:"degraded_error_pct"`
	} `yaml:"lifecycle"`
}

// envOverrides are read with the AQI_ prefix, e.g. AQI_BASE_DIR, AQI_PORT.
type envOverrides struct {
	BaseDir  string `envconfig:"BASE_DIR"`
	Dataset  string `envconfig:"DATASET"`
	Model    string `envconfig:"MODEL"`
	Port     string `envconfig:"PORT"`
	Timezone string `envconfig:"TIMEZONE"`
}

// Load reads an optional .env, then config/{ENV_NAME}.yaml (default dev) if it
// exists, then AQI_* environment overrides. A missing YAML file means defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}

	var fc fileConfig
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	case os.IsNotExist(err):
		if os.Getenv("ENV_NAME") != "" {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var ov envOverrides
	if err := envconfig.Process("AQI", &ov); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	return build(fc, ov, cwd)
}

func build(fc fileConfig, ov envOverrides, cwd string) (*Config, error) {
	cfg := &Config{}

	// Relative paths default to the working directory, not the executable's:
	// go run builds into a temp dir that holds neither dataset nor model.
	cfg.BaseDir = firstNonEmpty(ov.BaseDir, fc.Paths.BaseDir, cwd)
	if !filepath.IsAbs(cfg.BaseDir) {
		cfg.BaseDir = filepath.Join(cwd, cfg.BaseDir)
	}
	cfg.DatasetPath = resolve(cfg.BaseDir, firstNonEmpty(ov.Dataset, fc.Paths.Dataset, DefaultDatasetFile))
	cfg.ModelPath = resolve(cfg.BaseDir, firstNonEmpty(ov.Model, fc.Paths.Model, DefaultModelFile))

	cfg.ServerPort = firstNonEmpty(ov.Port, fc.Server.Port, "8501")

	tz := firstNonEmpty(ov.Timezone, fc.Server.Timezone, "Local")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("server.timezone: %w", err)
	}
	cfg.Location = loc

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 10*time.Second)

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 20
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 40
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.OverloadWindow = parseDuration(fc.Lifecycle.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = fc.Lifecycle.OverloadThresholdPct
	if cfg.OverloadThresholdPct <= 0 {
		cfg.OverloadThresholdPct = 80
	}
	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Lifecycle.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 5
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, filepath.FromSlash(p))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
func validate(cfg *Config) error {
	if cfg.OverloadThresholdPct > 100 {
		return fmt.Errorf("lifecycle.overload_threshold_pct must be <= 100, got %d", cfg.OverloadThresholdPct)
	}
	if cfg.DegradedErrorPct > 100 {
		return fmt.Errorf("lifecycle.degraded_error_pct must be <= 100, got %d", cfg.DegradedErrorPct)
	}
	if cfg.RateLimitBurst < 1 {
		return fmt.Errorf("reliability.rate_limit_burst must be positive")
	}
	if cfg.DatasetPath == cfg.ModelPath {
		return fmt.Errorf("paths.dataset and paths.model must differ")
	}
	return nil
}
