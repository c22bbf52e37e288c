package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/printworks/sticker-layout/internal/solver"
)

const (
	defaultPort           = "8080"
	defaultLayoutCapacity = 48
	defaultMaxLayouts     = 5
	defaultTimeBudget     = 5 * time.Minute
	defaultMaxPrintRuns   = 100_000
	defaultRateLimitRPS   = 25.0
	defaultRateLimitBurst = 50
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	Port string

	// Solver settings. TimeBudget bounds every solve; WriteTimeout stays
	// disabled by default because a solve may legitimately run for the
	// whole budget before the response is written.
	LayoutCapacity   int64
	MaxLayouts       int
	TimeBudget       time.Duration
	SymmetryBreaking bool
	MaxPrintRuns     int64
	SolverWorkers    int32

	// InitialStickers seeds the demand store at startup.
	InitialStickers []solver.Sticker

	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Port                 string        `yaml:"port"`
	Solver               yamlSolver    `yaml:"solver"`
	Stickers             []yamlSticker `yaml:"stickers"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging bool          `yaml:"enable_request_logging"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
}

// yamlSolver represents the solver section in YAML.
type yamlSolver struct {
	LayoutCapacity   int64  `yaml:"layout_capacity"`
	MaxLayouts       int    `yaml:"max_layouts"`
	TimeBudget       string `yaml:"time_budget"`
	SymmetryBreaking *bool  `yaml:"symmetry_breaking"`
	MaxPrintRuns     int64  `yaml:"max_print_runs"`
	Workers          int32  `yaml:"workers"`
}

// yamlSticker represents one demand entry in YAML.
type yamlSticker struct {
	Name   string `yaml:"name"`
	Demand int64  `yaml:"demand"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	Port           *string
	LayoutCapacity *int64
	MaxLayouts     *int
	TimeBudget     *time.Duration
	StickersStr    *string
	RateLimitRPS   *float64
	RateLimitBurst *int
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		applyYAMLConfig(&cfg, yamlCfg)
	}

	applyEnvConfig(&cfg)

	if overrides != nil {
		if err := applyCLIOverrides(&cfg, overrides); err != nil {
			return Config{}, err
		}
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Port:                 defaultPort,
		LayoutCapacity:       defaultLayoutCapacity,
		MaxLayouts:           defaultMaxLayouts,
		TimeBudget:           defaultTimeBudget,
		SymmetryBreaking:     true,
		MaxPrintRuns:         defaultMaxPrintRuns,
		InitialStickers:      nil,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         0,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) {
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}

	if yamlCfg.Solver.LayoutCapacity > 0 {
		cfg.LayoutCapacity = yamlCfg.Solver.LayoutCapacity
	}
	if yamlCfg.Solver.MaxLayouts > 0 {
		cfg.MaxLayouts = yamlCfg.Solver.MaxLayouts
	}
	if yamlCfg.Solver.TimeBudget != "" {
		if d, err := time.ParseDuration(yamlCfg.Solver.TimeBudget); err == nil {
			cfg.TimeBudget = d
		}
	}
	if yamlCfg.Solver.SymmetryBreaking != nil {
		cfg.SymmetryBreaking = *yamlCfg.Solver.SymmetryBreaking
	}
	if yamlCfg.Solver.MaxPrintRuns > 0 {
		cfg.MaxPrintRuns = yamlCfg.Solver.MaxPrintRuns
	}
	if yamlCfg.Solver.Workers > 0 {
		cfg.SolverWorkers = yamlCfg.Solver.Workers
	}

	if len(yamlCfg.Stickers) > 0 {
		stickers := make([]solver.Sticker, 0, len(yamlCfg.Stickers))
		for _, st := range yamlCfg.Stickers {
			stickers = append(stickers, solver.Sticker{Name: st.Name, Demand: st.Demand})
		}
		cfg.InitialStickers = stickers
	}

	if yamlCfg.ShutdownGracePeriod != "" {
		if d, err := time.ParseDuration(yamlCfg.ShutdownGracePeriod); err == nil {
			cfg.ShutdownGracePeriod = d
		}
	}
	if yamlCfg.ReadHeaderTimeout != "" {
		if d, err := time.ParseDuration(yamlCfg.ReadHeaderTimeout); err == nil {
			cfg.ReadHeaderTimeout = d
		}
	}
	if yamlCfg.WriteTimeout != "" {
		if d, err := time.ParseDuration(yamlCfg.WriteTimeout); err == nil {
			cfg.WriteTimeout = d
		}
	}
	if yamlCfg.IdleTimeout != "" {
		if d, err := time.ParseDuration(yamlCfg.IdleTimeout); err == nil {
			cfg.IdleTimeout = d
		}
	}

	cfg.EnableRequestLogging = yamlCfg.EnableRequestLogging

	if yamlCfg.RateLimit.RPS >= 0 {
		cfg.RateLimitRPS = yamlCfg.RateLimit.RPS
	}
	if yamlCfg.RateLimit.Burst >= 0 {
		cfg.RateLimitBurst = yamlCfg.RateLimit.Burst
	}
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.Port = port
	}

	if raw := strings.TrimSpace(os.Getenv("LAYOUT_CAPACITY")); raw != "" {
		if value, err := strconv.ParseInt(raw, 10, 64); err == nil && value > 0 {
			cfg.LayoutCapacity = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("MAX_LAYOUTS")); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.MaxLayouts = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("TIME_BUDGET")); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.TimeBudget = d
		}
	}

	if raw := strings.TrimSpace(os.Getenv("STICKER_DEMANDS")); raw != "" {
		stickers, err := ParseStickerDemands(raw)
		if err == nil && len(stickers) > 0 {
			cfg.InitialStickers = stickers
		}
	}

	if rps := strings.TrimSpace(os.Getenv("RATE_LIMIT_RPS")); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := strings.TrimSpace(os.Getenv("RATE_LIMIT_BURST")); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) error {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}

	if overrides.LayoutCapacity != nil && *overrides.LayoutCapacity > 0 {
		cfg.LayoutCapacity = *overrides.LayoutCapacity
	}

	if overrides.MaxLayouts != nil && *overrides.MaxLayouts > 0 {
		cfg.MaxLayouts = *overrides.MaxLayouts
	}

	if overrides.TimeBudget != nil && *overrides.TimeBudget > 0 {
		cfg.TimeBudget = *overrides.TimeBudget
	}

	if overrides.StickersStr != nil && *overrides.StickersStr != "" {
		stickers, err := ParseStickerDemands(*overrides.StickersStr)
		if err != nil {
			return fmt.Errorf("parse sticker demands: %w", err)
		}
		cfg.InitialStickers = stickers
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}

	return nil
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.LayoutCapacity <= 0 {
		return fmt.Errorf("layout capacity must be positive")
	}
	if cfg.MaxLayouts <= 0 {
		return fmt.Errorf("max layouts must be positive")
	}
	if cfg.TimeBudget <= 0 {
		return fmt.Errorf("time budget must be positive")
	}
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	return nil
}

// ParseStickerDemands parses a comma-separated name=demand list, e.g.
// "front=29100,back=24300". Demands must be non-negative integers.
func ParseStickerDemands(raw string) ([]solver.Sticker, error) {
	parts := strings.Split(raw, ",")
	stickers := make([]solver.Sticker, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, demandStr, ok := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid sticker entry %q, want name=demand", part)
		}
		demand, err := strconv.ParseInt(strings.TrimSpace(demandStr), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid demand in %q", part)
		}
		if demand < 0 {
			return nil, fmt.Errorf("demand must be non-negative, got %d", demand)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate sticker name %q", name)
		}
		seen[name] = struct{}{}
		stickers = append(stickers, solver.Sticker{Name: name, Demand: demand})
	}
	if len(stickers) == 0 {
		return nil, fmt.Errorf("no sticker demands provided")
	}
	return stickers, nil
}
