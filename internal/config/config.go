package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the intelligence engine.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Models   ModelsConfig   `yaml:"models"`
	Healing  HealingConfig  `yaml:"healing"`
	Logging  LoggingConfig  `yaml:"logging"`
	Cache    CacheConfig    `yaml:"cache"`
}

// ServerConfig controls HTTP listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// DatabaseConfig configures the Postgres-backed analysis store. An empty DSN
// boots the engine on the in-memory store instead of failing startup.
type DatabaseConfig struct {
	DSN            string        `yaml:"dsn"`
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
}

// AnalysisConfig tunes the aggregators.
type AnalysisConfig struct {
	SlowTraceThresholdMS float64  `yaml:"slowTraceThresholdMS"`
	RiskyPatterns        []string `yaml:"riskyPatterns"`
}

// ModelsConfig holds per-model verdict thresholds and scoring pool sizing.
type ModelsConfig struct {
	BreakingChangeThreshold  float64 `yaml:"breakingChangeThreshold"`
	AnomalyThreshold         float64 `yaml:"anomalyThreshold"`
	PerformanceThreshold     float64 `yaml:"performanceThreshold"`
	ScoringWorkers           int     `yaml:"scoringWorkers"`
	ScoringQueueSize         int     `yaml:"scoringQueueSize"`
	TrainingHistoryBatchSize int     `yaml:"trainingHistoryBatchSize"`
}

// HealingConfig carries the self-healing flags. Both are read-only at
// runtime; concurrent dispatchers can run with different copies.
type HealingConfig struct {
	Enabled bool `yaml:"enabled"`
	DryRun  bool `yaml:"dryRun"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// CacheConfig controls Valkey-backed caching of status views.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
	StatusTTL    time.Duration `yaml:"statusTTL"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("INTEL_ENGINE_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8000",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			ConnectTimeout: 5 * time.Second,
		},
		Analysis: AnalysisConfig{
			SlowTraceThresholdMS: 1000,
			RiskyPatterns: []string{
				"auth", "migration", "dependency", "security", "crypto", "payment",
			},
		},
		Models: ModelsConfig{
			BreakingChangeThreshold:  0.7,
			AnomalyThreshold:         0.8,
			PerformanceThreshold:     0.15,
			ScoringWorkers:           4,
			ScoringQueueSize:         256,
			TrainingHistoryBatchSize: 200,
		},
		Healing: HealingConfig{Enabled: true, DryRun: false},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			StatusTTL:    30 * time.Second,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("INTEL_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("INTEL_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("INTEL_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("INTEL_SLOW_TRACE_THRESHOLD_MS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Analysis.SlowTraceThresholdMS = f
		}
	}
	if v := os.Getenv("INTEL_RISKY_PATTERNS"); v != "" {
		parts := strings.Split(v, ",")
		patterns := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				patterns = append(patterns, p)
			}
		}
		if len(patterns) > 0 {
			cfg.Analysis.RiskyPatterns = patterns
		}
	}
	if v := os.Getenv("INTEL_BREAKING_CHANGE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Models.BreakingChangeThreshold = f
		}
	}
	if v := os.Getenv("INTEL_ANOMALY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Models.AnomalyThreshold = f
		}
	}
	if v := os.Getenv("INTEL_PERFORMANCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Models.PerformanceThreshold = f
		}
	}
	if v := os.Getenv("INTEL_SCORING_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Models.ScoringWorkers = n
		}
	}
	if v := os.Getenv("INTEL_AUTO_HEAL_ENABLED"); v != "" {
		cfg.Healing.Enabled = isTruthy(v)
	}
	if v := os.Getenv("INTEL_AUTO_HEAL_DRY_RUN"); v != "" {
		cfg.Healing.DryRun = isTruthy(v)
	}
	if v := os.Getenv("INTEL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("INTEL_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("INTEL_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = isTruthy(v)
	}
	if v := os.Getenv("INTEL_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("INTEL_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("INTEL_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("INTEL_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("INTEL_CACHE_TLS"); isTruthy(v) {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("INTEL_CACHE_STATUS_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.StatusTTL = d
		}
	}
}

func isTruthy(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}
