// Package config loads the process-wide configuration surface named
// in §6: scoring params, scheduler knobs, concurrency knobs, and the
// database DSN. Environment variables are the primary source; a YAML
// file may supply the same fields for operators who prefer files,
// matching the teacher's provider-config pattern but with env as the
// first-class path the spec calls for.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hyperalpha/traderscore/internal/db"
	"github.com/hyperalpha/traderscore/internal/domain"
)

// Config is the full configuration surface.
type Config struct {
	Scoring domain.ScoringParams `yaml:"scoring"`

	LeaderboardStatsConcurrency  int `yaml:"leaderboard_stats_concurrency"`
	LeaderboardSeriesConcurrency int `yaml:"leaderboard_series_concurrency"`

	TopN        int   `yaml:"top_n"`
	SelectCount int   `yaml:"select_count"`
	EnrichCount int   `yaml:"enrich_count"`
	Periods     []int `yaml:"periods"`
	PageSize    int   `yaml:"page_size"`
	RefreshMs   int   `yaml:"refresh_ms"`
	Sort        int   `yaml:"sort"`

	LeaderboardBaseURL string `yaml:"leaderboard_base_url"`
	InfoURL            string `yaml:"info_url"`

	DB db.Config `yaml:"db"`
}

// Default returns the configuration surface's documented defaults.
func Default() Config {
	return Config{
		Scoring:                      domain.DefaultScoringParams(),
		LeaderboardStatsConcurrency:  4,
		LeaderboardSeriesConcurrency: 2,
		TopN:                         1000,
		SelectCount:                  12,
		EnrichCount:                  12,
		Periods:                      []int{30},
		PageSize:                     100,
		RefreshMs:                    86_400_000,
		Sort:                         3,
		DB:                           db.DefaultConfig(),
	}
}

// Load builds a Config starting from defaults, optionally overlaying a
// YAML file, then applying environment variable overrides — env always
// wins, matching §6's "environment variables are one recognized
// source".
func Load(yamlPath string) (Config, error) {
	cfg := Default()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	envInt(&cfg.LeaderboardStatsConcurrency, "LEADERBOARD_STATS_CONCURRENCY")
	envInt(&cfg.LeaderboardSeriesConcurrency, "LEADERBOARD_SERIES_CONCURRENCY")
	envInt(&cfg.TopN, "TOP_N")
	envInt(&cfg.SelectCount, "SELECT_COUNT")
	envInt(&cfg.EnrichCount, "ENRICH_COUNT")
	envInt(&cfg.PageSize, "PAGE_SIZE")
	envInt(&cfg.RefreshMs, "REFRESH_MS")
	envInt(&cfg.Sort, "SORT")
	envString(&cfg.LeaderboardBaseURL, "LEADERBOARD_BASE_URL")
	envString(&cfg.InfoURL, "INFO_URL")
	envString(&cfg.DB.DSN, "PG_DSN")

	envFloat(&cfg.Scoring.SmoothPnlWeight, "SCORE_SMOOTH_PNL_WEIGHT")
	envFloat(&cfg.Scoring.WinRateWeight, "SCORE_WIN_RATE_WEIGHT")
	envFloat(&cfg.Scoring.PnlWeight, "SCORE_PNL_WEIGHT")
	envFloat(&cfg.Scoring.TradeFreqWeight, "SCORE_TRADE_FREQ_WEIGHT")
	envFloat(&cfg.Scoring.OptimalTrades, "SCORE_OPTIMAL_TRADES")
	envFloat(&cfg.Scoring.TradeSigma, "SCORE_TRADE_SIGMA")
	envFloat(&cfg.Scoring.PnlReference, "SCORE_PNL_REFERENCE")
	envFloat(&cfg.Scoring.MaxDrawdownLimit, "SCORE_MAX_DRAWDOWN_LIMIT")
	envFloat(&cfg.Scoring.ScalpingThreshold, "SCORE_SCALPING_THRESHOLD")
	envInt(&cfg.Scoring.MaxTradesHardLimit, "SCORE_MAX_TRADES_HARD_LIMIT")
	envBool(&cfg.Scoring.FallbackOnAllFiltered, "SCORE_FALLBACK_ON_ALL_FILTERED")
}

func envInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(dst *float64, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// Validate rejects a configuration the scheduler could not safely run
// with.
func (c Config) Validate() error {
	if err := c.Scoring.Validate(); err != nil {
		return err
	}
	if c.SelectCount <= 0 {
		return fmt.Errorf("select_count must be positive, got %d", c.SelectCount)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive, got %d", c.PageSize)
	}
	if len(c.Periods) == 0 {
		return fmt.Errorf("periods must not be empty")
	}
	if c.LeaderboardBaseURL == "" {
		return fmt.Errorf("leaderboard_base_url is required")
	}
	return nil
}

// RefreshInterval converts RefreshMs to a time.Duration.
func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshMs) * time.Millisecond
}
