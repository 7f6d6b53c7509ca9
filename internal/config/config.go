// Package config loads and validates exploration options (strategy, budgets,
// fail-fast) plus the World-construction wiring (API base URL, headers, auth,
// adapter DSNs) from a layered viper configuration. A CLI (cmd/explore) or any
// embedding caller builds a Config, calls Validate, and hands the result to
// the World/Agent constructors.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Strategy names recognized by strategy option.
const (
	StrategyBFS      = "bfs"
	StrategyDFS      = "dfs"
	StrategyRandom   = "random"
	StrategyCoverage = "coverage"
	StrategyWeighted = "weighted"
	StrategyMCTS     = "mcts"
)

var validStrategies = map[string]bool{
	StrategyBFS: true, StrategyDFS: true, StrategyRandom: true,
	StrategyCoverage: true, StrategyWeighted: true, StrategyMCTS: true,
}

// Config is the full set of options a CLI or embedding caller assembles before
// building a World and Agent: the exploration options plus the World/adapter
// wiring.
type Config struct {
	Explore ExploreConfig `mapstructure:"explore" validate:"required"`

	// SUT is the World's API-client wiring.
	SUT SUTConfig `mapstructure:"sut" validate:"required"`

	// Adapters is the named map of adapter DSNs/connection options the World
	// constructs Rollbackable instances from. Keys are adapter names.
	Adapters AdaptersConfig `mapstructure:"adapters"`

	Log LogConfig `mapstructure:"log"`
}

// ExploreConfig holds the exploration loop's own options.
type ExploreConfig struct {
	Strategy       string  `mapstructure:"strategy" validate:"required,oneof=bfs dfs random coverage weighted mcts"`
	MaxSteps       int     `mapstructure:"max_steps" validate:"min=1"`
	MaxDepth       int     `mapstructure:"max_depth"` // 0 = unbounded
	CoverageTarget float64 `mapstructure:"coverage_target" validate:"gte=0,lte=1"`
	Seed           *int64  `mapstructure:"seed"` // nil = nondeterministic
	FailFast       bool    `mapstructure:"fail_fast"`
}

// SUTConfig configures the Agent's non-rollbackable API client.
type SUTConfig struct {
	BaseURL         string            `mapstructure:"base_url" validate:"required,url"`
	Headers         map[string]string `mapstructure:"headers"`
	AuthBearerToken string            `mapstructure:"auth_bearer_token"`
	RequestTimeout  time.Duration     `mapstructure:"request_timeout"`
	RateLimitPerSec float64           `mapstructure:"rate_limit_per_sec"`
	RateLimitBurst  int               `mapstructure:"rate_limit_burst"`
}

// AdaptersConfig carries the per-backend wiring for the concrete adapter
// kinds. Any subset may be populated; the World is built from whichever
// backends the exploration project uses.
type AdaptersConfig struct {
	Postgres    map[string]PostgresAdapterConfig    `mapstructure:"postgres"`
	SQLite      map[string]SQLiteAdapterConfig       `mapstructure:"sqlite"`
	Redis       map[string]RedisAdapterConfig        `mapstructure:"redis"`
	APIRecorder map[string]APIRecorderAdapterConfig  `mapstructure:"api_recorder"`
}

type PostgresAdapterConfig struct {
	DSN           string   `mapstructure:"dsn" validate:"required"`
	ObserveTables []string `mapstructure:"observe_tables"`
}

type SQLiteAdapterConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

type RedisAdapterConfig struct {
	Addr        string   `mapstructure:"addr" validate:"required"`
	Password    string   `mapstructure:"password"`
	DB          int      `mapstructure:"db"`
	ObserveKeys []string `mapstructure:"observe_keys"`
}

type APIRecorderAdapterConfig struct {
	ListenAddr string `mapstructure:"listen_addr" validate:"required"`
}

// LogConfig mirrors pkg/logger.Config shape.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Load reads configuration from the given viper instance (already told about
// its config file / env prefix by the caller), applies defaults, and validates
// the result. This is the single entry point cmd/explore uses.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &Error{Reason: "unable to decode configuration", Cause: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("explore.strategy", StrategyBFS)
	v.SetDefault("explore.max_steps", 1000)
	v.SetDefault("explore.max_depth", 0)
	v.SetDefault("explore.coverage_target", 0)
	v.SetDefault("explore.fail_fast", false)

	v.SetDefault("sut.request_timeout", 30*time.Second)
	v.SetDefault("sut.rate_limit_per_sec", 0)
	v.SetDefault("sut.rate_limit_burst", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
}

var validate = validator.New()

// Validate applies struct-tag validation (go-playground/validator/v10, own
// validation library) and the cross-field checks tags cannot express, returning
// a *Error (ConfigurationError-class) on any failure.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return &Error{Reason: "invalid configuration", Cause: err}
	}
	if !validStrategies[strings.ToLower(c.Explore.Strategy)] {
		return &Error{Reason: fmt.Sprintf("unknown strategy %q", c.Explore.Strategy)}
	}
	return nil
}

// Error is the configuration-class error this package returns. Callers that
// need to route it through internal/core's error taxonomy wrap it in a
// *core.ConfigurationError at the call site; config itself does not import
// internal/core to avoid adapters (which import both) forming an import cycle.
type Error struct {
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("config: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("config: %s", e.Reason)
}

func (e *Error) Unwrap() error { return e.Cause }
