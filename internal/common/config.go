package common

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"db"`
	Server   ServerConfig   `mapstructure:"grpc"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	LLM      LLMConfig      `mapstructure:"openai"`
	Matching MatchingConfig `mapstructure:"matching"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string        `mapstructure:"url"`
	MaxConns         int32         `mapstructure:"max_conns"`
	MinConns         int32         `mapstructure:"min_conns"`
	MaxConnLifetime  time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `mapstructure:"max_conn_idle_time"`
	DialTimeout      time.Duration `mapstructure:"dial_timeout"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
	Migrate          bool          `mapstructure:"migrate"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string `mapstructure:"addr"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LLMConfig holds oracle client configuration. An empty APIKey disables the oracle.
type LLMConfig struct {
	Model             string        `mapstructure:"model"`
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Temperature       float32       `mapstructure:"temperature"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
}

// MatchingConfig holds matcher and decision policy configuration
type MatchingConfig struct {
	AutoApproveThreshold    float64       `mapstructure:"auto_approve_threshold"`
	MinScore                float64       `mapstructure:"min_score"`
	OracleTimeout           time.Duration `mapstructure:"oracle_timeout"`
	AllowSyntheticCandidate bool          `mapstructure:"allow_synthetic_candidate"`
	CandidateLimit          int           `mapstructure:"candidate_limit"`
	BatchConcurrency        int           `mapstructure:"batch_concurrency"`
}

type QueueConfig struct {
	Workers    int           `mapstructure:"workers"`
	Size       int           `mapstructure:"size"`
	JobTimeout time.Duration `mapstructure:"job_timeout"`
}

// IngestConfig controls the invoice inbox watcher. An empty WatchDir disables it.
type IngestConfig struct {
	WatchDir    string        `mapstructure:"watch_dir"`
	InitialScan bool          `mapstructure:"initial_scan"`
	Debounce    time.Duration `mapstructure:"debounce"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.url", "")
	v.SetDefault("db.max_conns", 20)
	v.SetDefault("db.min_conns", 5)
	v.SetDefault("db.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("db.max_conn_idle_time", 5*time.Minute)
	v.SetDefault("db.dial_timeout", 3*time.Second)
	v.SetDefault("db.statement_timeout", time.Duration(0))
	v.SetDefault("db.migrate", true)

	v.SetDefault("grpc.addr", ":8080")
	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.temperature", 0.0)
	v.SetDefault("openai.timeout", 45*time.Second)
	v.SetDefault("openai.requests_per_minute", 60)

	v.SetDefault("matching.auto_approve_threshold", 0.8)
	v.SetDefault("matching.min_score", 0.0)
	v.SetDefault("matching.oracle_timeout", 30*time.Second)
	v.SetDefault("matching.allow_synthetic_candidate", false)
	v.SetDefault("matching.candidate_limit", 500)
	v.SetDefault("matching.batch_concurrency", 4)

	v.SetDefault("queue.workers", 4)
	v.SetDefault("queue.size", 256)
	v.SetDefault("queue.job_timeout", 2*time.Minute)

	v.SetDefault("ingest.watch_dir", "")
	v.SetDefault("ingest.initial_scan", true)
	v.SetDefault("ingest.debounce", 500*time.Millisecond)
}

// LoadConfig loads configuration from defaults, an optional matcher.yaml and
// environment variables. Keys map to env names by upper-casing and replacing
// dots with underscores, so db.url is DB_URL and openai.api_key is OPENAI_API_KEY.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("matcher")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, NewAppError("CONFIG_ERROR", "read config file", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, NewAppError("CONFIG_ERROR", "decode config", err)
	}
	return &cfg, nil
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	if t := c.Matching.AutoApproveThreshold; t < 0 || t > 1 {
		return NewAppError("CONFIG_ERROR", "MATCHING_AUTO_APPROVE_THRESHOLD must be within [0,1]", ErrInvalidInput)
	}
	if s := c.Matching.MinScore; s < 0 || s > 1 {
		return NewAppError("CONFIG_ERROR", "MATCHING_MIN_SCORE must be within [0,1]", ErrInvalidInput)
	}
	if c.Matching.OracleTimeout <= 0 {
		return NewAppError("CONFIG_ERROR", "MATCHING_ORACLE_TIMEOUT must be positive", ErrInvalidInput)
	}
	return nil
}

// OracleEnabled reports whether an oracle API key is configured.
func (c *Config) OracleEnabled() bool {
	return c.LLM.APIKey != ""
}
