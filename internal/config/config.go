package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// Components depend on this rather than the concrete Config so tests can
// inject fixtures.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Orchestrator() OrchestratorConfig
	Scoring() ScoringConfig
	Correlator() CorrelatorConfig
	Capabilities() CapabilitiesConfig
	Events() EventsConfig
	Reputation() ReputationConfig
}

// LoggerConfig controls the global zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	Color       string `mapstructure:"color" yaml:"color"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// DatabaseConfig describes the Postgres durable store.
type DatabaseConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	DBName   string `mapstructure:"dbname" yaml:"dbname"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
	MaxConns int    `mapstructure:"max_conns" yaml:"max_conns"`
}

// DSN renders a pgx-compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// OrchestratorConfig bounds the session scheduler.
type OrchestratorConfig struct {
	MaxParallel       int           `mapstructure:"max_parallel" yaml:"max_parallel"`
	CapabilityTimeout time.Duration `mapstructure:"capability_timeout" yaml:"capability_timeout"`
	ProbeTimeout      time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
}

// ScoringConfig tunes the threat scoring engine's external lookups. The
// component weights and thresholds themselves are fixed, not configuration.
type ScoringConfig struct {
	IntelLookbackDays  int `mapstructure:"intel_lookback_days" yaml:"intel_lookback_days"`
	MaxIntelResults    int `mapstructure:"max_intel_results" yaml:"max_intel_results"`
	BusinessHoursStart int `mapstructure:"business_hours_start" yaml:"business_hours_start"`
	BusinessHoursEnd   int `mapstructure:"business_hours_end" yaml:"business_hours_end"`
}

// CorrelatorConfig tunes event correlation and alerting.
type CorrelatorConfig struct {
	Window              time.Duration `mapstructure:"window" yaml:"window"`
	MinGroupSize        int           `mapstructure:"min_group_size" yaml:"min_group_size"`
	EventRetention      time.Duration `mapstructure:"event_retention" yaml:"event_retention"`
	ScoreAlertThreshold float64       `mapstructure:"score_alert_threshold" yaml:"score_alert_threshold"`
	CorrAlertThreshold  float64       `mapstructure:"corr_alert_threshold" yaml:"corr_alert_threshold"`
}

// CapabilityEndpoint describes one capability service endpoint.
type CapabilityEndpoint struct {
	URL        string        `mapstructure:"url" yaml:"url"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
}

// CapabilitiesConfig maps capability names to their endpoints.
type CapabilitiesConfig struct {
	DefaultTimeout time.Duration                 `mapstructure:"default_timeout" yaml:"default_timeout"`
	Endpoints      map[string]CapabilityEndpoint `mapstructure:"endpoints" yaml:"endpoints"`
}

// EventsConfig describes the downstream event channel.
type EventsConfig struct {
	NATSURL       string `mapstructure:"nats_url" yaml:"nats_url"`
	SubjectPrefix string `mapstructure:"subject_prefix" yaml:"subject_prefix"`
}

// ReputationConfig describes the best-effort lookup services.
type ReputationConfig struct {
	IPReputationURL string        `mapstructure:"ip_reputation_url" yaml:"ip_reputation_url"`
	UserProfileURL  string        `mapstructure:"user_profile_url" yaml:"user_profile_url"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RateLimit       float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst           int           `mapstructure:"burst" yaml:"burst"`
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg       LoggerConfig       `mapstructure:"logger" yaml:"logger"`
	DatabaseCfg     DatabaseConfig     `mapstructure:"database" yaml:"database"`
	OrchestratorCfg OrchestratorConfig `mapstructure:"orchestrator" yaml:"orchestrator"`
	ScoringCfg      ScoringConfig      `mapstructure:"scoring" yaml:"scoring"`
	CorrelatorCfg   CorrelatorConfig   `mapstructure:"correlator" yaml:"correlator"`
	CapabilitiesCfg CapabilitiesConfig `mapstructure:"capabilities" yaml:"capabilities"`
	EventsCfg       EventsConfig       `mapstructure:"events" yaml:"events"`
	ReputationCfg   ReputationConfig   `mapstructure:"reputation" yaml:"reputation"`
}

// -- Interface Method Implementations --

func (c *Config) Logger() LoggerConfig             { return c.LoggerCfg }
func (c *Config) Database() DatabaseConfig         { return c.DatabaseCfg }
func (c *Config) Orchestrator() OrchestratorConfig { return c.OrchestratorCfg }
func (c *Config) Scoring() ScoringConfig           { return c.ScoringCfg }
func (c *Config) Correlator() CorrelatorConfig     { return c.CorrelatorCfg }
func (c *Config) Capabilities() CapabilitiesConfig { return c.CapabilitiesCfg }
func (c *Config) Events() EventsConfig             { return c.EventsCfg }
func (c *Config) Reputation() ReputationConfig     { return c.ReputationCfg }

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with the defaults below.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration parameter.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "sentra")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Database --
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "") // Set via SENTRA_DATABASE_PASSWORD.
	v.SetDefault("database.dbname", "sentra")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 8)

	// -- Orchestrator --
	v.SetDefault("orchestrator.max_parallel", 3)
	v.SetDefault("orchestrator.capability_timeout", "30s")
	v.SetDefault("orchestrator.probe_timeout", "30s")

	// -- Scoring --
	v.SetDefault("scoring.intel_lookback_days", 30)
	v.SetDefault("scoring.max_intel_results", 10)
	v.SetDefault("scoring.business_hours_start", 8)
	v.SetDefault("scoring.business_hours_end", 18)

	// -- Correlator --
	v.SetDefault("correlator.window", "1h")
	v.SetDefault("correlator.min_group_size", 2)
	v.SetDefault("correlator.event_retention", "2160h") // 90 days
	v.SetDefault("correlator.score_alert_threshold", 0.8)
	v.SetDefault("correlator.corr_alert_threshold", 0.7)

	// -- Capabilities --
	v.SetDefault("capabilities.default_timeout", "30s")

	// -- Events --
	v.SetDefault("events.nats_url", "nats://localhost:4222")
	v.SetDefault("events.subject_prefix", "sentra.events")

	// -- Reputation --
	v.SetDefault("reputation.timeout", "5s")
	v.SetDefault("reputation.rate_limit", 10.0)
	v.SetDefault("reputation.burst", 20)
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind environment variables for sensitive data.
	v.BindEnv("database.password", "SENTRA_DATABASE_PASSWORD")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the components cannot work
// with. It fails fast rather than letting a bad value surface mid-session.
func (c *Config) Validate() error {
	if c.OrchestratorCfg.MaxParallel < 1 {
		return fmt.Errorf("orchestrator.max_parallel must be >= 1, got %d", c.OrchestratorCfg.MaxParallel)
	}
	if c.OrchestratorCfg.CapabilityTimeout <= 0 {
		return fmt.Errorf("orchestrator.capability_timeout must be positive")
	}
	if c.CorrelatorCfg.MinGroupSize < 2 {
		return fmt.Errorf("correlator.min_group_size must be >= 2, got %d", c.CorrelatorCfg.MinGroupSize)
	}
	if c.CorrelatorCfg.Window <= 0 {
		return fmt.Errorf("correlator.window must be positive")
	}
	if t := c.CorrelatorCfg.ScoreAlertThreshold; t < 0 || t > 1 {
		return fmt.Errorf("correlator.score_alert_threshold must be in [0,1], got %v", t)
	}
	if t := c.CorrelatorCfg.CorrAlertThreshold; t < 0 || t > 1 {
		return fmt.Errorf("correlator.corr_alert_threshold must be in [0,1], got %v", t)
	}
	if s, e := c.ScoringCfg.BusinessHoursStart, c.ScoringCfg.BusinessHoursEnd; s < 0 || e > 24 || s >= e {
		return fmt.Errorf("scoring business hours [%d,%d) are not a valid daytime range", s, e)
	}
	for name := range c.CapabilitiesCfg.Endpoints {
		if !strings.HasPrefix(c.CapabilitiesCfg.Endpoints[name].URL, "http") {
			return fmt.Errorf("capability endpoint %q has a non-HTTP URL", name)
		}
	}
	return nil
}
