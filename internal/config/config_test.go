package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "sentra", cfg.Logger().ServiceName)
	assert.Equal(t, 3, cfg.Orchestrator().MaxParallel)
	assert.Equal(t, 30*time.Second, cfg.Orchestrator().CapabilityTimeout)
	assert.Equal(t, time.Hour, cfg.Correlator().Window)
	assert.Equal(t, 2, cfg.Correlator().MinGroupSize)
	assert.Equal(t, 0.8, cfg.Correlator().ScoreAlertThreshold)
	assert.Equal(t, 0.7, cfg.Correlator().CorrAlertThreshold)
	assert.Equal(t, 30, cfg.Scoring().IntelLookbackDays)

	require.NoError(t, cfg.Validate())
}

func TestNewConfigFromViper(t *testing.T) {
	t.Run("overrides defaults", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("orchestrator.max_parallel", 5)
		v.Set("database.dbname", "sentra_test")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, 5, cfg.Orchestrator().MaxParallel)
		assert.Equal(t, "sentra_test", cfg.Database().DBName)
	})

	t.Run("rejects invalid max_parallel", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("orchestrator.max_parallel", 0)

		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_parallel")
	})

	t.Run("rejects out-of-range alert threshold", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("correlator.score_alert_threshold", 1.5)

		_, err := NewConfigFromViper(v)
		require.Error(t, err)
	})

	t.Run("rejects non-http capability endpoint", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("capabilities.endpoints.threat_hunting.url", "ftp://nope")

		_, err := NewConfigFromViper(v)
		require.Error(t, err)
	})

	t.Run("rejects inverted business hours", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("scoring.business_hours_start", 20)
		v.Set("scoring.business_hours_end", 6)

		_, err := NewConfigFromViper(v)
		require.Error(t, err)
	})
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "x", SSLMode: "require"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=x sslmode=require", d.DSN())
}
