package config_test

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/relaydb/queue/config"
	"github.com/relaydb/queue/jobrow"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := config.Load(viper.New())
	require.NoError(t, err)

	require.False(t, cfg.Enabled)
	require.Equal(t, config.DriverMemory, cfg.Driver)
	require.Equal(t, jobrow.DefaultQueue, cfg.DefaultQueue)
	require.Equal(t, jobrow.DefaultPriority, cfg.DefaultPriority)
	require.Equal(t, uint32(jobrow.DefaultMaxAttempts), cfg.DefaultMaxAttempts)
	require.Equal(t, int(jobrow.DefaultTimeout.Seconds()), cfg.DefaultTimeoutSeconds)
	require.Equal(t, jobrow.DefaultBackoffStrategy, cfg.DefaultBackoff)
	require.Equal(t, int(jobrow.DefaultLeaseGrace.Seconds()), cfg.LeaseGraceSeconds)
	require.Equal(t, 7, cfg.PurgeCompletedAgeDays)
}

func TestLoadOverridesFromSetKeys(t *testing.T) {
	v := viper.New()
	v.Set("queue.enabled", true)
	v.Set("queue.driver", "pgsql")
	v.Set("queue.dsn", "postgres://localhost/test")
	v.Set("queue.default_backoff", "linear")
	v.Set("queue.default_priority", 2)

	cfg, err := config.Load(v)
	require.NoError(t, err)

	require.True(t, cfg.Enabled)
	require.Equal(t, config.DriverPostgres, cfg.Driver)
	require.Equal(t, "postgres://localhost/test", cfg.DSN)
	require.Equal(t, jobrow.Linear, cfg.DefaultBackoff)
	require.Equal(t, 2, cfg.DefaultPriority)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	v := viper.New()
	v.Set("queue.driver", "mongodb")

	_, err := config.Load(v)
	require.Error(t, err)
	var invalid *config.ErrInvalid
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "queue.driver", invalid.Key)
}

func TestLoadRequiresDSNForSQLDrivers(t *testing.T) {
	v := viper.New()
	v.Set("queue.driver", "mysql")

	_, err := config.Load(v)
	require.Error(t, err)
}

func TestLoadRejectsOutOfRangePriority(t *testing.T) {
	v := viper.New()
	v.Set("queue.default_priority", 99)

	_, err := config.Load(v)
	require.Error(t, err)
}
