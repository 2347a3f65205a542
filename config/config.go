// Package config loads the plain Config struct that drives queue wiring
// (the queue.* keys) through github.com/spf13/viper.
//
// Load takes an already-constructed *viper.Viper and returns a *Config
// rather than mutating package-level state: the host owns the Viper
// instance (file paths, env prefix, flag binding), and this package owns
// only the translation from loaded keys to a typed struct.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/relaydb/queue/jobrow"
)

// Driver names a supported queue.driver value.
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverSync     Driver = "sync"
	DriverMySQL    Driver = "mysql"
	DriverPostgres Driver = "pgsql"
	DriverSQLite   Driver = "sqlite"
)

func (d Driver) valid() bool {
	switch d {
	case DriverMemory, DriverSync, DriverMySQL, DriverPostgres, DriverSQLite:
		return true
	default:
		return false
	}
}

// Config is the fully-resolved set of queue.* keys, plus the DSN a SQL
// driver needs to open a connection.
type Config struct {
	Enabled bool   `mapstructure:"enabled"`
	Driver  Driver `mapstructure:"driver"`
	DSN     string `mapstructure:"dsn"`

	DefaultQueue            string                 `mapstructure:"default_queue"`
	DefaultPriority         int                    `mapstructure:"default_priority"`
	DefaultMaxAttempts      uint32                 `mapstructure:"default_max_attempts"`
	DefaultTimeoutSeconds   int                    `mapstructure:"default_timeout_seconds"`
	DefaultBackoff          jobrow.BackoffStrategy `mapstructure:"default_backoff"`
	DefaultRetryDelaySecs   int                    `mapstructure:"default_retry_delay_seconds"`
	LeaseGraceSeconds       int                    `mapstructure:"lease_grace_seconds"`
	PurgeCompletedAgeDays   int                    `mapstructure:"purge_completed_age_days"`
}

// ErrInvalid wraps a configuration value that fails validation. It is
// fatal and caller-facing; nothing retries a bad config.
type ErrInvalid struct {
	Key    string
	Reason string
}

func (e *ErrInvalid) Error() string {
	return fmt.Sprintf("config: invalid %s: %s", e.Key, e.Reason)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("queue.enabled", false)
	v.SetDefault("queue.driver", string(DriverMemory))
	v.SetDefault("queue.dsn", "")
	v.SetDefault("queue.default_queue", jobrow.DefaultQueue)
	v.SetDefault("queue.default_priority", jobrow.DefaultPriority)
	v.SetDefault("queue.default_max_attempts", jobrow.DefaultMaxAttempts)
	v.SetDefault("queue.default_timeout_seconds", int(jobrow.DefaultTimeout.Seconds()))
	v.SetDefault("queue.default_backoff", jobrow.DefaultBackoffStrategy.String())
	v.SetDefault("queue.default_retry_delay_seconds", int(jobrow.DefaultRetryDelay.Seconds()))
	v.SetDefault("queue.lease_grace_seconds", int(jobrow.DefaultLeaseGrace.Seconds()))
	v.SetDefault("queue.purge.completed_age_days", 7)
}

func bindEnv(v *viper.Viper) error {
	binds := [][]string{
		{"queue.enabled", "QUEUE_ENABLED"},
		{"queue.driver", "QUEUE_DRIVER"},
		{"queue.dsn", "QUEUE_DSN"},
		{"queue.default_queue", "QUEUE_DEFAULT_QUEUE"},
		{"queue.default_priority", "QUEUE_DEFAULT_PRIORITY"},
		{"queue.default_max_attempts", "QUEUE_DEFAULT_MAX_ATTEMPTS"},
		{"queue.default_timeout_seconds", "QUEUE_DEFAULT_TIMEOUT_SECONDS"},
		{"queue.default_backoff", "QUEUE_DEFAULT_BACKOFF"},
		{"queue.default_retry_delay_seconds", "QUEUE_DEFAULT_RETRY_DELAY_SECONDS"},
		{"queue.lease_grace_seconds", "QUEUE_LEASE_GRACE_SECONDS"},
		{"queue.purge.completed_age_days", "QUEUE_PURGE_COMPLETED_AGE_DAYS"},
	}
	for _, b := range binds {
		if err := v.BindEnv(b[0], b[1]); err != nil {
			return fmt.Errorf("config: bind %s: %w", b[1], err)
		}
	}
	return nil
}

// Load resolves every queue.* key out of v (already pointed at whatever
// file/env sources the host wants) into a validated Config. v may be a
// fresh viper.New() or one the host has already configured with
// SetConfigFile/AddConfigPath/ReadInConfig; Load only adds defaults and
// env bindings on top, then reads each key with v.Get* and validates.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	var backoff jobrow.BackoffStrategy
	if s := v.GetString("queue.default_backoff"); s != "" {
		parsed, err := jobrow.ParseBackoffStrategy(s)
		if err != nil {
			return nil, &ErrInvalid{Key: "queue.default_backoff", Reason: err.Error()}
		}
		backoff = parsed
	}

	cfg := &Config{
		Enabled:               v.GetBool("queue.enabled"),
		Driver:                Driver(v.GetString("queue.driver")),
		DSN:                   v.GetString("queue.dsn"),
		DefaultQueue:          v.GetString("queue.default_queue"),
		DefaultPriority:       v.GetInt("queue.default_priority"),
		DefaultMaxAttempts:    uint32(v.GetUint("queue.default_max_attempts")),
		DefaultTimeoutSeconds: v.GetInt("queue.default_timeout_seconds"),
		DefaultBackoff:        backoff,
		DefaultRetryDelaySecs: v.GetInt("queue.default_retry_delay_seconds"),
		LeaseGraceSeconds:     v.GetInt("queue.lease_grace_seconds"),
		PurgeCompletedAgeDays: v.GetInt("queue.purge.completed_age_days"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if !c.Driver.valid() {
		return &ErrInvalid{Key: "queue.driver", Reason: fmt.Sprintf("unsupported driver %q", c.Driver)}
	}
	if c.Driver == DriverMySQL || c.Driver == DriverPostgres {
		if c.DSN == "" {
			return &ErrInvalid{Key: "queue.dsn", Reason: "required for driver " + string(c.Driver)}
		}
	}
	if c.DefaultPriority < 0 || c.DefaultPriority > 10 {
		return &ErrInvalid{Key: "queue.default_priority", Reason: "must be between 0 and 10"}
	}
	if c.DefaultMaxAttempts == 0 {
		return &ErrInvalid{Key: "queue.default_max_attempts", Reason: "must be at least 1"}
	}
	return nil
}
