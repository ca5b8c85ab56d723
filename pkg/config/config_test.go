package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Reports.CacheTTL)
	assert.Equal(t, 30*time.Second, cfg.Reports.QueryTimeout)
	assert.False(t, cfg.Reports.GuardSQL)
	assert.Equal(t, "events", cfg.Reports.EventsTable)
	assert.Equal(t, 3, cfg.Exports.WorkerRetries)
}

func TestFromViperGuardFollowsDriver(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("DB_DRIVER", "MySQL")

	cfg := fromViper(v)
	assert.Equal(t, DriverMySQL, cfg.Database.Driver)
	assert.True(t, cfg.Reports.GuardSQL)

	v.Set("REPORTS_GUARD_SQL", "off")
	assert.False(t, fromViper(v).Reports.GuardSQL)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	assert.Equal(t, 2*time.Second, parseDuration("2s", time.Minute))
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
	assert.Equal(t, []string{"a", "b"}, splitAndTrim(" a, ,b "))
}
