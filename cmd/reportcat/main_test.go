package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/reportcat/pkg/config"
)

func testConfig(dsn string) *config.Config {
	return &config.Config{
		APIPrefix: "/api/v1",
		Database:  config.DatabaseConfig{Driver: config.DriverSQLite, DSN: dsn},
		Reports: config.ReportsConfig{
			GuardSQL:    true,
			EventsTable: "events",
			UsersTable:  "users",
		},
	}
}

func execute(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(cfg, zap.NewNop())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func seedEvents(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.db")
	db, err := sqlx.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	db.MustExec(`CREATE TABLE events (id INTEGER PRIMARY KEY, user_id INTEGER, kind TEXT, created_at TIMESTAMP)`)
	for _, kind := range []string{"signup", "login", "signup", "internal.ping"} {
		db.MustExec(`INSERT INTO events (user_id, kind, created_at) VALUES (1, ?, '2024-03-01 10:00:00')`, kind)
	}
	return path
}

func TestListCommand(t *testing.T) {
	out, err := execute(t, testConfig(""), "list")
	require.NoError(t, err)
	assert.Equal(t, "events_by_day\nevents_by_type\nretention\n", out)
}

func TestSQLCommand(t *testing.T) {
	out, err := execute(t, testConfig(""), "sql", "events_by_type")
	require.NoError(t, err)
	assert.Equal(t, "SELECT kind AS kind, count(1) AS total FROM events WHERE kind NOT LIKE 'internal.%' GROUP BY kind ORDER BY total desc,kind\n", out)

	out, err = execute(t, testConfig(""), "sql", "events_by_type", "--param", "include_internal=1")
	require.NoError(t, err)
	assert.Equal(t, "SELECT kind AS kind, count(1) AS total FROM events GROUP BY kind ORDER BY total desc,kind\n", out)

	_, err = execute(t, testConfig(""), "sql", "missing")
	assert.Error(t, err)
}

func TestRunCommandWritesCSV(t *testing.T) {
	cfg := testConfig(seedEvents(t))

	out, err := execute(t, cfg, "run", "events_by_type")
	require.NoError(t, err)
	assert.Equal(t, "kind,total\nsignup,2\nlogin,1\n", out)

	target := filepath.Join(t.TempDir(), "types.csv")
	_, err = execute(t, cfg, "run", "events_by_type", "-p", "include_internal=true", "--out", target)
	require.NoError(t, err)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "kind,total\nsignup,2\ninternal.ping,1\nlogin,1\n", string(data))
}

func TestParseParams(t *testing.T) {
	got, err := parseParams([]string{"period=week", "start_date=2024-03-01", "period=month", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"period": "month", "start_date": "2024-03-01", "empty": ""}, got)

	_, err = parseParams([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseParams([]string{"=x"})
	assert.Error(t, err)
}
