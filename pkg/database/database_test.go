package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/reportcat/pkg/config"
)

func TestDSN(t *testing.T) {
	base := config.DatabaseConfig{Host: "db", Port: 5432, User: "app", Password: "secret", Name: "reportcat", SSLMode: "disable"}

	pg := base
	pg.Driver = config.DriverPostgres
	dsn, err := DSN(pg)
	require.NoError(t, err)
	assert.Equal(t, "host=db port=5432 user=app password=secret dbname=reportcat sslmode=disable", dsn)

	my := base
	my.Driver = config.DriverMySQL
	my.Port = 3306
	dsn, err = DSN(my)
	require.NoError(t, err)
	assert.Equal(t, "app:secret@tcp(db:3306)/reportcat?parseTime=true", dsn)

	lite := base
	lite.Driver = config.DriverSQLite
	dsn, err = DSN(lite)
	require.NoError(t, err)
	assert.Equal(t, "reportcat.db", dsn)

	explicit := base
	explicit.Driver = "anything"
	explicit.DSN = "file::memory:"
	dsn, err = DSN(explicit)
	require.NoError(t, err)
	assert.Equal(t, "file::memory:", dsn)

	_, err = DSN(config.DatabaseConfig{Driver: "oracle"})
	require.Error(t, err)
}

func TestOpenSQLite(t *testing.T) {
	db, err := Open(config.DatabaseConfig{Driver: config.DriverSQLite, DSN: "file::memory:"})
	require.NoError(t, err)
	defer db.Close()

	var one int
	require.NoError(t, db.Get(&one, "SELECT 1"))
	assert.Equal(t, 1, one)
}
