package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testDatabaseEnv = "WATCHLATER_TEST_DATABASE_URL"

func TestPostgresStorage(t *testing.T) {
	dsn := os.Getenv(testDatabaseEnv)
	if dsn == "" {
		t.Skipf("%s is not set", testDatabaseEnv)
	}

	runStorageSuite(t, func(t *testing.T) Storage {
		ctx := context.Background()
		s, err := OpenPostgres(ctx, dsn, zap.NewNop())
		require.NoError(t, err)
		_, err = s.db.ExecContext(ctx, `TRUNCATE items`)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestDatabaseConfigConnString(t *testing.T) {
	config := DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "bot",
		Password: "secret",
		DBName:   "watchlater",
		SSLMode:  "disable",
	}

	assert.Equal(t,
		"host=db port=5433 user=bot password=secret dbname=watchlater sslmode=disable",
		config.ConnString())
}
