package postgres_test

import (
	"os"
	"testing"

	"fxstream/config"
	"fxstream/pkg/storage/postgres"

	"github.com/stretchr/testify/require"
)

// go test -v --run TestCreateDatabase
func TestCreateDatabase(t *testing.T) {
	host := os.Getenv("FXSTREAM_TEST_PGHOST")
	if host == "" {
		t.Skip("FXSTREAM_TEST_PGHOST not set")
	}

	cfg := config.PostgresConfig{
		Host:     host,
		Port:     5432,
		User:     os.Getenv("FXSTREAM_TEST_PGUSER"),
		Password: os.Getenv("FXSTREAM_TEST_PGPASSWORD"),
		DBName:   "fxstream_create_test",
		SSLMode:  "disable",
	}

	require.NoError(t, postgres.CreateDatabase(cfg, "dev"))
	// second call sees the existing database
	require.NoError(t, postgres.CreateDatabase(cfg, "dev"))
}
