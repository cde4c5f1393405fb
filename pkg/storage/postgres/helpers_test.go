package postgres_test

import (
	"os"
	"testing"

	"fxstream/pkg/storage/postgres"

	"github.com/stretchr/testify/require"
)

// testClient connects to the database named by FXSTREAM_TEST_DSN and migrates it.
// Tests that need a live server are skipped when the variable is unset.
func testClient(t *testing.T) *postgres.PostgresClient {
	t.Helper()

	dsn := os.Getenv("FXSTREAM_TEST_DSN")
	if dsn == "" {
		t.Skip("FXSTREAM_TEST_DSN not set")
	}

	client, err := postgres.NewClient(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.AutoMigrate())
	return client
}
