package migrations

import (
	"context"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"veilfi-wallet/pkg/storage/postgres"
)

func TestFilesAreOrderedAndIdempotent(t *testing.T) {
	files, err := Files()
	require.NoError(t, err)
	require.Equal(t, []string{"001_users_activities.sql", "002_orders_deposits.sql"}, files)

	for _, file := range files {
		data, err := fs.ReadFile(PostgresFS, "postgres/"+file)
		require.NoError(t, err)
		for _, line := range strings.Split(string(data), "\n") {
			if strings.HasPrefix(line, "CREATE ") {
				assert.Contains(t, line, "IF NOT EXISTS", "%s: %s", file, line)
			}
		}
	}
}

func TestRunPostgresMigrationsRecordsApplied(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("veilfi"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	defer func() { _ = container.Terminate(ctx) }()

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	pool, err := postgres.NewPool(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	files, err := Files()
	require.NoError(t, err)

	applied, err := RunPostgresMigrations(ctx, pool)
	require.NoError(t, err)
	assert.Equal(t, files, applied)

	done, err := Applied(ctx, pool)
	require.NoError(t, err)
	assert.Len(t, done, len(files))

	// A second run has nothing left to do.
	applied, err = RunPostgresMigrations(ctx, pool)
	require.NoError(t, err)
	assert.Empty(t, applied)

	// Only files missing from the ledger are re-applied.
	_, err = pool.Exec(ctx, `DELETE FROM schema_migrations WHERE name = $1`, files[len(files)-1])
	require.NoError(t, err)
	applied, err = RunPostgresMigrations(ctx, pool)
	require.NoError(t, err)
	assert.Equal(t, files[len(files)-1:], applied)
}
