package leaderboard_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/multitask/scoreboard/src/domain/leaderboard"
	infra "github.com/multitask/scoreboard/src/infra/leaderboard"
)

// Set SCOREBOARD_TEST_POSTGRES_DSN to a disposable database to run these tests.
func TestPostgresRepository(t *testing.T) {
	dsn := os.Getenv("SCOREBOARD_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SCOREBOARD_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	db, err := infra.OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	testRepositoryContract(t, func(t *testing.T) leaderboard.Repository {
		repo := infra.NewPostgresRepository(db)
		require.NoError(t, repo.EnsureSchema(ctx))
		_, err := db.ExecContext(ctx, "TRUNCATE scores RESTART IDENTITY")
		require.NoError(t, err)
		return repo
	})
}

func TestPostgresRepository_EnsureSchemaIsIdempotent(t *testing.T) {
	dsn := os.Getenv("SCOREBOARD_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SCOREBOARD_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	db, err := infra.OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := infra.NewPostgresRepository(db)
	require.NoError(t, repo.EnsureSchema(ctx))
	require.NoError(t, repo.EnsureSchema(ctx))

	var applied int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT count(*) FROM scoreboard_migrations").Scan(&applied))
	require.Equal(t, 2, applied)
}
