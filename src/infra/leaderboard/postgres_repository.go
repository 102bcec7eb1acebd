package leaderboard

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/multitask/scoreboard/src/domain/leaderboard"
	"github.com/multitask/scoreboard/src/domain/shared"
)

// PostgresDriver is the database/sql driver name registered by pgx.
const PostgresDriver = "pgx"

// schemaMigrations are applied in order and tracked in migrationTable, so the Nakama
// plugin and the HTTP service can share one database.
var schemaMigrations = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "20240309-0001-scores",
			Up: []string{`
CREATE TABLE IF NOT EXISTS scores (
	id          BIGSERIAL   PRIMARY KEY,
	player_name TEXT        NOT NULL,
	score       BIGINT      NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
)`},
			Down: []string{`DROP TABLE IF EXISTS scores`},
		},
		{
			Id:   "20240309-0002-scores-rank-index",
			Up:   []string{`CREATE INDEX IF NOT EXISTS scores_rank_idx ON scores (score DESC, recorded_at ASC, id ASC)`},
			Down: []string{`DROP INDEX IF EXISTS scores_rank_idx`},
		},
	},
}

const migrationTable = "scoreboard_migrations"

const (
	insertScore = `
INSERT INTO scores (player_name, score, recorded_at)
VALUES ($1, $2, $3)
RETURNING id`

	selectTopScores = `
SELECT id, player_name, score, recorded_at
FROM scores
ORDER BY score DESC, recorded_at ASC, id ASC
LIMIT $1`
)

// PostgresRepository stores records in a single append-only table. Each Append is one
// INSERT ... RETURNING statement, so readers never see a partial row.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// OpenPostgres opens a pooled connection using the pgx driver and checks it is reachable.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open(PostgresDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, classify("ping", err)
	}
	return db, nil
}

// EnsureSchema applies any pending schema migrations.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	set := migrate.MigrationSet{TableName: migrationTable}
	if _, err := set.ExecContext(ctx, r.db, "postgres", schemaMigrations, migrate.Up); err != nil {
		return classify("migrate schema", err)
	}
	return nil
}

func (r *PostgresRepository) Append(ctx context.Context, record leaderboard.ScoreRecord) (leaderboard.ScoreRecord, error) {
	record.RecordedAt = leaderboard.Timestamp(record.RecordedAt)

	var id int64
	err := r.db.QueryRowContext(ctx, insertScore, string(record.PlayerName), record.Score, record.RecordedAt).Scan(&id)
	if err != nil {
		return leaderboard.ScoreRecord{}, classify("insert score", err)
	}
	record.ID = shared.ScoreID(id)
	return record, nil
}

func (r *PostgresRepository) Top(ctx context.Context, limit int) ([]leaderboard.ScoreRecord, error) {
	out := make([]leaderboard.ScoreRecord, 0, max(limit, 0))
	if limit <= 0 {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, selectTopScores, limit)
	if err != nil {
		return nil, classify("select top scores", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			record leaderboard.ScoreRecord
			id     int64
			name   string
		)
		if err := rows.Scan(&id, &name, &record.Score, &record.RecordedAt); err != nil {
			return nil, classify("scan score", err)
		}
		record.ID = shared.ScoreID(id)
		record.PlayerName = shared.PlayerName(name)
		record.RecordedAt = record.RecordedAt.UTC()
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate scores", err)
	}
	return out, nil
}

// classify wraps err with op. Connection loss and resource exhaustion are marked with
// shared.ErrUnavailable so callers can ask the client to retry later.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgerrcode.IsConnectionException(pgErr.Code) || pgerrcode.IsInsufficientResources(pgErr.Code) ||
			pgErr.Code == pgerrcode.AdminShutdown || pgErr.Code == pgerrcode.CannotConnectNow {
			return fmt.Errorf("%s: %w: %w", op, shared.ErrUnavailable, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%s: %w: %w", op, shared.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
