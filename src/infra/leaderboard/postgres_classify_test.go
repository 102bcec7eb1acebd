package leaderboard

import (
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/multitask/scoreboard/src/domain/shared"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name            string
		err             error
		wantUnavailable bool
	}{
		{name: "connection failure", err: &pgconn.PgError{Code: pgerrcode.ConnectionFailure}, wantUnavailable: true},
		{name: "too many connections", err: &pgconn.PgError{Code: pgerrcode.TooManyConnections}, wantUnavailable: true},
		{name: "admin shutdown", err: &pgconn.PgError{Code: pgerrcode.AdminShutdown}, wantUnavailable: true},
		{name: "bad driver connection", err: driver.ErrBadConn, wantUnavailable: true},
		{name: "unique violation", err: &pgconn.PgError{Code: pgerrcode.UniqueViolation}},
		{name: "string too long", err: &pgconn.PgError{Code: "22001"}},
		{name: "plain error", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("insert score", tt.err)

			assert.ErrorIs(t, got, tt.err)
			assert.Contains(t, got.Error(), "insert score")
			assert.Equal(t, tt.wantUnavailable, errors.Is(got, shared.ErrUnavailable))
		})
	}
}
