package leaderboard

import "context"

// Repository is the append-only ranked store. Implementations synchronize internally: Append
// and Top may be called concurrently and Top never observes a partially written record.
type Repository interface {
	// Append assigns a unique ID to record, stores it and returns the stored form.
	Append(ctx context.Context, record ScoreRecord) (ScoreRecord, error)
	// Top returns at most limit records ordered by Ranked.
	Top(ctx context.Context, limit int) ([]ScoreRecord, error)
}
