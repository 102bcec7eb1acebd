package leaderboard

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/atomic"

	"github.com/multitask/scoreboard/src/domain/leaderboard"
	"github.com/multitask/scoreboard/src/domain/shared"
)

// MemoryRepository implements leaderboard.Repository using in-memory storage. Records are
// kept in ranked order so Top is a prefix copy.
type MemoryRepository struct {
	mu      sync.RWMutex
	records []leaderboard.ScoreRecord
	seq     atomic.Int64
}

// NewMemoryRepository creates a new in-memory leaderboard repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Append assigns the next ID and inserts the record at its ranked position.
func (r *MemoryRepository) Append(ctx context.Context, record leaderboard.ScoreRecord) (leaderboard.ScoreRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record.ID = shared.ScoreID(r.seq.Inc())
	idx := sort.Search(len(r.records), func(i int) bool {
		return leaderboard.Ranked(record, r.records[i])
	})
	r.records = append(r.records, leaderboard.ScoreRecord{})
	copy(r.records[idx+1:], r.records[idx:])
	r.records[idx] = record
	return record, nil
}

// Top returns a copy of the first limit ranked records.
func (r *MemoryRepository) Top(ctx context.Context, limit int) ([]leaderboard.ScoreRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		return []leaderboard.ScoreRecord{}, nil
	}
	if limit > len(r.records) {
		limit = len(r.records)
	}
	out := make([]leaderboard.ScoreRecord, limit)
	copy(out, r.records[:limit])
	return out, nil
}

