package leaderboard

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/multitask/scoreboard/src/domain/leaderboard"
	"github.com/multitask/scoreboard/src/domain/shared"
)

var (
	rankPrefix = []byte("r/")
	rankEnd    = []byte("r0") // first key after every "r/" key
	seqKey     = []byte("m/seq")
)

// PebbleRepository is a Pebble LSM-tree backed leaderboard.Repository. Record keys sort in
// ranked order, so Top is a bounded forward scan. Each Append writes the record and the ID
// sequence in one synced batch.
type PebbleRepository struct {
	mu     sync.Mutex
	db     *pebble.DB
	path   string
	seq    atomic.Int64
	logger *zap.Logger
}

type pebbleRecord struct {
	ID         int64  `json:"id"`
	PlayerName string `json:"player_name"`
	Score      int64  `json:"score"`
	RecordedAt int64  `json:"recorded_at_us"`
}

// OpenPebbleRepository opens (or creates) the database at path and restores the ID sequence.
func OpenPebbleRepository(path string, logger *zap.Logger) (*PebbleRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := pebble.Open(path, &pebble.Options{Logger: &pebbleLogger{logger}})
	if err != nil {
		return nil, fmt.Errorf("pebble open %s: %w", path, err)
	}
	r := &PebbleRepository{db: db, path: path, logger: logger}

	value, closer, err := db.Get(seqKey)
	switch {
	case errors.Is(err, pebble.ErrNotFound):
	case err != nil:
		_ = db.Close()
		return nil, fmt.Errorf("pebble get sequence: %w", err)
	default:
		if len(value) == 8 {
			r.seq.Store(int64(binary.BigEndian.Uint64(value)))
		}
		_ = closer.Close()
	}

	logger.Info("Pebble leaderboard opened", zap.String("path", path), zap.Int64("last_id", r.seq.Load()))
	return r, nil
}

// Close flushes and closes the database.
func (r *PebbleRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *PebbleRepository) Append(ctx context.Context, record leaderboard.ScoreRecord) (leaderboard.ScoreRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.seq.Load() + 1
	record.ID = shared.ScoreID(id)
	record.RecordedAt = leaderboard.Timestamp(record.RecordedAt)

	data, err := json.Marshal(pebbleRecord{
		ID:         id,
		PlayerName: string(record.PlayerName),
		Score:      record.Score,
		RecordedAt: record.RecordedAt.UnixMicro(),
	})
	if err != nil {
		return leaderboard.ScoreRecord{}, fmt.Errorf("marshal: %w", err)
	}

	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], uint64(id))

	batch := r.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(rankKey(record), data, nil); err != nil {
		return leaderboard.ScoreRecord{}, fmt.Errorf("pebble batch set: %w", err)
	}
	if err := batch.Set(seqKey, seq[:], nil); err != nil {
		return leaderboard.ScoreRecord{}, fmt.Errorf("pebble batch set: %w", err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return leaderboard.ScoreRecord{}, fmt.Errorf("pebble commit: %w", err)
	}
	r.seq.Store(id)
	return record, nil
}

func (r *PebbleRepository) Top(ctx context.Context, limit int) ([]leaderboard.ScoreRecord, error) {
	out := make([]leaderboard.ScoreRecord, 0, max(limit, 0))
	if limit <= 0 {
		return out, nil
	}

	iter, err := r.db.NewIter(&pebble.IterOptions{LowerBound: rankPrefix, UpperBound: rankEnd})
	if err != nil {
		return nil, fmt.Errorf("pebble iter: %w", err)
	}
	for iter.First(); iter.Valid() && len(out) < limit; iter.Next() {
		var stored pebbleRecord
		if err := json.Unmarshal(iter.Value(), &stored); err != nil {
			_ = iter.Close()
			return nil, fmt.Errorf("unmarshal %x: %w", iter.Key(), err)
		}
		out = append(out, leaderboard.ScoreRecord{
			ID:         shared.ScoreID(stored.ID),
			PlayerName: shared.PlayerName(stored.PlayerName),
			Score:      stored.Score,
			RecordedAt: time.UnixMicro(stored.RecordedAt).UTC(),
		})
	}
	if err := iter.Error(); err != nil {
		_ = iter.Close()
		return nil, fmt.Errorf("pebble iter: %w", err)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("pebble iter close: %w", err)
	}
	return out, nil
}

// rankKey encodes (score desc, recorded_at asc, id asc) so byte order equals leaderboard.Ranked.
func rankKey(record leaderboard.ScoreRecord) []byte {
	key := make([]byte, 0, len(rankPrefix)+24)
	key = append(key, rankPrefix...)
	key = binary.BigEndian.AppendUint64(key, ^orderedUint(record.Score))
	key = binary.BigEndian.AppendUint64(key, orderedUint(record.RecordedAt.UnixMicro()))
	key = binary.BigEndian.AppendUint64(key, uint64(record.ID))
	return key
}

// orderedUint maps int64 onto uint64 preserving order.
func orderedUint(v int64) uint64 {
	return uint64(v) ^ (1 << 63)
}

// pebbleLogger adapts zap.Logger to the pebble.Logger interface.
type pebbleLogger struct {
	z *zap.Logger
}

func (l *pebbleLogger) Infof(format string, args ...any) {
	l.z.Sugar().Infof(format, args...)
}

func (l *pebbleLogger) Errorf(format string, args ...any) {
	l.z.Sugar().Errorf(format, args...)
}

func (l *pebbleLogger) Fatalf(format string, args ...any) {
	l.z.Sugar().Fatalf(format, args...)
}
