package leaderboard_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/multitask/scoreboard/src/domain/leaderboard"
	"github.com/multitask/scoreboard/src/domain/shared"
)

var baseTime = time.Date(2024, 3, 9, 16, 0, 0, 0, time.UTC)

func record(name string, score int64, offset time.Duration) leaderboard.ScoreRecord {
	return leaderboard.ScoreRecord{
		PlayerName: shared.PlayerName(name),
		Score:      score,
		RecordedAt: baseTime.Add(offset),
	}
}

// testRepositoryContract runs the behaviour every leaderboard.Repository must share.
func testRepositoryContract(t *testing.T, newRepo func(t *testing.T) leaderboard.Repository) {
	ctx := context.Background()

	t.Run("append assigns ids", func(t *testing.T) {
		repo := newRepo(t)
		first, err := repo.Append(ctx, record("Ana", 200, 0))
		require.NoError(t, err)
		second, err := repo.Append(ctx, record("Luis", 180, 0))
		require.NoError(t, err)

		assert.NoError(t, first.ID.Validate())
		assert.NoError(t, second.ID.Validate())
		assert.NotEqual(t, first.ID, second.ID)
		assert.Equal(t, shared.PlayerName("Ana"), first.PlayerName)
		assert.True(t, first.RecordedAt.Equal(baseTime))
	})

	t.Run("stores long player names", func(t *testing.T) {
		repo := newRepo(t)
		name := strings.Repeat("n", 300)
		stored, err := repo.Append(ctx, record(name, 42, 0))
		require.NoError(t, err)

		top, err := repo.Top(ctx, 10)
		require.NoError(t, err)
		require.Len(t, top, 1)
		assert.Equal(t, stored.ID, top[0].ID)
		assert.Equal(t, shared.PlayerName(name), top[0].PlayerName)
	})

	t.Run("top orders by score descending", func(t *testing.T) {
		repo := newRepo(t)
		for _, r := range []leaderboard.ScoreRecord{
			record("Luis", 180, 0),
			record("Ana", 200, 0),
			record("Neg", -5, 0),
			record("Zed", 0, 0),
		} {
			_, err := repo.Append(ctx, r)
			require.NoError(t, err)
		}

		top, err := repo.Top(ctx, 10)
		require.NoError(t, err)
		require.Len(t, top, 4)
		assert.Equal(t, []int64{200, 180, 0, -5}, scores(top))
		assert.Equal(t, shared.PlayerName("Ana"), top[0].PlayerName)
	})

	t.Run("ties break on recorded_at then id", func(t *testing.T) {
		repo := newRepo(t)
		late, err := repo.Append(ctx, record("Late", 100, time.Minute))
		require.NoError(t, err)
		early1, err := repo.Append(ctx, record("Early1", 100, 0))
		require.NoError(t, err)
		early2, err := repo.Append(ctx, record("Early2", 100, 0))
		require.NoError(t, err)

		top, err := repo.Top(ctx, 10)
		require.NoError(t, err)
		require.Len(t, top, 3)
		assert.Equal(t, []shared.ScoreID{early1.ID, early2.ID, late.ID}, ids(top))

		again, err := repo.Top(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, ids(top), ids(again))
	})

	t.Run("top respects limit", func(t *testing.T) {
		repo := newRepo(t)
		for i := 0; i < 15; i++ {
			_, err := repo.Append(ctx, record(fmt.Sprintf("p%d", i), int64(i), 0))
			require.NoError(t, err)
		}

		top, err := repo.Top(ctx, 10)
		require.NoError(t, err)
		require.Len(t, top, 10)
		assert.Equal(t, int64(14), top[0].Score)
		assert.Equal(t, int64(5), top[9].Score)

		none, err := repo.Top(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("concurrent appends", func(t *testing.T) {
		repo := newRepo(t)
		const k = 64

		var wg sync.WaitGroup
		results := make(chan shared.ScoreID, k)
		errs := make(chan error, 1024)
		for i := 0; i < k; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				stored, err := repo.Append(ctx, record(fmt.Sprintf("p%d", i), int64(i%7), 0))
				if err != nil {
					errs <- err
					return
				}
				results <- stored.ID
			}(i)
		}
		// Readers run alongside writers and must only ever see complete, ordered records.
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				top, err := repo.Top(ctx, 10)
				if err != nil {
					errs <- err
					return
				}
				for j := range top {
					if top[j].ID == 0 || top[j].PlayerName == "" {
						errs <- fmt.Errorf("partial record %+v", top[j])
					}
					if j > 0 && top[j-1].Score < top[j].Score {
						errs <- fmt.Errorf("unordered top: %v", scores(top))
					}
				}
			}()
		}
		wg.Wait()
		close(results)
		close(errs)

		for err := range errs {
			t.Error(err)
		}
		seen := make(map[shared.ScoreID]struct{}, k)
		for id := range results {
			_, dup := seen[id]
			assert.False(t, dup, "duplicate id %d", id)
			seen[id] = struct{}{}
		}
		assert.Len(t, seen, k)

		all, err := repo.Top(ctx, k*2)
		require.NoError(t, err)
		assert.Len(t, all, k)
	})
}

func scores(records []leaderboard.ScoreRecord) []int64 {
	out := make([]int64, 0, len(records))
	for _, r := range records {
		out = append(out, r.Score)
	}
	return out
}

func ids(records []leaderboard.ScoreRecord) []shared.ScoreID {
	out := make([]shared.ScoreID, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}
