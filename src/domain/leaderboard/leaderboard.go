package leaderboard

import (
	"time"

	"github.com/multitask/scoreboard/src/domain/shared"
)

// Submission is a client-claimed score awaiting authentication. It is never stored as-is.
type Submission struct {
	PlayerName shared.PlayerName
	Score      int64
	Timestamp  int64 // unix seconds, as signed by the client
	Signature  string
}

func (s Submission) Validate() error {
	if err := s.PlayerName.Validate(); err != nil {
		return err
	}
	return nil
}

// ScoreRecord is an accepted score. ID is assigned by the repository on append and RecordedAt
// by the server at acceptance time; neither changes afterwards.
type ScoreRecord struct {
	ID         shared.ScoreID
	PlayerName shared.PlayerName
	Score      int64
	RecordedAt time.Time
}

// NewScoreRecord builds an unsaved record from an authenticated submission.
func NewScoreRecord(s Submission, now time.Time) ScoreRecord {
	return ScoreRecord{
		PlayerName: s.PlayerName,
		Score:      s.Score,
		RecordedAt: Timestamp(now),
	}
}

// Timestamp normalizes t to the precision every repository can round-trip.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// Ranked reports whether a sorts before b on the leaderboard: higher score first, then the
// earlier RecordedAt, then the lower ID.
func Ranked(a, b ScoreRecord) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.RecordedAt.Equal(b.RecordedAt) {
		return a.RecordedAt.Before(b.RecordedAt)
	}
	return a.ID < b.ID
}
