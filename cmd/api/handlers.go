package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	leaderboardsvc "github.com/multitask/scoreboard/src/app/leaderboard"
	"github.com/multitask/scoreboard/src/domain/leaderboard"
	"github.com/multitask/scoreboard/src/domain/shared"
)

const (
	signatureHeader = "X-Signature"
	// dateTimeLayout is the UTC wall-clock format older game clients send instead of timestamp.
	dateTimeLayout = "2006-01-02T15:04:05"

	maxSubmitBodyBytes = 4 << 10
	// retryAfterSeconds is sent with 503 responses caused by an unavailable store.
	retryAfterSeconds = "5"
)

var errTimestampRequired = errors.New("timestamp or dateTime is required")

type SubmitScoreRequest struct {
	PlayerName string `json:"playerName"`
	Score      int64  `json:"score"`
	Timestamp  *int64 `json:"timestamp,omitempty"`
	DateTime   string `json:"dateTime,omitempty"`
	Signature  string `json:"signature,omitempty"`
}

// unixTimestamp resolves the signed timestamp, preferring the explicit field.
func (req SubmitScoreRequest) unixTimestamp() (int64, error) {
	if req.Timestamp != nil {
		return *req.Timestamp, nil
	}
	if req.DateTime == "" {
		return 0, errTimestampRequired
	}
	t, err := time.ParseInLocation(dateTimeLayout, req.DateTime, time.UTC)
	if err != nil {
		return 0, fmt.Errorf("invalid dateTime: %w", err)
	}
	return t.Unix(), nil
}

type SubmitScoreResponse struct {
	Accepted bool `json:"accepted"`
}

type ScoreResponse struct {
	PlayerName string    `json:"playerName"`
	Score      int64     `json:"score"`
	RecordedAt time.Time `json:"recordedAt"`
	DateTime   string    `json:"dateTime"`
}

func (s *Server) handleSubmitScore(w http.ResponseWriter, r *http.Request) {
	var req SubmitScoreRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxSubmitBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	timestamp, err := req.unixTimestamp()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	sig := r.Header.Get(signatureHeader)
	if sig == "" {
		sig = req.Signature
	}

	_, err = s.cfg.LeaderboardService.Submit(r.Context(), leaderboardsvc.SubmitCommand{
		PlayerName: shared.PlayerName(req.PlayerName),
		Score:      req.Score,
		Timestamp:  timestamp,
		Signature:  sig,
	})
	if err != nil {
		s.writeError(w, statusForError(err), err)
		return
	}
	s.live.publish()
	s.writeJSON(w, http.StatusCreated, SubmitScoreResponse{Accepted: true})
}

func (s *Server) handleTopScores(w http.ResponseWriter, r *http.Request) {
	out, err := s.topScores(r.Context())
	if err != nil {
		s.writeError(w, statusForError(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) topScores(ctx context.Context) ([]ScoreResponse, error) {
	records, err := s.cfg.LeaderboardService.Top(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ScoreResponse, 0, len(records))
	for _, record := range records {
		out = append(out, ScoreResponse{
			PlayerName: string(record.PlayerName),
			Score:      record.Score,
			RecordedAt: record.RecordedAt,
			DateTime:   record.RecordedAt.UTC().Format(dateTimeLayout),
		})
	}
	return out, nil
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

// statusForError maps service errors to HTTP status codes. Storage outages become 503 so
// clients know the request may succeed later.
func statusForError(err error) int {
	if errors.Is(err, shared.ErrUnavailable) {
		return http.StatusServiceUnavailable
	}
	return statusForOutcome(leaderboard.Classify(err))
}

func statusForOutcome(outcome leaderboard.Outcome) int {
	switch outcome {
	case leaderboard.OutcomeAccepted:
		return http.StatusCreated
	case leaderboard.OutcomeInvalidInput, leaderboard.OutcomeStaleOrFuture:
		return http.StatusBadRequest
	case leaderboard.OutcomeAuthenticationFailure:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
