// Package nakama exposes the signed leaderboard as Nakama runtime RPCs, backed by the
// server's own database.
package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/heroiclabs/nakama-common/runtime"

	leaderboardsvc "github.com/multitask/scoreboard/src/app/leaderboard"
	"github.com/multitask/scoreboard/src/domain/leaderboard"
	"github.com/multitask/scoreboard/src/domain/shared"
	"github.com/multitask/scoreboard/src/domain/signature"
	infra "github.com/multitask/scoreboard/src/infra/leaderboard"
)

const (
	RPCSubmitScore = "submit_score"
	RPCTopScores   = "top_scores"

	secretEnvKey = "SCORE_SECRET"
)

// gRPC status codes understood by Nakama runtime errors.
const (
	codeInvalidArgument = 3
	codeInternal        = 13
	codeUnavailable     = 14
	codeUnauthenticated = 16
)

// InitModule registers the score RPCs. The shared secret is read from the runtime env.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)
	auth, err := signature.NewAuthenticator(env[secretEnvKey])
	if err != nil {
		return err
	}

	repo := infra.NewPostgresRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}

	service := leaderboardsvc.NewService(repo, auth, NewRuntimeLogger(logger).Named("scoreboard"), nil, leaderboardsvc.DefaultPolicy())
	module := NewModule(service)

	if err := initializer.RegisterRpc(RPCSubmitScore, module.SubmitScore); err != nil {
		return err
	}
	if err := initializer.RegisterRpc(RPCTopScores, module.TopScores); err != nil {
		return err
	}
	logger.Info("scoreboard runtime module registered")
	return nil
}

// Module adapts the leaderboard service to Nakama RPC handlers.
type Module struct {
	service *leaderboardsvc.Service
}

func NewModule(service *leaderboardsvc.Service) *Module {
	return &Module{service: service}
}

type submitScorePayload struct {
	PlayerName string `json:"playerName"`
	Score      int64  `json:"score"`
	Timestamp  int64  `json:"timestamp"`
	Signature  string `json:"signature"`
}

type submitScoreResult struct {
	Accepted bool  `json:"accepted"`
	ID       int64 `json:"id"`
}

type scoreEntry struct {
	PlayerName string `json:"playerName"`
	Score      int64  `json:"score"`
	RecordedAt int64  `json:"recordedAt"`
}

// SubmitScore handles RPCSubmitScore. When the payload omits playerName the caller's
// username is used, and it must still match what the client signed.
func (m *Module) SubmitScore(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var in submitScorePayload
	if err := json.Unmarshal([]byte(payload), &in); err != nil {
		return "", runtime.NewError("invalid payload", codeInvalidArgument)
	}
	if in.PlayerName == "" {
		in.PlayerName, _ = ctx.Value(runtime.RUNTIME_CTX_USERNAME).(string)
	}

	result, err := m.service.Submit(ctx, leaderboardsvc.SubmitCommand{
		PlayerName: shared.PlayerName(in.PlayerName),
		Score:      in.Score,
		Timestamp:  in.Timestamp,
		Signature:  in.Signature,
	})
	if err != nil {
		return "", runtimeError(err)
	}

	out, err := json.Marshal(submitScoreResult{Accepted: true, ID: int64(result.Record.ID)})
	if err != nil {
		return "", runtime.NewError("failed to encode response", codeInternal)
	}
	return string(out), nil
}

// TopScores handles RPCTopScores.
func (m *Module) TopScores(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	records, err := m.service.Top(ctx)
	if err != nil {
		return "", runtimeError(err)
	}
	entries := make([]scoreEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, scoreEntry{
			PlayerName: string(r.PlayerName),
			Score:      r.Score,
			RecordedAt: r.RecordedAt.Unix(),
		})
	}
	out, err := json.Marshal(entries)
	if err != nil {
		return "", runtime.NewError("failed to encode response", codeInternal)
	}
	return string(out), nil
}

func runtimeError(err error) error {
	switch leaderboard.Classify(err) {
	case leaderboard.OutcomeAuthenticationFailure:
		return runtime.NewError("invalid signature", codeUnauthenticated)
	case leaderboard.OutcomeInvalidInput, leaderboard.OutcomeStaleOrFuture:
		return runtime.NewError(err.Error(), codeInvalidArgument)
	}
	if errors.Is(err, shared.ErrUnavailable) {
		return runtime.NewError("score storage unavailable, retry later", codeUnavailable)
	}
	if errors.Is(err, leaderboard.ErrPersistence) {
		return runtime.NewError("failed to store score", codeInternal)
	}
	return runtime.NewError("internal error", codeInternal)
}
