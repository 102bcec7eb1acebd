package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/uber-go/tally/v4"
	"go.uber.org/zap"

	domain "github.com/multitask/scoreboard/src/domain/leaderboard"
	"github.com/multitask/scoreboard/src/domain/shared"
)

const (
	DefaultMaxDrift = time.Hour
	DefaultTopLimit = 10
)

type Repository interface {
	domain.Repository
}

// Verifier checks a claimed signature against the submission fields.
type Verifier interface {
	Verify(playerName string, score, timestamp int64, claimed string) bool
}

// Policy holds the freshness window and leaderboard size.
type Policy struct {
	MaxDrift time.Duration
	TopLimit int
}

func DefaultPolicy() Policy {
	return Policy{MaxDrift: DefaultMaxDrift, TopLimit: DefaultTopLimit}
}

// Service gates leaderboard writes behind signature and freshness checks.
type Service struct {
	Repo     Repository
	Verifier Verifier
	Policy   Policy
	Logger   *zap.Logger
	Metrics  tally.Scope
	Clock    func() time.Time
}

func NewService(repo Repository, verifier Verifier, logger *zap.Logger, scope tally.Scope, policy Policy) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if scope == nil {
		scope = tally.NoopScope
	}
	if policy.MaxDrift <= 0 {
		policy.MaxDrift = DefaultMaxDrift
	}
	if policy.TopLimit <= 0 {
		policy.TopLimit = DefaultTopLimit
	}
	return &Service{
		Repo:     repo,
		Verifier: verifier,
		Policy:   policy,
		Logger:   logger,
		Metrics:  scope,
		Clock:    func() time.Time { return time.Now().UTC() },
	}
}

type SubmitCommand struct {
	PlayerName shared.PlayerName
	Score      int64
	Timestamp  int64
	Signature  string
}

type SubmitResult struct {
	Acknowledged bool
	Record       domain.ScoreRecord
}

// Submit verifies, freshness-checks and persists a single submission. Rejections are final
// and are never retried here.
func (s *Service) Submit(ctx context.Context, cmd SubmitCommand) (SubmitResult, error) {
	result, err := s.submit(ctx, cmd)
	s.Metrics.Tagged(map[string]string{"outcome": string(domain.Classify(err))}).Counter("submissions").Inc(1)
	return result, err
}

func (s *Service) submit(ctx context.Context, cmd SubmitCommand) (SubmitResult, error) {
	submission := domain.Submission{
		PlayerName: cmd.PlayerName,
		Score:      cmd.Score,
		Timestamp:  cmd.Timestamp,
		Signature:  cmd.Signature,
	}
	fields := []zap.Field{
		zap.String("player_name", string(submission.PlayerName)),
		zap.Int64("score", submission.Score),
		zap.Int64("timestamp", submission.Timestamp),
	}

	if err := submission.Validate(); err != nil {
		s.Logger.Warn("[BAD_REQUEST] rejected submission", append(fields, zap.Error(err))...)
		return SubmitResult{}, fmt.Errorf("%w: %v", domain.ErrInvalidSubmission, err)
	}

	if !s.Verifier.Verify(string(submission.PlayerName), submission.Score, submission.Timestamp, submission.Signature) {
		s.Logger.Warn("[SECURITY] signature mismatch", fields...)
		return SubmitResult{}, domain.ErrInvalidSignature
	}

	now := s.Clock()
	if !s.fresh(now, submission.Timestamp) {
		s.Logger.Warn("[BAD_REQUEST] timestamp outside freshness window", append(fields, zap.Int64("server_time", now.Unix()))...)
		return SubmitResult{}, fmt.Errorf("%w: %d is more than %s away from %d",
			domain.ErrStaleSubmission, submission.Timestamp, s.Policy.MaxDrift, now.Unix())
	}

	stored, err := s.Repo.Append(ctx, domain.NewScoreRecord(submission, now))
	if err != nil {
		s.Logger.Error("failed to persist score", append(fields, zap.Error(err))...)
		return SubmitResult{}, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}

	s.Logger.Info("score saved", append(fields, zap.Int64("score_id", int64(stored.ID)))...)
	return SubmitResult{Acknowledged: true, Record: stored}, nil
}

// fresh reports whether ts lies within MaxDrift of now. The window bounds are compared
// directly so timestamps near the int64 limits cannot wrap around.
func (s *Service) fresh(now time.Time, ts int64) bool {
	nowUnix := now.Unix()
	maxDrift := int64(s.Policy.MaxDrift / time.Second)
	return ts >= nowUnix-maxDrift && ts <= nowUnix+maxDrift
}

// Top returns the current leaderboard, at most Policy.TopLimit records.
func (s *Service) Top(ctx context.Context) ([]domain.ScoreRecord, error) {
	records, err := s.Repo.Top(ctx, s.Policy.TopLimit)
	if err != nil {
		s.Logger.Error("failed to load leaderboard", zap.Error(err))
		s.Metrics.Counter("top_failures").Inc(1)
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	if len(records) > s.Policy.TopLimit {
		records = records[:s.Policy.TopLimit]
	}
	return records, nil
}
