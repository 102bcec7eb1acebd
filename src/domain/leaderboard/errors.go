package leaderboard

import "errors"

var (
	ErrInvalidSubmission = errors.New("invalid submission")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrStaleSubmission   = errors.New("invalid timestamp")
	ErrPersistence       = errors.New("score persistence failed")
)

// Outcome classifies the result of a submission for logging, metrics and transport mapping.
type Outcome string

const (
	OutcomeAccepted              Outcome = "accepted"
	OutcomeInvalidInput          Outcome = "invalid_input"
	OutcomeAuthenticationFailure Outcome = "authentication_failure"
	OutcomeStaleOrFuture         Outcome = "stale_or_future"
	OutcomePersistenceFailure    Outcome = "persistence_failure"
)

// Classify maps a Submit error onto an Outcome. Unknown errors are treated as persistence
// failures so they surface as server-side faults.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeAccepted
	case errors.Is(err, ErrInvalidSubmission):
		return OutcomeInvalidInput
	case errors.Is(err, ErrInvalidSignature):
		return OutcomeAuthenticationFailure
	case errors.Is(err, ErrStaleSubmission):
		return OutcomeStaleOrFuture
	default:
		return OutcomePersistenceFailure
	}
}
