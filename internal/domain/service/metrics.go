package service

// Outcome labels recorded by AuthMetrics.
const (
	OutcomeSuccess      = "success"
	OutcomeConflict     = "conflict"
	OutcomeUnauthorized = "unauthorized"
	OutcomeNotFound     = "not_found"
	OutcomeInvalid      = "invalid"
	OutcomeError        = "error"
)

// AuthMetrics records the outcome of each authentication operation.
type AuthMetrics interface {
	RecordAttempt(operation, outcome string)
}
