package job

import "unicode/utf8"

// MaxReasonLength bounds stored failure reasons, in runes.
const MaxReasonLength = 500

// Outcome is the state a job moves to after a failed attempt.
type Outcome string

const (
	// OutcomeRetry keeps the job non-terminal with an incremented counter.
	OutcomeRetry Outcome = "retry"
	// OutcomeExhausted makes the job terminal FAILED after its last retry.
	OutcomeExhausted Outcome = "exhausted"
	// OutcomePermanent makes the job terminal FAILED without consuming a retry.
	OutcomePermanent Outcome = "permanent"
)

// RetryDecision is the result of evaluating a failed attempt.
type RetryDecision struct {
	Outcome Outcome
	// Attempts is the retry counter to persist.
	Attempts int
}

// Terminal reports whether the decision ends processing of the job.
func (d RetryDecision) Terminal() bool {
	return d.Outcome != OutcomeRetry
}

// RetryPolicy applies the retry ceiling.
type RetryPolicy struct {
	MaxRetries int
}

// Decide evaluates a failure for a job that has already used attempts retries.
// Permanent failures never consume a retry. A ceiling below one is treated as one.
func (p RetryPolicy) Decide(attempts int, permanent bool) RetryDecision {
	if permanent {
		return RetryDecision{Outcome: OutcomePermanent, Attempts: attempts}
	}
	limit := p.MaxRetries
	if limit < 1 {
		limit = 1
	}
	next := attempts + 1
	if next >= limit {
		return RetryDecision{Outcome: OutcomeExhausted, Attempts: limit}
	}
	return RetryDecision{Outcome: OutcomeRetry, Attempts: next}
}

// TruncateReason shortens reason to MaxReasonLength runes.
func TruncateReason(reason string) string {
	if utf8.RuneCountInString(reason) <= MaxReasonLength {
		return reason
	}
	r := []rune(reason)
	return string(r[:MaxReasonLength])
}
