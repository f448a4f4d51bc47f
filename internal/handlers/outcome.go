// Package handlers defines the handler framework: per-handler WorkerConfig,
// the tagged HandlerOutcome result that replaces exception-based control
// flow, authorization gates, and the build-time registration list the
// WorkerPool assembles Workers from.
package handlers

import "github.com/google/uuid"

// Outcome is a tagged result a Handle/HandleBatch call returns in place of
// raising an exception. The Worker pattern-matches on Kind instead of
// catching errors.
type Outcome struct {
	Kind   OutcomeKind
	Skip   SkipDetail
	FailErr error
}

// OutcomeKind discriminates the Outcome variants.
type OutcomeKind int

const (
	// Ok means every delivery in the batch should be marked delivered.
	Ok OutcomeKind = iota
	// SkipKind means the deliveries named in Skip.IDs should be marked
	// skipped (permanent, not retried); any deliveries in the batch not
	// named are marked delivered.
	SkipKind
	// FailKind means the whole batch failed transiently and every delivery
	// should go through mark_failed_with_retry.
	FailKind
)

// SkipDetail names the deliveries a SkipKind outcome permanently skips, and
// why.
type SkipDetail struct {
	IDs    []uuid.UUID
	Reason string
}

// OutcomeOk reports success for the whole batch.
func OutcomeOk() Outcome { return Outcome{Kind: Ok} }

// OutcomeSkip reports a permanent, non-retryable business failure for the
// given delivery ids: those deliveries are marked skipped rather than
// retried, and the rest of the batch is marked delivered.
func OutcomeSkip(ids []uuid.UUID, reason string) Outcome {
	return Outcome{Kind: SkipKind, Skip: SkipDetail{IDs: ids, Reason: reason}}
}

// OutcomeFail reports a transient failure for the whole batch, to be
// retried via mark_failed_with_retry.
func OutcomeFail(err error) Outcome {
	return Outcome{Kind: FailKind, FailErr: err}
}
