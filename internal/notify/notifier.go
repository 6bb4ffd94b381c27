// Package notify delivers pending-approval notifications to the review
// channel. The channel is best-effort: a failed send is logged as
// approval_notify_failed and never fails the triage request. Approval
// correctness lives entirely in the pending store.
package notify

import (
	"context"

	"github.com/gdevlabs/triage-agent/internal/triage"
)

// Notifier announces a newly created pending decision.
type Notifier interface {
	NotifyPending(ctx context.Context, decision triage.PendingDecision, classification triage.ClassificationResult) error
}

// Noop discards notifications; used when no queue is configured.
type Noop struct{}

func (Noop) NotifyPending(context.Context, triage.PendingDecision, triage.ClassificationResult) error {
	return nil
}
