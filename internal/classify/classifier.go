// Package classify talks to the external classification service. The LLM
// tool-calling loop is the service's problem; from here it is a black box
// returning a classification, extracted entities, and an optional draft.
package classify

import (
	"context"
	"errors"

	"github.com/gdevlabs/triage-agent/internal/triage"
)

// ErrClassification wraps any classification failure. Retriable by the
// external caller; the orchestrator guarantees it only ever occurs before a
// pending decision has been durably stored.
var ErrClassification = errors.New("classification failed")

// Result bundles everything the classification step produces.
type Result struct {
	Classification triage.ClassificationResult `json:"classification"`
	Extracted      triage.ExtractedFields      `json:"extracted"`
	DraftText      string                      `json:"draft_text,omitempty"`
}

// Classifier classifies a support message.
type Classifier interface {
	Classify(ctx context.Context, text, userID string) (*Result, error)
}
