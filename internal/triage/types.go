// Package triage holds the domain values shared across the service:
// classification results, proposed actions, and pending decisions.
package triage

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Category is the fixed set of support-request categories.
type Category string

const (
	CategoryBugReport        Category = "bug_report"
	CategoryBilling          Category = "billing"
	CategoryAccountAccess    Category = "account_access"
	CategoryCheaterReport    Category = "cheater_report"
	CategoryGameplayQuestion Category = "gameplay_question"
	CategoryOther            Category = "other"
)

// ValidCategory reports whether c is a known category.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryBugReport, CategoryBilling, CategoryAccountAccess,
		CategoryCheaterReport, CategoryGameplayQuestion, CategoryOther:
		return true
	}
	return false
}

// Urgency levels in ascending severity.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// ValidUrgency reports whether u is a known urgency level.
func ValidUrgency(u Urgency) bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

// ClassificationResult is the output of the external classification step.
type ClassificationResult struct {
	Category   Category `json:"category"`
	Urgency    Urgency  `json:"urgency"`
	Confidence float64  `json:"confidence"`
}

// ExtractedFields holds structured entities pulled from free-form text.
type ExtractedFields struct {
	UserID           string   `json:"user_id,omitempty"`
	Platform         string   `json:"platform"`
	GameTitle        string   `json:"game_title,omitempty"`
	TransactionID    string   `json:"transaction_id,omitempty"`
	ErrorCode        string   `json:"error_code,omitempty"`
	ReportedUsername string   `json:"reported_username,omitempty"`
	Keywords         []string `json:"keywords,omitempty"`
}

// ProposedAction is an action the agent intends to perform. Values are
// immutable by convention: stages that need to change one derive a new value
// with WithOverride instead of mutating in place.
type ProposedAction struct {
	Tool       string         `json:"tool"`
	Payload    map[string]any `json:"payload"`
	Risky      bool           `json:"risky"`
	RiskReason string         `json:"risk_reason,omitempty"`
}

// WithOverride returns a copy of a with the tool and risk fields replaced.
// The payload map is cloned so the original action is never aliased.
func (a ProposedAction) WithOverride(tool string, risky bool, reason string) ProposedAction {
	payload := make(map[string]any, len(a.Payload))
	for k, v := range a.Payload {
		payload[k] = v
	}
	return ProposedAction{
		Tool:       tool,
		Payload:    payload,
		Risky:      risky,
		RiskReason: reason,
	}
}

// PendingDecision is a held action awaiting human approval. It is stored as
// JSON so ExpiresAt round-trips with its timezone intact.
type PendingDecision struct {
	PendingID     string         `json:"pending_id"`
	Reason        string         `json:"reason"`
	UserID        string         `json:"user_id,omitempty"`
	ExpiresAt     time.Time      `json:"expires_at"`
	Action        ProposedAction `json:"action"`
	DraftResponse string         `json:"draft_response"`
}

// NewPendingID returns a fresh 128-bit token rendered as 32 lowercase hex
// characters. Tokens are never reused; entropy makes collisions a non-concern.
func NewPendingID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}
