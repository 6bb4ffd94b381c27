package validation

// WebhookRequest is the payload for POST /webhook. Text length has an upper
// bound too, but that is a guard concern checked after binding so the limit
// stays configurable.
type WebhookRequest struct {
	MessageID string         `json:"message_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	Text      string         `json:"text" validate:"required,min=1"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ApproveRequest is the payload for POST /approve. Approved is a pointer so
// an omitted field defaults to true rather than silently rejecting.
type ApproveRequest struct {
	PendingID string `json:"pending_id" validate:"required"`
	Approved  *bool  `json:"approved,omitempty"`
	Reviewer  string `json:"reviewer,omitempty"`
}

// IsApproved resolves the Approved default.
func (r ApproveRequest) IsApproved() bool {
	return r.Approved == nil || *r.Approved
}
