// Package agent coordinates the triage flow: guard the input, classify it,
// evaluate risk, then either execute the proposed action or hold it for
// approval. It also resolves approvals by consuming pending decisions.
package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gdevlabs/triage-agent/internal/approval"
	"github.com/gdevlabs/triage-agent/internal/classify"
	"github.com/gdevlabs/triage-agent/internal/config"
	"github.com/gdevlabs/triage-agent/internal/events"
	"github.com/gdevlabs/triage-agent/internal/guard"
	"github.com/gdevlabs/triage-agent/internal/notify"
	"github.com/gdevlabs/triage-agent/internal/tools"
	"github.com/gdevlabs/triage-agent/internal/triage"
)

// ErrPendingNotFound is the terminal signal for an unknown, expired, or
// already-consumed pending id. Callers must not retry it.
var ErrPendingNotFound = errors.New("pending_id not found")

// ErrOutputBlocked signals the output guard refused the draft response.
var ErrOutputBlocked = errors.New("output guard blocked response")

// WebhookInput is the triage request after HTTP binding and validation.
type WebhookInput struct {
	MessageID string
	UserID    string
	Text      string
	Metadata  map[string]any
}

// WebhookResponse is the body returned by POST /webhook. ActionResult and
// Pending are mutually exclusive; the inactive one serializes as null.
type WebhookResponse struct {
	Status         string                      `json:"status"`
	Classification triage.ClassificationResult `json:"classification"`
	Extracted      triage.ExtractedFields      `json:"extracted"`
	Action         triage.ProposedAction       `json:"action"`
	DraftResponse  string                      `json:"draft_response"`
	ActionResult   map[string]any              `json:"action_result"`
	Pending        *triage.PendingDecision     `json:"pending"`
}

// ApproveResponse is the body returned by POST /approve.
type ApproveResponse struct {
	Status    string         `json:"status"`
	PendingID string         `json:"pending_id"`
	Result    map[string]any `json:"result"`
}

// Service wires the triage pipeline together. All collaborators are injected;
// the service keeps no mutable state of its own.
type Service struct {
	cfg        config.Config
	riskCfg    triage.RiskConfig
	outputCfg  guard.OutputConfig
	classifier classify.Classifier
	approvals  *approval.Store
	registry   *tools.Registry
	events     *events.Store
	notifier   notify.Notifier
	logger     *slog.Logger
	nowFunc    func() time.Time
}

// NewService assembles a Service from its collaborators.
func NewService(
	cfg config.Config,
	classifier classify.Classifier,
	approvals *approval.Store,
	registry *tools.Registry,
	eventStore *events.Store,
	notifier notify.Notifier,
	logger *slog.Logger,
) *Service {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg: cfg,
		riskCfg: triage.RiskConfig{
			ApprovalCategories:   cfg.ApprovalCategories,
			AutoApproveThreshold: cfg.AutoApproveThreshold,
			LegalRiskKeywords:    cfg.LegalRiskKeywords,
		},
		outputCfg: guard.OutputConfig{
			Enabled:      cfg.OutputGuardEnabled,
			URLAllowlist: cfg.URLAllowlist,
			URLBehavior:  cfg.OutputURLBehavior,
		},
		classifier: classifier,
		approvals:  approvals,
		registry:   registry,
		events:     eventStore,
		notifier:   notifier,
		logger:     logger,
		nowFunc:    time.Now,
	}
}

// ProcessWebhook runs the full flow for one inbound message. Transitions:
// guard failure stops everything; classification failure is retriable by the
// caller and always happens before any pending decision is stored; after that
// the request ends either executed or pending.
func (s *Service) ProcessWebhook(ctx context.Context, in WebhookInput) (*WebhookResponse, error) {
	start := s.nowFunc()

	if err := guard.CheckInput(in.Text, s.cfg.MaxInputLength); err != nil {
		return nil, err
	}

	triageResult, err := s.classifier.Classify(ctx, in.Text, in.UserID)
	if err != nil {
		return nil, err
	}
	classification := triageResult.Classification

	action, draft := s.proposeAction(in, triageResult)

	guardResult := guard.ScanOutput(draft, classification.Confidence, action, s.outputCfg)
	if guardResult.Blocked {
		return nil, fmt.Errorf("%w: %s", ErrOutputBlocked, guardResult.Reason)
	}
	if guardResult.RedactedDraft != draft {
		s.logger.InfoContext(ctx, "output redacted",
			slog.String("event", "output_guard_redacted"))
	}
	draft = guardResult.RedactedDraft
	if guardResult.Override != nil {
		action = *guardResult.Override
	}

	if action.Risky {
		return s.holdForApproval(ctx, in, classification, triageResult.Extracted, action, draft, start)
	}

	result, err := s.execute(ctx, action, in.UserID, draft)
	if err != nil {
		return nil, err
	}
	latency := s.sinceMS(start)
	s.logger.InfoContext(ctx, "action executed",
		slog.String("event", "action_executed"),
		slog.String("category", string(classification.Category)),
		slog.String("urgency", string(classification.Urgency)),
		slog.Float64("confidence", classification.Confidence),
		slog.Int64("latency_ms", latency))
	s.audit(ctx, auditEntry{
		MessageID: in.MessageID,
		UserID:    in.UserID,
		Category:  classification.Category,
		Urgency:   classification.Urgency,
		Action:    action.Tool,
		Status:    "executed",
		Approver:  "auto",
		TicketID:  ticketID(result),
		LatencyMS: latency,
	})

	return &WebhookResponse{
		Status:         "executed",
		Classification: classification,
		Extracted:      triageResult.Extracted,
		Action:         action,
		DraftResponse:  draft,
		ActionResult:   result,
	}, nil
}

func (s *Service) holdForApproval(
	ctx context.Context,
	in WebhookInput,
	classification triage.ClassificationResult,
	extracted triage.ExtractedFields,
	action triage.ProposedAction,
	draft string,
	start time.Time,
) (*WebhookResponse, error) {
	reason := action.RiskReason
	if reason == "" {
		reason = "manual approval required"
	}
	pending := triage.PendingDecision{
		PendingID:     triage.NewPendingID(),
		Reason:        reason,
		UserID:        in.UserID,
		ExpiresAt:     s.nowFunc().UTC().Add(s.approvals.TTL()),
		Action:        action,
		DraftResponse: draft,
	}
	if err := s.approvals.Put(ctx, pending); err != nil {
		return nil, err
	}
	if err := s.events.LogEvent(ctx, "pending_created", pending); err != nil {
		s.logger.WarnContext(ctx, "event log write failed", slog.String("error", err.Error()))
	}
	if err := s.notifier.NotifyPending(ctx, pending, classification); err != nil {
		s.logger.WarnContext(ctx, "failed sending approval notification",
			slog.String("event", "approval_notify_failed"),
			slog.String("pending_id", pending.PendingID),
			slog.String("error", err.Error()))
	}
	s.logger.InfoContext(ctx, "action pending approval",
		slog.String("event", "pending_action"),
		slog.String("category", string(classification.Category)),
		slog.String("urgency", string(classification.Urgency)),
		slog.Float64("confidence", classification.Confidence),
		slog.Int64("latency_ms", s.sinceMS(start)),
		slog.String("pending_id", pending.PendingID))

	return &WebhookResponse{
		Status:         "pending",
		Classification: classification,
		Extracted:      extracted,
		Action:         action,
		DraftResponse:  draft,
		Pending:        &pending,
	}, nil
}

// Resolve consumes a pending decision exactly once and either executes the
// stored action or records the rejection. Not-found covers unknown, expired,
// and already-consumed ids alike; it is never conflated with "rejected".
func (s *Service) Resolve(ctx context.Context, pendingID string, approved bool, reviewer string) (*ApproveResponse, error) {
	pending, err := s.approvals.Pop(ctx, pendingID)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return nil, ErrPendingNotFound
	}

	if !approved {
		if err := s.events.LogEvent(ctx, "pending_rejected", map[string]any{
			"pending_id": pendingID,
			"reviewer":   reviewer,
		}); err != nil {
			s.logger.WarnContext(ctx, "event log write failed", slog.String("error", err.Error()))
		}
		s.logger.InfoContext(ctx, "pending rejected",
			slog.String("event", "pending_rejected"),
			slog.String("pending_id", pendingID),
			slog.String("reviewer", reviewer))
		return &ApproveResponse{Status: "rejected", PendingID: pendingID}, nil
	}

	start := s.nowFunc()
	result, err := s.execute(ctx, pending.Action, pending.UserID, pending.DraftResponse)
	if err != nil {
		return nil, err
	}
	latency := s.sinceMS(start)
	if err := s.events.LogEvent(ctx, "pending_approved", map[string]any{
		"pending_id": pendingID,
		"reviewer":   reviewer,
		"result":     result,
	}); err != nil {
		s.logger.WarnContext(ctx, "event log write failed", slog.String("error", err.Error()))
	}
	s.logger.InfoContext(ctx, "pending approved",
		slog.String("event", "pending_approved"),
		slog.String("pending_id", pendingID),
		slog.String("reviewer", reviewer),
		slog.Int64("latency_ms", latency))
	s.audit(ctx, auditEntry{
		UserID:    pending.UserID,
		Category:  categoryFromPayload(pending.Action.Payload),
		Urgency:   urgencyFromPayload(pending.Action.Payload),
		Action:    pending.Action.Tool,
		Status:    "approved",
		Approver:  reviewer,
		TicketID:  ticketID(result),
		LatencyMS: latency,
	})

	return &ApproveResponse{Status: "approved", PendingID: pendingID, Result: result}, nil
}

// proposeAction builds the next action and the user-facing draft. Risk fields
// are fixed here; later stages derive new values instead of editing this one.
func (s *Service) proposeAction(in WebhookInput, triageResult *classify.Result) (triage.ProposedAction, string) {
	classification := triageResult.Classification

	draft := triageResult.DraftText
	if draft == "" {
		draft = triage.DraftReply(classification.Category)
	}

	risky, reason := triage.EvaluateRisk(classification, in.Text, s.riskCfg)

	replyTo := in.UserID
	if chatID, ok := in.Metadata["chat_id"].(string); ok && chatID != "" {
		replyTo = chatID
	}

	action := triage.ProposedAction{
		Tool: "create_ticket_and_reply",
		Payload: map[string]any{
			"title":          fmt.Sprintf("[%s] support request", classification.Category),
			"text":           in.Text,
			"category":       string(classification.Category),
			"urgency":        string(classification.Urgency),
			"transaction_id": triageResult.Extracted.TransactionID,
			"reply_to":       replyTo,
		},
		Risky:      risky,
		RiskReason: reason,
	}
	return action, draft
}

// execute dispatches the action through the tool registry. The payload is
// copied before the draft is attached so the stored action stays pristine.
func (s *Service) execute(ctx context.Context, action triage.ProposedAction, userID, draft string) (map[string]any, error) {
	payload := make(map[string]any, len(action.Payload)+1)
	for k, v := range action.Payload {
		payload[k] = v
	}
	payload["draft_response"] = draft
	if action.RiskReason != "" {
		payload["risk_reason"] = action.RiskReason
	}

	result, err := s.registry.Execute(ctx, action.Tool, payload, userID)
	if err != nil {
		return nil, err
	}
	if err := s.events.LogEvent(ctx, "action_executed", result); err != nil {
		s.logger.WarnContext(ctx, "event log write failed", slog.String("error", err.Error()))
	}
	return result, nil
}

func (s *Service) sinceMS(start time.Time) int64 {
	return s.nowFunc().Sub(start).Milliseconds()
}

// auditEntry is the flattened record written to the event log for reporting.
// User ids are hashed before leaving the request path.
type auditEntry struct {
	MessageID string
	UserID    string
	Category  triage.Category
	Urgency   triage.Urgency
	Action    string
	Status    string
	Approver  string
	TicketID  string
	LatencyMS int64
}

func (s *Service) audit(ctx context.Context, entry auditEntry) {
	payload := map[string]any{
		"timestamp":   s.nowFunc().UTC().Format(time.RFC3339),
		"message_id":  entry.MessageID,
		"user_id":     hashUserID(entry.UserID),
		"category":    string(entry.Category),
		"urgency":     string(entry.Urgency),
		"action":      entry.Action,
		"status":      entry.Status,
		"approved_by": entry.Approver,
		"ticket_id":   entry.TicketID,
		"latency_ms":  entry.LatencyMS,
	}
	if err := s.events.LogEvent(ctx, "audit", payload); err != nil {
		s.logger.WarnContext(ctx, "audit write failed", slog.String("error", err.Error()))
	}
}

func hashUserID(userID string) string {
	if userID == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])
}

func ticketID(result map[string]any) string {
	ticket, ok := result["ticket"].(map[string]any)
	if !ok {
		return ""
	}
	id, _ := ticket["ticket_id"].(string)
	return id
}

func categoryFromPayload(payload map[string]any) triage.Category {
	if c, ok := payload["category"].(string); ok && c != "" {
		return triage.Category(c)
	}
	return triage.CategoryOther
}

func urgencyFromPayload(payload map[string]any) triage.Urgency {
	if u, ok := payload["urgency"].(string); ok && u != "" {
		return triage.Urgency(u)
	}
	return triage.UrgencyLow
}
