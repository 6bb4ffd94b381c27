// Package tools is the registry of executable action handlers. Dispatch is by
// tool name; an unknown name is a schema-drift error and always fails loudly,
// because a silently dropped action is worse than a failed request.
package tools

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownTool signals that an action named a tool no handler is registered
// for. Fatal; never a no-op.
var ErrUnknownTool = errors.New("unknown tool")

// Handler executes a single tool. Payload is forwarded verbatim from the
// proposed action (plus the draft response added by the caller).
type Handler func(ctx context.Context, payload map[string]any, userID string) (map[string]any, error)

// Registry maps tool names to handlers.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry returns a registry with the built-in tools registered.
func NewRegistry() *Registry {
	r := &Registry{handlers: map[string]Handler{}}
	r.Register("create_ticket_and_reply", createTicketAndReply)
	r.Register("flag_for_human", flagForHuman)
	return r
}

// Register adds or replaces a handler.
func (r *Registry) Register(name string, h Handler) {
	r.handlers[name] = h
}

// Execute dispatches to the named handler.
func (r *Registry) Execute(ctx context.Context, name string, payload map[string]any, userID string) (map[string]any, error) {
	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	result, err := h(ctx, payload, userID)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}
	return result, nil
}

// createTicketAndReply opens a ticket and queues the drafted reply.
func createTicketAndReply(_ context.Context, payload map[string]any, userID string) (map[string]any, error) {
	ticket := createTicket(payload)

	replyText, _ := payload["draft_response"].(string)
	target, _ := payload["reply_to"].(string)
	if target == "" {
		target = userID
	}
	reply := sendReply(target, replyText)

	return map[string]any{"ticket": ticket, "reply": reply}, nil
}

// flagForHuman records that the request was routed to a reviewer instead of
// being acted on. It performs no side effects.
func flagForHuman(_ context.Context, payload map[string]any, _ string) (map[string]any, error) {
	reason, _ := payload["risk_reason"].(string)
	return map[string]any{"flagged": true, "reason": reason}, nil
}
