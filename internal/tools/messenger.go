package tools

// sendReply queues a reply for delivery. Stubbed; the messaging integration is
// an external collaborator.
func sendReply(target, text string) map[string]any {
	out := map[string]any{
		"delivery": "queued",
		"text":     text,
	}
	if target != "" {
		out["user_id"] = target
	}
	return out
}
