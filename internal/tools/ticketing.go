package tools

import (
	"strings"

	"github.com/google/uuid"
)

// createTicket creates a stub ticket record. The real ticketing integration
// lives outside this service; the record shape matches what it will return.
func createTicket(payload map[string]any) map[string]any {
	title, _ := payload["title"].(string)
	if title == "" {
		title = "Support request"
	}
	id := "TKT-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return map[string]any{
		"ticket_id": id,
		"title":     title,
		"status":    "created",
	}
}
