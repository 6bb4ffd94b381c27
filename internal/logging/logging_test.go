package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestInitJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := Init("triage-agent", "info", "json", &buf)

	logger.Info("pending expired", slog.String("event", "pending_expired"))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if rec["app"] != "triage-agent" {
		t.Fatalf("missing app attr: %v", rec)
	}
	if rec["event"] != "pending_expired" {
		t.Fatalf("missing event attr: %v", rec)
	}
}

func TestInitLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := Init("triage-agent", "warn", "json", &buf)

	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info record should be filtered at warn level: %s", buf.String())
	}
	logger.Warn("kept")
	if buf.Len() == 0 {
		t.Fatal("warn record should be emitted")
	}
}
