package guard

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/gdevlabs/triage-agent/internal/triage"
)

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-ant-[a-zA-Z0-9\-]{20,}`),
	regexp.MustCompile(`lin_api_[a-zA-Z0-9]{20,}`),
	regexp.MustCompile(`Bearer\s+[a-zA-Z0-9+/=]{20,}`),
}

var urlPattern = regexp.MustCompile(`https?://[^\s'"<>]+`)

// confidenceFloor is the stricter threshold below which an action is rerouted
// to a human regardless of the risk rules.
const confidenceFloor = 0.5

// OutputConfig parameterizes the output scan.
type OutputConfig struct {
	Enabled      bool
	URLAllowlist []string
	URLBehavior  string // "redact" or "reject"
}

// OutputResult is the outcome of scanning a draft response. Override, when
// non-nil, is a fresh action value the caller applies explicitly; the scanned
// action is never touched.
type OutputResult struct {
	Blocked       bool
	RedactedDraft string
	Reason        string
	Override      *triage.ProposedAction
}

// ScanOutput checks the draft for leaked secrets and disallowed URLs, and
// reroutes the action to flag_for_human when confidence sits below the safety
// floor.
func ScanOutput(draft string, confidence float64, action triage.ProposedAction, cfg OutputConfig) OutputResult {
	if !cfg.Enabled {
		return OutputResult{RedactedDraft: draft}
	}

	for _, pattern := range secretPatterns {
		if pattern.MatchString(draft) {
			return OutputResult{Blocked: true, Reason: "secret pattern matched"}
		}
	}

	redacted := draft
	for _, raw := range urlPattern.FindAllString(draft, -1) {
		if hostAllowed(raw, cfg.URLAllowlist) {
			continue
		}
		if cfg.URLBehavior == "reject" {
			return OutputResult{Blocked: true, Reason: "disallowed url"}
		}
		redacted = strings.TrimSpace(strings.ReplaceAll(redacted, raw, ""))
	}

	result := OutputResult{RedactedDraft: redacted}
	if confidence < confidenceFloor {
		override := action.WithOverride("flag_for_human", true, "confidence below safety floor")
		result.Override = &override
	}
	return result
}

func hostAllowed(raw string, allowlist []string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, allowed := range allowlist {
		if host == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}
