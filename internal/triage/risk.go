package triage

import (
	"fmt"
	"strings"
)

// RiskConfig parameterizes risk evaluation. Built once from the service
// configuration and passed in; EvaluateRisk itself reads no ambient state.
type RiskConfig struct {
	ApprovalCategories   []string
	AutoApproveThreshold float64
	LegalRiskKeywords    []string
}

// EvaluateRisk decides whether an action derived from this classification may
// auto-execute. Rules run in declaration order: the first match supplies the
// reason, while risky is true if any rule matches.
func EvaluateRisk(classification ClassificationResult, text string, cfg RiskConfig) (bool, string) {
	risky := false
	reason := ""

	match := func(r string) {
		risky = true
		if reason == "" {
			reason = r
		}
	}

	for _, cat := range cfg.ApprovalCategories {
		if string(classification.Category) == cat {
			match(fmt.Sprintf("category '%s' requires approval", classification.Category))
			break
		}
	}
	if classification.Urgency == UrgencyHigh || classification.Urgency == UrgencyCritical {
		match(fmt.Sprintf("urgency '%s' requires approval", classification.Urgency))
	}
	if classification.Confidence < cfg.AutoApproveThreshold {
		match("low confidence classification")
	}
	lowered := strings.ToLower(text)
	for _, kw := range cfg.LegalRiskKeywords {
		if strings.Contains(lowered, kw) {
			match("legal-risk keywords require approval")
			break
		}
	}

	return risky, reason
}
