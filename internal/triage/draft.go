package triage

// DraftReply returns a short user-facing reply template for the category.
func DraftReply(category Category) string {
	switch category {
	case CategoryBilling:
		return "Thanks for reporting this payment issue. We are reviewing it and will update you shortly."
	case CategoryAccountAccess:
		return "We received your account access request and escalated it to support for urgent review."
	case CategoryBugReport:
		return "Thanks for the bug report. We have shared it with the team and will follow up with steps."
	case CategoryCheaterReport:
		return "Thanks for the report. Our moderation team will investigate this player activity."
	case CategoryGameplayQuestion:
		return "Thanks for your question. We will send the best available guidance shortly."
	default:
		return "Thanks for contacting support. We have logged your request and will reply soon."
	}
}
