package resolution

import (
	"support-insights-go/internal/config"
	"support-insights-go/internal/segment"
	"support-insights-go/internal/types"
)

// Evaluate determines the final disposition of a conversation from
// message-level evidence. Authorship is the only accepted escalation
// signal; text keywords like "escalate" are never consulted.
//
// The genuine-human evidence comes from the segmentation stage, which has
// already applied the AI-alias filter.
func Evaluate(rec types.ConversationRecord, seg segment.Segments, th config.Thresholds) types.ResolutionOutcome {
	out := types.ResolutionOutcome{ConversationID: rec.ID}
	out.Flags.Reopened = rec.ReopenCount > 0
	out.Flags.LowRating = rec.Rating != nil && *rec.Rating < th.MinAIRating

	switch {
	case seg.GenuineHuman:
		// regardless of state, text content or rating
		out.ResolvedBy = types.HumanEscalated
	case rec.State == types.StateOpen:
		out.ResolvedBy = types.Unresolved
	case out.Flags.Reopened || out.Flags.LowRating:
		// the assistant closed it, but the customer pushed back; a
		// distinct bucket, never folded into ai_resolved
		out.ResolvedBy = types.AIAttemptedNotValidated
	default:
		out.ResolvedBy = types.AIResolved
	}
	return out
}
