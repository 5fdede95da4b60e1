package segment

import (
	"strings"

	"support-insights-go/internal/config"
	"support-insights-go/internal/types"
)

// AgentType says who actually handled the conversation.
type AgentType string

const (
	AIOnly    AgentType = "ai_only"
	HumanPaid AgentType = "human_paid"
	Unknown   AgentType = "unknown"
)

// Segments is the per-conversation segmentation output consumed by the
// resolution evaluator and the aggregate reporting.
type Segments struct {
	Tier  types.Tier
	Agent AgentType

	// GenuineHuman is true when at least one message part was authored by
	// a human admin that survives the AI-alias filter. This is the only
	// evidence the resolution evaluator accepts for human escalation.
	GenuineHuman bool
}

// Classify determines customer tier and responding-agent type.
//
// An assigned admin who never authored a reply does not count as human
// involvement: assignment is routing metadata, not evidence.
func Classify(rec types.ConversationRecord, cfg config.Analysis) Segments {
	seg := Segments{Tier: rec.Tier}

	var humanSeen, assistantSeen bool
	for _, p := range rec.Parts {
		switch p.AuthorType {
		case types.AuthorHumanAdmin:
			if IsAutomatedAuthor(p.AuthorName, p.AuthorEmail, cfg.AIAliases) {
				// structurally an admin, actually the assistant
				assistantSeen = true
			} else {
				humanSeen = true
			}
		case types.AuthorAssistant:
			assistantSeen = true
		}
		// customer and unknown authors carry no agent evidence; missing
		// metadata is never promoted to human involvement
	}
	seg.GenuineHuman = humanSeen

	// Free tier has no human escalation path.
	if rec.Tier == types.TierFree {
		seg.Agent = AIOnly
		return seg
	}

	switch {
	case humanSeen:
		seg.Agent = HumanPaid
	case assistantSeen:
		seg.Agent = AIOnly
	default:
		seg.Agent = Unknown
	}
	return seg
}

// IsAutomatedAuthor reports whether an author name/email matches a known
// automated-assistant pattern. The source system labels some assistant
// replies as admin messages, so this filter runs before any message is
// accepted as human evidence.
func IsAutomatedAuthor(name, email string, aliases []string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	e := strings.ToLower(strings.TrimSpace(email))
	for _, alias := range aliases {
		a := strings.ToLower(alias)
		if a == "" {
			continue
		}
		if n != "" && strings.Contains(n, a) {
			return true
		}
		if e != "" && strings.Contains(e, a) {
			return true
		}
	}
	return false
}
