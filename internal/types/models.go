package types

import (
	"strings"
	"time"
)

// Tier is the customer's subscription level. It gates which resolution
// paths exist: free-tier conversations have no human escalation path.
type Tier string

const (
	TierFree  Tier = "free"
	TierPro   Tier = "pro"
	TierPlus  Tier = "plus"
	TierUltra Tier = "ultra"
)

// ParseTier maps source-system plan labels onto a Tier.
func ParseTier(s string) (Tier, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "free":
		return TierFree, true
	case "pro":
		return TierPro, true
	case "plus":
		return TierPlus, true
	case "ultra":
		return TierUltra, true
	}
	return TierFree, false
}

type ConversationState string

const (
	StateOpen   ConversationState = "open"
	StateClosed ConversationState = "closed"
)

func ParseState(s string) (ConversationState, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open":
		return StateOpen, true
	case "closed":
		return StateClosed, true
	}
	return StateOpen, false
}

// AuthorType is the source system's structural label for a message author.
// It is a hint, not evidence: automated assistants are sometimes labelled
// as admins upstream, so authorship checks go through the AI-alias filter.
type AuthorType string

const (
	AuthorCustomer   AuthorType = "customer"
	AuthorAssistant  AuthorType = "assistant"
	AuthorHumanAdmin AuthorType = "human_admin"
	AuthorUnknown    AuthorType = "unknown"
)

type MessagePart struct {
	AuthorType  AuthorType `json:"author_type"`
	AuthorName  string     `json:"author_name,omitempty"`
	AuthorEmail string     `json:"author_email,omitempty"`
	Text        string     `json:"text"`
	Timestamp   time.Time  `json:"timestamp"`
}

// ConversationRecord is an immutable snapshot of a support conversation,
// already fetched by the upstream retrieval collaborator.
type ConversationRecord struct {
	ID              string            `json:"id"`
	CreatedAt       time.Time         `json:"created_at"`
	Tier            Tier              `json:"tier"`
	Parts           []MessagePart     `json:"parts"`
	Rating          *int              `json:"rating,omitempty"` // 1-5, nil when never rated
	State           ConversationState `json:"state"`
	ReopenCount     int               `json:"reopen_count"`
	AssignedAdminID string            `json:"assigned_admin_id,omitempty"`
	Attributes      map[string]string `json:"attributes,omitempty"` // sparse, frequently absent
}

// Transcript concatenates all message text in order. Classification tiers
// operate on this single string.
func (c ConversationRecord) Transcript() string {
	var b strings.Builder
	for _, p := range c.Parts {
		if p.Text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

// TopicUnknown is the fallback category for conversations no tier could
// place. Its members are candidates for emergent-theme discovery.
const TopicUnknown = "Unknown"

// DetectionMethod records which signal tier produced a topic candidate.
type DetectionMethod string

const (
	MethodKeyword   DetectionMethod = "keyword"
	MethodAttribute DetectionMethod = "structured_attribute"
	MethodLLM       DetectionMethod = "llm"
	MethodHybrid    DetectionMethod = "hybrid"
	MethodFallback  DetectionMethod = "fallback"
)

type TopicCandidate struct {
	Topic           string          `json:"topic"`
	Confidence      float64         `json:"confidence"` // always in [0,1]
	Method          DetectionMethod `json:"method"`
	MatchedKeywords []string        `json:"matched_keywords,omitempty"`
}

type ConfidenceTier string

const (
	ConfidenceHigh   ConfidenceTier = "high"
	ConfidenceMedium ConfidenceTier = "medium"
	ConfidenceLow    ConfidenceTier = "low"
)

// ClassificationResult carries exactly one primary topic per conversation.
// Secondary candidates are contextual metadata only and never counted.
type ClassificationResult struct {
	ConversationID string           `json:"conversation_id"`
	PrimaryTopic   string           `json:"primary_topic"`
	Secondary      []TopicCandidate `json:"secondary_candidates,omitempty"`
	Subtopic       string           `json:"subtopic,omitempty"`
	ConfidenceTier ConfidenceTier   `json:"confidence_tier"`
}

type ResolvedBy string

const (
	AIResolved              ResolvedBy = "ai_resolved"
	HumanEscalated          ResolvedBy = "human_escalated"
	Unresolved              ResolvedBy = "unresolved"
	AIAttemptedNotValidated ResolvedBy = "ai_attempted_not_validated"
)

type QualityFlags struct {
	Reopened  bool `json:"reopened"`
	LowRating bool `json:"low_rating"`
}

type ResolutionOutcome struct {
	ConversationID string       `json:"conversation_id"`
	ResolvedBy     ResolvedBy   `json:"resolved_by"`
	Flags          QualityFlags `json:"quality_flags"`
}

type SubtopicAggregate struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type CategoryAggregate struct {
	Topic          string              `json:"topic"`
	Count          int                 `json:"conversation_count"`
	PercentOfTotal float64             `json:"percent_of_total"`
	ResolutionRate float64             `json:"resolution_rate"`
	EscalationRate float64             `json:"escalation_rate"`
	AvgRating      float64             `json:"avg_rating"`
	RatedCount     int                 `json:"rated_count"`
	Subtopics      []SubtopicAggregate `json:"subtopics,omitempty"`
}

// BatchResult is the structured output handed to the reporting collaborator.
type BatchResult struct {
	BatchID                string                 `json:"batch_id"`
	TotalConversations     int                    `json:"total_conversations"`
	ExcludedMalformedCount int                    `json:"excluded_malformed_count"`
	FallbackAppliedCount   int                    `json:"fallback_applied_count"`
	Categories             []CategoryAggregate    `json:"categories"`
	Classifications        []ClassificationResult `json:"classifications"`
	Outcomes               []ResolutionOutcome    `json:"outcomes"`
}
