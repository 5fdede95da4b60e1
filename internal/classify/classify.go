package classify

import (
	"context"
	"sort"
	"strings"

	"support-insights-go/internal/config"
	"support-insights-go/internal/logger"
	"support-insights-go/internal/types"
)

// Labeler is the LLM tier. It is only consulted when the cheaper tiers
// leave a conversation below the configured confidence trigger.
type Labeler interface {
	LabelTopic(ctx context.Context, transcript string, topics []string) (string, error)
}

// Classifier runs the tiered topic detection for one taxonomy. It holds
// no per-conversation state and is safe for concurrent use.
type Classifier struct {
	cfg config.Analysis
	kw  *KeywordMatcher
	log *logger.Logger
}

func New(cfg config.Analysis, log *logger.Logger) *Classifier {
	return &Classifier{
		cfg: cfg,
		kw:  NewKeywordMatcher(cfg.Taxonomy),
		log: log,
	}
}

func (c *Classifier) Config() config.Analysis { return c.cfg }

// methodRank orders methods for tie-breaking when confidences are equal:
// hybrid > keyword > structured-attribute > llm > fallback.
func methodRank(m types.DetectionMethod) int {
	switch m {
	case types.MethodHybrid:
		return 0
	case types.MethodKeyword:
		return 1
	case types.MethodAttribute:
		return 2
	case types.MethodLLM:
		return 3
	default:
		return 4
	}
}

func sortCandidates(cands []types.TopicCandidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Confidence != cands[j].Confidence {
			return cands[i].Confidence > cands[j].Confidence
		}
		ri, rj := methodRank(cands[i].Method), methodRank(cands[j].Method)
		if ri != rj {
			return ri < rj
		}
		return cands[i].Topic < cands[j].Topic
	})
}

// BaseCandidates runs the keyword and structured-attribute tiers and
// applies the hybrid bonus where they independently agree. Pure function
// of the record; no I/O.
func (c *Classifier) BaseCandidates(rec types.ConversationRecord) []types.TopicCandidate {
	kwCands := c.kw.Match(rec.Transcript(), c.cfg.Thresholds)
	attrCands := AttributeCandidates(rec.Attributes, c.cfg)

	byTopic := map[string]types.TopicCandidate{}
	for _, k := range kwCands {
		byTopic[k.Topic] = k
	}
	for _, a := range attrCands {
		if k, ok := byTopic[a.Topic]; ok {
			// two independent signal sources agree
			k.Confidence = c.cfg.Thresholds.Hybrid
			k.Method = types.MethodHybrid
			byTopic[a.Topic] = k
		} else {
			byTopic[a.Topic] = a
		}
	}

	out := make([]types.TopicCandidate, 0, len(byTopic))
	for _, cand := range byTopic {
		out = append(out, cand)
	}
	sortCandidates(out)
	return out
}

// NeedsLLM reports whether the base tiers left the conversation under the
// configured trigger, bounding external-call cost to the hard cases.
func (c *Classifier) NeedsLLM(cands []types.TopicCandidate) bool {
	if len(cands) == 0 {
		return true
	}
	return cands[0].Confidence < c.cfg.Thresholds.LLMTrigger
}

// MergeLLMLabel normalizes a free-text model label and merges it into the
// candidate list. Labels that fail all normalization steps are discarded:
// an unrecognized label never becomes a candidate. Agreement with an
// existing keyword candidate upgrades it to hybrid.
func (c *Classifier) MergeLLMLabel(cands []types.TopicCandidate, label string) ([]types.TopicCandidate, bool) {
	topic, ok := NormalizeLabel(label, c.cfg)
	if !ok {
		c.log.WithComponent("classify").WithField("label", label).Debug("discarding unmappable llm label")
		return cands, false
	}

	merged := make([]types.TopicCandidate, len(cands))
	copy(merged, cands)
	for i, cand := range merged {
		if cand.Topic != topic {
			continue
		}
		if cand.Method == types.MethodKeyword {
			cand.Confidence = c.cfg.Thresholds.Hybrid
			cand.Method = types.MethodHybrid
			merged[i] = cand
		}
		sortCandidates(merged)
		return merged, true
	}
	merged = append(merged, types.TopicCandidate{
		Topic:      topic,
		Confidence: c.cfg.Thresholds.LLMAccept,
		Method:     types.MethodLLM,
	})
	sortCandidates(merged)
	return merged, true
}

// Finalize guarantees the exactly-one-primary invariant: an empty list
// becomes the Unknown fallback at the confidence floor, and the head of
// the ordered list is the single counted topic. Everything after it is
// retained only as non-counted context.
func (c *Classifier) Finalize(rec types.ConversationRecord, cands []types.TopicCandidate) types.ClassificationResult {
	if len(cands) == 0 {
		cands = []types.TopicCandidate{{
			Topic:      types.TopicUnknown,
			Confidence: c.cfg.Thresholds.FallbackFloor,
			Method:     types.MethodFallback,
		}}
	}

	primary := cands[0]
	if len(cands) > 1 && cands[1].Confidence == primary.Confidence {
		c.log.WithComponent("classify").
			WithField("conversation_id", rec.ID).
			WithField("chosen", primary.Topic).
			WithField("runner_up", cands[1].Topic).
			Debug("ambiguous tie resolved deterministically")
	}
	res := types.ClassificationResult{
		ConversationID: rec.ID,
		PrimaryTopic:   primary.Topic,
		Secondary:      cands[1:],
		ConfidenceTier: confidenceTier(primary.Confidence),
	}

	if topic, ok := c.cfg.TopicByName(primary.Topic); ok {
		res.Subtopic = c.subtopicFor(rec, topic)
	}
	return res
}

// subtopicFor searches only the vocabulary nested under the already-
// assigned primary topic. A structured attribute naming a subtopic wins
// over keyword hits; either way cross-topic matches cannot happen.
func (c *Classifier) subtopicFor(rec types.ConversationRecord, topic config.Topic) string {
	for _, st := range topic.Subtopics {
		for _, v := range rec.Attributes {
			if strings.EqualFold(strings.TrimSpace(v), st.Name) {
				return st.Name
			}
		}
	}
	if sub, found := c.kw.MatchSubtopic(rec.Transcript(), topic.Name); found {
		return sub
	}
	return ""
}

func confidenceTier(conf float64) types.ConfidenceTier {
	switch {
	case conf >= 0.8:
		return types.ConfidenceHigh
	case conf >= 0.5:
		return types.ConfidenceMedium
	default:
		return types.ConfidenceLow
	}
}
