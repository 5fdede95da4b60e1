package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"support-insights-go/internal/types"
)

// Scored pairs one conversation's classification with its resolution
// outcome and the optional customer rating. The aggregation engine is a
// pure reduce over a complete batch of these.
type Scored struct {
	Classification types.ClassificationResult
	Outcome        types.ResolutionOutcome
	Rating         *int
}

// IntegrityError is the fatal batch error: an aggregation invariant was
// violated, which signals a bug upstream in primary-topic resolution. It
// names the offending categories/conversations instead of clamping or
// rounding the numbers away.
type IntegrityError struct {
	Problems []string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("aggregation integrity violated: %s", strings.Join(e.Problems, "; "))
}

// Reduce groups the batch by primary topic (nested by subtopic), counting
// each conversation exactly once, then validates the global invariants.
// Unresolved and not-validated outcomes are excluded from the resolution
// and escalation rate denominators: they are incomplete, not failed.
func Reduce(batch []Scored) ([]types.CategoryAggregate, error) {
	if err := validateInput(batch); err != nil {
		return nil, err
	}

	type bucket struct {
		count     int
		ai        int
		human     int
		ratingSum int
		rated     int
		subtopics map[string]int
	}
	buckets := map[string]*bucket{}

	for _, s := range batch {
		b := buckets[s.Classification.PrimaryTopic]
		if b == nil {
			b = &bucket{subtopics: map[string]int{}}
			buckets[s.Classification.PrimaryTopic] = b
		}
		b.count++
		if s.Classification.Subtopic != "" {
			b.subtopics[s.Classification.Subtopic]++
		}
		switch s.Outcome.ResolvedBy {
		case types.AIResolved:
			b.ai++
		case types.HumanEscalated:
			b.human++
		}
		if s.Rating != nil {
			b.ratingSum += *s.Rating
			b.rated++
		}
	}

	total := len(batch)
	out := make([]types.CategoryAggregate, 0, len(buckets))
	for topic, b := range buckets {
		agg := types.CategoryAggregate{
			Topic:      topic,
			Count:      b.count,
			RatedCount: b.rated,
		}
		if total > 0 {
			agg.PercentOfTotal = float64(b.count) / float64(total) * 100
		}
		if done := b.ai + b.human; done > 0 {
			agg.ResolutionRate = float64(b.ai) / float64(done)
			agg.EscalationRate = float64(b.human) / float64(done)
		}
		if b.rated > 0 {
			agg.AvgRating = float64(b.ratingSum) / float64(b.rated)
		}
		for name, count := range b.subtopics {
			agg.Subtopics = append(agg.Subtopics, types.SubtopicAggregate{Name: name, Count: count})
		}
		sort.Slice(agg.Subtopics, func(i, j int) bool {
			if agg.Subtopics[i].Count != agg.Subtopics[j].Count {
				return agg.Subtopics[i].Count > agg.Subtopics[j].Count
			}
			return agg.Subtopics[i].Name < agg.Subtopics[j].Name
		})
		out = append(out, agg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Topic < out[j].Topic
	})

	if err := validateAggregates(out, total); err != nil {
		return nil, err
	}
	return out, nil
}

// validateInput catches upstream bugs before any counting happens: a
// conversation with no primary topic, a duplicate conversation ID, or a
// confidence outside [0,1] would silently corrupt the aggregates.
func validateInput(batch []Scored) error {
	var problems []string
	seen := map[string]bool{}
	for _, s := range batch {
		id := s.Classification.ConversationID
		if id == "" {
			problems = append(problems, "classification with empty conversation id")
			continue
		}
		if seen[id] {
			problems = append(problems, fmt.Sprintf("conversation %s appears more than once", id))
		}
		seen[id] = true
		if s.Classification.PrimaryTopic == "" {
			problems = append(problems, fmt.Sprintf("conversation %s has no primary topic", id))
		}
		if s.Outcome.ConversationID != "" && s.Outcome.ConversationID != id {
			problems = append(problems, fmt.Sprintf("conversation %s paired with outcome for %s", id, s.Outcome.ConversationID))
		}
		for _, cand := range s.Classification.Secondary {
			if cand.Confidence < 0 || cand.Confidence > 1 {
				problems = append(problems, fmt.Sprintf("conversation %s candidate %s confidence %v outside [0,1]", id, cand.Topic, cand.Confidence))
			}
		}
	}
	if len(problems) > 0 {
		return &IntegrityError{Problems: problems}
	}
	return nil
}

func validateAggregates(aggs []types.CategoryAggregate, totalClassified int) error {
	var problems []string
	sum := 0
	for _, a := range aggs {
		sum += a.Count
		subSum := 0
		for _, st := range a.Subtopics {
			if st.Count > a.Count {
				problems = append(problems, fmt.Sprintf("subtopic %q count %d exceeds parent %q count %d", st.Name, st.Count, a.Topic, a.Count))
			}
			subSum += st.Count
		}
		if subSum > a.Count {
			problems = append(problems, fmt.Sprintf("subtopic counts under %q sum to %d, parent has %d", a.Topic, subSum, a.Count))
		}
	}
	if sum != totalClassified {
		problems = append(problems, fmt.Sprintf("category counts sum to %d, classified %d", sum, totalClassified))
	}
	if len(problems) > 0 {
		return &IntegrityError{Problems: problems}
	}
	return nil
}
