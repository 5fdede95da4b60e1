package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-insights-go/internal/types"
)

func intPtr(v int) *int { return &v }

func scored(id, topic, subtopic string, resolved types.ResolvedBy, rating *int) Scored {
	return Scored{
		Classification: types.ClassificationResult{
			ConversationID: id,
			PrimaryTopic:   topic,
			Subtopic:       subtopic,
		},
		Outcome: types.ResolutionOutcome{
			ConversationID: id,
			ResolvedBy:     resolved,
		},
		Rating: rating,
	}
}

func TestReduce_CountsAndRates(t *testing.T) {
	batch := []Scored{
		scored("c1", "Billing", "Refunds", types.AIResolved, intPtr(5)),
		scored("c2", "Billing", "Refunds", types.HumanEscalated, intPtr(3)),
		scored("c3", "Billing", "", types.AIResolved, nil),
		scored("c4", "Billing", "", types.Unresolved, nil),
		scored("c5", "Account", "", types.AIAttemptedNotValidated, intPtr(1)),
	}

	aggs, err := Reduce(batch)
	require.NoError(t, err)
	require.Len(t, aggs, 2)

	// sorted by count descending
	billing := aggs[0]
	assert.Equal(t, "Billing", billing.Topic)
	assert.Equal(t, 4, billing.Count)
	assert.InDelta(t, 80.0, billing.PercentOfTotal, 1e-9)
	// unresolved excluded from the denominator: 2 ai / (2 ai + 1 human)
	assert.InDelta(t, 2.0/3.0, billing.ResolutionRate, 1e-9)
	assert.InDelta(t, 1.0/3.0, billing.EscalationRate, 1e-9)
	// avg over non-null ratings only
	assert.InDelta(t, 4.0, billing.AvgRating, 1e-9)
	assert.Equal(t, 2, billing.RatedCount)
	require.Len(t, billing.Subtopics, 1)
	assert.Equal(t, types.SubtopicAggregate{Name: "Refunds", Count: 2}, billing.Subtopics[0])

	account := aggs[1]
	assert.Equal(t, 1, account.Count)
	// not-validated excluded: no completed outcomes at all
	assert.Zero(t, account.ResolutionRate)
	assert.Zero(t, account.EscalationRate)

	// invariant: every conversation counted exactly once
	sum := 0
	for _, a := range aggs {
		sum += a.Count
	}
	assert.Equal(t, len(batch), sum)
}

func TestReduce_Idempotent(t *testing.T) {
	batch := []Scored{
		scored("c1", "Billing", "Refunds", types.AIResolved, intPtr(4)),
		scored("c2", "Account", "", types.HumanEscalated, nil),
		scored("c3", "Unknown", "Emerging: Data Export", types.Unresolved, nil),
	}

	first, err := Reduce(batch)
	require.NoError(t, err)
	second, err := Reduce(batch)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestReduce_DuplicateConversationIsFatal(t *testing.T) {
	batch := []Scored{
		scored("c1", "Billing", "", types.AIResolved, nil),
		scored("c1", "Account", "", types.AIResolved, nil),
	}

	_, err := Reduce(batch)
	require.Error(t, err)
	var integrity *IntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Contains(t, integrity.Error(), "c1")
}

func TestReduce_MissingPrimaryTopicIsFatal(t *testing.T) {
	batch := []Scored{scored("c1", "", "", types.AIResolved, nil)}

	_, err := Reduce(batch)
	var integrity *IntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Contains(t, integrity.Error(), "no primary topic")
}

func TestReduce_ConfidenceOutsideRangeIsFatal(t *testing.T) {
	s := scored("c1", "Billing", "", types.AIResolved, nil)
	s.Classification.Secondary = []types.TopicCandidate{{Topic: "Account", Confidence: 1.7}}

	_, err := Reduce([]Scored{s})
	var integrity *IntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Contains(t, integrity.Error(), "outside [0,1]")
}

func TestReduce_MismatchedOutcomePairIsFatal(t *testing.T) {
	s := scored("c1", "Billing", "", types.AIResolved, nil)
	s.Outcome.ConversationID = "c9"

	_, err := Reduce([]Scored{s})
	var integrity *IntegrityError
	require.ErrorAs(t, err, &integrity)
}

func TestReduce_EmptyBatch(t *testing.T) {
	aggs, err := Reduce(nil)
	require.NoError(t, err)
	assert.Empty(t, aggs)
}
