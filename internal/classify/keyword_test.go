package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-insights-go/internal/config"
	"support-insights-go/internal/types"
)

func findTopic(cands []types.TopicCandidate, topic string) (types.TopicCandidate, bool) {
	for _, c := range cands {
		if c.Topic == topic {
			return c, true
		}
	}
	return types.TopicCandidate{}, false
}

func TestKeywordMatcher_ConfidenceFormula(t *testing.T) {
	cfg := config.Default()
	m := NewKeywordMatcher(cfg.Taxonomy)

	tests := []struct {
		name     string
		text     string
		topic    string
		wantConf float64
		wantKws  int
	}{
		{
			name:     "single match",
			text:     "I would like a refund please",
			topic:    "Billing",
			wantConf: 0.65,
			wantKws:  1,
		},
		{
			name:     "two distinct matches",
			text:     "refund my payment",
			topic:    "Billing",
			wantConf: 0.8,
			wantKws:  2,
		},
		{
			name:     "confidence capped",
			text:     "refund the payment on my invoice for the subscription I was charged for",
			topic:    "Billing",
			wantConf: 0.9,
			wantKws:  5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cands := m.Match(tt.text, cfg.Thresholds)
			cand, ok := findTopic(cands, tt.topic)
			require.True(t, ok, "expected a %s candidate", tt.topic)
			assert.InDelta(t, tt.wantConf, cand.Confidence, 1e-9)
			assert.Len(t, cand.MatchedKeywords, tt.wantKws)
			assert.Equal(t, types.MethodKeyword, cand.Method)
		})
	}
}

func TestKeywordMatcher_WordBoundaries(t *testing.T) {
	cfg := config.Default()
	m := NewKeywordMatcher(cfg.Taxonomy)

	// "2fa" must not fire inside an unrelated token, "charge" must not
	// fire inside "charger", and a bare substring like "konto" must not
	// fire inside "kontortyp-less" words it merely appears in.
	cands := m.Match("my phone charger shows f2fa23 on the display", cfg.Thresholds)
	_, billing := findTopic(cands, "Billing")
	_, account := findTopic(cands, "Account")
	assert.False(t, billing, "charger must not match charge")
	assert.False(t, account, "f2fa23 must not match 2fa")

	// boundary-adjacent punctuation still matches
	cands = m.Match("Refund, please!", cfg.Thresholds)
	_, billing = findTopic(cands, "Billing")
	assert.True(t, billing)
}

func TestKeywordMatcher_Multilingual(t *testing.T) {
	cfg := config.Default()
	m := NewKeywordMatcher(cfg.Taxonomy)

	cands := m.Match("quiero un reembolso de mi pago", cfg.Thresholds)
	cand, ok := findTopic(cands, "Billing")
	require.True(t, ok)
	assert.Contains(t, cand.MatchedKeywords, "reembolso")
}

func TestKeywordMatcher_EmptyText(t *testing.T) {
	cfg := config.Default()
	m := NewKeywordMatcher(cfg.Taxonomy)
	assert.Empty(t, m.Match("", cfg.Thresholds))
	assert.Empty(t, m.Match("   ", cfg.Thresholds))
}

func TestMatchSubtopic_RestrictedToParentVocabulary(t *testing.T) {
	cfg := config.Default()
	m := NewKeywordMatcher(cfg.Taxonomy)

	// a login phrase finds nothing under Billing even though the Account
	// taxonomy would match it
	sub, found := m.MatchSubtopic("I cannot login to see anything", "Billing")
	assert.False(t, found, "cross-topic subtopic match must be impossible, got %q", sub)

	sub, found = m.MatchSubtopic("I was charged twice this month", "Billing")
	assert.True(t, found)
	assert.Equal(t, "Duplicate Charges", sub)

	_, found = m.MatchSubtopic("I was charged twice this month", "Shipping")
	assert.False(t, found, "a topic outside the taxonomy has no subtopic vocabulary")
}
