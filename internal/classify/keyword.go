package classify

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"support-insights-go/internal/config"
	"support-insights-go/internal/types"
)

// KeywordMatcher holds word-boundary-safe patterns compiled once per
// taxonomy. Substring matches without boundaries are forbidden: a short
// keyword like "2fa" must not fire inside an unrelated token.
type KeywordMatcher struct {
	topics []compiledTopic
}

type compiledTopic struct {
	name      string
	patterns  []keywordPattern
	subtopics []compiledSubtopic
}

type compiledSubtopic struct {
	name     string
	patterns []keywordPattern
}

type keywordPattern struct {
	keyword string
	re      *regexp.Regexp
}

// compileKeyword builds a case-insensitive pattern that only matches the
// keyword between non-letter/non-digit boundaries. \b is ASCII-only in
// Go's regexp, so multilingual keywords get explicit Unicode boundaries.
func compileKeyword(kw string) (*regexp.Regexp, error) {
	quoted := regexp.QuoteMeta(strings.ToLower(strings.TrimSpace(kw)))
	if quoted == "" {
		return nil, fmt.Errorf("empty keyword")
	}
	return regexp.Compile(`(?i)(?:^|[^\p{L}\p{N}])` + quoted + `(?:[^\p{L}\p{N}]|$)`)
}

// NewKeywordMatcher compiles the topic and subtopic vocabularies once.
// Unusable keywords are dropped rather than failing the whole taxonomy.
func NewKeywordMatcher(taxonomy []config.Topic) *KeywordMatcher {
	m := &KeywordMatcher{}
	for _, t := range taxonomy {
		ct := compiledTopic{name: t.Name}
		for _, kw := range t.Keywords {
			re, err := compileKeyword(kw)
			if err != nil {
				continue
			}
			ct.patterns = append(ct.patterns, keywordPattern{keyword: kw, re: re})
		}
		for _, st := range t.Subtopics {
			cs := compiledSubtopic{name: st.Name}
			for _, kw := range st.Keywords {
				re, err := compileKeyword(kw)
				if err != nil {
					continue
				}
				cs.patterns = append(cs.patterns, keywordPattern{keyword: kw, re: re})
			}
			ct.subtopics = append(ct.subtopics, cs)
		}
		m.topics = append(m.topics, ct)
	}
	return m
}

// Match returns at most one candidate per topic. Confidence grows with
// each distinct matched keyword and is capped below the hybrid level.
func (m *KeywordMatcher) Match(text string, th config.Thresholds) []types.TopicCandidate {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var out []types.TopicCandidate
	for _, t := range m.topics {
		var matched []string
		for _, p := range t.patterns {
			if p.re.MatchString(text) {
				matched = append(matched, p.keyword)
			}
		}
		if len(matched) == 0 {
			continue
		}
		sort.Strings(matched)
		conf := th.KeywordBase + th.KeywordPerMatch*float64(len(matched))
		if conf > th.KeywordCap {
			conf = th.KeywordCap
		}
		out = append(out, types.TopicCandidate{
			Topic:           t.name,
			Confidence:      conf,
			Method:          types.MethodKeyword,
			MatchedKeywords: matched,
		})
	}
	return out
}

// MatchSubtopic searches only the vocabulary nested under the given topic;
// cross-topic subtopic matches are impossible by construction. The
// subtopic with the most distinct matches wins, ties going to
// configuration order.
func (m *KeywordMatcher) MatchSubtopic(text, topic string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	for _, t := range m.topics {
		if t.name != topic {
			continue
		}
		best := ""
		bestHits := 0
		for _, st := range t.subtopics {
			hits := 0
			for _, p := range st.patterns {
				if p.re.MatchString(text) {
					hits++
				}
			}
			if hits > bestHits {
				best = st.name
				bestHits = hits
			}
		}
		return best, best != ""
	}
	return "", false
}
