package classify

import (
	"strings"

	"support-insights-go/internal/config"
)

// NormalizeLabel gates free-text model output against the canonical
// vocabulary. The model is an untrusted oracle: a label only becomes a
// candidate if one of four steps maps it to a canonical topic, otherwise
// it is discarded.
//
// Steps, in order: exact match, case-insensitive match, containment in
// either direction, semantic synonym table.
func NormalizeLabel(label string, cfg config.Analysis) (string, bool) {
	raw := strings.TrimSpace(label)
	if raw == "" {
		return "", false
	}

	// 1) exact
	for _, t := range cfg.Taxonomy {
		if raw == t.Name {
			return t.Name, true
		}
	}

	// 2) case-insensitive
	folded := fold(raw)
	for _, t := range cfg.Taxonomy {
		if folded == fold(t.Name) {
			return t.Name, true
		}
	}

	// 3) containment either way; short fragments are too ambiguous to trust
	for _, t := range cfg.Taxonomy {
		canon := fold(t.Name)
		if len(folded) >= 4 && (strings.Contains(folded, canon) || strings.Contains(canon, folded)) {
			return t.Name, true
		}
	}

	// 4) synonym table: exact folded lookup, then phrase containment
	if topic, ok := cfg.Synonyms[folded]; ok {
		if _, known := cfg.TopicByName(topic); known {
			return topic, true
		}
	}
	// map iteration order is random; pick the longest matching phrase,
	// lexicographic on ties, so identical input always maps identically
	bestPhrase, bestTopic := "", ""
	for phrase, topic := range cfg.Synonyms {
		p := fold(phrase)
		if p == "" || !strings.Contains(folded, p) {
			continue
		}
		if _, known := cfg.TopicByName(topic); !known {
			continue
		}
		if len(p) > len(bestPhrase) || (len(p) == len(bestPhrase) && p < bestPhrase) {
			bestPhrase, bestTopic = p, topic
		}
	}
	if bestTopic != "" {
		return bestTopic, true
	}

	return "", false
}

func fold(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	// strip trailing punctuation models like to add
	return strings.Trim(s, ".,;:!?\"'`")
}
