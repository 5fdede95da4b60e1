package classify

import (
	"strings"

	"support-insights-go/internal/config"
	"support-insights-go/internal/types"
)

// AttributeCandidates scans the sparse structured-attribute map for values
// equal to a canonical topic name. The map is frequently absent and
// inconsistently populated upstream, so its confidence is fixed below the
// keyword+hybrid levels: the value was never validated against the text.
func AttributeCandidates(attrs map[string]string, cfg config.Analysis) []types.TopicCandidate {
	if len(attrs) == 0 {
		return nil
	}
	seen := map[string]bool{}
	var out []types.TopicCandidate
	for _, t := range cfg.Taxonomy {
		if seen[t.Name] {
			continue
		}
		for _, v := range attrs {
			if strings.EqualFold(strings.TrimSpace(v), t.Name) {
				out = append(out, types.TopicCandidate{
					Topic:      t.Name,
					Confidence: cfg.Thresholds.Attribute,
					Method:     types.MethodAttribute,
				})
				seen[t.Name] = true
				break
			}
		}
	}
	return out
}
