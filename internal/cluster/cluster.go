package cluster

import (
	"context"

	"support-insights-go/internal/config"
	"support-insights-go/internal/logger"
)

// EmergingPrefix marks subtopic labels discovered by clustering rather
// than taken from the static taxonomy.
const EmergingPrefix = "Emerging: "

// Themer proposes short thematic labels spanning a batch of excerpts.
type Themer interface {
	ClusterThemes(ctx context.Context, excerpts []string, maxThemes int) (map[int]string, error)
}

// Pending is one conversation awaiting emergent-theme discovery: its
// primary topic is Unknown or the known-subtopic search found nothing.
type Pending struct {
	ConversationID string
	Excerpt        string
}

// Assign batches the pending conversations into an LLM clustering call and
// returns conversationID -> "Emerging: <label>". Batches below the
// configured minimum stay unassigned: too little signal produces spurious
// clusters. A failed clustering call also leaves the batch unassigned;
// the subtopic level is optional and never worth failing a batch for.
func Assign(ctx context.Context, pending []Pending, th Themer, cfg config.ClusterSettings, log *logger.Logger) map[string]string {
	clog := log.WithComponent("cluster")
	if len(pending) < cfg.MinBatchSize {
		clog.WithField("pending", len(pending)).Debug("below minimum batch size, leaving unclassified")
		return nil
	}

	excerpts := make([]string, len(pending))
	for i, p := range pending {
		excerpts[i] = p.Excerpt
	}

	themes, err := th.ClusterThemes(ctx, excerpts, cfg.MaxThemes)
	if err != nil {
		clog.WithError(err).Warn("emergent-theme clustering failed, leaving batch unclassified")
		return nil
	}

	out := make(map[string]string, len(pending))
	for i, p := range pending {
		label, ok := themes[i]
		if !ok || label == "" {
			continue
		}
		out[p.ConversationID] = EmergingPrefix + label
	}
	clog.WithField("assigned", len(out)).WithField("pending", len(pending)).Info("emergent themes assigned")
	return out
}
