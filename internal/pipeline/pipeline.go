package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"support-insights-go/internal/aggregate"
	"support-insights-go/internal/classify"
	"support-insights-go/internal/cluster"
	"support-insights-go/internal/config"
	"support-insights-go/internal/logger"
	"support-insights-go/internal/resolution"
	"support-insights-go/internal/segment"
	"support-insights-go/internal/types"
)

// LLMStage is the only external I/O the pipeline performs: low-confidence
// topic labeling and emergent-theme clustering.
type LLMStage interface {
	classify.Labeler
	cluster.Themer
}

// Pipeline runs one analysis batch end to end: segmentation, tiered topic
// classification, resolution evaluation, emergent-theme discovery and the
// final aggregation barrier.
type Pipeline struct {
	cfg        config.Analysis
	classifier *classify.Classifier
	llm        LLMStage
	log        *logger.Logger
}

func New(cfg config.Analysis, llmStage LLMStage, log *logger.Logger) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		classifier: classify.New(cfg, log),
		llm:        llmStage,
		log:        log,
	}
}

// convState accumulates per-conversation results across the phases. Each
// goroutine owns exactly one index, so no locking is needed.
type convState struct {
	rec       types.ConversationRecord
	seg       segment.Segments
	cands     []types.TopicCandidate
	needsLLM  bool
	llmFailed bool
	result    types.ClassificationResult
	outcome   types.ResolutionOutcome
}

// Run executes the batch. Per-conversation errors are isolated and never
// abort the run; cancellation and aggregation invariant violations abort
// and discard every partial result, so a caller either gets a complete
// BatchResult or none at all.
func (p *Pipeline) Run(ctx context.Context, records []types.ConversationRecord) (*types.BatchResult, error) {
	batchID := uuid.New().String()
	blog := p.log.WithBatch(batchID).WithField("component", "pipeline")
	blog.WithField("total", len(records)).Info("batch started")

	// exclude malformed records up front; the batch continues without them
	var states []*convState
	seenIDs := map[string]bool{}
	excluded := 0
	for _, rec := range records {
		reason := malformedReason(rec)
		if reason == "" && seenIDs[rec.ID] {
			reason = "duplicate conversation id"
		}
		if reason != "" {
			excluded++
			blog.WithField("conversation_id", rec.ID).WithField("reason", reason).Debug("excluding malformed record")
			continue
		}
		seenIDs[rec.ID] = true
		states = append(states, &convState{rec: rec})
	}

	// Phase 1: pure per-conversation work, embarrassingly parallel.
	g, gctx := errgroup.WithContext(ctx)
	for _, st := range states {
		st := st
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			st.seg = segment.Classify(st.rec, p.cfg)
			st.cands = p.classifier.BaseCandidates(st.rec)
			st.needsLLM = p.classifier.NeedsLLM(st.cands)
			st.outcome = resolution.Evaluate(st.rec, st.seg, p.cfg.Thresholds)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Phase 2: LLM tier for the low-confidence residue only, under a
	// token semaphore sized to the external API's rate limit. A failed
	// call falls back to the already-computed tier result.
	if err := p.runLLMTier(ctx, states); err != nil {
		return nil, err
	}

	// Phase 3: primary-topic resolution and known-subtopic search.
	fallbackApplied := 0
	for _, st := range states {
		st.result = p.classifier.Finalize(st.rec, st.cands)
		if st.llmFailed || st.result.PrimaryTopic == types.TopicUnknown {
			fallbackApplied++
		}
	}

	// Phase 4: emergent themes for the unclassified residue.
	p.runEmergentThemes(ctx, states)

	// The aggregation barrier: nothing partial ever crosses it.
	if err := ctx.Err(); err != nil {
		blog.Warn("batch cancelled, discarding partial results")
		return nil, err
	}

	scored := make([]aggregate.Scored, len(states))
	classifications := make([]types.ClassificationResult, len(states))
	outcomes := make([]types.ResolutionOutcome, len(states))
	for i, st := range states {
		scored[i] = aggregate.Scored{
			Classification: st.result,
			Outcome:        st.outcome,
			Rating:         st.rec.Rating,
		}
		classifications[i] = st.result
		outcomes[i] = st.outcome
	}

	categories, err := aggregate.Reduce(scored)
	if err != nil {
		blog.WithError(err).Error("aggregation invariants violated")
		return nil, fmt.Errorf("aggregate batch %s: %w", batchID, err)
	}

	blog.WithField("classified", len(states)).
		WithField("excluded_malformed", excluded).
		WithField("fallback_applied", fallbackApplied).
		Info("batch completed")

	return &types.BatchResult{
		BatchID:                batchID,
		TotalConversations:     len(records),
		ExcludedMalformedCount: excluded,
		FallbackAppliedCount:   fallbackApplied,
		Categories:             categories,
		Classifications:        classifications,
		Outcomes:               outcomes,
	}, nil
}

func (p *Pipeline) runLLMTier(ctx context.Context, states []*convState) error {
	if p.llm == nil {
		return nil
	}
	llog := p.log.WithComponent("pipeline.llm")

	maxConcurrent := p.cfg.LLM.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	tokenSem := make(chan struct{}, maxConcurrent)

	g, gctx := errgroup.WithContext(ctx)
	for _, st := range states {
		if !st.needsLLM {
			continue
		}
		st := st
		g.Go(func() error {
			select {
			case tokenSem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-tokenSem }()

			label, err := p.llm.LabelTopic(gctx, st.rec.Transcript(), p.cfg.TopicNames())
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				// LLMUnavailable: keep the best tier result we have
				st.llmFailed = true
				llog.WithError(err).WithField("conversation_id", st.rec.ID).Warn("llm tier failed, using lower-tier result")
				return nil
			}
			merged, accepted := p.classifier.MergeLLMLabel(st.cands, label)
			if accepted {
				st.cands = merged
			}
			return nil
		})
	}
	return g.Wait()
}

func (p *Pipeline) runEmergentThemes(ctx context.Context, states []*convState) {
	if p.llm == nil || ctx.Err() != nil {
		return
	}
	var pending []cluster.Pending
	byID := map[string]*convState{}
	for _, st := range states {
		if st.result.Subtopic != "" {
			continue
		}
		pending = append(pending, cluster.Pending{
			ConversationID: st.rec.ID,
			Excerpt:        st.rec.Transcript(),
		})
		byID[st.rec.ID] = st
	}
	assigned := cluster.Assign(ctx, pending, p.llm, p.cfg.Cluster, p.log)
	for id, label := range assigned {
		if st, ok := byID[id]; ok {
			st.result.Subtopic = label
		}
	}
}

// malformedReason returns a non-empty diagnostic when required fields are
// missing or out of range; such records are excluded and counted, never
// fatal.
func malformedReason(rec types.ConversationRecord) string {
	if rec.ID == "" {
		return "missing conversation id"
	}
	switch rec.State {
	case types.StateOpen, types.StateClosed:
	default:
		return fmt.Sprintf("invalid state %q", rec.State)
	}
	switch rec.Tier {
	case types.TierFree, types.TierPro, types.TierPlus, types.TierUltra:
	default:
		return fmt.Sprintf("unknown tier %q", rec.Tier)
	}
	if rec.Rating != nil && (*rec.Rating < 1 || *rec.Rating > 5) {
		return fmt.Sprintf("rating %d outside 1-5", *rec.Rating)
	}
	return ""
}
