package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"

	"support-insights-go/internal/config"
	"support-insights-go/internal/logger"
)

// ErrUnavailable wraps any LLM failure that survived the retry schedule.
// Callers fall back to their best already-computed tier result.
var ErrUnavailable = errors.New("llm unavailable")

// sendFunc issues a single model call and returns its text content. The
// retry and fallback schedule in complete is written against this seam,
// so tests can drive it without the network.
type sendFunc func(ctx context.Context, model, system, user string) (string, error)

var errNoText = errors.New("no text content in response")

// Client wraps the Anthropic API with model fallback, bounded exponential
// retry and a deterministic mock mode for offline runs.
type Client struct {
	cfg  config.LLMSettings
	mock bool
	log  *logger.Logger
	send sendFunc
}

func New(cfg config.LLMSettings, log *logger.Logger) *Client {
	mock := cfg.Mock || os.Getenv("USE_MOCK_LLM") == "true"
	c := &Client{cfg: cfg, mock: mock, log: log}
	if !mock {
		c.send = apiSender(anthropic.NewClient(option.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY"))))
	}
	return c
}

func apiSender(api anthropic.Client) sendFunc {
	return func(ctx context.Context, model, system, user string) (string, error) {
		message, err := api.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(model),
			MaxTokens: 1024,
			System: []anthropic.TextBlockParam{
				{Text: system},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
			},
		})
		if err != nil {
			return "", err
		}
		for _, block := range message.Content {
			if block.Type == "text" {
				return block.Text, nil
			}
		}
		return "", errNoText
	}
}

// complete sends one prompt, walking the configured model fallback order.
// Each model gets the full retry schedule; client errors are permanent.
func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	log := c.log.WithComponent("llm")

	var lastErr error
	for _, model := range c.cfg.Models {
		model := model
		op := func() (string, error) {
			callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
			defer cancel()

			text, err := c.send(callCtx, model, system, user)
			if err != nil {
				var apierr *anthropic.Error
				switch {
				case errors.Is(err, errNoText):
					return "", backoff.Permanent(err)
				case errors.As(err, &apierr) && apierr.StatusCode >= 400 && apierr.StatusCode < 500 && apierr.StatusCode != 429:
					return "", backoff.Permanent(err)
				}
				return "", err
			}
			return text, nil
		}

		b := backoff.NewExponentialBackOff()
		b.InitialInterval = c.cfg.InitialBackoff
		b.Multiplier = 2
		attempts := uint64(c.cfg.MaxAttempts)
		if attempts == 0 {
			attempts = 1
		}
		text, err := backoff.RetryWithData(op, backoff.WithContext(backoff.WithMaxRetries(b, attempts-1), ctx))
		if err == nil {
			return text, nil
		}
		lastErr = err
		log.WithError(err).WithField("model", model).Warn("model failed, trying next in fallback order")
		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// LabelTopic asks the model for a single free-text topic label for one
// conversation. The label is untrusted: it must pass the normalization
// gate in the classify package before becoming a candidate.
func (c *Client) LabelTopic(ctx context.Context, transcript string, topics []string) (string, error) {
	if c.mock {
		return mockLabel(transcript), nil
	}

	system := "You label customer-support conversations. Respond with a single short topic label and nothing else. No punctuation, no explanation."
	user := fmt.Sprintf(`Known topics:
%s

Conversation:
"""
%s
"""

Reply with the one label that best describes the conversation's topic. Prefer a known topic; if none fits, reply with a short phrase of your own.`,
		strings.Join(topics, "\n"), clip(transcript, 6000))

	text, err := c.complete(ctx, system, user)
	if err != nil {
		return "", err
	}
	label := strings.TrimSpace(strings.Trim(strings.TrimSpace(text), "\"'`"))
	if i := strings.IndexByte(label, '\n'); i >= 0 {
		label = strings.TrimSpace(label[:i])
	}
	if label == "" {
		return "", fmt.Errorf("%w: empty label", ErrUnavailable)
	}
	return label, nil
}

type themeResponse struct {
	Themes []struct {
		Label   string `json:"label"`
		Members []int  `json:"members"`
	} `json:"themes"`
}

// ClusterThemes groups the numbered excerpts into 2..maxThemes short
// thematic labels. Every excerpt index is assigned to exactly one theme;
// model omissions and duplicates are repaired rather than surfaced, so the
// caller's per-batch counts always add up.
func (c *Client) ClusterThemes(ctx context.Context, excerpts []string, maxThemes int) (map[int]string, error) {
	if len(excerpts) == 0 {
		return map[int]string{}, nil
	}
	if c.mock {
		return mockThemes(excerpts), nil
	}

	var sb strings.Builder
	for i, ex := range excerpts {
		fmt.Fprintf(&sb, "%d. %s\n", i, clip(ex, 400))
	}
	system := "You discover emerging themes in unclassified customer-support conversations. Respond with JSON only."
	user := fmt.Sprintf(`Conversation excerpts:
%s
Group ALL excerpts into 2 to %d themes with short labels (2-4 words each). Every excerpt index must appear in exactly one theme.
Return ONLY JSON of the form {"themes":[{"label":"...","members":[0,2]}]}.`, sb.String(), maxThemes)

	text, err := c.complete(ctx, system, user)
	if err != nil {
		return nil, err
	}
	raw := ExtractJSON(text)
	if raw == "" {
		return nil, fmt.Errorf("%w: no JSON in clustering response", ErrUnavailable)
	}
	var parsed themeResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("%w: bad clustering JSON: %v", ErrUnavailable, err)
	}

	assigned := make(map[int]string, len(excerpts))
	firstLabel := ""
	for _, th := range parsed.Themes {
		label := strings.TrimSpace(th.Label)
		if label == "" {
			continue
		}
		if firstLabel == "" {
			firstLabel = label
		}
		for _, m := range th.Members {
			if m < 0 || m >= len(excerpts) {
				continue
			}
			if _, dup := assigned[m]; !dup {
				assigned[m] = label
			}
		}
	}
	if firstLabel == "" {
		return nil, fmt.Errorf("%w: clustering returned no themes", ErrUnavailable)
	}
	// repair omissions so every excerpt lands somewhere
	for i := range excerpts {
		if _, ok := assigned[i]; !ok {
			assigned[i] = firstLabel
		}
	}
	return assigned, nil
}

// --- deterministic mocks for offline runs and tests ---

func mockLabel(transcript string) string {
	t := strings.ToLower(transcript)
	switch {
	case strings.Contains(t, "refund") || strings.Contains(t, "charg"):
		return "Refund Request"
	case strings.Contains(t, "password") || strings.Contains(t, "login"):
		return "Login Problem"
	case strings.Contains(t, "error") || strings.Contains(t, "crash"):
		return "Bug Report"
	default:
		return "General Question"
	}
}

func mockThemes(excerpts []string) map[int]string {
	out := make(map[int]string, len(excerpts))
	for i := range excerpts {
		if i%2 == 0 {
			out[i] = "Workflow Questions"
		} else {
			out[i] = "Feature Requests"
		}
	}
	return out
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// SortedIndices is a small helper for deterministic iteration over theme
// assignments in logs and tests.
func SortedIndices(m map[int]string) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
