package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Analysis is the injected, immutable configuration for one analysis batch:
// taxonomy vocabulary, confidence thresholds, synonym table, clustering and
// LLM settings. It is passed explicitly into every classification call so
// tests can substitute fixtures without touching shared state.
type Analysis struct {
	Taxonomy  []Topic           `yaml:"taxonomy"`
	Synonyms  map[string]string `yaml:"synonyms"`   // folded phrase -> canonical topic
	AIAliases []string          `yaml:"ai_aliases"` // author name/email fragments of automated assistants

	Thresholds Thresholds      `yaml:"thresholds"`
	Cluster    ClusterSettings `yaml:"cluster"`
	LLM        LLMSettings     `yaml:"llm"`
}

// Topic is one canonical top-level category with its multilingual keyword
// set and nested subtopic vocabulary.
type Topic struct {
	Name      string     `yaml:"name"`
	Keywords  []string   `yaml:"keywords"`
	Subtopics []Subtopic `yaml:"subtopics"`
}

type Subtopic struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

type Thresholds struct {
	KeywordBase     float64 `yaml:"keyword_base"`      // first distinct keyword match
	KeywordPerMatch float64 `yaml:"keyword_per_match"` // each distinct match beyond the formula base
	KeywordCap      float64 `yaml:"keyword_cap"`
	Attribute       float64 `yaml:"attribute"` // unvalidated against text, capped below keyword
	Hybrid          float64 `yaml:"hybrid"`    // two independent signals agree
	LLMAccept       float64 `yaml:"llm_accept"`
	FallbackFloor   float64 `yaml:"fallback_floor"`
	LLMTrigger      float64 `yaml:"llm_trigger"` // invoke LLM tier below this best confidence

	// MinAIRating is the lowest rating that still validates an
	// assistant-only close as ai_resolved. Ratings below it move the
	// conversation to ai_attempted_not_validated.
	MinAIRating int `yaml:"min_ai_rating"`
}

type ClusterSettings struct {
	MinBatchSize int `yaml:"min_batch_size"` // below this, skip clustering entirely
	MaxThemes    int `yaml:"max_themes"`
}

type LLMSettings struct {
	Models         []string      `yaml:"models"` // fallback order
	MaxConcurrent  int           `yaml:"max_concurrent"`
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	CallTimeout    time.Duration `yaml:"call_timeout"`
	Mock           bool          `yaml:"mock"`
}

// Default returns the built-in taxonomy and thresholds. Tests and offline
// runs use it directly; Load starts from it and overlays the YAML file.
func Default() Analysis {
	return Analysis{
		Taxonomy: []Topic{
			{
				Name: "Billing",
				Keywords: []string{
					"refund", "charge", "charged", "invoice", "billing",
					"subscription", "payment", "receipt", "renewal",
					"reembolso", "remboursement", "rechnung", "fattura", "facture",
				},
				Subtopics: []Subtopic{
					{Name: "Refunds", Keywords: []string{"refund", "money back", "reembolso", "remboursement"}},
					{Name: "Duplicate Charges", Keywords: []string{"charged twice", "double charge", "duplicate charge"}},
					{Name: "Invoices", Keywords: []string{"invoice", "receipt", "facture", "rechnung"}},
				},
			},
			{
				Name: "Account",
				Keywords: []string{
					"account", "login", "password", "sign in", "signin",
					"two-factor", "2fa", "username", "cuenta", "compte", "konto",
				},
				Subtopics: []Subtopic{
					{Name: "Login Issues", Keywords: []string{"login", "password", "sign in", "2fa", "locked out"}},
					{Name: "Account Deletion", Keywords: []string{"delete my account", "close my account", "remove my data"}},
				},
			},
			{
				Name: "Technical Issue",
				Keywords: []string{
					"error", "crash", "bug", "broken", "not working",
					"timeout", "slow", "fehler", "erreur",
				},
				Subtopics: []Subtopic{
					{Name: "Errors", Keywords: []string{"error", "fehler", "erreur", "failed"}},
					{Name: "Performance", Keywords: []string{"slow", "timeout", "lag"}},
				},
			},
			{
				Name: "Feature Question",
				Keywords: []string{
					"how do i", "how to", "feature", "can i", "is it possible",
					"documentation", "como puedo",
				},
			},
		},
		Synonyms: map[string]string{
			"refund request":   "Billing",
			"billing question": "Billing",
			"payment issue":    "Billing",
			"overcharge":       "Billing",
			"password reset":   "Account",
			"login problem":    "Account",
			"account access":   "Account",
			"bug report":       "Technical Issue",
			"site down":        "Technical Issue",
			"outage":           "Technical Issue",
			"usage question":   "Feature Question",
			"how-to":           "Feature Question",
		},
		AIAliases: []string{
			"assistant", "ai agent", "support bot", "autoresponder",
			"bot@", "no-reply@", "noreply@", "ai@",
		},
		Thresholds: Thresholds{
			KeywordBase:     0.5,
			KeywordPerMatch: 0.15,
			KeywordCap:      0.9,
			Attribute:       0.7,
			Hybrid:          0.95,
			LLMAccept:       0.6,
			FallbackFloor:   0.1,
			LLMTrigger:      0.65,
			MinAIRating:     3,
		},
		Cluster: ClusterSettings{
			MinBatchSize: 5,
			MaxThemes:    4,
		},
		LLM: LLMSettings{
			Models:         []string{"claude-sonnet-4-5-20250929", "claude-3-5-haiku-latest"},
			MaxConcurrent:  4,
			MaxAttempts:    3,
			InitialBackoff: 500 * time.Millisecond,
			CallTimeout:    25 * time.Second,
		},
	}
}

// Load reads a YAML taxonomy file over the defaults. Absent keys keep their
// default values, so a file may override just the taxonomy or just one
// threshold block.
func Load(path string) (Analysis, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Analysis{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Analysis{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Analysis{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that would break the confidence
// invariant or leave the pipeline without a vocabulary.
func (c Analysis) Validate() error {
	if len(c.Taxonomy) == 0 {
		return fmt.Errorf("config: taxonomy has no topics")
	}
	seen := map[string]bool{}
	for _, t := range c.Taxonomy {
		if t.Name == "" {
			return fmt.Errorf("config: topic with empty name")
		}
		if seen[t.Name] {
			return fmt.Errorf("config: duplicate topic %q", t.Name)
		}
		seen[t.Name] = true
	}
	for name, v := range map[string]float64{
		"keyword_base":   c.Thresholds.KeywordBase,
		"keyword_cap":    c.Thresholds.KeywordCap,
		"attribute":      c.Thresholds.Attribute,
		"hybrid":         c.Thresholds.Hybrid,
		"llm_accept":     c.Thresholds.LLMAccept,
		"fallback_floor": c.Thresholds.FallbackFloor,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("config: threshold %s=%v outside [0,1]", name, v)
		}
	}
	if c.Cluster.MinBatchSize < 1 {
		return fmt.Errorf("config: cluster min_batch_size must be >= 1")
	}
	if c.Cluster.MaxThemes < 2 {
		return fmt.Errorf("config: cluster max_themes must be >= 2")
	}
	if len(c.LLM.Models) == 0 {
		return fmt.Errorf("config: llm models list is empty")
	}
	return nil
}

// TopicNames returns the canonical vocabulary in configuration order.
func (c Analysis) TopicNames() []string {
	names := make([]string, 0, len(c.Taxonomy))
	for _, t := range c.Taxonomy {
		names = append(names, t.Name)
	}
	return names
}

// TopicByName looks up a taxonomy entry; the bool reports presence.
func (c Analysis) TopicByName(name string) (Topic, bool) {
	for _, t := range c.Taxonomy {
		if t.Name == name {
			return t, true
		}
	}
	return Topic{}, false
}
