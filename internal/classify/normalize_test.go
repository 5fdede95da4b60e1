package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"support-insights-go/internal/config"
)

func TestNormalizeLabel(t *testing.T) {
	cfg := config.Default()

	tests := []struct {
		name      string
		label     string
		wantTopic string
		wantOK    bool
	}{
		{name: "exact", label: "Billing", wantTopic: "Billing", wantOK: true},
		{name: "case insensitive", label: "billing", wantTopic: "Billing", wantOK: true},
		{name: "case insensitive with punctuation", label: "Account.", wantTopic: "Account", wantOK: true},
		{name: "label contains canonical", label: "Billing and Payments", wantTopic: "Billing", wantOK: true},
		{name: "canonical contains label", label: "Technical", wantTopic: "Technical Issue", wantOK: true},
		{name: "synonym table", label: "Refund Request", wantTopic: "Billing", wantOK: true},
		{name: "synonym inside longer phrasing", label: "customer password reset request", wantTopic: "Account", wantOK: true},
		{name: "unmappable label is discarded", label: "Quantum Flux Advice", wantOK: false},
		{name: "empty label is discarded", label: "  ", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topic, ok := NormalizeLabel(tt.label, cfg)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantTopic, topic)
			}
		})
	}
}

func TestNormalizeLabel_Deterministic(t *testing.T) {
	cfg := config.Default()
	first, ok := NormalizeLabel("billing question about login problem", cfg)
	assert.True(t, ok)
	for i := 0; i < 20; i++ {
		got, ok := NormalizeLabel("billing question about login problem", cfg)
		assert.True(t, ok)
		assert.Equal(t, first, got)
	}
}
