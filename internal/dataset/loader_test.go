package dataset

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"support-insights-go/internal/types"
)

func writeFixture(t *testing.T, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		row := row
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	path := filepath.Join(t.TempDir(), "conversations.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestLoad(t *testing.T) {
	path := writeFixture(t, [][]any{
		{"Conversation ID", "Created At", "Plan Tier", "Status", "CSAT Rating", "Reopen Count", "Assigned Admin", "Customer Message", "Assistant Reply", "Agent Reply", "Agent Name", "Agent Email", "attr:category"},
		{"conv-1", "2026-03-01 10:00:00", "Pro", "closed", "4", "0", "", "I want a refund", "Here is how refunds work", "", "", "", "Billing"},
		{"conv-2", "2026-03-02 11:30:00", "Free", "open", "", "1", "admin-7", "cannot login", "try resetting", "I reset it for you", "Dana", "dana@support.example.com", ""},
		{"", "", "", "", "", "", "", "", "", "", "", "", ""}, // fully blank, skipped
	})

	records, err := Load(path)
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "conv-1", first.ID)
	assert.Equal(t, types.TierPro, first.Tier)
	assert.Equal(t, types.StateClosed, first.State)
	require.NotNil(t, first.Rating)
	assert.Equal(t, 4, *first.Rating)
	assert.Equal(t, 0, first.ReopenCount)
	require.Len(t, first.Parts, 2)
	assert.Equal(t, types.AuthorCustomer, first.Parts[0].AuthorType)
	assert.Equal(t, "I want a refund", first.Parts[0].Text)
	assert.Equal(t, types.AuthorAssistant, first.Parts[1].AuthorType)
	assert.Equal(t, "Billing", first.Attributes["category"])
	assert.False(t, first.CreatedAt.IsZero())

	second := records[1]
	assert.Equal(t, types.TierFree, second.Tier)
	assert.Equal(t, types.StateOpen, second.State)
	assert.Nil(t, second.Rating)
	assert.Equal(t, 1, second.ReopenCount)
	assert.Equal(t, "admin-7", second.AssignedAdminID)
	require.Len(t, second.Parts, 3)
	agent := second.Parts[2]
	assert.Equal(t, types.AuthorHumanAdmin, agent.AuthorType)
	assert.Equal(t, "Dana", agent.AuthorName)
	assert.Equal(t, "dana@support.example.com", agent.AuthorEmail)
	assert.Empty(t, second.Attributes)
}

func TestLoad_NoDataRows(t *testing.T) {
	path := writeFixture(t, [][]any{
		{"Conversation ID", "Customer Message"},
	})
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.Error(t, err)
}
