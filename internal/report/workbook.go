package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"support-insights-go/internal/types"
)

// WriteWorkbook snapshots a batch result into an xlsx workbook for the
// reporting collaborator: one sheet of category aggregates, one of
// subtopic counts, one summary block. What to render from it is the
// consumer's decision.
func WriteWorkbook(path string, res *types.BatchResult) error {
	f := excelize.NewFile()
	defer f.Close()

	const catSheet = "Categories"
	idx, err := f.NewSheet(catSheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)

	header := []any{"Topic", "Conversations", "% of Total", "Resolution Rate", "Escalation Rate", "Avg Rating", "Rated"}
	if err := f.SetSheetRow(catSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, cat := range res.Categories {
		row := []any{
			cat.Topic,
			cat.Count,
			cat.PercentOfTotal,
			cat.ResolutionRate,
			cat.EscalationRate,
			cat.AvgRating,
			cat.RatedCount,
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(catSheet, cellRef, &row); err != nil {
			return fmt.Errorf("write category row: %w", err)
		}
	}

	const subSheet = "Subtopics"
	if _, err := f.NewSheet(subSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	subHeader := []any{"Topic", "Subtopic", "Conversations"}
	if err := f.SetSheetRow(subSheet, "A1", &subHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rowNum := 2
	for _, cat := range res.Categories {
		for _, st := range cat.Subtopics {
			row := []any{cat.Topic, st.Name, st.Count}
			cellRef, _ := excelize.CoordinatesToCellName(1, rowNum)
			if err := f.SetSheetRow(subSheet, cellRef, &row); err != nil {
				return fmt.Errorf("write subtopic row: %w", err)
			}
			rowNum++
		}
	}

	const sumSheet = "Summary"
	if _, err := f.NewSheet(sumSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	summary := [][]any{
		{"Batch", res.BatchID},
		{"Total Conversations", res.TotalConversations},
		{"Excluded Malformed", res.ExcludedMalformedCount},
		{"Fallback Applied", res.FallbackAppliedCount},
	}
	for i, row := range summary {
		row := row
		cellRef, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sumSheet, cellRef, &row); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
