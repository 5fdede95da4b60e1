package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"support-insights-go/internal/types"
)

// Load reads a conversation export workbook into ConversationRecords.
// Column positions are auto-detected from header heuristics because
// upstream exports are not consistent about ordering. Rows that are
// entirely blank are skipped quietly; partially-filled rows are kept and
// left for the pipeline's malformed-record handling to count.
func Load(path string) ([]types.ConversationRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("no data rows")
	}

	cols := detectColumns(rows[0])

	var out []types.ConversationRecord
	for i, r := range rows {
		if i == 0 || blankRow(r) {
			continue
		}
		rec := types.ConversationRecord{
			ID:              cell(r, cols.id),
			AssignedAdminID: cell(r, cols.assigned),
			Attributes:      map[string]string{},
		}
		if created := cell(r, cols.created); created != "" {
			if ts, err := parseTime(created); err == nil {
				rec.CreatedAt = ts
			}
		}
		rec.Tier, _ = types.ParseTier(cell(r, cols.tier))
		rec.State, _ = types.ParseState(cell(r, cols.state))
		if v := cell(r, cols.rating); v != "" {
			if rating, err := strconv.Atoi(v); err == nil {
				rec.Rating = &rating
			}
		}
		if v := cell(r, cols.reopen); v != "" {
			rec.ReopenCount, _ = strconv.Atoi(v)
		}

		if text := cell(r, cols.customerText); text != "" {
			rec.Parts = append(rec.Parts, types.MessagePart{
				AuthorType: types.AuthorCustomer,
				Text:       text,
			})
		}
		if text := cell(r, cols.assistantText); text != "" {
			rec.Parts = append(rec.Parts, types.MessagePart{
				AuthorType: types.AuthorAssistant,
				AuthorName: cell(r, cols.assistantName),
				Text:       text,
			})
		}
		if text := cell(r, cols.agentText); text != "" {
			rec.Parts = append(rec.Parts, types.MessagePart{
				AuthorType:  types.AuthorHumanAdmin,
				AuthorName:  cell(r, cols.agentName),
				AuthorEmail: cell(r, cols.agentEmail),
				Text:        text,
			})
		}
		for idx, name := range cols.attributes {
			if v := cell(r, idx); v != "" {
				rec.Attributes[name] = v
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

type columns struct {
	id, created, tier, state, rating, reopen, assigned int
	customerText, assistantText, assistantName         int
	agentText, agentName, agentEmail                   int
	attributes                                         map[int]string
}

func detectColumns(header []string) columns {
	c := columns{
		id: -1, created: -1, tier: -1, state: -1, rating: -1, reopen: -1, assigned: -1,
		customerText: -1, assistantText: -1, assistantName: -1,
		agentText: -1, agentName: -1, agentEmail: -1,
		attributes: map[int]string{},
	}
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.HasPrefix(l, "attr:") || strings.HasPrefix(l, "attribute:"):
			name := strings.TrimSpace(l[strings.Index(l, ":")+1:])
			if name != "" {
				c.attributes[i] = name
			}
		case c.id == -1 && (l == "id" || strings.Contains(l, "conversation id")):
			c.id = i
		case c.created == -1 && (strings.Contains(l, "created") || strings.Contains(l, "date")):
			c.created = i
		case c.tier == -1 && (strings.Contains(l, "tier") || strings.Contains(l, "plan")):
			c.tier = i
		case c.state == -1 && (strings.Contains(l, "state") || strings.Contains(l, "status")):
			c.state = i
		case c.rating == -1 && (strings.Contains(l, "rating") || strings.Contains(l, "csat")):
			c.rating = i
		case c.reopen == -1 && strings.Contains(l, "reopen"):
			c.reopen = i
		case c.assigned == -1 && strings.Contains(l, "assigned"):
			c.assigned = i
		case c.customerText == -1 && (strings.Contains(l, "customer message") || strings.Contains(l, "question") || l == "message"):
			c.customerText = i
		case c.assistantText == -1 && (strings.Contains(l, "assistant reply") || strings.Contains(l, "ai reply") || strings.Contains(l, "bot reply")):
			c.assistantText = i
		case c.assistantName == -1 && strings.Contains(l, "assistant name"):
			c.assistantName = i
		case c.agentText == -1 && (strings.Contains(l, "agent reply") || strings.Contains(l, "admin reply") || strings.Contains(l, "human reply")):
			c.agentText = i
		case c.agentName == -1 && strings.Contains(l, "agent name"):
			c.agentName = i
		case c.agentEmail == -1 && strings.Contains(l, "agent email"):
			c.agentEmail = i
		}
	}
	return c
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02", "01-02-06", "1/2/06 15:04"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
