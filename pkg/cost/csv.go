package cost

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// csvHeader is the exact export header. Importers key on it, so it is part of
// the interface and must not change.
var csvHeader = []string{
	"id", "agentId", "guild", "provider", "model", "task",
	"inputTokens", "outputTokens", "totalTokens", "cost", "duration", "success",
}

// maxTaskExportLen truncates the free-form task text in exports.
const maxTaskExportLen = 50

// ExportCSV renders all entries as CSV, oldest first. Task text is truncated
// to at most 50 bytes on a rune boundary and cost is formatted to 6 decimal
// places.
func (t *Tracker) ExportCSV() string {
	entries := t.Entries()

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	_ = w.Write(csvHeader)

	for _, e := range entries {
		task := truncateTask(e.Task)
		_ = w.Write([]string{
			e.ID,
			e.AgentID,
			e.Guild,
			e.Provider,
			e.Model,
			task,
			strconv.Itoa(e.Tokens.Input),
			strconv.Itoa(e.Tokens.Output),
			strconv.Itoa(e.Tokens.Total),
			strconv.FormatFloat(e.CostUSD, 'f', 6, 64),
			strconv.FormatInt(e.DurationMs, 10),
			strconv.FormatBool(e.Success),
		})
	}
	w.Flush()
	return sb.String()
}

// truncateTask cuts task text to the export limit, backing up to the start of
// the rune straddling the cut so the field stays valid UTF-8.
func truncateTask(task string) string {
	if len(task) <= maxTaskExportLen {
		return task
	}
	cut := maxTaskExportLen
	for cut > 0 && !utf8.RuneStart(task[cut]) {
		cut--
	}
	return task[:cut]
}

// ImportCSV parses an exported CSV back into entries. Timestamps are not part
// of the export, so they come back zero; every other semantic field round-trips.
func ImportCSV(data string) ([]Entry, error) {
	r := csv.NewReader(strings.NewReader(data))
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse cost CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parse cost CSV: missing header row")
	}
	if got := strings.Join(records[0], ","); got != strings.Join(csvHeader, ",") {
		return nil, fmt.Errorf("parse cost CSV: unexpected header %q", got)
	}

	entries := make([]Entry, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) != len(csvHeader) {
			return nil, fmt.Errorf("parse cost CSV: row %d has %d fields, want %d", i+2, len(rec), len(csvHeader))
		}
		input, err := strconv.Atoi(rec[6])
		if err != nil {
			return nil, fmt.Errorf("parse cost CSV: row %d inputTokens: %w", i+2, err)
		}
		output, err := strconv.Atoi(rec[7])
		if err != nil {
			return nil, fmt.Errorf("parse cost CSV: row %d outputTokens: %w", i+2, err)
		}
		total, err := strconv.Atoi(rec[8])
		if err != nil {
			return nil, fmt.Errorf("parse cost CSV: row %d totalTokens: %w", i+2, err)
		}
		costUSD, err := strconv.ParseFloat(rec[9], 64)
		if err != nil {
			return nil, fmt.Errorf("parse cost CSV: row %d cost: %w", i+2, err)
		}
		duration, err := strconv.ParseInt(rec[10], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse cost CSV: row %d duration: %w", i+2, err)
		}
		success, err := strconv.ParseBool(rec[11])
		if err != nil {
			return nil, fmt.Errorf("parse cost CSV: row %d success: %w", i+2, err)
		}

		entries = append(entries, Entry{
			ID:         rec[0],
			AgentID:    rec[1],
			Guild:      rec[2],
			Provider:   rec[3],
			Model:      rec[4],
			Task:       rec[5],
			Tokens:     TokenUsage{Input: input, Output: output, Total: total},
			CostUSD:    costUSD,
			Timestamp:  time.Time{},
			DurationMs: duration,
			Success:    success,
		})
	}
	return entries, nil
}
