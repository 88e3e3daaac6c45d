package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

type jsonExport struct {
	ExportedAt string      `json:"exported_at"`
	Range      string      `json:"range"`
	Count      int         `json:"count"`
	Entries    []jsonEntry `json:"entries"`
}

type jsonEntry struct {
	ID          string  `json:"id"`
	Project     string  `json:"project"`
	Task        string  `json:"task,omitempty"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time,omitempty"`
	DurationSec int64   `json:"duration_seconds"`
	Duration    string  `json:"duration"`
	Hours       float64 `json:"hours"`
	Amount      float64 `json:"amount"`
	Notes       string  `json:"notes,omitempty"`
}

// WriteJSON writes an indented JSON report.
func WriteJSON(w io.Writer, rangeName string, rows []Row, exportedAt time.Time) error {
	export := jsonExport{
		ExportedAt: exportedAt.UTC().Format(time.RFC3339),
		Range:      rangeName,
		Count:      len(rows),
		Entries:    []jsonEntry{},
	}

	for _, r := range rows {
		endStr := ""
		if r.EndAt != nil {
			endStr = r.EndAt.UTC().Format(time.RFC3339)
		}
		export.Entries = append(export.Entries, jsonEntry{
			ID:          r.EntryID,
			Project:     r.Project,
			Task:        r.Task,
			StartTime:   r.StartAt.UTC().Format(time.RFC3339),
			EndTime:     endStr,
			DurationSec: r.DurationSeconds,
			Duration:    formatDuration(r.DurationSeconds),
			Hours:       round2(r.Hours()),
			Amount:      round2(r.Amount),
			Notes:       r.Note,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(export); err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	return nil
}

// ToJSON writes the report to a file at path.
func ToJSON(rangeName string, rows []Row, exportedAt time.Time, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create json file: %w", err)
	}
	defer f.Close()

	if err := WriteJSON(f, rangeName, rows, exportedAt); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return f.Close()
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
