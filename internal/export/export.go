// Package export renders time-entry reports as CSV or JSON.
package export

import (
	"fmt"
	"time"
)

// Row is one time entry of a report.
type Row struct {
	EntryID         string
	StartAt         time.Time
	EndAt           *time.Time
	Project         string
	Task            string
	DurationSeconds int64
	Amount          float64
	Note            string
}

// Hours returns the tracked time in hours.
func (r Row) Hours() float64 {
	return float64(r.DurationSeconds) / 3600
}

// Format is an export encoding.
type Format string

const (
	CSV  Format = "csv"
	JSON Format = "json"
)

// ParseFormat accepts "csv" or "json"; empty means csv.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", CSV:
		return CSV, nil
	case JSON:
		return JSON, nil
	}
	return "", fmt.Errorf("unknown export format %q (want csv or json)", s)
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == JSON {
		return "application/json; charset=utf-8"
	}
	return "text/csv; charset=utf-8"
}

// Filename returns the download name of a report for rangeName.
func (f Format) Filename(rangeName string) string {
	return fmt.Sprintf("report-%s.%s", rangeName, f)
}

func formatDuration(secs int64) string {
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
