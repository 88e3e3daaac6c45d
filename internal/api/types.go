// Package api holds the JSON wire types shared by the HTTP server and client.
package api

import (
	"bytes"
	"encoding/json"
	"time"
)

// Nullable distinguishes an absent JSON field from an explicit null.
type Nullable[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Value returns a Nullable holding v.
func Value[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Value: v}
}

// Null returns a Nullable that encodes as null.
func Null[T any]() Nullable[T] {
	return Nullable[T]{Set: true, Null: true}
}

func (n Nullable[T]) IsZero() bool { return !n.Set }

func (n Nullable[T]) MarshalJSON() ([]byte, error) {
	if !n.Set || n.Null {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

func (n *Nullable[T]) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		n.Null = true
		return nil
	}
	return json.Unmarshal(b, &n.Value)
}

type ProjectRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type TaskRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type TimeEntry struct {
	ID              string      `json:"id"`
	ProjectID       string      `json:"projectId"`
	TaskID          *string     `json:"taskId"`
	StartAt         time.Time   `json:"startAt"`
	EndAt           *time.Time  `json:"endAt"`
	DurationSeconds int64       `json:"durationSeconds"`
	Note            *string     `json:"note"`
	IsManual        bool        `json:"isManual"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
	Project         *ProjectRef `json:"project,omitempty"`
	Task            *TaskRef    `json:"task,omitempty"`
}

// Open reports whether the entry is a running timer.
func (e TimeEntry) Open() bool { return e.EndAt == nil }

type StartTimerRequest struct {
	ProjectID string  `json:"projectId"`
	TaskID    *string `json:"taskId,omitempty"`
	Note      *string `json:"note,omitempty"`
}

// EditEntryRequest is a manual correction. An explicit null endAt asks to
// reopen the entry.
type EditEntryRequest struct {
	StartAt Nullable[time.Time] `json:"startAt,omitzero"`
	EndAt   Nullable[time.Time] `json:"endAt,omitzero"`
	Note    Nullable[string]    `json:"note,omitzero"`
}

type Project struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ClientName *string   `json:"clientName"`
	Status     string    `json:"status"`
	HourlyRate *float64  `json:"hourlyRate"`
	Tags       []string  `json:"tags"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	TaskCount  int       `json:"taskCount"`
	EntryCount int       `json:"entryCount"`
}

type ProjectDetail struct {
	Project
	Tasks       []Task       `json:"tasks"`
	Attachments []Attachment `json:"attachments"`
	TimeEntries []TimeEntry  `json:"timeEntries"`
}

type ProjectCreateRequest struct {
	Name       string   `json:"name"`
	ClientName *string  `json:"clientName,omitempty"`
	HourlyRate *float64 `json:"hourlyRate,omitempty"`
	Status     string   `json:"status,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

type ProjectUpdateRequest struct {
	Name       *string           `json:"name,omitempty"`
	ClientName Nullable[string]  `json:"clientName,omitzero"`
	HourlyRate Nullable[float64] `json:"hourlyRate,omitzero"`
	Status     *string           `json:"status,omitempty"`
	Tags       *[]string         `json:"tags,omitempty"`
}

type Task struct {
	ID              string    `json:"id"`
	ProjectID       string    `json:"projectId"`
	Title           string    `json:"title"`
	Description     *string   `json:"description"`
	Status          string    `json:"status"`
	Priority        string    `json:"priority"`
	Tags            []string  `json:"tags"`
	EstimateMinutes *int      `json:"estimateMinutes"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type TaskCreateRequest struct {
	ProjectID       string   `json:"projectId"`
	Title           string   `json:"title"`
	Description     *string  `json:"description,omitempty"`
	Status          string   `json:"status,omitempty"`
	Priority        string   `json:"priority,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	EstimateMinutes *int     `json:"estimateMinutes,omitempty"`
}

type TaskUpdateRequest struct {
	Title           *string          `json:"title,omitempty"`
	Description     Nullable[string] `json:"description,omitzero"`
	Status          *string          `json:"status,omitempty"`
	Priority        *string          `json:"priority,omitempty"`
	Tags            *[]string        `json:"tags,omitempty"`
	EstimateMinutes Nullable[int]    `json:"estimateMinutes,omitzero"`
}

type Attachment struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"projectId"`
	TaskID     *string   `json:"taskId"`
	Filename   string    `json:"filename"`
	StorageKey string    `json:"storageKey"`
	MimeType   string    `json:"mimeType"`
	SizeBytes  int64     `json:"sizeBytes"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Settings struct {
	Theme    string `json:"theme"`
	Locale   string `json:"locale"`
	Currency string `json:"currency"`
}

type SettingsUpdateRequest struct {
	Theme    *string `json:"theme,omitempty"`
	Locale   *string `json:"locale,omitempty"`
	Currency *string `json:"currency,omitempty"`
}

// Success is returned by delete endpoints.
type Success struct {
	Success bool `json:"success"`
}
