// Package timer is the client-side timer state machine. The server only
// knows open and closed entries; pausing is a client notion built from a
// server stop plus locally carried seconds.
package timer

import (
	"time"

	"github.com/sadopc/tally/internal/api"
)

type State int

const (
	Idle State = iota
	Active
	Paused
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Paused:
		return "paused"
	default:
		return "idle"
	}
}

// Pair identifies what a timer is tracking.
type Pair struct {
	ProjectID string  `json:"projectId"`
	TaskID    *string `json:"taskId"`
}

func (p Pair) Equal(o Pair) bool {
	if p.ProjectID != o.ProjectID {
		return false
	}
	if p.TaskID == nil || o.TaskID == nil {
		return p.TaskID == nil && o.TaskID == nil
	}
	return *p.TaskID == *o.TaskID
}

func pairOf(e *api.TimeEntry) Pair {
	return Pair{ProjectID: e.ProjectID, TaskID: e.TaskID}
}

// PausedTimer is the frozen timer shown while paused.
type PausedTimer struct {
	ProjectID      string    `json:"projectId"`
	ProjectName    string    `json:"projectName"`
	TaskID         *string   `json:"taskId"`
	TaskTitle      string    `json:"taskTitle,omitempty"`
	ElapsedSeconds int64     `json:"elapsedSeconds"`
	PausedAt       time.Time `json:"pausedAt"`
}

func (p PausedTimer) Pair() Pair {
	return Pair{ProjectID: p.ProjectID, TaskID: p.TaskID}
}

// Carry holds seconds accumulated before the current server entry started,
// added to the display while the same pair is running.
type Carry struct {
	ProjectID string  `json:"projectId"`
	TaskID    *string `json:"taskId"`
	Seconds   int64   `json:"seconds"`
}

func (c Carry) Pair() Pair {
	return Pair{ProjectID: c.ProjectID, TaskID: c.TaskID}
}

// View is what a client renders.
type View struct {
	State       State
	EntryID     string
	ProjectID   string
	ProjectName string
	TaskID      *string
	TaskTitle   string
	StartAt     time.Time
	PausedAt    time.Time
	Elapsed     int64
	Prompting   bool
	Err         string
}

// Trigger names the reason for a resync.
type Trigger string

const (
	TriggerLoad  Trigger = "load"
	TriggerFocus Trigger = "focus"
	TriggerPoll  Trigger = "poll"
	TriggerSync  Trigger = "sync"
)
