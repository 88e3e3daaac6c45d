package store

import "time"

type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "ACTIVE"
	ProjectArchived  ProjectStatus = "ARCHIVED"
	ProjectCompleted ProjectStatus = "COMPLETED"
)

type TaskStatus string

const (
	TaskTodo       TaskStatus = "TODO"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskDone       TaskStatus = "DONE"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "LOW"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityHigh   TaskPriority = "HIGH"
)

type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
}

type Project struct {
	ID         string
	UserID     string
	Name       string
	ClientName *string
	Status     ProjectStatus
	HourlyRate *float64
	Tags       []string
	CreatedAt  time.Time
	UpdatedAt  time.Time

	// Filled by ListProjects.
	TaskCount  int
	EntryCount int
}

type Task struct {
	ID              string
	ProjectID       string
	Title           string
	Description     *string
	Status          TaskStatus
	Priority        TaskPriority
	Tags            []string
	EstimateMinutes *int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ProjectRef is the slice of a project joined onto a time entry.
type ProjectRef struct {
	ID         string
	Name       string
	HourlyRate *float64
}

type TaskRef struct {
	ID    string
	Title string
}

type TimeEntry struct {
	ID        string
	UserID    string
	ProjectID string
	TaskID    *string
	StartTime time.Time
	EndTime   *time.Time
	Duration  int64 // seconds
	Note      *string
	IsManual  bool
	CreatedAt time.Time
	UpdatedAt time.Time

	Project ProjectRef
	Task    *TaskRef
}

// Open reports whether the entry is the running timer.
func (e TimeEntry) Open() bool {
	return e.EndTime == nil
}

type Attachment struct {
	ID         string
	UserID     string
	ProjectID  string
	TaskID     *string
	Filename   string
	StorageKey string
	MimeType   string
	SizeBytes  int64
	CreatedAt  time.Time
}

// ProjectDetail is a project with its children, newest first.
type ProjectDetail struct {
	Project
	Tasks       []Task
	Attachments []Attachment
	Entries     []TimeEntry
}

// EntryFilter is used to filter time entries in queries.
type EntryFilter struct {
	ProjectID  *string
	TaskID     *string
	From       *time.Time
	To         *time.Time
	ClosedOnly bool
	Limit      int
}

// ProjectFilter narrows ListProjects.
type ProjectFilter struct {
	Query  string // matches name, client name or an exact tag
	Status ProjectStatus
	Sort   string // name_asc, name_desc, created_desc, updated_desc (default)
}

type ProjectParams struct {
	Name       string
	ClientName *string
	HourlyRate *float64
	Status     ProjectStatus
	Tags       []string
}

// ProjectUpdate carries only the fields to change. Clear* drop nullable values.
type ProjectUpdate struct {
	Name            *string
	ClientName      *string
	ClearClientName bool
	HourlyRate      *float64
	ClearHourlyRate bool
	Status          *ProjectStatus
	Tags            *[]string
}

type TaskParams struct {
	ProjectID       string
	Title           string
	Description     *string
	Status          TaskStatus
	Priority        TaskPriority
	Tags            []string
	EstimateMinutes *int
}

type TaskUpdate struct {
	Title            *string
	Description      *string
	ClearDescription bool
	Status           *TaskStatus
	Priority         *TaskPriority
	Tags             *[]string
	EstimateMinutes  *int
	ClearEstimate    bool
}

// StartParams starts a timer.
type StartParams struct {
	ProjectID string
	TaskID    *string
	Note      *string
}

// EntryEdit is a manual correction. ClearEndAt asks to reopen the entry,
// which is refused for closed entries.
type EntryEdit struct {
	StartAt    *time.Time
	EndAt      *time.Time
	ClearEndAt bool
	Note       *string
	ClearNote  bool
}

type AttachmentParams struct {
	ProjectID  string
	TaskID     *string
	Filename   string
	StorageKey string
	MimeType   string
	SizeBytes  int64
}

// AttachmentFilter narrows ListAttachments.
type AttachmentFilter struct {
	ProjectID *string
	TaskID    *string
}
