package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sadopc/tally/internal/timeutil"
)

const entrySelect = `SELECT e.id, e.user_id, e.project_id, e.task_id, e.start_time, e.end_time, e.duration,
	e.note, e.is_manual, e.created_at, e.updated_at, p.name, p.hourly_rate, t.title
	FROM time_entries e
	JOIN projects p ON p.id = e.project_id
	LEFT JOIN tasks t ON t.id = e.task_id`

func scanEntry(row rowScanner) (*TimeEntry, error) {
	e := &TimeEntry{}
	var taskID, endTime, note, taskTitle sql.NullString
	var rate sql.NullFloat64
	var startTime, createdAt, updatedAt string
	var manual int
	err := row.Scan(&e.ID, &e.UserID, &e.ProjectID, &taskID, &startTime, &endTime, &e.Duration,
		&note, &manual, &createdAt, &updatedAt, &e.Project.Name, &rate, &taskTitle)
	if err != nil {
		return nil, err
	}
	e.Project.ID = e.ProjectID
	if rate.Valid {
		e.Project.HourlyRate = &rate.Float64
	}
	if taskID.Valid {
		e.TaskID = &taskID.String
		e.Task = &TaskRef{ID: taskID.String, Title: taskTitle.String}
	}
	e.StartTime = parseTime(startTime)
	if endTime.Valid {
		t := parseTime(endTime.String)
		e.EndTime = &t
	}
	if note.Valid {
		e.Note = &note.String
	}
	e.IsManual = manual == 1
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return e, nil
}

// StartTimer opens a time entry for the user. It fails with ErrConflict when
// the user already has an open entry, including when another request wins a
// concurrent start.
func (s *Store) StartTimer(ctx context.Context, userID string, p StartParams) (*TimeEntry, error) {
	if _, err := s.GetProject(ctx, userID, p.ProjectID); err != nil {
		return nil, err
	}
	if p.TaskID != nil {
		t, err := s.GetTask(ctx, userID, *p.TaskID)
		if err != nil {
			return nil, err
		}
		if t.ProjectID != p.ProjectID {
			return nil, notFound("task", *p.TaskID)
		}
	}
	note, err := checkOptional("note", p.Note, maxDescriptionLen)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM time_entries WHERE user_id = ? AND end_time IS NULL`, userID,
	).Scan(&existing)
	switch {
	case err == nil:
		return nil, fmt.Errorf("start timer: %w", ErrConflict)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("check active entry: %w", err)
	}

	id := uuid.NewString()
	now := formatTime(s.now())
	_, err = tx.ExecContext(ctx,
		`INSERT INTO time_entries (id, user_id, project_id, task_id, start_time, duration, note, is_manual, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?, 0, ?, ?)`,
		id, userID, p.ProjectID, p.TaskID, now, note, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("start timer: %w", ErrConflict)
		}
		return nil, fmt.Errorf("insert entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("start timer: %w", ErrConflict)
		}
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetEntry(ctx, userID, id)
}

// StopTimer closes the user's open entry. It returns ErrNotFound when no
// timer is running.
func (s *Store) StopTimer(ctx context.Context, userID string) (*TimeEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var id, startStr string
	err = tx.QueryRowContext(ctx,
		`SELECT id, start_time FROM time_entries WHERE user_id = ? AND end_time IS NULL`, userID,
	).Scan(&id, &startStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("stop timer: no active timer: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get active entry: %w", err)
	}

	start := parseTime(startStr)
	end := s.now()
	if end.Before(start) {
		end = start
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE time_entries SET end_time = ?, duration = ?, updated_at = ? WHERE id = ?`,
		formatTime(end), timeutil.Duration(start, end), formatTime(end), id,
	)
	if err != nil {
		return nil, fmt.Errorf("stop entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetEntry(ctx, userID, id)
}

// ActiveEntry returns the user's open entry, or nil when there is none.
func (s *Store) ActiveEntry(ctx context.Context, userID string) (*TimeEntry, error) {
	row := s.db.QueryRowContext(ctx, entrySelect+` WHERE e.user_id = ? AND e.end_time IS NULL`, userID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active entry: %w", err)
	}
	return e, nil
}

// EditEntry applies a manual correction and marks the entry as manual.
func (s *Store) EditEntry(ctx context.Context, userID, id string, edit EntryEdit) (*TimeEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var startStr string
	var endStr, noteStr sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT start_time, end_time, note FROM time_entries WHERE id = ? AND user_id = ?`, id, userID,
	).Scan(&startStr, &endStr, &noteStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("time entry", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get entry %s: %w", id, err)
	}

	start := parseTime(startStr)
	if edit.StartAt != nil {
		start = edit.StartAt.UTC().Truncate(time.Millisecond)
	}

	var end *time.Time
	if endStr.Valid {
		t := parseTime(endStr.String)
		end = &t
	}
	switch {
	case edit.ClearEndAt:
		if end != nil {
			return nil, invalid("endAt", "entry cannot be reopened")
		}
	case edit.EndAt != nil:
		t := edit.EndAt.UTC().Truncate(time.Millisecond)
		end = &t
	}
	if end != nil && end.Before(start) {
		return nil, invalid("endAt", "must not be before startAt")
	}

	var note *string
	if noteStr.Valid {
		note = &noteStr.String
	}
	switch {
	case edit.ClearNote:
		note = nil
	case edit.Note != nil:
		if note, err = checkOptional("note", edit.Note, maxDescriptionLen); err != nil {
			return nil, err
		}
	}

	var duration int64
	var endArg any
	if end != nil {
		duration = timeutil.Duration(start, *end)
		endArg = formatTime(*end)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE time_entries SET start_time = ?, end_time = ?, duration = ?, note = ?, is_manual = 1, updated_at = ?
		 WHERE id = ?`,
		formatTime(start), endArg, duration, note, formatTime(s.now()), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update entry %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetEntry(ctx, userID, id)
}

func (s *Store) GetEntry(ctx context.Context, userID, id string) (*TimeEntry, error) {
	row := s.db.QueryRowContext(ctx, entrySelect+` WHERE e.id = ? AND e.user_id = ?`, id, userID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("time entry", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get entry %s: %w", id, err)
	}
	return e, nil
}

// ListEntries returns the user's entries matching f, newest first.
func (s *Store) ListEntries(ctx context.Context, userID string, f EntryFilter) ([]TimeEntry, error) {
	query := entrySelect + ` WHERE e.user_id = ?`
	args := []any{userID}

	if f.ProjectID != nil {
		query += ` AND e.project_id = ?`
		args = append(args, *f.ProjectID)
	}
	if f.TaskID != nil {
		query += ` AND e.task_id = ?`
		args = append(args, *f.TaskID)
	}
	if f.From != nil {
		query += ` AND e.start_time >= ?`
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		query += ` AND e.start_time < ?`
		args = append(args, formatTime(*f.To))
	}
	if f.ClosedOnly {
		query += ` AND e.end_time IS NOT NULL`
	}
	query += ` ORDER BY e.start_time DESC, e.id`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []TimeEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (s *Store) DeleteEntry(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM time_entries WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete entry %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("time entry", id)
	}
	return nil
}
