package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const taskColumns = `t.id, t.project_id, t.title, t.description, t.status, t.priority, t.tags, t.estimate_minutes, t.created_at, t.updated_at`

func scanTask(row rowScanner) (*Task, error) {
	t := &Task{}
	var description sql.NullString
	var estimate sql.NullInt64
	var tags, createdAt, updatedAt string
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &description, &t.Status, &t.Priority, &tags, &estimate, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if description.Valid {
		t.Description = &description.String
	}
	if estimate.Valid {
		n := int(estimate.Int64)
		t.EstimateMinutes = &n
	}
	t.Tags = splitTags(tags)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}

func (s *Store) CreateTask(ctx context.Context, userID string, params TaskParams) (*Task, error) {
	if _, err := s.GetProject(ctx, userID, params.ProjectID); err != nil {
		return nil, err
	}
	title, err := checkName("title", params.Title)
	if err != nil {
		return nil, err
	}
	description, err := checkOptional("description", params.Description, maxDescriptionLen)
	if err != nil {
		return nil, err
	}
	status := params.Status
	if status == "" {
		status = TaskTodo
	}
	if err := checkTaskStatus(status); err != nil {
		return nil, err
	}
	priority := params.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if err := checkPriority(priority); err != nil {
		return nil, err
	}
	tags, err := checkTags(params.Tags)
	if err != nil {
		return nil, err
	}
	if err := checkEstimate(params.EstimateMinutes); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	now := formatTime(s.now())
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, project_id, title, description, status, priority, tags, estimate_minutes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, params.ProjectID, title, description, status, priority, joinTags(tags), params.EstimateMinutes, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return s.GetTask(ctx, userID, id)
}

// GetTask returns a task whose project is owned by userID.
func (s *Store) GetTask(ctx context.Context, userID, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks t JOIN projects p ON p.id = t.project_id
		 WHERE t.id = ? AND p.user_id = ?`, id, userID,
	)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("task", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, nil
}

// ListTasks returns the tasks of a project, newest first.
func (s *Store) ListTasks(ctx context.Context, userID, projectID string) ([]Task, error) {
	if _, err := s.GetProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks t WHERE t.project_id = ? ORDER BY t.created_at DESC, t.id`, projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (s *Store) UpdateTask(ctx context.Context, userID, id string, u TaskUpdate) (*Task, error) {
	t, err := s.GetTask(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if u.Title != nil {
		if t.Title, err = checkName("title", *u.Title); err != nil {
			return nil, err
		}
	}
	switch {
	case u.ClearDescription:
		t.Description = nil
	case u.Description != nil:
		if t.Description, err = checkOptional("description", u.Description, maxDescriptionLen); err != nil {
			return nil, err
		}
	}
	if u.Status != nil {
		if err := checkTaskStatus(*u.Status); err != nil {
			return nil, err
		}
		t.Status = *u.Status
	}
	if u.Priority != nil {
		if err := checkPriority(*u.Priority); err != nil {
			return nil, err
		}
		t.Priority = *u.Priority
	}
	if u.Tags != nil {
		if t.Tags, err = checkTags(*u.Tags); err != nil {
			return nil, err
		}
	}
	switch {
	case u.ClearEstimate:
		t.EstimateMinutes = nil
	case u.EstimateMinutes != nil:
		if err := checkEstimate(u.EstimateMinutes); err != nil {
			return nil, err
		}
		t.EstimateMinutes = u.EstimateMinutes
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?, tags = ?, estimate_minutes = ?, updated_at = ?
		 WHERE id = ?`,
		t.Title, t.Description, t.Status, t.Priority, joinTags(t.Tags), t.EstimateMinutes, formatTime(s.now()), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update task %s: %w", id, err)
	}
	return s.GetTask(ctx, userID, id)
}

// DeleteTask removes a task. Its time entries keep their project and lose the
// task reference.
func (s *Store) DeleteTask(ctx context.Context, userID, id string) error {
	if _, err := s.GetTask(ctx, userID, id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

// CountCompletedTasks counts DONE tasks of the user's projects last updated
// at or after since.
func (s *Store) CountCompletedTasks(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks t JOIN projects p ON p.id = t.project_id
		 WHERE p.user_id = ? AND t.status = ? AND t.updated_at >= ?`,
		userID, TaskDone, formatTime(since),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count completed tasks: %w", err)
	}
	return n, nil
}
