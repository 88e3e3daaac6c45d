package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const attachmentColumns = `a.id, a.user_id, a.project_id, a.task_id, a.filename, a.storage_key, a.mime_type, a.size_bytes, a.created_at`

func scanAttachment(row rowScanner) (*Attachment, error) {
	a := &Attachment{}
	var taskID sql.NullString
	var createdAt string
	if err := row.Scan(&a.ID, &a.UserID, &a.ProjectID, &taskID, &a.Filename, &a.StorageKey, &a.MimeType, &a.SizeBytes, &createdAt); err != nil {
		return nil, err
	}
	if taskID.Valid {
		a.TaskID = &taskID.String
	}
	a.CreatedAt = parseTime(createdAt)
	return a, nil
}

// CreateAttachment records metadata for a blob that has already been written.
func (s *Store) CreateAttachment(ctx context.Context, userID string, p AttachmentParams) (*Attachment, error) {
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
	if p.Filename == "" {
		return nil, invalid("file", "filename is required")
	}
	if p.MimeType == "" {
		p.MimeType = "application/octet-stream"
	}

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attachments (id, user_id, project_id, task_id, filename, storage_key, mime_type, size_bytes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, p.ProjectID, p.TaskID, p.Filename, p.StorageKey, p.MimeType, p.SizeBytes, formatTime(s.now()),
	)
	if err != nil {
		return nil, fmt.Errorf("insert attachment: %w", err)
	}
	return s.GetAttachment(ctx, userID, id)
}

func (s *Store) GetAttachment(ctx context.Context, userID, id string) (*Attachment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+attachmentColumns+` FROM attachments a WHERE a.id = ? AND a.user_id = ?`, id, userID,
	)
	a, err := scanAttachment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("attachment", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get attachment %s: %w", id, err)
	}
	return a, nil
}

// ListAttachments returns the user's attachments, newest first.
func (s *Store) ListAttachments(ctx context.Context, userID string, f AttachmentFilter) ([]Attachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM attachments a WHERE a.user_id = ?`
	args := []any{userID}
	if f.ProjectID != nil {
		query += ` AND a.project_id = ?`
		args = append(args, *f.ProjectID)
	}
	if f.TaskID != nil {
		query += ` AND a.task_id = ?`
		args = append(args, *f.TaskID)
	}
	query += ` ORDER BY a.created_at DESC, a.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	var out []Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// DeleteAttachment removes the metadata row and returns it so the caller can
// remove the blob.
func (s *Store) DeleteAttachment(ctx context.Context, userID, id string) (*Attachment, error) {
	a, err := s.GetAttachment(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM attachments WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete attachment %s: %w", id, err)
	}
	return a, nil
}
