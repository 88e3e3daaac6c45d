package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const projectColumns = `p.id, p.user_id, p.name, p.client_name, p.status, p.hourly_rate, p.tags, p.created_at, p.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner, extra ...any) (*Project, error) {
	p := &Project{}
	var clientName sql.NullString
	var rate sql.NullFloat64
	var tags, createdAt, updatedAt string
	dest := append([]any{&p.ID, &p.UserID, &p.Name, &clientName, &p.Status, &rate, &tags, &createdAt, &updatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if clientName.Valid {
		p.ClientName = &clientName.String
	}
	if rate.Valid {
		p.HourlyRate = &rate.Float64
	}
	p.Tags = splitTags(tags)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

func (s *Store) CreateProject(ctx context.Context, userID string, params ProjectParams) (*Project, error) {
	name, err := checkName("name", params.Name)
	if err != nil {
		return nil, err
	}
	clientName, err := checkOptional("clientName", params.ClientName, maxNameLen)
	if err != nil {
		return nil, err
	}
	if err := checkRate(params.HourlyRate); err != nil {
		return nil, err
	}
	status := params.Status
	if status == "" {
		status = ProjectActive
	}
	if err := checkProjectStatus(status); err != nil {
		return nil, err
	}
	tags, err := checkTags(params.Tags)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	now := formatTime(s.now())
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO projects (id, user_id, name, client_name, status, hourly_rate, tags, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, name, clientName, status, params.HourlyRate, joinTags(tags), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	return s.GetProject(ctx, userID, id)
}

// GetProject returns a project owned by userID.
func (s *Store) GetProject(ctx context.Context, userID, id string) (*Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects p WHERE p.id = ? AND p.user_id = ?`, id, userID,
	)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("project", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", id, err)
	}
	return p, nil
}

func (s *Store) ListProjects(ctx context.Context, userID string, f ProjectFilter) ([]Project, error) {
	query := `SELECT ` + projectColumns + `,
		(SELECT COUNT(*) FROM tasks t WHERE t.project_id = p.id),
		(SELECT COUNT(*) FROM time_entries e WHERE e.project_id = p.id)
		FROM projects p WHERE p.user_id = ?`
	args := []any{userID}

	if q := strings.TrimSpace(f.Query); q != "" {
		q = escapeLike(strings.ToLower(q))
		like := "%" + q + "%"
		query += ` AND (LOWER(p.name) LIKE ? ESCAPE '\' OR LOWER(COALESCE(p.client_name, '')) LIKE ? ESCAPE '\'` +
			` OR LOWER(',' || p.tags || ',') LIKE ? ESCAPE '\')`
		args = append(args, like, like, "%,"+q+",%")
	}
	if f.Status != "" {
		if err := checkProjectStatus(f.Status); err != nil {
			return nil, err
		}
		query += ` AND p.status = ?`
		args = append(args, f.Status)
	}

	switch f.Sort {
	case "name_asc":
		query += ` ORDER BY p.name ASC`
	case "name_desc":
		query += ` ORDER BY p.name DESC`
	case "created_desc":
		query += ` ORDER BY p.created_at DESC`
	case "", "updated_desc":
		query += ` ORDER BY p.updated_at DESC`
	default:
		return nil, invalid("sort", "unknown sort %q", f.Sort)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var tasks, entries int
		p, err := scanProject(rows, &tasks, &entries)
		if err != nil {
			return nil, err
		}
		p.TaskCount = tasks
		p.EntryCount = entries
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// GetProjectDetail loads a project with its tasks, attachments and latest
// hundred entries.
func (s *Store) GetProjectDetail(ctx context.Context, userID, id string) (*ProjectDetail, error) {
	p, err := s.GetProject(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	d := &ProjectDetail{Project: *p}
	if d.Tasks, err = s.ListTasks(ctx, userID, id); err != nil {
		return nil, err
	}
	if d.Attachments, err = s.ListAttachments(ctx, userID, AttachmentFilter{ProjectID: &id}); err != nil {
		return nil, err
	}
	if d.Entries, err = s.ListEntries(ctx, userID, EntryFilter{ProjectID: &id, Limit: 100}); err != nil {
		return nil, err
	}
	d.TaskCount = len(d.Tasks)
	return d, nil
}

func (s *Store) UpdateProject(ctx context.Context, userID, id string, u ProjectUpdate) (*Project, error) {
	p, err := s.GetProject(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if u.Name != nil {
		if p.Name, err = checkName("name", *u.Name); err != nil {
			return nil, err
		}
	}
	switch {
	case u.ClearClientName:
		p.ClientName = nil
	case u.ClientName != nil:
		if p.ClientName, err = checkOptional("clientName", u.ClientName, maxNameLen); err != nil {
			return nil, err
		}
	}
	switch {
	case u.ClearHourlyRate:
		p.HourlyRate = nil
	case u.HourlyRate != nil:
		if err := checkRate(u.HourlyRate); err != nil {
			return nil, err
		}
		p.HourlyRate = u.HourlyRate
	}
	if u.Status != nil {
		if err := checkProjectStatus(*u.Status); err != nil {
			return nil, err
		}
		p.Status = *u.Status
	}
	if u.Tags != nil {
		if p.Tags, err = checkTags(*u.Tags); err != nil {
			return nil, err
		}
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE projects SET name = ?, client_name = ?, status = ?, hourly_rate = ?, tags = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		p.Name, p.ClientName, p.Status, p.HourlyRate, joinTags(p.Tags), formatTime(s.now()), id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update project %s: %w", id, err)
	}
	return s.GetProject(ctx, userID, id)
}

// DeleteProject removes a project and, through cascades, its tasks, entries
// and attachment rows. It returns the storage keys of the removed
// attachments so the caller can delete the blobs.
func (s *Store) DeleteProject(ctx context.Context, userID, id string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT storage_key FROM attachments WHERE project_id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return nil, fmt.Errorf("list attachment keys: %w", err)
	}
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			rows.Close()
			return nil, err
		}
		keys = append(keys, k)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return nil, fmt.Errorf("delete project %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, notFound("project", id)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return keys, nil
}

// CountActiveProjects counts the user's projects with status ACTIVE.
func (s *Store) CountActiveProjects(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM projects WHERE user_id = ? AND status = ?`, userID, ProjectActive,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active projects: %w", err)
	}
	return n, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE ... ESCAPE '\' pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
