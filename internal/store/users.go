package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
)

const tokenPrefix = "tly_"

// CreateUser registers a user and returns the plain bearer token. Only its
// hash is stored, so the token cannot be recovered later.
func (s *Store) CreateUser(ctx context.Context, email, name string) (*User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, "", invalid("email", "must be a valid address")
	}
	name = strings.TrimSpace(name)

	token := newToken()
	u := &User{ID: uuid.NewString(), Email: email, Name: name, CreatedAt: s.now()}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, token_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, hashToken(token), formatTime(u.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, "", invalid("email", "%s is already registered", email)
		}
		return nil, "", fmt.Errorf("insert user: %w", err)
	}
	return u, token, nil
}

// UserByToken resolves a bearer token. Unknown tokens return ErrNotFound.
func (s *Store) UserByToken(ctx context.Context, token string) (*User, error) {
	u := &User{}
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, created_at FROM users WHERE token_hash = ?`, hashToken(token),
	).Scan(&u.ID, &u.Email, &u.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lookup token: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup token: %w", err)
	}
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u := &User{}
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, created_at FROM users WHERE email = ?`, email,
	).Scan(&u.ID, &u.Email, &u.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("user", email)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", email, err)
	}
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}

func newToken() string {
	return tokenPrefix + strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
