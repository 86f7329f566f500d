package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"moviedex/pkg/database"
)

var (
	ErrEmailTaken   = errors.New("email already registered")
	ErrUserNotFound = errors.New("user not found")
)

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Image        string
	TokenVersion int
	CreatedAt    time.Time
}

// Repo stores accounts. Emails are kept lowercased.
type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

const userColumns = `id, name, email, password_hash, COALESCE(image, ''), token_version, created_at`

// CreateUser inserts u and returns the stored row. Two registrations racing
// on one email resolve in the unique index; the loser gets ErrEmailTaken.
func (r *Repo) CreateUser(ctx context.Context, u User) (*User, error) {
	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO users (id, name, email, password_hash)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(email) DO NOTHING
		RETURNING `+userColumns,
		u.ID, u.Name, normalizeEmail(u.Email), u.PasswordHash)

	stored, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return stored, nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, "email", normalizeEmail(email))
}

func (r *Repo) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getOne(ctx, "id", id)
}

// getOne returns (nil, nil) when no row matches. col is never user input.
func (r *Repo) getOne(ctx context.Context, col, value string) (*User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+col+` = ?`, value)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by %s: %w", col, err)
	}
	return u, nil
}

// GetTokenVersion returns -1 for unknown users so no token can match.
func (r *Repo) GetTokenVersion(ctx context.Context, id string) (int, error) {
	var version int
	err := r.DB.QueryRowContext(ctx, `SELECT token_version FROM users WHERE id = ?`, id).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return -1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get token version: %w", err)
	}
	return version, nil
}

// RevokeSessions invalidates every token issued to the user so far and
// returns the new version.
func (r *Repo) RevokeSessions(ctx context.Context, id string) (int, error) {
	return r.bumpVersion(ctx, id, "")
}

// SetPassword stores a new hash and revokes every issued token in the same
// statement.
func (r *Repo) SetPassword(ctx context.Context, id, passwordHash string) (int, error) {
	if passwordHash == "" {
		return 0, errors.New("set password: empty hash")
	}
	return r.bumpVersion(ctx, id, passwordHash)
}

func (r *Repo) bumpVersion(ctx context.Context, id, passwordHash string) (int, error) {
	var version int
	err := r.DB.QueryRowContext(ctx, `
		UPDATE users
		SET token_version = token_version + 1,
		    password_hash = COALESCE(NULLIF(?, ''), password_hash)
		WHERE id = ?
		RETURNING token_version
	`, passwordHash, id).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("bump token version: %w", err)
	}
	return version, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*User, error) {
	var (
		u       User
		created database.Time
	)
	if err := s.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Image, &u.TokenVersion, &created); err != nil {
		return nil, err
	}
	u.CreatedAt = created.Time
	return &u, nil
}
