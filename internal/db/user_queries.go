package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"horse.fit/safeagree/internal/policy"
)

var ErrEmailTaken = errors.New("email already registered")

type UserRecord struct {
	UserID       int64     `json:"user_id" yaml:"user_id"`
	UserUUID     string    `json:"user_uuid" yaml:"user_uuid"`
	Email        string    `json:"email" yaml:"email"`
	PasswordHash string    `json:"-" yaml:"-"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
}

func (p *Pool) CreateUser(ctx context.Context, email, passwordHash string) (*UserRecord, error) {
	const q = `
INSERT INTO safeagree.users (
	email,
	password_hash,
	created_at
)
VALUES ($1, $2, now())
RETURNING
	user_id,
	user_uuid::text,
	email,
	password_hash,
	created_at
`
	var row UserRecord
	if err := p.queryRow(ctx, q, normalizeEmail(email), strings.TrimSpace(passwordHash)).Scan(
		&row.UserID,
		&row.UserUUID,
		&row.Email,
		&row.PasswordHash,
		&row.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &row, nil
}

// GetUserByEmail returns policy.ErrNotFound for an unknown address.
func (p *Pool) GetUserByEmail(ctx context.Context, email string) (*UserRecord, error) {
	const q = `
SELECT
	user_id,
	user_uuid::text,
	email,
	password_hash,
	created_at
FROM safeagree.users
WHERE email = $1
`
	var row UserRecord
	if err := p.queryRow(ctx, q, normalizeEmail(email)).Scan(
		&row.UserID,
		&row.UserUUID,
		&row.Email,
		&row.PasswordHash,
		&row.CreatedAt,
	); err != nil {
		if isNoRows(err) {
			return nil, policy.ErrNotFound
		}
		return nil, fmt.Errorf("query user by email: %w", err)
	}
	return &row, nil
}

// DeleteUser removes the user and their library rows and reports how many
// library rows went with them. Catalog entries and artifacts are shared and
// stay in place.
func (p *Pool) DeleteUser(ctx context.Context, userID int64) (int64, error) {
	var removed int64
	err := p.transaction(ctx, func(tx *gorm.DB) error {
		lib := tx.Exec(`DELETE FROM safeagree.library_entries WHERE user_id = $1`, userID)
		if lib.Error != nil {
			return fmt.Errorf("delete library entries for user %d: %w", userID, lib.Error)
		}
		user := tx.Exec(`DELETE FROM safeagree.users WHERE user_id = $1`, userID)
		if user.Error != nil {
			return fmt.Errorf("delete user %d: %w", userID, user.Error)
		}
		if user.RowsAffected == 0 {
			return policy.ErrNotFound
		}
		removed = lib.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func normalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
