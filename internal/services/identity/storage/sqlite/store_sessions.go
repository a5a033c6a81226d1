package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"lifeasagame.dev/internal/services/identity/storage"
)

// PutSession persists a session row, replacing any previous row with the
// same user and token id.
func (s *Store) PutSession(ctx context.Context, record storage.SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	record.UserID = strings.TrimSpace(record.UserID)
	record.TokenID = strings.TrimSpace(record.TokenID)
	if record.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if record.TokenID == "" {
		return fmt.Errorf("token id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT OR REPLACE INTO sessions (user_id, token_id, created_at, expires_at)
VALUES (?, ?, ?, ?)
`,
		record.UserID,
		record.TokenID,
		toMillis(record.CreatedAt),
		toMillis(record.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// SessionExists reports whether a live session row exists for the user and
// token id.
func (s *Store) SessionExists(ctx context.Context, userID string, tokenID string, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	tokenID = strings.TrimSpace(tokenID)
	if userID == "" {
		return false, fmt.Errorf("user id is required")
	}
	if tokenID == "" {
		return false, fmt.Errorf("token id is required")
	}

	var found int
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT 1 FROM sessions
WHERE user_id = ? AND token_id = ? AND expires_at > ?
`, userID, tokenID, toMillis(now))
	if err := row.Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check session exists: %w", err)
	}
	return true, nil
}

// DeleteSession removes one session row.
func (s *Store) DeleteSession(ctx context.Context, userID string, tokenID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	tokenID = strings.TrimSpace(tokenID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if tokenID == "" {
		return fmt.Errorf("token id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM sessions WHERE user_id = ? AND token_id = ?
`, userID, tokenID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteUserSessions removes every session row for the user.
func (s *Store) DeleteUserSessions(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes rows whose expiry has passed and reports how
// many were removed.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions rows affected: %w", err)
	}
	return affected, nil
}
