package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"lifeasagame.dev/internal/services/identity/storage"
)

const userColumns = "id, email, password_hash, full_name, birth_date, locale, is_superuser, last_login, created_at, updated_at, deleted_at"

func scanUserRow(scanner interface{ Scan(...any) error }) (storage.UserRecord, error) {
	var (
		rec       storage.UserRecord
		birthDate string
		lastLogin sql.NullInt64
		createdAt int64
		updatedAt int64
		deletedAt sql.NullInt64
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.Email,
		&rec.PasswordHash,
		&rec.FullName,
		&birthDate,
		&rec.Locale,
		&rec.IsSuperuser,
		&lastLogin,
		&createdAt,
		&updatedAt,
		&deletedAt,
	); err != nil {
		return storage.UserRecord{}, err
	}
	parsedBirthDate, err := fromDate(birthDate)
	if err != nil {
		return storage.UserRecord{}, err
	}
	rec.BirthDate = parsedBirthDate
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	if lastLogin.Valid {
		value := fromMillis(lastLogin.Int64)
		rec.LastLogin = &value
	}
	if deletedAt.Valid {
		value := fromMillis(deletedAt.Int64)
		rec.DeletedAt = &value
	}
	return rec, nil
}

// CreateUser persists a new account record.
func (s *Store) CreateUser(ctx context.Context, record storage.UserRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	record.ID = strings.TrimSpace(record.ID)
	record.Email = strings.TrimSpace(record.Email)
	if record.ID == "" {
		return fmt.Errorf("user id is required")
	}
	if record.Email == "" {
		return fmt.Errorf("email is required")
	}
	if record.PasswordHash == "" {
		return fmt.Errorf("password hash is required")
	}

	var lastLogin sql.NullInt64
	if record.LastLogin != nil {
		lastLogin = sql.NullInt64{Int64: toMillis(*record.LastLogin), Valid: true}
	}
	var deletedAt sql.NullInt64
	if record.DeletedAt != nil {
		deletedAt = sql.NullInt64{Int64: toMillis(*record.DeletedAt), Valid: true}
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO users (`+userColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		record.ID,
		record.Email,
		record.PasswordHash,
		record.FullName,
		toDate(record.BirthDate),
		record.Locale,
		record.IsSuperuser,
		lastLogin,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
		deletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUserByID fetches a non-deleted account by id.
func (s *Store) GetUserByID(ctx context.Context, userID string) (storage.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.UserRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.UserRecord{}, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return storage.UserRecord{}, fmt.Errorf("user id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+userColumns+`
FROM users
WHERE id = ? AND deleted_at IS NULL
`, userID)
	rec, err := scanUserRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.UserRecord{}, storage.ErrNotFound
		}
		return storage.UserRecord{}, fmt.Errorf("get user: %w", err)
	}
	return rec, nil
}

// GetUserByEmail fetches a non-deleted account by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (storage.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.UserRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.UserRecord{}, fmt.Errorf("storage is not configured")
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return storage.UserRecord{}, fmt.Errorf("email is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+userColumns+`
FROM users
WHERE email = ? AND deleted_at IS NULL
`, email)
	rec, err := scanUserRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.UserRecord{}, storage.ErrNotFound
		}
		return storage.UserRecord{}, fmt.Errorf("get user by email: %w", err)
	}
	return rec, nil
}

// UpdateUser replaces a non-deleted account's mutable fields.
func (s *Store) UpdateUser(ctx context.Context, record storage.UserRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	record.ID = strings.TrimSpace(record.ID)
	if record.ID == "" {
		return fmt.Errorf("user id is required")
	}

	var lastLogin sql.NullInt64
	if record.LastLogin != nil {
		lastLogin = sql.NullInt64{Int64: toMillis(*record.LastLogin), Valid: true}
	}

	res, err := s.sqlDB.ExecContext(ctx, `
UPDATE users
SET email = ?, password_hash = ?, full_name = ?, birth_date = ?, locale = ?, is_superuser = ?, last_login = ?, updated_at = ?
WHERE id = ? AND deleted_at IS NULL
`,
		strings.TrimSpace(record.Email),
		record.PasswordHash,
		record.FullName,
		toDate(record.BirthDate),
		record.Locale,
		record.IsSuperuser,
		lastLogin,
		toMillis(record.UpdatedAt),
		record.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("update user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteUser removes an account row and its group memberships, reporting how
// many account rows were deleted. Session rows are left in place.
func (s *Store) DeleteUser(ctx context.Context, userID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, fmt.Errorf("user id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete user: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM users_groups WHERE user_id = ?`, userID); err != nil {
		return 0, fmt.Errorf("delete user memberships: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete user rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete user: %w", err)
	}
	return affected, nil
}

// UserExists reports whether an account row exists, deleted or not.
func (s *Store) UserExists(ctx context.Context, userID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, fmt.Errorf("user id is required")
	}

	var found int
	row := s.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, userID)
	if err := row.Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return true, nil
}

// EmailExists reports whether any account row uses the email, deleted or not.
func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return false, fmt.Errorf("email is required")
	}

	var found int
	row := s.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM users WHERE email = ?`, email)
	if err := row.Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check email exists: %w", err)
	}
	return true, nil
}

// CountUsersByIDs counts account rows matching the ids, deleted or not.
func (s *Store) CountUsersByIDs(ctx context.Context, userIDs []string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if len(userIDs) == 0 {
		return 0, nil
	}

	query := `SELECT COUNT(DISTINCT id) FROM users WHERE id IN (` + sqlPlaceholders(len(userIDs)) + `)`
	var count int64
	row := s.sqlDB.QueryRowContext(ctx, query, idsToArgs(userIDs)...)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count users by ids: %w", err)
	}
	return count, nil
}

// ListUsers returns a keyset page of accounts in id order.
func (s *Store) ListUsers(ctx context.Context, query storage.ListQuery) ([]storage.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if query.Size <= 0 {
		return nil, fmt.Errorf("page size must be greater than zero")
	}

	conditions := []string{"1 = 1"}
	args := []any{}
	if lastID := strings.TrimSpace(query.LastID); lastID != "" {
		conditions = append(conditions, "id > ?")
		args = append(args, lastID)
	}
	if query.Predicate.SQL != "" {
		conditions = append(conditions, "("+query.Predicate.SQL+")")
		args = append(args, query.Predicate.Args...)
	}
	args = append(args, query.Size)

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+userColumns+`
FROM users
WHERE `+strings.Join(conditions, " AND ")+`
ORDER BY id
LIMIT ?
`, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]storage.UserRecord, 0, query.Size)
	for rows.Next() {
		rec, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}
	return users, nil
}

// CountUsers counts accounts matching the predicate.
func (s *Store) CountUsers(ctx context.Context, predicate storage.Predicate) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	query := `SELECT COUNT(*) FROM users`
	args := []any{}
	if predicate.SQL != "" {
		query += ` WHERE ` + predicate.SQL
		args = append(args, predicate.Args...)
	}

	var count int64
	row := s.sqlDB.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}
