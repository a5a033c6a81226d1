package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"lifeasagame.dev/internal/services/identity/storage"
)

const roleColumns = "id, codename, description, created_at, updated_at, deleted_at"

func scanRoleRow(scanner interface{ Scan(...any) error }) (storage.RoleRecord, error) {
	var (
		rec       storage.RoleRecord
		createdAt int64
		updatedAt int64
		deletedAt sql.NullInt64
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.Codename,
		&rec.Description,
		&createdAt,
		&updatedAt,
		&deletedAt,
	); err != nil {
		return storage.RoleRecord{}, err
	}
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	if deletedAt.Valid {
		value := fromMillis(deletedAt.Int64)
		rec.DeletedAt = &value
	}
	return rec, nil
}

// CreateRole persists a new role record.
func (s *Store) CreateRole(ctx context.Context, record storage.RoleRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	record.ID = strings.TrimSpace(record.ID)
	record.Codename = strings.TrimSpace(record.Codename)
	if record.ID == "" {
		return fmt.Errorf("role id is required")
	}
	if record.Codename == "" {
		return fmt.Errorf("codename is required")
	}

	var deletedAt sql.NullInt64
	if record.DeletedAt != nil {
		deletedAt = sql.NullInt64{Int64: toMillis(*record.DeletedAt), Valid: true}
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO roles (`+roleColumns+`)
VALUES (?, ?, ?, ?, ?, ?)
`,
		record.ID,
		record.Codename,
		record.Description,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
		deletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create role: %w", err)
	}
	return nil
}

// GetRoleByID fetches a role by id.
func (s *Store) GetRoleByID(ctx context.Context, roleID string) (storage.RoleRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.RoleRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.RoleRecord{}, fmt.Errorf("storage is not configured")
	}
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return storage.RoleRecord{}, fmt.Errorf("role id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+roleColumns+`
FROM roles
WHERE id = ?
`, roleID)
	rec, err := scanRoleRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.RoleRecord{}, storage.ErrNotFound
		}
		return storage.RoleRecord{}, fmt.Errorf("get role: %w", err)
	}
	return rec, nil
}

// GetRoleByCodename fetches a role by codename.
func (s *Store) GetRoleByCodename(ctx context.Context, codename string) (storage.RoleRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.RoleRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.RoleRecord{}, fmt.Errorf("storage is not configured")
	}
	codename = strings.TrimSpace(codename)
	if codename == "" {
		return storage.RoleRecord{}, fmt.Errorf("codename is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+roleColumns+`
FROM roles
WHERE codename = ?
`, codename)
	rec, err := scanRoleRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.RoleRecord{}, storage.ErrNotFound
		}
		return storage.RoleRecord{}, fmt.Errorf("get role by codename: %w", err)
	}
	return rec, nil
}

// UpdateRole replaces a role's codename and description.
func (s *Store) UpdateRole(ctx context.Context, record storage.RoleRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	record.ID = strings.TrimSpace(record.ID)
	record.Codename = strings.TrimSpace(record.Codename)
	if record.ID == "" {
		return fmt.Errorf("role id is required")
	}
	if record.Codename == "" {
		return fmt.Errorf("codename is required")
	}

	res, err := s.sqlDB.ExecContext(ctx, `
UPDATE roles
SET codename = ?, description = ?, updated_at = ?
WHERE id = ?
`,
		record.Codename,
		record.Description,
		toMillis(record.UpdatedAt),
		record.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("update role: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update role rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// RoleCodenameExists reports whether a codename is taken, optionally ignoring
// one role id.
func (s *Store) RoleCodenameExists(ctx context.Context, codename string, excludeRoleID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	codename = strings.TrimSpace(codename)
	if codename == "" {
		return false, fmt.Errorf("codename is required")
	}

	query := `SELECT 1 FROM roles WHERE codename = ?`
	args := []any{codename}
	if excludeRoleID = strings.TrimSpace(excludeRoleID); excludeRoleID != "" {
		query += ` AND id != ?`
		args = append(args, excludeRoleID)
	}

	var found int
	row := s.sqlDB.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check codename exists: %w", err)
	}
	return true, nil
}

// CountActiveRolesByIDs counts non-deleted roles matching the ids.
func (s *Store) CountActiveRolesByIDs(ctx context.Context, roleIDs []string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if len(roleIDs) == 0 {
		return 0, nil
	}

	query := `SELECT COUNT(DISTINCT id) FROM roles WHERE deleted_at IS NULL AND id IN (` + sqlPlaceholders(len(roleIDs)) + `)`
	var count int64
	row := s.sqlDB.QueryRowContext(ctx, query, idsToArgs(roleIDs)...)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count roles by ids: %w", err)
	}
	return count, nil
}

// ListRoles returns a keyset page of roles in id order.
func (s *Store) ListRoles(ctx context.Context, query storage.ListQuery) ([]storage.RoleRecord, error) {
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
SELECT `+roleColumns+`
FROM roles
WHERE `+strings.Join(conditions, " AND ")+`
ORDER BY id
LIMIT ?
`, args...)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	roles := make([]storage.RoleRecord, 0, query.Size)
	for rows.Next() {
		rec, err := scanRoleRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role row: %w", err)
		}
		roles = append(roles, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role rows: %w", err)
	}
	return roles, nil
}

// CountRoles counts roles matching the predicate.
func (s *Store) CountRoles(ctx context.Context, predicate storage.Predicate) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	query := `SELECT COUNT(*) FROM roles`
	args := []any{}
	if predicate.SQL != "" {
		query += ` WHERE ` + predicate.SQL
		args = append(args, predicate.Args...)
	}

	var count int64
	row := s.sqlDB.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count roles: %w", err)
	}
	return count, nil
}

// ListRolesByCodenames returns a keyset page of roles whose codename is in
// the set. An empty set yields an empty page.
func (s *Store) ListRolesByCodenames(ctx context.Context, codenames []string, query storage.ListQuery) ([]storage.RoleRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if query.Size <= 0 {
		return nil, fmt.Errorf("page size must be greater than zero")
	}
	if len(codenames) == 0 {
		return []storage.RoleRecord{}, nil
	}

	conditions := []string{"codename IN (" + sqlPlaceholders(len(codenames)) + ")"}
	args := idsToArgs(codenames)
	if lastID := strings.TrimSpace(query.LastID); lastID != "" {
		conditions = append(conditions, "id > ?")
		args = append(args, lastID)
	}
	args = append(args, query.Size)

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+roleColumns+`
FROM roles
WHERE `+strings.Join(conditions, " AND ")+`
ORDER BY id
LIMIT ?
`, args...)
	if err != nil {
		return nil, fmt.Errorf("list roles by codenames: %w", err)
	}
	defer rows.Close()

	roles := make([]storage.RoleRecord, 0, query.Size)
	for rows.Next() {
		rec, err := scanRoleRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role row: %w", err)
		}
		roles = append(roles, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role rows: %w", err)
	}
	return roles, nil
}

// CountRolesByCodenames counts roles whose codename is in the set.
func (s *Store) CountRolesByCodenames(ctx context.Context, codenames []string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if len(codenames) == 0 {
		return 0, nil
	}

	query := `SELECT COUNT(*) FROM roles WHERE codename IN (` + sqlPlaceholders(len(codenames)) + `)`
	var count int64
	row := s.sqlDB.QueryRowContext(ctx, query, idsToArgs(codenames)...)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count roles by codenames: %w", err)
	}
	return count, nil
}

// CountRolesForDelete counts roles matching the id while excluding a
// protected codename.
func (s *Store) CountRolesForDelete(ctx context.Context, roleID string, excludeCodename string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return 0, fmt.Errorf("role id is required")
	}

	var count int64
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT COUNT(*) FROM roles WHERE id = ? AND codename != ?
`, roleID, excludeCodename)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count roles for delete: %w", err)
	}
	return count, nil
}

// DeleteRole removes a role matching the id while excluding a protected
// codename, reporting how many rows were deleted.
func (s *Store) DeleteRole(ctx context.Context, roleID string, excludeCodename string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return 0, fmt.Errorf("role id is required")
	}

	res, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM roles WHERE id = ? AND codename != ?
`, roleID, excludeCodename)
	if err != nil {
		return 0, fmt.Errorf("delete role: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete role rows affected: %w", err)
	}
	return affected, nil
}
