package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"lifeasagame.dev/internal/services/identity/storage"
)

const groupColumns = "id, name, description, created_at, updated_at, deleted_at"

func scanGroupRow(scanner interface{ Scan(...any) error }) (storage.GroupRecord, error) {
	var (
		rec       storage.GroupRecord
		createdAt int64
		updatedAt int64
		deletedAt sql.NullInt64
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.Name,
		&rec.Description,
		&createdAt,
		&updatedAt,
		&deletedAt,
	); err != nil {
		return storage.GroupRecord{}, err
	}
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	if deletedAt.Valid {
		value := fromMillis(deletedAt.Int64)
		rec.DeletedAt = &value
	}
	return rec, nil
}

// loadGroupRoles fetches the roles attached to each group id in one query.
func (s *Store) loadGroupRoles(ctx context.Context, groupIDs []string) (map[string][]storage.RoleRecord, error) {
	byGroup := make(map[string][]storage.RoleRecord, len(groupIDs))
	if len(groupIDs) == 0 {
		return byGroup, nil
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT rg.group_id, r.id, r.codename, r.description, r.created_at, r.updated_at, r.deleted_at
FROM roles_groups rg
JOIN roles r ON r.id = rg.role_id
WHERE rg.group_id IN (`+sqlPlaceholders(len(groupIDs))+`)
ORDER BY rg.group_id, r.id
`, idsToArgs(groupIDs)...)
	if err != nil {
		return nil, fmt.Errorf("load group roles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			groupID   string
			rec       storage.RoleRecord
			createdAt int64
			updatedAt int64
			deletedAt sql.NullInt64
		)
		if err := rows.Scan(
			&groupID,
			&rec.ID,
			&rec.Codename,
			&rec.Description,
			&createdAt,
			&updatedAt,
			&deletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan group role row: %w", err)
		}
		rec.CreatedAt = fromMillis(createdAt)
		rec.UpdatedAt = fromMillis(updatedAt)
		if deletedAt.Valid {
			value := fromMillis(deletedAt.Int64)
			rec.DeletedAt = &value
		}
		byGroup[groupID] = append(byGroup[groupID], rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group role rows: %w", err)
	}
	return byGroup, nil
}

func (s *Store) getGroup(ctx context.Context, column string, value string) (storage.GroupRecord, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+groupColumns+`
FROM groups
WHERE `+column+` = ?
`, value)
	rec, err := scanGroupRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.GroupRecord{}, storage.ErrNotFound
		}
		return storage.GroupRecord{}, fmt.Errorf("get group: %w", err)
	}

	roles, err := s.loadGroupRoles(ctx, []string{rec.ID})
	if err != nil {
		return storage.GroupRecord{}, err
	}
	rec.Roles = roles[rec.ID]
	if rec.Roles == nil {
		rec.Roles = []storage.RoleRecord{}
	}
	return rec, nil
}

// CreateGroup persists a new group record. Roles are always attached
// separately.
func (s *Store) CreateGroup(ctx context.Context, record storage.GroupRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	record.ID = strings.TrimSpace(record.ID)
	record.Name = strings.TrimSpace(record.Name)
	if record.ID == "" {
		return fmt.Errorf("group id is required")
	}
	if record.Name == "" {
		return fmt.Errorf("group name is required")
	}

	var deletedAt sql.NullInt64
	if record.DeletedAt != nil {
		deletedAt = sql.NullInt64{Int64: toMillis(*record.DeletedAt), Valid: true}
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO groups (`+groupColumns+`)
VALUES (?, ?, ?, ?, ?, ?)
`,
		record.ID,
		record.Name,
		record.Description,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
		deletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

// GetGroupByID fetches a group and its attached roles by id.
func (s *Store) GetGroupByID(ctx context.Context, groupID string) (storage.GroupRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.GroupRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.GroupRecord{}, fmt.Errorf("storage is not configured")
	}
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return storage.GroupRecord{}, fmt.Errorf("group id is required")
	}
	return s.getGroup(ctx, "id", groupID)
}

// GetGroupByName fetches a group and its attached roles by name.
func (s *Store) GetGroupByName(ctx context.Context, name string) (storage.GroupRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.GroupRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.GroupRecord{}, fmt.Errorf("storage is not configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return storage.GroupRecord{}, fmt.Errorf("group name is required")
	}
	return s.getGroup(ctx, "name", name)
}

// UpdateGroup replaces a group's name and description.
func (s *Store) UpdateGroup(ctx context.Context, record storage.GroupRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	record.ID = strings.TrimSpace(record.ID)
	record.Name = strings.TrimSpace(record.Name)
	if record.ID == "" {
		return fmt.Errorf("group id is required")
	}
	if record.Name == "" {
		return fmt.Errorf("group name is required")
	}

	res, err := s.sqlDB.ExecContext(ctx, `
UPDATE groups
SET name = ?, description = ?, updated_at = ?
WHERE id = ?
`,
		record.Name,
		record.Description,
		toMillis(record.UpdatedAt),
		record.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("update group: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update group rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteGroup removes a group row together with its role attachments and
// memberships.
func (s *Store) DeleteGroup(ctx context.Context, groupID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return fmt.Errorf("group id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete group: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM roles_groups WHERE group_id = ?`, groupID); err != nil {
		return fmt.Errorf("delete group attachments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM users_groups WHERE group_id = ?`, groupID); err != nil {
		return fmt.Errorf("delete group memberships: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM groups WHERE id = ?`, groupID)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete group rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return tx.Commit()
}

// GroupExists reports whether a group row exists.
func (s *Store) GroupExists(ctx context.Context, groupID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return false, fmt.Errorf("group id is required")
	}

	var found int
	row := s.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM groups WHERE id = ?`, groupID)
	if err := row.Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check group exists: %w", err)
	}
	return true, nil
}

// GroupNameExists reports whether a group name is taken.
func (s *Store) GroupNameExists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return false, fmt.Errorf("group name is required")
	}

	var found int
	row := s.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM groups WHERE name = ?`, name)
	if err := row.Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check group name exists: %w", err)
	}
	return true, nil
}

// ListGroupsByNames returns a keyset page of groups whose name is in the
// set, with attached roles loaded. An empty set yields an empty page.
func (s *Store) ListGroupsByNames(ctx context.Context, names []string, query storage.ListQuery) ([]storage.GroupRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if query.Size <= 0 {
		return nil, fmt.Errorf("page size must be greater than zero")
	}
	if len(names) == 0 {
		return []storage.GroupRecord{}, nil
	}

	conditions := []string{"name IN (" + sqlPlaceholders(len(names)) + ")"}
	args := idsToArgs(names)
	if lastID := strings.TrimSpace(query.LastID); lastID != "" {
		conditions = append(conditions, "id > ?")
		args = append(args, lastID)
	}
	args = append(args, query.Size)

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+groupColumns+`
FROM groups
WHERE `+strings.Join(conditions, " AND ")+`
ORDER BY id
LIMIT ?
`, args...)
	if err != nil {
		return nil, fmt.Errorf("list groups by names: %w", err)
	}
	defer rows.Close()

	groups := make([]storage.GroupRecord, 0, query.Size)
	for rows.Next() {
		rec, err := scanGroupRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group row: %w", err)
		}
		groups = append(groups, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group rows: %w", err)
	}

	groupIDs := make([]string, 0, len(groups))
	for _, group := range groups {
		groupIDs = append(groupIDs, group.ID)
	}
	roles, err := s.loadGroupRoles(ctx, groupIDs)
	if err != nil {
		return nil, err
	}
	for i := range groups {
		groups[i].Roles = roles[groups[i].ID]
		if groups[i].Roles == nil {
			groups[i].Roles = []storage.RoleRecord{}
		}
	}
	return groups, nil
}

// CountGroupsByNames counts groups whose name is in the set.
func (s *Store) CountGroupsByNames(ctx context.Context, names []string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if len(names) == 0 {
		return 0, nil
	}

	query := `SELECT COUNT(*) FROM groups WHERE name IN (` + sqlPlaceholders(len(names)) + `)`
	var count int64
	row := s.sqlDB.QueryRowContext(ctx, query, idsToArgs(names)...)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count groups by names: %w", err)
	}
	return count, nil
}

// GroupsByUser returns the non-deleted groups the user belongs to, with
// attached roles loaded.
func (s *Store) GroupsByUser(ctx context.Context, userID string) ([]storage.GroupRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT g.id, g.name, g.description, g.created_at, g.updated_at, g.deleted_at
FROM groups g
JOIN users_groups ug ON ug.group_id = g.id
WHERE ug.user_id = ? AND g.deleted_at IS NULL
ORDER BY g.id
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list groups by user: %w", err)
	}
	defer rows.Close()

	groups := make([]storage.GroupRecord, 0)
	for rows.Next() {
		rec, err := scanGroupRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group row: %w", err)
		}
		groups = append(groups, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group rows: %w", err)
	}

	groupIDs := make([]string, 0, len(groups))
	for _, group := range groups {
		groupIDs = append(groupIDs, group.ID)
	}
	roles, err := s.loadGroupRoles(ctx, groupIDs)
	if err != nil {
		return nil, err
	}
	for i := range groups {
		groups[i].Roles = roles[groups[i].ID]
		if groups[i].Roles == nil {
			groups[i].Roles = []storage.RoleRecord{}
		}
	}
	return groups, nil
}

// AttachRoles inserts attachment rows and reports how many were inserted.
func (s *Store) AttachRoles(ctx context.Context, groupID string, roleIDs []string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return 0, fmt.Errorf("group id is required")
	}
	if len(roleIDs) == 0 {
		return 0, nil
	}

	values := strings.TrimSuffix(strings.Repeat("(?, ?), ", len(roleIDs)), ", ")
	args := make([]any, 0, len(roleIDs)*2)
	for _, roleID := range roleIDs {
		args = append(args, groupID, strings.TrimSpace(roleID))
	}

	res, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO roles_groups (group_id, role_id) VALUES `+values, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, storage.ErrAlreadyExists
		}
		return 0, fmt.Errorf("attach roles: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("attach roles rows affected: %w", err)
	}
	return affected, nil
}

// DetachRoles deletes attachment rows and reports how many were deleted.
func (s *Store) DetachRoles(ctx context.Context, groupID string, roleIDs []string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return 0, fmt.Errorf("group id is required")
	}
	if len(roleIDs) == 0 {
		return 0, nil
	}

	args := append([]any{groupID}, idsToArgs(roleIDs)...)
	res, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM roles_groups
WHERE group_id = ? AND role_id IN (`+sqlPlaceholders(len(roleIDs))+`)
`, args...)
	if err != nil {
		return 0, fmt.Errorf("detach roles: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("detach roles rows affected: %w", err)
	}
	return affected, nil
}

// GroupHasRoles reports whether any of the roles is attached to the group.
func (s *Store) GroupHasRoles(ctx context.Context, groupID string, roleIDs []string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return false, fmt.Errorf("group id is required")
	}
	if len(roleIDs) == 0 {
		return false, nil
	}

	args := append([]any{groupID}, idsToArgs(roleIDs)...)
	var found int
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT 1 FROM roles_groups
WHERE group_id = ? AND role_id IN (`+sqlPlaceholders(len(roleIDs))+`)
`, args...)
	if err := row.Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check group has roles: %w", err)
	}
	return true, nil
}

// RoleAttachedToAnyGroup reports whether the role is attached anywhere.
func (s *Store) RoleAttachedToAnyGroup(ctx context.Context, roleID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return false, fmt.Errorf("role id is required")
	}

	var found int
	row := s.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM roles_groups WHERE role_id = ?`, roleID)
	if err := row.Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check role attached: %w", err)
	}
	return true, nil
}

// AddGroupMembers inserts membership rows and reports how many were inserted.
func (s *Store) AddGroupMembers(ctx context.Context, groupID string, userIDs []string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return 0, fmt.Errorf("group id is required")
	}
	if len(userIDs) == 0 {
		return 0, nil
	}

	values := strings.TrimSuffix(strings.Repeat("(?, ?), ", len(userIDs)), ", ")
	args := make([]any, 0, len(userIDs)*2)
	for _, userID := range userIDs {
		args = append(args, groupID, strings.TrimSpace(userID))
	}

	res, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO users_groups (group_id, user_id) VALUES `+values, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, storage.ErrAlreadyExists
		}
		return 0, fmt.Errorf("add group members: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("add group members rows affected: %w", err)
	}
	return affected, nil
}

// RemoveGroupMembers deletes membership rows and reports how many were
// deleted.
func (s *Store) RemoveGroupMembers(ctx context.Context, groupID string, userIDs []string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return 0, fmt.Errorf("group id is required")
	}
	if len(userIDs) == 0 {
		return 0, nil
	}

	args := append([]any{groupID}, idsToArgs(userIDs)...)
	res, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM users_groups
WHERE group_id = ? AND user_id IN (`+sqlPlaceholders(len(userIDs))+`)
`, args...)
	if err != nil {
		return 0, fmt.Errorf("remove group members: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("remove group members rows affected: %w", err)
	}
	return affected, nil
}

// GroupHasMembers reports whether any of the users belongs to the group.
func (s *Store) GroupHasMembers(ctx context.Context, groupID string, userIDs []string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return false, fmt.Errorf("group id is required")
	}
	if len(userIDs) == 0 {
		return false, nil
	}

	args := append([]any{groupID}, idsToArgs(userIDs)...)
	var found int
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT 1 FROM users_groups
WHERE group_id = ? AND user_id IN (`+sqlPlaceholders(len(userIDs))+`)
`, args...)
	if err := row.Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check group has members: %w", err)
	}
	return true, nil
}
