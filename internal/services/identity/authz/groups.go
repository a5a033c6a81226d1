package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "lifeasagame.dev/internal/platform/errors"
	"lifeasagame.dev/internal/platform/id"
	"lifeasagame.dev/internal/platform/pagination"
	"lifeasagame.dev/internal/services/identity/storage"
)

// CreateGroupParams carries the fields accepted when creating a group.
type CreateGroupParams struct {
	Name        string
	Description string
}

// UpdateGroupParams carries the optional fields of a group update. Empty
// values keep the stored ones.
type UpdateGroupParams struct {
	Name        string
	Description string
}

// CreateGroup registers a new group with no roles attached.
func (s *Service) CreateGroup(ctx context.Context, params CreateGroupParams) (storage.GroupRecord, error) {
	name := strings.TrimSpace(params.Name)
	taken, err := s.groups.GroupNameExists(ctx, name)
	if err != nil {
		return storage.GroupRecord{}, apperrors.Wrap(apperrors.CodeInternal, "check group name", err)
	}
	if taken {
		return storage.GroupRecord{}, nameTaken(name)
	}

	groupID, err := id.NewID()
	if err != nil {
		return storage.GroupRecord{}, apperrors.Wrap(apperrors.CodeInternal, "generate group id", err)
	}
	now := s.clock().UTC()
	record := storage.GroupRecord{
		ID:          groupID,
		Name:        name,
		Description: params.Description,
		Roles:       []storage.RoleRecord{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.groups.CreateGroup(ctx, record); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return storage.GroupRecord{}, nameTaken(name)
		}
		return storage.GroupRecord{}, apperrors.Wrap(apperrors.CodeInternal, "create group", err)
	}
	return record, nil
}

// GetGroup returns a group with its attached roles by id.
func (s *Service) GetGroup(ctx context.Context, groupID string) (storage.GroupRecord, error) {
	record, err := s.groups.GetGroupByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.GroupRecord{}, apperrors.NotFound(apperrors.CodeGroupNotFound, "Group")
		}
		return storage.GroupRecord{}, apperrors.Wrap(apperrors.CodeInternal, "load group", err)
	}
	return record, nil
}

// GetGroupByName returns a group with its attached roles by name.
func (s *Service) GetGroupByName(ctx context.Context, name string) (storage.GroupRecord, error) {
	record, err := s.groups.GetGroupByName(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.GroupRecord{}, apperrors.NotFound(apperrors.CodeGroupNotFound, "Group")
		}
		return storage.GroupRecord{}, apperrors.Wrap(apperrors.CodeInternal, "load group by name", err)
	}
	return record, nil
}

// ListGroupsByNames returns a keyset page of the groups whose name is in
// the set.
func (s *Service) ListGroupsByNames(ctx context.Context, names []string, params pagination.Params) (pagination.Page[storage.GroupRecord], error) {
	query := storage.ListQuery{LastID: params.LastID, Size: params.Size}
	records, err := s.groups.ListGroupsByNames(ctx, names, query)
	if err != nil {
		return pagination.Page[storage.GroupRecord]{}, apperrors.Wrap(apperrors.CodeInternal, "list groups by names", err)
	}
	total, err := s.groups.CountGroupsByNames(ctx, names)
	if err != nil {
		return pagination.Page[storage.GroupRecord]{}, apperrors.Wrap(apperrors.CodeInternal, "count groups by names", err)
	}
	lastID := ""
	if len(records) > 0 {
		lastID = records[len(records)-1].ID
	}
	return pagination.NewPage(records, total, params.Size, lastID), nil
}

// UpdateGroup merges the provided fields into a group. The name-conflict
// check runs before the existence check and does not exclude the group
// itself, so renaming a group to its current name conflicts.
func (s *Service) UpdateGroup(ctx context.Context, groupID string, params UpdateGroupParams) (storage.GroupRecord, error) {
	name := strings.TrimSpace(params.Name)
	if name != "" {
		taken, err := s.groups.GroupNameExists(ctx, name)
		if err != nil {
			return storage.GroupRecord{}, apperrors.Wrap(apperrors.CodeInternal, "check group name", err)
		}
		if taken {
			return storage.GroupRecord{}, nameTaken(name)
		}
	}
	record, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return storage.GroupRecord{}, err
	}

	if name != "" {
		record.Name = name
	}
	if params.Description != "" {
		record.Description = params.Description
	}
	record.UpdatedAt = s.clock().UTC()
	if err := s.groups.UpdateGroup(ctx, record); err != nil {
		switch {
		case errors.Is(err, storage.ErrAlreadyExists):
			return storage.GroupRecord{}, nameTaken(record.Name)
		case errors.Is(err, storage.ErrNotFound):
			return storage.GroupRecord{}, apperrors.NotFound(apperrors.CodeGroupNotFound, "Group")
		default:
			return storage.GroupRecord{}, apperrors.Wrap(apperrors.CodeInternal, "update group", err)
		}
	}
	return record, nil
}

// DeleteGroup removes a group, its role attachments and its memberships.
// A group holding the admin role can only be deleted by a superuser.
func (s *Service) DeleteGroup(ctx context.Context, actor storage.UserRecord, groupID string) error {
	if err := s.requireGroup(ctx, groupID); err != nil {
		return err
	}

	adminRole, err := s.roles.GetRoleByCodename(ctx, AdminRoleCodename)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		// No admin role seeded, nothing to protect.
	case err != nil:
		return apperrors.Wrap(apperrors.CodeInternal, "load admin role", err)
	case !actor.IsSuperuser:
		holdsAdmin, err := s.groups.GroupHasRoles(ctx, groupID, []string{adminRole.ID})
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, "check admin attachment", err)
		}
		if holdsAdmin {
			return apperrors.PermissionDenied()
		}
	}

	if err := s.groups.DeleteGroup(ctx, groupID); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "delete group", err)
	}
	return nil
}

// AttachRoles attaches roles to a group. Every role must exist and be
// active, and none may already be attached.
func (s *Service) AttachRoles(ctx context.Context, actor storage.UserRecord, groupID string, roleIDs []string) error {
	if err := s.requireGroup(ctx, groupID); err != nil {
		return err
	}
	if err := s.checkAdminRoleBinding(ctx, actor, roleIDs); err != nil {
		return err
	}
	count, err := s.roles.CountActiveRolesByIDs(ctx, roleIDs)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "count roles", err)
	}
	if count == 0 || count != int64(len(roleIDs)) {
		return apperrors.NotFound(apperrors.CodeRoleNotFound, "Role")
	}
	attached, err := s.groups.GroupHasRoles(ctx, groupID, roleIDs)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "check attachments", err)
	}
	if attached {
		return apperrors.AlreadyExists(
			apperrors.CodeRoleAlreadyExists,
			"Role",
			apperrors.FieldError{Name: "id", Detail: fmt.Sprintf("Roles %v are already attached to the group", roleIDs)},
		)
	}

	affected, err := s.groups.AttachRoles(ctx, groupID, roleIDs)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "attach roles", err)
	}
	if affected == 0 {
		return apperrors.Unexpected("")
	}
	return nil
}

// DetachRoles detaches roles from a group. At least one role must exist,
// and at least one of them must be attached; a partial detach is reported
// as a server failure.
func (s *Service) DetachRoles(ctx context.Context, actor storage.UserRecord, groupID string, roleIDs []string) error {
	if err := s.requireGroup(ctx, groupID); err != nil {
		return err
	}
	if err := s.checkAdminRoleBinding(ctx, actor, roleIDs); err != nil {
		return err
	}
	count, err := s.roles.CountActiveRolesByIDs(ctx, roleIDs)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "count roles", err)
	}
	if count == 0 {
		return apperrors.NotFound(apperrors.CodeRoleNotFound, "Role")
	}
	attached, err := s.groups.GroupHasRoles(ctx, groupID, roleIDs)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "check attachments", err)
	}
	if !attached {
		return apperrors.NotFound(apperrors.CodeRoleNotFound, "Role")
	}

	affected, err := s.groups.DetachRoles(ctx, groupID, roleIDs)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "detach roles", err)
	}
	if affected == 0 || affected != int64(len(roleIDs)) {
		return apperrors.Unexpected("")
	}
	return nil
}

// JoinGroup adds users to a group. Every user must exist and none may
// already be a member.
func (s *Service) JoinGroup(ctx context.Context, groupID string, userIDs []string) error {
	if err := s.requireGroup(ctx, groupID); err != nil {
		return err
	}
	count, err := s.users.CountUsersByIDs(ctx, userIDs)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "count users", err)
	}
	if count == 0 || count != int64(len(userIDs)) {
		return apperrors.NotFound(apperrors.CodeUserNotFound, "User")
	}
	members, err := s.groups.GroupHasMembers(ctx, groupID, userIDs)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "check members", err)
	}
	if members {
		return apperrors.AlreadyExists(
			apperrors.CodeUserAlreadyExists,
			"User",
			apperrors.FieldError{Name: "id", Detail: fmt.Sprintf("Users %v are already in the group", userIDs)},
		)
	}

	affected, err := s.groups.AddGroupMembers(ctx, groupID, userIDs)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "add members", err)
	}
	if affected == 0 {
		return apperrors.Unexpected("")
	}
	return nil
}

// LeaveGroup removes users from a group. Every user must exist and at
// least one must be a member; a partial removal is reported as a server
// failure.
func (s *Service) LeaveGroup(ctx context.Context, groupID string, userIDs []string) error {
	if err := s.requireGroup(ctx, groupID); err != nil {
		return err
	}
	count, err := s.users.CountUsersByIDs(ctx, userIDs)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "count users", err)
	}
	if count == 0 || count != int64(len(userIDs)) {
		return apperrors.NotFound(apperrors.CodeUserNotFound, "User")
	}
	members, err := s.groups.GroupHasMembers(ctx, groupID, userIDs)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "check members", err)
	}
	if !members {
		return apperrors.NotFound(apperrors.CodeUserNotFound, "User")
	}

	affected, err := s.groups.RemoveGroupMembers(ctx, groupID, userIDs)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "remove members", err)
	}
	if affected == 0 || affected != int64(len(userIDs)) {
		return apperrors.Unexpected("")
	}
	return nil
}

func nameTaken(name string) *apperrors.Error {
	return apperrors.AlreadyExists(
		apperrors.CodeGroupAlreadyExists,
		"Group",
		apperrors.FieldError{Name: "name", Detail: "Name " + name + " already exists"},
	)
}
