package authz

import (
	"context"
	"errors"
	"strings"

	apperrors "lifeasagame.dev/internal/platform/errors"
	"lifeasagame.dev/internal/platform/id"
	"lifeasagame.dev/internal/platform/pagination"
	"lifeasagame.dev/internal/services/identity/storage"
)

// CreateRoleParams carries the fields accepted when creating a role.
type CreateRoleParams struct {
	Codename    string
	Description string
}

// UpdateRoleParams carries the optional fields of a role update. Empty
// values keep the stored ones.
type UpdateRoleParams struct {
	Codename    string
	Description string
}

// CreateRole registers a new role. The admin codename is reserved.
func (s *Service) CreateRole(ctx context.Context, params CreateRoleParams) (storage.RoleRecord, error) {
	codename := strings.TrimSpace(params.Codename)
	if codename == AdminRoleCodename {
		return storage.RoleRecord{}, apperrors.PermissionDenied()
	}
	taken, err := s.roles.RoleCodenameExists(ctx, codename, "")
	if err != nil {
		return storage.RoleRecord{}, apperrors.Wrap(apperrors.CodeInternal, "check codename", err)
	}
	if taken {
		return storage.RoleRecord{}, codenameTaken(codename)
	}

	roleID, err := id.NewID()
	if err != nil {
		return storage.RoleRecord{}, apperrors.Wrap(apperrors.CodeInternal, "generate role id", err)
	}
	now := s.clock().UTC()
	record := storage.RoleRecord{
		ID:          roleID,
		Codename:    codename,
		Description: params.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.roles.CreateRole(ctx, record); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return storage.RoleRecord{}, codenameTaken(codename)
		}
		return storage.RoleRecord{}, apperrors.Wrap(apperrors.CodeInternal, "create role", err)
	}
	return record, nil
}

// GetRole returns a role by id.
func (s *Service) GetRole(ctx context.Context, roleID string) (storage.RoleRecord, error) {
	record, err := s.roles.GetRoleByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.RoleRecord{}, apperrors.NotFound(apperrors.CodeRoleNotFound, "Role")
		}
		return storage.RoleRecord{}, apperrors.Wrap(apperrors.CodeInternal, "load role", err)
	}
	return record, nil
}

// GetRoleByCodename returns a role by codename.
func (s *Service) GetRoleByCodename(ctx context.Context, codename string) (storage.RoleRecord, error) {
	record, err := s.roles.GetRoleByCodename(ctx, codename)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.RoleRecord{}, apperrors.NotFound(apperrors.CodeRoleNotFound, "Role")
		}
		return storage.RoleRecord{}, apperrors.Wrap(apperrors.CodeInternal, "load role by codename", err)
	}
	return record, nil
}

// ListRoles returns a keyset page of roles matching the query.
func (s *Service) ListRoles(ctx context.Context, query storage.ListQuery) (pagination.Page[storage.RoleRecord], error) {
	records, err := s.roles.ListRoles(ctx, query)
	if err != nil {
		return pagination.Page[storage.RoleRecord]{}, apperrors.Wrap(apperrors.CodeInternal, "list roles", err)
	}
	total, err := s.roles.CountRoles(ctx, query.Predicate)
	if err != nil {
		return pagination.Page[storage.RoleRecord]{}, apperrors.Wrap(apperrors.CodeInternal, "count roles", err)
	}
	return rolePage(records, total, query.Size), nil
}

// ListRolesByCodenames returns a keyset page of the roles whose codename is
// in the set. Duplicate codenames are allowed and counted once.
func (s *Service) ListRolesByCodenames(ctx context.Context, codenames []string, params pagination.Params) (pagination.Page[storage.RoleRecord], error) {
	query := storage.ListQuery{LastID: params.LastID, Size: params.Size}
	records, err := s.roles.ListRolesByCodenames(ctx, codenames, query)
	if err != nil {
		return pagination.Page[storage.RoleRecord]{}, apperrors.Wrap(apperrors.CodeInternal, "list roles by codenames", err)
	}
	total, err := s.roles.CountRolesByCodenames(ctx, codenames)
	if err != nil {
		return pagination.Page[storage.RoleRecord]{}, apperrors.Wrap(apperrors.CodeInternal, "count roles by codenames", err)
	}
	return rolePage(records, total, params.Size), nil
}

// UpdateRole merges the provided fields into a role. The admin role cannot
// be updated, and no role can take its codename.
func (s *Service) UpdateRole(ctx context.Context, roleID string, params UpdateRoleParams) (storage.RoleRecord, error) {
	record, err := s.GetRole(ctx, roleID)
	if err != nil {
		return storage.RoleRecord{}, err
	}
	codename := strings.TrimSpace(params.Codename)
	if record.Codename == AdminRoleCodename || codename == AdminRoleCodename {
		return storage.RoleRecord{}, apperrors.PermissionDenied()
	}
	if codename != "" && codename != record.Codename {
		taken, err := s.roles.RoleCodenameExists(ctx, codename, roleID)
		if err != nil {
			return storage.RoleRecord{}, apperrors.Wrap(apperrors.CodeInternal, "check codename", err)
		}
		if taken {
			return storage.RoleRecord{}, codenameTaken(codename)
		}
	}

	if codename != "" {
		record.Codename = codename
	}
	if params.Description != "" {
		record.Description = params.Description
	}
	record.UpdatedAt = s.clock().UTC()
	if err := s.roles.UpdateRole(ctx, record); err != nil {
		switch {
		case errors.Is(err, storage.ErrAlreadyExists):
			return storage.RoleRecord{}, codenameTaken(record.Codename)
		case errors.Is(err, storage.ErrNotFound):
			return storage.RoleRecord{}, apperrors.NotFound(apperrors.CodeRoleNotFound, "Role")
		default:
			return storage.RoleRecord{}, apperrors.Wrap(apperrors.CodeInternal, "update role", err)
		}
	}
	return record, nil
}

// DeleteRole removes a role by id. The admin role is excluded from the
// delete clause, so targeting it reports not found.
func (s *Service) DeleteRole(ctx context.Context, roleID string) error {
	count, err := s.roles.CountRolesForDelete(ctx, roleID, AdminRoleCodename)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "count roles for delete", err)
	}
	if count == 0 {
		return apperrors.NotFound(apperrors.CodeRoleNotFound, "Role")
	}
	if count > 1 {
		return apperrors.Unexpected("Multiple roles found for deletion")
	}
	if _, err := s.roles.DeleteRole(ctx, roleID, AdminRoleCodename); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "delete role", err)
	}
	return nil
}

func rolePage(records []storage.RoleRecord, total int64, size int) pagination.Page[storage.RoleRecord] {
	lastID := ""
	if len(records) > 0 {
		lastID = records[len(records)-1].ID
	}
	return pagination.NewPage(records, total, size, lastID)
}

func codenameTaken(codename string) *apperrors.Error {
	return apperrors.AlreadyExists(
		apperrors.CodeRoleAlreadyExists,
		"Role",
		apperrors.FieldError{Name: "codename", Detail: "Codename " + codename + " already exists"},
	)
}
