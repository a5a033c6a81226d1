// Package authz implements role and group management and the role-derived
// access policies.
package authz

import (
	"context"
	"errors"
	"slices"
	"time"

	apperrors "lifeasagame.dev/internal/platform/errors"
	"lifeasagame.dev/internal/services/identity/session"
	"lifeasagame.dev/internal/services/identity/storage"
)

// AdminRoleCodename is the role codename granting administrative access.
// The role itself is seeded out of band; the API refuses to create, rename
// or delete it.
const AdminRoleCodename = "admin"

// IsAdmin reports whether the identity holds the admin role or is a
// superuser.
func IsAdmin(identity session.Identity) bool {
	return identity.RolesIntersect(AdminRoleCodename) || identity.IsSuperuser()
}

// Service implements role and group management over the identity stores.
type Service struct {
	roles  storage.RoleStore
	groups storage.GroupStore
	users  storage.UserStore
	clock  func() time.Time
}

// New creates a Service backed by the provided stores.
func New(roles storage.RoleStore, groups storage.GroupStore, users storage.UserStore) *Service {
	return &Service{roles: roles, groups: groups, users: users, clock: time.Now}
}

func (s *Service) requireGroup(ctx context.Context, groupID string) error {
	exists, err := s.groups.GroupExists(ctx, groupID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "check group", err)
	}
	if !exists {
		return apperrors.NotFound(apperrors.CodeGroupNotFound, "Group")
	}
	return nil
}

// checkAdminRoleBinding gates attaching or detaching the admin role: only a
// superuser may touch it, and only while it is not attached to any group.
func (s *Service) checkAdminRoleBinding(ctx context.Context, actor storage.UserRecord, roleIDs []string) error {
	adminRole, err := s.roles.GetRoleByCodename(ctx, AdminRoleCodename)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return apperrors.Wrap(apperrors.CodeInternal, "load admin role", err)
	}
	if !slices.Contains(roleIDs, adminRole.ID) {
		return nil
	}
	if !actor.IsSuperuser {
		return apperrors.PermissionDenied()
	}
	attached, err := s.groups.RoleAttachedToAnyGroup(ctx, adminRole.ID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "check admin attachment", err)
	}
	if attached {
		return apperrors.PermissionDenied()
	}
	return nil
}
