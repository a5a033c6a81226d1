package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"lifeasagame.dev/internal/services/identity/storage"
)

func TestCreateGetRoleRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 5, 11, 0, 0, 0, time.UTC)
	input := mkRole("role-1", "game_master", now)

	if err := store.CreateRole(context.Background(), input); err != nil {
		t.Fatalf("create role: %v", err)
	}

	got, err := store.GetRoleByID(context.Background(), "role-1")
	if err != nil {
		t.Fatalf("get role: %v", err)
	}
	if got.Codename != "game_master" {
		t.Fatalf("codename = %q, want %q", got.Codename, "game_master")
	}
	if got.Description != input.Description {
		t.Fatalf("description = %q, want %q", got.Description, input.Description)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, now)
	}

	byCodename, err := store.GetRoleByCodename(context.Background(), "game_master")
	if err != nil {
		t.Fatalf("get role by codename: %v", err)
	}
	if byCodename.ID != "role-1" {
		t.Fatalf("id = %q, want %q", byCodename.ID, "role-1")
	}
}

func TestCreateRoleDuplicateCodenameReturnsAlreadyExists(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 5, 11, 10, 0, 0, time.UTC)
	if err := store.CreateRole(context.Background(), mkRole("role-1", "narrator", now)); err != nil {
		t.Fatalf("create first role: %v", err)
	}

	err := store.CreateRole(context.Background(), mkRole("role-2", "narrator", now))
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate create error = %v, want %v", err, storage.ErrAlreadyExists)
	}
}

func TestUpdateRoleChangesCodename(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 5, 11, 20, 0, 0, time.UTC)
	if err := store.CreateRole(context.Background(), mkRole("role-1", "old_name", now)); err != nil {
		t.Fatalf("create role: %v", err)
	}

	updated := mkRole("role-1", "new_name", now)
	updated.UpdatedAt = now.Add(time.Hour)
	if err := store.UpdateRole(context.Background(), updated); err != nil {
		t.Fatalf("update role: %v", err)
	}

	if _, err := store.GetRoleByCodename(context.Background(), "old_name"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("old codename error = %v, want %v", err, storage.ErrNotFound)
	}
	got, err := store.GetRoleByCodename(context.Background(), "new_name")
	if err != nil {
		t.Fatalf("get renamed role: %v", err)
	}
	if got.ID != "role-1" {
		t.Fatalf("id = %q, want %q", got.ID, "role-1")
	}
}

func TestRoleCodenameExistsHonorsExclusion(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 5, 11, 30, 0, 0, time.UTC)
	if err := store.CreateRole(context.Background(), mkRole("role-1", "scribe", now)); err != nil {
		t.Fatalf("create role: %v", err)
	}

	taken, err := store.RoleCodenameExists(context.Background(), "scribe", "")
	if err != nil {
		t.Fatalf("check codename: %v", err)
	}
	if !taken {
		t.Fatal("expected codename to be taken")
	}

	selfExcluded, err := store.RoleCodenameExists(context.Background(), "scribe", "role-1")
	if err != nil {
		t.Fatalf("check codename with exclusion: %v", err)
	}
	if selfExcluded {
		t.Fatal("expected own role to be excluded from codename check")
	}
}

func TestCountActiveRolesByIDsSkipsDeleted(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 5, 12, 0, 0, 0, time.UTC)
	if err := store.CreateRole(context.Background(), mkRole("role-1", "alive", now)); err != nil {
		t.Fatalf("create role: %v", err)
	}
	gone := mkRole("role-2", "gone", now)
	deletedAt := now.Add(time.Minute)
	gone.DeletedAt = &deletedAt
	if err := store.CreateRole(context.Background(), gone); err != nil {
		t.Fatalf("create deleted role: %v", err)
	}

	count, err := store.CountActiveRolesByIDs(context.Background(), []string{"role-1", "role-2", "role-x"})
	if err != nil {
		t.Fatalf("count active roles: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestListRolesKeysetPagination(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 5, 12, 10, 0, 0, time.UTC)
	for _, id := range []string{"role-a", "role-b", "role-c"} {
		if err := store.CreateRole(context.Background(), mkRole(id, "codename-"+id, now)); err != nil {
			t.Fatalf("create role %s: %v", id, err)
		}
	}

	pageOne, err := store.ListRoles(context.Background(), storage.ListQuery{Size: 2})
	if err != nil {
		t.Fatalf("list page one: %v", err)
	}
	if len(pageOne) != 2 {
		t.Fatalf("page one len = %d, want 2", len(pageOne))
	}
	pageTwo, err := store.ListRoles(context.Background(), storage.ListQuery{Size: 2, LastID: pageOne[1].ID})
	if err != nil {
		t.Fatalf("list page two: %v", err)
	}
	if len(pageTwo) != 1 {
		t.Fatalf("page two len = %d, want 1", len(pageTwo))
	}
	if pageTwo[0].ID != "role-c" {
		t.Fatalf("page two id = %s, want role-c", pageTwo[0].ID)
	}

	total, err := store.CountRoles(context.Background(), storage.Predicate{})
	if err != nil {
		t.Fatalf("count roles: %v", err)
	}
	if total != 3 {
		t.Fatalf("total = %d, want 3", total)
	}
}

func TestListRolesByCodenamesFilters(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 5, 12, 20, 0, 0, time.UTC)
	for _, codename := range []string{"admin", "player", "spectator"} {
		if err := store.CreateRole(context.Background(), mkRole("role-"+codename, codename, now)); err != nil {
			t.Fatalf("create role %s: %v", codename, err)
		}
	}

	roles, err := store.ListRolesByCodenames(context.Background(), []string{"admin", "player"}, storage.ListQuery{Size: 10})
	if err != nil {
		t.Fatalf("list roles by codenames: %v", err)
	}
	if len(roles) != 2 {
		t.Fatalf("len = %d, want 2", len(roles))
	}

	count, err := store.CountRolesByCodenames(context.Background(), []string{"admin", "player"})
	if err != nil {
		t.Fatalf("count roles by codenames: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}

	none, err := store.ListRolesByCodenames(context.Background(), nil, storage.ListQuery{Size: 10})
	if err != nil {
		t.Fatalf("list empty codenames: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("empty set len = %d, want 0", len(none))
	}
}

func TestDeleteRoleSkipsProtectedCodename(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 5, 12, 30, 0, 0, time.UTC)
	if err := store.CreateRole(context.Background(), mkRole("role-admin", "admin", now)); err != nil {
		t.Fatalf("create admin role: %v", err)
	}
	if err := store.CreateRole(context.Background(), mkRole("role-player", "player", now)); err != nil {
		t.Fatalf("create player role: %v", err)
	}

	protectedCount, err := store.CountRolesForDelete(context.Background(), "role-admin", "admin")
	if err != nil {
		t.Fatalf("count protected role: %v", err)
	}
	if protectedCount != 0 {
		t.Fatalf("protected count = %d, want 0", protectedCount)
	}

	count, err := store.CountRolesForDelete(context.Background(), "role-player", "admin")
	if err != nil {
		t.Fatalf("count deletable role: %v", err)
	}
	if count != 1 {
		t.Fatalf("deletable count = %d, want 1", count)
	}

	affected, err := store.DeleteRole(context.Background(), "role-player", "admin")
	if err != nil {
		t.Fatalf("delete role: %v", err)
	}
	if affected != 1 {
		t.Fatalf("affected = %d, want 1", affected)
	}
	if _, err := store.GetRoleByID(context.Background(), "role-player"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("deleted role error = %v, want %v", err, storage.ErrNotFound)
	}

	kept, err := store.DeleteRole(context.Background(), "role-admin", "admin")
	if err != nil {
		t.Fatalf("delete protected role: %v", err)
	}
	if kept != 0 {
		t.Fatalf("protected affected = %d, want 0", kept)
	}
}
