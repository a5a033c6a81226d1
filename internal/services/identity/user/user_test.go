package user

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	apperrors "lifeasagame.dev/internal/platform/errors"
	"lifeasagame.dev/internal/services/identity/storage"
	"lifeasagame.dev/internal/services/identity/storage/sqlite"
)

func newTestService(t *testing.T, clock func() time.Time) (*Service, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "identity.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	svc := New(store)
	svc.clock = clock
	return svc, store
}

func createAccount(t *testing.T, svc *Service, email string) storage.UserRecord {
	t.Helper()
	record, err := svc.Create(context.Background(), CreateParams{
		Email:     email,
		Password:  "Pas5$word",
		FullName:  "Test User",
		BirthDate: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create %s: %v", email, err)
	}
	return record
}

func TestCreateHashesPasswordAndAppliesDefaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, store := newTestService(t, func() time.Time { return now })

	record, err := svc.Create(context.Background(), CreateParams{
		Email:     "  player@example.com  ",
		Password:  "Pas5$word",
		FullName:  " Test User ",
		BirthDate: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if record.ID == "" {
		t.Fatal("expected a generated id")
	}
	if record.Email != "player@example.com" || record.FullName != "Test User" {
		t.Fatalf("expected trimmed fields, got %q / %q", record.Email, record.FullName)
	}
	if record.Locale != "en-US" {
		t.Fatalf("locale = %q, want en-US default", record.Locale)
	}
	if record.IsSuperuser {
		t.Fatal("new accounts must not be superusers")
	}
	if record.LastLogin != nil {
		t.Fatal("new accounts have no login time")
	}
	if !record.CreatedAt.Equal(now) || !record.UpdatedAt.Equal(now) {
		t.Fatalf("timestamps = %v / %v, want %v", record.CreatedAt, record.UpdatedAt, now)
	}
	if !VerifyPassword(record.PasswordHash, "Pas5$word") {
		t.Fatal("stored hash does not verify the password")
	}

	stored, err := store.GetUserByID(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("get stored user: %v", err)
	}
	if stored.Email != record.Email {
		t.Fatalf("stored email = %q, want %q", stored.Email, record.Email)
	}
}

func TestCreateKeepsExplicitLocale(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, func() time.Time { return now })

	record, err := svc.Create(context.Background(), CreateParams{
		Email:     "player@example.com",
		Password:  "Pas5$word",
		FullName:  "Test User",
		BirthDate: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		Locale:    "pt-BR",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if record.Locale != "pt-BR" {
		t.Fatalf("locale = %q, want pt-BR", record.Locale)
	}
}

func TestCreateValidatesPolicyBeforeEmailCheck(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, func() time.Time { return now })
	createAccount(t, svc, "player@example.com")

	_, err := svc.Create(context.Background(), CreateParams{
		Email:     "player@example.com",
		Password:  "password",
		FullName:  "Test User",
		BirthDate: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Message != "Invalid password" {
		t.Fatalf("weak password on taken email = %v, want the policy error first", err)
	}
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, func() time.Time { return now })
	createAccount(t, svc, "player@example.com")

	_, err := svc.Create(context.Background(), CreateParams{
		Email:     "player@example.com",
		Password:  "Pas5$word",
		FullName:  "Test User",
		BirthDate: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeUserAlreadyExists {
		t.Fatalf("duplicate email = %v, want already-exists error", err)
	}
	if appErr.Message != "User already exists" {
		t.Fatalf("message = %q, want %q", appErr.Message, "User already exists")
	}
	want := apperrors.FieldError{Name: "email", Detail: "Email player@example.com already exists"}
	if len(appErr.Fields) != 1 || appErr.Fields[0] != want {
		t.Fatalf("fields = %+v, want %+v", appErr.Fields, want)
	}
}

func TestGetReturnsNotFoundForUnknownID(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, func() time.Time { return now })

	_, err := svc.Get(context.Background(), "0198ffaa-0000-7000-8000-000000000000")
	if apperrors.CodeOf(err) != apperrors.CodeUserNotFound {
		t.Fatalf("get unknown = %v, want user not found", err)
	}
}

func TestUpdateMergesProvidedFields(t *testing.T) {
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, func() time.Time { return current })
	seeded := createAccount(t, svc, "player@example.com")

	current = current.Add(time.Minute)
	updated, err := svc.Update(context.Background(), seeded.ID, UpdateParams{FullName: "Renamed User"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.FullName != "Renamed User" {
		t.Fatalf("full name = %q, want Renamed User", updated.FullName)
	}
	if updated.Email != seeded.Email || !updated.BirthDate.Equal(seeded.BirthDate) || updated.Locale != seeded.Locale {
		t.Fatalf("untouched fields changed: %+v", updated)
	}
	if !updated.UpdatedAt.Equal(current) {
		t.Fatalf("updated at = %v, want %v", updated.UpdatedAt, current)
	}
	if !VerifyPassword(updated.PasswordHash, "Pas5$word") {
		t.Fatal("password changed without being requested")
	}
}

func TestUpdateRejectsReusedPassword(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, func() time.Time { return now })
	seeded := createAccount(t, svc, "player@example.com")

	_, err := svc.Update(context.Background(), seeded.ID, UpdateParams{Password: "Pas5$word"})
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeValidation {
		t.Fatalf("reused password = %v, want validation error", err)
	}
	if appErr.Message != "New password cannot be the same as the old one" {
		t.Fatalf("message = %q", appErr.Message)
	}
}

func TestUpdateChangesPassword(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, func() time.Time { return now })
	seeded := createAccount(t, svc, "player@example.com")

	updated, err := svc.Update(context.Background(), seeded.ID, UpdateParams{Password: "N3w$ecret"})
	if err != nil {
		t.Fatalf("update password: %v", err)
	}
	if !VerifyPassword(updated.PasswordHash, "N3w$ecret") {
		t.Fatal("new password does not verify")
	}
	if VerifyPassword(updated.PasswordHash, "Pas5$word") {
		t.Fatal("old password still verifies")
	}
}

func TestUpdateRejectsTakenEmail(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, func() time.Time { return now })
	createAccount(t, svc, "first@example.com")
	second := createAccount(t, svc, "second@example.com")

	_, err := svc.Update(context.Background(), second.ID, UpdateParams{Email: "first@example.com"})
	if apperrors.CodeOf(err) != apperrors.CodeUserAlreadyExists {
		t.Fatalf("update to taken email = %v, want already-exists error", err)
	}
}

func TestDeleteRemovesAccountAndRejectsUnknownID(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, func() time.Time { return now })
	seeded := createAccount(t, svc, "player@example.com")

	if err := svc.Delete(context.Background(), seeded.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(context.Background(), seeded.ID); apperrors.CodeOf(err) != apperrors.CodeUserNotFound {
		t.Fatalf("get after delete = %v, want user not found", err)
	}

	err := svc.Delete(context.Background(), seeded.ID)
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeValidation {
		t.Fatalf("second delete = %v, want validation error", err)
	}
	if appErr.Message != "User does not exist" {
		t.Fatalf("message = %q, want %q", appErr.Message, "User does not exist")
	}
	want := apperrors.FieldError{Name: "id_", Detail: "User with the given ID does not exist"}
	if len(appErr.Fields) != 1 || appErr.Fields[0] != want {
		t.Fatalf("fields = %+v, want %+v", appErr.Fields, want)
	}
}

func TestListPagesAccountsInIDOrder(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, func() time.Time { return now })
	first := createAccount(t, svc, "first@example.com")
	second := createAccount(t, svc, "second@example.com")
	third := createAccount(t, svc, "third@example.com")

	page, err := svc.List(context.Background(), storage.ListQuery{Size: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 3 {
		t.Fatalf("total = %d, want 3", page.Total)
	}
	if len(page.Data) != 2 || page.Data[0].ID != first.ID || page.Data[1].ID != second.ID {
		t.Fatalf("first page = %v", pageIDs(page.Data))
	}
	if !page.HasNext || page.Page.LastID == nil || *page.Page.LastID != second.ID {
		t.Fatalf("cursor = %+v, want lastId %s with hasNext", page.Page, second.ID)
	}

	next, err := svc.List(context.Background(), storage.ListQuery{Size: 2, LastID: *page.Page.LastID})
	if err != nil {
		t.Fatalf("list next: %v", err)
	}
	if len(next.Data) != 1 || next.Data[0].ID != third.ID {
		t.Fatalf("second page = %v", pageIDs(next.Data))
	}
	if next.HasNext {
		t.Fatal("final page must not report hasNext")
	}
}

func pageIDs(records []storage.UserRecord) []string {
	ids := make([]string, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.ID)
	}
	return ids
}
