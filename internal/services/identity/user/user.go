// Package user implements account management: signup, profile reads and
// updates, administrative listing and deletion.
package user

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "lifeasagame.dev/internal/platform/errors"
	"lifeasagame.dev/internal/platform/i18n"
	"lifeasagame.dev/internal/platform/id"
	"lifeasagame.dev/internal/platform/pagination"
	"lifeasagame.dev/internal/services/identity/storage"
)

// Service implements account operations over the user store.
type Service struct {
	users storage.UserStore
	clock func() time.Time
}

// New creates a Service backed by the provided store.
func New(users storage.UserStore) *Service {
	return &Service{users: users, clock: time.Now}
}

// CreateParams carries the fields accepted on signup.
type CreateParams struct {
	Email     string
	Password  string
	FullName  string
	BirthDate time.Time
	Locale    string
}

// UpdateParams carries the optional fields of a profile update. Zero values
// keep the stored ones.
type UpdateParams struct {
	Email     string
	Password  string
	FullName  string
	BirthDate time.Time
	Locale    string
}

// Create registers a new account. The password policy runs before the
// duplicate-email check, and the check runs before hashing.
func (s *Service) Create(ctx context.Context, params CreateParams) (storage.UserRecord, error) {
	if err := ValidatePasswordPolicy(params.Password); err != nil {
		return storage.UserRecord{}, err
	}
	email := strings.TrimSpace(params.Email)
	taken, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return storage.UserRecord{}, apperrors.Wrap(apperrors.CodeInternal, "check email", err)
	}
	if taken {
		return storage.UserRecord{}, emailTaken(email)
	}

	hash, err := HashPassword(params.Password)
	if err != nil {
		return storage.UserRecord{}, err
	}
	userID, err := id.NewID()
	if err != nil {
		return storage.UserRecord{}, apperrors.Wrap(apperrors.CodeInternal, "generate user id", err)
	}
	locale := strings.TrimSpace(params.Locale)
	if locale == "" {
		locale = i18n.DefaultTag().String()
	}

	now := s.clock().UTC()
	record := storage.UserRecord{
		ID:           userID,
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(params.FullName),
		BirthDate:    params.BirthDate,
		Locale:       locale,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, record); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return storage.UserRecord{}, emailTaken(email)
		}
		return storage.UserRecord{}, apperrors.Wrap(apperrors.CodeInternal, "create user", err)
	}
	return record, nil
}

// Get returns an active account by id.
func (s *Service) Get(ctx context.Context, userID string) (storage.UserRecord, error) {
	record, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.UserRecord{}, apperrors.NotFound(apperrors.CodeUserNotFound, "User")
		}
		return storage.UserRecord{}, apperrors.Wrap(apperrors.CodeInternal, "load user", err)
	}
	return record, nil
}

// Update merges the provided fields into an account. A password change is
// rejected when it matches the current password.
func (s *Service) Update(ctx context.Context, userID string, params UpdateParams) (storage.UserRecord, error) {
	record, err := s.Get(ctx, userID)
	if err != nil {
		return storage.UserRecord{}, err
	}

	if email := strings.TrimSpace(params.Email); email != "" {
		record.Email = email
	}
	if name := strings.TrimSpace(params.FullName); name != "" {
		record.FullName = name
	}
	if !params.BirthDate.IsZero() {
		record.BirthDate = params.BirthDate
	}
	if locale := strings.TrimSpace(params.Locale); locale != "" {
		record.Locale = locale
	}
	if params.Password != "" {
		if VerifyPassword(record.PasswordHash, params.Password) {
			return storage.UserRecord{}, apperrors.Validation(
				"New password cannot be the same as the old one",
				apperrors.FieldError{Name: "password", Detail: "New password cannot be the same as the old one"},
			)
		}
		hash, err := HashPassword(params.Password)
		if err != nil {
			return storage.UserRecord{}, err
		}
		record.PasswordHash = hash
	}

	record.UpdatedAt = s.clock().UTC()
	if err := s.users.UpdateUser(ctx, record); err != nil {
		switch {
		case errors.Is(err, storage.ErrAlreadyExists):
			return storage.UserRecord{}, emailTaken(record.Email)
		case errors.Is(err, storage.ErrNotFound):
			return storage.UserRecord{}, apperrors.NotFound(apperrors.CodeUserNotFound, "User")
		default:
			return storage.UserRecord{}, apperrors.Wrap(apperrors.CodeInternal, "update user", err)
		}
	}
	return record, nil
}

// List returns a keyset page of accounts matching the query.
func (s *Service) List(ctx context.Context, query storage.ListQuery) (pagination.Page[storage.UserRecord], error) {
	records, err := s.users.ListUsers(ctx, query)
	if err != nil {
		return pagination.Page[storage.UserRecord]{}, apperrors.Wrap(apperrors.CodeInternal, "list users", err)
	}
	total, err := s.users.CountUsers(ctx, query.Predicate)
	if err != nil {
		return pagination.Page[storage.UserRecord]{}, apperrors.Wrap(apperrors.CodeInternal, "count users", err)
	}
	lastID := ""
	if len(records) > 0 {
		lastID = records[len(records)-1].ID
	}
	return pagination.NewPage(records, total, query.Size, lastID), nil
}

// Delete removes an account after checking it exists. Session rows are kept;
// the refresh path rejects them once the account is gone.
func (s *Service) Delete(ctx context.Context, userID string) error {
	exists, err := s.users.UserExists(ctx, userID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "check user", err)
	}
	if !exists {
		return apperrors.Validation(
			"User does not exist",
			apperrors.FieldError{Name: "id_", Detail: "User with the given ID does not exist"},
		)
	}
	if _, err := s.users.DeleteUser(ctx, userID); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "delete user", err)
	}
	return nil
}

func emailTaken(email string) *apperrors.Error {
	return apperrors.AlreadyExists(
		apperrors.CodeUserAlreadyExists,
		"User",
		apperrors.FieldError{Name: "email", Detail: "Email " + email + " already exists"},
	)
}
