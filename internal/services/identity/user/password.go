package user

import (
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	apperrors "lifeasagame.dev/internal/platform/errors"
)

const specialChars = "@_!#$%^&*()<>?/|}{~:"

// HashPassword hashes a plaintext password for storage.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, "hash password", err)
	}
	return string(hashed), nil
}

// VerifyPassword reports whether the plaintext matches the stored hash.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePasswordPolicy checks a new password against the account password
// rules and returns a single validation error carrying one field entry per
// violated rule.
func ValidatePasswordPolicy(password string) error {
	var details []string
	if len(password) < 8 {
		details = append(details, "Password must be at least 8 characters long.")
	}
	if !strings.ContainsFunc(password, unicode.IsDigit) {
		details = append(details, "Password must contain at least one digit.")
	}
	if !strings.ContainsFunc(password, unicode.IsUpper) {
		details = append(details, "Password must contain at least one uppercase letter.")
	}
	if !strings.ContainsFunc(password, unicode.IsLower) {
		details = append(details, "Password must contain at least one lowercase letter.")
	}
	if !strings.ContainsAny(password, specialChars) {
		details = append(details, "Password must contain at least one special character.")
	}
	if len(details) == 0 {
		return nil
	}

	fields := make([]apperrors.FieldError, 0, len(details))
	for _, detail := range details {
		fields = append(fields, apperrors.FieldError{Name: "password", Detail: detail})
	}
	return apperrors.Validation("Invalid password", fields...)
}
