package user

import (
	"errors"
	"slices"
	"testing"

	apperrors "lifeasagame.dev/internal/platform/errors"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Pas5$word")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "Pas5$word" {
		t.Fatal("hash must not equal the plaintext")
	}
	if !VerifyPassword(hash, "Pas5$word") {
		t.Fatal("expected the original password to verify")
	}
	if VerifyPassword(hash, "Pas5$word2") {
		t.Fatal("expected a different password to fail")
	}
	if VerifyPassword("not-a-hash", "Pas5$word") {
		t.Fatal("expected a malformed hash to fail")
	}
}

func TestValidatePasswordPolicy(t *testing.T) {
	cases := []struct {
		name     string
		password string
		want     []string
	}{
		{
			name:     "missing lowercase",
			password: "PASSWORD",
			want: []string{
				"Password must contain at least one digit.",
				"Password must contain at least one lowercase letter.",
				"Password must contain at least one special character.",
			},
		},
		{
			name:     "missing uppercase",
			password: "password",
			want: []string{
				"Password must contain at least one digit.",
				"Password must contain at least one uppercase letter.",
				"Password must contain at least one special character.",
			},
		},
		{
			name:     "too short",
			password: "short",
			want: []string{
				"Password must be at least 8 characters long.",
				"Password must contain at least one digit.",
				"Password must contain at least one uppercase letter.",
				"Password must contain at least one special character.",
			},
		},
		{
			name:     "only numbers",
			password: "12345678",
			want: []string{
				"Password must contain at least one uppercase letter.",
				"Password must contain at least one lowercase letter.",
				"Password must contain at least one special character.",
			},
		},
		{
			name:     "missing special",
			password: "NoSpecial1",
			want: []string{
				"Password must contain at least one special character.",
			},
		},
		{
			name:     "missing number",
			password: "NoNumber$",
			want: []string{
				"Password must contain at least one digit.",
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePasswordPolicy(tc.password)
			var appErr *apperrors.Error
			if !errors.As(err, &appErr) {
				t.Fatalf("ValidatePasswordPolicy(%q) = %v, want app error", tc.password, err)
			}
			if appErr.Message != "Invalid password" {
				t.Fatalf("message = %q, want %q", appErr.Message, "Invalid password")
			}
			var details []string
			for _, field := range appErr.Fields {
				if field.Name != "password" {
					t.Fatalf("field name = %q, want password", field.Name)
				}
				details = append(details, field.Detail)
			}
			if !slices.Equal(details, tc.want) {
				t.Fatalf("details = %v, want %v", details, tc.want)
			}
		})
	}

	if err := ValidatePasswordPolicy("Pas5$word"); err != nil {
		t.Fatalf("valid password rejected: %v", err)
	}
}
