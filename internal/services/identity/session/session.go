// Package session issues, validates, refreshes and revokes the token-backed
// sessions behind the identity API. A session is the pairing of an issued
// token id with a user; tokens that verify but have no live session row are
// rejected.
package session

import (
	"context"
	"errors"
	"log"
	"slices"
	"time"

	apperrors "lifeasagame.dev/internal/platform/errors"
	"lifeasagame.dev/internal/services/identity/storage"
	"lifeasagame.dev/internal/services/identity/token"
	"lifeasagame.dev/internal/services/identity/user"
)

// Session is an issued access/refresh token pair with its access lifetime
// in seconds.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
	TokenID      string
}

// Identity is the authenticated caller attached to a request: the account
// record, the names of its active groups and the codenames of every role
// those groups carry, plus the raw access token it presented.
type Identity struct {
	User   storage.UserRecord
	Roles  []string
	Groups []string
	Token  string
}

// RolesIntersect reports whether the identity holds any of the given roles.
func (i Identity) RolesIntersect(roles ...string) bool {
	for _, role := range roles {
		if slices.Contains(i.Roles, role) {
			return true
		}
	}
	return false
}

// IsSuperuser reports whether the identity belongs to a superuser account.
func (i Identity) IsSuperuser() bool {
	return i.User.IsSuperuser
}

// Service authenticates credentials and manages issued sessions.
type Service struct {
	codec    *token.Codec
	users    storage.UserStore
	groups   storage.GroupStore
	sessions storage.SessionStore
	clock    func() time.Time
}

// New builds a session service bound to the token codec and backing stores.
func New(codec *token.Codec, users storage.UserStore, groups storage.GroupStore, sessions storage.SessionStore) *Service {
	return &Service{
		codec:    codec,
		users:    users,
		groups:   groups,
		sessions: sessions,
		clock:    time.Now,
	}
}

// Authenticate verifies credentials against the active account with the
// given email, records the login time and issues a session. Unknown emails
// and wrong passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Session, error) {
	account, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Session{}, apperrors.Unauthenticated()
		}
		return Session{}, apperrors.Wrap(apperrors.CodeInternal, "load user by email", err)
	}
	if !user.VerifyPassword(account.PasswordHash, password) {
		return Session{}, apperrors.Unauthenticated()
	}

	now := s.clock().UTC()
	account.LastLogin = &now
	if err := s.users.UpdateUser(ctx, account); err != nil {
		return Session{}, apperrors.Wrap(apperrors.CodeInternal, "record login time", err)
	}

	return s.Issue(ctx, account.ID)
}

// Issue mints a token pair for the user and stores the backing session row.
func (s *Service) Issue(ctx context.Context, userID string) (Session, error) {
	pair, err := s.codec.IssuePair(userID)
	if err != nil {
		return Session{}, err
	}

	record := storage.SessionRecord{
		UserID:    userID,
		TokenID:   pair.TokenID,
		CreatedAt: pair.IssuedAt,
		ExpiresAt: pair.RefreshExpiresAt,
	}
	if err := s.sessions.PutSession(ctx, record); err != nil {
		failure := apperrors.Unexpected("Could not create session.")
		failure.Cause = err
		return Session{}, failure
	}

	return Session{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn(),
		TokenID:      pair.TokenID,
	}, nil
}

// Validate checks an access token end to end and returns the account it
// belongs to. A token that parses but whose session was revoked, or whose
// token id does not match its claims, is invalid. A valid token whose
// account cannot be loaded is a server-side failure, not a credential one.
func (s *Service) Validate(ctx context.Context, raw string) (storage.UserRecord, error) {
	claims, err := s.codec.Decode(raw)
	if err != nil {
		return storage.UserRecord{}, err
	}
	if claims.TokenType != token.TypeAccess {
		return storage.UserRecord{}, apperrors.InvalidToken()
	}
	if !s.codec.VerifyTokenID(claims) {
		return storage.UserRecord{}, apperrors.InvalidToken()
	}

	live, err := s.sessions.SessionExists(ctx, claims.UserID, claims.TokenID, s.clock().UTC())
	if err != nil {
		return storage.UserRecord{}, apperrors.Wrap(apperrors.CodeInternal, "check session", err)
	}
	if !live {
		return storage.UserRecord{}, apperrors.InvalidToken()
	}

	account, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		failure := apperrors.Unexpected("Invalid session received")
		failure.Cause = err
		return storage.UserRecord{}, failure
	}
	return account, nil
}

// LoadIdentity validates an access token and resolves the caller's group
// names and flattened role codenames from active group memberships.
func (s *Service) LoadIdentity(ctx context.Context, raw string) (Identity, error) {
	account, err := s.Validate(ctx, raw)
	if err != nil {
		return Identity{}, err
	}

	memberships, err := s.groups.GroupsByUser(ctx, account.ID)
	if err != nil {
		return Identity{}, apperrors.Wrap(apperrors.CodeInternal, "load user groups", err)
	}

	identity := Identity{
		User:   account,
		Roles:  []string{},
		Groups: make([]string, 0, len(memberships)),
		Token:  raw,
	}
	for _, group := range memberships {
		identity.Groups = append(identity.Groups, group.Name)
		for _, role := range group.Roles {
			identity.Roles = append(identity.Roles, role.Codename)
		}
	}
	return identity, nil
}

// Refresh rotates a session: the presented refresh token's session row is
// deleted and a fresh pair is issued. Any failure to resolve the account,
// including a deleted one, reads as an invalid token.
func (s *Service) Refresh(ctx context.Context, raw string) (Session, error) {
	claims, err := s.codec.Decode(raw)
	if err != nil {
		return Session{}, err
	}
	if claims.TokenType != token.TypeRefresh {
		return Session{}, apperrors.InvalidToken()
	}
	if !s.codec.VerifyTokenID(claims) {
		return Session{}, apperrors.InvalidToken()
	}

	live, err := s.sessions.SessionExists(ctx, claims.UserID, claims.TokenID, s.clock().UTC())
	if err != nil {
		return Session{}, apperrors.Wrap(apperrors.CodeInternal, "check session", err)
	}
	if !live {
		return Session{}, apperrors.InvalidToken()
	}
	if err := s.sessions.DeleteSession(ctx, claims.UserID, claims.TokenID); err != nil {
		return Session{}, apperrors.Wrap(apperrors.CodeInternal, "rotate session", err)
	}

	account, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		failure := apperrors.InvalidToken()
		failure.Cause = err
		return Session{}, failure
	}

	return s.Issue(ctx, account.ID)
}

// Revoke deletes the session behind the given token. Expired tokens are
// accepted so a stale session can still be logged out; the token type is
// irrelevant because both tokens of a pair share one session.
func (s *Service) Revoke(ctx context.Context, raw string) error {
	claims, err := s.codec.DecodeExpired(raw)
	if err != nil {
		return err
	}
	if err := s.sessions.DeleteSession(ctx, claims.UserID, claims.TokenID); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "revoke session", err)
	}
	return nil
}

// Clear deletes every session the user holds.
func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.sessions.DeleteUserSessions(ctx, userID); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "clear sessions", err)
	}
	return nil
}

// StartCleanup starts periodic removal of expired session rows.
func (s *Service) StartCleanup(ctx context.Context, interval time.Duration) {
	if s == nil || s.sessions == nil || interval <= 0 {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.sessions.DeleteExpiredSessions(ctx, s.clock().UTC()); err != nil {
					log.Printf("delete expired sessions: %v", err)
				}
			}
		}
	}()
}
