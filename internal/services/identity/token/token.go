// Package token mints and verifies the signed token pairs backing identity
// sessions. An access and refresh token are issued together and share a
// single token id derived from the signing secret, so revoking one revokes
// the pair.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "lifeasagame.dev/internal/platform/errors"
)

// Token types carried in the token_type claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Lifetimes for issued tokens. The access lifetime is also reported to
// clients as expires_in.
const (
	AccessTTL  = 5 * time.Minute
	RefreshTTL = 7 * 24 * time.Hour
)

// Claims captures the validated claims of a session token.
type Claims struct {
	UserID    string
	ExpiresAt time.Time
	IssuedAt  time.Time
	TokenID   string
	TokenType string
}

// sessionClaims is the internal claims type used for JWT parsing.
type sessionClaims struct {
	jwt.RegisteredClaims
	TokenType string `json:"token_type"`
}

// Pair is an issued access/refresh token pair sharing one token id.
type Pair struct {
	AccessToken      string
	RefreshToken     string
	TokenID          string
	IssuedAt         time.Time
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// ExpiresIn reports the access token lifetime in whole seconds.
func (p Pair) ExpiresIn() int {
	return int(p.AccessExpiresAt.Sub(p.IssuedAt) / time.Second)
}

// Config defines how session tokens are signed and verified.
type Config struct {
	// PrimarySecret signs new tokens and is accepted during verification.
	PrimarySecret string
	// SecondarySecret, when set, is also accepted during verification so
	// tokens signed before a secret rotation stay valid until they expire.
	SecondarySecret string
	// AccessTTL and RefreshTTL override the package default lifetimes when
	// positive.
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        func() time.Time
}

// Codec signs and verifies session tokens with the configured secrets.
type Codec struct {
	primary    []byte
	secondary  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewCodec builds a Codec from the given config.
func NewCodec(cfg Config) (*Codec, error) {
	primary := strings.TrimSpace(cfg.PrimarySecret)
	if primary == "" {
		return nil, errors.New("token: primary secret is required")
	}
	c := &Codec{
		primary:    []byte(primary),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        cfg.Now,
	}
	if secondary := strings.TrimSpace(cfg.SecondarySecret); secondary != "" {
		c.secondary = []byte(secondary)
	}
	if c.accessTTL <= 0 {
		c.accessTTL = AccessTTL
	}
	if c.refreshTTL <= 0 {
		c.refreshTTL = RefreshTTL
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// IssuePair mints an access/refresh token pair for the user. Both tokens
// carry the same issue time, truncated to whole seconds, and the same
// token id.
func (c *Codec) IssuePair(userID string) (Pair, error) {
	issuedAt := c.now().UTC().Truncate(time.Second)
	tokenID := c.signature(c.primary, userID, issuedAt)

	accessExpiry := issuedAt.Add(c.accessTTL)
	refreshExpiry := issuedAt.Add(c.refreshTTL)

	access, err := c.encode(userID, tokenID, issuedAt, accessExpiry, TypeAccess)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := c.encode(userID, tokenID, issuedAt, refreshExpiry, TypeRefresh)
	if err != nil {
		return Pair{}, err
	}

	return Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenID:          tokenID,
		IssuedAt:         issuedAt,
		AccessExpiresAt:  accessExpiry,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

// Decode verifies a token's signature and expiry and returns its claims.
func (c *Codec) Decode(raw string) (Claims, error) {
	claims, err := c.parse(raw)
	if err != nil {
		return Claims{}, err
	}
	if !claims.ExpiresAt.After(c.now().UTC()) {
		return Claims{}, apperrors.InvalidToken()
	}
	return claims, nil
}

// DecodeExpired verifies a token's signature and returns its claims without
// checking expiry. Revocation accepts expired tokens so a stale session can
// still be logged out.
func (c *Codec) DecodeExpired(raw string) (Claims, error) {
	return c.parse(raw)
}

// VerifyTokenID reports whether the token id matches the claims it was
// derived from under any accepted secret.
func (c *Codec) VerifyTokenID(claims Claims) bool {
	expected := c.signature(c.primary, claims.UserID, claims.IssuedAt)
	if hmac.Equal([]byte(expected), []byte(claims.TokenID)) {
		return true
	}
	if c.secondary == nil {
		return false
	}
	expected = c.signature(c.secondary, claims.UserID, claims.IssuedAt)
	return hmac.Equal([]byte(expected), []byte(claims.TokenID))
}

func (c *Codec) encode(userID, tokenID string, issuedAt, expiresAt time.Time, tokenType string) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ID:        tokenID,
		},
		TokenType: tokenType,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.primary)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, "sign session token", err)
	}
	return signed, nil
}

func (c *Codec) parse(raw string) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, apperrors.InvalidToken()
	}

	var parsed sessionClaims
	_, err := jwt.ParseWithClaims(raw, &parsed, func(token *jwt.Token) (any, error) {
		keys := jwt.VerificationKeySet{Keys: []jwt.VerificationKey{c.primary}}
		if c.secondary != nil {
			keys.Keys = append(keys.Keys, c.secondary)
		}
		return keys, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, apperrors.InvalidToken()
	}

	if parsed.Subject == "" || parsed.ID == "" || parsed.ExpiresAt == nil || parsed.IssuedAt == nil {
		return Claims{}, apperrors.InvalidToken()
	}
	switch parsed.TokenType {
	case TypeAccess, TypeRefresh:
	default:
		return Claims{}, apperrors.InvalidToken()
	}

	return Claims{
		UserID:    parsed.Subject,
		ExpiresAt: parsed.ExpiresAt.Time.UTC(),
		IssuedAt:  parsed.IssuedAt.Time.UTC(),
		TokenID:   parsed.ID,
		TokenType: parsed.TokenType,
	}, nil
}

// signature derives the token id from the user and issue time under the
// given secret.
func (c *Codec) signature(secret []byte, userID string, issuedAt time.Time) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(userID + "-" + issuedAt.UTC().Format(time.RFC3339)))
	return hex.EncodeToString(mac.Sum(nil))
}
