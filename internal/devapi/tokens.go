package devapi

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yndnr/unitrack-go/internal/core/domain"
	"github.com/yndnr/unitrack-go/pkg/cmap"
	"github.com/yndnr/unitrack-go/pkg/token"
)

// Issuer is the iss claim of access tokens.
const Issuer = "unitrack-devapi"

// AccessClaims are the claims of an access token.
type AccessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type grant struct {
	userID    string
	expiresAt time.Time
}

// Tokens issues HS256 access tokens and opaque refresh tokens. Refresh
// tokens are kept only as hashes.
type Tokens struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	grants     *cmap.Map[string, grant]
}

// NewTokens creates an issuer. now may be nil.
func NewTokens(secret []byte, accessTTL, refreshTTL time.Duration, now func() time.Time) (*Tokens, error) {
	if len(secret) == 0 {
		return nil, domain.ErrConfig.WithDetails("signing secret is empty")
	}
	if now == nil {
		now = time.Now
	}
	return &Tokens{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        now,
		grants:     cmap.New[string, grant](),
	}, nil
}

// IssueAccess signs an access token for acct.
func (t *Tokens) IssueAccess(acct Account) (string, error) {
	now := t.now()
	claims := &AccessClaims{
		Role: wireRole(acct.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acct.ID,
			Issuer:    Issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.accessTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", domain.ErrInternal.WithCause(fmt.Errorf("sign access token: %w", err))
	}
	return signed, nil
}

// ParseAccess verifies an access token and returns its claims.
func (t *Tokens) ParseAccess(raw string) (*AccessClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	claims := &AccessClaims{}
	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrNotAuthenticated.WithDetails("access token expired")
		}
		return nil, domain.ErrNotAuthenticated.WithDetails("invalid access token").WithCause(err)
	}
	if claims.Subject == "" {
		return nil, domain.ErrNotAuthenticated.WithDetails("access token has no subject")
	}
	return claims, nil
}

// IssueRefresh creates a refresh token for userID.
func (t *Tokens) IssueRefresh(userID string) (string, error) {
	raw, err := token.Generate()
	if err != nil {
		return "", domain.ErrInternal.WithCause(err)
	}
	t.grants.Set(token.Hash(raw), grant{userID: userID, expiresAt: t.now().Add(t.refreshTTL)})
	return raw, nil
}

// Exchange returns the user a refresh token was issued to. Refresh tokens
// are not rotated: a valid token stays valid until it expires or is
// revoked.
func (t *Tokens) Exchange(raw string) (string, error) {
	if !token.Valid(raw) {
		return "", domain.ErrNotAuthenticated.WithDetails("invalid refresh token")
	}
	key := token.Hash(raw)
	g, ok := t.grants.Get(key)
	if !ok {
		return "", domain.ErrNotAuthenticated.WithDetails("unknown refresh token")
	}
	if !t.now().Before(g.expiresAt) {
		t.grants.Delete(key)
		return "", domain.ErrNotAuthenticated.WithDetails("refresh token expired")
	}
	return g.userID, nil
}

// Revoke drops one refresh token and reports whether it existed.
func (t *Tokens) Revoke(raw string) bool {
	_, ok := t.grants.Pop(token.Hash(raw))
	return ok
}

// RevokeUser drops every refresh token of userID.
func (t *Tokens) RevokeUser(userID string) int {
	return t.grants.DeleteFunc(func(_ string, g grant) bool {
		return g.userID == userID
	})
}

// PurgeExpired drops expired refresh tokens.
func (t *Tokens) PurgeExpired() int {
	now := t.now()
	return t.grants.DeleteFunc(func(_ string, g grant) bool {
		return !now.Before(g.expiresAt)
	})
}

// ActiveGrants returns the number of stored refresh tokens.
func (t *Tokens) ActiveGrants() int {
	return t.grants.Count()
}
