// Package auth is the capability check in front of the auction: an HS256
// bearer token yields a role and an identity.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ReaperOAK/player-auction/internal/clock"
)

// Role is the audience a caller belongs to.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleTeam      Role = "team"
	RoleSpectator Role = "spectator"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeam, RoleSpectator:
		return true
	}
	return false
}

// Principal is an authenticated caller. For RoleTeam, ID is the team id.
type Principal struct {
	Role Role   `json:"role"`
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Anonymous is the principal of a request without a token.
var Anonymous = Principal{Role: RoleSpectator}

// Errors returned by token verification.
var (
	ErrNoToken      = errors.New("no bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrForbidden    = errors.New("role not allowed")
)

// Claims is the JWT payload. The subject carries Principal.ID.
type Claims struct {
	Role Role   `json:"role"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies bearer tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

// NewIssuer returns an Issuer using secret for HS256 signatures.
func NewIssuer(secret string, ttl time.Duration, clk clock.Clock) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, clock: clk}
}

// Issue signs a token for p.
func (i *Issuer) Issue(p Principal) (string, error) {
	if !p.Role.Valid() {
		return "", fmt.Errorf("unknown role %q", p.Role)
	}
	if p.Role == RoleTeam && p.ID == "" {
		return "", errors.New("team tokens need a team id")
	}
	now := i.clock.Now()
	claims := Claims{
		Role: p.Role,
		Name: p.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Verify parses token and returns its principal.
func (i *Issuer) Verify(token string) (Principal, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !claims.Role.Valid() {
		return Principal{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	if claims.Role == RoleTeam && claims.Subject == "" {
		return Principal{}, fmt.Errorf("%w: team token without subject", ErrInvalidToken)
	}
	return Principal{Role: claims.Role, ID: claims.Subject, Name: claims.Name}, nil
}

// Authenticate resolves the caller of r. A request without a token is
// Anonymous; a request with a bad token fails.
func (i *Issuer) Authenticate(r *http.Request) (Principal, error) {
	token := TokenFromRequest(r)
	if token == "" {
		return Anonymous, nil
	}
	return i.Verify(token)
}

// TokenFromRequest reads a bearer token from the Authorization header or,
// for browser websocket clients, the token query parameter.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// ParsePrincipal parses "role:id:name", the form used to mint tokens from
// the command line. id and name may be empty.
func ParsePrincipal(s string) (Principal, error) {
	parts := strings.SplitN(s, ":", 3)
	p := Principal{Role: Role(parts[0])}
	if len(parts) > 1 {
		p.ID = parts[1]
	}
	if len(parts) > 2 {
		p.Name = parts[2]
	}
	if !p.Role.Valid() {
		return Principal{}, fmt.Errorf("unknown role %q", parts[0])
	}
	return p, nil
}

type ctxKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the principal stored by the middleware, or Anonymous.
func FromContext(ctx context.Context) Principal {
	if p, ok := ctx.Value(ctxKey{}).(Principal); ok {
		return p
	}
	return Anonymous
}

// Allowed reports whether p holds one of roles.
func (p Principal) Allowed(roles ...Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}
