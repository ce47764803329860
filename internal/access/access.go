package access

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Resolution errors.
var (
	// ErrNoCredentials indicates the request carried no token.
	ErrNoCredentials = errors.New("no credentials")
	// ErrInvalidCredential indicates the token is malformed or names no usable principal.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrNotHandled tells a ChainResolver to try the next resolver.
	ErrNotHandled = errors.New("token not handled")
)

// Permissions is the per-request view of what a token may do.
type Permissions struct {
	principal string
	admin     bool
}

// NewPermissions builds a permission set for a resolved principal.
func NewPermissions(principal string, admin bool) Permissions {
	return Permissions{principal: principal, admin: admin}
}

// IsAdmin reports whether the principal holds the administrative capability.
func (p Permissions) IsAdmin() bool { return p.admin }

// Principal identifies who the token belongs to, for logging.
func (p Permissions) Principal() string { return p.principal }

// Resolver maps a raw token to permissions.
type Resolver interface {
	Resolve(ctx context.Context, token string) (Permissions, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, token string) (Permissions, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, token string) (Permissions, error) {
	return f(ctx, token)
}

// ChainResolver asks each resolver in turn until one handles the token.
type ChainResolver []Resolver

// Resolve returns the first result that is not ErrNotHandled.
func (c ChainResolver) Resolve(ctx context.Context, token string) (Permissions, error) {
	if strings.TrimSpace(token) == "" {
		return Permissions{}, ErrNoCredentials
	}
	for _, resolver := range c {
		if resolver == nil {
			continue
		}
		perms, err := resolver.Resolve(ctx, token)
		if errors.Is(err, ErrNotHandled) {
			continue
		}
		return perms, err
	}
	return Permissions{}, ErrInvalidCredential
}

// TokenSource describes where a request token is carried.
type TokenSource struct {
	Header       string
	Scheme       string
	AllowXAPIKey bool
}

// ExtractToken pulls the raw token from a request, returning "" when absent.
func (s TokenSource) ExtractToken(r *http.Request) string {
	if r == nil {
		return ""
	}
	header := strings.TrimSpace(s.Header)
	scheme := strings.TrimSpace(s.Scheme)
	if header == "" {
		header = "Authorization"
	}
	val := strings.TrimSpace(r.Header.Get(header))
	if val != "" {
		if scheme == "" {
			return val
		}
		if len(val) > len(scheme) && strings.EqualFold(val[:len(scheme)], scheme) && val[len(scheme)] == ' ' {
			return strings.TrimSpace(val[len(scheme)+1:])
		}
	}
	if s.AllowXAPIKey {
		if v := strings.TrimSpace(r.Header.Get("X-API-Key")); v != "" {
			return v
		}
	}
	return ""
}
