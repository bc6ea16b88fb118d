// Package identity talks to the external identity backends.
//
// The storefront never verifies passwords or mints tokens itself. Each
// provider wraps one backend and returns a normalized session.Principal,
// whatever shape the backend's own user record has.
package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/pawmart/pawfront/internal/session"
)

// AuthError is a sign-in, sign-up, or refresh failure with a message safe
// to show to the user. Authentication failures are transient notifications,
// never fatal.
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth failed (%s): %s", e.Code, e.Message)
}

// Registry dispatches session restoration to the provider that issued the
// refresh credential. Credentials are persisted as "<provider>:<credential>".
type Registry struct {
	restorers map[string]session.Restorer
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{restorers: make(map[string]session.Restorer)}
}

// Register adds a provider's restorer under its prefix
func (r *Registry) Register(prefix string, restorer session.Restorer) {
	r.restorers[prefix] = restorer
}

// Tag prefixes a refresh credential with its provider for persistence
func Tag(prefix, credential string) string {
	return prefix + ":" + credential
}

// Restore implements session.Restorer by dispatching on the credential tag
func (r *Registry) Restore(ctx context.Context, tagged string) (*session.Principal, string, error) {
	prefix, credential, ok := strings.Cut(tagged, ":")
	if !ok {
		return nil, "", fmt.Errorf("untagged refresh credential")
	}

	restorer, found := r.restorers[prefix]
	if !found {
		return nil, "", fmt.Errorf("unknown identity provider: %s", prefix)
	}

	principal, rotated, err := restorer.Restore(ctx, credential)
	if err != nil {
		return nil, "", err
	}
	return principal, Tag(prefix, rotated), nil
}
