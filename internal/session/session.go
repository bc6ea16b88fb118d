// Package session tracks the authentication state of each browser session.
//
// Every browser session owns an Observer holding a point-in-time Snapshot of
// who the caller is. Sessions restored from persisted credentials start
// Pending and settle to Authenticated or Anonymous once the identity backend
// answers; consumers must treat Pending as "unknown yet", not as signed-out.
package session

import "context"

// Status is the authentication state of a browser session
type Status string

const (
	// StatusPending means restoration is still in flight; identity is unknown
	StatusPending Status = "pending"
	// StatusAnonymous means the session is definitively signed out
	StatusAnonymous Status = "anonymous"
	// StatusAuthenticated means a verified principal is attached
	StatusAuthenticated Status = "authenticated"
)

// CredentialSource mints short-lived bearer credentials for a principal.
// Minting may call the identity backend and therefore block.
type CredentialSource interface {
	Credential(ctx context.Context, forceRefresh bool) (string, error)
}

// Principal is a signed-in user as seen by the storefront
type Principal struct {
	ID          string
	Email       string
	DisplayName string
	AvatarURL   string

	source CredentialSource
}

// NewPrincipal creates a principal backed by the given credential source
func NewPrincipal(id, email, displayName, avatarURL string, source CredentialSource) *Principal {
	return &Principal{
		ID:          id,
		Email:       email,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		source:      source,
	}
}

// Credential mints a bearer credential for this principal.
// The context bounds the underlying identity backend call.
func (p *Principal) Credential(ctx context.Context, forceRefresh bool) (string, error) {
	return p.source.Credential(ctx, forceRefresh)
}

// Snapshot is a point-in-time view of a session's authentication state.
// Principal is non-nil exactly when Status is StatusAuthenticated.
type Snapshot struct {
	Status    Status
	Principal *Principal
}

// Anonymous is the snapshot for requests with no session at all
var Anonymous = Snapshot{Status: StatusAnonymous}
