package server

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pawmart/pawfront/internal/crypto"
	"github.com/pawmart/pawfront/internal/log"
	"github.com/pawmart/pawfront/internal/session"
)

const returnTargetTTL = 10 * time.Minute

// returnTarget is the signed payload carrying where to send the user after
// sign-in. The nonce makes each target single-use.
type returnTarget struct {
	Nonce     string `json:"nonce"`
	ReturnURL string `json:"returnUrl"`
}

// Guard decides, per request, whether a protected route may render.
//
// It never authenticates anything itself; it only navigates. A Pending
// session gets a blocking placeholder, never a redirect: redirecting before
// restoration settles would bounce users who are about to be authenticated.
type Guard struct {
	signer        *crypto.TokenSigner
	renderPending func(http.ResponseWriter, *http.Request)

	mu       sync.Mutex
	consumed map[string]time.Time
}

// NewGuard creates a route guard. renderPending draws the "checking
// authentication" placeholder; pass nil for the built-in page.
func NewGuard(signer *crypto.TokenSigner, renderPending func(http.ResponseWriter, *http.Request)) *Guard {
	if renderPending == nil {
		renderPending = func(w http.ResponseWriter, _ *http.Request) {
			renderTemplate(w, pendingTemplate, nil)
		}
	}
	return &Guard{
		signer:        signer,
		renderPending: renderPending,
		consumed:      make(map[string]time.Time),
	}
}

// RequireAuth protects a route. The decision is re-evaluated on every
// request from a fresh snapshot.
func (g *Guard) RequireAuth() MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch snapshot := SnapshotFrom(r); snapshot.Status {
			case session.StatusAuthenticated:
				next.ServeHTTP(w, r)

			case session.StatusPending:
				g.renderPending(w, r)

			default:
				g.redirectToSignIn(w, r)
			}
		})
	}
}

// redirectToSignIn captures the full requested location and sends the user
// to the sign-in page. 303 prevents method replay, and the sign-in page
// replaces itself in history so Back does not loop.
func (g *Guard) redirectToSignIn(w http.ResponseWriter, r *http.Request) {
	token, err := g.signReturnTarget(requestedLocation(r))
	if err != nil {
		log.LogErrorWithFields("guard", "Failed to sign return target", map[string]any{
			"error": err.Error(),
		})
		http.Redirect(w, r, "/signin", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/signin?return="+token, http.StatusSeeOther)
}

// requestedLocation rebuilds the location the user asked for, keeping
// query and fragment so nothing is lost across the sign-in round trip
func requestedLocation(r *http.Request) string {
	location := r.URL.Path
	if r.URL.RawQuery != "" {
		location += "?" + r.URL.RawQuery
	}
	if r.URL.Fragment != "" {
		location += "#" + r.URL.Fragment
	}
	return location
}

func (g *Guard) signReturnTarget(returnURL string) (string, error) {
	nonce, err := crypto.GenerateSecureToken()
	if err != nil {
		return "", err
	}
	return g.signer.Sign(returnTarget{Nonce: nonce, ReturnURL: returnURL}, returnTargetTTL)
}

// ConsumeReturnTarget validates a return token and marks it used.
// Invalid, expired, replayed, or non-local targets all fall back to "/".
func (g *Guard) ConsumeReturnTarget(token string) string {
	if token == "" {
		return "/"
	}

	var target returnTarget
	if err := g.signer.Validate(token, &target); err != nil {
		log.LogDebugWithFields("guard", "Rejected return target", map[string]any{
			"error": err.Error(),
		})
		return "/"
	}

	g.mu.Lock()
	g.prune()
	if _, used := g.consumed[target.Nonce]; used {
		g.mu.Unlock()
		return "/"
	}
	g.consumed[target.Nonce] = time.Now()
	g.mu.Unlock()

	if !isLocalPath(target.ReturnURL) {
		return "/"
	}
	return target.ReturnURL
}

// prune drops consumed nonces older than the token TTL; callers hold g.mu
func (g *Guard) prune() {
	cutoff := time.Now().Add(-returnTargetTTL)
	for nonce, at := range g.consumed {
		if at.Before(cutoff) {
			delete(g.consumed, nonce)
		}
	}
}

// isLocalPath accepts only same-origin absolute paths, rejecting
// protocol-relative and absolute URLs that would make the sign-in flow an
// open redirect
func isLocalPath(path string) bool {
	if !strings.HasPrefix(path, "/") {
		return false
	}
	if strings.HasPrefix(path, "//") || strings.HasPrefix(path, "/\\") {
		return false
	}
	return true
}
