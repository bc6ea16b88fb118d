// Package cookie manages the encrypted browser session cookie and
// transient flash notices.
package cookie

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pawmart/pawfront/internal/crypto"
	"github.com/pawmart/pawfront/internal/envutil"
)

const (
	sessionCookieName = "pawfront_session"
	flashCookieName   = "pawfront_flash"
)

// Manager reads and writes the browser session cookie.
// The cookie value is the encrypted session ID; the session's contents
// live server-side in storage.
type Manager struct {
	encryptor *crypto.Encryptor
	maxAge    time.Duration
}

// NewManager creates a cookie manager
func NewManager(encryptor *crypto.Encryptor, maxAge time.Duration) *Manager {
	return &Manager{encryptor: encryptor, maxAge: maxAge}
}

// SetSession writes the encrypted session cookie
func (m *Manager) SetSession(w http.ResponseWriter, sessionID string) error {
	value, err := m.encryptor.Encrypt(sessionID)
	if err != nil {
		return fmt.Errorf("encrypting session cookie: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(m.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   !envutil.IsDev(),
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// GetSession reads and decrypts the session cookie.
// Returns an empty string when the cookie is absent or undecryptable.
func (m *Manager) GetSession(r *http.Request) string {
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}

	sessionID, err := m.encryptor.Decrypt(c.Value)
	if err != nil {
		return ""
	}
	return sessionID
}

// ClearSession expires the session cookie
func (m *Manager) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   !envutil.IsDev(),
		SameSite: http.SameSiteLaxMode,
	})
}

// Flash is a one-shot notice rendered on the next page load
type Flash struct {
	Message string
	Kind    string // "success" or "error"
}

// SetFlash stores a flash notice for the next request
func SetFlash(w http.ResponseWriter, flash Flash) {
	value := base64.RawURLEncoding.EncodeToString([]byte(flash.Kind + "|" + flash.Message))
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		Secure:   !envutil.IsDev(),
		SameSite: http.SameSiteLaxMode,
	})
}

// PopFlash reads and clears the flash notice, if any
func PopFlash(w http.ResponseWriter, r *http.Request) *Flash {
	c, err := r.Cookie(flashCookieName)
	if err != nil {
		return nil
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   !envutil.IsDev(),
		SameSite: http.SameSiteLaxMode,
	})

	decoded, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}

	kind, message, ok := strings.Cut(string(decoded), "|")
	if !ok {
		return nil
	}
	return &Flash{Kind: kind, Message: message}
}
