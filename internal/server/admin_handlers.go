package server

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/pawmart/pawfront/internal/config"
	"github.com/pawmart/pawfront/internal/crypto"
	"github.com/pawmart/pawfront/internal/log"
	"github.com/pawmart/pawfront/internal/session"
	"github.com/pawmart/pawfront/internal/storage"
)

// AdminHandlers serves the operations dashboard: user management and
// session revocation, guarded by basic auth.
type AdminHandlers struct {
	cfg     *config.AdminConfig
	store   storage.Storage
	manager *session.Manager
	csrf    *crypto.CSRFProtection
}

// NewAdminHandlers creates the admin handler set
func NewAdminHandlers(cfg *config.AdminConfig, store storage.Storage, manager *session.Manager, csrf *crypto.CSRFProtection) *AdminHandlers {
	return &AdminHandlers{cfg: cfg, store: store, manager: manager, csrf: csrf}
}

// BasicAuth guards admin routes with the configured bcrypt credentials
func (h *AdminHandlers) BasicAuth() MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok ||
				subtle.ConstantTimeCompare([]byte(username), []byte(h.cfg.Username)) != 1 ||
				bcrypt.CompareHashAndPassword([]byte(h.cfg.HashedPassword), []byte(password)) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="pawfront admin"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// The admin dashboard has no browser session; its CSRF tokens bind to the
// basic auth identity instead
func (h *AdminHandlers) csrfScope() string {
	return "admin:" + h.cfg.Username
}

// Dashboard renders users and active sessions
func (h *AdminHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.renderDashboard(w, r, "", "")
}

func (h *AdminHandlers) renderDashboard(w http.ResponseWriter, r *http.Request, message, messageType string) {
	data := AdminPageData{Message: message, MessageType: messageType}

	token, err := h.csrf.GenerateToken(h.csrfScope())
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	data.CSRFToken = token

	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		log.LogErrorWithFields("admin", "Failed to list users", map[string]any{
			"error": err.Error(),
		})
		data.Message = "Failed to load users."
		data.MessageType = "error"
	}
	for _, user := range users {
		data.Users = append(data.Users, AdminUserRow{
			ID:          user.ID,
			Email:       user.Email,
			DisplayName: user.DisplayName,
			Enabled:     user.Enabled,
			FirstSeen:   user.FirstSeen.Format(time.DateTime),
			LastSeen:    user.LastSeen.Format(time.DateTime),
		})
	}

	for _, sess := range h.manager.ActiveSessions() {
		snapshot := sess.Observer.Snapshot()
		row := AdminSessionRow{
			ID:     abbreviate(sess.ID),
			Status: string(snapshot.Status),
		}
		if snapshot.Principal != nil {
			row.Email = snapshot.Principal.Email
		}
		data.Sessions = append(data.Sessions, row)
	}

	renderTemplate(w, adminTemplate, data)
}

// ToggleUser flips a user's enabled flag. Disabling also revokes every
// live session so the lockout is immediate.
func (h *AdminHandlers) ToggleUser(w http.ResponseWriter, r *http.Request) {
	if !h.validCSRF(w, r) {
		return
	}

	userID := r.PathValue("id")
	user, err := h.store.GetUser(r.Context(), userID)
	if err != nil {
		h.renderDashboard(w, r, "User not found.", "error")
		return
	}

	if err := h.store.SetUserEnabled(r.Context(), userID, !user.Enabled); err != nil {
		h.renderDashboard(w, r, "Failed to update user.", "error")
		return
	}

	if user.Enabled {
		revoked := h.manager.RevokeUser(r.Context(), userID)
		h.renderDashboard(w, r, user.Email+" disabled; "+plural(revoked, "session")+" revoked.", "success")
		return
	}
	h.renderDashboard(w, r, user.Email+" enabled.", "success")
}

// RevokeUser signs a user out everywhere without disabling the account
func (h *AdminHandlers) RevokeUser(w http.ResponseWriter, r *http.Request) {
	if !h.validCSRF(w, r) {
		return
	}

	revoked := h.manager.RevokeUser(r.Context(), r.PathValue("id"))
	h.renderDashboard(w, r, plural(revoked, "session")+" revoked.", "success")
}

func (h *AdminHandlers) validCSRF(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return false
	}
	if err := h.csrf.ValidateToken(h.csrfScope(), r.PostFormValue("csrf_token")); err != nil {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return false
	}
	return true
}

func abbreviate(id string) string {
	if len(id) > 12 {
		return id[:12] + "…"
	}
	return id
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
