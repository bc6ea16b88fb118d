package server

import (
	"errors"
	"net/http"

	"github.com/pawmart/pawfront/internal/cookie"
	"github.com/pawmart/pawfront/internal/crypto"
	"github.com/pawmart/pawfront/internal/identity"
	"github.com/pawmart/pawfront/internal/log"
	"github.com/pawmart/pawfront/internal/session"
)

// AuthHandlers serves sign-in, registration, Google SSO, and sign-out.
//
// The sign-in and registration forms carry no CSRF token: they prove
// themselves with credentials. CSRF protection starts once a session exists.
type AuthHandlers struct {
	guard    *Guard
	cookies  *cookie.Manager
	manager  *session.Manager
	firebase *identity.FirebaseProvider
	google   *identity.GoogleProvider // nil when SSO is not configured
	signer   *crypto.TokenSigner
}

// NewAuthHandlers creates the auth handler set
func NewAuthHandlers(guard *Guard, cookies *cookie.Manager, manager *session.Manager, firebase *identity.FirebaseProvider, google *identity.GoogleProvider, signer *crypto.TokenSigner) *AuthHandlers {
	return &AuthHandlers{
		guard:    guard,
		cookies:  cookies,
		manager:  manager,
		firebase: firebase,
		google:   google,
		signer:   signer,
	}
}

// oauthState rides through the Google consent redirect
type oauthState struct {
	Nonce       string `json:"nonce"`
	ReturnToken string `json:"returnToken"`
}

// SignInPage renders the sign-in form
func (h *AuthHandlers) SignInPage(w http.ResponseWriter, r *http.Request) {
	if SnapshotFrom(r).Status == session.StatusAuthenticated {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	returnToken := r.URL.Query().Get("return")
	renderTemplate(w, signinTemplate, SignInPageData{
		PageHeader:  PageHeader{Flash: cookie.PopFlash(w, r)},
		ReturnToken: returnToken,
		GoogleURL:   h.googleStartURL(returnToken),
	})
}

// SignIn handles the email/password form post
func (h *AuthHandlers) SignIn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")
	returnToken := r.PostFormValue("return")

	result, err := h.firebase.SignIn(r.Context(), email, password)
	if err != nil {
		h.renderSignInError(w, r, email, returnToken, err)
		return
	}

	h.establishSession(w, r, result, identity.FirebaseProviderPrefix, returnToken)
}

// RegisterPage renders the registration form
func (h *AuthHandlers) RegisterPage(w http.ResponseWriter, r *http.Request) {
	if SnapshotFrom(r).Status == session.StatusAuthenticated {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	renderTemplate(w, registerTemplate, RegisterPageData{
		PageHeader: PageHeader{Flash: cookie.PopFlash(w, r)},
	})
}

// Register handles the registration form post
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")
	name := r.PostFormValue("name")
	avatar := r.PostFormValue("avatar")

	result, err := h.firebase.SignUp(r.Context(), email, password, name, avatar)
	if err != nil {
		message := "Registration failed. Please try again."
		var authErr *identity.AuthError
		if errors.As(err, &authErr) {
			message = authErr.Message
		}
		renderTemplate(w, registerTemplate, RegisterPageData{
			Email:        email,
			DisplayName:  name,
			AvatarURL:    avatar,
			ErrorMessage: message,
		})
		return
	}

	h.establishSession(w, r, result, identity.FirebaseProviderPrefix, "")
}

// ForgotPasswordPage renders the reset-request form
func (h *AuthHandlers) ForgotPasswordPage(w http.ResponseWriter, r *http.Request) {
	renderTemplate(w, forgotPasswordTemplate, ForgotPasswordPageData{
		Email: r.URL.Query().Get("email"),
	})
}

// ForgotPassword asks the identity backend to email a reset link
func (h *AuthHandlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	email := r.PostFormValue("email")

	if err := h.firebase.SendPasswordReset(r.Context(), email); err != nil {
		message := "Could not send the reset email. Please try again."
		var authErr *identity.AuthError
		if errors.As(err, &authErr) {
			message = authErr.Message
			if authErr.Code == "EMAIL_NOT_FOUND" {
				message = "No account exists with this email."
			}
		} else {
			log.LogErrorWithFields("auth", "Password reset request failed", map[string]any{
				"error": err.Error(),
			})
		}
		renderTemplate(w, forgotPasswordTemplate, ForgotPasswordPageData{
			Email:        email,
			ErrorMessage: message,
		})
		return
	}

	cookie.SetFlash(w, cookie.Flash{Kind: "success", Message: "Password reset email sent. Check your inbox."})
	http.Redirect(w, r, "/signin", http.StatusSeeOther)
}

// GoogleStart redirects to the Google consent page with signed state
func (h *AuthHandlers) GoogleStart(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		http.NotFound(w, r)
		return
	}

	nonce, err := crypto.GenerateSecureToken()
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	state, err := h.signer.Sign(oauthState{
		Nonce:       nonce,
		ReturnToken: r.URL.Query().Get("return"),
	}, returnTargetTTL)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, h.google.AuthCodeURL(state), http.StatusSeeOther)
}

// GoogleCallback redeems the authorization code
func (h *AuthHandlers) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		http.NotFound(w, r)
		return
	}

	var state oauthState
	if err := h.signer.Validate(r.URL.Query().Get("state"), &state); err != nil {
		log.LogWarnWithFields("auth", "Rejected OAuth callback state", map[string]any{
			"error": err.Error(),
		})
		cookie.SetFlash(w, cookie.Flash{Kind: "error", Message: "Google sign-in failed. Please try again."})
		http.Redirect(w, r, "/signin", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		// User denied consent
		http.Redirect(w, r, "/signin", http.StatusSeeOther)
		return
	}

	result, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.renderSignInError(w, r, "", state.ReturnToken, err)
		return
	}

	h.establishSession(w, r, result, identity.GoogleProviderPrefix, state.ReturnToken)
}

// SignOut tears down the session
func (h *AuthHandlers) SignOut(w http.ResponseWriter, r *http.Request) {
	if sessionID := SessionID(r); sessionID != "" {
		h.manager.SignOut(r.Context(), sessionID)
	}
	h.cookies.ClearSession(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandlers) establishSession(w http.ResponseWriter, r *http.Request, result *identity.SignInResult, providerPrefix, returnToken string) {
	sessionID, err := h.manager.SignIn(r.Context(), result.Principal, identity.Tag(providerPrefix, result.RefreshCredential))
	if err != nil {
		log.LogErrorWithFields("auth", "Failed to create session", map[string]any{
			"error": err.Error(),
		})
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if err := h.cookies.SetSession(w, sessionID); err != nil {
		log.LogErrorWithFields("auth", "Failed to set session cookie", map[string]any{
			"error": err.Error(),
		})
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, h.guard.ConsumeReturnTarget(returnToken), http.StatusSeeOther)
}

func (h *AuthHandlers) renderSignInError(w http.ResponseWriter, r *http.Request, email, returnToken string, err error) {
	message := "Authentication failed. Please try again."
	var authErr *identity.AuthError
	if errors.As(err, &authErr) {
		message = authErr.Message
	} else {
		log.LogErrorWithFields("auth", "Sign-in failed", map[string]any{
			"error": err.Error(),
		})
	}

	renderTemplate(w, signinTemplate, SignInPageData{
		ReturnToken:  returnToken,
		GoogleURL:    h.googleStartURL(returnToken),
		Email:        email,
		ErrorMessage: message,
	})
}

func (h *AuthHandlers) googleStartURL(returnToken string) string {
	if h.google == nil {
		return ""
	}
	if returnToken == "" {
		return "/auth/google"
	}
	return "/auth/google?return=" + returnToken
}
