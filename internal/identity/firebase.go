package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pawmart/pawfront/internal/log"
	"github.com/pawmart/pawfront/internal/session"
)

// FirebaseProviderPrefix tags refresh credentials issued by this provider
const FirebaseProviderPrefix = "firebase"

const (
	defaultIdentityBaseURL    = "https://identitytoolkit.googleapis.com/v1"
	defaultSecureTokenBaseURL = "https://securetoken.googleapis.com/v1"

	// Refresh slightly before the backend's stated expiry
	expiryMargin = time.Minute
)

// FirebaseProvider authenticates email/password users against the Google
// Identity Toolkit REST API.
type FirebaseProvider struct {
	apiKey             string
	identityBaseURL    string
	secureTokenBaseURL string
	client             *http.Client
}

// FirebaseOption customizes the provider
type FirebaseOption func(*FirebaseProvider)

// WithEndpoints overrides the backend URLs, for tests
func WithEndpoints(identityBaseURL, secureTokenBaseURL string) FirebaseOption {
	return func(p *FirebaseProvider) {
		p.identityBaseURL = identityBaseURL
		p.secureTokenBaseURL = secureTokenBaseURL
	}
}

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(client *http.Client) FirebaseOption {
	return func(p *FirebaseProvider) {
		p.client = client
	}
}

// NewFirebaseProvider creates a provider with the given Identity Toolkit API key
func NewFirebaseProvider(apiKey string, opts ...FirebaseOption) *FirebaseProvider {
	p := &FirebaseProvider{
		apiKey:             apiKey,
		identityBaseURL:    defaultIdentityBaseURL,
		secureTokenBaseURL: defaultSecureTokenBaseURL,
		client:             http.DefaultClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SignInResult is a successful authentication against the backend
type SignInResult struct {
	Principal         *session.Principal
	RefreshCredential string
}

type authPayload struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	PhotoURL     string `json:"photoUrl"`
}

// SignIn authenticates an email/password pair
func (p *FirebaseProvider) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	var payload authPayload
	err := p.post(ctx, p.identityBaseURL+"/accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &payload)
	if err != nil {
		return nil, err
	}
	return p.buildResult(&payload), nil
}

// SignUp registers a new account and applies the profile in one flow,
// mirroring register-then-update on the backend
func (p *FirebaseProvider) SignUp(ctx context.Context, email, password, displayName, avatarURL string) (*SignInResult, error) {
	var payload authPayload
	err := p.post(ctx, p.identityBaseURL+"/accounts:signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &payload)
	if err != nil {
		return nil, err
	}

	if displayName != "" || avatarURL != "" {
		var updated authPayload
		err := p.post(ctx, p.identityBaseURL+"/accounts:update", map[string]any{
			"idToken":           payload.IDToken,
			"displayName":       displayName,
			"photoUrl":          avatarURL,
			"returnSecureToken": false,
		}, &updated)
		if err != nil {
			// The account exists; a failed profile write should not fail
			// the registration
			log.LogWarnWithFields("identity", "Profile update after sign-up failed", map[string]any{
				"error": err.Error(),
			})
		} else {
			payload.DisplayName = displayName
			payload.PhotoURL = avatarURL
		}
	}

	return p.buildResult(&payload), nil
}

// SendPasswordReset asks the backend to email a password-reset link
func (p *FirebaseProvider) SendPasswordReset(ctx context.Context, email string) error {
	var payload struct {
		Email string `json:"email"`
	}
	return p.post(ctx, p.identityBaseURL+"/accounts:sendOobCode", map[string]any{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	}, &payload)
}

// Restore implements session.Restorer using a persisted refresh token
func (p *FirebaseProvider) Restore(ctx context.Context, refreshToken string) (*session.Principal, string, error) {
	refreshed, err := p.refresh(ctx, refreshToken)
	if err != nil {
		return nil, "", err
	}

	// The refresh response has no profile; look it up with the fresh token
	var lookup struct {
		Users []struct {
			LocalID     string `json:"localId"`
			Email       string `json:"email"`
			DisplayName string `json:"displayName"`
			PhotoURL    string `json:"photoUrl"`
		} `json:"users"`
	}
	err = p.post(ctx, p.identityBaseURL+"/accounts:lookup", map[string]any{
		"idToken": refreshed.idToken,
	}, &lookup)
	if err != nil {
		return nil, "", err
	}
	if len(lookup.Users) == 0 {
		return nil, "", &AuthError{Code: "USER_NOT_FOUND", Message: "Account no longer exists."}
	}
	user := lookup.Users[0]

	source := &firebaseCredentials{
		provider:     p,
		idToken:      refreshed.idToken,
		expiresAt:    refreshed.expiresAt,
		refreshToken: refreshed.refreshToken,
	}
	principal := session.NewPrincipal(user.LocalID, user.Email, user.DisplayName, user.PhotoURL, source)
	return principal, refreshed.refreshToken, nil
}

func (p *FirebaseProvider) buildResult(payload *authPayload) *SignInResult {
	expiresIn, _ := strconv.Atoi(payload.ExpiresIn)
	source := &firebaseCredentials{
		provider:     p,
		idToken:      payload.IDToken,
		expiresAt:    time.Now().Add(time.Duration(expiresIn) * time.Second),
		refreshToken: payload.RefreshToken,
	}
	principal := session.NewPrincipal(payload.LocalID, payload.Email, payload.DisplayName, payload.PhotoURL, source)
	return &SignInResult{Principal: principal, RefreshCredential: payload.RefreshToken}
}

type refreshedToken struct {
	idToken      string
	refreshToken string
	expiresAt    time.Time
}

func (p *FirebaseProvider) refresh(ctx context.Context, refreshToken string) (*refreshedToken, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.secureTokenBaseURL+"/token?key="+url.QueryEscape(p.apiKey),
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling token endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAuthError(raw)
	}

	var payload struct {
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    string `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}

	expiresIn, _ := strconv.Atoi(payload.ExpiresIn)
	return &refreshedToken{
		idToken:      payload.IDToken,
		refreshToken: payload.RefreshToken,
		expiresAt:    time.Now().Add(time.Duration(expiresIn) * time.Second),
	}, nil
}

func (p *FirebaseProvider) post(ctx context.Context, endpoint string, body map[string]any, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		endpoint+"?key="+url.QueryEscape(p.apiKey), bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling identity backend: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading identity response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return decodeAuthError(raw)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding identity response: %w", err)
	}
	return nil
}

// decodeAuthError maps backend error codes to user-presentable messages
func decodeAuthError(raw []byte) error {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Error.Message == "" {
		return &AuthError{Code: "UNKNOWN", Message: "Authentication failed. Please try again."}
	}

	// Codes sometimes carry a suffix, e.g. "WEAK_PASSWORD : ..."
	code, _, _ := strings.Cut(payload.Error.Message, " ")

	message := "Authentication failed. Please try again."
	switch code {
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS":
		message = "Incorrect email or password."
	case "EMAIL_EXISTS":
		message = "An account with this email already exists."
	case "WEAK_PASSWORD":
		message = "Password must be at least 6 characters."
	case "USER_DISABLED":
		message = "This account has been disabled."
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		message = "Too many attempts. Please try again later."
	case "INVALID_REFRESH_TOKEN", "TOKEN_EXPIRED", "USER_NOT_FOUND":
		message = "Your session has expired. Please sign in again."
	}

	return &AuthError{Code: code, Message: message}
}

// firebaseCredentials mints bearer credentials from a cached ID token,
// refreshing through the secure token endpoint when needed. Concurrent
// refreshes are collapsed into one backend call.
type firebaseCredentials struct {
	provider *FirebaseProvider
	group    singleflight.Group

	mu           sync.Mutex
	idToken      string
	expiresAt    time.Time
	refreshToken string
}

func (c *firebaseCredentials) Credential(ctx context.Context, forceRefresh bool) (string, error) {
	c.mu.Lock()
	token := c.idToken
	fresh := token != "" && time.Now().Before(c.expiresAt.Add(-expiryMargin))
	refreshToken := c.refreshToken
	c.mu.Unlock()

	if fresh && !forceRefresh {
		return token, nil
	}

	result, err, _ := c.group.Do("refresh", func() (any, error) {
		refreshed, err := c.provider.refresh(ctx, refreshToken)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.idToken = refreshed.idToken
		c.expiresAt = refreshed.expiresAt
		if refreshed.refreshToken != "" {
			c.refreshToken = refreshed.refreshToken
		}
		c.mu.Unlock()

		return refreshed.idToken, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}
