package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/singleflight"

	"github.com/pawmart/pawfront/internal/session"
)

// GoogleProviderPrefix tags refresh credentials issued by this provider
const GoogleProviderPrefix = "google"

const defaultUserinfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleProvider signs users in with the Google OAuth authorization code flow
type GoogleProvider struct {
	config      *oauth2.Config
	userinfoURL string
}

// GoogleOption customizes the provider
type GoogleOption func(*GoogleProvider)

// WithGoogleEndpoints overrides the OAuth and userinfo endpoints, for tests
func WithGoogleEndpoints(endpoint oauth2.Endpoint, userinfoURL string) GoogleOption {
	return func(p *GoogleProvider) {
		p.config.Endpoint = endpoint
		p.userinfoURL = userinfoURL
	}
}

// NewGoogleProvider creates a provider for the given OAuth client
func NewGoogleProvider(clientID, clientSecret, redirectURI string, opts ...GoogleOption) *GoogleProvider {
	p := &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userinfoURL: defaultUserinfoURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AuthCodeURL builds the consent page URL carrying the given state.
// Offline access is requested so the session survives process restarts.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

// Exchange redeems an authorization code for a signed-in principal
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*SignInResult, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, &AuthError{Code: "OAUTH_EXCHANGE_FAILED", Message: "Google sign-in failed. Please try again."}
	}
	return p.principalFromToken(ctx, token)
}

// Restore implements session.Restorer using a persisted refresh token
func (p *GoogleProvider) Restore(ctx context.Context, refreshToken string) (*session.Principal, string, error) {
	source := p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, "", &AuthError{Code: "OAUTH_REFRESH_FAILED", Message: "Your session has expired. Please sign in again."}
	}
	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}

	result, err := p.principalFromToken(ctx, token)
	if err != nil {
		return nil, "", err
	}
	return result.Principal, result.RefreshCredential, nil
}

func (p *GoogleProvider) principalFromToken(ctx context.Context, token *oauth2.Token) (*SignInResult, error) {
	info, err := p.fetchUserinfo(ctx, token)
	if err != nil {
		return nil, err
	}

	source := &googleCredentials{config: p.config, token: token}
	principal := session.NewPrincipal(info.Sub, info.Email, info.Name, info.Picture, source)
	return &SignInResult{Principal: principal, RefreshCredential: token.RefreshToken}, nil
}

type googleUserinfo struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (p *GoogleProvider) fetchUserinfo(ctx context.Context, token *oauth2.Token) (*googleUserinfo, error) {
	client := p.config.Client(ctx, token)
	resp, err := client.Get(p.userinfoURL)
	if err != nil {
		return nil, fmt.Errorf("fetching userinfo: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading userinfo: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &AuthError{Code: "USERINFO_FAILED", Message: "Google sign-in failed. Please try again."}
	}

	var info googleUserinfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("decoding userinfo: %w", err)
	}
	if info.Sub == "" {
		return nil, &AuthError{Code: "USERINFO_INCOMPLETE", Message: "Google sign-in failed. Please try again."}
	}
	return &info, nil
}

// googleCredentials mints bearer credentials from the OAuth token,
// refreshing through the token endpoint when expired
type googleCredentials struct {
	config *oauth2.Config
	group  singleflight.Group

	mu    sync.Mutex
	token *oauth2.Token
}

func (c *googleCredentials) Credential(ctx context.Context, forceRefresh bool) (string, error) {
	c.mu.Lock()
	current := c.token
	c.mu.Unlock()

	if !forceRefresh && current.Valid() {
		return current.AccessToken, nil
	}

	result, err, _ := c.group.Do("refresh", func() (any, error) {
		refresh := &oauth2.Token{RefreshToken: current.RefreshToken}
		if forceRefresh {
			// Drop the access token so the source is forced to refresh
			refresh.Expiry = time.Now().Add(-time.Minute)
		}
		token, err := c.config.TokenSource(ctx, refresh).Token()
		if err != nil {
			return nil, &AuthError{Code: "OAUTH_REFRESH_FAILED", Message: "Your session has expired. Please sign in again."}
		}
		if token.RefreshToken == "" {
			token.RefreshToken = current.RefreshToken
		}

		c.mu.Lock()
		c.token = token
		c.mu.Unlock()

		return token.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}
