package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CSRFProtection issues and validates per-session CSRF tokens for form posts.
// Tokens are "nonce:timestamp:signature" where the signature binds the nonce
// and timestamp to the browser session ID.
type CSRFProtection struct {
	secret []byte
	maxAge time.Duration
}

// NewCSRFProtection creates CSRF protection with the given secret and token lifetime
func NewCSRFProtection(secret []byte, maxAge time.Duration) *CSRFProtection {
	return &CSRFProtection{secret: secret, maxAge: maxAge}
}

// GenerateToken creates a CSRF token bound to the given session ID
func (c *CSRFProtection) GenerateToken(sessionID string) (string, error) {
	nonce, err := GenerateSecureToken()
	if err != nil {
		return "", fmt.Errorf("generating CSRF nonce: %w", err)
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	sig := c.sign(sessionID, nonce, timestamp)

	return nonce + ":" + timestamp + ":" + sig, nil
}

// ValidateToken checks a token's signature, session binding, and age
func (c *CSRFProtection) ValidateToken(sessionID, token string) error {
	parts := strings.Split(token, ":")
	if len(parts) != 3 {
		return fmt.Errorf("malformed CSRF token")
	}
	nonce, timestamp, sig := parts[0], parts[1], parts[2]

	expected := c.sign(sessionID, nonce, timestamp)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return fmt.Errorf("CSRF token signature mismatch")
	}

	issued, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("malformed CSRF timestamp")
	}
	if time.Since(time.Unix(issued, 0)) > c.maxAge {
		return fmt.Errorf("CSRF token expired")
	}

	return nil
}

func (c *CSRFProtection) sign(sessionID, nonce, timestamp string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(sessionID + ":" + nonce + ":" + timestamp))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
