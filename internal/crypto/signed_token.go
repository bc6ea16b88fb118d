package crypto

import (
	"encoding/json"
	"fmt"
	"time"
)

// TokenSigner signs and validates short-lived structured tokens.
// Tokens are JSON payloads signed with HMAC-SHA256; they carry their own
// expiry so validation needs no server-side state.
type TokenSigner struct {
	secret []byte
}

// NewTokenSigner creates a signer with the given HMAC secret
func NewTokenSigner(secret []byte) *TokenSigner {
	return &TokenSigner{secret: secret}
}

type signedEnvelope struct {
	Payload   json.RawMessage `json:"payload"`
	ExpiresAt int64           `json:"expiresAt"`
}

// Sign encodes payload as JSON and signs it with the given TTL
func (s *TokenSigner) Sign(payload any, ttl time.Duration) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding token payload: %w", err)
	}

	envelope, err := json.Marshal(signedEnvelope{
		Payload:   raw,
		ExpiresAt: time.Now().Add(ttl).Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("encoding token envelope: %w", err)
	}

	return SignData(s.secret, envelope), nil
}

// Validate checks the signature and expiry, then decodes the payload into out
func (s *TokenSigner) Validate(token string, out any) error {
	data, err := ValidateSignedData(s.secret, token)
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}

	var envelope signedEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("decoding token envelope: %w", err)
	}

	if time.Now().Unix() > envelope.ExpiresAt {
		return fmt.Errorf("token expired")
	}

	if err := json.Unmarshal(envelope.Payload, out); err != nil {
		return fmt.Errorf("decoding token payload: %w", err)
	}

	return nil
}
