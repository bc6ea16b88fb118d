package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

// SignData signs data with HMAC-SHA256 and returns "payload.signature"
// where both parts are base64url encoded.
func SignData(secret []byte, data []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(data)
	sig := mac.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(data) + "." + base64.RawURLEncoding.EncodeToString(sig)
}

// ValidateSignedData validates a "payload.signature" token and returns the payload.
// Comparison is constant-time.
func ValidateSignedData(secret []byte, token string) ([]byte, error) {
	payloadPart, sigPart, ok := strings.Cut(token, ".")
	if !ok {
		return nil, fmt.Errorf("malformed signed data")
	}

	data, err := base64.RawURLEncoding.DecodeString(payloadPart)
	if err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	sig, err := base64.RawURLEncoding.DecodeString(sigPart)
	if err != nil {
		return nil, fmt.Errorf("decoding signature: %w", err)
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(data)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return nil, fmt.Errorf("signature mismatch")
	}

	return data, nil
}
