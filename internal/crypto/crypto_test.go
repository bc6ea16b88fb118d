package crypto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecureToken(t *testing.T) {
	a, err := GenerateSecureToken()
	require.NoError(t, err)
	b, err := GenerateSecureToken()
	require.NoError(t, err)

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestSignData(t *testing.T) {
	secret := []byte("test-secret")

	t.Run("round trip", func(t *testing.T) {
		token := SignData(secret, []byte("hello"))
		data, err := ValidateSignedData(secret, token)
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), data)
	})

	t.Run("tampered payload rejected", func(t *testing.T) {
		token := SignData(secret, []byte("hello"))
		tampered := "x" + token
		_, err := ValidateSignedData(secret, tampered)
		assert.Error(t, err)
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		token := SignData(secret, []byte("hello"))
		_, err := ValidateSignedData([]byte("other-secret"), token)
		assert.Error(t, err)
	})

	t.Run("malformed token rejected", func(t *testing.T) {
		_, err := ValidateSignedData(secret, "no-separator")
		assert.Error(t, err)
	})
}

func TestTokenSigner(t *testing.T) {
	signer := NewTokenSigner([]byte("test-secret"))

	type payload struct {
		ReturnURL string `json:"returnUrl"`
	}

	t.Run("round trip", func(t *testing.T) {
		token, err := signer.Sign(payload{ReturnURL: "/listing/42?ref=home"}, time.Minute)
		require.NoError(t, err)

		var got payload
		require.NoError(t, signer.Validate(token, &got))
		assert.Equal(t, "/listing/42?ref=home", got.ReturnURL)
	})

	t.Run("expired token rejected", func(t *testing.T) {
		token, err := signer.Sign(payload{ReturnURL: "/x"}, -time.Second)
		require.NoError(t, err)

		var got payload
		err = signer.Validate(token, &got)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expired")
	})
}

func TestEncryptor(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")

	t.Run("round trip", func(t *testing.T) {
		enc, err := NewEncryptor(key)
		require.NoError(t, err)

		ciphertext, err := enc.Encrypt("refresh-credential-value")
		require.NoError(t, err)
		assert.NotContains(t, ciphertext, "refresh-credential")

		plaintext, err := enc.Decrypt(ciphertext)
		require.NoError(t, err)
		assert.Equal(t, "refresh-credential-value", plaintext)
	})

	t.Run("wrong key size rejected", func(t *testing.T) {
		_, err := NewEncryptor([]byte("short"))
		assert.Error(t, err)
	})

	t.Run("tampered ciphertext rejected", func(t *testing.T) {
		enc, err := NewEncryptor(key)
		require.NoError(t, err)

		ciphertext, err := enc.Encrypt("value")
		require.NoError(t, err)

		_, err = enc.Decrypt(ciphertext[:len(ciphertext)-2])
		assert.Error(t, err)
	})
}

func TestCSRFProtection(t *testing.T) {
	csrf := NewCSRFProtection([]byte("test-secret"), time.Hour)

	t.Run("valid token accepted", func(t *testing.T) {
		token, err := csrf.GenerateToken("session-1")
		require.NoError(t, err)
		assert.NoError(t, csrf.ValidateToken("session-1", token))
	})

	t.Run("other session rejected", func(t *testing.T) {
		token, err := csrf.GenerateToken("session-1")
		require.NoError(t, err)
		assert.Error(t, csrf.ValidateToken("session-2", token))
	})

	t.Run("expired token rejected", func(t *testing.T) {
		shortLived := NewCSRFProtection([]byte("test-secret"), -time.Second)
		token, err := shortLived.GenerateToken("session-1")
		require.NoError(t, err)
		assert.Error(t, shortLived.ValidateToken("session-1", token))
	})

	t.Run("malformed token rejected", func(t *testing.T) {
		assert.Error(t, csrf.ValidateToken("session-1", "garbage"))
	})
}
