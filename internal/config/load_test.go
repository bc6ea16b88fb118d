package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validConfig = `{
	"version": "v1",
	"front": {
		"baseURL": "https://shop.pawmart.example",
		"addr": ":8080",
		"resourceBaseURL": {"$env": "PAWMART_API_URL"},
		"storage": "memory",
		"signingSecret": {"$env": "PAWFRONT_SIGNING_SECRET"},
		"encryptionKey": {"$env": "PAWFRONT_ENCRYPTION_KEY"},
		"sessions": {
			"timeout": "720h",
			"cleanupInterval": "1h",
			"rotationInterval": "45m"
		},
		"identity": {
			"firebaseApiKey": {"$env": "FIREBASE_API_KEY"}
		},
		"admin": {
			"username": "ops",
			"password": {"$env": "PAWFRONT_ADMIN_PASSWORD"}
		}
	}
}`

func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PAWMART_API_URL", "http://api.internal:9000")
	t.Setenv("PAWFRONT_SIGNING_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("PAWFRONT_ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("FIREBASE_API_KEY", "AIzaFakeKey")
	t.Setenv("PAWFRONT_ADMIN_PASSWORD", "hunter2hunter2")
}

func TestLoad(t *testing.T) {
	setValidEnv(t)

	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "https://shop.pawmart.example", cfg.Front.BaseURL)
	assert.Equal(t, ":8080", cfg.Front.Addr)
	assert.Equal(t, "http://api.internal:9000", cfg.Front.ResourceBaseURL)
	assert.Equal(t, StorageKindMemory, cfg.Front.Storage)
	assert.Equal(t, Secret("AIzaFakeKey"), cfg.Front.Identity.FirebaseAPIKey)
	assert.Equal(t, "45m0s", cfg.Front.Sessions.RotationInterval.String())

	require.NotNil(t, cfg.Front.Admin)
	assert.Equal(t, "ops", cfg.Front.Admin.Username)
	assert.NoError(t, bcrypt.CompareHashAndPassword(
		[]byte(cfg.Front.Admin.HashedPassword), []byte("hunter2hunter2")))
}

func TestLoadRejectsInlineSecrets(t *testing.T) {
	setValidEnv(t)

	path := writeConfig(t, `{
		"version": "v1",
		"front": {
			"baseURL": "https://shop.pawmart.example",
			"addr": ":8080",
			"resourceBaseURL": "http://api.internal:9000",
			"signingSecret": "plaintext-secret-in-config-file!!",
			"encryptionKey": {"$env": "PAWFRONT_ENCRYPTION_KEY"},
			"identity": {"firebaseApiKey": {"$env": "FIREBASE_API_KEY"}}
		}
	}`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signingSecret must use environment variable reference")
}

func TestLoadMissingEnvVar(t *testing.T) {
	setValidEnv(t)
	t.Setenv("FIREBASE_API_KEY", "")

	_, err := Load(writeConfig(t, validConfig))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FIREBASE_API_KEY not set")
}

func TestLoadVersionRequired(t *testing.T) {
	_, err := Load(writeConfig(t, `{"front": {}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version is required")
}

func TestValidateConfig(t *testing.T) {
	base := func() Config {
		return Config{
			Version: "v1",
			Front: FrontConfig{
				BaseURL:         "https://shop.pawmart.example",
				Addr:            ":8080",
				ResourceBaseURL: "http://api.internal:9000",
				SigningSecret:   Secret("0123456789abcdef0123456789abcdef"),
				EncryptionKey:   Secret("0123456789abcdef0123456789abcdef"),
				Identity:        IdentityConfig{FirebaseAPIKey: "key"},
			},
		}
	}

	t.Run("valid", func(t *testing.T) {
		cfg := base()
		assert.NoError(t, ValidateConfig(&cfg))
	})

	t.Run("short signing secret", func(t *testing.T) {
		cfg := base()
		cfg.Front.SigningSecret = "short"
		assert.Error(t, ValidateConfig(&cfg))
	})

	t.Run("wrong encryption key length", func(t *testing.T) {
		cfg := base()
		cfg.Front.EncryptionKey = "not-32-bytes"
		assert.Error(t, ValidateConfig(&cfg))
	})

	t.Run("firestore requires project", func(t *testing.T) {
		cfg := base()
		cfg.Front.Storage = StorageKindFirestore
		assert.Error(t, ValidateConfig(&cfg))

		cfg.Front.GCPProject = "my-project"
		assert.NoError(t, ValidateConfig(&cfg))
	})

	t.Run("partial google config rejected", func(t *testing.T) {
		cfg := base()
		cfg.Front.Identity.GoogleClientID = "client-id"
		assert.Error(t, ValidateConfig(&cfg))
	})

	t.Run("missing resource base URL", func(t *testing.T) {
		cfg := base()
		cfg.Front.ResourceBaseURL = ""
		assert.Error(t, ValidateConfig(&cfg))
	})
}
