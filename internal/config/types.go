package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// StorageKind selects the session storage backend
type StorageKind string

const (
	StorageKindMemory    StorageKind = "memory"
	StorageKindFirestore StorageKind = "firestore"
)

// Config is the root configuration
type Config struct {
	Version string      `json:"version"`
	Front   FrontConfig `json:"front"`
}

// FrontConfig configures the storefront service
type FrontConfig struct {
	BaseURL         string
	Addr            string
	ResourceBaseURL string

	Storage             StorageKind
	GCPProject          string
	FirestoreDatabase   string
	FirestoreCollection string

	SigningSecret Secret
	EncryptionKey Secret

	Sessions SessionConfig
	Identity IdentityConfig
	Admin    *AdminConfig
}

// SessionConfig tunes session lifetime and background maintenance
type SessionConfig struct {
	Timeout          time.Duration
	CleanupInterval  time.Duration
	RotationInterval time.Duration
}

// IdentityConfig configures the external identity backends
type IdentityConfig struct {
	// Identity Toolkit API key for email/password auth
	FirebaseAPIKey Secret

	// Google OAuth sign-in; optional
	GoogleClientID     string
	GoogleClientSecret Secret
	GoogleRedirectURI  string
}

// AdminConfig guards the /admin dashboard with basic auth
type AdminConfig struct {
	Username       string
	HashedPassword Secret
}

// RawConfigValue holds a parsed config value
type RawConfigValue struct {
	value string
}

// ParseConfigValue parses a config value that is either a plain string
// or a {"$env": "VAR_NAME"} reference resolved at load time
func ParseConfigValue(raw json.RawMessage) (*RawConfigValue, error) {
	// Try plain string first
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return &RawConfigValue{value: str}, nil
	}

	// Try reference object
	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, fmt.Errorf("config value must be string or reference object")
	}

	if envVar, ok := ref["$env"]; ok {
		value := os.Getenv(envVar)
		if value == "" {
			return nil, fmt.Errorf("environment variable %s not set", envVar)
		}
		// Strip surrounding quotes if present (only matching pairs)
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		return &RawConfigValue{value: value}, nil
	}

	return nil, fmt.Errorf("unknown reference type in config value")
}
