package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pawmart/pawfront/internal/log"
)

// Load loads and processes the config with immediate env var resolution
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	version, ok := rawConfig["version"].(string)
	if !ok {
		return Config{}, fmt.Errorf("config version is required")
	}
	if !strings.HasPrefix(version, "v1") {
		return Config{}, fmt.Errorf("unsupported config version: %s", version)
	}

	if err := validateRawConfig(rawConfig); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	// Parse directly into typed Config struct.
	// The custom UnmarshalJSON methods resolve env vars immediately.
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validateRawConfig validates the config structure before environment resolution.
// Secrets must arrive as env references so they never sit in the config file.
func validateRawConfig(rawConfig map[string]any) error {
	front, ok := rawConfig["front"].(map[string]any)
	if !ok {
		return fmt.Errorf("front section is required")
	}

	secretFields := []string{"signingSecret", "encryptionKey"}
	for _, name := range secretFields {
		value, exists := front[name]
		if !exists {
			continue
		}
		if _, isString := value.(string); isString {
			return fmt.Errorf("%s must use environment variable reference for security", name)
		}
		if refMap, isMap := value.(map[string]any); isMap {
			if _, hasEnv := refMap["$env"]; !hasEnv {
				return fmt.Errorf("%s must use {\"$env\": \"VAR_NAME\"} format", name)
			}
		}
	}

	if identity, ok := front["identity"].(map[string]any); ok {
		for _, name := range []string{"firebaseApiKey", "googleClientSecret"} {
			if value, exists := identity[name]; exists {
				if _, isString := value.(string); isString {
					return fmt.Errorf("identity.%s must use environment variable reference for security", name)
				}
			}
		}
	}

	if admin, ok := front["admin"].(map[string]any); ok {
		if value, exists := admin["password"]; exists {
			if _, isString := value.(string); isString {
				return fmt.Errorf("admin.password must use environment variable reference for security")
			}
		}
	}

	return nil
}

// ValidateConfig validates the resolved configuration
func ValidateConfig(config *Config) error {
	front := &config.Front

	if front.BaseURL == "" {
		return fmt.Errorf("front.baseURL is required")
	}
	if front.Addr == "" {
		return fmt.Errorf("front.addr is required")
	}
	if front.ResourceBaseURL == "" {
		return fmt.Errorf("front.resourceBaseURL is required")
	}

	if len(front.SigningSecret) < 32 {
		return fmt.Errorf("signingSecret must be at least 32 characters (got %d). Generate with: openssl rand -base64 32", len(front.SigningSecret))
	}
	if len(front.EncryptionKey) != 32 {
		return fmt.Errorf("encryptionKey must be exactly 32 characters (got %d). Generate with: openssl rand -base64 32 | head -c 32", len(front.EncryptionKey))
	}

	switch front.Storage {
	case StorageKindMemory, "":
	case StorageKindFirestore:
		if front.GCPProject == "" {
			return fmt.Errorf("gcpProject is required when using firestore storage")
		}
	default:
		return fmt.Errorf("unknown storage kind: %s", front.Storage)
	}

	if front.Identity.FirebaseAPIKey == "" {
		return fmt.Errorf("identity.firebaseApiKey is required")
	}
	hasGoogle := front.Identity.GoogleClientID != "" || front.Identity.GoogleClientSecret != "" || front.Identity.GoogleRedirectURI != ""
	if hasGoogle {
		if front.Identity.GoogleClientID == "" || front.Identity.GoogleClientSecret == "" || front.Identity.GoogleRedirectURI == "" {
			return fmt.Errorf("google sign-in requires googleClientId, googleClientSecret, and googleRedirectUri together")
		}
	}

	if front.Admin != nil && front.Admin.Username == "" {
		return fmt.Errorf("admin.username is required when admin is configured")
	}

	if front.Sessions.Timeout < 0 {
		return fmt.Errorf("front.sessions.timeout cannot be negative")
	}
	if front.Sessions.CleanupInterval < 0 {
		return fmt.Errorf("front.sessions.cleanupInterval cannot be negative")
	}
	if front.Sessions.Timeout > 0 && front.Sessions.CleanupInterval > front.Sessions.Timeout {
		log.LogWarn("Session cleanup interval is greater than session timeout")
	}

	return nil
}
