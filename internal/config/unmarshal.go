package config

import (
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/pawmart/pawfront/internal/log"
)

// UnmarshalJSON implements custom unmarshaling for FrontConfig
func (f *FrontConfig) UnmarshalJSON(data []byte) error {
	// Use a raw type to parse references
	type rawFront struct {
		BaseURL             json.RawMessage `json:"baseURL"`
		Addr                json.RawMessage `json:"addr"`
		ResourceBaseURL     json.RawMessage `json:"resourceBaseURL"`
		Storage             StorageKind     `json:"storage"`
		GCPProject          json.RawMessage `json:"gcpProject,omitempty"`
		FirestoreDatabase   string          `json:"firestoreDatabase,omitempty"`
		FirestoreCollection string          `json:"firestoreCollection,omitempty"`
		SigningSecret       json.RawMessage `json:"signingSecret"`
		EncryptionKey       json.RawMessage `json:"encryptionKey"`
		Sessions            *SessionConfig  `json:"sessions,omitempty"`
		Identity            json.RawMessage `json:"identity"`
		Admin               json.RawMessage `json:"admin,omitempty"`
	}

	var raw rawFront
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	f.Storage = raw.Storage
	f.FirestoreDatabase = raw.FirestoreDatabase
	f.FirestoreCollection = raw.FirestoreCollection

	if raw.Sessions != nil {
		f.Sessions = *raw.Sessions
	}

	stringFields := []struct {
		name string
		raw  json.RawMessage
		dst  *string
	}{
		{"baseURL", raw.BaseURL, &f.BaseURL},
		{"addr", raw.Addr, &f.Addr},
		{"resourceBaseURL", raw.ResourceBaseURL, &f.ResourceBaseURL},
		{"gcpProject", raw.GCPProject, &f.GCPProject},
	}
	for _, field := range stringFields {
		if field.raw == nil {
			continue
		}
		parsed, err := ParseConfigValue(field.raw)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", field.name, err)
		}
		*field.dst = parsed.value
	}

	if raw.SigningSecret != nil {
		parsed, err := ParseConfigValue(raw.SigningSecret)
		if err != nil {
			return fmt.Errorf("parsing signingSecret: %w", err)
		}
		f.SigningSecret = Secret(parsed.value)
	}

	if raw.EncryptionKey != nil {
		parsed, err := ParseConfigValue(raw.EncryptionKey)
		if err != nil {
			return fmt.Errorf("parsing encryptionKey: %w", err)
		}
		f.EncryptionKey = Secret(parsed.value)
	}

	if raw.Identity != nil {
		if err := json.Unmarshal(raw.Identity, &f.Identity); err != nil {
			return fmt.Errorf("parsing identity: %w", err)
		}
	}

	if raw.Admin != nil {
		var admin AdminConfig
		if err := json.Unmarshal(raw.Admin, &admin); err != nil {
			return fmt.Errorf("parsing admin: %w", err)
		}
		f.Admin = &admin
	}

	// Apply defaults for Firestore configuration
	if f.Storage == StorageKindFirestore {
		if f.FirestoreDatabase == "" {
			f.FirestoreDatabase = "(default)"
		}
		if f.FirestoreCollection == "" {
			f.FirestoreCollection = "pawfront_data"
		}
	}

	return nil
}

// UnmarshalJSON implements custom unmarshaling for IdentityConfig
func (i *IdentityConfig) UnmarshalJSON(data []byte) error {
	type rawIdentity struct {
		FirebaseAPIKey     json.RawMessage `json:"firebaseApiKey"`
		GoogleClientID     json.RawMessage `json:"googleClientId,omitempty"`
		GoogleClientSecret json.RawMessage `json:"googleClientSecret,omitempty"`
		GoogleRedirectURI  json.RawMessage `json:"googleRedirectUri,omitempty"`
	}

	var raw rawIdentity
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw.FirebaseAPIKey != nil {
		parsed, err := ParseConfigValue(raw.FirebaseAPIKey)
		if err != nil {
			return fmt.Errorf("parsing firebaseApiKey: %w", err)
		}
		i.FirebaseAPIKey = Secret(parsed.value)
	}

	if raw.GoogleClientID != nil {
		parsed, err := ParseConfigValue(raw.GoogleClientID)
		if err != nil {
			return fmt.Errorf("parsing googleClientId: %w", err)
		}
		i.GoogleClientID = parsed.value
	}

	if raw.GoogleClientSecret != nil {
		parsed, err := ParseConfigValue(raw.GoogleClientSecret)
		if err != nil {
			return fmt.Errorf("parsing googleClientSecret: %w", err)
		}
		i.GoogleClientSecret = Secret(parsed.value)
	}

	if raw.GoogleRedirectURI != nil {
		parsed, err := ParseConfigValue(raw.GoogleRedirectURI)
		if err != nil {
			return fmt.Errorf("parsing googleRedirectUri: %w", err)
		}
		i.GoogleRedirectURI = parsed.value
	}

	return nil
}

// UnmarshalJSON implements custom unmarshaling for AdminConfig.
// The password is bcrypt-hashed at load time; the plaintext is never kept.
func (a *AdminConfig) UnmarshalJSON(data []byte) error {
	type rawAdmin struct {
		Username    string          `json:"username"`
		PasswordRaw json.RawMessage `json:"password"`
	}

	var raw rawAdmin
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	a.Username = raw.Username

	if raw.PasswordRaw == nil {
		return fmt.Errorf("password is required for admin auth")
	}

	parsed, err := ParseConfigValue(raw.PasswordRaw)
	if err != nil {
		return fmt.Errorf("parsing password: %w", err)
	}

	log.LogTraceWithFields("config", "Hashing admin password", map[string]any{
		"username": a.Username,
	})
	hashed, err := bcrypt.GenerateFromPassword([]byte(parsed.value), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	a.HashedPassword = Secret(hashed)

	return nil
}

// UnmarshalJSON implements custom unmarshaling for SessionConfig
func (s *SessionConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		Timeout          string `json:"timeout"`
		CleanupInterval  string `json:"cleanupInterval"`
		RotationInterval string `json:"rotationInterval"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	durationFields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"timeout", raw.Timeout, &s.Timeout},
		{"cleanupInterval", raw.CleanupInterval, &s.CleanupInterval},
		{"rotationInterval", raw.RotationInterval, &s.RotationInterval},
	}
	for _, field := range durationFields {
		if field.raw == "" {
			continue
		}
		d, err := time.ParseDuration(field.raw)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", field.name, err)
		}
		*field.dst = d
	}

	return nil
}
