package storage

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pawmart/pawfront/internal/crypto"
	"github.com/pawmart/pawfront/internal/log"
)

// FirestoreStorage persists sessions and users in Firestore.
// Refresh credentials are AES-GCM encrypted before they leave the process.
type FirestoreStorage struct {
	client    *firestore.Client
	encryptor *crypto.Encryptor

	sessionsCollection string
	usersCollection    string
}

type firestoreSession struct {
	SessionID          string    `firestore:"sessionId"`
	UserID             string    `firestore:"userId"`
	Email              string    `firestore:"email"`
	DisplayName        string    `firestore:"displayName"`
	AvatarURL          string    `firestore:"avatarUrl"`
	EncryptedRefresh   string    `firestore:"encryptedRefresh"`
	CreatedAt          time.Time `firestore:"createdAt"`
	LastSeen           time.Time `firestore:"lastSeen"`
	ExpiresAt          time.Time `firestore:"expiresAt"`
}

type firestoreUser struct {
	ID          string    `firestore:"id"`
	Email       string    `firestore:"email"`
	DisplayName string    `firestore:"displayName"`
	Enabled     bool      `firestore:"enabled"`
	IsAdmin     bool      `firestore:"isAdmin"`
	FirstSeen   time.Time `firestore:"firstSeen"`
	LastSeen    time.Time `firestore:"lastSeen"`
}

// NewFirestoreStorage connects to Firestore
func NewFirestoreStorage(ctx context.Context, project, database, collection string, encryptor *crypto.Encryptor) (*FirestoreStorage, error) {
	client, err := firestore.NewClientWithDatabase(ctx, project, database)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	log.LogInfoWithFields("storage", "Connected to Firestore", map[string]any{
		"project":    project,
		"database":   database,
		"collection": collection,
	})

	return &FirestoreStorage{
		client:             client,
		encryptor:          encryptor,
		sessionsCollection: collection + "_sessions",
		usersCollection:    collection + "_users",
	}, nil
}

func (f *FirestoreStorage) UpsertSession(ctx context.Context, record *SessionRecord) error {
	encrypted, err := f.encryptor.Encrypt(record.RefreshCredential)
	if err != nil {
		return fmt.Errorf("encrypting refresh credential: %w", err)
	}

	doc := firestoreSession{
		SessionID:        record.SessionID,
		UserID:           record.UserID,
		Email:            record.Email,
		DisplayName:      record.DisplayName,
		AvatarURL:        record.AvatarURL,
		EncryptedRefresh: encrypted,
		CreatedAt:        record.CreatedAt,
		LastSeen:         record.LastSeen,
		ExpiresAt:        record.ExpiresAt,
	}

	_, err = f.client.Collection(f.sessionsCollection).Doc(record.SessionID).Set(ctx, doc)
	if err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}

func (f *FirestoreStorage) GetSession(ctx context.Context, sessionID string) (*SessionRecord, error) {
	snap, err := f.client.Collection(f.sessionsCollection).Doc(sessionID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading session: %w", err)
	}

	var doc firestoreSession
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return f.toRecord(&doc)
}

func (f *FirestoreStorage) ListSessions(ctx context.Context) ([]*SessionRecord, error) {
	iter := f.client.Collection(f.sessionsCollection).Documents(ctx)
	defer iter.Stop()

	var records []*SessionRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating sessions: %w", err)
		}

		var doc firestoreSession
		if err := snap.DataTo(&doc); err != nil {
			log.LogWarnWithFields("storage", "Skipping undecodable session", map[string]any{
				"doc":   snap.Ref.ID,
				"error": err.Error(),
			})
			continue
		}

		record, err := f.toRecord(&doc)
		if err != nil {
			log.LogWarnWithFields("storage", "Skipping session with undecryptable credential", map[string]any{
				"session": doc.SessionID,
			})
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func (f *FirestoreStorage) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := f.client.Collection(f.sessionsCollection).Doc(sessionID).Delete(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func (f *FirestoreStorage) DeleteUserSessions(ctx context.Context, userID string) (int, error) {
	iter := f.client.Collection(f.sessionsCollection).Where("userId", "==", userID).Documents(ctx)
	defer iter.Stop()

	deleted := 0
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return deleted, fmt.Errorf("iterating user sessions: %w", err)
		}
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return deleted, fmt.Errorf("deleting session %s: %w", snap.Ref.ID, err)
		}
		deleted++
	}
	return deleted, nil
}

func (f *FirestoreStorage) CleanupExpiredSessions(ctx context.Context) (int, error) {
	iter := f.client.Collection(f.sessionsCollection).
		Where("expiresAt", "<", time.Now()).
		Documents(ctx)
	defer iter.Stop()

	cleaned := 0
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return cleaned, fmt.Errorf("iterating expired sessions: %w", err)
		}
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return cleaned, fmt.Errorf("deleting expired session %s: %w", snap.Ref.ID, err)
		}
		cleaned++
	}
	return cleaned, nil
}

func (f *FirestoreStorage) UpsertUser(ctx context.Context, user *UserRecord) error {
	doc := firestoreUser{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Enabled:     user.Enabled,
		IsAdmin:     user.IsAdmin,
		FirstSeen:   user.FirstSeen,
		LastSeen:    user.LastSeen,
	}

	_, err := f.client.Collection(f.usersCollection).Doc(user.ID).Set(ctx, doc)
	if err != nil {
		return fmt.Errorf("writing user: %w", err)
	}
	return nil
}

func (f *FirestoreStorage) GetUser(ctx context.Context, id string) (*UserRecord, error) {
	snap, err := f.client.Collection(f.usersCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading user: %w", err)
	}

	var doc firestoreUser
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decoding user: %w", err)
	}
	return userFromDoc(&doc), nil
}

func (f *FirestoreStorage) ListUsers(ctx context.Context) ([]*UserRecord, error) {
	iter := f.client.Collection(f.usersCollection).Documents(ctx)
	defer iter.Stop()

	var users []*UserRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating users: %w", err)
		}

		var doc firestoreUser
		if err := snap.DataTo(&doc); err != nil {
			log.LogWarnWithFields("storage", "Skipping undecodable user", map[string]any{
				"doc":   snap.Ref.ID,
				"error": err.Error(),
			})
			continue
		}
		users = append(users, userFromDoc(&doc))
	}
	return users, nil
}

func (f *FirestoreStorage) SetUserEnabled(ctx context.Context, id string, enabled bool) error {
	_, err := f.client.Collection(f.usersCollection).Doc(id).Update(ctx, []firestore.Update{
		{Path: "enabled", Value: enabled},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		return fmt.Errorf("updating user: %w", err)
	}
	return nil
}

func (f *FirestoreStorage) Close() error {
	return f.client.Close()
}

func (f *FirestoreStorage) toRecord(doc *firestoreSession) (*SessionRecord, error) {
	refresh, err := f.encryptor.Decrypt(doc.EncryptedRefresh)
	if err != nil {
		return nil, fmt.Errorf("decrypting refresh credential: %w", err)
	}

	return &SessionRecord{
		SessionID:         doc.SessionID,
		UserID:            doc.UserID,
		Email:             doc.Email,
		DisplayName:       doc.DisplayName,
		AvatarURL:         doc.AvatarURL,
		RefreshCredential: refresh,
		CreatedAt:         doc.CreatedAt,
		LastSeen:          doc.LastSeen,
		ExpiresAt:         doc.ExpiresAt,
	}, nil
}

func userFromDoc(doc *firestoreUser) *UserRecord {
	return &UserRecord{
		ID:          doc.ID,
		Email:       doc.Email,
		DisplayName: doc.DisplayName,
		Enabled:     doc.Enabled,
		IsAdmin:     doc.IsAdmin,
		FirstSeen:   doc.FirstSeen,
		LastSeen:    doc.LastSeen,
	}
}
