// Package internal wires the storefront together.
package internal

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pawmart/pawfront/internal/catalog"
	"github.com/pawmart/pawfront/internal/config"
	"github.com/pawmart/pawfront/internal/cookie"
	"github.com/pawmart/pawfront/internal/crypto"
	"github.com/pawmart/pawfront/internal/gateway"
	"github.com/pawmart/pawfront/internal/identity"
	"github.com/pawmart/pawfront/internal/log"
	"github.com/pawmart/pawfront/internal/server"
	"github.com/pawmart/pawfront/internal/session"
	"github.com/pawmart/pawfront/internal/storage"
)

const shutdownGrace = 15 * time.Second

// Run assembles and runs the storefront until SIGINT/SIGTERM
func Run(ctx context.Context, cfg config.Config) error {
	front := cfg.Front

	encryptor, err := crypto.NewEncryptor([]byte(front.EncryptionKey))
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	signer := crypto.NewTokenSigner([]byte(front.SigningSecret))
	csrf := crypto.NewCSRFProtection([]byte(front.SigningSecret), time.Hour)
	cookies := cookie.NewManager(encryptor, front.Sessions.Timeout)

	store, err := newStorage(ctx, &front, encryptor)
	if err != nil {
		return fmt.Errorf("creating storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	firebase := identity.NewFirebaseProvider(string(front.Identity.FirebaseAPIKey))
	registry := identity.NewRegistry()
	registry.Register(identity.FirebaseProviderPrefix, firebase)

	var google *identity.GoogleProvider
	if front.Identity.GoogleClientID != "" {
		google = identity.NewGoogleProvider(
			front.Identity.GoogleClientID,
			string(front.Identity.GoogleClientSecret),
			front.Identity.GoogleRedirectURI,
		)
		registry.Register(identity.GoogleProviderPrefix, google)
	}

	manager := session.NewManager(store, registry, session.ManagerConfig{
		Timeout:          front.Sessions.Timeout,
		CleanupInterval:  front.Sessions.CleanupInterval,
		RotationInterval: front.Sessions.RotationInterval,
	})
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("starting session manager: %w", err)
	}
	defer manager.Stop()

	gw := gateway.New(front.ResourceBaseURL, &http.Client{Timeout: 30 * time.Second})
	catalogClient := catalog.NewClient(gw)

	guard := server.NewGuard(signer, nil)
	deps := server.Deps{
		Guard:      guard,
		Cookies:    cookies,
		Manager:    manager,
		Auth:       server.NewAuthHandlers(guard, cookies, manager, firebase, google, signer),
		Storefront: server.NewStorefrontHandlers(catalogClient, cookies, csrf),
	}
	if front.Admin != nil {
		deps.Admin = server.NewAdminHandlers(front.Admin, store, manager, csrf)
	}

	httpServer := server.NewHTTPServer(front.Addr, deps)

	errChan := make(chan error, 1)
	go func() { errChan <- httpServer.Start() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		log.LogInfoWithFields("pawfront", "Shutting down", map[string]any{
			"signal": sig.String(),
		})
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func newStorage(ctx context.Context, front *config.FrontConfig, encryptor *crypto.Encryptor) (storage.Storage, error) {
	switch front.Storage {
	case config.StorageKindFirestore:
		return storage.NewFirestoreStorage(ctx, front.GCPProject, front.FirestoreDatabase, front.FirestoreCollection, encryptor)
	default:
		log.Logf("Using in-memory storage; sessions will not survive restarts")
		return storage.NewMemoryStorage(), nil
	}
}
