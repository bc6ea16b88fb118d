package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/pawmart/pawfront/internal/cookie"
	"github.com/pawmart/pawfront/internal/json"
	"github.com/pawmart/pawfront/internal/log"
	"github.com/pawmart/pawfront/internal/session"
)

// Deps holds everything the HTTP server needs
type Deps struct {
	Guard      *Guard
	Cookies    *cookie.Manager
	Manager    *session.Manager
	Auth       *AuthHandlers
	Storefront *StorefrontHandlers
	Admin      *AdminHandlers // nil when no admin is configured
}

// HTTPServer is the storefront's HTTP front door
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer wires routes and middleware
func NewHTTPServer(addr string, deps Deps) *HTTPServer {
	mux := http.NewServeMux()

	protect := func(h http.HandlerFunc) http.Handler {
		return deps.Guard.RequireAuth()(h)
	}

	// Public storefront
	mux.HandleFunc("GET /{$}", deps.Storefront.Home)
	mux.HandleFunc("GET /listings", deps.Storefront.Browse)

	// Auth flows
	mux.HandleFunc("GET /signin", deps.Auth.SignInPage)
	mux.HandleFunc("POST /signin", deps.Auth.SignIn)
	mux.HandleFunc("GET /register", deps.Auth.RegisterPage)
	mux.HandleFunc("POST /register", deps.Auth.Register)
	mux.HandleFunc("GET /forgot-password", deps.Auth.ForgotPasswordPage)
	mux.HandleFunc("POST /forgot-password", deps.Auth.ForgotPassword)
	mux.HandleFunc("GET /auth/google", deps.Auth.GoogleStart)
	mux.HandleFunc("GET /auth/google/callback", deps.Auth.GoogleCallback)
	mux.HandleFunc("GET /signout", deps.Auth.SignOut)

	// Protected storefront
	mux.Handle("GET /listing/{id}", protect(deps.Storefront.ListingDetail))
	mux.Handle("POST /listing/{id}/order", protect(deps.Storefront.PlaceOrder))
	mux.Handle("GET /listings/new", protect(deps.Storefront.NewListingPage))
	mux.Handle("POST /listings/new", protect(deps.Storefront.CreateListing))
	mux.Handle("GET /my-listings", protect(deps.Storefront.MyListings))
	mux.Handle("POST /my-listings/{id}/delete", protect(deps.Storefront.DeleteListing))
	mux.Handle("GET /my-orders", protect(deps.Storefront.MyOrders))
	mux.Handle("GET /my-orders/export", protect(deps.Storefront.ExportOrders))

	// Admin dashboard
	if deps.Admin != nil {
		adminAuth := deps.Admin.BasicAuth()
		mux.Handle("GET /admin", adminAuth(http.HandlerFunc(deps.Admin.Dashboard)))
		mux.Handle("POST /admin/users/{id}/toggle", adminAuth(http.HandlerFunc(deps.Admin.ToggleUser)))
		mux.Handle("POST /admin/users/{id}/revoke", adminAuth(http.HandlerFunc(deps.Admin.RevokeUser)))
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		json.Write(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	handler := ChainMiddleware(mux,
		RecoverMiddleware(),
		LoggerMiddleware("http"),
		SecurityHeadersMiddleware(),
		SessionMiddleware(deps.Cookies, deps.Manager),
	)

	return &HTTPServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler exposes the assembled handler, for tests
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until the listener fails or Shutdown is called
func (s *HTTPServer) Start() error {
	log.LogInfoWithFields("server", "HTTP server listening", map[string]any{
		"addr": s.server.Addr,
	})
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
