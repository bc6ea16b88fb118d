// Package gateway is the single HTTP path to the resource backend.
//
// Every call reads the caller's session snapshot fresh, mints a bearer
// credential when one is available, and maps backend failures to typed
// errors. It never retries and never caches.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/pawmart/pawfront/internal/log"
	"github.com/pawmart/pawfront/internal/session"
	"github.com/pawmart/pawfront/internal/urlutil"
)

// SnapshotSource supplies the session snapshot for one request
type SnapshotSource interface {
	Snapshot() session.Snapshot
}

// RequestError is a non-2xx response from the resource backend
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("backend request failed (%d): %s", e.Status, e.Message)
}

// Result is a successful backend response. JSON bodies arrive in Data;
// anything else arrives as raw Text.
type Result struct {
	Status int
	Data   json.RawMessage
	Text   string
}

// Decode unmarshals a JSON result into v
func (r *Result) Decode(v any) error {
	if r.Data == nil {
		return fmt.Errorf("response was not JSON")
	}
	return json.Unmarshal(r.Data, v)
}

// Gateway calls the resource backend
type Gateway struct {
	baseURL string
	client  *http.Client
}

// New creates a gateway for the given backend base URL.
// Pass nil to use http.DefaultClient.
func New(baseURL string, client *http.Client) *Gateway {
	if client == nil {
		client = http.DefaultClient
	}
	return &Gateway{baseURL: baseURL, client: client}
}

// Call performs one backend request on behalf of the given session.
//
// The snapshot is read fresh here, not captured earlier: a call issued just
// after sign-out must go out unauthenticated. Credential minting failure
// also degrades to an unauthenticated request; if the backend then rejects
// it, that rejection surfaces normally as a RequestError.
func (g *Gateway) Call(ctx context.Context, source SnapshotSource, method, path string, body any) (*Result, error) {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlutil.Join(g.baseURL, path), reqBody)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if snapshot := source.Snapshot(); snapshot.Status == session.StatusAuthenticated {
		token, err := snapshot.Principal.Credential(ctx, false)
		if err != nil {
			log.LogWarnWithFields("gateway", "Credential minting failed, proceeding unauthenticated", map[string]any{
				"path":  path,
				"error": err.Error(),
			})
		} else {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling backend: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading backend response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RequestError{
			Status:  resp.StatusCode,
			Message: errorMessage(resp.StatusCode, raw),
		}
	}

	result := &Result{Status: resp.StatusCode}
	if isJSON(resp.Header.Get("Content-Type"), raw) {
		result.Data = json.RawMessage(raw)
	} else {
		result.Text = string(raw)
	}
	return result, nil
}

// Get is shorthand for Call with GET and no body
func (g *Gateway) Get(ctx context.Context, source SnapshotSource, path string) (*Result, error) {
	return g.Call(ctx, source, http.MethodGet, path, nil)
}

// Post is shorthand for Call with POST
func (g *Gateway) Post(ctx context.Context, source SnapshotSource, path string, body any) (*Result, error) {
	return g.Call(ctx, source, http.MethodPost, path, body)
}

// Put is shorthand for Call with PUT
func (g *Gateway) Put(ctx context.Context, source SnapshotSource, path string, body any) (*Result, error) {
	return g.Call(ctx, source, http.MethodPut, path, body)
}

// Delete is shorthand for Call with DELETE and no body
func (g *Gateway) Delete(ctx context.Context, source SnapshotSource, path string) (*Result, error) {
	return g.Call(ctx, source, http.MethodDelete, path, nil)
}

// errorMessage extracts a human message from an error response body,
// falling back to the HTTP status text
func errorMessage(status int, raw []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}

	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("request failed with status %d", status)
}

func isJSON(contentType string, raw []byte) bool {
	if len(raw) == 0 {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err == nil && mediaType == "application/json" {
		return true
	}
	// Some backends omit the header; fall back to sniffing
	return json.Valid(raw)
}
