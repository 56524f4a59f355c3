package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"convtrack/cli/internal/httperrors"
	"convtrack/cli/internal/manifest"
)

const maxErrorBody = 512

// HTTP implements API over the REST endpoints of the conversion backend.
type HTTP struct {
	// baseURL is the base URL for all HTTP requests (e.g., "http://localhost:8000")
	baseURL string
	// endpoints contains the URL paths for the API endpoints
	endpoints manifest.HTTPEndpoints
	// client is the underlying HTTP client with configured timeout
	client *http.Client

	mu      sync.RWMutex
	session string
}

var _ API = (*HTTP)(nil)

// newHTTP creates a new HTTP client with the given base URL and endpoints.
// It configures a 30-second timeout for all requests.
func newHTTP(baseURL string, endpoints manifest.HTTPEndpoints) *HTTP {
	return &HTTP{
		baseURL:   strings.TrimRight(baseURL, "/"),
		endpoints: endpoints,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// BaseURL returns the backend base URL without a trailing slash.
func (h *HTTP) BaseURL() string { return h.baseURL }

// SetSession replaces the session cookie sent with requests.
func (h *HTTP) SetSession(session string) {
	h.mu.Lock()
	h.session = session
	h.mu.Unlock()
}

// Session returns the current session cookie value.
func (h *HTTP) Session() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.session
}

// send performs a request and returns the response when its status is 2xx.
// Any other status is returned as *httperrors.StatusError; 404 also matches
// ErrNotFound and 401 matches ErrUnauthorized.
func (h *HTTP) send(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	target := h.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	h.setStandardHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"method":  method,
		"path":    path,
		"status":  resp.StatusCode,
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Debug("backend request")

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	se := &httperrors.StatusError{
		Method: method,
		URL:    h.baseURL + path,
		Code:   resp.StatusCode,
		Body:   strings.TrimSpace(string(b)),
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %w", ErrNotFound, se)
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, se)
	}
	return nil, se
}

// call performs a request and decodes a JSON response into out when non-nil.
func (h *HTTP) call(ctx context.Context, method, path string, query url.Values, body, out any) error {
	resp, err := h.send(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (h *HTTP) setStandardHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "convtrack-cli/1.0")
	if s := h.Session(); s != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: s})
	}
}
