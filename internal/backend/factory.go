// Copyright (c) 2025 Convtrack
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"net/http"
	"time"

	"convtrack/cli/internal/manifest"
)

// Option configures the HTTP client.
type Option func(*HTTP)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(h *HTTP) {
		if d > 0 {
			h.client.Timeout = d
		}
	}
}

// WithSession attaches a session cookie to every request.
func WithSession(session string) Option {
	return func(h *HTTP) { h.session = session }
}

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTP) {
		if c != nil {
			h.client = c
		}
	}
}

// New creates a backend API implementation with manifest endpoints.
func New(baseURL string, endpoints manifest.HTTPEndpoints, opts ...Option) *HTTP {
	h := newHTTP(baseURL, endpoints)
	for _, opt := range opts {
		opt(h)
	}
	return h
}
