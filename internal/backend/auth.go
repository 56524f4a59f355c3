package backend

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Ping calls the health endpoint. No authentication required.
func (h *HTTP) Ping(ctx context.Context) error {
	return h.call(ctx, http.MethodGet, h.endpoints.Health, nil, nil, nil)
}

// Login posts the credentials and returns the AuthSession cookie set by the
// backend together with the user name it reports. The client keeps using
// the new session for subsequent requests.
func (h *HTTP) Login(ctx context.Context, email, password string) (string, string, error) {
	body := map[string]string{"email": email, "password": password}
	resp, err := h.send(ctx, http.MethodPost, h.endpoints.Login, nil, body)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	var session string
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie && c.Value != "" {
			session = c.Value
			break
		}
	}
	if session == "" {
		return "", "", errors.New("login succeeded but no session cookie was returned")
	}

	var out struct {
		Name string `json:"name"`
	}
	if err := decodeBody(resp, &out); err != nil {
		return "", "", err
	}
	name := strings.TrimSpace(out.Name)
	if name == "" {
		name = email
	}

	h.SetSession(session)
	return session, name, nil
}

// Logout invalidates the session on the backend and forgets it locally.
func (h *HTTP) Logout(ctx context.Context) error {
	err := h.call(ctx, http.MethodPost, h.endpoints.Logout, nil, nil, nil)
	h.SetSession("")
	return err
}

// Account returns the user of the current session.
func (h *HTTP) Account(ctx context.Context) (Account, error) {
	var acc Account
	if h.Session() == "" {
		return acc, ErrUnauthorized
	}
	err := h.call(ctx, http.MethodGet, h.endpoints.Account, nil, nil, &acc)
	return acc, err
}
