package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"convtrack/cli/internal/conversion"
	"convtrack/cli/internal/httperrors"
	"convtrack/cli/internal/manifest"
)

// SSETransport reads server-sent events over HTTP.
type SSETransport struct {
	BaseURL  string
	Manifest *manifest.Manifest
	Session  string
	// Client defaults to a client without timeout; streams are long-lived.
	Client *http.Client
}

func (t *SSETransport) Connect(ctx context.Context, spec conversion.JobSpec, txID string) (Conn, error) {
	target, err := StreamURL(t.BaseURL, t.Manifest, spec, txID)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("User-Agent", "convtrack-cli/1.0")
	if t.Session != "" {
		req.AddCookie(&http.Cookie{Name: "AuthSession", Value: t.Session})
	}

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, streamStatusError(target, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return &sseConn{body: resp.Body, r: bufio.NewReaderSize(resp.Body, 64<<10)}, nil
}

type sseConn struct {
	body io.ReadCloser
	r    *bufio.Reader
	// err is returned once the data unit read alongside it was delivered.
	err error
}

// Next returns the data of the next event. Multi-line data is joined with
// "\n"; comments and the event, id and retry fields are ignored.
func (c *sseConn) Next() (string, error) {
	if c.err != nil {
		return "", c.err
	}
	var data []string
	for {
		line, err := c.r.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line == "" && err == nil {
			if len(data) > 0 {
				return strings.Join(data, "\n"), nil
			}
			continue
		}
		if line != "" && !strings.HasPrefix(line, ":") {
			field, value, _ := strings.Cut(line, ":")
			if field == "data" {
				data = append(data, strings.TrimPrefix(value, " "))
			}
		}
		if err != nil {
			if len(data) > 0 {
				c.err = err
				return strings.Join(data, "\n"), nil
			}
			return "", err
		}
	}
}

func (c *sseConn) Close() error { return c.body.Close() }

var _ Conn = (*sseConn)(nil)

func streamStatusError(target string, code int, body string) error {
	return fmt.Errorf("open stream: %w", &httperrors.StatusError{Method: http.MethodGet, URL: target, Code: code, Body: body})
}
