package stream

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"convtrack/cli/internal/conversion"
	"convtrack/cli/internal/manifest"
)

// WebSocketTransport reads the stream endpoints over a WebSocket, one text
// message per data unit.
type WebSocketTransport struct {
	BaseURL  string
	Manifest *manifest.Manifest
	Session  string
	Dialer   *websocket.Dialer
}

func (t *WebSocketTransport) Connect(ctx context.Context, spec conversion.JobSpec, txID string) (Conn, error) {
	target, err := StreamURL(t.BaseURL, t.Manifest, spec, txID)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}

	header := http.Header{}
	header.Set("User-Agent", "convtrack-cli/1.0")
	if t.Session != "" {
		header.Set("Cookie", (&http.Cookie{Name: "AuthSession", Value: t.Session}).String())
	}

	dialer := t.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			defer resp.Body.Close()
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, streamStatusError(target, resp.StatusCode, strings.TrimSpace(string(b)))
		}
		return nil, err
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Next() (string, error) {
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return "", io.EOF
			}
			return "", err
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return string(data), nil
		}
	}
}

func (c *wsConn) Close() error { return c.conn.Close() }
