package host

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"claude-ptyhost/terminal"
)

// Client is a websocket client for a Server.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Dial connects to the /v1/pty endpoint under baseURL. http and https URLs are
// rewritten to ws and wss.
func Dial(ctx context.Context, baseURL string, query url.Values) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/v1/pty"
	u.RawQuery = query.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PTY: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Next blocks for the next server frame.
func (c *Client) Next() (ServerFrame, error) {
	var f ServerFrame
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return f, err
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("invalid server frame: %w", err)
	}
	return f, nil
}

func (c *Client) send(f ClientFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(f)
}

func (c *Client) SendKey(k terminal.KeyEvent) error {
	return c.send(ClientFrame{Type: FrameKey, Key: &k})
}

func (c *Client) SendInput(data string) error {
	return c.send(ClientFrame{Type: FrameInput, Data: data})
}

func (c *Client) Resize(cols, rows int) error {
	return c.send(ClientFrame{Type: FrameResize, Cols: cols, Rows: rows})
}

func (c *Client) Close() error {
	return c.conn.Close()
}
