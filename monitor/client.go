package monitor

import (
	"context"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// Client reads frames from a monitor endpoint.
type Client struct {
	conn *websocket.Conn
}

func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", url)
	}
	return &Client{conn: conn}, nil
}

// Next blocks until the next frame arrives.
func (c *Client) Next() (Frame, error) {
	var f Frame
	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		return f, errors.Wrap(err, "read frame")
	}
	if err := json.Unmarshal(msg, &f); err != nil {
		return f, errors.Wrap(err, "decode frame")
	}
	return f, nil
}

func (c *Client) Close() error {
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}
