package chat

import (
	"context"

	"github.com/coder/websocket"
)

// DialWebSocket is the production Dialer, backed by coder/websocket.
func DialWebSocket(ctx context.Context, rawURL string) (Conn, error) {
	ws, _, err := websocket.Dial(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return &wsConn{conn: ws}, nil
}

// wsConn adapts websocket.Conn to the session's Conn interface. Frames are
// text frames carrying JSON.
type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	return data, err
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "session closed")
}
