package peer

import (
	"context"
	"fmt"
	"sync"

	"lanquiz/api"

	"github.com/coder/websocket"
)

// Client connects a peer to a quiz host over websocket and pumps
// received GameMessages into its Reflector.
type Client struct {
	conn      *websocket.Conn
	Reflector *Reflector

	wmu sync.Mutex
}

// ClientOptions configures a peer client.
type ClientOptions struct {
	// OnChange receives view updates, see ReflectorOptions.
	OnChange func(View)
}

// Dial connects to the host websocket endpoint at addr (host:port).
func Dial(ctx context.Context, addr string, opts ClientOptions) (*Client, error) {
	u := fmt.Sprintf("ws://%s/session", addr)
	conn, _, err := websocket.Dial(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("dial host: %w", err)
	}

	c := &Client{conn: conn}
	c.Reflector = NewReflector(ReflectorOptions{
		Sender:   c,
		OnChange: opts.OnChange,
	})

	return c, nil
}

// Send delivers one encoded PlayerMessage to the host.
func (c *Client) Send(ctx context.Context, b []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.conn.Write(ctx, websocket.MessageText, b)
}

// Run reads host messages until the connection closes or ctx is
// cancelled. A single undecodable message is dropped, not fatal.
func (c *Client) Run(ctx context.Context) error {
	for {
		_, b, err := c.conn.Read(ctx)
		if err != nil {
			return err
		}
		msg, err := api.DecodeGameMessage(b)
		if err != nil {
			continue
		}
		c.Reflector.Apply(msg)
	}
}

// Close closes the websocket.
func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "peer leaving")
}
