package audionode

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithSearchPrefix cambia la fuente para queries que no son URL (ytsearch, scsearch…).
func WithSearchPrefix(p string) Option {
	return func(c *Client) { c.searchPrefix = p }
}

// WithReconnect fija el backoff del websocket (base y tope).
func WithReconnect(base, max time.Duration) Option {
	return func(c *Client) {
		if base > 0 {
			c.backoffBase = base
		}
		if max >= c.backoffBase {
			c.backoffMax = max
		}
	}
}
