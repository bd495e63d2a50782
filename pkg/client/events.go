package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Event is an operation event pushed by the server.
type Event struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Watch connects to the server's WebSocket endpoint and calls fn for every
// event until ctx is cancelled or the connection drops. It returns nil when
// ctx ends the watch.
func (c *Client) Watch(ctx context.Context, fn func(Event)) error {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPClient: c.wsHTTPClient()})
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ce websocket.CloseError
			if errors.As(err, &ce) && ce.Code == websocket.StatusGoingAway {
				return nil
			}
			return err
		}
		if f.Type != "event" {
			continue
		}
		var ev Event
		if err := json.Unmarshal(f.Payload, &ev); err != nil {
			continue
		}
		fn(ev)
	}
}

// wsHTTPClient drops the overall request timeout, which would otherwise cut
// the long-lived connection.
func (c *Client) wsHTTPClient() *http.Client {
	hc := *c.httpClient
	hc.Timeout = 0
	return &hc
}
