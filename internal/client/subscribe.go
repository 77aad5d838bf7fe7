package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"collabdocs/internal/document/model"
	"collabdocs/pkg/docerr"
	"collabdocs/pkg/logger"
	"collabdocs/socket"

	"github.com/gorilla/websocket"
)

// Subscribe opens the websocket push channel for id. The server sends the
// current state first, then every persisted write.
func (c *Client) Subscribe(ctx context.Context, id string) (<-chan model.Update, error) {
	wsURL, err := c.websocketURL(id)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	dialer := websocket.Dialer{HandshakeTimeout: defaultHttpConnectTimeout}
	conn, resp, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, statusError(resp.StatusCode, nil)
		}
		return nil, fmt.Errorf("%w: subscribe %s: %v", docerr.ErrStoreUnreachable, id, err)
	}

	out := make(chan model.Update)
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			conn.Close()
		case <-stop:
		}
	}()

	go func() {
		defer close(out)
		defer close(stop)
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				select {
				case out <- model.Update{Err: streamError(id, err)}:
				case <-ctx.Done():
				}
				return
			}

			var msg socket.WSMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				logger.Sugar.Warnf("Unreadable push on %s: %v", id, err)
				continue
			}
			if msg.Type != socket.SnapshotType {
				continue
			}
			var doc model.Snapshot
			if err := json.Unmarshal(msg.Payload, &doc); err != nil {
				logger.Sugar.Warnf("Unreadable snapshot on %s: %v", id, err)
				continue
			}
			select {
			case out <- model.Update{Snapshot: doc}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *Client) websocketURL(id string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("%w: bad server url %q: %v", docerr.ErrValidation, c.baseURL, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"docId": {id}}.Encode()
	return u.String(), nil
}

func streamError(id string, err error) error {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		if closeErr.Code == socket.CloseDocumentDeleted {
			return fmt.Errorf("%w: %s was deleted", docerr.ErrNotFound, id)
		}
	}
	return fmt.Errorf("%w: push channel for %s: %v", docerr.ErrStoreUnreachable, id, err)
}
