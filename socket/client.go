package socket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"collabdocs/internal/document/model"
	"collabdocs/pkg/docerr"
	"collabdocs/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type cursorPayload struct {
	CursorPos int `json:"cursor_pos"`
}

// ServeWs subscribes the caller to pushes for the document named by the docId
// query parameter. Only the owner and collaborators may subscribe.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, actor model.Identity) {
	docID := r.URL.Query().Get("docId")
	if docID == "" {
		http.Error(w, "Missing docId parameter", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), writeWait)
	doc, err := hub.loader.Get(ctx, docID)
	cancel()
	if err != nil {
		status := http.StatusInternalServerError
		switch docerr.Classify(err) {
		case docerr.KindNotFound:
			status = http.StatusNotFound
		case docerr.KindUnreachable:
			status = http.StatusServiceUnavailable
		case docerr.KindPermission:
			status = http.StatusForbidden
		}
		logger.Sugar.Warnf("Connection rejected: failed to load document %s: %v", docID, err)
		http.Error(w, http.StatusText(status), status)
		return
	}
	if !doc.HasMember(actor.Email) {
		logger.Sugar.Warnf("Connection rejected: %s is not a member of %s", actor.Email, docID)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	client := &Client{
		Hub:      hub,
		Conn:     conn,
		DocID:    docID,
		Identity: actor,
		Send:     make(chan []byte, 256),
		snapshot: doc,
	}

	select {
	case hub.Register <- client:
	case <-hub.stopped:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump relays cursor moves to the rest of the room. Document writes go
// through the REST API, never through the socket.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.Unregister <- c:
		case <-c.Hub.stopped:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, rawMessage, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("error: %v", err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(rawMessage, &msg); err != nil {
			logger.Sugar.Errorf("Error unmarshalling message: %v", err)
			continue
		}

		// Server-authoritative fields.
		msg.DocID = c.DocID
		msg.From = c.Identity.Email

		switch msg.Type {
		case CursorType:
			var cur cursorPayload
			if err := json.Unmarshal(msg.Payload, &cur); err != nil {
				logger.Sugar.Warnf("Bad cursor payload from %s: %v", c.Identity.Email, err)
				continue
			}
			c.Hub.updateCursor(c, cur.CursorPos)
		default:
			logger.Sugar.Warnf("Ignoring %q message from %s on doc %s", msg.Type, c.Identity.Email, c.DocID)
			continue
		}

		select {
		case c.Hub.Broadcast <- msg:
		case <-c.Hub.stopped:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
