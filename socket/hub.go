package socket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"collabdocs/internal/document/model"
	"collabdocs/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	SnapshotType       = "SNAPSHOT"        // Persisted document state
	CursorType         = "CURSOR"          // User moved their cursor
	PresenceUpdateType = "PRESENCE_UPDATE" // A user joined or left

	// CloseDocumentDeleted is sent to every client of a room when its
	// document is deleted. Non-members never get as far as a socket.
	CloseDocumentDeleted = 4404
)

type WSMessage struct {
	Type    string          `json:"type"`
	DocID   string          `json:"document_id"`
	From    string          `json:"from,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type UserStatus struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CursorPos int       `json:"cursor_pos"`
	LastSeen  time.Time `json:"last_seen"`
}

// Loader reads the authoritative state of a document.
type Loader interface {
	Get(ctx context.Context, id string) (model.Snapshot, error)
}

// Feed delivers every persisted snapshot, for all documents.
type Feed interface {
	SubscribeAll(ctx context.Context, handle func(doc model.Snapshot))
}

type Hub struct {
	Rooms      map[string]map[*Client]bool
	Broadcast  chan WSMessage
	Register   chan *Client
	Unregister chan *Client
	remove     chan string
	stopped    chan struct{}
	loader     Loader
	// Latest known snapshot per live room.
	Snapshots map[string]model.Snapshot
	mu        sync.Mutex
	Presence  map[string]map[string]UserStatus // docID -> email -> status
}

type Client struct {
	Hub      *Hub
	Conn     *websocket.Conn
	DocID    string
	Identity model.Identity
	Send     chan []byte
	snapshot model.Snapshot
}

func NewHub(loader Loader) *Hub {
	return &Hub{
		Rooms:      make(map[string]map[*Client]bool),
		Broadcast:  make(chan WSMessage),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		remove:     make(chan string),
		stopped:    make(chan struct{}),
		loader:     loader,
		Snapshots:  make(map[string]model.Snapshot),
		Presence:   make(map[string]map[string]UserStatus),
	}
}

// Run owns room membership. Only one Run may be active per hub.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.Register:
			h.mu.Lock()
			if h.Rooms[client.DocID] == nil {
				h.Rooms[client.DocID] = make(map[*Client]bool)
				h.Presence[client.DocID] = make(map[string]UserStatus)
			}
			h.Rooms[client.DocID][client] = true
			h.Presence[client.DocID][model.NormalizeEmail(client.Identity.Email)] = UserStatus{
				Email:    client.Identity.Email,
				Name:     client.Identity.Name,
				LastSeen: time.Now(),
			}
			current, ok := h.Snapshots[client.DocID]
			if !ok || current.LastUpdatedAt.Before(client.snapshot.LastUpdatedAt) {
				current = client.snapshot
				h.Snapshots[client.DocID] = current
			}
			h.mu.Unlock()

			// The joining client starts from the latest state the hub has seen.
			payload, _ := json.Marshal(current)
			initial, _ := json.Marshal(WSMessage{Type: SnapshotType, DocID: client.DocID, Payload: payload})
			client.Send <- initial

			h.broadcastPresenceUpdate(client.DocID)

		case client := <-h.Unregister:
			docID, roomLeft := h.removeClient(client)
			if roomLeft {
				h.broadcastPresenceUpdate(docID)
			}

		case docID := <-h.remove:
			h.closeRoom(docID)

		case msg := <-h.Broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Sugar.Errorf("Error marshalling broadcast message: %v", err)
				continue
			}

			h.mu.Lock()
			clientsToSend := make([]*Client, 0, len(h.Rooms[msg.DocID]))
			for client := range h.Rooms[msg.DocID] {
				// Relayed messages skip the sender; snapshots go to everyone.
				if msg.From != "" && model.NormalizeEmail(client.Identity.Email) == model.NormalizeEmail(msg.From) {
					continue
				}
				clientsToSend = append(clientsToSend, client)
			}
			h.mu.Unlock()

			for _, client := range clientsToSend {
				select {
				case client.Send <- data:
				default:
					logger.Sugar.Warnf("Client %s's send buffer is full. Unregistering.", client.Identity.Email)
					if docID, roomLeft := h.removeClient(client); roomLeft {
						h.broadcastPresenceUpdate(docID)
					}
				}
			}
		}
	}
}

// removeClient drops client from its room. It reports whether other clients
// are still in the room.
func (h *Hub) removeClient(client *Client) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	docID := client.DocID
	room := h.Rooms[docID]
	if _, ok := room[client]; !ok {
		return docID, false
	}
	delete(room, client)
	close(client.Send)

	key := model.NormalizeEmail(client.Identity.Email)
	stillHere := false
	for other := range room {
		if model.NormalizeEmail(other.Identity.Email) == key {
			stillHere = true
			break
		}
	}
	if !stillHere {
		delete(h.Presence[docID], key)
	}

	if len(room) == 0 {
		delete(h.Rooms, docID)
		delete(h.Presence, docID)
		delete(h.Snapshots, docID)
		logger.Sugar.Infof("Closed and cleaned up empty room: %s", docID)
		return docID, false
	}
	return docID, true
}

// Publish pushes a persisted snapshot to every client viewing it. Snapshots
// older than the one the hub already holds are dropped.
func (h *Hub) Publish(doc model.Snapshot) {
	h.mu.Lock()
	if _, live := h.Rooms[doc.ID]; !live {
		h.mu.Unlock()
		return
	}
	if cur, ok := h.Snapshots[doc.ID]; ok && doc.LastUpdatedAt.Before(cur.LastUpdatedAt) {
		h.mu.Unlock()
		return
	}
	h.Snapshots[doc.ID] = doc.Clone()
	h.mu.Unlock()

	payload, err := json.Marshal(doc)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling snapshot %s: %v", doc.ID, err)
		return
	}
	select {
	case h.Broadcast <- WSMessage{Type: SnapshotType, DocID: doc.ID, Payload: payload}:
	case <-h.stopped:
	}
}

// FeedWorker forwards every snapshot from feed to the live rooms until ctx is
// done.
func (h *Hub) FeedWorker(ctx context.Context, feed Feed) {
	feed.SubscribeAll(ctx, h.Publish)
}

// RemoveDocument disconnects everyone viewing docID. It is called when the
// document is deleted.
func (h *Hub) RemoveDocument(docID string) {
	select {
	case h.remove <- docID:
	case <-h.stopped:
	}
}

func (h *Hub) closeRoom(docID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.Snapshots, docID)
	delete(h.Presence, docID)

	if clients, ok := h.Rooms[docID]; ok {
		msg := websocket.FormatCloseMessage(CloseDocumentDeleted, "document deleted")
		for client := range clients {
			client.Conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			close(client.Send)
			client.Conn.Close()
		}
		delete(h.Rooms, docID)
	}
}

func (h *Hub) updateCursor(client *Client, pos int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := model.NormalizeEmail(client.Identity.Email)
	if status, ok := h.Presence[client.DocID][key]; ok {
		status.CursorPos = pos
		status.LastSeen = time.Now()
		h.Presence[client.DocID][key] = status
	}
}

func (h *Hub) broadcastPresenceUpdate(docID string) {
	var userStatuses []UserStatus
	var clientsToSend []*Client

	h.mu.Lock()
	if _, ok := h.Presence[docID]; ok {
		userStatuses = make([]UserStatus, 0, len(h.Presence[docID]))
		for _, status := range h.Presence[docID] {
			userStatuses = append(userStatuses, status)
		}

		clientsToSend = make([]*Client, 0, len(h.Rooms[docID]))
		for client := range h.Rooms[docID] {
			clientsToSend = append(clientsToSend, client)
		}
	}
	h.mu.Unlock()

	if len(clientsToSend) == 0 {
		return
	}

	payload, err := json.Marshal(userStatuses)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling presence broadcast: %v", err)
		return
	}
	broadcastPayload, _ := json.Marshal(WSMessage{Type: PresenceUpdateType, DocID: docID, Payload: payload})

	for _, client := range clientsToSend {
		select {
		case client.Send <- broadcastPayload:
		default:
			// The pumps deal with unresponsive clients.
			logger.Sugar.Warnf("Client %s's send buffer was full during presence update.", client.Identity.Email)
		}
	}
}
