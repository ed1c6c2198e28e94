package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"audit-trail/pkg/db"
)

// Message types sent to feed clients.
const (
	TypeSnapshot       = "snapshot"
	TypeVersionSaved   = "version_saved"
	TypeVersionDeleted = "version_deleted"
	TypePing           = "ping"
	TypePong           = "pong"
)

const snapshotTimeout = 5 * time.Second

// SnapshotFunc returns the versions a newly connected client starts from.
type SnapshotFunc func(ctx context.Context) ([]*db.Version, error)

// Hub fans version events out to every connected display client.
type Hub struct {
	clients    map[string]*Client
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	snapshot   SnapshotFunc
	logger     *slog.Logger
	mutex      sync.RWMutex
}

// NewHub creates a hub. snapshot may be nil, in which case new clients
// start from an empty list.
func NewHub(snapshot SnapshotFunc, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		snapshot:   snapshot,
		logger:     logger,
	}
}

// Run handles registration and broadcasts until ctx is cancelled, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("panic in feed hub", "panic", rec, "stack", string(debug.Stack()))
		}
		h.shutdown()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client.ID] = client
			h.mutex.Unlock()
			h.sendSnapshot(ctx, client)
			h.logger.Debug("feed client joined", "client", client.ID)

		case client := <-h.unregister:
			h.removeClient(client)
			h.logger.Debug("feed client left", "client", client.ID)

		case message := <-h.broadcast:
			h.mutex.Lock()
			for id, client := range h.clients {
				select {
				case client.Send <- message:
				default:
					h.logger.Warn("dropping slow feed client", "client", id)
					close(client.Send)
					delete(h.clients, id)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// PublishSaved announces a newly stored version.
func (h *Hub) PublishSaved(v *db.Version) {
	h.publish(map[string]interface{}{
		"type":    TypeVersionSaved,
		"version": v.WithoutContent(),
	})
}

// PublishDeleted announces the removal of a version.
func (h *Hub) PublishDeleted(id string) {
	h.publish(map[string]interface{}{
		"type": TypeVersionDeleted,
		"id":   id,
	})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) publish(message map[string]interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("encode feed message", "type", message["type"], "error", err)
		return
	}

	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}

func (h *Hub) sendSnapshot(ctx context.Context, c *Client) {
	versions := []*db.Version{}
	if h.snapshot != nil {
		snapCtx, cancel := context.WithTimeout(ctx, snapshotTimeout)
		all, err := h.snapshot(snapCtx)
		cancel()
		if err != nil {
			h.logger.Error("load feed snapshot", "client", c.ID, "error", err)
		} else {
			for _, v := range all {
				versions = append(versions, v.WithoutContent())
			}
		}
	}

	msg, err := json.Marshal(map[string]interface{}{
		"type":     TypeSnapshot,
		"versions": versions,
	})
	if err != nil {
		h.logger.Error("encode feed snapshot", "error", err)
		return
	}

	select {
	case c.Send <- msg:
	default:
		h.logger.Warn("feed client buffer full before snapshot", "client", c.ID)
	}
}

func (h *Hub) removeClient(c *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[c.ID]; ok {
		delete(h.clients, c.ID)
		close(c.Send)
	}
}

func (h *Hub) shutdown() {
	h.mutex.Lock()
	for id, client := range h.clients {
		close(client.Send)
		delete(h.clients, id)
	}
	h.mutex.Unlock()
	close(h.done)
}
