// Package server coordinates client registration, room membership, message
// dispatch, and broadcast delivery for the chat relay via the Hub type.
package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/paxest/chatrelay/internal/protocol"
	"github.com/paxest/chatrelay/internal/store"
)

// inboundFrame is one raw client frame queued for the hub's event loop.
type inboundFrame struct {
	sender  *Client
	payload []byte
}

// Hub owns every piece of relay state: the connection registry, the room
// list, and per-room history. All mutations happen on the Run goroutine, so
// events from different connections are processed one at a time and the
// registries never see interleaved updates.
type Hub struct {
	clients map[*Client]bool
	rooms   []string
	history map[string][]protocol.Message

	store      *store.Store
	syncWrites bool
	logger     *slog.Logger

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundFrame

	mutex  sync.RWMutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a Hub seeded with a previously loaded document. The store
// may be nil, in which case mutations are kept in memory only; this is how
// tests run the hub without touching the filesystem.
func NewHub(doc store.Document, st *store.Store) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	rooms := append([]string(nil), doc.Rooms...)
	history := make(map[string][]protocol.Message, len(doc.ChatHistory))
	for room, messages := range doc.ChatHistory {
		history[room] = append([]protocol.Message(nil), messages...)
	}

	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      rooms,
		history:    history,
		store:      st,
		syncWrites: currentConfig().PersistSync,
		logger:     slog.Default(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundFrame),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// GetRegisterChan returns the channel used for registering new clients.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for unregistering clients.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// Rooms returns the known room names in creation order.
func (h *Hub) Rooms() []string {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return append([]string(nil), h.rooms...)
}

// History returns a copy of one room's message history.
func (h *Hub) History(room string) []protocol.Message {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return append([]protocol.Message(nil), h.history[room]...)
}

// Run starts the hub's event loop, handling registration, unregistration,
// and inbound frames. Call it in its own goroutine; it runs until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.logger.Warn("received nil client registration, skipping")
				continue
			}
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case frame := <-h.inbound:
			h.dispatch(frame.sender, frame.payload)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mutex.Lock()
	client.closed = false
	h.clients[client] = true
	clientCount := len(h.clients)
	h.mutex.Unlock()
	h.logger.Info("client registered", "client", client.id, "addr", client.addr, "total", clientCount)

	// Clients without a transport take part in tests only; they have no pumps.
	if client.conn == nil {
		return
	}

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

// removeClient drops a connection from the registry. If the connection was in
// a room, the room's remaining members get a fresh user list.
func (h *Hub) removeClient(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client)
	client.closed = true
	clientCount := len(h.clients)
	h.mutex.Unlock()

	close(client.send)
	h.logger.Info("client unregistered", "client", client.id, "addr", client.addr, "total", clientCount)

	if client.room != "" {
		room := client.room
		client.room = ""
		h.broadcastUserList(room)
	}
}

// persist pushes the current document to the store. By default the write is
// fire-and-forget: the triggering event's broadcast does not wait for the
// disk, so a crash between mutation and write can lose the latest change.
// PersistSync trades that latency for write-before-broadcast durability.
func (h *Hub) persist() {
	if h.store == nil {
		return
	}

	h.mutex.RLock()
	snapshot := store.Document{Rooms: h.rooms, ChatHistory: h.history}.Clone()
	h.mutex.RUnlock()

	if h.syncWrites {
		if err := h.store.Save(snapshot); err != nil {
			h.logger.Error("saving chat data failed", "error", err)
		}
		return
	}
	h.store.Enqueue(snapshot)
}

func (h *Hub) shutdownClients() {
	h.logger.Info("shutting down all client connections")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				h.logger.Warn("closing client connection failed", "addr", client.addr, "error", err)
			}
		}
	}

	h.logger.Info("closed client connections", "count", len(clients))
}

// Shutdown stops the event loop and waits for the client goroutines to
// finish, or until the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.logger.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
