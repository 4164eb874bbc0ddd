// Package server delivers encoded frames to computed audiences: every live
// connection, or the members of one room. Delivery is best-effort; a failed
// send skips the connection and never blocks the others.
package server

import (
	"github.com/samber/lo"

	"github.com/paxest/chatrelay/internal/protocol"
)

// sendTo queues a frame for one connection. It returns false when the client
// is gone or its send buffer is full; the caller decides whether that client
// should be removed.
func (h *Hub) sendTo(client *Client, payload []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Warn("recovered from panic while sending", "panic", r)
		}
	}()

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if _, exists := h.clients[client]; !exists || client.closed {
		return false
	}

	select {
	case client.send <- payload:
		return true
	default:
		return false
	}
}

// sendOrDrop queues a frame for one connection and removes the connection
// when it cannot be delivered, so single-recipient replays follow the same
// best-effort rules as the broadcast paths.
func (h *Hub) sendOrDrop(client *Client, payload []byte) {
	if !h.sendTo(client, payload) {
		h.removeFailedClients([]*Client{client})
	}
}

// broadcastAll delivers a frame to every registered connection.
func (h *Hub) broadcastAll(payload []byte) {
	h.deliver(h.clientSnapshot(), payload)
}

// broadcastToRoom delivers a frame to the connections currently in roomName.
func (h *Hub) broadcastToRoom(roomName string, payload []byte) {
	audience := lo.Filter(h.clientSnapshot(), func(c *Client, _ int) bool {
		return c.room == roomName
	})
	h.deliver(audience, payload)
}

// broadcastUserList recomputes one room's member names and sends the list to
// everyone in that room. A single snapshot feeds both the name list and the
// delivery, so the membership seen is consistent within the pass.
func (h *Hub) broadcastUserList(roomName string) {
	audience := lo.Filter(h.clientSnapshot(), func(c *Client, _ int) bool {
		return c.room == roomName
	})
	users := lo.Map(audience, func(c *Client, _ int) string {
		return c.username
	})
	h.deliver(audience, protocol.EncodeUserList(users))
}

func (h *Hub) deliver(audience []*Client, payload []byte) {
	var failed []*Client
	for _, client := range audience {
		if !h.sendTo(client, payload) {
			failed = append(failed, client)
		}
	}
	h.removeFailedClients(failed)
}

func (h *Hub) clientSnapshot() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

// removeFailedClients drops clients whose send buffers were full and closes
// their channels so the write pumps wind down.
func (h *Hub) removeFailedClients(failed []*Client) {
	if len(failed) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	var vacatedRooms []string
	for _, client := range failed {
		if _, exists := h.clients[client]; exists {
			delete(h.clients, client)
			client.closed = true
			channelsToClose = append(channelsToClose, client.send)
			if client.room != "" {
				vacatedRooms = append(vacatedRooms, client.room)
				client.room = ""
			}
			h.logger.Warn("client removed due to full send buffer", "client", client.id, "addr", client.addr)
		}
	}
	h.mutex.Unlock()

	// Close the channels after releasing the lock.
	for _, ch := range channelsToClose {
		close(ch)
	}

	// Rooms the removed clients were in need a fresh member list. Each pass
	// only ever shrinks the registry, so this recursion terminates.
	for _, room := range lo.Uniq(vacatedRooms) {
		h.broadcastUserList(room)
	}
}
