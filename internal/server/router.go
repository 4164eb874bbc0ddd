// Package server routes decoded client frames to registry and store
// operations and computes the outbound broadcasts they produce.
package server

import (
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/paxest/chatrelay/internal/protocol"
)

// dispatch decodes one raw frame and applies it. Malformed or unknown frames
// are logged and dropped; the connection stays open. Runs only on the hub's
// event loop.
func (h *Hub) dispatch(sender *Client, raw []byte) {
	evt, err := protocol.Decode(raw)
	if err != nil {
		h.logger.Warn("dropping bad frame", "client", sender.id, "error", err)
		return
	}

	switch evt := evt.(type) {
	case protocol.NewUser:
		h.handleNewUser(sender, evt)
	case protocol.CreateRoom:
		h.handleCreateRoom(evt)
	case protocol.JoinRoom:
		h.handleJoinRoom(sender, evt)
	case protocol.LeaveRoom:
		h.handleLeaveRoom(sender)
	case protocol.ChatMessage:
		h.handleChatMessage(sender, evt)
	default:
		// Decode only returns the types above; a new event type added there
		// must be handled here.
		h.logger.Error("unhandled frame type", "client", sender.id)
	}
}

// handleNewUser records the connection's display name and replays the known
// rooms to it, one announcement per frame.
func (h *Hub) handleNewUser(sender *Client, evt protocol.NewUser) {
	name := strings.TrimSpace(evt.Username)
	if name == "" {
		name = DefaultUsername
	}
	sender.username = name
	h.logger.Info("client identified", "client", sender.id, "username", name)

	for _, room := range h.Rooms() {
		h.sendOrDrop(sender, protocol.EncodeNewRoom(room))
	}
}

// handleCreateRoom adds a room if the name is new, persists the document, and
// announces the room to every connection. Duplicate names are a no-op.
func (h *Hub) handleCreateRoom(evt protocol.CreateRoom) {
	name := strings.TrimSpace(evt.Room)
	if name == "" {
		h.logger.Warn("dropping create-room frame with blank name")
		return
	}

	h.mutex.Lock()
	if lo.Contains(h.rooms, name) {
		h.mutex.Unlock()
		return
	}
	h.rooms = append(h.rooms, name)
	h.mutex.Unlock()

	h.logger.Info("room created", "room", name)
	h.persist()
	h.broadcastAll(protocol.EncodeNewRoom(name))
}

// handleJoinRoom moves the sender into a room, replays that room's history to
// the sender alone, and refreshes the member list for everyone in the room.
// The room does not have to exist yet; joining an unknown name simply starts
// it with an empty history.
func (h *Hub) handleJoinRoom(sender *Client, evt protocol.JoinRoom) {
	room := strings.TrimSpace(evt.Room)
	if room == "" {
		h.logger.Warn("dropping join-room frame with blank name", "client", sender.id)
		return
	}

	sender.room = room
	h.logger.Info("client joined room", "client", sender.id, "username", sender.username, "room", room)

	h.sendOrDrop(sender, protocol.EncodeHistory(room, h.History(room)))
	h.broadcastUserList(room)
}

// handleLeaveRoom clears the sender's membership and refreshes the member
// list for the room it vacated.
func (h *Hub) handleLeaveRoom(sender *Client) {
	room := sender.room
	if room == "" {
		return
	}

	sender.room = ""
	h.logger.Info("client left room", "client", sender.id, "username", sender.username, "room", room)
	h.broadcastUserList(room)
}

// handleChatMessage appends a message to its room's history, persists the
// document, and delivers the message to the room's current members. Only a
// sender that is in a room can post, and the frame must name that room; the
// relay is authoritative for the author name, and the client timestamp is
// kept only when it parses.
func (h *Hub) handleChatMessage(sender *Client, evt protocol.ChatMessage) {
	text := strings.TrimSpace(evt.Text)
	if text == "" {
		h.logger.Warn("dropping message frame with blank text", "client", sender.id)
		return
	}
	if sender.room == "" {
		h.logger.Warn("dropping message from a client not in any room", "client", sender.id)
		return
	}
	if evt.Room != sender.room {
		h.logger.Warn("dropping message for a room the sender is not in",
			"client", sender.id, "claimed", evt.Room, "actual", sender.room)
		return
	}

	msg := protocol.Message{
		Username: sender.username,
		Text:     text,
		Time:     messageTime(evt.Time),
		Room:     sender.room,
	}

	h.mutex.Lock()
	h.history[msg.Room] = append(h.history[msg.Room], msg)
	h.mutex.Unlock()

	h.persist()
	h.broadcastToRoom(msg.Room, protocol.EncodeMessage(msg))
}

// messageTime keeps the client-supplied timestamp when it is valid ISO-8601,
// otherwise substitutes the server clock.
func messageTime(clientTime string) string {
	if _, err := time.Parse(time.RFC3339, clientTime); err == nil {
		return clientTime
	}
	return time.Now().UTC().Format(time.RFC3339Nano)
}
