// Package protocol defines the JSON frames exchanged between the relay and
// its clients, plus the Message record persisted in room history.
//
// Every frame carries a "type" discriminator. Inbound frames decode into a
// closed set of event types so the hub can match on them exhaustively; an
// unknown or malformed frame yields an error instead of a silent fallthrough.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Frame type discriminators, client to server.
const (
	TypeNewUser    = "new-user"
	TypeCreateRoom = "create-room"
	TypeJoinRoom   = "join-room"
	TypeLeaveRoom  = "leave-room"
	TypeMessage    = "message"
)

// Frame type discriminators, server to client.
const (
	TypeNewRoom  = "new-room"
	TypeHistory  = "history"
	TypeUserList = "user-list"
)

// Message is one immutable chat entry in a room's history. Time is an
// ISO-8601 string so the persisted document stays readable and matches what
// browser clients send.
type Message struct {
	Username string `json:"username"`
	Text     string `json:"text"`
	Time     string `json:"time"`
	Room     string `json:"room"`
}

// Event is one decoded client frame. The concrete types are NewUser,
// CreateRoom, JoinRoom, LeaveRoom, and ChatMessage.
type Event interface {
	eventType() string
}

// NewUser announces the client's chosen display name.
type NewUser struct {
	Username string `json:"username"`
}

// CreateRoom asks the relay to create a named room.
type CreateRoom struct {
	Room string `json:"room"`
}

// JoinRoom moves the client into a room.
type JoinRoom struct {
	Room string `json:"room"`
}

// LeaveRoom clears the client's room membership.
type LeaveRoom struct {
	Room string `json:"room"`
}

// ChatMessage carries one chat message for the sender's current room.
type ChatMessage struct {
	Username string `json:"username"`
	Text     string `json:"text"`
	Time     string `json:"time"`
	Room     string `json:"room"`
}

func (NewUser) eventType() string     { return TypeNewUser }
func (CreateRoom) eventType() string  { return TypeCreateRoom }
func (JoinRoom) eventType() string    { return TypeJoinRoom }
func (LeaveRoom) eventType() string   { return TypeLeaveRoom }
func (ChatMessage) eventType() string { return TypeMessage }

type envelope struct {
	Type string `json:"type"`
}

// Decode parses one raw client frame into its typed event. It returns an
// error for invalid JSON, a missing discriminator, or an unknown type; the
// caller logs and drops such frames without closing the connection.
func Decode(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid frame: %w", err)
	}

	switch env.Type {
	case TypeNewUser:
		var evt NewUser
		if err := json.Unmarshal(raw, &evt); err != nil {
			return nil, fmt.Errorf("invalid %s frame: %w", env.Type, err)
		}
		return evt, nil
	case TypeCreateRoom:
		var evt CreateRoom
		if err := json.Unmarshal(raw, &evt); err != nil {
			return nil, fmt.Errorf("invalid %s frame: %w", env.Type, err)
		}
		return evt, nil
	case TypeJoinRoom:
		var evt JoinRoom
		if err := json.Unmarshal(raw, &evt); err != nil {
			return nil, fmt.Errorf("invalid %s frame: %w", env.Type, err)
		}
		return evt, nil
	case TypeLeaveRoom:
		var evt LeaveRoom
		if err := json.Unmarshal(raw, &evt); err != nil {
			return nil, fmt.Errorf("invalid %s frame: %w", env.Type, err)
		}
		return evt, nil
	case TypeMessage:
		var evt ChatMessage
		if err := json.Unmarshal(raw, &evt); err != nil {
			return nil, fmt.Errorf("invalid %s frame: %w", env.Type, err)
		}
		return evt, nil
	case "":
		return nil, fmt.Errorf("frame missing type")
	default:
		return nil, fmt.Errorf("unknown frame type %q", env.Type)
	}
}

// Server frames. Each helper marshals one outbound frame; marshaling these
// fixed shapes cannot fail, so the helpers return the encoded bytes directly.

type newRoomFrame struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

type historyFrame struct {
	Type string    `json:"type"`
	Data []Message `json:"data"`
	Room string    `json:"room"`
}

type userListFrame struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
}

type messageFrame struct {
	Type string  `json:"type"`
	Data Message `json:"data"`
	Room string  `json:"room"`
}

// EncodeNewRoom builds a new-room announcement, one room per frame.
func EncodeNewRoom(room string) []byte {
	return mustMarshal(newRoomFrame{Type: TypeNewRoom, Room: room})
}

// EncodeHistory builds a history frame carrying a room's full message list.
// A nil history is encoded as an empty array, never null.
func EncodeHistory(room string, messages []Message) []byte {
	if messages == nil {
		messages = []Message{}
	}
	return mustMarshal(historyFrame{Type: TypeHistory, Data: messages, Room: room})
}

// EncodeUserList builds a user-list frame for one room's current members.
func EncodeUserList(users []string) []byte {
	if users == nil {
		users = []string{}
	}
	return mustMarshal(userListFrame{Type: TypeUserList, Users: users})
}

// EncodeMessage builds a message frame delivered to a room's members.
func EncodeMessage(msg Message) []byte {
	return mustMarshal(messageFrame{Type: TypeMessage, Data: msg, Room: msg.Room})
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("protocol: marshal %T: %v", v, err))
	}
	return data
}
