package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeNewUser(t *testing.T) {
	req := require.New(t)

	evt, err := Decode([]byte(`{"type":"new-user","username":"alice"}`))
	req.NoError(err)
	req.Equal(NewUser{Username: "alice"}, evt)
}

func TestDecodeCreateAndJoinAndLeave(t *testing.T) {
	req := require.New(t)

	evt, err := Decode([]byte(`{"type":"create-room","room":"general"}`))
	req.NoError(err)
	req.Equal(CreateRoom{Room: "general"}, evt)

	evt, err = Decode([]byte(`{"type":"join-room","room":"general"}`))
	req.NoError(err)
	req.Equal(JoinRoom{Room: "general"}, evt)

	evt, err = Decode([]byte(`{"type":"leave-room","room":"general"}`))
	req.NoError(err)
	req.Equal(LeaveRoom{Room: "general"}, evt)
}

func TestDecodeChatMessage(t *testing.T) {
	req := require.New(t)

	raw := `{"type":"message","username":"alice","text":"hi","time":"2024-05-01T10:00:00Z","room":"general"}`
	evt, err := Decode([]byte(raw))
	req.NoError(err)
	req.Equal(ChatMessage{
		Username: "alice",
		Text:     "hi",
		Time:     "2024-05-01T10:00:00Z",
		Room:     "general",
	}, evt)
}

func TestDecodeRejectsBadFrames(t *testing.T) {
	cases := map[string]string{
		"invalid json":   `{"type":"message"`,
		"not an object":  `[1,2,3]`,
		"missing type":   `{"room":"general"}`,
		"unknown type":   `{"type":"self-destruct"}`,
		"wrong payload":  `{"type":"join-room","room":42}`,
		"empty frame":    ``,
		"plain text":     `hello there`,
		"type not a str": `{"type":7}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			evt, err := Decode([]byte(raw))
			require.Error(t, err)
			require.Nil(t, evt)
		})
	}
}

func TestEncodeNewRoom(t *testing.T) {
	req := require.New(t)

	var frame map[string]any
	req.NoError(json.Unmarshal(EncodeNewRoom("general"), &frame))
	req.Equal(map[string]any{"type": "new-room", "room": "general"}, frame)
}

func TestEncodeHistoryNeverNull(t *testing.T) {
	req := require.New(t)

	var frame struct {
		Type string    `json:"type"`
		Data []Message `json:"data"`
		Room string    `json:"room"`
	}
	req.NoError(json.Unmarshal(EncodeHistory("general", nil), &frame))
	req.Equal(TypeHistory, frame.Type)
	req.Equal("general", frame.Room)
	req.NotNil(frame.Data)
	req.Empty(frame.Data)

	// The empty history must be a JSON array, not null.
	req.Contains(string(EncodeHistory("general", nil)), `"data":[]`)
}

func TestEncodeUserList(t *testing.T) {
	req := require.New(t)

	var frame struct {
		Type  string   `json:"type"`
		Users []string `json:"users"`
	}
	req.NoError(json.Unmarshal(EncodeUserList([]string{"alice", "bob"}), &frame))
	req.Equal(TypeUserList, frame.Type)
	req.Equal([]string{"alice", "bob"}, frame.Users)

	req.Contains(string(EncodeUserList(nil)), `"users":[]`)
}

func TestEncodeMessage(t *testing.T) {
	req := require.New(t)

	msg := Message{Username: "alice", Text: "hi", Time: "2024-05-01T10:00:00Z", Room: "general"}
	var frame struct {
		Type string  `json:"type"`
		Data Message `json:"data"`
		Room string  `json:"room"`
	}
	req.NoError(json.Unmarshal(EncodeMessage(msg), &frame))
	req.Equal(TypeMessage, frame.Type)
	req.Equal(msg, frame.Data)
	req.Equal("general", frame.Room)
}
