package store

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/paxest/chatrelay/internal/protocol"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "chat-data.json"), slog.Default())
}

func sampleDocument() Document {
	doc := NewDocument()
	doc.Rooms = []string{"general", "random"}
	doc.ChatHistory["general"] = []protocol.Message{
		{Username: "alice", Text: "hi", Time: "2024-05-01T10:00:00Z", Room: "general"},
		{Username: "bob", Text: "hello", Time: "2024-05-01T10:00:05Z", Room: "general"},
	}
	return doc
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	req := require.New(t)
	st := newTestStore(t)

	doc := sampleDocument()
	req.NoError(st.Save(doc))

	loaded := st.Load()
	req.Equal(doc.Rooms, loaded.Rooms)
	req.Equal(doc.ChatHistory, loaded.ChatHistory)
}

func TestLoadMissingFileCreatesEmptyDocument(t *testing.T) {
	req := require.New(t)
	st := newTestStore(t)

	doc := st.Load()
	req.Empty(doc.Rooms)
	req.Empty(doc.ChatHistory)
	req.NotNil(doc.Rooms)
	req.NotNil(doc.ChatHistory)

	// The data file should exist after the first load.
	_, err := os.Stat(st.path)
	req.NoError(err)
}

func TestLoadCorruptFileFallsBackToEmpty(t *testing.T) {
	req := require.New(t)
	st := newTestStore(t)

	req.NoError(os.WriteFile(st.path, []byte("{not json"), 0o644))

	doc := st.Load()
	req.Empty(doc.Rooms)
	req.Empty(doc.ChatHistory)
}

func TestLoadToleratesPartialDocument(t *testing.T) {
	req := require.New(t)
	st := newTestStore(t)

	req.NoError(os.WriteFile(st.path, []byte(`{"rooms":["general"]}`), 0o644))

	doc := st.Load()
	req.Equal([]string{"general"}, doc.Rooms)
	req.NotNil(doc.ChatHistory)
	req.Empty(doc.ChatHistory["general"])
}

func TestSaveWritesIndentedJSON(t *testing.T) {
	req := require.New(t)
	st := newTestStore(t)

	req.NoError(st.Save(sampleDocument()))

	raw, err := os.ReadFile(st.path)
	req.NoError(err)
	req.Contains(string(raw), "\n  \"rooms\"")

	var onDisk map[string]any
	req.NoError(json.Unmarshal(raw, &onDisk))
	req.Contains(onDisk, "rooms")
	req.Contains(onDisk, "chatHistory")
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	req := require.New(t)
	st := newTestStore(t)

	req.NoError(st.Save(sampleDocument()))

	entries, err := os.ReadDir(filepath.Dir(st.path))
	req.NoError(err)
	req.Len(entries, 1)
	req.Equal(filepath.Base(st.path), entries[0].Name())
}

func TestEnqueueNeverBlocksAndWriterFlushes(t *testing.T) {
	req := require.New(t)
	st := newTestStore(t)

	// Queue more snapshots than the channel holds before the writer starts;
	// newer snapshots replace pending ones instead of blocking.
	for i := 0; i < 10; i++ {
		doc := NewDocument()
		doc.Rooms = []string{"room"}
		st.Enqueue(doc)
	}

	go st.Run()
	st.Close()

	req.Eventually(func() bool {
		loaded := st.Load()
		return len(loaded.Rooms) == 1 && loaded.Rooms[0] == "room"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCloneIsIndependent(t *testing.T) {
	req := require.New(t)

	doc := sampleDocument()
	cp := doc.Clone()

	doc.Rooms[0] = "changed"
	doc.ChatHistory["general"][0].Text = "changed"

	req.Equal("general", cp.Rooms[0])
	req.Equal("hi", cp.ChatHistory["general"][0].Text)
}
