// Package store persists the relay's room list and chat history as a single
// JSON document on disk. The document is loaded once at startup and rewritten
// in full after every mutation; the in-memory state is the authority and the
// file is best-effort durability.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/paxest/chatrelay/internal/protocol"
)

// Document is the persisted file layout. Every key in ChatHistory must also
// appear in Rooms; a room without messages simply has no key.
type Document struct {
	Rooms       []string                      `json:"rooms"`
	ChatHistory map[string][]protocol.Message `json:"chatHistory"`
}

// NewDocument returns an empty document ready for use.
func NewDocument() Document {
	return Document{
		Rooms:       []string{},
		ChatHistory: make(map[string][]protocol.Message),
	}
}

// Clone returns a deep copy of the document so the caller can keep mutating
// its own state while the copy is serialized on another goroutine.
func (d Document) Clone() Document {
	cp := Document{
		Rooms:       append([]string(nil), d.Rooms...),
		ChatHistory: make(map[string][]protocol.Message, len(d.ChatHistory)),
	}
	for room, history := range d.ChatHistory {
		cp.ChatHistory[room] = append([]protocol.Message(nil), history...)
	}
	return cp
}

// Store reads and writes the chat document at a fixed path. Enqueue provides
// the fire-and-forget write path used by the hub; Save is the synchronous
// form used at startup and when the wait-on-write policy is enabled.
type Store struct {
	path   string
	logger *slog.Logger

	saves chan Document
	done  chan struct{}
}

// New creates a Store for the given file path. Run must be started before
// Enqueue is used.
func New(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:   path,
		logger: logger,
		saves:  make(chan Document, 1),
		done:   make(chan struct{}),
	}
}

// Load reads the last-saved document. A missing file or unparseable content
// yields an empty document; corruption is logged, never fatal. When no file
// exists yet an empty one is written so the data file is present from the
// first run, matching the relay's original behavior.
func (s *Store) Load() Document {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Info("no data file found, starting a new session", "path", s.path)
			doc := NewDocument()
			if saveErr := s.Save(doc); saveErr != nil {
				s.logger.Warn("could not create data file", "path", s.path, "error", saveErr)
			}
			return doc
		}
		s.logger.Warn("could not read data file, starting fresh", "path", s.path, "error", err)
		return NewDocument()
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		s.logger.Warn("data file is corrupt, starting fresh", "path", s.path, "error", err)
		return NewDocument()
	}

	if doc.Rooms == nil {
		doc.Rooms = []string{}
	}
	if doc.ChatHistory == nil {
		doc.ChatHistory = make(map[string][]protocol.Message)
	}

	s.logger.Info("data loaded", "path", s.path, "rooms", len(doc.Rooms))
	return doc
}

// Save writes the full document. The write goes to a temporary file in the
// same directory which is then renamed over the target, so a crash mid-write
// leaves the previous document intact.
func (s *Store) Save(doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode chat document: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace data file: %w", err)
	}
	return nil
}

// Enqueue hands a document snapshot to the background writer without
// blocking. If a save is already pending it is replaced by the newer
// snapshot; intermediate states do not need to hit the disk because every
// snapshot carries the complete document.
func (s *Store) Enqueue(doc Document) {
	for {
		select {
		case s.saves <- doc:
			return
		default:
		}
		select {
		case <-s.saves:
		default:
		}
	}
}

// Run drains queued saves until Close is called. Save failures are logged
// and swallowed; a failed write never disturbs the relay's in-memory state.
func (s *Store) Run() {
	for {
		select {
		case doc := <-s.saves:
			if err := s.Save(doc); err != nil {
				s.logger.Error("saving chat data failed", "path", s.path, "error", err)
			}
		case <-s.done:
			// Flush the last pending snapshot before exiting.
			select {
			case doc := <-s.saves:
				if err := s.Save(doc); err != nil {
					s.logger.Error("saving chat data failed", "path", s.path, "error", err)
				}
			default:
			}
			return
		}
	}
}

// Close stops the background writer after flushing any pending save.
func (s *Store) Close() {
	close(s.done)
}
