package contextstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/valpere/bubbletran/internal"
)

const DefaultFilePath = "conversation_history.json"

// FileStore keeps every conversation in memory and rewrites a single JSON
// file on each append. Writes go to a temporary file that replaces the
// original, so a crash leaves either the old or the new document.
type FileStore struct {
	mu     sync.Mutex
	path   string
	limits Limits
	data   map[string][]internal.ContextEntry
}

// NewFileStore loads path if it exists. A missing, unreadable or corrupt
// file starts an empty store.
func NewFileStore(path string, limits Limits) (*FileStore, error) {
	if path == "" {
		path = DefaultFilePath
	}
	s := &FileStore{
		path:   path,
		limits: limits.withDefaults(),
		data:   make(map[string][]internal.ContextEntry),
	}
	s.load()
	return s, nil
}

func (s *FileStore) load() {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var data map[string][]internal.ContextEntry
	if err := json.Unmarshal(raw, &data); err != nil {
		return
	}
	for id, entries := range data {
		cleaned := cleanEntries(entries)
		if id != "" && len(cleaned) > 0 {
			s.data[id] = tail(cleaned, s.limits.MaxEntries)
		}
	}
}

func (s *FileStore) persist() error {
	raw, err := json.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("failed to encode context store: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write context store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write context store: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace context store: %w", err)
	}
	return nil
}

func (s *FileStore) GetRecent(ctx context.Context, conversationID string, limit int) ([]internal.ContextEntry, error) {
	if conversationID == "" {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	recent := tail(s.data[conversationID], s.limits.resolve(limit))
	return append([]internal.ContextEntry(nil), recent...), nil
}

func (s *FileStore) Append(ctx context.Context, conversationID string, entries []internal.ContextEntry) error {
	if conversationID == "" {
		return nil
	}
	cleaned := cleanEntries(entries)
	if len(cleaned) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.data[conversationID]
	history := append(append([]internal.ContextEntry(nil), prev...), cleaned...)
	s.data[conversationID] = tail(history, s.limits.MaxEntries)
	if err := s.persist(); err != nil {
		s.restore(conversationID, prev, had)
		return err
	}
	return nil
}

// restore puts back a conversation whose change could not be persisted.
func (s *FileStore) restore(conversationID string, prev []internal.ContextEntry, had bool) {
	if had {
		s.data[conversationID] = prev
	} else {
		delete(s.data, conversationID)
	}
}

func (s *FileStore) Conversations(ctx context.Context) ([]Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Summary, 0, len(s.data))
	for id, entries := range s.data {
		sum := Summary{ConversationID: id, Entries: len(entries)}
		if n := len(entries); n > 0 {
			sum.LastUpdated = secondsToTime(entries[n-1].Timestamp)
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConversationID < out[j].ConversationID })
	return out, nil
}

func (s *FileStore) Clear(ctx context.Context, conversationID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.data[conversationID]
	if len(prev) == 0 {
		return 0, nil
	}
	delete(s.data, conversationID)
	if err := s.persist(); err != nil {
		s.restore(conversationID, prev, true)
		return 0, err
	}
	return len(prev), nil
}

func (s *FileStore) Close() error {
	return nil
}

var _ Store = (*FileStore)(nil)
