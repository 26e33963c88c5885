package subscribers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
)

const DefaultPath = "subscribers.json"

// FileStore keeps subscribers in a JSON document {"subscribers": [...]}.
// Writes replace the file atomically.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultPath
	}
	return &FileStore{path: path}
}

// chatID accepts both "123" and 123 in the document.
type chatID string

func (c *chatID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = chatID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("invalid chat id %s", b)
	}
	*c = chatID(n.String())
	return nil
}

type document struct {
	Subscribers []chatID `json:"subscribers"`
}

func (s *FileStore) Add(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.load()
	if err != nil {
		return false, err
	}
	if slices.Contains(subs, id) {
		return false, nil
	}
	return true, s.save(append(subs, id))
}

func (s *FileStore) Remove(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.load()
	if err != nil {
		return false, err
	}
	i := slices.Index(subs, id)
	if i < 0 {
		return false, nil
	}
	return true, s.save(slices.Delete(subs, i, i+1))
}

func (s *FileStore) Contains(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.load()
	if err != nil {
		return false, err
	}
	return slices.Contains(subs, id), nil
}

func (s *FileStore) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.load()
	if err != nil {
		return nil, err
	}
	slices.Sort(subs)
	return subs, nil
}

func (s *FileStore) load() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read subscribers file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []string{}, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse subscribers file %s: %w", s.path, err)
	}

	subs := make([]string, 0, len(doc.Subscribers))
	for _, id := range doc.Subscribers {
		subs = append(subs, string(id))
	}
	slices.Sort(subs)
	return slices.Compact(subs), nil
}

func (s *FileStore) save(subs []string) error {
	slices.Sort(subs)
	doc := document{Subscribers: make([]chatID, len(subs))}
	for i, id := range subs {
		doc.Subscribers[i] = chatID(id)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".subscribers-*.json")
	if err != nil {
		return fmt.Errorf("write subscribers file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write subscribers file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write subscribers file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace subscribers file: %w", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
