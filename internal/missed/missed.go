// Package missed persists the question ids a user answered wrong, per genre,
// so the next run can weight them.
package missed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/m3rciful/quizbot/internal/question"
)

// Store loads and saves missed ids. Save replaces the ids of one genre.
type Store interface {
	Load(ctx context.Context, userID string) (map[string][]question.ID, error)
	Save(ctx context.Context, userID, genre string, ids []question.ID) error
}

type fileData map[string]map[string][]question.ID

// FileStore keeps every user's missed ids in one JSON object file:
// user -> genre -> ids.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a store backed by path. The file is created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load returns the user's missed ids. A missing file yields an empty result.
func (s *FileStore) Load(_ context.Context, userID string) (map[string][]question.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]question.ID, len(data[userID]))
	for genre, ids := range data[userID] {
		out[genre] = append([]question.ID(nil), ids...)
	}
	return out, nil
}

// Save replaces the user's ids for genre. Empty ids remove the genre entry.
func (s *FileStore) Save(_ context.Context, userID, genre string, ids []question.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.read()
	if err != nil {
		return err
	}
	user := data[userID]
	if user == nil {
		user = make(map[string][]question.ID)
		data[userID] = user
	}
	if len(ids) == 0 {
		delete(user, genre)
		if len(user) == 0 {
			delete(data, userID)
		}
	} else {
		user[genre] = append([]question.ID(nil), ids...)
	}
	return writeJSON(s.path, data)
}

func (s *FileStore) read() (fileData, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return fileData{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read missed file: %w", err)
	}
	data := fileData{}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode missed file %s: %w", s.path, err)
	}
	return data, nil
}

// writeJSON replaces path atomically through a temp file in the same directory.
func writeJSON(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
