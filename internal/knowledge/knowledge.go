// Package knowledge keeps remembered question/response pairs and finds
// the ones closest to a new question.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// DefaultThreshold is the minimum similarity for a match.
const DefaultThreshold = 0.6

// Record is one remembered exchange.
type Record struct {
	Question  string `json:"question"`
	Response  string `json:"response"`
	User      string `json:"user"`
	Timestamp string `json:"timestamp"`
}

// NewRecord stamps a record with an ISO-8601 UTC timestamp.
func NewRecord(q, response, user string, at time.Time) Record {
	return Record{
		Question:  q,
		Response:  response,
		User:      user,
		Timestamp: at.UTC().Format(time.RFC3339),
	}
}

// Store is an append-only knowledge log.
type Store interface {
	Append(ctx context.Context, r Record) error
	All(ctx context.Context) ([]Record, error)
}

// Match is a record with its similarity to the query.
type Match struct {
	Record Record
	Score  float64
}

// Similarity returns 1 for equal strings and approaches 0 as the edit
// distance grows. Case, surrounding space and repeated blanks are ignored.
func Similarity(a, b string) float64 {
	a, b = normalize(a), normalize(b)
	if a == "" && b == "" {
		return 1
	}
	la, lb := len([]rune(a)), len([]rune(b))
	longest := max(la, lb)
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

func normalize(s string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(s), unicode.IsSpace), " ")
}

// Search returns records whose question scores at least threshold,
// best first. Ties keep log order.
func Search(records []Record, query string, threshold float64) []Match {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	var out []Match
	for _, r := range records {
		if score := Similarity(query, r.Question); score >= threshold {
			out = append(out, Match{Record: r, Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// FileStore is a JSON array file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a store backed by path; the file is created on first append.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Append adds r to the end of the log.
func (s *FileStore) Append(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.read()
	if err != nil {
		return err
	}
	records = append(records, r)
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create knowledge dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write knowledge file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace knowledge file: %w", err)
	}
	return nil
}

// All returns every record in append order.
func (s *FileStore) All(_ context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) read() ([]Record, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read knowledge file: %w", err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode knowledge file %s: %w", s.path, err)
	}
	return records, nil
}
