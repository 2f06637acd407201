package missed

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/quizbot/internal/question"
)

var _ Store = (*FileStore)(nil)
var _ Store = (*PGStore)(nil)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "missed.json")
	s := NewFileStore(path)

	got, err := s.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.Save(ctx, "u1", "History", []question.ID{"2", "5"}))
	require.NoError(t, s.Save(ctx, "u1", "Science", []question.ID{"s1"}))
	require.NoError(t, s.Save(ctx, "u2", "History", []question.ID{"1"}))

	got, err = NewFileStore(path).Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string][]question.ID{
		"History": {"2", "5"},
		"Science": {"s1"},
	}, got)

	require.NoError(t, s.Save(ctx, "u1", "History", nil))
	got, err = s.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string][]question.ID{"Science": {"s1"}}, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missed.json")
	require.NoError(t, os.WriteFile(path, []byte("{oops"), 0o644))
	s := NewFileStore(path)

	_, err := s.Load(context.Background(), "u1")
	assert.Error(t, err)
	assert.Error(t, s.Save(context.Background(), "u1", "G", []question.ID{"1"}))
}

func TestFileStoreConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(filepath.Join(t.TempDir(), "missed.json"))
	var wg sync.WaitGroup
	genres := []string{"a", "b", "c", "d", "e", "f"}
	for _, g := range genres {
		wg.Add(1)
		go func(g string) {
			defer wg.Done()
			assert.NoError(t, s.Save(ctx, "u1", g, []question.ID{question.ID(g)}))
		}(g)
	}
	wg.Wait()

	got, err := s.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, got, len(genres))
}
