package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Store = (*FileStore)(nil)
var _ Store = (*PGStore)(nil)

func TestSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, Similarity("Hello  World", " hello world"), 1e-9)
	assert.InDelta(t, 0.0, Similarity("abc", "xyz"), 1e-9)
	assert.InDelta(t, 0.75, Similarity("abcd", "abce"), 1e-9)
	assert.InDelta(t, 1.0, Similarity("", " "), 1e-9)
	assert.InDelta(t, 2.0/3.0, Similarity("日本語", "日本人"), 1e-9)
}

func TestSearchOrdersByScore(t *testing.T) {
	records := []Record{
		{Question: "what is go", Response: "a language"},
		{Question: "what is the capital of japan", Response: "Tokyo"},
		{Question: "what is a goat", Response: "an animal"},
		{Question: "what is go", Response: "duplicate"},
	}
	got := Search(records, "What is Go?", DefaultThreshold)
	require.Len(t, got, 3)
	assert.Equal(t, "a language", got[0].Record.Response)
	assert.Equal(t, "duplicate", got[1].Record.Response, "ties keep log order")
	assert.Equal(t, "an animal", got[2].Record.Response)
	assert.GreaterOrEqual(t, got[0].Score, got[2].Score)

	assert.Empty(t, Search(records, "   ", DefaultThreshold))
	assert.Empty(t, Search(records, "completely unrelated sentence here", DefaultThreshold))
}

func TestFileStoreAppendAndAll(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "knowledge.json")
	s := NewFileStore(path)

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	at := time.Date(2026, 5, 6, 7, 8, 9, 0, time.FixedZone("JST", 9*3600))
	require.NoError(t, s.Append(ctx, NewRecord("q1", "r1", "u1", at)))
	require.NoError(t, s.Append(ctx, NewRecord("q2", "r2", "u2", at)))

	all, err = NewFileStore(path).All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, Record{Question: "q1", Response: "r1", User: "u1", Timestamp: "2026-05-05T22:08:09Z"}, all[0])
	assert.Equal(t, "q2", all[1].Question)

	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))
	_, err = s.All(ctx)
	assert.Error(t, err)
}
