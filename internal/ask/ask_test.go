package ask

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/quizbot/internal/knowledge"
)

type fakeLLM struct {
	reply string
	err   error
	delay time.Duration
	calls int
}

func (f *fakeLLM) Complete(ctx context.Context, _ string) (string, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func newStore(t *testing.T) *knowledge.FileStore {
	t.Helper()
	return knowledge.NewFileStore(filepath.Join(t.TempDir(), "knowledge.json"))
}

func TestAskPrefersKnowledge(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.Append(ctx, knowledge.Record{Question: "capital of japan", Response: "Tokyo"}))
	llm := &fakeLLM{reply: "from llm"}
	s := New(store, llm, Options{})

	ans, err := s.Ask(ctx, "u1", "Capital of Japan?")
	require.NoError(t, err)
	assert.Equal(t, SourceKnowledge, ans.Source)
	assert.Equal(t, "Tokyo", ans.Text)
	assert.Zero(t, llm.calls)

	ans, err = s.Ask(ctx, "u1", "who wrote hamlet")
	require.NoError(t, err)
	assert.Equal(t, SourceLLM, ans.Source)
	assert.Equal(t, "from llm", ans.Text)
	assert.Equal(t, 1, llm.calls)
}

func TestAskErrors(t *testing.T) {
	ctx := context.Background()

	_, err := New(nil, &fakeLLM{}, Options{}).Ask(ctx, "u1", "  ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	_, err = New(nil, nil, Options{}).Ask(ctx, "u1", "q")
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = New(nil, &fakeLLM{err: errors.New("429")}, Options{}).Ask(ctx, "u1", "q")
	assert.ErrorIs(t, err, ErrUnavailable)

	slow := &fakeLLM{reply: "late", delay: time.Second}
	start := time.Now()
	_, err = New(nil, slow, Options{Timeout: 20 * time.Millisecond}).Ask(ctx, "u1", "q")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRemember(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	now := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	s := New(store, &fakeLLM{reply: "42"}, Options{Now: func() time.Time { return now }})

	_, err := s.Remember(ctx, "u1")
	assert.ErrorIs(t, err, ErrNothingToRemember)

	_, err = s.Ask(ctx, "u1", "meaning of life")
	require.NoError(t, err)
	rec, err := s.Remember(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, knowledge.Record{Question: "meaning of life", Response: "42", User: "u1", Timestamp: "2026-02-03T04:05:06Z"}, rec)

	_, err = s.Remember(ctx, "u1")
	assert.ErrorIs(t, err, ErrNothingToRemember, "an exchange is saved once")

	_, err = s.Remember(ctx, "u2")
	assert.ErrorIs(t, err, ErrNothingToRemember)

	all, err := store.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	ans, err := s.Ask(ctx, "u2", "Meaning of life")
	require.NoError(t, err)
	assert.Equal(t, SourceKnowledge, ans.Source)
}
