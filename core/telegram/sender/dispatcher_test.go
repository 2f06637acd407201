package sender

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func newTestDispatcher(opts Options) *Dispatcher {
	d := NewDispatcher(opts)
	d.sleep = func(context.Context, time.Duration) error { return nil }
	return d
}

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := newTestDispatcher(Options{Workers: 1, MaxRetries: 2})

	var mu sync.Mutex
	calls := 0
	done := make(chan struct{})
	err := d.Enqueue(context.Background(), "send.text", func() error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls < 3 {
			return &net.OpError{Op: "dial", Err: errors.New("refused")}
		}
		close(done)
		return nil
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not complete")
	}
	d.Close()

	st := d.Stats()
	assert.Equal(t, uint64(1), st.Sent)
	assert.Equal(t, uint64(2), st.Retried)
	assert.Zero(t, d.ErrorCount())
}

func TestDispatcherCountsPermanentFailure(t *testing.T) {
	d := newTestDispatcher(Options{Workers: 1, MaxRetries: 3})
	calls := 0
	require.NoError(t, d.Enqueue(context.Background(), "send.text", func() error {
		calls++
		return errors.New("chat not found")
	}))
	d.Close()

	assert.Equal(t, 1, calls)
	assert.Equal(t, uint64(1), d.ErrorCount())
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := newTestDispatcher(Options{Workers: 1})
	d.Close()
	d.Close()
	err := d.Enqueue(context.Background(), "send.text", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestDispatcherQueueFull(t *testing.T) {
	d := newTestDispatcher(Options{Workers: 1, QueueSize: 1})
	block := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, d.Enqueue(context.Background(), "block", func() error {
		close(started)
		<-block
		return nil
	}))
	<-started
	require.NoError(t, d.Enqueue(context.Background(), "queued", func() error { return nil }))
	assert.ErrorIs(t, d.Enqueue(context.Background(), "overflow", func() error { return nil }), ErrQueueFull)
	close(block)
	d.Close()
}

func TestClassifyAndSanitize(t *testing.T) {
	assert.Equal(t, "timeout", ClassifyError(context.DeadlineExceeded))
	assert.Equal(t, "dial", ClassifyError(&net.OpError{Op: "dial", Err: errors.New("refused")}))
	assert.Equal(t, "flood", ClassifyError(tele.FloodError{RetryAfter: 1}))
	assert.Equal(t, "unknown", ClassifyError(errors.New("x")))

	msg := SanitizeError(errors.New(`Post "https://api.telegram.org/bot123:ABC-def/sendMessage": EOF`))
	assert.NotContains(t, msg, "123:ABC")
	assert.Contains(t, msg, "bot<redacted>")
}
