package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/quizbot/core/logger"
	"github.com/m3rciful/quizbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

// Message is one outbound chat message.
type Message struct {
	Text   string
	Markup *tele.ReplyMarkup
}

func (m Message) send(c tele.Context) error {
	if m.Markup != nil {
		return c.Send(m.Text, m.Markup)
	}
	return c.Send(m.Text)
}

func sendAsync(c tele.Context, action string, run func() error) error {
	disp := globalDispatcher.Load()
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	err := disp.Enqueue(ctx, action, run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", action),
			logger.Err(err),
		)
		return run()
	}
	return err
}

// SendText sends plain text with optional reply markup.
func SendText(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	m := Message{Text: text}
	if len(markup) > 0 {
		m.Markup = markup[0]
	}
	return sendAsync(c, "send.text", func() error { return m.send(c) })
}

// SendBatch sends msgs in order as one dispatcher job.
// A retry resumes after the last message that was delivered.
func SendBatch(c tele.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return sendAsync(c, "send.batch", batchRun(c, msgs))
}

func batchRun(c tele.Context, msgs []Message) func() error {
	next := 0
	return func() error {
		for next < len(msgs) {
			if err := msgs[next].send(c); err != nil {
				return err
			}
			next++
		}
		return nil
	}
}
