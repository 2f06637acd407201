// Package bot connects the quiz engine, the session store and the side
// stores, and exposes them to the Telegram transport.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/m3rciful/quizbot/core/logger"
	"github.com/m3rciful/quizbot/core/telegram/sender"
	"github.com/m3rciful/quizbot/internal/ask"
	"github.com/m3rciful/quizbot/internal/dedup"
	"github.com/m3rciful/quizbot/internal/missed"
	"github.com/m3rciful/quizbot/internal/question"
	"github.com/m3rciful/quizbot/internal/quiz"
	"github.com/m3rciful/quizbot/internal/responder"
	"github.com/m3rciful/quizbot/internal/session"
)

const component = "bot"

const (
	defaultLockTimeout    = 10 * time.Second
	defaultStorageTimeout = 3 * time.Second
)

// Event is one inbound update after transport decoding.
type Event struct {
	// ID is the transport event id used for duplicate detection; 0 disables the check.
	ID     int64
	UserID string
	Lang   string
	Text   string
	Kind   quiz.Kind
	Choice int
	Token  string
}

// Catalog is the question set as seen by the service.
type Catalog interface {
	quiz.Repository
	Len() int
}

// Deps are the collaborators of a Service. Missed, Guard and Ask may be nil.
type Deps struct {
	Engine    *quiz.Engine
	Sessions  *session.Store
	Catalog   Catalog
	Responder *responder.Responder
	Missed    missed.Store
	Guard     dedup.Guard
	Ask       *ask.Service

	LockTimeout    time.Duration
	StorageTimeout time.Duration
}

// Service handles inbound events and returns the replies to send.
type Service struct {
	deps Deps
}

// NewService applies timeout defaults.
func NewService(deps Deps) *Service {
	if deps.LockTimeout <= 0 {
		deps.LockTimeout = defaultLockTimeout
	}
	if deps.StorageTimeout <= 0 {
		deps.StorageTimeout = defaultStorageTimeout
	}
	return &Service{deps: deps}
}

// Duplicate reports whether ev was already handled.
func (s *Service) Duplicate(ctx context.Context, ev Event) bool {
	if ev.ID == 0 {
		return false
	}
	return dedup.Check(ctx, s.deps.Guard, dedup.Key(ev.UserID, ev.ID))
}

// Handle runs one quiz input through the engine under the user's lock.
// Duplicates produce no reply and no state change. The event id is only
// recorded once the lock is held, so an update rejected as busy can be
// redelivered.
func (s *Service) Handle(ctx context.Context, ev Event) []responder.Message {
	in := quiz.Input{Kind: ev.Kind, Text: ev.Text, Choice: ev.Choice, Token: ev.Token}
	if s.mayBegin(ev) {
		in.Missed = s.loadMissed(ctx, ev.UserID)
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.deps.LockTimeout)
	defer cancel()
	var (
		d   quiz.Decision
		dup bool
	)
	err := s.deps.Sessions.Update(lockCtx, ev.UserID, func(st *session.State) bool {
		if s.Duplicate(ctx, ev) {
			dup = true
			return st.Mode == session.ModeNoGenre && st.Genre == ""
		}
		d = s.deps.Engine.Decide(ctx, st, in)
		return d.Discard
	})
	if err != nil {
		logger.Warn(ctx, component, "session.update",
			slog.String("status", "cancelled"),
			logger.Err(err),
		)
		return []responder.Message{s.deps.Responder.Text(ev.Lang, "Busy", nil)}
	}
	if dup {
		return nil
	}

	msgs := s.deps.Responder.Render(ev.Lang, d.Actions)
	if d.Completed != nil && !s.saveMissed(ctx, *d.Completed) {
		msgs = append(msgs, s.deps.Responder.Text(ev.Lang, "MissedSaveFailed", nil))
	}
	return msgs
}

// mayBegin reports whether ev could start a run, which needs the missed ids.
func (s *Service) mayBegin(ev Event) bool {
	if s.deps.Missed == nil {
		return false
	}
	kind := ev.Kind
	if kind == quiz.KindText {
		kind, _ = s.deps.Engine.Commands().Parse(ev.Text)
	}
	return kind == quiz.KindStart || kind == quiz.KindRestart
}

// loadMissed runs outside the session lock so a slow store never holds it.
func (s *Service) loadMissed(ctx context.Context, userID string) map[string][]question.ID {
	loadCtx, cancel := context.WithTimeout(ctx, s.deps.StorageTimeout)
	defer cancel()
	ids, err := s.deps.Missed.Load(loadCtx, userID)
	if err != nil {
		logger.Warn(ctx, component, "missed.load",
			slog.String("status", "fail"),
			logger.Err(err),
		)
		return nil
	}
	return ids
}

func (s *Service) saveMissed(ctx context.Context, res quiz.Result) bool {
	if s.deps.Missed == nil {
		return true
	}
	saveCtx, cancel := context.WithTimeout(ctx, s.deps.StorageTimeout)
	defer cancel()
	if err := s.deps.Missed.Save(saveCtx, res.UserID, res.Genre, res.Mistakes); err != nil {
		logger.Warn(ctx, component, "missed.save",
			slog.String("status", "fail"),
			slog.String("genre", res.Genre),
			logger.Err(err),
		)
		return false
	}
	logger.Debug(ctx, component, "missed.save",
		slog.String("status", "ok"),
		slog.String("genre", res.Genre),
		slog.Int("missed", len(res.Mistakes)),
	)
	return true
}

// Welcome greets the user with the genre menu.
func (s *Service) Welcome(ctx context.Context, ev Event) []responder.Message {
	if s.Duplicate(ctx, ev) {
		return nil
	}
	return s.deps.Responder.Welcome(ev.Lang, s.deps.Catalog.Genres())
}

// Help explains the commands.
func (s *Service) Help(ev Event) []responder.Message {
	return []responder.Message{s.deps.Responder.Text(ev.Lang, "Help", nil)}
}

// Ask answers ev.Text from the knowledge log or the language model.
func (s *Service) Ask(ctx context.Context, ev Event) []responder.Message {
	r := s.deps.Responder
	if s.deps.Ask == nil {
		return []responder.Message{r.Text(ev.Lang, "AskDisabled", nil)}
	}
	if s.Duplicate(ctx, ev) {
		return nil
	}
	ans, err := s.deps.Ask.Ask(ctx, ev.UserID, ev.Text)
	switch {
	case errors.Is(err, ask.ErrEmptyQuestion):
		return []responder.Message{r.Text(ev.Lang, "AskUsage", nil)}
	case errors.Is(err, ask.ErrDisabled):
		return []responder.Message{r.Text(ev.Lang, "AskDisabled", nil)}
	case err != nil:
		return []responder.Message{r.Text(ev.Lang, "AskUnavailable", nil)}
	}
	if ans.Source == ask.SourceKnowledge {
		return []responder.Message{r.Text(ev.Lang, "AskFromKnowledge", map[string]any{
			"Text":    ans.Text,
			"Percent": int(math.Round(ans.Score * 100)),
		})}
	}
	return []responder.Message{r.Text(ev.Lang, "AskFromLLM", map[string]any{"Text": ans.Text})}
}

// Remember saves the user's last ask exchange to the knowledge log.
func (s *Service) Remember(ctx context.Context, ev Event) []responder.Message {
	r := s.deps.Responder
	if s.deps.Ask == nil {
		return []responder.Message{r.Text(ev.Lang, "AskDisabled", nil)}
	}
	if s.Duplicate(ctx, ev) {
		return nil
	}
	saveCtx, cancel := context.WithTimeout(ctx, s.deps.StorageTimeout)
	defer cancel()
	_, err := s.deps.Ask.Remember(saveCtx, ev.UserID)
	switch {
	case err == nil:
		return []responder.Message{r.Text(ev.Lang, "Remembered", nil)}
	case errors.Is(err, ask.ErrNothingToRemember):
		return []responder.Message{r.Text(ev.Lang, "NothingToRemember", nil)}
	case errors.Is(err, ask.ErrDisabled):
		return []responder.Message{r.Text(ev.Lang, "AskDisabled", nil)}
	default:
		return []responder.Message{r.Text(ev.Lang, "RememberFailed", nil)}
	}
}

// Stats reports live sessions, the question set and sender counters.
func (s *Service) Stats(ev Event, sent sender.Stats) []responder.Message {
	data := map[string]any{
		"Sessions":  s.deps.Sessions.Len(),
		"Questions": s.deps.Catalog.Len(),
		"Genres":    len(s.deps.Catalog.Genres()),
		"Sent":      sent.Sent,
		"Failed":    sent.Failed,
		"Retried":   sent.Retried,
		"Queued":    sent.Queued,
	}
	// Only the in-process guard knows its size.
	if g, ok := s.deps.Guard.(interface{ Len() int }); ok {
		data["Remembered"] = g.Len()
	}
	return []responder.Message{s.deps.Responder.Text(ev.Lang, "Stats", data)}
}
