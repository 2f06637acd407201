// Package ask answers free-text questions from the knowledge log or a language model.
package ask

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/quizbot/core/logger"
	"github.com/m3rciful/quizbot/internal/knowledge"
)

const component = "ask"

var (
	// ErrEmptyQuestion means there was nothing to ask.
	ErrEmptyQuestion = errors.New("ask: empty question")
	// ErrUnavailable means the answer source failed or timed out.
	ErrUnavailable = errors.New("ask: answer source unavailable")
	// ErrNothingToRemember means the user has no answered question to save.
	ErrNothingToRemember = errors.New("ask: nothing to remember")
	// ErrDisabled means ask mode is switched off.
	ErrDisabled = errors.New("ask: disabled")
)

// Completer produces a language-model answer.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Source tells where an answer came from.
type Source string

const (
	SourceKnowledge Source = "knowledge"
	SourceLLM       Source = "llm"
)

// Answer is the reply to one question.
type Answer struct {
	Question string
	Text     string
	Source   Source
	Score    float64
}

// Options tune a Service.
type Options struct {
	Threshold float64
	Timeout   time.Duration
	Now       func() time.Time
}

// Service remembers the last exchange per user so it can be saved later.
type Service struct {
	store     knowledge.Store
	llm       Completer
	threshold float64
	timeout   time.Duration
	now       func() time.Time

	mu   sync.Mutex
	last map[string]Answer
}

// New builds a service. store or llm may be nil to disable that source.
func New(store knowledge.Store, llm Completer, opts Options) *Service {
	if opts.Threshold <= 0 {
		opts.Threshold = knowledge.DefaultThreshold
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:     store,
		llm:       llm,
		threshold: opts.Threshold,
		timeout:   opts.Timeout,
		now:       opts.Now,
		last:      make(map[string]Answer),
	}
}

// Ask answers q for userID: the best knowledge match at or above the
// threshold wins, otherwise the language model is asked within the timeout.
func (s *Service) Ask(ctx context.Context, userID, q string) (Answer, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return Answer{}, ErrEmptyQuestion
	}
	if s.store == nil && s.llm == nil {
		return Answer{}, ErrDisabled
	}

	if s.store != nil {
		records, err := s.store.All(ctx)
		if err != nil {
			logger.Warn(ctx, component, "ask.knowledge",
				slog.String("status", "fail"),
				logger.Err(err),
			)
		} else if matches := knowledge.Search(records, q, s.threshold); len(matches) > 0 {
			best := matches[0]
			logger.Info(ctx, component, "ask.knowledge",
				slog.String("status", "ok"),
				slog.Float64("score", best.Score),
				slog.Int("matches", len(matches)),
			)
			ans := Answer{Question: q, Text: best.Record.Response, Source: SourceKnowledge, Score: best.Score}
			s.remember(userID, ans)
			return ans, nil
		}
	}

	if s.llm == nil {
		return Answer{}, ErrUnavailable
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	text, err := s.llm.Complete(callCtx, q)
	if err != nil {
		status := "fail"
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			status = "cancelled"
		}
		logger.Warn(ctx, component, "ask.llm",
			slog.String("status", status),
			slog.Duration("duration", time.Since(start)),
			logger.Err(err),
		)
		return Answer{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	logger.Info(ctx, component, "ask.llm",
		slog.String("status", "ok"),
		slog.Duration("duration", time.Since(start)),
	)
	ans := Answer{Question: q, Text: text, Source: SourceLLM}
	s.remember(userID, ans)
	return ans, nil
}

// Remember appends the user's last exchange to the knowledge log.
// The exchange is forgotten after a successful save.
func (s *Service) Remember(ctx context.Context, userID string) (knowledge.Record, error) {
	if s.store == nil {
		return knowledge.Record{}, ErrDisabled
	}
	s.mu.Lock()
	ans, ok := s.last[userID]
	s.mu.Unlock()
	if !ok {
		return knowledge.Record{}, ErrNothingToRemember
	}
	rec := knowledge.NewRecord(ans.Question, ans.Text, userID, s.now())
	if err := s.store.Append(ctx, rec); err != nil {
		logger.Warn(ctx, component, "ask.remember",
			slog.String("status", "fail"),
			logger.Err(err),
		)
		return knowledge.Record{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.mu.Lock()
	if cur, ok := s.last[userID]; ok && cur == ans {
		delete(s.last, userID)
	}
	s.mu.Unlock()
	logger.Info(ctx, component, "ask.remember", slog.String("status", "ok"))
	return rec, nil
}

func (s *Service) remember(userID string, ans Answer) {
	s.mu.Lock()
	s.last[userID] = ans
	s.mu.Unlock()
}
