// Package quiz decides how a session reacts to each inbound input.
//
// The engine never returns errors: every problem becomes an Error action
// and the caller only applies the Decision.
package quiz

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/m3rciful/quizbot/core/logger"
	"github.com/m3rciful/quizbot/internal/question"
	"github.com/m3rciful/quizbot/internal/session"
)

const component = "quiz"

// DefaultMissedWeight is how many pool entries a previously missed question gets.
const DefaultMissedWeight = 3

// Repository is the read side of the question set the engine needs.
type Repository interface {
	Genres() []string
	HasGenre(genre string) bool
	QuestionsByGenre(genre string) []question.Question
	QuestionByID(genre string, id question.ID) (question.Question, bool)
}

// Config tunes engine behaviour.
type Config struct {
	Commands Commands
	// CaseInsensitive compares answers ignoring case.
	CaseInsensitive bool
	// ShuffleChoices randomizes the display order of choices.
	ShuffleChoices bool
	// ExcludeMalformed drops questions whose answer is not among the choices.
	ExcludeMalformed bool
	// Weight builds the sampling pool; nil means Replicate(DefaultMissedWeight).
	Weight WeightFunc
}

// Input is one inbound message after transport decoding.
type Input struct {
	// Kind forces a classification; KindText lets the engine parse Text.
	Kind Kind
	Text string
	// Choice is a 1-based index into the displayed choices, set by answer buttons.
	Choice int
	// Token is the prompt token carried by an answer button.
	Token string
	// Missed lists ids missed in earlier runs per genre; read when a run begins.
	Missed map[string][]question.ID
}

// Option customizes an Engine.
type Option func(*Engine)

// WithRand sets the random source used for selection and shuffling.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) {
		if r != nil {
			e.rng = r
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithRunID sets the run id generator.
func WithRunID(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newRunID = fn
		}
	}
}

// Engine is safe for concurrent use across users; callers serialize per user.
type Engine struct {
	repo Repository
	cfg  Config

	rngMu    sync.Mutex
	rng      *rand.Rand
	now      func() time.Time
	newRunID func() string
}

// New builds an engine over repo.
func New(repo Repository, cfg Config, opts ...Option) *Engine {
	cfg.Commands = cfg.Commands.WithDefaults()
	if cfg.Weight == nil {
		cfg.Weight = Replicate(DefaultMissedWeight)
	}
	e := &Engine{
		repo:     repo,
		cfg:      cfg,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:      time.Now,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Commands returns the text commands in effect.
func (e *Engine) Commands() Commands {
	return e.cfg.Commands
}

// Classify resolves the kind of in for st without mutating anything.
// While a multiple-choice question is pending, text that resolves to a
// choice is an answer even when it also spells a command. A free-answer
// question accepts any text, so there commands are matched first.
func (e *Engine) Classify(st *session.State, in Input) (Kind, string) {
	if in.Kind != KindText {
		return in.Kind, strings.TrimSpace(in.Text)
	}
	kind, arg := e.cfg.Commands.Parse(in.Text)
	if st.Mode == session.ModeAsking && st.Current != nil {
		if kind != KindText && len(st.Current.Choices) == 0 {
			return kind, arg
		}
		if _, ok := e.resolve(st.Current, in); ok {
			return KindAnswer, strings.TrimSpace(in.Text)
		}
	}
	if kind == KindText && st.Mode != session.ModeAsking {
		if genre, ok := e.lookupGenre(arg); ok {
			return KindGenre, genre
		}
	}
	return kind, arg
}

// Decide applies in to st and returns what to send.
func (e *Engine) Decide(ctx context.Context, st *session.State, in Input) Decision {
	kind, arg := e.Classify(st, in)
	switch kind {
	case KindMenu:
		return Decision{Actions: []Action{e.menu()}}
	case KindGenre:
		return e.selectGenre(ctx, st, arg)
	case KindStart:
		return e.start(ctx, st, in)
	case KindRestart:
		if st.Genre == "" {
			return e.chooseGenre()
		}
		return e.begin(ctx, st, in)
	case KindAbort:
		if in.Token != "" && (st.Current == nil || in.Token != st.Current.Token) {
			logger.Info(ctx, component, "quiz.abort",
				slog.String("status", "skip"),
				slog.String("run_id", st.RunID),
				slog.String("reason", "stale"),
			)
			return e.stale(st)
		}
		return e.abort(ctx, st)
	}

	switch {
	case st.Mode == session.ModeAsking:
		return e.answer(ctx, st, in)
	case in.Token != "":
		return e.stale(st)
	case st.Mode == session.ModeGenreChosen:
		return Decision{Actions: []Action{Error{Kind: ErrNeedStart, Detail: st.Genre}}}
	default:
		return e.chooseGenre()
	}
}

func (e *Engine) menu() ShowGenreMenu {
	return ShowGenreMenu{Genres: e.repo.Genres()}
}

func (e *Engine) chooseGenre() Decision {
	return Decision{Actions: []Action{Error{Kind: ErrChooseGenre}, e.menu()}}
}

func (e *Engine) lookupGenre(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	if e.repo.HasGenre(name) {
		return name, true
	}
	return lo.Find(e.repo.Genres(), func(g string) bool { return strings.EqualFold(g, name) })
}

func (e *Engine) selectGenre(ctx context.Context, st *session.State, name string) Decision {
	genre, ok := e.lookupGenre(name)
	if !ok {
		logger.Info(ctx, component, "quiz.genre",
			slog.String("status", "skip"),
			slog.String("genre", logger.SanitizeLimit(name, 64)),
			slog.String("reason", "unknown"),
		)
		return Decision{Actions: []Action{Error{Kind: ErrUnknownGenre, Detail: name}, e.menu()}}
	}
	previous := st.Genre
	st.SelectGenre(genre, e.now())
	logger.Info(ctx, component, "quiz.genre",
		slog.String("status", "ok"),
		slog.String("genre", genre),
		slog.String("previous", previous),
	)
	return Decision{
		Actions: []Action{GenreConfirmed{Genre: genre, Count: len(e.selectable(genre))}},
		Mutated: true,
	}
}

func (e *Engine) start(ctx context.Context, st *session.State, in Input) Decision {
	switch st.Mode {
	case session.ModeGenreChosen:
		return e.begin(ctx, st, in)
	case session.ModeAsking:
		if st.Current == nil {
			return e.desync(ctx, st, "no pending question")
		}
		return Decision{Actions: []Action{askFrom(st.Current)}}
	default:
		return e.chooseGenre()
	}
}

// selectable returns the genre's questions eligible for a run.
func (e *Engine) selectable(genre string) []question.Question {
	qs := e.repo.QuestionsByGenre(genre)
	if e.cfg.ExcludeMalformed {
		qs = lo.Reject(qs, func(q question.Question, _ int) bool { return q.Malformed() })
	}
	return qs
}

func (e *Engine) begin(ctx context.Context, st *session.State, in Input) Decision {
	st.Reset(e.now())
	st.Mode = session.ModeGenreChosen

	ids := lo.Uniq(lo.Map(e.selectable(st.Genre), func(q question.Question, _ int) question.ID { return q.ID }))
	if len(ids) == 0 {
		logger.Info(ctx, component, "quiz.start",
			slog.String("status", "skip"),
			slog.String("genre", st.Genre),
			slog.String("reason", "empty_genre"),
		)
		return Decision{Actions: []Action{Error{Kind: ErrEmptyGenre, Detail: st.Genre}}, Mutated: true}
	}

	st.RunID = e.newRunID()
	st.Mode = session.ModeAsking
	st.Available = ids
	missed := in.Missed[st.Genre]
	st.Pool = e.cfg.Weight(ids, missed)
	logger.Info(ctx, component, "quiz.start",
		slog.String("status", "ok"),
		slog.String("run_id", st.RunID),
		slog.String("genre", st.Genre),
		slog.Int("questions", len(ids)),
		slog.Int("pool", len(st.Pool)),
		slog.Int("missed", len(missed)),
	)

	d := e.next(ctx, st)
	d.Mutated = true
	return d
}

// next picks the following question or finishes the run.
func (e *Engine) next(ctx context.Context, st *session.State) Decision {
	remaining := st.Remaining()
	if len(remaining) == 0 {
		return e.finish(ctx, st)
	}
	id := remaining[e.intN(len(remaining))]
	q, ok := e.repo.QuestionByID(st.Genre, id)
	if !ok {
		return e.desync(ctx, st, "question "+string(id)+" vanished")
	}
	choices := slices.Clone(q.Choices)
	if e.cfg.ShuffleChoices {
		e.shuffle(choices)
	}
	number := len(st.Answered) + 1
	st.Current = &session.Pending{
		Question: q,
		Choices:  choices,
		Number:   number,
		Total:    len(st.Available),
		Token:    promptToken(st.RunID, number),
	}
	return Decision{Actions: []Action{askFrom(st.Current)}}
}

func (e *Engine) answer(ctx context.Context, st *session.State, in Input) Decision {
	cur := st.Current
	switch {
	case cur == nil:
		return e.desync(ctx, st, "no pending question")
	case st.HasAnswered(cur.Question.ID):
		return e.desync(ctx, st, "pending question already answered")
	case len(st.Answered) >= len(st.Available):
		return e.desync(ctx, st, "answered count exceeds available")
	}

	if in.Token != "" && in.Token != cur.Token {
		logger.Info(ctx, component, "quiz.answer",
			slog.String("status", "skip"),
			slog.String("run_id", st.RunID),
			slog.String("reason", "stale"),
		)
		return e.stale(st)
	}

	given, ok := e.resolve(cur, in)
	if !ok {
		return Decision{Actions: []Action{
			Error{Kind: ErrInvalidAnswer, Detail: strings.TrimSpace(in.Text)},
			askFrom(cur),
		}}
	}

	correct := e.equal(given, strings.TrimSpace(cur.Question.Answer))
	st.Answered = append(st.Answered, cur.Question.ID)
	if correct {
		st.Score++
	} else {
		st.Mistakes = append(st.Mistakes, cur.Question.ID)
	}
	st.Current = nil
	logger.Info(ctx, component, "quiz.answer",
		slog.String("status", "ok"),
		slog.String("run_id", st.RunID),
		slog.String("genre", st.Genre),
		slog.String("question_id", string(cur.Question.ID)),
		slog.Bool("correct", correct),
		slog.Int("number", cur.Number),
		slog.Int("score", st.Score),
	)

	feedback := AnswerFeedback{
		Correct:     correct,
		Given:       given,
		Answer:      strings.TrimSpace(cur.Question.Answer),
		Explanation: strings.TrimSpace(cur.Question.Explanation),
	}
	d := e.next(ctx, st)
	d.Actions = append([]Action{feedback}, d.Actions...)
	d.Mutated = true
	return d
}

// resolve maps the input to a canonical choice. Choice text wins over a
// numeric index. Free-answer questions accept any non-empty text.
func (e *Engine) resolve(cur *session.Pending, in Input) (string, bool) {
	if in.Choice > 0 {
		if in.Choice > len(cur.Choices) {
			return "", false
		}
		return strings.TrimSpace(cur.Choices[in.Choice-1]), true
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return "", false
	}
	if len(cur.Choices) == 0 {
		return text, true
	}
	for _, c := range cur.Choices {
		if c = strings.TrimSpace(c); e.equal(c, text) {
			return c, true
		}
	}
	if n, err := strconv.Atoi(text); err == nil && n >= 1 && n <= len(cur.Choices) {
		return strings.TrimSpace(cur.Choices[n-1]), true
	}
	return "", false
}

func (e *Engine) equal(a, b string) bool {
	if e.cfg.CaseInsensitive {
		return strings.EqualFold(a, b)
	}
	return a == b
}

func (e *Engine) finish(ctx context.Context, st *session.State) Decision {
	st.Mode = session.ModeFinished
	st.Current = nil
	elapsed := st.Elapsed(e.now())
	res := &Result{
		UserID:   st.UserID,
		Genre:    st.Genre,
		RunID:    st.RunID,
		Total:    len(st.Answered),
		Score:    st.Score,
		Mistakes: slices.Clone(st.Mistakes),
		Elapsed:  elapsed,
	}
	logger.Info(ctx, component, "quiz.finish",
		slog.String("status", "ok"),
		slog.String("run_id", st.RunID),
		slog.String("genre", st.Genre),
		slog.Int("total", res.Total),
		slog.Int("score", res.Score),
		slog.Int("mistakes", len(res.Mistakes)),
		slog.Duration("elapsed", elapsed),
	)
	return Decision{
		Actions:   []Action{QuizSummary{Genre: st.Genre, Total: res.Total, Score: res.Score, Elapsed: elapsed}},
		Discard:   true,
		Completed: res,
	}
}

func (e *Engine) abort(ctx context.Context, st *session.State) Decision {
	if st.Genre == "" && st.Mode == session.ModeNoGenre {
		return Decision{Actions: []Action{Error{Kind: ErrNothingToAbort}}, Discard: true}
	}
	logger.Info(ctx, component, "quiz.abort",
		slog.String("status", "ok"),
		slog.String("run_id", st.RunID),
		slog.String("genre", st.Genre),
		slog.String("mode", st.Mode.String()),
		slog.Int("answered", len(st.Answered)),
	)
	return Decision{
		Actions: []Action{QuizAborted{Genre: st.Genre, Answered: len(st.Answered), Score: st.Score}},
		Discard: true,
		Mutated: true,
	}
}

// stale rejects a button from an earlier prompt and repeats the pending one.
func (e *Engine) stale(st *session.State) Decision {
	d := Decision{Actions: []Action{Error{Kind: ErrStale}}}
	if st.Current != nil {
		d.Actions = append(d.Actions, askFrom(st.Current))
	}
	return d
}

func (e *Engine) desync(ctx context.Context, st *session.State, reason string) Decision {
	logger.Warn(ctx, component, "quiz.desync",
		slog.String("status", "fail"),
		slog.String("run_id", st.RunID),
		slog.String("genre", st.Genre),
		slog.String("mode", st.Mode.String()),
		slog.Int("answered", len(st.Answered)),
		slog.Int("available", len(st.Available)),
		slog.String("reason", reason),
	)
	return Decision{Actions: []Action{Error{Kind: ErrDesync}}, Discard: true, Mutated: true}
}

func (e *Engine) intN(n int) int {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.IntN(n)
}

func (e *Engine) shuffle(s []string) {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	e.rng.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
}

func askFrom(p *session.Pending) AskQuestion {
	return AskQuestion{
		Question: p.Question.Clone(),
		Choices:  slices.Clone(p.Choices),
		Number:   p.Number,
		Total:    p.Total,
		Token:    p.Token,
	}
}

// promptToken is short enough for chat callback payloads.
func promptToken(runID string, number int) string {
	short := strings.ReplaceAll(runID, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	return short + "." + strconv.Itoa(number)
}
