package quiz

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/quizbot/internal/question"
	"github.com/m3rciful/quizbot/internal/session"
)

type fakeRepo struct {
	genres []string
	qs     map[string][]question.Question
}

func (r *fakeRepo) Genres() []string { return append([]string(nil), r.genres...) }

func (r *fakeRepo) HasGenre(g string) bool {
	_, ok := r.qs[g]
	return ok
}

func (r *fakeRepo) QuestionsByGenre(g string) []question.Question {
	out := make([]question.Question, 0, len(r.qs[g]))
	for _, q := range r.qs[g] {
		out = append(out, q.Clone())
	}
	return out
}

func (r *fakeRepo) QuestionByID(g string, id question.ID) (question.Question, bool) {
	for _, q := range r.qs[g] {
		if q.ID == id {
			return q.Clone(), true
		}
	}
	return question.Question{}, false
}

func historyRepo() *fakeRepo {
	return &fakeRepo{
		genres: []string{"History", "Science", "Empty"},
		qs: map[string][]question.Question{
			"History": {
				{ID: "1", Genre: "History", Text: "First?", Choices: []string{"A", "B"}, Answer: "A"},
				{ID: "2", Genre: "History", Text: "Second?", Choices: []string{"C", "D"}, Answer: "C", Explanation: "C it is."},
			},
			"Science": {
				{ID: "s1", Text: "Start or stop?", Choices: []string{"Start", "Stop"}, Answer: "Start"},
				{ID: "s2", Text: "Broken", Choices: []string{"X", "Y"}, Answer: "Z"},
				{ID: "s3", Text: "Free", Answer: "Water"},
			},
			"Empty": {},
		},
	}
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newEngine(repo Repository, cfg Config, c *clock) *Engine {
	runs := 0
	return New(repo, cfg,
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithClock(c.now),
		WithRunID(func() string {
			runs++
			return "run-" + string(rune('a'+runs-1))
		}),
	)
}

func decide(e *Engine, st *session.State, in Input) Decision {
	return e.Decide(context.Background(), st, in)
}

func text(s string) Input { return Input{Text: s} }

func lastAsk(t *testing.T, d Decision) AskQuestion {
	t.Helper()
	for i := len(d.Actions) - 1; i >= 0; i-- {
		if ask, ok := d.Actions[i].(AskQuestion); ok {
			return ask
		}
	}
	t.Fatalf("no AskQuestion in %#v", d.Actions)
	return AskQuestion{}
}

func firstError(t *testing.T, d Decision) Error {
	t.Helper()
	require.NotEmpty(t, d.Actions)
	e, ok := d.Actions[0].(Error)
	require.True(t, ok, "first action is %T", d.Actions[0])
	return e
}

func TestHistoryScenario(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	e := newEngine(historyRepo(), Config{}, c)
	st := session.New("u1")

	d := decide(e, st, text("Genre: History"))
	require.Equal(t, []Action{GenreConfirmed{Genre: "History", Count: 2}}, d.Actions)
	assert.Equal(t, session.ModeGenreChosen, st.Mode)

	d = decide(e, st, text("Start"))
	ask := lastAsk(t, d)
	assert.Equal(t, 1, ask.Number)
	assert.Equal(t, 2, ask.Total)
	assert.Equal(t, session.ModeAsking, st.Mode)
	assert.Equal(t, "run-a", st.RunID)

	answers := map[question.ID]string{"1": "A", "2": "D"}
	var summary *QuizSummary
	for i := 0; i < 2; i++ {
		c.t = c.t.Add(30 * time.Second)
		d = decide(e, st, text(answers[ask.Question.ID]))
		fb, ok := d.Actions[0].(AnswerFeedback)
		require.True(t, ok)
		assert.Equal(t, ask.Question.ID == "1", fb.Correct)
		if s, ok := d.Actions[len(d.Actions)-1].(QuizSummary); ok {
			summary = &s
			break
		}
		ask = lastAsk(t, d)
		assert.Equal(t, 2, ask.Number)
	}

	require.NotNil(t, summary)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Score)
	assert.Equal(t, time.Minute, summary.Elapsed)
	assert.True(t, d.Discard)
	require.NotNil(t, d.Completed)
	assert.Equal(t, []question.ID{"2"}, d.Completed.Mistakes)
	assert.Equal(t, "History", d.Completed.Genre)
	assert.Equal(t, "run-a", d.Completed.RunID)
}

func TestInvalidAnswerIsIdempotent(t *testing.T) {
	e := newEngine(historyRepo(), Config{}, &clock{t: time.Now()})
	st := session.New("u1")
	decide(e, st, text("Genre: History"))
	decide(e, st, text("Start"))
	before := st.Clone()

	for i := 0; i < 2; i++ {
		d := decide(e, st, text("Z"))
		assert.Equal(t, Error{Kind: ErrInvalidAnswer, Detail: "Z"}, firstError(t, d))
		assert.Equal(t, before.Current.Question.ID, lastAsk(t, d).Question.ID)
		assert.False(t, d.Mutated)
		assert.False(t, d.Discard)
	}
	assert.Equal(t, before, st)

	d := decide(e, st, text("3"))
	assert.Equal(t, ErrInvalidAnswer, firstError(t, d).Kind, "index out of range")
}

func TestEveryAnswerScoresOrMisses(t *testing.T) {
	qs := make([]question.Question, 0, 7)
	for i := 0; i < 7; i++ {
		id := question.ID(string(rune('a' + i)))
		qs = append(qs, question.Question{ID: id, Text: "q", Choices: []string{"yes", "no", "maybe"}, Answer: "yes"})
	}
	repo := &fakeRepo{genres: []string{"G"}, qs: map[string][]question.Question{"G": qs}}
	rng := rand.New(rand.NewPCG(7, 7))

	for round := 0; round < 20; round++ {
		e := New(repo, Config{ShuffleChoices: true}, WithRand(rand.New(rand.NewPCG(uint64(round), 3))))
		st := session.New("u")
		decide(e, st, text("Genre: G"))
		d := decide(e, st, Input{Kind: KindStart, Missed: map[string][]question.ID{"G": {"a", "c"}}})

		summaries := 0
		for steps := 0; steps < 50 && summaries == 0; steps++ {
			ask := lastAsk(t, d)
			score, mistakes, answered := st.Score, len(st.Mistakes), len(st.Answered)
			d = decide(e, st, Input{Choice: 1 + rng.IntN(3), Token: ask.Token})

			scored := st.Score - score
			missed := len(st.Mistakes) - mistakes
			assert.Equal(t, 1, scored+missed, "exactly one of score or mistake")
			assert.Equal(t, answered+1, len(st.Answered))
			assert.Len(t, uniqueIDs(st.Answered), len(st.Answered))
			assert.LessOrEqual(t, len(st.Answered), len(qs))

			for _, a := range d.Actions {
				if s, ok := a.(QuizSummary); ok {
					summaries++
					assert.Equal(t, len(qs), s.Total)
					assert.Equal(t, st.Score, s.Score)
				}
			}
		}
		assert.Equal(t, 1, summaries)
		assert.True(t, d.Discard)
	}
}

func uniqueIDs(ids []question.ID) map[question.ID]struct{} {
	m := make(map[question.ID]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func TestRestartDoesNotCarryProgress(t *testing.T) {
	e := newEngine(historyRepo(), Config{}, &clock{t: time.Now()})
	st := session.New("u1")
	decide(e, st, text("Genre: History"))
	d := decide(e, st, text("Start"))
	decide(e, st, text(lastAsk(t, d).Question.Answer))
	require.Len(t, st.Answered, 1)
	require.Equal(t, 1, st.Score)

	d = decide(e, st, text("Restart"))
	assert.Equal(t, session.ModeAsking, st.Mode)
	assert.Empty(t, st.Answered)
	assert.Zero(t, st.Score)
	assert.Equal(t, "run-b", st.RunID)
	assert.Equal(t, 1, lastAsk(t, d).Number)

	// A finished run is discarded by the store; the next run starts clean.
	fresh := session.New("u1")
	decide(e, fresh, text("History"))
	decide(e, fresh, text("スタート"))
	assert.Empty(t, fresh.Answered)
	assert.Zero(t, fresh.Score)
}

func TestEmptyGenreIsCorrective(t *testing.T) {
	e := newEngine(historyRepo(), Config{}, &clock{t: time.Now()})
	st := session.New("u1")
	d := decide(e, st, text("ジャンル: Empty"))
	assert.Equal(t, []Action{GenreConfirmed{Genre: "Empty", Count: 0}}, d.Actions)

	d = decide(e, st, text("Start"))
	assert.Equal(t, []Action{Error{Kind: ErrEmptyGenre, Detail: "Empty"}}, d.Actions)
	assert.Equal(t, session.ModeGenreChosen, st.Mode)
	assert.False(t, d.Discard)
}

func TestGenreSelectionFlow(t *testing.T) {
	e := newEngine(historyRepo(), Config{}, &clock{t: time.Now()})
	st := session.New("u1")

	d := decide(e, st, text("hello"))
	assert.Equal(t, Error{Kind: ErrChooseGenre}, firstError(t, d))
	assert.Equal(t, ShowGenreMenu{Genres: []string{"History", "Science", "Empty"}}, d.Actions[1])

	d = decide(e, st, text("Genre: Art"))
	assert.Equal(t, Error{Kind: ErrUnknownGenre, Detail: "Art"}, firstError(t, d))
	assert.Equal(t, session.ModeNoGenre, st.Mode)

	d = decide(e, st, text("start"))
	assert.Equal(t, ErrChooseGenre, firstError(t, d).Kind)

	decide(e, st, text("genre: history"))
	assert.Equal(t, "History", st.Genre)

	d = decide(e, st, text("what now"))
	assert.Equal(t, Error{Kind: ErrNeedStart, Detail: "History"}, firstError(t, d))

	d = decide(e, st, text("Genres"))
	assert.IsType(t, ShowGenreMenu{}, d.Actions[0])
	assert.Equal(t, session.ModeGenreChosen, st.Mode)
}

func TestStartWhileAskingRepeatsQuestion(t *testing.T) {
	e := newEngine(historyRepo(), Config{}, &clock{t: time.Now()})
	st := session.New("u1")
	decide(e, st, text("Genre: History"))
	first := lastAsk(t, decide(e, st, text("Start")))

	again := decide(e, st, text("Start"))
	assert.Equal(t, []Action{first}, again.Actions)
	assert.False(t, again.Mutated)
}

func TestAnswerResolution(t *testing.T) {
	repo := historyRepo()

	t.Run("choice text wins over command", func(t *testing.T) {
		e := newEngine(repo, Config{}, &clock{t: time.Now()})
		st := session.New("u1")
		st.SelectGenre("Science", time.Now())
		st.Mode = session.ModeAsking
		st.Available = []question.ID{"s1"}
		q, _ := repo.QuestionByID("Science", "s1")
		st.Current = &session.Pending{Question: q, Choices: q.Choices, Number: 1, Total: 1, Token: "t"}

		d := decide(e, st, text("Start"))
		fb := d.Actions[0].(AnswerFeedback)
		assert.True(t, fb.Correct)
		assert.IsType(t, QuizSummary{}, d.Actions[1])
	})

	t.Run("index follows display order", func(t *testing.T) {
		e := newEngine(repo, Config{}, &clock{t: time.Now()})
		st := session.New("u1")
		st.SelectGenre("History", time.Now())
		st.Mode = session.ModeAsking
		st.Available = []question.ID{"1", "2"}
		q, _ := repo.QuestionByID("History", "1")
		st.Current = &session.Pending{Question: q, Choices: []string{"B", "A"}, Number: 1, Total: 2}

		d := decide(e, st, text("2"))
		assert.Equal(t, AnswerFeedback{Correct: true, Given: "A", Answer: "A"}, d.Actions[0])
	})

	t.Run("case folding is opt in", func(t *testing.T) {
		for _, fold := range []bool{false, true} {
			e := newEngine(repo, Config{CaseInsensitive: fold}, &clock{t: time.Now()})
			st := session.New("u1")
			st.SelectGenre("Science", time.Now())
			st.Mode = session.ModeAsking
			st.Available = []question.ID{"s3"}
			q, _ := repo.QuestionByID("Science", "s3")
			st.Current = &session.Pending{Question: q, Number: 1, Total: 1}

			d := decide(e, st, text("  water "))
			fb := d.Actions[0].(AnswerFeedback)
			assert.Equal(t, fold, fb.Correct)
			assert.Equal(t, "water", fb.Given)
		}
	})
}

func TestStaleButtonIsRejected(t *testing.T) {
	e := newEngine(historyRepo(), Config{}, &clock{t: time.Now()})
	st := session.New("u1")
	decide(e, st, text("Genre: History"))
	ask := lastAsk(t, decide(e, st, text("Start")))

	d := decide(e, st, Input{Kind: KindAnswer, Choice: 1, Token: "old.1"})
	assert.Equal(t, Error{Kind: ErrStale}, firstError(t, d))
	assert.Empty(t, st.Answered)

	decide(e, st, Input{Kind: KindAnswer, Choice: 1, Token: ask.Token})
	require.Len(t, st.Answered, 1)

	d = decide(e, st, Input{Kind: KindAnswer, Choice: 1, Token: ask.Token})
	assert.Equal(t, ErrStale, firstError(t, d).Kind, "replayed button must not score twice")
	assert.Len(t, st.Answered, 1)
}

func TestDesyncDiscardsSession(t *testing.T) {
	e := newEngine(historyRepo(), Config{}, &clock{t: time.Now()})

	st := session.New("u1")
	st.Genre, st.Mode = "History", session.ModeAsking
	d := decide(e, st, text("A"))
	assert.Equal(t, []Action{Error{Kind: ErrDesync}}, d.Actions)
	assert.True(t, d.Discard)

	q, _ := historyRepo().QuestionByID("History", "1")
	st = session.New("u1")
	st.Genre, st.Mode = "History", session.ModeAsking
	st.Available = []question.ID{"1", "2"}
	st.Answered = []question.ID{"1"}
	st.Current = &session.Pending{Question: q, Choices: q.Choices}
	d = decide(e, st, text("A"))
	assert.Equal(t, ErrDesync, firstError(t, d).Kind)
	assert.True(t, d.Discard)
	assert.Equal(t, 0, st.Score)
}

func TestAbort(t *testing.T) {
	e := newEngine(historyRepo(), Config{}, &clock{t: time.Now()})

	st := session.New("u1")
	d := decide(e, st, text("Quit"))
	assert.Equal(t, []Action{Error{Kind: ErrNothingToAbort}}, d.Actions)
	assert.True(t, d.Discard)

	decide(e, st, text("Genre: History"))
	ask := lastAsk(t, decide(e, st, text("Start")))
	decide(e, st, text(ask.Question.Answer))
	d = decide(e, st, Input{Kind: KindAbort})
	assert.Equal(t, []Action{QuizAborted{Genre: "History", Answered: 1, Score: 1}}, d.Actions)
	assert.True(t, d.Discard)
	assert.Nil(t, d.Completed)
}

func TestCommandsDuringFreeAnswer(t *testing.T) {
	repo := historyRepo()
	pendingFree := func() *session.State {
		st := session.New("u1")
		st.SelectGenre("Science", time.Now())
		st.Mode = session.ModeAsking
		st.RunID = "run-a"
		st.Available = []question.ID{"s3"}
		q, _ := repo.QuestionByID("Science", "s3")
		st.Current = &session.Pending{Question: q, Number: 1, Total: 1, Token: "runa.1"}
		return st
	}
	e := newEngine(repo, Config{}, &clock{t: time.Now()})

	st := pendingFree()
	d := decide(e, st, text("Quit"))
	assert.Equal(t, []Action{QuizAborted{Genre: "Science"}}, d.Actions)
	assert.True(t, d.Discard)
	assert.Nil(t, d.Completed)
	assert.Empty(t, st.Mistakes)
	assert.Empty(t, st.Answered)

	st = pendingFree()
	d = decide(e, st, text("Start"))
	assert.Equal(t, []Action{askFrom(st.Current)}, d.Actions)
	assert.Empty(t, st.Answered)

	d = decide(e, st, text("Genres"))
	assert.Equal(t, []Action{ShowGenreMenu{Genres: repo.Genres()}}, d.Actions)
	assert.Empty(t, st.Answered)

	d = decide(e, st, text("Quitting"))
	fb := d.Actions[0].(AnswerFeedback)
	assert.False(t, fb.Correct)
	assert.Equal(t, []question.ID{"s3"}, st.Mistakes)
}

func TestStaleQuitButton(t *testing.T) {
	e := newEngine(historyRepo(), Config{}, &clock{t: time.Now()})

	idle := session.New("u1")
	d := decide(e, idle, Input{Kind: KindAbort, Token: "old.1"})
	assert.Equal(t, []Action{Error{Kind: ErrStale}}, d.Actions)
	assert.False(t, d.Discard)

	st := session.New("u1")
	decide(e, st, text("Genre: History"))
	ask := lastAsk(t, decide(e, st, text("Start")))

	d = decide(e, st, Input{Kind: KindAbort, Token: "old.1"})
	assert.Equal(t, []Action{Error{Kind: ErrStale}, ask}, d.Actions)
	assert.False(t, d.Discard)
	assert.Equal(t, session.ModeAsking, st.Mode)

	d = decide(e, st, Input{Kind: KindAbort, Token: ask.Token})
	assert.Equal(t, []Action{QuizAborted{Genre: "History"}}, d.Actions)
	assert.True(t, d.Discard)
}

func TestExcludeMalformed(t *testing.T) {
	for _, exclude := range []bool{false, true} {
		e := newEngine(historyRepo(), Config{ExcludeMalformed: exclude}, &clock{t: time.Now()})
		st := session.New("u1")
		decide(e, st, text("Genre: Science"))
		decide(e, st, text("Start"))
		assert.Equal(t, !exclude, len(st.Available) == 3)
		if exclude {
			assert.NotContains(t, st.Available, question.ID("s2"))
		}
	}
}

func TestMissedQuestionsAreWeighted(t *testing.T) {
	e := newEngine(historyRepo(), Config{}, &clock{t: time.Now()})
	st := session.New("u1")
	decide(e, st, text("Genre: History"))
	decide(e, st, Input{Kind: KindStart, Missed: map[string][]question.ID{
		"History": {"2"},
		"Science": {"1"},
	}})
	assert.ElementsMatch(t, []question.ID{"1", "2", "2", "2"}, st.Pool)
	assert.Equal(t, []question.ID{"1", "2"}, st.Available)
}
