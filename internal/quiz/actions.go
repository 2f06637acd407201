package quiz

import (
	"time"

	"github.com/m3rciful/quizbot/internal/question"
)

// Action is one outbound instruction for the responder.
type Action interface {
	action()
}

// ShowGenreMenu lists the selectable genres.
type ShowGenreMenu struct {
	Genres []string
}

// GenreConfirmed acknowledges a genre selection.
type GenreConfirmed struct {
	Genre string
	Count int
}

// AskQuestion presents a question with its choices in display order.
type AskQuestion struct {
	Question question.Question
	Choices  []string
	Number   int
	Total    int
	Token    string
}

// AnswerFeedback reports whether the last answer was correct.
type AnswerFeedback struct {
	Correct     bool
	Given       string
	Answer      string
	Explanation string
}

// QuizSummary closes a completed run.
type QuizSummary struct {
	Genre   string
	Total   int
	Score   int
	Elapsed time.Duration
}

// QuizAborted confirms that the user quit a run.
type QuizAborted struct {
	Genre    string
	Answered int
	Score    int
}

// ErrorKind classifies recoverable input problems.
type ErrorKind int

const (
	// ErrChooseGenre means no genre has been selected yet.
	ErrChooseGenre ErrorKind = iota + 1
	// ErrUnknownGenre means the requested genre does not exist.
	ErrUnknownGenre
	// ErrNeedStart means a genre is chosen but the run has not started.
	ErrNeedStart
	// ErrInvalidAnswer means the answer matches no choice.
	ErrInvalidAnswer
	// ErrEmptyGenre means the genre has no selectable questions.
	ErrEmptyGenre
	// ErrDesync means the progress record was inconsistent and was dropped.
	ErrDesync
	// ErrNothingToAbort means there was no run to quit.
	ErrNothingToAbort
	// ErrStale means an answer button from an earlier prompt was pressed.
	ErrStale
)

func (k ErrorKind) String() string {
	switch k {
	case ErrChooseGenre:
		return "choose_genre"
	case ErrUnknownGenre:
		return "unknown_genre"
	case ErrNeedStart:
		return "need_start"
	case ErrInvalidAnswer:
		return "invalid_answer"
	case ErrEmptyGenre:
		return "empty_genre"
	case ErrDesync:
		return "desync"
	case ErrNothingToAbort:
		return "nothing_to_abort"
	case ErrStale:
		return "stale"
	}
	return "unknown"
}

// Error is a corrective message. Detail carries the offending input or genre.
type Error struct {
	Kind   ErrorKind
	Detail string
}

func (ShowGenreMenu) action()  {}
func (GenreConfirmed) action() {}
func (AskQuestion) action()    {}
func (AnswerFeedback) action() {}
func (QuizSummary) action()    {}
func (QuizAborted) action()    {}
func (Error) action()          {}

// Result describes a completed run for persistence of missed questions.
type Result struct {
	UserID   string
	Genre    string
	RunID    string
	Total    int
	Score    int
	Mistakes []question.ID
	Elapsed  time.Duration
}

// Decision is the outcome of one inbound input.
type Decision struct {
	Actions []Action
	// Discard asks the store to drop the session after this reply.
	Discard bool
	// Completed is set when a run reached its summary.
	Completed *Result
	// Mutated reports whether session progress changed.
	Mutated bool
}
