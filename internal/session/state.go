// Package session holds per-user quiz progress and the store that serializes access to it.
package session

import (
	"slices"
	"time"

	"github.com/m3rciful/quizbot/internal/question"
)

// Mode is the quiz progress state of a user.
type Mode int

const (
	// ModeNoGenre waits for a genre selection.
	ModeNoGenre Mode = iota
	// ModeGenreChosen waits for the start command.
	ModeGenreChosen
	// ModeAsking has a pending question.
	ModeAsking
	// ModeFinished lives only while the summary reply is built.
	ModeFinished
)

func (m Mode) String() string {
	switch m {
	case ModeNoGenre:
		return "no_genre"
	case ModeGenreChosen:
		return "genre_chosen"
	case ModeAsking:
		return "asking"
	case ModeFinished:
		return "finished"
	}
	return "unknown"
}

// Pending is the question currently shown to the user.
type Pending struct {
	Question question.Question
	// Choices is the display order; answers by index refer to it.
	Choices []string
	Number  int
	Total   int
	// Token identifies this exact prompt so stale buttons can be told apart.
	Token string
}

// State is the quiz progress of one user.
type State struct {
	UserID string
	Mode   Mode
	Genre  string
	RunID  string

	// Available holds each eligible question id once.
	Available []question.ID
	// Pool is the weighted sampling pool; ids may repeat.
	Pool     []question.ID
	Answered []question.ID
	Mistakes []question.ID
	Score    int
	Current  *Pending

	StartedAt time.Time
}

// New returns an empty state for userID.
func New(userID string) *State {
	return &State{UserID: userID, Mode: ModeNoGenre}
}

// Reset clears run progress and restarts the clock. Genre is kept.
func (s *State) Reset(now time.Time) {
	s.RunID = ""
	s.Available = nil
	s.Pool = nil
	s.Answered = nil
	s.Mistakes = nil
	s.Score = 0
	s.Current = nil
	s.StartedAt = now
}

// SelectGenre switches to genre and resets progress.
func (s *State) SelectGenre(genre string, now time.Time) {
	s.Genre = genre
	s.Mode = ModeGenreChosen
	s.Reset(now)
}

// HasAnswered reports whether id was already answered in this run.
func (s *State) HasAnswered(id question.ID) bool {
	return slices.Contains(s.Answered, id)
}

// Remaining returns the pool entries not yet answered, duplicates included.
func (s *State) Remaining() []question.ID {
	out := make([]question.ID, 0, len(s.Pool))
	for _, id := range s.Pool {
		if !s.HasAnswered(id) {
			out = append(out, id)
		}
	}
	return out
}

// Elapsed is the time since the run started.
func (s *State) Elapsed(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(s.StartedAt)
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := *s
	c.Available = slices.Clone(s.Available)
	c.Pool = slices.Clone(s.Pool)
	c.Answered = slices.Clone(s.Answered)
	c.Mistakes = slices.Clone(s.Mistakes)
	if s.Current != nil {
		p := *s.Current
		p.Question = s.Current.Question.Clone()
		p.Choices = slices.Clone(s.Current.Choices)
		c.Current = &p
	}
	return &c
}
