// Package question loads quiz questions and serves read-only copies of them.
package question

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// ID identifies a question inside its genre. Source files may use
// strings or integers; both decode to the same ID.
type ID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("question id must be a string or number: %w", err)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("question id %q: %w", n, err)
	}
	*id = ID(n.String())
	return nil
}

// Question is one multiple-choice (or free-answer) quiz record.
type Question struct {
	ID          ID       `json:"id"`
	Genre       string   `json:"genre,omitempty"`
	Text        string   `json:"question"`
	Choices     []string `json:"choices"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation,omitempty"`
}

// Clone returns a copy that shares no slices with q.
func (q Question) Clone() Question {
	q.Choices = append([]string(nil), q.Choices...)
	return q
}

// HasChoices reports whether the question is multiple choice.
func (q Question) HasChoices() bool {
	return len(q.Choices) > 0
}

// AnswerInChoices reports whether the trimmed answer is one of the trimmed choices.
// Free-answer questions always pass.
func (q Question) AnswerInChoices() bool {
	if !q.HasChoices() {
		return true
	}
	answer := strings.TrimSpace(q.Answer)
	return lo.ContainsBy(q.Choices, func(c string) bool { return strings.TrimSpace(c) == answer })
}

// Malformed reports whether the answer is missing from the choices.
func (q Question) Malformed() bool {
	return !q.AnswerInChoices()
}

// Problem is a shape or invariant violation found in a question.
type Problem struct {
	Genre  string
	ID     ID
	Reason string
}

func (p Problem) String() string {
	return fmt.Sprintf("%s/%s: %s", p.Genre, p.ID, p.Reason)
}

// Validate lists every problem with q. None of them is fatal.
func (q Question) Validate() []Problem {
	var out []Problem
	add := func(reason string) {
		out = append(out, Problem{Genre: q.Genre, ID: q.ID, Reason: reason})
	}
	if q.ID == "" {
		add("missing id")
	}
	if strings.TrimSpace(q.Text) == "" {
		add("empty question text")
	}
	if strings.TrimSpace(q.Answer) == "" {
		add("empty answer")
	}
	trimmed := lo.Map(q.Choices, func(c string, _ int) string { return strings.TrimSpace(c) })
	if lo.Contains(trimmed, "") {
		add("empty choice")
	}
	if dups := lo.FindDuplicates(trimmed); len(dups) > 0 {
		add("duplicate choices: " + strings.Join(dups, ", "))
	}
	if q.Malformed() {
		add(fmt.Sprintf("answer %q is not among the choices", strings.TrimSpace(q.Answer)))
	}
	return out
}
