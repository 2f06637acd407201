// Package responder renders quiz actions into localized chat messages.
package responder

import (
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/m3rciful/quizbot/core/logger"
	"github.com/m3rciful/quizbot/core/telegram/keyboard"
	"github.com/m3rciful/quizbot/internal/quiz"
)

//go:embed locales/*.json
var localeFS embed.FS

// Callback uniques for inline question buttons.
const (
	AnswerUnique = "ans"
	QuitUnique   = "quit"
)

// Button is an inline button carrying callback data.
type Button struct {
	Text   string
	Unique string
	Data   string
}

// Message is one outbound chat message independent of the transport.
type Message struct {
	Text string
	// Keyboard rows of reply-button labels; nil leaves the keyboard as is.
	Keyboard [][]string
	// Inline buttons, one per row. Telegram carries one markup per
	// message, so Inline wins over Keyboard.
	Inline []Button
}

// Options tune rendering.
type Options struct {
	DefaultLang string
	Commands    quiz.Commands
	// InlineChoices sends answer choices as inline buttons instead of a reply keyboard.
	InlineChoices bool
	// MenuColumns is the number of genre buttons per row.
	MenuColumns int
}

// Responder holds the translation bundle.
type Responder struct {
	bundle *i18n.Bundle
	opts   Options
}

// New loads the embedded locales.
func New(opts Options) (*Responder, error) {
	if opts.DefaultLang == "" {
		opts.DefaultLang = "en"
	}
	if opts.MenuColumns <= 0 {
		opts.MenuColumns = 2
	}
	opts.Commands = opts.Commands.WithDefaults()
	tag, err := language.Parse(opts.DefaultLang)
	if err != nil {
		return nil, fmt.Errorf("parse language %q: %w", opts.DefaultLang, err)
	}
	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)
	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read locale file %s: %w", e.Name(), err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, e.Name()); err != nil {
			return nil, fmt.Errorf("parse locale file %s: %w", e.Name(), err)
		}
	}
	return &Responder{bundle: bundle, opts: opts}, nil
}

// Languages lists the loaded language tags.
func (r *Responder) Languages() []string {
	tags := r.bundle.LanguageTags()
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, t.String())
	}
	return out
}

// T translates id for lang. Missing ids fall back to the id itself.
func (r *Responder) T(lang, id string, data map[string]any) string {
	loc := i18n.NewLocalizer(r.bundle, lang, r.opts.DefaultLang)
	s, err := loc.Localize(&i18n.LocalizeConfig{MessageID: id, TemplateData: data})
	if err != nil {
		logger.Warn(logger.Background(), "responder", "i18n.missing",
			slog.String("id", id),
			slog.String("lang", lang),
			logger.Err(err),
		)
		return id
	}
	return s
}

func first(list []string) string {
	if len(list) == 0 {
		return ""
	}
	return list[0]
}

func (r *Responder) commandData() map[string]any {
	c := r.opts.Commands
	return map[string]any{
		"Menu":        first(c.Menu),
		"GenrePrefix": first(c.GenrePrefix),
		"Start":       first(c.Start),
		"Restart":     first(c.Restart),
		"Abort":       first(c.Abort),
	}
}

func (r *Responder) with(data map[string]any) map[string]any {
	out := r.commandData()
	for k, v := range data {
		out[k] = v
	}
	return out
}

// Text renders a standalone message by id.
func (r *Responder) Text(lang, id string, data map[string]any) Message {
	return Message{Text: r.T(lang, id, r.with(data))}
}

// Welcome greets a user and shows the genre menu.
func (r *Responder) Welcome(lang string, genres []string) []Message {
	return append([]Message{r.Text(lang, "Welcome", nil)}, r.Render(lang, []quiz.Action{quiz.ShowGenreMenu{Genres: genres}})...)
}

// Render converts actions into messages in order.
func (r *Responder) Render(lang string, actions []quiz.Action) []Message {
	out := make([]Message, 0, len(actions))
	for _, a := range actions {
		out = append(out, r.render(lang, a)...)
	}
	return out
}

func (r *Responder) render(lang string, a quiz.Action) []Message {
	c := r.opts.Commands
	switch act := a.(type) {
	case quiz.ShowGenreMenu:
		if len(act.Genres) == 0 {
			return []Message{r.Text(lang, "NoGenres", nil)}
		}
		labels := make([]string, 0, len(act.Genres))
		for _, g := range act.Genres {
			labels = append(labels, c.GenreLabel(g))
		}
		return []Message{{Text: r.T(lang, "GenreMenu", nil), Keyboard: keyboard.Chunk(labels, r.opts.MenuColumns)}}

	case quiz.GenreConfirmed:
		msg := r.Text(lang, "GenreConfirmed", map[string]any{"Genre": act.Genre, "Count": act.Count})
		msg.Keyboard = [][]string{{first(c.Start)}, {first(c.Menu)}}
		return []Message{msg}

	case quiz.AskQuestion:
		return []Message{r.question(lang, act)}

	case quiz.AnswerFeedback:
		var b strings.Builder
		if act.Correct {
			b.WriteString(r.T(lang, "Correct", nil))
		} else {
			b.WriteString(r.T(lang, "Incorrect", map[string]any{"Answer": act.Answer}))
		}
		if act.Explanation != "" {
			b.WriteString("\n")
			b.WriteString(r.T(lang, "Explanation", map[string]any{"Text": act.Explanation}))
		}
		return []Message{{Text: b.String()}}

	case quiz.QuizSummary:
		msg := r.Text(lang, "Summary", map[string]any{
			"Genre":   act.Genre,
			"Total":   act.Total,
			"Score":   act.Score,
			"Seconds": int(math.Round(act.Elapsed.Seconds())),
		})
		// The session is discarded at the end of a run; replay goes through the genre.
		msg.Keyboard = [][]string{{c.GenreLabel(act.Genre)}, {first(c.Menu)}}
		return []Message{msg}

	case quiz.QuizAborted:
		msg := r.Text(lang, "Aborted", map[string]any{"Genre": act.Genre, "Answered": act.Answered, "Score": act.Score})
		msg.Keyboard = [][]string{{first(c.Menu)}}
		return []Message{msg}

	case quiz.Error:
		return []Message{r.errorMessage(lang, act)}
	}
	return nil
}

func (r *Responder) question(lang string, act quiz.AskQuestion) Message {
	c := r.opts.Commands
	var b strings.Builder
	b.WriteString(r.T(lang, "Question", map[string]any{
		"Number": act.Number,
		"Total":  act.Total,
		"Text":   act.Question.Text,
	}))
	for i, choice := range act.Choices {
		fmt.Fprintf(&b, "\n%d. %s", i+1, choice)
	}
	msg := Message{Text: b.String()}

	if r.opts.InlineChoices && len(act.Choices) > 0 {
		for i, choice := range act.Choices {
			msg.Inline = append(msg.Inline, Button{
				Text:   strconv.Itoa(i+1) + ". " + choice,
				Unique: AnswerUnique,
				Data:   AnswerPayload(act.Token, i+1),
			})
		}
		msg.Inline = append(msg.Inline, Button{Text: first(c.Abort), Unique: QuitUnique, Data: act.Token})
		return msg
	}
	rows := make([][]string, 0, len(act.Choices)+1)
	for _, choice := range act.Choices {
		rows = append(rows, []string{choice})
	}
	rows = append(rows, []string{first(c.Abort)})
	msg.Keyboard = rows
	return msg
}

func (r *Responder) errorMessage(lang string, e quiz.Error) Message {
	c := r.opts.Commands
	id := map[quiz.ErrorKind]string{
		quiz.ErrChooseGenre:    "ErrChooseGenre",
		quiz.ErrUnknownGenre:   "ErrUnknownGenre",
		quiz.ErrNeedStart:      "ErrNeedStart",
		quiz.ErrInvalidAnswer:  "ErrInvalidAnswer",
		quiz.ErrEmptyGenre:     "ErrEmptyGenre",
		quiz.ErrDesync:         "ErrDesync",
		quiz.ErrNothingToAbort: "ErrNothingToAbort",
		quiz.ErrStale:          "ErrStale",
	}[e.Kind]
	if id == "" {
		id = "InternalError"
	}
	msg := r.Text(lang, id, map[string]any{"Detail": e.Detail})
	switch e.Kind {
	case quiz.ErrNeedStart:
		msg.Keyboard = [][]string{{first(c.Start)}, {first(c.Menu)}}
	case quiz.ErrDesync, quiz.ErrEmptyGenre, quiz.ErrNothingToAbort:
		msg.Keyboard = [][]string{{first(c.Menu)}}
	}
	return msg
}

// AnswerPayload encodes an inline answer button; the index is 1-based.
func AnswerPayload(token string, index int) string {
	return token + "|" + strconv.Itoa(index)
}
