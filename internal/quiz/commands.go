package quiz

import (
	"strings"
	"unicode/utf8"
)

// Kind classifies an inbound input.
type Kind int

const (
	// KindText is free text; the engine classifies it.
	KindText Kind = iota
	// KindMenu asks for the genre list.
	KindMenu
	// KindGenre selects the genre named by Input.Text.
	KindGenre
	// KindStart starts the chosen genre or repeats the pending question.
	KindStart
	// KindRestart begins the chosen genre again from scratch.
	KindRestart
	// KindAbort quits and discards the session.
	KindAbort
	// KindAnswer answers the pending question.
	KindAnswer
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindMenu:
		return "menu"
	case KindGenre:
		return "genre"
	case KindStart:
		return "start"
	case KindRestart:
		return "restart"
	case KindAbort:
		return "abort"
	case KindAnswer:
		return "answer"
	}
	return "unknown"
}

// Commands lists the text commands per kind. The first entry of each list
// is used as the button label.
type Commands struct {
	Menu        []string `yaml:"menu"`
	GenrePrefix []string `yaml:"genre_prefix"`
	Start       []string `yaml:"start"`
	Restart     []string `yaml:"restart"`
	Abort       []string `yaml:"abort"`
}

// DefaultCommands returns the English and Japanese text commands.
func DefaultCommands() Commands {
	return Commands{
		Menu:        []string{"Genres", "ジャンル選択"},
		GenrePrefix: []string{"Genre:", "ジャンル:"},
		Start:       []string{"Start", "スタート"},
		Restart:     []string{"Restart", "もう一度"},
		Abort:       []string{"Quit", "やめる"},
	}
}

// WithDefaults fills empty lists from DefaultCommands.
func (c Commands) WithDefaults() Commands {
	d := DefaultCommands()
	fill := func(dst *[]string, def []string) {
		if len(*dst) == 0 {
			*dst = def
		}
	}
	fill(&c.Menu, d.Menu)
	fill(&c.GenrePrefix, d.GenrePrefix)
	fill(&c.Start, d.Start)
	fill(&c.Restart, d.Restart)
	fill(&c.Abort, d.Abort)
	return c
}

// GenreLabel renders the selection text for genre with the first prefix.
func (c Commands) GenreLabel(genre string) string {
	if len(c.GenrePrefix) == 0 {
		return genre
	}
	return c.GenrePrefix[0] + " " + genre
}

// Parse classifies text. For KindGenre the returned argument is the genre
// name after the prefix; otherwise it is the trimmed text.
// Commands match case-insensitively.
func (c Commands) Parse(text string) (Kind, string) {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return KindText, ""
	case matchAny(c.Menu, text):
		return KindMenu, text
	case matchAny(c.Start, text):
		return KindStart, text
	case matchAny(c.Restart, text):
		return KindRestart, text
	case matchAny(c.Abort, text):
		return KindAbort, text
	}
	for _, prefix := range c.GenrePrefix {
		if rest, ok := cutPrefixFold(text, prefix); ok {
			return KindGenre, strings.TrimSpace(rest)
		}
	}
	return KindText, text
}

func matchAny(list []string, text string) bool {
	for _, cmd := range list {
		if strings.EqualFold(strings.TrimSpace(cmd), text) {
			return true
		}
	}
	return false
}

func cutPrefixFold(s, prefix string) (string, bool) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" || len(s) < len(prefix) {
		return "", false
	}
	head := s[:len(prefix)]
	if !utf8.ValidString(head) || !strings.EqualFold(head, prefix) {
		return "", false
	}
	return s[len(prefix):], true
}
