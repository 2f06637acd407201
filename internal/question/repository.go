package question

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/m3rciful/quizbot/core/logger"
)

const component = "question"

// ErrLoad marks failures to load the question source.
var ErrLoad = errors.New("question: load failed")

// LoadError reports which path could not be loaded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load questions from %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrLoad) hold for every LoadError.
func (e *LoadError) Is(target error) bool { return target == ErrLoad }

// Source selects the on-disk layout. Exactly one of File and Dir is used;
// File wins when both are set.
type Source struct {
	// File is a single JSON array whose records carry a genre field.
	File string
	// Dir holds one JSON array file per genre.
	Dir string
	// Genres lists genre names for the Dir layout in menu order.
	// Empty means every *.json file in Dir.
	Genres []string
	// Aliases maps a genre name to its file stem in Dir.
	Aliases map[string]string
	// DefaultGenre is used for File records without a genre.
	DefaultGenre string
}

// Repository is the read-only, process-wide question set.
type Repository struct {
	genres   []string
	byGenre  map[string][]Question
	index    map[string]map[ID]int
	problems []Problem
}

// Load reads questions according to src.
func Load(ctx context.Context, src Source) (*Repository, error) {
	switch {
	case src.File != "":
		return LoadFile(ctx, src.File, src.DefaultGenre)
	case src.Dir != "":
		return LoadDir(ctx, src.Dir, src.Genres, src.Aliases)
	}
	return nil, &LoadError{Path: "", Err: errors.New("no question source configured")}
}

// LoadFile reads a single JSON array of questions grouped by their genre field.
// Genres appear in order of first occurrence.
func LoadFile(ctx context.Context, path, defaultGenre string) (*Repository, error) {
	records, err := readRecords(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if defaultGenre == "" {
		defaultGenre = "Other"
	}

	r := newRepository()
	for _, q := range records {
		q.Genre = strings.TrimSpace(q.Genre)
		if q.Genre == "" {
			q.Genre = defaultGenre
		}
		r.add(ctx, q)
	}
	r.logLoaded(ctx, path)
	return r, nil
}

// LoadDir reads one file per genre. A missing or malformed genre file
// leaves that genre empty and is logged; other genres still load.
func LoadDir(ctx context.Context, dir string, genres []string, aliases map[string]string) (*Repository, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &LoadError{Path: dir, Err: err}
	}
	if !info.IsDir() {
		return nil, &LoadError{Path: dir, Err: errors.New("not a directory")}
	}
	if len(genres) == 0 {
		if genres, err = discoverGenres(dir, aliases); err != nil {
			return nil, &LoadError{Path: dir, Err: err}
		}
	}

	r := newRepository()
	for _, genre := range genres {
		r.ensureGenre(genre)
		stem := genre
		if alias, ok := aliases[genre]; ok && alias != "" {
			stem = alias
		}
		path := filepath.Join(dir, stem+".json")
		records, err := readRecords(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			logger.Info(ctx, component, "question.genre_missing",
				slog.String("genre", genre),
				slog.String("path", path),
			)
			continue
		case err != nil:
			r.problems = append(r.problems, Problem{Genre: genre, Reason: err.Error()})
			logger.Warn(ctx, component, "question.genre_failed",
				slog.String("genre", genre),
				slog.String("path", path),
				logger.Err(err),
			)
			continue
		}
		for _, q := range records {
			q.Genre = genre
			r.add(ctx, q)
		}
	}
	r.logLoaded(ctx, dir)
	return r, nil
}

func discoverGenres(dir string, aliases map[string]string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	byStem := lo.Invert(aliases)
	var genres []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), ".json")
		if genre, ok := byStem[stem]; ok {
			stem = genre
		}
		genres = append(genres, stem)
	}
	sort.Strings(genres)
	return genres, nil
}

func readRecords(path string) ([]Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []Question
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("malformed JSON: %w", err)
	}
	return records, nil
}

func newRepository() *Repository {
	return &Repository{
		byGenre: make(map[string][]Question),
		index:   make(map[string]map[ID]int),
	}
}

func (r *Repository) ensureGenre(genre string) {
	if _, ok := r.index[genre]; ok {
		return
	}
	r.genres = append(r.genres, genre)
	r.index[genre] = make(map[ID]int)
}

// add stores q unless its id is empty or already taken within the genre.
// Other problems are recorded as warnings only.
func (r *Repository) add(ctx context.Context, q Question) {
	r.ensureGenre(q.Genre)
	q.Text = strings.TrimSpace(q.Text)
	for _, p := range q.Validate() {
		r.problems = append(r.problems, p)
		logger.Warn(ctx, component, "question.invalid",
			slog.String("genre", p.Genre),
			slog.String("question_id", string(p.ID)),
			slog.String("cause", p.Reason),
		)
	}
	if q.ID == "" {
		return
	}
	if _, dup := r.index[q.Genre][q.ID]; dup {
		p := Problem{Genre: q.Genre, ID: q.ID, Reason: "duplicate id, later record ignored"}
		r.problems = append(r.problems, p)
		logger.Warn(ctx, component, "question.duplicate",
			slog.String("genre", q.Genre),
			slog.String("question_id", string(q.ID)),
		)
		return
	}
	r.index[q.Genre][q.ID] = len(r.byGenre[q.Genre])
	r.byGenre[q.Genre] = append(r.byGenre[q.Genre], q.Clone())
}

func (r *Repository) logLoaded(ctx context.Context, path string) {
	preview, truncated := logger.SummarizeStrings(r.genres, 8)
	logger.Info(ctx, component, "question.loaded",
		slog.String("path", path),
		slog.Int("genres", len(r.genres)),
		slog.Int("count", r.Len()),
		slog.Int("problems", len(r.problems)),
		slog.String("genres_preview", preview),
		slog.Bool("genres_truncated", truncated),
	)
}

// Genres returns genre names in menu order, including empty genres.
func (r *Repository) Genres() []string {
	return append([]string(nil), r.genres...)
}

// HasGenre reports whether genre is known.
func (r *Repository) HasGenre(genre string) bool {
	_, ok := r.index[genre]
	return ok
}

// QuestionsByGenre returns copies of the genre's questions in source order.
// The result is empty, not nil-erroring, for unknown or empty genres.
func (r *Repository) QuestionsByGenre(genre string) []Question {
	return lo.Map(r.byGenre[genre], func(q Question, _ int) Question { return q.Clone() })
}

// QuestionByID returns a copy of the question, if present.
func (r *Repository) QuestionByID(genre string, id ID) (Question, bool) {
	i, ok := r.index[genre][id]
	if !ok {
		return Question{}, false
	}
	return r.byGenre[genre][i].Clone(), true
}

// Len returns the total number of stored questions.
func (r *Repository) Len() int {
	n := 0
	for _, qs := range r.byGenre {
		n += len(qs)
	}
	return n
}

// Problems returns every warning recorded while loading.
func (r *Repository) Problems() []Problem {
	return append([]Problem(nil), r.problems...)
}
