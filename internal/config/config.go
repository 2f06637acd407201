// Package config holds the quiz bot configuration on top of the core config.
package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/quizbot/core/config"
	"github.com/m3rciful/quizbot/internal/question"
	"github.com/m3rciful/quizbot/internal/quiz"
)

const (
	// StorageFile keeps side data in JSON files.
	StorageFile = "file"
	// StoragePostgres keeps side data in postgres.
	StoragePostgres = "postgres"
	// DedupMemory remembers event ids in process.
	DedupMemory = "memory"
	// DedupRedis shares event ids through redis.
	DedupRedis = "redis"
	// Disabled turns an optional backend off.
	Disabled = "none"
)

// BotConfig holds presentation settings.
type BotConfig struct {
	Lang        string `yaml:"lang" envconfig:"BOT_LANG"`
	MenuColumns int    `yaml:"menu_columns"`
}

// QuizConfig tunes the quiz engine.
type QuizConfig struct {
	Commands         quiz.Commands `yaml:"commands"`
	CaseInsensitive  bool          `yaml:"case_insensitive" envconfig:"QUIZ_CASE_INSENSITIVE"`
	ShuffleChoices   bool          `yaml:"shuffle_choices" envconfig:"QUIZ_SHUFFLE_CHOICES"`
	ExcludeMalformed bool          `yaml:"exclude_malformed" envconfig:"QUIZ_EXCLUDE_MALFORMED"`
	InlineChoices    bool          `yaml:"inline_choices" envconfig:"QUIZ_INLINE_CHOICES"`
	MissedWeight     int           `yaml:"missed_weight" envconfig:"QUIZ_MISSED_WEIGHT"`
	// LockTimeout bounds how long an update waits for the user's previous one.
	LockTimeout time.Duration `yaml:"lock_timeout"`
}

// QuestionsConfig selects the question source. File wins over Dir.
type QuestionsConfig struct {
	File         string            `yaml:"file" envconfig:"QUESTIONS_FILE"`
	Dir          string            `yaml:"dir" envconfig:"QUESTIONS_DIR"`
	Genres       []string          `yaml:"genres"`
	Aliases      map[string]string `yaml:"aliases"`
	DefaultGenre string            `yaml:"default_genre"`
}

// Source converts the settings into a repository source.
func (q QuestionsConfig) Source() question.Source {
	return question.Source{
		File:         q.File,
		Dir:          q.Dir,
		Genres:       q.Genres,
		Aliases:      q.Aliases,
		DefaultGenre: q.DefaultGenre,
	}
}

// StorageConfig selects where missed ids and the knowledge log live.
type StorageConfig struct {
	Backend       string        `yaml:"backend" envconfig:"STORAGE_BACKEND"`
	MissedFile    string        `yaml:"missed_file"`
	KnowledgeFile string        `yaml:"knowledge_file"`
	Timeout       time.Duration `yaml:"timeout"`
}

// DedupConfig selects the duplicate-event guard.
type DedupConfig struct {
	Backend string        `yaml:"backend" envconfig:"DEDUP_BACKEND"`
	TTL     time.Duration `yaml:"ttl"`
	Prefix  string        `yaml:"prefix"`
}

// AskConfig configures ask mode and the language model.
type AskConfig struct {
	Enabled      bool          `yaml:"enabled" envconfig:"ASK_ENABLED"`
	Threshold    float64       `yaml:"threshold"`
	Timeout      time.Duration `yaml:"timeout"`
	BaseURL      string        `yaml:"base_url" envconfig:"LLM_BASE_URL"`
	Model        string        `yaml:"model" envconfig:"LLM_MODEL"`
	APIKey       string        `yaml:"api_key" envconfig:"LLM_API_KEY"`
	SystemPrompt string        `yaml:"system_prompt"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Bot       BotConfig       `yaml:"bot"`
	Quiz      QuizConfig      `yaml:"quiz"`
	Questions QuestionsConfig `yaml:"questions"`
	Storage   StorageConfig   `yaml:"storage"`
	Dedup     DedupConfig     `yaml:"dedup"`
	Ask       AskConfig       `yaml:"ask"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// UsePostgres reports whether the postgres connection is needed.
func (c *Config) UsePostgres() bool {
	return c.Storage.Backend == StoragePostgres
}

// UseRedis reports whether the redis connection is needed.
func (c *Config) UseRedis() bool {
	return c.Dedup.Backend == DedupRedis
}

// Load reads, overrides from the environment and validates the full config.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadQuestions reads the config for offline tools; no chat token is required.
func LoadQuestions(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validateQuestions(cfg.Questions); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize fills defaults and validates the application sections.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	applyDefaults(cfg)
	if err := validateQuestions(cfg.Questions); err != nil {
		return err
	}

	switch cfg.Storage.Backend {
	case StorageFile, StoragePostgres, Disabled:
	default:
		return fmt.Errorf("invalid storage.backend %q; allowed: file, postgres, none", cfg.Storage.Backend)
	}
	if cfg.Storage.Backend == StoragePostgres {
		if err := coreconfig.ValidateDatabase(cfg.Database); err != nil {
			return err
		}
	}

	switch cfg.Dedup.Backend {
	case DedupMemory, DedupRedis, Disabled:
	default:
		return fmt.Errorf("invalid dedup.backend %q; allowed: memory, redis, none", cfg.Dedup.Backend)
	}
	if cfg.Dedup.Backend == DedupRedis && strings.TrimSpace(cfg.Redis.Addr) == "" {
		return fmt.Errorf("redis.addr is required when dedup.backend is 'redis' (REDIS_ADDR)")
	}

	if cfg.Ask.Enabled && strings.TrimSpace(cfg.Ask.APIKey) == "" {
		return fmt.Errorf("ask.api_key is required when ask mode is enabled (LLM_API_KEY)")
	}
	if cfg.Ask.Threshold < 0 || cfg.Ask.Threshold > 1 {
		return fmt.Errorf("ask.threshold must be within [0, 1]")
	}
	if cfg.Quiz.MissedWeight < 1 {
		return fmt.Errorf("quiz.missed_weight must be >= 1")
	}
	return nil
}

func validateQuestions(q QuestionsConfig) error {
	if strings.TrimSpace(q.File) == "" && strings.TrimSpace(q.Dir) == "" {
		return fmt.Errorf("questions.file or questions.dir is required")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	cfg.Bot.Lang = strings.ToLower(strings.TrimSpace(cfg.Bot.Lang))
	if cfg.Bot.Lang == "" {
		cfg.Bot.Lang = "en"
	}
	if cfg.Bot.MenuColumns <= 0 {
		cfg.Bot.MenuColumns = 2
	}

	cfg.Quiz.Commands = fillCommands(cfg.Quiz.Commands, DefaultCommands(cfg.Bot.Lang))
	if cfg.Quiz.MissedWeight == 0 {
		cfg.Quiz.MissedWeight = quiz.DefaultMissedWeight
	}
	if cfg.Quiz.LockTimeout <= 0 {
		cfg.Quiz.LockTimeout = 10 * time.Second
	}

	if cfg.Questions.DefaultGenre == "" {
		cfg.Questions.DefaultGenre = "Other"
		if cfg.Bot.Lang == "ja" {
			cfg.Questions.DefaultGenre = "その他"
		}
	}

	cfg.Storage.Backend = lowerOr(cfg.Storage.Backend, StorageFile)
	if cfg.Storage.MissedFile == "" {
		cfg.Storage.MissedFile = "data/missed.json"
	}
	if cfg.Storage.KnowledgeFile == "" {
		cfg.Storage.KnowledgeFile = "data/knowledge.json"
	}
	if cfg.Storage.Timeout <= 0 {
		cfg.Storage.Timeout = 3 * time.Second
	}

	cfg.Dedup.Backend = lowerOr(cfg.Dedup.Backend, DedupMemory)
	if cfg.Dedup.TTL <= 0 {
		cfg.Dedup.TTL = 10 * time.Minute
	}

	if cfg.Ask.Threshold == 0 {
		cfg.Ask.Threshold = 0.6
	}
	if cfg.Ask.Timeout <= 0 {
		cfg.Ask.Timeout = 20 * time.Second
	}
}

// DefaultCommands puts the commands of lang first so they become button labels.
func DefaultCommands(lang string) quiz.Commands {
	c := quiz.DefaultCommands()
	if lang != "ja" {
		return c
	}
	swap := func(list []string) []string {
		out := append([]string(nil), list...)
		if len(out) == 2 {
			out[0], out[1] = out[1], out[0]
		}
		return out
	}
	return quiz.Commands{
		Menu:        swap(c.Menu),
		GenrePrefix: swap(c.GenrePrefix),
		Start:       swap(c.Start),
		Restart:     swap(c.Restart),
		Abort:       swap(c.Abort),
	}
}

func fillCommands(c, def quiz.Commands) quiz.Commands {
	fill := func(dst *[]string, d []string) {
		if len(*dst) == 0 {
			*dst = d
		}
	}
	fill(&c.Menu, def.Menu)
	fill(&c.GenrePrefix, def.GenrePrefix)
	fill(&c.Start, def.Start)
	fill(&c.Restart, def.Restart)
	fill(&c.Abort, def.Abort)
	return c
}

func lowerOr(v, def string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return def
	}
	return v
}
