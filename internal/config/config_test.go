package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimal = `
telegram:
  token: "123:abc"
questions:
  file: questions.json
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimal))
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.CoreConfig().Telegram.Token)
	assert.Equal(t, "longpoll", cfg.Telegram.RunMode)
	assert.Equal(t, "en", cfg.Bot.Lang)
	assert.Equal(t, "Start", cfg.Quiz.Commands.Start[0])
	assert.Equal(t, 3, cfg.Quiz.MissedWeight)
	assert.Equal(t, "Other", cfg.Questions.DefaultGenre)
	assert.Equal(t, StorageFile, cfg.Storage.Backend)
	assert.Equal(t, DedupMemory, cfg.Dedup.Backend)
	assert.Equal(t, 10*time.Minute, cfg.Dedup.TTL)
	assert.InDelta(t, 0.6, cfg.Ask.Threshold, 1e-9)
	assert.False(t, cfg.Quiz.ExcludeMalformed)
	assert.False(t, cfg.UsePostgres())
	assert.False(t, cfg.UseRedis())
}

func TestLoadFullYAML(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
  run_mode: webhook
webhook:
  url: https://example.org/hook
  port: 8443
bot:
  lang: JA
quiz:
  shuffle_choices: true
  commands:
    start: ["Go"]
  lock_timeout: 2s
questions:
  dir: questions
  genres: ["歴史", "科学"]
  aliases:
    歴史: history
storage:
  backend: postgres
  timeout: 500ms
database:
  host: db
  name: quiz
  user: quiz
dedup:
  backend: redis
  ttl: 1h
redis:
  addr: localhost:6379
ask:
  enabled: true
  api_key: sk-test
  threshold: 0.75
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "webhook", cfg.Telegram.RunMode)
	assert.Equal(t, "ja", cfg.Bot.Lang)
	assert.Equal(t, []string{"Go"}, cfg.Quiz.Commands.Start)
	assert.Equal(t, "ジャンル選択", cfg.Quiz.Commands.Menu[0])
	assert.Equal(t, 2*time.Second, cfg.Quiz.LockTimeout)
	assert.Equal(t, "その他", cfg.Questions.DefaultGenre)
	assert.Equal(t, "history", cfg.Questions.Source().Aliases["歴史"])
	assert.Equal(t, 500*time.Millisecond, cfg.Storage.Timeout)
	assert.True(t, cfg.UsePostgres())
	assert.True(t, cfg.UseRedis())
	assert.Equal(t, time.Hour, cfg.Dedup.TTL)
	assert.InDelta(t, 0.75, cfg.Ask.Threshold, 1e-9)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "env-token")
	t.Setenv("LLM_API_KEY", "env-key")
	t.Setenv("ASK_ENABLED", "true")
	cfg, err := Load(writeConfig(t, `
questions:
  file: q.json
`))
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Telegram.Token)
	assert.Equal(t, "env-key", cfg.Ask.APIKey)
	assert.True(t, cfg.Ask.Enabled)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing token", "questions:\n  file: q.json\n", "BOT_TOKEN"},
		{"missing questions", "telegram:\n  token: t\n", "questions.file or questions.dir"},
		{"bad storage", minimal + "storage:\n  backend: s3\n", "storage.backend"},
		{"postgres needs db", minimal + "storage:\n  backend: postgres\n", "database.host"},
		{"redis needs addr", minimal + "dedup:\n  backend: redis\n", "redis.addr"},
		{"ask needs key", minimal + "ask:\n  enabled: true\n", "LLM_API_KEY"},
		{"bad threshold", minimal + "ask:\n  threshold: 1.5\n", "ask.threshold"},
		{"bad weight", minimal + "quiz:\n  missed_weight: -1\n", "missed_weight"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadQuestionsSkipsChatSettings(t *testing.T) {
	cfg, err := LoadQuestions(writeConfig(t, "questions:\n  dir: q\n"))
	require.NoError(t, err)
	assert.Equal(t, "q", cfg.Questions.Source().Dir)
}
