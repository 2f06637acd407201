package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/quizbot/core/bootstrap"
	"github.com/m3rciful/quizbot/core/logger"
	"github.com/m3rciful/quizbot/internal/ask"
	"github.com/m3rciful/quizbot/internal/config"
	"github.com/m3rciful/quizbot/internal/dedup"
	"github.com/m3rciful/quizbot/internal/knowledge"
	"github.com/m3rciful/quizbot/internal/llm"
	"github.com/m3rciful/quizbot/internal/missed"
	"github.com/m3rciful/quizbot/internal/question"
	"github.com/m3rciful/quizbot/internal/quiz"
	"github.com/m3rciful/quizbot/internal/responder"
	"github.com/m3rciful/quizbot/internal/session"
)

// Build opens the infrastructure selected by cfg, loads the questions and
// assembles the App.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	infra, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:      cfg.CoreConfig(),
		UsePostgres: cfg.UsePostgres(),
		UseRedis:    cfg.UseRedis(),
	})
	if err != nil {
		return nil, err
	}
	app, err := assemble(ctx, cfg, infra)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}
	app.closers = append(app.closers, infra.Close)
	return app, nil
}

func assemble(ctx context.Context, cfg *config.Config, infra *bootstrap.Result) (*App, error) {
	repo, err := question.Load(ctx, cfg.Questions.Source())
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	if problems := repo.Problems(); len(problems) > 0 {
		logger.Warn(ctx, component, "questions.problems", slog.Int("count", len(problems)))
	}

	var (
		missedStore    missed.Store
		knowledgeStore knowledge.Store
		guard          dedup.Guard
	)
	switch cfg.Storage.Backend {
	case config.StorageFile:
		missedStore = missed.NewFileStore(cfg.Storage.MissedFile)
		knowledgeStore = knowledge.NewFileStore(cfg.Storage.KnowledgeFile)
	case config.StoragePostgres:
		missedStore = missed.NewPGStore(infra.DB)
		knowledgeStore = knowledge.NewPGStore(infra.DB)
	}
	switch cfg.Dedup.Backend {
	case config.DedupMemory:
		guard = dedup.NewMemory(cfg.Dedup.TTL)
	case config.DedupRedis:
		guard = dedup.NewRedis(infra.Redis, cfg.Dedup.Prefix, cfg.Dedup.TTL)
	}

	var asker *ask.Service
	if cfg.Ask.Enabled {
		client := llm.New(llm.Config{
			BaseURL:      cfg.Ask.BaseURL,
			APIKey:       cfg.Ask.APIKey,
			Model:        cfg.Ask.Model,
			SystemPrompt: cfg.Ask.SystemPrompt,
		})
		asker = ask.New(knowledgeStore, client, ask.Options{
			Threshold: cfg.Ask.Threshold,
			Timeout:   cfg.Ask.Timeout,
		})
	}

	resp, err := responder.New(responder.Options{
		DefaultLang:   cfg.Bot.Lang,
		Commands:      cfg.Quiz.Commands,
		InlineChoices: cfg.Quiz.InlineChoices,
		MenuColumns:   cfg.Bot.MenuColumns,
	})
	if err != nil {
		return nil, fmt.Errorf("responder: %w", err)
	}

	engine := quiz.New(repo, quiz.Config{
		Commands:         cfg.Quiz.Commands,
		CaseInsensitive:  cfg.Quiz.CaseInsensitive,
		ShuffleChoices:   cfg.Quiz.ShuffleChoices,
		ExcludeMalformed: cfg.Quiz.ExcludeMalformed,
		Weight:           quiz.Replicate(cfg.Quiz.MissedWeight),
	})

	logger.Info(ctx, component, "bot.assemble",
		slog.String("storage", cfg.Storage.Backend),
		slog.String("dedup", cfg.Dedup.Backend),
		slog.Bool("ask", asker != nil),
	)
	return &App{
		cfg: cfg,
		svc: NewService(Deps{
			Engine:         engine,
			Sessions:       session.NewStore(),
			Catalog:        repo,
			Responder:      resp,
			Missed:         missedStore,
			Guard:          guard,
			Ask:            asker,
			LockTimeout:    cfg.Quiz.LockTimeout,
			StorageTimeout: cfg.Storage.Timeout,
		}),
		responder: resp,
	}, nil
}
