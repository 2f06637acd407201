package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/quizbot/core/telegram"
	"github.com/m3rciful/quizbot/internal/config"
	"github.com/m3rciful/quizbot/internal/quiz"
	"github.com/m3rciful/quizbot/internal/responder"
)

func TestEventFromMessageAndCallback(t *testing.T) {
	msg := tele.NewContext(nil, tele.Update{
		ID: 11,
		Message: &tele.Message{
			Text:   "  Genre: History ",
			Sender: &tele.User{ID: 42, LanguageCode: "ja"},
			Chat:   &tele.Chat{ID: 42},
		},
	})
	assert.Equal(t, Event{ID: 11, UserID: "42", Lang: "ja", Text: "Genre: History"}, eventFrom(msg))

	cb := tele.NewContext(nil, tele.Update{ID: 12, Callback: &tele.Callback{
		Unique: responder.AnswerUnique,
		Data:   "abc.1|2",
		Sender: &tele.User{ID: 42},
	}})
	ev := eventFrom(cb)
	assert.Equal(t, int64(12), ev.ID)
	assert.Equal(t, "42", ev.UserID)

	quit := tele.NewContext(nil, tele.Update{ID: 13, Callback: &tele.Callback{
		Unique: responder.QuitUnique,
		Data:   "runa.2",
		Sender: &tele.User{ID: 42},
	}})
	assert.Equal(t, Event{ID: 13, UserID: "42", Kind: quiz.KindAbort, Token: "runa.2"}, quitEvent(quit))
}

func TestOldQuitButtonKeepsTheRun(t *testing.T) {
	svc := newTestService(t, Deps{})
	ctx := context.Background()
	ev := Event{UserID: "42", Lang: "en"}
	svc.Handle(ctx, text(ev, "History"))
	svc.Handle(ctx, text(ev, "Start"))
	first := pending(t, svc, "42")
	svc.Handle(ctx, Event{UserID: "42", Lang: "en", Kind: quiz.KindAnswer, Choice: 1, Token: first.Token})

	quit := tele.NewContext(nil, tele.Update{Callback: &tele.Callback{
		Unique: responder.QuitUnique,
		Data:   first.Token,
		Sender: &tele.User{ID: 42, LanguageCode: "en"},
	}})
	msgs := svc.Handle(ctx, quitEvent(quit))
	require.Len(t, msgs, 2)
	assert.Equal(t, "That button belongs to an earlier question.", msgs[0].Text)
	assert.Contains(t, msgs[1].Text, "Q2/2")

	current := pending(t, svc, "42")
	quit = tele.NewContext(nil, tele.Update{Callback: &tele.Callback{
		Unique: responder.QuitUnique,
		Data:   current.Token,
		Sender: &tele.User{ID: 42, LanguageCode: "en"},
	}})
	msgs = svc.Handle(ctx, quitEvent(quit))
	require.Len(t, msgs, 1)
	assert.Equal(t, 0, svc.deps.Sessions.Len())
}

func TestTelegramRunOptionsWiresHandlers(t *testing.T) {
	cfg := &config.Config{}
	cfg.Telegram.AdminID = 99
	app := &App{cfg: cfg, svc: newTestService(t, Deps{})}
	app.responder = app.svc.deps.Responder

	opts, err := app.TelegramRunOptions()
	require.NoError(t, err)
	require.NotNil(t, opts.Registry)
	assert.Same(t, cfg.CoreConfig(), opts.Config)

	cmds := opts.Registry.Commands()
	for _, name := range []string{"/start", "/genres", "/quiz", "/quit", "/ask", "/remember", "/help", "/stats"} {
		assert.Contains(t, cmds, name)
	}
	assert.True(t, cmds["/stats"].AdminOnly)
	assert.ElementsMatch(t, []string{responder.AnswerUnique, responder.QuitUnique}, opts.Registry.ListCallbacks())
	assert.NotNil(t, opts.Registry.TextFallback())

	routes := opts.BuildRoutes(tg.Runtime{Registry: opts.Registry})
	endpoints := make([]any, 0, len(routes))
	for _, r := range routes {
		endpoints = append(endpoints, r.Endpoint)
	}
	assert.Contains(t, endpoints, "/quiz")
	assert.Contains(t, endpoints, tele.OnText)
	assert.Contains(t, endpoints, tele.OnPhoto)
	assert.Contains(t, endpoints, tele.OnCallback)

	names := make([]string, 0, len(opts.Middlewares))
	for _, m := range opts.Middlewares {
		names = append(names, m.Name)
	}
	assert.Equal(t, "recover", names[0])
}
