package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/m3rciful/quizbot/core/logger"
	tg "github.com/m3rciful/quizbot/core/telegram"
	"github.com/m3rciful/quizbot/core/telegram/callbacks"
	"github.com/m3rciful/quizbot/core/telegram/commands"
	"github.com/m3rciful/quizbot/core/telegram/helpers"
	"github.com/m3rciful/quizbot/core/telegram/keyboard"
	"github.com/m3rciful/quizbot/core/telegram/router"
	"github.com/m3rciful/quizbot/core/telegram/sender"
	"github.com/m3rciful/quizbot/internal/config"
	"github.com/m3rciful/quizbot/internal/quiz"
	"github.com/m3rciful/quizbot/internal/responder"

	tele "gopkg.in/telebot.v4"
)

// App is the Telegram front end of the quiz service.
type App struct {
	cfg       *config.Config
	svc       *Service
	responder *responder.Responder
	closers   []func() error

	dispatcher atomic.Pointer[sender.Dispatcher]
}

// TelegramRunOptions registers commands and callbacks and builds the routes.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg := tg.NewRegistry()
	cmds := []struct {
		name string
		cmd  commands.Command
	}{
		{"/start", commands.Command{Handler: a.onStart, Description: "Show the genre menu"}},
		{"/genres", commands.Command{Handler: a.quiz(quiz.KindMenu), Description: "List genres"}},
		{"/quiz", commands.Command{Handler: a.quiz(quiz.KindStart), Description: "Start the chosen genre"}},
		{"/quit", commands.Command{Handler: a.quiz(quiz.KindAbort), Description: "Stop the quiz"}},
		{"/ask", commands.Command{Handler: a.onAsk, Description: "Ask a free-form question"}},
		{"/remember", commands.Command{Handler: a.onRemember, Description: "Save the last answer"}},
		{"/help", commands.Command{Handler: a.onHelp, Description: "How to play"}},
		{"/stats", commands.Command{Handler: a.onStats, Description: "Bot statistics", AdminOnly: true}},
	}
	for _, c := range cmds {
		if err := reg.RegisterCommand(c.name, c.cmd); err != nil {
			return tg.RunOptions{}, fmt.Errorf("register %s: %w", c.name, err)
		}
	}
	if err := reg.RegisterCallback(responder.AnswerUnique, a.onAnswerButton); err != nil {
		return tg.RunOptions{}, fmt.Errorf("register answer callback: %w", err)
	}
	if err := reg.RegisterCallback(responder.QuitUnique, a.onQuitButton); err != nil {
		return tg.RunOptions{}, fmt.Errorf("register quit callback: %w", err)
	}
	reg.SetTextFallback(a.onText)

	core := a.cfg.CoreConfig()
	return tg.RunOptions{
		Config:   core,
		Registry: reg,
		Middlewares: tg.DefaultMiddlewares(core, tg.MiddlewareHooks{
			OnLimited: a.notice("RateLimited"),
			OnPanic:   a.notice("InternalError"),
		}),
		BuildRoutes: func(rt tg.Runtime) []tg.Route {
			routes := router.CommandRoutes(rt.Registry, router.CommandRouteOptions{AdminID: core.Telegram.AdminID})
			routes = append(routes, router.TextRoutes(rt.Registry, router.TextOptions{
				UnsupportedContent: a.notice("Unsupported"),
			})...)
			return append(routes, router.CallbackRoute(rt.Registry, router.CallbackOptions{}))
		},
		OnStart: func(ctx context.Context, rt tg.Runtime) error {
			a.dispatcher.Store(rt.Dispatcher)
			logger.Info(ctx, component, "bot.start",
				slog.Int("genres", len(a.svc.deps.Catalog.Genres())),
				slog.Int("questions", a.svc.deps.Catalog.Len()),
				slog.Any("langs", a.responder.Languages()),
			)
			return nil
		},
	}, nil
}

// Close releases the stores and connections opened by Build.
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func eventFrom(c tele.Context) Event {
	ev := Event{Text: strings.TrimSpace(c.Text())}
	if u := c.Update(); u.ID != 0 {
		ev.ID = int64(u.ID)
	}
	if s := c.Sender(); s != nil {
		ev.UserID = strconv.FormatInt(s.ID, 10)
		ev.Lang = s.LanguageCode
	}
	return ev
}

func (a *App) quiz(kind quiz.Kind) tele.HandlerFunc {
	return func(c tele.Context) error {
		ev := eventFrom(c)
		ev.Kind = kind
		return send(c, a.svc.Handle(helpers.BuildContext(c), ev))
	}
}

func (a *App) onText(c tele.Context) error {
	return send(c, a.svc.Handle(helpers.BuildContext(c), eventFrom(c)))
}

func (a *App) onStart(c tele.Context) error {
	return send(c, a.svc.Welcome(helpers.BuildContext(c), eventFrom(c)))
}

func (a *App) onHelp(c tele.Context) error {
	return send(c, a.svc.Help(eventFrom(c)))
}

func (a *App) onAsk(c tele.Context) error {
	ev := eventFrom(c)
	ev.Text = strings.TrimSpace(c.Message().Payload)
	return send(c, a.svc.Ask(helpers.BuildContext(c), ev))
}

func (a *App) onRemember(c tele.Context) error {
	return send(c, a.svc.Remember(helpers.BuildContext(c), eventFrom(c)))
}

func (a *App) onStats(c tele.Context) error {
	var st sender.Stats
	if d := a.dispatcher.Load(); d != nil {
		st = d.Stats()
	}
	return send(c, a.svc.Stats(eventFrom(c), st))
}

func (a *App) onAnswerButton(c tele.Context) error {
	_ = c.Respond()
	token, idx, err := callbacks.PayloadKeyIndex(c, "|")
	if err != nil {
		logger.Warn(helpers.BuildContext(c), component, "callback.parse",
			slog.String("status", "skip"),
			logger.Err(err),
		)
		return nil
	}
	ev := eventFrom(c)
	ev.Text = ""
	ev.Kind = quiz.KindAnswer
	ev.Choice = idx
	ev.Token = token
	return send(c, a.svc.Handle(helpers.BuildContext(c), ev))
}

func (a *App) onQuitButton(c tele.Context) error {
	_ = c.Respond()
	return send(c, a.svc.Handle(helpers.BuildContext(c), quitEvent(c)))
}

// quitEvent carries the prompt token so a Quit button from an earlier
// question is rejected as stale.
func quitEvent(c tele.Context) Event {
	ev := eventFrom(c)
	ev.Text = ""
	ev.Kind = quiz.KindAbort
	ev.Token = callbacks.CallbackPayload(c)
	return ev
}

func (a *App) notice(id string) tele.HandlerFunc {
	return func(c tele.Context) error {
		ev := eventFrom(c)
		return send(c, []responder.Message{a.responder.Text(ev.Lang, id, nil)})
	}
}

func send(c tele.Context, msgs []responder.Message) error {
	return helpers.SendBatch(c, toTelegram(msgs))
}

func toTelegram(msgs []responder.Message) []helpers.Message {
	out := make([]helpers.Message, 0, len(msgs))
	for _, m := range msgs {
		hm := helpers.Message{Text: m.Text}
		switch {
		case len(m.Inline) > 0:
			btns := make([]keyboard.InlineBtn, 0, len(m.Inline))
			for _, b := range m.Inline {
				btns = append(btns, keyboard.InlineBtn{Text: b.Text, Unique: b.Unique, Data: b.Data})
			}
			hm.Markup = keyboard.InlineButtonsNPerRow(btns, 1)
		case len(m.Keyboard) > 0:
			hm.Markup = keyboard.ReplyButtons(m.Keyboard...)
		}
		out = append(out, hm)
	}
	return out
}
