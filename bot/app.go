// Package bot assembles the demo bot: the /example3 and /example4 dialogues,
// the stateless keyboard examples and the admin session view.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/scenebot/core/bootstrap"
	corecmd "github.com/m3rciful/scenebot/core/cmd"
	coreconfig "github.com/m3rciful/scenebot/core/config"
	"github.com/m3rciful/scenebot/core/dialogue"
	"github.com/m3rciful/scenebot/core/logger"
	"github.com/m3rciful/scenebot/core/metrics"
	tg "github.com/m3rciful/scenebot/core/telegram"
	"github.com/m3rciful/scenebot/core/telegram/format"
	tghelpers "github.com/m3rciful/scenebot/core/telegram/helpers"
	"github.com/m3rciful/scenebot/core/telegram/router"
	"github.com/m3rciful/scenebot/core/telegram/state"
)

const errorNoticeTTL = 4 * time.Second

// Config carries the core configuration through corecmd.Run.
type Config struct {
	coreconfig.Config
}

// CoreConfig implements corecmd.ConfigCarrier.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Config }

// LoadConfig reads the YAML file at path with environment overrides.
func LoadConfig(path string) (corecmd.ConfigCarrier, error) {
	cfg, err := coreconfig.Load(path)
	if err != nil {
		return nil, err
	}
	return &Config{Config: *cfg}, nil
}

// Bootstrap opens the session store and returns the runnable app.
func Bootstrap(ctx context.Context, carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg := carrier.CoreConfig()
	infra, err := bootstrap.Run(ctx, bootstrap.Options{Config: cfg})
	if err != nil {
		return nil, err
	}
	return NewApp(cfg, infra), nil
}

// App wires the dialogue stage and demo commands into the Telegram runtime.
type App struct {
	cfg   *coreconfig.Config
	infra *bootstrap.Result

	replier *state.Replier
	stage   *state.Stage
}

// NewApp builds an App over already opened infrastructure.
func NewApp(cfg *coreconfig.Config, infra *bootstrap.Result) *App {
	return &App{cfg: cfg, infra: infra}
}

// Stage is available once the routes were built.
func (a *App) Stage() *state.Stage { return a.stage }

// TelegramRunOptions implements corecmd.TelegramApp.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	if a.cfg == nil || a.infra == nil || a.infra.Store == nil {
		return tg.RunOptions{}, fmt.Errorf("bot: app is not bootstrapped")
	}
	mws := tg.DefaultMiddlewares(a.cfg, nil)
	mws = append(mws, tg.Middleware{Name: "serialize", Use: state.Serialize(a.infra.Guard)})

	return tg.RunOptions{
		Config:      a.cfg,
		Registry:    tg.NewRegistry(),
		Middlewares: mws,
		BuildRoutes: a.BuildRoutes,
		OnError:     a.onError,
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

// BuildRoutes creates the replier and scenes over the live bot and returns every route.
func (a *App) BuildRoutes(rt tg.Runtime) ([]tg.Route, error) {
	a.replier = state.NewReplier(rt.Bot, state.WithDispatcher(rt.Dispatcher))

	scenes, err := NewScenes(a.infra.Store, a.replier, SceneSettings{
		IdleTimeout: a.cfg.Dialogue.IdleTimeout(),
		BackDelay:   a.cfg.Dialogue.BackDelay(),
		Observer:    metrics.DialogueObserver{},
	})
	if err != nil {
		return nil, err
	}
	stage, err := state.NewStage(a.replier, state.DefaultMessages, scenes...)
	if err != nil {
		return nil, err
	}
	a.stage = stage
	if err := stage.Register(rt.Registry); err != nil {
		return nil, err
	}

	var username string
	if rt.Bot != nil && rt.Bot.Me != nil {
		username = rt.Bot.Me.Username
	}
	if err := registerExamples(rt.Registry, username); err != nil {
		return nil, err
	}
	if err := registerAdmin(rt.Registry, a.infra.Store); err != nil {
		return nil, err
	}

	fb := fallbacks{}
	rt.Registry.SetCallbackNotFound(fb.UnknownCallback())

	routes := router.CommandRoutes(rt.Registry, router.CommandRouteOptions{AdminID: a.cfg.Telegram.AdminID})
	routes = append(routes, router.CallbackRoute(rt.Registry, router.CallbackOptions{NotFound: fb.UnknownCallback()}))
	routes = append(routes, router.TextRoutes(stage, rt.Registry, router.TextOptionsFrom(fb))...)
	return routes, nil
}

func (a *App) onStart(ctx context.Context, _ tg.Runtime) error {
	metrics.MustRegister()
	if listen := strings.TrimSpace(a.cfg.Metrics.Listen); listen != "" {
		go func() {
			_ = metrics.Serve(ctx, listen, a.infra.Checks)
		}()
	}
	return nil
}

func (a *App) onStop(context.Context, tg.Runtime) error {
	return a.infra.Close()
}

// onError logs unhandled errors; Telegram API failures are also shown to the
// user as a short-lived notice.
func (a *App) onError(err error, c tele.Context) {
	ctx := tghelpers.BuildContext(c)
	logger.Error(ctx, "tg", "update.unhandled", slog.String("err", logger.SanitizeLimit(err.Error(), 256)))

	code, ok := apiErrorCode(err)
	if !ok || a.replier == nil {
		return
	}
	id, ok := state.ConversationOf(c)
	if !ok {
		return
	}
	_ = a.replier.Reply(ctx, id, dialogue.Reply{
		Text:        "Error: " + format.Code(code),
		Format:      dialogue.FormatHTML,
		ExpireAfter: errorNoticeTTL,
	})
}

// apiErrorCode extracts the reason part of a Telegram API error description,
// e.g. "chat not found" from "Bad Request: chat not found".
func apiErrorCode(err error) (string, bool) {
	var apiErr *tele.Error
	if !errors.As(err, &apiErr) {
		return "", false
	}
	desc := apiErr.Description
	if _, after, found := strings.Cut(desc, ":"); found {
		desc = after
	}
	desc = strings.TrimSpace(desc)
	return desc, desc != ""
}
