package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/scenebot/core/config"
	"github.com/m3rciful/scenebot/core/logger"
	tghelpers "github.com/m3rciful/scenebot/core/telegram/helpers"
	tgsender "github.com/m3rciful/scenebot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route
	// BuildRoutes returns routes that need the live bot, e.g. handlers
	// replying through it outside of the update context.
	BuildRoutes func(rt Runtime) ([]Route, error)

	// OnError receives handler errors; the default logs them.
	OnError func(err error, c tele.Context)

	// Settings overrides the bot settings; used by tests running offline.
	Settings *tele.Settings

	DisableWebhookCleanup   bool
	DisableHelperDispatcher bool
	DisableCommandMenu      bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram builds the bot from opts and serves updates until ctx ends
// or the poller stops. Hooks see the same Runtime; the dispatcher is
// drained after OnStop.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := opts.Config
	if cfg == nil {
		return errors.New("telegram: nil config provided")
	}
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	settings := botSettings(cfg, opts)
	began := time.Now()
	bot, err := tele.NewBot(settings)
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	logMode(ctx, settings.Poller, time.Since(began))
	if opts.Settings == nil && !opts.DisableWebhookCleanup && cfg.Telegram.RunMode != coreconfig.RunModeWebhook {
		removeWebhook(ctx, bot)
	}

	rt := Runtime{Bot: bot, Dispatcher: opts.Dispatcher, Registry: reg}
	if rt.Dispatcher == nil {
		rt.Dispatcher = tgsender.NewDispatcher(opts.DispatcherOptions)
	}
	if !opts.DisableHelperDispatcher {
		tghelpers.SetDispatcher(rt.Dispatcher)
	}
	release := func() {
		rt.Dispatcher.Close()
		if !opts.DisableHelperDispatcher {
			tghelpers.SetDispatcher(nil)
		}
	}

	if err := mount(bot, rt, opts); err != nil {
		release()
		return err
	}
	if !opts.DisableCommandMenu {
		InitBotCommands(ctx, bot, reg)
	}
	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			release()
			return err
		}
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		bot.Start()
	}()
	select {
	case <-ctx.Done():
		bot.Stop()
		<-stopped
	case <-stopped:
	}

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(ctx, rt)
	}
	release()
	if stopErr != nil {
		return stopErr
	}
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func botSettings(cfg *coreconfig.Config, opts RunOptions) tele.Settings {
	if opts.Settings != nil {
		return *opts.Settings
	}
	onError := opts.OnError
	if onError == nil {
		onError = func(err error, c tele.Context) {
			logger.Error(tghelpers.BuildContext(c), "tg", "update.unhandled",
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
		}
	}
	return tele.Settings{
		Token:   cfg.Telegram.Token,
		Poller:  newPoller(cfg),
		Client:  BuildHTTPClient(pollTimeout(cfg.Telegram.LongPollTimeoutSeconds)),
		OnError: onError,
	}
}

// mount installs the global middleware chain and every route.
func mount(bot *tele.Bot, rt Runtime, opts RunOptions) error {
	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	routes := append([]Route(nil), opts.Routes...)
	if opts.BuildRoutes != nil {
		built, err := opts.BuildRoutes(rt)
		if err != nil {
			return fmt.Errorf("telegram: build routes: %w", err)
		}
		routes = append(routes, built...)
	}
	mounted := 0
	for _, r := range routes {
		if r.Endpoint == nil || r.Handler == nil {
			continue
		}
		bot.Handle(r.Endpoint, r.Handler)
		mounted++
	}
	logger.Info(context.Background(), "tg.wire", "register.routes",
		slog.Int("count", mounted),
		slog.Int("skipped", len(routes)-mounted),
	)
	return nil
}

func logMode(ctx context.Context, p tele.Poller, took time.Duration) {
	attrs := []slog.Attr{slog.Duration("duration", logger.RoundMS(took))}
	switch p := p.(type) {
	case *tele.Webhook:
		attrs = append(attrs,
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
		)
	case *tele.LongPoller:
		attrs = append(attrs,
			slog.String("mode", coreconfig.RunModeLongpoll),
			slog.Duration("timeout", p.Timeout),
		)
	default:
		attrs = append(attrs, slog.String("mode", "custom"))
	}
	logger.Info(ctx, "tg", "tg.mode", attrs...)
}

// removeWebhook clears a webhook left by an earlier deployment, which
// would otherwise make getUpdates fail.
func removeWebhook(ctx context.Context, bot *tele.Bot) {
	if err := bot.RemoveWebhook(false); err != nil {
		logger.Warn(ctx, "tg", "tg.delete_webhook",
			slog.String("status", "fail"),
			slog.String("err", redactToken(err.Error(), bot.Token)),
		)
		return
	}
	logger.Info(ctx, "tg", "tg.delete_webhook", slog.String("status", "ok"))
}

func redactToken(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "<redacted>")
}
