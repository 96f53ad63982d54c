// Package router turns the registry and the dialogue stage into telebot
// routes. Every route logs one "handler.handled" line per update.
package router

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/scenebot/core/logger"
	"github.com/m3rciful/scenebot/core/metrics"
	tghelpers "github.com/m3rciful/scenebot/core/telegram/helpers"
	"github.com/m3rciful/scenebot/core/telegram/middleware"
)

// Outcomes recorded besides ok and fail.
const (
	outcomeFallback = "fallback"
	outcomeSkipped  = "skipped"
)

// summary accumulates what a route did with one update.
type summary struct {
	c       tele.Context
	name    string
	start   time.Time
	outcome string
	attrs   []slog.Attr
}

func begin(c tele.Context, name string, attrs ...slog.Attr) *summary {
	return &summary{c: c, name: handlerName(name), start: time.Now(), outcome: "ok", attrs: attrs}
}

// as overrides the outcome logged for a successful run.
func (s *summary) as(outcome string) *summary {
	s.outcome = outcome
	return s
}

// run calls h and logs the result; a nil h only logs.
func (s *summary) run(h tele.HandlerFunc) error {
	tghelpers.WithHandler(s.c, s.name)
	var err error
	if h != nil {
		err = h(s.c)
	}
	s.log(err)
	return err
}

func (s *summary) log(err error) {
	ctx := tghelpers.WithHandler(s.c, s.name)
	msgs, kb := middleware.GetCounters(s.c)

	status, outcome := "ok", s.outcome
	if err != nil {
		status, outcome = "fail", "fail"
	}
	attrs := append([]slog.Attr{
		slog.String("status", status),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", logger.RoundMS(time.Since(s.start))),
	}, s.attrs...)

	if err == nil {
		logger.Info(ctx, "tg", "handler.handled", attrs...)
		return
	}
	code := errorCode(err)
	metrics.IncHandlerError(code)
	attrs = append(attrs,
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		slog.String("err_code", code),
	)
	logger.Warn(ctx, "tg", "handler.handled", attrs...)
}

// handlerName turns "/Example3" or "stats menu" into a log-friendly name.
func handlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// errorCode prefers a code carried by the error itself, then the Bot API
// status, and reports everything else as INTERNAL.
func errorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("TG_%d", apiErr.Code)
	}
	return "INTERNAL"
}

// wrap applies the per-route middleware shared by every endpoint.
func wrap(h tele.HandlerFunc) tele.HandlerFunc {
	return middleware.LoggerMiddleware(middleware.RecoverMiddleware(h))
}
