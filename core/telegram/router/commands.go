package router

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/scenebot/core/logger"
	tg "github.com/m3rciful/scenebot/core/telegram"
	"github.com/m3rciful/scenebot/core/telegram/middleware"
)

// CommandRouteOptions configures the admin gate for commands.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes returns one route per registered command.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	adminOnly := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for name, cmd := range cmds {
		h := cmd.Handler
		summarized := func(c tele.Context) error { return begin(c, name).run(h) }
		if cmd.AdminOnly {
			summarized = adminOnly(summarized)
		}
		routes = append(routes, tg.Route{Endpoint: name, Handler: wrap(summarized)})
	}

	logger.Info(context.Background(), "tg.wire", "register.commands",
		slog.Int("count", len(cmds)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}
