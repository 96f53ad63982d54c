package telegram

import (
	"net"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/scenebot/core/config"
)

const defaultPollTimeout = 10 * time.Second

// pollTimeout is the getUpdates window; zero or negative selects the default.
func pollTimeout(seconds int) time.Duration {
	if seconds <= 0 {
		return defaultPollTimeout
	}
	return time.Duration(seconds) * time.Second
}

// webhookAddr accepts listen as a bare host or as host:port. A bare host
// is joined with port.
func webhookAddr(listen string, port int) string {
	if _, _, err := net.SplitHostPort(listen); err == nil {
		return listen
	}
	return net.JoinHostPort(listen, strconv.Itoa(port))
}

// newPoller returns the update source selected by the normalized config.
func newPoller(cfg *coreconfig.Config) tele.Poller {
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		return &tele.Webhook{
			Listen:   webhookAddr(cfg.Webhook.Listen, cfg.Webhook.Port),
			Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
		}
	}
	return &tele.LongPoller{Timeout: pollTimeout(cfg.Telegram.LongPollTimeoutSeconds)}
}
