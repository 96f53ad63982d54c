package telegram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/scenebot/core/config"
)

func TestPollTimeout(t *testing.T) {
	assert.Equal(t, defaultPollTimeout, pollTimeout(0))
	assert.Equal(t, 25*time.Second, pollTimeout(25))
}

func TestWebhookAddr(t *testing.T) {
	assert.Equal(t, "0.0.0.0:8443", webhookAddr("0.0.0.0", 8443))
	assert.Equal(t, ":8443", webhookAddr(":8443", 9000))
	assert.Equal(t, ":8080", webhookAddr("", 8080))
}

func TestNewPoller(t *testing.T) {
	cfg := &coreconfig.Config{}
	cfg.Telegram.RunMode = coreconfig.RunModeWebhook
	cfg.Webhook = coreconfig.WebhookConfig{URL: "https://example.org/hook", Listen: "127.0.0.1", Port: 8443}

	hook, ok := newPoller(cfg).(*tele.Webhook)
	require.True(t, ok)
	assert.Equal(t, "127.0.0.1:8443", hook.Listen)
	assert.Equal(t, "https://example.org/hook", hook.Endpoint.PublicURL)

	cfg.Telegram.RunMode = coreconfig.RunModeLongpoll
	cfg.Telegram.LongPollTimeoutSeconds = 30
	lp, ok := newPoller(cfg).(*tele.LongPoller)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, lp.Timeout)
}
