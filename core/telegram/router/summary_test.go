package router

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/scenebot/core/dialogue"
)

func TestHandlerName(t *testing.T) {
	assert.Equal(t, "example3", handlerName("/Example3"))
	assert.Equal(t, "stats_menu", handlerName(" stats menu "))
	assert.Equal(t, "unknown", handlerName("/"))
}

func TestErrorCode(t *testing.T) {
	storeErr := &dialogue.StoreError{Op: "load", Err: errors.New("dial tcp: refused")}
	assert.Equal(t, "STORE_UNAVAILABLE", errorCode(fmt.Errorf("scene: %w", storeErr)))
	assert.Equal(t, "TG_403", errorCode(&tele.Error{Code: 403, Description: "Forbidden"}))
	assert.Equal(t, "INTERNAL", errorCode(errors.New("boom")))
}
