// Package commands describes slash commands and the rules Telegram applies
// to their names.
package commands

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Command represents a bot command with its handler, description, and metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands are rejected for everyone but the configured admin.
	AdminOnly bool
	// Hidden commands are routed but left out of the command menu.
	Hidden bool
}

var (
	// ErrInvalidName reports a name Telegram would refuse in setMyCommands.
	ErrInvalidName = errors.New("commands: invalid name")
	// ErrIncomplete reports a command without handler or description.
	ErrIncomplete = errors.New("commands: handler and description are required")
)

var nameRe = regexp.MustCompile(`^/[a-z0-9_]{1,32}$`)

// Validate checks name and cmd before registration.
func Validate(name string, cmd Command) error {
	if !nameRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if cmd.Handler == nil || strings.TrimSpace(cmd.Description) == "" {
		return fmt.Errorf("%w: %s", ErrIncomplete, name)
	}
	return nil
}

// Parse extracts the command name from message text, dropping a bot
// mention and any arguments: "/Help@my_bot now" yields "/help".
func Parse(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	name, _, _ := strings.Cut(text, " ")
	name, _, _ = strings.Cut(name, "@")
	name = strings.ToLower(name)
	return name, nameRe.MatchString(name)
}
