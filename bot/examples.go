package bot

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/scenebot/core/telegram"
	"github.com/m3rciful/scenebot/core/telegram/callbacks"
	"github.com/m3rciful/scenebot/core/telegram/commands"
	"github.com/m3rciful/scenebot/core/telegram/format"
	tghelpers "github.com/m3rciful/scenebot/core/telegram/helpers"
	"github.com/m3rciful/scenebot/core/telegram/keyboard"
)

// Callback uniques of the inline keyboards.
const (
	cbExample1     = "ex1"
	cbExample1Kind = "ex1cb"
	cbInlineQuery  = "ex1iq"
)

const startText = `Here are the available commands:

/start - Start interaction with the bot
/help - Display help information
/settings - Display bot settings
/back - Go back to the previous step
/cancel - Cancel the current operation`

const example1Text = "This is a simple inline keyboard with two buttons. Click one of them to update the message content."

const example1CallbackText = "This example demonstrates a more complex inline keyboard layout with multiple types of buttons. Try clicking them to see how each one behaves."

const example2Prompt = "📌 Please choose one of the options from the keyboard below:"

var example2Option = regexp.MustCompile(`^Example 2 Option \d$`)

// registerExamples adds the stateless demo commands and their callbacks.
func registerExamples(reg *tg.Registry, username string) error {
	if err := errors.Join(
		reg.RegisterCommand("/start", commands.Command{
			Description: "Start interaction with the bot",
			Handler:     startHandler(username),
		}),
		reg.RegisterCommand("/settings", commands.Command{
			Description: "Display bot settings",
			Handler: func(c tele.Context) error {
				return tghelpers.SendText(c, "Display bot settings")
			},
		}),
		reg.RegisterCommand("/example1", commands.Command{
			Description: "Inline keyboard that edits its message",
			Handler: func(c tele.Context) error {
				return tghelpers.SendHTML(c, example1Text, example1Keyboard(false))
			},
		}),
		reg.RegisterCommand("/example1_callback", commands.Command{
			Description: "Inline keyboard with many callback types",
			Handler: func(c tele.Context) error {
				return tghelpers.SendText(c, example1CallbackText, &tele.SendOptions{
					ReplyTo:     c.Message(),
					ReplyMarkup: example1CallbackKeyboard(),
				})
			},
		}),
		reg.RegisterCommand("/example2", commands.Command{
			Description: "Reply keyboard with four options",
			Handler: func(c tele.Context) error {
				kb := keyboard.ReplyButtons(
					[]string{"Example 2 Option 1", "Example 2 Option 2"},
					[]string{"Example 2 Option 3", "Example 2 Option 4"},
				)
				kb.OneTimeKeyboard = true
				return tghelpers.SendText(c, example2Prompt, &tele.SendOptions{ReplyMarkup: kb})
			},
		}),
	); err != nil {
		return err
	}

	for key, h := range map[string]tele.HandlerFunc{
		cbExample1:     onExample1,
		cbExample1Kind: onExample1Kind,
		cbInlineQuery:  onInlineQueryButton,
	} {
		if err := reg.RegisterCallback(key, h); err != nil {
			return err
		}
	}
	return nil
}

func startHandler(username string) tele.HandlerFunc {
	return func(c tele.Context) error {
		var markup *tele.ReplyMarkup
		if username != "" {
			markup = keyboard.InlineButtons([]keyboard.InlineBtn{{
				Text: "Add me to your chat",
				URL:  "https://t.me/" + username + "?startgroup=true",
			}})
		}
		return tghelpers.SendText(c, startText, &tele.SendOptions{ReplyMarkup: markup})
	}
}

// example1Keyboard is the two-button keyboard, or the four "(NEW)" buttons after a click.
func example1Keyboard(refreshed bool) *tele.ReplyMarkup {
	count, suffix := 2, ""
	if refreshed {
		count, suffix = 4, "+"
	}
	buttons := make([]keyboard.InlineBtn, count)
	for i := range buttons {
		buttons[i] = keyboard.InlineBtn{
			Text:   fmt.Sprintf("Button %d", i+1),
			Unique: cbExample1,
			Data:   fmt.Sprintf("%d%s", i+1, suffix),
		}
	}
	return keyboard.InlineButtonsNPerRow(buttons, 2)
}

// example1Selection names the pressed /example1 button; a "+" suffix marks the refreshed set.
func example1Selection(payload string) (string, bool) {
	n, refreshed := strings.CutSuffix(payload, "+")
	if len(n) != 1 || n[0] < '0' || n[0] > '9' {
		return "", false
	}
	sel := "Example 1 Callback " + n
	if refreshed {
		sel += " (NEW) ✨"
	}
	return sel, true
}

// example1Message embeds a fresh code so Telegram sees the edit as a change.
func example1Message(code string) string {
	return "To force Telegram to update the message, we include a unique string: " + format.Code(code) +
		". This ensures the message content is different from before.\n\n" +
		"<b>Try the extended example:</b>\n👉 /example1_callback for multiple callback types"
}

func onExample1(c tele.Context) error {
	sel, ok := example1Selection(callbacks.CallbackPayload(c))
	if !ok {
		return callbacks.Answer(c, &tele.CallbackResponse{Text: unsupportedAction})
	}
	_ = callbacks.Answer(c, &tele.CallbackResponse{Text: "You selected: " + sel})
	code := strings.ReplaceAll(uuid.NewString(), "-", "")[:4]
	return tghelpers.EditOrSendHTML(c, example1Message(code), example1Keyboard(true))
}

func example1CallbackKeyboard() *tele.ReplyMarkup {
	kind := func(text, data string) keyboard.InlineBtn {
		return keyboard.InlineBtn{Text: text, Unique: cbExample1Kind, Data: data}
	}
	rows := [][]keyboard.InlineBtn{
		{kind("Handle Callback 1", "1")},
		{kind("Handle Callback 2", "2"), kind("Handle Callback 3", "3")},
		{{Text: "Inline Query Example", Unique: cbInlineQuery}},
		{kind("Handle Callback Other", "other")},
	}
	var letters []keyboard.InlineBtn
	for _, l := range []string{"A", "B", "C", "D"} {
		letters = append(letters, kind(l, "1_"+l))
	}
	rows = append(rows, letters)
	for size := 8; size >= 1; size-- {
		row := make([]keyboard.InlineBtn, size)
		for i := range row {
			row[i] = kind(fmt.Sprint(i+1), fmt.Sprintf("2_%d", i+1))
		}
		rows = append(rows, row)
	}
	rows = append(rows,
		[]keyboard.InlineBtn{{Text: "Switch to another chat (Inline Query)", Query: "example article"}},
		[]keyboard.InlineBtn{{Text: "Switch in current chat (Inline Query)", QueryChat: "example article"}},
	)
	return keyboard.InlineButtonsRows(rows...)
}

var example1KindRe = regexp.MustCompile(`^(\d|other)(?:_([A-D]|\d+))?$`)

// example1Answer maps a /example1_callback payload to the callback answer text.
func example1Answer(payload string) (text string, alert bool, ok bool) {
	m := example1KindRe.FindStringSubmatch(payload)
	if m == nil {
		return "", false, false
	}
	kind, detail := m[1], m[2]
	msg := "Example 1 callback "
	switch {
	case kind == "other":
		msg += "other"
		alert = true
	case kind == "1" && detail != "" && detail[0] >= 'A':
		msg += "1 " + detail
	case kind == "2" && detail != "" && detail[0] <= '9':
		msg += "2 " + detail
	default:
		msg += kind
	}
	return "You selected: " + msg, alert, true
}

func onExample1Kind(c tele.Context) error {
	text, alert, ok := example1Answer(callbacks.CallbackPayload(c))
	if !ok {
		return callbacks.Answer(c, &tele.CallbackResponse{Text: unsupportedAction})
	}
	return callbacks.Answer(c, &tele.CallbackResponse{Text: text, ShowAlert: alert})
}

func onInlineQueryButton(c tele.Context) error {
	markup := keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "Article", QueryChat: "example article"},
		{Text: "Photo", QueryChat: "example photo"},
	})
	return tghelpers.SendText(c, "This is an example of an inline query.", &tele.SendOptions{ReplyMarkup: markup})
}

// example2Reply echoes a chosen /example2 option as inline code.
func example2Reply(text string) (string, bool) {
	if !example2Option.MatchString(text) {
		return "", false
	}
	return "✅ You selected: " + format.CodeMDV2(text), true
}

func onExample2Option(c tele.Context) error {
	reply, ok := example2Reply(c.Text())
	if !ok {
		return nil
	}
	return tghelpers.SendMDV2(c, reply, keyboard.RemoveKeyboard())
}
