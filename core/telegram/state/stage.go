package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/scenebot/core/dialogue"
	"github.com/m3rciful/scenebot/core/logger"
	tg "github.com/m3rciful/scenebot/core/telegram"
	"github.com/m3rciful/scenebot/core/telegram/commands"
	tghelpers "github.com/m3rciful/scenebot/core/telegram/helpers"
)

const activeSceneKey = "dialogue_scene"

// Scene binds a dialogue machine to the command that starts it.
type Scene struct {
	Command     string
	Description string
	Machine     *dialogue.Machine
}

// Name returns the machine name.
func (s Scene) Name() string { return s.Machine.Name() }

// Messages are the notices the Stage sends on its own behalf.
type Messages struct {
	NoBack   string
	NoCancel string
	Help     string
	// Busy is sent when another scene is running. %s receives its command.
	Busy    string
	Failure string
	// TextOnly precedes the current prompt when a scene receives media.
	TextOnly string
}

// DefaultMessages apply to every empty field.
var DefaultMessages = Messages{
	NoBack:   "There is no active process to go back to",
	NoCancel: "There is no ongoing process to cancel",
	Help:     "Display bot help",
	Busy:     "You are already in %s. Finish it or /cancel first.",
	Failure:  "Something went wrong, please try again",
	TextOnly: "Please respond with text.",
}

// Stage routes updates to at most one running scene per conversation.
type Stage struct {
	scenes  []Scene
	replier dialogue.Replier
	msgs    Messages
}

// NewStage validates scenes and builds a Stage. Notices go through replier.
func NewStage(replier dialogue.Replier, msgs Messages, scenes ...Scene) (*Stage, error) {
	if replier == nil {
		return nil, errors.New("state: nil replier")
	}
	if len(scenes) == 0 {
		return nil, errors.New("state: no scenes")
	}
	seenName := make(map[string]struct{}, len(scenes))
	seenCmd := make(map[string]struct{}, len(scenes))
	for _, sc := range scenes {
		if sc.Machine == nil {
			return nil, fmt.Errorf("state: scene %q has no machine", sc.Command)
		}
		if !strings.HasPrefix(sc.Command, "/") {
			return nil, fmt.Errorf("state: scene %q command must start with /", sc.Name())
		}
		if _, dup := seenName[sc.Name()]; dup {
			return nil, fmt.Errorf("state: duplicate scene %q", sc.Name())
		}
		if _, dup := seenCmd[sc.Command]; dup {
			return nil, fmt.Errorf("state: duplicate command %q", sc.Command)
		}
		seenName[sc.Name()] = struct{}{}
		seenCmd[sc.Command] = struct{}{}
	}
	return &Stage{
		scenes:  append([]Scene(nil), scenes...),
		replier: replier,
		msgs:    withDefaults(msgs),
	}, nil
}

func withDefaults(m Messages) Messages {
	d := DefaultMessages
	if m.NoBack == "" {
		m.NoBack = d.NoBack
	}
	if m.NoCancel == "" {
		m.NoCancel = d.NoCancel
	}
	if m.Help == "" {
		m.Help = d.Help
	}
	if m.Busy == "" {
		m.Busy = d.Busy
	}
	if m.Failure == "" {
		m.Failure = d.Failure
	}
	if m.TextOnly == "" {
		m.TextOnly = d.TextOnly
	}
	return m
}

// Scenes returns the registered scenes in order.
func (s *Stage) Scenes() []Scene {
	return append([]Scene(nil), s.scenes...)
}

// Scene looks a scene up by machine name.
func (s *Stage) Scene(name string) (Scene, bool) {
	for _, sc := range s.scenes {
		if sc.Name() == name {
			return sc, true
		}
	}
	return Scene{}, false
}

// Register adds the scene commands and /back, /cancel, /help to reg.
func (s *Stage) Register(reg *tg.Registry) error {
	errs := make([]error, 0, len(s.scenes)+3)
	for _, sc := range s.scenes {
		errs = append(errs, reg.RegisterCommand(sc.Command, commands.Command{
			Handler:     s.EnterHandler(sc.Name()),
			Description: sc.Description,
		}))
	}
	errs = append(errs,
		reg.RegisterCommand("/back", commands.Command{Handler: s.Back, Description: "Go back to the previous step"}),
		reg.RegisterCommand("/cancel", commands.Command{Handler: s.Cancel, Description: "Cancel the current operation"}),
		reg.RegisterCommand("/help", commands.Command{Handler: s.Help, Description: "Display help information"}),
	)
	return errors.Join(errs...)
}

// Active returns the scene running in the conversation, if any.
func (s *Stage) Active(ctx context.Context, id dialogue.ConversationID) (*Scene, error) {
	for i := range s.scenes {
		ok, err := s.scenes[i].Machine.Active(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			return &s.scenes[i], nil
		}
	}
	return nil, nil
}

// activeFor caches the lookup on the update so routing and handling share it.
func (s *Stage) activeFor(c tele.Context, id dialogue.ConversationID) (*Scene, error) {
	if sc, ok := c.Get(activeSceneKey).(*Scene); ok {
		return sc, nil
	}
	sc, err := s.Active(tghelpers.BuildContext(c), id)
	if err != nil {
		return nil, err
	}
	if sc != nil {
		c.Set(activeSceneKey, sc)
	}
	return sc, nil
}

// EnterHandler starts the named scene. Re-entering the running scene restarts it.
func (s *Stage) EnterHandler(name string) tele.HandlerFunc {
	return func(c tele.Context) error {
		sc, ok := s.Scene(name)
		if !ok {
			return fmt.Errorf("state: unknown scene %q", name)
		}
		id, ok := ConversationOf(c)
		if !ok {
			return nil
		}
		ctx := tghelpers.BuildContext(c)
		active, err := s.activeFor(c, id)
		if err != nil {
			return s.fail(ctx, id, err)
		}
		switch {
		case active != nil && active.Name() != sc.Name():
			logger.Debug(ctx, "dialogue", "stage.enter",
				slog.String("status", "skip"),
				slog.String("scene", sc.Name()),
				slog.String("reason", "busy"),
			)
			s.notify(ctx, id, fmt.Sprintf(s.msgs.Busy, active.Command))
			return nil
		case active != nil:
			_, err = sc.Machine.Restart(ctx, id)
		default:
			_, err = sc.Machine.Enter(ctx, id)
		}
		c.Set(activeSceneKey, nil)
		if errors.Is(err, dialogue.ErrAlreadyActive) {
			s.notify(ctx, id, fmt.Sprintf(s.msgs.Busy, sc.Command))
			return nil
		}
		return s.check(ctx, id, err, "")
	}
}

// Back moves the running scene one step back.
func (s *Stage) Back(c tele.Context) error {
	return s.route(c, s.msgs.NoBack, func(ctx context.Context, sc *Scene, id dialogue.ConversationID) error {
		_, err := sc.Machine.Back(ctx, id)
		return err
	})
}

// Cancel abandons the running scene.
func (s *Stage) Cancel(c tele.Context) error {
	return s.route(c, s.msgs.NoCancel, func(ctx context.Context, sc *Scene, id dialogue.ConversationID) error {
		_, err := sc.Machine.Cancel(ctx, id)
		return err
	})
}

// Help shows the running scene's help, or the bot help outside of scenes.
func (s *Stage) Help(c tele.Context) error {
	return s.route(c, s.msgs.Help, func(ctx context.Context, sc *Scene, id dialogue.ConversationID) error {
		_, err := sc.Machine.Help(ctx, id)
		return err
	})
}

// InProgress reports whether a scene is running in the conversation.
// Store failures count as running so that HandleText can report them.
func (s *Stage) InProgress(c tele.Context) bool {
	id, ok := ConversationOf(c)
	if !ok {
		return false
	}
	sc, err := s.activeFor(c, id)
	return err != nil || sc != nil
}

// HandleText submits the message text as the answer to the current step.
func (s *Stage) HandleText(c tele.Context) error {
	return s.route(c, "", func(ctx context.Context, sc *Scene, id dialogue.ConversationID) error {
		_, err := sc.Machine.Submit(ctx, id, c.Text())
		return err
	})
}

// HandleMedia answers non-text input in a running scene with the current
// prompt. Captions are not taken as answers.
func (s *Stage) HandleMedia(c tele.Context) error {
	return s.route(c, "", func(ctx context.Context, sc *Scene, id dialogue.ConversationID) error {
		_, err := sc.Machine.Reprompt(ctx, id, s.msgs.TextOnly)
		return err
	})
}

func (s *Stage) route(c tele.Context, idle string, fn func(context.Context, *Scene, dialogue.ConversationID) error) error {
	id, ok := ConversationOf(c)
	if !ok {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	sc, err := s.activeFor(c, id)
	if err != nil {
		return s.fail(ctx, id, err)
	}
	if sc == nil {
		s.notify(ctx, id, idle)
		return nil
	}
	return s.check(ctx, id, fn(ctx, sc, id), idle)
}

// check turns machine errors into notices. Store failures are returned
// for the handler summary after telling the user.
func (s *Stage) check(ctx context.Context, id dialogue.ConversationID, err error, idle string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, dialogue.ErrNoActiveDialogue):
		s.notify(ctx, id, idle)
		return nil
	default:
		return s.fail(ctx, id, err)
	}
}

func (s *Stage) fail(ctx context.Context, id dialogue.ConversationID, err error) error {
	s.notify(ctx, id, s.msgs.Failure)
	return err
}

func (s *Stage) notify(ctx context.Context, id dialogue.ConversationID, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if err := s.replier.Reply(ctx, id, dialogue.Reply{Text: text}); err != nil {
		logger.Warn(ctx, "tg", "stage.notify",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
}
