package bot

import (
	"time"

	"github.com/m3rciful/scenebot/core/dialogue"
	"github.com/m3rciful/scenebot/core/telegram/state"
)

const (
	// SceneName and WizardName are the store names of the two dialogues.
	SceneName  = "scene"
	WizardName = "wizard"

	answerYes = "✅ Yes"
	answerNo  = "❌ No"

	textOnly = "Please respond with text."

	// maxAnswerLen keeps the completion summary under Telegram's
	// 4096-character message limit even when every rune is JSON-escaped.
	maxAnswerLen = 400
	tooLong      = "Please keep your answer under 400 characters."
)

func freeText() dialogue.Validator {
	return dialogue.Chain(dialogue.NonEmpty(textOnly), dialogue.MaxLen(maxAnswerLen, tooLong))
}

func confirmKeyboard() *dialogue.Keyboard {
	return &dialogue.Keyboard{
		Rows:        [][]string{{answerYes, answerNo}},
		Resize:      true,
		OneTime:     true,
		Placeholder: "Pick your answer",
	}
}

const sceneIntro = `👋 Welcome to <b>Base Scene Example 1</b>!

This is a multi-step form where we’ll collect a few responses from you.

🔙 <b>/back</b> — Go back
❌ <b>/cancel</b> — Cancel the flow
❓ <b>/help</b> — Show this help again

Let’s start with a quick question 👇`

const sceneHelp = `❓ <b>Help — Base Scene Example 1</b>

This flow collects input step-by-step.
You can use the following commands to navigate:

🔙 /back — Go to previous question
❌ /cancel — Cancel the form
🚀 /example3 — Restart from beginning`

// SceneSteps are the five questions of /example3 in plain text.
func SceneSteps() *dialogue.Registry {
	return dialogue.MustRegistry(
		dialogue.Step{
			Prompt:   dialogue.Prompt{Text: "✅ Yes / ❌ No", Keyboard: confirmKeyboard()},
			Validate: dialogue.OneOf("Please answer with ✅ Yes or ❌ No", answerYes, answerNo),
		},
		dialogue.Step{
			Prompt:   dialogue.Prompt{Text: "📍 Step 1: What’s your name?", Keyboard: dialogue.RemoveKeyboard()},
			Validate: freeText(),
		},
		dialogue.Step{
			Prompt:   dialogue.Prompt{Text: "📍 Step 2: What do you do for a living?"},
			Validate: freeText(),
		},
		dialogue.Step{
			Prompt:   dialogue.Prompt{Text: "📍 Step 3: What’s your favorite hobby?"},
			Validate: freeText(),
		},
		dialogue.Step{
			Prompt:   dialogue.Prompt{Text: "📍 Step 4: Any feedback or message for us?"},
			Validate: freeText(),
		},
	)
}

const wizardIntro = `👋 Welcome to <b>Wizard Scene Example 1</b>!

This is a multi-step form where we’ll collect a few responses from you.
You can navigate through the steps using the following commands:

🔙 <b>/back</b> — Go back to the previous step
❌ <b>/cancel</b> — Cancel the wizard at any time
❓ <b>/help</b> — Show this help message again

Let's start with a quick question 👇`

const wizardHelp = `❓ <b>Help — Wizard Example 1</b>

This wizard collects your input through a few short steps.
You can control the flow using these commands:

🔙 /back — Go back to the previous step
❌ /cancel — Exit the wizard
🚀 /example4 — Start over

Let me know if you're ready to continue!`

// WizardSteps are the questions of /example4. The first prompt doubles as the
// retry message, so its validator carries no extra hint.
func WizardSteps() *dialogue.Registry {
	html := func(text string) dialogue.Prompt {
		return dialogue.Prompt{Text: text, Format: dialogue.FormatHTML}
	}
	name := html("📍 <b>Step 1:</b> What’s your name?")
	name.Keyboard = dialogue.RemoveKeyboard()
	return dialogue.MustRegistry(
		dialogue.Step{
			Prompt:   dialogue.Prompt{Text: "Please reply with your answer: '✅ Yes' or '❌ No'.", Keyboard: confirmKeyboard()},
			Validate: dialogue.OneOf("", answerYes, answerNo),
		},
		dialogue.Step{Prompt: name, Validate: freeText()},
		dialogue.Step{Prompt: html("📍 <b>Step 2:</b> What do you do for a living?"), Validate: freeText()},
		dialogue.Step{Prompt: html("📍 <b>Step 3:</b> What’s your favorite hobby?"), Validate: freeText()},
		dialogue.Step{Prompt: html("📍 <b>Step 4:</b> Do you have any feedback or message for us?"), Validate: freeText()},
	)
}

// SceneSettings carry the runtime knobs shared by both dialogues.
type SceneSettings struct {
	IdleTimeout time.Duration
	// BackDelay overrides the wizard's default 100ms pause before re-prompting.
	BackDelay time.Duration
	Observer  dialogue.Observer
}

// NewScenes builds the /example3 and /example4 scenes over one store and replier.
func NewScenes(store dialogue.Store, replier dialogue.Replier, set SceneSettings) ([]state.Scene, error) {
	common := []dialogue.Option{dialogue.WithIdleTimeout(set.IdleTimeout)}
	if set.Observer != nil {
		common = append(common, dialogue.WithObserver(set.Observer))
	}

	scene, err := dialogue.New(SceneName, SceneSteps(), store, replier, append(common,
		dialogue.WithMessages(dialogue.Messages{
			Intro:    sceneIntro,
			Help:     sceneHelp,
			Canceled: "❌ Scene canceled or exited early.",
			Format:   dialogue.FormatHTML,
		}),
	)...)
	if err != nil {
		return nil, err
	}

	backDelay := 100 * time.Millisecond
	if set.BackDelay > 0 {
		backDelay = set.BackDelay
	}
	wizard, err := dialogue.New(WizardName, WizardSteps(), store, replier, append(common,
		dialogue.WithMessages(dialogue.Messages{
			Intro:               wizardIntro,
			IntroOnly:           true,
			Help:                wizardHelp,
			Canceled:            "❌ Wizard canceled. You can restart anytime using /example4.",
			AtBeginningTTL:      2 * time.Second,
			RepromptAtBeginning: true,
			Format:              dialogue.FormatHTML,
		}),
		dialogue.WithBackDelay(backDelay),
		dialogue.WithCompletion(dialogue.JSONSummary("You’ve successfully completed Wizard Example 1!")),
	)...)
	if err != nil {
		return nil, err
	}

	return []state.Scene{
		{Command: "/example3", Description: "Multi-step form (scene)", Machine: scene},
		{Command: "/example4", Description: "Multi-step form (wizard)", Machine: wizard},
	}, nil
}
