package dialogue_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/scenebot/core/dialogue"
	"github.com/m3rciful/scenebot/core/dialogue/dialoguetest"
	"github.com/m3rciful/scenebot/core/storage/memory"
)

const (
	promptConfirm = "✅ Yes / ❌ No"
	promptName    = "📍 Step 1: What’s your name?"
	promptJob     = "📍 Step 2: What do you do for a living?"
	promptHobby   = "📍 Step 3: What’s your favorite hobby?"
	promptFeedbk  = "📍 Step 4: Any feedback or message for us?"
	hintConfirm   = "Please answer with ✅ Yes or ❌ No"
)

var conv = dialogue.NewConversationID(-1001, 42)

func formSteps() *dialogue.Registry {
	confirm := &dialogue.Keyboard{Rows: [][]string{{"✅ Yes", "❌ No"}}, Resize: true, OneTime: true}
	return dialogue.MustRegistry(
		dialogue.Step{
			Prompt:   dialogue.Prompt{Text: promptConfirm, Keyboard: confirm},
			Validate: dialogue.OneOf(hintConfirm, "✅ Yes", "❌ No"),
		},
		dialogue.Step{Prompt: dialogue.Prompt{Text: promptName, Keyboard: dialogue.RemoveKeyboard()}},
		dialogue.Step{Prompt: dialogue.Prompt{Text: promptJob}},
		dialogue.Step{Prompt: dialogue.Prompt{Text: promptHobby}},
		dialogue.Step{Prompt: dialogue.Prompt{Text: promptFeedbk}},
	)
}

type fixture struct {
	m     *dialogue.Machine
	store *dialoguetest.FlakyStore
	out   *dialoguetest.Recorder
	obs   *countingObserver
}

func newFixture(t *testing.T, opts ...dialogue.Option) *fixture {
	t.Helper()
	f := &fixture{
		store: dialoguetest.NewFlakyStore(memory.New()),
		out:   &dialoguetest.Recorder{},
		obs:   &countingObserver{},
	}
	opts = append([]dialogue.Option{dialogue.WithObserver(f.obs)}, opts...)
	m, err := dialogue.New("scene", formSteps(), f.store, f.out, opts...)
	require.NoError(t, err)
	f.m = m
	return f
}

func (f *fixture) stored(t *testing.T) *dialogue.Session {
	t.Helper()
	s, err := f.store.Load(context.Background(), dialogue.Key{Scene: "scene", Conversation: conv})
	if errors.Is(err, dialogue.ErrSessionNotFound) {
		return nil
	}
	require.NoError(t, err)
	return s
}

type countingObserver struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *countingObserver) inc(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = map[string]int{}
	}
	o.counts[name]++
}

func (o *countingObserver) get(name string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counts[name]
}

func (o *countingObserver) Entered(string)                  { o.inc("entered") }
func (o *countingObserver) Advanced(string, int)            { o.inc("advanced") }
func (o *countingObserver) Rejected(string, int)            { o.inc("rejected") }
func (o *countingObserver) Retreated(string, int)           { o.inc("retreated") }
func (o *countingObserver) Completed(string, time.Duration) { o.inc("completed") }
func (o *countingObserver) Canceled(string, int)            { o.inc("canceled") }
func (o *countingObserver) Expired(string)                  { o.inc("expired") }

func TestNewValidatesArguments(t *testing.T) {
	store := memory.New()
	out := &dialoguetest.Recorder{}
	steps := formSteps()

	_, err := dialogue.New("", steps, store, out)
	assert.Error(t, err)
	_, err = dialogue.New("a:b", steps, store, out)
	assert.Error(t, err)
	_, err = dialogue.New("scene", nil, store, out)
	assert.Error(t, err)
	_, err = dialogue.New("scene", steps, nil, out)
	assert.Error(t, err)
	_, err = dialogue.New("scene", steps, store, nil)
	assert.Error(t, err)
}

func TestFullRunCompletesAndClearsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.m.Enter(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, dialogue.OutcomeEntered, res.Outcome)
	assert.Equal(t, 0, res.Session.CurrentStep)

	first, ok := f.out.Last()
	require.True(t, ok)
	assert.Equal(t, promptConfirm, first.Text)
	require.NotNil(t, first.Keyboard)
	assert.Equal(t, [][]string{{"✅ Yes", "❌ No"}}, first.Keyboard.Rows)

	inputs := []string{"✅ Yes", "Alice", "Engineer", "Chess", "Great bot!"}
	for i, in := range inputs[:4] {
		res, err := f.m.Submit(ctx, conv, in)
		require.NoError(t, err)
		assert.Equal(t, dialogue.OutcomeAdvanced, res.Outcome)
		assert.Equal(t, i+1, res.Session.CurrentStep)
		assert.Equal(t, in, res.Session.Answers[i])
	}
	assert.Equal(t, []string{promptConfirm, promptName, promptJob, promptHobby, promptFeedbk}, f.out.Texts())

	sent := f.out.Sent()
	require.NotNil(t, sent[1].Reply.Keyboard)
	assert.True(t, sent[1].Reply.Keyboard.Remove, "leaving the confirm step hides its keyboard")

	res, err = f.m.Submit(ctx, conv, inputs[4])
	require.NoError(t, err)
	assert.Equal(t, dialogue.OutcomeCompleted, res.Outcome)
	assert.True(t, res.Session.Completed)
	assert.Equal(t, 5, res.Session.CurrentStep)
	assert.Len(t, res.Session.Answers, 5)

	summary, _ := f.out.Last()
	assert.Equal(t, dialogue.FormatHTML, summary.Format)
	assert.Contains(t, summary.Text, "<tg-spoiler>🎉")
	assert.Contains(t, summary.Text, `&#34;step1Answer&#34;: &#34;Alice&#34;`)
	assert.Contains(t, summary.Text, `&#34;step4Answer&#34;: &#34;Great bot!&#34;`)

	assert.Nil(t, f.stored(t), "completed sessions are removed")
	active, err := f.m.Active(ctx, conv)
	require.NoError(t, err)
	assert.False(t, active)

	assert.Equal(t, 1, f.obs.get("entered"))
	assert.Equal(t, 5, f.obs.get("advanced"))
	assert.Equal(t, 1, f.obs.get("completed"))
}

func TestSubmitWithoutDialogue(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.Submit(context.Background(), conv, "hello")
	assert.ErrorIs(t, err, dialogue.ErrNoActiveDialogue)
	assert.Empty(t, f.out.Sent())
}

func TestInvalidAnswerRepromptsWithoutAdvancing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.m.Enter(ctx, conv)
	require.NoError(t, err)
	f.out.Reset()

	res, err := f.m.Submit(ctx, conv, "maybe")
	require.NoError(t, err)
	assert.Equal(t, dialogue.OutcomeRejected, res.Outcome)
	assert.Equal(t, 0, res.Session.CurrentStep)
	assert.Empty(t, res.Session.Answers)

	reply, ok := f.out.Last()
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(reply.Text, hintConfirm))
	assert.Contains(t, reply.Text, promptConfirm)
	assert.NotNil(t, reply.Keyboard)

	assert.Equal(t, 0, f.stored(t).CurrentStep)
	assert.Equal(t, 1, f.obs.get("rejected"))
}

func TestEnterWhileActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.m.Enter(ctx, conv)
	require.NoError(t, err)
	_, err = f.m.Submit(ctx, conv, "✅ Yes")
	require.NoError(t, err)

	res, err := f.m.Enter(ctx, conv)
	assert.ErrorIs(t, err, dialogue.ErrAlreadyActive)
	assert.Equal(t, 1, res.Session.CurrentStep)
	assert.Equal(t, 1, f.stored(t).CurrentStep, "a second Enter does not reset progress")

	res, err = f.m.Restart(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, dialogue.OutcomeEntered, res.Outcome)
	assert.Equal(t, 0, f.stored(t).CurrentStep)
	assert.Empty(t, f.stored(t).Answers)
}

func TestBackAtBeginning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.m.Enter(ctx, conv)
	require.NoError(t, err)
	f.out.Reset()

	res, err := f.m.Back(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, dialogue.OutcomeAtBeginning, res.Outcome)
	assert.Equal(t, 0, res.Session.CurrentStep)
	assert.Equal(t, []string{dialogue.DefaultMessages.AtBeginning}, f.out.Texts())
	assert.Equal(t, 0, f.obs.get("retreated"))
}

func TestBackAtBeginningReprompts(t *testing.T) {
	f := newFixture(t, dialogue.WithMessages(dialogue.Messages{
		AtBeginningTTL:      2 * time.Second,
		RepromptAtBeginning: true,
	}))
	ctx := context.Background()
	_, err := f.m.Enter(ctx, conv)
	require.NoError(t, err)
	f.out.Reset()

	_, err = f.m.Back(ctx, conv)
	require.NoError(t, err)
	sent := f.out.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, 2*time.Second, sent[0].Reply.ExpireAfter)
	assert.Equal(t, promptConfirm, sent[1].Reply.Text)
}

func TestBackKeepsPreviousAnswerUntilOverwritten(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.m.Enter(ctx, conv)
	require.NoError(t, err)
	for _, in := range []string{"✅ Yes", "Alice"} {
		_, err := f.m.Submit(ctx, conv, in)
		require.NoError(t, err)
	}

	res, err := f.m.Back(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, dialogue.OutcomeRetreated, res.Outcome)
	assert.Equal(t, 1, res.Session.CurrentStep)
	assert.Equal(t, "Alice", res.Session.Answers[1])
	last, _ := f.out.Last()
	assert.Equal(t, promptName, last.Text)

	res, err = f.m.Submit(ctx, conv, "Bob")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Session.CurrentStep)
	assert.Equal(t, "Bob", res.Session.Answers[1])
}

func TestBackDelayHonoursContext(t *testing.T) {
	f := newFixture(t, dialogue.WithBackDelay(time.Hour))
	ctx := context.Background()
	_, err := f.m.Enter(ctx, conv)
	require.NoError(t, err)
	_, err = f.m.Submit(ctx, conv, "✅ Yes")
	require.NoError(t, err)
	f.out.Reset()

	cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	res, err := f.m.Back(cctx, conv)
	require.NoError(t, err)
	assert.Equal(t, dialogue.OutcomeRetreated, res.Outcome)
	assert.Equal(t, 0, f.stored(t).CurrentStep, "state is persisted before the delay")
	assert.Empty(t, f.out.Sent())
}

func TestCancelClearsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.m.Enter(ctx, conv)
	require.NoError(t, err)
	_, err = f.m.Submit(ctx, conv, "❌ No")
	require.NoError(t, err)

	res, err := f.m.Cancel(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, dialogue.OutcomeCanceled, res.Outcome)
	assert.True(t, res.Session.Canceled)
	assert.Nil(t, f.stored(t))
	last, _ := f.out.Last()
	assert.Equal(t, dialogue.DefaultMessages.Canceled, last.Text)

	_, err = f.m.Submit(ctx, conv, "Alice")
	assert.ErrorIs(t, err, dialogue.ErrNoActiveDialogue)
	_, err = f.m.Cancel(ctx, conv)
	assert.ErrorIs(t, err, dialogue.ErrNoActiveDialogue)
	_, err = f.m.Back(ctx, conv)
	assert.ErrorIs(t, err, dialogue.ErrNoActiveDialogue)
}

func TestHelpDoesNotTouchState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.m.Help(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, dialogue.OutcomeHelped, res.Outcome)
	assert.Nil(t, f.stored(t))
	assert.Equal(t, []string{dialogue.DefaultMessages.Help}, f.out.Texts())
}

func TestIntroPrefixesFirstPrompt(t *testing.T) {
	f := newFixture(t, dialogue.WithMessages(dialogue.Messages{
		Intro:  "👋 Welcome to <b>Base Scene</b>!",
		Format: dialogue.FormatHTML,
	}))
	_, err := f.m.Enter(context.Background(), conv)
	require.NoError(t, err)

	first, _ := f.out.Last()
	assert.Equal(t, "👋 Welcome to <b>Base Scene</b>!\n\n"+promptConfirm, first.Text)
	assert.Equal(t, dialogue.FormatHTML, first.Format)
	assert.NotNil(t, first.Keyboard)
}

func TestIntroOnlyKeepsFirstKeyboard(t *testing.T) {
	f := newFixture(t, dialogue.WithMessages(dialogue.Messages{
		Intro:     "👋 Welcome to <b>Wizard</b>!",
		IntroOnly: true,
		Format:    dialogue.FormatHTML,
	}))
	_, err := f.m.Enter(context.Background(), conv)
	require.NoError(t, err)

	sent := f.out.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "👋 Welcome to <b>Wizard</b>!", sent[0].Reply.Text)
	assert.Equal(t, dialogue.FormatHTML, sent[0].Reply.Format)
	require.NotNil(t, sent[0].Reply.Keyboard)
	assert.Equal(t, [][]string{{"✅ Yes", "❌ No"}}, sent[0].Reply.Keyboard.Rows)
}

func TestRepromptKeepsState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.m.Reprompt(ctx, conv, "Please respond with text.")
	assert.ErrorIs(t, err, dialogue.ErrNoActiveDialogue)

	_, err = f.m.Enter(ctx, conv)
	require.NoError(t, err)
	_, err = f.m.Submit(ctx, conv, "✅ Yes")
	require.NoError(t, err)

	res, err := f.m.Reprompt(ctx, conv, "Please respond with text.")
	require.NoError(t, err)
	assert.Equal(t, dialogue.OutcomeRejected, res.Outcome)
	assert.Equal(t, 1, res.Session.CurrentStep)
	assert.Equal(t, map[int]string{0: "✅ Yes"}, res.Session.Answers)
	last, _ := f.out.Last()
	assert.Equal(t, "Please respond with text.\n\n"+promptName, last.Text)
	assert.Equal(t, 1, f.obs.get("rejected"))
}

func TestStoreFailureLeavesStateAndSendsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.m.Enter(ctx, conv)
	require.NoError(t, err)
	f.out.Reset()

	f.store.FailSave(true)
	_, err = f.m.Submit(ctx, conv, "✅ Yes")
	require.Error(t, err)
	assert.ErrorIs(t, err, dialogue.ErrStoreUnavailable)
	assert.ErrorIs(t, err, dialoguetest.ErrInjected)
	var serr *dialogue.StoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "save", serr.Op)
	assert.Empty(t, f.out.Sent())

	f.store.FailSave(false)
	assert.Equal(t, 0, f.stored(t).CurrentStep)

	f.store.FailLoad(true)
	_, err = f.m.Submit(ctx, conv, "✅ Yes")
	assert.ErrorIs(t, err, dialogue.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, dialogue.ErrNoActiveDialogue)
}

func TestCompletionSaveFailureSendsNoSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.m.Enter(ctx, conv)
	require.NoError(t, err)
	for _, in := range []string{"✅ Yes", "Alice", "Engineer", "Chess"} {
		_, err := f.m.Submit(ctx, conv, in)
		require.NoError(t, err)
	}
	f.out.Reset()

	f.store.FailSave(true)
	_, err = f.m.Submit(ctx, conv, "Great bot!")
	assert.ErrorIs(t, err, dialogue.ErrStoreUnavailable)
	assert.Empty(t, f.out.Sent())
	assert.Equal(t, 0, f.obs.get("completed"))
}

func TestDuplicateFinalAnswerIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.m.Enter(ctx, conv)
	require.NoError(t, err)
	for _, in := range []string{"✅ Yes", "Alice", "Engineer", "Chess"} {
		_, err := f.m.Submit(ctx, conv, in)
		require.NoError(t, err)
	}

	// Leave the terminal record in place, as after a crash between save and delete.
	f.store.FailDelete(true)
	res, err := f.m.Submit(ctx, conv, "Great bot!")
	require.NoError(t, err)
	assert.Equal(t, dialogue.OutcomeCompleted, res.Outcome)
	require.NotNil(t, f.stored(t))
	assert.True(t, f.stored(t).Completed)
	f.out.Reset()

	res, err = f.m.Submit(ctx, conv, "Great bot!")
	require.NoError(t, err)
	assert.Equal(t, dialogue.OutcomeIgnored, res.Outcome)
	assert.Empty(t, f.out.Sent(), "no second summary")
	assert.Equal(t, 1, f.obs.get("completed"))

	active, err := f.m.Active(ctx, conv)
	require.NoError(t, err)
	assert.False(t, active)

	f.store.FailDelete(false)
	res, err = f.m.Enter(ctx, conv)
	require.NoError(t, err, "a terminal record does not block a new run")
	assert.Equal(t, dialogue.OutcomeEntered, res.Outcome)
}

func TestIdleTimeoutExpiresSession(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	f := newFixture(t, dialogue.WithIdleTimeout(10*time.Minute), dialogue.WithClock(clock))
	ctx := context.Background()

	_, err := f.m.Enter(ctx, conv)
	require.NoError(t, err)
	now = now.Add(5 * time.Minute)
	_, err = f.m.Submit(ctx, conv, "✅ Yes")
	require.NoError(t, err)

	now = now.Add(11 * time.Minute)
	_, err = f.m.Submit(ctx, conv, "Alice")
	assert.ErrorIs(t, err, dialogue.ErrNoActiveDialogue)
	assert.Nil(t, f.stored(t))
	assert.Equal(t, 1, f.obs.get("expired"))
}

func TestDefaultOptionsNeverExpire(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	f := newFixture(t, dialogue.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	_, err := f.m.Enter(ctx, conv)
	require.NoError(t, err)
	now = now.Add(30 * 24 * time.Hour)

	sess, err := f.m.Session(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, 0, sess.CurrentStep)

	res, err := f.m.Submit(ctx, conv, "✅ Yes")
	require.NoError(t, err)
	assert.Equal(t, dialogue.OutcomeAdvanced, res.Outcome)
	assert.Equal(t, 1, res.Session.CurrentStep)
	assert.Zero(t, f.obs.get("expired"))
}

func TestReplierFailureDoesNotFailTransition(t *testing.T) {
	f := newFixture(t)
	f.out.Err = errors.New("telegram down")
	ctx := context.Background()

	res, err := f.m.Enter(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, dialogue.OutcomeEntered, res.Outcome)
	res, err = f.m.Submit(ctx, conv, "✅ Yes")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Session.CurrentStep)
}

func TestConversationsAreIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := dialogue.NewConversationID(-1001, 43)

	_, err := f.m.Enter(ctx, conv)
	require.NoError(t, err)
	_, err = f.m.Submit(ctx, conv, "✅ Yes")
	require.NoError(t, err)

	_, err = f.m.Submit(ctx, other, "✅ Yes")
	assert.ErrorIs(t, err, dialogue.ErrNoActiveDialogue)

	_, err = f.m.Enter(ctx, other)
	require.NoError(t, err)
	s, err := f.m.Session(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, 0, s.CurrentStep)
	s, err = f.m.Session(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, 1, s.CurrentStep)
}

func TestReturnedSessionIsSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.m.Enter(ctx, conv)
	require.NoError(t, err)
	res, err := f.m.Submit(ctx, conv, "✅ Yes")
	require.NoError(t, err)

	res.Session.Answers[0] = "tampered"
	res.Session.CurrentStep = 4
	stored := f.stored(t)
	assert.Equal(t, "✅ Yes", stored.Answers[0])
	assert.Equal(t, 1, stored.CurrentStep)
}
