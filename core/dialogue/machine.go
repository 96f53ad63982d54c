package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/scenebot/core/logger"
)

const component = "dialogue"

// Messages holds the static texts a Machine sends besides step prompts.
type Messages struct {
	// Intro is prepended to the first prompt on Enter.
	Intro string
	// IntroOnly sends Intro with the first step's keyboard instead of
	// Intro followed by the first prompt.
	IntroOnly   bool
	Help        string
	Canceled    string
	AtBeginning string
	// AtBeginningTTL makes the "already at the beginning" notice self-deleting.
	AtBeginningTTL time.Duration
	// RepromptAtBeginning repeats the first prompt after the notice.
	RepromptAtBeginning bool
	// Format applies to Intro, Help, Canceled and AtBeginning.
	Format Format
}

// DefaultMessages are used for any field left empty.
var DefaultMessages = Messages{
	Help:        "Use /back to return to the previous question or /cancel to stop.",
	Canceled:    "❌ Dialogue canceled.",
	AtBeginning: "⚠️ You are already at the beginning.",
}

// Option configures a Machine.
type Option func(*Machine)

// WithMessages overrides the static texts.
func WithMessages(msgs Messages) Option {
	return func(m *Machine) {
		if msgs.Help == "" {
			msgs.Help = DefaultMessages.Help
		}
		if msgs.Canceled == "" {
			msgs.Canceled = DefaultMessages.Canceled
		}
		if msgs.AtBeginning == "" {
			msgs.AtBeginning = DefaultMessages.AtBeginning
		}
		m.messages = msgs
	}
}

// WithCompletion sets the handler that formats the final summary.
func WithCompletion(h CompletionHandler) Option {
	return func(m *Machine) { m.complete = h }
}

// WithObserver registers a transition observer.
func WithObserver(o Observer) Option {
	return func(m *Machine) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithLogger routes machine events to l instead of the "dialogue" component logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// WithBackDelay delays the prompt sent after Back. The state change is persisted first.
func WithBackDelay(d time.Duration) Option {
	return func(m *Machine) { m.backDelay = d }
}

// WithIdleTimeout expires sessions untouched for longer than d. Zero disables expiry.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Machine) { m.idleTimeout = d }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// Machine drives conversations through a Registry of steps.
// It holds no per-conversation state; callers serialise operations per conversation.
type Machine struct {
	name        string
	steps       *Registry
	store       Store
	replier     Replier
	messages    Messages
	complete    CompletionHandler
	observer    Observer
	backDelay   time.Duration
	idleTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// New builds a Machine for the named dialogue.
func New(name string, steps *Registry, store Store, replier Replier, opts ...Option) (*Machine, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return nil, errors.New("dialogue: name is required")
	case strings.Contains(name, ":"):
		return nil, fmt.Errorf("dialogue: name %q must not contain ':'", name)
	case steps == nil || steps.Len() == 0:
		return nil, errors.New("dialogue: steps are required")
	case store == nil:
		return nil, errors.New("dialogue: store is required")
	case replier == nil:
		return nil, errors.New("dialogue: replier is required")
	}
	m := &Machine{
		name:     name,
		steps:    steps,
		store:    store,
		replier:  replier,
		messages: DefaultMessages,
		complete: JSONSummary("You’ve successfully completed the form!"),
		observer: nopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Name returns the dialogue name used as the store scene.
func (m *Machine) Name() string { return m.name }

// Steps returns the registry the machine walks.
func (m *Machine) Steps() *Registry { return m.steps }

// Enter starts a new dialogue. It fails with ErrAlreadyActive if one is running.
func (m *Machine) Enter(ctx context.Context, id ConversationID) (Result, error) {
	s, err := m.load(ctx, id)
	switch {
	case err == nil && !s.Terminal():
		m.log(ctx, slog.LevelDebug, "dialogue.enter", id,
			slog.String("status", "skip"),
			slog.Int("step", s.CurrentStep),
			slog.String("reason", "already_active"),
		)
		return Result{Session: s.Clone()}, ErrAlreadyActive
	case err != nil && !errors.Is(err, ErrNoActiveDialogue):
		return Result{}, err
	}
	return m.start(ctx, id)
}

// Restart discards any running dialogue and enters a fresh one.
func (m *Machine) Restart(ctx context.Context, id ConversationID) (Result, error) {
	key := m.key(id)
	if err := m.store.Delete(ctx, key); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return Result{}, &StoreError{Op: "delete", Key: key, Err: err}
	}
	return m.start(ctx, id)
}

func (m *Machine) start(ctx context.Context, id ConversationID) (Result, error) {
	s := NewSession(m.name, m.clock())
	if err := m.save(ctx, id, s); err != nil {
		return Result{}, err
	}
	m.observer.Entered(m.name)
	m.log(ctx, slog.LevelInfo, "dialogue.enter", id, slog.String("status", "ok"), slog.Int("step", 0))

	first, _ := m.steps.Get(0)
	r := first.Prompt.reply()
	switch {
	case m.messages.Intro == "":
	case m.messages.IntroOnly:
		r.Text, r.Format = m.messages.Intro, m.messages.Format
	default:
		r.Text = m.messages.Intro + "\n\n" + r.Text
		if r.Format == FormatPlain {
			r.Format = m.messages.Format
		}
	}
	m.send(ctx, id, r)
	return Result{Outcome: OutcomeEntered, Session: s.Clone()}, nil
}

// Submit applies an answer to the current step.
func (m *Machine) Submit(ctx context.Context, id ConversationID, input string) (Result, error) {
	s, err := m.load(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if s.Terminal() || m.steps.IsTerminal(s.CurrentStep) {
		m.log(ctx, slog.LevelDebug, "dialogue.submit", id,
			slog.String("status", "skip"),
			slog.String("reason", "terminal"),
		)
		return Result{Outcome: OutcomeIgnored, Session: s.Clone()}, nil
	}

	step, _ := m.steps.Get(s.CurrentStep)
	value, verr := step.validate(input)
	if verr != nil {
		m.observer.Rejected(m.name, step.Index)
		m.log(ctx, slog.LevelInfo, "dialogue.reject", id,
			slog.String("status", "ok"),
			slog.Int("step", step.Index),
			slog.String("cause", logger.SanitizeLimit(verr.Error(), 128)),
		)
		r := step.Prompt.reply()
		var ve *ValidationError
		if errors.As(verr, &ve) && ve.Hint != "" {
			r.Text = ve.Hint + "\n\n" + r.Text
		}
		m.send(ctx, id, r)
		return Result{Outcome: OutcomeRejected, Session: s.Clone()}, nil
	}

	next := s.Clone()
	next.Answers[step.Index] = value
	next.CurrentStep++
	next.UpdatedAt = m.clock()

	if !m.steps.IsTerminal(next.CurrentStep) {
		if err := m.save(ctx, id, next); err != nil {
			return Result{}, err
		}
		m.observer.Advanced(m.name, step.Index)
		m.log(ctx, slog.LevelDebug, "dialogue.advance", id,
			slog.String("status", "ok"),
			slog.Int("step", next.CurrentStep),
		)
		prompt, _ := m.steps.Get(next.CurrentStep)
		m.send(ctx, id, prompt.Prompt.reply())
		return Result{Outcome: OutcomeAdvanced, Session: next.Clone()}, nil
	}

	next.Completed = true
	// The terminal record makes duplicate deliveries no-ops until it is removed.
	if err := m.save(ctx, id, next); err != nil {
		return Result{}, err
	}
	took := next.UpdatedAt.Sub(next.StartedAt)
	m.observer.Advanced(m.name, step.Index)
	m.observer.Completed(m.name, took)
	m.log(ctx, slog.LevelInfo, "dialogue.complete", id,
		slog.String("status", "ok"),
		slog.Int("count", len(next.Answers)),
		slog.Duration("duration", took),
	)
	if m.complete != nil {
		m.send(ctx, id, m.complete(m.steps, next.Clone().Answers))
	}
	key := m.key(id)
	if err := m.store.Delete(ctx, key); err != nil {
		m.log(ctx, slog.LevelWarn, "dialogue.complete", id,
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
			slog.String("cause", "delete_terminal"),
		)
	}
	return Result{Outcome: OutcomeCompleted, Session: next}, nil
}

// Reprompt rejects input that cannot answer a step, such as a photo or a
// document, and repeats the current prompt after hint. State is unchanged.
func (m *Machine) Reprompt(ctx context.Context, id ConversationID, hint string) (Result, error) {
	s, err := m.load(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if s.Terminal() || m.steps.IsTerminal(s.CurrentStep) {
		return Result{Outcome: OutcomeIgnored, Session: s.Clone()}, nil
	}
	step, _ := m.steps.Get(s.CurrentStep)
	m.observer.Rejected(m.name, step.Index)
	m.log(ctx, slog.LevelInfo, "dialogue.reject", id,
		slog.String("status", "ok"),
		slog.Int("step", step.Index),
		slog.String("cause", "unsupported_input"),
	)
	r := step.Prompt.reply()
	if hint != "" {
		r.Text = hint + "\n\n" + r.Text
	}
	m.send(ctx, id, r)
	return Result{Outcome: OutcomeRejected, Session: s.Clone()}, nil
}

// Back moves to the previous step. The answer recorded for that step is kept
// until it is overwritten by the next Submit.
func (m *Machine) Back(ctx context.Context, id ConversationID) (Result, error) {
	s, err := m.load(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if s.Terminal() || m.steps.IsTerminal(s.CurrentStep) {
		return Result{}, ErrNoActiveDialogue
	}

	if s.CurrentStep == 0 {
		m.log(ctx, slog.LevelDebug, "dialogue.back", id,
			slog.String("status", "skip"),
			slog.String("reason", "at_beginning"),
		)
		m.send(ctx, id, Reply{
			Text:        m.messages.AtBeginning,
			Format:      m.messages.Format,
			ExpireAfter: m.messages.AtBeginningTTL,
		})
		if m.messages.RepromptAtBeginning {
			first, _ := m.steps.Get(0)
			m.send(ctx, id, first.Prompt.reply())
		}
		return Result{Outcome: OutcomeAtBeginning, Session: s.Clone()}, nil
	}

	prev := s.Clone()
	prev.CurrentStep--
	prev.UpdatedAt = m.clock()
	if err := m.save(ctx, id, prev); err != nil {
		return Result{}, err
	}
	m.observer.Retreated(m.name, prev.CurrentStep)
	m.log(ctx, slog.LevelDebug, "dialogue.back", id,
		slog.String("status", "ok"),
		slog.Int("step", prev.CurrentStep),
	)

	if m.backDelay > 0 {
		timer := time.NewTimer(m.backDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Result{Outcome: OutcomeRetreated, Session: prev.Clone()}, nil
		case <-timer.C:
		}
	}
	step, _ := m.steps.Get(prev.CurrentStep)
	m.send(ctx, id, step.Prompt.reply())
	return Result{Outcome: OutcomeRetreated, Session: prev.Clone()}, nil
}

// Cancel aborts the running dialogue and removes its session.
func (m *Machine) Cancel(ctx context.Context, id ConversationID) (Result, error) {
	s, err := m.load(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if s.Terminal() {
		return Result{}, ErrNoActiveDialogue
	}
	final := s.Clone()
	final.Canceled = true
	final.UpdatedAt = m.clock()

	key := m.key(id)
	if err := m.store.Delete(ctx, key); err != nil {
		return Result{}, &StoreError{Op: "delete", Key: key, Err: err}
	}
	m.observer.Canceled(m.name, s.CurrentStep)
	m.log(ctx, slog.LevelInfo, "dialogue.cancel", id,
		slog.String("status", "cancelled"),
		slog.Int("step", s.CurrentStep),
	)
	m.send(ctx, id, Reply{Text: m.messages.Canceled, Format: m.messages.Format})
	return Result{Outcome: OutcomeCanceled, Session: final}, nil
}

// Help sends the navigation instructions. It never changes state.
func (m *Machine) Help(ctx context.Context, id ConversationID) (Result, error) {
	m.send(ctx, id, Reply{Text: m.messages.Help, Format: m.messages.Format})
	return Result{Outcome: OutcomeHelped}, nil
}

// Active reports whether the conversation has a running dialogue.
func (m *Machine) Active(ctx context.Context, id ConversationID) (bool, error) {
	s, err := m.load(ctx, id)
	if errors.Is(err, ErrNoActiveDialogue) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !s.Terminal(), nil
}

// Session returns a copy of the live session.
func (m *Machine) Session(ctx context.Context, id ConversationID) (*Session, error) {
	s, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

func (m *Machine) key(id ConversationID) Key {
	return Key{Scene: m.name, Conversation: id}
}

func (m *Machine) clock() time.Time {
	return m.now().UTC()
}

// load returns the stored session, mapping absence and idle expiry to ErrNoActiveDialogue.
func (m *Machine) load(ctx context.Context, id ConversationID) (*Session, error) {
	key := m.key(id)
	s, err := m.store.Load(ctx, key)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, ErrNoActiveDialogue
	}
	if err != nil {
		return nil, &StoreError{Op: "load", Key: key, Err: err}
	}
	if s.Answers == nil {
		s.Answers = make(map[int]string)
	}
	if m.idleTimeout > 0 && !s.Terminal() && m.clock().Sub(s.UpdatedAt) > m.idleTimeout {
		if err := m.store.Delete(ctx, key); err != nil {
			return nil, &StoreError{Op: "delete", Key: key, Err: err}
		}
		m.observer.Expired(m.name)
		m.log(ctx, slog.LevelInfo, "dialogue.expire", id,
			slog.String("status", "ok"),
			slog.Int("step", s.CurrentStep),
		)
		return nil, ErrNoActiveDialogue
	}
	return s, nil
}

func (m *Machine) save(ctx context.Context, id ConversationID, s *Session) error {
	key := m.key(id)
	if err := m.store.Save(ctx, key, s.Clone()); err != nil {
		m.log(ctx, slog.LevelError, "dialogue.save", id,
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return &StoreError{Op: "save", Key: key, Err: err}
	}
	return nil
}

func (m *Machine) send(ctx context.Context, id ConversationID, r Reply) {
	if strings.TrimSpace(r.Text) == "" {
		return
	}
	if err := m.replier.Reply(logger.WithDialogue(ctx, m.name, string(id)), id, r); err != nil {
		m.log(ctx, slog.LevelWarn, "dialogue.reply", id,
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
}

func (m *Machine) log(ctx context.Context, level slog.Level, event string, id ConversationID, attrs ...slog.Attr) {
	ctx = logger.WithDialogue(ctx, m.name, string(id))
	if m.logger != nil {
		// foreign handlers do not read the context metadata
		attrs = append(attrs, slog.String("scene", m.name), slog.String("conversation", string(id)))
		logger.LogEvent(ctx, m.logger, level, event, attrs...)
		return
	}
	logger.Event(ctx, component, level, event, attrs...)
}
