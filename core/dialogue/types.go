package dialogue

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ConversationID identifies one user inside one chat, encoded as "<chatID>:<userID>".
type ConversationID string

// NewConversationID builds the composite identifier for a chat/user pair.
func NewConversationID(chatID, userID int64) ConversationID {
	return ConversationID(strconv.FormatInt(chatID, 10) + ":" + strconv.FormatInt(userID, 10))
}

// Chat returns the chat part of the identifier.
func (id ConversationID) Chat() (int64, error) {
	chat, _, err := id.split()
	return chat, err
}

// User returns the user part of the identifier.
func (id ConversationID) User() (int64, error) {
	_, user, err := id.split()
	return user, err
}

func (id ConversationID) split() (int64, int64, error) {
	parts := strings.SplitN(string(id), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("dialogue: malformed conversation id %q", string(id))
	}
	chat, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("dialogue: malformed chat in %q: %w", string(id), err)
	}
	user, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("dialogue: malformed user in %q: %w", string(id), err)
	}
	return chat, user, nil
}

// Key addresses one session in a Store.
type Key struct {
	Scene        string
	Conversation ConversationID
}

// String renders the key as "<scene>:<conversation>".
func (k Key) String() string {
	return k.Scene + ":" + string(k.Conversation)
}

// ParseKey is the inverse of Key.String.
func ParseKey(raw string) (Key, error) {
	scene, conv, ok := strings.Cut(raw, ":")
	if !ok || scene == "" || conv == "" {
		return Key{}, fmt.Errorf("dialogue: malformed session key %q", raw)
	}
	return Key{Scene: scene, Conversation: ConversationID(conv)}, nil
}

// Session is the per-conversation record owned by a Machine for the lifetime of one run.
type Session struct {
	Scene       string         `json:"scene"`
	CurrentStep int            `json:"current_step"`
	Answers     map[int]string `json:"answers"`
	Canceled    bool           `json:"canceled"`
	Completed   bool           `json:"completed"`
	StartedAt   time.Time      `json:"started_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NewSession returns a fresh session positioned at the first step.
func NewSession(scene string, now time.Time) *Session {
	return &Session{
		Scene:     scene,
		Answers:   make(map[int]string),
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Answers = make(map[int]string, len(s.Answers))
	for k, v := range s.Answers {
		out.Answers[k] = v
	}
	return &out
}

// Terminal reports whether the session was completed or canceled.
func (s *Session) Terminal() bool {
	return s.Canceled || s.Completed
}

// Answer returns the value recorded for the step, if any.
func (s *Session) Answer(step int) (string, bool) {
	v, ok := s.Answers[step]
	return v, ok
}

// Format selects how a reply's text is interpreted by the channel.
type Format int

const (
	FormatPlain Format = iota
	FormatHTML
	FormatMarkdown
)

// Keyboard is a platform-neutral reply keyboard.
type Keyboard struct {
	Rows        [][]string
	Resize      bool
	OneTime     bool
	Placeholder string
	// Remove hides any keyboard currently shown to the user.
	Remove bool
}

// RemoveKeyboard returns a keyboard that clears the previous one.
func RemoveKeyboard() *Keyboard {
	return &Keyboard{Remove: true}
}

// Prompt is what a step sends to ask its question.
type Prompt struct {
	Text     string
	Format   Format
	Keyboard *Keyboard
}

// Reply is a single outbound message.
type Reply struct {
	Text     string
	Format   Format
	Keyboard *Keyboard
	// ExpireAfter asks the channel to delete the message after the given delay.
	ExpireAfter time.Duration
}

func (p Prompt) reply() Reply {
	return Reply{Text: p.Text, Format: p.Format, Keyboard: p.Keyboard}
}

// Outcome names the transition an operation applied.
type Outcome string

const (
	OutcomeEntered     Outcome = "entered"
	OutcomeAdvanced    Outcome = "advanced"
	OutcomeRejected    Outcome = "rejected"
	OutcomeCompleted   Outcome = "completed"
	OutcomeIgnored     Outcome = "ignored"
	OutcomeRetreated   Outcome = "retreated"
	OutcomeAtBeginning Outcome = "at_beginning"
	OutcomeCanceled    Outcome = "canceled"
	OutcomeHelped      Outcome = "helped"
)

// Result describes what an operation did. Session is a snapshot taken after the operation;
// it is nil when no session was involved (Help without an active dialogue).
type Result struct {
	Outcome Outcome
	Session *Session
}
