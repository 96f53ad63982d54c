package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/scenebot/core/dialogue"
	tg "github.com/m3rciful/scenebot/core/telegram"
	"github.com/m3rciful/scenebot/core/telegram/commands"
	"github.com/m3rciful/scenebot/core/telegram/format"
	tghelpers "github.com/m3rciful/scenebot/core/telegram/helpers"
)

// ErrNotListable is returned for stores that do not implement dialogue.Lister.
var ErrNotListable = errors.New("bot: session store cannot list sessions")

// SessionInfo summarises one stored session.
type SessionInfo struct {
	Key       dialogue.Key
	Step      int
	Answers   int
	UpdatedAt time.Time
}

// ListSessions loads every listed session, most recently updated first.
// Keys that vanish between List and Load are skipped.
func ListSessions(ctx context.Context, store dialogue.Store) ([]SessionInfo, error) {
	lister, ok := store.(dialogue.Lister)
	if !ok {
		return nil, ErrNotListable
	}
	keys, err := lister.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]SessionInfo, 0, len(keys))
	for _, k := range keys {
		s, err := store.Load(ctx, k)
		if errors.Is(err, dialogue.ErrSessionNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, SessionInfo{
			Key:       k,
			Step:      s.CurrentStep,
			Answers:   len(s.Answers),
			UpdatedAt: s.UpdatedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

const sessionsShown = 20

// sessionsReport renders the admin view of running dialogues as HTML.
func sessionsReport(infos []SessionInfo, now time.Time) string {
	if len(infos) == 0 {
		return "No active sessions."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Active sessions:</b> %d\n", len(infos))
	for i, info := range infos {
		if i == sessionsShown {
			fmt.Fprintf(&b, "… and %d more", len(infos)-sessionsShown)
			break
		}
		idle := now.Sub(info.UpdatedAt).Truncate(time.Second)
		fmt.Fprintf(&b, "\n%s step %d, idle %s", format.Code(info.Key.String()), info.Step, idle)
	}
	return b.String()
}

func registerAdmin(reg *tg.Registry, store dialogue.Store) error {
	return reg.RegisterCommand("/sessions", commands.Command{
		Description: "List running dialogues",
		AdminOnly:   true,
		Hidden:      true,
		Handler: func(c tele.Context) error {
			infos, err := ListSessions(tghelpers.BuildContext(c), store)
			if errors.Is(err, ErrNotListable) {
				return tghelpers.SendText(c, "This session store cannot list sessions.")
			}
			if err != nil {
				return err
			}
			return tghelpers.SendHTML(c, sessionsReport(infos, time.Now()))
		},
	})
}

type idlePurger interface {
	PurgeIdle(ctx context.Context, cutoff time.Time) (int64, error)
}

// PurgeSessions deletes sessions not updated since cutoff. Stores with a
// native bulk delete use it; others are scanned through ListSessions.
func PurgeSessions(ctx context.Context, store dialogue.Store, cutoff time.Time) (int, error) {
	if p, ok := store.(idlePurger); ok {
		n, err := p.PurgeIdle(ctx, cutoff)
		return int(n), err
	}
	infos, err := ListSessions(ctx, store)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, info := range infos {
		if !info.UpdatedAt.Before(cutoff) {
			continue
		}
		if err := store.Delete(ctx, info.Key); err != nil && !errors.Is(err, dialogue.ErrSessionNotFound) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
