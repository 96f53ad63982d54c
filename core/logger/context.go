package logger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type ctxKey int

const ctxMeta ctxKey = iota

// meta is the correlation data carried by a context. It is copied on every
// change so contexts handed to other goroutines never observe updates.
type meta struct {
	rid          string
	updateID     int
	userID       int64
	chatID       int64
	handler      string
	scene        string
	conversation string
}

func metaFrom(ctx context.Context) meta {
	if ctx == nil {
		return meta{}
	}
	m, _ := ctx.Value(ctxMeta).(meta)
	return m
}

func withMeta(ctx context.Context, update func(*meta)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	m := metaFrom(ctx)
	update(&m)
	return context.WithValue(ctx, ctxMeta, m)
}

// fill copies the non-zero metadata into fields without overriding
// attributes the caller set explicitly.
func (m meta) fill(fields map[string]any) {
	set := func(key string, val any, zero bool) {
		if zero {
			return
		}
		if _, ok := fields[key]; !ok {
			fields[key] = val
		}
	}
	set("rid", m.rid, m.rid == "")
	set("update_id", m.updateID, m.updateID == 0)
	set("user_id", m.userID, m.userID == 0)
	set("chat_id", m.chatID, m.chatID == 0)
	set("handler", m.handler, m.handler == "")
	set("scene", m.scene, m.scene == "")
	set("conversation", m.conversation, m.conversation == "")
}

// WithRID attaches the request correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	return withMeta(ctx, func(m *meta) { m.rid = rid })
}

// RIDFrom returns the correlation id set by WithRID.
func RIDFrom(ctx context.Context) string { return metaFrom(ctx).rid }

// WithUpdateMeta attaches the Telegram update, user and chat identifiers.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return withMeta(ctx, func(m *meta) {
		m.updateID, m.userID, m.chatID = updateID, userID, chatID
	})
}

// UpdateIDFrom returns the update id set by WithUpdateMeta.
func UpdateIDFrom(ctx context.Context) int { return metaFrom(ctx).updateID }

// UserIDFrom returns the user id set by WithUpdateMeta.
func UserIDFrom(ctx context.Context) int64 { return metaFrom(ctx).userID }

// ChatIDFrom returns the chat id set by WithUpdateMeta.
func ChatIDFrom(ctx context.Context) int64 { return metaFrom(ctx).chatID }

// WithHandler names the route handling the update.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		return ctx
	}
	return withMeta(ctx, func(m *meta) { m.handler = handler })
}

// WithDialogue tags every following log line with the scene and conversation
// a dialogue operation runs for.
func WithDialogue(ctx context.Context, scene, conversation string) context.Context {
	return withMeta(ctx, func(m *meta) {
		m.scene, m.conversation = scene, conversation
	})
}

// SceneFrom returns the scene set by WithDialogue.
func SceneFrom(ctx context.Context) string { return metaFrom(ctx).scene }

// SanitizeLimit drops control and format runes (keeping tab and newline)
// and truncates the result to max runes.
func SanitizeLimit(s string, max int) string {
	if max <= 0 || s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(min(len(s), max*4))
	n := 0
	for _, r := range s {
		if r != '\n' && r != '\t' && (unicode.IsControl(r) || unicode.Is(unicode.Cf, r)) {
			continue
		}
		if n == max {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// BuildRID returns a correlation id of the form updateID:chatID:userID.
func BuildRID(updateID int, chatID, userID int64) string {
	return fmt.Sprintf("%d:%d:%d", updateID, chatID, userID)
}

// CompactRID re-encodes a BuildRID value as dot separated base36 segments.
// Other input is returned unchanged.
func CompactRID(rid string) string {
	rid = strings.TrimSpace(rid)
	parts := strings.Split(rid, ":")
	if len(parts) != 3 {
		return rid
	}
	for i, part := range parts {
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return rid
		}
		parts[i] = strconv.FormatInt(n, 36)
	}
	return strings.Join(parts, ".")
}
