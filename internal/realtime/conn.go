package realtime

import (
	"context"
	"time"
)

// Conn is the subset of *websocket.Conn the hub writes to and reads from.
// Keeping it narrow lets tests substitute an in-memory transport.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Collaborator interfaces. The realtime core never touches the database, the
// token format, or the broker directly; it calls out through these.

// TokenVerifier resolves a bearer token to a user identity. Implemented by
// internal/auth.
type TokenVerifier interface {
	Verify(token string) (uint, error)
}

// ChannelDirectory answers the durable membership/visibility questions owned
// by the relational store. Checked once at join time, not per message.
type ChannelDirectory interface {
	IsMember(ctx context.Context, channelID, userID uint) (bool, error)
	IsPublic(ctx context.Context, channelID uint) (bool, error)
}

// MessageStore persists chat messages and reactions so broadcast payloads
// carry durable ids.
type MessageStore interface {
	SaveMessage(ctx context.Context, channelID, senderID uint, content string) (uint, error)
	AddReaction(ctx context.Context, messageID, userID uint, emoji string) error
	RemoveReaction(ctx context.Context, messageID, userID uint, emoji string) error
}

// PresenceStore mirrors presence transitions into external storage.
// Best-effort: a failing store never blocks or reverts the in-memory state.
type PresenceStore interface {
	SetStatus(ctx context.Context, userID uint, status string, lastSeen time.Time) error
}

// EventSink receives a copy of every successfully broadcast chat envelope for
// offline consumers. Fire-and-forget.
type EventSink interface {
	Publish(ctx context.Context, env *Envelope) error
}
