// Package chatlog provides the append-only per-session conversation log.
package chatlog

import (
	"context"
	"errors"
	"fmt"

	"github.com/opsmind-ai/opsmind/internal/models"
	"github.com/opsmind-ai/opsmind/internal/storage"
)

// ErrInvalidMessage reports a message rejected before it reaches storage:
// empty session key, unknown role, or empty content.
var ErrInvalidMessage = errors.New("invalid message")

// Log records conversation messages per session. Sessions are created
// implicitly on first append and removed entirely by Clear. Appends are
// atomic row inserts, so concurrent appends to one session never lose
// each other.
type Log struct {
	storage storage.Storage
}

// New creates a conversation log over the given storage.
func New(st storage.Storage) *Log {
	return &Log{storage: st}
}

// Append saves a message at the end of the session's history.
func (l *Log) Append(ctx context.Context, sessionKey string, msg *models.Message) error {
	if sessionKey == "" {
		return fmt.Errorf("%w: session key must not be empty", ErrInvalidMessage)
	}
	if !models.ValidRole(msg.Role) {
		return fmt.Errorf("%w: invalid role %q", ErrInvalidMessage, msg.Role)
	}
	if msg.Content == "" {
		return fmt.Errorf("%w: content must not be empty", ErrInvalidMessage)
	}
	return l.storage.AppendMessage(ctx, sessionKey, msg)
}

// History returns the session's messages in append order. A session that was
// never written to yields an empty history, not an error.
func (l *Log) History(ctx context.Context, sessionKey string) ([]*models.Message, error) {
	return l.storage.GetMessages(ctx, sessionKey)
}

// Clear deletes every message of the session.
func (l *Log) Clear(ctx context.Context, sessionKey string) error {
	return l.storage.DeleteMessages(ctx, sessionKey)
}
