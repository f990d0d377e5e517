package domain

import (
	"context"
	"sync"
	"time"

	"dm-relay/domain/event"

	"github.com/google/uuid"
)

// Transport is the write side of one live connection. The core never reads
// from it; implementations must be safe for concurrent use.
type Transport interface {
	Send(ctx context.Context, e event.ClientEvent) error
	Close() error
}

// Session is one live, authenticated connection for a user.
// A user holds at most one Session at a time; the registry enforces it.
type Session struct {
	ID          string
	UserID      string
	ConnectedAt time.Time

	transport Transport
	closeOnce sync.Once
}

func NewSession(userID string, transport Transport) *Session {
	return &Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		ConnectedAt: time.Now().UTC(),
		transport:   transport,
	}
}

// Deliver hands an event to the session's transport. An error means the
// transport is gone or saturated; callers decide the fallback.
func (s *Session) Deliver(ctx context.Context, e event.ClientEvent) error {
	return s.transport.Send(ctx, e)
}

// Close tears the transport down. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		_ = s.transport.Close()
	})
}
