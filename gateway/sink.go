package gateway

import (
	"context"
	"sync"

	"dm-relay/domain"
	"dm-relay/domain/event"
	apperrors "dm-relay/errors"
)

// Sink is the channel-backed transport behind one websocket session.
// Send never blocks: the write pump owns the connection, and a full buffer
// is reported as an error so the router can take the queued path.
type Sink struct {
	events chan event.ClientEvent
	closed chan struct{}
	once   sync.Once
}

var _ domain.Transport = (*Sink)(nil)

func NewSink(buffer int) *Sink {
	return &Sink{
		events: make(chan event.ClientEvent, buffer),
		closed: make(chan struct{}),
	}
}

func (s *Sink) Send(ctx context.Context, e event.ClientEvent) error {
	select {
	case <-s.closed:
		return apperrors.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case s.events <- e:
		return nil
	default:
		return apperrors.ErrSlowConsumer
	}
}

func (s *Sink) Close() error {
	s.once.Do(func() {
		close(s.closed)
	})
	return nil
}

// Events is drained by the write pump.
func (s *Sink) Events() <-chan event.ClientEvent { return s.events }

// Done signals the write pump to flush and stop.
func (s *Sink) Done() <-chan struct{} { return s.closed }
