package runtime

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"

	"dm-relay/domain"
	"dm-relay/domain/event"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	events chan event.ClientEvent
	closed atomic.Bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan event.ClientEvent, 16)}
}

func (t *fakeTransport) Send(_ context.Context, e event.ClientEvent) error {
	t.events <- e
	return nil
}

func (t *fakeTransport) Close() error {
	t.closed.Store(true)
	return nil
}

func TestRegistry_Register_First_Session(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default(), 8)
	userID := uuid.NewString()
	session := domain.NewSession(userID, newFakeTransport())

	// Given no session exists for the user
	_, ok := registry.Lookup(userID)
	req.False(ok)

	// When the user registers
	prev, superseded := registry.Register(userID, session)

	// Then there is exactly one live session and an online transition
	req.Nil(prev)
	req.False(superseded)
	req.Equal(1, registry.Online())

	found, ok := registry.Lookup(userID)
	req.True(ok)
	req.Equal(session, found)

	tr := <-registry.Transitions()
	req.Equal(userID, tr.UserID)
	req.True(tr.Online)
}

func TestRegistry_Register_Supersedes_Previous_Session(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default(), 8)
	userID := uuid.NewString()
	first := domain.NewSession(userID, newFakeTransport())
	second := domain.NewSession(userID, newFakeTransport())

	// Given a registered session
	registry.Register(userID, first)
	<-registry.Transitions()

	// When the same user registers again
	prev, superseded := registry.Register(userID, second)

	// Then the prior session is handed back for teardown
	req.True(superseded)
	req.Equal(first, prev)

	// And exactly one live entry remains, the newer one
	req.Equal(1, registry.Online())
	found, ok := registry.Lookup(userID)
	req.True(ok)
	req.Equal(second.ID, found.ID)

	// And the user never went offline, so no transition fired
	select {
	case tr := <-registry.Transitions():
		req.Fail("unexpected presence transition", "%+v", tr)
	default:
	}
}

func TestRegistry_Unregister_Stale_Session_Is_Noop(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default(), 8)
	userID := uuid.NewString()
	first := domain.NewSession(userID, newFakeTransport())
	second := domain.NewSession(userID, newFakeTransport())

	// Given a superseded session
	registry.Register(userID, first)
	registry.Register(userID, second)

	// When the stale disconnect arrives late
	cleared := registry.Unregister(userID, first.ID)

	// Then the newer session is untouched
	req.False(cleared)
	found, ok := registry.Lookup(userID)
	req.True(ok)
	req.Equal(second.ID, found.ID)
}

func TestRegistry_Unregister_Current_Session(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default(), 8)
	userID := uuid.NewString()
	session := domain.NewSession(userID, newFakeTransport())

	// Given a registered session
	registry.Register(userID, session)
	<-registry.Transitions()

	// When the session disconnects
	cleared := registry.Unregister(userID, session.ID)

	// Then the registry is empty and an offline transition fired
	req.True(cleared)
	req.Equal(0, registry.Online())

	tr := <-registry.Transitions()
	req.Equal(userID, tr.UserID)
	req.False(tr.Online)
}

func TestRegistry_Unregister_Unknown_User_Is_Noop(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default(), 8)

	req.False(registry.Unregister(uuid.NewString(), uuid.NewString()))
}
