package runtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"dm-relay/domain"
	"dm-relay/domain/event"
	"dm-relay/observability"

	"github.com/stretchr/testify/require"
)

type fakeGraph struct {
	interested map[string][]string
}

func (g fakeGraph) InterestedParties(_ context.Context, userID string) ([]string, error) {
	return g.interested[userID], nil
}

func startTracker(t *testing.T, registry *Registry, graph fakeGraph, grace time.Duration) {
	t.Helper()
	tracker := NewPresenceTracker(slog.Default(), registry, graph, observability.NewMetrics(),
		registry.Transitions(), grace)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = tracker.Run(ctx) }()
}

func waitForPresence(t *testing.T, transport *fakeTransport, userID string, online bool) {
	t.Helper()
	req := require.New(t)
	select {
	case e := <-transport.events:
		presence, ok := e.(event.Presence)
		req.True(ok, "expected a presence event, got %T", e)
		req.Equal(userID, presence.UserID)
		req.Equal(online, presence.Online)
	case <-time.After(2 * time.Second):
		req.Fail("no presence event arrived in time")
	}
}

func requireSilence(t *testing.T, transport *fakeTransport, d time.Duration) {
	t.Helper()
	select {
	case e := <-transport.events:
		require.Failf(t, "unexpected event", "%#v", e)
	case <-time.After(d):
	}
}

func TestPresenceTracker_Broadcasts_Online_To_Interested_Parties(t *testing.T) {
	registry := NewRegistry(slog.Default(), 8)
	watcherTransport := newFakeTransport()
	watcher := domain.NewSession("bob", watcherTransport)
	registry.Register("bob", watcher)
	// Drain bob's own transition before the tracker starts
	<-registry.Transitions()

	startTracker(t, registry, fakeGraph{interested: map[string][]string{"alice": {"bob"}}}, 20*time.Millisecond)

	// When alice connects
	registry.Register("alice", domain.NewSession("alice", newFakeTransport()))

	// Then bob learns she is online
	waitForPresence(t, watcherTransport, "alice", true)
}

func TestPresenceTracker_Offline_Fires_Once_After_Grace(t *testing.T) {
	registry := NewRegistry(slog.Default(), 8)
	watcherTransport := newFakeTransport()
	registry.Register("bob", domain.NewSession("bob", watcherTransport))
	<-registry.Transitions()

	startTracker(t, registry, fakeGraph{interested: map[string][]string{"alice": {"bob"}}}, 20*time.Millisecond)

	alice := domain.NewSession("alice", newFakeTransport())
	registry.Register("alice", alice)
	waitForPresence(t, watcherTransport, "alice", true)

	// When alice's only session closes
	registry.Unregister("alice", alice.ID)

	// Then bob gets exactly one offline event
	waitForPresence(t, watcherTransport, "alice", false)
	requireSilence(t, watcherTransport, 100*time.Millisecond)
}

func TestPresenceTracker_Reconnect_Inside_Grace_Emits_Nothing(t *testing.T) {
	registry := NewRegistry(slog.Default(), 8)
	watcherTransport := newFakeTransport()
	registry.Register("bob", domain.NewSession("bob", watcherTransport))
	<-registry.Transitions()

	startTracker(t, registry, fakeGraph{interested: map[string][]string{"alice": {"bob"}}}, 150*time.Millisecond)

	alice := domain.NewSession("alice", newFakeTransport())
	registry.Register("alice", alice)
	waitForPresence(t, watcherTransport, "alice", true)

	// When alice drops and reconnects inside the grace window
	registry.Unregister("alice", alice.ID)
	time.Sleep(30 * time.Millisecond)
	registry.Register("alice", domain.NewSession("alice", newFakeTransport()))

	// Then the flap is coalesced: no offline, no duplicate online
	requireSilence(t, watcherTransport, 400*time.Millisecond)
}
