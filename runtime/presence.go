package runtime

import (
	"context"
	"log/slog"
	"time"

	"dm-relay/contract"
	"dm-relay/domain/event"
	"dm-relay/observability"
)

type offlineExpiry struct {
	userID string
	gen    uint64
}

// PresenceTracker derives online/offline announcements from registry
// transitions and fans them out to the interested parties supplied by the
// social-graph collaborator.
//
// Rapid disconnect/reconnect cycles inside the grace window are coalesced:
// a reconnect cancels the pending offline and emits nothing at all.
// The tracker is a single goroutine; all state below is unshared.
type PresenceTracker struct {
	log         *slog.Logger
	registry    contract.IRegistry
	graph       contract.SocialGraph
	metrics     *observability.Metrics
	transitions <-chan PresenceTransition
	grace       time.Duration

	expiries chan offlineExpiry
	pending  map[string]uint64
	online   map[string]bool
	gen      uint64
}

func NewPresenceTracker(
	log *slog.Logger,
	registry contract.IRegistry,
	graph contract.SocialGraph,
	metrics *observability.Metrics,
	transitions <-chan PresenceTransition,
	grace time.Duration,
) *PresenceTracker {
	return &PresenceTracker{
		log:         log,
		registry:    registry,
		graph:       graph,
		metrics:     metrics,
		transitions: transitions,
		grace:       grace,
		expiries:    make(chan offlineExpiry, 256),
		pending:     make(map[string]uint64),
		online:      make(map[string]bool),
	}
}

var _ contract.Worker = (*PresenceTracker)(nil)

func (t *PresenceTracker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			t.log.Debug("Stopping presence tracker")
			return ctx.Err()
		case tr, ok := <-t.transitions:
			if !ok {
				return nil
			}
			t.handle(ctx, tr)
		case exp := <-t.expiries:
			t.expire(ctx, exp)
		}
	}
}

func (t *PresenceTracker) handle(ctx context.Context, tr PresenceTransition) {
	if tr.Online {
		if _, ok := t.pending[tr.UserID]; ok {
			// Reconnect inside the grace window: the offline never fired,
			// so the matching online is suppressed too.
			delete(t.pending, tr.UserID)
			return
		}
		if t.online[tr.UserID] {
			return
		}
		t.online[tr.UserID] = true
		t.broadcast(ctx, tr.UserID, true)
		return
	}

	if !t.online[tr.UserID] {
		return
	}
	t.gen++
	gen := t.gen
	t.pending[tr.UserID] = gen
	userID := tr.UserID
	time.AfterFunc(t.grace, func() {
		select {
		case t.expiries <- offlineExpiry{userID: userID, gen: gen}:
		default:
			// Tracker backlog; the registry check on the next transition
			// keeps the state honest.
		}
	})
}

func (t *PresenceTracker) expire(ctx context.Context, exp offlineExpiry) {
	gen, ok := t.pending[exp.userID]
	if !ok || gen != exp.gen {
		return
	}
	delete(t.pending, exp.userID)
	if _, live := t.registry.Lookup(exp.userID); live {
		// A reconnect raced the expiry; still online.
		return
	}
	delete(t.online, exp.userID)
	t.broadcast(ctx, exp.userID, false)
}

func (t *PresenceTracker) broadcast(ctx context.Context, userID string, online bool) {
	parties, err := t.graph.InterestedParties(ctx, userID)
	if err != nil {
		t.log.Warn("Interest set unavailable, skipping presence fan-out",
			"user_id", userID, "error", err)
		return
	}

	evt := event.Presence{UserID: userID, Online: online}
	for _, party := range parties {
		session, ok := t.registry.Lookup(party)
		if !ok {
			continue
		}
		if err := session.Deliver(ctx, evt); err != nil {
			t.log.Debug("Presence delivery failed", "to", party, "error", err)
			continue
		}
		t.metrics.PresenceEvents.Add(1)
	}
}
