// Package runtime holds the connection registry, routing and acknowledgment
// logic. It orchestrates delivery without containing wire or storage code.
package runtime

import (
	"log/slog"
	"sync"
	"time"

	"dm-relay/domain"
)

// PresenceTransition is emitted on every effective registry mutation.
type PresenceTransition struct {
	UserID string
	Online bool
	At     time.Time
}

// Registry is the single piece of shared mutable state in the core.
// It maps a user identifier to at most one live session; establishing a new
// session for an already-registered user supersedes the prior one.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]*domain.Session
	transitions chan PresenceTransition
	log         *slog.Logger
}

func NewRegistry(log *slog.Logger, transitionBuffer int) *Registry {
	return &Registry{
		sessions:    make(map[string]*domain.Session),
		transitions: make(chan PresenceTransition, transitionBuffer),
		log:         log,
	}
}

// Transitions exposes the presence feed consumed by the presence tracker.
func (r *Registry) Transitions() <-chan PresenceTransition {
	return r.transitions
}

// Register installs session as the active one for userID. When a prior
// session exists it is returned with superseded=true so the caller can emit
// a replaced notice before closing its transport. A supersession keeps the
// user online, so no presence transition fires for it.
func (r *Registry) Register(userID string, session *domain.Session) (*domain.Session, bool) {
	r.mu.Lock()
	prev := r.sessions[userID]
	r.sessions[userID] = session
	r.mu.Unlock()

	if prev == nil {
		r.notify(userID, true)
	}
	return prev, prev != nil
}

// Unregister clears the session for userID only if sessionID is still the
// current one. A stale disconnect from a superseded session is a no-op, not
// an error.
func (r *Registry) Unregister(userID, sessionID string) bool {
	r.mu.Lock()
	current, ok := r.sessions[userID]
	if !ok || current.ID != sessionID {
		r.mu.Unlock()
		return false
	}
	delete(r.sessions, userID)
	r.mu.Unlock()

	r.notify(userID, false)
	return true
}

// Lookup is the single source of truth for "is this user reachable now".
// A missing entry is a normal condition, not an error.
func (r *Registry) Lookup(userID string) (*domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[userID]
	return session, ok
}

// Online returns the number of live sessions.
func (r *Registry) Online() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) notify(userID string, online bool) {
	select {
	case r.transitions <- PresenceTransition{UserID: userID, Online: online, At: time.Now().UTC()}:
	default:
		r.log.Warn("Presence transition dropped, tracker is lagging", "user_id", userID)
	}
}
