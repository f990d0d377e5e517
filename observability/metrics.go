// Package observability aggregates runtime counters for the reporter worker.
package observability

import "sync/atomic"

// Metrics holds lock-free counters mutated on the hot routing path.
type Metrics struct {
	SessionsOpened    atomic.Uint64
	SessionsReplaced  atomic.Uint64
	SessionsClosed    atomic.Uint64
	MessagesDelivered atomic.Uint64
	MessagesQueued    atomic.Uint64
	MessagesRejected  atomic.Uint64
	ReadReceipts      atomic.Uint64
	ReactionsRouted   atomic.Uint64
	TypingDropped     atomic.Uint64
	PresenceEvents    atomic.Uint64
}

// Snapshot is a point-in-time copy safe to log or serialize.
type Snapshot struct {
	SessionsOpened    uint64 `json:"sessions_opened"`
	SessionsReplaced  uint64 `json:"sessions_replaced"`
	SessionsClosed    uint64 `json:"sessions_closed"`
	MessagesDelivered uint64 `json:"messages_delivered"`
	MessagesQueued    uint64 `json:"messages_queued"`
	MessagesRejected  uint64 `json:"messages_rejected"`
	ReadReceipts      uint64 `json:"read_receipts"`
	ReactionsRouted   uint64 `json:"reactions_routed"`
	TypingDropped     uint64 `json:"typing_dropped"`
	PresenceEvents    uint64 `json:"presence_events"`
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		SessionsOpened:    m.SessionsOpened.Load(),
		SessionsReplaced:  m.SessionsReplaced.Load(),
		SessionsClosed:    m.SessionsClosed.Load(),
		MessagesDelivered: m.MessagesDelivered.Load(),
		MessagesQueued:    m.MessagesQueued.Load(),
		MessagesRejected:  m.MessagesRejected.Load(),
		ReadReceipts:      m.ReadReceipts.Load(),
		ReactionsRouted:   m.ReactionsRouted.Load(),
		TypingDropped:     m.TypingDropped.Load(),
		PresenceEvents:    m.PresenceEvents.Load(),
	}
}
