package domain

import "time"

// ReactionEvent is idempotent per (MessageID, UserID): a new reaction for
// the same pair replaces the prior emoji rather than accumulating.
type ReactionEvent struct {
	MessageID string
	UserID    string
	Emoji     string
	At        time.Time
}
