package domain

// TypingSignal is ephemeral: it has no identity beyond the pair and is
// superseded by the next signal for the same pair. Never persisted.
type TypingSignal struct {
	SenderID    string
	RecipientID string
	Active      bool
}
