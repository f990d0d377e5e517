package domain

import "time"

// SendMessageCommand is a sender's intent, as decoded by the gateway.
type SendMessageCommand struct {
	TempID      string
	SenderID    string
	RecipientID string
	Body        string
	Type        MessageType
	CreatedAt   time.Time
}

type TypingCommand struct {
	SenderID    string
	RecipientID string
	Active      bool
}

type MarkReadCommand struct {
	MessageID string
	ReaderID  string
}

type ReactionCommand struct {
	MessageID string
	UserID    string
	Emoji     string
}
