// Package event defines the events pushed to connected clients.
// Events are wire-agnostic; the gateway decides the encoding.
package event

import "time"

// ClientEvent is anything deliverable to a live session.
// EventName is the logical name used on the wire.
type ClientEvent interface {
	EventName() string
}

// MessageReceived carries a chat message to its recipient.
type MessageReceived struct {
	MessageID      string
	ConversationID string
	SenderID       string
	RecipientID    string
	Body           string
	Type           string
	Status         string
	CreatedAt      time.Time
}

func (MessageReceived) EventName() string { return "receive_message" }

// MessageAck confirms to the sender that its message was delivered or queued.
// TempID echoes the client-supplied identifier so the client can reconcile
// its optimistic local copy with server truth.
type MessageAck struct {
	TempID    string
	MessageID string
	Status    string
}

func (MessageAck) EventName() string { return "message_sent" }

// MessageFailed rejects a message back to its sender.
type MessageFailed struct {
	TempID    string
	Reason    string
	Retryable bool
}

func (MessageFailed) EventName() string { return "message_error" }

type Typing struct {
	SenderID string
	Active   bool
}

func (Typing) EventName() string { return "user_typing" }

// ReadConfirmed notifies the original sender that its message was read.
type ReadConfirmed struct {
	MessageID string
	ReaderID  string
	ReadAt    time.Time
}

func (ReadConfirmed) EventName() string { return "message_read_confirmation" }

// Presence announces a user going online or offline.
type Presence struct {
	UserID string
	Online bool
}

func (p Presence) EventName() string {
	if p.Online {
		return "user_online"
	}
	return "user_offline"
}

// SessionReplaced tells an old transport that a newer connection for the
// same user superseded it. The transport is closed right after.
type SessionReplaced struct {
	At time.Time
}

func (SessionReplaced) EventName() string { return "session_replaced" }

type ReactionAdded struct {
	MessageID string
	UserID    string
	Emoji     string
	At        time.Time
}

func (ReactionAdded) EventName() string { return "message_reaction" }
