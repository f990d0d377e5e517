package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"dm-relay/domain"
	"dm-relay/domain/event"
)

// Envelope is the wire frame in both directions: a logical event name plus
// its payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound payloads. senderId fields sent by clients are ignored; the
// authenticated session identity always wins.

type sendMessagePayload struct {
	TempID      string `json:"tempId" validate:"required,max=128"`
	RecipientID string `json:"recipientId" validate:"required,max=128"`
	Text        string `json:"text"`
	MessageType string `json:"messageType"`
	Timestamp   int64  `json:"timestamp"`
}

type typingPayload struct {
	RecipientID string `json:"recipientId" validate:"required,max=128"`
}

type readPayload struct {
	MessageID string `json:"messageId" validate:"required"`
}

type reactionPayload struct {
	MessageID string `json:"messageId" validate:"required"`
	Emoji     string `json:"emoji" validate:"required,max=16"`
}

// Outbound payloads.

type receiveMessagePayload struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	RecipientID    string `json:"recipientId"`
	Text           string `json:"text"`
	MessageType    string `json:"messageType"`
	Status         string `json:"status"`
	Timestamp      int64  `json:"timestamp"`
}

type messageSentPayload struct {
	TempID    string `json:"tempId"`
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

type messageErrorPayload struct {
	TempID    string `json:"tempId,omitempty"`
	Reason    string `json:"reason"`
	Retryable bool   `json:"retryable"`
}

type userTypingPayload struct {
	SenderID string `json:"senderId"`
	Active   bool   `json:"active"`
}

type readConfirmationPayload struct {
	MessageID string `json:"messageId"`
	ReaderID  string `json:"readerId"`
	ReadAt    int64  `json:"readAt"`
}

type presencePayload struct {
	UserID string `json:"userId"`
}

type reactionAddedPayload struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
	Emoji     string `json:"emoji"`
}

type sessionReplacedPayload struct {
	At int64 `json:"at"`
}

// marshalEvent encodes a client event into its wire envelope.
func marshalEvent(e event.ClientEvent) ([]byte, error) {
	var payload any
	switch evt := e.(type) {
	case event.MessageReceived:
		payload = receiveMessagePayload{
			MessageID:      evt.MessageID,
			ConversationID: evt.ConversationID,
			SenderID:       evt.SenderID,
			RecipientID:    evt.RecipientID,
			Text:           evt.Body,
			MessageType:    evt.Type,
			Status:         evt.Status,
			Timestamp:      evt.CreatedAt.UnixMilli(),
		}
	case event.MessageAck:
		payload = messageSentPayload{TempID: evt.TempID, MessageID: evt.MessageID, Status: evt.Status}
	case event.MessageFailed:
		payload = messageErrorPayload{TempID: evt.TempID, Reason: evt.Reason, Retryable: evt.Retryable}
	case event.Typing:
		payload = userTypingPayload{SenderID: evt.SenderID, Active: evt.Active}
	case event.ReadConfirmed:
		payload = readConfirmationPayload{MessageID: evt.MessageID, ReaderID: evt.ReaderID, ReadAt: evt.ReadAt.UnixMilli()}
	case event.Presence:
		payload = presencePayload{UserID: evt.UserID}
	case event.ReactionAdded:
		payload = reactionAddedPayload{MessageID: evt.MessageID, UserID: evt.UserID, Emoji: evt.Emoji}
	case event.SessionReplaced:
		payload = sessionReplacedPayload{At: evt.At.UnixMilli()}
	default:
		return nil, fmt.Errorf("unsupported event %q", e.EventName())
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: e.EventName(), Data: data})
}

func toMessageReceived(msg domain.Message) event.MessageReceived {
	return event.MessageReceived{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		RecipientID:    msg.RecipientID,
		Body:           msg.Body,
		Type:           string(msg.Type),
		Status:         string(msg.Status),
		CreatedAt:      msg.CreatedAt,
	}
}

func messageTypeOrDefault(raw string) domain.MessageType {
	if raw == "" {
		return domain.TypeText
	}
	return domain.MessageType(raw)
}

func timestampOrNow(millis int64) time.Time {
	if millis <= 0 {
		return time.Now().UTC()
	}
	return time.UnixMilli(millis).UTC()
}
