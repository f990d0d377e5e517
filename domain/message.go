// Package domain contains core concepts of the messaging core.
// This file defines Message and its delivery lifecycle.
package domain

import (
	"strings"
	"time"
)

type MessageType string

const (
	TypeText   MessageType = "text"
	TypeMedia  MessageType = "media"
	TypeSystem MessageType = "system"
)

type DeliveryStatus string

const (
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusQueued    DeliveryStatus = "queued"
	StatusRead      DeliveryStatus = "read"
	StatusFailed    DeliveryStatus = "failed"
)

// Message represents one chat unit in flight. TempID is the client-supplied
// correlation identifier and is never persisted; ID is assigned by the router.
type Message struct {
	ID             string
	TempID         string
	ConversationID string
	SenderID       string
	RecipientID    string
	Body           string
	Type           MessageType
	Status         DeliveryStatus
	CreatedAt      time.Time
	ReadAt         *time.Time
}

// RouteOutcome is the router's verdict for one message.
type RouteOutcome string

const (
	OutcomeDelivered RouteOutcome = "delivered"
	OutcomeQueued    RouteOutcome = "queued"
	OutcomeRejected  RouteOutcome = "rejected"
)

// ConversationKey derives the deterministic conversation identifier for an
// unordered pair of participants. Both orders yield the same key.
func ConversationKey(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + ":" + b
}
