package runtime

import (
	"context"
	"log/slog"
	"testing"

	"dm-relay/domain"
	"dm-relay/domain/event"
	apperrors "dm-relay/errors"
	"dm-relay/observability"

	"github.com/stretchr/testify/require"
)

func newTestAcknowledger(registry *Registry, store *fakeStore) *Acknowledger {
	return NewAcknowledger(slog.Default(), registry, store, observability.NewMetrics())
}

func TestAcknowledger_Confirms_Outcome_To_Sender(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default(), 8)
	ack := newTestAcknowledger(registry, newFakeStore())

	aliceTransport := newFakeTransport()
	registry.Register("alice", domain.NewSession("alice", aliceTransport))

	msg := domain.Message{ID: "m1", TempID: "t1", SenderID: "alice", RecipientID: "bob"}

	// When the router reports a queued outcome
	ack.Acknowledge(context.Background(), msg, domain.OutcomeQueued)

	// Then alice can reconcile her optimistic copy
	evt := (<-aliceTransport.events).(event.MessageAck)
	req.Equal("t1", evt.TempID)
	req.Equal("m1", evt.MessageID)
	req.Equal("queued", evt.Status)
}

func TestAcknowledger_Ack_To_Offline_Sender_Is_Noop(t *testing.T) {
	registry := NewRegistry(slog.Default(), 8)
	ack := newTestAcknowledger(registry, newFakeStore())

	msg := domain.Message{ID: "m1", TempID: "t1", SenderID: "alice", RecipientID: "bob"}
	// Nothing to assert beyond "does not panic": the sender is gone.
	ack.Acknowledge(context.Background(), msg, domain.OutcomeDelivered)
}

func TestAcknowledger_Rejects_With_Reason(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default(), 8)
	ack := newTestAcknowledger(registry, newFakeStore())

	aliceTransport := newFakeTransport()
	registry.Register("alice", domain.NewSession("alice", aliceTransport))

	ack.Reject(context.Background(), "alice", "t9", "storage unavailable, retry later", true)

	evt := (<-aliceTransport.events).(event.MessageFailed)
	req.Equal("t9", evt.TempID)
	req.True(evt.Retryable)
	req.Contains(evt.Reason, "storage unavailable")
}

func TestAcknowledger_MarkRead_Notifies_Live_Sender_Once(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default(), 8)
	store := newFakeStore()
	ack := newTestAcknowledger(registry, store)

	aliceTransport := newFakeTransport()
	registry.Register("alice", domain.NewSession("alice", aliceTransport))

	msg := domain.Message{ID: "m1", SenderID: "alice", RecipientID: "bob", Status: domain.StatusDelivered}
	req.NoError(store.StoreMessage(context.Background(), msg))

	// When bob reads the message
	cmd := domain.MarkReadCommand{MessageID: "m1", ReaderID: "bob"}
	req.NoError(ack.MarkRead(context.Background(), cmd))

	// Then alice receives the confirmation
	evt := (<-aliceTransport.events).(event.ReadConfirmed)
	req.Equal("m1", evt.MessageID)
	req.Equal("bob", evt.ReaderID)

	// And a second read call is a no-op: read status is terminal
	req.NoError(ack.MarkRead(context.Background(), cmd))
	select {
	case extra := <-aliceTransport.events:
		req.Fail("unexpected second confirmation", "%#v", extra)
	default:
	}
}

func TestAcknowledger_MarkRead_Offline_Sender_Records_Only(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default(), 8)
	store := newFakeStore()
	ack := newTestAcknowledger(registry, store)

	msg := domain.Message{ID: "m1", SenderID: "alice", RecipientID: "bob", Status: domain.StatusDelivered}
	req.NoError(store.StoreMessage(context.Background(), msg))

	// When bob reads while alice is offline
	req.NoError(ack.MarkRead(context.Background(), domain.MarkReadCommand{MessageID: "m1", ReaderID: "bob"}))

	// Then the receipt is recorded for her reconnect
	stored, _, err := store.RecordRead(context.Background(), "m1", "bob")
	req.NoError(err)
	req.Equal(domain.StatusRead, stored.Status)
}

func TestAcknowledger_MarkRead_Unknown_Message(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default(), 8)
	ack := newTestAcknowledger(registry, newFakeStore())

	err := ack.MarkRead(context.Background(), domain.MarkReadCommand{MessageID: "ghost", ReaderID: "bob"})
	req.ErrorIs(err, apperrors.ErrMessageNotFound)
}
