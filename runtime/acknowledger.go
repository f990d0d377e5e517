package runtime

import (
	"context"
	"log/slog"
	"time"

	"dm-relay/contract"
	"dm-relay/domain"
	"dm-relay/domain/event"
	"dm-relay/observability"
)

// Acknowledger closes the loop back to the originating session: delivery
// acknowledgments, rejections, and read confirmations.
type Acknowledger struct {
	log      *slog.Logger
	registry contract.IRegistry
	store    contract.MessageStore
	metrics  *observability.Metrics
}

func NewAcknowledger(
	log *slog.Logger,
	registry contract.IRegistry,
	store contract.MessageStore,
	metrics *observability.Metrics,
) *Acknowledger {
	return &Acknowledger{log: log, registry: registry, store: store, metrics: metrics}
}

// Acknowledge reports the route outcome to the sender so its client can
// reconcile the optimistic local message with server truth. A sender that
// disconnected right after sending simply misses the ack.
func (a *Acknowledger) Acknowledge(ctx context.Context, msg domain.Message, outcome domain.RouteOutcome) {
	session, ok := a.registry.Lookup(msg.SenderID)
	if !ok {
		return
	}
	evt := event.MessageAck{TempID: msg.TempID, MessageID: msg.ID, Status: string(outcome)}
	if err := session.Deliver(ctx, evt); err != nil {
		a.log.Debug("Ack delivery failed", "sender_id", msg.SenderID, "error", err)
	}
}

// Reject surfaces a validation or persistence failure as a message_error
// event. Retryable marks persistence failures the client may resubmit.
func (a *Acknowledger) Reject(ctx context.Context, senderID, tempID, reason string, retryable bool) {
	session, ok := a.registry.Lookup(senderID)
	if !ok {
		return
	}
	evt := event.MessageFailed{TempID: tempID, Reason: reason, Retryable: retryable}
	if err := session.Deliver(ctx, evt); err != nil {
		a.log.Debug("Rejection delivery failed", "sender_id", senderID, "error", err)
	}
}

// MarkRead transitions a message to read. The transition is monotonic and
// terminal: a second call for the same message is a no-op. When the original
// sender has a live session it receives a read confirmation; otherwise the
// stored receipt is all there is until they reconnect.
func (a *Acknowledger) MarkRead(ctx context.Context, cmd domain.MarkReadCommand) error {
	msg, first, err := a.store.RecordRead(ctx, cmd.MessageID, cmd.ReaderID)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}
	a.metrics.ReadReceipts.Add(1)

	session, ok := a.registry.Lookup(msg.SenderID)
	if !ok {
		return nil
	}
	readAt := time.Now().UTC()
	if msg.ReadAt != nil {
		readAt = *msg.ReadAt
	}
	evt := event.ReadConfirmed{MessageID: cmd.MessageID, ReaderID: cmd.ReaderID, ReadAt: readAt}
	if err := session.Deliver(ctx, evt); err != nil {
		a.log.Debug("Read confirmation delivery failed", "sender_id", msg.SenderID, "error", err)
	}
	return nil
}
