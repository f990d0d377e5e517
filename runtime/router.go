package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dm-relay/contract"
	"dm-relay/domain"
	"dm-relay/domain/event"
	apperrors "dm-relay/errors"
	"dm-relay/moderation"
	"dm-relay/observability"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// Router validates and forwards chat events between sender and recipient
// sessions. "Delivered" means handed to a live transport, not rendered by
// the peer; true read confirmation is a separate event.
//
// Per-(sender, recipient) ordering holds because Route is invoked from the
// sender's single read loop and delivery goes through the recipient
// session's serialized outbound queue.
type Router struct {
	log       *slog.Logger
	registry  contract.IRegistry
	store     contract.MessageStore
	moderator *moderation.Moderator
	metrics   *observability.Metrics
}

// NewRouter builds a router. moderator may be nil to disable censoring.
func NewRouter(
	log *slog.Logger,
	registry contract.IRegistry,
	store contract.MessageStore,
	moderator *moderation.Moderator,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		log:       log,
		registry:  registry,
		store:     store,
		moderator: moderator,
		metrics:   metrics,
	}
}

// Route resolves the recipient's live session and forwards the message, or
// hands it to the durable store when the recipient is offline. The returned
// message carries the server-assigned identifier and final status.
//
// A transport failure on a resolved session (closed between lookup and
// write) falls back to the queued path instead of surfacing an error.
func (r *Router) Route(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, domain.RouteOutcome, error) {
	if err := r.validateSend(cmd); err != nil {
		r.metrics.MessagesRejected.Add(1)
		return domain.Message{}, domain.OutcomeRejected, err
	}

	body := cmd.Body
	if r.moderator != nil && cmd.Type == domain.TypeText {
		body = r.moderator.Censor(body)
	}

	createdAt := cmd.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	msg := domain.Message{
		ID:             uuid.NewString(),
		TempID:         cmd.TempID,
		ConversationID: domain.ConversationKey(cmd.SenderID, cmd.RecipientID),
		SenderID:       cmd.SenderID,
		RecipientID:    cmd.RecipientID,
		Body:           body,
		Type:           cmd.Type,
		Status:         domain.StatusSent,
		CreatedAt:      createdAt,
	}

	if session, ok := r.registry.Lookup(cmd.RecipientID); ok {
		msg.Status = domain.StatusDelivered
		if err := session.Deliver(ctx, toMessageReceived(msg)); err == nil {
			r.metrics.MessagesDelivered.Add(1)
			if err := r.store.StoreMessage(ctx, msg); err != nil {
				// The recipient already has the message; losing the record
				// only degrades read receipts for it.
				r.log.Error("Failed to persist delivered message",
					"message_id", msg.ID, "error", err)
			}
			return msg, domain.OutcomeDelivered, nil
		}
		r.log.Debug("Live forward failed, falling back to queue",
			"recipient_id", cmd.RecipientID, "message_id", msg.ID)
	}

	msg.Status = domain.StatusQueued
	if err := r.store.Enqueue(ctx, msg); err != nil {
		r.metrics.MessagesRejected.Add(1)
		return msg, domain.OutcomeRejected, fmt.Errorf("queueing message %s: %w", msg.ID, err)
	}
	r.metrics.MessagesQueued.Add(1)
	return msg, domain.OutcomeQueued, nil
}

// RouteTyping forwards a typing signal to the recipient's live session.
// Best effort: silently dropped when the recipient is offline, never queued.
func (r *Router) RouteTyping(ctx context.Context, signal domain.TypingSignal) {
	session, ok := r.registry.Lookup(signal.RecipientID)
	if !ok {
		r.metrics.TypingDropped.Add(1)
		return
	}
	evt := event.Typing{SenderID: signal.SenderID, Active: signal.Active}
	if err := session.Deliver(ctx, evt); err != nil {
		r.metrics.TypingDropped.Add(1)
	}
}

// RouteReaction upserts the reaction and notifies the message's sender when
// live. Idempotent per (messageID, userID): re-reacting replaces the emoji.
func (r *Router) RouteReaction(ctx context.Context, cmd domain.ReactionCommand) error {
	reaction := domain.ReactionEvent{
		MessageID: cmd.MessageID,
		UserID:    cmd.UserID,
		Emoji:     cmd.Emoji,
		At:        time.Now().UTC(),
	}
	msg, err := r.store.SaveReaction(ctx, reaction)
	if err != nil {
		return err
	}
	r.metrics.ReactionsRouted.Add(1)

	target := msg.SenderID
	if target == cmd.UserID {
		target = msg.RecipientID
	}
	if session, ok := r.registry.Lookup(target); ok {
		evt := event.ReactionAdded{
			MessageID: reaction.MessageID,
			UserID:    reaction.UserID,
			Emoji:     reaction.Emoji,
			At:        reaction.At,
		}
		if err := session.Deliver(ctx, evt); err != nil {
			r.log.Debug("Reaction delivery failed", "to", target, "error", err)
		}
	}
	return nil
}

func (r *Router) validateSend(cmd domain.SendMessageCommand) error {
	if err := validate.Var(cmd.SenderID, "required,max=128,excludesall= "); err != nil {
		return apperrors.NewValidation("sender_id", "must be a well-formed identifier")
	}
	if err := validate.Var(cmd.RecipientID, "required,max=128,excludesall= "); err != nil {
		return apperrors.NewValidation("recipient_id", "must be a well-formed identifier")
	}
	if cmd.SenderID == cmd.RecipientID {
		return apperrors.NewValidation("recipient_id", "sender cannot message itself")
	}
	switch cmd.Type {
	case domain.TypeText:
		if cmd.Body == "" {
			return apperrors.NewValidation("body", "text messages need a non-empty body")
		}
	case domain.TypeMedia, domain.TypeSystem:
	default:
		return apperrors.NewValidation("message_type", "unknown message type")
	}
	return nil
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
