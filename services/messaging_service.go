//go:generate go run go.uber.org/mock/mockgen -source=messaging_service.go -destination=../mocks/mock_messaging_service.go -package=mocks
package services

import (
	"context"
	"log/slog"

	"dm-relay/domain"
	apperrors "dm-relay/errors"
	"dm-relay/runtime"
)

// IMessagingService is the application surface the gateway talks to.
// Send never returns an error: every failure is translated into a
// client-visible event on the originating session.
type IMessagingService interface {
	Send(ctx context.Context, cmd domain.SendMessageCommand)
	Typing(ctx context.Context, cmd domain.TypingCommand)
	MarkRead(ctx context.Context, cmd domain.MarkReadCommand) error
	React(ctx context.Context, cmd domain.ReactionCommand) error
}

// InterestRecorder lets the static social-graph fallback learn interest
// pairs from routed traffic. The HTTP-backed graph ignores this.
type InterestRecorder interface {
	AddInterest(a, b string)
}

type MessagingService struct {
	log      *slog.Logger
	router   *runtime.Router
	ack      *runtime.Acknowledger
	recorder InterestRecorder
}

var _ IMessagingService = (*MessagingService)(nil)

// NewMessagingService builds the facade. recorder may be nil when the
// interest set is served by the CRUD backend.
func NewMessagingService(
	log *slog.Logger,
	router *runtime.Router,
	ack *runtime.Acknowledger,
	recorder InterestRecorder,
) *MessagingService {
	return &MessagingService{log: log, router: router, ack: ack, recorder: recorder}
}

func (s *MessagingService) Send(ctx context.Context, cmd domain.SendMessageCommand) {
	msg, outcome, err := s.router.Route(ctx, cmd)
	switch {
	case err == nil:
		if s.recorder != nil {
			s.recorder.AddInterest(cmd.SenderID, cmd.RecipientID)
		}
		s.ack.Acknowledge(ctx, msg, outcome)
	case apperrors.IsValidation(err):
		s.ack.Reject(ctx, cmd.SenderID, cmd.TempID, err.Error(), false)
	default:
		// Queueing failed; the message was not silently dropped, the client
		// may resubmit.
		s.log.Error("Message persistence failed", "temp_id", cmd.TempID, "error", err)
		s.ack.Reject(ctx, cmd.SenderID, cmd.TempID, "storage unavailable, retry later", true)
	}
}

func (s *MessagingService) Typing(ctx context.Context, cmd domain.TypingCommand) {
	s.router.RouteTyping(ctx, domain.TypingSignal{
		SenderID:    cmd.SenderID,
		RecipientID: cmd.RecipientID,
		Active:      cmd.Active,
	})
}

func (s *MessagingService) MarkRead(ctx context.Context, cmd domain.MarkReadCommand) error {
	return s.ack.MarkRead(ctx, cmd)
}

func (s *MessagingService) React(ctx context.Context, cmd domain.ReactionCommand) error {
	return s.router.RouteReaction(ctx, cmd)
}
