//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"dm-relay/domain"
)

type WorkerName string

// Worker doesn't protect itself.
// Can be silly, focused; the supervisor handles panics and restarts.
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// IRegistry maps a user identifier to its currently active session.
type IRegistry interface {
	Register(userID string, session *domain.Session) (prev *domain.Session, superseded bool)
	Unregister(userID, sessionID string) bool
	Lookup(userID string) (*domain.Session, bool)
	Online() int
}

// AuthVerifier is the external auth collaborator. Verify resolves opaque
// credentials to a user identifier or fails.
type AuthVerifier interface {
	Verify(credentials string) (string, error)
}

// MessageStore is the external durable-storage collaborator. Only calls into
// it may block; all in-memory routing completes without unbounded waiting.
type MessageStore interface {
	StoreMessage(ctx context.Context, msg domain.Message) error
	Enqueue(ctx context.Context, msg domain.Message) error
	FetchUndelivered(ctx context.Context, userID string) ([]domain.Message, error)
	MarkDelivered(ctx context.Context, userID string, messageIDs []string) error
	RecordRead(ctx context.Context, messageID, readerID string) (domain.Message, bool, error)
	SaveReaction(ctx context.Context, reaction domain.ReactionEvent) (domain.Message, error)
	Reactions(ctx context.Context, messageID string) ([]domain.ReactionEvent, error)
}

// SocialGraph supplies the interest set for presence fan-out: the users who
// currently have or have had a conversation with the given user.
type SocialGraph interface {
	InterestedParties(ctx context.Context, userID string) ([]string, error)
}
