//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_store.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dm-relay/domain"
	apperrors "dm-relay/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

// MessageStore is the badger-backed durable-storage collaborator.
//
// Key layout:
//   - "msg:{message_id}" holds the canonical record for every routed message.
//   - "queue:{recipient_id}:{timestamp_padded}:{message_id}" indexes messages
//     awaiting a reconnect. The 19-digit zero padding keeps the prefix scan
//     chronologically sorted; the uuid suffix disambiguates same-nanosecond
//     arrivals.
//   - "react:{message_id}:{user_id}" holds the latest reaction for the pair.
type MessageStore struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageStore(db *badger.DB, log *slog.Logger) *MessageStore {
	return &MessageStore{db: db, log: log}
}

type messageRecord struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	RecipientID    string     `json:"recipient_id"`
	Body           string     `json:"body"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
}

type reactionRecord struct {
	MessageID string    `json:"message_id"`
	UserID    string    `json:"user_id"`
	Emoji     string    `json:"emoji"`
	At        time.Time `json:"at"`
}

func msgKey(messageID string) []byte {
	return []byte("msg:" + messageID)
}

func queuePrefix(recipientID string) []byte {
	return []byte(fmt.Sprintf("queue:%s:", recipientID))
}

func queueKey(msg domain.Message) []byte {
	return []byte(fmt.Sprintf("queue:%s:%019d:%s", msg.RecipientID, msg.CreatedAt.UnixNano(), msg.ID))
}

func reactKey(messageID, userID string) []byte {
	return []byte(fmt.Sprintf("react:%s:%s", messageID, userID))
}

func reactPrefix(messageID string) []byte {
	return []byte(fmt.Sprintf("react:%s:", messageID))
}

// StoreMessage persists the canonical record for a routed message.
func (s *MessageStore) StoreMessage(_ context.Context, msg domain.Message) error {
	value, err := json.Marshal(fromDomain(msg))
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(msgKey(msg.ID), value)
	})
}

// Enqueue records a message the recipient could not receive live, for
// retrieval on their next connect.
func (s *MessageStore) Enqueue(_ context.Context, msg domain.Message) error {
	value, err := json.Marshal(fromDomain(msg))
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(msgKey(msg.ID), value); err != nil {
			return err
		}
		return txn.Set(queueKey(msg), value)
	})
}

// FetchUndelivered returns the queued messages for userID in arrival order.
// Entries stay queued until MarkDelivered confirms the replay reached the
// new session.
func (s *MessageStore) FetchUndelivered(_ context.Context, userID string) ([]domain.Message, error) {
	var records []messageRecord
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := queuePrefix(userID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var record messageRecord
				if err := json.Unmarshal(value, &record); err != nil {
					return err
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(records, func(record messageRecord, _ int) domain.Message {
		return toDomain(record)
	}), nil
}

// MarkDelivered drops the queue entries for the given messages and flips
// their canonical records to delivered. Unknown ids are ignored.
func (s *MessageStore) MarkDelivered(_ context.Context, userID string, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	wanted := lo.SliceToMap(messageIDs, func(id string) (string, struct{}) {
		return id, struct{}{}
	})
	return s.db.Update(func(txn *badger.Txn) error {
		prefix := queuePrefix(userID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		var stale [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			// The message id is the fixed-width suffix after the timestamp.
			id := string(key[len(prefix)+20:])
			if _, ok := wanted[id]; ok {
				stale = append(stale, key)
			}
		}
		it.Close()

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		for id := range wanted {
			err := updateRecord(txn, id, func(record *messageRecord) error {
				if record.Status == string(domain.StatusQueued) {
					record.Status = string(domain.StatusDelivered)
				}
				return nil
			})
			if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return nil
	})
}

// RecordRead transitions a message to read. Monotonic: the first call wins
// and later calls report first=false without touching the record. Only the
// recipient may mark its message read.
func (s *MessageStore) RecordRead(_ context.Context, messageID, readerID string) (domain.Message, bool, error) {
	var record messageRecord
	var first bool
	err := s.db.Update(func(txn *badger.Txn) error {
		return updateRecord(txn, messageID, func(r *messageRecord) error {
			if r.RecipientID != readerID {
				return apperrors.NewValidation("reader_id", "only the recipient can mark a message read")
			}
			if r.Status == string(domain.StatusRead) {
				record = *r
				return nil
			}
			now := time.Now().UTC()
			r.Status = string(domain.StatusRead)
			r.ReadAt = &now
			record = *r
			first = true
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Message{}, false, apperrors.ErrMessageNotFound
	}
	if err != nil {
		return domain.Message{}, false, err
	}
	return toDomain(record), first, nil
}

// SaveReaction upserts the reaction for (messageID, userID), replacing any
// prior emoji, and returns the reacted-to message.
func (s *MessageStore) SaveReaction(_ context.Context, reaction domain.ReactionEvent) (domain.Message, error) {
	var record messageRecord
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(msgKey(reaction.MessageID))
		if err != nil {
			return err
		}
		if err := item.Value(func(value []byte) error {
			return json.Unmarshal(value, &record)
		}); err != nil {
			return err
		}
		value, err := json.Marshal(reactionRecord{
			MessageID: reaction.MessageID,
			UserID:    reaction.UserID,
			Emoji:     reaction.Emoji,
			At:        reaction.At,
		})
		if err != nil {
			return err
		}
		return txn.Set(reactKey(reaction.MessageID, reaction.UserID), value)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Message{}, apperrors.ErrMessageNotFound
	}
	if err != nil {
		return domain.Message{}, err
	}
	return toDomain(record), nil
}

// Reactions lists the current reactions on a message, one per user.
func (s *MessageStore) Reactions(_ context.Context, messageID string) ([]domain.ReactionEvent, error) {
	var records []reactionRecord
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := reactPrefix(messageID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var record reactionRecord
				if err := json.Unmarshal(value, &record); err != nil {
					return err
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(records, func(record reactionRecord, _ int) domain.ReactionEvent {
		return domain.ReactionEvent{
			MessageID: record.MessageID,
			UserID:    record.UserID,
			Emoji:     record.Emoji,
			At:        record.At,
		}
	}), nil
}

func updateRecord(txn *badger.Txn, messageID string, mutate func(*messageRecord) error) error {
	item, err := txn.Get(msgKey(messageID))
	if err != nil {
		return err
	}
	var record messageRecord
	if err := item.Value(func(value []byte) error {
		return json.Unmarshal(value, &record)
	}); err != nil {
		return err
	}
	if err := mutate(&record); err != nil {
		return err
	}
	value, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return txn.Set(msgKey(messageID), value)
}

func fromDomain(msg domain.Message) messageRecord {
	return messageRecord{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		RecipientID:    msg.RecipientID,
		Body:           msg.Body,
		Type:           string(msg.Type),
		Status:         string(msg.Status),
		CreatedAt:      msg.CreatedAt,
		ReadAt:         msg.ReadAt,
	}
}

func toDomain(record messageRecord) domain.Message {
	return domain.Message{
		ID:             record.ID,
		ConversationID: record.ConversationID,
		SenderID:       record.SenderID,
		RecipientID:    record.RecipientID,
		Body:           record.Body,
		Type:           domain.MessageType(record.Type),
		Status:         domain.DeliveryStatus(record.Status),
		CreatedAt:      record.CreatedAt,
		ReadAt:         record.ReadAt,
	}
}
