package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"dm-relay/domain"
	apperrors "dm-relay/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *MessageStore {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewMessageStore(db, slog.Default())
}

func testMessage(sender, recipient, body string, at time.Time) domain.Message {
	return domain.Message{
		ID:             uuid.NewString(),
		ConversationID: domain.ConversationKey(sender, recipient),
		SenderID:       sender,
		RecipientID:    recipient,
		Body:           body,
		Type:           domain.TypeText,
		Status:         domain.StatusQueued,
		CreatedAt:      at,
	}
}

func TestMessageStore_Enqueue_And_Fetch_In_Arrival_Order(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Now().UTC()

	// Given three messages queued for bob over time
	var ids []string
	for i := 0; i < 3; i++ {
		msg := testMessage("alice", "bob", fmt.Sprintf("msg-%d", i), at.Add(time.Duration(i)*time.Minute))
		req.NoError(store.Enqueue(ctx, msg))
		ids = append(ids, msg.ID)
	}

	// When bob's backlog is fetched
	backlog, err := store.FetchUndelivered(ctx, "bob")

	// Then messages come back chronologically
	req.NoError(err)
	req.Len(backlog, 3)
	for i, msg := range backlog {
		req.Equal(fmt.Sprintf("msg-%d", i), msg.Body)
		req.Equal(ids[i], msg.ID)
	}

	// And nobody else sees them
	other, err := store.FetchUndelivered(ctx, "clara")
	req.NoError(err)
	req.Empty(other)
}

func TestMessageStore_MarkDelivered_Drains_The_Queue(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)
	ctx := context.Background()

	msg := testMessage("alice", "bob", "hi", time.Now().UTC())
	req.NoError(store.Enqueue(ctx, msg))

	// When the replay is confirmed
	req.NoError(store.MarkDelivered(ctx, "bob", []string{msg.ID}))

	// Then the queue is empty and the record flipped to delivered
	backlog, err := store.FetchUndelivered(ctx, "bob")
	req.NoError(err)
	req.Empty(backlog)

	stored, first, err := store.RecordRead(ctx, msg.ID, "bob")
	req.NoError(err)
	req.True(first)
	req.Equal(domain.StatusRead, stored.Status)
}

func TestMessageStore_RecordRead_Is_Monotonic(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)
	ctx := context.Background()

	msg := testMessage("alice", "bob", "hi", time.Now().UTC())
	msg.Status = domain.StatusDelivered
	req.NoError(store.StoreMessage(ctx, msg))

	// When bob reads it twice
	first, wasFirst, err := store.RecordRead(ctx, msg.ID, "bob")
	req.NoError(err)
	req.True(wasFirst)
	req.Equal(domain.StatusRead, first.Status)
	req.NotNil(first.ReadAt)

	second, wasFirst, err := store.RecordRead(ctx, msg.ID, "bob")
	req.NoError(err)
	req.False(wasFirst)

	// Then the original read timestamp survives
	req.Equal(first.ReadAt.UnixNano(), second.ReadAt.UnixNano())
}

func TestMessageStore_RecordRead_Rejects_Non_Recipient(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)
	ctx := context.Background()

	msg := testMessage("alice", "bob", "hi", time.Now().UTC())
	req.NoError(store.StoreMessage(ctx, msg))

	_, _, err := store.RecordRead(ctx, msg.ID, "mallory")
	req.True(apperrors.IsValidation(err))
}

func TestMessageStore_RecordRead_Unknown_Message(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)

	_, _, err := store.RecordRead(context.Background(), uuid.NewString(), "bob")
	req.ErrorIs(err, apperrors.ErrMessageNotFound)
}

func TestMessageStore_SaveReaction_Upserts_Per_User(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)
	ctx := context.Background()

	msg := testMessage("alice", "bob", "hi", time.Now().UTC())
	req.NoError(store.StoreMessage(ctx, msg))

	// When bob reacts twice and clara once
	at := time.Now().UTC()
	_, err := store.SaveReaction(ctx, domain.ReactionEvent{MessageID: msg.ID, UserID: "bob", Emoji: "👍", At: at})
	req.NoError(err)
	_, err = store.SaveReaction(ctx, domain.ReactionEvent{MessageID: msg.ID, UserID: "bob", Emoji: "🔥", At: at.Add(time.Second)})
	req.NoError(err)
	returned, err := store.SaveReaction(ctx, domain.ReactionEvent{MessageID: msg.ID, UserID: "clara", Emoji: "👀", At: at})
	req.NoError(err)
	req.Equal("alice", returned.SenderID)

	// Then one reaction per user remains, bob's latest winning
	reactions, err := store.Reactions(ctx, msg.ID)
	req.NoError(err)
	req.Len(reactions, 2)
	byUser := make(map[string]string)
	for _, reaction := range reactions {
		byUser[reaction.UserID] = reaction.Emoji
	}
	req.Equal("🔥", byUser["bob"])
	req.Equal("👀", byUser["clara"])
}

func TestMessageStore_SaveReaction_Unknown_Message(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)

	_, err := store.SaveReaction(context.Background(),
		domain.ReactionEvent{MessageID: uuid.NewString(), UserID: "bob", Emoji: "👍"})
	req.ErrorIs(err, apperrors.ErrMessageNotFound)
}
