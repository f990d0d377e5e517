package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConversationKey_Is_Symmetric(t *testing.T) {
	req := require.New(t)

	req.Equal(ConversationKey("alice", "bob"), ConversationKey("bob", "alice"))
	req.Equal("alice:bob", ConversationKey("bob", "alice"))
}

func TestConversationKey_Distinguishes_Pairs(t *testing.T) {
	req := require.New(t)

	req.NotEqual(ConversationKey("alice", "bob"), ConversationKey("alice", "clara"))
}
