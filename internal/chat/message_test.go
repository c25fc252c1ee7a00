package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveConversationIDIsOrderIndependent(t *testing.T) {
	ab, err := DeriveConversationID("alice", "bob")
	require.NoError(t, err)
	ba, err := DeriveConversationID("bob", "alice")
	require.NoError(t, err)
	require.Equal(t, ab, ba)
	require.Equal(t, "alice_bob", ab)
}

func TestDeriveConversationIDSelfChat(t *testing.T) {
	id, err := DeriveConversationID("alice", "alice")
	require.NoError(t, err)
	require.Equal(t, "alice_alice", id)

	again, err := DeriveConversationID("alice", "alice")
	require.NoError(t, err)
	require.Equal(t, id, again)
}

func TestDeriveConversationIDRejectsInvalidParticipants(t *testing.T) {
	cases := []struct {
		name string
		a, b string
	}{
		{"empty first", "", "bob"},
		{"empty second", "alice", ""},
		{"whitespace only", "   ", "bob"},
		{"separator in id", "ali_ce", "bob"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DeriveConversationID(tc.a, tc.b)
			require.ErrorIs(t, err, ErrInvalidParticipant)
		})
	}
}
