package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shivamdeswal5/weconnect/internal/chat"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(context.Background(), filepath.Join(t.TempDir(), "cache.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestMessageRepositoryUpsertAndRecent(t *testing.T) {
	repo := NewMessageRepository(openTestDB(t))
	ctx := context.Background()

	msgs := []chat.Message{
		{Key: "k3", SenderID: "bob", Text: "three", Timestamp: 3000},
		{Key: "k1", SenderID: "alice", Text: "one", Timestamp: 1000},
		{Key: "k2", SenderID: "bob", Text: "two", Timestamp: 2000},
	}
	require.NoError(t, repo.UpsertBatch(ctx, "alice_bob", msgs))

	recent, err := repo.Recent(ctx, "alice_bob", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "two", recent[0].Text)
	require.Equal(t, "three", recent[1].Text)

	// Re-upserting the same keys changes nothing.
	require.NoError(t, repo.UpsertBatch(ctx, "alice_bob", msgs))
	all, err := repo.All(ctx, "alice_bob")
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, int64(1000), all[0].Timestamp)
}

func TestMessageRepositoryScopesByConversation(t *testing.T) {
	repo := NewMessageRepository(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.UpsertBatch(ctx, "alice_bob", []chat.Message{
		{Key: "k1", SenderID: "alice", Text: "to bob", Timestamp: 1000},
	}))
	require.NoError(t, repo.UpsertBatch(ctx, "alice_carol", []chat.Message{
		{Key: "k1", SenderID: "alice", Text: "to carol", Timestamp: 1000},
	}))

	bob, err := repo.All(ctx, "alice_bob")
	require.NoError(t, err)
	require.Len(t, bob, 1)
	require.Equal(t, "to bob", bob[0].Text)

	require.NoError(t, repo.Prune(ctx, "alice_bob"))
	bob, err = repo.All(ctx, "alice_bob")
	require.NoError(t, err)
	require.Empty(t, bob)

	carol, err := repo.All(ctx, "alice_carol")
	require.NoError(t, err)
	require.Len(t, carol, 1)
}

func TestMessageRepositorySkipsKeylessMessages(t *testing.T) {
	repo := NewMessageRepository(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.UpsertBatch(ctx, "alice_bob", []chat.Message{
		{SenderID: "alice", Text: "unsaved", Timestamp: 1000},
		{Key: "k1", SenderID: "alice", Text: "saved", Timestamp: 2000},
	}))
	all, err := repo.All(ctx, "alice_bob")
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "saved", all[0].Text)
}
