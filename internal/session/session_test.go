package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))

	_, err := store.Current()
	require.ErrorIs(t, err, ErrNoSession)

	sess := Session{UID: "alice", Email: "alice@example.com", DisplayName: "Alice"}
	require.NoError(t, store.Save(sess))

	got, err := store.Current()
	require.NoError(t, err)
	require.Equal(t, sess, got)

	require.NoError(t, store.Clear())
	_, err = store.Current()
	require.ErrorIs(t, err, ErrNoSession)
	require.NoError(t, store.Clear(), "clearing twice is fine")
}

func TestFileStoreRejectsEmptyUID(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	require.Error(t, store.Save(Session{Email: "x@example.com"}))
}
