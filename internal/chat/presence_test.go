package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shivamdeswal5/weconnect/internal/remote"
	"github.com/shivamdeswal5/weconnect/internal/remote/memstream"

	"github.com/rs/zerolog"
)

func nextStatus(t *testing.T, ch <-chan Status) Status {
	t.Helper()
	select {
	case s, ok := <-ch:
		require.True(t, ok, "status channel closed")
		return s
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for status")
		return StatusOffline
	}
}

func TestTrackerDerivesThreeStates(t *testing.T) {
	cases := []struct {
		name   string
		typing bool
		online bool
		want   Status
	}{
		{"both absent", false, false, StatusOffline},
		{"online only", false, true, StatusOnline},
		{"typing while offline", true, false, StatusTyping},
		{"typing overrides online", true, true, StatusTyping},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stream := memstream.New()
			ctx := context.Background()
			require.NoError(t, stream.Write(ctx, remote.TypingPath(testConv, "bob"), tc.typing))
			require.NoError(t, stream.Write(ctx, remote.OnlinePath("bob"), tc.online))

			ch, cancel, err := NewTracker(stream, zerolog.Nop()).Watch(ctx, testConv, "bob")
			require.NoError(t, err)
			defer cancel()
			require.Equal(t, tc.want, nextStatus(t, ch))
		})
	}
}

func TestTrackerFollowsFlagTransitions(t *testing.T) {
	stream := memstream.New()
	ctx := context.Background()

	ch, cancel, err := NewTracker(stream, zerolog.Nop()).Watch(ctx, testConv, "bob")
	require.NoError(t, err)
	defer cancel()

	require.Equal(t, StatusOffline, nextStatus(t, ch))

	require.NoError(t, stream.Write(ctx, remote.OnlinePath("bob"), true))
	require.Equal(t, StatusOnline, nextStatus(t, ch))

	require.NoError(t, stream.Write(ctx, remote.TypingPath(testConv, "bob"), true))
	require.Equal(t, StatusTyping, nextStatus(t, ch))

	// Connection loss while the typing flag is still raised: typing wins.
	require.NoError(t, stream.Write(ctx, remote.OnlinePath("bob"), false))

	require.NoError(t, stream.Write(ctx, remote.TypingPath(testConv, "bob"), false))
	require.Equal(t, StatusOffline, nextStatus(t, ch))
}

func TestTrackerDeduplicatesEqualStates(t *testing.T) {
	stream := memstream.New()
	ctx := context.Background()

	ch, cancel, err := NewTracker(stream, zerolog.Nop()).Watch(ctx, testConv, "bob")
	require.NoError(t, err)
	defer cancel()

	require.Equal(t, StatusOffline, nextStatus(t, ch))

	// Re-writing the same false flag changes nothing observable.
	require.NoError(t, stream.Write(ctx, remote.TypingPath(testConv, "bob"), false))
	require.NoError(t, stream.Write(ctx, remote.OnlinePath("bob"), false))

	require.NoError(t, stream.Write(ctx, remote.OnlinePath("bob"), true))
	require.Equal(t, StatusOnline, nextStatus(t, ch))
}

func TestTrackerCancelClosesChannel(t *testing.T) {
	stream := memstream.New()
	ctx := context.Background()

	ch, cancel, err := NewTracker(stream, zerolog.Nop()).Watch(ctx, testConv, "bob")
	require.NoError(t, err)
	require.Equal(t, StatusOffline, nextStatus(t, ch))

	cancel()
	cancel() // idempotent

	_, ok := <-ch
	require.False(t, ok)
}

func TestTrackerReflectsDisconnectWrite(t *testing.T) {
	stream := memstream.New()
	ctx := context.Background()

	retract, err := AnnouncePresence(ctx, stream, "bob")
	require.NoError(t, err)
	require.NotNil(t, retract)

	ch, cancel, err := NewTracker(stream, zerolog.Nop()).Watch(ctx, testConv, "bob")
	require.NoError(t, err)
	defer cancel()
	require.Equal(t, StatusOnline, nextStatus(t, ch))

	// Connection drop fires the armed write.
	stream.Disconnect()
	require.Equal(t, StatusOffline, nextStatus(t, ch))
}
