package contacts

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/shivamdeswal5/weconnect/internal/chat"
	"github.com/shivamdeswal5/weconnect/internal/remote/memstream"
)

func seedDirectory(t *testing.T, stream *memstream.Stream, users ...User) {
	t.Helper()
	d := NewDirectory(stream, "nobody", zerolog.Nop())
	for _, u := range users {
		require.NoError(t, d.Register(context.Background(), u))
	}
}

func TestPageExcludesSelfAndSortsByActivity(t *testing.T) {
	stream := memstream.New()
	ctx := context.Background()
	seedDirectory(t, stream,
		User{UID: "alice", Email: "alice@example.com", DisplayName: "Alice"},
		User{UID: "bob", Email: "bob@example.com", DisplayName: "Bob"},
		User{UID: "carol", Email: "carol@example.com", DisplayName: "Carol"},
	)

	// Carol has the most recent conversation with alice.
	counter := chat.NewCounter(stream)
	sendAt := func(peer string, ts int64) {
		s := chat.NewSender(stream, counter, "alice", chat.WithSenderClock(func() int64 { return ts }))
		_, err := s.Send(ctx, peer, "hi "+peer)
		require.NoError(t, err)
	}
	sendAt("bob", 1000)
	sendAt("carol", 2000)

	d := NewDirectory(stream, "alice", zerolog.Nop())
	page, next, err := d.Page(ctx, "", 10, "")
	require.NoError(t, err)
	require.Empty(t, next)
	require.Len(t, page, 2)
	require.Equal(t, "carol", page[0].UID)
	require.Equal(t, "bob", page[1].UID)
	require.Equal(t, "hi carol", page[0].LastMessage)
	require.Equal(t, int64(2000), page[0].LastMessageTime)
}

func TestPageDecoratesUnreadAndOnline(t *testing.T) {
	stream := memstream.New()
	ctx := context.Background()
	seedDirectory(t, stream, User{UID: "bob", Email: "bob@example.com"})

	// Bob sends twice while alice is away, then comes online.
	counter := chat.NewCounter(stream)
	s := chat.NewSender(stream, counter, "bob")
	_, err := s.Send(ctx, "alice", "one")
	require.NoError(t, err)
	_, err = s.Send(ctx, "alice", "two")
	require.NoError(t, err)
	_, err = chat.AnnouncePresence(ctx, stream, "bob")
	require.NoError(t, err)

	d := NewDirectory(stream, "alice", zerolog.Nop())
	page, _, err := d.Page(ctx, "", 10, "")
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, int64(2), page[0].UnreadCount)
	require.True(t, page[0].Online)
	require.Equal(t, "two", page[0].LastMessage)
}

func TestPageSearchFiltersByPrefix(t *testing.T) {
	stream := memstream.New()
	seedDirectory(t, stream,
		User{UID: "u1", Email: "anna@example.com", DisplayName: "Anna"},
		User{UID: "u2", Email: "bob@example.com", DisplayName: "Bob"},
		User{UID: "u3", Email: "annika@example.com", DisplayName: "Annika"},
	)

	d := NewDirectory(stream, "self", zerolog.Nop())
	page, _, err := d.Page(context.Background(), "", 10, "ann")
	require.NoError(t, err)
	require.Len(t, page, 2)

	page, _, err = d.Page(context.Background(), "", 10, "Bob")
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "u2", page[0].UID)
}

func TestPageCursorWalksDirectory(t *testing.T) {
	stream := memstream.New()
	users := make([]User, 0, 7)
	for _, uid := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		users = append(users, User{UID: uid, Email: uid + "@example.com"})
	}
	seedDirectory(t, stream, users...)

	d := NewDirectory(stream, "self", zerolog.Nop())
	seen := make(map[string]struct{})
	cursor := ""
	for {
		page, next, err := d.Page(context.Background(), cursor, 3, "")
		require.NoError(t, err)
		for _, c := range page {
			_, dup := seen[c.UID]
			require.False(t, dup, "contact %s seen twice", c.UID)
			seen[c.UID] = struct{}{}
		}
		if next == "" {
			break
		}
		cursor = next
	}
	require.Len(t, seen, 7)
}

func TestWatchContactEmitsLiveUpdates(t *testing.T) {
	stream := memstream.New()
	ctx := context.Background()
	seedDirectory(t, stream, User{UID: "bob", Email: "bob@example.com"})

	d := NewDirectory(stream, "alice", zerolog.Nop())
	page, _, err := d.Page(ctx, "", 10, "")
	require.NoError(t, err)
	require.Len(t, page, 1)

	ch, cancel, err := d.WatchContact(ctx, page[0])
	require.NoError(t, err)
	defer cancel()

	// Initial emission reflects current state.
	c := nextContact(t, ch)
	require.Zero(t, c.UnreadCount)
	require.False(t, c.Online)

	counter := chat.NewCounter(stream)
	s := chat.NewSender(stream, counter, "bob", chat.WithSenderClock(func() int64 { return 7000 }))
	_, err = s.Send(ctx, "alice", "ping")
	require.NoError(t, err)

	// Preview and unread updates both arrive; take the latest.
	var last Contact
	for i := 0; i < 2; i++ {
		last = nextContact(t, ch)
	}
	require.Equal(t, "ping", last.LastMessage)
	require.Equal(t, int64(7000), last.LastMessageTime)
	require.Equal(t, int64(1), last.UnreadCount)

	_, err = chat.AnnouncePresence(ctx, stream, "bob")
	require.NoError(t, err)
	c = nextContact(t, ch)
	require.True(t, c.Online)
}

func nextContact(t *testing.T, ch <-chan Contact) Contact {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for contact update")
		return Contact{}
	}
}

func TestFindByEmail(t *testing.T) {
	stream := memstream.New()
	defer func() { _ = stream.Close() }()
	seedDirectory(t, stream,
		User{UID: "u1", Email: "alice@example.com", DisplayName: "Alice"},
		User{UID: "u2", Email: "bob@example.com", DisplayName: "Bob"},
	)
	d := NewDirectory(stream, "u1", zerolog.Nop())

	u, err := d.FindByEmail(context.Background(), "Bob@Example.com")
	require.NoError(t, err)
	require.Equal(t, "u2", u.UID)

	_, err = d.FindByEmail(context.Background(), "nobody@example.com")
	require.ErrorIs(t, err, ErrUnknownUser)

	_, err = d.FindByEmail(context.Background(), "   ")
	require.ErrorIs(t, err, ErrUnknownUser)
}
