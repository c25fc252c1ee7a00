package chat

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shivamdeswal5/weconnect/internal/remote"
	"github.com/shivamdeswal5/weconnect/internal/remote/memstream"
)

func TestSenderAppendsPreviewsAndIncrements(t *testing.T) {
	stream := memstream.New()
	counter := NewCounter(stream)
	clock := int64(42000)
	s := NewSender(stream, counter, "alice", WithSenderClock(func() int64 { return clock }))
	ctx := context.Background()

	msg, err := s.Send(ctx, "bob", "hello bob")
	require.NoError(t, err)
	require.NotEmpty(t, msg.Key)
	require.Equal(t, "alice", msg.SenderID)
	require.Equal(t, clock, msg.Timestamp)

	entries, err := stream.GetRange(ctx, remote.MessagesPath(testConv), remote.RangeQuery{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, msg.Key, entries[0].Key)
	require.Equal(t, clock, entries[0].Score)

	raw, err := stream.Read(ctx, remote.LastMessagePath(testConv))
	require.NoError(t, err)
	var preview LastMessage
	require.NoError(t, json.Unmarshal(raw, &preview))
	require.Equal(t, "hello bob", preview.Text)
	require.Equal(t, "bob", preview.ReceiverID)

	n, err := counter.Get(ctx, "bob", testConv)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	// The sender's own counter is untouched.
	n, err = counter.Get(ctx, "alice", testConv)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestSenderRejectsEmptyText(t *testing.T) {
	stream := memstream.New()
	s := NewSender(stream, NewCounter(stream), "alice")

	_, err := s.Send(context.Background(), "bob", "   ")
	require.ErrorIs(t, err, ErrEmptyMessage)

	entries, err := stream.GetRange(context.Background(), remote.MessagesPath(testConv), remote.RangeQuery{})
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestSenderRejectsInvalidPeer(t *testing.T) {
	stream := memstream.New()
	s := NewSender(stream, NewCounter(stream), "alice")

	_, err := s.Send(context.Background(), "", "hello")
	require.ErrorIs(t, err, ErrInvalidParticipant)
}

func TestSendReachesOpenWindowLiveTail(t *testing.T) {
	stream := memstream.New()
	counter := NewCounter(stream)
	ctx := context.Background()

	w := NewWindow(stream, counter, "bob")
	require.NoError(t, w.Open(ctx, testConv, 20))
	defer w.Close()

	ts := NowMillis() + 1000
	s := NewSender(stream, counter, "alice", WithSenderClock(func() int64 { return ts }))
	sent, err := s.Send(ctx, "bob", "ping")
	require.NoError(t, err)

	got := <-w.Live()
	require.Equal(t, sent.Key, got.Key)
	require.Equal(t, "ping", got.Text)
}
