package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shivamdeswal5/weconnect/internal/remote"
)

// Counter maintains per-conversation unread counts. The sender increments the
// recipient's counter on every send; the reader bulk-resets its own counter
// to zero on conversation open. Counts are never decremented per-message.
//
// When the stream implements remote.Incrementer the increment is atomic;
// otherwise it degrades to read-then-write, which can lose increments under
// concurrent senders on the same key.
type Counter struct {
	stream remote.Stream
}

// NewCounter creates an unread counter over the given stream.
func NewCounter(stream remote.Stream) *Counter {
	return &Counter{stream: stream}
}

// Increment adds one to readerID's unread count for the conversation and
// returns the new value (0 when only the best-effort path is available and
// the follow-up read fails).
func (c *Counter) Increment(ctx context.Context, readerID, conversationID string) (int64, error) {
	path := remote.UnreadPath(readerID, conversationID)
	if inc, ok := c.stream.(remote.Incrementer); ok {
		n, err := inc.Increment(ctx, path, 1)
		if err != nil {
			return 0, fmt.Errorf("increment unread: %w", err)
		}
		return n, nil
	}

	current, err := c.Get(ctx, readerID, conversationID)
	if err != nil {
		return 0, err
	}
	next := current + 1
	if err := c.stream.Write(ctx, path, next); err != nil {
		return 0, fmt.Errorf("write unread: %w", err)
	}
	return next, nil
}

// Reset writes the reader's count to zero unconditionally.
func (c *Counter) Reset(ctx context.Context, readerID, conversationID string) error {
	if err := c.stream.Write(ctx, remote.UnreadPath(readerID, conversationID), 0); err != nil {
		return fmt.Errorf("reset unread: %w", err)
	}
	return nil
}

// Get reads the current count; an absent key counts as zero.
func (c *Counter) Get(ctx context.Context, readerID, conversationID string) (int64, error) {
	raw, err := c.stream.Read(ctx, remote.UnreadPath(readerID, conversationID))
	if errors.Is(err, remote.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read unread: %w", err)
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("decode unread: %w", err)
	}
	return n, nil
}
