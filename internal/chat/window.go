package chat

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/shivamdeswal5/weconnect/internal/remote"
)

const (
	// DefaultPageSize matches the store-side limit-to-last batch used for
	// the initial fetch and each older page.
	DefaultPageSize = 20

	defaultLiveBuffer = 256
)

// Window owns the in-memory ordered message sequence for one open
// conversation. History page fetches and the live append stream arrive
// asynchronously and are merged into one ascending, duplicate-free sequence.
//
// All exported methods are safe for concurrent use. Responses that arrive
// after the conversation has been closed or switched are detected by a
// generation check and dropped without touching state.
type Window struct {
	stream remote.Stream
	unread *Counter
	selfID string
	log    zerolog.Logger

	mu             sync.Mutex
	generation     uint64
	conversationID string
	pageSize       int
	items          []Message
	keys           map[string]struct{}
	oldestLoaded   int64
	hasOldest      bool
	hasMoreOlder   bool
	loadingOlder   bool
	cancelLive     remote.CancelFunc
	live           chan Message
}

// WindowOption configures a Window.
type WindowOption func(*Window)

// WithWindowLogger sets the window's logger.
func WithWindowLogger(log zerolog.Logger) WindowOption {
	return func(w *Window) {
		w.log = log
	}
}

// NewWindow creates a closed window for the given reader. The unread counter
// is reset for selfID as a side effect of every Open.
func NewWindow(stream remote.Stream, unread *Counter, selfID string, opts ...WindowOption) *Window {
	w := &Window{
		stream:       stream,
		unread:       unread,
		selfID:       selfID,
		log:          zerolog.Nop(),
		hasMoreOlder: true,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Open resets the window and loads the most recent pageSize messages of the
// conversation, then establishes a live subscription strictly above the
// loaded page (or above "now" when the conversation is empty, so history is
// never re-received). A failed fetch leaves the window closed and is
// retryable by calling Open again.
func (w *Window) Open(ctx context.Context, conversationID string, pageSize int) error {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	w.mu.Lock()
	detached := w.detachLocked()
	w.generation++
	gen := w.generation
	w.conversationID = conversationID
	w.pageSize = pageSize
	w.mu.Unlock()
	if detached != nil {
		detached()
	}

	path := remote.MessagesPath(conversationID)
	entries, err := w.stream.GetRange(ctx, path, remote.RangeQuery{LimitToLast: pageSize})
	if err != nil {
		return fmt.Errorf("fetch initial page: %w", err)
	}

	page := decodeMessages(entries, w.log)
	sort.SliceStable(page, func(i, j int) bool { return page[i].Timestamp < page[j].Timestamp })

	// Exclusive lower bound for the live tail: one past the newest loaded
	// message, or the present instant when the page is empty. Fixing it
	// here is what makes page/tail merging duplicate-free.
	startAt := NowMillis()
	if len(page) > 0 {
		startAt = page[len(page)-1].Timestamp + 1
	}

	// Install the page before subscribing: the subscription replays
	// entries already at or above the bound, and those flow through
	// onLiveAppend against this state, so a message appended between the
	// page fetch and the subscribe is caught rather than lost.
	w.mu.Lock()
	if w.generation != gen {
		w.mu.Unlock()
		return nil
	}
	w.items = page
	w.keys = make(map[string]struct{}, len(page))
	for _, m := range page {
		w.keys[m.Key] = struct{}{}
	}
	if len(page) > 0 {
		w.oldestLoaded = page[0].Timestamp
		w.hasOldest = true
	} else {
		w.hasOldest = false
	}
	w.hasMoreOlder = len(page) > 0
	w.loadingOlder = false
	w.live = make(chan Message, defaultLiveBuffer)
	w.mu.Unlock()

	cancel, err := w.stream.SubscribeAppend(ctx, path, startAt, func(e remote.Entry) {
		w.onLiveAppend(gen, e)
	})
	if err != nil {
		w.mu.Lock()
		if w.generation == gen {
			w.detachLocked()
		}
		w.mu.Unlock()
		return fmt.Errorf("subscribe live tail: %w", err)
	}

	w.mu.Lock()
	if w.generation != gen {
		// Another Open or Close won the race; this result is stale.
		w.mu.Unlock()
		cancel()
		return nil
	}
	w.cancelLive = cancel
	w.mu.Unlock()

	if w.unread != nil {
		if err := w.unread.Reset(ctx, w.selfID, conversationID); err != nil {
			w.log.Warn().Err(err).Str("conversation", conversationID).Msg("reset unread counter")
		}
	}
	return nil
}

// onLiveAppend handles one live-tail entry. The subscription's lower bound is
// exclusive and fixed at open time, and per-path appends arrive in
// non-decreasing timestamp order, so appending at the tail preserves order.
func (w *Window) onLiveAppend(gen uint64, e remote.Entry) {
	msg, ok := decodeMessage(e, w.log)
	if !ok {
		return
	}

	w.mu.Lock()
	if w.generation != gen {
		w.mu.Unlock()
		return
	}
	if _, dup := w.keys[msg.Key]; dup {
		w.mu.Unlock()
		return
	}
	w.keys[msg.Key] = struct{}{}
	w.items = append(w.items, msg)
	if !w.hasOldest {
		w.oldestLoaded = msg.Timestamp
		w.hasOldest = true
	}
	// Notify under the lock so Close cannot close the channel between the
	// generation check and the send. The send never blocks.
	select {
	case w.live <- msg:
	default:
		w.log.Debug().Str("key", msg.Key).Msg("live buffer full, notification dropped")
	}
	w.mu.Unlock()
}

// LoadOlder fetches up to one more page of history below the oldest loaded
// message and prepends it. It is a no-op when the window is exhausted or a
// load is already in flight; at most one older-page fetch is outstanding at a
// time. A failed fetch releases the guard and leaves hasMoreOlder unchanged
// so the caller can retry. Returns the prepended messages in ascending order.
func (w *Window) LoadOlder(ctx context.Context) ([]Message, error) {
	w.mu.Lock()
	if w.cancelLive == nil {
		w.mu.Unlock()
		return nil, ErrNotOpen
	}
	if !w.hasMoreOlder || w.loadingOlder || !w.hasOldest {
		w.mu.Unlock()
		return nil, nil
	}
	w.loadingOlder = true
	gen := w.generation
	conversationID := w.conversationID
	pageSize := w.pageSize
	endAt := w.oldestLoaded - 1
	w.mu.Unlock()

	entries, err := w.stream.GetRange(ctx, remote.MessagesPath(conversationID), remote.RangeQuery{
		EndAt:       &endAt,
		LimitToLast: pageSize,
	})

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.generation != gen {
		// The conversation was closed or switched while the fetch was in
		// flight; the new state owns the guard.
		w.log.Debug().Str("conversation", conversationID).Msg("older page dropped for stale generation")
		return nil, nil
	}
	w.loadingOlder = false
	if err != nil {
		return nil, fmt.Errorf("fetch older page: %w", err)
	}

	page := decodeMessages(entries, w.log)
	sort.SliceStable(page, func(i, j int) bool { return page[i].Timestamp < page[j].Timestamp })

	added := make([]Message, 0, len(page))
	for _, m := range page {
		if _, dup := w.keys[m.Key]; dup {
			continue
		}
		w.keys[m.Key] = struct{}{}
		added = append(added, m)
	}
	if len(added) > 0 {
		w.items = append(added, w.items...)
		w.oldestLoaded = added[0].Timestamp
		w.hasOldest = true
	}
	// A short page means the history is exhausted; only a full page can
	// have more behind it.
	w.hasMoreOlder = len(page) == pageSize
	return added, nil
}

// Live returns the channel carrying live-appended messages for the currently
// open conversation, or nil when closed. The channel is replaced on every
// Open.
func (w *Window) Live() <-chan Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.live
}

// Snapshot returns a copy of the current ordered message sequence.
func (w *Window) Snapshot() []Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Message, len(w.items))
	copy(out, w.items)
	return out
}

// ConversationID returns the open conversation's id, or "" when closed.
func (w *Window) ConversationID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancelLive == nil {
		return ""
	}
	return w.conversationID
}

// HasMoreOlder reports whether another LoadOlder may return history.
func (w *Window) HasMoreOlder() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.hasMoreOlder
}

// OldestLoaded returns the timestamp of the oldest loaded message; ok is
// false when the window holds no messages.
func (w *Window) OldestLoaded() (int64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.oldestLoaded, w.hasOldest
}

// Close cancels the live subscription and clears all state. In-flight fetch
// results for the closed conversation are discarded when they resolve.
func (w *Window) Close() {
	w.mu.Lock()
	w.generation++
	cancel := w.detachLocked()
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// detachLocked clears state and hands back the live subscription's cancel.
// The cancel must be invoked after w.mu is released: it takes the backend's
// lock, which a concurrent append dispatch may hold while waiting on w.mu.
func (w *Window) detachLocked() remote.CancelFunc {
	cancel := w.cancelLive
	w.cancelLive = nil
	if w.live != nil {
		close(w.live)
		w.live = nil
	}
	w.items = nil
	w.keys = nil
	w.oldestLoaded = 0
	w.hasOldest = false
	w.hasMoreOlder = true
	w.loadingOlder = false
	w.conversationID = ""
	return cancel
}
