package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/shivamdeswal5/weconnect/internal/remote"
)

// Status is the derived three-state presence of a peer.
type Status int

const (
	StatusOffline Status = iota
	StatusOnline
	StatusTyping
)

func (s Status) String() string {
	switch s {
	case StatusOnline:
		return "Online"
	case StatusTyping:
		return "Typing..."
	default:
		return "Offline"
	}
}

// Tracker derives a peer's presence from two independent remote boolean
// streams: the peer's typing flag within the conversation and the peer's
// connection-presence flag. The typing flag always wins; otherwise the output
// mirrors the connection flag.
type Tracker struct {
	stream remote.Stream
	log    zerolog.Logger
}

// NewTracker creates a presence tracker over the given stream.
func NewTracker(stream remote.Stream, log zerolog.Logger) *Tracker {
	return &Tracker{stream: stream, log: log}
}

type presenceWatch struct {
	mu      sync.Mutex
	typing  bool
	online  bool
	started bool
	last    Status
	closed  bool
	ch      chan Status
}

// Watch subscribes to both of the peer's flags together and emits the derived
// status on every change, deduplicating consecutive equal states. The first
// status is emitted once both subscriptions are established; the returned
// cancel tears both down together, so a partial subscription state never
// outlives Watch.
func (t *Tracker) Watch(ctx context.Context, conversationID, peerID string) (<-chan Status, remote.CancelFunc, error) {
	w := &presenceWatch{ch: make(chan Status, 8)}

	cancelTyping, err := t.stream.SubscribeValue(ctx, remote.TypingPath(conversationID, peerID), func(raw json.RawMessage) {
		w.update(func() { w.typing = decodeBool(raw) })
	})
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe typing flag: %w", err)
	}

	cancelOnline, err := t.stream.SubscribeValue(ctx, remote.OnlinePath(peerID), func(raw json.RawMessage) {
		w.update(func() { w.online = decodeBool(raw) })
	})
	if err != nil {
		cancelTyping()
		return nil, nil, fmt.Errorf("subscribe online flag: %w", err)
	}

	w.start()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			cancelTyping()
			cancelOnline()
			w.close()
		})
	}
	return w.ch, cancel, nil
}

func (w *presenceWatch) derive() Status {
	if w.typing {
		return StatusTyping
	}
	if w.online {
		return StatusOnline
	}
	return StatusOffline
}

func (w *presenceWatch) update(apply func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	apply()
	if !w.started || w.closed {
		return
	}
	w.emitLocked()
}

// start emits the initial derived status after both subscriptions exist. The
// immediate callbacks that fire during subscription setup only record input
// state, so a half-subscribed tracker never reports.
func (w *presenceWatch) start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.started = true
	w.last = -1
	w.emitLocked()
}

func (w *presenceWatch) emitLocked() {
	status := w.derive()
	if status == w.last {
		return
	}
	w.last = status
	select {
	case w.ch <- status:
	default:
	}
}

func (w *presenceWatch) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.ch)
	}
}
