package chat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shivamdeswal5/weconnect/internal/remote"
)

const (
	// DefaultTypingDebounce is how long after the last edit the typing
	// flag is lowered. Tunable via configuration.
	DefaultTypingDebounce = 200 * time.Millisecond

	typingWriteTimeout = 5 * time.Second
)

// Emitter rate-limits the local typing-flag writes: a burst of edit events
// produces one typing=true write immediately and one typing=false write after
// the burst has quieted for the debounce window. Close force-lowers the flag
// so a peer is never left staring at a stuck "Typing..." indicator.
type Emitter struct {
	stream         remote.Stream
	conversationID string
	selfID         string
	debounce       time.Duration
	log            zerolog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	active  bool
	raising bool
	closed  bool
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithDebounce overrides the debounce window.
func WithDebounce(d time.Duration) EmitterOption {
	return func(e *Emitter) {
		if d > 0 {
			e.debounce = d
		}
	}
}

// WithEmitterLogger sets the emitter's logger.
func WithEmitterLogger(log zerolog.Logger) EmitterOption {
	return func(e *Emitter) {
		e.log = log
	}
}

// NewEmitter creates a typing emitter for selfID within a conversation.
func NewEmitter(stream remote.Stream, conversationID, selfID string, opts ...EmitterOption) *Emitter {
	e := &Emitter{
		stream:         stream,
		conversationID: conversationID,
		selfID:         selfID,
		debounce:       DefaultTypingDebounce,
		log:            zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OnLocalEdit records one local edit event. The first edit of a quiet period
// raises the remote typing flag; every edit pushes the lowering timer out by
// the debounce window. The timer is only armed once the raise write has
// returned, so the lowering write can never land before its matching raise,
// however slow the store is.
func (e *Emitter) OnLocalEdit(ctx context.Context) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	if e.raising {
		// The raise write is still in flight; its completion arms the
		// timer, restarting the debounce from that point.
		e.mu.Unlock()
		return
	}
	if e.active {
		e.resetTimerLocked()
		e.mu.Unlock()
		return
	}
	e.active = true
	e.raising = true
	e.mu.Unlock()

	e.write(ctx, true)

	e.mu.Lock()
	e.raising = false
	if e.closed {
		e.mu.Unlock()
		// Close ran mid-raise and left the lowering to us.
		lctx, cancel := context.WithTimeout(context.Background(), typingWriteTimeout)
		defer cancel()
		e.write(lctx, false)
		return
	}
	e.resetTimerLocked()
	e.mu.Unlock()
}

func (e *Emitter) resetTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.debounce, e.onQuiet)
}

// onQuiet fires when the debounce window elapses with no further edits.
func (e *Emitter) onQuiet() {
	e.mu.Lock()
	if e.closed || !e.active {
		e.mu.Unlock()
		return
	}
	e.active = false
	e.timer = nil
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), typingWriteTimeout)
	defer cancel()
	e.write(ctx, false)
}

// Close stops the debounce timer and, when a pulse is active, force-lowers
// the remote flag immediately rather than waiting for the timer. A raise
// write still in flight lowers the flag itself once it returns, keeping the
// raise/lower order intact.
func (e *Emitter) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	lower := e.active && !e.raising
	e.active = false
	e.mu.Unlock()

	if lower {
		ctx, cancel := context.WithTimeout(context.Background(), typingWriteTimeout)
		defer cancel()
		e.write(ctx, false)
	}
}

func (e *Emitter) write(ctx context.Context, typing bool) {
	path := remote.TypingPath(e.conversationID, e.selfID)
	if err := e.stream.Write(ctx, path, typing); err != nil {
		e.log.Warn().Err(err).Bool("typing", typing).Msg("write typing flag")
	}
}
