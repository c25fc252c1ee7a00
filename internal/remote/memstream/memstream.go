// Package memstream implements the remote store contract entirely in memory.
// It backs the engine and UI tests. Semantics mirror the production backend: ascending score order within a collection, append
// subscriptions bounded below by startAt, value subscriptions with an
// immediate initial callback, and armed disconnect writes applied when the
// connection drops.
//
// Callbacks are dispatched synchronously while holding the store lock so that
// per-path delivery order matches write order. Callbacks must not call back
// into the stream.
package memstream

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/shivamdeswal5/weconnect/internal/remote"
)

type appendSub struct {
	path    string
	startAt int64
	fn      remote.AppendFunc
}

type valueSub struct {
	path string
	fn   remote.ValueFunc
}

type armedWrite struct {
	path  string
	value json.RawMessage
}

// Stream is an in-memory remote store.
type Stream struct {
	mu          sync.Mutex
	collections map[string][]remote.Entry
	points      map[string]json.RawMessage
	appendSubs  map[int]*appendSub
	valueSubs   map[int]*valueSub
	nextSubID   int
	armed       []armedWrite
	closed      bool
	keyGen      func() string
}

// Option configures a Stream.
type Option func(*Stream)

// WithKeyGenerator overrides store-key generation, for deterministic tests.
func WithKeyGenerator(gen func() string) Option {
	return func(s *Stream) {
		if gen != nil {
			s.keyGen = gen
		}
	}
}

// New creates an empty in-memory stream.
func New(opts ...Option) *Stream {
	s := &Stream{
		collections: make(map[string][]remote.Entry),
		points:      make(map[string]json.RawMessage),
		appendSubs:  make(map[int]*appendSub),
		valueSubs:   make(map[int]*valueSub),
		keyGen:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ remote.Stream = (*Stream)(nil)
var _ remote.Incrementer = (*Stream)(nil)

// GetRange implements remote.Stream.
func (s *Stream) GetRange(ctx context.Context, path string, q remote.RangeQuery) ([]remote.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, remote.ErrClosed
	}

	matched := make([]remote.Entry, 0)
	for _, e := range s.collections[path] {
		if q.StartAt != nil && e.Score < *q.StartAt {
			continue
		}
		if q.EndAt != nil && e.Score > *q.EndAt {
			continue
		}
		matched = append(matched, e)
	}
	if q.LimitToLast > 0 && len(matched) > q.LimitToLast {
		matched = matched[len(matched)-q.LimitToLast:]
	}
	if q.LimitToFirst > 0 && len(matched) > q.LimitToFirst {
		matched = matched[:q.LimitToFirst]
	}
	return cloneEntries(matched), nil
}

// GetRangeByKey implements remote.Stream. It lists immediate point children
// of path in lexicographic key order.
func (s *Stream) GetRangeByKey(ctx context.Context, path, startAfter string, limit int) ([]remote.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, remote.ErrClosed
	}

	prefix := path + "/"
	keys := make([]string, 0)
	for p := range s.points {
		rest, ok := strings.CutPrefix(p, prefix)
		if !ok || rest == "" || strings.Contains(rest, "/") {
			continue
		}
		if startAfter != "" && rest <= startAfter {
			continue
		}
		keys = append(keys, rest)
	}
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	entries := make([]remote.Entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, remote.Entry{Key: k, Value: cloneRaw(s.points[prefix+k])})
	}
	return entries, nil
}

// SubscribeAppend implements remote.Stream. Children already present with
// score >= startAt are replayed synchronously before SubscribeAppend returns,
// so an append that lands between a range read and the subscribe is not lost.
func (s *Stream) SubscribeAppend(ctx context.Context, path string, startAt int64, fn remote.AppendFunc) (remote.CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, remote.ErrClosed
	}
	id := s.nextSubID
	s.nextSubID++
	s.appendSubs[id] = &appendSub{path: path, startAt: startAt, fn: fn}
	for _, e := range s.collections[path] {
		if e.Score >= startAt {
			fn(cloneEntry(e))
		}
	}
	return s.cancelAppend(id), nil
}

func (s *Stream) cancelAppend(id int) remote.CancelFunc {
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.appendSubs, id)
	}
}

// SubscribeValue implements remote.Stream. The callback fires once with the
// current value before SubscribeValue returns.
func (s *Stream) SubscribeValue(ctx context.Context, path string, fn remote.ValueFunc) (remote.CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, remote.ErrClosed
	}
	id := s.nextSubID
	s.nextSubID++
	s.valueSubs[id] = &valueSub{path: path, fn: fn}
	fn(cloneRaw(s.points[path]))
	return s.cancelValue(id), nil
}

func (s *Stream) cancelValue(id int) remote.CancelFunc {
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.valueSubs, id)
	}
}

// Read implements remote.Stream.
func (s *Stream) Read(ctx context.Context, path string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, remote.ErrClosed
	}
	v, ok := s.points[path]
	if !ok {
		return nil, remote.ErrNotFound
	}
	return cloneRaw(v), nil
}

// Write implements remote.Stream.
func (s *Stream) Write(ctx context.Context, path string, v any) error {
	raw, err := marshal(v)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return remote.ErrClosed
	}
	s.writeLocked(path, raw)
	return nil
}

func (s *Stream) writeLocked(path string, raw json.RawMessage) {
	s.points[path] = raw
	for _, sub := range s.valueSubs {
		if sub.path == path {
			sub.fn(cloneRaw(raw))
		}
	}
}

// Push implements remote.Stream.
func (s *Stream) Push(ctx context.Context, path string, score int64, v any) (string, error) {
	raw, err := marshal(v)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", remote.ErrClosed
	}

	entry := remote.Entry{Key: s.keyGen(), Score: score, Value: raw}
	col := append(s.collections[path], entry)
	sort.SliceStable(col, func(i, j int) bool { return col[i].Score < col[j].Score })
	s.collections[path] = col

	for _, sub := range s.appendSubs {
		if sub.path == path && entry.Score >= sub.startAt {
			sub.fn(cloneEntry(entry))
		}
	}
	return entry.Key, nil
}

// OnDisconnectWrite implements remote.Stream.
func (s *Stream) OnDisconnectWrite(ctx context.Context, path string, v any) error {
	raw, err := marshal(v)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return remote.ErrClosed
	}
	s.armed = append(s.armed, armedWrite{path: path, value: raw})
	return nil
}

// Increment implements remote.Incrementer.
func (s *Stream) Increment(ctx context.Context, path string, delta int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, remote.ErrClosed
	}
	var current int64
	if raw, ok := s.points[path]; ok {
		if err := json.Unmarshal(raw, &current); err != nil {
			return 0, fmt.Errorf("memstream: non-integer value at %s", path)
		}
	}
	current += delta
	raw, _ := json.Marshal(current)
	s.writeLocked(path, raw)
	return current, nil
}

// Disconnect simulates a dropped connection: armed disconnect writes are
// applied (notifying value subscribers) and disarmed. The stream itself stays
// usable, matching a store that reconnects transparently.
func (s *Stream) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	armed := s.armed
	s.armed = nil
	for _, w := range armed {
		s.writeLocked(w.path, w.value)
	}
}

// Close applies armed disconnect writes and rejects further operations.
func (s *Stream) Close() error {
	s.Disconnect()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func marshal(v any) (json.RawMessage, error) {
	if raw, ok := v.(json.RawMessage); ok {
		return cloneRaw(raw), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("memstream: marshal value: %w", err)
	}
	return raw, nil
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}

func cloneEntry(e remote.Entry) remote.Entry {
	e.Value = cloneRaw(e.Value)
	return e
}

func cloneEntries(entries []remote.Entry) []remote.Entry {
	out := make([]remote.Entry, len(entries))
	for i, e := range entries {
		out[i] = cloneEntry(e)
	}
	return out
}
