// Package remote defines the contract for the push-capable remote store the
// chat client runs against. The store is consumed as a black box: an ordered
// key-value/event service with one-shot range reads, append subscriptions,
// value subscriptions, and last-write-wins point writes. Backends live in
// subpackages (memstream, redisstream).
package remote

import (
	"context"
	"encoding/json"
	"errors"
)

// Store errors.
var (
	ErrNotFound = errors.New("remote: path not found")
	ErrClosed   = errors.New("remote: stream closed")
)

// Entry is one element of an ordered collection: a store-assigned key, the
// ordering score (milliseconds for message paths), and the raw JSON value.
type Entry struct {
	Key   string
	Score int64
	Value json.RawMessage
}

// RangeQuery bounds a one-shot ordered read. StartAt/EndAt are inclusive
// score bounds; nil means unbounded. Exactly one of LimitToFirst/LimitToLast
// may be set; zero means no limit on that side.
type RangeQuery struct {
	StartAt      *int64
	EndAt        *int64
	LimitToFirst int
	LimitToLast  int
}

// AppendFunc receives one entry per new child on an append subscription.
type AppendFunc func(Entry)

// ValueFunc receives the full current value of a watched path. It is invoked
// once immediately with the current value (nil if absent) and then on every
// change.
type ValueFunc func(json.RawMessage)

// CancelFunc tears down a subscription. Safe to call more than once.
type CancelFunc func()

// Stream is the remote store handle injected into every component. Tests
// substitute memstream; production wires redisstream.
type Stream interface {
	// GetRange performs a one-shot ordered read of a collection path.
	// Results are returned in ascending score order, but callers must not
	// rely on that: backends may iterate snapshots in arbitrary order and
	// clients re-sort.
	GetRange(ctx context.Context, path string, q RangeQuery) ([]Entry, error)

	// GetRangeByKey reads a page of a collection in lexicographic key
	// order, starting strictly after startAfter (empty string starts at
	// the beginning). Used for directory-style paths such as users/.
	GetRangeByKey(ctx context.Context, path, startAfter string, limit int) ([]Entry, error)

	// SubscribeAppend invokes fn for every child of path whose score is
	// >= startAt: children already present are replayed at subscribe time,
	// then each new append is delivered as it lands. A child racing the
	// subscribe may be delivered twice across that boundary; subscribers
	// dedupe by key. Appends for a single path arrive in non-decreasing
	// score order. The subscription lives until cancelled.
	SubscribeAppend(ctx context.Context, path string, startAt int64, fn AppendFunc) (CancelFunc, error)

	// SubscribeValue watches a point path, invoking fn immediately with
	// the current value and again on every change.
	SubscribeValue(ctx context.Context, path string, fn ValueFunc) (CancelFunc, error)

	// Read fetches a point value. Returns ErrNotFound when absent.
	Read(ctx context.Context, path string) (json.RawMessage, error)

	// Write sets a point value, last-write-wins.
	Write(ctx context.Context, path string, v any) error

	// Push appends v to a collection path under a fresh store-assigned key
	// with the given ordering score, returning the key.
	Push(ctx context.Context, path string, score int64, v any) (string, error)

	// OnDisconnectWrite arms a server-side write of v to path, executed
	// when this client's connection drops.
	OnDisconnectWrite(ctx context.Context, path string, v any) error
}

// Incrementer is an optional capability: backends that support an atomic
// integer increment implement it, and callers prefer it over read-then-write
// when present.
type Incrementer interface {
	// Increment atomically adds delta to the integer at path (absent
	// counts as zero) and returns the new value.
	Increment(ctx context.Context, path string, delta int64) (int64, error)
}
