// Package redisstream implements the remote store contract on Redis:
// sorted sets hold the ordered message ranges, a hash per collection holds
// message bodies, pub/sub channels carry append and value-change events, and
// INCRBY provides the atomic unread increment. Presence flags get a TTL
// refreshed by a heartbeat so a crashed client goes stale-offline even though
// its armed disconnect writes never ran; armed writes are applied eagerly on
// Close for clean shutdowns.
package redisstream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/shivamdeswal5/weconnect/internal/remote"
)

const (
	defaultPresenceTTL = 30 * time.Second
	opTimeout          = 5 * time.Second
)

// Config holds connection settings.
type Config struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	PingTimeout  time.Duration
	// PresenceTTL bounds how long an armed-disconnect flag survives a
	// crashed client.
	PresenceTTL time.Duration
}

type armedWrite struct {
	path  string
	value json.RawMessage
}

// Stream is a Redis-backed remote store connection.
type Stream struct {
	rdb         *redis.Client
	log         zerolog.Logger
	presenceTTL time.Duration
	keyGen      func() string

	mu         sync.Mutex
	armed      []armedWrite
	heartbeats map[string]context.CancelFunc
	closed     bool
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config, log zerolog.Logger) (*Stream, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	rdb := redis.NewClient(opts)

	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 2 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	ttl := cfg.PresenceTTL
	if ttl <= 0 {
		ttl = defaultPresenceTTL
	}
	return &Stream{
		rdb:         rdb,
		log:         log,
		presenceTTL: ttl,
		keyGen:      newEntryKey,
		heartbeats:  make(map[string]context.CancelFunc),
	}, nil
}

var _ remote.Stream = (*Stream)(nil)
var _ remote.Incrementer = (*Stream)(nil)

// GetRange implements remote.Stream.
func (s *Stream) GetRange(ctx context.Context, path string, q remote.RangeQuery) ([]remote.Entry, error) {
	min, max := "-inf", "+inf"
	if q.StartAt != nil {
		min = strconv.FormatInt(*q.StartAt, 10)
	}
	if q.EndAt != nil {
		max = strconv.FormatInt(*q.EndAt, 10)
	}

	var zs []redis.Z
	var err error
	switch {
	case q.LimitToLast > 0:
		zs, err = s.rdb.ZRevRangeByScoreWithScores(ctx, rangeKey(path), &redis.ZRangeBy{
			Min: min, Max: max, Count: int64(q.LimitToLast),
		}).Result()
		reverseZ(zs)
	case q.LimitToFirst > 0:
		zs, err = s.rdb.ZRangeByScoreWithScores(ctx, rangeKey(path), &redis.ZRangeBy{
			Min: min, Max: max, Count: int64(q.LimitToFirst),
		}).Result()
	default:
		zs, err = s.rdb.ZRangeByScoreWithScores(ctx, rangeKey(path), &redis.ZRangeBy{
			Min: min, Max: max,
		}).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("range read %s: %w", path, err)
	}
	if len(zs) == 0 {
		return nil, nil
	}

	keys := make([]string, len(zs))
	for i, z := range zs {
		keys[i], _ = z.Member.(string)
	}
	values, err := s.rdb.HMGet(ctx, bodyKey(path), keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read bodies %s: %w", path, err)
	}

	entries := make([]remote.Entry, 0, len(zs))
	for i, z := range zs {
		body, ok := values[i].(string)
		if !ok {
			s.log.Warn().Str("path", path).Str("key", keys[i]).Msg("entry body missing, skipped")
			continue
		}
		entries = append(entries, remote.Entry{
			Key:   keys[i],
			Score: int64(z.Score),
			Value: json.RawMessage(body),
		})
	}
	return entries, nil
}

// GetRangeByKey implements remote.Stream using the lexicographic child index
// maintained by Write.
func (s *Stream) GetRangeByKey(ctx context.Context, path, startAfter string, limit int) ([]remote.Entry, error) {
	min := "-"
	if startAfter != "" {
		min = "(" + startAfter
	}
	by := &redis.ZRangeBy{Min: min, Max: "+"}
	if limit > 0 {
		by.Count = int64(limit)
	}
	keys, err := s.rdb.ZRangeByLex(ctx, childIndexKey(path), by).Result()
	if err != nil {
		return nil, fmt.Errorf("list children %s: %w", path, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	valueKeys := make([]string, len(keys))
	for i, k := range keys {
		valueKeys[i] = valueKey(path + "/" + k)
	}
	values, err := s.rdb.MGet(ctx, valueKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read children %s: %w", path, err)
	}

	entries := make([]remote.Entry, 0, len(keys))
	for i, k := range keys {
		body, ok := values[i].(string)
		if !ok {
			continue
		}
		entries = append(entries, remote.Entry{Key: k, Value: json.RawMessage(body)})
	}
	return entries, nil
}

// SubscribeAppend implements remote.Stream. Per-channel pub/sub delivery
// preserves publish order, so entries arrive in non-decreasing score order
// for a single append stream.
func (s *Stream) SubscribeAppend(ctx context.Context, path string, startAt int64, fn remote.AppendFunc) (remote.CancelFunc, error) {
	ps := s.rdb.Subscribe(ctx, appendChannel(path))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe append %s: %w", path, err)
	}

	// Catch up on children that landed at or above the bound before the
	// channel went live. One published during the handshake can be seen
	// both here and from pub/sub; subscribers dedupe by key.
	existing, err := s.GetRange(ctx, path, remote.RangeQuery{StartAt: &startAt})
	if err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("catch up append %s: %w", path, err)
	}
	for _, e := range existing {
		fn(e)
	}

	go func() {
		for msg := range ps.Channel() {
			var env appendEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				s.log.Warn().Err(err).Str("path", path).Msg("skip undecodable append event")
				continue
			}
			if env.Score < startAt {
				continue
			}
			fn(remote.Entry{Key: env.Key, Score: env.Score, Value: env.Value})
		}
	}()
	return func() { _ = ps.Close() }, nil
}

// SubscribeValue implements remote.Stream. The subscription is established
// before the initial read so no change can fall between them; a change that
// lands during setup may be observed twice, which value semantics tolerate.
func (s *Stream) SubscribeValue(ctx context.Context, path string, fn remote.ValueFunc) (remote.CancelFunc, error) {
	ps := s.rdb.Subscribe(ctx, valueChannel(path))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe value %s: %w", path, err)
	}

	initial, err := s.Read(ctx, path)
	if err != nil && err != remote.ErrNotFound {
		_ = ps.Close()
		return nil, err
	}
	fn(initial)

	go func() {
		for msg := range ps.Channel() {
			fn(json.RawMessage(msg.Payload))
		}
	}()
	return func() { _ = ps.Close() }, nil
}

// Read implements remote.Stream.
func (s *Stream) Read(ctx context.Context, path string) (json.RawMessage, error) {
	val, err := s.rdb.Get(ctx, valueKey(path)).Result()
	if err == redis.Nil {
		return nil, remote.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return json.RawMessage(val), nil
}

// Write implements remote.Stream.
func (s *Stream) Write(ctx context.Context, path string, v any) error {
	raw, err := marshal(v)
	if err != nil {
		return err
	}
	return s.writeRaw(ctx, path, raw, 0)
}

func (s *Stream) writeRaw(ctx context.Context, path string, raw json.RawMessage, ttl time.Duration) error {
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, valueKey(path), string(raw), ttl)
	if parent, child, ok := splitChild(path); ok {
		pipe.ZAdd(ctx, childIndexKey(parent), redis.Z{Score: 0, Member: child})
	}
	pipe.Publish(ctx, valueChannel(path), string(raw))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Push implements remote.Stream.
func (s *Stream) Push(ctx context.Context, path string, score int64, v any) (string, error) {
	raw, err := marshal(v)
	if err != nil {
		return "", err
	}
	key := s.keyGen()
	env := appendEnvelope{Key: key, Score: score, Value: raw}
	payload, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("encode append event: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.ZAdd(ctx, rangeKey(path), redis.Z{Score: float64(score), Member: key})
	pipe.HSet(ctx, bodyKey(path), key, string(raw))
	pipe.Publish(ctx, appendChannel(path), string(payload))
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("push %s: %w", path, err)
	}
	return key, nil
}

// OnDisconnectWrite implements remote.Stream. Redis has no server-side
// disconnect hook, so the write is armed client-side and applied on Close;
// in addition the current value at path is given a heartbeat-refreshed TTL
// so a crashed client's flag expires instead of sticking.
func (s *Stream) OnDisconnectWrite(ctx context.Context, path string, v any) error {
	raw, err := marshal(v)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return remote.ErrClosed
	}
	s.armed = append(s.armed, armedWrite{path: path, value: raw})
	if _, ok := s.heartbeats[path]; !ok {
		hbCtx, cancel := context.WithCancel(context.Background())
		s.heartbeats[path] = cancel
		go s.heartbeat(hbCtx, path)
	}
	return nil
}

func (s *Stream) heartbeat(ctx context.Context, path string) {
	ticker := time.NewTicker(s.presenceTTL / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.rdb.Expire(ctx, valueKey(path), s.presenceTTL).Err(); err != nil && ctx.Err() == nil {
				s.log.Debug().Err(err).Str("path", path).Msg("presence heartbeat")
			}
		}
	}
}

// Increment implements remote.Incrementer.
func (s *Stream) Increment(ctx context.Context, path string, delta int64) (int64, error) {
	n, err := s.rdb.IncrBy(ctx, valueKey(path), delta).Result()
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", path, err)
	}
	// Integers serialize identically as JSON and Redis strings, so the
	// published payload stays a valid value event.
	if err := s.rdb.Publish(ctx, valueChannel(path), strconv.FormatInt(n, 10)).Err(); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("publish increment")
	}
	return n, nil
}

// Close applies armed disconnect writes, stops heartbeats, and releases the
// connection.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	armed := s.armed
	s.armed = nil
	for _, cancel := range s.heartbeats {
		cancel()
	}
	s.heartbeats = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	for _, w := range armed {
		if err := s.writeRaw(ctx, w.path, w.value, 0); err != nil {
			s.log.Warn().Err(err).Str("path", w.path).Msg("apply disconnect write")
		}
	}
	return s.rdb.Close()
}

func marshal(v any) (json.RawMessage, error) {
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return raw, nil
}

func reverseZ(zs []redis.Z) {
	for i, j := 0, len(zs)-1; i < j; i, j = i+1, j-1 {
		zs[i], zs[j] = zs[j], zs[i]
	}
}
