package redisstream

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Key layout per logical path P:
//
//	wc:z:{P}    sorted set of entry keys scored by timestamp
//	wc:h:{P}    hash of entry key to body
//	wc:v:{P}    plain value
//	wc:k:{P}    lexicographic index of child keys under P
//	wc:ch:{P}   pub/sub channel for value changes
//	wc:cha:{P}  pub/sub channel for appends
const keyPrefix = "wc"

func rangeKey(path string) string      { return keyPrefix + ":z:" + path }
func bodyKey(path string) string       { return keyPrefix + ":h:" + path }
func valueKey(path string) string      { return keyPrefix + ":v:" + path }
func childIndexKey(path string) string { return keyPrefix + ":k:" + path }
func valueChannel(path string) string  { return keyPrefix + ":ch:" + path }
func appendChannel(path string) string { return keyPrefix + ":cha:" + path }

// splitChild returns the parent path and final segment, or ok=false for a
// single-segment path that has no parent to index.
func splitChild(path string) (parent, child string, ok bool) {
	i := strings.LastIndexByte(path, '/')
	if i <= 0 || i == len(path)-1 {
		return "", "", false
	}
	return path[:i], path[i+1:], true
}

// appendEnvelope is the pub/sub payload for a pushed entry.
type appendEnvelope struct {
	Key   string          `json:"key"`
	Score int64           `json:"score"`
	Value json.RawMessage `json:"value"`
}

// newEntryKey produces keys that sort lexicographically by creation time,
// with a random suffix to keep concurrent pushes distinct.
func newEntryKey() string {
	return fmt.Sprintf("%013x-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}
