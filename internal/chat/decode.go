package chat

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/shivamdeswal5/weconnect/internal/remote"
)

// decodeMessage unmarshals one store entry. Malformed entries are logged and
// skipped rather than corrupting the window.
func decodeMessage(e remote.Entry, log zerolog.Logger) (Message, bool) {
	var msg Message
	if err := json.Unmarshal(e.Value, &msg); err != nil {
		log.Warn().Err(err).Str("key", e.Key).Msg("skip undecodable message")
		return Message{}, false
	}
	msg.Key = e.Key
	return msg, true
}

func decodeMessages(entries []remote.Entry, log zerolog.Logger) []Message {
	out := make([]Message, 0, len(entries))
	for _, e := range entries {
		if msg, ok := decodeMessage(e, log); ok {
			out = append(out, msg)
		}
	}
	return out
}

// decodeBool interprets a remote flag value. Absent or malformed values count
// as false, matching the store's treatment of missing presence flags.
func decodeBool(raw json.RawMessage) bool {
	if raw == nil {
		return false
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	return v
}
