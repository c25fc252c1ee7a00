// Package chat implements the message synchronization and presence engine:
// the conversation message window (bounded history pages merged with an
// unbounded live tail), the peer presence tracker, the local typing emitter,
// and per-conversation unread counters. All components talk to the remote
// store through an injected remote.Stream; none of them read ambient session
// state.
package chat

import (
	"strings"
	"time"
)

// Message is one immutable chat entry. The ordering key is Timestamp
// (milliseconds); Key is the store-assigned child key and is unique within a
// conversation.
type Message struct {
	Key       string `json:"-"`
	Text      string `json:"text"`
	SenderID  string `json:"senderId"`
	Timestamp int64  `json:"timestamp"`
}

// LastMessage is the latest-message snapshot written alongside every send,
// consumed by the contact list for previews.
type LastMessage struct {
	Message
	ReceiverID string `json:"receiverId"`
}

// NowMillis returns the current wall clock in milliseconds, the message
// ordering resolution used throughout.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// conversationSeparator joins the two participant ids of a canonical
// conversation identifier. Valid identifiers must not contain it.
const conversationSeparator = "_"

// DeriveConversationID builds the canonical conversation identifier for two
// participants. It is order-independent: DeriveConversationID(a, b) ==
// DeriveConversationID(b, a). Self-conversations (a == b) are well-defined.
func DeriveConversationID(userA, userB string) (string, error) {
	a := strings.TrimSpace(userA)
	b := strings.TrimSpace(userB)
	if a == "" || b == "" {
		return "", ErrInvalidParticipant
	}
	if strings.Contains(a, conversationSeparator) || strings.Contains(b, conversationSeparator) {
		return "", ErrInvalidParticipant
	}
	if b < a {
		a, b = b, a
	}
	return a + conversationSeparator + b, nil
}
