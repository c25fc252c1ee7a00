package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/shivamdeswal5/weconnect/internal/remote"
)

// Sender performs the local side of a send: append the message to the
// conversation, refresh the last-message preview snapshot, and bump the
// recipient's unread counter.
type Sender struct {
	stream remote.Stream
	unread *Counter
	selfID string
	now    func() int64
	log    zerolog.Logger
}

// SenderOption configures a Sender.
type SenderOption func(*Sender)

// WithSenderClock overrides the timestamp source, for deterministic tests.
func WithSenderClock(now func() int64) SenderOption {
	return func(s *Sender) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSenderLogger sets the sender's logger.
func WithSenderLogger(log zerolog.Logger) SenderOption {
	return func(s *Sender) {
		s.log = log
	}
}

// NewSender creates a sender for selfID.
func NewSender(stream remote.Stream, unread *Counter, selfID string, opts ...SenderOption) *Sender {
	s := &Sender{
		stream: stream,
		unread: unread,
		selfID: selfID,
		now:    NowMillis,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send appends a message to the conversation with peerID. The message append
// is the operation that must succeed; preview and unread writes are best
// effort and only logged on failure, since the next send repairs them.
func (s *Sender) Send(ctx context.Context, peerID, text string) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, ErrEmptyMessage
	}
	conversationID, err := DeriveConversationID(s.selfID, peerID)
	if err != nil {
		return Message{}, err
	}

	msg := Message{
		Text:      text,
		SenderID:  s.selfID,
		Timestamp: s.now(),
	}
	key, err := s.stream.Push(ctx, remote.MessagesPath(conversationID), msg.Timestamp, msg)
	if err != nil {
		return Message{}, fmt.Errorf("append message: %w", err)
	}
	msg.Key = key

	preview := LastMessage{Message: msg, ReceiverID: peerID}
	if err := s.stream.Write(ctx, remote.LastMessagePath(conversationID), preview); err != nil {
		s.log.Warn().Err(err).Str("conversation", conversationID).Msg("write last-message preview")
	}
	if _, err := s.unread.Increment(ctx, peerID, conversationID); err != nil {
		s.log.Warn().Err(err).Str("conversation", conversationID).Msg("increment peer unread")
	}
	return msg, nil
}
