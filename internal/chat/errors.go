package chat

import "errors"

// Engine errors.
var (
	// ErrInvalidParticipant is returned when a conversation identity is
	// derived from an empty identifier or one containing the separator.
	ErrInvalidParticipant = errors.New("chat: invalid participant id")

	// ErrEmptyMessage is returned when a send carries no text.
	ErrEmptyMessage = errors.New("chat: empty message")

	// ErrNotOpen is returned by window operations that require an open
	// conversation.
	ErrNotOpen = errors.New("chat: window not open")
)
