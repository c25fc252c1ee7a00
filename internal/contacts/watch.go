package contacts

import (
	"encoding/json"
	"sync"

	"github.com/shivamdeswal5/weconnect/internal/chat"
)

// contactWatch accumulates the three live inputs behind one contact row. The
// immediate callbacks during subscription setup only record state; emission
// begins after start, so a half-subscribed row is never reported.
type contactWatch struct {
	mu      sync.Mutex
	current Contact
	started bool
	ch      chan Contact
}

func (w *contactWatch) apply(mutate func(*Contact)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	mutate(&w.current)
	if !w.started {
		return
	}
	select {
	case w.ch <- w.current:
	default:
	}
}

func (w *contactWatch) start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.started = true
	select {
	case w.ch <- w.current:
	default:
	}
}

func applyPreview(c *Contact, raw json.RawMessage) {
	if raw == nil {
		c.LastMessage = ""
		c.LastMessageTime = 0
		return
	}
	var preview chat.LastMessage
	if err := json.Unmarshal(raw, &preview); err != nil {
		return
	}
	c.LastMessage = preview.Text
	c.LastMessageTime = preview.Timestamp
}

func applyUnread(c *Contact, raw json.RawMessage) {
	if raw == nil {
		c.UnreadCount = 0
		return
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return
	}
	c.UnreadCount = n
}

func applyOnline(c *Contact, raw json.RawMessage) {
	if raw == nil {
		c.Online = false
		return
	}
	var online bool
	if err := json.Unmarshal(raw, &online); err != nil {
		return
	}
	c.Online = online
}
