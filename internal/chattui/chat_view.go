package chattui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/shivamdeswal5/weconnect/internal/chat"
	"github.com/shivamdeswal5/weconnect/internal/contacts"
	"github.com/shivamdeswal5/weconnect/internal/logging"
	"github.com/shivamdeswal5/weconnect/internal/remote"
)

const openTimeout = 10 * time.Second

type liveMsg struct {
	msg chat.Message
}

type liveClosedMsg struct{}

type presenceMsg struct {
	status chat.Status
}

type olderLoadedMsg struct {
	page []chat.Message
	err  error
}

type sentMsg struct {
	err error
}

// chatView is one open conversation: message feed, presence line, compose
// input.
type chatView struct {
	deps    Deps
	contact contacts.Contact
	conv    string

	window  *chat.Window
	typing  *chat.Emitter
	sender  *chat.Sender
	counter *chat.Counter

	presCh     <-chan chat.Status
	presCancel remote.CancelFunc

	msgs []chat.Message
	// seen dedupes by store key: an append racing the open can arrive in
	// both the snapshot and on the live channel.
	seen   map[string]struct{}
	status chat.Status

	// offset counts message lines scrolled up from the bottom. Older pages
	// are prepended, which leaves the distance to the bottom unchanged, so
	// the viewport stays anchored on the message the user was reading.
	offset  int
	compose string
	err     error
}

func newChatView(deps Deps, c contacts.Contact) (*chatView, error) {
	conv, err := chat.DeriveConversationID(deps.Session.UID, c.UID)
	if err != nil {
		return nil, err
	}

	counter := chat.NewCounter(deps.Stream)
	window := chat.NewWindow(deps.Stream, counter, deps.Session.UID,
		chat.WithWindowLogger(logging.Component("window")))

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()
	if err := window.Open(ctx, conv, deps.Cfg.Chat.PageSize); err != nil {
		return nil, fmt.Errorf("open conversation: %w", err)
	}

	tracker := chat.NewTracker(deps.Stream, logging.Component("presence"))
	presCh, presCancel, err := tracker.Watch(ctx, conv, c.UID)
	if err != nil {
		window.Close()
		return nil, fmt.Errorf("watch presence: %w", err)
	}

	v := &chatView{
		deps:    deps,
		contact: c,
		conv:    conv,
		window:  window,
		typing: chat.NewEmitter(deps.Stream, conv, deps.Session.UID,
			chat.WithDebounce(deps.Cfg.Chat.TypingDebounce),
			chat.WithEmitterLogger(logging.Component("typing"))),
		sender: chat.NewSender(deps.Stream, counter, deps.Session.UID,
			chat.WithSenderLogger(logging.Component("send"))),
		counter:    counter,
		presCh:     presCh,
		presCancel: presCancel,
		msgs:       window.Snapshot(),
	}
	v.seen = make(map[string]struct{}, len(v.msgs))
	for _, m := range v.msgs {
		v.seen[m.Key] = struct{}{}
	}
	v.archive(v.msgs)
	return v, nil
}

func (v *chatView) Init() tea.Cmd {
	return tea.Batch(waitLive(v.window.Live()), waitPresence(v.presCh))
}

func (v *chatView) Update(msg tea.Msg) tea.Cmd {
	switch typed := msg.(type) {
	case liveMsg:
		if _, dup := v.seen[typed.msg.Key]; dup {
			return waitLive(v.window.Live())
		}
		v.seen[typed.msg.Key] = struct{}{}
		v.msgs = append(v.msgs, typed.msg)
		v.archive([]chat.Message{typed.msg})
		if v.offset > 0 {
			// Scrolled up: keep the viewport on what the user is reading.
			v.offset++
		}
		if typed.msg.SenderID != v.deps.Session.UID {
			// The conversation is on screen, so the message is read.
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			if err := v.counter.Reset(ctx, v.deps.Session.UID, v.conv); err != nil {
				logger := logging.WithConversation(v.conv)
				logger.Warn().Err(err).Msg("reset unread counter")
			}
			cancel()
		}
		return waitLive(v.window.Live())
	case liveClosedMsg:
		return nil
	case presenceMsg:
		v.status = typed.status
		return waitPresence(v.presCh)
	case olderLoadedMsg:
		if typed.err != nil {
			v.err = typed.err
			return nil
		}
		for _, m := range typed.page {
			v.seen[m.Key] = struct{}{}
		}
		v.msgs = append(append([]chat.Message{}, typed.page...), v.msgs...)
		return nil
	case sentMsg:
		if typed.err != nil {
			v.err = typed.err
		}
		return nil
	case tea.KeyMsg:
		return v.handleKey(typed)
	}
	return nil
}

func (v *chatView) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		return closeChatCmd()
	case "enter":
		text := strings.TrimSpace(v.compose)
		if text == "" {
			return nil
		}
		v.compose = ""
		v.offset = 0
		return v.sendCmd(text)
	case "pgup":
		if !v.window.HasMoreOlder() {
			return nil
		}
		return v.loadOlderCmd()
	case "up":
		if v.offset < len(v.msgs)-1 {
			v.offset++
		}
		return nil
	case "down":
		if v.offset > 0 {
			v.offset--
		}
		return nil
	case "backspace":
		if len(v.compose) > 0 {
			v.compose = v.compose[:len(v.compose)-1]
			v.typing.OnLocalEdit(context.Background())
		}
		return nil
	case " ", "space":
		v.compose += " "
		v.typing.OnLocalEdit(context.Background())
		return nil
	}
	if msg.Type == tea.KeyRunes {
		v.compose += string(msg.Runes)
		v.typing.OnLocalEdit(context.Background())
	}
	return nil
}

func (v *chatView) sendCmd(text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		_, err := v.sender.Send(ctx, v.contact.UID, text)
		return sentMsg{err: err}
	}
}

func (v *chatView) loadOlderCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
		defer cancel()
		page, err := v.window.LoadOlder(ctx)
		return olderLoadedMsg{page: page, err: err}
	}
}

func (v *chatView) archive(msgs []chat.Message) {
	if v.deps.Archive == nil || len(msgs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := v.deps.Archive.UpsertBatch(ctx, v.conv, msgs); err != nil {
		logger := logging.WithConversation(v.conv)
		logger.Warn().Err(err).Msg("archive messages")
	}
}

func waitLive(ch <-chan chat.Message) tea.Cmd {
	return func() tea.Msg {
		if ch == nil {
			return liveClosedMsg{}
		}
		m, ok := <-ch
		if !ok {
			return liveClosedMsg{}
		}
		return liveMsg{msg: m}
	}
}

func waitPresence(ch <-chan chat.Status) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return liveClosedMsg{}
		}
		return presenceMsg{status: s}
	}
}

func (v *chatView) View(width, height int, theme Theme) string {
	statusLine := v.renderStatus(theme)
	composeLine := "> " + v.compose + "▏"

	feedHeight := height - 2
	if feedHeight < 1 {
		feedHeight = 1
	}

	lines := make([]string, 0, len(v.msgs))
	for _, m := range v.msgs {
		lines = append(lines, v.renderMessage(m, width, theme))
	}
	if v.err != nil {
		lines = append(lines, theme.badgeStyle().Render(fmt.Sprintf("error: %v", v.err)))
	}

	end := len(lines) - v.offset
	if end < 0 {
		end = 0
	}
	start := end - feedHeight
	if start < 0 {
		start = 0
	}
	visible := lines[start:end]

	// Pad so the compose line stays pinned to the bottom.
	for len(visible) < feedHeight {
		visible = append([]string{""}, visible...)
	}

	var b strings.Builder
	b.WriteString(statusLine)
	b.WriteString("\n")
	b.WriteString(strings.Join(visible, "\n"))
	b.WriteString("\n")
	b.WriteString(composeLine)
	return b.String()
}

func (v *chatView) renderStatus(theme Theme) string {
	label := v.status.String()
	style := theme.mutedStyle()
	switch v.status {
	case chat.StatusOnline:
		style = theme.onlineStyle()
	case chat.StatusTyping:
		style = theme.badgeStyle()
	}
	more := ""
	if v.window.HasMoreOlder() {
		more = theme.mutedStyle().Render("  (pgup for older)")
	}
	return fmt.Sprintf("%s %s%s", theme.peerStyle().Render(v.contact.DisplayName), style.Render(label), more)
}

func (v *chatView) renderMessage(m chat.Message, width int, theme Theme) string {
	nameStyle := theme.peerStyle()
	name := v.contact.DisplayName
	if m.SenderID == v.deps.Session.UID {
		nameStyle = theme.selfStyle()
		name = "you"
	}

	prefix := ""
	if v.deps.Cfg.TUI.ShowTimestamps {
		prefix = theme.mutedStyle().Render(time.UnixMilli(m.Timestamp).Format("15:04")) + " "
	}
	line := prefix + nameStyle.Render(name+":") + " " + m.Text
	if width > 0 && len(line) > width*2 {
		line = line[:width*2]
	}
	return line
}

// Close lowers the typing flag and tears down subscriptions.
func (v *chatView) Close() {
	v.typing.Close()
	if v.presCancel != nil {
		v.presCancel()
	}
	v.window.Close()
}
