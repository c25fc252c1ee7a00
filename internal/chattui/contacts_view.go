package chattui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/shivamdeswal5/weconnect/internal/contacts"
	"github.com/shivamdeswal5/weconnect/internal/logging"
)

const contactsLoadTimeout = 10 * time.Second

type contactsLoadedMsg struct {
	list []contacts.Contact
	next string
	err  error
}

type contactUpdatedMsg struct {
	contact contacts.Contact
}

// contactsView is the contact list screen: search, selection, unread badges,
// online dots, and live preview updates for the visible page.
type contactsView struct {
	deps Deps
	dir  *contacts.Directory

	list   []contacts.Contact
	next   string
	cursor int

	searching bool
	search    string

	watchCancels []func()
	err          error
}

func newContactsView(deps Deps) *contactsView {
	return &contactsView{
		deps: deps,
		dir:  contacts.NewDirectory(deps.Stream, deps.Session.UID, logging.Component("contacts")),
	}
}

func (v *contactsView) Init() tea.Cmd {
	return v.reload()
}

func (v *contactsView) reload() tea.Cmd {
	search := v.search
	limit := v.deps.Cfg.Chat.ContactsPageSize
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), contactsLoadTimeout)
		defer cancel()
		list, next, err := v.dir.Page(ctx, "", limit, search)
		return contactsLoadedMsg{list: list, next: next, err: err}
	}
}

func (v *contactsView) Update(msg tea.Msg) tea.Cmd {
	switch typed := msg.(type) {
	case contactsLoadedMsg:
		if typed.err != nil {
			v.err = typed.err
			return nil
		}
		v.err = nil
		v.list = typed.list
		v.next = typed.next
		if v.cursor >= len(v.list) {
			v.cursor = len(v.list) - 1
		}
		if v.cursor < 0 {
			v.cursor = 0
		}
		return v.rewatch()
	case contactUpdatedMsg:
		for i := range v.list {
			if v.list[i].UID == typed.contact.UID {
				v.list[i] = typed.contact
				break
			}
		}
		return nil
	case tea.KeyMsg:
		return v.handleKey(typed)
	}
	return nil
}

func (v *contactsView) handleKey(msg tea.KeyMsg) tea.Cmd {
	if v.searching {
		switch msg.String() {
		case "enter":
			v.searching = false
			return v.reload()
		case "esc":
			v.searching = false
			v.search = ""
			return v.reload()
		case "backspace":
			if len(v.search) > 0 {
				v.search = v.search[:len(v.search)-1]
			}
			return nil
		default:
			if msg.Type == tea.KeyRunes {
				v.search += string(msg.Runes)
			}
			return nil
		}
	}

	switch msg.String() {
	case "up", "k":
		if v.cursor > 0 {
			v.cursor--
		}
	case "down", "j":
		if v.cursor < len(v.list)-1 {
			v.cursor++
		}
	case "/":
		v.searching = true
	case "r":
		return v.reload()
	case "enter":
		if v.cursor < len(v.list) {
			return openChatCmd(v.list[v.cursor])
		}
	}
	return nil
}

// rewatch replaces the per-contact value subscriptions with ones for the
// currently visible page.
func (v *contactsView) rewatch() tea.Cmd {
	for _, cancel := range v.watchCancels {
		cancel()
	}
	v.watchCancels = nil

	cmds := make([]tea.Cmd, 0, len(v.list))
	for _, c := range v.list {
		ch, cancel, err := v.dir.WatchContact(context.Background(), c)
		if err != nil {
			logger := logging.Component("contacts")
			logger.Warn().Err(err).Str("uid", c.UID).Msg("watch contact")
			continue
		}
		v.watchCancels = append(v.watchCancels, cancel)
		cmds = append(cmds, waitContact(ch))
	}
	return tea.Batch(cmds...)
}

// Close cancels the per-contact subscriptions.
func (v *contactsView) Close() {
	for _, cancel := range v.watchCancels {
		cancel()
	}
	v.watchCancels = nil
}

func waitContact(ch <-chan contacts.Contact) tea.Cmd {
	return func() tea.Msg {
		c, ok := <-ch
		if !ok {
			return nil
		}
		return contactUpdatedMsg{contact: c}
	}
}

func (v *contactsView) View(width, height int, theme Theme) string {
	var b strings.Builder

	if v.searching || v.search != "" {
		b.WriteString(theme.mutedStyle().Render("search: ") + v.search)
		if v.searching {
			b.WriteString("▏")
		}
		b.WriteString("\n")
	}

	if v.err != nil {
		b.WriteString(theme.badgeStyle().Render(fmt.Sprintf("error: %v", v.err)))
		b.WriteString("\n")
	}

	if len(v.list) == 0 {
		b.WriteString(theme.mutedStyle().Render("No contacts"))
		return b.String()
	}

	for i, c := range v.list {
		line := v.renderContact(c, width, theme)
		if i == v.cursor {
			line = theme.selectedStyle().Render("> ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if v.next != "" {
		b.WriteString(theme.mutedStyle().Render("…more"))
	}
	return lipgloss.NewStyle().MaxHeight(height).Render(b.String())
}

func (v *contactsView) renderContact(c contacts.Contact, width int, theme Theme) string {
	dot := theme.mutedStyle().Render("·")
	if c.Online {
		dot = theme.onlineStyle().Render("●")
	}

	badge := ""
	if c.UnreadCount > 0 {
		badge = theme.badgeStyle().Render(fmt.Sprintf(" [%d]", c.UnreadCount))
	}

	preview := c.LastMessage
	if maxPreview := width - len(c.DisplayName) - 24; maxPreview > 8 && len(preview) > maxPreview {
		preview = preview[:maxPreview-3] + "..."
	}

	when := ""
	if c.LastMessageTime > 0 {
		when = " " + theme.mutedStyle().Render(relativeTime(c.LastMessageTime))
	}

	return fmt.Sprintf("%s %s%s  %s%s", dot, c.DisplayName, badge, theme.mutedStyle().Render(preview), when)
}

func relativeTime(ms int64) string {
	d := time.Since(time.UnixMilli(ms))
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
