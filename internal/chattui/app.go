// Package chattui is the Bubble Tea terminal client: a contacts list and a
// chat screen with a live message feed, presence line, and typing-aware
// compose input.
package chattui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/shivamdeswal5/weconnect/internal/chat"
	"github.com/shivamdeswal5/weconnect/internal/config"
	"github.com/shivamdeswal5/weconnect/internal/contacts"
	"github.com/shivamdeswal5/weconnect/internal/db"
	"github.com/shivamdeswal5/weconnect/internal/logging"
	"github.com/shivamdeswal5/weconnect/internal/remote"
	"github.com/shivamdeswal5/weconnect/internal/remote/redisstream"
	"github.com/shivamdeswal5/weconnect/internal/session"
)

const sendTimeout = 5 * time.Second

type ViewID string

const (
	ViewContacts ViewID = "contacts"
	ViewChat     ViewID = "chat"
)

// Deps is everything the TUI needs from the host process.
type Deps struct {
	Cfg     *config.Config
	Session session.Session
	Stream  remote.Stream
	Archive *db.MessageRepository
}

type viewModel interface {
	Init() tea.Cmd
	Update(msg tea.Msg) tea.Cmd
	View(width, height int, theme Theme) string
}

type openChatMsg struct {
	contact contacts.Contact
}

type closeChatMsg struct{}

type errMsg struct {
	err error
}

func openChatCmd(c contacts.Contact) tea.Cmd {
	return func() tea.Msg {
		return openChatMsg{contact: c}
	}
}

func closeChatCmd() tea.Cmd {
	return func() tea.Msg {
		return closeChatMsg{}
	}
}

// Model is the root TUI model.
type Model struct {
	deps  Deps
	theme Theme

	width  int
	height int

	active   ViewID
	contacts *contactsView
	chat     *chatView
}

// NewModel wires the root model from its dependencies.
func NewModel(deps Deps) *Model {
	m := &Model{
		deps:   deps,
		theme:  themeByName(deps.Cfg.TUI.Theme),
		active: ViewContacts,
	}
	m.contacts = newContactsView(deps)
	return m
}

// Execute loads config and session, connects the remote store, announces
// presence, and runs the TUI until quit.
func Execute(version string) error {
	cfg, err := config.LoadDefault()
	if err != nil {
		return err
	}
	// The TUI owns the terminal; logs go to the configured file or nowhere.
	logCfg := logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format}
	if cfg.Logging.File != "" {
		if f, ferr := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); ferr == nil {
			logCfg.Output = f
			defer func() { _ = f.Close() }()
		}
	} else {
		logCfg.Output = io.Discard
		logCfg.Format = "json"
	}
	logging.Init(logCfg)
	logging.Info().Str("version", version).Msg("starting tui")

	sess, err := session.NewFileStore(cfg.SessionPath()).Current()
	if errors.Is(err, session.ErrNoSession) {
		return fmt.Errorf("not logged in; run `weconnect login <email>` first")
	}
	if err != nil {
		return err
	}

	ctx := context.Background()
	stream, err := redisstream.New(ctx, redisstream.Config{
		URL:          cfg.Redis.URL,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		PresenceTTL:  cfg.Redis.PresenceTTL,
	}, logging.Component("redis"))
	if err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.Redis.URL, err)
	}
	defer func() { _ = stream.Close() }()

	retract, err := chat.AnnouncePresence(ctx, stream, sess.UID)
	if err != nil {
		return fmt.Errorf("announce presence: %w", err)
	}
	defer func() {
		offCtx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		_ = retract(offCtx)
	}()

	deps := Deps{Cfg: cfg, Session: sess, Stream: stream}
	if err := cfg.EnsureDirectories(); err == nil {
		if database, dbErr := db.Open(ctx, cfg.DatabasePath(), cfg.Database.BusyTimeoutMs); dbErr == nil {
			deps.Archive = db.NewMessageRepository(database)
			defer func() { _ = database.Close() }()
		}
	}

	return Run(deps)
}

// Run starts the program with already-wired dependencies.
func Run(deps Deps) error {
	program := tea.NewProgram(NewModel(deps), tea.WithAltScreen())
	_, err := program.Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	return m.contacts.Init()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		return m, nil
	case openChatMsg:
		view, err := newChatView(m.deps, typed.contact)
		if err != nil {
			m.contacts.err = err
			return m, nil
		}
		m.chat = view
		m.active = ViewChat
		return m, m.chat.Init()
	case closeChatMsg:
		if m.chat != nil {
			m.chat.Close()
			m.chat = nil
		}
		m.active = ViewContacts
		// Refresh badges and previews on the way back.
		return m, m.contacts.reload()
	case tea.KeyMsg:
		if cmd, handled := m.handleGlobalKey(typed); handled {
			return m, cmd
		}
	}

	if view := m.activeView(); view != nil {
		return m, view.Update(msg)
	}
	return m, nil
}

func (m *Model) View() string {
	view := m.activeView()
	if view == nil {
		return "no active view"
	}
	header := m.renderHeader()
	footer := m.renderFooter()
	contentHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if contentHeight < 0 {
		contentHeight = 0
	}
	body := view.View(m.width, contentHeight, m.theme)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m *Model) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c":
		m.Close()
		return tea.Quit, true
	case "q":
		// Only a global quit on the contacts screen; in chat "q" is text.
		if m.active == ViewContacts && !m.contacts.searching {
			m.Close()
			return tea.Quit, true
		}
	}
	return nil, false
}

func (m *Model) activeView() viewModel {
	if m.active == ViewChat && m.chat != nil {
		return m.chat
	}
	return m.contacts
}

// Close tears down live subscriptions before the program exits.
func (m *Model) Close() {
	if m.chat != nil {
		m.chat.Close()
		m.chat = nil
	}
	if m.contacts != nil {
		m.contacts.Close()
	}
}

func (m *Model) renderHeader() string {
	title := "weconnect"
	if m.active == ViewChat && m.chat != nil {
		title = fmt.Sprintf("weconnect · %s", m.chat.contact.DisplayName)
	}
	return m.theme.headerStyle().Render(title)
}

func (m *Model) renderFooter() string {
	hints := "↑/↓ select · enter open · / search · q quit"
	if m.active == ViewChat {
		hints = "enter send · pgup older · esc back"
	}
	return m.theme.footerStyle().Render(hints)
}
