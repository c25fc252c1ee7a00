package chattui

import (
	"context"
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/shivamdeswal5/weconnect/internal/chat"
	"github.com/shivamdeswal5/weconnect/internal/config"
	"github.com/shivamdeswal5/weconnect/internal/contacts"
	"github.com/shivamdeswal5/weconnect/internal/logging"
	"github.com/shivamdeswal5/weconnect/internal/remote"
	"github.com/shivamdeswal5/weconnect/internal/remote/memstream"
	"github.com/shivamdeswal5/weconnect/internal/session"
)

func testDeps(t *testing.T, stream remote.Stream) Deps {
	t.Helper()
	return Deps{
		Cfg: config.DefaultConfig(),
		Session: session.Session{
			UID:         "alice",
			Email:       "alice@example.com",
			DisplayName: "alice",
		},
		Stream: stream,
	}
}

func registerUsers(t *testing.T, stream remote.Stream, uids ...string) {
	t.Helper()
	dir := contacts.NewDirectory(stream, "", logging.Component("test"))
	for _, uid := range uids {
		require.NoError(t, dir.Register(context.Background(), contacts.User{
			UID:         uid,
			Email:       uid + "@example.com",
			DisplayName: uid,
		}))
	}
}

func TestContactsViewLoadsAndOpensChat(t *testing.T) {
	stream := memstream.New()
	defer func() { _ = stream.Close() }()
	registerUsers(t, stream, "alice", "bob", "carol")

	view := newContactsView(testDeps(t, stream))
	msg := view.reload()()
	loaded, ok := msg.(contactsLoadedMsg)
	require.True(t, ok)
	require.NoError(t, loaded.err)
	require.Len(t, loaded.list, 2) // self excluded
	view.Update(loaded)
	defer view.Close()

	view.handleKey(tea.KeyMsg{Type: tea.KeyDown})
	cmd := view.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	open, ok := cmd().(openChatMsg)
	require.True(t, ok)
	require.Contains(t, []string{"bob", "carol"}, open.contact.UID)
}

func TestContactsViewSearchFilters(t *testing.T) {
	stream := memstream.New()
	defer func() { _ = stream.Close() }()
	registerUsers(t, stream, "alice", "bob", "bonnie", "carol")

	view := newContactsView(testDeps(t, stream))
	view.search = "bo"
	msg := view.reload()()
	loaded := msg.(contactsLoadedMsg)
	require.NoError(t, loaded.err)
	require.Len(t, loaded.list, 2)
	for _, c := range loaded.list {
		require.Contains(t, []string{"bob", "bonnie"}, c.UID)
	}
}

func seedConversation(t *testing.T, stream remote.Stream, conv string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := stream.Push(context.Background(), remote.MessagesPath(conv), int64(1000+i), chat.Message{
			Text:      fmt.Sprintf("msg-%d", i),
			SenderID:  "bob",
			Timestamp: int64(1000 + i),
		})
		require.NoError(t, err)
	}
}

func openTestChat(t *testing.T, stream remote.Stream) *chatView {
	t.Helper()
	deps := testDeps(t, stream)
	view, err := newChatView(deps, contacts.Contact{
		User: contacts.User{UID: "bob", DisplayName: "bob", Email: "bob@example.com"},
	})
	require.NoError(t, err)
	t.Cleanup(view.Close)
	return view
}

func TestChatViewOlderPageKeepsScrollAnchor(t *testing.T) {
	stream := memstream.New()
	defer func() { _ = stream.Close() }()
	conv, err := chat.DeriveConversationID("alice", "bob")
	require.NoError(t, err)
	seedConversation(t, stream, conv, 45)

	view := openTestChat(t, stream)
	require.Len(t, view.msgs, 20)

	view.offset = 3
	msg := view.loadOlderCmd()()
	older, ok := msg.(olderLoadedMsg)
	require.True(t, ok)
	require.NoError(t, older.err)
	require.Len(t, older.page, 20)

	view.Update(older)
	require.Len(t, view.msgs, 40)
	// Distance from the bottom is unchanged, so the same message stays in
	// view after the prepend.
	require.Equal(t, 3, view.offset)
	require.Equal(t, "msg-25", view.msgs[20].Text)
}

func TestChatViewLiveAppendWhileScrolledUp(t *testing.T) {
	stream := memstream.New()
	defer func() { _ = stream.Close() }()
	conv, err := chat.DeriveConversationID("alice", "bob")
	require.NoError(t, err)
	seedConversation(t, stream, conv, 5)

	view := openTestChat(t, stream)
	view.offset = 2

	view.Update(liveMsg{msg: chat.Message{Key: "k-live", Text: "new", SenderID: "bob", Timestamp: chat.NowMillis()}})
	require.Equal(t, 3, view.offset)
	require.Equal(t, "new", view.msgs[len(view.msgs)-1].Text)

	// At the bottom the viewport follows new messages.
	view.offset = 0
	view.Update(liveMsg{msg: chat.Message{Key: "k-live2", Text: "newer", SenderID: "bob", Timestamp: chat.NowMillis()}})
	require.Equal(t, 0, view.offset)
}

func TestChatViewComposeAndSend(t *testing.T) {
	stream := memstream.New()
	defer func() { _ = stream.Close() }()

	view := openTestChat(t, stream)

	view.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hi")})
	require.Equal(t, "hi", view.compose)

	cmd := view.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	require.Empty(t, view.compose)

	sent, ok := cmd().(sentMsg)
	require.True(t, ok)
	require.NoError(t, sent.err)

	// The sent message comes back through the live feed.
	msg := waitLive(view.window.Live())()
	live, ok := msg.(liveMsg)
	require.True(t, ok)
	require.Equal(t, "hi", live.msg.Text)
	require.Equal(t, "alice", live.msg.SenderID)
}

func TestChatViewDropsDuplicateLiveKeys(t *testing.T) {
	stream := memstream.New()
	defer func() { _ = stream.Close() }()
	conv, err := chat.DeriveConversationID("alice", "bob")
	require.NoError(t, err)
	seedConversation(t, stream, conv, 5)

	view := openTestChat(t, stream)
	require.Len(t, view.msgs, 5)

	// A message racing the open can arrive both in the snapshot and on the
	// live channel; the second delivery must not duplicate the row.
	view.Update(liveMsg{msg: view.msgs[4]})
	require.Len(t, view.msgs, 5)
}

func TestChatViewEscClosesChat(t *testing.T) {
	stream := memstream.New()
	defer func() { _ = stream.Close() }()

	view := openTestChat(t, stream)
	cmd := view.handleKey(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	_, ok := cmd().(closeChatMsg)
	require.True(t, ok)
}
