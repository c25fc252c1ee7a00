// Package contacts implements contact discovery for the chat client: a paged
// directory listing decorated with last-message previews, unread badges, and
// online flags, plus live per-contact subscriptions that keep a visible list
// current without refetching.
package contacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/shivamdeswal5/weconnect/internal/chat"
	"github.com/shivamdeswal5/weconnect/internal/remote"
)

const (
	// DefaultPageLimit is the directory page size.
	DefaultPageLimit = 10

	// scanBatch is the raw directory read size used while filtering.
	scanBatch = 50
)

// ErrUnknownUser is returned when no directory record matches a lookup.
var ErrUnknownUser = errors.New("contacts: unknown user")

// User is one directory record at users/{uid}.
type User struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

// Contact is a directory record decorated with conversation state relative to
// the viewing user.
type Contact struct {
	User
	ConversationID  string
	LastMessage     string
	LastMessageTime int64
	UnreadCount     int64
	Online          bool
}

// Directory lists and decorates contacts for one viewing user.
type Directory struct {
	stream remote.Stream
	selfID string
	log    zerolog.Logger
}

// NewDirectory creates a directory view for selfID.
func NewDirectory(stream remote.Stream, selfID string, log zerolog.Logger) *Directory {
	return &Directory{stream: stream, selfID: selfID, log: log}
}

// Register writes a user's directory record. Profile creation proper belongs
// to the signup flow; this is the minimal write the directory needs.
func (d *Directory) Register(ctx context.Context, u User) error {
	if strings.TrimSpace(u.UID) == "" {
		return chat.ErrInvalidParticipant
	}
	if err := d.stream.Write(ctx, remote.UserPath(u.UID), u); err != nil {
		return fmt.Errorf("register user: %w", err)
	}
	return nil
}

// Page returns up to limit contacts after the cursor (a uid; "" starts from
// the beginning), decorated and sorted by last activity, newest first. When
// search is non-empty only contacts whose email or display name has that
// prefix are returned. The second result is the cursor for the next page, ""
// when the directory is exhausted.
func (d *Directory) Page(ctx context.Context, cursor string, limit int, search string) ([]Contact, string, error) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	search = strings.ToLower(strings.TrimSpace(search))

	users := make([]User, 0, limit)
	next := cursor
	for len(users) < limit {
		entries, err := d.stream.GetRangeByKey(ctx, remote.UsersPath, next, scanBatch)
		if err != nil {
			return nil, "", fmt.Errorf("list users: %w", err)
		}
		if len(entries) == 0 {
			next = ""
			break
		}
		for _, e := range entries {
			next = e.Key
			var u User
			if err := json.Unmarshal(e.Value, &u); err != nil {
				d.log.Warn().Err(err).Str("uid", e.Key).Msg("skip undecodable user record")
				continue
			}
			if u.UID == "" {
				u.UID = e.Key
			}
			if u.UID == d.selfID {
				continue
			}
			if !matchesSearch(u, search) {
				continue
			}
			users = append(users, u)
			if len(users) == limit {
				break
			}
		}
		if len(entries) < scanBatch {
			if len(users) < limit {
				next = ""
			}
			break
		}
	}

	contacts := make([]Contact, 0, len(users))
	for _, u := range users {
		c, err := d.decorate(ctx, u)
		if err != nil {
			return nil, "", err
		}
		contacts = append(contacts, c)
	}
	sort.SliceStable(contacts, func(i, j int) bool {
		return contacts[i].LastMessageTime > contacts[j].LastMessageTime
	})
	return contacts, next, nil
}

// FindByEmail scans the directory for an exact email match, case-insensitive.
func (d *Directory) FindByEmail(ctx context.Context, email string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return User{}, ErrUnknownUser
	}
	cursor := ""
	for {
		entries, err := d.stream.GetRangeByKey(ctx, remote.UsersPath, cursor, scanBatch)
		if err != nil {
			return User{}, fmt.Errorf("list users: %w", err)
		}
		if len(entries) == 0 {
			return User{}, ErrUnknownUser
		}
		for _, e := range entries {
			cursor = e.Key
			var u User
			if err := json.Unmarshal(e.Value, &u); err != nil {
				continue
			}
			if strings.ToLower(u.Email) == email {
				if u.UID == "" {
					u.UID = e.Key
				}
				return u, nil
			}
		}
		if len(entries) < scanBatch {
			return User{}, ErrUnknownUser
		}
	}
}

func matchesSearch(u User, search string) bool {
	if search == "" {
		return true
	}
	return strings.HasPrefix(strings.ToLower(u.Email), search) ||
		strings.HasPrefix(strings.ToLower(u.DisplayName), search)
}

// decorate attaches conversation state to one directory record.
func (d *Directory) decorate(ctx context.Context, u User) (Contact, error) {
	conversationID, err := chat.DeriveConversationID(d.selfID, u.UID)
	if err != nil {
		return Contact{}, err
	}
	c := Contact{User: u, ConversationID: conversationID}

	if raw, err := d.stream.Read(ctx, remote.LastMessagePath(conversationID)); err == nil {
		applyPreview(&c, raw)
	} else if !errors.Is(err, remote.ErrNotFound) {
		return Contact{}, fmt.Errorf("read preview: %w", err)
	}

	if raw, err := d.stream.Read(ctx, remote.UnreadPath(d.selfID, conversationID)); err == nil {
		applyUnread(&c, raw)
	} else if !errors.Is(err, remote.ErrNotFound) {
		return Contact{}, fmt.Errorf("read unread: %w", err)
	}

	if raw, err := d.stream.Read(ctx, remote.OnlinePath(u.UID)); err == nil {
		applyOnline(&c, raw)
	} else if !errors.Is(err, remote.ErrNotFound) {
		return Contact{}, fmt.Errorf("read online flag: %w", err)
	}
	return c, nil
}

// WatchContact subscribes to the three live inputs behind one contact row
// (preview, unread badge, online dot) and emits the refreshed contact on
// every change. All three subscriptions are torn down by the returned cancel.
func (d *Directory) WatchContact(ctx context.Context, c Contact) (<-chan Contact, remote.CancelFunc, error) {
	w := &contactWatch{current: c, ch: make(chan Contact, 8)}

	cancelPreview, err := d.stream.SubscribeValue(ctx, remote.LastMessagePath(c.ConversationID), func(raw json.RawMessage) {
		w.apply(func(c *Contact) { applyPreview(c, raw) })
	})
	if err != nil {
		return nil, nil, fmt.Errorf("watch preview: %w", err)
	}
	cancelUnread, err := d.stream.SubscribeValue(ctx, remote.UnreadPath(d.selfID, c.ConversationID), func(raw json.RawMessage) {
		w.apply(func(c *Contact) { applyUnread(c, raw) })
	})
	if err != nil {
		cancelPreview()
		return nil, nil, fmt.Errorf("watch unread: %w", err)
	}
	cancelOnline, err := d.stream.SubscribeValue(ctx, remote.OnlinePath(c.UID), func(raw json.RawMessage) {
		w.apply(func(c *Contact) { applyOnline(c, raw) })
	})
	if err != nil {
		cancelPreview()
		cancelUnread()
		return nil, nil, fmt.Errorf("watch online flag: %w", err)
	}

	w.start()
	cancel := func() {
		cancelPreview()
		cancelUnread()
		cancelOnline()
	}
	return w.ch, cancel, nil
}
