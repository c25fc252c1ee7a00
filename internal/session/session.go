// Package session holds the client's current-user identity. Credential
// issuance is out of scope; this package only persists the already-issued
// identity between runs and hands it to components as explicit parameters.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoSession is returned when no identity has been stored.
var ErrNoSession = errors.New("session: not signed in")

// Session is the signed-in user's identity.
type Session struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// Store persists the current session.
type Store interface {
	Current() (Session, error)
	Save(Session) error
	Clear() error
}

// FileStore keeps the session in a JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a store at the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Current implements Store.
func (s *FileStore) Current() (Session, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	if strings.TrimSpace(sess.UID) == "" {
		return Session{}, ErrNoSession
	}
	return sess, nil
}

// Save implements Store.
func (s *FileStore) Save(sess Session) error {
	if strings.TrimSpace(sess.UID) == "" {
		return fmt.Errorf("session: missing uid")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Clear implements Store.
func (s *FileStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
