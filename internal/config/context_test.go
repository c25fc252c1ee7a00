// Package config provides context persistence tests.
package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestContext_IsEmpty(t *testing.T) {
	tests := []struct {
		name string
		ctx  Context
		want bool
	}{
		{
			name: "empty context",
			ctx:  Context{},
			want: true,
		},
		{
			name: "with peer",
			ctx:  Context{PeerID: "u_123"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ctx.IsEmpty(); got != tt.want {
				t.Errorf("Context.IsEmpty() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContext_String(t *testing.T) {
	tests := []struct {
		name string
		ctx  Context
		want string
	}{
		{
			name: "empty",
			ctx:  Context{},
			want: "(no contact selected)",
		},
		{
			name: "with name",
			ctx:  Context{PeerID: "u_123", PeerName: "Alice"},
			want: "contact:Alice",
		},
		{
			name: "without name",
			ctx:  Context{PeerID: "u_123"},
			want: "contact:u_123",
		},
		{
			name: "long id truncated",
			ctx:  Context{PeerID: "u_1234567890abcdef"},
			want: "contact:u_123456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ctx.String(); got != tt.want {
				t.Errorf("Context.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContext_SetPeer(t *testing.T) {
	ctx := &Context{}
	ctx.SetPeer("u_123", "Alice", "u_123_u_456")

	if ctx.PeerID != "u_123" {
		t.Errorf("PeerID = %v, want u_123", ctx.PeerID)
	}
	if ctx.PeerName != "Alice" {
		t.Errorf("PeerName = %v, want Alice", ctx.PeerName)
	}
	if ctx.ConversationID != "u_123_u_456" {
		t.Errorf("ConversationID = %v, want u_123_u_456", ctx.ConversationID)
	}
	if ctx.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be set")
	}
}

func TestContext_Clear(t *testing.T) {
	ctx := &Context{
		PeerID:         "u_123",
		PeerName:       "Alice",
		ConversationID: "u_123_u_456",
	}

	ctx.Clear()

	if !ctx.IsEmpty() {
		t.Error("context should be empty after Clear")
	}
	if ctx.ConversationID != "" {
		t.Errorf("ConversationID = %v, want empty", ctx.ConversationID)
	}
}

func TestContextStore_SaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewContextStore(filepath.Join(tmpDir, "context.yaml"))

	ctx := &Context{
		PeerID:         "u_abc123",
		PeerName:       "Bob",
		ConversationID: "u_abc123_u_self",
	}

	// Save
	if err := store.Save(ctx); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Load
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if loaded.PeerID != ctx.PeerID {
		t.Errorf("PeerID = %v, want %v", loaded.PeerID, ctx.PeerID)
	}
	if loaded.PeerName != ctx.PeerName {
		t.Errorf("PeerName = %v, want %v", loaded.PeerName, ctx.PeerName)
	}
	if loaded.ConversationID != ctx.ConversationID {
		t.Errorf("ConversationID = %v, want %v", loaded.ConversationID, ctx.ConversationID)
	}
}

func TestContextStore_LoadEmpty(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewContextStore(filepath.Join(tmpDir, "context.yaml"))

	// Load non-existent file should return empty context
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !loaded.IsEmpty() {
		t.Error("Load() should return empty context for non-existent file")
	}
}

func TestContextStore_Clear(t *testing.T) {
	tmpDir := t.TempDir()
	contextPath := filepath.Join(tmpDir, "context.yaml")
	store := NewContextStore(contextPath)

	ctx := &Context{
		PeerID:   "u_abc123",
		PeerName: "Bob",
	}

	// Save first
	if err := store.Save(ctx); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Verify file exists
	if _, err := os.Stat(contextPath); os.IsNotExist(err) {
		t.Fatal("context file should exist after save")
	}

	// Clear
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	// Verify file is removed
	if _, err := os.Stat(contextPath); !os.IsNotExist(err) {
		t.Error("context file should be removed after clear")
	}

	// Load after clear should return empty
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() after Clear() error = %v", err)
	}
	if !loaded.IsEmpty() {
		t.Error("Load() after Clear() should return empty context")
	}
}
