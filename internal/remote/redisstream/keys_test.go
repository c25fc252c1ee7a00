package redisstream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyLayoutDistinct(t *testing.T) {
	path := "messages/alice_bob"
	keys := []string{
		rangeKey(path), bodyKey(path), valueKey(path),
		childIndexKey(path), valueChannel(path), appendChannel(path),
	}
	seen := map[string]bool{}
	for _, k := range keys {
		require.True(t, strings.HasPrefix(k, keyPrefix+":"))
		require.True(t, strings.HasSuffix(k, path))
		require.False(t, seen[k], "duplicate key %q", k)
		seen[k] = true
	}
}

func TestSplitChild(t *testing.T) {
	tests := []struct {
		path, parent, child string
		ok                  bool
	}{
		{"users/u1", "users", "u1", true},
		{"unreadMessages/u1/c1", "unreadMessages/u1", "c1", true},
		{"users", "", "", false},
		{"users/", "", "", false},
		{"/users", "", "", false},
	}
	for _, tt := range tests {
		parent, child, ok := splitChild(tt.path)
		require.Equal(t, tt.ok, ok, tt.path)
		require.Equal(t, tt.parent, parent, tt.path)
		require.Equal(t, tt.child, child, tt.path)
	}
}

func TestNewEntryKeyOrdersByCreation(t *testing.T) {
	a := newEntryKey()
	b := newEntryKey()
	require.NotEqual(t, a, b)
	require.LessOrEqual(t, a[:13], b[:13])
}
