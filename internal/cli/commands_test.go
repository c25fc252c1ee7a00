package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd("dev")

	for _, name := range []string{"login", "logout", "whoami", "contacts", "use", "send", "tail", "export"} {
		found, _, err := root.Find([]string{name})
		require.NoError(t, err)
		require.Equal(t, name, found.Name())
	}
}

func TestRootCommandCarriesVersion(t *testing.T) {
	full := "1.2.3 (commit: abc1234, built: 2026-08-30)"
	require.Equal(t, full, newRootCmd(full).Version)
}

func TestExitfCarriesCode(t *testing.T) {
	err := Exitf(ExitCodeFailure, "boom: %s", "reason")

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, ExitCodeFailure, exitErr.Code)
	require.Equal(t, "boom: reason", exitErr.Error())
	require.False(t, exitErr.Printed)
}

func TestResolveSendBodyRejectsBothSources(t *testing.T) {
	cmd := newSendCmd()
	cmd.SetErr(&bytes.Buffer{})

	_, err := resolveSendBody(cmd, "hello", "/tmp/body.txt")
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, ExitCodeUsage, exitErr.Code)
}

func TestResolveSendBodyFromArg(t *testing.T) {
	cmd := newSendCmd()

	body, err := resolveSendBody(cmd, "  hello there ", "")
	require.NoError(t, err)
	require.Equal(t, "  hello there ", body)
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", truncate("short", 10))
	require.Equal(t, "exactlyten", truncate("exactlyten", 10))
	require.Equal(t, "toolon...", truncate("toolongvalue", 9))
}

func TestRelativeTime(t *testing.T) {
	now := time.Now()
	require.Equal(t, "", relativeTime(0))
	require.Equal(t, "now", relativeTime(now.UnixMilli()))
	require.Equal(t, "5m ago", relativeTime(now.Add(-5*time.Minute).UnixMilli()))
	require.Equal(t, "3h ago", relativeTime(now.Add(-3*time.Hour).UnixMilli()))
	require.Equal(t, "2d ago", relativeTime(now.Add(-49*time.Hour).UnixMilli()))
}

func TestWriteTableAlignsColumns(t *testing.T) {
	var buf bytes.Buffer
	err := writeTable(&buf, []string{"NAME", "ONLINE"}, [][]string{
		{"Alice", "yes"},
		{"Bob", "no"},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[0], "NAME"))
	// ONLINE column starts at the same offset on every line.
	offset := strings.Index(lines[0], "ONLINE")
	require.Equal(t, offset, strings.Index(lines[1], "yes"))
	require.Equal(t, offset, strings.Index(lines[2], "no"))
}
