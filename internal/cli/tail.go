package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shivamdeswal5/weconnect/internal/chat"
	"github.com/shivamdeswal5/weconnect/internal/db"
	"github.com/shivamdeswal5/weconnect/internal/logging"
)

func newTailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail [contact]",
		Short: "Print the latest messages of a conversation",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTail,
	}
	cmd.Flags().BoolP("follow", "f", false, "Keep the feed open and print live messages")
	cmd.Flags().Int("limit", 0, "Messages to fetch (defaults to chat.page_size)")
	return cmd
}

func runTail(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	peerArg := ""
	if len(args) == 1 {
		peerArg = args[0]
	}
	peer, err := app.resolvePeer(cmd.Context(), peerArg)
	if err != nil {
		return err
	}
	conv, err := app.conversationWith(peer.UID)
	if err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		limit = app.Cfg.Chat.PageSize
	}

	follow, _ := cmd.Flags().GetBool("follow")
	archive, archiveDB := openArchive(cmd.Context(), app)
	if archiveDB != nil {
		defer func() { _ = archiveDB.Close() }()
	}

	names := map[string]string{
		app.Session.UID: app.Session.DisplayName,
		peer.UID:        peer.DisplayName,
	}

	window := chat.NewWindow(app.Stream, chat.NewCounter(app.Stream), app.Session.UID,
		chat.WithWindowLogger(logging.Component("tail")))
	if err := window.Open(cmd.Context(), conv, limit); err != nil {
		if follow || archive == nil {
			return Exitf(ExitCodeFailure, "open conversation: %v", err)
		}
		// Remote unreachable; serve the local history cache instead.
		cached, cerr := archive.Recent(cmd.Context(), conv, limit)
		if cerr != nil || len(cached) == 0 {
			return Exitf(ExitCodeFailure, "open conversation: %v", err)
		}
		app.Log.Warn().Err(err).Msg("remote unavailable, printing cached history")
		for _, m := range cached {
			printMessage(cmd, names, m)
		}
		return nil
	}
	defer window.Close()

	snapshot := window.Snapshot()
	// An append racing the open can show up in both the snapshot and the
	// live channel; dedupe by store key.
	seen := make(map[string]struct{}, len(snapshot))
	for _, m := range snapshot {
		seen[m.Key] = struct{}{}
		printMessage(cmd, names, m)
	}
	if archive != nil {
		if err := archive.UpsertBatch(cmd.Context(), conv, snapshot); err != nil {
			app.Log.Warn().Err(err).Msg("archive messages")
		}
	}

	if !follow {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-window.Live():
			if !ok {
				return nil
			}
			if _, dup := seen[m.Key]; dup {
				continue
			}
			seen[m.Key] = struct{}{}
			printMessage(cmd, names, m)
			if archive != nil {
				if err := archive.UpsertBatch(ctx, conv, []chat.Message{m}); err != nil {
					app.Log.Warn().Err(err).Msg("archive message")
				}
			}
		}
	}
}

// openArchive opens the local history cache; cache failures degrade to
// remote-only operation.
func openArchive(ctx context.Context, app *App) (*db.MessageRepository, *db.DB) {
	if err := app.Cfg.EnsureDirectories(); err != nil {
		app.Log.Warn().Err(err).Msg("prepare data dir")
		return nil, nil
	}
	database, err := db.Open(ctx, app.Cfg.DatabasePath(), app.Cfg.Database.BusyTimeoutMs)
	if err != nil {
		app.Log.Warn().Err(err).Msg("open history cache")
		return nil, nil
	}
	return db.NewMessageRepository(database), database
}

func printMessage(cmd *cobra.Command, names map[string]string, m chat.Message) {
	name := names[m.SenderID]
	if name == "" {
		name = m.SenderID
	}
	ts := time.UnixMilli(m.Timestamp).Format("15:04")
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", ts, name, m.Text)
}
