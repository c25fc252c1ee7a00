package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shivamdeswal5/weconnect/internal/chat"
	"github.com/shivamdeswal5/weconnect/internal/remote"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [contact]",
		Short: "Export the full history of a conversation",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runExport,
	}
	cmd.Flags().Bool("json", false, "JSON output instead of text")
	cmd.Flags().Bool("local", false, "Read from the local cache instead of the remote store")
	cmd.Flags().Bool("prune", false, "Drop the conversation from the local cache after exporting")
	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
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

	archive, archiveDB := openArchive(cmd.Context(), app)
	if archiveDB != nil {
		defer func() { _ = archiveDB.Close() }()
	}

	var msgs []chat.Message
	if local, _ := cmd.Flags().GetBool("local"); local {
		if archive == nil {
			return Exitf(ExitCodeFailure, "local cache unavailable")
		}
		msgs, err = archive.All(cmd.Context(), conv)
		if err != nil {
			return Exitf(ExitCodeFailure, "read cache: %v", err)
		}
	} else {
		entries, err := app.Stream.GetRange(cmd.Context(), remote.MessagesPath(conv), remote.RangeQuery{})
		if err != nil {
			return Exitf(ExitCodeFailure, "fetch history: %v", err)
		}
		msgs = make([]chat.Message, 0, len(entries))
		for _, e := range entries {
			var m chat.Message
			if err := json.Unmarshal(e.Value, &m); err != nil {
				app.Log.Warn().Err(err).Str("key", e.Key).Msg("skip undecodable message")
				continue
			}
			m.Key = e.Key
			msgs = append(msgs, m)
		}
		if archive != nil {
			if err := archive.UpsertBatch(cmd.Context(), conv, msgs); err != nil {
				app.Log.Warn().Err(err).Msg("archive messages")
			}
		}
	}

	if prune, _ := cmd.Flags().GetBool("prune"); prune {
		if archive == nil {
			return Exitf(ExitCodeFailure, "local cache unavailable")
		}
		if err := archive.Prune(cmd.Context(), conv); err != nil {
			return Exitf(ExitCodeFailure, "prune cache: %v", err)
		}
	}

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		payload, err := json.MarshalIndent(map[string]any{
			"conversation": conv,
			"messages":     msgs,
		}, "", "  ")
		if err != nil {
			return Exitf(ExitCodeFailure, "encode history: %v", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(payload))
		return nil
	}

	names := map[string]string{
		app.Session.UID: app.Session.DisplayName,
		peer.UID:        peer.DisplayName,
	}
	for _, m := range msgs {
		name := names[m.SenderID]
		if name == "" {
			name = m.SenderID
		}
		ts := time.UnixMilli(m.Timestamp).Format("2006-01-02 15:04:05")
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", ts, name, m.Text)
	}
	return nil
}
