package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shivamdeswal5/weconnect/internal/config"
)

func newContactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "List contacts with previews, unread badges, and presence",
		Args:  cobra.NoArgs,
		RunE:  runContacts,
	}
	cmd.Flags().String("search", "", "Filter by email or name prefix")
	cmd.Flags().String("after", "", "Page cursor from a previous listing")
	cmd.Flags().Int("limit", 0, "Page size (defaults to chat.contacts_page_size)")
	cmd.Flags().Bool("json", false, "Machine-readable output")
	return cmd
}

func runContacts(cmd *cobra.Command, _ []string) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	search, _ := cmd.Flags().GetString("search")
	after, _ := cmd.Flags().GetString("after")
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		limit = app.Cfg.Chat.ContactsPageSize
	}

	list, next, err := app.Directory().Page(cmd.Context(), after, limit, search)
	if err != nil {
		return Exitf(ExitCodeFailure, "list contacts: %v", err)
	}

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		payload, err := json.MarshalIndent(map[string]any{
			"contacts": list,
			"next":     next,
		}, "", "  ")
		if err != nil {
			return Exitf(ExitCodeFailure, "encode contacts: %v", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(payload))
		return nil
	}

	if len(list) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No contacts")
		return nil
	}

	rows := make([][]string, 0, len(list))
	for _, c := range list {
		unread := ""
		if c.UnreadCount > 0 {
			unread = strconv.FormatInt(c.UnreadCount, 10)
		}
		rows = append(rows, []string{
			c.DisplayName,
			c.Email,
			formatYesNo(c.Online),
			unread,
			truncate(c.LastMessage, 40),
			relativeTime(c.LastMessageTime),
		})
	}
	if err := writeTable(cmd.OutOrStdout(), []string{"NAME", "EMAIL", "ONLINE", "UNREAD", "LAST MESSAGE", "WHEN"}, rows); err != nil {
		return Exitf(ExitCodeFailure, "write table: %v", err)
	}
	if next != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "\nMore available: --after %s\n", next)
	}
	return nil
}

func newUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <contact>",
		Short: "Select the contact used by send and tail when no argument is given",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			peer, err := app.resolvePeer(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			conv, err := app.conversationWith(peer.UID)
			if err != nil {
				return err
			}

			store := config.DefaultContextStore()
			saved, err := store.Load()
			if err != nil {
				return Exitf(ExitCodeFailure, "load context: %v", err)
			}
			saved.SetPeer(peer.UID, peer.DisplayName, conv)
			if err := store.Save(saved); err != nil {
				return Exitf(ExitCodeFailure, "save context: %v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Selected %s <%s>\n", peer.DisplayName, peer.Email)
			return nil
		},
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func relativeTime(ms int64) string {
	if ms <= 0 {
		return ""
	}
	d := time.Since(time.UnixMilli(ms))
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
