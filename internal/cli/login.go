package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shivamdeswal5/weconnect/internal/contacts"
	"github.com/shivamdeswal5/weconnect/internal/logging"
	"github.com/shivamdeswal5/weconnect/internal/session"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Sign in and register in the contact directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runLogin,
	}
	cmd.Flags().String("name", "", "Display name (defaults to the email local part)")
	cmd.Flags().String("uid", "", "Explicit uid (defaults to a generated one)")
	return cmd
}

func runLogin(cmd *cobra.Command, args []string) error {
	email := strings.ToLower(strings.TrimSpace(args[0]))
	if email == "" || !strings.Contains(email, "@") {
		return usageError(cmd, "a valid email is required")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	initLogging(cfg)
	if err := cfg.EnsureDirectories(); err != nil {
		return Exitf(ExitCodeFailure, "prepare directories: %v", err)
	}

	name, _ := cmd.Flags().GetString("name")
	if strings.TrimSpace(name) == "" {
		name = email[:strings.Index(email, "@")]
	}
	uid, _ := cmd.Flags().GetString("uid")

	stream, err := connectStream(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = stream.Close() }()

	ctx := cmd.Context()
	dir := contacts.NewDirectory(stream, "", logging.Component("contacts"))

	// Reuse an existing directory record for this email so logging in from a
	// new machine keeps the same identity.
	existing, err := dir.FindByEmail(ctx, email)
	switch {
	case err == nil:
		uid = existing.UID
	case !errors.Is(err, contacts.ErrUnknownUser):
		return Exitf(ExitCodeFailure, "look up email: %v", err)
	case uid == "":
		uid = uuid.NewString()
	}

	user := contacts.User{UID: uid, Email: email, DisplayName: name}
	if err := dir.Register(ctx, user); err != nil {
		return Exitf(ExitCodeFailure, "register: %v", err)
	}

	store := session.NewFileStore(cfg.SessionPath())
	if err := store.Save(session.Session{UID: uid, Email: email, DisplayName: name}); err != nil {
		return Exitf(ExitCodeFailure, "save session: %v", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s <%s> (%s)\n", name, email, uid)
	return nil
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := session.NewFileStore(cfg.SessionPath()).Clear(); err != nil {
				return Exitf(ExitCodeFailure, "clear session: %v", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in identity",
		Args:  cobra.NoArgs,
		RunE:  runWhoami,
	}
	cmd.Flags().Bool("json", false, "Machine-readable output")
	return cmd
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sess, err := session.NewFileStore(cfg.SessionPath()).Current()
	if err != nil {
		return Exitf(ExitCodeFailure, "not logged in")
	}

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		payload, err := json.MarshalIndent(sess, "", "  ")
		if err != nil {
			return Exitf(ExitCodeFailure, "encode session: %v", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(payload))
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> (%s)\n", sess.DisplayName, sess.Email, sess.UID)
	return nil
}
