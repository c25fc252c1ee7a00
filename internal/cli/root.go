package cli

import (
	"github.com/spf13/cobra"
)

// Execute runs the CLI command tree.
func Execute(version string) error {
	return newRootCmd(version).Execute()
}

func newRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "weconnect",
		Short:         "One-to-one chat from the terminal",
		Long:          "weconnect is a one-to-one chat client: contacts, presence, and live message feeds.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	cmd.PersistentFlags().String("config", "", "Config file path")

	cmd.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newContactsCmd(),
		newUseCmd(),
		newSendCmd(),
		newTailCmd(),
		newExportCmd(),
	)

	return cmd
}
