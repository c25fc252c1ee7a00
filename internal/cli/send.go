package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shivamdeswal5/weconnect/internal/chat"
	"github.com/shivamdeswal5/weconnect/internal/logging"
)

func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send [contact] [text]",
		Short: "Send a message",
		Long:  "Send a message to a contact. With no contact argument the selected contact is used; with no text the body is read from stdin.",
		Args:  cobra.MaximumNArgs(2),
		RunE:  runSend,
	}
	cmd.Flags().String("file", "", "Read the message body from a file")
	cmd.Flags().Bool("json", false, "Print the stored message as JSON")
	return cmd
}

func runSend(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	peerArg := ""
	bodyArg := ""
	switch len(args) {
	case 1:
		bodyArg = args[0]
	case 2:
		peerArg = args[0]
		bodyArg = args[1]
	}

	filePath, _ := cmd.Flags().GetString("file")
	text, err := resolveSendBody(cmd, bodyArg, filePath)
	if err != nil {
		return err
	}

	peer, err := app.resolvePeer(cmd.Context(), peerArg)
	if err != nil {
		return err
	}

	sender := chat.NewSender(app.Stream, chat.NewCounter(app.Stream), app.Session.UID,
		chat.WithSenderLogger(logging.Component("send")))
	msg, err := sender.Send(cmd.Context(), peer.UID, text)
	if err != nil {
		return Exitf(ExitCodeFailure, "send: %v", err)
	}

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		payload, err := json.MarshalIndent(msg, "", "  ")
		if err != nil {
			return Exitf(ExitCodeFailure, "encode message: %v", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(payload))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg.Key)
	return nil
}

func resolveSendBody(cmd *cobra.Command, bodyArg, filePath string) (string, error) {
	bodyArgTrim := strings.TrimSpace(bodyArg)
	filePath = strings.TrimSpace(filePath)

	if filePath != "" && bodyArgTrim != "" {
		return "", usageError(cmd, "provide either a message argument or --file, not both")
	}

	var raw string
	switch {
	case filePath != "":
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", Exitf(ExitCodeFailure, "read file: %v", err)
		}
		raw = string(data)
	case bodyArgTrim != "":
		raw = bodyArg
	default:
		data, err := readStdinIfPiped()
		if err != nil {
			return "", Exitf(ExitCodeFailure, "read stdin: %v", err)
		}
		raw = data
	}

	if strings.TrimSpace(raw) == "" {
		return "", usageError(cmd, "message body is required")
	}
	return raw, nil
}

func readStdinIfPiped() (string, error) {
	info, err := os.Stdin.Stat()
	if err != nil {
		return "", err
	}
	if info.Mode()&os.ModeCharDevice != 0 {
		return "", nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
