// Package main is the entry point for the weconnect client.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/shivamdeswal5/weconnect/internal/chattui"
	"github.com/shivamdeswal5/weconnect/internal/cli"
)

// Version information (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	fullVersion := fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	// Default entrypoint: launch the TUI when invoked with no args.
	if len(os.Args) == 1 {
		if err := chattui.Execute(fullVersion); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := cli.Execute(fullVersion); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			if !exitErr.Printed {
				fmt.Fprintf(os.Stderr, "Error: %v\n", exitErr.Err)
			}
			os.Exit(exitErr.Code)
		}

		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
