package main

import (
	"os"

	"github.com/spf13/cobra"
)

var mvCmd = &cobra.Command{
	Use:   "mv <source> <destination>",
	Short: "Move or rename within the backend",
	Long: `Move a file or directory tree to a new path inside the same backend.
Hierarchical backends rename natively; flat object stores copy then delete,
and the source stays intact when any copy fails.

Examples:
  storify mv /staging/run-42 /archive/run-42
  storify mv /a.txt /b.txt`,
	Args: exactArgs(2),
	RunE: runMv,
}

func runMv(cmd *cobra.Command, args []string) error {
	client, cleanup, err := getClient(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	if err := client.Move(cmd.Context(), args[0], args[1]); err != nil {
		return err
	}
	return getFormatter().Moved(os.Stdout, args[0], args[1])
}
