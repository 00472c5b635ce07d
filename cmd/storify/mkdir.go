package main

import (
	"os"

	"github.com/spf13/cobra"
)

var mkdirParents bool

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a directory",
	Long: `Create a directory. Creating one that already exists succeeds without
effect. Without -p the parent must already exist.

Examples:
  storify mkdir /data/reports
  storify mkdir -p /data/2026/08/25`,
	Args: exactArgs(1),
	RunE: runMkdir,
}

func init() {
	mkdirCmd.Flags().BoolVarP(&mkdirParents, "parents", "p", false, "create missing parent directories")
}

func runMkdir(cmd *cobra.Command, args []string) error {
	client, cleanup, err := getClient(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	if err := client.MakeDir(cmd.Context(), args[0], mkdirParents); err != nil {
		return err
	}
	return getFormatter().Mkdir(os.Stdout, args[0])
}
