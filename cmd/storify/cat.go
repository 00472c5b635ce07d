package main

import (
	"os"

	"github.com/spf13/cobra"
)

var catCmd = &cobra.Command{
	Use:   "cat <path>...",
	Short: "Print whole files",
	Long: `Stream each file to stdout in argument order, uninterpreted. Content
output: --json does not apply.

Examples:
  storify cat /data/report.csv
  storify cat /data/part-0 /data/part-1 > merged`,
	Args: minimumArgs(1),
	RunE: runCat,
}

func runCat(cmd *cobra.Command, args []string) error {
	client, cleanup, err := getClient(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	return client.Cat(cmd.Context(), args, os.Stdout)
}
