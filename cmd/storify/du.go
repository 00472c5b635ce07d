package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/storify"
)

var duSummary bool

var duCmd = &cobra.Command{
	Use:   "du [path]",
	Short: "Report cumulative disk usage",
	Long: `Report cumulative byte totals per directory under a path, children before
their parent with the argument itself last. -s keeps only the total.

Examples:
  storify du /data
  storify du -s /
  storify --json du /data`,
	Args: maximumArgs(1),
	RunE: runDu,
}

func init() {
	duCmd.Flags().BoolVarP(&duSummary, "summary", "s", false, "print only the total for the argument")
}

func runDu(cmd *cobra.Command, args []string) error {
	path := "/"
	if len(args) > 0 {
		path = args[0]
	}

	client, cleanup, err := getClient(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	var rows []storify.DuRow
	_, err = client.DiskUsage(cmd.Context(), path, storify.DuOptions{Summary: duSummary}, func(r storify.DuRow) error {
		rows = append(rows, r)
		return nil
	})
	if err != nil {
		return err
	}
	return getFormatter().Du(os.Stdout, rows)
}
