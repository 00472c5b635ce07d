package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/storify"
)

var copyJobs int

var cpCmd = &cobra.Command{
	Use:   "cp <source> <destination>",
	Short: "Copy within the backend",
	Long: `Copy a file or directory tree to a new path inside the same backend,
server-side where the provider supports it. Copying onto an existing
directory places the source inside it under its own name. Directory copies
run through a bounded worker pool and one failing file does not stop its
siblings.

Examples:
  storify cp /data/report.csv /backup/report.csv
  storify cp /data /backup/data-2026-08
  storify cp --jobs 8 /big-tree /copy-of-big-tree`,
	Args: exactArgs(2),
	RunE: runCp,
}

func init() {
	cpCmd.Flags().IntVar(&copyJobs, "jobs", 0, "parallel file copies for a directory source (default 4)")
}

func runCp(cmd *cobra.Command, args []string) error {
	client, cleanup, err := getClient(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := client.Copy(cmd.Context(), args[0], args[1], storify.CopyOptions{Jobs: copyJobs})
	if report != nil {
		if ferr := getFormatter().Transfers(os.Stdout, report); ferr != nil {
			return ferr
		}
	}
	if err != nil {
		return err
	}
	if report != nil {
		return report.Err()
	}
	return nil
}
