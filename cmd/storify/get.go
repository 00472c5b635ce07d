package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/storify"
)

var (
	getRecursive bool
	getJobs      int
)

var getCmd = &cobra.Command{
	Use:   "get <remote-path> [local-path]",
	Short: "Download to local files",
	Long: `Download a remote file or, with -R, a directory tree. The local path
defaults to the current directory; downloading onto an existing local
directory places the source inside it under its own name. Files download
through a bounded worker pool and one failure does not stop the others.

Examples:
  storify get /data/report.csv
  storify get /data/report.csv ./reports/today.csv
  storify get -R /www ./site-backup`,
	Args: rangeArgs(1, 2),
	RunE: runGet,
}

func init() {
	getCmd.Flags().BoolVarP(&getRecursive, "recursive", "R", false, "download a directory tree")
	getCmd.Flags().IntVar(&getJobs, "jobs", 0, "parallel file downloads (default 4)")
}

func runGet(cmd *cobra.Command, args []string) error {
	local := "."
	if len(args) > 1 {
		local = args[1]
	}

	client, cleanup, err := getClient(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := client.Download(cmd.Context(), args[0], local, storify.TransferOptions{
		Recursive: getRecursive,
		Jobs:      getJobs,
	})
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
