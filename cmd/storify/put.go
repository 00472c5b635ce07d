package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/storify"
)

var (
	putRecursive bool
	putJobs      int
)

var putCmd = &cobra.Command{
	Use:   "put <local-path> <remote-path>",
	Short: "Upload local files",
	Long: `Upload a local file or, with -R, a directory tree. A single file landing
on an existing remote directory goes inside it under its own name; a
directory's contents land directly under the remote path. Files upload
through a bounded worker pool and one failure does not stop the others; a
partial failure exits non-zero after reporting every file.

Examples:
  storify put report.csv /data/report.csv
  storify put -R ./site /www
  storify put -R --jobs 8 ./logs /archive/logs`,
	Args: exactArgs(2),
	RunE: runPut,
}

func init() {
	putCmd.Flags().BoolVarP(&putRecursive, "recursive", "R", false, "upload a directory tree")
	putCmd.Flags().IntVar(&putJobs, "jobs", 0, "parallel file uploads (default 4)")
}

func runPut(cmd *cobra.Command, args []string) error {
	client, cleanup, err := getClient(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := client.Upload(cmd.Context(), args[0], args[1], storify.TransferOptions{
		Recursive: putRecursive,
		Jobs:      putJobs,
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
