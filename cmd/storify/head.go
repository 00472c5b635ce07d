package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/storify"
)

var (
	headLines   int64
	headBytes   int64
	headVerbose bool
)

var headCmd = &cobra.Command{
	Use:   "head <path>...",
	Short: "Print the beginning of files",
	Long: `Print the first bytes or lines of each file. Without -n or -c the first
1024 bytes are shown. With several paths each file gets a ==> path <==
header; -q (global) suppresses it, -v forces it even for one path. Content
output: --json does not apply.

Examples:
  storify head /logs/app.log
  storify head -n 20 /logs/app.log /logs/err.log
  storify head -c 256 /data/blob.bin`,
	Args: minimumArgs(1),
	RunE: runHead,
}

func init() {
	headCmd.Flags().Int64VarP(&headLines, "lines", "n", 0, "print the first N lines")
	headCmd.Flags().Int64VarP(&headBytes, "bytes", "c", 0, "print the first N bytes")
	headCmd.Flags().BoolVarP(&headVerbose, "verbose", "v", false, "always print file headers")
}

func runHead(cmd *cobra.Command, args []string) error {
	client, cleanup, err := getClient(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	return client.Head(cmd.Context(), args, storify.ReadOptions{
		Lines:   headLines,
		Bytes:   headBytes,
		Quiet:   quiet,
		Verbose: headVerbose,
	}, os.Stdout)
}
