package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/storify"
)

var (
	tailLines   int64
	tailBytes   int64
	tailVerbose bool
)

var tailCmd = &cobra.Command{
	Use:   "tail <path>...",
	Short: "Print the end of files",
	Long: `Print the last bytes or lines of each file. Without -n or -c the last 10
lines are shown. Backends with ranged reads serve tails without downloading
the whole object. With several paths each file gets a ==> path <== header;
-q (global) suppresses it, -v forces it even for one path. Content output:
--json does not apply.

Examples:
  storify tail /logs/app.log
  storify tail -n 50 /logs/app.log
  storify tail -c 4096 /logs/app.log /logs/err.log`,
	Args: minimumArgs(1),
	RunE: runTail,
}

func init() {
	tailCmd.Flags().Int64VarP(&tailLines, "lines", "n", 0, "print the last N lines")
	tailCmd.Flags().Int64VarP(&tailBytes, "bytes", "c", 0, "print the last N bytes")
	tailCmd.Flags().BoolVarP(&tailVerbose, "verbose", "v", false, "always print file headers")
}

func runTail(cmd *cobra.Command, args []string) error {
	client, cleanup, err := getClient(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	return client.Tail(cmd.Context(), args, storify.ReadOptions{
		Lines:   tailLines,
		Bytes:   tailBytes,
		Quiet:   quiet,
		Verbose: tailVerbose,
	}, os.Stdout)
}
