package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/storify"
)

var (
	diffContext     int
	diffIgnoreSpace bool
	diffSizeLimit   int64
	diffForce       bool
)

var diffCmd = &cobra.Command{
	Use:   "diff <left> <right>",
	Short: "Compare two files as a unified diff",
	Long: `Compare two text files and print a unified diff consumable by patch
tooling. Identical files print nothing and succeed. Both files load fully
into memory, so a per-file size guard (default 10 MB) rejects large inputs
unless raised with -s or disabled with -f. Content output: --json does not
apply.

Examples:
  storify diff /etc/app.conf /etc/app.conf.bak
  storify diff -U 0 -w /a.txt /b.txt
  storify diff -s 100 /big-a.json /big-b.json`,
	Args: exactArgs(2),
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().IntVarP(&diffContext, "context", "U", 3, "unchanged lines shown around each hunk")
	diffCmd.Flags().BoolVarP(&diffIgnoreSpace, "ignore-trailing-space", "w", false, "ignore trailing whitespace when comparing")
	diffCmd.Flags().Int64VarP(&diffSizeLimit, "size-limit", "s", 0, "per-file size limit in megabytes (default 10)")
	diffCmd.Flags().BoolVarP(&diffForce, "force", "f", false, "compare regardless of file size")
}

func runDiff(cmd *cobra.Command, args []string) error {
	client, cleanup, err := getClient(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	return client.Diff(cmd.Context(), args[0], args[1], storify.DiffOptions{
		Context:             diffContext,
		IgnoreTrailingSpace: diffIgnoreSpace,
		SizeLimit:           diffSizeLimit,
		Force:               diffForce,
	}, os.Stdout)
}
