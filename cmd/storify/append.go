package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/storify"
)

var (
	appendNoCreate bool
	appendParents  bool
)

var appendCmd = &cobra.Command{
	Use:   "append <path> [local-file]",
	Short: "Append bytes to the end of a file",
	Long: `Append the contents of a local file, or stdin when the second argument is
omitted or -, to the end of a remote file. A missing target is created
unless -c. Backends without native append fall back to an atomic
read-concat-rewrite.

Examples:
  echo "$(date) rotated" | storify append /logs/events.log
  storify append /logs/events.log batch.log
  storify append -c /logs/must-exist.log batch.log`,
	Args: rangeArgs(1, 2),
	RunE: runAppend,
}

func init() {
	appendCmd.Flags().BoolVarP(&appendNoCreate, "no-create", "c", false, "fail when the target does not exist")
	appendCmd.Flags().BoolVarP(&appendParents, "parents", "p", false, "create missing parent directories")
}

func runAppend(cmd *cobra.Command, args []string) error {
	var src io.Reader = os.Stdin
	if len(args) == 2 && args[1] != "-" {
		f, err := os.Open(args[1])
		if err != nil {
			return fmt.Errorf("open append source: %w", err)
		}
		defer f.Close()
		src = f
	}

	client, cleanup, err := getClient(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	n, err := client.Append(cmd.Context(), args[0], src, storify.AppendOptions{
		NoCreate: appendNoCreate,
		Parents:  appendParents,
	})
	if err != nil {
		return err
	}
	return getFormatter().Appended(os.Stdout, args[0], n)
}
