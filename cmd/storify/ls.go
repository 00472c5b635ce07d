package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/storify"
)

var lsRecursive bool

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List a directory or probe a single path",
	Long: `List the entries at a path.

A directory argument lists its children, or the whole subtree with -R. A
file argument lists exactly that file, so ls doubles as an existence probe.
Paths are absolute within the configured backend; the default is the
storage root.

Examples:
  storify ls /
  storify ls -R /logs
  storify --json ls /data`,
	Args: maximumArgs(1),
	RunE: runLs,
}

func init() {
	lsCmd.Flags().BoolVarP(&lsRecursive, "recursive", "R", false, "list the whole subtree")
}

func runLs(cmd *cobra.Command, args []string) error {
	path := "/"
	if len(args) > 0 {
		path = args[0]
	}

	client, cleanup, err := getClient(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	var entries []storify.Entry
	err = client.List(cmd.Context(), path, storify.ListOptions{Recursive: lsRecursive}, func(e storify.Entry) error {
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return err
	}
	return getFormatter().Entries(os.Stdout, entries)
}
