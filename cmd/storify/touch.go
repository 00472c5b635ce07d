package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/storify"
)

var (
	touchNoCreate bool
	touchTruncate bool
	touchParents  bool
)

var touchCmd = &cobra.Command{
	Use:   "touch <path>...",
	Short: "Create empty files",
	Long: `Ensure each path exists as a file, creating it empty when missing.
Existing files are left as they are unless -t empties them. Directory paths
are rejected; use mkdir. One failing path does not stop the others.

Examples:
  storify touch /data/.keep
  storify touch -t /logs/app.log
  storify touch -p /brand/new/dir/file.txt`,
	Args: minimumArgs(1),
	RunE: runTouch,
}

func init() {
	touchCmd.Flags().BoolVarP(&touchNoCreate, "no-create", "c", false, "do not create missing files")
	touchCmd.Flags().BoolVarP(&touchTruncate, "truncate", "t", false, "empty files that already exist")
	touchCmd.Flags().BoolVarP(&touchParents, "parents", "p", false, "create missing parent directories")
}

func runTouch(cmd *cobra.Command, args []string) error {
	client, cleanup, err := getClient(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	results, err := client.Touch(cmd.Context(), args, storify.TouchOptions{
		NoCreate: touchNoCreate,
		Truncate: touchTruncate,
		Parents:  touchParents,
	})
	if results != nil {
		if ferr := getFormatter().Touch(os.Stdout, results); ferr != nil {
			return ferr
		}
	}
	return err
}
