package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/sagarc03/storify"
)

var (
	removeRecursive bool
	removeForce     bool
)

var rmCmd = &cobra.Command{
	Use:   "rm <path>...",
	Short: "Delete files and directories",
	Long: `Delete each path. Directories need -R and are emptied children first. A
missing path is an error, never silently ignored; one failing path does not
stop the others. Without -f the paths are shown and a confirmation is asked
before anything is deleted. Declining leaves everything intact and exits
non-zero.

Examples:
  storify rm /tmp/scratch.txt
  storify rm -Rf /tmp/build
  storify rm -f /a.txt /b.txt /c.txt`,
	Args: minimumArgs(1),
	RunE: runRm,
}

func init() {
	rmCmd.Flags().BoolVarP(&removeRecursive, "recursive", "R", false, "delete directories and their contents")
	rmCmd.Flags().BoolVarP(&removeForce, "force", "f", false, "skip the confirmation prompt")
}

func runRm(cmd *cobra.Command, args []string) error {
	if err := confirmRemoval(args); err != nil {
		return err
	}

	client, cleanup, err := getClient(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	results, err := client.Remove(cmd.Context(), args, storify.RemoveOptions{Recursive: removeRecursive})
	if results != nil {
		if ferr := getFormatter().Remove(os.Stdout, results); ferr != nil {
			return ferr
		}
	}
	return err
}

// confirmRemoval asks before the first delete. Nothing may be removed once
// the user declines, so this runs before the backend is even opened.
func confirmRemoval(paths []string) error {
	if removeForce {
		return nil
	}
	if nonInteractive {
		return fmt.Errorf("%w: rm needs confirmation: pass -f or run interactively", storify.ErrInvalidArgument)
	}

	fmt.Println("About to remove:")
	for i, p := range paths {
		if i == 5 {
			fmt.Printf("  ... and %d more\n", len(paths)-i)
			break
		}
		fmt.Printf("  %s\n", p)
	}

	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("Remove %d path(s)", len(paths)),
		IsConfirm: true,
	}
	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrInterrupt) {
			fmt.Println("\nCancelled.")
			return &exitCodeError{code: 130}
		}
		fmt.Println("Cancelled.")
		return &exitCodeError{code: 1}
	}
	return nil
}
