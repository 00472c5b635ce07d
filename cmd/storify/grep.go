package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/storify"
)

var (
	grepIgnoreCase  bool
	grepLineNumbers bool
	grepRecursive   bool
)

var grepCmd = &cobra.Command{
	Use:   "grep <pattern> <path>",
	Short: "Search file contents for a fixed string",
	Long: `Print the lines of a file that contain a fixed string. A directory
argument needs -R and searches every file beneath it, prefixing each match
with its file path. Files that look binary are skipped. Content output:
--json does not apply.

Examples:
  storify grep ERROR /logs/app.log
  storify grep -inR timeout /logs`,
	Args: exactArgs(2),
	RunE: runGrep,
}

func init() {
	grepCmd.Flags().BoolVarP(&grepIgnoreCase, "ignore-case", "i", false, "match case-insensitively")
	grepCmd.Flags().BoolVarP(&grepLineNumbers, "line-numbers", "n", false, "prefix matches with their line number")
	grepCmd.Flags().BoolVarP(&grepRecursive, "recursive", "R", false, "search every file under a directory")
}

func runGrep(cmd *cobra.Command, args []string) error {
	client, cleanup, err := getClient(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	return client.Grep(cmd.Context(), args[1], args[0], storify.GrepOptions{
		IgnoreCase:  grepIgnoreCase,
		LineNumbers: grepLineNumbers,
		Recursive:   grepRecursive,
	}, os.Stdout)
}
