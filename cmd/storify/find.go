package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/storify"
)

var (
	findName  string
	findRegex string
	findType  string
)

var findCmd = &cobra.Command{
	Use:   "find [path]",
	Short: "Search a subtree by name pattern",
	Long: `Walk the subtree at a path and print the entries whose root-relative path
matches the given pattern. --name takes a glob where ** crosses directory
levels; --regex takes a Go regular expression. The two are mutually
exclusive.

Examples:
  storify find / --name '**/*.log'
  storify find /data --regex '^reports/2025' --type f
  storify find /data --type d`,
	Args: maximumArgs(1),
	RunE: runFind,
}

func init() {
	findCmd.Flags().StringVar(&findName, "name", "", "glob matched against the root-relative path")
	findCmd.Flags().StringVar(&findRegex, "regex", "", "regular expression matched against the root-relative path")
	findCmd.Flags().StringVar(&findType, "type", "", "keep one entry kind: f (files), d (directories), o (other)")
}

func runFind(cmd *cobra.Command, args []string) error {
	path := "/"
	if len(args) > 0 {
		path = args[0]
	}

	client, cleanup, err := getClient(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	opts := storify.FindOptions{Name: findName, Regex: findRegex, Kind: findType}

	var entries []storify.Entry
	err = client.Find(cmd.Context(), path, opts, func(e storify.Entry) error {
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return err
	}
	return getFormatter().Entries(os.Stdout, entries)
}
