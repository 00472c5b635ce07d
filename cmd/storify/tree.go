package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/storify"
)

var (
	treeDepth    int
	treeDirsOnly bool
)

var treeCmd = &cobra.Command{
	Use:   "tree [path]",
	Short: "Render a subtree as an indented tree",
	Long: `Render the directory tree rooted at a path using box-drawing connectors,
the way the tree(1) utility does. Content output: --json does not apply.

Examples:
  storify tree /data
  storify tree --depth 2 --dirs-only /`,
	Args: maximumArgs(1),
	RunE: runTree,
}

func init() {
	treeCmd.Flags().IntVar(&treeDepth, "depth", -1, "levels below the root to render (0 = root only, negative = unlimited)")
	treeCmd.Flags().BoolVar(&treeDirsOnly, "dirs-only", false, "show directories only")
}

func runTree(cmd *cobra.Command, args []string) error {
	path := "/"
	if len(args) > 0 {
		path = args[0]
	}

	client, cleanup, err := getClient(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	return client.Tree(cmd.Context(), path, storify.TreeOptions{
		Depth:    treeDepth,
		DirsOnly: treeDirsOnly,
	}, os.Stdout)
}
