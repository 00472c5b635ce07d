package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var statRaw bool

var statCmd = &cobra.Command{
	Use:   "stat <path>",
	Short: "Show metadata for one path",
	Long: `Show the kind, size and modification time of a path. Flat object stores
synthesize directory entries from key prefixes, so a directory may report
no modification time. --raw prints one key=value per line for shell use.

Examples:
  storify stat /data/report.csv
  storify --json stat /data
  storify stat --raw /data/report.csv`,
	Args: exactArgs(1),
	RunE: runStat,
}

func init() {
	statCmd.Flags().BoolVar(&statRaw, "raw", false, "print key=value lines")
}

func runStat(cmd *cobra.Command, args []string) error {
	client, cleanup, err := getClient(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	e, err := client.Stat(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if statRaw {
		fmt.Printf("path=%s\n", e.Path)
		fmt.Printf("kind=%s\n", e.Kind)
		fmt.Printf("size=%d\n", e.Size)
		modified := ""
		if !e.ModTime.IsZero() {
			modified = e.ModTime.UTC().Format(time.RFC3339)
		}
		fmt.Printf("modified=%s\n", modified)
		return nil
	}
	return getFormatter().Stat(os.Stdout, e)
}
