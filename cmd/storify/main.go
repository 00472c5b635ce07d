package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sagarc03/storify"
)

var version = "dev"

var (
	profileStore   string
	masterPassword string
	profilePassEnv string
	nonInteractive bool
	jsonOutput     bool
	quiet          bool
)

var rootCmd = &cobra.Command{
	Use:     "storify",
	Version: version,
	Short:   "Unified command-line client for object and file storage",
	Long: `Storify is one set of storage verbs (ls, put, get, grep, diff, rm, ...)
that behaves identically against OSS, S3, MinIO, COS, Azure Blob, HDFS and
the local filesystem.

The backend for an invocation is resolved from, highest priority first:
generic STORAGE_* environment variables, provider-specific environment
variables, an unexpired temporary configuration, the profile named by
--profile, and finally the stored default profile. Profiles live in an
encrypted store managed by the config subcommands.

Structured output: --json applies to listing and mutation commands; content
commands (cat, head, tail, grep, diff, tree) always write plain text.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		bindFlags(viper.GetViper(), cmd.Root().PersistentFlags())
		setupLogging()
		return nil
	},
}

// flagToViperKey maps flag names onto viper keys where the two differ.
var flagToViperKey = map[string]string{
	"log-level": "log.level",
}

// bindFlags binds explicitly-set flags into viper, so flags outrank the
// STORIFY_* environment while unset flags fall through to it.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		key := f.Name
		if mapped, ok := flagToViperKey[key]; ok {
			key = mapped
		}
		if f.Changed {
			_ = v.BindPFlag(key, f)
		}
	})
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("profile", "", "profile to resolve the backend from (env: STORIFY_PROFILE)")
	pf.StringVar(&profileStore, "profile-store", "", "path of the encrypted profile store (default: ~/.config/storify/profiles.enc)")
	pf.StringVar(&masterPassword, "master-password", "", "master password for the profile store")
	pf.StringVar(&profilePassEnv, "profile-pass-env", "STORIFY_PROFILE_PASS", "environment variable holding the master password")
	pf.BoolVar(&nonInteractive, "non-interactive", false, "never prompt; missing input becomes an error")
	pf.BoolVar(&jsonOutput, "json", false, "output as JSON")
	pf.BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")
	pf.String("log-level", "", "log level: debug, info, warn, error (env: STORIFY_LOG_LEVEL)")

	viper.SetEnvPrefix("STORIFY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", storify.ErrInvalidArgument, err)
	})

	rootCmd.AddCommand(
		lsCmd, treeCmd, findCmd, grepCmd, headCmd, tailCmd, catCmd, duCmd,
		diffCmd, appendCmd, rmCmd, cpCmd, mvCmd, mkdirCmd, touchCmd,
		putCmd, getCmd, statCmd, configCmd,
	)
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var silent *exitCodeError
	if errors.As(err, &silent) {
		return silent.code
	}
	_ = getFormatter().Error(os.Stderr, err)
	return exitCode(err)
}

// exitCodeError carries an exit code for a failure that has already been
// reported, so run prints nothing further.
type exitCodeError struct{ code int }

func (e *exitCodeError) Error() string { return "" }

// exitCode maps the failure taxonomy onto process exit codes.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, storify.ErrInterrupted),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return 130
	case errors.Is(err, storify.ErrConfig):
		return 4
	case errors.Is(err, storify.ErrInvalidArgument):
		return 2
	case errors.Is(err, storify.ErrNotFound):
		return 3
	default:
		return 1
	}
}

// The wrapped cobra validators below tag argument-count failures as invalid
// arguments so they exit with the matching code.

func exactArgs(n int) cobra.PositionalArgs { return wrapArgs(cobra.ExactArgs(n)) }

func minimumArgs(n int) cobra.PositionalArgs { return wrapArgs(cobra.MinimumNArgs(n)) }

func maximumArgs(n int) cobra.PositionalArgs { return wrapArgs(cobra.MaximumNArgs(n)) }

func rangeArgs(minArgs, maxArgs int) cobra.PositionalArgs {
	return wrapArgs(cobra.RangeArgs(minArgs, maxArgs))
}

func wrapArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return fmt.Errorf("%w: %v", storify.ErrInvalidArgument, err)
		}
		return nil
	}
}
