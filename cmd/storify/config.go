package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/sagarc03/storify"
	"github.com/sagarc03/storify/config"
)

var (
	cfgProvider        string
	cfgBucket          string
	cfgAccessKeyID     string
	cfgAccessKeySecret string
	cfgEndpoint        string
	cfgRegion          string
	cfgRootPath        string
	cfgNameNode        string
	cfgAnonymous       bool
	cfgForce           bool
	cfgDefault         bool

	cfgShowSecrets bool
	cfgShowDefault bool
	cfgSetClear    bool
	cfgDeleteForce bool
	cfgTempTTL     time.Duration
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage stored connection profiles",
	Long: `Manage the encrypted profile store. Profiles hold the connection settings
for one storage target; the whole store is sealed with a master password
resolved from --master-password, the variable named by --profile-pass-env,
or a machine-derived default. A store sealed with one password cannot be
read with another.`,
}

var configCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create or overwrite a profile",
	Long: `Create a named profile. Fields the provider requires but the flags leave
empty are prompted for interactively, secrets with masked input. The first
profile stored becomes the default automatically. Overwriting an existing
profile asks first unless --force.

Examples:
  storify config create prod --provider oss --bucket my-bucket
  storify config create local --provider fs --root-path /srv/data --default
  storify config create lab --provider minio --endpoint localhost:9000`,
	Args: exactArgs(1),
	RunE: runConfigCreate,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored profiles",
	Args:  exactArgs(0),
	RunE:  runConfigList,
}

var configShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show one profile",
	Long: `Show a profile's settings with credentials masked; --show-secrets prints
them in full. Without a name, --default shows the default profile, as does
omitting both.`,
	Args: maximumArgs(1),
	RunE: runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Set or clear the default profile",
	Args:  maximumArgs(1),
	RunE:  runConfigSet,
}

var configDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a profile",
	Long: `Delete a named profile after confirmation. When the deleted profile was
the default, the default pointer is cleared too.`,
	Args: exactArgs(1),
	RunE: runConfigDelete,
}

var configTempCmd = &cobra.Command{
	Use:   "temp",
	Short: "Manage the temporary configuration",
	Long: `A temporary configuration is one unnamed profile with an expiry. While it
is live it outranks every named profile, including an explicit --profile,
and expires silently afterwards.`,
}

var configTempCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Set the temporary configuration",
	Args:  exactArgs(0),
	RunE:  runConfigTempCreate,
}

var configTempClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop the temporary configuration",
	Args:  exactArgs(0),
	RunE:  runConfigTempClear,
}

func init() {
	addProfileFieldFlags(configCreateCmd)
	configCreateCmd.Flags().BoolVar(&cfgForce, "force", false, "overwrite an existing profile without asking")
	configCreateCmd.Flags().BoolVar(&cfgDefault, "default", false, "make this profile the default")

	configListCmd.Flags().BoolVar(&cfgShowSecrets, "show-secrets", false, "print credentials in full")

	configShowCmd.Flags().BoolVar(&cfgShowSecrets, "show-secrets", false, "print credentials in full")
	configShowCmd.Flags().BoolVar(&cfgShowDefault, "default", false, "show the default profile")

	configSetCmd.Flags().BoolVar(&cfgSetClear, "clear", false, "clear the default pointer instead")

	configDeleteCmd.Flags().BoolVarP(&cfgDeleteForce, "force", "f", false, "skip the confirmation prompt")

	addProfileFieldFlags(configTempCreateCmd)
	configTempCreateCmd.Flags().DurationVar(&cfgTempTTL, "ttl", 24*time.Hour, "how long the configuration stays live")

	configTempCmd.AddCommand(configTempCreateCmd, configTempClearCmd)
	configCmd.AddCommand(configCreateCmd, configListCmd, configShowCmd, configSetCmd, configDeleteCmd, configTempCmd)
}

func addProfileFieldFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&cfgProvider, "provider", "", "storage provider: oss, s3, minio, cos, fs, hdfs, azblob")
	f.StringVar(&cfgBucket, "bucket", "", "bucket or container name")
	f.StringVar(&cfgAccessKeyID, "access-key-id", "", "access key id (account name for azblob)")
	f.StringVar(&cfgAccessKeySecret, "access-key-secret", "", "access key secret (prompted when needed)")
	f.StringVar(&cfgEndpoint, "endpoint", "", "service endpoint override")
	f.StringVar(&cfgRegion, "region", "", "service region")
	f.StringVar(&cfgRootPath, "root-path", "", "root directory (fs and hdfs)")
	f.StringVar(&cfgNameNode, "name-node", "", "hdfs name node host:port")
	f.BoolVar(&cfgAnonymous, "anonymous", false, "connect without credentials")
}

// The profile store helpers below are shared with backend resolution.

func profileStorePath() string {
	if profileStore != "" {
		return profileStore
	}
	return config.DefaultStorePath()
}

func openStore() *config.Store {
	path := profileStorePath()
	pass := config.ResolvePassword(masterPassword, profilePassEnv, path, os.Getenv)
	return config.NewStore(path, pass)
}

func loadRecord() (*config.Record, error) {
	return openStore().Load()
}

func runConfigCreate(_ *cobra.Command, args []string) error {
	name := args[0]
	store := openStore()
	rec, err := store.Load()
	if err != nil {
		return err
	}

	exists := false
	if _, err := rec.GetProfile(name); err == nil {
		exists = true
		if !cfgForce {
			if nonInteractive {
				return fmt.Errorf("%w: %s (pass --force to overwrite)", config.ErrProfileExists, name)
			}
			prompt := promptui.Prompt{
				Label:     fmt.Sprintf("Profile %q already exists. Overwrite", name),
				IsConfirm: true,
			}
			if _, perr := prompt.Run(); perr != nil {
				return handlePromptError(perr)
			}
		}
	}

	p, err := buildProfile(name)
	if err != nil {
		return err
	}

	if exists {
		err = rec.UpdateProfile(p)
	} else {
		err = rec.AddProfile(p)
	}
	if err != nil {
		return err
	}

	madeDefault := false
	if cfgDefault || (rec.Default == "" && len(rec.Profiles) == 1) {
		if err := rec.SetDefault(name); err != nil {
			return err
		}
		madeDefault = true
	}

	if err := store.Save(rec); err != nil {
		return err
	}

	msg := fmt.Sprintf("Profile %q added.", name)
	if exists {
		msg = fmt.Sprintf("Profile %q updated.", name)
	}
	if madeDefault {
		msg += " Set as default."
	}
	return getFormatter().Message(os.Stdout, "%s", msg)
}

func runConfigList(_ *cobra.Command, _ []string) error {
	rec, err := loadRecord()
	if err != nil {
		return err
	}
	return getFormatter().ProfileList(os.Stdout, rec, cfgShowSecrets)
}

func runConfigShow(_ *cobra.Command, args []string) error {
	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	if cfgShowDefault && name != "" {
		return fmt.Errorf("%w: --default and a profile name are mutually exclusive", storify.ErrInvalidArgument)
	}

	rec, err := loadRecord()
	if err != nil {
		return err
	}

	p, err := rec.GetProfile(name)
	if err != nil {
		return err
	}
	return getFormatter().ProfileShow(os.Stdout, *p, rec.Default == p.Name, cfgShowSecrets)
}

func runConfigSet(_ *cobra.Command, args []string) error {
	store := openStore()
	rec, err := store.Load()
	if err != nil {
		return err
	}

	if cfgSetClear {
		if len(args) > 0 {
			return fmt.Errorf("%w: --clear takes no profile name", storify.ErrInvalidArgument)
		}
		rec.ClearDefault()
		if err := store.Save(rec); err != nil {
			return err
		}
		return getFormatter().Message(os.Stdout, "Default profile cleared.")
	}

	if len(args) == 0 {
		return fmt.Errorf("%w: profile name required (or --clear)", storify.ErrInvalidArgument)
	}
	if err := rec.SetDefault(args[0]); err != nil {
		return err
	}
	if err := store.Save(rec); err != nil {
		return err
	}
	return getFormatter().Message(os.Stdout, "Default profile set to %q.", args[0])
}

func runConfigDelete(_ *cobra.Command, args []string) error {
	name := args[0]
	store := openStore()
	rec, err := store.Load()
	if err != nil {
		return err
	}
	if _, err := rec.GetProfile(name); err != nil {
		return err
	}

	if !cfgDeleteForce {
		if nonInteractive {
			return fmt.Errorf("%w: deleting %q needs confirmation: pass -f or run interactively",
				storify.ErrInvalidArgument, name)
		}
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("Delete profile %q", name),
			IsConfirm: true,
		}
		if _, perr := prompt.Run(); perr != nil {
			return handlePromptError(perr)
		}
	}

	if err := rec.RemoveProfile(name); err != nil {
		return err
	}
	if err := store.Save(rec); err != nil {
		return err
	}
	return getFormatter().Message(os.Stdout, "Profile %q deleted.", name)
}

func runConfigTempCreate(_ *cobra.Command, _ []string) error {
	if cfgTempTTL <= 0 {
		return fmt.Errorf("%w: --ttl must be positive", storify.ErrInvalidArgument)
	}

	store := openStore()
	rec, err := store.Load()
	if err != nil {
		return err
	}

	p, err := buildProfile("")
	if err != nil {
		return err
	}

	expires := time.Now().Add(cfgTempTTL)
	rec.Temporary = &config.TemporaryConfig{Profile: p, ExpiresAt: expires}
	if err := store.Save(rec); err != nil {
		return err
	}
	return getFormatter().Message(os.Stdout, "Temporary configuration active until %s.", expires.Format(time.RFC3339))
}

func runConfigTempClear(_ *cobra.Command, _ []string) error {
	store := openStore()
	rec, err := store.Load()
	if err != nil {
		return err
	}
	rec.Temporary = nil
	if err := store.Save(rec); err != nil {
		return err
	}
	return getFormatter().Message(os.Stdout, "Temporary configuration cleared.")
}

// buildProfile assembles a profile from the field flags, prompting for
// whatever the provider still requires, and validates it against the
// provider matrix so a bad profile never reaches the store.
func buildProfile(name string) (config.Profile, error) {
	provider, err := resolveProviderFlag()
	if err != nil {
		return config.Profile{}, err
	}

	p := config.Profile{
		Name:            name,
		Provider:        provider,
		Bucket:          cfgBucket,
		AccessKeyID:     cfgAccessKeyID,
		AccessKeySecret: cfgAccessKeySecret,
		Endpoint:        cfgEndpoint,
		Region:          cfgRegion,
		RootPath:        cfgRootPath,
		NameNode:        cfgNameNode,
		Anonymous:       cfgAnonymous,
	}
	if err := promptMissingFields(&p); err != nil {
		return config.Profile{}, err
	}
	if err := config.ValidateProfile(p); err != nil {
		return config.Profile{}, err
	}
	return p, nil
}

func resolveProviderFlag() (storify.Provider, error) {
	if cfgProvider != "" {
		return storify.ParseProvider(cfgProvider)
	}
	if nonInteractive {
		return "", fmt.Errorf("%w: --provider is required", storify.ErrConfig)
	}

	items := make([]string, 0, len(storify.Providers()))
	for _, p := range storify.Providers() {
		items = append(items, string(p))
	}
	sel := promptui.Select{Label: "Provider", Items: items}
	_, choice, err := sel.Run()
	if err != nil {
		return "", promptFailure(err)
	}
	return storify.ParseProvider(choice)
}

// promptMissingFields asks for every field the provider requires that the
// flags left empty. A lone credential half also prompts for its pair, since
// the matrix rejects one without the other.
func promptMissingFields(p *config.Profile) error {
	rules := config.RulesFor(p.Provider)

	needSecret := p.AccessKeyID != "" && p.AccessKeySecret == ""
	needID := p.AccessKeySecret != "" && p.AccessKeyID == ""

	fields := []struct {
		label string
		value *string
		need  bool
		mask  bool
	}{
		{"Bucket", &p.Bucket, rules.Bucket.Requirement == config.Required, false},
		{"Name node", &p.NameNode, rules.NameNode.Requirement == config.Required, false},
		{"Endpoint", &p.Endpoint, rules.Endpoint.Requirement == config.Required, false},
		{"Region", &p.Region, rules.Region.Requirement == config.Required, false},
		{"Root path", &p.RootPath, rules.RootPath.Requirement == config.Required, false},
		{"Access key ID", &p.AccessKeyID, !p.Anonymous && (rules.AccessKeyID.Requirement == config.Required || needID), false},
		{"Access key secret", &p.AccessKeySecret, !p.Anonymous && (rules.AccessKeySecret.Requirement == config.Required || needSecret), true},
	}

	for _, f := range fields {
		if !f.need || *f.value != "" {
			continue
		}
		if nonInteractive {
			return fmt.Errorf("%w: provider %s requires %s", storify.ErrConfig, p.Provider, strings.ToLower(f.label))
		}

		prompt := promptui.Prompt{
			Label: f.label,
			Validate: func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("a value is required")
				}
				return nil
			},
		}
		if f.mask {
			prompt.Mask = '*'
		}
		v, err := prompt.Run()
		if err != nil {
			return promptFailure(err)
		}
		*f.value = strings.TrimSpace(v)
	}
	return nil
}

// handlePromptError handles a confirmation outcome: Ctrl-C ends the process,
// a declined confirmation prints a notice and succeeds.
func handlePromptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) {
		fmt.Println("\nCancelled.")
		os.Exit(0)
	}
	if errors.Is(err, promptui.ErrAbort) {
		fmt.Println("Cancelled.")
		return nil
	}
	return err
}

// promptFailure handles an input prompt outcome, where only Ctrl-C is
// expected: anything else is a real terminal error.
func promptFailure(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) {
		fmt.Println("\nCancelled.")
		os.Exit(0)
	}
	return fmt.Errorf("prompt: %w", err)
}
