package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sagarc03/storify"
)

// envProvider selects the provider ahead of every stored source. When it is
// set, profiles whose provider differs contribute nothing to the merge.
const envProvider = "STORAGE_PROVIDER"

// Connection is the effective configuration for one invocation after every
// source has been merged and the provider matrix applied. Exactly one
// Connection feeds the backend constructor; commands never read environment
// variables or profiles directly.
type Connection struct {
	Provider        storify.Provider `json:"provider"`
	Bucket          string           `json:"bucket,omitempty"`
	AccessKeyID     string           `json:"access_key_id,omitempty"`
	AccessKeySecret string           `json:"-"`
	Region          string           `json:"region,omitempty"`
	Endpoint        string           `json:"endpoint,omitempty" validate:"omitempty,url|hostname_port|fqdn"`
	RootPath        string           `json:"root_path,omitempty"`
	NameNode        string           `json:"name_node,omitempty" validate:"omitempty,hostname_port|hostname|url"`
	Anonymous       bool             `json:"anonymous,omitempty"`

	// Source names the layer that supplied the provider, for diagnostics.
	Source string `json:"source"`
}

// ResolveRequest carries the inputs for one resolution pass. Getenv and Now
// default to os.Getenv and time.Now; tests substitute both.
type ResolveRequest struct {
	// ProfileName is the --profile value. Empty selects the stored default.
	ProfileName string
	// Record is the decrypted store contents. Nil when no store exists yet,
	// which still resolves successfully for pure-environment invocations.
	Record *Record
	Getenv func(string) string
	Now    time.Time
}

// Resolve merges every configuration source into one Connection. Field
// precedence, highest first:
//
//  1. generic STORAGE_* environment variables
//  2. provider-specific environment variables
//  3. the unexpired temporary entry, when present
//  4. the named profile (--profile), else the stored default profile
//  5. provider defaults from the rule matrix
//
// The provider itself comes from STORAGE_PROVIDER when set, otherwise from
// the winning temporary entry or profile. A profile whose provider differs
// from the resolved provider is skipped entirely so credentials for one
// service never leak into another.
func Resolve(req ResolveRequest) (*Connection, error) {
	getenv := req.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	base, source, err := profileLayer(req.ProfileName, req.Record, now)
	if err != nil {
		return nil, err
	}

	provider := base.provider()
	if raw := strings.TrimSpace(getenv(envProvider)); raw != "" {
		p, err := storify.ParseProvider(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", storify.ErrConfig, envProvider, err)
		}
		provider = p
		source = "environment"
	}
	if provider == "" {
		return nil, fmt.Errorf("%w: no provider selected: set %s, pass --profile, or store a default profile",
			storify.ErrConfig, envProvider)
	}

	conn := Connection{Provider: provider, Source: source}
	if base.profile != nil && base.profile.Provider == provider {
		mergeConnection(&conn, connectionFromProfile(base.profile))
	}
	mergeConnection(&conn, providerEnvConnection(provider, getenv))
	mergeConnection(&conn, genericEnvConnection(getenv))

	if err := RulesFor(provider).Apply(&conn); err != nil {
		return nil, err
	}
	if err := validateConnection(&conn); err != nil {
		return nil, err
	}
	return &conn, nil
}

// storedLayer is the profile-tier source picked for a resolution: the live
// temporary entry when one exists, otherwise the requested or default
// profile, otherwise nothing.
type storedLayer struct {
	profile *Profile
	source  string
}

func (l storedLayer) provider() storify.Provider {
	if l.profile == nil {
		return ""
	}
	return l.profile.Provider
}

// profileLayer selects the stored source. The temporary entry outranks even
// an explicit --profile; asking for a profile by name when no store or no
// such profile exists is an error, while an absent default is not.
func profileLayer(name string, rec *Record, now time.Time) (storedLayer, string, error) {
	if rec == nil {
		if name != "" {
			return storedLayer{}, "", fmt.Errorf("%w: %q", ErrProfileNotFound, name)
		}
		return storedLayer{}, "", nil
	}

	if temp := rec.LiveTemporary(now); temp != nil {
		return storedLayer{profile: &temp.Profile}, "temporary configuration", nil
	}

	if name != "" {
		p, err := rec.GetProfile(name)
		if err != nil {
			return storedLayer{}, "", err
		}
		return storedLayer{profile: p}, "profile " + name, nil
	}

	if rec.Default != "" {
		p, err := rec.GetDefaultProfile()
		if err != nil {
			return storedLayer{}, "", err
		}
		return storedLayer{profile: p}, "default profile " + p.Name, nil
	}

	return storedLayer{}, "", nil
}

// ValidateProfile checks a profile against its provider's rule matrix the
// same way resolution will, so config commands can reject a bad profile at
// write time instead of at first use. The profile is not modified.
func ValidateProfile(p Profile) error {
	if !p.Provider.IsValid() {
		return fmt.Errorf("%w: unknown provider %q", storify.ErrConfig, p.Provider)
	}
	conn := connectionFromProfile(&p)
	if err := RulesFor(p.Provider).Apply(&conn); err != nil {
		return err
	}
	return validateConnection(&conn)
}

func connectionFromProfile(p *Profile) Connection {
	return Connection{
		Provider:        p.Provider,
		Bucket:          p.Bucket,
		AccessKeyID:     p.AccessKeyID,
		AccessKeySecret: p.AccessKeySecret,
		Region:          p.Region,
		Endpoint:        p.Endpoint,
		RootPath:        p.RootPath,
		NameNode:        p.NameNode,
		Anonymous:       p.Anonymous,
	}
}

// mergeConnection overlays src onto dst: non-empty src fields win. Called in
// ascending precedence so the last layer applied is the strongest.
func mergeConnection(dst *Connection, src Connection) {
	fields := []struct{ dst, src *string }{
		{&dst.Bucket, &src.Bucket},
		{&dst.AccessKeyID, &src.AccessKeyID},
		{&dst.AccessKeySecret, &src.AccessKeySecret},
		{&dst.Region, &src.Region},
		{&dst.Endpoint, &src.Endpoint},
		{&dst.RootPath, &src.RootPath},
		{&dst.NameNode, &src.NameNode},
	}
	for _, f := range fields {
		if *f.src != "" {
			*f.dst = *f.src
		}
	}
	if src.Anonymous {
		dst.Anonymous = true
	}
}

// validateConnection runs the format checks that the rule matrix does not
// cover, such as endpoint shape. Values echoed in errors are never secrets.
func validateConnection(conn *Connection) error {
	validate := validator.New()
	if err := validate.Struct(conn); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: invalid %s %q for provider %s",
				storify.ErrConfig, connectionFieldName(verrs[0].Field()), verrs[0].Value(), conn.Provider)
		}
		return fmt.Errorf("%w: %v", storify.ErrConfig, err)
	}
	return nil
}

func connectionFieldName(structField string) string {
	switch structField {
	case "NameNode":
		return "name_node"
	default:
		return strings.ToLower(structField)
	}
}
