package config

import (
	"fmt"

	"github.com/sagarc03/storify"
)

// Requirement says how a provider treats one connection field.
type Requirement int

const (
	// Optional fields may be set or left empty.
	Optional Requirement = iota
	// Required fields must be set after resolution completes.
	Required
	// Unsupported fields are silently cleared so stray values from generic
	// environment variables never leak into a provider that ignores them.
	Unsupported
)

// FieldRule is one cell of the provider matrix: a requirement plus an
// optional default applied when the field is empty.
type FieldRule struct {
	Requirement Requirement
	Default     string
}

func required() FieldRule    { return FieldRule{Requirement: Required} }
func optional() FieldRule    { return FieldRule{Requirement: Optional} }
func unsupported() FieldRule { return FieldRule{Requirement: Unsupported} }

func optionalDefault(d string) FieldRule {
	return FieldRule{Requirement: Optional, Default: d}
}

// ProviderRules is the full field matrix for one provider. Credentials are
// governed jointly: both present, or neither present with anonymous allowed.
type ProviderRules struct {
	AllowAnonymous  bool
	Bucket          FieldRule
	AccessKeyID     FieldRule
	AccessKeySecret FieldRule
	Region          FieldRule
	Endpoint        FieldRule
	RootPath        FieldRule
	NameNode        FieldRule
}

func cloudRules(region, endpoint FieldRule, allowAnonymous bool) ProviderRules {
	cred := required()
	if allowAnonymous {
		cred = optional()
	}
	return ProviderRules{
		AllowAnonymous:  allowAnonymous,
		Bucket:          required(),
		AccessKeyID:     cred,
		AccessKeySecret: cred,
		Region:          region,
		Endpoint:        endpoint,
		RootPath:        unsupported(),
		NameNode:        unsupported(),
	}
}

// RulesFor returns the field matrix for a provider.
func RulesFor(p storify.Provider) ProviderRules {
	switch p {
	case storify.ProviderOSS:
		// OSS addresses buckets by endpoint, never by bare region.
		return cloudRules(unsupported(), optional(), true)
	case storify.ProviderS3:
		return cloudRules(optional(), optional(), true)
	case storify.ProviderMinIO:
		return cloudRules(optional(), required(), true)
	case storify.ProviderCOS:
		return cloudRules(optional(), optional(), false)
	case storify.ProviderAzblob:
		return cloudRules(unsupported(), optional(), false)
	case storify.ProviderHDFS:
		return ProviderRules{
			Bucket:          unsupported(),
			AccessKeyID:     unsupported(),
			AccessKeySecret: unsupported(),
			Region:          unsupported(),
			Endpoint:        unsupported(),
			RootPath:        optionalDefault("/"),
			NameNode:        required(),
		}
	case storify.ProviderFS:
		return ProviderRules{
			Bucket:          unsupported(),
			AccessKeyID:     unsupported(),
			AccessKeySecret: unsupported(),
			Region:          unsupported(),
			Endpoint:        unsupported(),
			RootPath:        optionalDefault("."),
			NameNode:        unsupported(),
		}
	default:
		// ParseProvider guards every entry point, so this is unreachable for
		// connections built through the package.
		return ProviderRules{}
	}
}

// Apply normalizes conn in place against the matrix: unsupported fields are
// cleared, defaults fill empty optional fields, missing required fields fail
// with a ConfigError naming the field and provider. Secret values never
// appear in the error.
func (r ProviderRules) Apply(conn *Connection) error {
	fields := []struct {
		name  string
		rule  FieldRule
		value *string
	}{
		{"bucket", r.Bucket, &conn.Bucket},
		{"access_key_id", r.AccessKeyID, &conn.AccessKeyID},
		{"access_key_secret", r.AccessKeySecret, &conn.AccessKeySecret},
		{"region", r.Region, &conn.Region},
		{"endpoint", r.Endpoint, &conn.Endpoint},
		{"root_path", r.RootPath, &conn.RootPath},
		{"name_node", r.NameNode, &conn.NameNode},
	}

	for _, f := range fields {
		switch f.rule.Requirement {
		case Required:
			if *f.value == "" {
				return missingField(conn.Provider, f.name)
			}
		case Unsupported:
			*f.value = ""
		}
		if f.rule.Requirement != Unsupported && *f.value == "" && f.rule.Default != "" {
			*f.value = f.rule.Default
		}
	}

	if r.AccessKeyID.Requirement != Unsupported || r.AccessKeySecret.Requirement != Unsupported {
		if conn.Anonymous && !r.AllowAnonymous {
			return fmt.Errorf("%w: provider %s does not support anonymous access", storify.ErrConfig, conn.Provider)
		}
		if err := r.enforceCredentials(conn); err != nil {
			return err
		}
	} else {
		conn.Anonymous = false
	}

	return nil
}

// enforceCredentials applies the joint credential rule: a lone key half is
// always an error, an empty pair flips the connection to anonymous where the
// provider permits that, and a full pair clears the anonymous flag.
func (r ProviderRules) enforceCredentials(conn *Connection) error {
	hasID := conn.AccessKeyID != ""
	hasSecret := conn.AccessKeySecret != ""

	switch {
	case hasID && hasSecret:
		conn.Anonymous = false
		return nil
	case !hasID && !hasSecret:
		if r.AllowAnonymous {
			conn.Anonymous = true
			return nil
		}
		return missingField(conn.Provider, "access_key_id")
	case !hasID:
		return missingField(conn.Provider, "access_key_id")
	default:
		return missingField(conn.Provider, "access_key_secret")
	}
}

func missingField(p storify.Provider, field string) error {
	return fmt.Errorf("%w: provider %s requires %s", storify.ErrConfig, p, field)
}
