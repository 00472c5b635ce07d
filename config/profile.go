package config

import (
	"fmt"
	"time"

	"github.com/sagarc03/storify"
)

// Profile holds the connection settings for one named storage target.
// Secrets live here in plaintext only while the record is decrypted in
// memory; on disk the whole record is sealed.
type Profile struct {
	Name            string           `yaml:"name"`
	Provider        storify.Provider `yaml:"provider"`
	Bucket          string           `yaml:"bucket,omitempty"`
	AccessKeyID     string           `yaml:"access_key_id,omitempty"`
	AccessKeySecret string           `yaml:"access_key_secret,omitempty"`
	Endpoint        string           `yaml:"endpoint,omitempty"`
	Region          string           `yaml:"region,omitempty"`
	RootPath        string           `yaml:"root_path,omitempty"`
	NameNode        string           `yaml:"name_node,omitempty"`
	Anonymous       bool             `yaml:"anonymous,omitempty"`
}

// TemporaryConfig is a single unnamed profile with an expiry. It outranks
// named profiles during resolution until ExpiresAt passes, after which it is
// treated as absent and purged on the next store write.
type TemporaryConfig struct {
	Profile   `yaml:",inline"`
	ExpiresAt time.Time `yaml:"expires_at"`
}

// Expired reports whether the temporary configuration is past its expiry.
func (t *TemporaryConfig) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Record is the full decrypted content of the profile store: every named
// profile, the default pointer, and the optional temporary configuration.
type Record struct {
	Profiles  []Profile        `yaml:"profiles"`
	Default   string           `yaml:"default,omitempty"`
	Temporary *TemporaryConfig `yaml:"temporary,omitempty"`
}

// GetProfile returns the profile by name. If name is empty, returns the
// profile the default pointer names.
func (r *Record) GetProfile(name string) (*Profile, error) {
	if name == "" {
		return r.GetDefaultProfile()
	}

	for i := range r.Profiles {
		if r.Profiles[i].Name == name {
			return &r.Profiles[i], nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
}

// GetDefaultProfile returns the profile the default pointer names.
// A record with profiles but no default pointer returns ErrNoDefault;
// an empty record returns ErrNoProfiles.
func (r *Record) GetDefaultProfile() (*Profile, error) {
	if len(r.Profiles) == 0 {
		return nil, ErrNoProfiles
	}

	if r.Default == "" {
		return nil, ErrNoDefault
	}

	for i := range r.Profiles {
		if r.Profiles[i].Name == r.Default {
			return &r.Profiles[i], nil
		}
	}

	// The pointer names a profile that was since removed.
	return nil, fmt.Errorf("%w: default %s", ErrProfileNotFound, r.Default)
}

// AddProfile adds a new profile. Returns ErrProfileExists if a profile with
// the same name already exists; use UpdateProfile to replace one.
func (r *Record) AddProfile(p Profile) error {
	if p.Name == "" {
		return fmt.Errorf("%w: profile name must not be empty", storify.ErrInvalidArgument)
	}
	for i := range r.Profiles {
		if r.Profiles[i].Name == p.Name {
			return fmt.Errorf("%w: %s", ErrProfileExists, p.Name)
		}
	}
	r.Profiles = append(r.Profiles, p)
	return nil
}

// UpdateProfile replaces an existing profile of the same name.
func (r *Record) UpdateProfile(p Profile) error {
	for i := range r.Profiles {
		if r.Profiles[i].Name == p.Name {
			r.Profiles[i] = p
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrProfileNotFound, p.Name)
}

// RemoveProfile removes a profile by name. When the default pointer names
// the removed profile the pointer is cleared too.
func (r *Record) RemoveProfile(name string) error {
	for i := range r.Profiles {
		if r.Profiles[i].Name == name {
			r.Profiles = append(r.Profiles[:i], r.Profiles[i+1:]...)
			if r.Default == name {
				r.Default = ""
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
}

// SetDefault points the default at an existing profile by name.
func (r *Record) SetDefault(name string) error {
	for i := range r.Profiles {
		if r.Profiles[i].Name == name {
			r.Default = name
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
}

// ClearDefault removes the default pointer without touching any profile.
func (r *Record) ClearDefault() {
	r.Default = ""
}

// ProfileNames returns the names of all stored profiles.
func (r *Record) ProfileNames() []string {
	names := make([]string, len(r.Profiles))
	for i := range r.Profiles {
		names[i] = r.Profiles[i].Name
	}
	return names
}

// LiveTemporary returns the temporary configuration when one exists and has
// not expired, else nil.
func (r *Record) LiveTemporary(now time.Time) *TemporaryConfig {
	if r.Temporary == nil || r.Temporary.Expired(now) {
		return nil
	}
	return r.Temporary
}

// purgeExpired drops an expired temporary configuration. Called before every
// store write so stale entries never persist.
func (r *Record) purgeExpired(now time.Time) {
	if r.Temporary != nil && r.Temporary.Expired(now) {
		r.Temporary = nil
	}
}
