package config

import (
	"fmt"

	"github.com/sagarc03/storify"
)

// Package sentinels. All of them wrap storify.ErrConfig so callers can match
// either the specific condition or the taxonomy kind.
var (
	// ErrNoProfiles is returned when the store holds no profiles at all.
	ErrNoProfiles = fmt.Errorf("%w: no profiles configured", storify.ErrConfig)

	// ErrProfileNotFound is returned when a named profile does not exist.
	ErrProfileNotFound = fmt.Errorf("%w: profile not found", storify.ErrConfig)

	// ErrProfileExists is returned when creating a profile whose name is taken.
	ErrProfileExists = fmt.Errorf("%w: profile already exists", storify.ErrConfig)

	// ErrNoDefault is returned when no default profile is set and none was named.
	ErrNoDefault = fmt.Errorf("%w: no default profile set", storify.ErrConfig)

	// ErrStoreCorrupt is returned when the store file cannot be parsed or
	// authenticated. A wrong master password surfaces as this error too.
	ErrStoreCorrupt = fmt.Errorf("%w: profile store corrupt or wrong master password", storify.ErrConfig)
)
