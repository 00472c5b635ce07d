package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Store binds the encrypted profile record to one file on disk. It holds the
// master password for the lifetime of the CLI invocation; nothing is cached
// between Load and Save, so concurrent invocations race only at the final
// rename, which is atomic.
type Store struct {
	path     string
	password string
}

// NewStore returns a store reading and writing the file at path, sealed
// under the given master password.
func NewStore(path, password string) *Store {
	return &Store{path: path, password: password}
}

// Path returns the store's file path.
func (s *Store) Path() string { return s.path }

// DefaultStorePath resolves where the profile store lives:
// $STORIFY_PROFILE_PATH, then $STORIFY_CONFIG, then
// ~/.config/storify/profiles.enc, then ./storify-profiles.enc.
func DefaultStorePath() string {
	for _, v := range []string{"STORIFY_PROFILE_PATH", "STORIFY_CONFIG"} {
		if p := os.Getenv(v); p != "" {
			return p
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "storify", "profiles.enc")
	}
	return "storify-profiles.enc"
}

// Load reads and decrypts the record. A store file that does not exist yet
// yields an empty record; any other failure, including authentication
// failure, is fatal and never falls back to partial data.
func (s *Store) Load() (*Record, error) {
	blob, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Record{}, nil
		}
		return nil, fmt.Errorf("read profile store %s: %w", s.path, err)
	}

	plaintext, err := open(s.password, blob)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, s.path)
	}

	var rec Record
	if err := yaml.Unmarshal(plaintext, &rec); err != nil {
		return nil, fmt.Errorf("%w: decode record", ErrStoreCorrupt)
	}
	return &rec, nil
}

// Save encrypts and writes the record atomically: the sealed blob lands in a
// temporary sibling, is fsynced, the current file is copied to a .bak
// sibling, and a rename publishes the new blob. An expired temporary
// configuration is purged before serializing. File modes are owner-only.
func (s *Store) Save(rec *Record) error {
	rec.purgeExpired(time.Now())

	plaintext, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	blob, err := seal(s.password, plaintext)
	if err != nil {
		return fmt.Errorf("seal record: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%s", filepath.Base(s.path), uuid.New().String()))
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}

	success := false
	defer func() {
		if closeErr := f.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			slog.Warn("failed to close temp store file", "err", closeErr)
		}
		if !success {
			if rmErr := os.Remove(tmp); rmErr != nil {
				slog.Warn("failed to remove temp store file", "err", rmErr)
			}
		}
	}()

	if _, err := f.Write(blob); err != nil {
		return fmt.Errorf("write temp store file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync temp store file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp store file: %w", err)
	}

	if err := s.backupCurrent(); err != nil {
		return err
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("publish store file: %w", err)
	}
	success = true
	return nil
}

// backupCurrent copies the existing blob to a .bak sibling so one prior
// version survives every write. A missing current file is not an error.
func (s *Store) backupCurrent() error {
	cur, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read current store file: %w", err)
	}

	bak := s.path + ".bak"
	if err := os.WriteFile(bak, cur, 0o600); err != nil {
		return fmt.Errorf("write store backup: %w", err)
	}
	return nil
}
