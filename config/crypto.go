package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os/user"
	"runtime"

	"golang.org/x/crypto/argon2"
)

// Store blob layout: magic(4) | salt(16) | nonce(12) | ciphertext+tag.
const (
	storeMagic = "SFY1"
	saltSize   = 16
	keySize    = 32

	// Argon2id parameters for stretching the master password into the AES key.
	argonTime    = 2
	argonMemory  = 19 * 1024 // KiB
	argonThreads = 1
)

// autoPasswordContext is mixed into the derived fallback password so the
// result is bound to this application, not just the user and path.
const autoPasswordContext = "storify-profile-store-v1"

// deriveKey stretches the master password and salt into a 256-bit AES key.
func deriveKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, keySize)
}

// seal encrypts plaintext under the master password, producing a
// self-contained blob: a fresh random salt and nonce travel with the
// ciphertext so open needs only the password.
func seal(password string, plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	key := deriveKey(password, salt)
	defer wipe(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	blob := make([]byte, 0, len(storeMagic)+saltSize+gcm.NonceSize()+len(plaintext)+gcm.Overhead())
	blob = append(blob, storeMagic...)
	blob = append(blob, salt...)
	// Seal with the nonce as destination prepends it to the ciphertext.
	blob = append(blob, gcm.Seal(nonce, nonce, plaintext, nil)...)
	return blob, nil
}

// open authenticates and decrypts a blob produced by seal. Any structural
// problem or authentication failure reports ErrStoreCorrupt; the underlying
// cause is deliberately not distinguished so a wrong password and a tampered
// file look the same.
func open(password string, blob []byte) ([]byte, error) {
	if len(blob) < len(storeMagic)+saltSize {
		return nil, ErrStoreCorrupt
	}
	if string(blob[:len(storeMagic)]) != storeMagic {
		return nil, ErrStoreCorrupt
	}

	salt := blob[len(storeMagic) : len(storeMagic)+saltSize]
	rest := blob[len(storeMagic)+saltSize:]

	key := deriveKey(password, salt)
	defer wipe(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	if len(rest) < gcm.NonceSize() {
		return nil, ErrStoreCorrupt
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrStoreCorrupt
	}
	return plaintext, nil
}

// AutoPassword derives the fallback master password used when neither the
// --master-password flag nor the password environment variable is set. It
// binds the store to the local account and file location; it protects
// against casual file copying, not against an attacker running as the user.
func AutoPassword(storePath string) string {
	username := "storify"
	if u, err := user.Current(); err == nil && u.Username != "" {
		username = u.Username
	}

	h := sha256.New()
	h.Write([]byte(username))
	h.Write([]byte{0})
	h.Write([]byte(storePath))
	h.Write([]byte{0})
	h.Write([]byte(autoPasswordContext))
	return hex.EncodeToString(h.Sum(nil))
}

// ResolvePassword picks the master password: explicit flag value first, then
// the environment variable named by passEnv, then the auto-derived fallback.
func ResolvePassword(flagValue string, passEnv string, storePath string, getenv func(string) string) string {
	if flagValue != "" {
		return flagValue
	}
	if passEnv != "" {
		if v := getenv(passEnv); v != "" {
			return v
		}
	}
	return AutoPassword(storePath)
}

// wipe zeroes key material once it is no longer needed.
func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
