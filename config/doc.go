// Package config manages storify's connection configuration: the encrypted
// profile store on disk, environment variable overrides, per-provider field
// rules, and the resolution order that turns all of those into one validated
// Connection for a backend.
//
// Resolution precedence, highest first:
//
//  1. Generic STORAGE_* environment variables
//  2. Provider-specific environment variables (OSS_*, AWS_*, MINIO_*, ...)
//  3. An unexpired temporary configuration stored alongside the profiles
//  4. The profile named with --profile, else the stored default profile
//  5. Provider defaults
//
// The store is a single file holding every named profile, the default
// pointer, and the optional temporary configuration, serialized as YAML and
// sealed with AES-256-GCM under an Argon2id-derived key. Writes are atomic:
// the new blob lands under a temporary name, is fsynced, the previous blob
// is kept as a .bak sibling, and a rename publishes the result.
package config
