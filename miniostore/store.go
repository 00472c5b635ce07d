// Package miniostore implements the minio provider over the MinIO Go
// client. MinIO speaks the S3 protocol against a self-hosted endpoint, so
// the connector follows the same flat-keyspace conventions as the s3
// package: directories are zero-byte marker objects or prefixes implied by
// deeper keys. The package name avoids a clash with the client library's
// own import name.
package miniostore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sagarc03/storify"
	"github.com/sagarc03/storify/internal/objstore"
)

const listPageSize = 1000

// Config carries the connection settings for one MinIO bucket. Endpoint is
// required; MinIO has no well-known default host.
type Config struct {
	Bucket          string
	AccessKeyID     string
	AccessKeySecret string
	Region          string
	// Endpoint accepts host:port or a full URL. Without a scheme the
	// connection is plain HTTP, the common shape for local deployments.
	Endpoint string
	// RootPath scopes every operation under a key prefix inside the bucket.
	RootPath  string
	Anonymous bool
}

// Store provides storage operations over one MinIO bucket.
type Store struct {
	client *minio.Client
	bucket string
	keys   objstore.Mapper
}

// NewStore builds a Store from cfg. MinIO has no ambient credential chain,
// so empty credentials mean unsigned requests.
func NewStore(_ context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: minio: bucket is required", storify.ErrConfig)
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: minio: endpoint is required", storify.ErrConfig)
	}

	host, secure, err := splitEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: minio: %v", storify.ErrConfig, err)
	}

	creds := credentials.NewStatic("", "", "", credentials.SignatureAnonymous)
	if !cfg.Anonymous && cfg.AccessKeyID != "" {
		creds = credentials.NewStaticV4(cfg.AccessKeyID, cfg.AccessKeySecret, "")
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  creds,
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: minio: %v", storify.ErrConfig, err)
	}

	return &Store{
		client: client,
		bucket: cfg.Bucket,
		keys:   objstore.NewMapper(cfg.RootPath),
	}, nil
}

// Provider identifies this connector.
func (s *Store) Provider() storify.Provider { return storify.ProviderMinIO }

// Capabilities reports ranged reads over a flat keyspace.
func (s *Store) Capabilities() storify.Capabilities {
	return storify.Capabilities{RangedRead: true, HierarchicalDirs: false}
}

// List streams the entries under dir in key order. The client library emits
// each page's objects before its common prefixes, so shallow listings are
// buffered and re-merged to restore key order.
func (s *Store) List(ctx context.Context, dir string, recursive bool, fn storify.ListFunc) error {
	if !storify.IsRoot(dir) {
		_, err := s.statKey(ctx, dir, s.keys.Key(dir))
		if err == nil {
			return fmt.Errorf("%w: %s is not a directory", storify.ErrInvalidArgument, dir)
		}
		if !errors.Is(err, storify.ErrNotFound) {
			return err
		}
	}

	if recursive {
		return s.listRecursive(ctx, dir, fn)
	}
	return s.listShallow(ctx, dir, fn)
}

func (s *Store) listRecursive(ctx context.Context, dir string, fn storify.ListFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	walker := objstore.NewWalker(s.keys, dir, fn)
	seen := false
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.keys.DirKey(dir),
		Recursive: true,
		MaxKeys:   listPageSize,
	}) {
		if obj.Err != nil {
			return translate("list", dir, obj.Err)
		}
		seen = true
		if err := walker.Offer(obj.Key, obj.Size, obj.LastModified); err != nil {
			return err
		}
	}
	if !seen && !storify.IsRoot(dir) {
		return storify.ErrNotFound
	}
	return nil
}

func (s *Store) listShallow(ctx context.Context, dir string, fn storify.ListFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	self := s.keys.DirKey(dir)
	var items []objstore.Item
	var prefixes []string
	seen := false
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:  self,
		MaxKeys: listPageSize,
	}) {
		if obj.Err != nil {
			return translate("list", dir, obj.Err)
		}
		seen = true
		if objstore.IsDirKey(obj.Key) && obj.Key != self {
			prefixes = append(prefixes, obj.Key)
		} else {
			items = append(items, objstore.Item{Key: obj.Key, Size: obj.Size, ModTime: obj.LastModified})
		}
	}
	if !seen {
		if storify.IsRoot(dir) {
			return nil
		}
		return storify.ErrNotFound
	}
	return s.keys.MergeChildren(dir, items, prefixes, fn)
}

// Stat returns the entry at path. Files win over directories when a key and
// a marker collide; the root always exists.
func (s *Store) Stat(ctx context.Context, path string) (storify.Entry, error) {
	if storify.IsRoot(path) {
		return storify.Entry{Path: "/", Kind: storify.KindDirectory}, nil
	}

	info, err := s.statKey(ctx, path, s.keys.Key(path))
	if err == nil {
		return storify.Entry{
			Path:    path,
			Kind:    storify.KindFile,
			Size:    info.Size,
			ModTime: info.LastModified,
		}, nil
	}
	if !errors.Is(err, storify.ErrNotFound) {
		return storify.Entry{}, err
	}
	return s.statDir(ctx, path)
}

// OpenRead opens path for streaming reads. The handle is lazy, so the first
// stat forces the request and surfaces missing objects here rather than on
// the first read. A window past the end of the object reads as empty.
func (s *Store) OpenRead(ctx context.Context, path string, rng *storify.ByteRange) (io.ReadCloser, error) {
	if rng != nil && rng.Length == 0 {
		return io.NopCloser(strings.NewReader("")), nil
	}

	opts := minio.GetObjectOptions{}
	if rng != nil {
		end := int64(0)
		if rng.Length > 0 {
			end = rng.Offset + rng.Length - 1
		}
		if err := opts.SetRange(rng.Offset, end); err != nil {
			return nil, fmt.Errorf("%w: %v", storify.ErrInvalidArgument, err)
		}
	}

	obj, err := s.client.GetObject(ctx, s.bucket, s.keys.Key(path), opts)
	if err != nil {
		return nil, translate("open", path, err)
	}
	if _, err := obj.Stat(); err != nil {
		closeQuietly(obj)
		if isInvalidRange(err) {
			return io.NopCloser(strings.NewReader("")), nil
		}
		terr := translate("open", path, err)
		if errors.Is(terr, storify.ErrNotFound) {
			if ok, derr := s.dirExists(ctx, path); derr == nil && ok {
				return nil, fmt.Errorf("%w: %s is a directory", storify.ErrInvalidArgument, path)
			}
		}
		return nil, terr
	}
	return obj, nil
}

// Write uploads the contents of r to path. Streams of unknown length go
// through the multipart path with bounded part buffers.
func (s *Store) Write(ctx context.Context, path string, r io.Reader) (int64, error) {
	if ok, err := s.dirExists(ctx, path); err != nil {
		return 0, err
	} else if ok {
		return 0, fmt.Errorf("%w: %s is a directory", storify.ErrInvalidArgument, path)
	}

	counted := &objstore.CountingReader{R: r}
	_, err := s.client.PutObject(ctx, s.bucket, s.keys.Key(path), counted, -1, minio.PutObjectOptions{
		PartSize: 16 << 20,
	})
	if err != nil {
		return 0, translate("write", path, err)
	}
	return counted.N, nil
}

// Delete removes the object or directory marker at path. RemoveObject
// succeeds on keys that never existed, so the path is classified first.
func (s *Store) Delete(ctx context.Context, path string) error {
	if storify.IsRoot(path) {
		return fmt.Errorf("%w: cannot delete the storage root", storify.ErrInvalidArgument)
	}

	key := s.keys.Key(path)
	_, err := s.statKey(ctx, path, key)
	if err == nil {
		return s.deleteKey(ctx, path, key)
	}
	if !errors.Is(err, storify.ErrNotFound) {
		return err
	}

	marker := s.keys.DirKey(path)
	children, err := s.peekPrefix(ctx, path, marker, 2)
	if err != nil {
		return err
	}
	switch {
	case len(children) == 0:
		return storify.ErrNotFound
	case hasNonMarker(children, marker):
		return fmt.Errorf("%w: directory %s is not empty", storify.ErrInvalidArgument, path)
	}
	return s.deleteKey(ctx, path, marker)
}

// CreateDir writes a zero-byte marker object for path. Intermediate levels
// become implied directories through the new marker's key.
func (s *Store) CreateDir(ctx context.Context, path string, recursive bool) error {
	if storify.IsRoot(path) {
		return storify.ErrAlreadyExists
	}

	_, err := s.statKey(ctx, path, s.keys.Key(path))
	if err == nil {
		return storify.ErrAlreadyExists
	}
	if !errors.Is(err, storify.ErrNotFound) {
		return err
	}
	if ok, err := s.dirExists(ctx, path); err != nil {
		return err
	} else if ok {
		return storify.ErrAlreadyExists
	}

	if !recursive {
		if ok, err := s.dirExists(ctx, storify.ParentDir(path)); err != nil {
			return err
		} else if !ok {
			return storify.ErrNotFound
		}
	}

	_, err = s.client.PutObject(ctx, s.bucket, s.keys.DirKey(path), bytes.NewReader(nil), 0, minio.PutObjectOptions{})
	if err != nil {
		return translate("mkdir", path, err)
	}
	return nil
}

// Copy duplicates a single object server-side.
func (s *Store) Copy(ctx context.Context, src, dst string) error {
	if ok, err := s.dirExists(ctx, dst); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("%w: %s is a directory", storify.ErrInvalidArgument, dst)
	}

	_, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.bucket, Object: s.keys.Key(dst)},
		minio.CopySrcOptions{Bucket: s.bucket, Object: s.keys.Key(src)},
	)
	if err != nil {
		terr := translate("copy", src, err)
		if errors.Is(terr, storify.ErrNotFound) {
			if ok, derr := s.dirExists(ctx, src); derr == nil && ok {
				return fmt.Errorf("%w: %s is a directory", storify.ErrInvalidArgument, src)
			}
		}
		return terr
	}
	return nil
}

// Rename moves a single object via copy-then-delete.
func (s *Store) Rename(ctx context.Context, src, dst string) error {
	if err := s.Copy(ctx, src, dst); err != nil {
		return err
	}
	return s.deleteKey(ctx, src, s.keys.Key(src))
}

// statKey stats one object key, translating missing keys to ErrNotFound.
func (s *Store) statKey(ctx context.Context, path, key string) (minio.ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return minio.ObjectInfo{}, translate("stat", path, err)
	}
	return info, nil
}

// statDir classifies path as a directory: its marker object exists or at
// least one key lives under the prefix. Implied directories carry no
// metadata.
func (s *Store) statDir(ctx context.Context, path string) (storify.Entry, error) {
	marker := s.keys.DirKey(path)
	children, err := s.peekPrefix(ctx, path, marker, 1)
	if err != nil {
		return storify.Entry{}, err
	}
	if len(children) == 0 {
		return storify.Entry{}, storify.ErrNotFound
	}

	e := storify.Entry{Path: path, Kind: storify.KindDirectory}
	if first := children[0]; first.Key == marker {
		e.ModTime = first.LastModified
	}
	return e, nil
}

// peekPrefix collects up to limit keys under prefix. Canceling the derived
// context releases the library's listing goroutine once enough keys arrived.
func (s *Store) peekPrefix(ctx context.Context, path, prefix string, limit int) ([]minio.ObjectInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var out []minio.ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
		MaxKeys:   limit,
	}) {
		if obj.Err != nil {
			return nil, translate("stat", path, obj.Err)
		}
		out = append(out, obj)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) dirExists(ctx context.Context, path string) (bool, error) {
	if storify.IsRoot(path) {
		return true, nil
	}
	_, err := s.statDir(ctx, path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storify.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (s *Store) deleteKey(ctx context.Context, path, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return translate("delete", path, err)
	}
	return nil
}

func hasNonMarker(objects []minio.ObjectInfo, marker string) bool {
	for _, obj := range objects {
		if obj.Key != marker {
			return true
		}
	}
	return false
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}

func isInvalidRange(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "InvalidRange" || resp.StatusCode == 416
}

// splitEndpoint separates a configured endpoint into the host the client
// dials and the TLS switch.
func splitEndpoint(endpoint string) (host string, secure bool, err error) {
	if !strings.Contains(endpoint, "://") {
		return endpoint, false, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("invalid endpoint: %v", err)
	}
	switch u.Scheme {
	case "https":
		secure = true
	case "http":
		secure = false
	default:
		return "", false, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	return u.Host, secure, nil
}

// translate maps client faults onto the package sentinels at the backend
// boundary; unmapped failures keep their operation context.
func translate(op, path string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NotFound":
		return storify.ErrNotFound
	case "NoSuchBucket":
		return fmt.Errorf("%w: bucket does not exist", storify.ErrNotFound)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return storify.ErrPermissionDenied
	}
	if resp.StatusCode == 404 {
		return storify.ErrNotFound
	}
	return fmt.Errorf("%s %s: %w", op, path, err)
}
