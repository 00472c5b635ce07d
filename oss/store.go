// Package oss implements the oss provider over the Alibaba Cloud OSS SDK.
// The bucket is a flat keyspace following the objstore conventions. OSS has
// native append objects, so the connector implements Appender; objects
// created by regular puts are not appendable and fall back to a rewrite.
// The client predates context support, so cancellation threads through
// explicit checks and reader wrappers instead.
package oss

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	alioss "github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/sagarc03/storify"
	"github.com/sagarc03/storify/internal/objstore"
)

const listPageSize = 1000

// headerObjectType reports whether an object was born appendable.
const headerObjectType = "X-Oss-Object-Type"

// Config carries the connection settings for one OSS bucket. OSS folds the
// region into the endpoint host, so there is no separate region field.
type Config struct {
	Bucket          string
	AccessKeyID     string
	AccessKeySecret string
	// Endpoint is the region endpoint, with or without a scheme. Scheme-less
	// values connect over HTTPS.
	Endpoint string
	// RootPath scopes every operation under a key prefix inside the bucket.
	RootPath  string
	Anonymous bool
}

// Store provides storage operations over one OSS bucket.
type Store struct {
	bucket *alioss.Bucket
	keys   objstore.Mapper
}

// NewStore builds a Store from cfg. Empty credentials issue unsigned
// requests, which is how OSS serves public-read buckets.
func NewStore(_ context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: oss: bucket is required", storify.ErrConfig)
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: oss: endpoint is required", storify.ErrConfig)
	}

	id, secret := cfg.AccessKeyID, cfg.AccessKeySecret
	if cfg.Anonymous {
		id, secret = "", ""
	}

	client, err := alioss.New(normalizeEndpoint(cfg.Endpoint), id, secret)
	if err != nil {
		return nil, fmt.Errorf("%w: oss: %v", storify.ErrConfig, err)
	}
	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%w: oss: %v", storify.ErrConfig, err)
	}

	return &Store{
		bucket: bucket,
		keys:   objstore.NewMapper(cfg.RootPath),
	}, nil
}

// Provider identifies this connector.
func (s *Store) Provider() storify.Provider { return storify.ProviderOSS }

// Capabilities reports ranged reads over a flat keyspace.
func (s *Store) Capabilities() storify.Capabilities {
	return storify.Capabilities{RangedRead: true, HierarchicalDirs: false}
}

// List streams the entries under dir in key order. Shallow listings use the
// delimiter API; recursive ones walk the full prefix and synthesize the
// directories that have no marker object.
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
	walker := objstore.NewWalker(s.keys, dir, fn)
	prefix := s.keys.DirKey(dir)

	marker := ""
	seen := false
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := s.bucket.ListObjects(
			alioss.Prefix(prefix), alioss.Marker(marker), alioss.MaxKeys(listPageSize))
		if err != nil {
			return translate("list", dir, err)
		}
		for _, obj := range res.Objects {
			seen = true
			if err := walker.Offer(obj.Key, obj.Size, obj.LastModified); err != nil {
				return err
			}
		}
		if !res.IsTruncated {
			break
		}
		marker = res.NextMarker
	}
	if !seen && !storify.IsRoot(dir) {
		return storify.ErrNotFound
	}
	return nil
}

func (s *Store) listShallow(ctx context.Context, dir string, fn storify.ListFunc) error {
	prefix := s.keys.DirKey(dir)

	marker := ""
	seen := false
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := s.bucket.ListObjects(
			alioss.Prefix(prefix), alioss.Delimiter("/"), alioss.Marker(marker), alioss.MaxKeys(listPageSize))
		if err != nil {
			return translate("list", dir, err)
		}

		items := make([]objstore.Item, 0, len(res.Objects))
		for _, obj := range res.Objects {
			seen = true
			items = append(items, objstore.Item{Key: obj.Key, Size: obj.Size, ModTime: obj.LastModified})
		}
		if len(res.CommonPrefixes) > 0 {
			seen = true
		}
		if err := s.keys.MergeChildren(dir, items, res.CommonPrefixes, fn); err != nil {
			return err
		}
		if !res.IsTruncated {
			break
		}
		marker = res.NextMarker
	}
	if !seen && !storify.IsRoot(dir) {
		return storify.ErrNotFound
	}
	return nil
}

// Stat returns the entry at path. Files win over directories when a key and
// a marker collide; the root always exists.
func (s *Store) Stat(ctx context.Context, path string) (storify.Entry, error) {
	if storify.IsRoot(path) {
		return storify.Entry{Path: "/", Kind: storify.KindDirectory}, nil
	}

	meta, err := s.statKey(ctx, path, s.keys.Key(path))
	if err == nil {
		return storify.Entry{
			Path:    path,
			Kind:    storify.KindFile,
			Size:    meta.size,
			ModTime: meta.modTime,
		}, nil
	}
	if !errors.Is(err, storify.ErrNotFound) {
		return storify.Entry{}, err
	}
	return s.statDir(ctx, path)
}

// OpenRead opens path for streaming reads. OSS answers an out-of-range
// window with the whole object unless the standard range behavior header is
// sent, so every ranged request carries it and a 416 reads as empty.
func (s *Store) OpenRead(ctx context.Context, path string, rng *storify.ByteRange) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if rng != nil && rng.Length == 0 {
		return io.NopCloser(strings.NewReader("")), nil
	}

	var opts []alioss.Option
	if rng != nil {
		opts = append(opts, alioss.RangeBehavior("standard"))
		if rng.Length < 0 {
			opts = append(opts, alioss.NormalizedRange(fmt.Sprintf("%d-", rng.Offset)))
		} else {
			opts = append(opts, alioss.Range(rng.Offset, rng.Offset+rng.Length-1))
		}
	}

	rc, err := s.bucket.GetObject(s.keys.Key(path), opts...)
	if err != nil {
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
	return newCtxBody(ctx, rc), nil
}

// Write uploads the contents of r to path. The object appears only once the
// put commits.
func (s *Store) Write(ctx context.Context, path string, r io.Reader) (int64, error) {
	if ok, err := s.dirExists(ctx, path); err != nil {
		return 0, err
	} else if ok {
		return 0, fmt.Errorf("%w: %s is a directory", storify.ErrInvalidArgument, path)
	}

	counted := &objstore.CountingReader{R: r}
	err := s.bucket.PutObject(s.keys.Key(path), &objstore.ContextReader{Ctx: ctx, R: counted})
	if err != nil {
		return 0, translate("write", path, err)
	}
	return counted.N, nil
}

// Append streams r onto the end of the object at path, creating it when
// absent. Objects created by regular puts are not appendable; those are
// rewritten whole instead, before r is consumed, so no bytes are lost.
func (s *Store) Append(ctx context.Context, path string, r io.Reader) (int64, error) {
	key := s.keys.Key(path)

	meta, err := s.statKey(ctx, path, key)
	if errors.Is(err, storify.ErrNotFound) {
		meta = objectMeta{appendable: true}
	} else if err != nil {
		return 0, err
	}

	if !meta.appendable {
		return s.appendRewrite(ctx, path, key, r)
	}

	counted := &objstore.CountingReader{R: r}
	if _, err := s.bucket.AppendObject(key, &objstore.ContextReader{Ctx: ctx, R: counted}, meta.size); err != nil {
		return 0, translate("append", path, err)
	}
	return counted.N, nil
}

// appendRewrite grows a non-appendable object by rewriting it whole. The
// replacement is one atomic put, so readers see either the old content or
// the new, never a prefix.
func (s *Store) appendRewrite(ctx context.Context, path, key string, r io.Reader) (int64, error) {
	existing, err := s.bucket.GetObject(key)
	if err != nil {
		return 0, translate("append", path, err)
	}
	defer closeQuietly(existing)

	counted := &objstore.CountingReader{R: r}
	combined := io.MultiReader(existing, counted)
	if err := s.bucket.PutObject(key, &objstore.ContextReader{Ctx: ctx, R: combined}); err != nil {
		return 0, translate("append", path, err)
	}
	return counted.N, nil
}

// Delete removes the object or directory marker at path. DeleteObject
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
	res, err := s.bucket.ListObjects(alioss.Prefix(marker), alioss.MaxKeys(2))
	if err != nil {
		return translate("delete", path, err)
	}
	switch {
	case len(res.Objects) == 0:
		return storify.ErrNotFound
	case hasNonMarker(res.Objects, marker):
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

	if err := s.bucket.PutObject(s.keys.DirKey(path), bytes.NewReader(nil)); err != nil {
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

	_, err := s.bucket.CopyObject(s.keys.Key(src), s.keys.Key(dst))
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

// Rename moves a single object via copy-then-delete; OSS has no native move.
func (s *Store) Rename(ctx context.Context, src, dst string) error {
	if err := s.Copy(ctx, src, dst); err != nil {
		return err
	}
	return s.deleteKey(ctx, src, s.keys.Key(src))
}

// objectMeta is the slice of head-object metadata the connector uses.
type objectMeta struct {
	size       int64
	modTime    time.Time
	appendable bool
}

// statKey stats one object key, translating missing keys to ErrNotFound.
func (s *Store) statKey(ctx context.Context, path, key string) (objectMeta, error) {
	if err := ctx.Err(); err != nil {
		return objectMeta{}, err
	}
	h, err := s.bucket.GetObjectDetailedMeta(key)
	if err != nil {
		return objectMeta{}, translate("stat", path, err)
	}

	meta := objectMeta{appendable: h.Get(headerObjectType) == "Appendable"}
	meta.size, _ = strconv.ParseInt(h.Get("Content-Length"), 10, 64)
	if t, err := http.ParseTime(h.Get("Last-Modified")); err == nil {
		meta.modTime = t
	}
	return meta, nil
}

// statDir classifies path as a directory: its marker object exists or at
// least one key lives under the prefix. Implied directories carry no
// metadata.
func (s *Store) statDir(ctx context.Context, path string) (storify.Entry, error) {
	if err := ctx.Err(); err != nil {
		return storify.Entry{}, err
	}
	marker := s.keys.DirKey(path)
	res, err := s.bucket.ListObjects(alioss.Prefix(marker), alioss.MaxKeys(1))
	if err != nil {
		return storify.Entry{}, translate("stat", path, err)
	}
	if len(res.Objects) == 0 {
		return storify.Entry{}, storify.ErrNotFound
	}

	e := storify.Entry{Path: path, Kind: storify.KindDirectory}
	if first := res.Objects[0]; first.Key == marker {
		e.ModTime = first.LastModified
	}
	return e, nil
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
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.bucket.DeleteObject(key); err != nil {
		return translate("delete", path, err)
	}
	return nil
}

func hasNonMarker(objects []alioss.ObjectProperties, marker string) bool {
	for _, obj := range objects {
		if obj.Key != marker {
			return true
		}
	}
	return false
}

// ctxBody threads cancellation into a download stream.
type ctxBody struct {
	r *objstore.ContextReader
	c io.Closer
}

func newCtxBody(ctx context.Context, rc io.ReadCloser) io.ReadCloser {
	return &ctxBody{r: &objstore.ContextReader{Ctx: ctx, R: rc}, c: rc}
}

func (b *ctxBody) Read(p []byte) (int, error) { return b.r.Read(p) }
func (b *ctxBody) Close() error               { return b.c.Close() }

func closeQuietly(c io.Closer) {
	_ = c.Close()
}

func isInvalidRange(err error) bool {
	var srvErr alioss.ServiceError
	if !errors.As(err, &srvErr) {
		return false
	}
	return srvErr.Code == "InvalidRange" || srvErr.StatusCode == 416
}

func normalizeEndpoint(endpoint string) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	return "https://" + endpoint
}

// translate maps SDK faults onto the package sentinels at the backend
// boundary. Head requests carry no error body, so status codes back up the
// error code switch.
func translate(op, path string, err error) error {
	var srvErr alioss.ServiceError
	if errors.As(err, &srvErr) {
		switch srvErr.Code {
		case "NoSuchKey":
			return storify.ErrNotFound
		case "NoSuchBucket":
			return fmt.Errorf("%w: bucket does not exist", storify.ErrNotFound)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return storify.ErrPermissionDenied
		}
		switch srvErr.StatusCode {
		case http.StatusNotFound:
			return storify.ErrNotFound
		case http.StatusForbidden:
			return storify.ErrPermissionDenied
		}
	}
	return fmt.Errorf("%s %s: %w", op, path, err)
}
