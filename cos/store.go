// Package cos implements the cos provider over the Tencent Cloud COS SDK.
// The bucket is a flat keyspace following the objstore conventions. COS has
// native append objects like OSS, so the connector implements Appender and
// rewrites objects that were created by regular puts.
package cos

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	tcos "github.com/tencentyun/cos-go-sdk-v5"

	"github.com/sagarc03/storify"
	"github.com/sagarc03/storify/internal/objstore"
)

const listPageSize = 1000

// Config carries the connection settings for one COS bucket. The bucket
// name includes the APPID suffix, the form COS itself uses.
type Config struct {
	Bucket          string
	AccessKeyID     string
	AccessKeySecret string
	// Region selects the default endpoint <bucket>.cos.<region>.myqcloud.com.
	Region string
	// Endpoint overrides the bucket URL entirely. One of Region or Endpoint
	// must be set.
	Endpoint string
	// RootPath scopes every operation under a key prefix inside the bucket.
	RootPath string
}

// Store provides storage operations over one COS bucket.
type Store struct {
	client *tcos.Client
	// host is the bucket host, the prefix COS wants on copy sources.
	host string
	keys objstore.Mapper
}

// NewStore builds a Store from cfg. Empty credentials issue unsigned
// requests.
func NewStore(_ context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: cos: bucket is required", storify.ErrConfig)
	}
	base, err := bucketURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: cos: %v", storify.ErrConfig, err)
	}

	httpClient := &http.Client{}
	if cfg.AccessKeyID != "" {
		httpClient.Transport = &tcos.AuthorizationTransport{
			SecretID:  cfg.AccessKeyID,
			SecretKey: cfg.AccessKeySecret,
		}
	}

	return &Store{
		client: tcos.NewClient(&tcos.BaseURL{BucketURL: base}, httpClient),
		host:   base.Host,
		keys:   objstore.NewMapper(cfg.RootPath),
	}, nil
}

func bucketURL(cfg Config) (*url.URL, error) {
	if cfg.Endpoint != "" {
		return url.Parse(normalizeEndpoint(cfg.Endpoint))
	}
	if cfg.Region == "" {
		return nil, errors.New("region or endpoint is required")
	}
	return url.Parse(fmt.Sprintf("https://%s.cos.%s.myqcloud.com", cfg.Bucket, cfg.Region))
}

// Provider identifies this connector.
func (s *Store) Provider() storify.Provider { return storify.ProviderCOS }

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
		res, _, err := s.client.Bucket.Get(ctx, &tcos.BucketGetOptions{
			Prefix:  prefix,
			Marker:  marker,
			MaxKeys: listPageSize,
		})
		if err != nil {
			return translate("list", dir, err)
		}
		for _, obj := range res.Contents {
			seen = true
			if err := walker.Offer(obj.Key, obj.Size, parseTime(obj.LastModified)); err != nil {
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
		res, _, err := s.client.Bucket.Get(ctx, &tcos.BucketGetOptions{
			Prefix:    prefix,
			Delimiter: "/",
			Marker:    marker,
			MaxKeys:   listPageSize,
		})
		if err != nil {
			return translate("list", dir, err)
		}

		items := make([]objstore.Item, 0, len(res.Contents))
		for _, obj := range res.Contents {
			seen = true
			items = append(items, objstore.Item{Key: obj.Key, Size: obj.Size, ModTime: parseTime(obj.LastModified)})
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

// OpenRead opens path for streaming reads. Ranges map onto HTTP Range
// headers; a window past the end of the object reads as empty.
func (s *Store) OpenRead(ctx context.Context, path string, rng *storify.ByteRange) (io.ReadCloser, error) {
	if rng != nil && rng.Length == 0 {
		return io.NopCloser(strings.NewReader("")), nil
	}

	opt := &tcos.ObjectGetOptions{}
	if rng != nil {
		opt.Range = rangeHeader(rng)
	}

	resp, err := s.client.Object.Get(ctx, s.keys.Key(path), opt)
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
	return resp.Body, nil
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
	resp, err := s.client.Object.Put(ctx, s.keys.Key(path), counted, nil)
	if err != nil {
		return 0, translate("write", path, err)
	}
	closeQuietly(resp.Body)
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
	_, resp, err := s.client.Object.Append(ctx, key, int(meta.size), counted, nil)
	if err != nil {
		return 0, translate("append", path, err)
	}
	closeQuietly(resp.Body)
	return counted.N, nil
}

// appendRewrite grows a non-appendable object by rewriting it whole through
// one atomic put.
func (s *Store) appendRewrite(ctx context.Context, path, key string, r io.Reader) (int64, error) {
	existing, err := s.client.Object.Get(ctx, key, nil)
	if err != nil {
		return 0, translate("append", path, err)
	}
	defer closeQuietly(existing.Body)

	counted := &objstore.CountingReader{R: r}
	combined := io.MultiReader(existing.Body, counted)
	resp, err := s.client.Object.Put(ctx, key, combined, nil)
	if err != nil {
		return 0, translate("append", path, err)
	}
	closeQuietly(resp.Body)
	return counted.N, nil
}

// Delete removes the object or directory marker at path. Object deletion
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
	res, _, err := s.client.Bucket.Get(ctx, &tcos.BucketGetOptions{Prefix: marker, MaxKeys: 2})
	if err != nil {
		return translate("delete", path, err)
	}
	switch {
	case len(res.Contents) == 0:
		return storify.ErrNotFound
	case hasNonMarker(res.Contents, marker):
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

	resp, err := s.client.Object.Put(ctx, s.keys.DirKey(path), bytes.NewReader(nil), nil)
	if err != nil {
		return translate("mkdir", path, err)
	}
	closeQuietly(resp.Body)
	return nil
}

// Copy duplicates a single object server-side.
func (s *Store) Copy(ctx context.Context, src, dst string) error {
	if ok, err := s.dirExists(ctx, dst); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("%w: %s is a directory", storify.ErrInvalidArgument, dst)
	}

	source := s.host + "/" + s.keys.Key(src)
	_, resp, err := s.client.Object.Copy(ctx, s.keys.Key(dst), source, nil)
	if err != nil {
		terr := translate("copy", src, err)
		if errors.Is(terr, storify.ErrNotFound) {
			if ok, derr := s.dirExists(ctx, src); derr == nil && ok {
				return fmt.Errorf("%w: %s is a directory", storify.ErrInvalidArgument, src)
			}
		}
		return terr
	}
	closeQuietly(resp.Body)
	return nil
}

// Rename moves a single object via copy-then-delete; COS has no native move.
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
	resp, err := s.client.Object.Head(ctx, key, nil)
	if err != nil {
		return objectMeta{}, translate("stat", path, err)
	}
	defer closeQuietly(resp.Body)

	meta := objectMeta{
		size:       resp.ContentLength,
		appendable: strings.EqualFold(resp.Header.Get("x-cos-object-type"), "appendable"),
	}
	if t, terr := http.ParseTime(resp.Header.Get("Last-Modified")); terr == nil {
		meta.modTime = t
	}
	return meta, nil
}

// statDir classifies path as a directory: its marker object exists or at
// least one key lives under the prefix. Implied directories carry no
// metadata.
func (s *Store) statDir(ctx context.Context, path string) (storify.Entry, error) {
	marker := s.keys.DirKey(path)
	res, _, err := s.client.Bucket.Get(ctx, &tcos.BucketGetOptions{Prefix: marker, MaxKeys: 1})
	if err != nil {
		return storify.Entry{}, translate("stat", path, err)
	}
	if len(res.Contents) == 0 {
		return storify.Entry{}, storify.ErrNotFound
	}

	e := storify.Entry{Path: path, Kind: storify.KindDirectory}
	if first := res.Contents[0]; first.Key == marker {
		e.ModTime = parseTime(first.LastModified)
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
	resp, err := s.client.Object.Delete(ctx, key)
	if err != nil {
		return translate("delete", path, err)
	}
	closeQuietly(resp.Body)
	return nil
}

func hasNonMarker(objects []tcos.Object, marker string) bool {
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

// parseTime reads the RFC3339 stamps COS uses in listings.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// rangeHeader renders a ByteRange as an HTTP Range header value.
func rangeHeader(rng *storify.ByteRange) string {
	if rng.Length < 0 {
		return fmt.Sprintf("bytes=%d-", rng.Offset)
	}
	return fmt.Sprintf("bytes=%d-%d", rng.Offset, rng.Offset+rng.Length-1)
}

func isInvalidRange(err error) bool {
	var errResp *tcos.ErrorResponse
	if !errors.As(err, &errResp) {
		return false
	}
	if errResp.Code == "InvalidRange" {
		return true
	}
	return errResp.Response != nil && errResp.Response.StatusCode == http.StatusRequestedRangeNotSatisfiable
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
	var errResp *tcos.ErrorResponse
	if errors.As(err, &errResp) {
		switch errResp.Code {
		case "NoSuchKey":
			return storify.ErrNotFound
		case "NoSuchBucket":
			return fmt.Errorf("%w: bucket does not exist", storify.ErrNotFound)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return storify.ErrPermissionDenied
		}
		if errResp.Response != nil {
			switch errResp.Response.StatusCode {
			case http.StatusNotFound:
				return storify.ErrNotFound
			case http.StatusForbidden:
				return storify.ErrPermissionDenied
			}
		}
	}
	return fmt.Errorf("%s %s: %w", op, path, err)
}
