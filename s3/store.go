// Package s3 implements the s3 provider over the AWS SDK for Go v2. The
// bucket is a flat keyspace: directories are zero-byte marker objects or
// prefixes implied by deeper keys, per the objstore conventions. Writes go
// through the transfer manager so arbitrary streams upload without
// buffering whole files, and S3's atomic PutObject supplies the
// visibility-on-commit guarantee.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/sagarc03/storify"
	"github.com/sagarc03/storify/internal/objstore"
)

const listPageSize = 1000

// Config carries the connection settings for one S3 bucket.
type Config struct {
	Bucket          string
	AccessKeyID     string
	AccessKeySecret string
	Region          string
	// Endpoint switches the client to an S3-compatible service. Path-style
	// addressing is enabled alongside it since most compatible services
	// do not resolve virtual-host bucket names.
	Endpoint string
	// RootPath scopes every operation under a key prefix inside the bucket.
	RootPath  string
	Anonymous bool
}

// Store provides storage operations over one S3 bucket.
type Store struct {
	client   *awss3.Client
	uploader *manager.Uploader
	bucket   string
	keys     objstore.Mapper
}

// NewStore builds a Store from cfg. Credentials left empty fall through to
// the usual AWS resolution chain unless Anonymous pins unsigned requests.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: s3: bucket is required", storify.ErrConfig)
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	region := cfg.Region
	if region == "" && cfg.Endpoint != "" {
		// Compatible services ignore the region but the signer still
		// needs one.
		region = "us-east-1"
	}
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	switch {
	case cfg.Anonymous:
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}))
	case cfg.AccessKeyID != "":
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.AccessKeySecret, "")))
	}
	if cfg.Endpoint != "" {
		// Older S3-compatible services reject the SDK's default checksum
		// trailers, so only send checksums when an operation demands one.
		loadOpts = append(loadOpts, awsconfig.WithRequestChecksumCalculation(aws.RequestChecksumCalculationWhenRequired))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: s3: load aws config: %v", storify.ErrConfig, err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(normalizeEndpoint(cfg.Endpoint))
			o.UsePathStyle = true
		}
	})

	return &Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		keys:     objstore.NewMapper(cfg.RootPath),
	}, nil
}

// Provider identifies this connector.
func (s *Store) Provider() storify.Provider { return storify.ProviderS3 }

// Capabilities reports ranged reads over a flat keyspace.
func (s *Store) Capabilities() storify.Capabilities {
	return storify.Capabilities{RangedRead: true, HierarchicalDirs: false}
}

// List streams the entries under dir in key order. Shallow listings use the
// delimiter API; recursive ones walk the full prefix and synthesize the
// directories that have no marker object.
func (s *Store) List(ctx context.Context, dir string, recursive bool, fn storify.ListFunc) error {
	if !storify.IsRoot(dir) {
		_, err := s.headKey(ctx, dir, s.keys.Key(dir))
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
	p := awss3.NewListObjectsV2Paginator(s.client, &awss3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(s.keys.DirKey(dir)),
		MaxKeys: aws.Int32(listPageSize),
	})

	seen := false
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return translate("list", dir, err)
		}
		for _, obj := range page.Contents {
			seen = true
			if err := walker.Offer(aws.ToString(obj.Key), aws.ToInt64(obj.Size), aws.ToTime(obj.LastModified)); err != nil {
				return err
			}
		}
	}
	if !seen && !storify.IsRoot(dir) {
		return storify.ErrNotFound
	}
	return nil
}

func (s *Store) listShallow(ctx context.Context, dir string, fn storify.ListFunc) error {
	p := awss3.NewListObjectsV2Paginator(s.client, &awss3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(s.keys.DirKey(dir)),
		Delimiter: aws.String("/"),
		MaxKeys:   aws.Int32(listPageSize),
	})

	seen := false
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return translate("list", dir, err)
		}

		items := make([]objstore.Item, 0, len(page.Contents))
		for _, obj := range page.Contents {
			seen = true
			items = append(items, objstore.Item{
				Key:     aws.ToString(obj.Key),
				Size:    aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified),
			})
		}
		prefixes := make([]string, 0, len(page.CommonPrefixes))
		for _, cp := range page.CommonPrefixes {
			seen = true
			prefixes = append(prefixes, aws.ToString(cp.Prefix))
		}
		if err := s.keys.MergeChildren(dir, items, prefixes, fn); err != nil {
			return err
		}
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

	out, err := s.headKey(ctx, path, s.keys.Key(path))
	if err == nil {
		return storify.Entry{
			Path:    path,
			Kind:    storify.KindFile,
			Size:    aws.ToInt64(out.ContentLength),
			ModTime: aws.ToTime(out.LastModified),
		}, nil
	}
	if !errors.Is(err, storify.ErrNotFound) {
		return storify.Entry{}, err
	}
	return s.statDir(ctx, path)
}

// OpenRead opens path for streaming reads. Ranges map onto HTTP Range
// headers; a window past the end of the object reads as empty, matching a
// seek past EOF on a local file.
func (s *Store) OpenRead(ctx context.Context, path string, rng *storify.ByteRange) (io.ReadCloser, error) {
	if rng != nil && rng.Length == 0 {
		return io.NopCloser(strings.NewReader("")), nil
	}

	input := &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.keys.Key(path)),
	}
	if rng != nil {
		input.Range = aws.String(rangeHeader(rng))
	}

	out, err := s.client.GetObject(ctx, input)
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
	return out.Body, nil
}

// Write uploads the contents of r to path. The object appears only once the
// upload commits, so readers never observe partial content under the final
// key.
func (s *Store) Write(ctx context.Context, path string, r io.Reader) (int64, error) {
	if ok, err := s.dirExists(ctx, path); err != nil {
		return 0, err
	} else if ok {
		return 0, fmt.Errorf("%w: %s is a directory", storify.ErrInvalidArgument, path)
	}

	counted := &objstore.CountingReader{R: r}
	_, err := s.uploader.Upload(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.keys.Key(path)),
		Body:   counted,
	})
	if err != nil {
		return 0, translate("write", path, err)
	}
	return counted.N, nil
}

// Delete removes the object or directory marker at path. Directories must
// be empty apart from their own marker; a path with neither key nor marker
// nor children is ErrNotFound.
func (s *Store) Delete(ctx context.Context, path string) error {
	if storify.IsRoot(path) {
		return fmt.Errorf("%w: cannot delete the storage root", storify.ErrInvalidArgument)
	}

	key := s.keys.Key(path)
	_, err := s.headKey(ctx, path, key)
	if err == nil {
		return s.deleteKey(ctx, path, key)
	}
	if !errors.Is(err, storify.ErrNotFound) {
		return err
	}

	marker := s.keys.DirKey(path)
	out, err := s.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(marker),
		MaxKeys: aws.Int32(2),
	})
	if err != nil {
		return translate("delete", path, err)
	}
	switch {
	case len(out.Contents) == 0:
		return storify.ErrNotFound
	case hasNonMarker(out.Contents, marker):
		return fmt.Errorf("%w: directory %s is not empty", storify.ErrInvalidArgument, path)
	}
	return s.deleteKey(ctx, path, marker)
}

// CreateDir writes a zero-byte marker object for path. Intermediate levels
// need no markers of their own: the new marker's key makes them implied
// directories, which satisfies recursive creation.
func (s *Store) CreateDir(ctx context.Context, path string, recursive bool) error {
	if storify.IsRoot(path) {
		return storify.ErrAlreadyExists
	}

	_, err := s.headKey(ctx, path, s.keys.Key(path))
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

	_, err = s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.keys.DirKey(path)),
		Body:   bytes.NewReader(nil),
	})
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

	source := url.PathEscape(s.bucket + "/" + s.keys.Key(src))
	_, err := s.client.CopyObject(ctx, &awss3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(s.keys.Key(dst)),
		CopySource: aws.String(source),
	})
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

// Rename moves a single object via copy-then-delete; S3 has no native move.
func (s *Store) Rename(ctx context.Context, src, dst string) error {
	if err := s.Copy(ctx, src, dst); err != nil {
		return err
	}
	return s.deleteKey(ctx, src, s.keys.Key(src))
}

// headKey stats one object key, translating missing keys to ErrNotFound.
func (s *Store) headKey(ctx context.Context, path, key string) (*awss3.HeadObjectOutput, error) {
	out, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, translate("stat", path, err)
	}
	return out, nil
}

// statDir classifies path as a directory: its marker object exists or at
// least one key lives under the prefix. Implied directories carry no
// metadata.
func (s *Store) statDir(ctx context.Context, path string) (storify.Entry, error) {
	marker := s.keys.DirKey(path)
	out, err := s.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(marker),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return storify.Entry{}, translate("stat", path, err)
	}
	if len(out.Contents) == 0 {
		return storify.Entry{}, storify.ErrNotFound
	}

	e := storify.Entry{Path: path, Kind: storify.KindDirectory}
	if first := out.Contents[0]; aws.ToString(first.Key) == marker {
		e.ModTime = aws.ToTime(first.LastModified)
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
	_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return translate("delete", path, err)
	}
	return nil
}

func hasNonMarker(objects []types.Object, marker string) bool {
	for _, obj := range objects {
		if aws.ToString(obj.Key) != marker {
			return true
		}
	}
	return false
}

// rangeHeader renders a ByteRange as an HTTP Range header value.
func rangeHeader(rng *storify.ByteRange) string {
	if rng.Length < 0 {
		return fmt.Sprintf("bytes=%d-", rng.Offset)
	}
	return fmt.Sprintf("bytes=%d-%d", rng.Offset, rng.Offset+rng.Length-1)
}

func isInvalidRange(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidRange"
}

func normalizeEndpoint(endpoint string) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	return "https://" + endpoint
}

// translate maps SDK faults onto the package sentinels at the backend
// boundary; unmapped failures keep their operation context.
func translate(op, path string, err error) error {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	var noSuchBucket *types.NoSuchBucket
	switch {
	case errors.As(err, &notFound), errors.As(err, &noSuchKey):
		return storify.ErrNotFound
	case errors.As(err, &noSuchBucket):
		return fmt.Errorf("%w: bucket does not exist", storify.ErrNotFound)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return storify.ErrNotFound
		case "NoSuchBucket":
			return fmt.Errorf("%w: bucket does not exist", storify.ErrNotFound)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return storify.ErrPermissionDenied
		}
	}
	return fmt.Errorf("%s %s: %w", op, path, err)
}
