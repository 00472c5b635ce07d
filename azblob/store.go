// Package azblob implements the azblob provider over the Azure Blob Storage
// SDK. The container is a flat keyspace following the objstore conventions.
// Appends create append blobs natively and fall back to a whole-object
// rewrite for blobs that were uploaded as block blobs.
package azblob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	azsdk "github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/appendblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/sagarc03/storify"
	"github.com/sagarc03/storify/internal/objstore"
)

const listPageSize = 1000

// Config carries the connection settings for one blob container. The shared
// key pair is the storage account name and its base64 account key.
type Config struct {
	// Bucket names the container.
	Bucket          string
	AccessKeyID     string
	AccessKeySecret string
	// Endpoint overrides the service URL. Without it the account name
	// selects https://<account>.blob.core.windows.net.
	Endpoint string
	// RootPath scopes every operation under a key prefix inside the
	// container.
	RootPath string
}

// Store provides storage operations over one blob container.
type Store struct {
	client    *azsdk.Client
	container *container.Client
	// name is the container name for the client-level helpers.
	name string
	keys objstore.Mapper
}

// NewStore builds a Store from cfg. Empty credentials issue unsigned
// requests, which only public containers accept.
func NewStore(_ context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: azblob: container is required", storify.ErrConfig)
	}

	serviceURL := ""
	switch {
	case cfg.Endpoint != "":
		serviceURL = normalizeEndpoint(cfg.Endpoint)
	case cfg.AccessKeyID != "":
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccessKeyID)
	default:
		return nil, fmt.Errorf("%w: azblob: account name or endpoint is required", storify.ErrConfig)
	}

	var client *azsdk.Client
	var err error
	if cfg.AccessKeyID != "" {
		cred, credErr := azsdk.NewSharedKeyCredential(cfg.AccessKeyID, cfg.AccessKeySecret)
		if credErr != nil {
			return nil, fmt.Errorf("%w: azblob: %v", storify.ErrConfig, credErr)
		}
		client, err = azsdk.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	} else {
		client, err = azsdk.NewClientWithNoCredential(serviceURL, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("azblob: client: %w", err)
	}

	return &Store{
		client:    client,
		container: client.ServiceClient().NewContainerClient(cfg.Bucket),
		name:      cfg.Bucket,
		keys:      objstore.NewMapper(cfg.RootPath),
	}, nil
}

// Provider identifies this connector.
func (s *Store) Provider() storify.Provider { return storify.ProviderAzblob }

// Capabilities reports ranged reads over a flat keyspace.
func (s *Store) Capabilities() storify.Capabilities {
	return storify.Capabilities{RangedRead: true, HierarchicalDirs: false}
}

// List streams the entries under dir in key order. Shallow listings use the
// hierarchy API; recursive ones walk the full prefix and synthesize the
// directories that have no marker blob.
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

	pager := s.client.NewListBlobsFlatPager(s.name, &azsdk.ListBlobsFlatOptions{
		Prefix:     to.Ptr(s.keys.DirKey(dir)),
		MaxResults: to.Ptr(int32(listPageSize)),
	})
	seen := false
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return translate("list", dir, err)
		}
		for _, item := range page.Segment.BlobItems {
			seen = true
			size, mod := itemMeta(item)
			if err := walker.Offer(strVal(item.Name), size, mod); err != nil {
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
	pager := s.container.NewListBlobsHierarchyPager("/", &container.ListBlobsHierarchyOptions{
		Prefix:     to.Ptr(s.keys.DirKey(dir)),
		MaxResults: to.Ptr(int32(listPageSize)),
	})
	seen := false
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return translate("list", dir, err)
		}

		items := make([]objstore.Item, 0, len(page.Segment.BlobItems))
		for _, item := range page.Segment.BlobItems {
			seen = true
			size, mod := itemMeta(item)
			items = append(items, objstore.Item{Key: strVal(item.Name), Size: size, ModTime: mod})
		}
		prefixes := make([]string, 0, len(page.Segment.BlobPrefixes))
		for _, p := range page.Segment.BlobPrefixes {
			seen = true
			prefixes = append(prefixes, strVal(p.Name))
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

// Stat returns the entry at path. Blobs win over directories when a key and
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
// headers; a window past the end of the blob reads as empty.
func (s *Store) OpenRead(ctx context.Context, path string, rng *storify.ByteRange) (io.ReadCloser, error) {
	if rng != nil && rng.Length == 0 {
		return io.NopCloser(strings.NewReader("")), nil
	}

	var opts *azsdk.DownloadStreamOptions
	if rng != nil {
		httpRange := azsdk.HTTPRange{Offset: rng.Offset}
		if rng.Length > 0 {
			httpRange.Count = rng.Length
		}
		opts = &azsdk.DownloadStreamOptions{Range: httpRange}
	}

	resp, err := s.client.DownloadStream(ctx, s.name, s.keys.Key(path), opts)
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

// Write uploads the contents of r to path as a block blob. The blob appears
// only once the upload commits.
func (s *Store) Write(ctx context.Context, path string, r io.Reader) (int64, error) {
	if ok, err := s.dirExists(ctx, path); err != nil {
		return 0, err
	} else if ok {
		return 0, fmt.Errorf("%w: %s is a directory", storify.ErrInvalidArgument, path)
	}

	counted := &objstore.CountingReader{R: r}
	if _, err := s.client.UploadStream(ctx, s.name, s.keys.Key(path), counted, nil); err != nil {
		return 0, translate("write", path, err)
	}
	return counted.N, nil
}

// Append streams r onto the end of the blob at path, creating an append blob
// when absent. Block blobs cannot grow in place; those are rewritten whole
// instead, before r is consumed, so no bytes are lost.
func (s *Store) Append(ctx context.Context, path string, r io.Reader) (int64, error) {
	key := s.keys.Key(path)

	meta, err := s.statKey(ctx, path, key)
	if errors.Is(err, storify.ErrNotFound) {
		ab := s.container.NewAppendBlobClient(key)
		if _, err := ab.Create(ctx, nil); err != nil {
			return 0, translate("append", path, err)
		}
		return s.appendBlocks(ctx, path, ab, r)
	}
	if err != nil {
		return 0, err
	}

	if !meta.appendable {
		return s.appendRewrite(ctx, path, key, r)
	}
	return s.appendBlocks(ctx, path, s.container.NewAppendBlobClient(key), r)
}

// appendBlocks feeds r to the append blob in service-sized blocks. Each
// block needs a seekable body, so reads stage through one reused buffer.
func (s *Store) appendBlocks(ctx context.Context, path string, ab *appendblob.Client, r io.Reader) (int64, error) {
	buf := make([]byte, appendblob.MaxAppendBlockBytes)
	var total int64
	for {
		n, rerr := io.ReadFull(r, buf)
		if n > 0 {
			if _, err := ab.AppendBlock(ctx, streaming.NopCloser(bytes.NewReader(buf[:n])), nil); err != nil {
				return total, translate("append", path, err)
			}
			total += int64(n)
		}
		if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
			return total, nil
		}
		if rerr != nil {
			return total, fmt.Errorf("append %s: %w", path, rerr)
		}
	}
}

// appendRewrite grows a block blob by rewriting it whole through one upload.
func (s *Store) appendRewrite(ctx context.Context, path, key string, r io.Reader) (int64, error) {
	existing, err := s.client.DownloadStream(ctx, s.name, key, nil)
	if err != nil {
		return 0, translate("append", path, err)
	}
	defer func() { _ = existing.Body.Close() }()

	counted := &objstore.CountingReader{R: r}
	combined := io.MultiReader(existing.Body, counted)
	if _, err := s.client.UploadStream(ctx, s.name, key, combined, nil); err != nil {
		return 0, translate("append", path, err)
	}
	return counted.N, nil
}

// Delete removes the blob or directory marker at path.
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
	pager := s.client.NewListBlobsFlatPager(s.name, &azsdk.ListBlobsFlatOptions{
		Prefix:     to.Ptr(marker),
		MaxResults: to.Ptr(int32(2)),
	})
	page, err := pager.NextPage(ctx)
	if err != nil {
		return translate("delete", path, err)
	}
	switch {
	case len(page.Segment.BlobItems) == 0:
		return storify.ErrNotFound
	case hasNonMarker(page.Segment.BlobItems, marker):
		return fmt.Errorf("%w: directory %s is not empty", storify.ErrInvalidArgument, path)
	}
	return s.deleteKey(ctx, path, marker)
}

// CreateDir writes a zero-byte marker blob for path. Intermediate levels
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

	if _, err := s.client.UploadStream(ctx, s.name, s.keys.DirKey(path), bytes.NewReader(nil), nil); err != nil {
		return translate("mkdir", path, err)
	}
	return nil
}

// Copy duplicates a single blob server-side.
func (s *Store) Copy(ctx context.Context, src, dst string) error {
	if ok, err := s.dirExists(ctx, dst); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("%w: %s is a directory", storify.ErrInvalidArgument, dst)
	}

	srcURL := s.container.NewBlobClient(s.keys.Key(src)).URL()
	if _, err := s.container.NewBlobClient(s.keys.Key(dst)).CopyFromURL(ctx, srcURL, nil); err != nil {
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

// Rename moves a single blob via copy-then-delete; the service has no
// native move.
func (s *Store) Rename(ctx context.Context, src, dst string) error {
	if err := s.Copy(ctx, src, dst); err != nil {
		return err
	}
	return s.deleteKey(ctx, src, s.keys.Key(src))
}

// objectMeta is the slice of blob metadata the connector uses.
type objectMeta struct {
	size       int64
	modTime    time.Time
	appendable bool
}

// statKey stats one blob key, translating missing blobs to ErrNotFound.
func (s *Store) statKey(ctx context.Context, path, key string) (objectMeta, error) {
	props, err := s.container.NewBlobClient(key).GetProperties(ctx, nil)
	if err != nil {
		return objectMeta{}, translate("stat", path, err)
	}

	meta := objectMeta{
		appendable: props.BlobType != nil && *props.BlobType == blob.BlobTypeAppendBlob,
	}
	if props.ContentLength != nil {
		meta.size = *props.ContentLength
	}
	if props.LastModified != nil {
		meta.modTime = *props.LastModified
	}
	return meta, nil
}

// statDir classifies path as a directory: its marker blob exists or at least
// one blob lives under the prefix. Implied directories carry no metadata.
func (s *Store) statDir(ctx context.Context, path string) (storify.Entry, error) {
	marker := s.keys.DirKey(path)
	pager := s.client.NewListBlobsFlatPager(s.name, &azsdk.ListBlobsFlatOptions{
		Prefix:     to.Ptr(marker),
		MaxResults: to.Ptr(int32(1)),
	})
	page, err := pager.NextPage(ctx)
	if err != nil {
		return storify.Entry{}, translate("stat", path, err)
	}
	if len(page.Segment.BlobItems) == 0 {
		return storify.Entry{}, storify.ErrNotFound
	}

	e := storify.Entry{Path: path, Kind: storify.KindDirectory}
	if first := page.Segment.BlobItems[0]; strVal(first.Name) == marker {
		_, e.ModTime = itemMeta(first)
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
	if _, err := s.client.DeleteBlob(ctx, s.name, key, nil); err != nil {
		return translate("delete", path, err)
	}
	return nil
}

func hasNonMarker(items []*container.BlobItem, marker string) bool {
	for _, item := range items {
		if strVal(item.Name) != marker {
			return true
		}
	}
	return false
}

func itemMeta(item *container.BlobItem) (size int64, mod time.Time) {
	if item.Properties == nil {
		return 0, time.Time{}
	}
	if item.Properties.ContentLength != nil {
		size = *item.Properties.ContentLength
	}
	if item.Properties.LastModified != nil {
		mod = *item.Properties.LastModified
	}
	return size, mod
}

func strVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func isInvalidRange(err error) bool {
	if bloberror.HasCode(err, bloberror.InvalidRange) {
		return true
	}
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusRequestedRangeNotSatisfiable
}

func normalizeEndpoint(endpoint string) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	return "https://" + endpoint
}

// translate maps service faults onto the package sentinels at the backend
// boundary. HEAD responses carry the error code in a header, which the SDK
// surfaces the same way as body codes.
func translate(op, path string, err error) error {
	switch {
	case bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.CannotVerifyCopySource):
		return storify.ErrNotFound
	case bloberror.HasCode(err, bloberror.ContainerNotFound):
		return fmt.Errorf("%w: container does not exist", storify.ErrNotFound)
	case bloberror.HasCode(err, bloberror.AuthenticationFailed, bloberror.AuthorizationFailure, bloberror.InsufficientAccountPermissions):
		return storify.ErrPermissionDenied
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			return storify.ErrNotFound
		case http.StatusForbidden:
			return storify.ErrPermissionDenied
		}
	}
	return fmt.Errorf("%s %s: %w", op, path, err)
}
