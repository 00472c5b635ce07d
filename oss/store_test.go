package oss_test

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/storify"
	ossstore "github.com/sagarc03/storify/oss"
)

// stubOSS is an in-memory, single-bucket OSS lookalike covering the request
// shapes the connector issues: marker-paginated listing, HEAD, ranged GET
// honoring the standard range behavior, PUT, append with a position check,
// copy and DELETE. Authentication is ignored.
type stubOSS struct {
	mu      sync.Mutex
	bucket  string
	objects map[string]stubObject
}

type stubObject struct {
	data       []byte
	modTime    time.Time
	appendable bool
}

func newStubOSS(bucket string, seed map[string]string) *stubOSS {
	s := &stubOSS{bucket: bucket, objects: make(map[string]stubObject)}
	for k, v := range seed {
		s.objects[k] = stubObject{data: []byte(v), modTime: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	}
	return s
}

func (s *stubOSS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimPrefix(strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/"), s.bucket), "/")
	q := r.URL.Query()
	switch {
	case r.Method == http.MethodGet && key == "":
		s.handleList(w, q)
	case r.Method == http.MethodHead:
		s.handleHead(w, key)
	case r.Method == http.MethodGet:
		s.handleGet(w, r, key)
	case r.Method == http.MethodPost && q.Has("append"):
		s.handleAppend(w, r, key, q.Get("position"))
	case r.Method == http.MethodPut && r.Header.Get("X-Oss-Copy-Source") != "":
		s.handleCopy(w, r, key)
	case r.Method == http.MethodPut:
		s.handlePut(w, r, key)
	case r.Method == http.MethodDelete:
		delete(s.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

type xmlListResult struct {
	XMLName        xml.Name    `xml:"ListBucketResult"`
	Name           string      `xml:"Name"`
	Prefix         string      `xml:"Prefix"`
	Marker         string      `xml:"Marker"`
	MaxKeys        int         `xml:"MaxKeys"`
	Delimiter      string      `xml:"Delimiter"`
	IsTruncated    bool        `xml:"IsTruncated"`
	NextMarker     string      `xml:"NextMarker"`
	Contents       []xmlObject `xml:"Contents"`
	CommonPrefixes []xmlPrefix `xml:"CommonPrefixes"`
}

type xmlObject struct {
	Key          string `xml:"Key"`
	Type         string `xml:"Type"`
	Size         int64  `xml:"Size"`
	ETag         string `xml:"ETag"`
	LastModified string `xml:"LastModified"`
	StorageClass string `xml:"StorageClass"`
}

type xmlPrefix struct {
	Prefix string `xml:"Prefix"`
}

type xmlError struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}

func (s *stubOSS) handleList(w http.ResponseWriter, q url.Values) {
	prefix := q.Get("prefix")
	delimiter := q.Get("delimiter")
	marker := q.Get("marker")
	maxKeys := 1000
	if v := q.Get("max-keys"); v != "" {
		maxKeys, _ = strconv.Atoi(v)
	}

	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) && k > marker {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	result := xmlListResult{Name: s.bucket, Prefix: prefix, Marker: marker, MaxKeys: maxKeys, Delimiter: delimiter}
	seenPrefix := make(map[string]bool)
	count := 0
	for _, k := range keys {
		if count >= maxKeys {
			break
		}
		rest := strings.TrimPrefix(k, prefix)
		if delimiter != "" {
			if i := strings.Index(rest, delimiter); i >= 0 {
				cp := prefix + rest[:i+1]
				if !seenPrefix[cp] {
					seenPrefix[cp] = true
					result.CommonPrefixes = append(result.CommonPrefixes, xmlPrefix{Prefix: cp})
					count++
				}
				continue
			}
		}
		obj := s.objects[k]
		result.Contents = append(result.Contents, xmlObject{
			Key:          k,
			Type:         objectType(obj),
			Size:         int64(len(obj.data)),
			ETag:         `"stub"`,
			LastModified: obj.modTime.UTC().Format(time.RFC3339),
			StorageClass: "Standard",
		})
		count++
	}
	writeXML(w, http.StatusOK, result)
}

func (s *stubOSS) handleHead(w http.ResponseWriter, key string) {
	obj, ok := s.objects[key]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.data)))
	w.Header().Set("Last-Modified", obj.modTime.UTC().Format(http.TimeFormat))
	w.Header().Set("ETag", `"stub"`)
	w.Header().Set("X-Oss-Object-Type", objectType(obj))
	w.WriteHeader(http.StatusOK)
}

func (s *stubOSS) handleGet(w http.ResponseWriter, r *http.Request, key string) {
	obj, ok := s.objects[key]
	if !ok {
		writeXML(w, http.StatusNotFound, xmlError{Code: "NoSuchKey", Message: "key does not exist"})
		return
	}

	data := obj.data
	status := http.StatusOK
	if rh := r.Header.Get("Range"); rh != "" {
		start, end, ok := parseRangeHeader(rh, int64(len(data)))
		if !ok {
			// The connector always asks for standard range behavior, which
			// turns out-of-range windows into 416.
			writeXML(w, http.StatusRequestedRangeNotSatisfiable, xmlError{Code: "InvalidRange", Message: "range not satisfiable"})
			return
		}
		data = data[start : end+1]
		status = http.StatusPartialContent
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Last-Modified", obj.modTime.UTC().Format(http.TimeFormat))
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (s *stubOSS) handlePut(w http.ResponseWriter, r *http.Request, key string) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.objects[key] = stubObject{data: data, modTime: time.Now().UTC()}
	w.Header().Set("ETag", `"stub"`)
	w.WriteHeader(http.StatusOK)
}

func (s *stubOSS) handleAppend(w http.ResponseWriter, r *http.Request, key, position string) {
	pos, _ := strconv.ParseInt(position, 10, 64)
	obj, exists := s.objects[key]
	switch {
	case exists && !obj.appendable:
		writeXML(w, http.StatusConflict, xmlError{Code: "ObjectNotAppendable", Message: "object was not created by append"})
		return
	case exists && pos != int64(len(obj.data)):
		writeXML(w, http.StatusConflict, xmlError{Code: "PositionNotEqualToLength", Message: "append position mismatch"})
		return
	case !exists && pos != 0:
		writeXML(w, http.StatusConflict, xmlError{Code: "PositionNotEqualToLength", Message: "append position mismatch"})
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	obj.data = append(obj.data, data...)
	obj.modTime = time.Now().UTC()
	obj.appendable = true
	s.objects[key] = obj
	w.Header().Set("X-Oss-Next-Append-Position", strconv.Itoa(len(obj.data)))
	w.WriteHeader(http.StatusOK)
}

func (s *stubOSS) handleCopy(w http.ResponseWriter, r *http.Request, key string) {
	source, err := url.QueryUnescape(r.Header.Get("X-Oss-Copy-Source"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	srcKey := strings.TrimPrefix(strings.TrimPrefix(strings.TrimPrefix(source, "/"), s.bucket), "/")
	obj, ok := s.objects[srcKey]
	if !ok {
		writeXML(w, http.StatusNotFound, xmlError{Code: "NoSuchKey", Message: "copy source does not exist"})
		return
	}
	s.objects[key] = stubObject{data: append([]byte(nil), obj.data...), modTime: time.Now().UTC()}
	writeXML(w, http.StatusOK, struct {
		XMLName      xml.Name `xml:"CopyObjectResult"`
		ETag         string   `xml:"ETag"`
		LastModified string   `xml:"LastModified"`
	}{ETag: `"stub"`, LastModified: time.Now().UTC().Format(time.RFC3339)})
}

func objectType(obj stubObject) string {
	if obj.appendable {
		return "Appendable"
	}
	return "Normal"
}

func parseRangeHeader(h string, size int64) (start, end int64, ok bool) {
	spec, found := strings.CutPrefix(h, "bytes=")
	if !found {
		return 0, 0, false
	}
	startStr, endStr, _ := strings.Cut(spec, "-")
	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start >= size {
		return 0, 0, false
	}
	end = size - 1
	if endStr != "" {
		e, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return 0, 0, false
		}
		if e < end {
			end = e
		}
	}
	return start, end, true
}

func writeXML(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, xml.Header)
	_ = xml.NewEncoder(w).Encode(v)
}

func newStubStore(t *testing.T, seed map[string]string) *ossstore.Store {
	t.Helper()

	stub := newStubOSS("test-bucket", seed)
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	store, err := ossstore.NewStore(context.Background(), ossstore.Config{
		Bucket:          "test-bucket",
		AccessKeyID:     "test-key",
		AccessKeySecret: "test-secret",
		Endpoint:        srv.URL,
	})
	require.NoError(t, err)
	return store
}

func fixtureSeed() map[string]string {
	return map[string]string{
		"docs/":                    "",
		"docs/a.txt":               "alpha",
		"docs/img/":                "",
		"docs/img/x.png":           "img",
		"docs/raw/nested/deep.txt": "deep",
		"docs/z.txt":               "zz",
		"empty/":                   "",
		"top.txt":                  "top",
	}
}

func listEntries(t *testing.T, store *ossstore.Store, dir string, recursive bool) []storify.Entry {
	t.Helper()
	var entries []storify.Entry
	err := store.List(context.Background(), dir, recursive, func(e storify.Entry) error {
		entries = append(entries, e)
		return nil
	})
	require.NoError(t, err)
	return entries
}

func entrySummary(entries []storify.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, string(e.Kind)+" "+e.Path)
	}
	return out
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func readBack(t *testing.T, store *ossstore.Store, path string) string {
	t.Helper()
	rc, err := store.OpenRead(context.Background(), path, nil)
	require.NoError(t, err)
	return readAll(t, rc)
}

func TestNewStore_ConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  ossstore.Config
	}{
		{name: "missing bucket", cfg: ossstore.Config{Endpoint: "oss-cn-hangzhou.aliyuncs.com"}},
		{name: "missing endpoint", cfg: ossstore.Config{Bucket: "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ossstore.NewStore(context.Background(), tt.cfg)
			assert.ErrorIs(t, err, storify.ErrConfig)
		})
	}
}

func TestStore_ProviderAndCapabilities(t *testing.T) {
	store := newStubStore(t, nil)

	assert.Equal(t, storify.ProviderOSS, store.Provider())
	caps := store.Capabilities()
	assert.True(t, caps.RangedRead)
	assert.False(t, caps.HierarchicalDirs)
}

func TestStore_List_Shallow(t *testing.T) {
	store := newStubStore(t, fixtureSeed())

	got := entrySummary(listEntries(t, store, "/docs", false))
	assert.Equal(t, []string{
		"file /docs/a.txt",
		"directory /docs/img",
		"directory /docs/raw",
		"file /docs/z.txt",
	}, got)
}

func TestStore_List_Root(t *testing.T) {
	store := newStubStore(t, fixtureSeed())

	got := entrySummary(listEntries(t, store, "/", false))
	assert.Equal(t, []string{
		"directory /docs",
		"directory /empty",
		"file /top.txt",
	}, got)
}

func TestStore_List_Recursive(t *testing.T) {
	store := newStubStore(t, fixtureSeed())

	got := entrySummary(listEntries(t, store, "/docs", true))
	assert.Equal(t, []string{
		"file /docs/a.txt",
		"directory /docs/img",
		"file /docs/img/x.png",
		"directory /docs/raw",
		"directory /docs/raw/nested",
		"file /docs/raw/nested/deep.txt",
		"file /docs/z.txt",
	}, got)
}

func TestStore_List_Errors(t *testing.T) {
	store := newStubStore(t, fixtureSeed())

	t.Run("file argument", func(t *testing.T) {
		err := store.List(context.Background(), "/top.txt", false, func(storify.Entry) error { return nil })
		assert.ErrorIs(t, err, storify.ErrInvalidArgument)
	})

	t.Run("missing directory", func(t *testing.T) {
		err := store.List(context.Background(), "/nope", true, func(storify.Entry) error { return nil })
		assert.ErrorIs(t, err, storify.ErrNotFound)
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := store.List(ctx, "/docs", true, func(storify.Entry) error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestStore_Stat(t *testing.T) {
	store := newStubStore(t, fixtureSeed())

	t.Run("file", func(t *testing.T) {
		e, err := store.Stat(context.Background(), "/docs/a.txt")
		require.NoError(t, err)
		assert.Equal(t, storify.KindFile, e.Kind)
		assert.Equal(t, int64(5), e.Size)
		assert.False(t, e.ModTime.IsZero())
	})

	t.Run("marker directory", func(t *testing.T) {
		e, err := store.Stat(context.Background(), "/docs")
		require.NoError(t, err)
		assert.Equal(t, storify.KindDirectory, e.Kind)
		assert.False(t, e.ModTime.IsZero())
	})

	t.Run("implied directory", func(t *testing.T) {
		e, err := store.Stat(context.Background(), "/docs/raw")
		require.NoError(t, err)
		assert.Equal(t, storify.KindDirectory, e.Kind)
		assert.True(t, e.ModTime.IsZero())
	})

	t.Run("root", func(t *testing.T) {
		e, err := store.Stat(context.Background(), "/")
		require.NoError(t, err)
		assert.True(t, e.IsDir())
	})

	t.Run("missing", func(t *testing.T) {
		_, err := store.Stat(context.Background(), "/nope")
		assert.ErrorIs(t, err, storify.ErrNotFound)
	})
}

func TestStore_OpenRead(t *testing.T) {
	store := newStubStore(t, fixtureSeed())

	t.Run("full object", func(t *testing.T) {
		assert.Equal(t, "alpha", readBack(t, store, "/docs/a.txt"))
	})

	t.Run("window", func(t *testing.T) {
		rc, err := store.OpenRead(context.Background(), "/docs/a.txt", &storify.ByteRange{Offset: 1, Length: 3})
		require.NoError(t, err)
		assert.Equal(t, "lph", readAll(t, rc))
	})

	t.Run("open ended", func(t *testing.T) {
		rc, err := store.OpenRead(context.Background(), "/docs/a.txt", &storify.ByteRange{Offset: 2, Length: -1})
		require.NoError(t, err)
		assert.Equal(t, "pha", readAll(t, rc))
	})

	t.Run("offset past end reads empty", func(t *testing.T) {
		rc, err := store.OpenRead(context.Background(), "/docs/a.txt", &storify.ByteRange{Offset: 100, Length: -1})
		require.NoError(t, err)
		assert.Empty(t, readAll(t, rc))
	})

	t.Run("zero length window", func(t *testing.T) {
		rc, err := store.OpenRead(context.Background(), "/docs/a.txt", &storify.ByteRange{Offset: 0, Length: 0})
		require.NoError(t, err)
		assert.Empty(t, readAll(t, rc))
	})

	t.Run("directory", func(t *testing.T) {
		_, err := store.OpenRead(context.Background(), "/docs", nil)
		assert.ErrorIs(t, err, storify.ErrInvalidArgument)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := store.OpenRead(context.Background(), "/nope", nil)
		assert.ErrorIs(t, err, storify.ErrNotFound)
	})
}

func TestStore_Write(t *testing.T) {
	store := newStubStore(t, fixtureSeed())

	n, err := store.Write(context.Background(), "/new/file.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, "hello", readBack(t, store, "/new/file.txt"))

	// The parent became an implied directory.
	e, err := store.Stat(context.Background(), "/new")
	require.NoError(t, err)
	assert.True(t, e.IsDir())
}

func TestStore_Write_DirectoryTarget(t *testing.T) {
	store := newStubStore(t, fixtureSeed())

	_, err := store.Write(context.Background(), "/docs", strings.NewReader("x"))
	assert.ErrorIs(t, err, storify.ErrInvalidArgument)
}

func TestStore_Append_CreatesMissingObject(t *testing.T) {
	store := newStubStore(t, fixtureSeed())

	n, err := store.Append(context.Background(), "/log.txt", strings.NewReader("one"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, "one", readBack(t, store, "/log.txt"))
}

func TestStore_Append_GrowsAppendableObject(t *testing.T) {
	store := newStubStore(t, fixtureSeed())

	_, err := store.Append(context.Background(), "/log.txt", strings.NewReader("one"))
	require.NoError(t, err)
	n, err := store.Append(context.Background(), "/log.txt", strings.NewReader("two"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, "onetwo", readBack(t, store, "/log.txt"))
}

func TestStore_Append_RewritesNormalObject(t *testing.T) {
	store := newStubStore(t, fixtureSeed())

	// docs/a.txt came from a regular put, so it is not appendable.
	n, err := store.Append(context.Background(), "/docs/a.txt", strings.NewReader("-more"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, "alpha-more", readBack(t, store, "/docs/a.txt"))
}

func TestStore_Delete(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{name: "file", path: "/docs/a.txt"},
		{name: "empty marker directory", path: "/empty"},
		{name: "non-empty directory", path: "/docs", wantErr: storify.ErrInvalidArgument},
		{name: "implied directory with children", path: "/docs/raw", wantErr: storify.ErrInvalidArgument},
		{name: "missing", path: "/nope", wantErr: storify.ErrNotFound},
		{name: "root", path: "/", wantErr: storify.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStubStore(t, fixtureSeed())

			err := store.Delete(context.Background(), tt.path)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			_, err = store.Stat(context.Background(), tt.path)
			assert.ErrorIs(t, err, storify.ErrNotFound)
		})
	}
}

func TestStore_CreateDir(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		recursive bool
		wantErr   error
	}{
		{name: "new directory", path: "/docs/new"},
		{name: "deep recursive", path: "/a/b/c", recursive: true},
		{name: "missing parent", path: "/a/b/c", wantErr: storify.ErrNotFound},
		{name: "existing marker", path: "/docs", wantErr: storify.ErrAlreadyExists},
		{name: "existing implied directory", path: "/docs/raw", wantErr: storify.ErrAlreadyExists},
		{name: "file in the way", path: "/top.txt", wantErr: storify.ErrAlreadyExists},
		{name: "root", path: "/", wantErr: storify.ErrAlreadyExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStubStore(t, fixtureSeed())

			err := store.CreateDir(context.Background(), tt.path, tt.recursive)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			e, err := store.Stat(context.Background(), tt.path)
			require.NoError(t, err)
			assert.True(t, e.IsDir())
		})
	}
}

func TestStore_Copy(t *testing.T) {
	store := newStubStore(t, fixtureSeed())

	t.Run("file", func(t *testing.T) {
		require.NoError(t, store.Copy(context.Background(), "/docs/a.txt", "/copy.txt"))
		assert.Equal(t, "alpha", readBack(t, store, "/copy.txt"))

		// Source is untouched.
		_, err := store.Stat(context.Background(), "/docs/a.txt")
		assert.NoError(t, err)
	})

	t.Run("missing source", func(t *testing.T) {
		err := store.Copy(context.Background(), "/nope", "/out.txt")
		assert.ErrorIs(t, err, storify.ErrNotFound)
	})

	t.Run("directory source", func(t *testing.T) {
		err := store.Copy(context.Background(), "/docs", "/out.txt")
		assert.ErrorIs(t, err, storify.ErrInvalidArgument)
	})

	t.Run("directory destination", func(t *testing.T) {
		err := store.Copy(context.Background(), "/top.txt", "/docs")
		assert.ErrorIs(t, err, storify.ErrInvalidArgument)
	})
}

func TestStore_Rename(t *testing.T) {
	store := newStubStore(t, fixtureSeed())

	require.NoError(t, store.Rename(context.Background(), "/top.txt", "/moved.txt"))

	_, err := store.Stat(context.Background(), "/top.txt")
	assert.ErrorIs(t, err, storify.ErrNotFound)
	assert.Equal(t, "top", readBack(t, store, "/moved.txt"))
}

func TestStore_RootPathPrefix(t *testing.T) {
	stub := newStubOSS("test-bucket", map[string]string{
		"team/data/":      "",
		"team/data/a.txt": "scoped",
		"other/b.txt":     "outside",
	})
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	store, err := ossstore.NewStore(context.Background(), ossstore.Config{
		Bucket:          "test-bucket",
		AccessKeyID:     "k",
		AccessKeySecret: "s",
		Endpoint:        srv.URL,
		RootPath:        "team/data",
	})
	require.NoError(t, err)

	got := entrySummary(listEntries(t, store, "/", true))
	assert.Equal(t, []string{"file /a.txt"}, got)
	assert.Equal(t, "scoped", readBack(t, store, "/a.txt"))
}

// Ensures the stub's position check mirrors the service: a second append
// must continue exactly at the current size, which the connector derives
// from a fresh stat each call.
func TestStore_Append_SequencesPositions(t *testing.T) {
	store := newStubStore(t, fixtureSeed())

	for i, chunk := range []string{"a", "bb", "ccc"} {
		n, err := store.Append(context.Background(), "/seq.txt", strings.NewReader(chunk))
		require.NoError(t, err, "append %d", i)
		assert.Equal(t, int64(len(chunk)), n)
	}
	assert.Equal(t, "abbccc", readBack(t, store, "/seq.txt"))
}

var _ storify.Appender = (*ossstore.Store)(nil)
