package storify_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/storify"
)

func TestParseProvider(t *testing.T) {
	tt := []struct {
		Name    string
		In      string
		Want    storify.Provider
		WantErr bool
	}{
		{Name: "oss", In: "oss", Want: storify.ProviderOSS},
		{Name: "s3", In: "s3", Want: storify.ProviderS3},
		{Name: "minio", In: "minio", Want: storify.ProviderMinIO},
		{Name: "cos", In: "cos", Want: storify.ProviderCOS},
		{Name: "fs", In: "fs", Want: storify.ProviderFS},
		{Name: "hdfs", In: "hdfs", Want: storify.ProviderHDFS},
		{Name: "azblob", In: "azblob", Want: storify.ProviderAzblob},

		// Case-insensitive, plus the aliases users actually type
		{Name: "uppercase", In: "S3", Want: storify.ProviderS3},
		{Name: "mixed case", In: "MinIO", Want: storify.ProviderMinIO},
		{Name: "aws alias", In: "aws", Want: storify.ProviderS3},
		{Name: "aliyun alias", In: "aliyun", Want: storify.ProviderOSS},
		{Name: "tencent alias", In: "tencent", Want: storify.ProviderCOS},
		{Name: "local alias", In: "local", Want: storify.ProviderFS},
		{Name: "filesystem alias", In: "filesystem", Want: storify.ProviderFS},
		{Name: "azure alias", In: "azure", Want: storify.ProviderAzblob},

		{Name: "unknown", In: "gcs", WantErr: true},
		{Name: "empty", In: "", WantErr: true},
	}

	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			got, err := storify.ParseProvider(tc.In)
			if tc.WantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, storify.ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.Want, got)
		})
	}
}

func TestSupportsAnonymous(t *testing.T) {
	anonymous := map[storify.Provider]bool{
		storify.ProviderOSS:    true,
		storify.ProviderS3:     true,
		storify.ProviderMinIO:  true,
		storify.ProviderFS:     true,
		storify.ProviderCOS:    false,
		storify.ProviderHDFS:   false,
		storify.ProviderAzblob: false,
	}

	for _, p := range storify.Providers() {
		assert.Equal(t, anonymous[p], p.SupportsAnonymous(), "provider %s", p)
	}
}

func TestKind(t *testing.T) {
	tt := []struct {
		Name string
		Err  error
		Want string
	}{
		{Name: "not found", Err: storify.ErrNotFound, Want: "not found"},
		{Name: "wrapped not found", Err: fmt.Errorf("stat a/b: %w", storify.ErrNotFound), Want: "not found"},
		{Name: "permission denied", Err: storify.ErrPermissionDenied, Want: "permission denied"},
		{Name: "already exists", Err: storify.ErrAlreadyExists, Want: "already exists"},
		{Name: "invalid argument", Err: storify.ErrInvalidArgument, Want: "invalid argument"},
		{Name: "size limit", Err: storify.ErrSizeLimitExceeded, Want: "size limit exceeded"},
		{Name: "config", Err: storify.ErrConfig, Want: "configuration error"},
		{Name: "interrupted", Err: storify.ErrInterrupted, Want: "interrupted"},
		{Name: "context canceled", Err: context.Canceled, Want: "interrupted"},
		{Name: "deadline exceeded", Err: context.DeadlineExceeded, Want: "interrupted"},
		{Name: "unknown error", Err: errors.New("boom"), Want: "provider error"},
	}

	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			assert.Equal(t, tc.Want, storify.Kind(tc.Err))
		})
	}
}

func TestFormatSize(t *testing.T) {
	tt := []struct {
		Name  string
		Bytes int64
		Want  string
	}{
		{Name: "zero", Bytes: 0, Want: "0B"},
		{Name: "bytes", Bytes: 512, Want: "512B"},
		{Name: "kilobytes", Bytes: 2048, Want: "2.0K"},
		{Name: "megabytes", Bytes: 5 * 1024 * 1024, Want: "5.0M"},
		{Name: "gigabytes", Bytes: 3 * 1024 * 1024 * 1024, Want: "3.0G"},
		{Name: "fractional", Bytes: 1536, Want: "1.5K"},
	}

	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			assert.Equal(t, tc.Want, storify.FormatSize(tc.Bytes))
		})
	}
}
