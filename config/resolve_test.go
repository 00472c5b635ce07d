package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/storify"
	"github.com/sagarc03/storify/config"
)

func envOf(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

var resolveNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestResolve_DefaultProfile(t *testing.T) {
	conn, err := config.Resolve(config.ResolveRequest{
		Record: sampleRecord(),
		Getenv: envOf(nil),
		Now:    resolveNow,
	})
	require.NoError(t, err)

	assert.Equal(t, storify.ProviderOSS, conn.Provider)
	assert.Equal(t, "reports", conn.Bucket)
	assert.Equal(t, "AKID", conn.AccessKeyID)
	assert.Equal(t, "oss-cn-hangzhou.aliyuncs.com", conn.Endpoint)
	assert.Equal(t, "default profile alpha", conn.Source)
	assert.False(t, conn.Anonymous)
}

func TestResolve_ExplicitProfileBeatsDefault(t *testing.T) {
	conn, err := config.Resolve(config.ResolveRequest{
		ProfileName: "local",
		Record:      sampleRecord(),
		Getenv:      envOf(nil),
		Now:         resolveNow,
	})
	require.NoError(t, err)

	assert.Equal(t, storify.ProviderFS, conn.Provider)
	assert.Equal(t, "/srv/data", conn.RootPath)
	assert.Equal(t, "profile local", conn.Source)
}

func TestResolve_TemporaryOutranksExplicitProfile(t *testing.T) {
	rec := sampleRecord()
	rec.Temporary = &config.TemporaryConfig{
		Profile:   config.Profile{Name: "temp", Provider: storify.ProviderFS, RootPath: "/scratch"},
		ExpiresAt: resolveNow.Add(time.Hour),
	}

	conn, err := config.Resolve(config.ResolveRequest{
		ProfileName: "alpha",
		Record:      rec,
		Getenv:      envOf(nil),
		Now:         resolveNow,
	})
	require.NoError(t, err)

	assert.Equal(t, storify.ProviderFS, conn.Provider)
	assert.Equal(t, "/scratch", conn.RootPath)
	assert.Equal(t, "temporary configuration", conn.Source)
}

func TestResolve_ExpiredTemporaryIgnored(t *testing.T) {
	rec := sampleRecord()
	rec.Temporary = &config.TemporaryConfig{
		Profile:   config.Profile{Name: "temp", Provider: storify.ProviderFS, RootPath: "/scratch"},
		ExpiresAt: resolveNow.Add(-time.Hour),
	}

	conn, err := config.Resolve(config.ResolveRequest{
		Record: rec,
		Getenv: envOf(nil),
		Now:    resolveNow,
	})
	require.NoError(t, err)

	assert.Equal(t, storify.ProviderOSS, conn.Provider)
	assert.Equal(t, "default profile alpha", conn.Source)
}

func TestResolve_PureEnvironment(t *testing.T) {
	conn, err := config.Resolve(config.ResolveRequest{
		Getenv: envOf(map[string]string{
			"STORAGE_PROVIDER":  "fs",
			"STORAGE_ROOT_PATH": "/var/data",
		}),
		Now: resolveNow,
	})
	require.NoError(t, err)

	assert.Equal(t, storify.ProviderFS, conn.Provider)
	assert.Equal(t, "/var/data", conn.RootPath)
	assert.Equal(t, "environment", conn.Source)
}

func TestResolve_ProviderDefaultsFillGaps(t *testing.T) {
	t.Run("fs root defaults to cwd", func(t *testing.T) {
		conn, err := config.Resolve(config.ResolveRequest{
			Getenv: envOf(map[string]string{"STORAGE_PROVIDER": "fs"}),
			Now:    resolveNow,
		})
		require.NoError(t, err)
		assert.Equal(t, ".", conn.RootPath)
	})

	t.Run("hdfs root defaults to slash", func(t *testing.T) {
		conn, err := config.Resolve(config.ResolveRequest{
			Getenv: envOf(map[string]string{
				"STORAGE_PROVIDER": "hdfs",
				"HDFS_NAME_NODE":   "namenode:8020",
			}),
			Now: resolveNow,
		})
		require.NoError(t, err)
		assert.Equal(t, "/", conn.RootPath)
		assert.Equal(t, "namenode:8020", conn.NameNode)
	})
}

func TestResolve_GenericEnvBeatsProviderEnv(t *testing.T) {
	conn, err := config.Resolve(config.ResolveRequest{
		Getenv: envOf(map[string]string{
			"STORAGE_PROVIDER":      "oss",
			"STORAGE_BUCKET":        "generic-bucket",
			"OSS_BUCKET":            "provider-bucket",
			"OSS_ACCESS_KEY_ID":     "id",
			"OSS_ACCESS_KEY_SECRET": "secret",
		}),
		Now: resolveNow,
	})
	require.NoError(t, err)

	assert.Equal(t, "generic-bucket", conn.Bucket)
	assert.Equal(t, "id", conn.AccessKeyID)
}

func TestResolve_ProviderEnvBeatsProfile(t *testing.T) {
	conn, err := config.Resolve(config.ResolveRequest{
		Record: sampleRecord(),
		Getenv: envOf(map[string]string{
			"OSS_BUCKET": "env-bucket",
		}),
		Now: resolveNow,
	})
	require.NoError(t, err)

	assert.Equal(t, storify.ProviderOSS, conn.Provider)
	assert.Equal(t, "env-bucket", conn.Bucket)
	// Fields the environment does not set still come from the profile.
	assert.Equal(t, "AKID", conn.AccessKeyID)
}

func TestResolve_MismatchedProfileContributesNothing(t *testing.T) {
	// STORAGE_PROVIDER=s3 while the default profile is OSS: the OSS
	// credentials must not leak into the S3 connection.
	conn, err := config.Resolve(config.ResolveRequest{
		Record: sampleRecord(),
		Getenv: envOf(map[string]string{
			"STORAGE_PROVIDER": "s3",
			"STORAGE_BUCKET":   "b",
		}),
		Now: resolveNow,
	})
	require.NoError(t, err)

	assert.Equal(t, storify.ProviderS3, conn.Provider)
	assert.Empty(t, conn.AccessKeyID)
	assert.True(t, conn.Anonymous)
}

func TestResolve_MinioEnvNamesAcceptedForS3(t *testing.T) {
	conn, err := config.Resolve(config.ResolveRequest{
		Getenv: envOf(map[string]string{
			"STORAGE_PROVIDER": "s3",
			"MINIO_BUCKET":     "b",
			"MINIO_ACCESS_KEY": "id",
			"MINIO_SECRET_KEY": "secret",
			"MINIO_ENDPOINT":   "localhost:9000",
		}),
		Now: resolveNow,
	})
	require.NoError(t, err)

	assert.Equal(t, "b", conn.Bucket)
	assert.Equal(t, "localhost:9000", conn.Endpoint)
}

func TestResolve_UnsupportedFieldsCleared(t *testing.T) {
	// OSS ignores region even when the environment supplies one.
	conn, err := config.Resolve(config.ResolveRequest{
		Getenv: envOf(map[string]string{
			"STORAGE_PROVIDER":      "oss",
			"STORAGE_BUCKET":        "b",
			"STORAGE_REGION":        "us-east-1",
			"OSS_ACCESS_KEY_ID":     "id",
			"OSS_ACCESS_KEY_SECRET": "secret",
		}),
		Now: resolveNow,
	})
	require.NoError(t, err)
	assert.Empty(t, conn.Region)
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name    string
		req     config.ResolveRequest
		wantIs  error
		wantMsg string
	}{
		{
			name:    "no provider anywhere",
			req:     config.ResolveRequest{Getenv: envOf(nil), Now: resolveNow},
			wantIs:  storify.ErrConfig,
			wantMsg: "no provider selected",
		},
		{
			name: "unknown env provider",
			req: config.ResolveRequest{
				Getenv: envOf(map[string]string{"STORAGE_PROVIDER": "gopherstore"}),
				Now:    resolveNow,
			},
			wantIs: storify.ErrConfig,
		},
		{
			name: "named profile missing",
			req: config.ResolveRequest{
				ProfileName: "ghost",
				Record:      sampleRecord(),
				Getenv:      envOf(nil),
				Now:         resolveNow,
			},
			wantIs: config.ErrProfileNotFound,
		},
		{
			name: "named profile without store",
			req: config.ResolveRequest{
				ProfileName: "ghost",
				Getenv:      envOf(nil),
				Now:         resolveNow,
			},
			wantIs: config.ErrProfileNotFound,
		},
		{
			name: "minio requires endpoint",
			req: config.ResolveRequest{
				Getenv: envOf(map[string]string{
					"STORAGE_PROVIDER": "minio",
					"MINIO_BUCKET":     "b",
					"MINIO_ACCESS_KEY": "id",
					"MINIO_SECRET_KEY": "secret",
				}),
				Now: resolveNow,
			},
			wantIs:  storify.ErrConfig,
			wantMsg: "endpoint",
		},
		{
			name: "cos rejects anonymous",
			req: config.ResolveRequest{
				Record: &config.Record{
					Profiles: []config.Profile{{
						Name:      "c",
						Provider:  storify.ProviderCOS,
						Bucket:    "b-125000",
						Region:    "ap-guangzhou",
						Anonymous: true,
					}},
					Default: "c",
				},
				Getenv: envOf(nil),
				Now:    resolveNow,
			},
			wantIs:  storify.ErrConfig,
			wantMsg: "anonymous",
		},
		{
			name: "lone credential half",
			req: config.ResolveRequest{
				Getenv: envOf(map[string]string{
					"STORAGE_PROVIDER":      "s3",
					"STORAGE_BUCKET":        "b",
					"STORAGE_ACCESS_KEY_ID": "id",
				}),
				Now: resolveNow,
			},
			wantIs:  storify.ErrConfig,
			wantMsg: "access_key_secret",
		},
		{
			name: "malformed endpoint",
			req: config.ResolveRequest{
				Getenv: envOf(map[string]string{
					"STORAGE_PROVIDER":          "s3",
					"STORAGE_BUCKET":            "b",
					"STORAGE_ACCESS_KEY_ID":     "id",
					"STORAGE_ACCESS_KEY_SECRET": "secret",
					"STORAGE_ENDPOINT":          "://not-an-endpoint",
				}),
				Now: resolveNow,
			},
			wantIs:  storify.ErrConfig,
			wantMsg: "endpoint",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Resolve(tc.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantIs)
			if tc.wantMsg != "" {
				assert.ErrorContains(t, err, tc.wantMsg)
			}
		})
	}
}

func TestResolve_SecretNeverInError(t *testing.T) {
	_, err := config.Resolve(config.ResolveRequest{
		Getenv: envOf(map[string]string{
			"STORAGE_PROVIDER":          "cos",
			"STORAGE_BUCKET":            "b-125000",
			"STORAGE_ACCESS_KEY_ID":     "id",
			"STORAGE_ACCESS_KEY_SECRET": "SUPERSECRET",
			"COS_REGION":                "ap-guangzhou",
			"STORAGE_ENDPOINT":          "://bad",
		}),
		Now: resolveNow,
	})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SUPERSECRET")
}

func TestRulesFor_CredentialPairing(t *testing.T) {
	t.Run("empty pair flips anonymous where allowed", func(t *testing.T) {
		conn := config.Connection{Provider: storify.ProviderS3, Bucket: "b"}
		require.NoError(t, config.RulesFor(storify.ProviderS3).Apply(&conn))
		assert.True(t, conn.Anonymous)
	})

	t.Run("full pair clears anonymous", func(t *testing.T) {
		conn := config.Connection{
			Provider:        storify.ProviderS3,
			Bucket:          "b",
			AccessKeyID:     "id",
			AccessKeySecret: "secret",
			Anonymous:       true,
		}
		require.NoError(t, config.RulesFor(storify.ProviderS3).Apply(&conn))
		assert.False(t, conn.Anonymous)
	})

	t.Run("credentials unsupported for fs", func(t *testing.T) {
		conn := config.Connection{
			Provider:        storify.ProviderFS,
			AccessKeyID:     "id",
			AccessKeySecret: "secret",
			Anonymous:       true,
		}
		require.NoError(t, config.RulesFor(storify.ProviderFS).Apply(&conn))
		assert.Empty(t, conn.AccessKeyID)
		assert.Empty(t, conn.AccessKeySecret)
		assert.False(t, conn.Anonymous)
	})
}
