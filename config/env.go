package config

import (
	"strings"

	"github.com/sagarc03/storify"
)

// envLookup returns the first non-empty value among keys. Values are
// trimmed; a variable set to whitespace counts as unset.
func envLookup(getenv func(string) string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

// genericEnvConnection reads the generic STORAGE_* overrides. These outrank
// every other source field by field.
func genericEnvConnection(getenv func(string) string) Connection {
	return Connection{
		Bucket:          envLookup(getenv, "STORAGE_BUCKET"),
		AccessKeyID:     envLookup(getenv, "STORAGE_ACCESS_KEY_ID"),
		AccessKeySecret: envLookup(getenv, "STORAGE_ACCESS_KEY_SECRET"),
		Region:          envLookup(getenv, "STORAGE_REGION"),
		Endpoint:        envLookup(getenv, "STORAGE_ENDPOINT"),
	}
}

// providerEnvConnection reads the provider-specific variable table. Each
// field lists its accepted variables highest priority first; the S3 table
// falls back to the MinIO names so an S3-compatible deployment configured
// for MinIO keeps working when addressed as provider s3.
func providerEnvConnection(p storify.Provider, getenv func(string) string) Connection {
	switch p {
	case storify.ProviderOSS:
		return Connection{
			Bucket:          envLookup(getenv, "OSS_BUCKET"),
			AccessKeyID:     envLookup(getenv, "OSS_ACCESS_KEY_ID"),
			AccessKeySecret: envLookup(getenv, "OSS_ACCESS_KEY_SECRET"),
			Region:          envLookup(getenv, "OSS_REGION"),
			Endpoint:        envLookup(getenv, "OSS_ENDPOINT"),
		}
	case storify.ProviderS3:
		return Connection{
			Bucket:          envLookup(getenv, "AWS_S3_BUCKET", "MINIO_BUCKET"),
			AccessKeyID:     envLookup(getenv, "AWS_ACCESS_KEY_ID", "MINIO_ACCESS_KEY"),
			AccessKeySecret: envLookup(getenv, "AWS_SECRET_ACCESS_KEY", "MINIO_SECRET_KEY"),
			Region:          envLookup(getenv, "AWS_REGION", "AWS_DEFAULT_REGION", "MINIO_DEFAULT_REGION"),
			Endpoint:        envLookup(getenv, "AWS_ENDPOINT_URL", "MINIO_ENDPOINT"),
		}
	case storify.ProviderMinIO:
		return Connection{
			Bucket:          envLookup(getenv, "MINIO_BUCKET"),
			AccessKeyID:     envLookup(getenv, "MINIO_ACCESS_KEY"),
			AccessKeySecret: envLookup(getenv, "MINIO_SECRET_KEY"),
			Region:          envLookup(getenv, "MINIO_DEFAULT_REGION"),
			Endpoint:        envLookup(getenv, "MINIO_ENDPOINT"),
		}
	case storify.ProviderCOS:
		return Connection{
			Bucket:          envLookup(getenv, "COS_BUCKET"),
			AccessKeyID:     envLookup(getenv, "COS_SECRET_ID"),
			AccessKeySecret: envLookup(getenv, "COS_SECRET_KEY"),
			Region:          envLookup(getenv, "COS_REGION"),
			Endpoint:        envLookup(getenv, "COS_ENDPOINT"),
		}
	case storify.ProviderAzblob:
		return Connection{
			Bucket:          envLookup(getenv, "AZBLOB_CONTAINER"),
			AccessKeyID:     envLookup(getenv, "AZBLOB_ACCOUNT_NAME"),
			AccessKeySecret: envLookup(getenv, "AZBLOB_ACCOUNT_KEY"),
			Endpoint:        envLookup(getenv, "AZBLOB_ENDPOINT"),
		}
	case storify.ProviderFS:
		return Connection{
			RootPath: envLookup(getenv, "STORAGE_ROOT_PATH"),
		}
	case storify.ProviderHDFS:
		return Connection{
			NameNode: envLookup(getenv, "HDFS_NAME_NODE"),
			RootPath: envLookup(getenv, "HDFS_ROOT_PATH"),
		}
	default:
		return Connection{}
	}
}
