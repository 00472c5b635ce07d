package storify

import (
	"fmt"
	"strings"
)

// Provider identifies one concrete storage backend variant. The set is
// closed: adding a backend means adding one constant here plus one connector
// package, never touching the command engine.
type Provider string

const (
	ProviderOSS    Provider = "oss"
	ProviderS3     Provider = "s3"
	ProviderMinIO  Provider = "minio"
	ProviderCOS    Provider = "cos"
	ProviderFS     Provider = "fs"
	ProviderHDFS   Provider = "hdfs"
	ProviderAzblob Provider = "azblob"
)

// Providers lists every supported variant in display order.
func Providers() []Provider {
	return []Provider{
		ProviderOSS,
		ProviderS3,
		ProviderMinIO,
		ProviderCOS,
		ProviderFS,
		ProviderHDFS,
		ProviderAzblob,
	}
}

func (p Provider) IsValid() bool {
	switch p {
	case ProviderOSS, ProviderS3, ProviderMinIO, ProviderCOS, ProviderFS, ProviderHDFS, ProviderAzblob:
		return true
	default:
		return false
	}
}

func (p Provider) String() string {
	return string(p)
}

// SupportsAnonymous reports whether the provider permits credential-less
// access. Requesting anonymous mode for any other provider is a
// configuration error.
func (p Provider) SupportsAnonymous() bool {
	switch p {
	case ProviderOSS, ProviderS3, ProviderMinIO, ProviderFS:
		return true
	default:
		return false
	}
}

// ParseProvider parses a provider name. Matching is case-insensitive and
// accepts the aliases "filesystem" and "local" for fs.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "oss", "aliyun":
		return ProviderOSS, nil
	case "s3", "aws":
		return ProviderS3, nil
	case "minio":
		return ProviderMinIO, nil
	case "cos", "tencent":
		return ProviderCOS, nil
	case "fs", "filesystem", "local":
		return ProviderFS, nil
	case "hdfs":
		return ProviderHDFS, nil
	case "azblob", "azure":
		return ProviderAzblob, nil
	default:
		return "", fmt.Errorf("%w: unknown provider %q (valid: oss, s3, minio, cos, fs, hdfs, azblob)", ErrInvalidArgument, s)
	}
}
