package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/viper"

	"github.com/sagarc03/storify"
	"github.com/sagarc03/storify/azblob"
	"github.com/sagarc03/storify/config"
	"github.com/sagarc03/storify/cos"
	"github.com/sagarc03/storify/filesystem"
	"github.com/sagarc03/storify/hdfs"
	"github.com/sagarc03/storify/miniostore"
	"github.com/sagarc03/storify/oss"
	"github.com/sagarc03/storify/s3"
)

// getClient resolves the effective configuration and opens the backend it
// names. The returned cleanup releases backend resources and is safe to call
// exactly once, including when it is a no-op.
func getClient(ctx context.Context) (*storify.Client, func(), error) {
	conn, err := resolveConnection()
	if err != nil {
		return nil, nil, err
	}
	slog.Debug("resolved backend", "provider", conn.Provider, "source", conn.Source)

	backend, closer, err := openBackend(ctx, conn)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if closer == nil {
			return
		}
		if cerr := closer(); cerr != nil {
			slog.Warn("backend close failed", "provider", conn.Provider, "err", cerr)
		}
	}
	return storify.NewClient(backend), cleanup, nil
}

// resolveConnection loads the profile store and merges it with the
// environment. The store is always decrypted when it exists, so a corrupt or
// wrongly-keyed store fails even invocations that would resolve from
// environment variables alone.
func resolveConnection() (*config.Connection, error) {
	rec, err := loadRecord()
	if err != nil {
		return nil, err
	}

	// bindFlags puts an explicit --profile ahead of STORIFY_PROFILE.
	return config.Resolve(config.ResolveRequest{
		ProfileName: viper.GetString("profile"),
		Record:      rec,
	})
}

func openBackend(ctx context.Context, conn *config.Connection) (storify.Backend, func() error, error) {
	switch conn.Provider {
	case storify.ProviderFS:
		root, err := os.OpenRoot(conn.RootPath)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: open root path %q: %v", storify.ErrConfig, conn.RootPath, err)
		}
		return filesystem.NewStore(root), root.Close, nil

	case storify.ProviderS3:
		st, err := s3.NewStore(ctx, s3.Config{
			Bucket:          conn.Bucket,
			AccessKeyID:     conn.AccessKeyID,
			AccessKeySecret: conn.AccessKeySecret,
			Region:          conn.Region,
			Endpoint:        conn.Endpoint,
			RootPath:        conn.RootPath,
			Anonymous:       conn.Anonymous,
		})
		if err != nil {
			return nil, nil, err
		}
		return st, nil, nil

	case storify.ProviderMinIO:
		st, err := miniostore.NewStore(ctx, miniostore.Config{
			Bucket:          conn.Bucket,
			AccessKeyID:     conn.AccessKeyID,
			AccessKeySecret: conn.AccessKeySecret,
			Region:          conn.Region,
			Endpoint:        conn.Endpoint,
			RootPath:        conn.RootPath,
			Anonymous:       conn.Anonymous,
		})
		if err != nil {
			return nil, nil, err
		}
		return st, nil, nil

	case storify.ProviderOSS:
		st, err := oss.NewStore(ctx, oss.Config{
			Bucket:          conn.Bucket,
			AccessKeyID:     conn.AccessKeyID,
			AccessKeySecret: conn.AccessKeySecret,
			Endpoint:        conn.Endpoint,
			RootPath:        conn.RootPath,
			Anonymous:       conn.Anonymous,
		})
		if err != nil {
			return nil, nil, err
		}
		return st, nil, nil

	case storify.ProviderCOS:
		st, err := cos.NewStore(ctx, cos.Config{
			Bucket:          conn.Bucket,
			AccessKeyID:     conn.AccessKeyID,
			AccessKeySecret: conn.AccessKeySecret,
			Region:          conn.Region,
			Endpoint:        conn.Endpoint,
			RootPath:        conn.RootPath,
		})
		if err != nil {
			return nil, nil, err
		}
		return st, nil, nil

	case storify.ProviderAzblob:
		st, err := azblob.NewStore(ctx, azblob.Config{
			Bucket:          conn.Bucket,
			AccessKeyID:     conn.AccessKeyID,
			AccessKeySecret: conn.AccessKeySecret,
			Endpoint:        conn.Endpoint,
			RootPath:        conn.RootPath,
		})
		if err != nil {
			return nil, nil, err
		}
		return st, nil, nil

	case storify.ProviderHDFS:
		st, err := hdfs.NewStore(ctx, hdfs.Config{
			NameNode: conn.NameNode,
			RootPath: conn.RootPath,
		})
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil

	default:
		return nil, nil, fmt.Errorf("%w: unsupported provider %q", storify.ErrConfig, conn.Provider)
	}
}
