// Package storify provides a unified storage client: one set of
// filesystem-style operations (list, stat, read, write, copy, delete, search,
// diff, append) that behave identically against multiple storage backends.
//
// Storify separates three concerns:
//
//   - Backend: the capability interface every provider connector implements
//     (filesystem, s3, miniostore, oss, cos, hdfs, azblob packages)
//   - Client: the command engine building verb-level algorithms (tree, find,
//     grep, head/tail, du, diff, transfers) on top of a Backend
//   - config: encrypted profile persistence and environment-based resolution
//     of the effective configuration for one invocation
//
// # Failure Taxonomy
//
// Connectors translate provider-native faults into a small set of sentinel
// errors (ErrNotFound, ErrPermissionDenied, ErrAlreadyExists, ErrProvider, ...)
// at the abstraction boundary. Engine code matches with errors.Is and never
// inspects SDK error types.
//
// # Example Usage
//
//	root, err := os.OpenRoot("/srv/data")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client := storify.NewClient(filesystem.NewStore(root))
//
//	// Walk a subtree
//	err = client.List(ctx, "logs", storify.ListOptions{Recursive: true}, func(e storify.Entry) error {
//	    fmt.Println(e.Path)
//	    return nil
//	})
//
// See the cmd/storify package for the CLI wiring and the config package for
// profile storage.
package storify
