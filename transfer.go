package storify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

const defaultTransferJobs = 4

// TransferOptions configures Upload and Download.
type TransferOptions struct {
	// Recursive transfers directory trees. Without it a directory source is
	// ErrInvalidArgument.
	Recursive bool
	// Jobs bounds the number of files in flight at once; zero means 4.
	Jobs int
}

// Upload copies a local file or directory tree into the backend. A directory
// requires Recursive; its regular files become one task each and upload
// through a bounded worker pool, so one failing file never stops its
// siblings. A single file landing on an existing remote directory goes
// inside it under its own name; a directory's contents land directly under
// remotePath. Completion order is unspecified, the report order is not.
func (c *Client) Upload(ctx context.Context, localPath, remotePath string, opts TransferOptions) (*TransferReport, error) {
	rp, err := CleanPath(remotePath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(localPath)
	if err != nil {
		return nil, localPathError(localPath, err)
	}

	if !info.IsDir() {
		dest := rp
		e, found, serr := c.statIfExists(ctx, rp)
		if serr != nil {
			return nil, serr
		}
		if found && e.IsDir() {
			dest, err = JoinPath(rp, filepath.Base(localPath))
			if err != nil {
				return nil, err
			}
		}
		tasks := []TransferTask{newTask(localPath, dest, DirectionUpload, info.Size())}
		report := c.runTransfers(ctx, opts.Jobs, tasks, c.uploadTask)
		return report, ctx.Err()
	}

	if !opts.Recursive {
		return nil, fmt.Errorf("%w: %s is a directory (use -R)", ErrInvalidArgument, localPath)
	}

	var tasks []TransferTask
	var dirs []string
	walkErr := filepath.WalkDir(localPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, rerr := filepath.Rel(localPath, p)
		if rerr != nil {
			return rerr
		}
		if rel == "." {
			return nil
		}
		target, jerr := JoinPath(rp, filepath.ToSlash(rel))
		if jerr != nil {
			return jerr
		}
		if d.IsDir() {
			dirs = append(dirs, target)
			return nil
		}
		if !d.Type().IsRegular() {
			slog.Warn("skipping non-regular file", "path", p)
			return nil
		}
		fi, ierr := d.Info()
		if ierr != nil {
			return ierr
		}
		tasks = append(tasks, newTask(p, target, DirectionUpload, fi.Size()))
		return nil
	})
	if walkErr != nil {
		return nil, localPathError(localPath, walkErr)
	}

	if err := c.MakeDir(ctx, rp, true); err != nil {
		return nil, err
	}
	for _, d := range dirs {
		if err := c.MakeDir(ctx, d, true); err != nil {
			return nil, err
		}
	}
	report := c.runTransfers(ctx, opts.Jobs, tasks, c.uploadTask)
	return report, ctx.Err()
}

// Download copies a remote file or directory tree to the local filesystem.
// A directory requires Recursive; every file under it becomes one task and
// downloads through the bounded pool. A single file aimed at an existing
// local directory lands inside it under its own name; a directory's contents
// land directly under localPath, with its subdirectories recreated first.
func (c *Client) Download(ctx context.Context, remotePath, localPath string, opts TransferOptions) (*TransferReport, error) {
	rp, err := CleanPath(remotePath)
	if err != nil {
		return nil, err
	}
	e, err := c.backend.Stat(ctx, rp)
	if err != nil {
		return nil, err
	}

	if !e.IsDir() {
		dest := localPath
		if info, serr := os.Stat(dest); serr == nil && info.IsDir() {
			dest = filepath.Join(dest, BaseName(rp))
		}
		tasks := []TransferTask{newTask(rp, dest, DirectionDownload, e.Size)}
		report := c.runTransfers(ctx, opts.Jobs, tasks, c.downloadTask)
		return report, ctx.Err()
	}

	if !opts.Recursive {
		return nil, fmt.Errorf("%w: %s is a directory (use -R)", ErrInvalidArgument, rp)
	}

	var tasks []TransferTask
	var dirs []string
	err = c.backend.List(ctx, rp, true, func(entry Entry) error {
		target := filepath.Join(localPath, filepath.FromSlash(RelPath(rp, entry.Path)))
		switch {
		case entry.IsDir():
			dirs = append(dirs, target)
		case entry.Kind != KindFile:
			slog.Warn("skipping non-file entry", "path", entry.Path)
		default:
			tasks = append(tasks, newTask(entry.Path, target, DirectionDownload, entry.Size))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(localPath, 0o755); err != nil {
		return nil, fmt.Errorf("create local directory: %w", err)
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create local directory: %w", err)
		}
	}
	report := c.runTransfers(ctx, opts.Jobs, tasks, c.downloadTask)
	return report, ctx.Err()
}

func newTask(src, dst string, dir TransferDirection, size int64) TransferTask {
	return TransferTask{
		ID:          uuid.New().String(),
		Source:      src,
		Destination: dst,
		Direction:   dir,
		BytesTotal:  size,
		Status:      StatusPending,
	}
}

// runTransfers drains tasks through a bounded worker pool. Every task runs
// at most once; on cancellation the tasks that never started are marked
// failed with ErrInterrupted instead of being waited on.
func (c *Client) runTransfers(ctx context.Context, jobs int, tasks []TransferTask,
	run func(context.Context, *TransferTask) error) *TransferReport {
	report := &TransferReport{Tasks: tasks}
	if len(tasks) == 0 {
		return report
	}
	if jobs <= 0 {
		jobs = defaultTransferJobs
	}
	if jobs > len(tasks) {
		jobs = len(tasks)
	}

	queue := make(chan *TransferTask)
	var wg sync.WaitGroup
	for range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range queue {
				t.Status = StatusRunning
				if err := run(ctx, t); err != nil {
					t.Status = StatusFailed
					t.Err = err
					slog.Warn("transfer failed",
						"direction", t.Direction, "source", t.Source, "destination", t.Destination, "err", err)
					continue
				}
				t.Status = StatusDone
			}
		}()
	}

feed:
	for i := range report.Tasks {
		select {
		case queue <- &report.Tasks[i]:
		case <-ctx.Done():
			break feed
		}
	}
	close(queue)
	wg.Wait()

	for i := range report.Tasks {
		if t := &report.Tasks[i]; t.Status == StatusPending {
			t.Status = StatusFailed
			t.Err = ErrInterrupted
		}
	}
	return report
}

func (c *Client) uploadTask(ctx context.Context, t *TransferTask) error {
	f, err := os.Open(t.Source)
	if err != nil {
		return localPathError(t.Source, err)
	}
	defer closeQuietly(f, t.Source)

	// A failed Write leaves nothing visible under the destination, so the
	// task never reports a partial object.
	n, err := c.backend.Write(ctx, t.Destination, f)
	if err != nil {
		return err
	}
	t.BytesDone = n
	return nil
}

func (c *Client) downloadTask(ctx context.Context, t *TransferTask) error {
	rc, err := c.backend.OpenRead(ctx, t.Source, nil)
	if err != nil {
		return err
	}
	defer closeQuietly(rc, t.Source)

	if err := os.MkdirAll(filepath.Dir(t.Destination), 0o755); err != nil {
		return fmt.Errorf("create local directory: %w", err)
	}
	f, err := os.Create(t.Destination)
	if err != nil {
		return fmt.Errorf("create %s: %w", t.Destination, err)
	}

	n, err := io.Copy(f, rc)
	t.BytesDone = n
	if cerr := f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		// The local file is written in place, so an interrupted copy can
		// leave a torn destination.
		t.Partial = n > 0
		return fmt.Errorf("download %s: %w", t.Source, err)
	}
	return nil
}

func (c *Client) copyTask(ctx context.Context, t *TransferTask) error {
	if err := c.backend.Copy(ctx, t.Source, t.Destination); err != nil {
		return err
	}
	if t.BytesTotal > 0 {
		t.BytesDone = t.BytesTotal
	}
	return nil
}

func localPathError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
	default:
		return err
	}
}
