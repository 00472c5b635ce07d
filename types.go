package storify

import (
	"fmt"
	"time"
)

// EntryKind classifies a listed or stat'd object.
type EntryKind string

const (
	KindFile      EntryKind = "file"
	KindDirectory EntryKind = "directory"
	// KindOther covers backend-specific objects that are neither regular
	// files nor directories (symlinks, devices, append-only blobs).
	KindOther EntryKind = "other"
)

func (k EntryKind) IsValid() bool {
	switch k {
	case KindFile, KindDirectory, KindOther:
		return true
	default:
		return false
	}
}

// Entry is an immutable snapshot of one object or directory as reported by
// a listing or stat call. Path never carries a trailing separator; Kind marks
// directories. Size is -1 when the backend does not report one and ModTime is
// the zero time when unknown.
type Entry struct {
	Path    string    `json:"path"`
	Kind    EntryKind `json:"kind"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time,omitzero"`
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool { return e.Kind == KindDirectory }

// ByteRange selects a half-open byte window [Offset, Offset+Length) of an
// object. Length -1 means "to end of object".
type ByteRange struct {
	Offset int64
	Length int64
}

// ListFunc receives one Entry per listed object. Returning a non-nil error
// stops the walk and propagates out of List.
type ListFunc func(Entry) error

// TransferDirection says which way the bytes of one task move.
type TransferDirection string

const (
	DirectionUpload    TransferDirection = "upload"
	DirectionDownload  TransferDirection = "download"
	DirectionIntraCopy TransferDirection = "intra-copy"
)

// TransferStatus is the lifecycle state of one TransferTask.
type TransferStatus string

const (
	StatusPending TransferStatus = "pending"
	StatusRunning TransferStatus = "running"
	StatusDone    TransferStatus = "done"
	StatusFailed  TransferStatus = "failed"
)

// TransferTask is one file-level unit of a put/get batch. Tasks are owned by
// the invocation that created them and discarded when the command returns.
type TransferTask struct {
	ID          string            `json:"id"`
	Source      string            `json:"source"`
	Destination string            `json:"destination"`
	Direction   TransferDirection `json:"direction"`
	BytesTotal  int64             `json:"bytes_total"`
	BytesDone   int64             `json:"bytes_done"`
	Status      TransferStatus    `json:"status"`
	// Partial is set on failed tasks whose destination may hold a partially
	// written object; false means the destination is known absent or intact.
	Partial bool  `json:"partial,omitempty"`
	Err     error `json:"-"`
}

// TransferReport aggregates the outcome of one put/get batch.
type TransferReport struct {
	Tasks []TransferTask
}

// Failed returns the tasks that did not complete.
func (r *TransferReport) Failed() []TransferTask {
	var failed []TransferTask
	for _, t := range r.Tasks {
		if t.Status == StatusFailed {
			failed = append(failed, t)
		}
	}
	return failed
}

// Bytes returns the number of bytes successfully transferred.
func (r *TransferReport) Bytes() int64 {
	var n int64
	for _, t := range r.Tasks {
		n += t.BytesDone
	}
	return n
}

// Err returns nil when every task succeeded, otherwise an error summarizing
// the failure count. Individual failures stay on the tasks themselves.
func (r *TransferReport) Err() error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d transfer(s) failed", len(failed), len(r.Tasks))
}

// FormatSize renders a byte count the way du and ls print sizes: B/K/M/G/T,
// base 1024, one decimal above the unit boundary.
func FormatSize(bytes int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
		tb = gb * 1024
	)

	switch {
	case bytes >= tb:
		return fmt.Sprintf("%.1fT", float64(bytes)/tb)
	case bytes >= gb:
		return fmt.Sprintf("%.1fG", float64(bytes)/gb)
	case bytes >= mb:
		return fmt.Sprintf("%.1fM", float64(bytes)/mb)
	case bytes >= kb:
		return fmt.Sprintf("%.1fK", float64(bytes)/kb)
	default:
		return fmt.Sprintf("%dB", bytes)
	}
}
