package patcher

import "sync/atomic"

// Progress is the snapshot handed to a ProgressFunc at each entry
// boundary, per §4.5/§5: total_bytes/max_files are computed once up
// front from the source ZIP's central directory, and the remaining
// fields advance as the pipeline works through it.
type Progress struct {
	TotalBytes   uint64
	BytesDone    uint64
	MaxFiles     int
	FilesDone    int
	CurrentEntry string
}

// ProgressFunc is invoked synchronously on the worker thread that
// produced it (§5: "implementers must not perform long I/O inside
// callbacks").
type ProgressFunc func(Progress)

// CancelToken wraps the single atomic cancellation flag described in
// §5: any thread may call Cancel (at-most-one publish of true is the
// intended usage; repeated calls are harmless), and ArchivePatcher.Run
// is the sole reader, polled at the boundaries named in §4.5.
type CancelToken struct {
	cancelled atomic.Bool
}

// NewCancelToken returns a token in the not-cancelled state.
func NewCancelToken() *CancelToken {
	return &CancelToken{}
}

// Cancel publishes the cancellation request.
func (c *CancelToken) Cancel() {
	c.cancelled.Store(true)
}

// Cancelled reports whether Cancel has been called. A stale false read
// by the worker is harmless per §5: cancellation is best-effort.
func (c *CancelToken) Cancelled() bool {
	return c.cancelled.Load()
}
