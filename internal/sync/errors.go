package sync

import (
	"errors"
	"fmt"
)

// ErrSyncInProgress is returned when Sync is called while a cycle is
// already running. Calls are rejected, never queued.
var ErrSyncInProgress = errors.New("sync already in progress")

// SourceFetchError records a failed source fetch. Non-fatal: the cycle
// continues with zero items from that source.
type SourceFetchError struct {
	Source string
	Err    error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("source %s: fetch failed: %v", e.Source, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

// BatchError records a failed AI batch call. Non-fatal: the batch's items
// remain unprocessed and are retried on a later cycle.
type BatchError struct {
	Stage string // "classify", "group", or "translate"
	Batch int
	Items int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%s batch %d (%d items): %v", e.Stage, e.Batch, e.Items, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
