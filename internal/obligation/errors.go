package obligation

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned by Guard.TryEnter when another batch or compaction
	// is already in flight against the same queue.
	ErrBusy = errors.New("obligation: queue busy")

	// ErrPaused is returned by Guard.TryEnter while the queue is paused.
	ErrPaused = errors.New("obligation: queue paused")

	// ErrUnknownSubject is returned by SetAmount for a subject that was never
	// registered or has been compacted away.
	ErrUnknownSubject = errors.New("obligation: unknown subject")

	// ErrInconsistentState signals an invariant breach (cursor ahead of the
	// sequence, or a slot referencing a missing entry). Processing halts;
	// the state is never patched silently.
	ErrInconsistentState = errors.New("obligation: inconsistent queue state")
)

// FulfillmentError reports a failed fulfillment effect. Under FailAbort the
// batch stops with the entry untouched and the cursor parked just before it.
type FulfillmentError struct {
	Subject string
	Slot    uint64
	Err     error
}

func (e *FulfillmentError) Error() string {
	return fmt.Sprintf("obligation: fulfillment failed for %q (slot %d): %v", e.Subject, e.Slot, e.Err)
}

func (e *FulfillmentError) Unwrap() error { return e.Err }
