package obligation

import (
	"encoding/binary"

	"github.com/cockroachdb/pebble"
)

// The scan cursor is the highest sequence number fully scanned (processed or
// skipped). Scans resume at cursor+1, so slots at or below it are never read
// twice. It only moves forward, except when compaction of a fully-empty
// ledger resets it atomically with the rewrite.

// Cursor loads the durable scan cursor. 0 means nothing scanned yet.
func (q *Queue) Cursor() uint64 {
	v, err := q.db.Get(CursorKey(q.ledger))
	if err != nil || len(v) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(v[:8])
}

// commitCursor stores the cursor idempotently. A value at or below the stored
// one is ignored, so retries and overlapping commits cannot regress the scan.
func (q *Queue) commitCursor(seq uint64) error {
	if seq <= q.Cursor() {
		return nil
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return q.db.Set(CursorKey(q.ledger), b[:])
}

// putCursor writes the cursor into a batch without the monotonic check.
// Used inside per-entry commits (seq is known to be ahead) and by the
// compactor's reset.
func (q *Queue) putCursor(b *pebble.Batch, seq uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return b.Set(CursorKey(q.ledger), buf[:], nil)
}

// CursorPosition counts live sequence slots at or below the cursor. It is the
// positional view of the cursor after compaction has dropped stale slots, and
// is intended for inspection endpoints and tests, not the hot path.
func (q *Queue) CursorPosition() (uint64, error) {
	cur := q.Cursor()
	if cur == 0 {
		return 0, nil
	}
	low := SlotKey(q.ledger, 0)
	hi := SlotKey(q.ledger, cur)
	iter, err := q.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: append(hi, 0x00)})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	var n uint64
	for ok := iter.First(); ok; ok = iter.Next() {
		n++
	}
	return n, nil
}
