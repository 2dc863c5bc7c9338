// Package obligation implements ledgerq's durable obligation queue: keyed
// pending amounts processed in capped-size batches with a persisted scan
// cursor and stale-entry compaction.
//
// # Overview
//
// Each ledger keeps an insertion-ordered sequence of slots pointing at
// subject entries, persisted in Pebble. Keys are lexicographically ordered
// for efficient range scans:
//   - ob/{ledger}/slot/{seq_be8}  (slot -> subject)
//   - ob/{ledger}/ent/{subject}   (amount, authoritative slot, updatedAt, crc32c)
//   - ob/{ledger}/meta            (lastSeq, slotCount, liveCount)
//   - ob/{ledger}/cursor          (scan cursor: highest slot fully scanned)
//   - ob/{ledger}/compact         (resumable compaction cursor)
//
// The naive shape of this system rescans its whole history on every
// processing call. Here the cursor is first-class durable state: a batch
// scans only slots above it, fulfillment zeroes the amount in place (O(1)),
// and a separate bounded compaction pass reclaims zeroed and superseded
// slots so the effective sequence length tracks true backlog.
//
// # API surface (internal)
//
//	q, _ := OpenQueue(db, "payouts")
//	q.WithOptions(QueueOptions{FailurePolicy: FailAbort})
//
//	// Registration (external collaborator path)
//	seq, _ := q.Append(ctx, "acct-1", 500)
//
//	// Bounded processing under the guard
//	if err := q.Guard().TryEnter(); err == nil {
//	    res, err := q.RunBatch(ctx, 64, fulfiller)
//	    q.Guard().Exit()
//	    _ = res
//	    _ = err
//	}
//
//	// Bounded, resumable compaction
//	removed, _ := q.Compact(ctx, 1024, 0)
//	_ = removed
//
// # Concurrency
//
// Exactly one RunBatch or Compact may be in flight per queue; the Guard
// enforces single-flight and carries the pause switch. Append is serialized
// internally and may interleave with a running batch or compaction: both
// iterate Pebble snapshots bounded below their start position, so appended
// tail slots become visible on the next call.
package obligation
