// Package journal implements an append-only fulfillment journal per ledger.
//
// Every successful fulfillment appends one record; retention is enforced by
// bounded, batched trims. Keys are lexicographically ordered:
//   - jr/{ledger}/meta          (lastSeq)
//   - jr/{ledger}/e/{seq_be8}   (records)
//
// Records are stored as: tsMs(8B BE) | amount(8B BE) | slot(8B BE) | subject | crc32c.
//
// API surface (internal)
//
//	j, _ := Open(db, "payouts")
//	seq, _ := j.Append(ctx, Record{TsMs: now, Subject: "acct-1", Amount: 500, Slot: 12})
//	items, next := j.Read(ReadOptions{Limit: 100})
//	_ = next // resume position
//	deleted, _ := j.TrimOlderThan(ctx, cutoffMs, 1024, 0)
//	_ = deleted
package journal
