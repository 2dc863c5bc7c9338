package obligation

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
)

// Fulfiller is the external fulfillment effect (a transfer, a burn, an RPC).
// It must be safe to call at most once per entry per successful clear; the
// queue never re-invokes it for an entry it has already zeroed.
type Fulfiller interface {
	Fulfill(ctx context.Context, subject string, amount uint64) error
}

// FulfillerFunc adapts a function to the Fulfiller interface.
type FulfillerFunc func(ctx context.Context, subject string, amount uint64) error

func (f FulfillerFunc) Fulfill(ctx context.Context, subject string, amount uint64) error {
	return f(ctx, subject, amount)
}

// FailurePolicy decides what a batch does when the fulfillment effect fails.
// The choice is explicit configuration: silently advancing past a failed
// fulfillment would strand that obligation forever.
type FailurePolicy int

const (
	// FailAbort stops the batch at the failing entry. The entry keeps its
	// amount and the cursor parks just before it, so a retry resumes there.
	FailAbort FailurePolicy = iota
	// FailRequeue re-appends the failing subject at the tail and continues.
	// The failed slot becomes a superseded duplicate for compaction.
	FailRequeue
)

// EligibilityFunc gates fulfillment per entry. Entries reporting false are
// requeued at the tail rather than skipped in place, so they are never
// stranded behind the cursor.
type EligibilityFunc func(subject string, amount uint64, ageMs int64) bool

// FulfillHook observes successful fulfillments (journal, metrics). Emitted
// after the clearing commit; best-effort, must not block.
type FulfillHook interface {
	EmitFulfilled(ledger, subject string, amount, slot uint64)
}

type noopHook struct{}

func (noopHook) EmitFulfilled(string, string, uint64, uint64) {}

// BatchResult summarizes one bounded processing call.
type BatchResult struct {
	Processed int    // entries fulfilled and cleared
	Scanned   int    // slots read (fulfilled + stale skips + requeues)
	Requeued  int    // entries moved to the tail (filter or FailRequeue)
	Cursor    uint64 // cursor after the call
}

// RunBatch scans the sequence from the cursor, fulfilling up to limit live
// entries. Work is bounded by limit fulfillments plus the slots read; slots
// below the cursor are never rescanned. Runs under the queue's Guard.
func (q *Queue) RunBatch(ctx context.Context, limit int, fulfill Fulfiller) (BatchResult, error) {
	if limit <= 0 {
		limit = 64
	}
	var res BatchResult

	cur := q.Cursor()
	last := q.LastSeq()
	if cur > last {
		return res, fmt.Errorf("cursor %d ahead of sequence %d: %w", cur, last, ErrInconsistentState)
	}

	low := SlotKey(q.ledger, cur+1)
	hi := SlotKey(q.ledger, ^uint64(0))
	iter, err := q.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: append(hi, 0x00)})
	if err != nil {
		return res, err
	}
	defer iter.Close()

	lastDone := cur
	nowMs := time.Now().UnixMilli()
	for ok := iter.First(); ok && res.Processed < limit; ok = iter.Next() {
		if q.scanBudget > 0 && res.Scanned >= q.scanBudget {
			break
		}
		seq := slotSeq(iter.Key())
		subject := string(iter.Value())
		ent, found, err := q.loadEntry(subject)
		if err != nil {
			_ = q.commitCursor(lastDone)
			res.Cursor = lastDone
			return res, err
		}
		if !found {
			_ = q.commitCursor(lastDone)
			res.Cursor = lastDone
			return res, fmt.Errorf("slot %d references unknown subject %q: %w", seq, subject, ErrInconsistentState)
		}
		res.Scanned++

		// Stale (fulfilled or zero-registered) or superseded duplicate:
		// advance only, one read, no side effect, no count toward limit.
		if ent.Amount == 0 || ent.Slot != seq {
			lastDone = seq
			continue
		}

		if q.eligible != nil && !q.eligible(subject, ent.Amount, nowMs-ent.UpdatedAtMs) {
			if err := q.requeue(ctx, subject, ent, seq); err != nil {
				res.Cursor = lastDone
				return res, err
			}
			lastDone = seq
			res.Requeued++
			continue
		}

		if err := fulfill.Fulfill(ctx, subject, ent.Amount); err != nil {
			if q.policy == FailRequeue {
				if rqErr := q.requeue(ctx, subject, ent, seq); rqErr != nil {
					res.Cursor = lastDone
					return res, rqErr
				}
				lastDone = seq
				res.Requeued++
				continue
			}
			_ = q.commitCursor(lastDone)
			res.Cursor = lastDone
			return res, &FulfillmentError{Subject: subject, Slot: seq, Err: err}
		}

		if err := q.clearFulfilled(ctx, subject, seq); err != nil {
			res.Cursor = lastDone
			return res, err
		}
		q.hook.EmitFulfilled(q.ledger, subject, ent.Amount, seq)
		lastDone = seq
		res.Processed++
	}

	if err := q.commitCursor(lastDone); err != nil {
		return res, err
	}
	res.Cursor = lastDone
	return res, nil
}

// clearFulfilled commits {amount:=0, cursor:=seq, liveCount--} atomically so
// an abort or crash leaves the queue exactly as of the last committed entry.
func (q *Queue) clearFulfilled(ctx context.Context, subject string, seq uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	b := q.db.NewBatch()
	defer b.Close()

	now := time.Now().UnixMilli()
	if err := b.Set(EntryKey(q.ledger, subject), EncodeEntry(Entry{Amount: 0, Slot: seq, UpdatedAtMs: now}), nil); err != nil {
		return err
	}
	if err := q.putCursor(b, seq); err != nil {
		return err
	}
	prevLive := q.liveCount
	if q.liveCount > 0 {
		q.liveCount--
	}
	if err := b.Set(MetaKey(q.ledger), q.encodeMetaLocked(), nil); err != nil {
		q.liveCount = prevLive
		return err
	}
	if err := q.db.CommitBatch(ctx, b); err != nil {
		q.liveCount = prevLive
		return err
	}
	return nil
}

// requeue appends a fresh tail slot for the subject, keeps its amount, and
// advances the cursor past the old slot in the same commit. The old slot is
// left as a superseded duplicate for compaction.
func (q *Queue) requeue(ctx context.Context, subject string, ent Entry, oldSeq uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	b := q.db.NewBatch()
	defer b.Close()

	q.lastSeq++
	nseq := q.lastSeq
	if err := b.Set(SlotKey(q.ledger, nseq), []byte(subject), nil); err != nil {
		q.lastSeq--
		return err
	}
	// Registration age is preserved so time-based eligibility cannot starve.
	if err := b.Set(EntryKey(q.ledger, subject), EncodeEntry(Entry{Amount: ent.Amount, Slot: nseq, UpdatedAtMs: ent.UpdatedAtMs}), nil); err != nil {
		q.lastSeq--
		return err
	}
	if err := q.putCursor(b, oldSeq); err != nil {
		q.lastSeq--
		return err
	}
	prevSlots := q.slotCount
	q.slotCount++
	if err := b.Set(MetaKey(q.ledger), q.encodeMetaLocked(), nil); err != nil {
		q.lastSeq--
		q.slotCount = prevSlots
		return err
	}
	if err := q.db.CommitBatch(ctx, b); err != nil {
		q.lastSeq--
		q.slotCount = prevSlots
		return err
	}
	return nil
}
