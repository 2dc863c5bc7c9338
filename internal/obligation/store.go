package obligation

import (
	"context"
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	pebblestore "github.com/ledgerq/ledgerq/internal/storage/pebble"
)

// Queue is a durable obligation queue for a single ledger: a keyed map from
// subject to pending amount plus an insertion-ordered sequence of slots.
// Amounts are zeroed inline by RunBatch; slots are removed only by compaction,
// keeping the common fulfillment path O(1).
type Queue struct {
	db     *pebblestore.DB
	ledger string

	mu        sync.Mutex
	lastSeq   uint64
	slotCount uint64
	liveCount uint64

	guard      Guard
	policy     FailurePolicy
	eligible   EligibilityFunc
	hook       FulfillHook
	scanBudget int

	// sweeper controls; sweepMu guards the channel and option fields, the
	// enabled flag is read from the sweeper goroutine without it
	sweepMu      sync.Mutex
	sweepStop    chan struct{}
	sweepDone    chan struct{}
	sweepEnabled atomic.Bool
	sweepIntv    time.Duration
	sweepMax     int
	sweepRatio   float64
}

// OpenQueue initializes a Queue and restores counters from metadata if present.
func OpenQueue(db *pebblestore.DB, ledger string) (*Queue, error) {
	q := &Queue{db: db, ledger: ledger, hook: noopHook{}}
	if meta, err := db.Get(MetaKey(ledger)); err == nil && len(meta) >= 24 {
		q.lastSeq = binary.BigEndian.Uint64(meta[0:8])
		q.slotCount = binary.BigEndian.Uint64(meta[8:16])
		q.liveCount = binary.BigEndian.Uint64(meta[16:24])
	}
	return q, nil
}

// QueueOptions tunes processing behavior. Zero values keep defaults
// (FailAbort, no eligibility filter, no fulfillment hook).
type QueueOptions struct {
	FailurePolicy FailurePolicy
	Eligible      EligibilityFunc
	Hook          FulfillHook
	// ScanBudget caps slots read per RunBatch call, on top of the fulfillment
	// limit. 0 means reads are bounded only by the remaining unscanned tail.
	// Set it when the execution environment meters reads as well as effects.
	ScanBudget int
}

func (q *Queue) WithOptions(opts QueueOptions) *Queue {
	q.policy = opts.FailurePolicy
	q.eligible = opts.Eligible
	if opts.Hook != nil {
		q.hook = opts.Hook
	}
	q.scanBudget = opts.ScanBudget
	return q
}

// Guard returns the queue's single-flight/pause guard. Callers must wrap
// RunBatch and Compact invocations with TryEnter/Exit.
func (q *Queue) Guard() *Guard { return &q.guard }

// Ledger returns the ledger name this queue serves.
func (q *Queue) Ledger() string { return q.ledger }

// Append registers an obligation: a new tail slot plus the subject entry.
// Re-registering a subject supersedes its previous slot; the stale duplicate
// is reclaimed by compaction. Amount 0 is accepted and produces an
// immediately-stale slot.
func (q *Queue) Append(ctx context.Context, subject string, amount uint64) (uint64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ent, found, err := q.loadEntry(subject)
	if err != nil {
		return 0, err
	}

	b := q.db.NewBatch()
	defer b.Close()

	q.lastSeq++
	seq := q.lastSeq
	if err := b.Set(SlotKey(q.ledger, seq), []byte(subject), nil); err != nil {
		q.lastSeq--
		return 0, err
	}
	now := time.Now().UnixMilli()
	if err := b.Set(EntryKey(q.ledger, subject), EncodeEntry(Entry{Amount: amount, Slot: seq, UpdatedAtMs: now}), nil); err != nil {
		q.lastSeq--
		return 0, err
	}

	prevSlots, prevLive := q.slotCount, q.liveCount
	q.slotCount++
	wasLive := found && ent.Amount > 0
	if amount > 0 && !wasLive {
		q.liveCount++
	}
	if amount == 0 && wasLive {
		q.liveCount--
	}
	if err := b.Set(MetaKey(q.ledger), q.encodeMetaLocked(), nil); err != nil {
		q.lastSeq--
		q.slotCount, q.liveCount = prevSlots, prevLive
		return 0, err
	}

	if err := q.db.CommitBatch(ctx, b); err != nil {
		q.lastSeq--
		q.slotCount, q.liveCount = prevSlots, prevLive
		return 0, err
	}
	return seq, nil
}

// SetAmount overwrites the pending amount of a registered subject in place.
// The subject keeps its sequence slot; setting 0 marks the entry stale without
// removing the slot, leaving reclamation to compaction.
func (q *Queue) SetAmount(ctx context.Context, subject string, amount uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	ent, found, err := q.loadEntry(subject)
	if err != nil {
		return err
	}
	if !found {
		return ErrUnknownSubject
	}

	b := q.db.NewBatch()
	defer b.Close()

	wasLive := ent.Amount > 0
	ent.Amount = amount
	ent.UpdatedAtMs = time.Now().UnixMilli()
	if err := b.Set(EntryKey(q.ledger, subject), EncodeEntry(ent), nil); err != nil {
		return err
	}

	prevLive := q.liveCount
	if amount > 0 && !wasLive {
		q.liveCount++
	}
	if amount == 0 && wasLive {
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

// Amount returns the pending amount for a subject. The second return is false
// when the subject has no entry (never registered, or compacted away).
func (q *Queue) Amount(subject string) (uint64, bool, error) {
	ent, found, err := q.loadEntry(subject)
	if err != nil || !found {
		return 0, false, err
	}
	return ent.Amount, true, nil
}

// SequenceLength returns the number of slots currently occupying the sequence,
// including stale ones not yet compacted.
func (q *Queue) SequenceLength() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.slotCount
}

// LiveCount returns the number of subjects with a nonzero pending amount.
func (q *Queue) LiveCount() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.liveCount
}

// LastSeq returns the highest sequence number ever assigned.
func (q *Queue) LastSeq() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastSeq
}

// StaleRatio returns the fraction of slots that are reclaimable (stale or
// superseded). 0 when the sequence is empty.
func (q *Queue) StaleRatio() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.slotCount == 0 {
		return 0
	}
	return float64(q.slotCount-q.liveCount) / float64(q.slotCount)
}

// SubjectAt returns the subject occupying a sequence slot, for inspection.
func (q *Queue) SubjectAt(seq uint64) (string, bool, error) {
	v, err := q.db.Get(SlotKey(q.ledger, seq))
	if err != nil {
		if err == pebblestore.ErrNotFound {
			return "", false, nil
		}
		return "", false, err
	}
	return string(v), true, nil
}

// loadEntry reads and decodes the subject entry. A present-but-corrupt record
// is an invariant breach, not a miss.
func (q *Queue) loadEntry(subject string) (Entry, bool, error) {
	v, err := q.db.Get(EntryKey(q.ledger, subject))
	if err != nil {
		if err == pebblestore.ErrNotFound {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	ent, ok := DecodeEntry(v)
	if !ok {
		return Entry{}, false, ErrInconsistentState
	}
	return ent, true, nil
}

// encodeMetaLocked encodes lastSeq|slotCount|liveCount. Caller holds q.mu.
func (q *Queue) encodeMetaLocked() []byte {
	var meta [24]byte
	binary.BigEndian.PutUint64(meta[0:8], q.lastSeq)
	binary.BigEndian.PutUint64(meta[8:16], q.slotCount)
	binary.BigEndian.PutUint64(meta[16:24], q.liveCount)
	return meta[:]
}
