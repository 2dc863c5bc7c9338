package obligation

import (
	"context"
	"encoding/binary"
	"math/rand"
	"time"

	"github.com/cockroachdb/pebble"
)

// Compaction reclaims sequence slots that cursor advancement alone leaves
// behind: fulfilled entries, zero-value registrations, and duplicates
// superseded by a re-append. Slots keep their sequence numbers, so the scan
// cursor needs no remapping; relative order of live entries is preserved.

// compactCursor loads the resumable compaction position.
func (q *Queue) compactCursor() uint64 {
	v, err := q.db.Get(CompactCursorKey(q.ledger))
	if err != nil || len(v) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(v[:8])
}

// CompactStep scans at most maxScan slots from the persisted compaction
// cursor, deleting reclaimable ones in a single atomic batch. Returns the
// number of slots removed and whether the tail was reached. Symmetric to
// RunBatch: bounded, resumable, and safe to call repeatedly under the Guard.
func (q *Queue) CompactStep(ctx context.Context, maxScan int) (int, bool, error) {
	if maxScan <= 0 {
		maxScan = 1024
	}
	start := q.compactCursor()

	low := SlotKey(q.ledger, start+1)
	hi := SlotKey(q.ledger, ^uint64(0))
	iter, err := q.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: append(hi, 0x00)})
	if err != nil {
		return 0, false, err
	}
	defer iter.Close()

	b := q.db.NewBatch()
	defer b.Close()

	// Slots whose entry looks fully stale during the unlocked scan are only
	// candidates; they are re-validated under q.mu before the commit, because
	// a concurrent Append or SetAmount may revive the subject in the meantime.
	// Orphan and superseded slots are deleted straight away: entry slots only
	// ever move forward, so neither can become authoritative again.
	type staleCandidate struct {
		subject string
		seq     uint64
	}
	var candidates []staleCandidate

	scanned := 0
	removed := 0
	lastSeen := start
	for ok := iter.First(); ok && scanned < maxScan; ok = iter.Next() {
		seq := slotSeq(iter.Key())
		subject := string(iter.Value())
		ent, found, err := q.loadEntry(subject)
		if err != nil {
			return 0, false, err
		}
		switch {
		case !found:
			// Orphan slot; entry was already dropped.
			if err := b.Delete(SlotKey(q.ledger, seq), nil); err != nil {
				return 0, false, err
			}
			removed++
		case ent.Slot != seq:
			// Superseded duplicate; the live copy sits at ent.Slot.
			if err := b.Delete(SlotKey(q.ledger, seq), nil); err != nil {
				return 0, false, err
			}
			removed++
		case ent.Amount == 0:
			// Authoritative slot of a fully-stale subject.
			candidates = append(candidates, staleCandidate{subject: subject, seq: seq})
		}
		lastSeen = seq
		scanned++
	}
	done := scanned < maxScan

	q.mu.Lock()
	defer q.mu.Unlock()

	// Append and SetAmount commit while holding q.mu, so this re-read is the
	// authoritative view of each candidate.
	for _, c := range candidates {
		ent, found, err := q.loadEntry(c.subject)
		if err != nil {
			return 0, false, err
		}
		switch {
		case found && ent.Slot == c.seq && ent.Amount > 0:
			// Revived in place; slot and entry both stay.
			continue
		case found && ent.Slot == c.seq:
			// Still fully stale: slot and entry go together.
			if err := b.Delete(EntryKey(q.ledger, c.subject), nil); err != nil {
				return 0, false, err
			}
		}
		// Re-registered subjects own a newer slot, so the scanned slot is a
		// plain duplicate now; orphans are reclaimed the same way.
		if err := b.Delete(SlotKey(q.ledger, c.seq), nil); err != nil {
			return 0, false, err
		}
		removed++
	}

	prevSlots := q.slotCount
	if uint64(removed) > q.slotCount {
		q.slotCount = 0
	} else {
		q.slotCount -= uint64(removed)
	}
	if err := b.Set(MetaKey(q.ledger), q.encodeMetaLocked(), nil); err != nil {
		q.slotCount = prevSlots
		return 0, false, err
	}

	var cbuf [8]byte
	if done {
		// Tail reached: the next compaction starts over.
		if err := b.Delete(CompactCursorKey(q.ledger), nil); err != nil {
			q.slotCount = prevSlots
			return 0, false, err
		}
		if q.slotCount == 0 && q.liveCount == 0 {
			// Fully empty ledger: park the scan cursor back at zero.
			if err := q.putCursor(b, 0); err != nil {
				q.slotCount = prevSlots
				return 0, false, err
			}
		}
	} else {
		binary.BigEndian.PutUint64(cbuf[:], lastSeen)
		if err := b.Set(CompactCursorKey(q.ledger), cbuf[:], nil); err != nil {
			q.slotCount = prevSlots
			return 0, false, err
		}
	}

	if err := q.db.CommitBatch(ctx, b); err != nil {
		q.slotCount = prevSlots
		return 0, false, err
	}
	return removed, done, nil
}

// Compact runs CompactStep to the tail in batches of maxScan slots with an
// optional throttle between commits. Returns total slots removed.
func (q *Queue) Compact(ctx context.Context, maxScan int, throttle time.Duration) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		removed, done, err := q.CompactStep(ctx, maxScan)
		total += removed
		if err != nil {
			return total, err
		}
		if done {
			break
		}
		if throttle > 0 {
			time.Sleep(throttle)
		}
	}
	// Hand Pebble a range compaction hint after large reclaims.
	if total >= 4096 {
		lowHint := SlotPrefix(q.ledger)
		_ = q.db.CompactRange(lowHint, append(append([]byte{}, lowHint...), 0xFF))
	}
	return total, nil
}

// ConfigureSweeper sets background auto-compaction options. The sweeper
// compacts only when StaleRatio reaches ratio; the trigger policy is
// configuration, never inferred. Takes effect on the next StartSweeper.
func (q *Queue) ConfigureSweeper(interval time.Duration, maxPerStep int, ratio float64) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if maxPerStep <= 0 {
		maxPerStep = 1024
	}
	if ratio <= 0 || ratio > 1 {
		ratio = 0.5
	}
	q.sweepMu.Lock()
	q.sweepIntv = interval
	q.sweepMax = maxPerStep
	q.sweepRatio = ratio
	q.sweepMu.Unlock()
}

// SetSweeperEnabled starts or stops the background sweeper according to the flag.
func (q *Queue) SetSweeperEnabled(enabled bool) {
	q.sweepEnabled.Store(enabled)
	if enabled {
		q.sweepMu.Lock()
		interval, maxPerStep, ratio := q.sweepIntv, q.sweepMax, q.sweepRatio
		q.sweepMu.Unlock()
		q.StartSweeper(interval, maxPerStep, ratio)
	} else {
		q.StopSweeper()
	}
}

// StartSweeper runs a background loop that compacts when the stale ratio
// crosses the threshold. Runs under the Guard; a busy queue is skipped and
// retried on the next tick. No-op while a sweeper is already running.
func (q *Queue) StartSweeper(interval time.Duration, maxPerStep int, ratio float64) {
	q.ConfigureSweeper(interval, maxPerStep, ratio)

	q.sweepMu.Lock()
	if q.sweepStop != nil {
		q.sweepMu.Unlock()
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	q.sweepStop = stop
	q.sweepDone = done
	// Snapshot the options; the goroutine never touches shared sweep fields.
	interval, maxPerStep, ratio = q.sweepIntv, q.sweepMax, q.sweepRatio
	q.sweepMu.Unlock()

	q.sweepEnabled.Store(true)
	go func() {
		defer close(done)
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		for {
			select {
			case <-stop:
				return
			case <-time.After(interval + time.Duration(rng.Int63n(int64(interval/10+1)))):
				if !q.sweepEnabled.Load() {
					continue
				}
				if q.StaleRatio() < ratio {
					continue
				}
				if err := q.guard.TryEnter(); err != nil {
					continue
				}
				_, _ = q.Compact(context.Background(), maxPerStep, 0)
				q.guard.Exit()
			}
		}
	}()
}

// StopSweeper stops the background sweeper and waits for it to exit, so the
// underlying store may be closed as soon as this returns. Idempotent.
func (q *Queue) StopSweeper() {
	q.sweepMu.Lock()
	stop, done := q.sweepStop, q.sweepDone
	q.sweepStop, q.sweepDone = nil, nil
	q.sweepMu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}
