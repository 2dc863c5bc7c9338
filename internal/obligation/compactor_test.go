package obligation

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// Compaction round-trip: surviving subjects keep their amounts, fully-stale
// subjects disappear entirely.
func TestCompactRoundTrip(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	_, _ = q.Append(ctx, "keep1", 10)
	_, _ = q.Append(ctx, "gone", 0)
	_, _ = q.Append(ctx, "keep2", 20)

	removed, err := q.Compact(ctx, 100, 0)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed %d want 1", removed)
	}
	if q.SequenceLength() != 2 {
		t.Fatalf("len %d want 2", q.SequenceLength())
	}

	for subj, want := range map[string]uint64{"keep1": 10, "keep2": 20} {
		amt, found, err := q.Amount(subj)
		if err != nil || !found || amt != want {
			t.Fatalf("%s: amt=%d found=%v err=%v", subj, amt, found, err)
		}
	}
	if _, found, _ := q.Amount("gone"); found {
		t.Fatalf("stale subject survived compaction")
	}
}

// Fully-stale ledger: compaction empties the sequence and parks the cursor
// back at zero.
func TestCompactEmptyLedgerResetsCursor(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		_, _ = q.Append(ctx, fmt.Sprintf("s%02d", i), uint64(i%3))
	}
	if _, err := q.RunBatch(ctx, 100, newRecorder()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if q.LiveCount() != 0 {
		t.Fatalf("expected everything fulfilled")
	}

	if _, err := q.Compact(ctx, 100, 0); err != nil {
		t.Fatalf("compact: %v", err)
	}
	if q.SequenceLength() != 0 {
		t.Fatalf("len %d want 0", q.SequenceLength())
	}
	if q.Cursor() != 0 {
		t.Fatalf("cursor %d want 0 after full reclaim", q.Cursor())
	}
	if pos, _ := q.CursorPosition(); pos != 0 {
		t.Fatalf("position %d want 0", pos)
	}

	// the queue stays usable: sequence numbers keep growing past the reset
	seq, _ := q.Append(ctx, "fresh", 4)
	if seq <= 20 {
		t.Fatalf("sequence regressed: %d", seq)
	}
	res, err := q.RunBatch(ctx, 10, newRecorder())
	if err != nil || res.Processed != 1 {
		t.Fatalf("post-reset run: %+v err=%v", res, err)
	}
}

// Superseded duplicates: exactly one slot per subject survives, the
// authoritative one.
func TestCompactDeduplicatesSubjects(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	_, _ = q.Append(ctx, "a", 10)
	_, _ = q.Append(ctx, "b", 5)
	s3, _ := q.Append(ctx, "a", 30) // supersedes slot 1

	removed, err := q.Compact(ctx, 100, 0)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if removed != 1 || q.SequenceLength() != 2 {
		t.Fatalf("removed=%d len=%d", removed, q.SequenceLength())
	}
	if _, ok, _ := q.SubjectAt(1); ok {
		t.Fatalf("superseded slot survived")
	}
	if sub, ok, _ := q.SubjectAt(s3); !ok || sub != "a" {
		t.Fatalf("authoritative slot lost")
	}
	if amt, _, _ := q.Amount("a"); amt != 30 {
		t.Fatalf("a amount %d want 30", amt)
	}
}

// Bounded steps persist the compaction cursor and resume where they stopped.
func TestCompactStepIsResumable(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, _ = q.Append(ctx, fmt.Sprintf("s%02d", i), 0)
	}

	removed, done, err := q.CompactStep(ctx, 4)
	if err != nil {
		t.Fatalf("step1: %v", err)
	}
	if removed != 4 || done {
		t.Fatalf("step1 removed=%d done=%v", removed, done)
	}
	if q.compactCursor() != 4 {
		t.Fatalf("compact cursor %d want 4", q.compactCursor())
	}

	removed, done, err = q.CompactStep(ctx, 100)
	if err != nil {
		t.Fatalf("step2: %v", err)
	}
	if removed != 6 || !done {
		t.Fatalf("step2 removed=%d done=%v", removed, done)
	}
	if q.compactCursor() != 0 {
		t.Fatalf("compact cursor not reset")
	}
	if q.SequenceLength() != 0 {
		t.Fatalf("len %d want 0", q.SequenceLength())
	}
}

// A requeued duplicate ahead of the scan cursor must survive compaction;
// dropping it would strand the obligation behind the cursor.
func TestCompactKeepsRequeuedCopyAheadOfCursor(t *testing.T) {
	q := openTestQueue(t)
	q.WithOptions(QueueOptions{FailurePolicy: FailRequeue})
	ctx := context.Background()

	_, _ = q.Append(ctx, "d", 9)
	rec := newRecorder()
	rec.failOn["d"] = fmt.Errorf("down")
	if _, err := q.RunBatch(ctx, 10, rec); err != nil {
		t.Fatalf("run: %v", err)
	}
	// slot 1 (old d) is behind the cursor; slot 2 (requeued d) is ahead

	if _, err := q.Compact(ctx, 100, 0); err != nil {
		t.Fatalf("compact: %v", err)
	}
	ent, found, _ := q.loadEntry("d")
	if !found || ent.Amount != 9 {
		t.Fatalf("requeued obligation lost: %+v found=%v", ent, found)
	}
	if sub, ok, _ := q.SubjectAt(ent.Slot); !ok || sub != "d" {
		t.Fatalf("authoritative slot missing")
	}
	if ent.Slot <= q.Cursor() {
		t.Fatalf("live copy stranded behind cursor: slot=%d cursor=%d", ent.Slot, q.Cursor())
	}

	delete(rec.failOn, "d")
	res, err := q.RunBatch(ctx, 10, rec)
	if err != nil || res.Processed != 1 {
		t.Fatalf("retry after compact: %+v err=%v", res, err)
	}
}

// A subject re-registered while a compaction step is in flight must keep its
// fresh entry; only entries still stale at commit time may be dropped.
func TestCompactKeepsConcurrentReRegistrations(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	const n = 2000
	for i := 0; i < n; i++ {
		_, _ = q.Append(ctx, fmt.Sprintf("s%04d", i), 0)
	}

	done := make(chan struct{})
	revived := make(chan []string, 1)
	go func() {
		defer close(done)
		for i := 0; i < n; i += 7 {
			_, _ = q.Append(ctx, fmt.Sprintf("s%04d", i), uint64(i+1))
		}
	}()
	go func() {
		// In-place revival; losing the race to compaction is fine, winning it
		// must leave a resolvable slot.
		var won []string
		for i := 3; i < n; i += 11 {
			if i%7 == 0 {
				continue // leave the re-registered subjects to the other writer
			}
			subj := fmt.Sprintf("s%04d", i)
			if err := q.SetAmount(ctx, subj, uint64(i+2)); err == nil {
				won = append(won, subj)
			}
		}
		revived <- won
	}()

	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}
		if _, _, err := q.CompactStep(ctx, 64); err != nil {
			t.Fatalf("compact step: %v", err)
		}
	}
	won := <-revived
	if _, err := q.Compact(ctx, 1024, 0); err != nil {
		t.Fatalf("final compact: %v", err)
	}

	for i := 0; i < n; i += 7 {
		subj := fmt.Sprintf("s%04d", i)
		amt, found, err := q.Amount(subj)
		if err != nil || !found || amt != uint64(i+1) {
			t.Fatalf("%s erased by compaction: amt=%d found=%v err=%v", subj, amt, found, err)
		}
	}
	for _, subj := range won {
		ent, found, err := q.loadEntry(subj)
		if err != nil || !found || ent.Amount == 0 {
			t.Fatalf("%s revival lost: %+v found=%v err=%v", subj, ent, found, err)
		}
		if _, ok, _ := q.SubjectAt(ent.Slot); !ok {
			t.Fatalf("%s entry points at a reclaimed slot %d", subj, ent.Slot)
		}
	}

	// every surviving slot must still resolve to a valid entry
	if _, err := q.RunBatch(ctx, n, newRecorder()); err != nil {
		t.Fatalf("batch after concurrent compaction: %v", err)
	}
}

// Stopping the sweeper must wait out an in-flight pass and leave the queue
// restartable; the deferred store close would fail a still-running pass.
func TestSweeperStopWaitsAndRestarts(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		_, _ = q.Append(ctx, fmt.Sprintf("w%03d", i), 0)
	}

	q.StartSweeper(time.Millisecond, 16, 0.1)
	time.Sleep(20 * time.Millisecond)
	q.StopSweeper()
	q.StopSweeper() // idempotent

	q.SetSweeperEnabled(true)
	time.Sleep(5 * time.Millisecond)
	q.SetSweeperEnabled(false)
}

func TestStaleRatioDrivesSweeperThreshold(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	_, _ = q.Append(ctx, "a", 1)
	_, _ = q.Append(ctx, "b", 0)
	_, _ = q.Append(ctx, "c", 0)
	_, _ = q.Append(ctx, "d", 0)

	if r := q.StaleRatio(); r != 0.75 {
		t.Fatalf("ratio %v want 0.75", r)
	}
	if _, err := q.Compact(ctx, 100, 0); err != nil {
		t.Fatalf("compact: %v", err)
	}
	if r := q.StaleRatio(); r != 0 {
		t.Fatalf("post-compact ratio %v want 0", r)
	}
}
