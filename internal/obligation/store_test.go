package obligation

import (
	"context"
	"testing"

	pebblestore "github.com/ledgerq/ledgerq/internal/storage/pebble"
)

func openTestQueue(t *testing.T) *Queue {
	t.Helper()
	dir := t.TempDir()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	q, err := OpenQueue(db, "ledger")
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	return q
}

func TestAppendUpdatesCounters(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	seq, err := q.Append(ctx, "a", 100)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if seq == 0 {
		t.Fatalf("want seq > 0")
	}
	if q.SequenceLength() != 1 || q.LiveCount() != 1 {
		t.Fatalf("counters: len=%d live=%d", q.SequenceLength(), q.LiveCount())
	}

	amt, found, err := q.Amount("a")
	if err != nil || !found || amt != 100 {
		t.Fatalf("amount: %d found=%v err=%v", amt, found, err)
	}

	sub, ok, err := q.SubjectAt(seq)
	if err != nil || !ok || sub != "a" {
		t.Fatalf("subjectAt: %q ok=%v err=%v", sub, ok, err)
	}
}

func TestAppendZeroAmountIsStale(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	if _, err := q.Append(ctx, "z", 0); err != nil {
		t.Fatalf("append: %v", err)
	}
	if q.SequenceLength() != 1 {
		t.Fatalf("want slot recorded")
	}
	if q.LiveCount() != 0 {
		t.Fatalf("zero-amount registration must not be live")
	}
	if r := q.StaleRatio(); r != 1.0 {
		t.Fatalf("stale ratio %v want 1", r)
	}
}

func TestReRegisterSupersedesSlot(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	s1, _ := q.Append(ctx, "a", 10)
	s2, err := q.Append(ctx, "a", 25)
	if err != nil {
		t.Fatalf("append2: %v", err)
	}
	if s2 <= s1 {
		t.Fatalf("sequence must grow")
	}
	// Two slots, one live subject; old slot is a superseded duplicate.
	if q.SequenceLength() != 2 || q.LiveCount() != 1 {
		t.Fatalf("len=%d live=%d", q.SequenceLength(), q.LiveCount())
	}
	amt, _, _ := q.Amount("a")
	if amt != 25 {
		t.Fatalf("amount %d want 25", amt)
	}
	ent, found, err := q.loadEntry("a")
	if err != nil || !found || ent.Slot != s2 {
		t.Fatalf("entry slot %d want %d", ent.Slot, s2)
	}
}

func TestSetAmountKeepsSlot(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	seq, _ := q.Append(ctx, "a", 10)

	if err := q.SetAmount(ctx, "a", 75); err != nil {
		t.Fatalf("set: %v", err)
	}
	amt, found, _ := q.Amount("a")
	if !found || amt != 75 {
		t.Fatalf("amount %d found=%v", amt, found)
	}
	ent, _, _ := q.loadEntry("a")
	if ent.Slot != seq {
		t.Fatalf("slot moved: %d want %d", ent.Slot, seq)
	}

	// zeroing marks stale without removing the slot
	if err := q.SetAmount(ctx, "a", 0); err != nil {
		t.Fatalf("zero: %v", err)
	}
	if q.SequenceLength() != 1 || q.LiveCount() != 0 {
		t.Fatalf("len=%d live=%d", q.SequenceLength(), q.LiveCount())
	}

	if err := q.SetAmount(ctx, "missing", 1); err != ErrUnknownSubject {
		t.Fatalf("want ErrUnknownSubject, got %v", err)
	}
}

func TestCountersPersistAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	q, err := OpenQueue(db, "ledger")
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	ctx := context.Background()
	_, _ = q.Append(ctx, "a", 5)
	_, _ = q.Append(ctx, "b", 0)
	_ = db.Close()

	db2, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("reopen pebble: %v", err)
	}
	defer db2.Close()
	q2, err := OpenQueue(db2, "ledger")
	if err != nil {
		t.Fatalf("reopen queue: %v", err)
	}
	if q2.SequenceLength() != 2 || q2.LiveCount() != 1 || q2.LastSeq() != 2 {
		t.Fatalf("restored len=%d live=%d last=%d", q2.SequenceLength(), q2.LiveCount(), q2.LastSeq())
	}
}

func TestEntryCodecRoundTrip(t *testing.T) {
	in := Entry{Amount: 42, Slot: 7, UpdatedAtMs: 1700000000000}
	out, ok := DecodeEntry(EncodeEntry(in))
	if !ok || out != in {
		t.Fatalf("round trip: %+v ok=%v", out, ok)
	}
	// corrupt crc
	enc := EncodeEntry(in)
	enc[0] ^= 0xFF
	if _, ok := DecodeEntry(enc); ok {
		t.Fatalf("corrupt record must not decode")
	}
}
