package journal

import (
	"context"
	"testing"
	"time"

	pebblestore "github.com/ledgerq/ledgerq/internal/storage/pebble"
)

func openTestJournal(t *testing.T) (*pebblestore.DB, *Journal) {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir: t.TempDir(),
		Fsync:   pebblestore.FsyncModeNever,
	})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	j, err := Open(db, "test")
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	return db, j
}

func TestAppendAssignsSequences(t *testing.T) {
	_, j := openTestJournal(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		seq, err := j.Append(ctx, Record{TsMs: int64(i * 100), Subject: "alice", Amount: uint64(i)})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if seq != uint64(i) {
			t.Fatalf("seq = %d, want %d", seq, i)
		}
	}
	if got := j.LastSeq(); got != 3 {
		t.Fatalf("LastSeq = %d, want 3", got)
	}
}

func TestLastSeqPersistsAcrossReopen(t *testing.T) {
	db, j := openTestJournal(t)
	ctx := context.Background()

	if _, err := j.Append(ctx, Record{TsMs: 1, Subject: "a", Amount: 10}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := j.Append(ctx, Record{TsMs: 2, Subject: "b", Amount: 20}); err != nil {
		t.Fatalf("append: %v", err)
	}

	j2, err := Open(db, "test")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := j2.LastSeq(); got != 2 {
		t.Fatalf("LastSeq after reopen = %d, want 2", got)
	}
	seq, err := j2.Append(ctx, Record{TsMs: 3, Subject: "c", Amount: 30})
	if err != nil {
		t.Fatalf("append after reopen: %v", err)
	}
	if seq != 3 {
		t.Fatalf("seq after reopen = %d, want 3", seq)
	}
}

func TestReadForwardWithResume(t *testing.T) {
	_, j := openTestJournal(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if _, err := j.Append(ctx, Record{TsMs: int64(i), Subject: "s", Amount: uint64(i)}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	items, next := j.Read(ReadOptions{Limit: 3})
	if len(items) != 3 {
		t.Fatalf("first page: %d items, want 3", len(items))
	}
	if items[0].Seq != 1 || items[2].Seq != 3 {
		t.Fatalf("first page seqs %d..%d, want 1..3", items[0].Seq, items[2].Seq)
	}
	if next != 4 {
		t.Fatalf("resume = %d, want 4", next)
	}

	items, next = j.Read(ReadOptions{Start: next, Limit: 3})
	if len(items) != 2 {
		t.Fatalf("second page: %d items, want 2", len(items))
	}
	if items[0].Seq != 4 || items[1].Seq != 5 {
		t.Fatalf("second page seqs %d,%d, want 4,5", items[0].Seq, items[1].Seq)
	}
	if next != 0 {
		t.Fatalf("resume after exhaustion = %d, want 0", next)
	}
}

func TestReadReverseNewestFirst(t *testing.T) {
	_, j := openTestJournal(t)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		if _, err := j.Append(ctx, Record{TsMs: int64(i), Subject: "s", Amount: uint64(i)}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	items, next := j.Read(ReadOptions{Reverse: true, Limit: 2})
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].Seq != 4 || items[1].Seq != 3 {
		t.Fatalf("seqs %d,%d, want 4,3", items[0].Seq, items[1].Seq)
	}
	if next != 2 {
		t.Fatalf("resume = %d, want 2", next)
	}

	items, _ = j.Read(ReadOptions{Reverse: true, Start: next, Limit: 10})
	if len(items) != 2 || items[0].Seq != 2 || items[1].Seq != 1 {
		t.Fatalf("reverse resume returned wrong items: %+v", items)
	}
}

func TestTrimOlderThan(t *testing.T) {
	_, j := openTestJournal(t)
	ctx := context.Background()

	for i := 1; i <= 6; i++ {
		if _, err := j.Append(ctx, Record{TsMs: int64(i * 1000), Subject: "s", Amount: uint64(i)}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	deleted, last, err := j.TrimOlderThan(ctx, 4000, 2, 0)
	if err != nil {
		t.Fatalf("trim: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("deleted = %d, want 3", deleted)
	}
	if last != 3 {
		t.Fatalf("last deleted seq = %d, want 3", last)
	}

	items, _ := j.Read(ReadOptions{})
	if len(items) != 3 {
		t.Fatalf("remaining = %d, want 3", len(items))
	}
	if items[0].Seq != 4 {
		t.Fatalf("first remaining seq = %d, want 4", items[0].Seq)
	}
	if got := j.LastSeq(); got != 6 {
		t.Fatalf("LastSeq after trim = %d, want 6 (trim must not reset sequencing)", got)
	}
}

func TestRecordCodecRejectsCorruption(t *testing.T) {
	enc := EncodeRecord(Record{TsMs: time.Now().UnixMilli(), Subject: "alice", Amount: 42, Slot: 7})
	if _, ok := DecodeRecord(enc); !ok {
		t.Fatal("valid record failed to decode")
	}
	enc[0] ^= 0xFF
	if _, ok := DecodeRecord(enc); ok {
		t.Fatal("corrupt record decoded")
	}
	if _, ok := DecodeRecord(enc[:10]); ok {
		t.Fatal("short record decoded")
	}
}
