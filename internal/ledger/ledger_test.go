package ledger

import (
	"testing"

	pebblestore "github.com/ledgerq/ledgerq/internal/storage/pebble"
)

func openTestDB(t *testing.T) *pebblestore.DB {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestEnsureLedgerIdempotent(t *testing.T) {
	db := openTestDB(t)

	m1, err := EnsureLedger(db, "default")
	if err != nil {
		t.Fatalf("ensure1: %v", err)
	}
	m2, err := EnsureLedger(db, "default")
	if err != nil {
		t.Fatalf("ensure2: %v", err)
	}
	if m1.Name != m2.Name || m1.CreatedAtMs != m2.CreatedAtMs {
		t.Fatalf("not idempotent: %+v vs %+v", m1, m2)
	}
	if m1.FailurePolicy != "abort" || m1.BatchLimit != 100 {
		t.Fatalf("unexpected defaults: %+v", m1)
	}
}

func TestUpdateLedgerOverrides(t *testing.T) {
	db := openTestDB(t)

	m, err := EnsureLedger(db, "billing")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	m.FailurePolicy = "requeue"
	m.ScanBudget = 25
	if err := UpdateLedger(db, m); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := EnsureLedger(db, "billing")
	if err != nil {
		t.Fatalf("re-ensure: %v", err)
	}
	if got.FailurePolicy != "requeue" || got.ScanBudget != 25 {
		t.Fatalf("overrides lost: %+v", got)
	}
}

func TestListLedgersOrdered(t *testing.T) {
	db := openTestDB(t)

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if _, err := EnsureLedger(db, name); err != nil {
			t.Fatalf("ensure %s: %v", name, err)
		}
	}

	all, err := ListLedgers(db)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d ledgers, want 3", len(all))
	}
	if all[0].Name != "alpha" || all[1].Name != "mid" || all[2].Name != "zeta" {
		t.Fatalf("unexpected order: %+v", all)
	}
}
