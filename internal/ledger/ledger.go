package ledger

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/ledgerq/ledgerq/internal/storage/pebble"
)

// Meta holds ledger metadata and per-ledger processing overrides.
type Meta struct {
	Name        string `json:"name"`
	CreatedAtMs int64  `json:"createdAtMs"`
	// FailurePolicy selects "abort" or "requeue" behavior for fulfillment errors.
	FailurePolicy string `json:"failurePolicy"`
	// BatchLimit is the default fulfillment count per batch run.
	BatchLimit int `json:"batchLimit"`
	// ScanBudget bounds slots examined per batch run; 0 means unbounded.
	ScanBudget int `json:"scanBudget"`
	// CompactStaleRatio is the stale fraction at which the sweeper compacts.
	CompactStaleRatio float64 `json:"compactStaleRatio"`
	// EligibilityExpr is an optional CEL expression filtering fulfillment.
	EligibilityExpr string `json:"eligibilityExpr,omitempty"`
}

// Defaults returns opinionated defaults for new ledgers.
func Defaults() Meta {
	return Meta{
		FailurePolicy:     "abort",
		BatchLimit:        100,
		CompactStaleRatio: 0.5,
	}
}

var (
	ledgerMetaPrefix = []byte("lmeta/")
)

// metaKey builds the metadata key for a ledger.
func metaKey(name string) []byte {
	k := make([]byte, 0, len(ledgerMetaPrefix)+len(name))
	k = append(k, ledgerMetaPrefix...)
	k = append(k, name...)
	return k
}

// EnsureLedger creates a ledger meta record if absent, returning the effective meta.
// Idempotent: returns existing if already present.
func EnsureLedger(db *pebblestore.DB, name string) (Meta, error) {
	key := metaKey(name)
	if b, err := db.Get(key); err == nil && len(b) > 0 {
		var m Meta
		if err := json.Unmarshal(b, &m); err == nil {
			return m, nil
		}
		// fallthrough to rewrite if corrupted
	}
	m := Defaults()
	m.Name = name
	m.CreatedAtMs = time.Now().UnixMilli()
	bytes, err := json.Marshal(m)
	if err != nil {
		return Meta{}, err
	}
	if err := db.Set(key, bytes); err != nil {
		return Meta{}, err
	}
	return m, nil
}

// UpdateLedger overwrites the stored meta for an existing ledger.
func UpdateLedger(db *pebblestore.DB, m Meta) error {
	bytes, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return db.Set(metaKey(m.Name), bytes)
}

// ListLedgers returns the metadata of every registered ledger, ordered by name.
func ListLedgers(db *pebblestore.DB) ([]Meta, error) {
	upper := append(append([]byte(nil), ledgerMetaPrefix...), 0xFF)
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: ledgerMetaPrefix, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []Meta
	for ok := iter.First(); ok; ok = iter.Next() {
		var m Meta
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
