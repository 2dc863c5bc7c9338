package journal

import (
	"context"
	"encoding/binary"
	"sync"

	pebblestore "github.com/ledgerq/ledgerq/internal/storage/pebble"
)

// Journal provides append-only fulfillment history for a ledger.
type Journal struct {
	db     *pebblestore.DB
	ledger string

	mu      sync.Mutex
	lastSeq uint64
}

// Open initializes a Journal and loads the last sequence from metadata (if any).
func Open(db *pebblestore.DB, ledger string) (*Journal, error) {
	j := &Journal{db: db, ledger: ledger}
	if meta, err := db.Get(KeyMeta(ledger)); err == nil && len(meta) >= 8 {
		j.lastSeq = binary.BigEndian.Uint64(meta[:8])
	}
	return j, nil
}

// Append writes one record atomically with the metadata update. Returns the
// assigned sequence number.
func (j *Journal) Append(ctx context.Context, r Record) (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	b := j.db.NewBatch()
	defer b.Close()

	j.lastSeq++
	seq := j.lastSeq
	if err := b.Set(KeyEntry(j.ledger, seq), EncodeRecord(r), nil); err != nil {
		j.lastSeq--
		return 0, err
	}
	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], j.lastSeq)
	if err := b.Set(KeyMeta(j.ledger), meta[:], nil); err != nil {
		j.lastSeq--
		return 0, err
	}
	if err := j.db.CommitBatch(ctx, b); err != nil {
		j.lastSeq--
		return 0, err
	}
	return seq, nil
}

// LastSeq returns the highest sequence assigned so far.
func (j *Journal) LastSeq() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastSeq
}
