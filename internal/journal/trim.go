package journal

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/cockroachdb/pebble"
)

// TrimOlderThan deletes records with timestamp < cutoffMs. Deletes are
// committed in batches of up to batchLimit keys with an optional throttle
// between commits. Returns number of deleted records and the last deleted
// sequence (0 if none).
func (j *Journal) TrimOlderThan(ctx context.Context, cutoffMs int64, batchLimit int, throttle time.Duration) (int, uint64, error) {
	if batchLimit <= 0 {
		batchLimit = 1024
	}

	low := KeyEntry(j.ledger, 0)
	hi := KeyEntry(j.ledger, ^uint64(0))
	iter, err := j.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: append(hi, 0x00)})
	if err != nil {
		return 0, 0, err
	}
	defer iter.Close()

	deleted := 0
	var lastSeq uint64
	for ok := iter.First(); ok; {
		b := j.db.NewBatch()
		n := 0
		for ok && n < batchLimit {
			seq := binary.BigEndian.Uint64(iter.Key()[len(iter.Key())-8:])
			rec, okDec := DecodeRecord(iter.Value())
			if !okDec || rec.TsMs >= cutoffMs {
				// Records are appended in time order; stop at the first
				// one newer than the cutoff.
				ok = false
				break
			}
			if err := b.Delete(iter.Key(), nil); err != nil {
				b.Close()
				return deleted, lastSeq, err
			}
			deleted++
			lastSeq = seq
			n++
			ok = iter.Next()
		}
		if n > 0 {
			if err := j.db.CommitBatch(ctx, b); err != nil {
				b.Close()
				return deleted, lastSeq, err
			}
			b.Close()
			if throttle > 0 {
				time.Sleep(throttle)
			}
		} else {
			b.Close()
		}
	}
	return deleted, lastSeq, nil
}
