package journal

import (
	"encoding/binary"

	"github.com/cockroachdb/pebble"
)

type ReadOptions struct {
	Start   uint64 // if zero, begin from the first (or last, when Reverse) entry
	Limit   int
	Reverse bool
}

// Item is a decoded record with its journal sequence.
type Item struct {
	Seq uint64
	Record
}

// Read returns up to Limit items starting at Start (inclusive). Reverse scans
// descending, newest first. The second return is the next resume position
// (0 when the scan is exhausted).
func (j *Journal) Read(opts ReadOptions) ([]Item, uint64) {
	low := KeyEntry(j.ledger, 0)
	hi := KeyEntry(j.ledger, ^uint64(0))

	items := make([]Item, 0, max(1, opts.Limit))
	iter, err := j.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: append(hi, 0x00)})
	if err != nil {
		return items, 0
	}
	defer iter.Close()

	startKey := KeyEntry(j.ledger, opts.Start)
	if opts.Reverse {
		if opts.Start == 0 {
			if !iter.Last() {
				return items, 0
			}
		} else if !iter.SeekLT(append(startKey, 0x00)) {
			return items, 0
		}
		for iter.Valid() && (opts.Limit == 0 || len(items) < opts.Limit) {
			seq := binary.BigEndian.Uint64(iter.Key()[len(iter.Key())-8:])
			if rec, ok := DecodeRecord(iter.Value()); ok {
				items = append(items, Item{Seq: seq, Record: rec})
			}
			if !iter.Prev() {
				return items, 0
			}
		}
		if iter.Valid() {
			return items, binary.BigEndian.Uint64(iter.Key()[len(iter.Key())-8:])
		}
		return items, 0
	}

	if opts.Start == 0 {
		if !iter.First() {
			return items, 0
		}
	} else if !iter.SeekGE(startKey) {
		return items, 0
	}
	for iter.Valid() && (opts.Limit == 0 || len(items) < opts.Limit) {
		seq := binary.BigEndian.Uint64(iter.Key()[len(iter.Key())-8:])
		if rec, ok := DecodeRecord(iter.Value()); ok {
			items = append(items, Item{Seq: seq, Record: rec})
		}
		if !iter.Next() {
			return items, 0
		}
	}
	if iter.Valid() {
		return items, binary.BigEndian.Uint64(iter.Key()[len(iter.Key())-8:])
	}
	return items, 0
}
