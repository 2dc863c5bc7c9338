package obligation

import (
	"encoding/binary"
)

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
// - ob/{ledger}/slot/{seq_be8}  (sequence backbone: slot -> subject)
// - ob/{ledger}/ent/{subject}   (entry record: amount, authoritative slot)
// - ob/{ledger}/meta            (lastSeq, slotCount, liveCount)
// - ob/{ledger}/cursor          (batch scan cursor)
// - ob/{ledger}/compact         (resumable compaction cursor)

var (
	obPrefix      = []byte("ob/")
	slotSeg       = []byte("/slot/")
	entSeg        = []byte("/ent/")
	metaSuffix    = []byte("/meta")
	cursorSuffix  = []byte("/cursor")
	compactSuffix = []byte("/compact")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// SlotKey builds the sequence slot key with a big-endian sequence for proper ordering.
func SlotKey(ledger string, seq uint64) []byte {
	k := make([]byte, 0, len(ledger)+24)
	k = append(k, obPrefix...)
	k = append(k, ledger...)
	k = append(k, slotSeg...)
	k = appendBE8(k, seq)
	return k
}

// SlotPrefix returns the range prefix covering all slots of a ledger.
func SlotPrefix(ledger string) []byte {
	k := make([]byte, 0, len(ledger)+16)
	k = append(k, obPrefix...)
	k = append(k, ledger...)
	k = append(k, slotSeg...)
	return k
}

// EntryKey builds the per-subject entry key.
func EntryKey(ledger, subject string) []byte {
	k := make([]byte, 0, len(ledger)+len(subject)+16)
	k = append(k, obPrefix...)
	k = append(k, ledger...)
	k = append(k, entSeg...)
	k = append(k, subject...)
	return k
}

// MetaKey builds the ledger metadata key.
func MetaKey(ledger string) []byte {
	k := make([]byte, 0, len(ledger)+16)
	k = append(k, obPrefix...)
	k = append(k, ledger...)
	k = append(k, metaSuffix...)
	return k
}

// CursorKey builds the durable batch scan cursor key.
func CursorKey(ledger string) []byte {
	k := make([]byte, 0, len(ledger)+16)
	k = append(k, obPrefix...)
	k = append(k, ledger...)
	k = append(k, cursorSuffix...)
	return k
}

// CompactCursorKey builds the resumable compaction cursor key.
func CompactCursorKey(ledger string) []byte {
	k := make([]byte, 0, len(ledger)+16)
	k = append(k, obPrefix...)
	k = append(k, ledger...)
	k = append(k, compactSuffix...)
	return k
}

// slotSeq extracts the sequence number from a slot key.
func slotSeq(key []byte) uint64 {
	if len(key) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(key[len(key)-8:])
}
