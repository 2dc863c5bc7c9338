package journal

import (
	"encoding/binary"
)

var (
	jrPrefix   = []byte("jr/")
	entrySeg   = []byte("/e/")
	metaSuffix = []byte("/meta")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// KeyMeta builds the journal metadata key (lastSeq).
func KeyMeta(ledger string) []byte {
	k := make([]byte, 0, len(ledger)+16)
	k = append(k, jrPrefix...)
	k = append(k, ledger...)
	k = append(k, metaSuffix...)
	return k
}

// KeyEntry builds the record key with a big-endian sequence for proper ordering.
func KeyEntry(ledger string, seq uint64) []byte {
	k := make([]byte, 0, len(ledger)+24)
	k = append(k, jrPrefix...)
	k = append(k, ledger...)
	k = append(k, entrySeg...)
	k = appendBE8(k, seq)
	return k
}
