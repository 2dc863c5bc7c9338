package obligation

import (
	"encoding/binary"
	"hash/crc32"
)

// Entry value encoding: amount(8B BE) | slot(8B BE) | updatedAtMs(8B BE) | crc32c

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Entry is the decoded per-subject record. Slot names the authoritative
// sequence slot for the subject; older slots are duplicates awaiting compaction.
type Entry struct {
	Amount      uint64
	Slot        uint64
	UpdatedAtMs int64
}

func EncodeEntry(e Entry) []byte {
	out := make([]byte, 28)
	binary.BigEndian.PutUint64(out[0:8], e.Amount)
	binary.BigEndian.PutUint64(out[8:16], e.Slot)
	binary.BigEndian.PutUint64(out[16:24], uint64(e.UpdatedAtMs))
	crc := crc32.Checksum(out[:24], castagnoli)
	binary.BigEndian.PutUint32(out[24:28], crc)
	return out
}

func DecodeEntry(b []byte) (Entry, bool) {
	if len(b) != 28 {
		return Entry{}, false
	}
	expect := binary.BigEndian.Uint32(b[24:28])
	if crc32.Checksum(b[:24], castagnoli) != expect {
		return Entry{}, false
	}
	return Entry{
		Amount:      binary.BigEndian.Uint64(b[0:8]),
		Slot:        binary.BigEndian.Uint64(b[8:16]),
		UpdatedAtMs: int64(binary.BigEndian.Uint64(b[16:24])),
	}, true
}
