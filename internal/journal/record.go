package journal

import (
	"encoding/binary"
	"hash/crc32"
)

// Record encoding: tsMs(8B BE) | amount(8B BE) | slot(8B BE) | subject | crc32c

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Record is one fulfillment event.
type Record struct {
	TsMs    int64
	Subject string
	Amount  uint64
	Slot    uint64
}

func EncodeRecord(r Record) []byte {
	out := make([]byte, 0, 24+len(r.Subject)+4)
	out = appendBE8(out, uint64(r.TsMs))
	out = appendBE8(out, r.Amount)
	out = appendBE8(out, r.Slot)
	out = append(out, r.Subject...)

	crc := crc32.Checksum(out, castagnoli)
	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc)
	out = append(out, crcb[:]...)
	return out
}

func DecodeRecord(b []byte) (Record, bool) {
	if len(b) < 24+4 {
		return Record{}, false
	}
	body := b[:len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	if crc32.Checksum(body, castagnoli) != expect {
		return Record{}, false
	}
	return Record{
		TsMs:    int64(binary.BigEndian.Uint64(body[0:8])),
		Amount:  binary.BigEndian.Uint64(body[8:16]),
		Slot:    binary.BigEndian.Uint64(body[16:24]),
		Subject: string(body[24:]),
	}, true
}
