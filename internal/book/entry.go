package book

import (
	"encoding/binary"
	"fmt"
)

// EntrySize is the size of one on-disk record:
// key uint64 | move uint16 | weight uint16 | learn uint32, big-endian.
const EntrySize = 16

type Entry struct {
	Key    uint64
	Move   EncodedMove
	Weight uint16
	Learn  uint32
}

// DecodedEntry is the per-key view of an entry. Two entries of the same key
// are duplicates when their decoded values are equal.
type DecodedEntry struct {
	Move   Move
	Weight uint16
	Learn  uint32
}

func (e Entry) Decoded() DecodedEntry {
	return DecodedEntry{Move: e.Move.Decode(), Weight: e.Weight, Learn: e.Learn}
}

func (e Entry) Pack() [EntrySize]byte {
	var buf [EntrySize]byte
	e.put(buf[:])
	return buf
}

// AppendBinary appends the packed record to b.
func (e Entry) AppendBinary(b []byte) []byte {
	b = binary.BigEndian.AppendUint64(b, e.Key)
	b = binary.BigEndian.AppendUint16(b, uint16(e.Move))
	b = binary.BigEndian.AppendUint16(b, e.Weight)
	return binary.BigEndian.AppendUint32(b, e.Learn)
}

func (e Entry) put(buf []byte) {
	binary.BigEndian.PutUint64(buf[0:8], e.Key)
	binary.BigEndian.PutUint16(buf[8:10], uint16(e.Move))
	binary.BigEndian.PutUint16(buf[10:12], e.Weight)
	binary.BigEndian.PutUint32(buf[12:16], e.Learn)
}

// Unpack decodes a single record.
func Unpack(b []byte) (Entry, error) {
	if len(b) != EntrySize {
		return Entry{}, fmt.Errorf("unpack %d bytes: %w", len(b), ErrMalformedEntry)
	}
	return Entry{
		Key:    binary.BigEndian.Uint64(b[0:8]),
		Move:   EncodedMove(binary.BigEndian.Uint16(b[8:10])),
		Weight: binary.BigEndian.Uint16(b[10:12]),
		Learn:  binary.BigEndian.Uint32(b[12:16]),
	}, nil
}
