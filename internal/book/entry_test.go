package book

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryPackLayout(t *testing.T) {
	e := Entry{Key: 0x463b96181691fc9c, Move: EncodeMove(12, 28, NoPiece, false), Weight: 0x0102, Learn: 0x03040506}
	got := e.Pack()
	want := [EntrySize]byte{
		0x46, 0x3b, 0x96, 0x18, 0x16, 0x91, 0xfc, 0x9c,
		0x03, 0x1c,
		0x01, 0x02,
		0x03, 0x04, 0x05, 0x06,
	}
	assert.Equal(t, want, got)
	assert.Equal(t, want[:], e.AppendBinary(nil))
}

func TestEntryRoundTrip(t *testing.T) {
	entries := []Entry{
		{},
		{Key: 1, Move: 796, Weight: 10},
		{Key: ^uint64(0), Move: ^EncodedMove(0), Weight: ^uint16(0), Learn: ^uint32(0)},
	}
	for _, e := range entries {
		packed := e.Pack()
		got, err := Unpack(packed[:])
		require.NoError(t, err)
		assert.Equal(t, e, got)
	}
}

func TestUnpackMalformed(t *testing.T) {
	for _, n := range []int{0, 1, 15, 17, 32} {
		_, err := Unpack(make([]byte, n))
		if !errors.Is(err, ErrMalformedEntry) {
			t.Fatalf("unpack %d bytes: got %v want ErrMalformedEntry", n, err)
		}
	}
}

func TestDecodedEqualityIgnoresUnusedBit(t *testing.T) {
	a := Entry{Key: 7, Move: EncodeMove(12, 28, NoPiece, false), Weight: 3}
	b := a
	b.Move |= 1 << 15
	assert.NotEqual(t, a, b)
	assert.Equal(t, a.Decoded(), b.Decoded())
}
