package book

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.bin")

	b := New()
	b.AddEntry(0x1, 12, 28, NoPiece, false, 10, 0)
	b.AddEntry(0x1, 12, 28, Queen, false, 5, 0)
	require.NoError(t, b.Write(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(2*EntrySize), info.Size())

	got, err := Read(path)
	require.NoError(t, err)
	defer got.Close()

	entries, ok := got.Entries(0x1)
	require.True(t, ok)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Len(t, e.Pack(), EntrySize)
	}
	assert.Equal(t, []weighted{
		{Move{From: 12, To: 28}, 10},
		{Move{From: 12, To: 28, Promotion: Queen}, 5},
	}, collectWeighted(got, 0x1))
}

func TestWriteSortedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.bin")

	b := New()
	for _, k := range []uint64{0xff00, 0x10, 0xffffffffffffffff, 0x10, 0x3} {
		b.AddEntry(k, 12, 28, NoPiece, false, uint16(k&0xff), 0)
	}
	b.AddEntry(0x10, 11, 27, NoPiece, false, 2, 0)
	require.NoError(t, b.Write(path))

	recs, err := OpenFile(path)
	require.NoError(t, err)
	defer recs.Close()

	n, err := recs.Len()
	require.NoError(t, err)
	require.Equal(t, 5, n)

	prev, err := recs.At(0)
	require.NoError(t, err)
	for i := 1; i < n; i++ {
		e, err := recs.At(i)
		require.NoError(t, err)
		if e.Key < prev.Key {
			t.Fatalf("record %d key 0x%x after 0x%x", i, e.Key, prev.Key)
		}
		prev = e
	}

	// entries within a key keep book order.
	e1, _ := recs.At(1)
	e2, _ := recs.At(2)
	assert.Equal(t, Move{From: 12, To: 28}, e1.Move.Decode())
	assert.Equal(t, Move{From: 11, To: 27}, e2.Move.Decode())
}

func TestRecordsAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.bin")
	b := New()
	b.AddEntry(1, 12, 28, NoPiece, false, 1, 0)
	b.AddEntry(2, 12, 28, NoPiece, false, 2, 0)
	b.AddEntry(3, 12, 28, NoPiece, false, 3, 0)
	require.NoError(t, b.Write(path))

	got, err := Read(path)
	require.NoError(t, err)
	defer got.Close()

	recs := got.Records()
	n, err := recs.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	last, err := recs.At(-1)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), last.Key)

	first, err := recs.At(-3)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Key)

	for _, i := range []int{3, 100, -4} {
		_, err := recs.At(i)
		assert.True(t, errors.Is(err, ErrIndexOutOfRange), "index %d: %v", i, err)
	}
}

func TestOpenEmptyAndMissing(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.bin")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	for _, path := range []string{empty, filepath.Join(dir, "missing.bin")} {
		b, err := Read(path)
		require.NoError(t, err, path)
		assert.Equal(t, 0, b.Len())
		assert.Empty(t, b.Keys())

		n, err := b.Records().Len()
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		_, err = b.Records().At(0)
		assert.True(t, errors.Is(err, ErrIndexOutOfRange))
	}
}

func TestReadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, EntrySize+3), 0o644))

	_, err := Read(path)
	assert.True(t, errors.Is(err, ErrCorruptBook), "got %v", err)

	recs, err := OpenFile(path)
	require.NoError(t, err)
	defer recs.Close()
	_, err = recs.Len()
	assert.True(t, errors.Is(err, ErrCorruptBook))
}

func TestReadDedupMatchesAdd(t *testing.T) {
	e := Entry{Key: 9, Move: EncodeMove(12, 28, NoPiece, false), Weight: 4}
	var raw []byte
	raw = e.AppendBinary(raw)
	raw = e.AppendBinary(raw)
	path := filepath.Join(t.TempDir(), "dup.bin")
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	b, err := Read(path)
	require.NoError(t, err)
	defer b.Close()

	entries, _ := b.Entries(9)
	assert.Len(t, entries, 1)
	n, _ := b.Records().Len()
	assert.Equal(t, 2, n)
}

func TestWriteOverMappedSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.bin")
	b := New()
	b.AddEntry(1, 12, 28, NoPiece, false, 1, 0)
	require.NoError(t, b.Write(path))

	loaded, err := Read(path)
	require.NoError(t, err)
	n, _ := loaded.Records().Len()
	require.Equal(t, 1, n)

	loaded.AddEntry(2, 11, 27, NoPiece, false, 1, 0)
	require.NoError(t, loaded.Write(path))

	// the mapping was released by Write.
	n, _ = loaded.Records().Len()
	assert.Equal(t, 0, n)

	again, err := Read(path)
	require.NoError(t, err)
	defer again.Close()
	assert.Equal(t, []uint64{1, 2}, again.Keys())
	assert.Equal(t, 2, again.EntryCount())
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	b := New()
	b.AddEntry(1, 12, 28, NoPiece, false, 1, 0)
	require.NoError(t, b.Write(filepath.Join(dir, "book.bin")))

	names, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, names, 1)
	assert.Equal(t, "book.bin", names[0].Name())
}

func TestWriteMissingDir(t *testing.T) {
	b := New()
	b.AddEntry(1, 12, 28, NoPiece, false, 1, 0)
	err := b.Write(filepath.Join(t.TempDir(), "nope", "book.bin"))
	assert.Error(t, err)
}

func TestReadFromZstd(t *testing.T) {
	b := New()
	b.AddEntry(3, 12, 28, NoPiece, false, 1, 0)
	b.AddEntry(1, 11, 27, Knight, false, 2, 7)

	var compressed bytes.Buffer
	zw, err := zstd.NewWriter(&compressed)
	require.NoError(t, err)
	n, err := b.WriteTo(zw)
	require.NoError(t, err)
	assert.Equal(t, int64(2*EntrySize), n)
	require.NoError(t, zw.Close())

	zr, err := zstd.NewReader(&compressed)
	require.NoError(t, err)
	defer zr.Close()

	got := New()
	read, err := got.ReadFrom(zr)
	require.NoError(t, err)
	assert.Equal(t, int64(2*EntrySize), read)
	assert.Equal(t, []uint64{1, 3}, got.Keys())

	entries, _ := got.Entries(1)
	assert.Equal(t, []Entry{{Key: 1, Move: EncodeMove(11, 27, Knight, false), Weight: 2, Learn: 7}}, entries)
}

func TestReadFromTrailingBytes(t *testing.T) {
	e := Entry{Key: 1, Move: 796, Weight: 1}
	raw := append(e.AppendBinary(nil), 0x00, 0x01)

	_, err := New().ReadFrom(bytes.NewReader(raw))
	assert.True(t, errors.Is(err, ErrCorruptBook))
}

type failingRecords struct{}

func (failingRecords) Len() (int, error) { return 0, nil }

func (failingRecords) At(i int) (Entry, error) {
	return Entry{}, fmt.Errorf("index %d of 0: %w", i, ErrIndexOutOfRange)
}

func (failingRecords) Close() error { return errors.New("unmap failed") }

func writeExisting(t *testing.T, path string, perm os.FileMode) []byte {
	t.Helper()
	old := New()
	old.AddEntry(0x42, 12, 28, NoPiece, false, 7, 0)
	var buf bytes.Buffer
	_, err := old.WriteTo(&buf)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), perm))
	return buf.Bytes()
}

func TestWriteReleaseFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.bin")
	want := writeExisting(t, path, 0o644)

	b := New()
	b.AddEntry(1, 12, 28, NoPiece, false, 1, 0)
	b.records = failingRecords{}

	err := b.Write(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFileBusy)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestWriteReadOnlyDirKeepsDestination(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "book.bin")
	want := writeExisting(t, path, 0o644)
	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { os.Chmod(dir, 0o755) })

	b := New()
	b.AddEntry(1, 12, 28, NoPiece, false, 1, 0)
	require.Error(t, b.Write(path))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReplaceFileFailedWriteKeepsDestination(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.bin")
	want := writeExisting(t, path, 0o644)

	boom := errors.New("disk full")
	_, err := ReplaceFile(path, func(w io.Writer) (int64, error) {
		n, _ := w.Write([]byte("partial"))
		return int64(n), boom
	})
	require.ErrorIs(t, err, boom)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	names, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, names, 1)
}

func TestWriteKeepsPermissions(t *testing.T) {
	tests := []struct {
		name     string
		existing os.FileMode
		want     os.FileMode
	}{
		{"new file", 0, 0o644},
		{"private file", 0o600, 0o600},
		{"group readable", 0o640, 0o640},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "book.bin")
			if tt.existing != 0 {
				writeExisting(t, path, tt.existing)
				// WriteFile applies the umask; pin the mode explicitly.
				require.NoError(t, os.Chmod(path, tt.existing))
			}

			b := New()
			b.AddEntry(1, 12, 28, NoPiece, false, 1, 0)
			require.NoError(t, b.Write(path))

			st, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, st.Mode().Perm())
		})
	}
}

func TestReadDirectory(t *testing.T) {
	_, err := Read(t.TempDir())
	assert.Error(t, err)

	_, err = OpenFile(t.TempDir())
	assert.ErrorContains(t, err, "not a regular file")
}
