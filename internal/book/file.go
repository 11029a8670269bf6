package book

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/rs/zerolog"
)

// Records is random access to the raw entries of a book file.
type Records interface {
	// Len returns the number of records. It fails with ErrCorruptBook when
	// the underlying length is not a multiple of EntrySize.
	Len() (int, error)
	// At returns the record at i. Negative indices count from the end.
	At(i int) (Entry, error)
	Close() error
}

// mappedRecords is a read-only memory mapping of a book file.
type mappedRecords struct {
	f    *os.File
	data mmap.MMap
}

// emptyRecords stands in for a missing, empty or unmappable file.
type emptyRecords struct{}

func (emptyRecords) Len() (int, error) { return 0, nil }

func (emptyRecords) At(i int) (Entry, error) {
	return Entry{}, fmt.Errorf("index %d of 0: %w", i, ErrIndexOutOfRange)
}

func (emptyRecords) Close() error { return nil }

// OpenFile maps path read-only. A file that does not exist, is empty or
// cannot be mapped opens as an empty book. A path that is not a regular file
// is an error.
func OpenFile(path string) (Records, error) {
	return openFile(path, zerolog.Nop())
}

func openFile(path string, log zerolog.Logger) (Records, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Debug().Str("path", path).Msg("book file missing, using empty book")
			return emptyRecords{}, nil
		}
		return nil, fmt.Errorf("open book: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat book: %w", err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("open book %s: not a regular file", path)
	}
	if info.Size() == 0 {
		f.Close()
		log.Debug().Str("path", path).Msg("book file empty")
		return emptyRecords{}, nil
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		log.Warn().Err(err).Str("path", path).Msg("mmap book failed, using empty book")
		return emptyRecords{}, nil
	}
	return &mappedRecords{f: f, data: data}, nil
}

func (m *mappedRecords) Len() (int, error) {
	if len(m.data)%EntrySize != 0 {
		return 0, fmt.Errorf("book length %d: %w", len(m.data), ErrCorruptBook)
	}
	return len(m.data) / EntrySize, nil
}

func (m *mappedRecords) At(i int) (Entry, error) {
	n, err := m.Len()
	if err != nil {
		return Entry{}, err
	}
	idx := i
	if idx < 0 {
		idx += n
	}
	if idx < 0 || idx >= n {
		return Entry{}, fmt.Errorf("index %d of %d: %w", i, n, ErrIndexOutOfRange)
	}
	off := idx * EntrySize
	return Unpack(m.data[off : off+EntrySize])
}

// Close unmaps the file and closes it.
func (m *mappedRecords) Close() error {
	if m.data != nil {
		if err := m.data.Unmap(); err != nil {
			return err
		}
		m.data = nil
	}
	if m.f != nil {
		err := m.f.Close()
		m.f = nil
		return err
	}
	return nil
}

// Read opens the book file at path. See Book.ReadFile.
func Read(path string) (*Book, error) {
	b := New()
	if err := b.ReadFile(path); err != nil {
		return nil, err
	}
	return b, nil
}

// ReadFile maps path and adds every record, in file order, with the same
// duplicate rule as Add. The mapping stays open, reachable through Records,
// until Close or Write.
func (b *Book) ReadFile(path string) error {
	if err := b.Close(); err != nil {
		return err
	}
	recs, err := openFile(path, b.log)
	if err != nil {
		return err
	}
	n, err := recs.Len()
	if err != nil {
		recs.Close()
		return fmt.Errorf("read book %s: %w", path, err)
	}
	added := 0
	for i := 0; i < n; i++ {
		e, err := recs.At(i)
		if err != nil {
			recs.Close()
			return fmt.Errorf("read book %s: %w", path, err)
		}
		if b.Add(e) {
			added++
		}
	}
	b.records = recs
	b.log.Debug().
		Str("path", path).
		Int("records", n).
		Int("added", added).
		Msg("read book")
	return nil
}

// ReadFrom adds every record read from r, in stream order, with the same
// duplicate rule as Add. A trailing partial record fails with ErrCorruptBook.
func (b *Book) ReadFrom(r io.Reader) (int64, error) {
	br := bufio.NewReaderSize(r, 64*EntrySize)
	var (
		buf  [EntrySize]byte
		read int64
	)
	for {
		n, err := io.ReadFull(br, buf[:])
		read += int64(n)
		if err == io.EOF {
			return read, nil
		}
		if err == io.ErrUnexpectedEOF {
			return read, fmt.Errorf("trailing %d bytes: %w", n, ErrCorruptBook)
		}
		if err != nil {
			return read, fmt.Errorf("read book: %w", err)
		}
		e, err := Unpack(buf[:])
		if err != nil {
			return read, err
		}
		b.Add(e)
	}
}

// Records returns random access to the file the book was read from. A book
// that was not read from a file returns an empty view.
func (b *Book) Records() Records {
	if b.records == nil {
		return emptyRecords{}
	}
	return b.records
}

// Close releases the file mapping, if any. The in-memory entries stay usable.
func (b *Book) Close() error {
	if b.records == nil {
		return nil
	}
	if err := b.records.Close(); err != nil {
		return err
	}
	b.records = nil
	return nil
}
