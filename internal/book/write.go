package book

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteTo writes every entry to w, keys ascending and entries in book order.
func (b *Book) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriterSize(w, 256*EntrySize)
	var (
		written int64
		buf     = make([]byte, 0, EntrySize)
		werr    error
	)
	b.tree().Ascend(func(bk *bucket) bool {
		for _, e := range bk.entries {
			n, err := bw.Write(e.AppendBinary(buf[:0]))
			written += int64(n)
			if err != nil {
				werr = err
				return false
			}
		}
		return true
	})
	if werr != nil {
		return written, fmt.Errorf("write book: %w", werr)
	}
	if err := bw.Flush(); err != nil {
		return written, fmt.Errorf("flush book: %w", err)
	}
	return written, nil
}

// Write replaces the file at path with the book's contents.
//
// Any mapping the book was read from is released first; if that fails, Write
// returns ErrFileBusy and the destination is untouched. The new contents are
// written through ReplaceFile.
func (b *Book) Write(path string) error {
	if err := b.Close(); err != nil {
		return fmt.Errorf("release %s: %w: %w", path, ErrFileBusy, err)
	}
	n, err := ReplaceFile(path, b.WriteTo)
	if err != nil {
		return err
	}
	b.log.Info().
		Str("path", path).
		Int("keys", b.Len()).
		Int64("bytes", n).
		Msg("wrote book")
	return nil
}

// ReplaceFile stages the output of write to a temporary file in path's
// directory and renames it over path once fully written and synced. On any
// failure the destination is left as it was. An existing destination keeps
// its permission bits; a new one gets 0644.
func ReplaceFile(path string, write func(io.Writer) (int64, error)) (int64, error) {
	mode := os.FileMode(0o644)
	if st, err := os.Stat(path); err == nil {
		mode = st.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp book: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	n, err := write(tmp)
	if err != nil {
		cleanup()
		return n, err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return n, fmt.Errorf("sync temp book: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return n, fmt.Errorf("close temp book: %w", err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		os.Remove(tmpPath)
		return n, fmt.Errorf("chmod temp book: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return n, fmt.Errorf("replace book %s: %w", path, err)
	}
	return n, nil
}
