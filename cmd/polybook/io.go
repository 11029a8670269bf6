package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"polybook/internal/book"
)

var newZstdWriter = func(w io.Writer) (*zstd.Encoder, error) {
	return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
}

// loadBook reads a book from path. "-" reads stdin and a ".zst" suffix reads
// a zstd-compressed stream; both follow the same missing-file policy as plain
// files.
func (e *env) loadBook(path string) (*book.Book, error) {
	b := book.New()
	b.SetLogger(e.log)

	switch {
	case path == "-":
		if _, err := b.ReadFrom(os.Stdin); err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
	case strings.HasSuffix(path, ".zst"):
		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			e.log.Debug().Str("path", path).Msg("book file missing, using empty book")
			return b, nil
		}
		if err != nil {
			return nil, fmt.Errorf("open book: %w", err)
		}
		defer f.Close()
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open zstd stream: %w", err)
		}
		defer zr.Close()
		if _, err := b.ReadFrom(zr); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	default:
		if err := b.ReadFile(path); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// saveBook writes b to path, compressing when path ends in ".zst". "-"
// writes the raw book to stdout.
func (e *env) saveBook(b *book.Book, path string) error {
	switch {
	case path == "-":
		if err := b.Close(); err != nil {
			return err
		}
		_, err := b.WriteTo(os.Stdout)
		return err
	case strings.HasSuffix(path, ".zst"):
		if err := b.Close(); err != nil {
			return fmt.Errorf("release book: %w: %w", book.ErrFileBusy, err)
		}
		n, err := book.ReplaceFile(path, func(w io.Writer) (int64, error) {
			zw, err := newZstdWriter(w)
			if err != nil {
				return 0, fmt.Errorf("open zstd stream: %w", err)
			}
			n, err := b.WriteTo(zw)
			if err != nil {
				zw.Close()
				return n, err
			}
			if err := zw.Close(); err != nil {
				return n, fmt.Errorf("finish zstd stream: %w", err)
			}
			return n, nil
		})
		if err != nil {
			return err
		}
		e.log.Info().Str("path", path).Int64("bytes", n).Msg("wrote compressed book")
		return nil
	default:
		return b.Write(path)
	}
}

func parseKey(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	key, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid key %q: %w", s, err)
	}
	return key, nil
}
