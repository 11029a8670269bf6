package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/notnil/chess"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polybook/internal/book"
	"polybook/internal/config"
)

func run(t *testing.T, cfg config.Config, args ...string) string {
	t.Helper()
	out, err := runErr(cfg, args...)
	require.NoError(t, err, out)
	return out
}

func runErr(cfg config.Config, args ...string) (string, error) {
	var out bytes.Buffer
	app := newApp(cfg)
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"polybook", "--log-level", "error"}, args...))
	return out.String(), err
}

func testConfig(t *testing.T) config.Config {
	dir := t.TempDir()
	return config.Config{
		DataDir:  dir,
		BookPath: filepath.Join(dir, "book.bin"),
		DBPath:   filepath.Join(dir, "books.sqlite"),
		LogLevel: "error",
	}
}

func TestAddAndLookup(t *testing.T) {
	cfg := testConfig(t)
	run(t, cfg, "add", "--move", "e2e4", "--weight", "10")
	run(t, cfg, "add", "--move", "d2d4", "--weight", "5")

	out := run(t, cfg, "lookup")
	assert.Contains(t, out, "463b96181691fc9c")
	assert.Contains(t, out, "e2e4")
	assert.Contains(t, out, "d2d4")

	b, err := book.Read(cfg.BookPath)
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, 2, b.EntryCount())
}

func TestMergeAndPrune(t *testing.T) {
	cfg := testConfig(t)
	a := filepath.Join(cfg.DataDir, "a.bin")
	b := filepath.Join(cfg.DataDir, "b.bin.zst")
	out := filepath.Join(cfg.DataDir, "out.bin")

	run(t, cfg, "add", "--move", "e2e4", "--weight", "10", a)
	run(t, cfg, "add", "--move", "e2e4", "--weight", "10", b)
	run(t, cfg, "add", "--move", "g1f3", "--weight", "2", b)
	run(t, cfg, "merge", "-o", out, a, b)

	merged, err := book.Read(out)
	require.NoError(t, err)
	assert.Equal(t, 2, merged.EntryCount())
	require.NoError(t, merged.Close())

	run(t, cfg, "prune", "--min", "5", out)
	pruned, err := book.Read(out)
	require.NoError(t, err)
	defer pruned.Close()
	moves := pruned.PositionMoves(chess.StartingPosition())
	require.Len(t, moves, 1)
	assert.Equal(t, "e2e4", moves[0].UCI)
}

func TestArchiveRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	run(t, cfg, "add", "--move", "c2c4", "--weight", "3")
	run(t, cfg, "export-db", "--name", "english")

	out := run(t, cfg, "books")
	assert.Contains(t, out, "english")

	restored := filepath.Join(cfg.DataDir, "restored.bin")
	run(t, cfg, "import-db", "--name", "english", "-o", restored)
	b, err := book.Read(restored)
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, 1, b.EntryCount())
}

func TestDumpNegativeFrom(t *testing.T) {
	cfg := testConfig(t)
	run(t, cfg, "add", "--move", "e2e4")
	run(t, cfg, "add", "--move", "d2d4")

	out := run(t, cfg, "dump", "--from", "-1")
	assert.Contains(t, out, "d2d4")
	assert.NotContains(t, out, "e2e4")
}

func TestDumpOutOfRange(t *testing.T) {
	cfg := testConfig(t)
	run(t, cfg, "add", "--move", "e2e4")
	run(t, cfg, "add", "--move", "d2d4")

	for _, from := range []string{"2", "5", "-3"} {
		t.Run(from, func(t *testing.T) {
			_, err := runErr(cfg, "dump", "--from", from)
			assert.ErrorIs(t, err, book.ErrIndexOutOfRange)
		})
	}
}

func TestDumpEmptyBook(t *testing.T) {
	cfg := testConfig(t)
	out := run(t, cfg, "dump")
	assert.Contains(t, out, "index")

	_, err := runErr(cfg, "dump", "--from", "1")
	assert.ErrorIs(t, err, book.ErrIndexOutOfRange)
}

func TestAddRejectsOversizedFields(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"weight", []string{"--weight", "65536"}},
		{"learn", []string{"--learn", "4294967296"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			args := append([]string{"add", "--move", "e2e4"}, tt.args...)
			_, err := runErr(cfg, args...)
			require.Error(t, err)

			_, statErr := os.Stat(cfg.BookPath)
			assert.True(t, errors.Is(statErr, os.ErrNotExist))
		})
	}
}

func TestSaveCompressedFailureKeepsDestination(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(cfg.DataDir, "book.bin.zst")
	run(t, cfg, "add", "--move", "e2e4", "--weight", "10", path)
	want, err := os.ReadFile(path)
	require.NoError(t, err)

	orig := newZstdWriter
	newZstdWriter = func(io.Writer) (*zstd.Encoder, error) {
		return nil, errors.New("encoder unavailable")
	}
	t.Cleanup(func() { newZstdWriter = orig })

	e := &env{cfg: cfg, log: zerolog.Nop()}
	b, err := e.loadBook(path)
	require.NoError(t, err)
	b.AddEntry(1, 12, 28, book.NoPiece, false, 1, 0)
	require.Error(t, e.saveBook(b, path))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	names, err := os.ReadDir(cfg.DataDir)
	require.NoError(t, err)
	assert.Len(t, names, 1)
}

func TestSaveCompressedKeepsPermissions(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(cfg.DataDir, "book.bin.zst")
	run(t, cfg, "add", "--move", "e2e4", path)
	require.NoError(t, os.Chmod(path, 0o600))

	run(t, cfg, "add", "--move", "d2d4", path)
	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), st.Mode().Perm())

	e := &env{cfg: cfg, log: zerolog.Nop()}
	b, err := e.loadBook(path)
	require.NoError(t, err)
	assert.Equal(t, 2, b.EntryCount())
}
