package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("POLYBOOK_DATA_DIR", "")
	t.Setenv("POLYBOOK_BOOK_PATH", "")
	t.Setenv("POLYBOOK_DB_PATH", "")
	t.Setenv("POLYBOOK_LOG_LEVEL", "")

	cfg := FromEnv()
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, filepath.Join("./data", "book.bin"), cfg.BookPath)
	assert.Equal(t, filepath.Join("./data", "books.sqlite"), cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("POLYBOOK_DATA_DIR", "/srv/books")
	t.Setenv("POLYBOOK_BOOK_PATH", "")
	t.Setenv("POLYBOOK_DB_PATH", "/tmp/x.sqlite")
	t.Setenv("POLYBOOK_LOG_LEVEL", "debug")

	cfg := FromEnv()
	assert.Equal(t, "/srv/books/book.bin", cfg.BookPath)
	assert.Equal(t, "/tmp/x.sqlite", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
}
