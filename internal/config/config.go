package config

import (
	"os"
	"path/filepath"
)

type Config struct {
	DataDir  string
	BookPath string
	DBPath   string
	LogLevel string
}

func FromEnv() Config {
	dataDir := getenv("POLYBOOK_DATA_DIR", "./data")
	bookPath := getenv("POLYBOOK_BOOK_PATH", filepath.Join(dataDir, "book.bin"))
	dbPath := getenv("POLYBOOK_DB_PATH", filepath.Join(dataDir, "books.sqlite"))
	logLevel := getenv("POLYBOOK_LOG_LEVEL", "info")

	return Config{
		DataDir:  dataDir,
		BookPath: bookPath,
		DBPath:   dbPath,
		LogLevel: logLevel,
	}
}

func getenv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
