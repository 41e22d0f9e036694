package config

import (
	"sync"
)

var (
	historyOnce   sync.Once
	historyConfig *HistoryConfig
)

type HistoryConfig struct {
	// Path of the SQLite database file, ":memory:" for a throwaway store.
	Path string
	// CacheBackend selects the timestamp cache: "redis" or "badger".
	CacheBackend string
	// BadgerDir holds the embedded cache when CacheBackend is "badger".
	BadgerDir string
}

func GetHistoryConfig() *HistoryConfig {
	historyOnce.Do(func() {
		loadEnv()
		historyConfig = &HistoryConfig{
			Path:         getEnv("HISTORY_DB_PATH", "data/history.db"),
			CacheBackend: getEnv("CACHE_BACKEND", "redis"),
			BadgerDir:    getEnv("BADGER_DIR", "data/cache"),
		}
	})
	return historyConfig
}
