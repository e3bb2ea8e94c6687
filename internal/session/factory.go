package session

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// Open creates the Store selected by backend. path is the Badger directory or
// the directory holding the SQLite file; it is ignored for memory.
func Open(backend, path string, ttl time.Duration, logger *slog.Logger) (Store, error) {
	switch backend {
	case BackendMemory, "":
		logger.Info("session store opened", "backend", BackendMemory)
		return NewMemoryStore(ttl, nil), nil
	case BackendBadger:
		s, err := OpenBadgerStore(path, ttl)
		if err != nil {
			return nil, err
		}
		logger.Info("session store opened", "backend", backend, "path", path)
		return s, nil
	case BackendSQLite:
		file := filepath.Join(path, "sessions.db")
		s, err := OpenSQLiteStore(file, ttl, nil)
		if err != nil {
			return nil, err
		}
		logger.Info("session store opened", "backend", backend, "path", file)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", backend)
	}
}
