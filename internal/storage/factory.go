package storage

import "fmt"

// NewStore builds a backend by kind. path is the database file for sqlite
// and the data directory for file; opts apply to the file backend only.
func NewStore(kind, path string, opts ...FileStoreOption) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(path)
	case "file":
		if path == "" {
			return nil, fmt.Errorf("file store requires a data directory")
		}
		return NewFileStore(path, opts...), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
