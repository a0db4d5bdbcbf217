//go:build !sqlite

package storage

import "errors"

// ErrSQLiteUnavailable is returned for the sqlite backend in builds without
// the sqlite tag.
var ErrSQLiteUnavailable = errors.New("sqlite store not compiled in (build with -tags sqlite)")

func newSQLiteStore(string) (Store, error) {
	return nil, ErrSQLiteUnavailable
}
