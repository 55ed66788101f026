// Package store is the local conversation store: a SQLite-backed index of
// conversations and their messages, the source of truth for offline reads.
// Derived conversation fields (counts, latest message) are recomputed inside
// the same transaction as the mutation that invalidates them.
package store

import (
	"database/sql"
	"errors"

	_ "github.com/mattn/go-sqlite3"

	"github.com/driftline/chatkit/chat"
)

// DB wraps the SQLite connection for the client-owned chatkit.db.
type DB struct {
	*sql.DB
	// sortByServerTime selects which timestamp orders messages; see
	// chat.Message.CompareTime.
	sortByServerTime bool
	// selfUserID identifies the local user, for reaction AddedBySelf
	// bookkeeping.
	selfUserID string
}

// Options configure store behavior at open time.
type Options struct {
	SortByServerTime bool
	SelfUserID       string
}

// Open creates a new SQLite connection with WAL mode and recommended pragmas.
func Open(path string, opts Options) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, chat.WrapErr(chat.KindStorage, "store.open", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, chat.WrapErr(chat.KindStorage, "store.open", err)
	}
	return &DB{DB: db, sortByServerTime: opts.SortByServerTime, selfUserID: opts.SelfUserID}, nil
}

func (db *DB) compareTime(m *chat.Message) int64 {
	return m.CompareTime(db.sortByServerTime)
}

// storageErr wraps a database error into the taxonomy; sql.ErrNoRows maps
// to NotFound.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return chat.WrapErr(chat.KindNotFound, op, err)
	}
	return chat.WrapErr(chat.KindStorage, op, err)
}
