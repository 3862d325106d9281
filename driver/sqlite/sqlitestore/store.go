// Package sqlitestore provides a [store.Store] implementation that persists
// tables in SQLite database files.
//
// Each schema maps to one database file named <schema>.sqlite3 within the
// store's directory, and each table to one SQL table within that file.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/skinsch/dbproxy/store"
)

// Store is an implementation of [store.Store] backed by SQLite database
// files.
type Store struct {
	// Dir is the directory in which database files are created.
	Dir string

	m   sync.Mutex
	dbs map[string]*sql.DB
}

// New returns a store that keeps its database files in the given directory.
func New(dir string) *Store {
	return &Store{Dir: dir}
}

// Open returns the table with the given name within the given schema,
// creating the database file and table if necessary.
func (s *Store) Open(ctx context.Context, schema, table string) (store.Table, error) {
	db, err := s.db(schema)
	if err != nil {
		return nil, err
	}

	ident := quoteIdent(table)

	if _, err := db.ExecContext(
		ctx,
		fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s (
				key   BLOB NOT NULL PRIMARY KEY,
				value BLOB NOT NULL
			)`,
			ident,
		),
	); err != nil {
		return nil, fmt.Errorf("unable to create table: %w", err)
	}

	return &handle{
		db:     db,
		schema: schema,
		name:   table,
		ident:  ident,
	}, nil
}

// Close closes every database file that the store has opened.
func (s *Store) Close() error {
	s.m.Lock()
	defer s.m.Unlock()

	var failed error
	for _, db := range s.dbs {
		if err := db.Close(); err != nil && failed == nil {
			failed = err
		}
	}

	s.dbs = nil

	return failed
}

func (s *Store) db(schema string) (*sql.DB, error) {
	s.m.Lock()
	defer s.m.Unlock()

	if db, ok := s.dbs[schema]; ok {
		return db, nil
	}

	db, err := sql.Open(
		"sqlite3",
		"file:"+filepath.Join(s.Dir, schema+".sqlite3")+"?_busy_timeout=10000",
	)
	if err != nil {
		return nil, err
	}

	// SQLite allows a single writer; funneling all statements through one
	// connection avoids SQLITE_BUSY contention between pooled connections.
	db.SetMaxOpenConns(1)

	if s.dbs == nil {
		s.dbs = map[string]*sql.DB{}
	}
	s.dbs[schema] = db

	return db, nil
}

// quoteIdent quotes an arbitrary string for use as an SQL identifier.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
