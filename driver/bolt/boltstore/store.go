// Package boltstore provides a [store.Store] implementation that persists
// tables in Bolt database files.
//
// Each schema maps to one database file named <schema>.db within the store's
// directory, and each table to one bucket within that file.
package boltstore

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/skinsch/dbproxy/store"
	"go.etcd.io/bbolt"
)

// Store is an implementation of [store.Store] backed by Bolt database files.
type Store struct {
	// Dir is the directory in which database files are created.
	Dir string

	m   sync.Mutex
	dbs map[string]*bbolt.DB
}

// New returns a store that keeps its database files in the given directory.
func New(dir string) *Store {
	return &Store{Dir: dir}
}

// Open returns the table with the given name within the given schema,
// creating the database file and bucket if necessary.
func (s *Store) Open(ctx context.Context, schema, table string) (store.Table, error) {
	db, err := s.db(schema)
	if err != nil {
		return nil, err
	}

	bucket := []byte(table)

	if err := db.Update(
		func(tx *bbolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(bucket)
			return err
		},
	); err != nil {
		return nil, err
	}

	return &handle{
		db:     db,
		schema: schema,
		name:   table,
		bucket: bucket,
	}, ctx.Err()
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

func (s *Store) db(schema string) (*bbolt.DB, error) {
	s.m.Lock()
	defer s.m.Unlock()

	if db, ok := s.dbs[schema]; ok {
		return db, nil
	}

	db, err := bbolt.Open(
		filepath.Join(s.Dir, schema+".db"),
		0o600,
		nil,
	)
	if err != nil {
		return nil, err
	}

	if s.dbs == nil {
		s.dbs = map[string]*bbolt.DB{}
	}
	s.dbs[schema] = db

	return db, nil
}
