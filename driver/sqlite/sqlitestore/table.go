package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/skinsch/dbproxy/store"
)

// handle is an implementation of [store.Table] backed by a single SQL table.
type handle struct {
	db     *sql.DB
	schema string
	name   string
	ident  string
}

func (h *handle) Schema() string {
	return h.schema
}

func (h *handle) Name() string {
	return h.name
}

func (h *handle) Get(ctx context.Context, k []byte) ([]byte, bool, error) {
	row := h.db.QueryRowContext(
		ctx,
		fmt.Sprintf(
			`SELECT value
			FROM %s
			WHERE key = ?`,
			h.ident,
		),
		k,
	)

	var v []byte
	err := row.Scan(&v)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if v == nil {
		v = []byte{}
	}

	return v, true, nil
}

func (h *handle) Has(ctx context.Context, k []byte) (bool, error) {
	row := h.db.QueryRowContext(
		ctx,
		fmt.Sprintf(
			`SELECT COUNT(key) != 0
			FROM %s
			WHERE key = ?`,
			h.ident,
		),
		k,
	)

	var ok bool
	err := row.Scan(&ok)

	return ok, err
}

func (h *handle) Set(ctx context.Context, k, v []byte) error {
	if v == nil {
		v = []byte{}
	}

	_, err := h.db.ExecContext(
		ctx,
		fmt.Sprintf(
			`INSERT INTO %s (key, value)
			VALUES (?, ?)
			ON CONFLICT (key) DO UPDATE
			SET value = excluded.value`,
			h.ident,
		),
		k,
		v,
	)

	return err
}

func (h *handle) Delete(ctx context.Context, k []byte) (bool, error) {
	res, err := h.db.ExecContext(
		ctx,
		fmt.Sprintf(
			`DELETE FROM %s
			WHERE key = ?`,
			h.ident,
		),
		k,
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n != 0, nil
}

func (h *handle) Len(ctx context.Context) (int, error) {
	row := h.db.QueryRowContext(
		ctx,
		fmt.Sprintf(
			`SELECT COUNT(*)
			FROM %s`,
			h.ident,
		),
	)

	var n int
	err := row.Scan(&n)

	return n, err
}

func (h *handle) Range(ctx context.Context, fn store.RangeFunc) error {
	// Collect the result set before invoking fn so that fn may write to the
	// table without contending with the open cursor.
	rows, err := h.db.QueryContext(
		ctx,
		fmt.Sprintf(
			`SELECT key, value
			FROM %s
			ORDER BY rowid`,
			h.ident,
		),
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	var pairs []store.Pair
	for rows.Next() {
		var p store.Pair
		if err := rows.Scan(&p.Key, &p.Value); err != nil {
			return err
		}
		if p.Value == nil {
			p.Value = []byte{}
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if err := rows.Close(); err != nil {
		return err
	}

	for _, p := range pairs {
		ok, err := fn(ctx, p.Key, p.Value)
		if !ok || err != nil {
			return err
		}
	}

	return nil
}

func (h *handle) Close() error {
	// The database file is owned by the store, which may have other handles
	// open against it.
	return nil
}
