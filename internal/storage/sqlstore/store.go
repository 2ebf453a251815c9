// Package sqlstore implements storage.Provider queries on database/sql.
// The sqlite and postgres backends share it and differ only in how they
// open the database and in placeholder style.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/julianstephens/studyroom/internal/storage"
)

// Dialect is the bind variable style of a driver.
type Dialect int

const (
	Question Dialect = iota // ?
	Dollar                  // $1, $2, ...
)

// Rebind rewrites ? placeholders into the dialect's style.
func (d Dialect) Rebind(query string) string {
	if d != Dollar {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn carries every query so the same code runs on *sql.DB and *sql.Tx.
type conn struct {
	q       queryer
	dialect Dialect
}

func (c conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.q.ExecContext(ctx, c.dialect.Rebind(query), args...)
}

func (c conn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.q.QueryContext(ctx, c.dialect.Rebind(query), args...)
}

func (c conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, c.dialect.Rebind(query), args...)
}

// DB is the shared query layer over an open database.
type DB struct {
	conn
	db *sql.DB
}

func New(db *sql.DB, dialect Dialect) *DB {
	return &DB{conn: conn{q: db, dialect: dialect}, db: db}
}

// SQL returns the underlying database handle.
func (s *DB) SQL() *sql.DB {
	return s.db
}

func (s *DB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type tx struct {
	conn
}

func (s *DB) WithTx(ctx context.Context, fn func(storage.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(&tx{conn{q: sqlTx, dialect: s.dialect}}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *DB) inTx(ctx context.Context, fn func(c conn) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(conn{q: sqlTx, dialect: s.dialect}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, storage.ErrNotFound)
	}
	return err
}

func mustAffect(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, storage.ErrNoRowsAffected)
	}
	return nil
}
