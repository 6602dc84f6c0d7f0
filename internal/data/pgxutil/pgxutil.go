// Package pgxutil bridges database/sql pools to native pgx connections.
//
// Repositories hold a *sql.DB because the pool is shared with the migration
// runner and the test helpers, but their statements run through pgx for
// CollectRows-style scanning. WithPgxConn unwraps the pooled driver
// connection so both worlds share one pool.
package pgxutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// WithPgxConn checks a connection out of the pool, unwraps the underlying
// *pgx.Conn, and runs fn with it. The connection goes back to the pool when
// fn returns, so fn must not retain it.
func WithPgxConn(ctx context.Context, db *sql.DB, fn func(*pgx.Conn) error) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer func() {
		// Close returns the connection to the pool; nothing to do on failure.
		_ = conn.Close()
	}()

	return conn.Raw(func(dc any) error {
		std, ok := dc.(*stdlib.Conn)
		if !ok {
			return errors.New("unexpected driver connection type; expected *stdlib.Conn")
		}
		return fn(std.Conn())
	})
}
