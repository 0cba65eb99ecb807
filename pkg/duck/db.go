// Package duck wraps the DuckDB driver behind small DB/Connection interfaces
// so the warehouse code can be exercised against a temp-dir database in tests.
package duck

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/duckdb/duckdb-go/v2"
)

type DB interface {
	Catalog() string
	Schema() string
	Close() error
	Conn(ctx context.Context) (Connection, error)
}

type Connection interface {
	DB() DB
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	Close() error
}

type warehouseDB struct {
	log     *slog.Logger
	path    string
	db      *sql.DB
	catalog string
	schema  string
}

type warehouseConn struct {
	conn    *sql.Conn
	db      *warehouseDB
	writeMu sync.Mutex // serializes all write operations
}

// NewDB opens (creating if necessary) a file-backed DuckDB database at path.
// Pass an empty path for an in-memory database.
func NewDB(ctx context.Context, path string, log *slog.Logger) (DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	row := db.QueryRowContext(ctx, "SELECT current_database() AS catalog, current_schema() AS schema")
	var catalog, schema string
	if err := row.Scan(&catalog, &schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to get current database and schema: %w", err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("USE %s", catalog)); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to use database: %w", err)
	}

	return &warehouseDB{
		log:     log,
		path:    path,
		db:      db,
		catalog: catalog,
		schema:  schema,
	}, nil
}

func (d *warehouseDB) Conn(ctx context.Context) (Connection, error) {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}

	if _, err := conn.ExecContext(ctx, "USE "+d.catalog); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to use database: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "SET schema = "+d.schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set schema: %w", err)
	}

	return &warehouseConn{
		conn: conn,
		db:   d,
	}, nil
}

func (d *warehouseDB) Catalog() string {
	return d.catalog
}

func (d *warehouseDB) Schema() string {
	return d.schema
}

func (d *warehouseDB) Close() error {
	return d.db.Close()
}

func (c *warehouseConn) DB() DB {
	return c.db
}

func (c *warehouseConn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.conn.ExecContext(ctx, query, args...)
}

func (c *warehouseConn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.conn.QueryContext(ctx, query, args...)
}

func (c *warehouseConn) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return c.conn.QueryRowContext(ctx, query, args...)
}

func (c *warehouseConn) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return c.conn.BeginTx(ctx, opts)
}

func (c *warehouseConn) Close() error {
	return c.conn.Close()
}
