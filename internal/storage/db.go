package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"couple-diary/internal/storage/migrations"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	// Register the pgx database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

var (
	// ErrNotFound is returned when a query matches no row.
	ErrNotFound = errors.New("storage: not found")
	// ErrDuplicate is returned when an insert violates a unique constraint.
	ErrDuplicate = errors.New("storage: duplicate")
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Queries runs statements against either the pool or an open transaction.
// Statements are written with '?' placeholders and rebound per driver.
type Queries struct {
	q sqlx.ExtContext
}

// DB wraps a sqlx connection pool.
type DB struct {
	*Queries
	conn   *sqlx.DB
	driver string
}

// NewDB opens a SQLite database at path and runs migrations.
func NewDB(path string) (*DB, error) {
	return Open(context.Background(), DriverSQLite, path)
}

// Open opens a database connection for the given driver and runs migrations.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite {
		// An in-memory database lives on a single connection, and SQLite
		// serialises writers anyway.
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	if driver == DriverSQLite {
		// busy_timeout lets the CLIs write while the server holds the file.
		for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
			if _, err := conn.ExecContext(ctx, pragma); err != nil {
				conn.Close()
				return nil, err
			}
		}
	}

	db := &DB{Queries: &Queries{q: conn}, conn: conn, driver: driver}
	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

func (db *DB) migrate(ctx context.Context) error {
	dialect, dir := goose.DialectSQLite3, "sqlite"
	if db.driver == DriverPostgres {
		dialect, dir = goose.DialectPostgres, "postgres"
	}

	fsys, err := fs.Sub(migrations.FS, dir)
	if err != nil {
		return err
	}

	provider, err := goose.NewProvider(dialect, db.conn.DB, fsys)
	if err != nil {
		return err
	}
	_, err = provider.Up(ctx)
	return err
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// WithTx runs fn inside a transaction. It commits when fn returns nil and
// rolls back on error or panic; panics are re-raised.
func (db *DB) WithTx(ctx context.Context, fn func(q *Queries) error) (err error) {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(&Queries{q: tx})
	return err
}

func (q *Queries) get(ctx context.Context, dest any, query string, args ...any) error {
	err := sqlx.GetContext(ctx, q.q, dest, q.q.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (q *Queries) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, q.q, dest, q.q.Rebind(query), args...)
}

func (q *Queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.q.ExecContext(ctx, q.q.Rebind(query), args...)
}

// insert runs an INSERT ... RETURNING id statement.
func (q *Queries) insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	err := q.q.QueryRowxContext(ctx, q.q.Rebind(query), args...).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
		return 0, err
	}
	return id, nil
}

// execOne runs a statement that must touch exactly one row.
func (q *Queries) execOne(ctx context.Context, query string, args ...any) error {
	res, err := q.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
			strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
	}
	return false
}
