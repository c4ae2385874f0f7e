// Package store owns the destination side: the session, the per-driver SQL
// dialect, the schema initializer and the two-phase loader.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/darianmavgo/hotelload/entity"
)

// ErrConstraint marks a failure to enable a key or foreign-key constraint.
var ErrConstraint = errors.New("constraint failure")

// Dialect hides the differences between destination databases.
type Dialect interface {
	Name() string
	// DriverName is the database/sql driver to open.
	DriverName() string
	// Placeholder returns the bind marker for the n-th (1-based) argument.
	Placeholder(n int) string
	Quote(ident string) string
	// ColumnType returns the column definition for a field.
	ColumnType(f entity.Field, identity bool) string
	// Bind converts a record value to a driver argument.
	Bind(v any) any

	// PromoteIdentity makes the identity column the table's key. Idempotent.
	PromoteIdentity(ctx context.Context, db *sql.DB, d *entity.Descriptor) error
	// ResetSequence sets the table's counter so the next generated identity
	// is max(identity)+1, and returns that value. Idempotent.
	ResetSequence(ctx context.Context, db *sql.DB, d *entity.Descriptor) (int64, error)
	// AddForeignKey enables one foreign key. Idempotent.
	AddForeignKey(ctx context.Context, db *sql.DB, d *entity.Descriptor, fk entity.ForeignKey) error
}

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, error) {
	switch name {
	case "postgres", "postgresql", "pgx":
		return Postgres{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", name)
}

// Open opens the single session used for a whole run and verifies it.
// The pool is limited to one connection: nothing in a run is concurrent.
func Open(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach %s database: %w", dialect.Name(), err)
	}
	return db, nil
}

func constraintName(table string, parts ...string) string {
	name := table
	for _, p := range parts {
		name += "_" + p
	}
	return name
}
