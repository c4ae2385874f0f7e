package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-sql/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/darianmavgo/hotelload/entity"
)

// Postgres targets PostgreSQL through pgx. Identity columns are SERIAL so the
// server owns a sequence that ResetSequence can move.
type Postgres struct{}

func (Postgres) Name() string       { return "postgres" }
func (Postgres) DriverName() string { return "pgx" }

func (Postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (Postgres) Quote(ident string) string { return pgx.Identifier{ident}.Sanitize() }

func (Postgres) ColumnType(f entity.Field, identity bool) string {
	if identity {
		return "SERIAL"
	}
	switch f.Kind {
	case entity.Int:
		return "INTEGER NOT NULL"
	case entity.Float:
		return "DOUBLE PRECISION NOT NULL"
	case entity.Bool:
		return "BOOLEAN NOT NULL"
	case entity.Date:
		return "DATE NOT NULL"
	}
	return "TEXT NOT NULL"
}

func (Postgres) Bind(v any) any {
	if d, ok := v.(civil.Date); ok {
		return d.In(time.UTC)
	}
	return v
}

// countConstraints counts constraints on table matching the given name or,
// when kind is non-empty, the given constraint type.
func (p Postgres) countConstraints(ctx context.Context, db *sql.DB, table, name, kind string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `
SELECT COUNT(*)
FROM information_schema.table_constraints
WHERE table_schema = current_schema()
  AND table_name = $1
  AND (constraint_name = $2 OR constraint_type = $3)`,
		table, name, kind).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect constraints on %s: %w", table, err)
	}
	return n, nil
}

func (p Postgres) PromoteIdentity(ctx context.Context, db *sql.DB, d *entity.Descriptor) error {
	name := constraintName(d.Table, "pkey")
	n, err := p.countConstraints(ctx, db, d.Table, name, "PRIMARY KEY")
	if err != nil || n > 0 {
		return err
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s PRIMARY KEY (%s)",
		p.Quote(d.Table), p.Quote(name), p.Quote(d.Identity))
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("%w: primary key on %s.%s: %s", ErrConstraint, d.Table, d.Identity, pgDetail(err))
	}
	return nil
}

func (p Postgres) ResetSequence(ctx context.Context, db *sql.DB, d *entity.Descriptor) (int64, error) {
	// is_called=false makes the next nextval() return exactly this value.
	query := fmt.Sprintf(
		"SELECT setval(pg_get_serial_sequence($1, $2), COALESCE((SELECT MAX(%s) FROM %s), 0) + 1, false)",
		p.Quote(d.Identity), p.Quote(d.Table))
	var next int64
	if err := db.QueryRowContext(ctx, query, d.Table, d.Identity).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to reset sequence for %s.%s: %s", d.Table, d.Identity, pgDetail(err))
	}
	return next, nil
}

func (p Postgres) AddForeignKey(ctx context.Context, db *sql.DB, d *entity.Descriptor, fk entity.ForeignKey) error {
	name := constraintName(d.Table, fk.Column, "fkey")
	n, err := p.countConstraints(ctx, db, d.Table, name, "")
	if err != nil || n > 0 {
		return err
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		p.Quote(d.Table), p.Quote(name), p.Quote(fk.Column), p.Quote(fk.RefTable), p.Quote(fk.RefColumn))
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("%w: %s.%s -> %s.%s: %s", ErrConstraint, d.Table, fk.Column, fk.RefTable, fk.RefColumn, pgDetail(err))
	}
	return nil
}

// pgDetail surfaces the server's detail and SQLSTATE when the error came from Postgres.
func pgDetail(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Detail != "" {
			return fmt.Sprintf("%s: %s (%s)", pgErr.Message, pgErr.Detail, pgErr.SQLState())
		}
		return fmt.Sprintf("%s (%s)", pgErr.Message, pgErr.SQLState())
	}
	return err.Error()
}

// pgDetailSuffix returns the server's DETAIL line, if any, for appending to a
// wrapped error.
func pgDetailSuffix(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return " (" + pgErr.Detail + ")"
	}
	return ""
}
