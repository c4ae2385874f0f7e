package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/golang-sql/civil"
	_ "modernc.org/sqlite"

	"github.com/darianmavgo/hotelload/entity"
)

// sequenceTable holds the emulated per-table counters. SQLite has no
// sequences that can be attached to an existing column.
const sequenceTable = "hotelload_sequences"

// SQLite targets a local database file through modernc. SQLite cannot add
// keys to an existing table, so the primary key becomes a unique index and
// foreign keys are enforced by an orphan check.
type SQLite struct{}

func (SQLite) Name() string       { return "sqlite" }
func (SQLite) DriverName() string { return "sqlite" }

func (SQLite) Placeholder(int) string { return "?" }

func (SQLite) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (SQLite) ColumnType(f entity.Field, identity bool) string {
	switch f.Kind {
	case entity.Int:
		return "INTEGER NOT NULL"
	case entity.Float:
		return "REAL NOT NULL"
	case entity.Bool:
		return "BOOLEAN NOT NULL"
	case entity.Date:
		return "DATE NOT NULL"
	}
	return "TEXT NOT NULL"
}

func (SQLite) Bind(v any) any {
	switch t := v.(type) {
	case civil.Date:
		return t.String()
	case bool:
		if t {
			return int64(1)
		}
		return int64(0)
	}
	return v
}

func (s SQLite) PromoteIdentity(ctx context.Context, db *sql.DB, d *entity.Descriptor) error {
	stmt := fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)",
		s.Quote(constraintName(d.Table, "pkey")), s.Quote(d.Table), s.Quote(d.Identity))
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("%w: primary key on %s.%s: %v", ErrConstraint, d.Table, d.Identity, err)
	}
	return nil
}

func (s SQLite) ResetSequence(ctx context.Context, db *sql.DB, d *entity.Descriptor) (int64, error) {
	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (table_name TEXT PRIMARY KEY, next_value INTEGER NOT NULL)",
		s.Quote(sequenceTable))
	if _, err := db.ExecContext(ctx, create); err != nil {
		return 0, fmt.Errorf("failed to create sequence table: %w", err)
	}

	// WHERE true disambiguates the upsert clause from a join in INSERT ... SELECT.
	upsert := fmt.Sprintf(`INSERT INTO %s (table_name, next_value)
SELECT ?, COALESCE(MAX(%s), 0) + 1 FROM %s WHERE true
ON CONFLICT(table_name) DO UPDATE SET next_value = excluded.next_value`,
		s.Quote(sequenceTable), s.Quote(d.Identity), s.Quote(d.Table))
	if _, err := db.ExecContext(ctx, upsert, d.Table); err != nil {
		return 0, fmt.Errorf("failed to reset sequence for %s.%s: %w", d.Table, d.Identity, err)
	}

	var next int64
	query := fmt.Sprintf("SELECT next_value FROM %s WHERE table_name = ?", s.Quote(sequenceTable))
	if err := db.QueryRowContext(ctx, query, d.Table).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to read sequence for %s: %w", d.Table, err)
	}
	return next, nil
}

func (s SQLite) AddForeignKey(ctx context.Context, db *sql.DB, d *entity.Descriptor, fk entity.ForeignKey) error {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s c
WHERE NOT EXISTS (SELECT 1 FROM %s p WHERE p.%s = c.%s)`,
		s.Quote(d.Table), s.Quote(fk.RefTable), s.Quote(fk.RefColumn), s.Quote(fk.Column))
	var orphans int
	if err := db.QueryRowContext(ctx, query).Scan(&orphans); err != nil {
		return fmt.Errorf("failed to check %s.%s: %w", d.Table, fk.Column, err)
	}
	if orphans > 0 {
		return fmt.Errorf("%w: %s.%s -> %s.%s: %d rows reference missing keys",
			ErrConstraint, d.Table, fk.Column, fk.RefTable, fk.RefColumn, orphans)
	}
	return nil
}
