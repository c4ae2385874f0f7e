package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/darianmavgo/hotelload/entity"
)

// InitSchema creates every table that does not exist yet. Identity columns
// are created without a key; Loader.Finish promotes them after the load.
func InitSchema(ctx context.Context, db *sql.DB, dialect Dialect, ds []*entity.Descriptor, verbose bool) error {
	for _, d := range ds {
		stmt := GenCreateTableSQL(dialect, d)
		if verbose {
			log.Printf("[HOTELLOAD] Ensuring table %s", d.Table)
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table %s: %w", d.Table, err)
		}
	}
	return nil
}

// ApplyForeignKeys enables every declared foreign key once all tables are loaded.
func ApplyForeignKeys(ctx context.Context, db *sql.DB, dialect Dialect, ds []*entity.Descriptor) error {
	for _, d := range ds {
		for _, fk := range d.ForeignKeys {
			if err := dialect.AddForeignKey(ctx, db, d, fk); err != nil {
				return err
			}
		}
	}
	return nil
}
