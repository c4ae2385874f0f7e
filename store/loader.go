package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/darianmavgo/hotelload/converters/common"
	"github.com/darianmavgo/hotelload/entity"
)

// DefaultBatchSize is the number of rows inserted before a commit.
const DefaultBatchSize = 1000

// Loader writes validated records into the destination in two phases:
// Load inserts rows with their source identities, Finish promotes the
// identity to a key and reconciles the table's sequence.
type Loader struct {
	DB        *sql.DB
	Dialect   Dialect
	BatchSize int
	Verbose   bool
}

// Load inserts recs in order, committing every BatchSize rows. It returns the
// number of committed rows. When an insert fails, every row before it stays
// committed: the failed batch is rolled back and its leading rows are
// written again in a fresh transaction.
func (l *Loader) Load(ctx context.Context, d *entity.Descriptor, recs []entity.Record) (int, error) {
	batch := l.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	insertSQL := GenInsertSQL(l.Dialect, d)

	committed := 0
	for start := 0; start < len(recs); start += batch {
		end := min(start+batch, len(recs))
		failedAt, err := l.insertBatch(ctx, d, insertSQL, recs[start:end])
		if err != nil {
			if failedAt > 0 {
				if _, replayErr := l.insertBatch(ctx, d, insertSQL, recs[start:start+failedAt]); replayErr != nil {
					log.Printf("[HOTELLOAD] Failed to keep rows before the failure in %s: %v", d.Table, replayErr)
				} else {
					committed += failedAt
				}
			}
			return committed, err
		}
		committed += end - start
		if l.Verbose {
			log.Printf("[HOTELLOAD] Committed %d/%d rows into %s", committed, len(recs), d.Table)
		}
	}
	return committed, nil
}

// insertBatch writes recs in one transaction. On an insert failure it rolls
// back and returns the index of the failing record.
func (l *Loader) insertBatch(ctx context.Context, d *entity.Descriptor, insertSQL string, recs []entity.Record) (int, error) {
	tx, err := l.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("failed to prepare insert statement for table %s: %w", d.Table, err)
	}

	args := make([]any, len(d.Fields))
	for i, rec := range recs {
		for j, f := range d.Fields {
			args[j] = l.Dialect.Bind(rec.Values[f.Name])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			stmt.Close()
			tx.Rollback()
			return i, fmt.Errorf("failed to insert into %s %s=%v (line %d): %w%s",
				d.Table, d.Identity, rec.Values[d.Identity], rec.Line, err, pgDetailSuffix(err))
		}
	}

	stmt.Close()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction for table %s: %w", d.Table, err)
	}
	return len(recs), nil
}

// Finish promotes the identity column to the table's key and resets the
// sequence. It returns the next identity the sequence will hand out.
func (l *Loader) Finish(ctx context.Context, d *entity.Descriptor) (int64, error) {
	if err := l.Dialect.PromoteIdentity(ctx, l.DB, d); err != nil {
		return 0, err
	}
	return l.ResetSequence(ctx, d)
}

// ResetSequence sets the sequence so the next identity is max(identity)+1.
func (l *Loader) ResetSequence(ctx context.Context, d *entity.Descriptor) (int64, error) {
	next, err := l.Dialect.ResetSequence(ctx, l.DB, d)
	if err != nil {
		return 0, err
	}
	if l.Verbose {
		log.Printf("[HOTELLOAD] Sequence for %s.%s now at %d", d.Table, d.Identity, next)
	}
	return next, nil
}

// Count returns the number of rows in d's table.
func (l *Loader) Count(ctx context.Context, d *entity.Descriptor) (int, error) {
	var n int
	query := "SELECT COUNT(*) FROM " + l.Dialect.Quote(d.Table)
	if err := l.DB.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", d.Table, err)
	}
	return n, nil
}

// Fetch reads d's table back through the load projection and decodes every
// row into a record, ordered by identity.
func (l *Loader) Fetch(ctx context.Context, d *entity.Descriptor) ([]entity.Record, error) {
	rows, err := l.DB.QueryContext(ctx, GenSelectSQL(l.Dialect, d))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", d.Table, err)
	}
	defer rows.Close()

	values := make([]any, len(d.Fields))
	ptrs := make([]any, len(d.Fields))
	for i := range values {
		ptrs[i] = &values[i]
	}

	var recs []entity.Record
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", d.Table, err)
		}
		fields := make(common.FieldMap, len(d.Fields))
		for i, f := range d.Fields {
			if b, ok := values[i].([]byte); ok {
				fields[f.Name] = string(b)
			} else {
				fields[f.Name] = values[i]
			}
		}
		rec, err := entity.Decode(d, common.Row{Line: len(recs) + 1, Fields: fields}, entity.CoerceReject)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
