// Package pipeline runs the nine table loads in dependency order against one
// destination session and reports what happened to each table.
package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/darianmavgo/hotelload/config"
	"github.com/darianmavgo/hotelload/entity"
	"github.com/darianmavgo/hotelload/store"
)

// Runner owns one run. DB is shared by every table and is not closed here.
type Runner struct {
	DB      *sql.DB
	Dialect store.Dialect
	Config  *config.Config
	Catalog []*entity.Descriptor
}

// New builds a runner over the full catalog.
func New(db *sql.DB, dialect store.Dialect, cfg *config.Config) (*Runner, error) {
	catalog := entity.Catalog(entity.Options{ChainMinID: cfg.ChainMinID})
	if err := entity.VerifyOrder(catalog); err != nil {
		return nil, err
	}
	return &Runner{DB: db, Dialect: dialect, Config: cfg, Catalog: catalog}, nil
}

// Run initialises the schema, loads every table in catalog order and applies
// foreign keys. The report is returned even when the run fails; tables that
// finished before the failure stay committed.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.New().String(), Started: time.Now()}
	defer func() { report.Finished = time.Now() }()

	policy, err := entity.ParseCoercionPolicy(r.Config.Coercion)
	if err != nil {
		return report, err
	}
	if err := entity.VerifyOrder(r.Catalog); err != nil {
		return report, err
	}

	if r.Config.Verbose {
		log.Printf("[HOTELLOAD] Run %s starting against %s", report.RunID, r.Dialect.Name())
	}
	if err := store.InitSchema(ctx, r.DB, r.Dialect, r.Catalog, r.Config.Verbose); err != nil {
		return report, err
	}

	loader := &store.Loader{
		DB:        r.DB,
		Dialect:   r.Dialect,
		BatchSize: r.Config.BatchSize,
		Verbose:   r.Config.Verbose,
	}

	failed := map[string]bool{}
	for _, d := range r.Catalog {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := r.loadTable(ctx, loader, d, policy)
		report.Tables = append(report.Tables, res)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrSourceOpen) && r.Config.MissingSource == config.MissingSkip {
			log.Printf("[HOTELLOAD] Skipping %s: %v", d.Name, err)
			failed[d.Table] = true
			continue
		}
		return report, fmt.Errorf("%s: %w", d.Name, err)
	}

	if err := store.ApplyForeignKeys(ctx, r.DB, r.Dialect, withoutFailed(r.Catalog, failed)); err != nil {
		return report, err
	}
	if r.Config.Verbose {
		read, rejected, inserted := report.Totals()
		log.Printf("[HOTELLOAD] Run %s finished: read %d, rejected %d, inserted %d", report.RunID, read, rejected, inserted)
	}
	return report, nil
}

func (r *Runner) loadTable(ctx context.Context, loader *store.Loader, d *entity.Descriptor, policy entity.CoercionPolicy) (TableResult, error) {
	src := r.Config.SourceFor(d.Name)
	res := TableResult{Entity: d.Name, Table: d.Table, Source: src.Path, Status: Aborted}

	rows, err := r.readSource(ctx, d, src, &res)
	if errors.Is(err, ErrSourceOpen) {
		res.Status, res.Err = SourceFailed, err
		// The empty table still gets its key so later foreign keys can refer to it.
		if next, ferr := loader.Finish(ctx, d); ferr == nil {
			res.NextID = next
		}
		return res, err
	}
	if err != nil {
		res.Err = err
		return res, err
	}

	recs := make([]entity.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := entity.Decode(d, row, policy)
		if err != nil {
			res.Err = err
			return res, err
		}
		if err := entity.Validate(d, rec); err != nil {
			var rej *entity.RejectError
			if !errors.As(err, &rej) {
				res.Err = err
				return res, err
			}
			res.Rejected++
			if r.Config.LogRejects {
				log.Printf("[HOTELLOAD] Rejected %v", rej)
			}
			continue
		}
		if r.Config.HashSecrets {
			if err := hashSecrets(d, rec); err != nil {
				res.Err = err
				return res, err
			}
		}
		recs = append(recs, rec)
	}

	res.Inserted, err = loader.Load(ctx, d, recs)
	if err != nil {
		res.Err = err
		return res, err
	}
	res.NextID, err = loader.Finish(ctx, d)
	if err != nil {
		res.Err = err
		return res, err
	}

	res.Status = Loaded
	if res.Read == 0 {
		res.Status = Empty
	}
	if r.Config.Verbose {
		log.Printf("[HOTELLOAD] Finished %s: read %d, rejected %d, inserted %d, next id %d",
			d.Table, res.Read, res.Rejected, res.Inserted, res.NextID)
	}
	return res, nil
}

// hashSecrets replaces Secret text fields with bcrypt hashes. Values that are
// already bcrypt hashes are kept so reloading a hashed export is harmless.
func hashSecrets(d *entity.Descriptor, rec entity.Record) error {
	for _, f := range d.Fields {
		if !f.Secret {
			continue
		}
		plain, ok := rec.Text(f.Name)
		if !ok || isBcrypt(plain) {
			continue
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash %s.%s (line %d): %w", d.Table, f.Name, rec.Line, err)
		}
		rec.Set(f.Name, string(hashed))
	}
	return nil
}

func isBcrypt(s string) bool {
	if !strings.HasPrefix(s, "$2") {
		return false
	}
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}

// withoutFailed drops foreign keys that touch a table whose source failed,
// so one missing export does not block the constraints between the others.
func withoutFailed(ds []*entity.Descriptor, failed map[string]bool) []*entity.Descriptor {
	if len(failed) == 0 {
		return ds
	}
	out := make([]*entity.Descriptor, 0, len(ds))
	for _, d := range ds {
		if failed[d.Table] {
			log.Printf("[HOTELLOAD] Not applying foreign keys of %s: source failed", d.Table)
			continue
		}
		kept := *d
		kept.ForeignKeys = nil
		for _, fk := range d.ForeignKeys {
			if failed[fk.RefTable] {
				log.Printf("[HOTELLOAD] Not applying %s.%s -> %s: source failed", d.Table, fk.Column, fk.RefTable)
				continue
			}
			kept.ForeignKeys = append(kept.ForeignKeys, fk)
		}
		out = append(out, &kept)
	}
	return out
}
