package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/darianmavgo/hotelload/entity"
)

// withSearchPath points every session opened with the DSN at schema.
func withSearchPath(dsn, schema string) (string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", err
		}
		q := u.Query()
		q.Set("search_path", schema)
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
	return dsn + " search_path=" + schema, nil
}

// openPostgresLoader opens HOTELLOAD_TEST_PG in a throwaway schema.
func openPostgresLoader(t *testing.T) (*Loader, []*entity.Descriptor) {
	t.Helper()
	dsn := os.Getenv("HOTELLOAD_TEST_PG")
	if dsn == "" {
		t.Skip("HOTELLOAD_TEST_PG not set")
	}
	ctx := context.Background()

	admin, err := Open(ctx, Postgres{}, dsn)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	schema := fmt.Sprintf("hotelload_test_%d", time.Now().UnixNano())
	if _, err := admin.ExecContext(ctx, "CREATE SCHEMA "+schema); err != nil {
		admin.Close()
		t.Fatalf("failed to create schema: %v", err)
	}
	t.Cleanup(func() {
		admin.ExecContext(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		admin.Close()
	})

	scoped, err := withSearchPath(dsn, schema)
	if err != nil {
		t.Fatalf("bad DSN: %v", err)
	}
	db, err := Open(ctx, Postgres{}, scoped)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ds := entity.Catalog(entity.DefaultOptions())
	if err := InitSchema(ctx, db, Postgres{}, ds, false); err != nil {
		t.Fatalf("InitSchema failed: %v", err)
	}
	return &Loader{DB: db, Dialect: Postgres{}, BatchSize: 2}, ds
}

func TestWithSearchPath(t *testing.T) {
	got, err := withSearchPath("postgres://u@h:5432/db?sslmode=disable", "s1")
	if err != nil {
		t.Fatalf("withSearchPath failed: %v", err)
	}
	if got != "postgres://u@h:5432/db?search_path=s1&sslmode=disable" {
		t.Errorf("unexpected DSN %q", got)
	}
	if got, _ := withSearchPath("host=h dbname=db", "s1"); got != "host=h dbname=db search_path=s1" {
		t.Errorf("unexpected DSN %q", got)
	}
}

func TestPostgresResetSequence(t *testing.T) {
	l, ds := openPostgresLoader(t)
	ctx := context.Background()
	client := descriptor(t, ds, entity.Client)

	next, err := l.Finish(ctx, client)
	if err != nil {
		t.Fatalf("Finish on empty table failed: %v", err)
	}
	if next != 1 {
		t.Errorf("empty table: expected next id 1, got %d", next)
	}

	if _, err := l.Load(ctx, client, []entity.Record{record(client, 3), record(client, 10), record(client, 7)}); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		next, err := l.Finish(ctx, client)
		if err != nil {
			t.Fatalf("Finish #%d failed: %v", i+1, err)
		}
		if next != 11 {
			t.Errorf("Finish #%d: expected next id 11, got %d", i+1, next)
		}
	}

	// The sequence now hands out 11 to inserts that leave the identity to the server.
	var id int64
	err = l.DB.QueryRowContext(ctx,
		`INSERT INTO "client" ("fname", "lname", "age", "memberyear") VALUES ('New', 'Guest', 30, 2024) RETURNING "clid"`).Scan(&id)
	if err != nil {
		t.Fatalf("interactive insert failed: %v", err)
	}
	if id != 11 {
		t.Errorf("expected generated id 11, got %d", id)
	}
}

func TestPostgresRoundTrip(t *testing.T) {
	l, ds := openPostgresLoader(t)
	ctx := context.Background()

	for _, name := range []string{entity.RoomDescription, entity.RoomUnavailability, entity.Reservation} {
		d := descriptor(t, ds, name)
		recs := []entity.Record{record(d, 1), record(d, 2)}
		if _, err := l.Load(ctx, d, recs); err != nil {
			t.Fatalf("Load %s failed: %v", name, err)
		}
		got, err := l.Fetch(ctx, d)
		if err != nil {
			t.Fatalf("Fetch %s failed: %v", name, err)
		}
		for i := range recs {
			if i >= len(got) || !got[i].Equal(recs[i]) {
				t.Errorf("%s row %d did not round-trip: %v", name, i, got)
			}
		}
	}
}

func TestPostgresDuplicateIdentity(t *testing.T) {
	l, ds := openPostgresLoader(t)
	ctx := context.Background()
	chain := descriptor(t, ds, entity.Chain)

	if _, err := l.Load(ctx, chain, []entity.Record{record(chain, 4), record(chain, 4)}); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := l.Finish(ctx, chain); !errors.Is(err, ErrConstraint) {
		t.Fatalf("expected ErrConstraint, got %v", err)
	}
}

func TestPostgresKeepsRowsBeforeFailure(t *testing.T) {
	l, ds := openPostgresLoader(t)
	ctx := context.Background()
	hotel := descriptor(t, ds, entity.Hotel)

	var recs []entity.Record
	for id := int64(1); id <= 5; id++ {
		recs = append(recs, record(hotel, id))
	}
	recs[3].Set("hname", nil)

	n, err := l.Load(ctx, hotel, recs)
	if err == nil {
		t.Fatal("expected insert error")
	}
	if n != 3 {
		t.Errorf("expected 3 committed rows, got %d", n)
	}
	if count, _ := l.Count(ctx, hotel); count != 3 {
		t.Errorf("expected 3 rows in table, got %d", count)
	}
}

func TestPostgresForeignKeys(t *testing.T) {
	l, ds := openPostgresLoader(t)
	ctx := context.Background()

	for _, d := range ds {
		if _, err := l.Load(ctx, d, []entity.Record{record(d, 1)}); err != nil {
			t.Fatalf("Load %s failed: %v", d.Name, err)
		}
		if _, err := l.Finish(ctx, d); err != nil {
			t.Fatalf("Finish %s failed: %v", d.Name, err)
		}
	}

	for i := 0; i < 2; i++ {
		if err := ApplyForeignKeys(ctx, l.DB, l.Dialect, ds); err != nil {
			t.Fatalf("ApplyForeignKeys #%d failed: %v", i+1, err)
		}
	}

	hotel := descriptor(t, ds, entity.Hotel)
	orphan := record(hotel, 2)
	orphan.Set("chid", int64(99))
	if _, err := l.Load(ctx, hotel, []entity.Record{orphan}); err == nil {
		t.Error("expected the foreign key to reject an orphaned hotel")
	}
}

func TestPostgresForeignKeyOnOrphans(t *testing.T) {
	l, ds := openPostgresLoader(t)
	ctx := context.Background()

	for _, d := range ds {
		if _, err := l.Finish(ctx, d); err != nil {
			t.Fatalf("Finish %s failed: %v", d.Name, err)
		}
	}
	hotel := descriptor(t, ds, entity.Hotel)
	if _, err := l.Load(ctx, hotel, []entity.Record{record(hotel, 1)}); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := ApplyForeignKeys(ctx, l.DB, l.Dialect, ds); !errors.Is(err, ErrConstraint) {
		t.Fatalf("expected ErrConstraint, got %v", err)
	}
}
