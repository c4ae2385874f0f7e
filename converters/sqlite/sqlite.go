// Package sqlite reads rows from an embedded SQLite store using a fixed projection.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/darianmavgo/hotelload/converters"
	"github.com/darianmavgo/hotelload/converters/common"

	_ "modernc.org/sqlite"
)

func init() {
	converters.Register("sqlite", &sqliteDriver{})
}

type sqliteDriver struct{}

func (d *sqliteDriver) Open(source io.Reader, config *common.ConversionConfig) (common.RowProvider, error) {
	return NewSQLiteConverterWithConfig(source, config)
}

// SQLiteConverter queries one table of a SQLite database file.
type SQLiteConverter struct {
	db      *sql.DB
	table   string
	headers []string // normalised names, in projection order
	columns []string // source column names matching headers
	tmpPath string   // set when the source had to be spooled to disk
}

// Ensure SQLiteConverter implements RowProvider
var _ common.RowProvider = (*SQLiteConverter)(nil)

// Ensure SQLiteConverter implements io.Closer
var _ io.Closer = (*SQLiteConverter)(nil)

// NewSQLiteConverterWithConfig opens the database behind r.
// SQLite needs a file on disk: an *os.File is opened by name, any other
// reader is copied to a temporary file first.
func NewSQLiteConverterWithConfig(r io.Reader, config *common.ConversionConfig) (*SQLiteConverter, error) {
	if config == nil {
		config = &common.ConversionConfig{}
	}

	c := &SQLiteConverter{}
	path := ""
	if f, ok := r.(*os.File); ok {
		path = f.Name()
	} else {
		tmpFile, err := os.CreateTemp("", "hotelload-*.db")
		if err != nil {
			return nil, fmt.Errorf("failed to create temp file: %w", err)
		}
		if _, err := io.Copy(tmpFile, r); err != nil {
			tmpFile.Close()
			os.Remove(tmpFile.Name())
			return nil, fmt.Errorf("failed to spool database: %w", err)
		}
		tmpFile.Close()
		path = tmpFile.Name()
		c.tmpPath = path
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	c.db = db

	if err := c.resolve(config); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// resolve picks the table and maps the projection onto source columns.
func (c *SQLiteConverter) resolve(config *common.ConversionConfig) error {
	table := config.TableName
	if table == "" {
		var names []string
		rows, err := c.db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
		if err != nil {
			return fmt.Errorf("failed to list tables: %w", err)
		}
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				rows.Close()
				return fmt.Errorf("failed to list tables: %w", err)
			}
			names = append(names, name)
		}
		rows.Close()
		if len(names) != 1 {
			return fmt.Errorf("database has %d tables; a table name is required", len(names))
		}
		table = names[0]
	}
	c.table = table

	rows, err := c.db.Query(fmt.Sprintf("SELECT * FROM %s LIMIT 0", quoteIdent(table)))
	if err != nil {
		return fmt.Errorf("failed to query table %s: %w", table, err)
	}
	raw, err := rows.Columns()
	rows.Close()
	if err != nil {
		return fmt.Errorf("failed to read columns of %s: %w", table, err)
	}

	normalised := common.GenColumnNames(raw)
	projection := config.Projection()
	if len(projection) == 0 {
		c.headers = normalised
		c.columns = raw
		return nil
	}

	// Keep projection order; columns absent from the store are left out so the
	// caller can report them against the declared field list.
	index := make(map[string]int, len(normalised))
	for i, n := range normalised {
		index[n] = i
	}
	for _, want := range projection {
		if i, ok := index[want]; ok {
			c.headers = append(c.headers, want)
			c.columns = append(c.columns, raw[i])
		}
	}
	return nil
}

// Headers implements RowProvider
func (c *SQLiteConverter) Headers() []string {
	return c.headers
}

// ScanRows implements RowProvider
func (c *SQLiteConverter) ScanRows(ctx context.Context, yield func(common.Row, error) error) error {
	if len(c.columns) == 0 {
		return nil
	}

	quoted := make([]string, len(c.columns))
	for i, col := range c.columns {
		quoted[i] = quoteIdent(col)
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), quoteIdent(c.table))

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", c.table, err)
	}
	defer rows.Close()

	line := 0
	values := make([]any, len(c.columns))
	ptrs := make([]any, len(c.columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		line++
		if err := rows.Scan(ptrs...); err != nil {
			if err := yield(common.Row{Line: line}, fmt.Errorf("failed to scan row: %w", err)); err != nil {
				return err
			}
			continue
		}

		fields := make(common.FieldMap, len(c.headers))
		for i, header := range c.headers {
			switch v := values[i].(type) {
			case []byte:
				fields[header] = string(v)
			default:
				fields[header] = v
			}
		}
		if err := yield(common.Row{Line: line, Fields: fields}, nil); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close releases the database handle and any spooled copy.
func (c *SQLiteConverter) Close() error {
	var err error
	if c.db != nil {
		err = c.db.Close()
		c.db = nil
	}
	if c.tmpPath != "" {
		os.Remove(c.tmpPath)
		c.tmpPath = ""
	}
	return err
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
