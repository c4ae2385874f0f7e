package store

import (
	"strings"

	"github.com/darianmavgo/hotelload/entity"
)

// GenCreateTableSQL generates an idempotent CREATE TABLE statement for d.
func GenCreateTableSQL(dialect Dialect, d *entity.Descriptor) string {
	var builder strings.Builder
	builder.Grow(len(d.Table) + len(d.Fields)*24)

	builder.WriteString("CREATE TABLE IF NOT EXISTS ")
	builder.WriteString(dialect.Quote(d.Table))
	builder.WriteString(" (")
	for i, f := range d.Fields {
		builder.WriteString(dialect.Quote(f.Name))
		builder.WriteByte(' ')
		builder.WriteString(dialect.ColumnType(f, f.Name == d.Identity))
		if i < len(d.Fields)-1 {
			builder.WriteString(", ")
		}
	}
	builder.WriteByte(')')
	return builder.String()
}

// GenInsertSQL generates the insert for d. The identity column is named
// explicitly so source-supplied ids are kept.
func GenInsertSQL(dialect Dialect, d *entity.Descriptor) string {
	cols := make([]string, len(d.Fields))
	marks := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		cols[i] = dialect.Quote(f.Name)
		marks[i] = dialect.Placeholder(i + 1)
	}
	return "INSERT INTO " + dialect.Quote(d.Table) +
		" (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")"
}

// GenSelectSQL generates a select of the load projection ordered by identity.
func GenSelectSQL(dialect Dialect, d *entity.Descriptor) string {
	cols := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		cols[i] = dialect.Quote(f.Name)
	}
	return "SELECT " + strings.Join(cols, ", ") + " FROM " + dialect.Quote(d.Table) +
		" ORDER BY " + dialect.Quote(d.Identity)
}
