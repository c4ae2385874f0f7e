package common

import (
	"context"
	"io"
)

// FieldMap is one source row before type coercion: field name to raw value.
// A nil value is a null.
type FieldMap map[string]any

// Row is a FieldMap tagged with its position in the source.
type Row struct {
	Line   int // 1-based data row number, header excluded
	Fields FieldMap
}

// Missing reports which of the given fields are absent or null in the row.
// Empty strings count as null.
func (r Row) Missing(fields []string) []string {
	var missing []string
	for _, f := range fields {
		if IsNull(r.Fields[f]) {
			missing = append(missing, f)
		}
	}
	return missing
}

// IsNull reports whether a raw source value represents a null.
func IsNull(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []byte:
		return len(t) == 0
	}
	return false
}

// RowProvider defines the interface every source reader implements.
type RowProvider interface {
	// Headers returns the normalised field names the source exposes.
	Headers() []string
	// ScanRows iterates over rows in source order.
	// It calls the yield function for each row; a non-nil error argument
	// reports a row that could not be read.
	// If yield returns an error, iteration stops and that error is returned.
	ScanRows(ctx context.Context, yield func(Row, error) error) error
}

// Driver defines the interface that must be implemented by a converter package.
type Driver interface {
	// Open returns a new RowProvider for the given input.
	Open(io.Reader, *ConversionConfig) (RowProvider, error)
}
