package common

// ConversionConfig stores configuration options for reading a source.
type ConversionConfig struct {
	Delimiter rune     // Delimiter used for CSV parsing, 0 means detect
	TableName string   // Table to query in an embedded store
	Columns   []string // Fixed projection; empty means every column
	Verbose   bool     // Enable detailed logging
}

// Projection returns the configured columns normalised with GenColumnNames.
func (c *ConversionConfig) Projection() []string {
	if c == nil || len(c.Columns) == 0 {
		return nil
	}
	return GenColumnNames(c.Columns)
}
