package csv

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/darianmavgo/hotelload/converters"
	"github.com/darianmavgo/hotelload/converters/common"
)

func init() {
	converters.Register("csv", &csvDriver{})
}

type csvDriver struct{}

func (d *csvDriver) Open(source io.Reader, config *common.ConversionConfig) (common.RowProvider, error) {
	return NewCSVConverterWithConfig(source, config)
}

var emptyPadding = make([]string, 64)

// CSVConverter reads delimited text with a header row.
type CSVConverter struct {
	headers   []string
	csvReader *csv.Reader
	Config    common.ConversionConfig
}

// Ensure CSVConverter implements RowProvider
var _ common.RowProvider = (*CSVConverter)(nil)

// NewCSVConverter creates a new CSVConverter from an io.Reader.
// ScanRows can only be called once.
func NewCSVConverter(r io.Reader) (*CSVConverter, error) {
	return NewCSVConverterWithConfig(r, nil)
}

// NewCSVConverterWithConfig creates a new CSVConverter from an io.Reader with optional config.
func NewCSVConverterWithConfig(r io.Reader, config *common.ConversionConfig) (*CSVConverter, error) {
	if config == nil {
		config = &common.ConversionConfig{}
	}

	// Strip a UTF-8 or UTF-16 byte order mark; spreadsheet exports often carry one.
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	br := bufio.NewReaderSize(decoded, 65536)

	// Detect delimiter if not set
	if config.Delimiter == 0 {
		peekBytes, _ := br.Peek(2048)
		sample := string(peekBytes)
		if idx := strings.IndexAny(sample, "\r\n"); idx != -1 {
			sample = sample[:idx]
		}
		config.Delimiter = common.DetectDelimiter(sample)
	}

	reader := csv.NewReader(br)
	reader.Comma = config.Delimiter
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.TrimLeadingSpace = true

	// First row is header
	h, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("CSV file is empty")
		}
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}

	return &CSVConverter{
		headers:   common.GenColumnNames(h),
		csvReader: reader,
		Config:    *config,
	}, nil
}

// Headers implements RowProvider
func (c *CSVConverter) Headers() []string {
	return c.headers
}

// padRow pads or truncates the row to match the target length.
func padRow(row []string, targetLen int) []string {
	if len(row) < targetLen {
		needed := targetLen - len(row)
		if needed <= len(emptyPadding) {
			row = append(row, emptyPadding[:needed]...)
		} else {
			row = append(row, make([]string, needed)...)
		}
	} else if len(row) > targetLen {
		row = row[:targetLen]
	}
	return row
}

// ScanRows implements RowProvider. Empty cells are reported as nil.
func (c *CSVConverter) ScanRows(ctx context.Context, yield func(common.Row, error) error) error {
	if c.csvReader == nil {
		return fmt.Errorf("CSV reader is not initialized")
	}

	line := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		record, err := c.csvReader.Read()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			line++
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return fmt.Errorf("failed to read CSV row: %w", err)
			}
			// The caller decides whether a malformed record ends the scan.
			if err := yield(common.Row{Line: line}, fmt.Errorf("failed to read CSV row: %w", err)); err != nil {
				return err
			}
			continue
		}
		line++

		record = padRow(record, len(c.headers))
		fields := make(common.FieldMap, len(c.headers))
		for i, header := range c.headers {
			val := strings.TrimSpace(record[i])
			if val == "" {
				fields[header] = nil
				continue
			}
			fields[header] = val
		}

		if err := yield(common.Row{Line: line, Fields: fields}, nil); err != nil {
			return err
		}
	}
}
