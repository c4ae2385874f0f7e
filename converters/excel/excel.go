package excel

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/darianmavgo/hotelload/converters"
	"github.com/darianmavgo/hotelload/converters/common"

	"github.com/xuri/excelize/v2"
)

func init() {
	converters.Register("excel", &excelDriver{})
}

type excelDriver struct{}

func (d *excelDriver) Open(source io.Reader, config *common.ConversionConfig) (common.RowProvider, error) {
	return NewExcelConverterWithConfig(source, config)
}

// ExcelConverter reads one sheet of a workbook whose first row is the header.
type ExcelConverter struct {
	sheet   string
	headers []string
	file    *excelize.File
}

// Ensure ExcelConverter implements RowProvider
var _ common.RowProvider = (*ExcelConverter)(nil)

// Ensure ExcelConverter implements io.Closer
var _ io.Closer = (*ExcelConverter)(nil)

// NewExcelConverter creates a new ExcelConverter from an io.Reader
func NewExcelConverter(r io.Reader) (*ExcelConverter, error) {
	return NewExcelConverterWithConfig(r, nil)
}

// NewExcelConverterWithConfig creates a new ExcelConverter from an io.Reader with optional config.
// config.TableName selects a sheet by name; otherwise the first sheet is used.
func NewExcelConverterWithConfig(r io.Reader, config *common.ConversionConfig) (*ExcelConverter, error) {
	// Open Excel stream
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel stream: %w", err)
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, fmt.Errorf("no sheets found in Excel file")
	}

	sheet := sheets[0]
	if config != nil && config.TableName != "" {
		found := false
		for _, s := range sheets {
			if strings.EqualFold(s, config.TableName) {
				sheet = s
				found = true
				break
			}
		}
		if !found {
			f.Close()
			return nil, fmt.Errorf("sheet %q not found in Excel file", config.TableName)
		}
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to get rows iterator for sheet %s: %w", sheet, err)
	}
	var headerRow []string
	if rows.Next() {
		headerRow, err = rows.Columns()
		if err != nil {
			rows.Close()
			f.Close()
			return nil, fmt.Errorf("failed to read header row for sheet %s: %w", sheet, err)
		}
	}
	rows.Close()

	if len(headerRow) == 0 {
		f.Close()
		return nil, fmt.Errorf("sheet %s has no header row", sheet)
	}

	return &ExcelConverter{
		sheet:   sheet,
		headers: common.GenColumnNames(headerRow),
		file:    f,
	}, nil
}

// Headers implements RowProvider
func (e *ExcelConverter) Headers() []string {
	return e.headers
}

// ScanRows implements RowProvider. Blank cells are reported as nil.
func (e *ExcelConverter) ScanRows(ctx context.Context, yield func(common.Row, error) error) error {
	if e.file == nil {
		return fmt.Errorf("ExcelConverter not initialized")
	}

	rows, err := e.file.Rows(e.sheet)
	if err != nil {
		return fmt.Errorf("failed to get rows iterator for sheet %s: %w", e.sheet, err)
	}
	defer rows.Close()

	// Skip header
	if rows.Next() {
		if _, err := rows.Columns(); err != nil {
			return err
		}
	}

	line := 0
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++

		cols, err := rows.Columns()
		if err != nil {
			if err := yield(common.Row{Line: line}, fmt.Errorf("failed to read row: %w", err)); err != nil {
				return err
			}
			continue
		}

		// Trailing blank rows come back as empty slices.
		if len(cols) == 0 {
			continue
		}

		fields := make(common.FieldMap, len(e.headers))
		for i, header := range e.headers {
			if i >= len(cols) {
				fields[header] = nil
				continue
			}
			val := strings.TrimSpace(cols[i])
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

	return rows.Error()
}

// Close closes the underlying Excel file
func (e *ExcelConverter) Close() error {
	if e.file != nil {
		return e.file.Close()
	}
	return nil
}
