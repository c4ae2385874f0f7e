package json

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/darianmavgo/hotelload/converters"
	"github.com/darianmavgo/hotelload/converters/common"
)

func init() {
	converters.Register("json", &jsonDriver{})
}

type jsonDriver struct{}

func (d *jsonDriver) Open(source io.Reader, config *common.ConversionConfig) (common.RowProvider, error) {
	return NewJSONConverterWithConfig(source, config)
}

// JSONConverter reads a document whose records are a list of objects.
// The list is either the root value or, for an object root, the array
// stored under config.TableName (or the only array member).
type JSONConverter struct {
	headers []string
	rawKeys map[string]string // raw key -> normalised header
	records []map[string]interface{}
}

// Ensure JSONConverter implements RowProvider
var _ common.RowProvider = (*JSONConverter)(nil)

// NewJSONConverter creates a new JSONConverter from an io.Reader.
func NewJSONConverter(r io.Reader) (*JSONConverter, error) {
	return NewJSONConverterWithConfig(r, nil)
}

// NewJSONConverterWithConfig creates a new JSONConverter from an io.Reader with optional config.
// Numbers are kept as json.Number so identities never pass through float64.
func NewJSONConverterWithConfig(r io.Reader, config *common.ConversionConfig) (*JSONConverter, error) {
	if config == nil {
		config = &common.ConversionConfig{}
	}

	dec := json.NewDecoder(bufio.NewReaderSize(r, 65536))
	dec.UseNumber()

	// Peek the first token to determine structure
	token, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON start: %w", err)
	}

	delim, ok := token.(json.Delim)
	if !ok {
		return nil, fmt.Errorf("expected JSON object or array at root")
	}

	var elems []interface{}
	switch delim {
	case '[':
		for dec.More() {
			var elem interface{}
			if err := dec.Decode(&elem); err != nil {
				return nil, fmt.Errorf("failed to decode element %d: %w", len(elems), err)
			}
			elems = append(elems, elem)
		}
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("expected closing ']': %w", err)
		}

	case '{':
		arrays := make(map[string][]interface{})
		for dec.More() {
			keyToken, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("failed to read key: %w", err)
			}
			key, ok := keyToken.(string)
			if !ok {
				return nil, fmt.Errorf("expected string key")
			}

			var val interface{}
			if err := dec.Decode(&val); err != nil {
				return nil, fmt.Errorf("failed to decode value for key %s: %w", key, err)
			}
			if arr, ok := val.([]interface{}); ok {
				arrays[key] = arr
			}
		}

		switch {
		case config.TableName != "":
			arr, ok := arrays[config.TableName]
			if !ok {
				return nil, fmt.Errorf("no array named %q in JSON document", config.TableName)
			}
			elems = arr
		case len(arrays) == 1:
			for _, arr := range arrays {
				elems = arr
			}
		default:
			return nil, fmt.Errorf("JSON object has %d arrays; a table name is required", len(arrays))
		}

	default:
		return nil, fmt.Errorf("unexpected delimiter: %v", delim)
	}

	c := &JSONConverter{rawKeys: make(map[string]string)}
	for i, elem := range elems {
		obj, ok := elem.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("element %d is not an object", i)
		}
		c.records = append(c.records, obj)
	}
	c.buildHeaders()
	return c, nil
}

// buildHeaders collects the union of keys across all records, sorted.
func (c *JSONConverter) buildHeaders() {
	seen := make(map[string]bool)
	var raw []string
	for _, rec := range c.records {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				raw = append(raw, k)
			}
		}
	}
	sort.Strings(raw)

	c.headers = common.GenColumnNames(raw)
	for i, k := range raw {
		c.rawKeys[k] = c.headers[i]
	}
}

// Headers implements RowProvider
func (c *JSONConverter) Headers() []string {
	return c.headers
}

// ScanRows implements RowProvider. Keys absent from a record are reported as nil.
func (c *JSONConverter) ScanRows(ctx context.Context, yield func(common.Row, error) error) error {
	for i, rec := range c.records {
		if err := ctx.Err(); err != nil {
			return err
		}

		fields, err := c.fieldMap(rec)
		if err != nil {
			if err := yield(common.Row{Line: i + 1}, err); err != nil {
				return err
			}
			continue
		}
		if err := yield(common.Row{Line: i + 1, Fields: fields}, nil); err != nil {
			return err
		}
	}
	return nil
}

// fieldMap flattens one record onto the header set. Nested objects and
// arrays have no column to land in and are reported as row errors.
func (c *JSONConverter) fieldMap(rec map[string]interface{}) (common.FieldMap, error) {
	fields := make(common.FieldMap, len(c.headers))
	for _, h := range c.headers {
		fields[h] = nil
	}
	for k, v := range rec {
		switch v.(type) {
		case map[string]interface{}, []interface{}:
			return nil, fmt.Errorf("field %q holds a nested value", k)
		}
		fields[c.rawKeys[k]] = v
	}
	return fields, nil
}
