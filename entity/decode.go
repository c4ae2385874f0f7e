package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/golang-sql/civil"

	"github.com/darianmavgo/hotelload/converters/common"
)

// ErrSchema marks a configuration error: the source does not carry a field
// the entity declares. It is distinct from per-row data-quality problems.
var ErrSchema = errors.New("schema mismatch")

// CoercionPolicy decides what happens to numeric text that is not a clean integer.
type CoercionPolicy string

const (
	// CoerceReject leaves the field uncoercible so the validator drops the row.
	CoerceReject CoercionPolicy = "reject"
	// CoerceTruncate keeps the integer part ("12.7" -> 12, "12abc" -> 12).
	CoerceTruncate CoercionPolicy = "truncate"
)

// ParseCoercionPolicy maps a configuration string to a policy.
func ParseCoercionPolicy(s string) (CoercionPolicy, error) {
	switch CoercionPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", CoerceReject:
		return CoerceReject, nil
	case CoerceTruncate:
		return CoerceTruncate, nil
	}
	return "", fmt.Errorf("unknown coercion policy %q", s)
}

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01-02-06",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

var (
	truthy = map[string]bool{"1": true, "t": true, "true": true, "y": true, "yes": true}
	falsy  = map[string]bool{"0": true, "f": true, "false": true, "n": true, "no": true}
)

// Decode maps one field-map onto a typed record. It never rejects a row for
// its data; it fails only when a declared field key is structurally absent.
func Decode(d *Descriptor, row common.Row, policy CoercionPolicy) (Record, error) {
	rec := Record{
		Line:   row.Line,
		Values: make(map[string]any, len(d.Fields)),
	}
	for _, f := range d.Fields {
		raw, ok := row.Fields[f.Name]
		if !ok {
			return Record{}, fmt.Errorf("%w: %s row %d has no %q key", ErrSchema, d.Name, row.Line, f.Name)
		}
		if common.IsNull(raw) {
			rec.Values[f.Name] = nil
			continue
		}

		v, err := coerce(f.Kind, raw, policy)
		if err != nil {
			if rec.Uncoercible == nil {
				rec.Uncoercible = make(map[string]string)
			}
			rec.Uncoercible[f.Name] = fmt.Sprint(raw)
			rec.Values[f.Name] = nil
			continue
		}
		rec.Values[f.Name] = v
	}
	return rec, nil
}

func coerce(kind Kind, raw any, policy CoercionPolicy) (any, error) {
	switch kind {
	case Int:
		return toInt(raw, policy)
	case Float:
		return toFloat(raw)
	case Text:
		return toText(raw)
	case Bool:
		return toBool(raw)
	case Date:
		return toDate(raw)
	}
	return nil, fmt.Errorf("unsupported kind %v", kind)
}

func toInt(raw any, policy CoercionPolicy) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case float64:
		return intFromFloat(v, policy)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, err
		}
		return intFromFloat(f, policy)
	case string:
		s := strings.TrimSpace(v)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return intFromFloat(f, policy)
		}
		if policy == CoerceTruncate {
			if i, ok := leadingInt(s); ok {
				return i, nil
			}
		}
		return 0, fmt.Errorf("%q is not an integer", v)
	}
	return 0, fmt.Errorf("cannot coerce %T to integer", raw)
}

func intFromFloat(f float64, policy CoercionPolicy) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("%v is out of integer range", f)
	}
	if f == math.Trunc(f) {
		return int64(f), nil
	}
	if policy == CoerceTruncate {
		return int64(math.Trunc(f)), nil
	}
	return 0, fmt.Errorf("%v is not a whole number", f)
}

// leadingInt parses an optional sign followed by at least one digit.
func leadingInt(s string) (int64, bool) {
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}
	i, err := strconv.ParseInt(s[:end], 10, 64)
	return i, err == nil
}

func toFloat(raw any) (float64, error) {
	f, err := parseFloat(raw)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%v is not a finite number", raw)
	}
	return f, nil
}

func parseFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		// Currency exports sometimes carry a symbol and thousands separators.
		s := strings.TrimSpace(v)
		s = strings.TrimPrefix(s, "$")
		s = strings.ReplaceAll(s, ",", "")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", v)
		}
		return f, nil
	}
	return 0, fmt.Errorf("cannot coerce %T to float", raw)
}

func toText(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	case time.Time:
		return v.Format(time.RFC3339), nil
	}
	return "", fmt.Errorf("cannot coerce %T to text", raw)
}

func toBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case int:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return false, err
		}
		return f != 0, nil
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		if truthy[s] {
			return true, nil
		}
		if falsy[s] {
			return false, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f != 0, nil
		}
		return false, fmt.Errorf("%q is not a boolean", v)
	}
	return false, fmt.Errorf("cannot coerce %T to boolean", raw)
}

func toDate(raw any) (civil.Date, error) {
	switch v := raw.(type) {
	case civil.Date:
		return v, nil
	case time.Time:
		return civil.DateOf(v), nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return civil.DateOf(t), nil
			}
		}
		return civil.Date{}, fmt.Errorf("%q is not a date", v)
	}
	return civil.Date{}, fmt.Errorf("cannot coerce %T to date", raw)
}
