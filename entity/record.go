package entity

import (
	"fmt"
	"sort"
	"strings"

	"github.com/golang-sql/civil"
)

// Record is one decoded row. Values hold int64, float64, string, bool or
// civil.Date; nil is null. Fields whose raw value could not be coerced are
// recorded in Uncoercible with the offending raw text and hold nil.
type Record struct {
	Line        int
	Values      map[string]any
	Uncoercible map[string]string
}

// IsNull reports whether the named field holds no value.
func (r Record) IsNull(name string) bool {
	return r.Values[name] == nil
}

// Int returns an integer field.
func (r Record) Int(name string) (int64, bool) {
	v, ok := r.Values[name].(int64)
	return v, ok
}

// Float returns a floating point field.
func (r Record) Float(name string) (float64, bool) {
	v, ok := r.Values[name].(float64)
	return v, ok
}

// Text returns a text field.
func (r Record) Text(name string) (string, bool) {
	v, ok := r.Values[name].(string)
	return v, ok
}

// Bool returns a boolean field.
func (r Record) Bool(name string) (bool, bool) {
	v, ok := r.Values[name].(bool)
	return v, ok
}

// Date returns a calendar date field.
func (r Record) Date(name string) (civil.Date, bool) {
	v, ok := r.Values[name].(civil.Date)
	return v, ok
}

// Set replaces a field value.
func (r Record) Set(name string, v any) {
	r.Values[name] = v
}

// Equal compares values field by field. Line numbers are ignored.
func (r Record) Equal(other Record) bool {
	if len(r.Values) != len(other.Values) {
		return false
	}
	for k, v := range r.Values {
		ov, ok := other.Values[k]
		if !ok || v != ov {
			return false
		}
	}
	return true
}

func (r Record) String() string {
	keys := make([]string, 0, len(r.Values))
	for k := range r.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, r.Values[k])
	}
	return "{" + strings.Join(parts, " ") + "}"
}
