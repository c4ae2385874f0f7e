// Package entity describes the nine hotel-chain tables once, as data, and
// provides the decoder and validator that every table pipeline shares.
package entity

import (
	"fmt"
	"strings"
)

// Kind is the destination type a raw field value is coerced to.
type Kind int

const (
	Int Kind = iota
	Float
	Text
	Bool
	Date
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "integer"
	case Float:
		return "float"
	case Text:
		return "text"
	case Bool:
		return "boolean"
	case Date:
		return "date"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Field is one column of an entity.
type Field struct {
	Name   string
	Kind   Kind
	Secret bool // credential material, eligible for hashing before load
}

// ForeignKey links Column to RefTable.RefColumn.
type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
}

// Descriptor is the configuration for one entity kind: its table, identity
// column, field list in load-projection order, foreign keys and validation rules.
type Descriptor struct {
	Name        string
	Table       string
	Identity    string
	Fields      []Field
	ForeignKeys []ForeignKey
	Rules       []Rule
}

// Columns returns the field names in projection order.
func (d *Descriptor) Columns() []string {
	cols := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		cols[i] = f.Name
	}
	return cols
}

// Field looks up a field by name.
func (d *Descriptor) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// CheckHeaders fails with ErrSchema when a declared field is absent from the
// source header. Extra source columns are ignored.
func (d *Descriptor) CheckHeaders(headers []string) error {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}
	var absent []string
	for _, f := range d.Fields {
		if !present[f.Name] {
			absent = append(absent, f.Name)
		}
	}
	if len(absent) > 0 {
		return fmt.Errorf("%w: %s source lacks %s", ErrSchema, d.Name, strings.Join(absent, ", "))
	}
	return nil
}
