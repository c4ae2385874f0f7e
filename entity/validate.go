package entity

import (
	"fmt"
	"strings"
)

// RejectError explains why a record was dropped.
type RejectError struct {
	Entity string
	Line   int
	Field  string
	Reason string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("%s line %d: %s %s", e.Entity, e.Line, e.Field, e.Reason)
}

// Rule is a predicate over one record. A nil error accepts the record.
type Rule func(d *Descriptor, r Record) error

// Validate applies the descriptor's rules in order and returns the first
// rejection. Rules never look beyond the record itself.
func Validate(d *Descriptor, r Record) error {
	for _, rule := range d.Rules {
		if err := rule(d, r); err != nil {
			return err
		}
	}
	return nil
}

func reject(d *Descriptor, r Record, field, format string, args ...any) error {
	return &RejectError{Entity: d.Name, Line: r.Line, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Coercible rejects records where any of the named fields failed type coercion.
func Coercible(fields ...string) Rule {
	return func(d *Descriptor, r Record) error {
		for _, name := range fields {
			if raw, bad := r.Uncoercible[name]; bad {
				f, _ := d.Field(name)
				return reject(d, r, name, "value %q is not coercible to %v", raw, f.Kind)
			}
		}
		return nil
	}
}

// RequireAll rejects records with any null or uncoercible field.
func RequireAll() Rule {
	return func(d *Descriptor, r Record) error {
		for _, f := range d.Fields {
			if raw, bad := r.Uncoercible[f.Name]; bad {
				return reject(d, r, f.Name, "value %q is not coercible to %v", raw, f.Kind)
			}
			if r.IsNull(f.Name) {
				return reject(d, r, f.Name, "is null")
			}
		}
		return nil
	}
}

// AtLeast rejects integer fields below min. Null values are left to RequireAll.
func AtLeast(field string, min int64) Rule {
	return func(d *Descriptor, r Record) error {
		v, ok := r.Int(field)
		if ok && v < min {
			return reject(d, r, field, "is %d, want at least %d", v, min)
		}
		return nil
	}
}

// Positive rejects numeric fields that are zero, negative or NaN.
func Positive(field string) Rule {
	return func(d *Descriptor, r Record) error {
		if v, ok := r.Float(field); ok && !(v > 0) {
			return reject(d, r, field, "is %v, want a positive value", v)
		}
		if v, ok := r.Int(field); ok && v <= 0 {
			return reject(d, r, field, "is %d, want a positive value", v)
		}
		return nil
	}
}

// NonEmpty rejects text fields that are blank after trimming.
func NonEmpty(field string) Rule {
	return func(d *Descriptor, r Record) error {
		if v, ok := r.Text(field); ok && strings.TrimSpace(v) == "" {
			return reject(d, r, field, "is empty")
		}
		return nil
	}
}
