// Package dataset models a tabular customer-support dataset together with
// the flag columns computed for it.
package dataset

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	ColumnMessage = "customer_message"
	ColumnName    = "name"
	ColumnContact = "contact_info"
)

// RequiredColumns must be present in every input header.
var RequiredColumns = []string{ColumnMessage, ColumnName, ColumnContact}

// MalformedInputError reports an input that cannot be evaluated at all.
type MalformedInputError struct {
	Missing []string
	Reason  string
	Err     error
}

func (e *MalformedInputError) Error() string {
	if len(e.Missing) > 0 {
		return "malformed input: missing required columns: " + strings.Join(e.Missing, ", ")
	}
	if e.Err != nil {
		return fmt.Sprintf("malformed input: %s: %v", e.Reason, e.Err)
	}
	return "malformed input: " + e.Reason
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

// Record is one row. Nil fields are null. Extra holds every other column.
type Record struct {
	CustomerMessage *string
	Name            *string
	ContactInfo     *string
	Extra           map[string]string
}

// Field returns the raw cell for a column; ok is false for a null cell.
func (r Record) Field(column string) (string, bool) {
	var p *string
	switch column {
	case ColumnMessage:
		p = r.CustomerMessage
	case ColumnName:
		p = r.Name
	case ColumnContact:
		p = r.ContactInfo
	default:
		v, ok := r.Extra[column]
		return v, ok
	}
	if p == nil {
		return "", false
	}
	return *p, true
}

type flagKind uint8

const (
	kindNull flagKind = iota
	kindBool
	kindLabel
)

// Flag is one cell of a flag column: a boolean, a null boolean, or a label.
type Flag struct {
	kind  flagKind
	value bool
	label string
}

func Bool(v bool) Flag {
	return Flag{kind: kindBool, value: v}
}

func Null() Flag {
	return Flag{kind: kindNull}
}

func Label(s string) Flag {
	return Flag{kind: kindLabel, label: s}
}

func (f Flag) IsNull() bool  { return f.kind == kindNull }
func (f Flag) IsTrue() bool  { return f.kind == kindBool && f.value }
func (f Flag) IsFalse() bool { return f.kind == kindBool && !f.value }

// Is reports whether the flag is the given label.
func (f Flag) Is(label string) bool {
	return f.kind == kindLabel && f.label == label
}

// String renders the cell the way it is written to CSV.
func (f Flag) String() string {
	switch f.kind {
	case kindBool:
		if f.value {
			return "True"
		}
		return "False"
	case kindLabel:
		return f.label
	default:
		return ""
	}
}

func (f Flag) MarshalJSON() ([]byte, error) {
	switch f.kind {
	case kindBool:
		return json.Marshal(f.value)
	case kindLabel:
		return json.Marshal(f.label)
	default:
		return []byte("null"), nil
	}
}

// Dataset is an ordered record sequence plus named flag columns. Every flag
// column has exactly one value per record; a missing column means the check
// was not run.
type Dataset struct {
	Columns []string
	Records []Record

	flagOrder []string
	flags     map[string][]Flag
}

func New(columns []string, records []Record) *Dataset {
	return &Dataset{
		Columns: columns,
		Records: records,
		flags:   make(map[string][]Flag),
	}
}

func (d *Dataset) Len() int {
	return len(d.Records)
}

// SetFlags stores a flag column, replacing any previous one with that name.
func (d *Dataset) SetFlags(name string, values []Flag) error {
	if len(values) != len(d.Records) {
		return fmt.Errorf("flag column %s has %d values, dataset has %d records", name, len(values), len(d.Records))
	}
	if d.flags == nil {
		d.flags = make(map[string][]Flag)
	}
	if _, exists := d.flags[name]; !exists {
		d.flagOrder = append(d.flagOrder, name)
	}
	d.flags[name] = values
	return nil
}

func (d *Dataset) Flags(name string) ([]Flag, bool) {
	values, ok := d.flags[name]
	return values, ok
}

func (d *Dataset) Has(name string) bool {
	_, ok := d.flags[name]
	return ok
}

// FlagNames lists flag columns in the order they were first set.
func (d *Dataset) FlagNames() []string {
	names := make([]string, len(d.flagOrder))
	copy(names, d.flagOrder)
	return names
}

// Count returns how many cells of the column satisfy match. Absent columns
// count zero.
func (d *Dataset) Count(name string, match func(Flag) bool) int {
	n := 0
	for _, f := range d.flags[name] {
		if match(f) {
			n++
		}
	}
	return n
}

func (d *Dataset) CountTrue(name string) int {
	return d.Count(name, Flag.IsTrue)
}
