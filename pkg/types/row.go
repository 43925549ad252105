package types

import (
	"fmt"
	"reflect"
	"sort"
)

// Row maps column names to scalar values. Rows read from a row source hold
// strings; rows returned by the relational backend hold driver-native values.
type Row map[string]any

// Template is a partial column to value mapping used as an equality filter.
// A nil or empty Template matches every row.
type Template map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	c := make(Row, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// Columns returns the row's column names in sorted order.
func (r Row) Columns() []string {
	cols := make([]string, 0, len(r))
	for k := range r {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// Project returns a new row restricted to fields. A field that is absent
// from r fails with ErrInvalidField.
func (r Row) Project(fields []string) (Row, error) {
	out := make(Row, len(fields))
	for _, f := range fields {
		v, ok := r[f]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidField, f)
		}
		out[f] = v
	}
	return out, nil
}

// Matches reports whether row satisfies every constraint in tmpl.
// A column missing from row never matches.
func Matches(row Row, tmpl Template) bool {
	for k, want := range tmpl {
		got, ok := row[k]
		if !ok {
			return false
		}
		if !ValuesEqual(got, want) {
			return false
		}
	}
	return true
}

// Matches is the method form of the package-level Matches.
func (t Template) Matches(row Row) bool {
	return Matches(row, t)
}

// Columns returns the template's column names in sorted order.
func (t Template) Columns() []string {
	return Row(t).Columns()
}

// ValuesEqual compares two scalar values. Byte slices compare as strings so
// that rows scanned from drivers returning []byte match string templates.
func ValuesEqual(a, b any) bool {
	if ab, ok := a.([]byte); ok {
		a = string(ab)
	}
	if bb, ok := b.([]byte); ok {
		b = string(bb)
	}
	return reflect.DeepEqual(a, b)
}

// KeyTemplate zips keyColumns with keyValues into a Template.
// It returns ErrNoPrimaryKey when keyColumns is empty and ErrInvalidKeyArity
// when the counts differ.
func KeyTemplate(keyColumns []string, keyValues []any) (Template, error) {
	if len(keyColumns) == 0 {
		return nil, ErrNoPrimaryKey
	}
	if len(keyValues) != len(keyColumns) {
		return nil, fmt.Errorf("%w: expected %d field(s) for primary key, got %d",
			ErrInvalidKeyArity, len(keyColumns), len(keyValues))
	}
	tmpl := make(Template, len(keyColumns))
	for i, col := range keyColumns {
		tmpl[col] = keyValues[i]
	}
	return tmpl, nil
}

// KeyOf extracts the key of row as a Template. The second result is false
// when any key column is absent or nil.
func KeyOf(keyColumns []string, row Row) (Template, bool) {
	tmpl := make(Template, len(keyColumns))
	for _, col := range keyColumns {
		v, ok := row[col]
		if !ok || v == nil {
			return nil, false
		}
		tmpl[col] = v
	}
	return tmpl, true
}

// MissingKeyColumns lists the key columns that record lacks or sets to nil.
func MissingKeyColumns(keyColumns []string, record Row) []string {
	var missing []string
	for _, col := range keyColumns {
		if v, ok := record[col]; !ok || v == nil {
			missing = append(missing, col)
		}
	}
	return missing
}

// TouchesKey reports whether values assigns any of the key columns.
func TouchesKey(keyColumns []string, values Row) bool {
	for _, col := range keyColumns {
		if _, ok := values[col]; ok {
			return true
		}
	}
	return false
}
