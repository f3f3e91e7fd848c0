// Package datamodel implements DataModel, an in-memory table of ordered,
// unique columns and rows that always carry exactly those columns.
//
// Cell values are nil, string, bool, a number, or a nested *DataModel. Once a
// column holds a non-nil value of some Go type, later inserts into that column
// must be nil or the same type. Two one-way flags restrict mutation: Freeze
// blocks structural and value changes, FreezeValues blocks value changes only.
//
// A DataModel is not safe for concurrent use. Values that cross an API
// boundary are copied instead of shared (Clone, Row, GetValue).
package datamodel

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"

	"github.com/r9s-ai/open-data-router/pkg/converter"
	"github.com/r9s-ai/open-data-router/pkg/jsonutil"
)

// DataModel is a table of ordered columns and rows. The zero value is an
// empty model using the standard converter.
type DataModel struct {
	columns      []string
	index        map[string]int
	rows         []map[string]any
	frozen       bool
	valuesFrozen bool
	conv         converter.Converter
}

var _ converter.Table = (*DataModel)(nil)

type Option func(*DataModel)

// WithConverter sets the converter used for every value conversion. A nil
// converter keeps the standard one.
func WithConverter(c converter.Converter) Option {
	return func(m *DataModel) {
		if c != nil {
			m.conv = c
		}
	}
}

// WithColumns predefines the column set of an empty model. Duplicate and
// empty names are ignored.
func WithColumns(names ...string) Option {
	return func(m *DataModel) {
		for _, n := range names {
			if n == "" {
				continue
			}
			if _, ok := m.index[n]; ok {
				continue
			}
			m.index[n] = len(m.columns)
			m.columns = append(m.columns, n)
		}
	}
}

func New(opts ...Option) *DataModel {
	m := &DataModel{index: map[string]int{}}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.conv == nil {
		m.conv = converter.Standard()
	}
	return m
}

func (m *DataModel) Converter() converter.Converter { return m.converter() }

func (m *DataModel) converter() converter.Converter {
	if m.conv == nil {
		m.conv = converter.Standard()
	}
	return m.conv
}

// Columns returns a copy of the column names in order.
func (m *DataModel) Columns() []string {
	return append([]string(nil), m.columns...)
}

// ColumnNames implements converter.Table.
func (m *DataModel) ColumnNames() []string { return m.Columns() }

func (m *DataModel) ColumnCount() int { return len(m.columns) }

func (m *DataModel) RowCount() int { return len(m.rows) }

func (m *DataModel) HasColumn(name string) bool {
	_, ok := m.index[name]
	return ok
}

// RowAt implements converter.Table. It returns the live row; callers must not
// modify it. Use Row for an independent copy.
func (m *DataModel) RowAt(i int) map[string]any { return m.rows[i] }

// Row returns a deep copy of row i.
func (m *DataModel) Row(i int) (map[string]any, error) {
	if err := m.checkRow(i); err != nil {
		return nil, err
	}
	return copyRow(m.rows[i]), nil
}

// Rows returns deep copies of all rows.
func (m *DataModel) Rows() []map[string]any {
	out := make([]map[string]any, len(m.rows))
	for i, r := range m.rows {
		out[i] = copyRow(r)
	}
	return out
}

// GetValue returns the cell at (row, column). Nested models are cloned.
func (m *DataModel) GetValue(row int, column string) (any, error) {
	if err := m.checkRow(row); err != nil {
		return nil, err
	}
	if !m.HasColumn(column) {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, column)
	}
	return copyValue(m.rows[row][column]), nil
}

// StringValue renders the cell at (row, column) as text. Nil is "", nested
// models are rendered as their JSON row array.
func (m *DataModel) StringValue(row int, column string) (string, error) {
	v, err := m.GetValue(row, column)
	if err != nil {
		return "", err
	}
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case *DataModel:
		b, err := t.ConvertedJSON()
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	if jsonutil.IsNumber(v) {
		return jsonutil.FormatNumber(v), nil
	}
	return fmt.Sprint(v), nil
}

// Freeze blocks every structural and value mutation. It cannot be undone.
func (m *DataModel) Freeze() {
	m.frozen = true
	m.valuesFrozen = true
}

// FreezeValues blocks value mutation only. It cannot be undone.
func (m *DataModel) FreezeValues() { m.valuesFrozen = true }

func (m *DataModel) IsFrozen() bool { return m.frozen }

func (m *DataModel) IsValuesFrozen() bool { return m.valuesFrozen }

// Clone returns an independent deep copy, including freeze flags.
func (m *DataModel) Clone() *DataModel {
	if m == nil {
		return nil
	}
	c := &DataModel{
		columns:      append([]string(nil), m.columns...),
		index:        make(map[string]int, len(m.index)),
		rows:         make([]map[string]any, len(m.rows)),
		frozen:       m.frozen,
		valuesFrozen: m.valuesFrozen,
		conv:         m.conv,
	}
	for k, v := range m.index {
		c.index[k] = v
	}
	for i, r := range m.rows {
		c.rows[i] = copyRow(r)
	}
	return c
}

// Equal reports whether both models have the same columns in the same order
// and equal cells. Freeze flags are not compared.
func (m *DataModel) Equal(o *DataModel) bool {
	if m == nil || o == nil {
		return m == o
	}
	if len(m.columns) != len(o.columns) || len(m.rows) != len(o.rows) {
		return false
	}
	for i, c := range m.columns {
		if o.columns[i] != c {
			return false
		}
	}
	for i, r := range m.rows {
		for _, c := range m.columns {
			if !valuesEqual(r[c], o.rows[i][c]) {
				return false
			}
		}
	}
	return true
}

// emptyLike returns an unfrozen model sharing m's columns and converter.
func (m *DataModel) emptyLike() *DataModel {
	return New(WithConverter(m.conv), WithColumns(m.columns...))
}

func (m *DataModel) checkRow(i int) error {
	if i < 0 || i >= len(m.rows) {
		return fmt.Errorf("%w: %d (rows: %d)", ErrRowIndexOutOfRange, i, len(m.rows))
	}
	return nil
}

func (m *DataModel) checkStructure(op string) error {
	if m.frozen {
		return fmt.Errorf("%w: %s", ErrStructureFrozen, op)
	}
	return nil
}

func (m *DataModel) checkValues(op string) error {
	if m.valuesFrozen {
		return fmt.Errorf("%w: %s", ErrValuesFrozen, op)
	}
	return nil
}

func (m *DataModel) reindex() {
	m.index = make(map[string]int, len(m.columns))
	for i, c := range m.columns {
		m.index[c] = i
	}
}

func copyRow(r map[string]any) map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case *DataModel:
		return t.Clone()
	case *big.Float:
		if t == nil {
			return nil
		}
		return new(big.Float).Copy(t)
	}
	return v
}

func sameType(a, b any) bool {
	if a == nil || b == nil {
		return true
	}
	return reflect.TypeOf(a) == reflect.TypeOf(b)
}

// valuesEqual compares two cells. Nil only equals nil; numbers compare by
// their decimal text so 1 and 1.0 are equal.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if jsonutil.IsNumber(a) && jsonutil.IsNumber(b) {
		return jsonutil.FormatNumber(a) == jsonutil.FormatNumber(b)
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case *DataModel:
		y, ok := b.(*DataModel)
		return ok && x.Equal(y)
	}
	return reflect.DeepEqual(a, b)
}
