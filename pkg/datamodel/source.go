package datamodel

import (
	"fmt"

	"github.com/r9s-ai/open-data-router/pkg/converter"
	"github.com/r9s-ai/open-data-router/pkg/jsonutil"
)

// Attributes is a name/value bag such as a session. Names are read in the
// order AttributeNames returns them.
type Attributes interface {
	AttributeNames() []string
	Attribute(name string) any
}

// Cursor is the subset of *sql.Rows a model can be read from.
type Cursor interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// FromMap builds a single-row model; the sorted keys become the columns.
func FromMap(row map[string]any, opts ...Option) (*DataModel, error) {
	m := New(opts...)
	if len(row) == 0 {
		return m, nil
	}
	if err := m.insertRow(0, sortedKeys(row), row, m.cell); err != nil {
		return nil, err
	}
	return m, nil
}

// FromMaps builds a model from a list of rows. The columns are the union of
// all keys; cells for missing keys are nil.
func FromMaps(rows []map[string]any, opts ...Option) (*DataModel, error) {
	m := New(opts...)
	if err := m.addRows(rows); err != nil {
		return nil, err
	}
	return m, nil
}

// FromJSON accepts a JSON object (one row), an array (one row per element)
// or the standalone {"columns","rows"} form produced by MarshalJSON.
func FromJSON(data []byte, opts ...Option) (*DataModel, error) {
	v, err := jsonutil.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	return FromJSONValue(v, opts...)
}

// FromJSONValue is FromJSON for an already decoded jsonutil value.
func FromJSONValue(v any, opts ...Option) (*DataModel, error) {
	if t, ok := v.(*jsonutil.Object); ok {
		if cols, rows, ok := standaloneShape(t); ok {
			m := New(opts...)
			if err := m.AddColumns(cols...); err != nil {
				return nil, err
			}
			if err := m.addJSONArray(rows); err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	return FromJSONRows(v, opts...)
}

// FromJSONRows decodes v as rows only: an object is always one row, even one
// shaped like the standalone form, and an array is one row per element.
func FromJSONRows(v any, opts ...Option) (*DataModel, error) {
	m := New(opts...)
	switch t := v.(type) {
	case *jsonutil.Object:
		if t.Len() == 0 {
			return m, nil
		}
		if err := m.insertRow(0, t.Keys, t.Values, m.jsonCell); err != nil {
			return nil, err
		}
	case []any:
		if err := m.addJSONArray(t); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: json must be an object or an array, got %T", ErrInvalidSource, v)
	}
	return m, nil
}

func standaloneShape(o *jsonutil.Object) ([]string, []any, bool) {
	rawCols, ok := o.Get("columns")
	if !ok {
		return nil, nil, false
	}
	rawRows, ok := o.Get("rows")
	if !ok {
		return nil, nil, false
	}
	colList, ok := rawCols.([]any)
	if !ok {
		return nil, nil, false
	}
	rows, ok := rawRows.([]any)
	if !ok {
		return nil, nil, false
	}
	for _, k := range o.Keys {
		switch k {
		case "columns", "rows", "columnCount", "rowCount":
		default:
			return nil, nil, false
		}
	}
	cols := make([]string, 0, len(colList))
	for _, c := range colList {
		s, ok := c.(string)
		if !ok {
			return nil, nil, false
		}
		cols = append(cols, s)
	}
	return cols, rows, true
}

// FromArrays builds a model from column names and positional rows. Every row
// must have exactly one value per column.
func FromArrays(columns []string, rows [][]any, opts ...Option) (*DataModel, error) {
	m := New(opts...)
	if err := m.AddColumns(columns...); err != nil {
		return nil, err
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d values for %d columns", ErrInvalidSource, i, len(r), len(columns))
		}
		values := make(map[string]any, len(columns))
		for j, c := range columns {
			values[c] = r[j]
		}
		if err := m.insertRow(len(m.rows), columns, values, m.cell); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return m, nil
}

// FromAttributes builds a single-row model from an attribute bag.
func FromAttributes(attrs Attributes, opts ...Option) (*DataModel, error) {
	m := New(opts...)
	if attrs == nil {
		return m, nil
	}
	names := attrs.AttributeNames()
	if len(names) == 0 {
		return m, nil
	}
	values := make(map[string]any, len(names))
	for _, n := range names {
		values[n] = attrs.Attribute(n)
	}
	if err := m.insertRow(0, names, values, m.cell); err != nil {
		return nil, err
	}
	return m, nil
}

// FromRows reads every remaining row of cur. Byte slices become strings and
// time values are formatted by the converter. The cursor is not closed.
func FromRows(cur Cursor, opts ...Option) (*DataModel, error) {
	cols, err := cur.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	m := New(opts...)
	if err := m.AddColumns(cols...); err != nil {
		return nil, err
	}
	for cur.Next() {
		cells := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := cur.Scan(ptrs...); err != nil {
			return nil, err
		}
		values := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := cells[i].([]byte); ok {
				values[c] = string(b)
				continue
			}
			values[c] = cells[i]
		}
		if err := m.insertRow(len(m.rows), cols, values, m.cell); err != nil {
			return nil, fmt.Errorf("row %d: %w", len(m.rows), err)
		}
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// FromEntity builds a single-row model from e's accessor table.
func FromEntity(e converter.Entity, opts ...Option) (*DataModel, error) {
	m := New(opts...)
	if err := m.addRows(e); err != nil {
		return nil, err
	}
	return m, nil
}

// FromEntities builds one row per item, in the column order of the
// accessor table.
func FromEntities[T converter.Entity](items []T, opts ...Option) (*DataModel, error) {
	m := New(opts...)
	for i, it := range items {
		cols, row, err := m.converter().EntityToRow(it)
		if err != nil {
			return nil, fmt.Errorf("entity %d: %w", i, err)
		}
		if err := m.insertRow(len(m.rows), cols, row, m.cell); err != nil {
			return nil, fmt.Errorf("entity %d: %w", i, err)
		}
	}
	return m, nil
}

// AddEntities appends one row per item.
func AddEntities[T converter.Entity](m *DataModel, items []T) error {
	list := make([]converter.Entity, len(items))
	for i, it := range items {
		list[i] = it
	}
	return m.AddRows(list)
}

// ConvertedEntities fills one entity per row using the model's converter.
func (m *DataModel) ConvertedEntities(newEntity func() converter.Entity) ([]converter.Entity, error) {
	return m.converter().ConvertedEntities(m, newEntity)
}

// Entities is the typed form of ConvertedEntities.
func Entities[T converter.Entity](m *DataModel, newT func() T) ([]T, error) {
	list, err := m.ConvertedEntities(func() converter.Entity { return newT() })
	if err != nil {
		return nil, err
	}
	out := make([]T, len(list))
	for i, e := range list {
		out[i] = e.(T)
	}
	return out, nil
}
