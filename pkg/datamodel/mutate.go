package datamodel

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/r9s-ai/open-data-router/pkg/converter"
	"github.com/r9s-ai/open-data-router/pkg/jsonutil"
)

// cellFunc converts one raw input value into a row cell.
type cellFunc func(v any) (any, error)

// AddColumn appends a column; existing rows get nil in it.
func (m *DataModel) AddColumn(name string) error {
	return m.InsertColumn(len(m.columns), name)
}

// AddColumns appends several columns. Nothing is added if any name is
// invalid or already present.
func (m *DataModel) AddColumns(names ...string) error {
	if err := m.checkStructure("add columns"); err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, n := range names {
		if n == "" {
			return fmt.Errorf("%w: empty column name", ErrInvalidValue)
		}
		if m.HasColumn(n) || seen[n] {
			return fmt.Errorf("%w: %q", ErrDuplicateColumn, n)
		}
		seen[n] = true
	}
	for _, n := range names {
		m.appendColumn(len(m.columns), n)
	}
	return nil
}

// InsertColumn places a new column at position index (0..ColumnCount).
func (m *DataModel) InsertColumn(index int, name string) error {
	if err := m.checkStructure("insert column"); err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("%w: empty column name", ErrInvalidValue)
	}
	if m.HasColumn(name) {
		return fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
	}
	if index < 0 || index > len(m.columns) {
		return fmt.Errorf("%w: column index %d (columns: %d)", ErrInvalidValue, index, len(m.columns))
	}
	m.appendColumn(index, name)
	return nil
}

func (m *DataModel) appendColumn(index int, name string) {
	m.columns = append(m.columns, "")
	copy(m.columns[index+1:], m.columns[index:])
	m.columns[index] = name
	m.reindex()
	for _, r := range m.rows {
		r[name] = nil
	}
}

func (m *DataModel) RemoveColumn(name string) error {
	return m.RemoveColumns(name)
}

// RemoveColumns drops the named columns and their cells. Every name must exist.
func (m *DataModel) RemoveColumns(names ...string) error {
	if err := m.checkStructure("remove columns"); err != nil {
		return err
	}
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		if !m.HasColumn(n) {
			return fmt.Errorf("%w: %q", ErrColumnNotFound, n)
		}
		drop[n] = true
	}
	m.retain(func(c string) bool { return !drop[c] })
	return nil
}

// SetValidColumns keeps only the named columns, in their current order.
func (m *DataModel) SetValidColumns(names ...string) error {
	if err := m.checkStructure("set valid columns"); err != nil {
		return err
	}
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		if !m.HasColumn(n) {
			return fmt.Errorf("%w: %q", ErrColumnNotFound, n)
		}
		keep[n] = true
	}
	m.retain(func(c string) bool { return keep[c] })
	return nil
}

func (m *DataModel) retain(keep func(string) bool) {
	cols := m.columns[:0]
	var dropped []string
	for _, c := range m.columns {
		if keep(c) {
			cols = append(cols, c)
		} else {
			dropped = append(dropped, c)
		}
	}
	m.columns = cols
	m.reindex()
	for _, r := range m.rows {
		for _, c := range dropped {
			delete(r, c)
		}
	}
}

func (m *DataModel) SortColumnAscending() error {
	if err := m.checkStructure("sort columns"); err != nil {
		return err
	}
	sort.Strings(m.columns)
	m.reindex()
	return nil
}

func (m *DataModel) SortColumnDescending() error {
	if err := m.checkStructure("sort columns"); err != nil {
		return err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(m.columns)))
	m.reindex()
	return nil
}

func (m *DataModel) ReverseColumns() error {
	if err := m.checkStructure("reverse columns"); err != nil {
		return err
	}
	for i, j := 0, len(m.columns)-1; i < j; i, j = i+1, j-1 {
		m.columns[i], m.columns[j] = m.columns[j], m.columns[i]
	}
	m.reindex()
	return nil
}

// Clear drops every row and keeps the columns. It is a structural change:
// FreezeValues alone does not block it.
func (m *DataModel) Clear() error {
	if err := m.checkStructure("clear"); err != nil {
		return err
	}
	m.rows = nil
	return nil
}

// AddRow appends a row. Keys must be existing columns unless the model has
// none yet, in which case the keys (sorted) become the columns. Missing keys
// become nil.
func (m *DataModel) AddRow(row map[string]any) error {
	return m.AddRowAt(len(m.rows), row)
}

// AddRowAt inserts a row at position index (0..RowCount).
func (m *DataModel) AddRowAt(index int, row map[string]any) error {
	if err := m.checkValues("add row"); err != nil {
		return err
	}
	return m.insertRow(index, sortedKeys(row), row, m.cell)
}

// InsertRow inserts a row at position index. Unlike AddRowAt it counts as a
// structural change, so it is blocked by Freeze but not by FreezeValues.
func (m *DataModel) InsertRow(index int, row map[string]any) error {
	if err := m.checkStructure("insert row"); err != nil {
		return err
	}
	return m.insertRow(index, sortedKeys(row), row, m.cell)
}

// AddEntity appends the row built from e's accessor table.
func (m *DataModel) AddEntity(e converter.Entity) error {
	if err := m.checkValues("add row"); err != nil {
		return err
	}
	cols, row, err := m.converter().EntityToRow(e)
	if err != nil {
		return err
	}
	return m.insertRow(len(m.rows), cols, row, m.cell)
}

// AddRows appends every row of src. Accepted shapes: map[string]any,
// []map[string]any, []any of maps or JSON objects, *jsonutil.Object,
// raw JSON ([]byte, json.RawMessage), converter.Entity,
// []converter.Entity and *DataModel. On failure the model is left as it was.
func (m *DataModel) AddRows(src any) error {
	if err := m.checkValues("add rows"); err != nil {
		return err
	}
	if src == nil {
		return nil
	}
	savedCols := m.columns
	savedRows := len(m.rows)
	m.columns = append([]string(nil), m.columns...)
	if err := m.addRows(src); err != nil {
		m.columns = savedCols
		m.reindex()
		m.rows = m.rows[:savedRows]
		return err
	}
	return nil
}

func (m *DataModel) addRows(src any) error {
	switch t := src.(type) {
	case map[string]any:
		return m.insertRow(len(m.rows), sortedKeys(t), t, m.cell)
	case []map[string]any:
		keyed := make([]keyedRow, len(t))
		for i, r := range t {
			keyed[i] = keyedRow{keys: sortedKeys(r), values: r}
		}
		return m.addKeyed(keyed)
	case *jsonutil.Object:
		return m.insertRow(len(m.rows), t.Keys, t.Values, m.jsonCell)
	case []any:
		return m.addJSONArray(t)
	case []byte:
		return m.addRawJSON(t)
	case json.RawMessage:
		return m.addRawJSON(t)
	case *DataModel:
		for _, r := range t.rows {
			if err := m.insertRow(len(m.rows), t.columns, r, m.cell); err != nil {
				return err
			}
		}
		return nil
	case converter.Entity:
		cols, row, err := m.converter().EntityToRow(t)
		if err != nil {
			return err
		}
		return m.insertRow(len(m.rows), cols, row, m.cell)
	case []converter.Entity:
		for i, e := range t {
			cols, row, err := m.converter().EntityToRow(e)
			if err != nil {
				return fmt.Errorf("entity %d: %w", i, err)
			}
			if err := m.insertRow(len(m.rows), cols, row, m.cell); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: unsupported rows type %T", ErrInvalidSource, src)
}

func (m *DataModel) addRawJSON(data []byte) error {
	v, err := jsonutil.Parse(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	switch t := v.(type) {
	case *jsonutil.Object:
		return m.insertRow(len(m.rows), t.Keys, t.Values, m.jsonCell)
	case []any:
		return m.addJSONArray(t)
	}
	return fmt.Errorf("%w: json rows must be an object or an array", ErrInvalidSource)
}

// addJSONArray adds decoded JSON elements. Scalar elements become rows of a
// single ScalarColumn.
func (m *DataModel) addJSONArray(items []any) error {
	keyed := make([]keyedRow, 0, len(items))
	for _, it := range items {
		switch t := it.(type) {
		case *jsonutil.Object:
			keyed = append(keyed, keyedRow{keys: t.Keys, values: t.Values, json: true})
		case map[string]any:
			keyed = append(keyed, keyedRow{keys: sortedKeys(t), values: t})
		default:
			keyed = append(keyed, keyedRow{
				keys:   []string{ScalarColumn},
				values: map[string]any{ScalarColumn: it},
				json:   true,
			})
		}
	}
	return m.addKeyed(keyed)
}

// ScalarColumn names the column used when a JSON array holds scalars.
const ScalarColumn = "value"

type keyedRow struct {
	keys   []string
	values map[string]any
	json   bool
}

func (m *DataModel) addKeyed(rows []keyedRow) error {
	m.seedUnion(rows)
	for i, r := range rows {
		cell := m.cell
		if r.json {
			cell = m.jsonCell
		}
		if err := m.insertRow(len(m.rows), r.keys, r.values, cell); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}

// seedUnion gives an empty model the union of all row keys, in first-seen
// order, so rows with missing keys still line up.
func (m *DataModel) seedUnion(rows []keyedRow) {
	if len(m.columns) > 0 {
		return
	}
	if m.index == nil {
		m.index = map[string]int{}
	}
	for _, r := range rows {
		for _, k := range r.keys {
			if k == "" {
				continue
			}
			if _, ok := m.index[k]; !ok {
				m.index[k] = len(m.columns)
				m.columns = append(m.columns, k)
			}
		}
	}
	for _, r := range m.rows {
		for _, c := range m.columns {
			if _, ok := r[c]; !ok {
				r[c] = nil
			}
		}
	}
}

// insertRow validates and inserts one row. keys gives the column order used
// to seed an empty model.
func (m *DataModel) insertRow(index int, keys []string, values map[string]any, cell cellFunc) error {
	if index < 0 || index > len(m.rows) {
		return fmt.Errorf("%w: %d (rows: %d)", ErrRowIndexOutOfRange, index, len(m.rows))
	}
	cols := m.columns
	seeding := len(cols) == 0
	if seeding {
		seen := make(map[string]bool, len(keys))
		for _, k := range keys {
			if k == "" {
				return fmt.Errorf("%w: empty column name", ErrInvalidValue)
			}
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	} else {
		for k := range values {
			if !m.HasColumn(k) {
				return fmt.Errorf("%w: %q", ErrColumnNotFound, k)
			}
		}
	}

	row := make(map[string]any, len(cols))
	for _, c := range cols {
		v, err := cell(values[c])
		if err != nil {
			return fmt.Errorf("column %q: %w", c, err)
		}
		row[c] = v
	}
	if n := len(m.rows); n > 0 {
		last := m.rows[n-1]
		for _, c := range cols {
			if !sameType(row[c], last[c]) {
				return fmt.Errorf("%w: column %q holds %T, got %T", ErrTypeMismatch, c, last[c], row[c])
			}
		}
	}

	if seeding {
		m.columns = cols
		m.reindex()
		for _, r := range m.rows {
			for _, c := range cols {
				r[c] = nil
			}
		}
	}
	m.rows = append(m.rows, nil)
	copy(m.rows[index+1:], m.rows[index:])
	m.rows[index] = row
	return nil
}

// SetValue replaces one cell. The new value must match the type of every
// other non-nil cell in the column. Setting nil on a missing column is a
// no-op; any other value on a missing column fails.
func (m *DataModel) SetValue(row int, column string, value any) error {
	if err := m.checkValues("set value"); err != nil {
		return err
	}
	if !m.HasColumn(column) {
		if value == nil {
			return nil
		}
		return fmt.Errorf("%w: %q", ErrColumnNotFound, column)
	}
	if err := m.checkRow(row); err != nil {
		return err
	}
	v, err := m.cell(value)
	if err != nil {
		return fmt.Errorf("column %q: %w", column, err)
	}
	for i, r := range m.rows {
		if i != row && !sameType(v, r[column]) {
			return fmt.Errorf("%w: column %q holds %T, got %T", ErrTypeMismatch, column, r[column], v)
		}
	}
	m.rows[row][column] = v
	return nil
}

func (m *DataModel) RemoveRow(row int) error {
	if err := m.checkValues("remove row"); err != nil {
		return err
	}
	if err := m.checkRow(row); err != nil {
		return err
	}
	m.rows = append(m.rows[:row], m.rows[row+1:]...)
	return nil
}

// cell normalizes a Go value. Maps, slices of maps and entities become
// nested models; nested models are cloned.
func (m *DataModel) cell(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case *DataModel:
		if t == nil {
			return nil, nil
		}
		return t.Clone(), nil
	case converter.Entity:
		return FromEntity(t, WithConverter(m.conv))
	case map[string]any:
		return FromMap(t, WithConverter(m.conv))
	case []map[string]any:
		return FromMaps(t, WithConverter(m.conv))
	case *jsonutil.Object, []any:
		return m.jsonCell(v)
	}
	rv, err := m.converter().RowValue(v)
	if err != nil {
		return nil, err
	}
	if rv != nil && !isCellType(rv) {
		return nil, fmt.Errorf("%w: %T", ErrInvalidValue, rv)
	}
	return rv, nil
}

// jsonCell converts a decoded JSON value. Objects and arrays become nested
// models, scalars go through the converter.
func (m *DataModel) jsonCell(v any) (any, error) {
	switch t := v.(type) {
	case *jsonutil.Object:
		sub := New(WithConverter(m.conv))
		if t.Len() == 0 {
			return sub, nil
		}
		if err := sub.insertRow(0, t.Keys, t.Values, sub.jsonCell); err != nil {
			return nil, err
		}
		return sub, nil
	case []any:
		sub := New(WithConverter(m.conv))
		if err := sub.addJSONArray(t); err != nil {
			return nil, err
		}
		return sub, nil
	}
	return m.converter().JSONValueToRowValue(v)
}

func isCellType(v any) bool {
	switch v.(type) {
	case string, bool, *DataModel:
		return true
	}
	return jsonutil.IsNumber(v)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
