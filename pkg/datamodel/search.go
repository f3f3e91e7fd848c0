package datamodel

import "fmt"

// Condition is one equality term of a search. Terms passed together are
// AND-combined. A nil Value matches only nil cells.
type Condition struct {
	Key   string
	Value any
}

func Cond(key string, value any) Condition {
	return Condition{Key: key, Value: value}
}

// Predicate decides whether a row is kept by the Filter operations. The row
// passed in is a copy.
type Predicate func(row map[string]any) bool

// SearchRowIndexes returns the indexes of rows matching every condition, or,
// with match=false, of rows failing at least one.
func (m *DataModel) SearchRowIndexes(match bool, conds ...Condition) ([]int, error) {
	terms, err := m.normalizeConditions(conds)
	if err != nil {
		return nil, err
	}
	out := make([]int, 0)
	for i, r := range m.rows {
		if matchesAll(r, terms) == match {
			out = append(out, i)
		}
	}
	return out, nil
}

func (m *DataModel) SearchRows(match bool, conds ...Condition) ([]map[string]any, error) {
	idx, err := m.SearchRowIndexes(match, conds...)
	if err != nil {
		return nil, err
	}
	return m.rowsAt(idx), nil
}

// SearchRowsAsDataModel returns the selected rows as a new, unfrozen model
// with the same columns.
func (m *DataModel) SearchRowsAsDataModel(match bool, conds ...Condition) (*DataModel, error) {
	idx, err := m.SearchRowIndexes(match, conds...)
	if err != nil {
		return nil, err
	}
	return m.subset(idx), nil
}

// SearchAndModify keeps only the selected rows.
func (m *DataModel) SearchAndModify(match bool, conds ...Condition) error {
	if err := m.checkValues("search and modify"); err != nil {
		return err
	}
	idx, err := m.SearchRowIndexes(match, conds...)
	if err != nil {
		return err
	}
	m.keepRows(idx)
	return nil
}

func (m *DataModel) FilterRowIndexes(pred Predicate) []int {
	out := make([]int, 0)
	if pred == nil {
		return out
	}
	for i, r := range m.rows {
		if pred(copyRow(r)) {
			out = append(out, i)
		}
	}
	return out
}

func (m *DataModel) FilterRows(pred Predicate) []map[string]any {
	return m.rowsAt(m.FilterRowIndexes(pred))
}

func (m *DataModel) FilterRowsAsDataModel(pred Predicate) *DataModel {
	return m.subset(m.FilterRowIndexes(pred))
}

// FilterAndModify keeps only the rows pred accepts.
func (m *DataModel) FilterAndModify(pred Predicate) error {
	if err := m.checkValues("filter and modify"); err != nil {
		return err
	}
	m.keepRows(m.FilterRowIndexes(pred))
	return nil
}

func (m *DataModel) normalizeConditions(conds []Condition) ([]Condition, error) {
	out := make([]Condition, len(conds))
	for i, c := range conds {
		if !m.HasColumn(c.Key) {
			return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, c.Key)
		}
		v, err := m.cell(c.Value)
		if err != nil {
			return nil, fmt.Errorf("condition %q: %w", c.Key, err)
		}
		out[i] = Condition{Key: c.Key, Value: v}
	}
	return out, nil
}

func matchesAll(row map[string]any, terms []Condition) bool {
	for _, t := range terms {
		if !valuesEqual(row[t.Key], t.Value) {
			return false
		}
	}
	return true
}

func (m *DataModel) rowsAt(idx []int) []map[string]any {
	out := make([]map[string]any, len(idx))
	for i, n := range idx {
		out[i] = copyRow(m.rows[n])
	}
	return out
}

func (m *DataModel) subset(idx []int) *DataModel {
	sub := m.emptyLike()
	sub.rows = m.rowsAt(idx)
	return sub
}

func (m *DataModel) keepRows(idx []int) {
	kept := make([]map[string]any, len(idx))
	for i, n := range idx {
		kept[i] = m.rows[n]
	}
	m.rows = kept
}
