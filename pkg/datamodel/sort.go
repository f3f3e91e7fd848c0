package datamodel

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/r9s-ai/open-data-router/pkg/jsonutil"
)

type sortFamily int

const (
	familyNone sortFamily = iota
	familyString
	familyBool
	familyNumber
)

func (f sortFamily) String() string {
	switch f {
	case familyString:
		return "string"
	case familyBool:
		return "bool"
	case familyNumber:
		return "number"
	}
	return "none"
}

type sortKey struct {
	null bool
	str  string
	b    bool
	num  *big.Float
}

// SortRowAscending orders rows by column. Nil cells go last. With numeric
// set, string cells are compared as numbers.
func (m *DataModel) SortRowAscending(column string, numeric bool) error {
	return m.sortRows(column, numeric, false)
}

// SortRowDescending orders rows by column in reverse. Nil cells go first.
func (m *DataModel) SortRowDescending(column string, numeric bool) error {
	return m.sortRows(column, numeric, true)
}

func (m *DataModel) sortRows(column string, numeric, desc bool) error {
	if err := m.checkValues("sort rows"); err != nil {
		return err
	}
	if !m.HasColumn(column) {
		return fmt.Errorf("%w: %q", ErrColumnNotFound, column)
	}
	keys, family, err := m.sortKeys(column, numeric)
	if err != nil {
		return err
	}

	order := make([]int, len(m.rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := keys[order[i]], keys[order[j]]
		if a.null || b.null {
			if desc {
				return a.null && !b.null
			}
			return !a.null && b.null
		}
		c := compareKeys(a, b, family)
		if desc {
			return c > 0
		}
		return c < 0
	})

	sorted := make([]map[string]any, len(order))
	for i, n := range order {
		sorted[i] = m.rows[n]
	}
	m.rows = sorted
	return nil
}

func (m *DataModel) sortKeys(column string, numeric bool) ([]sortKey, sortFamily, error) {
	keys := make([]sortKey, len(m.rows))
	family := familyNone
	for i, r := range m.rows {
		v := r[column]
		if v == nil {
			keys[i].null = true
			continue
		}
		var f sortFamily
		switch t := v.(type) {
		case string:
			if numeric {
				n, _, err := big.ParseFloat(strings.TrimSpace(t), 10, 256, big.ToNearestEven)
				if err != nil {
					return nil, 0, fmt.Errorf("%w: row %d value %q is not numeric", ErrSortData, i, t)
				}
				keys[i].num = n
				f = familyNumber
			} else {
				keys[i].str = t
				f = familyString
			}
		case bool:
			keys[i].b = t
			f = familyBool
		default:
			if !jsonutil.IsNumber(v) {
				return nil, 0, fmt.Errorf("%w: row %d holds %T", ErrSortData, i, v)
			}
			n, _, err := big.ParseFloat(jsonutil.FormatNumber(v), 10, 256, big.ToNearestEven)
			if err != nil {
				return nil, 0, fmt.Errorf("%w: row %d: %v", ErrSortData, i, err)
			}
			keys[i].num = n
			f = familyNumber
		}
		if family == familyNone {
			family = f
		} else if family != f {
			return nil, 0, fmt.Errorf("%w: column %q mixes %s and %s values", ErrSortData, column, family, f)
		}
	}
	return keys, family, nil
}

func compareKeys(a, b sortKey, family sortFamily) int {
	switch family {
	case familyString:
		return strings.Compare(a.str, b.str)
	case familyBool:
		switch {
		case a.b == b.b:
			return 0
		case !a.b:
			return -1
		default:
			return 1
		}
	case familyNumber:
		return a.num.Cmp(b.num)
	}
	return 0
}
