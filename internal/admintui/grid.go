// Package admintui renders envelopes and models for odr-admin: static text
// tables and an interactive viewer.
package admintui

import (
	"fmt"

	"github.com/r9s-ai/open-data-router/pkg/datamodel"
	"github.com/r9s-ai/open-data-router/pkg/datawrapper"
)

// Grid is one table of display text.
type Grid struct {
	Title   string
	Columns []string
	Rows    [][]string
}

// GridFromModel copies m into a Grid; nested models are shown as JSON.
func GridFromModel(title string, m *datamodel.DataModel) (Grid, error) {
	g := Grid{Title: title, Columns: m.Columns()}
	for i := 0; i < m.RowCount(); i++ {
		row := make([]string, len(g.Columns))
		for j, col := range g.Columns {
			s, err := m.StringValue(i, col)
			if err != nil {
				return Grid{}, fmt.Errorf("%s row %d: %w", title, i, err)
			}
			row[j] = s
		}
		g.Rows = append(g.Rows, row)
	}
	return g, nil
}

// GridsFromEnvelope returns the scalar entries of w as a key/value grid
// followed by one grid per model entry, in key order.
func GridsFromEnvelope(w *datawrapper.DataWrapper) ([]Grid, error) {
	scalars := Grid{Title: "envelope", Columns: []string{"key", "value"}}
	var models []Grid
	for _, k := range w.Keys() {
		if k == datawrapper.VerificationKey {
			continue
		}
		if m, ok := w.GetModel(k); ok {
			g, err := GridFromModel(k, m)
			if err != nil {
				return nil, err
			}
			models = append(models, g)
			continue
		}
		v, _ := w.GetString(k)
		scalars.Rows = append(scalars.Rows, []string{k, v})
	}
	if len(scalars.Rows) == 0 {
		return models, nil
	}
	return append([]Grid{scalars}, models...), nil
}

// ParseGrids accepts either an envelope object or a bare model (row array or
// the standalone columns/rows form).
func ParseGrids(data []byte) ([]Grid, error) {
	w, err := datawrapper.FromJSON(data)
	if err == nil && !isStandaloneModel(w) {
		return GridsFromEnvelope(w)
	}
	m, merr := datamodel.FromJSON(data)
	if merr != nil {
		if err != nil {
			return nil, err
		}
		return nil, merr
	}
	g, err := GridFromModel("model", m)
	if err != nil {
		return nil, err
	}
	return []Grid{g}, nil
}

func isStandaloneModel(w *datawrapper.DataWrapper) bool {
	_, cols := w.GetModel("columns")
	_, rows := w.GetModel("rows")
	return cols && rows && w.Has("rowCount")
}
