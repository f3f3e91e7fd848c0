// Package converter holds the value conversion rules shared by data models
// and envelopes: JSON value to row value, row value to entity field, entity
// field to row value, and the bulk conversions built on top of them.
//
// A Converter is chosen once at startup (see Lookup) and injected into the
// models that need it; there is no package-level mutable state.
package converter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/r9s-ai/open-data-router/pkg/jsonutil"
)

// DefaultDateFormat is the row representation of date-time values.
const DefaultDateFormat = "yyyy-MM-dd HH:mm:ss"

// DefaultParsePatterns are tried in order when a string is written into a
// time field.
var DefaultParsePatterns = []string{
	"yyyy-MM-dd HH:mm:ss",
	"yyyy-MM-dd'T'HH:mm:ssZZ",
	"yyyy-MM-dd'T'HH:mm:ss",
	"yyyy-MM-dd HH:mm",
	"yyyy-MM-dd",
	"yyyy/MM/dd HH:mm:ss",
	"yyyy/MM/dd",
}

// isoLayouts recognize textual ISO-8601 date-times coming from JSON.
var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// Table is the read view bulk conversions need. Row maps returned by RowAt
// must not be mutated by the converter.
type Table interface {
	ColumnNames() []string
	RowCount() int
	RowAt(i int) map[string]any
}

// Converter is the pluggable strategy for value conversion.
type Converter interface {
	// IsEntity reports whether v exposes an accessor table.
	IsEntity(v any) bool
	// JSONValueToRowValue converts a decoded JSON scalar into a row cell.
	JSONValueToRowValue(v any) (any, error)
	// RowValue normalizes a Go value written directly into a row.
	RowValue(v any) (any, error)
	// RowValueToEntityField converts a row cell into the Go type for kind.
	RowValueToEntityField(v any, kind Kind) (any, error)
	// EntityFieldToRowValue converts an entity field value into a row cell.
	EntityFieldToRowValue(v any) (any, error)
	// EntityToRow returns the column order and row cells for e.
	EntityToRow(e Entity) ([]string, map[string]any, error)
	// ConvertedEntities fills one entity per row.
	ConvertedEntities(t Table, newEntity func() Entity) ([]Entity, error)
	// ConvertedJSON renders the rows of t as a JSON array of objects.
	ConvertedJSON(t Table) ([]byte, error)
	// FormatTime renders t with the configured date format and zone.
	FormatTime(t time.Time) string
	// ParseTime tries the configured parse patterns in order.
	ParseTime(s string) (time.Time, error)
}

type Options struct {
	// DateFormat is a Joda-style pattern (yyyy-MM-dd HH:mm:ss) or a Go layout.
	DateFormat string
	// ParsePatterns are tried in order; the first one that parses wins.
	ParsePatterns []string
	// TimeZone is an IANA zone id. Empty keeps the local zone.
	TimeZone string
	// Strict rejects values with no conversion rule instead of
	// stringifying them.
	Strict bool
}

// Default implements Converter with the standard rule set.
type Default struct {
	dateFormat    string
	format        datePattern
	parsePatterns []datePattern
	loc           *time.Location
	strict        bool
}

var _ Converter = (*Default)(nil)

func New(opts Options) (*Default, error) {
	format := strings.TrimSpace(opts.DateFormat)
	if format == "" {
		format = DefaultDateFormat
	}
	patterns := opts.ParsePatterns
	if len(patterns) == 0 {
		patterns = DefaultParsePatterns
	}
	parse := make([]datePattern, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			parse = append(parse, datePattern(p))
		}
	}
	c := &Default{
		dateFormat:    format,
		format:        datePattern(format),
		parsePatterns: parse,
		strict:        opts.Strict,
	}
	if tz := strings.TrimSpace(opts.TimeZone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", tz, err)
		}
		c.loc = loc
	}
	return c, nil
}

// Standard returns a Default converter with default options.
func Standard() *Default {
	c, _ := New(Options{})
	return c
}

func (c *Default) DateFormat() string { return c.dateFormat }

func (c *Default) Location() *time.Location {
	if c.loc == nil {
		return time.Local
	}
	return c.loc
}

func (c *Default) IsEntity(v any) bool {
	_, ok := v.(Entity)
	return ok
}

func (c *Default) FormatTime(t time.Time) string {
	if c.loc != nil {
		t = t.In(c.loc)
	}
	return c.format.format(t)
}

func (c *Default) ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, p := range c.parsePatterns {
		t, err := p.parse(s, c.Location())
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, unparsable(s, KindTime.String(), lastErr)
}

func (c *Default) JSONValueToRowValue(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if ts, ok := c.parseISO(t); ok {
			return c.FormatTime(ts), nil
		}
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return jsonutil.FormatNumber(t), nil
	}
	return nil, unsupported(v, "row value")
}

func (c *Default) parseISO(s string) (time.Time, bool) {
	if len(s) < len("2006-01-02T15:04:05") || s[10] != 'T' {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, s, c.Location()); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (c *Default) RowValue(v any) (any, error) {
	switch t := v.(type) {
	case nil, string, bool:
		return v, nil
	case time.Time:
		if t.IsZero() {
			return nil, nil
		}
		return c.FormatTime(t), nil
	case *time.Time:
		if t == nil || t.IsZero() {
			return nil, nil
		}
		return c.FormatTime(*t), nil
	case *big.Float:
		if t == nil {
			return nil, nil
		}
		return new(big.Float).Copy(t), nil
	case *big.Int:
		if t == nil {
			return nil, nil
		}
		return new(big.Int).Set(t), nil
	case *big.Rat:
		if t == nil {
			return nil, nil
		}
		return new(big.Rat).Set(t), nil
	}
	if jsonutil.IsNumber(v) {
		return v, nil
	}
	return c.fallback(v, "row value")
}

func (c *Default) EntityFieldToRowValue(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case time.Time:
		if t.IsZero() {
			return nil, nil
		}
		return c.FormatTime(t), nil
	case *time.Time:
		if t == nil || t.IsZero() {
			return nil, nil
		}
		return c.FormatTime(*t), nil
	case *big.Float:
		if t == nil {
			return nil, nil
		}
		return t.Text('f', -1), nil
	case *big.Int:
		if t == nil {
			return nil, nil
		}
		return t.String(), nil
	case *big.Rat:
		if t == nil {
			return nil, nil
		}
		return t.RatString(), nil
	}
	if jsonutil.IsNumber(v) {
		return jsonutil.FormatNumber(v), nil
	}
	return c.fallback(v, "row value")
}

func (c *Default) fallback(v any, target string) (any, error) {
	if c.strict {
		return nil, unsupported(v, target)
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String(), nil
	}
	return fmt.Sprint(v), nil
}

func (c *Default) RowValueToEntityField(v any, kind Kind) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return c.stringToField(t, kind)
	case bool:
		switch kind {
		case KindBool:
			return t, nil
		case KindString:
			return strconv.FormatBool(t), nil
		}
		return nil, unsupported(v, kind.String())
	case time.Time:
		switch kind {
		case KindTime:
			return t, nil
		case KindString:
			return c.FormatTime(t), nil
		}
		return nil, unsupported(v, kind.String())
	}
	if jsonutil.IsNumber(v) {
		return c.numberToField(v, kind)
	}
	return nil, unsupported(v, kind.String())
}

func (c *Default) stringToField(s string, kind Kind) (any, error) {
	trimmed := strings.TrimSpace(s)
	switch kind {
	case KindString:
		return s, nil
	case KindInt:
		n, err := strconv.Atoi(trimmed)
		if err != nil {
			return nil, unparsable(s, kind.String(), err)
		}
		return n, nil
	case KindInt64:
		n, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return nil, unparsable(s, kind.String(), err)
		}
		return n, nil
	case KindFloat64:
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, unparsable(s, kind.String(), err)
		}
		return f, nil
	case KindDecimal:
		return parseDecimal(trimmed)
	case KindBool:
		b, err := strconv.ParseBool(trimmed)
		if err != nil {
			return nil, unparsable(s, kind.String(), err)
		}
		return b, nil
	case KindTime:
		return c.ParseTime(trimmed)
	}
	return nil, unsupported(s, kind.String())
}

func (c *Default) numberToField(v any, kind Kind) (any, error) {
	switch kind {
	case KindInt:
		n, ok := jsonutil.ToInt64(v)
		if !ok || int64(int(n)) != n {
			return nil, unsupported(v, kind.String())
		}
		return int(n), nil
	case KindInt64:
		n, ok := jsonutil.ToInt64(v)
		if !ok {
			return nil, unsupported(v, kind.String())
		}
		return n, nil
	case KindFloat64:
		f, ok := jsonutil.ToFloat(v)
		if !ok {
			return nil, unsupported(v, kind.String())
		}
		return f, nil
	case KindDecimal:
		if d, ok := v.(*big.Float); ok {
			return new(big.Float).Copy(d), nil
		}
		// Build from the exact decimal text, not from a binary float.
		return parseDecimal(jsonutil.FormatNumber(v))
	case KindString:
		return jsonutil.FormatNumber(v), nil
	}
	return nil, unsupported(v, kind.String())
}

const decimalPrec = 256

func parseDecimal(s string) (*big.Float, error) {
	d, _, err := big.ParseFloat(s, 10, decimalPrec, big.ToNearestEven)
	if err != nil {
		return nil, unparsable(s, KindDecimal.String(), err)
	}
	return d, nil
}

func (c *Default) EntityToRow(e Entity) ([]string, map[string]any, error) {
	fields := e.Fields()
	cols := make([]string, 0, len(fields))
	row := make(map[string]any, len(fields))
	for _, f := range fields {
		v, err := c.EntityFieldToRowValue(f.Get())
		if err != nil {
			return nil, nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		if _, dup := row[f.Name]; !dup {
			cols = append(cols, f.Name)
		}
		row[f.Name] = v
	}
	return cols, row, nil
}

func (c *Default) ConvertedEntities(t Table, newEntity func() Entity) ([]Entity, error) {
	n := t.RowCount()
	out := make([]Entity, 0, n)
	for i := 0; i < n; i++ {
		row := t.RowAt(i)
		e := newEntity()
		for _, f := range e.Fields() {
			v, ok := row[f.Name]
			if !ok {
				continue
			}
			fv, err := c.RowValueToEntityField(v, f.Kind)
			if err != nil {
				return nil, fmt.Errorf("row %d field %q: %w", i, f.Name, err)
			}
			f.Set(fv)
		}
		out = append(out, e)
	}
	return out, nil
}

func (c *Default) ConvertedJSON(t Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.writeRows(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Default) writeRows(buf *bytes.Buffer, t Table) error {
	cols := t.ColumnNames()
	buf.WriteByte('[')
	for i := 0; i < t.RowCount(); i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		row := t.RowAt(i)
		buf.WriteByte('{')
		for j, col := range cols {
			if j > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(col)
			buf.Write(kb)
			buf.WriteByte(':')
			if err := c.writeValue(buf, row[col]); err != nil {
				return fmt.Errorf("row %d column %q: %w", i, col, err)
			}
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return nil
}

func (c *Default) writeValue(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case Table:
		return c.writeRows(buf, t)
	case time.Time:
		v = c.FormatTime(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return unsupported(v, "json number")
		}
	case float32:
		if math.IsNaN(float64(t)) || math.IsInf(float64(t), 0) {
			return unsupported(v, "json number")
		}
	case *big.Float:
		if t == nil {
			buf.WriteString("null")
			return nil
		}
		if t.IsInf() {
			return unsupported(v, "json number")
		}
	case *big.Int:
		if t == nil {
			buf.WriteString("null")
			return nil
		}
	case *big.Rat:
		if t == nil {
			buf.WriteString("null")
			return nil
		}
		if !t.IsInt() {
			f, _ := t.Float64()
			buf.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
			return nil
		}
	}
	if jsonutil.IsNumber(v) {
		buf.WriteString(jsonutil.FormatNumber(v))
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}
