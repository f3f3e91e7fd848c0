package datawrapper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/r9s-ai/open-data-router/pkg/datamodel"
	"github.com/r9s-ai/open-data-router/pkg/jsonutil"
)

// MarshalJSON writes a flat object: VerificationKey as true, strings and nil
// as JSON strings and null, models as their row arrays.
func (w *DataWrapper) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"` + VerificationKey + `":true`)
	for _, k := range w.keys {
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(kb)
		buf.WriteByte(':')
		switch v := w.values[k].(type) {
		case nil:
			buf.WriteString("null")
		case string:
			vb, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		case *datamodel.DataModel:
			rows, err := v.ConvertedJSON()
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			buf.Write(rows)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON replaces the content with the decoded object. Immutable keys
// must be present with their current value and stay immutable; otherwise
// ErrImmutableKey is returned and w is left as it was. The converter is kept.
func (w *DataWrapper) UnmarshalJSON(data []byte) error {
	parsed, err := FromJSON(data, WithConverter(w.conv))
	if err != nil {
		return err
	}
	for _, k := range w.keys {
		if !w.immutable[k] {
			continue
		}
		v, ok := parsed.values[k]
		if !ok || !sameValue(w.values[k], v) {
			return fmt.Errorf("%w: %q", ErrImmutableKey, k)
		}
		parsed.immutable[k] = true
	}
	*w = *parsed
	return nil
}

// sameValue reports whether two envelope values are equal. Models compare
// by their JSON rows, which is how they travel.
func sameValue(a, b any) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case string:
		y, ok := b.(string)
		return ok && x == y
	case *datamodel.DataModel:
		y, ok := b.(*datamodel.DataModel)
		if !ok {
			return false
		}
		if x.Equal(y) {
			return true
		}
		xb, err := x.ConvertedJSON()
		if err != nil {
			return false
		}
		yb, err := y.ConvertedJSON()
		return err == nil && bytes.Equal(xb, yb)
	}
	return false
}

// FromJSON decodes an envelope. The top-level value must be an object.
// Scalars become strings, objects and arrays become models, and
// VerificationKey is skipped. A nested object is always one row, even when
// it looks like the standalone {"columns","rows"} form.
func FromJSON(data []byte, opts ...Option) (*DataWrapper, error) {
	v, err := jsonutil.Parse(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*jsonutil.Object)
	if !ok {
		return nil, ErrInvalidJSON
	}
	w := New(opts...)
	for _, k := range obj.Keys {
		if k == VerificationKey {
			continue
		}
		val, err := w.fromJSONValue(obj.Values[k])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		if err := w.Put(k, val); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func (w *DataWrapper) fromJSONValue(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case json.Number:
		return t.String(), nil
	case *jsonutil.Object, []any:
		return datamodel.FromJSONRows(t, datamodel.WithConverter(w.conv))
	}
	return nil, fmt.Errorf("%w: %T", ErrInvalidValue, v)
}

// FromValues builds an envelope from plain values, e.g. query parameters.
// Keys are added in sorted order. Values that are maps, slices of maps or
// entities are turned into models.
func FromValues(values map[string]any, opts ...Option) (*DataWrapper, error) {
	w := New(opts...)
	obj := jsonutil.ObjectFromMap(values)
	for _, k := range obj.Keys {
		if k == VerificationKey {
			continue
		}
		var val any
		switch t := obj.Values[k].(type) {
		case nil, string, *datamodel.DataModel:
			val = t
		case map[string]any:
			m, err := datamodel.FromMap(t, datamodel.WithConverter(w.conv))
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			val = m
		case []map[string]any:
			m, err := datamodel.FromMaps(t, datamodel.WithConverter(w.conv))
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			val = m
		default:
			rv, err := w.conv.EntityFieldToRowValue(t)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			val = rv
		}
		if err := w.Put(k, val); err != nil {
			return nil, err
		}
	}
	return w, nil
}
