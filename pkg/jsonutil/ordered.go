package jsonutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

var ErrInvalidJSON = errors.New("invalid json")

// Object is a decoded JSON object that remembers the order of its keys.
// Duplicate keys keep their first position and the last value.
type Object struct {
	Keys   []string
	Values map[string]any
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{Values: map[string]any{}}
}

// ObjectFromMap builds an object from a Go map. Map iteration order is not
// stable, so keys are sorted.
func ObjectFromMap(m map[string]any) *Object {
	o := &Object{Keys: make([]string, 0, len(m)), Values: make(map[string]any, len(m))}
	for k, v := range m {
		o.Keys = append(o.Keys, k)
		o.Values[k] = v
	}
	sort.Strings(o.Keys)
	return o
}

func (o *Object) Get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.Values[key]
	return v, ok
}

func (o *Object) Set(key string, v any) {
	if o.Values == nil {
		o.Values = map[string]any{}
	}
	if _, ok := o.Values[key]; !ok {
		o.Keys = append(o.Keys, key)
	}
	o.Values[key] = v
}

func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.Keys)
}

// MarshalJSON writes the keys in their recorded order.
func (o *Object) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.Values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Parse decodes JSON into nil, bool, string, json.Number, []any or *Object.
// Numbers keep their literal text.
func Parse(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 || !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	return fromResult(gjson.ParseBytes(data)), nil
}

// ParseObject decodes data and requires a top-level object.
func ParseObject(data []byte) (*Object, error) {
	v, err := Parse(data)
	if err != nil {
		return nil, err
	}
	o, ok := v.(*Object)
	if !ok {
		return nil, errors.New("json value is not an object")
	}
	return o, nil
}

func fromResult(r gjson.Result) any {
	if r.IsObject() {
		o := NewObject()
		r.ForEach(func(k, v gjson.Result) bool {
			o.Set(k.String(), fromResult(v))
			return true
		})
		return o
	}
	if r.IsArray() {
		out := make([]any, 0)
		r.ForEach(func(_, v gjson.Result) bool {
			out = append(out, fromResult(v))
			return true
		})
		return out
	}
	switch r.Type {
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.Number:
		return json.Number(strings.TrimSpace(r.Raw))
	case gjson.String:
		return r.Str
	default:
		return nil
	}
}
