// Package datawrapper implements DataWrapper, the flat request/response
// envelope. Values are nil, a string, or a *datamodel.DataModel. Models are
// copied on the way in and on the way out, so a caller never shares a live
// model with the envelope.
package datawrapper

import (
	"errors"
	"fmt"

	"github.com/r9s-ai/open-data-router/pkg/converter"
	"github.com/r9s-ai/open-data-router/pkg/datamodel"
)

// VerificationKey is always present, reads as "true" and is written to JSON
// as the boolean true. It cannot be written or removed.
const VerificationKey = "_isDataWrapper"

const verificationValue = "true"

var (
	ErrInvalidValue = errors.New("invalid data wrapper value")
	ErrReservedKey  = errors.New("reserved data wrapper key")
	ErrImmutableKey = errors.New("immutable data wrapper key")
	ErrKeyNotFound  = errors.New("data wrapper key not found")
	ErrInvalidJSON  = errors.New("data wrapper json must be an object")
)

// DataWrapper is an ordered flat map of envelope entries. The zero value is
// an empty envelope using the standard converter.
type DataWrapper struct {
	keys      []string
	values    map[string]any
	immutable map[string]bool
	conv      converter.Converter
}

type Option func(*DataWrapper)

// WithConverter sets the converter used for models decoded from JSON.
func WithConverter(c converter.Converter) Option {
	return func(w *DataWrapper) {
		if c != nil {
			w.conv = c
		}
	}
}

func New(opts ...Option) *DataWrapper {
	w := &DataWrapper{
		values:    map[string]any{},
		immutable: map[string]bool{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	if w.conv == nil {
		w.conv = converter.Standard()
	}
	return w
}

// NewWith returns an envelope holding one entry.
func NewWith(key string, value any, opts ...Option) (*DataWrapper, error) {
	w := New(opts...)
	if err := w.Put(key, value); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *DataWrapper) Converter() converter.Converter {
	if w.conv == nil {
		w.conv = converter.Standard()
	}
	return w.conv
}

// Put stores value under key. A model is stored as a clone.
func (w *DataWrapper) Put(key string, value any) error {
	if err := w.checkWritable(key); err != nil {
		return err
	}
	switch t := value.(type) {
	case nil:
		w.set(key, nil)
	case string:
		w.set(key, t)
	case *datamodel.DataModel:
		if t == nil {
			w.set(key, nil)
			return nil
		}
		w.set(key, t.Clone())
	default:
		return fmt.Errorf("%w: key %q holds %T", ErrInvalidValue, key, value)
	}
	return nil
}

func (w *DataWrapper) PutString(key, value string) error {
	return w.Put(key, value)
}

func (w *DataWrapper) PutModel(key string, m *datamodel.DataModel) error {
	return w.Put(key, m)
}

func (w *DataWrapper) set(key string, v any) {
	if w.values == nil {
		w.values = map[string]any{}
	}
	if _, ok := w.values[key]; !ok {
		w.keys = append(w.keys, key)
	}
	w.values[key] = v
}

func (w *DataWrapper) checkWritable(key string) error {
	switch {
	case key == "":
		return fmt.Errorf("%w: empty key", ErrInvalidValue)
	case key == VerificationKey:
		return fmt.Errorf("%w: %q", ErrReservedKey, key)
	case w.immutable[key]:
		return fmt.Errorf("%w: %q", ErrImmutableKey, key)
	}
	return nil
}

// Get returns the value under key. Models are returned as clones.
func (w *DataWrapper) Get(key string) (any, bool) {
	if key == VerificationKey {
		return verificationValue, true
	}
	v, ok := w.values[key]
	if !ok {
		return nil, false
	}
	if m, isModel := v.(*datamodel.DataModel); isModel {
		return m.Clone(), true
	}
	return v, true
}

// GetString returns the string under key. ok is false when the key is
// missing or holds nil or a model.
func (w *DataWrapper) GetString(key string) (string, bool) {
	v, ok := w.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetModel returns a clone of the model under key.
func (w *DataWrapper) GetModel(key string) (*datamodel.DataModel, bool) {
	v, ok := w.values[key]
	if !ok {
		return nil, false
	}
	m, ok := v.(*datamodel.DataModel)
	if !ok {
		return nil, false
	}
	return m.Clone(), true
}

func (w *DataWrapper) Has(key string) bool {
	if key == VerificationKey {
		return true
	}
	_, ok := w.values[key]
	return ok
}

// Keys returns all keys in insertion order, starting with VerificationKey.
func (w *DataWrapper) Keys() []string {
	out := make([]string, 0, len(w.keys)+1)
	out = append(out, VerificationKey)
	return append(out, w.keys...)
}

// Len counts the entries, including VerificationKey.
func (w *DataWrapper) Len() int { return len(w.keys) + 1 }

func (w *DataWrapper) Remove(key string) error {
	if err := w.checkWritable(key); err != nil {
		return err
	}
	if _, ok := w.values[key]; !ok {
		return nil
	}
	delete(w.values, key)
	for i, k := range w.keys {
		if k == key {
			w.keys = append(w.keys[:i], w.keys[i+1:]...)
			break
		}
	}
	return nil
}

// MarkImmutable blocks further writes and removal of an existing key.
func (w *DataWrapper) MarkImmutable(key string) error {
	if key == VerificationKey {
		return nil
	}
	if _, ok := w.values[key]; !ok {
		return fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	if w.immutable == nil {
		w.immutable = map[string]bool{}
	}
	w.immutable[key] = true
	return nil
}

func (w *DataWrapper) IsImmutable(key string) bool {
	return key == VerificationKey || w.immutable[key]
}

// Clone returns a deep copy, including the immutable key set.
func (w *DataWrapper) Clone() *DataWrapper {
	if w == nil {
		return nil
	}
	c := &DataWrapper{
		keys:      append([]string(nil), w.keys...),
		values:    make(map[string]any, len(w.values)),
		immutable: make(map[string]bool, len(w.immutable)),
		conv:      w.conv,
	}
	for k, v := range w.values {
		if m, ok := v.(*datamodel.DataModel); ok {
			v = m.Clone()
		}
		c.values[k] = v
	}
	for k := range w.immutable {
		c.immutable[k] = true
	}
	return c
}
