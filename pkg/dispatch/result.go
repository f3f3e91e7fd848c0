package dispatch

import (
	"fmt"

	"github.com/r9s-ai/open-data-router/pkg/converter"
	"github.com/r9s-ai/open-data-router/pkg/datamodel"
	"github.com/r9s-ai/open-data-router/pkg/datawrapper"
)

// ResultKey holds a handler result that is not already an envelope.
const ResultKey = "result"

// WrapResult turns a handler result into the response envelope. Envelopes
// pass through and nil gives an empty envelope. Strings, models, entities and
// row maps are stored under ResultKey; other scalars are stored as text.
func WrapResult(v any, conv converter.Converter) (*datawrapper.DataWrapper, error) {
	if conv == nil {
		conv = converter.Standard()
	}
	opts := []datamodel.Option{datamodel.WithConverter(conv)}
	var val any
	switch t := v.(type) {
	case nil:
		return datawrapper.New(datawrapper.WithConverter(conv)), nil
	case *datawrapper.DataWrapper:
		if t == nil {
			return datawrapper.New(datawrapper.WithConverter(conv)), nil
		}
		return t, nil
	case string, *datamodel.DataModel:
		val = t
	case converter.Entity:
		m, err := datamodel.FromEntity(t, opts...)
		if err != nil {
			return nil, err
		}
		val = m
	case []converter.Entity:
		m := datamodel.New(opts...)
		if err := m.AddRows(t); err != nil {
			return nil, err
		}
		val = m
	case map[string]any:
		m, err := datamodel.FromMap(t, opts...)
		if err != nil {
			return nil, err
		}
		val = m
	case []map[string]any:
		m, err := datamodel.FromMaps(t, opts...)
		if err != nil {
			return nil, err
		}
		val = m
	default:
		rv, err := conv.EntityFieldToRowValue(v)
		if err != nil {
			return nil, fmt.Errorf("wrap result %T: %w", v, err)
		}
		val = rv
	}
	w := datawrapper.New(datawrapper.WithConverter(conv))
	if err := w.Put(ResultKey, val); err != nil {
		return nil, err
	}
	return w, nil
}
