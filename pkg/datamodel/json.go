package datamodel

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/r9s-ai/open-data-router/pkg/jsonutil"
)

// ConvertedJSON renders the rows as a JSON array of objects. This is the form
// used when the model is nested inside another value.
func (m *DataModel) ConvertedJSON() ([]byte, error) {
	return m.converter().ConvertedJSON(m)
}

// MarshalJSON writes the standalone form:
// {"columns":[...],"rows":[...],"columnCount":n,"rowCount":m}.
func (m *DataModel) MarshalJSON() ([]byte, error) {
	rows, err := m.ConvertedJSON()
	if err != nil {
		return nil, err
	}
	cols, err := json.Marshal(m.Columns())
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(`{"columns":`)
	buf.Write(cols)
	buf.WriteString(`,"rows":`)
	buf.Write(rows)
	buf.WriteString(`,"columnCount":`)
	buf.WriteString(strconv.Itoa(len(m.columns)))
	buf.WriteString(`,"rowCount":`)
	buf.WriteString(strconv.Itoa(len(m.rows)))
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON replaces the model's content with data (any form FromJSON
// accepts). A frozen model is left untouched and an error is returned; the
// converter is kept.
func (m *DataModel) UnmarshalJSON(data []byte) error {
	if err := m.checkStructure("unmarshal"); err != nil {
		return err
	}
	if err := m.checkValues("unmarshal"); err != nil {
		return err
	}
	v, err := jsonutil.Parse(data)
	if err != nil {
		return err
	}
	parsed, err := FromJSONValue(v, WithConverter(m.conv))
	if err != nil {
		return err
	}
	*m = *parsed
	return nil
}
