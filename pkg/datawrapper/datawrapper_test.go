package datawrapper

import (
	"encoding/json"
	"testing"

	"github.com/r9s-ai/open-data-router/pkg/datamodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPut_RejectsOtherTypes(t *testing.T) {
	w := New()
	require.NoError(t, w.Put("a", nil))
	require.NoError(t, w.Put("b", "text"))
	require.NoError(t, w.Put("c", datamodel.New()))
	assert.ErrorIs(t, w.Put("d", 12), ErrInvalidValue)
	assert.ErrorIs(t, w.Put("", "x"), ErrInvalidValue)
	assert.Equal(t, []string{VerificationKey, "a", "b", "c"}, w.Keys())
}

func TestVerificationKey_Reserved(t *testing.T) {
	w := New()
	v, ok := w.Get(VerificationKey)
	assert.True(t, ok)
	assert.Equal(t, "true", v)
	assert.True(t, w.Has(VerificationKey))
	assert.ErrorIs(t, w.Put(VerificationKey, "false"), ErrReservedKey)
	assert.ErrorIs(t, w.Remove(VerificationKey), ErrReservedKey)
	assert.Equal(t, 1, w.Len())
}

func TestMarkImmutable(t *testing.T) {
	w, err := NewWith("cmd", "memberService.getAllMembers")
	require.NoError(t, err)

	assert.ErrorIs(t, w.MarkImmutable("missing"), ErrKeyNotFound)
	require.NoError(t, w.MarkImmutable("cmd"))
	assert.True(t, w.IsImmutable("cmd"))
	assert.ErrorIs(t, w.Put("cmd", "other.call"), ErrImmutableKey)
	assert.ErrorIs(t, w.Remove("cmd"), ErrImmutableKey)

	c := w.Clone()
	assert.ErrorIs(t, c.PutString("cmd", "x.y"), ErrImmutableKey)
	s, ok := c.GetString("cmd")
	assert.True(t, ok)
	assert.Equal(t, "memberService.getAllMembers", s)
}

func TestModels_AreCopiedBothWays(t *testing.T) {
	m, err := datamodel.FromMap(map[string]any{"k": "v"})
	require.NoError(t, err)
	w := New()
	require.NoError(t, w.PutModel("m", m))

	require.NoError(t, m.SetValue(0, "k", "changed-after-put"))
	got, ok := w.GetModel("m")
	require.True(t, ok)
	s, err := got.StringValue(0, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", s)

	require.NoError(t, got.SetValue(0, "k", "changed-after-get"))
	again, _ := w.GetModel("m")
	s, err = again.StringValue(0, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", s)

	_, ok = w.GetModel("missing")
	assert.False(t, ok)
	_, ok = w.GetString("m")
	assert.False(t, ok)
}

func TestClone_Independent(t *testing.T) {
	w := New()
	require.NoError(t, w.Put("a", "1"))
	c := w.Clone()
	require.NoError(t, c.Put("b", "2"))
	require.NoError(t, c.Remove("a"))
	assert.True(t, w.Has("a"))
	assert.False(t, w.Has("b"))
}

func TestJSON_RoundTrip(t *testing.T) {
	m, err := datamodel.FromMap(map[string]any{"id": "1", "name": "a"})
	require.NoError(t, err)
	w := New()
	require.NoError(t, w.PutString("cmd", "memberService.getMember"))
	require.NoError(t, w.PutModel("member", m))

	b, err := json.Marshal(w)
	require.NoError(t, err)
	assert.JSONEq(t, `{"_isDataWrapper":true,"cmd":"memberService.getMember","member":[{"id":"1","name":"a"}]}`, string(b))

	back, err := FromJSON(b)
	require.NoError(t, err)
	assert.Equal(t, w.Keys(), back.Keys())
	s, _ := back.GetString("cmd")
	assert.Equal(t, "memberService.getMember", s)
	got, ok := back.GetModel("member")
	require.True(t, ok)
	assert.True(t, m.Equal(got))
}

func TestFromJSON_Shapes(t *testing.T) {
	w, err := FromJSON([]byte(`{"n":12,"b":false,"z":null,"obj":{"x":"1"},"arr":[{"x":"1"},{"y":"2"}]}`))
	require.NoError(t, err)

	n, _ := w.GetString("n")
	assert.Equal(t, "12", n)
	b, _ := w.GetString("b")
	assert.Equal(t, "false", b)
	z, ok := w.Get("z")
	assert.True(t, ok)
	assert.Nil(t, z)

	obj, ok := w.GetModel("obj")
	require.True(t, ok)
	assert.Equal(t, 1, obj.RowCount())

	arr, ok := w.GetModel("arr")
	require.True(t, ok)
	assert.Equal(t, []string{"x", "y"}, arr.Columns())
	assert.Equal(t, []map[string]any{{"x": "1", "y": nil}, {"x": nil, "y": "2"}}, arr.Rows())

	_, err = FromJSON([]byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrInvalidJSON)
	_, err = FromJSON([]byte(`{`))
	assert.Error(t, err)
}

func TestUnmarshalJSON(t *testing.T) {
	var w DataWrapper
	require.NoError(t, json.Unmarshal([]byte(`{"_isDataWrapper":true,"cmd":"a.b"}`), &w))
	assert.Equal(t, []string{VerificationKey, "cmd"}, w.Keys())
}

func TestFromValues(t *testing.T) {
	w, err := FromValues(map[string]any{
		"cmd":   "systemService.echo",
		"limit": 10,
		"row":   map[string]any{"a": "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{VerificationKey, "cmd", "limit", "row"}, w.Keys())
	limit, _ := w.GetString("limit")
	assert.Equal(t, "10", limit)
	_, ok := w.GetModel("row")
	assert.True(t, ok)
}

func TestUnmarshalJSON_KeepsImmutableKeys(t *testing.T) {
	w, err := NewWith("cmd", "memberService.getAllMembers")
	require.NoError(t, err)
	require.NoError(t, w.MarkImmutable("cmd"))

	err = json.Unmarshal([]byte(`{"cmd":"evil.cmd"}`), w)
	require.ErrorIs(t, err, ErrImmutableKey)
	s, _ := w.GetString("cmd")
	assert.Equal(t, "memberService.getAllMembers", s)
	assert.True(t, w.IsImmutable("cmd"))

	require.ErrorIs(t, json.Unmarshal([]byte(`{"other":"x"}`), w), ErrImmutableKey)

	require.NoError(t, json.Unmarshal([]byte(`{"cmd":"memberService.getAllMembers","page":"2"}`), w))
	assert.True(t, w.IsImmutable("cmd"))
	assert.ErrorIs(t, w.Put("cmd", "evil.cmd"), ErrImmutableKey)
	page, _ := w.GetString("page")
	assert.Equal(t, "2", page)
}

func TestUnmarshalJSON_ImmutableModel(t *testing.T) {
	m, err := datamodel.FromMaps([]map[string]any{{"x": "1"}})
	require.NoError(t, err)
	w, err := NewWith("rows", m)
	require.NoError(t, err)
	require.NoError(t, w.MarkImmutable("rows"))

	require.NoError(t, json.Unmarshal([]byte(`{"rows":[{"x":"1"}]}`), w))
	assert.True(t, w.IsImmutable("rows"))
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"rows":[{"x":"2"}]}`), w), ErrImmutableKey)
}

func TestFromJSON_NestedColumnsRowsIsOneRow(t *testing.T) {
	w, err := FromJSON([]byte(`{"data":{"columns":["a"],"rows":[{"a":"1"}]}}`))
	require.NoError(t, err)
	m, ok := w.GetModel("data")
	require.True(t, ok)
	assert.Equal(t, []string{"columns", "rows"}, m.Columns())
	assert.Equal(t, 1, m.RowCount())

	standalone, err := datamodel.FromJSON([]byte(`{"columns":["a"],"rows":[{"a":"1"}]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, standalone.Columns())
}

func TestZeroValueWrapper(t *testing.T) {
	var w DataWrapper
	require.NoError(t, w.Put("cmd", "a.b"))
	require.NoError(t, w.MarkImmutable("cmd"))
	assert.ErrorIs(t, w.Put("cmd", "c.d"), ErrImmutableKey)
	assert.NotNil(t, w.Converter())
	assert.Equal(t, []string{VerificationKey, "cmd"}, w.Keys())
}
