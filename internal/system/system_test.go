package system

import (
	"context"
	"testing"
	"time"

	"github.com/r9s-ai/open-data-router/pkg/apierr"
	"github.com/r9s-ai/open-data-router/pkg/converter"
	"github.com/r9s-ai/open-data-router/pkg/datamodel"
	"github.com/r9s-ai/open-data-router/pkg/datawrapper"
	"github.com/r9s-ai/open-data-router/pkg/dispatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bag map[string]any

func (b bag) AttributeNames() []string {
	return []string{"principal", "method"}
}

func (b bag) Attribute(name string) any { return b[name] }

func TestEcho(t *testing.T) {
	s := NewService(nil)
	req, err := datawrapper.NewWith("hello", "world")
	require.NoError(t, err)
	out, err := s.Methods()["echo"](context.Background(), req)
	require.NoError(t, err)
	assert.Same(t, req, out)
}

func TestWhoami(t *testing.T) {
	s := NewService(nil)
	_, err := s.Methods()["whoami"](context.Background(), datawrapper.New())
	assert.ErrorIs(t, err, apierr.New(apierr.CodeUnauthorized, ""))

	ctx := dispatch.WithRequestContext(context.Background(), &dispatch.RequestContext{
		Session: bag{"principal": "alice", "method": "jwt"},
	})
	out, err := s.Methods()["whoami"](ctx, datawrapper.New())
	require.NoError(t, err)
	m := out.(*datamodel.DataModel)
	assert.Equal(t, []string{"principal", "method"}, m.Columns())
	p, err := m.StringValue(0, "principal")
	require.NoError(t, err)
	assert.Equal(t, "alice", p)
}

func TestTime(t *testing.T) {
	conv, err := converter.New(converter.Options{TimeZone: "UTC"})
	require.NoError(t, err)
	s := NewService(conv)
	s.now = func() time.Time { return time.Date(2026, 7, 8, 9, 10, 11, 0, time.UTC) }

	out, err := s.Methods()["time"](context.Background(), datawrapper.New())
	require.NoError(t, err)
	w, err := dispatch.WrapResult(out, conv)
	require.NoError(t, err)
	m, ok := w.GetModel(dispatch.ResultKey)
	require.True(t, ok)
	now, err := m.StringValue(0, "now")
	require.NoError(t, err)
	assert.Equal(t, "2026-07-08 09:10:11", now)
	iso, err := m.StringValue(0, "iso")
	require.NoError(t, err)
	assert.Equal(t, "2026-07-08T09:10:11Z", iso)
}

func TestVersion(t *testing.T) {
	out, err := NewService(nil).Methods()["version"](context.Background(), datawrapper.New())
	require.NoError(t, err)
	assert.Contains(t, out.(map[string]any), "version")
}
