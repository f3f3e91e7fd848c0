package admintui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleEnvelope = `{"_isDataWrapper":true,"cmd":"memberService.getAllMembers","status":"ok",
"result":[{"id":"1","name":"Ada","age":36},{"id":"2","name":"Grace","age":45}]}`

func TestParseGrids_Envelope(t *testing.T) {
	grids, err := ParseGrids([]byte(sampleEnvelope))
	require.NoError(t, err)
	require.Len(t, grids, 2)

	assert.Equal(t, "envelope", grids[0].Title)
	assert.Equal(t, [][]string{{"cmd", "memberService.getAllMembers"}, {"status", "ok"}}, grids[0].Rows)

	assert.Equal(t, "result", grids[1].Title)
	assert.Equal(t, []string{"id", "name", "age"}, grids[1].Columns)
	assert.Equal(t, []string{"2", "Grace", "45"}, grids[1].Rows[1])
}

func TestParseGrids_BareModels(t *testing.T) {
	grids, err := ParseGrids([]byte(`[{"a":"1"},{"b":"2"}]`))
	require.NoError(t, err)
	require.Len(t, grids, 1)
	assert.Equal(t, []string{"a", "b"}, grids[0].Columns)
	assert.Equal(t, [][]string{{"1", ""}, {"", "2"}}, grids[0].Rows)

	grids, err = ParseGrids([]byte(`{"columns":["k","v"],"rows":[{"k":"x","v":"y"}],"columnCount":2,"rowCount":1}`))
	require.NoError(t, err)
	require.Len(t, grids, 1)
	assert.Equal(t, "model", grids[0].Title)
	assert.Equal(t, [][]string{{"x", "y"}}, grids[0].Rows)

	_, err = ParseGrids([]byte(`{"a":`))
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	grids, err := ParseGrids([]byte(sampleEnvelope))
	require.NoError(t, err)
	out := Render(grids)
	for _, want := range []string{"envelope (2 rows)", "result (2 rows)", "Grace", "memberService.getAllMembers"} {
		assert.Contains(t, out, want)
	}
	assert.Contains(t, Render([]Grid{{Title: "empty"}}), "(no columns)")
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

func TestViewer_SwitchAndQuit(t *testing.T) {
	grids, err := ParseGrids([]byte(sampleEnvelope))
	require.NoError(t, err)
	v := newViewer(grids)
	assert.Contains(t, v.View(), "memberService.getAllMembers")

	m, _ := v.Update(tea.KeyMsg{Type: tea.KeyTab})
	v = m.(*viewer)
	assert.Equal(t, 1, v.active)
	assert.Len(t, v.table.Rows(), 2)
	assert.Contains(t, v.View(), "Grace")

	m, _ = v.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, 0, m.(*viewer).active)

	m, _ = v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, m.(*viewer).detail)
	assert.True(t, strings.Contains(m.View(), "cmd"))

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
}

func TestRun_Empty(t *testing.T) {
	assert.Error(t, Run(nil, strings.NewReader(""), &strings.Builder{}))
}
