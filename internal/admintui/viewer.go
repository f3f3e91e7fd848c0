package admintui

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	tabStyle       = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("245"))
	activeTabStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	frameStyle     = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type viewer struct {
	grids  []Grid
	active int
	table  table.Model
	height int
	detail bool
}

func newViewer(grids []Grid) *viewer {
	v := &viewer{grids: grids, height: 15}
	v.table = table.New(table.WithFocused(true), table.WithHeight(v.height))
	s := table.DefaultStyles()
	s.Header = s.Header.BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240")).BorderBottom(true).Bold(true)
	s.Selected = s.Selected.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	v.table.SetStyles(s)
	v.load()
	return v
}

// load swaps the table contents for the active grid. Rows are cleared first
// so the new column count never meets stale rows.
func (v *viewer) load() {
	g := v.grids[v.active]
	v.table.SetRows(nil)
	cols := make([]table.Column, len(g.Columns))
	for i, name := range g.Columns {
		w := len([]rune(name))
		for _, r := range g.Rows {
			if n := len([]rune(r[i])); n > w {
				w = n
			}
		}
		cols[i] = table.Column{Title: name, Width: min(max(w, 4), maxCellWidth)}
	}
	v.table.SetColumns(cols)
	rows := make([]table.Row, len(g.Rows))
	for i, r := range g.Rows {
		rows[i] = table.Row(r)
	}
	v.table.SetRows(rows)
	v.table.GotoTop()
}

func (v *viewer) Init() tea.Cmd { return nil }

func (v *viewer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if h := msg.Height - 8; h > 3 {
			v.height = h
			v.table.SetHeight(h)
		}
		return v, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return v, tea.Quit
		case "tab", "right", "l":
			v.active = (v.active + 1) % len(v.grids)
			v.detail = false
			v.load()
			return v, nil
		case "shift+tab", "left", "h":
			v.active = (v.active + len(v.grids) - 1) % len(v.grids)
			v.detail = false
			v.load()
			return v, nil
		case "enter":
			v.detail = !v.detail
			return v, nil
		}
	}
	var cmd tea.Cmd
	v.table, cmd = v.table.Update(msg)
	return v, cmd
}

func (v *viewer) View() string {
	tabs := make([]string, len(v.grids))
	for i, g := range v.grids {
		label := fmt.Sprintf("%s (%d)", g.Title, len(g.Rows))
		if i == v.active {
			tabs[i] = activeTabStyle.Render(label)
		} else {
			tabs[i] = tabStyle.Render(label)
		}
	}
	out := lipgloss.JoinHorizontal(lipgloss.Top, tabs...) + "\n" + frameStyle.Render(v.table.View()) + "\n"
	if v.detail {
		out += v.detailView() + "\n"
	}
	return out + helpStyle.Render("tab/shift+tab switch table, ↑/↓ move, enter row detail, q quit") + "\n"
}

func (v *viewer) detailView() string {
	g := v.grids[v.active]
	i := v.table.Cursor()
	if i < 0 || i >= len(g.Rows) {
		return ""
	}
	var lines []string
	for j, col := range g.Columns {
		lines = append(lines, headerStyle.Render(col)+g.Rows[i][j])
	}
	return frameStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// Run opens the interactive viewer on in/out until the user quits.
func Run(grids []Grid, in io.Reader, out io.Writer) error {
	if len(grids) == 0 {
		return errors.New("nothing to show")
	}
	p := tea.NewProgram(newViewer(grids), tea.WithInput(in), tea.WithOutput(out), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui run failed: %w", err)
	}
	return nil
}
