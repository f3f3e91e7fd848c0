package admintui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	emptyStyle  = lipgloss.NewStyle().Faint(true)
)

// maxCellWidth caps long values (nested JSON mostly) in static output.
const maxCellWidth = 48

// Render draws each grid as a bordered table under its title.
func Render(grids []Grid) string {
	var b strings.Builder
	for i, g := range grids {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(titleStyle.Render(fmt.Sprintf("%s (%d rows)", g.Title, len(g.Rows))))
		b.WriteString("\n")
		if len(g.Columns) == 0 {
			b.WriteString(emptyStyle.Render("(no columns)"))
			b.WriteString("\n")
			continue
		}
		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
			Headers(g.Columns...).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			})
		for _, r := range g.Rows {
			t.Row(truncateAll(r, maxCellWidth)...)
		}
		b.WriteString(t.String())
		b.WriteString("\n")
	}
	return b.String()
}

func truncateAll(row []string, n int) []string {
	out := make([]string, len(row))
	for i, s := range row {
		out[i] = truncate(s, n)
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
