package ui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Mschirtzinger/bugledger/internal/present"
)

// Column headers for the bug table.
var Headers = []string{"#", "ID", "Description", "Criticality", "Resolved"}

const colCriticality = 3

// RenderTable renders the rows of v as a bordered table.
func RenderTable(v present.View) string {
	rows := make([][]string, 0, len(v.Rows))
	for _, r := range v.Rows {
		rows = append(rows, []string{
			strconv.Itoa(r.Index),
			r.ID,
			r.Description,
			r.Criticality,
			r.Resolved,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorBorder)).
		Headers(Headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return HeaderStyle
			}
			if col == colCriticality && row >= 0 && row < len(rows) {
				return criticalityStyle(rows[row][colCriticality])
			}
			return CellStyle
		})

	return t.Render()
}

// RenderSummary returns a one-line summary of v.
func RenderSummary(v present.View) string {
	s := fmt.Sprintf("%d bugs, %d open", len(v.Rows), v.Open)
	if v.Hidden > 0 {
		s += fmt.Sprintf(", %d without id hidden", v.Hidden)
	}
	return RenderMuted(s)
}
