package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// theme holds the styles used by list commands.
type theme struct {
	Header lipgloss.Style
	Cell   lipgloss.Style
	OK     lipgloss.Style
	Failed lipgloss.Style
	Dim    lipgloss.Style
	Border lipgloss.Style
}

func newTheme() theme {
	return theme{
		Header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#61AFEF")).Padding(0, 1),
		Cell:   lipgloss.NewStyle().Padding(0, 1),
		OK:     lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		Failed: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),
		Dim:    lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Border: lipgloss.NewStyle().Foreground(lipgloss.Color("#874BFD")),
	}
}

// renderTable lays rows out under headers with rounded borders.
func renderTable(headers []string, rows [][]string) string {
	th := newTheme()
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(th.Border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return th.Header
			}
			return th.Cell
		})
	return t.String()
}

func statusText(ok bool, good, bad string) string {
	th := newTheme()
	if ok {
		return th.OK.Render(good)
	}
	return th.Failed.Render(bad)
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return newTheme().Dim.Render("-")
	}
	return strings.Join(items, ", ")
}
