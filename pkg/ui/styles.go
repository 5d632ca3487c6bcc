package ui

import "github.com/charmbracelet/lipgloss"

var (
	lineRed    = lipgloss.Color("#ED1C24")
	lineBlue   = lipgloss.Color("#0099D8")
	lineGreen  = lipgloss.Color("#4DB848")
	lineYellow = lipgloss.Color("#FFE800")
	lineOrange = lipgloss.Color("#FAA61A")
	dimGrey    = lipgloss.Color("#8A8A8A")
)

// styles is the set of styles a Printer renders with
type styles struct {
	title   lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	dim     lipgloss.Style
	panel   lipgloss.Style
	header  lipgloss.Style
	cell    lipgloss.Style
}

func colorStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:   r.NewStyle().Foreground(lineBlue).Bold(true),
		label:   r.NewStyle().Foreground(lineBlue).Bold(true).Width(22),
		value:   r.NewStyle().Foreground(lineYellow),
		success: r.NewStyle().Foreground(lineGreen).Bold(true),
		warning: r.NewStyle().Foreground(lineOrange).Bold(true),
		failure: r.NewStyle().Foreground(lineRed).Bold(true),
		dim:     r.NewStyle().Foreground(dimGrey),
		panel: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lineBlue).
			Padding(0, 1),
		header: r.NewStyle().Foreground(lineBlue).Bold(true).Padding(0, 1),
		cell:   r.NewStyle().Padding(0, 1),
	}
}

func plainStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:   r.NewStyle(),
		label:   r.NewStyle().Width(22),
		value:   r.NewStyle(),
		success: r.NewStyle(),
		warning: r.NewStyle(),
		failure: r.NewStyle(),
		dim:     r.NewStyle(),
		panel:   r.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1),
		header:  r.NewStyle().Padding(0, 1),
		cell:    r.NewStyle().Padding(0, 1),
	}
}
