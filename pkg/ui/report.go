package ui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"bartetl/pkg/etl"
	"bartetl/pkg/models"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// CycleSummary prints the outcome of one cycle
func (p *Printer) CycleSummary(sum etl.Summary) {
	pairs := [][2]string{
		{"Cycle", sum.CycleID},
		{"Stations", fmt.Sprintf("%d of %d", sum.StationsAttempted, sum.TotalStations)},
		{"Failed", strconv.Itoa(len(sum.FailedStations))},
		{"Departures loaded", strconv.Itoa(sum.DeparturesLoaded)},
		{"Duration", sum.Duration.Round(time.Millisecond).String()},
	}
	if sum.Resumed {
		pairs = append(pairs, [2]string{"Resumed at", strconv.Itoa(sum.StartIndex)})
	}
	if len(sum.FailedStations) > 0 {
		pairs = append(pairs, [2]string{"Failed stations", strings.Join(sum.FailedStations, ", ")})
	}
	if m := sum.Metrics; m != nil {
		pairs = append(pairs,
			[2]string{"Average delay", fmt.Sprintf("%.2f min", m.AvgDelay)},
			[2]string{"Delay rate", fmt.Sprintf("%.1f%%", m.DelayRate*100)},
			[2]string{"Bikes allowed", fmt.Sprintf("%.1f%%", m.BikesAllowedRate*100)},
			[2]string{"Directions", formatCounts(m.DirectionCounts)},
		)
	}

	title := "Cycle complete"
	if !sum.Completed {
		title = "Cycle interrupted"
	}
	p.Panel(title, pairs)
}

// DailyStats prints per-day aggregates as a table
func (p *Printer) DailyStats(stats []models.DailyStat) {
	if len(stats) == 0 {
		p.Dim("no departures recorded in range")
		return
	}
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, []string{
			s.Date,
			strconv.Itoa(s.TotalDepartures),
			strconv.Itoa(s.DelayedCount),
			fmt.Sprintf("%.2f", s.AvgDelay),
			strconv.Itoa(s.MaxDelay),
		})
	}
	p.table([]string{"DATE", "DEPARTURES", "DELAYED", "AVG DELAY", "MAX DELAY"}, rows)
}

// StationStats prints per-destination aggregates for one station
func (p *Printer) StationStats(stationID string, stats []models.DestinationStat) {
	if len(stats) == 0 {
		p.Dim("no departures recorded for " + stationID)
		return
	}
	p.Title("Station " + stationID)
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, []string{
			s.Destination,
			strconv.Itoa(s.TotalDepartures),
			strconv.Itoa(s.DelayedCount),
			fmt.Sprintf("%.2f", s.AvgDelay),
			fmt.Sprintf("%.1f", s.AvgMinutes),
		})
	}
	p.table([]string{"DESTINATION", "DEPARTURES", "DELAYED", "AVG DELAY", "AVG MINUTES"}, rows)
}

func (p *Printer) table(headers []string, rows [][]string) {
	st := p.styles
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return st.header
			}
			return st.cell
		})
	p.println(t.Render())
}

// formatCounts renders a count map as "k=v" pairs in key order
func formatCounts(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, m[k]))
	}
	return strings.Join(parts, " ")
}
