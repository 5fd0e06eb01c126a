package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/tradetally/internal/events"
	"github.com/fyrsmithlabs/tradetally/internal/overview"
	"github.com/fyrsmithlabs/tradetally/internal/trade"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("51"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	profitStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	lossStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238")).Padding(0, 1)
)

func renderStatus(status string) string {
	style := lossStyle
	if status == "ok" {
		style = profitStyle
	}
	return labelStyle.Render("Server Status: ") + style.Render(status)
}

// signed colors v by sign and prints it with two decimals.
func signed(v float64) string {
	s := fmt.Sprintf("%+.2f", v)
	switch {
	case v > 0:
		return profitStyle.Render(s)
	case v < 0:
		return lossStyle.Render(s)
	default:
		return dimStyle.Render(s)
	}
}

func cell(s string, width int) string {
	return lipgloss.NewStyle().Width(width).Render(s)
}

func renderTrades(trades []trade.Trade) string {
	if len(trades) == 0 {
		return dimStyle.Render("No trades yet.") + "\n"
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(cell("DATE", 18) + cell("SYMBOL", 10) + cell("SIDE", 7) + cell("TF", 6) + "P/L"))
	b.WriteString("\n")
	for _, t := range trades {
		pl := dimStyle.Render("open")
		if t.ProfitLoss.Valid {
			pl = signed(t.ProfitLoss.Decimal.InexactFloat64())
		}
		side := t.Position
		if side == "" {
			side = "-"
		}
		tf := t.Timeframe
		if tf == "" {
			tf = "-"
		}
		b.WriteString(cell(t.CreatedAt.Local().Format("2006-01-02 15:04"), 18))
		b.WriteString(cell(t.Symbol, 10))
		b.WriteString(cell(side, 7))
		b.WriteString(cell(tf, 6))
		b.WriteString(pl)
		b.WriteString("\n")
	}
	return b.String()
}

func renderOverview(ov overview.Overview) string {
	kpis := strings.Join([]string{
		labelStyle.Render("Total P/L  ") + signed(ov.KPIs.TotalPL),
		labelStyle.Render("Win rate   ") + fmt.Sprintf("%.1f%%", ov.KPIs.WinRate),
		labelStyle.Render("Trades     ") + fmt.Sprint(ov.KPIs.TradesCount),
		labelStyle.Render("Avg P/L    ") + signed(ov.KPIs.AvgPL),
	}, "\n")

	var b strings.Builder
	b.WriteString(headerStyle.Render("Overview (" + string(ov.Range) + ")"))
	b.WriteString("\n")
	b.WriteString(boxStyle.Render(kpis))
	b.WriteString("\n")

	for _, section := range []struct {
		title string
		rows  []overview.Row
	}{
		{"By instrument", ov.InstrumentTable},
		{"By timeframe", ov.TimeframeTable},
	} {
		if len(section.rows) == 0 {
			continue
		}
		b.WriteString(headerStyle.Render(section.title))
		b.WriteString("\n")
		for _, r := range section.rows {
			b.WriteString(cell(r.Key, 10))
			b.WriteString(cell(fmt.Sprint(r.Trades), 6))
			b.WriteString(cell(fmt.Sprintf("%.1f%%", r.WinRate), 8))
			b.WriteString(signed(r.TotalPL))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func renderEvent(e events.Event) string {
	return dimStyle.Render(e.OccurredAt.Local().Format(time.TimeOnly)) + " " +
		headerStyle.Render(e.Type) + " " +
		labelStyle.Render("user="+e.UserID) + " " +
		string(e.Data)
}
