package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rivo/tview"

	"polydash/clients/botapi"
)

const (
	colorPositive = "green"
	colorNegative = "red"
	colorWarn     = "yellow"
	colorStopped  = "orange"

	insightBarWidth = 10
)

// RenderOptions carries the per-process knobs the snapshot itself does
// not know about.
type RenderOptions struct {
	Location      *time.Location
	QuestionWidth int
	MaxTableRows  int
	Mode          string
	StartedAt     time.Time
	FooterNote    string
}

// BuildViewState maps a status snapshot to a full ViewState. It is pure
// and total: any optional field may be absent and every region still
// gets a display-safe value.
func BuildViewState(snap *botapi.StatusSnapshot, now time.Time, opts RenderOptions) ViewState {
	if snap == nil {
		snap = &botapi.StatusSnapshot{}
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	state := ViewState{
		Badge:   buildBadge(snap.BotStatus),
		Tiles:   buildTiles(snap),
		WinLoss: buildWinLoss(snap),
		Slider:  buildSlider(snap),
		Chart:   buildChart(snap.CapitalHistory, loc),
		Footer: FooterView{
			ScanCount:   snap.ScanCount,
			Uptime:      now.Sub(opts.StartedAt),
			Mode:        opts.Mode,
			LastRefresh: now.In(loc).Format("15:04:05"),
			Note:        opts.FooterNote,
		},
	}

	if snap.Insights != nil {
		state.Insights = &InsightsView{
			ByCity: buildInsightBars(snap.Insights.ByCity),
			ByHour: buildInsightBars(snap.Insights.ByHour),
		}
	}

	state.Open = buildOpenTable(snap.OpenPositions, opts)
	state.Opps = buildOppsTable(snap.LastOpportunities, opts)
	state.Closed = buildClosedTable(snap.ClosedPositions, opts, loc)
	return state
}

func buildBadge(botStatus string) BadgeState {
	running := botStatus == "running"
	b := BadgeState{Running: running}
	if running {
		b.Label = "Corriendo"
		b.Color = colorPositive
		b.ShowStop = true
	} else {
		b.Label = "Detenido"
		b.Color = colorNegative
		b.ShowStart = true
	}
	return b
}

func buildTiles(snap *botapi.StatusSnapshot) TilesState {
	return TilesState{
		CapitalTotal:     Metric{Text: fmt.Sprintf("$%.2f", snap.CapitalTotal)},
		CapitalAvailable: Metric{Text: fmt.Sprintf("$%.2f", snap.CapitalDisponible)},
		PnL:              signedMoney(snap.PnL),
		ROI:              signedPercent(snap.ROI),
	}
}

// signedMoney formats v with an explicit sign; zero counts as positive.
func signedMoney(v float64) Metric {
	if v < 0 {
		return Metric{Text: fmt.Sprintf("-$%.2f", -v), Color: colorNegative}
	}
	return Metric{Text: fmt.Sprintf("+$%.2f", v), Color: colorPositive}
}

func signedPercent(v float64) Metric {
	if v < 0 {
		return Metric{Text: fmt.Sprintf("%.2f%%", v), Color: colorNegative}
	}
	return Metric{Text: fmt.Sprintf("+%.2f%%", v), Color: colorPositive}
}

func buildWinLoss(snap *botapi.StatusSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d / %d", snap.Won, snap.Lost)
	if snap.Stopped > 0 {
		fmt.Fprintf(&b, " · %d SL", snap.Stopped)
	}
	if snap.Partial != nil && *snap.Partial > 0 {
		fmt.Fprintf(&b, " · %dP", *snap.Partial)
	}
	return b.String()
}

func buildSlider(snap *botapi.StatusSnapshot) SliderState {
	ratio, ok := snap.StopLoss()
	if !ok {
		return SliderState{}
	}
	return SliderState{
		Ratio:      ratio,
		Label:      fmt.Sprintf("%d%%", int(math.Round(ratio*100))),
		ServerSync: true,
	}
}

func buildInsightBars(buckets []botapi.WinRateBucket) []InsightBar {
	bars := make([]InsightBar, 0, len(buckets))
	for _, b := range buckets {
		bars = append(bars, InsightBar{
			Label:   tview.Escape(b.Label),
			Bar:     winRateBar(b.WinRate, insightBarWidth),
			Percent: fmt.Sprintf("%.0f%%", b.WinRate*100),
			Color:   winRateColor(b.WinRate),
			Trades:  b.Trades,
		})
	}
	return bars
}

func winRateColor(rate float64) string {
	switch {
	case rate >= 0.70:
		return colorPositive
	case rate >= 0.50:
		return colorWarn
	default:
		return colorNegative
	}
}

func winRateBar(rate float64, width int) string {
	if width <= 0 {
		return ""
	}
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	filled := int(math.Round(rate * float64(width)))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// insightLines flattens bars into display lines; an empty bucket list
// becomes the localized placeholder.
func insightLines(bars []InsightBar) []string {
	if len(bars) == 0 {
		return []string{"sin datos"}
	}
	lines := make([]string, 0, len(bars))
	for _, b := range bars {
		lines = append(lines, fmt.Sprintf("%-14s [%s]%s %s[-] (%d)", b.Label, b.Color, b.Bar, b.Percent, b.Trades))
	}
	return lines
}

func buildOpenTable(positions []botapi.Position, opts RenderOptions) TableView {
	tv := TableView{
		Headers:     []string{"Mercado", "Entrada", "Actual", "Asignado", "P&L", "Estado"},
		Placeholder: "Sin posiciones abiertas",
	}
	for _, p := range clipPositions(positions, opts.MaxTableRows) {
		pnl := signedMoney(p.PnL)
		tv.Rows = append(tv.Rows, []TableCell{
			{Text: displayText(p.Question, opts.QuestionWidth)},
			{Text: fmt.Sprintf("%.2f", p.EntryNo)},
			{Text: fmt.Sprintf("%.2f", p.CurrentNo)},
			{Text: fmt.Sprintf("$%.2f", p.Allocated)},
			{Text: pnl.Text, Color: pnl.Color},
			{Text: displayText(p.Status, opts.QuestionWidth)},
		})
	}
	return tv
}

func buildOppsTable(opps []botapi.Opportunity, opts RenderOptions) TableView {
	tv := TableView{
		Headers:     []string{"Mercado", "No", "Sí", "Volumen", "Margen"},
		Placeholder: "Sin oportunidades",
	}
	max := opts.MaxTableRows
	if max > 0 && len(opps) > max {
		opps = opps[:max]
	}
	for _, o := range opps {
		tv.Rows = append(tv.Rows, []TableCell{
			{Text: displayText(o.Question, opts.QuestionWidth)},
			{Text: fmt.Sprintf("%.2f", o.NoPrice)},
			{Text: fmt.Sprintf("%.2f", o.YesPrice)},
			{Text: fmt.Sprintf("$%.0f", o.Volume)},
			{Text: fmt.Sprintf("%.1f¢", o.ProfitCents)},
		})
	}
	return tv
}

func buildClosedTable(positions []botapi.Position, opts RenderOptions, loc *time.Location) TableView {
	tv := TableView{
		Headers:     []string{"Mercado", "Entrada", "P&L", "Resultado", "Cierre"},
		Placeholder: "Sin operaciones cerradas",
	}
	for _, p := range clipPositions(positions, opts.MaxTableRows) {
		outcome := p.Resolution
		if outcome == "" {
			outcome = p.Status
		}
		pnl := signedMoney(p.PnL)
		tv.Rows = append(tv.Rows, []TableCell{
			{Text: displayText(p.Question, opts.QuestionWidth)},
			{Text: fmt.Sprintf("%.2f", p.EntryNo)},
			{Text: pnl.Text, Color: pnl.Color},
			{Text: displayText(outcome, opts.QuestionWidth), Color: outcomeColor(outcome)},
			{Text: displayText(shortTime(p.CloseTime, loc), opts.QuestionWidth)},
		})
	}
	return tv
}

func clipPositions(positions []botapi.Position, max int) []botapi.Position {
	if max > 0 && len(positions) > max {
		return positions[:max]
	}
	return positions
}

func outcomeColor(outcome string) string {
	switch strings.ToUpper(outcome) {
	case "WON":
		return colorPositive
	case "PARTIAL":
		return colorWarn
	case "STOPPED":
		return colorStopped
	default:
		return colorNegative
	}
}

func buildChart(history []botapi.CapitalPoint, loc *time.Location) ChartView {
	chart := ChartView{
		Labels: make([]string, 0, len(history)),
		Series: make([]float64, 0, len(history)),
	}
	for _, p := range history {
		chart.Labels = append(chart.Labels, shortTime(p.Time, loc))
		chart.Series = append(chart.Series, p.Capital)
	}
	return chart
}

var pointTimeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"15:04:05",
}

// shortTime renders a backend timestamp as localized hour:minute. An
// unparseable value falls through as-is; empty becomes "-".
func shortTime(raw string, loc *time.Location) string {
	if raw == "" {
		return "-"
	}
	for _, layout := range pointTimeFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			if layout == "15:04:05" {
				return t.Format("15:04")
			}
			return t.In(loc).Format("15:04")
		}
	}
	return raw
}

// displayText escapes style tags and truncates free text from the
// backend before it reaches a widget.
func displayText(s string, width int) string {
	return tview.Escape(truncate(s, width))
}

func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(runes[:max-1]) + "…"
}

// freshnessBadge maps a classifier state plus age to the price badge's
// text and color.
func freshnessBadge(f FreshnessView) (string, string) {
	switch f.State {
	case "fresh":
		return fmt.Sprintf("Precios: hace %ds", int(f.Age.Seconds())), colorPositive
	case "stale":
		return fmt.Sprintf("Precios: hace %ds", int(f.Age.Seconds())), colorWarn
	case "dead":
		return fmt.Sprintf("Precios: hace %ds", int(f.Age.Seconds())), colorNegative
	case "feed_down":
		return "Precios: hilo caído", colorNegative
	default:
		return "Precios: sin datos", "gray"
	}
}

// footerText assembles the single footer line.
func footerText(f FooterView) string {
	line := fmt.Sprintf("Scans: %d  ·  Uptime: %s  ·  Fuente: %s  ·  Actualizado: %s",
		f.ScanCount, formatUptime(f.Uptime), f.Mode, f.LastRefresh)
	if f.Note != "" {
		line += "  ·  [red]" + tview.Escape(f.Note) + "[-]"
	}
	return line
}

func formatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
