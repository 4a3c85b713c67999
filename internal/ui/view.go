package ui

import "time"

// View is the rendering surface the runner drives. The runner never
// touches widgets directly; it hands over a fully built ViewState and
// the view decides how to paint it. Implementations must be safe to
// call from any goroutine.
type View interface {
	// ApplyState replaces every region of the display with the given
	// state. Last write wins.
	ApplyState(state ViewState)
	// ApplyFreshness updates only the price-freshness badge. It runs on
	// its own 1s cadence, decoupled from snapshot application.
	ApplyFreshness(f FreshnessView)
	// FlashSaved shows the transient "Guardado ✓" indicator for d, then
	// hides it again. A second call restarts the countdown.
	FlashSaved(d time.Duration)
	// SliderFocused reports whether the stop-loss slider currently holds
	// input focus. While it does, server-synced slider updates are
	// skipped so a background poll never clobbers an in-progress edit.
	SliderFocused() bool
}

// ViewState is the complete, display-ready model for one render pass.
type ViewState struct {
	Badge    BadgeState
	Tiles    TilesState
	WinLoss  string
	Slider   SliderState
	Insights *InsightsView // nil hides the panel
	Open     TableView
	Opps     TableView
	Closed   TableView
	Chart    ChartView
	Footer   FooterView
}

// BadgeState drives the bot-status header. Exactly one of ShowStart and
// ShowStop is true.
type BadgeState struct {
	Running   bool
	Label     string
	Color     string
	ShowStart bool
	ShowStop  bool
}

// Metric is a formatted value plus its color class. An empty Color
// means the terminal default.
type Metric struct {
	Text  string
	Color string
}

type TilesState struct {
	CapitalTotal     Metric
	CapitalAvailable Metric
	PnL              Metric
	ROI              Metric
}

// SliderState carries the server's stop-loss ratio. ServerSync is false
// when the snapshot had no ratio, in which case the view leaves the
// slider untouched.
type SliderState struct {
	Ratio      float64
	Label      string
	ServerSync bool
}

// InsightBar is one win-rate row: a proportional colored bar plus the
// sample size behind it.
type InsightBar struct {
	Label   string
	Bar     string
	Percent string
	Color   string
	Trades  int
}

type InsightsView struct {
	ByCity []InsightBar
	ByHour []InsightBar
}

// TableCell pairs display text with an optional color class.
type TableCell struct {
	Text  string
	Color string
}

// TableView renders Placeholder when Rows is empty.
type TableView struct {
	Headers     []string
	Rows        [][]TableCell
	Placeholder string
}

// ChartView replaces the capital chart wholesale each apply.
type ChartView struct {
	Labels []string
	Series []float64
}

type FooterView struct {
	ScanCount   int
	Uptime      time.Duration
	Mode        string
	LastRefresh string
	Note        string
}

// FreshnessView is the price badge in display terms. State matches the
// classifier's string form; Age is meaningful for fresh/stale/dead.
type FreshnessView struct {
	State string
	Age   time.Duration
}

// NopView discards everything. Used when the terminal UI is disabled
// and the process runs for the watchdog alone.
type NopView struct{}

func (NopView) ApplyState(ViewState) {}

func (NopView) ApplyFreshness(FreshnessView) {}

func (NopView) FlashSaved(time.Duration) {}

func (NopView) SliderFocused() bool { return false }

var _ View = NopView{}
