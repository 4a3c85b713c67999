package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

var (
	paneBorderColor = tcell.ColorGray
	paneTitleColor  = tcell.ColorAqua
)

const sliderStep = 0.05

// Actions are the control callbacks the dashboard fires on key presses.
// Any nil callback turns its key into a no-op.
type Actions struct {
	StartBot           func()
	StopBot            func()
	SaveStopLoss       func(ratio float64)
	AdjustPollInterval func(delta time.Duration)
	TogglePause        func()
	Quit               func()
}

// Dashboard is the tview implementation of View: a single full-screen
// page with the status header, metric tiles, capital chart, insights,
// the three tables and a footer.
type Dashboard struct {
	app     *tview.Application
	actions Actions

	ready chan struct{}

	header     *tview.TextView
	priceBadge *tview.TextView
	tiles      *tview.TextView
	chartPane  *tview.TextView
	insights   *tview.TextView
	sliderPane *tview.TextView
	openTable  *tview.Table
	oppTable   *tview.Table
	closedTabl *tview.Table
	footer     *tview.TextView

	mu          sync.Mutex
	sliderRatio float64
	sliderFocus bool
	savedShown  bool
	savedGen    int
	chartWidth  int

	focusOrder []tview.Primitive
	focusIndex int
}

// NewDashboard builds the widget tree but does not start the event
// loop; call Run from its own goroutine.
func NewDashboard(actions Actions) *Dashboard {
	app := tview.NewApplication()
	ready := make(chan struct{})
	var once sync.Once
	app.SetBeforeDrawFunc(func(screen tcell.Screen) bool {
		once.Do(func() { close(ready) })
		return false
	})

	d := &Dashboard{
		app:         app,
		actions:     actions,
		ready:       ready,
		sliderRatio: 0.20,
		chartWidth:  60,
	}

	d.header = newPane("Estado")
	d.priceBadge = tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	d.priceBadge.SetText("[gray]Precios: sin datos[-]")
	d.tiles = newPane("Capital")
	d.chartPane = newPane("Capital (historial)")
	d.insights = newPane("Win rate")
	d.sliderPane = newPane("Stop-loss")
	d.openTable = newTable("Posiciones abiertas")
	d.oppTable = newTable("Oportunidades")
	d.closedTabl = newTable("Cerradas")
	d.footer = tview.NewTextView().SetDynamicColors(true).SetWrap(false)

	d.renderSlider()

	top := tview.NewFlex().
		AddItem(d.header, 0, 2, false).
		AddItem(d.priceBadge, 0, 1, false)
	middle := tview.NewFlex().
		AddItem(d.chartPane, 0, 2, false).
		AddItem(d.insights, 0, 1, false).
		AddItem(d.sliderPane, 24, 0, false)
	tables := tview.NewFlex().
		AddItem(d.openTable, 0, 1, false).
		AddItem(d.oppTable, 0, 1, false).
		AddItem(d.closedTabl, 0, 1, false)

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(top, 3, 0, false).
		AddItem(d.tiles, 4, 0, false).
		AddItem(middle, 0, 2, false).
		AddItem(tables, 0, 3, false).
		AddItem(d.footer, 1, 0, false)

	d.focusOrder = []tview.Primitive{d.sliderPane, d.openTable, d.oppTable, d.closedTabl}
	d.installKeys()
	app.SetRoot(root, true)
	return d
}

// Run blocks inside tview's event loop until Stop.
func (d *Dashboard) Run() error {
	return d.app.Run()
}

func (d *Dashboard) Stop() {
	d.app.Stop()
}

// WaitReady blocks until the first frame has been drawn.
func (d *Dashboard) WaitReady() {
	<-d.ready
}

func (d *Dashboard) installKeys() {
	d.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			d.quit()
			return nil
		case tcell.KeyTab:
			d.cycleFocus(1)
			return nil
		case tcell.KeyBacktab:
			d.cycleFocus(-1)
			return nil
		case tcell.KeyLeft:
			if d.SliderFocused() {
				d.nudgeSlider(-sliderStep)
				return nil
			}
		case tcell.KeyRight:
			if d.SliderFocused() {
				d.nudgeSlider(sliderStep)
				return nil
			}
		case tcell.KeyEnter:
			if d.SliderFocused() {
				d.saveSlider()
				return nil
			}
		}

		switch event.Rune() {
		case 'q':
			d.quit()
			return nil
		case 's':
			if d.actions.StartBot != nil {
				go d.actions.StartBot()
			}
			return nil
		case 'x':
			if d.actions.StopBot != nil {
				go d.actions.StopBot()
			}
			return nil
		case 'p':
			if d.actions.TogglePause != nil {
				d.actions.TogglePause()
			}
			return nil
		case '[':
			if d.actions.AdjustPollInterval != nil {
				go d.actions.AdjustPollInterval(-time.Second)
			}
			return nil
		case ']':
			if d.actions.AdjustPollInterval != nil {
				go d.actions.AdjustPollInterval(time.Second)
			}
			return nil
		}
		return event
	})
}

func (d *Dashboard) quit() {
	if d.actions.Quit != nil {
		d.actions.Quit()
		return
	}
	d.app.Stop()
}

func (d *Dashboard) cycleFocus(dir int) {
	d.mu.Lock()
	d.focusIndex = (d.focusIndex + dir + len(d.focusOrder)) % len(d.focusOrder)
	target := d.focusOrder[d.focusIndex]
	d.sliderFocus = target == d.sliderPane
	d.mu.Unlock()
	// Runs on the event loop already, so draw directly.
	d.app.SetFocus(target)
	d.renderSlider()
}

// SliderFocused implements the focus guard: while true, server-synced
// slider values are dropped instead of applied.
func (d *Dashboard) SliderFocused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sliderFocus
}

func (d *Dashboard) nudgeSlider(delta float64) {
	d.mu.Lock()
	d.sliderRatio += delta
	if d.sliderRatio < 0 {
		d.sliderRatio = 0
	}
	if d.sliderRatio > 1 {
		d.sliderRatio = 1
	}
	d.mu.Unlock()
	d.renderSlider()
}

func (d *Dashboard) saveSlider() {
	d.mu.Lock()
	ratio := d.sliderRatio
	d.mu.Unlock()
	if d.actions.SaveStopLoss != nil {
		go d.actions.SaveStopLoss(ratio)
	}
}

// ApplyState repaints every region from the given state.
func (d *Dashboard) ApplyState(state ViewState) {
	d.app.QueueUpdateDraw(func() {
		d.renderHeader(state.Badge)
		d.renderTiles(state.Tiles, state.WinLoss)
		d.renderChart(state.Chart)
		d.renderInsights(state.Insights)
		d.syncSlider(state.Slider)
		fillTable(d.openTable, state.Open)
		fillTable(d.oppTable, state.Opps)
		fillTable(d.closedTabl, state.Closed)
		d.renderFooter(state.Footer)
	})
}

// ApplyFreshness updates only the price badge.
func (d *Dashboard) ApplyFreshness(f FreshnessView) {
	text, color := freshnessBadge(f)
	d.app.QueueUpdateDraw(func() {
		d.priceBadge.SetText(fmt.Sprintf("[%s]%s[-]", color, text))
	})
}

// FlashSaved shows "Guardado ✓" next to the slider for the given
// duration. A newer flash supersedes an older one.
func (d *Dashboard) FlashSaved(duration time.Duration) {
	d.mu.Lock()
	d.savedShown = true
	d.savedGen++
	gen := d.savedGen
	d.mu.Unlock()
	d.app.QueueUpdateDraw(d.renderSlider)

	time.AfterFunc(duration, func() {
		d.mu.Lock()
		if d.savedGen != gen {
			d.mu.Unlock()
			return
		}
		d.savedShown = false
		d.mu.Unlock()
		d.app.QueueUpdateDraw(d.renderSlider)
	})
}

func (d *Dashboard) renderHeader(b BadgeState) {
	action := "[yellow]s[-] iniciar"
	if b.ShowStop {
		action = "[yellow]x[-] detener"
	}
	d.header.SetText(fmt.Sprintf("[%s]● %s[-]   %s", b.Color, b.Label, action))
}

func (d *Dashboard) renderTiles(t TilesState, winLoss string) {
	d.tiles.SetText(fmt.Sprintf(
		"Total %s   Disponible %s   P&L [%s]%s[-]   ROI [%s]%s[-]\nW/L %s",
		t.CapitalTotal.Text, t.CapitalAvailable.Text,
		t.PnL.Color, t.PnL.Text,
		t.ROI.Color, t.ROI.Text,
		winLoss,
	))
}

func (d *Dashboard) renderChart(c ChartView) {
	if len(c.Series) == 0 {
		d.chartPane.SetText("sin datos")
		return
	}
	d.mu.Lock()
	width := d.chartWidth
	d.mu.Unlock()
	_, _, w, _ := d.chartPane.GetInnerRect()
	if w > 0 {
		width = w
	}
	line := Sparkline(c.Series, width)
	span := ""
	if len(c.Labels) > 0 {
		span = fmt.Sprintf("%s … %s", c.Labels[0], c.Labels[len(c.Labels)-1])
	}
	last := c.Series[len(c.Series)-1]
	d.chartPane.SetText(fmt.Sprintf("%s\n%s  ·  $%.2f", line, span, last))
}

func (d *Dashboard) renderInsights(iv *InsightsView) {
	if iv == nil {
		d.insights.SetText("")
		return
	}
	lines := []string{"[::b]Por ciudad[::-]"}
	lines = append(lines, insightLines(iv.ByCity)...)
	lines = append(lines, "", "[::b]Por hora[::-]")
	lines = append(lines, insightLines(iv.ByHour)...)
	text := ""
	for i, l := range lines {
		if i > 0 {
			text += "\n"
		}
		text += l
	}
	d.insights.SetText(text)
}

// syncSlider applies a server-synced ratio unless the slider holds
// focus, in which case the user's in-progress edit wins.
func (d *Dashboard) syncSlider(s SliderState) {
	if !s.ServerSync {
		return
	}
	d.mu.Lock()
	if d.sliderFocus {
		d.mu.Unlock()
		return
	}
	d.sliderRatio = s.Ratio
	d.mu.Unlock()
	d.renderSlider()
}

func (d *Dashboard) renderSlider() {
	d.mu.Lock()
	ratio := d.sliderRatio
	saved := d.savedShown
	focused := d.sliderFocus
	d.mu.Unlock()

	bar := winRateBar(ratio, 12)
	label := fmt.Sprintf("%d%%", int(ratio*100+0.5))
	text := fmt.Sprintf("◀ %s ▶ %s", bar, label)
	if focused {
		text += "\n[yellow]←/→ ajustar · enter guardar[-]"
	}
	if saved {
		text += "\n[green]Guardado ✓[-]"
	}
	d.sliderPane.SetText(text)
}

func (d *Dashboard) renderFooter(f FooterView) {
	d.footer.SetText(footerText(f))
}

func fillTable(table *tview.Table, tv TableView) {
	table.Clear()
	for col, h := range tv.Headers {
		cell := tview.NewTableCell(h).
			SetAttributes(tcell.AttrBold).
			SetSelectable(false)
		table.SetCell(0, col, cell)
	}
	if len(tv.Rows) == 0 {
		cell := tview.NewTableCell(tv.Placeholder).
			SetTextColor(tcell.ColorGray).
			SetSelectable(false)
		table.SetCell(1, 0, cell)
		return
	}
	for r, row := range tv.Rows {
		for c, cell := range row {
			tc := tview.NewTableCell(cell.Text)
			if cell.Color != "" {
				tc.SetTextColor(tcell.GetColor(cell.Color))
			}
			table.SetCell(r+1, c, tc)
		}
	}
}

func newPane(title string) *tview.TextView {
	tv := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	tv.SetBorder(true)
	tv.SetTitle(" " + title + " ").SetTitleAlign(tview.AlignLeft)
	tv.SetBorderColor(paneBorderColor)
	tv.SetTitleColor(paneTitleColor)
	return tv
}

func newTable(title string) *tview.Table {
	t := tview.NewTable().SetSelectable(true, false)
	t.SetBorder(true)
	t.SetTitle(" " + title + " ").SetTitleAlign(tview.AlignLeft)
	t.SetBorderColor(paneBorderColor)
	t.SetTitleColor(paneTitleColor)
	t.SetFixed(1, 0)
	return t
}

var _ View = (*Dashboard)(nil)
