// Package report renders capital curves as standalone HTML charts.
package report

import (
	"fmt"
	"io"

	"github.com/apple-taste/trade-view/internal/ledger/forex"
	"github.com/apple-taste/trade-view/internal/pkg/dateutil"
	"github.com/apple-taste/trade-view/internal/store/model"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

const (
	colorEquity    = "#3b82f6"
	colorAvailable = "#34d399"
	colorPosition  = "#fbbf24"
	colorBalance   = "#a78bfa"
)

// RenderEquityCurve writes an HTML page charting a stock strategy's snapshot
// series: total equity, available funds and position value over time.
func RenderEquityCurve(w io.Writer, title string, snaps []model.CapitalSnapshot) error {
	if len(snaps) == 0 {
		return fmt.Errorf("no snapshots to render")
	}

	days := make([]string, 0, len(snaps))
	equity := make([]opts.LineData, 0, len(snaps))
	available := make([]opts.LineData, 0, len(snaps))
	position := make([]opts.LineData, 0, len(snaps))
	for _, s := range snaps {
		days = append(days, dateutil.FormatDay(s.Day))
		equity = append(equity, opts.LineData{Value: s.TotalEquity.InexactFloat64()})
		available = append(available, opts.LineData{Value: s.AvailableFunds.InexactFloat64()})
		position = append(position, opts.LineData{Value: s.PositionValue.InexactFloat64()})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros, Width: "1200px", Height: "520px"}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.SetXAxis(days)
	line.AddSeries("总资产", equity, charts.WithLineStyleOpts(opts.LineStyle{Color: colorEquity, Width: 2}))
	line.AddSeries("可用资金", available, charts.WithLineStyleOpts(opts.LineStyle{Color: colorAvailable, Width: 2}))
	line.AddSeries("持仓市值", position, charts.WithLineStyleOpts(opts.LineStyle{Color: colorPosition, Width: 2}))

	page := components.NewPage()
	page.AddCharts(line)
	return page.Render(w)
}

// RenderForexCurve writes an HTML page charting the forex balance curve.
func RenderForexCurve(w io.Writer, title string, points []forex.CurvePoint) error {
	if len(points) == 0 {
		return fmt.Errorf("no points to render")
	}

	days := make([]string, 0, len(points))
	balance := make([]opts.LineData, 0, len(points))
	for _, p := range points {
		days = append(days, dateutil.FormatDay(p.Day))
		balance = append(balance, opts.LineData{Value: p.Balance.InexactFloat64()})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros, Width: "1200px", Height: "520px"}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)
	line.SetXAxis(days)
	line.AddSeries("账户余额", balance, charts.WithLineStyleOpts(opts.LineStyle{Color: colorBalance, Width: 2}))

	page := components.NewPage()
	page.AddCharts(line)
	return page.Render(w)
}
