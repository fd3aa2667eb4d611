package rates

import (
	"fmt"
	"math"
	"os"
	"os/exec"
	"strings"
	"time"

	grob "github.com/MetalBlueberry/go-plotly/graph_objects"
	"github.com/MetalBlueberry/go-plotly/offline"
)

type Plot struct {
	Fig *grob.Fig
	Lay *grob.Layout
}

type PlotOpt func(plot *Plot) *Plot

func NewPlot(opt ...PlotOpt) *Plot {
	fig := &grob.Fig{}
	lay := &grob.Layout{}
	fig.Layout = lay
	p := &Plot{Fig: fig, Lay: lay}
	for _, o := range opt {
		o(p)
	}

	return p
}

func PlotWidth(w float64) PlotOpt {
	if w < 0.0 {
		panic(fmt.Errorf("negative width"))
	}
	return func(p *Plot) *Plot {
		p.Lay.Width = w
		return p
	}
}

func PlotHeight(h float64) PlotOpt {
	if h < 0.0 {
		panic(fmt.Errorf("negative height"))
	}
	return func(p *Plot) *Plot {
		p.Lay.Height = h
		return p
	}
}

func PlotTitle(title string) PlotOpt {
	return func(p *Plot) *Plot { p.Lay.Title = &grob.LayoutTitle{Text: title}; return p }
}

// PlotSubtitle goes below the x label; used for the filter summary.
func PlotSubtitle(subTitle string) PlotOpt {
	return func(p *Plot) *Plot {
		xAxis := p.xAxis()

		var xLabel string
		if xLabel, _ = xAxis.Title.Text.(string); xLabel != "" {
			xLabel += "<br>"
		}
		xAxis.Title.Text = xLabel + subTitle
		return p
	}
}

func PlotLegend(show bool) PlotOpt {
	return func(p *Plot) *Plot {
		if show {
			p.Lay.Showlegend = grob.True
		} else {
			p.Lay.Showlegend = grob.False
		}

		return p
	}
}

func PlotXlabel(label string) PlotOpt {
	return func(p *Plot) *Plot {
		xAxis := p.xAxis()

		subTitle := ""
		xLabel, _ := xAxis.Title.Text.(string)
		if ind := strings.Index(xLabel, "<br>"); ind >= 0 {
			subTitle = xLabel[ind:]
		}

		xAxis.Title.Text = label + subTitle
		return p
	}
}

func PlotYlabel(label string) PlotOpt {
	return func(p *Plot) *Plot {
		if p.Lay.Yaxis == nil {
			p.Lay.Yaxis = &grob.LayoutYaxis{}
		}
		if p.Lay.Yaxis.Title == nil {
			p.Lay.Yaxis.Title = &grob.LayoutYaxisTitle{}
		}

		p.Lay.Yaxis.Title.Text = label
		return p
	}
}

func (p *Plot) xAxis() *grob.LayoutXaxis {
	if p.Lay.Xaxis == nil {
		p.Lay.Xaxis = &grob.LayoutXaxis{}
	}

	if p.Lay.Xaxis.Title == nil {
		p.Lay.Xaxis.Title = &grob.LayoutXaxisTitle{Text: ""}
	}

	return p.Lay.Xaxis
}

// ***************** Traces *****************

// PlotXY adds a line series. NaN values are passed as gaps.
func (p *Plot) PlotXY(x, y []float64, seriesName, color string) error {
	if len(x) != len(y) {
		return fmt.Errorf("xy plots require equal lengths")
	}

	tr := &grob.Scatter{Name: seriesName, X: x, Y: gaps(y),
		Mode: grob.ScatterModeLines, Line: &grob.ScatterLine{Color: color}}

	p.Fig.AddTraces(tr)

	return nil
}

// PlotPoints adds a marker series with hover labels.
func (p *Plot) PlotPoints(x, y []float64, labels []string, seriesName, color string) error {
	if len(x) != len(y) {
		return fmt.Errorf("scatter plots require equal lengths")
	}

	tr := &grob.Scatter{Name: seriesName, X: x, Y: y, Text: labels,
		Mode: grob.ScatterModeMarkers, Marker: &grob.ScatterMarker{Color: color}}

	p.Fig.AddTraces(tr)

	return nil
}

func (p *Plot) PlotBars(labels []string, y []float64, seriesName, color string) error {
	if len(labels) != len(y) {
		return fmt.Errorf("bar plots require equal lengths")
	}

	tr := &grob.Bar{Name: seriesName, X: labels, Y: gaps(y), Marker: &grob.BarMarker{Color: color}}

	p.Fig.AddTraces(tr)

	return nil
}

// PlotTrend draws the rate by year, one line per territory.
func PlotTrend(tab *RateTable, names Names, opts ...PlotOpt) (*Plot, error) {
	if !tab.By.hasYear() {
		return nil, fmt.Errorf("trend plot needs a grouping by year, got %s", tab.By)
	}

	p := NewPlot(append([]PlotOpt{PlotXlabel("Ano"), PlotYlabel("Taxa por 100.000 hab.")}, opts...)...)

	var (
		order  []TerritoryCode
		series = make(map[TerritoryCode][2][]float64)
	)
	for _, r := range tab.Rows {
		s, ok := series[r.Key.Territory]
		if !ok {
			order = append(order, r.Key.Territory)
		}

		s[0], s[1] = append(s[0], float64(r.Key.Year)), append(s[1], r.Rate)
		series[r.Key.Territory] = s
	}

	for _, tc := range order {
		nm := "Total"
		if !tc.IsZero() {
			nm = names.Name(tc)
		}

		if e := p.PlotXY(series[tc][0], series[tc][1], nm, ""); e != nil {
			return nil, e
		}
	}

	return p, nil
}

// PlotRates draws a bar per territory of a ByTerritory table.
func PlotRates(tab *RateTable, names Names, opts ...PlotOpt) (*Plot, error) {
	if tab.By != ByTerritory {
		return nil, fmt.Errorf("bar plot needs a grouping by territory, got %s", tab.By)
	}

	p := NewPlot(append([]PlotOpt{PlotYlabel("Taxa por 100.000 hab."), PlotLegend(false)}, opts...)...)

	var (
		labels []string
		y      []float64
	)
	for _, r := range tab.Rows {
		labels, y = append(labels, names.Name(r.Key.Territory)), append(y, r.Rate)
	}

	return p, p.PlotBars(labels, y, "Taxa", "")
}

// PlotScatter draws score against the measure with the fitted line.
func PlotScatter(rows []JoinedRow, score string, m Measure, corr *Correlation, names Names, opts ...PlotOpt) (*Plot, error) {
	p := NewPlot(append([]PlotOpt{PlotXlabel(score), PlotYlabel(m.Label())}, opts...)...)

	var (
		x, y   []float64
		labels []string
	)
	for ind := range rows {
		v := m.Value(&rows[ind].RateRow)
		s, ok := rows[ind].Class.Score(score)
		if !ok || math.IsNaN(v) {
			continue
		}

		x, y = append(x, s), append(y, v)
		labels = append(labels, names.Name(rows[ind].Key.Territory))
	}

	if e := p.PlotPoints(x, y, labels, "Municípios", ""); e != nil {
		return nil, e
	}

	if corr == nil || len(x) == 0 {
		return p, nil
	}

	lo, hi := x[0], x[0]
	for _, v := range x {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}

	fit := fmt.Sprintf("r = %.3f, R² = %.3f, p = %.3g", corr.R, corr.R2, corr.PValue)

	return p, p.PlotXY([]float64{lo, hi}, []float64{corr.Intercept + corr.Slope*lo, corr.Intercept + corr.Slope*hi}, fit, "red")
}

// PlotBreakdown draws the measure of each stratum: bars over the whole range, one line per stratum by year.
func PlotBreakdown(bd *Breakdown, m Measure, opts ...PlotOpt) (*Plot, error) {
	if bd.By == ByTotal {
		p := NewPlot(append([]PlotOpt{PlotYlabel(m.Label()), PlotLegend(false)}, opts...)...)

		var (
			labels []string
			y      []float64
		)
		for ind := range bd.Rows {
			labels, y = append(labels, bd.Rows[ind].Stratum), append(y, m.Value(&bd.Rows[ind].RateRow))
		}

		return p, p.PlotBars(labels, y, m.String(), "")
	}

	p := NewPlot(append([]PlotOpt{PlotXlabel("Ano"), PlotYlabel(m.Label())}, opts...)...)

	var (
		order  []string
		series = make(map[string][2][]float64)
	)
	for ind := range bd.Rows {
		r := &bd.Rows[ind]
		sr, ok := series[r.Stratum]
		if !ok {
			order = append(order, r.Stratum)
		}

		sr[0], sr[1] = append(sr[0], float64(r.Key.Year)), append(sr[1], m.Value(&r.RateRow))
		series[r.Stratum] = sr
	}

	// rows are sorted by year first, so each series is in year order
	for _, st := range order {
		if e := p.PlotXY(series[st][0], series[st][1], st, ""); e != nil {
			return nil, e
		}
	}

	return p, nil
}

// PlotTiers draws a bar per development tier.
func PlotTiers(tiers []TierRate, opts ...PlotOpt) (*Plot, error) {
	p := NewPlot(append([]PlotOpt{PlotYlabel("Taxa por 100.000 hab."), PlotLegend(false)}, opts...)...)

	var (
		labels []string
		y      []float64
	)
	for _, t := range tiers {
		labels, y = append(labels, t.Tier.String()), append(y, t.Rate)
	}

	return p, p.PlotBars(labels, y, "Taxa", "")
}

// ***************** Output *****************

func (p *Plot) Show(browser, fileName string) error {
	const nameLength = 8

	if browser == "" {
		browser = "xdg-open"
	}

	tmpFile := false
	if fileName == "" {
		fileName = tempFile("html", nameLength)
		tmpFile = true
	}

	if e := p.Save(fileName); e != nil {
		return e
	}

	cmd := exec.Command(browser, fileName)
	if e := cmd.Start(); e != nil {
		return e
	}

	time.Sleep(time.Second) // need to pause while browser loads graph

	if tmpFile {
		if e := os.Remove(fileName); e != nil {
			return e
		}
	}

	return nil
}

// Save writes the figure as a self-contained html file.
func (p *Plot) Save(fileName string) error {
	if fileName == "" {
		return fmt.Errorf("no file name")
	}

	offline.ToHtml(p.Fig, fileName)

	_, e := os.Stat(fileName)

	return e
}

// gaps replaces NaN with nil so plotly leaves the point out.
func gaps(y []float64) []any {
	out := make([]any, len(y))
	for ind, v := range y {
		if math.IsNaN(v) {
			continue
		}

		out[ind] = v
	}

	return out
}
