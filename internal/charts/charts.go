package charts

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"salesdash/internal/dataset"
	"salesdash/internal/pipeline"
)

var (
	ErrUnknownChart = errors.New("unknown chart")
	ErrUnavailable  = errors.New("chart unavailable for this dataset")
	ErrRender       = errors.New("chart could not be rendered")

	// errNoData is returned before anything is written; Render answers it
	// with an empty chart.
	errNoData = errors.New("no data for the current filters")
)

// Kind names a chart endpoint
type Kind string

const (
	KindCategory      Kind = "category"
	KindRegion        Kind = "region"
	KindTimeSeries    Kind = "timeseries"
	KindSegment       Kind = "segment"
	KindCategoryShare Kind = "category-share"
	KindScatter       Kind = "scatter"
)

// Kinds lists every chart in page order
var Kinds = []Kind{KindCategory, KindRegion, KindTimeSeries, KindSegment, KindCategoryShare, KindScatter}

// Feature returns the dashboard section a chart draws
func (k Kind) Feature() (dataset.Feature, bool) {
	switch k {
	case KindCategory:
		return dataset.FeatureSalesByCategory, true
	case KindRegion:
		return dataset.FeatureSalesByRegion, true
	case KindTimeSeries:
		return dataset.FeatureSalesOverTime, true
	case KindSegment:
		return dataset.FeatureSalesBySegment, true
	case KindCategoryShare:
		return dataset.FeatureCategoryShare, true
	case KindScatter:
		return dataset.FeatureSalesVsProfit, true
	}
	return "", false
}

var palette = []drawing.Color{
	drawing.ColorFromHex("4C72B0"),
	drawing.ColorFromHex("DD8452"),
	drawing.ColorFromHex("55A868"),
	drawing.ColorFromHex("C44E52"),
	drawing.ColorFromHex("8172B3"),
	drawing.ColorFromHex("937860"),
	drawing.ColorFromHex("DA8BC3"),
	drawing.ColorFromHex("8C8C8C"),
	drawing.ColorFromHex("CCB974"),
	drawing.ColorFromHex("64B5CD"),
}

func color(i int) drawing.Color {
	return palette[i%len(palette)]
}

var titles = map[Kind]string{
	KindCategory:      "Sales by Category",
	KindRegion:        "Sales by Region",
	KindTimeSeries:    "Time Series Sales Analysis",
	KindSegment:       "Segment-wise Sales",
	KindCategoryShare: "Category-wise Sales",
	KindScatter:       "Sales vs Profit",
}

// Options sizes every chart
type Options struct {
	Width  int
	Height int
}

// Renderer draws dashboard sections as SVG
type Renderer struct {
	opts   Options
	logger *slog.Logger
}

// NewRenderer creates a renderer, defaulting to 640x400.
func NewRenderer(opts Options, logger *slog.Logger) *Renderer {
	if opts.Width <= 0 {
		opts.Width = 640
	}
	if opts.Height <= 0 {
		opts.Height = 400
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{opts: opts, logger: logger.With(slog.String("component", "charts"))}
}

// Render writes the SVG for kind. The caller should buffer the output: on
// error a partial document may have been written.
func (r *Renderer) Render(w io.Writer, kind Kind, d *pipeline.Dashboard) error {
	feature, ok := kind.Feature()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownChart, kind)
	}
	if res := d.Feature(feature); res.Status != pipeline.StatusReady {
		return fmt.Errorf("%w: %s is %s", ErrUnavailable, feature, res.Status)
	}

	title := titles[kind]
	var err error
	switch kind {
	case KindCategory:
		err = r.bar(w, title, d.CategoryTotals)
	case KindRegion:
		err = r.donut(w, title, d.RegionTotals)
	case KindTimeSeries:
		err = r.line(w, title, d.TimeSeries)
	case KindSegment:
		err = r.pie(w, title, d.SegmentTotals)
	case KindCategoryShare:
		err = r.pie(w, title, d.CategoryShare)
	case KindScatter:
		err = r.scatter(w, title, d.Scatter)
	}
	if errors.Is(err, errNoData) {
		err = r.empty(w, title)
	}
	if err != nil {
		r.logger.Warn("Chart render failed",
			slog.String("chart", string(kind)),
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: %s: %v", ErrRender, kind, err)
	}
	return nil
}

func (r *Renderer) bar(w io.Writer, title string, totals []pipeline.Total) error {
	if len(totals) == 0 {
		return errNoData
	}
	bars := make([]chart.Value, len(totals))
	lo, hi := 0.0, 0.0
	for i, t := range totals {
		v := t.Sales.InexactFloat64()
		bars[i] = chart.Value{
			Label: t.Key,
			Value: v,
			Style: chart.Style{FillColor: color(i), StrokeColor: color(i)},
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if hi == lo {
		hi = lo + 1
	}

	bc := chart.BarChart{
		Title:      title,
		Width:      r.opts.Width,
		Height:     r.opts.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		BarWidth:   barWidth(r.opts.Width, len(bars)),
		YAxis:      chart.YAxis{Range: &chart.ContinuousRange{Min: lo, Max: hi * 1.05}},
		Bars:       bars,
	}
	return bc.Render(chart.SVG, w)
}

func barWidth(width, n int) int {
	w := width / (2*n + 1)
	if w > 80 {
		return 80
	}
	if w < 8 {
		return 8
	}
	return w
}

// pieValues keeps positive slices only; go-chart cannot draw the rest.
func pieValues(totals []pipeline.Total) ([]chart.Value, error) {
	values := make([]chart.Value, 0, len(totals))
	for _, t := range totals {
		v := t.Sales.InexactFloat64()
		if v <= 0 {
			continue
		}
		values = append(values, chart.Value{
			Label: t.Key,
			Value: v,
			Style: chart.Style{FillColor: color(len(values))},
		})
	}
	if len(values) == 0 {
		return nil, errNoData
	}
	return values, nil
}

func (r *Renderer) pie(w io.Writer, title string, totals []pipeline.Total) error {
	values, err := pieValues(totals)
	if err != nil {
		return err
	}
	pc := chart.PieChart{
		Title:  title,
		Width:  r.opts.Width,
		Height: r.opts.Height,
		Values: values,
	}
	return pc.Render(chart.SVG, w)
}

func (r *Renderer) donut(w io.Writer, title string, totals []pipeline.Total) error {
	values, err := pieValues(totals)
	if err != nil {
		return err
	}
	dc := chart.DonutChart{
		Title:  title,
		Width:  r.opts.Width,
		Height: r.opts.Height,
		Values: values,
	}
	return dc.Render(chart.SVG, w)
}

func (r *Renderer) line(w io.Writer, title string, totals []pipeline.Total) error {
	if len(totals) == 0 {
		return errNoData
	}
	xs := make([]time.Time, 0, len(totals))
	ys := make([]float64, 0, len(totals))
	for _, t := range totals {
		month, err := time.Parse("2006-01", t.Key)
		if err != nil {
			return fmt.Errorf("bad month key %q: %w", t.Key, err)
		}
		xs = append(xs, month)
		ys = append(ys, t.Sales.InexactFloat64())
	}
	// go-chart needs two distinct x values
	if len(xs) == 1 {
		xs = append(xs, xs[0].AddDate(0, 1, 0))
		ys = append(ys, ys[0])
	}

	ch := chart.Chart{
		Title:      title,
		Width:      r.opts.Width,
		Height:     r.opts.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16}},
		XAxis:      chart.XAxis{Name: "Month", ValueFormatter: chart.TimeValueFormatterWithFormat("2006-01")},
		YAxis:      chart.YAxis{Name: "Amount", Range: paddedRange(ys)},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Sales",
				XValues: xs,
				YValues: ys,
				Style:   chart.Style{StrokeColor: color(0), StrokeWidth: 2, DotWidth: 3, DotColor: color(0)},
			},
		},
	}
	return ch.Render(chart.SVG, w)
}

func (r *Renderer) scatter(w io.Writer, title string, s *pipeline.Scatter) error {
	if s == nil || len(s.Points) == 0 {
		return errNoData
	}

	group := map[string]int{}
	names := []string{"Sales"}
	if s.Colored {
		names = names[:0]
		for i, c := range s.Categories {
			group[c] = i
			names = append(names, c)
		}
	}

	type pts struct{ x, y, q []float64 }
	byGroup := make([]pts, len(names))
	var allX, allY []float64
	maxQ := 0.0
	for _, p := range s.Points {
		g := 0
		if s.Colored {
			i, ok := group[p.Category]
			if !ok {
				continue
			}
			g = i
		}
		x, y, q := p.Sales.InexactFloat64(), p.Profit.InexactFloat64(), p.Quantity.InexactFloat64()
		byGroup[g].x = append(byGroup[g].x, x)
		byGroup[g].y = append(byGroup[g].y, y)
		byGroup[g].q = append(byGroup[g].q, q)
		allX, allY = append(allX, x), append(allY, y)
		maxQ = math.Max(maxQ, q)
	}

	series := make([]chart.Series, 0, len(names))
	for i, name := range names {
		g := byGroup[i]
		if len(g.x) == 0 {
			continue
		}
		if len(g.x) == 1 {
			g.x, g.y, g.q = append(g.x, g.x[0]), append(g.y, g.y[0]), append(g.q, g.q[0])
		}
		sizes := g.q
		series = append(series, chart.ContinuousSeries{
			Name:    name,
			XValues: g.x,
			YValues: g.y,
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				StrokeColor: color(i),
				DotColor:    color(i),
				DotWidthProvider: func(_, _ chart.Range, index int, _, _ float64) float64 {
					return dotSize(sizes[index], maxQ)
				},
			},
		})
	}

	ch := chart.Chart{
		Title:      title,
		Width:      r.opts.Width,
		Height:     r.opts.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16}},
		XAxis:      chart.XAxis{Name: "Sales", Range: paddedRange(allX)},
		YAxis:      chart.YAxis{Name: "Profit", Range: paddedRange(allY)},
		Series:     series,
	}
	if len(series) > 1 {
		ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	}
	return ch.Render(chart.SVG, w)
}

// empty draws the title and a notice in place of a chart with nothing to plot
func (r *Renderer) empty(w io.Writer, title string) error {
	rnd, err := chart.SVG(r.opts.Width, r.opts.Height)
	if err != nil {
		return err
	}
	font, err := chart.GetDefaultFont()
	if err != nil {
		return err
	}
	rnd.SetFont(font)

	rnd.SetFontColor(drawing.ColorFromHex("333333"))
	rnd.SetFontSize(14)
	rnd.Text(title, (r.opts.Width-rnd.MeasureText(title).Width())/2, 30)

	msg := "No data for the current filters"
	rnd.SetFontColor(drawing.ColorFromHex("8C8C8C"))
	rnd.SetFontSize(12)
	rnd.Text(msg, (r.opts.Width-rnd.MeasureText(msg).Width())/2, r.opts.Height/2)

	return rnd.Save(w)
}

// dotSize maps a Quantity onto a 2..12 pixel marker.
func dotSize(q, maxQ float64) float64 {
	if maxQ <= 0 || q <= 0 {
		return 2
	}
	return 2 + 10*math.Sqrt(q/maxQ)
}

// paddedRange returns a range with 5% headroom that never collapses to a point.
func paddedRange(values []float64) *chart.ContinuousRange {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		return &chart.ContinuousRange{Min: 0, Max: 1}
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = math.Max(math.Abs(hi)*0.05, 1)
	}
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}
