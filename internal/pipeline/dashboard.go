package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"salesdash/internal/dataset"
)

// Status of one dashboard section after a recomputation
type Status string

const (
	StatusReady   Status = "ready"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// FeatureResult is the typed outcome of one section. Skipped sections are
// not rendered; failed sections show Message in place of their content.
type FeatureResult struct {
	Feature dataset.Feature `json:"feature"`
	Status  Status          `json:"status"`
	Missing []string        `json:"missing,omitempty"`
	Message string          `json:"message,omitempty"`
	Err     error           `json:"-"`
}

// Query is one user interaction: an optional date range and the dimension
// selections. Nil bounds default to the observed min and max.
type Query struct {
	Start     *time.Time
	End       *time.Time
	Selection Selection
}

// DateRange reports the observed bounds and the range actually applied.
type DateRange struct {
	Min   time.Time `json:"min"`
	Max   time.Time `json:"max"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Dashboard is the full result of one recomputation, in page order.
type Dashboard struct {
	Source       string          `json:"source"`
	Format       dataset.Format  `json:"format"`
	Fingerprint  string          `json:"fingerprint"`
	Fallback     bool            `json:"fallback"`
	Columns      []string        `json:"columns"`
	Missing      []string        `json:"missing,omitempty"`
	Warning      string          `json:"warning,omitempty"`
	TotalRows    int             `json:"total_rows"`
	FilteredRows int             `json:"filtered_rows"`
	DateRange    *DateRange      `json:"date_range,omitempty"`
	Filters      []StageResult   `json:"filters"`
	Features     []FeatureResult `json:"features"`

	CategoryTotals []Total     `json:"category_totals,omitempty"`
	RegionTotals   []Total     `json:"region_totals,omitempty"`
	TimeSeries     []Total     `json:"time_series,omitempty"`
	Hierarchy      *Hierarchy  `json:"hierarchy,omitempty"`
	SegmentTotals  []Total     `json:"segment_totals,omitempty"`
	CategoryShare  []Total     `json:"category_share,omitempty"`
	Sample         *Table      `json:"sample,omitempty"`
	Pivot          *Pivot      `json:"pivot,omitempty"`
	Scatter        *Scatter    `json:"scatter,omitempty"`
	Raw            *Table      `json:"raw"`
}

// Feature returns the result recorded for f
func (d *Dashboard) Feature(f dataset.Feature) FeatureResult {
	for _, r := range d.Features {
		if r.Feature == f {
			return r
		}
	}
	return FeatureResult{Feature: f, Status: StatusSkipped}
}

// Ready reports whether the named section has content. Takes a string so
// templates can call it directly.
func (d *Dashboard) Ready(name string) bool {
	return d.Feature(dataset.Feature(name)).Status == StatusReady
}

// Shown reports whether the named section appears at all, as content or as
// a placeholder.
func (d *Dashboard) Shown(name string) bool {
	return d.Feature(dataset.Feature(name)).Status != StatusSkipped
}

// Options tunes the composer
type Options struct {
	SampleRows  int
	RawRowLimit int
}

// Composer runs the whole pipeline for one dataset and query.
type Composer struct {
	logger *slog.Logger
	opts   Options
}

// NewComposer creates a composer. SampleRows defaults to 5.
func NewComposer(logger *slog.Logger, opts Options) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SampleRows <= 0 {
		opts.SampleRows = 5
	}
	return &Composer{
		logger: logger.With(slog.String("component", "pipeline.composer")),
		opts:   opts,
	}
}

// Compose recomputes every section from scratch. Only the dataset's own
// columns decide which sections run; each section's failure stays local.
func (c *Composer) Compose(ctx context.Context, ds *dataset.Dataset, q Query) *Dashboard {
	caps := dataset.CheckCapabilities(ds.Columns)
	d := &Dashboard{
		Source:      ds.Source,
		Format:      ds.Format,
		Fingerprint: ds.Fingerprint,
		Columns:     ds.Columns,
		TotalRows:   ds.Len(),
	}
	if w := dataset.CheckSchema(ds); w != nil {
		d.Missing = w.Missing
		d.Warning = w.Error()
	}

	view := dataset.All(ds)

	var dates *DateIndex
	var dateErr error
	c.run(ctx, d, caps, dataset.FeatureDateRange, func() error {
		dates, dateErr = ParseDates(ds)
		if dateErr != nil {
			return dateErr
		}
		r := &DateRange{Min: dates.Min, Max: dates.Max, Start: dates.Min, End: dates.Max}
		if q.Start != nil {
			r.Start = calendarDate(*q.Start)
		}
		if q.End != nil {
			r.End = calendarDate(*q.End)
		}
		d.DateRange = r
		view = FilterDateRange(view, dates, r.Start, r.End)
		return nil
	})

	// the sample table reads the date-filtered rows, before dimension filters
	dated := view

	view, d.Filters = ApplyDimensions(view, q.Selection)
	for _, f := range []dataset.Feature{dataset.FeatureFilterRegion, dataset.FeatureFilterState, dataset.FeatureFilterCity} {
		c.run(ctx, d, caps, f, func() error { return nil })
	}
	d.FilteredRows = view.Len()

	c.run(ctx, d, caps, dataset.FeatureSalesByCategory, func() (err error) {
		d.CategoryTotals, err = SalesBy(view, dataset.ColCategory)
		return err
	})
	c.run(ctx, d, caps, dataset.FeatureSalesByRegion, func() (err error) {
		d.RegionTotals, err = SalesBy(view, dataset.ColRegion)
		return err
	})
	c.run(ctx, d, caps, dataset.FeatureSalesOverTime, func() (err error) {
		if dateErr != nil {
			return dateErr
		}
		d.TimeSeries, err = MonthlySales(view, dates)
		return err
	})
	c.run(ctx, d, caps, dataset.FeatureSalesHierarchy, func() (err error) {
		d.Hierarchy, err = BuildHierarchy(view)
		return err
	})
	c.run(ctx, d, caps, dataset.FeatureSalesBySegment, func() (err error) {
		d.SegmentTotals, err = SalesBy(view, dataset.ColSegment)
		return err
	})
	c.run(ctx, d, caps, dataset.FeatureCategoryShare, func() (err error) {
		d.CategoryShare, err = SalesBy(view, dataset.ColCategory)
		return err
	})
	c.run(ctx, d, caps, dataset.FeatureSampleTable, func() (err error) {
		d.Sample, err = SampleTable(dated, c.opts.SampleRows)
		return err
	})
	c.run(ctx, d, caps, dataset.FeaturePivotTable, func() (err error) {
		if dateErr != nil {
			return pivotError(dateErr)
		}
		d.Pivot, err = BuildPivot(view, dates)
		return err
	})
	c.run(ctx, d, caps, dataset.FeatureSalesVsProfit, func() (err error) {
		d.Scatter, err = Correlation(view)
		return err
	})

	d.Raw = RawTable(view, c.opts.RawRowLimit)

	c.logger.DebugContext(ctx, "Dashboard composed",
		slog.String("source", ds.Source),
		slog.Int("rows", d.TotalRows),
		slog.Int("filtered_rows", d.FilteredRows),
		slog.Int("missing_columns", len(d.Missing)))
	return d
}

// run executes one section when its columns are present and records the
// typed outcome. A failing section never stops the others.
func (c *Composer) run(ctx context.Context, d *Dashboard, caps dataset.CapabilitySet, f dataset.Feature, fn func() error) {
	if !caps.Enabled(f) {
		d.Features = append(d.Features, FeatureResult{Feature: f, Status: StatusSkipped, Missing: caps.Missing(f)})
		return
	}
	if err := fn(); err != nil {
		res := FeatureResult{Feature: f, Status: StatusFailed, Message: err.Error(), Err: err}
		var tre *TableRenderError
		if errors.As(err, &tre) && tre.Placeholder != "" {
			res.Message = tre.Placeholder
		}
		c.logger.WarnContext(ctx, "Dashboard section failed",
			slog.String("feature", string(f)),
			slog.String("error", err.Error()))
		d.Features = append(d.Features, res)
		return
	}
	d.Features = append(d.Features, FeatureResult{Feature: f, Status: StatusReady})
}
