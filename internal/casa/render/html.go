package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/you112ef/Sky-CASA/internal/casa/l4motility"
	"github.com/you112ef/Sky-CASA/internal/casa/pipeline"
)

// RenderTrajectoryHTML writes an interactive page for res: a scatter of
// every centroid, one series per class, and a bar chart of class counts.
func RenderTrajectoryHTML(w io.Writer, res *pipeline.AnalysisResult) error {
	subtitle := fmt.Sprintf("run=%s tracks=%d", res.RunID, res.Aggregate.TotalTracks)
	if res.SampleID != "" {
		subtitle = fmt.Sprintf("sample=%s %s", res.SampleID, subtitle)
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "CASA Trajectories", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Trajectories", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "x (px)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "y (px)", NameLocation: "middle", NameGap: 30}),
	)

	series := map[l4motility.Class][]opts.ScatterData{}
	for _, tr := range res.Tracks {
		for _, pt := range tr.Track.Points {
			series[tr.Class] = append(series[tr.Class], opts.ScatterData{
				Value: []interface{}{pt.X, pt.Y, tr.Track.TrackID},
			})
		}
	}
	for _, class := range legendOrder {
		data, ok := series[class]
		if !ok {
			continue
		}
		name := classLabel(class)
		rgba := colorFor(class)
		scatter.AddSeries(name, data,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: fmt.Sprintf("#%02x%02x%02x", rgba.R, rgba.G, rgba.B)}),
		)
	}

	agg := res.Aggregate
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Motility classes", Subtitle: res.AnalyzedAt.Format(pipeline.TimestampLayout)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	labels := make([]string, len(classOrder))
	for i, c := range classOrder {
		labels[i] = c.Label()
	}
	bar.SetXAxis(labels).
		AddSeries("tracks", []opts.BarData{
			{Value: agg.Progressive},
			{Value: agg.NonProgressive},
			{Value: agg.Immotile},
		}, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))

	page := components.NewPage()
	page.AddCharts(scatter, bar)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
