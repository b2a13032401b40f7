package report

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/microstate"
)

// RecordingMetrics pairs a recording name with its back-fit metrics.
type RecordingMetrics struct {
	Name    string
	Metrics *microstate.Metrics
}

// WriteMetricsHTML renders bar charts of coverage, occurrence, mean
// duration and occurrence rate with one group per recording and one series
// per label. Labels that never occur have no duration bar.
func WriteMetricsHTML(w io.Writer, recs []RecordingMetrics) error {
	if len(recs) == 0 {
		return errors.New("metrics report: no recordings")
	}
	k := len(recs[0].Metrics.Labels)
	names := make([]string, len(recs))
	for i, r := range recs {
		if len(r.Metrics.Labels) != k {
			return fmt.Errorf("metrics report: %s has %d labels, want %d", r.Name, len(r.Metrics.Labels), k)
		}
		names[i] = r.Name
	}

	page := components.NewPage()
	page.PageTitle = "Microstate metrics"
	page.AddCharts(
		metricBar("Coverage", "fraction of samples", names, recs,
			func(lm microstate.LabelMetrics) float64 { return lm.Coverage }),
		metricBar("Occurrence", "number of runs", names, recs,
			func(lm microstate.LabelMetrics) float64 { return float64(lm.Occurrence) }),
		metricBar("Mean duration", "seconds", names, recs,
			func(lm microstate.LabelMetrics) float64 { return lm.MeanDuration }),
		metricBar("Occurrence rate", "runs per second", names, recs,
			func(lm microstate.LabelMetrics) float64 { return lm.OccurrenceRate }),
	)
	return page.Render(w)
}

func metricBar(title, unit string, names []string, recs []RecordingMetrics,
	value func(microstate.LabelMetrics) float64) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: unit}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
	)
	bar.SetXAxis(names)

	for j := range recs[0].Metrics.Labels {
		data := make([]opts.BarData, len(recs))
		for i, r := range recs {
			v := value(r.Metrics.Labels[j])
			if math.IsNaN(v) {
				// null leaves a gap instead of a zero-height bar.
				data[i] = opts.BarData{Value: nil}
				continue
			}
			data[i] = opts.BarData{Value: v}
		}
		bar.AddSeries(microstate.LabelFor(j).String(), data)
	}
	return bar
}
