package session

import (
	"fmt"
	"io"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderReport writes a self-contained HTML report for one session:
// EAR over time, gaze variance over time and the attentive timeline.
func (s *Store) RenderReport(w io.Writer, id string) error {
	summary, err := s.Summarize(id)
	if err != nil {
		return err
	}
	samples, err := s.Samples(id)
	if err != nil {
		return err
	}

	subtitle := fmt.Sprintf(
		"session=%s source=%s duration=%s frames=%d attentive=%.0f%% transitions=%d longest=%s",
		summary.ID, summary.Source, summary.Duration.Round(time.Second), summary.Frames,
		summary.AttentiveRatio*100, summary.Transitions,
		summary.LongestAttentive.Round(time.Second),
	)

	labels := make([]string, len(samples))
	earMean := make([]opts.LineData, len(samples))
	earMin := make([]opts.LineData, len(samples))
	earMax := make([]opts.LineData, len(samples))
	variance := make([]opts.LineData, len(samples))
	attentive := make([]opts.LineData, len(samples))
	for i, smp := range samples {
		labels[i] = offsetLabel(smp.At.Sub(summary.StartedAt))
		earMean[i] = opts.LineData{Value: smp.EARMean}
		earMin[i] = opts.LineData{Value: smp.EARMin}
		earMax[i] = opts.LineData{Value: smp.EARMax}
		variance[i] = opts.LineData{Value: smp.VarianceMean}
		ratio := 0.0
		if smp.TotalFrames > 0 {
			ratio = float64(smp.AttentiveFrames) / float64(smp.TotalFrames)
		}
		attentive[i] = opts.LineData{Value: ratio}
	}

	ear := charts.NewLine()
	ear.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Session " + summary.ID, Width: "1200px", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: "Eye aspect ratio", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "EAR"}),
	)
	ear.SetXAxis(labels).
		AddSeries("mean", earMean).
		AddSeries("min", earMin).
		AddSeries("max", earMax)

	vr := charts.NewLine()
	vr.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: "Gaze variance"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "variance (px^2)"}),
	)
	vr.SetXAxis(labels).AddSeries("variance", variance)

	att := charts.NewLine()
	att.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: "Attentive timeline"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "attentive fraction", Min: 0, Max: 1}),
	)
	att.SetXAxis(labels).AddSeries("attentive", attentive)

	page := components.NewPage()
	page.AddCharts(ear, vr, att)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("session: render report %s: %w", id, err)
	}
	return nil
}

func offsetLabel(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
