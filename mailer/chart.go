package mailer

import (
	"bytes"
	"time"

	"github.com/pkg/errors"
	chart "github.com/wcharczuk/go-chart/v2"

	"newsdigest/digest"
)

const (
	chartWidth  = 640
	chartHeight = 260
)

// RenderChart rasterizes the closing prices of c as a PNG line chart.
func RenderChart(c digest.Chart) ([]byte, error) {
	if len(c.Bars) < 2 {
		return nil, errors.Errorf("chart %s: need at least two bars, have %d", c.Key, len(c.Bars))
	}

	xs := make([]time.Time, 0, len(c.Bars))
	ys := make([]float64, 0, len(c.Bars))
	for _, b := range c.Bars {
		xs = append(xs, b.Time)
		ys = append(ys, b.Close)
	}

	graph := chart.Chart{
		Title:  c.Name,
		Width:  chartWidth,
		Height: chartHeight,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("Jan 02"),
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f")
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    c.Name,
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: chart.ColorBlue,
					StrokeWidth: 2,
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, errors.Wrapf(err, "chart %s", c.Key)
	}
	return buf.Bytes(), nil
}
