package analytics

import (
	"fmt"
	"math"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var (
	colorUp        = drawing.ColorFromHex("26a69a")
	colorDown      = drawing.ColorFromHex("ef5350")
	colorBar       = drawing.ColorFromHex("90a4ae")
	colorHighlight = drawing.ColorFromHex("ff9800")
	colorBand      = drawing.ColorFromHex("1e88e5")
	colorSignal    = drawing.ColorFromHex("ab47bc")
	colorCanvas    = drawing.ColorFromHex("fafafa")
)

// candleSeries draws OHLC candles. It reports high and low as its bounds so
// the chart range covers every wick.
type candleSeries struct {
	name    string
	candles []Candle
	step    time.Duration
}

var (
	_ chart.Series                = candleSeries{}
	_ chart.BoundedValuesProvider = candleSeries{}
)

func (s candleSeries) GetName() string           { return s.name }
func (s candleSeries) GetYAxis() chart.YAxisType { return chart.YAxisPrimary }
func (s candleSeries) GetStyle() chart.Style     { return chart.Style{} }
func (s candleSeries) Len() int                  { return len(s.candles) }
func (s candleSeries) Validate() error           { return nil }

func (s candleSeries) GetBoundedValues(i int) (x, y1, y2 float64) {
	c := s.candles[i]
	return chart.TimeToFloat64(c.Time), c.High, c.Low
}

func (s candleSeries) Render(r chart.Renderer, box chart.Box, xrange, yrange chart.Range, _ chart.Style) {
	half := halfSlot(xrange, s.step, 0.35)
	for _, c := range s.candles {
		color := colorUp
		if c.Close < c.Open {
			color = colorDown
		}

		x := box.Left + xrange.Translate(chart.TimeToFloat64(c.Time))
		r.SetStrokeColor(color)
		r.SetStrokeWidth(1)
		r.MoveTo(x, box.Bottom-yrange.Translate(c.High))
		r.LineTo(x, box.Bottom-yrange.Translate(c.Low))
		r.Stroke()

		top := box.Bottom - yrange.Translate(math.Max(c.Open, c.Close))
		bottom := box.Bottom - yrange.Translate(math.Min(c.Open, c.Close))
		fillRect(r, x-half, top, x+half, bottom, color)
	}
}

// barSeries draws vertical bars from zero. color picks the fill per index.
type barSeries struct {
	name  string
	times []time.Time
	ys    []float64
	step  time.Duration
	color func(i int) drawing.Color
}

var (
	_ chart.Series                = barSeries{}
	_ chart.BoundedValuesProvider = barSeries{}
)

func (s barSeries) GetName() string           { return s.name }
func (s barSeries) GetYAxis() chart.YAxisType { return chart.YAxisPrimary }
func (s barSeries) GetStyle() chart.Style     { return chart.Style{} }
func (s barSeries) Len() int                  { return len(s.ys) }

func (s barSeries) Validate() error {
	if len(s.times) != len(s.ys) {
		return fmt.Errorf("bar series %q: %d times for %d values", s.name, len(s.times), len(s.ys))
	}
	return nil
}

func (s barSeries) GetBoundedValues(i int) (x, y1, y2 float64) {
	return chart.TimeToFloat64(s.times[i]), s.ys[i], 0
}

func (s barSeries) Render(r chart.Renderer, box chart.Box, xrange, yrange chart.Range, _ chart.Style) {
	half := halfSlot(xrange, s.step, 0.4)
	base := box.Bottom - yrange.Translate(0)
	if base > box.Bottom {
		base = box.Bottom
	}
	if base < box.Top {
		base = box.Top
	}

	for i, y := range s.ys {
		if math.IsNaN(y) {
			continue
		}
		color := colorBar
		if s.color != nil {
			color = s.color(i)
		}
		x := box.Left + xrange.Translate(chart.TimeToFloat64(s.times[i]))
		top := box.Bottom - yrange.Translate(y)
		fillRect(r, x-half, top, x+half, base, color)
	}
}

// lineSeries returns a time series over the points that are not NaN. The
// second result is false when nothing is left to draw.
func lineSeries(name string, times []time.Time, ys []float64, style chart.Style) (chart.TimeSeries, bool) {
	ts := chart.TimeSeries{Name: name, Style: style}
	for i, y := range ys {
		if math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}
		ts.XValues = append(ts.XValues, times[i])
		ts.YValues = append(ts.YValues, y)
	}
	return ts, len(ts.XValues) > 1
}

// halfSlot is half the pixel width of one time step scaled by ratio, at
// least one pixel.
func halfSlot(xrange chart.Range, step time.Duration, ratio float64) int {
	if step <= 0 {
		step = time.Hour
	}
	origin := time.Unix(0, 0)
	span := xrange.Translate(chart.TimeToFloat64(origin.Add(step))) - xrange.Translate(chart.TimeToFloat64(origin))
	half := int(math.Abs(float64(span)) * ratio)
	if half < 1 {
		return 1
	}
	return half
}

func fillRect(r chart.Renderer, left, top, right, bottom int, color drawing.Color) {
	if top > bottom {
		top, bottom = bottom, top
	}
	if bottom-top < 1 {
		bottom = top + 1
	}
	r.SetFillColor(color)
	r.SetStrokeColor(color)
	r.SetStrokeWidth(1)
	r.MoveTo(left, top)
	r.LineTo(right, top)
	r.LineTo(right, bottom)
	r.LineTo(left, bottom)
	r.LineTo(left, top)
	r.Close()
	r.FillStroke()
}
