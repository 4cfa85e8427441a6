package analytics

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"math"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"natalia_bot/internal/store"
)

const (
	overlayWidth       = 1600
	overlayPriceHeight = 520
	overlayPanelHeight = 240

	bandPeriod = 20
	bandUp     = 2.05
	bandDown   = 2.0

	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
)

// Overlay is the input of the price overlay picture. Buckets older than the
// first candle are ignored.
type Overlay struct {
	Title    string
	Candles  []Candle
	Stickers []store.Bucket
	Messages []store.Bucket
	Joins    []store.Bucket
}

// RenderOverlay draws four stacked panels sharing one time axis: price
// candles, stickers and messages with Bollinger bands where bars above the
// upper band are highlighted, and the MACD of joins.
func RenderOverlay(w io.Writer, in Overlay) error {
	if len(in.Candles) == 0 {
		return ErrNoData
	}

	start := in.Candles[0].Time
	end := in.Candles[len(in.Candles)-1].Time
	if !end.After(start) {
		end = start.Add(time.Hour)
	}
	xr := &chart.ContinuousRange{
		Min: chart.TimeToFloat64(start.Add(-time.Hour)),
		Max: chart.TimeToFloat64(end.Add(time.Hour)),
	}

	panels := []chart.Chart{
		pricePanel(in.Title, in.Candles, xr),
		bandPanel("Stickers", since(in.Stickers, start), xr),
		bandPanel("Messages", since(in.Messages, start), xr),
		macdPanel("Joins MACD", since(in.Joins, start), xr),
	}

	images := make([]image.Image, 0, len(panels))
	height := 0
	for _, panel := range panels {
		var buf bytes.Buffer
		if err := panel.Render(chart.PNG, &buf); err != nil {
			return fmt.Errorf("render %s panel: %w", panel.Title, err)
		}
		img, err := png.Decode(&buf)
		if err != nil {
			return fmt.Errorf("decode %s panel: %w", panel.Title, err)
		}
		images = append(images, img)
		height += img.Bounds().Dy()
	}

	canvas := image.NewRGBA(image.Rect(0, 0, overlayWidth, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(colorCanvas), image.Point{}, draw.Src)
	y := 0
	for _, img := range images {
		b := img.Bounds()
		draw.Draw(canvas, image.Rect(0, y, b.Dx(), y+b.Dy()), img, b.Min, draw.Over)
		y += b.Dy()
	}

	if err := png.Encode(w, canvas); err != nil {
		return fmt.Errorf("encode overlay: %w", err)
	}
	return nil
}

func since(buckets []store.Bucket, start time.Time) []store.Bucket {
	for i, b := range buckets {
		if !b.Time.Before(start) {
			return buckets[i:]
		}
	}
	return nil
}

func basePanel(title string, height int, xr chart.Range) chart.Chart {
	return chart.Chart{
		Title:  title,
		Width:  overlayWidth,
		Height: height,
		Background: chart.Style{
			FillColor: colorCanvas,
			Padding:   chart.Box{Top: 36, Left: 16, Right: 16, Bottom: 8},
		},
		Canvas: chart.Style{FillColor: colorCanvas},
		XAxis: chart.XAxis{
			Range:          xr,
			ValueFormatter: chart.TimeValueFormatterWithFormat("01-02 15h"),
		},
	}
}

func pricePanel(title string, candles []Candle, xr chart.Range) chart.Chart {
	low, high := math.Inf(1), math.Inf(-1)
	for _, c := range candles {
		low = math.Min(low, c.Low)
		high = math.Max(high, c.High)
	}

	panel := basePanel(title, overlayPriceHeight, xr)
	panel.YAxis = chart.YAxis{Name: "Price", Range: paddedRange(low, high)}
	panel.Series = []chart.Series{candleSeries{name: "price", candles: candles, step: time.Hour}}
	return panel
}

func bandPanel(title string, buckets []store.Bucket, xr chart.Range) chart.Chart {
	times, counts := split(buckets)
	bands := BollingerBands(counts, bandPeriod, bandUp, bandDown)

	bars := barSeries{
		name:  title,
		times: times,
		ys:    counts,
		step:  time.Hour,
		color: func(i int) drawing.Color {
			if !math.IsNaN(bands.Upper[i]) && counts[i] > bands.Upper[i] {
				return colorHighlight
			}
			return colorBar
		},
	}

	high := 0.0
	for i := range counts {
		high = math.Max(high, counts[i])
		if !math.IsNaN(bands.Upper[i]) {
			high = math.Max(high, bands.Upper[i])
		}
	}

	panel := basePanel(title, overlayPanelHeight, xr)
	panel.YAxis = chart.YAxis{Name: "Count", Range: paddedRange(0, high)}
	panel.Series = []chart.Series{bars}
	bandStyle := chart.Style{StrokeColor: colorBand, StrokeWidth: 1.5}
	if upper, ok := lineSeries("upper", times, bands.Upper, bandStyle); ok {
		panel.Series = append(panel.Series, upper)
	}
	if middle, ok := lineSeries("middle", times, bands.Middle, chart.Style{StrokeColor: colorBand, StrokeWidth: 1, StrokeDashArray: []float64{4, 4}}); ok {
		panel.Series = append(panel.Series, middle)
	}
	return panel
}

func macdPanel(title string, buckets []store.Bucket, xr chart.Range) chart.Chart {
	times, counts := split(buckets)
	res := MACD(counts, macdFast, macdSlow, macdSignal)

	low, high := 0.0, 0.0
	for i := range counts {
		for _, v := range []float64{res.MACD[i], res.Signal[i], res.Histogram[i]} {
			if !math.IsNaN(v) {
				low = math.Min(low, v)
				high = math.Max(high, v)
			}
		}
	}

	hist := barSeries{
		name:  "histogram",
		times: times,
		ys:    res.Histogram,
		step:  time.Hour,
		color: func(i int) drawing.Color {
			if res.Histogram[i] < 0 {
				return colorDown
			}
			return colorUp
		},
	}

	panel := basePanel(title, overlayPanelHeight, xr)
	panel.YAxis = chart.YAxis{Name: "MACD", Range: paddedRange(low, high)}
	panel.Series = []chart.Series{hist}
	if line, ok := lineSeries("macd", times, res.MACD, chart.Style{StrokeColor: colorBand, StrokeWidth: 1.5}); ok {
		panel.Series = append(panel.Series, line)
	}
	if signal, ok := lineSeries("signal", times, res.Signal, chart.Style{StrokeColor: colorSignal, StrokeWidth: 1.5}); ok {
		panel.Series = append(panel.Series, signal)
	}
	return panel
}

func split(buckets []store.Bucket) ([]time.Time, []float64) {
	times := make([]time.Time, len(buckets))
	counts := make([]float64, len(buckets))
	for i, b := range buckets {
		times[i] = b.Time
		counts[i] = float64(b.Count)
	}
	return times, counts
}

// paddedRange widens [low, high] by five percent and never returns an empty
// range.
func paddedRange(low, high float64) *chart.ContinuousRange {
	if math.IsInf(low, 0) || math.IsInf(high, 0) || math.IsNaN(low) || math.IsNaN(high) {
		return &chart.ContinuousRange{Min: 0, Max: 1}
	}
	pad := (high - low) * 0.05
	if pad == 0 {
		pad = math.Max(math.Abs(high)*0.05, 1)
	}
	return &chart.ContinuousRange{Min: low - pad, Max: high + pad}
}
