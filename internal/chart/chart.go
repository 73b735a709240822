// Package chart renders the PNG charts sent by the report commands.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("no data to plot")

const (
	width  = 800
	height = 400
)

var (
	consumedColor = drawing.ColorFromHex("36a2eb")
	burnedColor   = drawing.ColorFromHex("ff6384")
	weightColor   = drawing.ColorFromHex("4bc0c0")
)

// Day is one day of the weekly bar chart.
type Day struct {
	Label    string
	Consumed float64
	Burned   float64
}

// WeekBars draws consumed and burned calories side by side for every day.
func WeekBars(title string, days []Day) ([]byte, error) {
	if len(days) == 0 {
		return nil, ErrNoData
	}
	bars := make([]gochart.Value, 0, 2*len(days))
	top := 0.0
	for _, d := range days {
		bars = append(bars,
			gochart.Value{Label: d.Label, Value: d.Consumed, Style: gochart.Style{FillColor: consumedColor, StrokeColor: consumedColor}},
			gochart.Value{Label: " ", Value: d.Burned, Style: gochart.Style{FillColor: burnedColor, StrokeColor: burnedColor}},
		)
		top = math.Max(top, math.Max(d.Consumed, d.Burned))
	}

	graph := gochart.BarChart{
		Title:      title,
		Width:      width,
		Height:     height,
		BarWidth:   30,
		BarSpacing: 12,
		Background: gochart.Style{Padding: gochart.Box{Top: 40}},
		YAxis: gochart.YAxis{
			// An empty week would otherwise yield a zero range.
			Range:          &gochart.ContinuousRange{Min: 0, Max: math.Max(top*1.1, 1)},
			ValueFormatter: gochart.IntValueFormatter,
		},
		Bars: bars,
	}
	return render(graph.Render)
}

// Point is one weight measurement.
type Point struct {
	Label  string
	Weight float64
}

// WeightLine draws the weight evolution in measurement order.
func WeightLine(title string, points []Point) ([]byte, error) {
	if len(points) < 2 {
		return nil, ErrNoData
	}
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	ticks := make([]gochart.Tick, len(points))
	lo, hi := math.MaxFloat64, -math.MaxFloat64
	for i, p := range points {
		xs[i] = float64(i)
		ys[i] = p.Weight
		ticks[i] = gochart.Tick{Value: float64(i), Label: p.Label}
		lo = math.Min(lo, p.Weight)
		hi = math.Max(hi, p.Weight)
	}

	graph := gochart.Chart{
		Title:      title,
		Width:      width,
		Height:     height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40}},
		XAxis:      gochart.XAxis{Ticks: ticks},
		YAxis: gochart.YAxis{
			Range:          &gochart.ContinuousRange{Min: math.Floor(lo - 1), Max: math.Ceil(hi + 1)},
			ValueFormatter: gochart.FloatValueFormatter,
		},
		Series: []gochart.Series{
			gochart.ContinuousSeries{
				Name:    "Peso (kg)",
				Style:   gochart.Style{StrokeColor: weightColor, StrokeWidth: 3, DotColor: weightColor, DotWidth: 4},
				XValues: xs,
				YValues: ys,
			},
		},
	}
	return render(graph.Render)
}

func render(fn func(gochart.RendererProvider, io.Writer) error) ([]byte, error) {
	var buf bytes.Buffer
	if err := fn(gochart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf.Bytes(), nil
}
