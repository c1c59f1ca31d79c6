// Package render draws chart specs to PNG with go-chart. Only the trend and
// hierarchy specs have a go-chart equivalent; flow diagrams are browser-only.
package render

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"sort"
	"strings"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"tradedash/internal/chart"
)

const (
	defaultWidth  = 960
	defaultHeight = 480
)

var ErrUnsupported = errors.New("render: chart kind has no png renderer")

type Options struct {
	Width  int
	Height int
}

func (o Options) size() (int, int) {
	width, height := o.Width, o.Height
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}
	return width, height
}

// Figures renders one kind out of a projected figure set.
func Figures(w io.Writer, figs chart.Figures, kind chart.Kind, opts Options) error {
	switch kind {
	case chart.KindTrend:
		return Trend(w, figs.Trend, opts)
	case chart.KindHierarchy:
		return Hierarchy(w, figs.Hierarchy, opts)
	default:
		return ErrUnsupported
	}
}

// Trend draws one line per series. Periods from all series share a single
// category axis, sorted ascending.
func Trend(w io.Writer, spec chart.TrendSpec, opts Options) error {
	width, height := opts.size()
	if spec.Empty() {
		return blank(w, width, height)
	}

	periods := periodAxis(spec)
	position := make(map[string]float64, len(periods))
	ticks := make([]gochart.Tick, 0, len(periods))
	for i, period := range periods {
		position[period] = float64(i)
		ticks = append(ticks, gochart.Tick{Value: float64(i), Label: period})
	}

	maxY := 0.0
	series := make([]gochart.Series, 0, len(spec.Series))
	for _, s := range spec.Series {
		xs := make([]float64, 0, len(s.Points))
		ys := make([]float64, 0, len(s.Points))
		for _, point := range s.Points {
			xs = append(xs, position[point.Period])
			ys = append(ys, point.Value)
			maxY = math.Max(maxY, point.Value)
		}
		col := hexColor(s.Color)
		series = append(series, gochart.ContinuousSeries{
			Name:    s.Name,
			XValues: xs,
			YValues: ys,
			Style: gochart.Style{
				StrokeColor: col,
				StrokeWidth: 2,
				DotColor:    col,
				DotWidth:    4,
			},
		})
	}
	if maxY <= 0 {
		maxY = 1
	}

	graph := gochart.Chart{
		Title:      spec.Title,
		Width:      width,
		Height:     height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: gochart.XAxis{
			Name:  spec.XAxis,
			Ticks: ticks,
			Range: &gochart.ContinuousRange{Min: -0.5, Max: float64(len(periods)) - 0.5},
		},
		YAxis: gochart.YAxis{
			Name:  spec.YAxis,
			Range: &gochart.ContinuousRange{Min: 0, Max: maxY * 1.1},
		},
		Series: series,
	}
	graph.Elements = []gochart.Renderable{gochart.Legend(&graph)}
	return graph.Render(gochart.PNG, w)
}

// Hierarchy draws shares as a pie. Non-positive shares cannot be drawn as
// slices and are left out.
func Hierarchy(w io.Writer, spec chart.HierarchySpec, opts Options) error {
	width, height := opts.size()

	values := make([]gochart.Value, 0, len(spec.Shares))
	for _, share := range spec.Shares {
		if share.Value <= 0 || math.IsNaN(share.Value) || math.IsInf(share.Value, 0) {
			continue
		}
		values = append(values, gochart.Value{
			Label: share.Label,
			Value: share.Value,
			Style: gochart.Style{FillColor: hexColor(share.Color), StrokeColor: drawing.ColorWhite, StrokeWidth: 1},
		})
	}
	if len(values) == 0 {
		return blank(w, width, height)
	}

	pie := gochart.PieChart{
		Title:  spec.Title,
		Width:  width,
		Height: height,
		Values: values,
	}
	return pie.Render(gochart.PNG, w)
}

func periodAxis(spec chart.TrendSpec) []string {
	seen := make(map[string]struct{})
	periods := make([]string, 0)
	for _, s := range spec.Series {
		for _, point := range s.Points {
			if _, ok := seen[point.Period]; ok {
				continue
			}
			seen[point.Period] = struct{}{}
			periods = append(periods, point.Period)
		}
	}
	sort.Strings(periods)
	return periods
}

func hexColor(value string) drawing.Color {
	value = strings.TrimPrefix(strings.TrimSpace(value), "#")
	if value == "" {
		return gochart.ColorBlue
	}
	return drawing.ColorFromHex(value)
}

func blank(w io.Writer, width, height int) error {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.White)
		}
	}
	return png.Encode(w, img)
}
