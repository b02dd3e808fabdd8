package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"probchart/internal/chartstore"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoData is returned when no series has a point to draw.
var ErrNoData = errors.New("export: no points to render")

const (
	DefaultWidth  = 1200
	DefaultHeight = 600
)

var fallbackColors = []drawing.Color{
	chart.ColorBlue,
	chart.ColorRed,
	chart.ColorGreen,
	chart.ColorOrange,
	chart.ColorAlternateGray,
}

// Options controls the rendered image.
type Options struct {
	Title  string
	Width  int
	Height int
}

// RenderPNG draws every non-empty series as a line on a 0-100 probability axis.
func RenderPNG(w io.Writer, series []chartstore.Series, opts Options) error {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}

	var lines []chart.Series
	for i, s := range series {
		if len(s.Points) == 0 {
			continue
		}
		xs := make([]time.Time, len(s.Points))
		ys := make([]float64, len(s.Points))
		for j, p := range s.Points {
			xs[j] = time.Unix(p.Time, 0)
			ys[j] = p.Value
		}
		// go-chart needs a non-zero x range
		if len(xs) == 1 {
			xs = append(xs, xs[0].Add(time.Second))
			ys = append(ys, ys[0])
		}

		name := s.Label
		if name == "" {
			name = s.Source
		}
		lines = append(lines, chart.TimeSeries{
			Name:    name,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: seriesColor(s.Color, i),
				StrokeWidth: 2,
			},
		})
	}
	if len(lines) == 0 {
		return ErrNoData
	}

	ch := chart.Chart{
		Title:      opts.Title,
		Width:      opts.Width,
		Height:     opts.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		XAxis:      chart.XAxis{ValueFormatter: chart.TimeValueFormatterWithFormat("15:04:05")},
		YAxis:      chart.YAxis{Name: "%", Range: &chart.ContinuousRange{Min: 0, Max: 100}},
		Series:     lines,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

// WriteFile renders into dir/name, creating dir if needed, and returns the path.
func WriteFile(dir, name string, series []chartstore.Series, opts Options) (string, error) {
	var buf bytes.Buffer
	if err := RenderPNG(&buf, series, opts); err != nil {
		return "", err
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

func seriesColor(hex string, i int) drawing.Color {
	h := strings.TrimPrefix(hex, "#")
	if len(h) == 3 || len(h) == 6 {
		return drawing.ColorFromHex(h)
	}
	return fallbackColors[i%len(fallbackColors)]
}
