// Package chart renders per-city AQI trend images from accumulated
// readings. Offline stage: it only reads what the crawl cycles wrote.
package chart

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/vietair/aqi-crawler/internal/city"
	"github.com/vietair/aqi-crawler/internal/timeseries"
)

// Band is one AQI severity range, drawn as a translucent background.
type Band struct {
	Name  string
	Lo    float64
	Hi    float64
	Color color.NRGBA
}

// SeverityBands are the six standard AQI severity ranges.
var SeverityBands = []Band{
	{Name: "Good", Lo: 0, Hi: 50, Color: color.NRGBA{G: 128, A: 26}},
	{Name: "Moderate", Lo: 51, Hi: 100, Color: color.NRGBA{R: 255, G: 255, A: 26}},
	{Name: "Unhealthy for Sensitive Groups", Lo: 101, Hi: 150, Color: color.NRGBA{R: 255, G: 165, A: 26}},
	{Name: "Unhealthy", Lo: 151, Hi: 200, Color: color.NRGBA{R: 255, A: 26}},
	{Name: "Very Unhealthy", Lo: 201, Hi: 300, Color: color.NRGBA{R: 128, B: 128, A: 26}},
	{Name: "Hazardous", Lo: 301, Hi: 500, Color: color.NRGBA{R: 128, A: 26}},
}

const (
	chartWidth  = 12 * vg.Inch
	chartHeight = 6 * vg.Inch
	chartDPI    = 300
)

// Renderer draws one trend chart per city into an output directory.
type Renderer struct {
	outDir string
	window time.Duration
	logger *zap.Logger
}

// NewRenderer creates the output directory if needed.
func NewRenderer(outDir string, windowDays int, logger *zap.Logger) (*Renderer, error) {
	if windowDays <= 0 {
		return nil, fmt.Errorf("window days must be > 0")
	}
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return nil, fmt.Errorf("create chart dir %s: %w", outDir, err)
	}
	return &Renderer{
		outDir: outDir,
		window: time.Duration(windowDays) * 24 * time.Hour,
		logger: logger,
	}, nil
}

// RenderAll windows the dataset to the trailing period from the global
// max timestamp and writes one PNG per remaining city, returning the
// file paths. Cities whose whole history predates the window are logged
// by name, not silently dropped.
func (r *Renderer) RenderAll(points []timeseries.Point) ([]string, error) {
	if len(points) == 0 {
		r.logger.Warn("no readings to chart")
		return nil, nil
	}

	windowed := timeseries.Window(points, r.window)
	if stale := timeseries.CitiesOutside(points, windowed); len(stale) > 0 {
		r.logger.Warn("cities with no readings inside the window",
			zap.Strings("cities", stale),
		)
	}

	var paths []string
	for _, cityName := range cityOrder(windowed) {
		path, err := r.renderCity(cityName, pointsFor(windowed, cityName))
		if err != nil {
			return paths, fmt.Errorf("render %s: %w", cityName, err)
		}
		r.logger.Info("chart written", zap.String("city", cityName), zap.String("path", path))
		paths = append(paths, path)
	}
	return paths, nil
}

func (r *Renderer) renderCity(cityName string, pts []timeseries.Point) (string, error) {
	sort.Slice(pts, func(i, j int) bool { return pts[i].Time.Before(pts[j].Time) })

	xys := make(plotter.XYs, len(pts))
	for i, pt := range pts {
		xys[i].X = float64(pt.Time.Unix())
		xys[i].Y = pt.AQI
	}
	mean, minAQI, maxAQI := stats(pts)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("AQI - %s (last %d days)\nmax %.0f, min %.0f",
		cityName, int(r.window.Hours()/24), maxAQI, minAQI)
	p.X.Label.Text = "Time"
	p.Y.Label.Text = "AQI"
	p.X.Tick.Marker = plot.TimeTicks{Format: "Jan 02"}
	p.Y.Min = 0
	p.Y.Max = yTop(maxAQI)

	xMin := xys[0].X
	xMax := xys[len(xys)-1].X
	if xMin == xMax {
		// A single observation still deserves a visible band backdrop.
		xMin -= 1800
		xMax += 1800
	}
	for _, band := range SeverityBands {
		if band.Lo > p.Y.Max {
			break
		}
		poly, err := bandPolygon(band, xMin, xMax, p.Y.Max)
		if err != nil {
			return "", err
		}
		p.Add(poly)
		p.Legend.Add(band.Name, poly)
	}

	line, dots, err := plotter.NewLinePoints(xys)
	if err != nil {
		return "", fmt.Errorf("build aqi line: %w", err)
	}
	line.Color = color.NRGBA{B: 255, A: 255}
	dots.Shape = draw.CircleGlyph{}
	dots.Color = color.NRGBA{B: 255, A: 255}
	p.Add(line, dots)
	p.Legend.Add("AQI", line)

	meanLine, err := plotter.NewLine(plotter.XYs{{X: xMin, Y: mean}, {X: xMax, Y: mean}})
	if err != nil {
		return "", fmt.Errorf("build mean line: %w", err)
	}
	meanLine.Color = color.NRGBA{R: 255, A: 255}
	meanLine.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
	p.Add(meanLine)
	p.Legend.Add(fmt.Sprintf("mean %.1f", mean), meanLine)

	p.Legend.Top = true

	path := filepath.Join(r.outDir, fmt.Sprintf("aqi_trend_%s.png", city.FileSlug(cityName)))
	if err := savePNG(p, path); err != nil {
		return "", err
	}
	return path, nil
}

func bandPolygon(band Band, xMin, xMax, yMax float64) (*plotter.Polygon, error) {
	hi := band.Hi
	if hi > yMax {
		hi = yMax
	}
	poly, err := plotter.NewPolygon(plotter.XYs{
		{X: xMin, Y: band.Lo},
		{X: xMax, Y: band.Lo},
		{X: xMax, Y: hi},
		{X: xMin, Y: hi},
	})
	if err != nil {
		return nil, fmt.Errorf("build band %s: %w", band.Name, err)
	}
	poly.Color = band.Color
	poly.LineStyle.Color = color.NRGBA{}
	return poly, nil
}

// savePNG renders at 300 DPI; plot.Save would use the default 72.
func savePNG(p *plot.Plot, path string) error {
	img := vgimg.NewWith(
		vgimg.UseWH(chartWidth, chartHeight),
		vgimg.UseDPI(chartDPI),
	)
	p.Draw(draw.New(img))

	f, err := os.Create(path) // #nosec G304 -- path built from our own chart dir and a folded city name.
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// yTop picks the axis ceiling: the smallest band boundary clearing the
// data, so charts stay readable instead of always scaling to 500.
func yTop(maxAQI float64) float64 {
	for _, band := range SeverityBands {
		if maxAQI <= band.Hi {
			return band.Hi + 10
		}
	}
	return 510
}

func stats(pts []timeseries.Point) (mean, min, max float64) {
	min = pts[0].AQI
	max = pts[0].AQI
	var sum float64
	for _, pt := range pts {
		sum += pt.AQI
		if pt.AQI < min {
			min = pt.AQI
		}
		if pt.AQI > max {
			max = pt.AQI
		}
	}
	return sum / float64(len(pts)), min, max
}

// cityOrder lists distinct cities in first-seen order so output is
// deterministic for a given dataset.
func cityOrder(points []timeseries.Point) []string {
	var order []string
	seen := make(map[string]struct{})
	for _, p := range points {
		if _, ok := seen[p.City]; ok {
			continue
		}
		seen[p.City] = struct{}{}
		order = append(order, p.City)
	}
	return order
}

func pointsFor(points []timeseries.Point, cityName string) []timeseries.Point {
	var out []timeseries.Point
	for _, p := range points {
		if p.City == cityName {
			out = append(out, p)
		}
	}
	return out
}
