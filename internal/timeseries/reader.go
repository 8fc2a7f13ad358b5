package timeseries

import (
	"encoding/csv"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Point is one chartable observation: when, where, and the AQI value.
type Point struct {
	Time time.Time
	City string
	AQI  float64
}

// LoadAll walks root and parses every CSV file into points, in file then
// row order. Any malformed file aborts the load with a wrapped error; a
// corrupt history should stop chart generation, not silently thin it.
func LoadAll(root string) ([]Point, error) {
	var points []Point
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".csv") {
			return nil
		}
		filePoints, err := readFile(path)
		if err != nil {
			return err
		}
		points = append(points, filePoints...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load time series under %s: %w", root, err)
	}
	return points, nil
}

func readFile(path string) ([]Point, error) {
	f, err := os.Open(path) // #nosec G304 -- paths come from walking our own result root.
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	points := make([]Point, 0, len(rows)-1)
	for i, row := range rows[1:] { // rows[0] is the header
		if len(row) < 3 {
			return nil, fmt.Errorf("%s row %d: want at least 3 columns, got %d", path, i+2, len(row))
		}
		ts, err := time.Parse(time.RFC3339, row[0])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: parse timestamp: %w", path, i+2, err)
		}
		aqi, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: parse aqi: %w", path, i+2, err)
		}
		points = append(points, Point{Time: ts, City: row[1], AQI: aqi})
	}
	return points, nil
}

// Window keeps the points within the trailing duration measured from the
// maximum timestamp across the whole dataset, not per city. Cities whose
// newest reading is older than the window disappear from the result;
// CitiesOutside names them so the renderer can warn.
func Window(points []Point, d time.Duration) []Point {
	if len(points) == 0 {
		return nil
	}
	cutoff := maxTime(points).Add(-d)
	kept := make([]Point, 0, len(points))
	for _, p := range points {
		if !p.Time.Before(cutoff) {
			kept = append(kept, p)
		}
	}
	return kept
}

// CitiesOutside returns the names of cities present in points but absent
// from windowed, preserving first-seen order.
func CitiesOutside(points, windowed []Point) []string {
	inWindow := make(map[string]struct{}, len(windowed))
	for _, p := range windowed {
		inWindow[p.City] = struct{}{}
	}
	var dropped []string
	seen := make(map[string]struct{})
	for _, p := range points {
		if _, ok := inWindow[p.City]; ok {
			continue
		}
		if _, ok := seen[p.City]; ok {
			continue
		}
		seen[p.City] = struct{}{}
		dropped = append(dropped, p.City)
	}
	return dropped
}

func maxTime(points []Point) time.Time {
	max := points[0].Time
	for _, p := range points[1:] {
		if p.Time.After(max) {
			max = p.Time
		}
	}
	return max
}
