// Command assess classifies a fixture of monitored areas offline using the same
// scoring the monitor applies. Each area is scored against its stored weather
// unless a weather override is given, in which case every area is scored
// against that one sample.
//
// Usage:
//
//	go run ./cmd/assess \
//	  -areas data/fixtures/areas.json \
//	  -weather data/fixtures/storm_weather.json \
//	  -out assessments.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/couchcryptid/flood-risk-monitor/internal/domain"
)

// assessment is one output row.
type assessment struct {
	AreaID   string                `json:"area_id"`
	Name     string                `json:"name,omitempty"`
	Point    domain.Coordinate     `json:"point"`
	Previous domain.RiskLevel      `json:"previous,omitempty"`
	Risk     domain.RiskAssessment `json:"risk"`
	Changed  bool                  `json:"changed"`
}

// report is the outcome of a full fixture run.
type report struct {
	Assessments []assessment
	Skipped     map[string]string // area ID -> reason
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	areasPath := flag.String("areas", "", "JSON file holding an array of monitored areas")
	weatherPath := flag.String("weather", "", "optional JSON weather sample applied to every area")
	outPath := flag.String("out", "", "optional output path for the assessments JSON")
	flag.Parse()

	if *areasPath == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -areas")
	}

	var areas []domain.MonitoredArea
	if err := readJSON(*areasPath, &areas); err != nil {
		return fmt.Errorf("reading areas: %w", err)
	}

	var override *domain.WeatherSample
	if *weatherPath != "" {
		var w domain.WeatherSample
		if err := readJSON(*weatherPath, &w); err != nil {
			return fmt.Errorf("reading weather: %w", err)
		}
		override = &w
	}

	r := assess(areas, override)
	for id, reason := range r.Skipped {
		log.Printf("skipped %s: %s", id, reason)
	}

	if *outPath != "" {
		if err := writeJSON(*outPath, r.Assessments); err != nil {
			return fmt.Errorf("writing assessments: %w", err)
		}
		log.Printf("wrote assessments: %s", *outPath)
	}

	printStats(os.Stdout, r)
	return nil
}

func assess(areas []domain.MonitoredArea, override *domain.WeatherSample) report {
	r := report{Skipped: map[string]string{}}
	for _, a := range areas {
		point, err := a.Geometry.RepresentativePoint()
		if err != nil {
			r.Skipped[a.ID] = err.Error()
			continue
		}
		w := a.Weather
		if override != nil {
			w = *override
		}
		risk := domain.Classify(a.RiskAttributes(), w)
		r.Assessments = append(r.Assessments, assessment{
			AreaID:   a.ID,
			Name:     a.Name,
			Point:    point,
			Previous: a.Risk.Level,
			Risk:     risk,
			Changed:  risk.Level != a.Risk.Level,
		})
	}
	return r
}

// levelCounts tallies assessments per level.
func levelCounts(as []assessment) map[domain.RiskLevel]int {
	counts := map[domain.RiskLevel]int{}
	for _, a := range as {
		counts[a.Risk.Level]++
	}
	return counts
}

func printStats(w io.Writer, r report) {
	counts := levelCounts(r.Assessments)
	changed := 0
	for _, a := range r.Assessments {
		if a.Changed {
			changed++
		}
	}

	fmt.Fprintf(w, "assessed: %d  changed: %d  skipped: %d\n", len(r.Assessments), changed, len(r.Skipped))
	for _, level := range domain.RiskLevels {
		fmt.Fprintf(w, "  %-9s %d\n", level, counts[level])
	}

	top := make([]assessment, len(r.Assessments))
	copy(top, r.Assessments)
	sort.SliceStable(top, func(i, j int) bool { return top[i].Risk.Score > top[j].Risk.Score })
	if len(top) > 5 {
		top = top[:5]
	}
	if len(top) > 0 {
		fmt.Fprintln(w, "highest scores:")
	}
	for _, a := range top {
		fmt.Fprintf(w, "  %-20s %3d %s\n", a.AreaID, a.Risk.Score, a.Risk.Level)
	}
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
