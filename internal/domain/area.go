package domain

import "time"

// Hydrology holds the physical attributes terrain is derived from.
type Hydrology struct {
	WaterBody  string  `json:"water_body,omitempty"` // "sea", "river", "creek", "none"
	Slope      string  `json:"slope,omitempty"`      // "steep", "moderate", "gentle", "flat"
	ElevationM float64 `json:"elevation_m"`
}

// FloodFrequency is the recorded frequency of past floods for an area.
type FloodFrequency string

const (
	FloodRare         FloodFrequency = "rare"
	FloodOccasional   FloodFrequency = "occasional"
	FloodFrequent     FloodFrequency = "frequent"
	FloodVeryFrequent FloodFrequency = "very-frequent"
)

// Bucket maps the recorded frequency to the qualitative history bucket used by
// the scoring policy. Unknown values fall back to low.
func (f FloodFrequency) Bucket() Bucket {
	switch f {
	case FloodOccasional:
		return BucketMedium
	case FloodFrequent, FloodVeryFrequent:
		return BucketHigh
	default:
		return BucketLow
	}
}

// MonitoredArea is a tracked point or region together with its last-known
// weather and current classification.
type MonitoredArea struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Geometry Geometry `json:"geometry"`

	Hydrology      Hydrology      `json:"hydrology"`
	Population     int            `json:"population"`
	FloodFrequency FloodFrequency `json:"flood_frequency"`

	Weather       WeatherSample  `json:"weather"`
	Risk          RiskAssessment `json:"risk"`
	RiskUpdatedAt time.Time      `json:"risk_updated_at,omitempty"`
}

// RiskAttributes returns the snapshot of static attributes the classifier
// consumes. Landslide history has no data source and is always low.
func (a MonitoredArea) RiskAttributes() RiskAttributes {
	population := a.Population
	if population < 0 {
		population = 0
	}
	return RiskAttributes{
		Terrain:          DeriveTerrain(a.Hydrology),
		Population:       population,
		FloodHistory:     a.FloodFrequency.Bucket(),
		LandslideHistory: BucketLow,
	}
}

// WithWeather returns a copy of the area carrying the given sample.
func (a MonitoredArea) WithWeather(w WeatherSample) MonitoredArea {
	a.Weather = w
	return a
}

// RiskUpdate is the partial write issued for an area whose level changed.
// PreviousLevel makes the write conditional: it only applies while the stored
// level still matches what the cycle read.
type RiskUpdate struct {
	Weather       WeatherSample
	Assessment    RiskAssessment
	PreviousLevel RiskLevel
	UpdatedAt     time.Time
}

// RiskChange describes one area whose level moved during a cycle.
type RiskChange struct {
	AreaID    string         `json:"area_id"`
	AreaName  string         `json:"area_name,omitempty"`
	From      RiskLevel      `json:"from"`
	To        RiskAssessment `json:"to"`
	Weather   WeatherSample  `json:"weather"`
	ChangedAt time.Time      `json:"changed_at"`
}

// CycleResult summarises one scheduler tick.
type CycleResult struct {
	CycleID         string        `json:"cycle_id"`
	AreasConsidered int           `json:"areas_considered"`
	AreasChanged    int           `json:"areas_changed"`
	AreasFailed     int           `json:"areas_failed"`
	AreasSkipped    int           `json:"areas_skipped"`
	StartedAt       time.Time     `json:"started_at"`
	CompletedAt     time.Time     `json:"completed_at"`
	Duration        time.Duration `json:"duration"`
	Interrupted     bool          `json:"interrupted,omitempty"`
}
