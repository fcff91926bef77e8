package domain

import "time"

// DefaultHumidityPct is used when a provider omits relative humidity.
const DefaultHumidityPct = 70

// Coordinate is a WGS-84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// WeatherSample is the current weather at one area's representative coordinate.
type WeatherSample struct {
	RainfallMMPerHour float64   `json:"rainfall_mm_hr"`
	ForecastRainMM    float64   `json:"forecast_rain_mm"` // 48h estimate
	WindSpeedKMH      float64   `json:"wind_speed_kmh"`
	TemperatureC      float64   `json:"temperature_c"`
	HumidityPct       float64   `json:"humidity_pct"`
	ObservedAt        time.Time `json:"observed_at,omitempty"`
}
