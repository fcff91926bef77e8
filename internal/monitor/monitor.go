// Package monitor keeps the stored flood-risk classification of every
// monitored area current. A Scheduler periodically lists the areas, fetches
// live weather for each one in small concurrent batches, reclassifies them,
// and writes back only the areas whose level changed.
package monitor

import (
	"context"
	"errors"

	"github.com/couchcryptid/flood-risk-monitor/internal/domain"
)

// ErrWeatherUnavailable is returned by Start and RunCycle when the weather
// provider has no usable credential.
var ErrWeatherUnavailable = errors.New("weather service unavailable")

// ErrCycleInProgress is returned by RunCycle while another cycle is running.
var ErrCycleInProgress = errors.New("monitor cycle already in progress")

// AreaRepository is the persistence boundary the scheduler reads from and
// conditionally writes to.
type AreaRepository interface {
	ListAreas(ctx context.Context) ([]domain.MonitoredArea, error)
	GetArea(ctx context.Context, id string) (domain.MonitoredArea, error)
	UpdateRisk(ctx context.Context, id string, update domain.RiskUpdate) error
}

// WeatherFetcher returns the current weather at a coordinate. Every error it
// returns matches domain.ErrNoData.
type WeatherFetcher interface {
	Available() error
	FetchWeather(ctx context.Context, coord domain.Coordinate) (domain.WeatherSample, error)
}

// ChangeNotifier is told once per cycle that produced at least one change.
type ChangeNotifier interface {
	RiskDataChanged(ctx context.Context, result domain.CycleResult, changes []domain.RiskChange) error
}
