package monitor

import (
	"time"

	"github.com/couchcryptid/flood-risk-monitor/internal/domain"
)

// EventKind names an entry in the scheduler's event stream.
type EventKind string

const (
	EventCycleStarted    EventKind = "cycle_started"
	EventCycleCompleted  EventKind = "cycle_completed"
	EventCycleFailed     EventKind = "cycle_failed"
	EventCycleSkipped    EventKind = "cycle_skipped"
	EventAreaSkipped     EventKind = "area_skipped"
	EventAreaFetchFailed EventKind = "area_fetch_failed"
	EventAreaChanged     EventKind = "area_changed"
)

// Event is one entry of the structured stream published to observers.
// Only the fields relevant to Kind are set.
type Event struct {
	Kind    EventKind
	CycleID string
	AreaID  string
	Time    time.Time
	Result  *domain.CycleResult
	Change  *domain.RiskChange
	Err     error
}

// Observer receives scheduler events. Observe is called synchronously from
// the cycle goroutines and must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }
