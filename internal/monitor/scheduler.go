package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/flood-risk-monitor/internal/domain"
	"github.com/couchcryptid/flood-risk-monitor/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultInterval   = 5 * time.Minute
	DefaultBatchSize  = 3
	DefaultBatchDelay = time.Second
)

// Config carries the scheduler's collaborators and pacing. Notifier, Logger,
// Metrics and Clock are optional.
type Config struct {
	Repository AreaRepository
	Fetcher    WeatherFetcher
	Notifier   ChangeNotifier
	Logger     *slog.Logger
	Metrics    *observability.Metrics
	Clock      clockwork.Clock

	Interval   time.Duration
	BatchSize  int
	BatchDelay time.Duration
}

// Scheduler drives the periodic reassessment cycle. It moves between Stopped
// and Running; repeated Start or Stop calls are no-ops. At most one cycle runs
// at a time: a tick that fires while a cycle is in flight is skipped.
type Scheduler struct {
	repo     AreaRepository
	fetcher  WeatherFetcher
	notifier ChangeNotifier
	logger   *slog.Logger
	metrics  *observability.Metrics
	clock    clockwork.Clock

	interval   time.Duration
	batchSize  int
	batchDelay time.Duration

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}

	cycling  atomic.Bool
	cycleMu  sync.Mutex
	cycleEnd chan struct{} // closed when the running cycle releases cycling
	inflight sync.WaitGroup
	last     atomic.Pointer[domain.CycleResult]

	observersMu sync.RWMutex
	observers   []Observer
}

// New creates a stopped Scheduler.
func New(cfg Config) *Scheduler {
	s := &Scheduler{
		repo:       cfg.Repository,
		fetcher:    cfg.Fetcher,
		notifier:   cfg.Notifier,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		clock:      cfg.Clock,
		interval:   cfg.Interval,
		batchSize:  cfg.BatchSize,
		batchDelay: cfg.BatchDelay,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = observability.NewMetricsForTesting()
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.batchSize <= 0 {
		s.batchSize = DefaultBatchSize
	}
	if s.batchDelay < 0 {
		s.batchDelay = 0
	}
	return s
}

// Subscribe registers an observer for the event stream.
func (s *Scheduler) Subscribe(o Observer) {
	s.observersMu.Lock()
	defer s.observersMu.Unlock()
	next := make([]Observer, len(s.observers), len(s.observers)+1)
	copy(next, s.observers)
	s.observers = append(next, o)
}

// Start arms the scheduler: one cycle runs immediately, then one per interval.
// It returns ErrWeatherUnavailable without contacting the provider when the
// fetcher has no usable credential. ctx bounds the scheduler's lifetime and is
// passed to every repository and weather call.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if err := s.fetcher.Available(); err != nil {
		s.logger.Error("monitor not started", "error", err)
		return fmt.Errorf("%w: %w", ErrWeatherUnavailable, err)
	}

	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.metrics.MonitorRunning.Set(1)

	ticker := s.clock.NewTicker(s.interval)
	go s.loop(ctx, ticker, s.stop, s.done)

	s.logger.Info("monitor started",
		"interval", s.interval,
		"batch_size", s.batchSize,
		"batch_delay", s.batchDelay,
	)
	return nil
}

// Stop disarms the timer. A cycle already in flight finishes its current
// batch and starts no further batches; use Wait to block until it returns.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(s.stop)
}

// stopLocked disarms the run identified by stop. A loop whose run was already
// replaced by a later Start leaves the new run alone.
func (s *Scheduler) stopLocked(stop chan struct{}) {
	if !s.running || s.stop != stop {
		return
	}
	s.running = false
	close(s.stop)
	s.metrics.MonitorRunning.Set(0)
	s.logger.Info("monitor stopped")
}

// Wait blocks until the timer loop has exited and any cycle it launched has
// returned.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done != nil {
		<-done
	}
	s.inflight.Wait()
}

// IsRunning reports whether the timer is armed.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastResult returns the summary of the most recent completed cycle.
func (s *Scheduler) LastResult() (domain.CycleResult, bool) {
	r := s.last.Load()
	if r == nil {
		return domain.CycleResult{}, false
	}
	return *r, true
}

// CheckReadiness reports ready when the scheduler is idle by choice or has
// completed at least one cycle since it was armed.
func (s *Scheduler) CheckReadiness(_ context.Context) error {
	if !s.IsRunning() {
		return nil
	}
	if _, ok := s.LastResult(); !ok {
		return errors.New("monitor has not completed a cycle yet")
	}
	return nil
}

// RunCycle runs one cycle synchronously, outside the timer. It returns
// ErrCycleInProgress instead of overlapping a running cycle.
func (s *Scheduler) RunCycle(ctx context.Context) (domain.CycleResult, error) {
	if err := s.fetcher.Available(); err != nil {
		return domain.CycleResult{}, fmt.Errorf("%w: %w", ErrWeatherUnavailable, err)
	}
	if ok, _ := s.acquireCycle(); !ok {
		return domain.CycleResult{}, ErrCycleInProgress
	}
	defer s.releaseCycle()

	return s.runCycle(ctx, s.stopSignal())
}

func (s *Scheduler) stopSignal() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	return s.stop
}

func (s *Scheduler) loop(ctx context.Context, ticker clockwork.Ticker, stop chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer ticker.Stop()

	s.runFirst(ctx, stop)
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			s.mu.Lock()
			s.stopLocked(stop)
			s.mu.Unlock()
			return
		case <-ticker.Chan():
			s.tick(ctx, stop)
		}
	}
}

// runFirst launches the cycle a Start owes. A cycle left over from a previous
// run (Stop then Start) is waited out rather than skipped.
func (s *Scheduler) runFirst(ctx context.Context, stop <-chan struct{}) {
	for {
		ok, busy := s.acquireCycle()
		if ok {
			s.launch(ctx, stop)
			return
		}
		select {
		case <-busy:
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// tick launches a cycle unless one is already running.
func (s *Scheduler) tick(ctx context.Context, stop <-chan struct{}) {
	if ok, _ := s.acquireCycle(); !ok {
		s.logger.Warn("previous cycle still running, skipping tick")
		s.metrics.CyclesSkipped.Inc()
		s.emit(Event{Kind: EventCycleSkipped, Time: s.clock.Now()})
		return
	}
	s.launch(ctx, stop)
}

// launch runs a cycle whose slot the caller already acquired.
func (s *Scheduler) launch(ctx context.Context, stop <-chan struct{}) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer s.releaseCycle()
		_, _ = s.runCycle(ctx, stop)
	}()
}

// acquireCycle claims the single cycle slot. When the slot is taken it
// returns a channel that closes once the running cycle releases it.
func (s *Scheduler) acquireCycle() (bool, <-chan struct{}) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()
	if !s.cycling.CompareAndSwap(false, true) {
		return false, s.cycleEnd
	}
	s.cycleEnd = make(chan struct{})
	return true, nil
}

func (s *Scheduler) releaseCycle() {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()
	s.cycling.Store(false)
	close(s.cycleEnd)
	s.cycleEnd = nil
}

type target struct {
	area  domain.MonitoredArea
	coord domain.Coordinate
}

type areaOutcome int

const (
	outcomeUnchanged areaOutcome = iota
	outcomeChanged
	outcomeFailed
)

func (s *Scheduler) runCycle(ctx context.Context, stop <-chan struct{}) (domain.CycleResult, error) {
	result := domain.CycleResult{
		CycleID:   uuid.NewString(),
		StartedAt: s.clock.Now().UTC(),
	}
	logger := s.logger.With("cycle_id", result.CycleID)
	s.emit(Event{Kind: EventCycleStarted, CycleID: result.CycleID, Time: result.StartedAt})

	areas, err := s.repo.ListAreas(ctx)
	if err != nil {
		logger.Error("list areas failed, cycle aborted", "error", err)
		s.metrics.Cycles.WithLabelValues("failed").Inc()
		s.emit(Event{Kind: EventCycleFailed, CycleID: result.CycleID, Time: s.clock.Now(), Err: err})
		return domain.CycleResult{}, fmt.Errorf("list areas: %w", err)
	}

	targets := make([]target, 0, len(areas))
	for _, area := range areas {
		coord, err := area.Geometry.RepresentativePoint()
		if err != nil {
			logger.Warn("skipping area with unusable geometry", "area_id", area.ID, "error", err)
			result.AreasSkipped++
			s.metrics.AreasSkipped.WithLabelValues("geometry").Inc()
			s.emit(Event{Kind: EventAreaSkipped, CycleID: result.CycleID, AreaID: area.ID, Time: s.clock.Now(), Err: err})
			continue
		}
		targets = append(targets, target{area: area, coord: coord})
	}
	result.AreasConsidered = len(targets)
	s.metrics.AreasConsidered.Set(float64(len(targets)))

	var changes []domain.RiskChange
	for start := 0; start < len(targets); start += s.batchSize {
		if !s.waitForBatch(ctx, stop, start > 0) {
			logger.Info("cycle interrupted before next batch", "remaining", len(targets)-start)
			result.Interrupted = true
			break
		}

		end := min(start+s.batchSize, len(targets))
		outcomes, batchChanges := s.processBatch(ctx, logger, result.CycleID, targets[start:end])
		for _, o := range outcomes {
			switch o {
			case outcomeChanged:
				result.AreasChanged++
			case outcomeFailed:
				result.AreasFailed++
			}
		}
		changes = append(changes, batchChanges...)
	}

	result.CompletedAt = s.clock.Now().UTC()
	result.Duration = result.CompletedAt.Sub(result.StartedAt)
	s.last.Store(&result)

	outcome := "completed"
	if result.Interrupted {
		outcome = "interrupted"
	}
	s.metrics.Cycles.WithLabelValues(outcome).Inc()
	s.metrics.CycleDuration.Observe(result.Duration.Seconds())

	logger.Info("monitor cycle completed",
		"areas_considered", result.AreasConsidered,
		"areas_changed", result.AreasChanged,
		"areas_failed", result.AreasFailed,
		"areas_skipped", result.AreasSkipped,
		"interrupted", result.Interrupted,
		"duration", result.Duration,
	)
	resultCopy := result
	s.emit(Event{Kind: EventCycleCompleted, CycleID: result.CycleID, Time: result.CompletedAt, Result: &resultCopy})

	if len(changes) > 0 {
		s.notify(ctx, logger, result, changes)
	}
	return result, nil
}

// waitForBatch returns false when the cycle must not start another batch.
// Every batch after the first is preceded by the configured delay.
func (s *Scheduler) waitForBatch(ctx context.Context, stop <-chan struct{}, delay bool) bool {
	if !delay || s.batchDelay <= 0 {
		select {
		case <-stop:
			return false
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}

	timer := s.clock.NewTimer(s.batchDelay)
	defer timer.Stop()

	select {
	case <-stop:
		return false
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

// processBatch assesses every area of the batch concurrently. A failure in
// one area never affects its siblings.
func (s *Scheduler) processBatch(ctx context.Context, logger *slog.Logger, cycleID string, batch []target) ([]areaOutcome, []domain.RiskChange) {
	outcomes := make([]areaOutcome, len(batch))
	changes := make([]*domain.RiskChange, len(batch))

	var g errgroup.Group
	g.SetLimit(s.batchSize)
	for i, t := range batch {
		g.Go(func() error {
			outcomes[i], changes[i] = s.processArea(ctx, logger, cycleID, t)
			return nil
		})
	}
	_ = g.Wait()

	var out []domain.RiskChange
	for _, c := range changes {
		if c != nil {
			out = append(out, *c)
		}
	}
	return outcomes, out
}

func (s *Scheduler) processArea(ctx context.Context, logger *slog.Logger, cycleID string, t target) (areaOutcome, *domain.RiskChange) {
	logger = logger.With("area_id", t.area.ID)

	sample, err := s.fetcher.FetchWeather(ctx, t.coord)
	if err != nil {
		logger.Warn("weather fetch failed, area left unchanged", "error", err)
		s.metrics.AreaFailures.WithLabelValues("fetch").Inc()
		s.emit(Event{Kind: EventAreaFetchFailed, CycleID: cycleID, AreaID: t.area.ID, Time: s.clock.Now(), Err: err})
		return outcomeFailed, nil
	}

	assessed := t.area.WithWeather(sample)
	assessment := domain.Classify(assessed.RiskAttributes(), sample)
	if assessment.Level == t.area.Risk.Level {
		return outcomeUnchanged, nil
	}

	now := s.clock.Now().UTC()
	update := domain.RiskUpdate{
		Weather:       sample,
		Assessment:    assessment,
		PreviousLevel: t.area.Risk.Level,
		UpdatedAt:     now,
	}
	if err := s.repo.UpdateRisk(ctx, t.area.ID, update); err != nil {
		logger.Error("risk write failed", "error", err, "level", assessment.Level)
		s.metrics.AreaFailures.WithLabelValues("write").Inc()
		return outcomeFailed, nil
	}

	change := &domain.RiskChange{
		AreaID:    t.area.ID,
		AreaName:  t.area.Name,
		From:      t.area.Risk.Level,
		To:        assessment,
		Weather:   sample,
		ChangedAt: now,
	}
	logger.Info("area risk changed",
		"from", t.area.Risk.Level,
		"to", assessment.Level,
		"score", assessment.Score,
	)
	s.metrics.AreasChanged.Inc()
	s.emit(Event{Kind: EventAreaChanged, CycleID: cycleID, AreaID: t.area.ID, Time: now, Change: change})
	return outcomeChanged, change
}

func (s *Scheduler) notify(ctx context.Context, logger *slog.Logger, result domain.CycleResult, changes []domain.RiskChange) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.RiskDataChanged(ctx, result, changes); err != nil {
		logger.Error("risk change notification failed", "error", err, "changes", len(changes))
		s.metrics.Notifications.WithLabelValues("error").Inc()
		return
	}
	s.metrics.Notifications.WithLabelValues("success").Inc()
}

func (s *Scheduler) emit(e Event) {
	s.observersMu.RLock()
	observers := s.observers
	s.observersMu.RUnlock()

	for _, o := range observers {
		o.Observe(e)
	}
}
