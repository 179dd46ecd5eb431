// Package refresh keeps zone weather current by fanning out fetches on a
// fixed interval and on demand.
package refresh

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/flood-watch/internal/domain"
	"github.com/couchcryptid/flood-watch/internal/observability"
)

// Triggers label what started a cycle.
const (
	TriggerPeriodic = "periodic"
	TriggerManual   = "manual"
)

// ZoneApplier is the slice of the zone store the scheduler needs.
type ZoneApplier interface {
	Snapshot() []domain.Zone
	ApplyWeather(ctx context.Context, id int, snap domain.WeatherSnapshot) (bool, error)
}

// Options tunes a Scheduler. Zero values fall back to the defaults.
type Options struct {
	Interval     time.Duration // default 10m
	Concurrency  int           // default 5
	FetchTimeout time.Duration // default 10s
}

// Result is the outcome of refreshing one zone.
type Result struct {
	ZoneID   int
	Snapshot *domain.WeatherSnapshot
	// Applied is false when the fetch failed or the store kept a younger snapshot.
	Applied bool
	Err     error
}

// Report summarizes one refresh cycle.
type Report struct {
	Trigger  string
	Started  time.Time
	Finished time.Time
	// Joined is true when the caller attached to a cycle that was already running.
	Joined  bool
	Results map[int]Result
}

// Failed returns the number of zones whose refresh errored.
func (r Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

type cycle struct {
	done   chan struct{}
	report Report
}

// Scheduler runs refresh cycles. At most one cycle is in flight at a time.
type Scheduler struct {
	source  domain.WeatherSource
	store   ZoneApplier
	opts    Options
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool

	mu       sync.Mutex
	inflight *cycle
}

// New creates a Scheduler that fetches through source and applies results to store.
func New(source domain.WeatherSource, store ZoneApplier, opts Options, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Minute
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 5
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	return &Scheduler{
		source:  source,
		store:   store,
		opts:    opts,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once the first refresh cycle has completed.
func (s *Scheduler) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("no refresh cycle has completed yet")
	}
	return nil
}

// Run refreshes all zones immediately and then once per interval until ctx is
// cancelled. Ticks that arrive while a cycle is running are dropped. Run waits
// for the in-flight cycle before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	s.logger.Info("refresh scheduler started",
		"interval", s.opts.Interval,
		"concurrency", s.opts.Concurrency,
	)
	s.begin(ctx, TriggerPeriodic)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("refresh scheduler stopping", "reason", ctx.Err())
			s.wait()
			return nil
		case <-ticker.Chan():
			if _, joined := s.begin(ctx, TriggerPeriodic); joined {
				s.logger.Debug("refresh tick skipped, cycle in flight")
			}
		}
	}
}

// Trigger starts a cycle on demand and waits for its report. If a cycle is
// already running the caller joins it instead. The cycle itself is not
// cancelled when ctx is; only the wait is.
func (s *Scheduler) Trigger(ctx context.Context) (Report, error) {
	c, joined := s.begin(ctx, TriggerManual)
	select {
	case <-c.done:
		report := c.report
		report.Joined = joined
		return report, nil
	case <-ctx.Done():
		return Report{}, ctx.Err()
	}
}

// begin starts a new cycle, or returns the in-flight one with joined=true.
func (s *Scheduler) begin(ctx context.Context, trigger string) (*cycle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight != nil {
		return s.inflight, true
	}
	c := &cycle{done: make(chan struct{})}
	s.inflight = c

	go s.runCycle(context.WithoutCancel(ctx), c, trigger)
	return c, false
}

func (s *Scheduler) wait() {
	s.mu.Lock()
	c := s.inflight
	s.mu.Unlock()
	if c != nil {
		<-c.done
	}
}

func (s *Scheduler) runCycle(ctx context.Context, c *cycle, trigger string) {
	s.metrics.RefreshInFlight.Set(1)
	started := s.clock.Now()

	results := s.RefreshAll(ctx, s.store.Snapshot())

	finished := s.clock.Now()
	c.report = Report{
		Trigger:  trigger,
		Started:  started,
		Finished: finished,
		Results:  results,
	}
	s.metrics.RefreshCycles.WithLabelValues(trigger).Inc()
	s.metrics.RefreshDuration.Observe(finished.Sub(started).Seconds())
	s.metrics.RefreshInFlight.Set(0)
	s.ready.Store(true)

	s.logger.Info("refresh cycle complete",
		"trigger", trigger,
		"zones", len(results),
		"failed", c.report.Failed(),
		"duration", finished.Sub(started),
	)

	s.mu.Lock()
	s.inflight = nil
	s.mu.Unlock()
	close(c.done)
}

// RefreshAll fetches weather for every zone with at most Concurrency fetches
// in flight and applies each snapshot as soon as it arrives. A failing zone
// never stops the others; its error is reported in its Result.
func (s *Scheduler) RefreshAll(ctx context.Context, zones []domain.Zone) map[int]Result {
	results := make(chan Result, len(zones))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	go func() {
		for _, z := range zones {
			g.Go(func() error {
				results <- s.refreshZone(ctx, z)
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	out := make(map[int]Result, len(zones))
	for r := range results {
		out[r.ZoneID] = r
	}
	return out
}

func (s *Scheduler) refreshZone(ctx context.Context, z domain.Zone) Result {
	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	snap, err := s.source.Fetch(fetchCtx, z.Lat, z.Lon)
	if err != nil {
		s.metrics.ZoneFetches.WithLabelValues("error").Inc()
		s.logger.Warn("zone weather fetch failed, keeping previous state",
			"zone_id", z.ID, "zone", z.Name, "error", err)
		return Result{ZoneID: z.ID, Err: err}
	}

	applied, err := s.store.ApplyWeather(ctx, z.ID, snap)
	if err != nil {
		s.metrics.ZoneFetches.WithLabelValues("error").Inc()
		s.logger.Error("apply weather failed", "zone_id", z.ID, "error", err)
		return Result{ZoneID: z.ID, Snapshot: &snap, Err: err}
	}

	s.metrics.ZoneFetches.WithLabelValues("success").Inc()
	return Result{ZoneID: z.ID, Snapshot: &snap, Applied: applied}
}
