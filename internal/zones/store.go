// Package zones owns the authoritative in-memory zone collection. Every
// mutation is classified, persisted and then committed; readers always see a
// complete, consistent collection.
package zones

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/flood-watch/internal/domain"
	"github.com/couchcryptid/flood-watch/internal/observability"
)

const (
	saveAttempts   = 3
	initialBackoff = 50 * time.Millisecond
	maxBackoff     = 1 * time.Second
	publishTimeout = 5 * time.Second
)

// Repository persists the whole zone collection.
type Repository interface {
	Load(ctx context.Context) ([]domain.Zone, error)
	Save(ctx context.Context, zones []domain.Zone) error
}

// Publisher receives events for committed mutations.
type Publisher interface {
	Publish(ctx context.Context, events []domain.ZoneEvent) error
}

// Store serializes writers on a mutex and publishes an immutable slice for
// readers through an atomic pointer. Events are published under publishMu,
// which a writer takes before releasing mu, so they leave in commit order.
type Store struct {
	repo      Repository
	engine    domain.RiskEngine
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics

	mu        sync.Mutex
	publishMu sync.Mutex
	zones atomic.Pointer[[]domain.Zone]
	index map[int]int // zone id -> position; fixed after Open
}

// Open loads the collection from repo, seeding DefaultZones when it is empty,
// and recomputes every zone's derived fields. publisher may be nil.
func Open(ctx context.Context, repo Repository, engine domain.RiskEngine, publisher Publisher, logger *slog.Logger, metrics *observability.Metrics) (*Store, error) {
	loaded, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load zones: %w: %w", domain.ErrPersistence, err)
	}

	seeded := len(loaded) == 0
	if seeded {
		loaded = DefaultZones()
	}

	zones := slices.Clone(loaded)
	slices.SortFunc(zones, func(a, b domain.Zone) int { return a.ID - b.ID })

	index := make(map[int]int, len(zones))
	for i, z := range zones {
		if _, dup := index[z.ID]; dup {
			return nil, fmt.Errorf("duplicate zone id %d", z.ID)
		}
		index[z.ID] = i
		if z.Votes < 0 {
			logger.Warn("negative vote count in stored zone, resetting", "zone_id", z.ID, "votes", z.Votes)
			z.Votes = 0
		}
		zones[i] = z.Assess(engine)
	}

	s := &Store{
		repo:      repo,
		engine:    engine,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		index:     index,
	}

	if seeded {
		if err := s.save(ctx, zones); err != nil {
			return nil, err
		}
		logger.Info("seeded default zones", "zones", len(zones))
	}

	s.zones.Store(&zones)
	logger.Info("zone store opened", "zones", len(zones))
	return s, nil
}

// Snapshot returns a copy of all zones ordered by id. It never blocks on
// writers.
func (s *Store) Snapshot() []domain.Zone {
	zones := slices.Clone(*s.zones.Load())
	for i := range zones {
		zones[i] = detach(zones[i])
	}
	return zones
}

// Get returns a single zone.
func (s *Store) Get(id int) (domain.Zone, error) {
	i, ok := s.index[id]
	if !ok {
		return domain.Zone{}, fmt.Errorf("zone %d: %w", id, domain.ErrZoneNotFound)
	}
	return detach((*s.zones.Load())[i]), nil
}

// detach gives the zone its own copy of the weather snapshot so callers
// cannot write through to committed state.
func detach(z domain.Zone) domain.Zone {
	if z.Weather != nil {
		w := *z.Weather
		z.Weather = &w
	}
	return z
}

// SubmitVote records one community flood report for the zone.
func (s *Store) SubmitVote(ctx context.Context, id int) (domain.Zone, error) {
	z, _, err := s.mutate(ctx, id, domain.EventVote, func(z domain.Zone) (domain.Zone, bool) {
		z.Votes++
		return z, true
	})
	return z, err
}

// ResetVotes clears the vote count of one zone.
func (s *Store) ResetVotes(ctx context.Context, id int) (domain.Zone, error) {
	z, _, err := s.mutate(ctx, id, domain.EventReset, func(z domain.Zone) (domain.Zone, bool) {
		if z.Votes == 0 {
			return z, false
		}
		z.Votes = 0
		return z, true
	})
	return z, err
}

// ResetAllVotes clears every zone's vote count in a single save and returns
// the number of zones that changed.
func (s *Store) ResetAllVotes(ctx context.Context) (int, error) {
	s.mu.Lock()

	cur := *s.zones.Load()
	next := slices.Clone(cur)
	var events []domain.ZoneEvent
	now := domain.Now()
	for i, z := range next {
		if z.Votes == 0 {
			continue
		}
		z.Votes = 0
		z = z.Assess(s.engine)
		z.UpdatedAt = now
		next[i] = z
		events = append(events, newEvent(domain.EventReset, z))
	}
	if len(events) == 0 {
		s.mu.Unlock()
		return 0, nil
	}

	if err := s.save(ctx, next); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	s.zones.Store(&next)
	s.publishMu.Lock()
	s.mu.Unlock()
	defer s.publishMu.Unlock()

	s.metrics.ZoneMutations.WithLabelValues(domain.EventReset).Add(float64(len(events)))
	s.logger.Info("all votes reset", "zones", len(events))
	s.publish(ctx, events)
	return len(events), nil
}

// ApplyWeather replaces the zone's snapshot and reclassifies it. A snapshot
// older than the stored one is dropped and one with the same fetch time is a
// no-op; both return applied=false.
func (s *Store) ApplyWeather(ctx context.Context, id int, snap domain.WeatherSnapshot) (bool, error) {
	stale := false
	_, applied, err := s.mutate(ctx, id, domain.EventWeather, func(z domain.Zone) (domain.Zone, bool) {
		if z.Weather != nil && !snap.FetchedAt.After(z.Weather.FetchedAt) {
			stale = snap.FetchedAt.Before(z.Weather.FetchedAt)
			return z, false
		}
		z.Weather = &snap
		return z, true
	})
	if stale {
		s.metrics.StaleSnapshots.Inc()
		s.logger.Debug("dropped out-of-order weather snapshot", "zone_id", id, "fetched_at", snap.FetchedAt)
	}
	return applied, err
}

// Close flushes the current collection to the repository.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, *s.zones.Load())
}

// mutate applies fn to a copy of the zone under the writer lock, reclassifies,
// saves the whole collection and commits it. Nothing is committed if the save
// fails. fn returns false to leave the zone unchanged.
func (s *Store) mutate(ctx context.Context, id int, kind string, fn func(domain.Zone) (domain.Zone, bool)) (domain.Zone, bool, error) {
	i, ok := s.index[id]
	if !ok {
		return domain.Zone{}, false, fmt.Errorf("zone %d: %w", id, domain.ErrZoneNotFound)
	}

	s.mu.Lock()
	cur := *s.zones.Load()
	z, changed := fn(cur[i])
	if !changed {
		s.mu.Unlock()
		return detach(cur[i]), false, nil
	}
	z = z.Assess(s.engine)
	z.UpdatedAt = domain.Now()

	next := slices.Clone(cur)
	next[i] = z
	if err := s.save(ctx, next); err != nil {
		s.mu.Unlock()
		return detach(cur[i]), false, err
	}
	s.zones.Store(&next)
	s.publishMu.Lock()
	s.mu.Unlock()
	defer s.publishMu.Unlock()

	s.metrics.ZoneMutations.WithLabelValues(kind).Inc()
	if cur[i].Status != z.Status {
		s.logger.Info("zone status changed",
			"zone_id", z.ID,
			"zone", z.Name,
			"from", cur[i].Status,
			"to", z.Status,
			"votes", z.Votes,
		)
	}
	s.publish(ctx, []domain.ZoneEvent{newEvent(kind, z)})
	return detach(z), true, nil
}

// save writes the collection, retrying with exponential backoff. Callers hold s.mu.
func (s *Store) save(ctx context.Context, zones []domain.Zone) error {
	backoff := initialBackoff
	var err error
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		if err = s.repo.Save(ctx, zones); err == nil {
			return nil
		}
		s.logger.Warn("save zones failed", "attempt", attempt, "error", err)
		if attempt == saveAttempts || !retry.SleepWithContext(ctx, backoff) {
			break
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
	s.metrics.PersistErrors.Inc()
	return fmt.Errorf("save zones: %w: %w", domain.ErrPersistence, err)
}

// publish sends events best effort; failures are logged and counted only.
func (s *Store) publish(ctx context.Context, events []domain.ZoneEvent) {
	if s.publisher == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pctx, events); err != nil {
		s.metrics.PublishErrors.Add(float64(len(events)))
		s.logger.Warn("publish zone events failed", "events", len(events), "error", err)
	}
}

func newEvent(kind string, z domain.Zone) domain.ZoneEvent {
	return domain.ZoneEvent{
		EventID:    uuid.NewString(),
		Kind:       kind,
		ZoneID:     z.ID,
		ZoneName:   z.Name,
		Votes:      z.Votes,
		Status:     z.Status,
		RiskLevel:  z.RiskLevel,
		Score:      z.Score,
		Severity:   z.Severity,
		OccurredAt: z.UpdatedAt,
	}
}
