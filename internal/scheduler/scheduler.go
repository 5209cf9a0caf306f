// Package scheduler owns the recurring refresh timers that keep the cache
// warm and announces every successful refresh to registered listeners.
//
// Each refresh kind polls on a period equal to its cache TTL, so an entry is
// replaced at the moment it would otherwise go stale. That 1:1 trade between
// freshness and upstream call budget is the core policy here.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/marketpulse/marketpulse/internal/cache"
	"github.com/marketpulse/marketpulse/internal/domain"
	"github.com/marketpulse/marketpulse/internal/metrics"
)

// Kind identifies one independently scheduled, independently cached feed.
type Kind string

const (
	KindListings      Kind = "listings"
	KindGlobalMetrics Kind = "global_metrics"
	KindFearGreed     Kind = "fear_greed"
)

// Listings refreshes fetch the first page at this window; the same page the
// HTTP layer serves by default.
const (
	listingsStart = 1
	listingsLimit = 100
	listingsSort  = "market_cap"
	listingsDir   = "desc"
)

// Update is the ephemeral announcement emitted after a successful refresh.
// Payload is []domain.Asset for listings, domain.GlobalMetrics for global
// metrics, and domain.FearGreedReading for fear/greed.
type Update struct {
	Kind    Kind
	Payload any
}

// Listener consumes refresh announcements. Invoked synchronously on the
// refresh goroutine; a panicking listener is recovered and logged.
type Listener func(Update)

// Source is the slice of the market data provider the scheduler drives.
type Source interface {
	GetListings(ctx context.Context, start, limit int, sort, sortDir string) ([]domain.Asset, error)
	GetGlobalMetrics(ctx context.Context) (domain.GlobalMetrics, error)
	GetFearAndGreed(ctx context.Context) (domain.FearGreedReading, error)
}

// Scheduler drives the refresh-cache-announce cycle for every feed kind.
type Scheduler struct {
	cache  *cache.Cache
	source Source
	clock  clockwork.Clock

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	listeners  map[int]Listener
	listenerID int
}

// New creates a stopped scheduler.
func New(c *cache.Cache, source Source, clock clockwork.Clock) *Scheduler {
	return &Scheduler{
		cache:     c,
		source:    source,
		clock:     clock,
		listeners: make(map[int]Listener),
	}
}

// Start performs one immediate refresh per kind and arms one recurring timer
// per kind. Calling Start on a running scheduler is a logged no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		slog.Warn("Refresh scheduler already running, ignoring start")
		return
	}
	s.running = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	kinds := []struct {
		kind     Kind
		interval time.Duration
		refresh  func(context.Context)
	}{
		{KindListings, cache.ListingsTTL, s.refreshListings},
		{KindGlobalMetrics, cache.GlobalMetricsTTL, s.refreshGlobalMetrics},
		{KindFearGreed, cache.FearGreedTTL, s.refreshFearGreed},
	}

	for _, k := range kinds {
		s.wg.Add(1)
		go s.run(ctx, k.kind, k.interval, k.refresh)
	}

	slog.Info("Refresh scheduler started", "kinds", len(kinds))
}

// Stop cancels all timers and discards all registered listeners. In-flight
// refreshes still write their results to the cache; their announcements go
// to zero listeners. Calling Stop on a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.listeners = make(map[int]Listener)
	s.mu.Unlock()

	s.wg.Wait()
	slog.Info("Refresh scheduler stopped")
}

// Running reports whether the timers are armed.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// OnUpdate registers a listener for successful refreshes and returns a
// function that removes it. Listeners registered after a refresh do not
// retroactively receive past announcements.
func (s *Scheduler) OnUpdate(listener Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.listenerID
	s.listenerID++
	s.listeners[id] = listener

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Scheduler) run(ctx context.Context, kind Kind, interval time.Duration, refresh func(context.Context)) {
	defer s.wg.Done()

	refresh(ctx)

	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			refresh(ctx)
		}
	}
}

func (s *Scheduler) refreshListings(ctx context.Context) {
	start := s.clock.Now()
	assets, err := s.source.GetListings(ctx, listingsStart, listingsLimit, listingsSort, listingsDir)
	if err != nil {
		s.fail(KindListings, err)
		return
	}

	s.cache.Set(cache.ListingsKey(listingsStart, listingsLimit), assets, cache.ListingsTTL)
	// Fan each asset out into its own entry so point lookups skip the provider.
	for _, asset := range assets {
		s.cache.Set(cache.AssetKey(asset.ID), asset, cache.AssetTTL)
	}

	s.succeed(KindListings, start)
	s.announce(Update{Kind: KindListings, Payload: assets})
}

func (s *Scheduler) refreshGlobalMetrics(ctx context.Context) {
	start := s.clock.Now()
	global, err := s.source.GetGlobalMetrics(ctx)
	if err != nil {
		s.fail(KindGlobalMetrics, err)
		return
	}

	s.cache.Set(cache.KeyGlobalMetrics, global, cache.GlobalMetricsTTL)

	s.succeed(KindGlobalMetrics, start)
	s.announce(Update{Kind: KindGlobalMetrics, Payload: global})
}

func (s *Scheduler) refreshFearGreed(ctx context.Context) {
	start := s.clock.Now()
	reading, err := s.source.GetFearAndGreed(ctx)
	if err != nil {
		s.fail(KindFearGreed, err)
		return
	}

	s.cache.Set(cache.KeyFearGreed, reading, cache.FearGreedTTL)

	s.succeed(KindFearGreed, start)
	s.announce(Update{Kind: KindFearGreed, Payload: reading})
}

// fail logs a refresh failure. The previous cache value is left untouched:
// stale-but-available beats unavailable, and the next fixed-interval tick
// retries anyway.
func (s *Scheduler) fail(kind Kind, err error) {
	metrics.RefreshesTotal.WithLabelValues(string(kind), "error").Inc()
	slog.Error("Refresh failed, keeping previous cache value", "kind", kind, "error", err)
}

func (s *Scheduler) succeed(kind Kind, start time.Time) {
	metrics.RefreshesTotal.WithLabelValues(string(kind), "ok").Inc()
	metrics.RefreshDuration.WithLabelValues(string(kind)).Observe(s.clock.Since(start).Seconds())
}

// announce invokes all current listeners synchronously. Cache writes happen
// before this, so a listener reading the cache sees the fresh value.
func (s *Scheduler) announce(update Update) {
	s.mu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, listener := range listeners {
		s.invoke(listener, update)
	}
}

func (s *Scheduler) invoke(listener Listener, update Update) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Refresh listener panicked", "kind", update.Kind, "panic", r)
		}
	}()
	listener(update)
}
