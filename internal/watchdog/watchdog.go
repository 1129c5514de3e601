package watchdog

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/0xlajaz/xandeum-nexus/internal/aggregator"
	"github.com/0xlajaz/xandeum-nexus/internal/alerts"
	"github.com/0xlajaz/xandeum-nexus/internal/cache"
	"github.com/0xlajaz/xandeum-nexus/internal/config"
	"github.com/0xlajaz/xandeum-nexus/internal/credits"
	"github.com/0xlajaz/xandeum-nexus/internal/history"
	"github.com/0xlajaz/xandeum-nexus/internal/models"
	"github.com/0xlajaz/xandeum-nexus/internal/telemetry"

	"github.com/sirupsen/logrus"
)

const snapshotCacheKey = "telemetry:latest"

// CachedTelemetry is the processed cycle output kept in Redis for the
// HTTP API between cycles.
type CachedTelemetry struct {
	Timestamp int64                `json:"timestamp"`
	Network   models.NetworkStats  `json:"network"`
	Nodes     []models.NodeSummary `json:"nodes"`
}

// Watchdog drives the polling cycle: aggregate the network, evaluate
// alerts, persist history, refresh the telemetry cache. Cycles are
// strictly serialized; a tick that fires while a cycle is still
// running is skipped, never run concurrently.
type Watchdog struct {
	cfg     *config.Config
	agg     *aggregator.Aggregator
	credits *credits.Client
	engine  *alerts.Engine
	builder *telemetry.Builder
	history *history.Store
	cache   *cache.Cache

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New wires the watchdog. History and cache may be nil; the cycle then
// simply skips those steps.
func New(cfg *config.Config, agg *aggregator.Aggregator, cr *credits.Client, engine *alerts.Engine,
	builder *telemetry.Builder, hist *history.Store, c *cache.Cache) *Watchdog {
	return &Watchdog{
		cfg:     cfg,
		agg:     agg,
		credits: cr,
		engine:  engine,
		builder: builder,
		history: hist,
		cache:   c,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start launches the polling loop in a goroutine.
func (w *Watchdog) Start() {
	go w.run()
	logrus.Infof("Watchdog started (interval %s, %d seeds)", w.cfg.PollInterval, len(w.cfg.SeedPeers))
}

// Stop requests loop termination and waits for the in-flight cycle.
func (w *Watchdog) Stop() {
	select {
	case <-w.doneCh:
		return
	default:
	}
	close(w.stopCh)
	<-w.doneCh
}

func (w *Watchdog) run() {
	defer close(w.doneCh)

	w.tick()

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.tick()
		case <-w.stopCh:
			return
		}
	}
}

func (w *Watchdog) tick() {
	if !w.running.CompareAndSwap(false, true) {
		logrus.Warn("Previous cycle still running, skipping tick")
		return
	}
	defer w.running.Store(false)

	defer func() {
		// A panicking cycle must not kill the scheduler; the next tick
		// starts over from a fresh snapshot.
		if r := recover(); r != nil {
			logrus.Errorf("Polling cycle panicked, abandoning cycle: %v", r)
		}
	}()

	w.RunCycle(context.Background())
}

// RunCycle executes one full polling cycle. The credits lookup runs in
// parallel with the seed polls; both are bounded by their own timeouts.
func (w *Watchdog) RunCycle(ctx context.Context) {
	start := time.Now()

	var (
		wg         sync.WaitGroup
		snap       *models.NetworkSnapshot
		creditsMap map[string]int
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		snap = w.agg.Collect(ctx)
	}()
	go func() {
		defer wg.Done()
		creditsMap = w.credits.Fetch(ctx)
	}()
	wg.Wait()

	w.engine.EvaluateCycle(ctx, snap)

	nodes, stats := w.builder.Build(snap, creditsMap)

	if w.history != nil && len(nodes) > 0 {
		if err := w.history.Save(stats); err != nil {
			logrus.Errorf("Failed to persist history: %v", err)
		}
	}

	if w.cache != nil {
		cached := CachedTelemetry{Timestamp: snap.Timestamp, Network: stats, Nodes: nodes}
		if err := w.cache.Set(ctx, snapshotCacheKey, cached, w.cfg.SnapshotTTL); err != nil {
			logrus.Warnf("Failed to cache telemetry: %v", err)
		}
	}

	logrus.Infof("Cycle complete in %s: %d pods, avg health %.1f",
		time.Since(start).Round(time.Millisecond), stats.TotalNodes, stats.AvgHealth)
}

// LatestTelemetry returns the cached output of the most recent cycle,
// if Redis still has it.
func (w *Watchdog) LatestTelemetry(ctx context.Context) (*CachedTelemetry, bool) {
	if w.cache == nil {
		return nil, false
	}
	cached, err := w.cache.Get(ctx, snapshotCacheKey)
	if err != nil {
		return nil, false
	}
	var out CachedTelemetry
	if err := cached.Unmarshal(&out); err != nil {
		return nil, false
	}
	return &out, true
}
