package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/0xlajaz/xandeum-nexus/internal/config"
	"github.com/0xlajaz/xandeum-nexus/internal/diagnosis"
	"github.com/0xlajaz/xandeum-nexus/internal/models"
	"github.com/0xlajaz/xandeum-nexus/internal/scoring"
	"github.com/0xlajaz/xandeum-nexus/internal/watchlist"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	offline  []models.OfflineAlert
	health   []models.HealthAlert
	recovery []models.RecoveryNotification
}

func (f *fakeSink) SendOfflineAlert(ctx context.Context, a models.OfflineAlert) error {
	f.offline = append(f.offline, a)
	return nil
}

func (f *fakeSink) SendHealthAlert(ctx context.Context, a models.HealthAlert) error {
	f.health = append(f.health, a)
	return nil
}

func (f *fakeSink) SendRecovery(ctx context.Context, n models.RecoveryNotification) error {
	f.recovery = append(f.recovery, n)
	return nil
}

type failingWatchlist struct{ watchlist.Store }

func (failingWatchlist) All(ctx context.Context) (map[string][]string, error) {
	return nil, errors.New("store down")
}

func testEngineConfig() *config.Config {
	return &config.Config{
		SafetyFloor:      1,
		StrikeThreshold:  2,
		OfflineCooldown:  10 * time.Minute,
		CriticalCooldown: time.Hour,
		WarningCooldown:  6 * time.Hour,
		DefaultCooldown:  time.Hour,
		SnoozeDuration:   24 * time.Hour,
		IgnoreDuration:   365 * 24 * time.Hour,
		AcceptedVersions: []string{"0.7", "0.8"},
		UptimePolicy:     config.UptimeNetworkMax,
		UptimeTarget:     7 * 24 * time.Hour,
		StorageTargetGB:  0.1,
	}
}

// fixture bundles an engine with a controllable clock and a subscriber
// already watching "watched-pod".
type fixture struct {
	engine *Engine
	sink   *fakeSink
	now    time.Time
	ctx    context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testEngineConfig()
	scorer := scoring.New(cfg)
	sink := &fakeSink{}

	wl := watchlist.NewMemoryStore()
	_, err := wl.Add(context.Background(), "100", "watched-pod")
	require.NoError(t, err)

	f := &fixture{
		engine: NewEngine(cfg, diagnosis.New(scorer), scorer, sink, wl, nil),
		sink:   sink,
		now:    time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
		ctx:    context.Background(),
	}
	f.engine.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func healthyPod(pubkey string) models.PodReport {
	return models.PodReport{
		Pubkey:           pubkey,
		Version:          "0.8.0",
		Uptime:           3 * 24 * 60 * 60,
		StorageCommitted: 200 * 1024 * 1024,
		PagingHitRate:    0.95,
	}
}

func warningPod(pubkey string) models.PodReport {
	p := healthyPod(pubkey)
	p.Version = "0.6.0" // VERSION warning
	return p
}

func snapshot(reports ...models.PodReport) *models.NetworkSnapshot {
	snap := &models.NetworkSnapshot{Nodes: make(map[string]models.PodReport)}
	for _, r := range reports {
		snap.Nodes[r.Pubkey] = r
		if r.Uptime > snap.MaxUptime {
			snap.MaxUptime = r.Uptime
		}
	}
	snap.TotalReports = len(reports)
	return snap
}

// filler keeps the snapshot above the safety floor without being watched.
var filler = healthyPod("filler-pod")

func TestOfflineNeedsConsecutiveStrikes(t *testing.T) {
	f := newFixture(t)
	absent := snapshot(filler)

	f.engine.EvaluateCycle(f.ctx, absent)
	assert.Empty(t, f.sink.offline, "one strike must not alert")

	f.advance(5 * time.Minute)
	f.engine.EvaluateCycle(f.ctx, absent)
	require.Len(t, f.sink.offline, 1)
	assert.Equal(t, "100", f.sink.offline[0].Subscriber)
	assert.Equal(t, "watched-pod", f.sink.offline[0].Pubkey)
	assert.Equal(t, 2, f.sink.offline[0].Strikes)
	assert.Equal(t, 0, f.sink.offline[0].DownForMin)
}

func TestOfflineCooldownAndReminder(t *testing.T) {
	f := newFixture(t)
	absent := snapshot(filler)

	f.engine.EvaluateCycle(f.ctx, absent)
	f.advance(5 * time.Minute)
	f.engine.EvaluateCycle(f.ctx, absent)
	require.Len(t, f.sink.offline, 1)

	// Still inside the 10 minute cooldown: silent.
	f.advance(5 * time.Minute)
	f.engine.EvaluateCycle(f.ctx, absent)
	assert.Len(t, f.sink.offline, 1)

	// Past the cooldown: reminder with elapsed downtime.
	f.advance(10 * time.Minute)
	f.engine.EvaluateCycle(f.ctx, absent)
	require.Len(t, f.sink.offline, 2)
	assert.Equal(t, 15, f.sink.offline[1].DownForMin)
}

func TestOneGoodResponseResetsStrikes(t *testing.T) {
	f := newFixture(t)
	absent := snapshot(filler)
	present := snapshot(filler, healthyPod("watched-pod"))

	f.engine.EvaluateCycle(f.ctx, absent)  // strike 1
	f.engine.EvaluateCycle(f.ctx, present) // reset
	f.engine.EvaluateCycle(f.ctx, absent)  // strike 1 again
	assert.Empty(t, f.sink.offline)

	f.engine.EvaluateCycle(f.ctx, absent) // strike 2
	assert.Len(t, f.sink.offline, 1)
}

func TestSuspectCycleSkipsOfflineButNotHealth(t *testing.T) {
	f := newFixture(t)
	f.engine.cfg.SafetyFloor = 10

	// Only one pod responded: suspect. The watched pod is absent but
	// must not accrue strikes.
	f.engine.EvaluateCycle(f.ctx, snapshot(filler))
	f.engine.EvaluateCycle(f.ctx, snapshot(filler))
	f.engine.EvaluateCycle(f.ctx, snapshot(filler))
	assert.Empty(t, f.sink.offline)
	assert.Empty(t, f.engine.strikes)

	// A degraded pod that did respond still alerts during a suspect cycle.
	f.engine.EvaluateCycle(f.ctx, snapshot(warningPod("watched-pod")))
	assert.Len(t, f.sink.health, 1)
}

func TestSuspectCycleSkipsRecovery(t *testing.T) {
	f := newFixture(t)

	f.engine.EvaluateCycle(f.ctx, snapshot(filler, warningPod("watched-pod")))
	require.Len(t, f.sink.health, 1)

	// Healthy again, but the cycle is suspect: hold the recovery.
	f.engine.cfg.SafetyFloor = 10
	f.engine.EvaluateCycle(f.ctx, snapshot(healthyPod("watched-pod")))
	assert.Empty(t, f.sink.recovery)

	// Trustworthy cycle: recovery goes out.
	f.engine.cfg.SafetyFloor = 1
	f.engine.EvaluateCycle(f.ctx, snapshot(filler, healthyPod("watched-pod")))
	assert.Len(t, f.sink.recovery, 1)
}

func TestHealthAlertCooldownBySeverity(t *testing.T) {
	f := newFixture(t)
	degraded := snapshot(filler, warningPod("watched-pod"))

	f.engine.EvaluateCycle(f.ctx, degraded)
	require.Len(t, f.sink.health, 1)
	assert.Equal(t, models.IssueVersion, f.sink.health[0].Category)

	// Inside the 6h warning cooldown.
	f.advance(3 * time.Hour)
	f.engine.EvaluateCycle(f.ctx, degraded)
	assert.Len(t, f.sink.health, 1)

	f.advance(4 * time.Hour)
	f.engine.EvaluateCycle(f.ctx, degraded)
	assert.Len(t, f.sink.health, 2)
}

func TestCriticalUsesShorterCooldown(t *testing.T) {
	f := newFixture(t)
	critical := healthyPod("watched-pod")
	critical.StorageCommitted = 0 // critical STORAGE issue
	degraded := snapshot(filler, critical)

	f.engine.EvaluateCycle(f.ctx, degraded)
	require.Len(t, f.sink.health, 1)
	assert.Equal(t, models.IssueStorage, f.sink.health[0].Category)

	f.advance(90 * time.Minute)
	f.engine.EvaluateCycle(f.ctx, degraded)
	assert.Len(t, f.sink.health, 2, "critical alerts repeat after one hour")
}

func TestRecoveryFiresExactlyOncePerEpisode(t *testing.T) {
	f := newFixture(t)
	degraded := snapshot(filler, warningPod("watched-pod"))
	recovered := snapshot(filler, healthyPod("watched-pod"))

	f.engine.EvaluateCycle(f.ctx, degraded)
	f.advance(time.Minute)
	f.engine.EvaluateCycle(f.ctx, degraded) // still degraded, in cooldown
	require.Len(t, f.sink.health, 1)

	f.engine.EvaluateCycle(f.ctx, recovered)
	require.Len(t, f.sink.recovery, 1)
	assert.Equal(t, models.IssueVersion, f.sink.recovery[0].Category)

	f.engine.EvaluateCycle(f.ctx, recovered)
	f.engine.EvaluateCycle(f.ctx, recovered)
	assert.Len(t, f.sink.recovery, 1, "a closed episode never re-announces")
}

func TestNewEpisodeCanRecoverAgain(t *testing.T) {
	f := newFixture(t)
	degraded := snapshot(filler, warningPod("watched-pod"))
	recovered := snapshot(filler, healthyPod("watched-pod"))

	f.engine.EvaluateCycle(f.ctx, degraded)
	f.engine.EvaluateCycle(f.ctx, recovered)
	require.Len(t, f.sink.recovery, 1)

	// Relapse opens a fresh episode once the cooldown allows an alert.
	f.advance(7 * time.Hour)
	f.engine.EvaluateCycle(f.ctx, degraded)
	require.Len(t, f.sink.health, 2)

	f.engine.EvaluateCycle(f.ctx, recovered)
	assert.Len(t, f.sink.recovery, 2)
}

func TestSnoozeSuppressesUntilExpiry(t *testing.T) {
	f := newFixture(t)
	degraded := snapshot(filler, warningPod("watched-pod"))

	until := f.engine.Snooze(f.ctx, "100", "watched-pod", models.IssueVersion)
	assert.Equal(t, f.now.Add(24*time.Hour), until)

	f.engine.EvaluateCycle(f.ctx, degraded)
	f.advance(12 * time.Hour)
	f.engine.EvaluateCycle(f.ctx, degraded)
	assert.Empty(t, f.sink.health)

	f.advance(13 * time.Hour)
	f.engine.EvaluateCycle(f.ctx, degraded)
	assert.Len(t, f.sink.health, 1)
}

func TestSnoozeSuppressesOfflineReminders(t *testing.T) {
	f := newFixture(t)
	absent := snapshot(filler)

	f.engine.Snooze(f.ctx, "100", "watched-pod", models.IssueOffline)

	// Strikes accrue past the threshold, but the muted key stays silent.
	for i := 0; i < 4; i++ {
		f.engine.EvaluateCycle(f.ctx, absent)
		f.advance(15 * time.Minute)
	}
	assert.Empty(t, f.sink.offline)
	assert.Equal(t, 4, f.engine.strikes[Key{"100", "watched-pod", models.IssueOffline}])

	// Past the snooze window the reminders resume.
	f.advance(24 * time.Hour)
	f.engine.EvaluateCycle(f.ctx, absent)
	assert.Len(t, f.sink.offline, 1)
}

func TestSnoozeIsPerCategory(t *testing.T) {
	f := newFixture(t)

	f.engine.Snooze(f.ctx, "100", "watched-pod", models.IssueStorage)

	// The VERSION issue is not covered by the STORAGE snooze.
	f.engine.EvaluateCycle(f.ctx, snapshot(filler, warningPod("watched-pod")))
	assert.Len(t, f.sink.health, 1)
}

func TestMarkAlertedSeedsCooldown(t *testing.T) {
	f := newFixture(t)
	degraded := snapshot(filler, warningPod("watched-pod"))

	f.engine.MarkAlerted("100", "watched-pod", models.IssueVersion)

	f.advance(time.Hour)
	f.engine.EvaluateCycle(f.ctx, degraded)
	assert.Empty(t, f.sink.health, "initial scan already showed the issue")

	f.advance(6 * time.Hour)
	f.engine.EvaluateCycle(f.ctx, degraded)
	assert.Len(t, f.sink.health, 1)
}

func TestResolveRescanClosesEpisodeSilently(t *testing.T) {
	f := newFixture(t)
	degraded := snapshot(filler, warningPod("watched-pod"))

	f.engine.EvaluateCycle(f.ctx, degraded)
	require.Len(t, f.sink.health, 1)

	healthyDiag := models.Diagnosis{Status: models.StatusHealthy}
	assert.True(t, f.engine.ResolveRescan("100", "watched-pod", models.IssueVersion, healthyDiag))

	// The episode is closed: the next healthy cycle emits no recovery.
	f.engine.EvaluateCycle(f.ctx, snapshot(filler, healthyPod("watched-pod")))
	assert.Empty(t, f.sink.recovery)
}

func TestResolveRescanRejectsUnhealthyVerdict(t *testing.T) {
	f := newFixture(t)
	f.engine.EvaluateCycle(f.ctx, snapshot(filler, warningPod("watched-pod")))

	stillBad := models.Diagnosis{Status: models.StatusWarning}
	assert.False(t, f.engine.ResolveRescan("100", "watched-pod", models.IssueVersion, stillBad))
}

func TestForgetSubscriptionClearsState(t *testing.T) {
	f := newFixture(t)
	absent := snapshot(filler)

	f.engine.EvaluateCycle(f.ctx, absent) // strike 1
	f.engine.Snooze(f.ctx, "100", "watched-pod", models.IssueVersion)

	f.engine.ForgetSubscription(f.ctx, "100", "watched-pod")
	assert.Empty(t, f.engine.strikes)
	assert.Empty(t, f.engine.mutedUntil)
	assert.Empty(t, f.engine.lastAlert)
}

func TestWatchlistErrorAbandonsCycle(t *testing.T) {
	f := newFixture(t)
	f.engine.watchlist = failingWatchlist{}

	f.engine.EvaluateCycle(f.ctx, snapshot(filler))
	f.engine.EvaluateCycle(f.ctx, snapshot(filler))
	assert.Empty(t, f.sink.offline)
	assert.Empty(t, f.engine.strikes, "an unreadable watch-list must not count strikes")
}

func TestKeyRoundTrip(t *testing.T) {
	key := Key{Subscriber: "100", Pubkey: "watched-pod", Category: models.IssueStorage}
	parsed, err := ParseKey(key.String())
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	_, err = ParseKey("no-separators")
	assert.Error(t, err)
}
