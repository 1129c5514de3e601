package alerts

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/0xlajaz/xandeum-nexus/internal/config"
	"github.com/0xlajaz/xandeum-nexus/internal/diagnosis"
	"github.com/0xlajaz/xandeum-nexus/internal/models"
	"github.com/0xlajaz/xandeum-nexus/internal/scoring"
	"github.com/0xlajaz/xandeum-nexus/internal/watchlist"

	"github.com/sirupsen/logrus"
)

// Key identifies one alert stream: a subscriber watching one pod for
// one issue category. Cooldowns, strikes and mutes are all tracked at
// this granularity.
type Key struct {
	Subscriber string
	Pubkey     string
	Category   models.IssueCategory
}

// String renders the key in the subscriber_pubkey_CATEGORY form the
// mute store persists.
func (k Key) String() string {
	return k.Subscriber + "_" + k.Pubkey + "_" + string(k.Category)
}

// ParseKey is the inverse of Key.String. Neither chat IDs nor pod
// pubkeys contain underscores.
func ParseKey(s string) (Key, error) {
	parts := strings.SplitN(s, "_", 3)
	if len(parts) != 3 {
		return Key{}, fmt.Errorf("malformed alert key %q", s)
	}
	return Key{Subscriber: parts[0], Pubkey: parts[1], Category: models.IssueCategory(parts[2])}, nil
}

// Sink receives fully-formed alert events. Delivery failure is logged
// by the engine and never retried; it has no effect on engine state.
type Sink interface {
	SendOfflineAlert(ctx context.Context, a models.OfflineAlert) error
	SendHealthAlert(ctx context.Context, a models.HealthAlert) error
	SendRecovery(ctx context.Context, n models.RecoveryNotification) error
}

// MuteStore persists the muted-until table across restarts. Failures
// are logged and absorbed; the in-memory table stays authoritative.
type MuteStore interface {
	GetMutes(ctx context.Context) (map[string]time.Time, error)
	SaveMutes(ctx context.Context, mutes map[string]time.Time) error
}

// Engine owns all alert lifecycle state. Both the periodic cycle and
// subscriber-triggered actions mutate it under one mutex, which keeps
// cycle writes and button presses mutually exclusive per key.
type Engine struct {
	cfg       *config.Config
	diagnoser *diagnosis.Diagnoser
	scorer    *scoring.Scorer
	sink      Sink
	watchlist watchlist.Store
	mutes     MuteStore
	now       func() time.Time

	mu           sync.Mutex
	lastAlert    map[Key]time.Time
	strikes      map[Key]int
	mutedUntil   map[Key]time.Time
	recoverySent map[Key]bool
}

// NewEngine wires the alert engine. A nil mute store disables mute
// persistence but not muting itself.
func NewEngine(cfg *config.Config, diag *diagnosis.Diagnoser, scorer *scoring.Scorer, sink Sink, wl watchlist.Store, mutes MuteStore) *Engine {
	return &Engine{
		cfg:          cfg,
		diagnoser:    diag,
		scorer:       scorer,
		sink:         sink,
		watchlist:    wl,
		mutes:        mutes,
		now:          time.Now,
		lastAlert:    make(map[Key]time.Time),
		strikes:      make(map[Key]int),
		mutedUntil:   make(map[Key]time.Time),
		recoverySent: make(map[Key]bool),
	}
}

// SetSink installs the delivery sink. Must be called before the first
// cycle; exists because the sink (the bot) also needs the engine for
// subscriber actions.
func (e *Engine) SetSink(s Sink) {
	e.sink = s
}

// LoadMutes restores persisted mutes, dropping ones that already expired.
func (e *Engine) LoadMutes(ctx context.Context) {
	if e.mutes == nil {
		return
	}
	stored, err := e.mutes.GetMutes(ctx)
	if err != nil {
		logrus.Warnf("Could not load persisted mutes: %v", err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	for raw, until := range stored {
		if until.Before(now) {
			continue
		}
		key, err := ParseKey(raw)
		if err != nil {
			logrus.Warnf("Skipping persisted mute: %v", err)
			continue
		}
		e.mutedUntil[key] = until
	}
	logrus.Infof("Restored %d active mutes", len(e.mutedUntil))
}

// EvaluateCycle walks every subscription against one snapshot and emits
// whatever alerts and recoveries are due. It is the only writer during
// a cycle; the watchdog guarantees cycles never overlap.
//
// A suspect cycle (fewer identities than the safety floor) skips the
// offline and recovery paths entirely so a transient network-wide
// outage cannot produce mass false offline alerts. Health evaluation
// for pods that did respond still proceeds.
func (e *Engine) EvaluateCycle(ctx context.Context, snap *models.NetworkSnapshot) {
	watch, err := e.watchlist.All(ctx)
	if err != nil {
		logrus.Errorf("Watch-list unavailable, abandoning alert cycle: %v", err)
		return
	}
	if len(watch) == 0 {
		return
	}

	suspect := snap.Suspect(e.cfg.SafetyFloor)
	if suspect {
		logrus.Warnf("Suspiciously low pod count (%d < %d), skipping offline/recovery evaluation",
			len(snap.Nodes), e.cfg.SafetyFloor)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for subscriber, pubkeys := range watch {
		for _, pubkey := range pubkeys {
			node, present := snap.Lookup(pubkey)

			if !present {
				if !suspect {
					e.evaluateOffline(ctx, subscriber, pubkey)
				}
				continue
			}

			// One good response fully resets the strike counter.
			delete(e.strikes, Key{subscriber, pubkey, models.IssueOffline})

			diag := e.diagnoser.Diagnose(node)
			score := e.scorer.Score(node, scoring.Context{MaxUptime: snap.MaxUptime})

			if diag.Status != models.StatusHealthy {
				e.evaluateHealth(ctx, subscriber, pubkey, node, diag, score)
			} else if !suspect {
				e.evaluateRecovery(ctx, subscriber, pubkey, node, score)
			}
		}
	}
}

func (e *Engine) evaluateOffline(ctx context.Context, subscriber, pubkey string) {
	key := Key{subscriber, pubkey, models.IssueOffline}
	e.strikes[key]++

	if e.strikes[key] < e.cfg.StrikeThreshold {
		logrus.Infof("Pod %s missed a check for %s (strike %d/%d)",
			shortID(pubkey), subscriber, e.strikes[key], e.cfg.StrikeThreshold)
		return
	}

	// Strikes keep counting while muted so the downtime picture stays
	// accurate, but no alert goes out.
	now := e.now()
	if now.Before(e.mutedUntil[key]) {
		return
	}

	last, alerted := e.lastAlert[key]
	if alerted && now.Sub(last) <= e.cfg.OfflineCooldown {
		return
	}

	downFor := 0
	if alerted {
		downFor = int(now.Sub(last).Minutes())
	}

	alert := models.OfflineAlert{
		Subscriber: subscriber,
		Pubkey:     pubkey,
		Strikes:    e.strikes[key],
		DownForMin: downFor,
	}
	if e.sink == nil {
		logrus.Warnf("No alert sink configured, dropping offline alert for %s", shortID(pubkey))
	} else if err := e.sink.SendOfflineAlert(ctx, alert); err != nil {
		logrus.Errorf("Failed to deliver offline alert for %s: %v", shortID(pubkey), err)
	}

	e.lastAlert[key] = now
	delete(e.recoverySent, key)
}

func (e *Engine) evaluateHealth(ctx context.Context, subscriber, pubkey string, node models.PodReport, diag models.Diagnosis, score models.ScoreResult) {
	key := Key{subscriber, pubkey, diag.Category()}

	now := e.now()
	if now.Before(e.mutedUntil[key]) {
		return
	}

	if last, alerted := e.lastAlert[key]; alerted && now.Sub(last) <= e.cooldownFor(diag.Status) {
		return
	}

	alert := models.HealthAlert{
		Subscriber: subscriber,
		Pubkey:     pubkey,
		Category:   key.Category,
		Score:      score,
		Diagnosis:  diag,
		Report:     node,
	}
	if e.sink == nil {
		logrus.Warnf("No alert sink configured, dropping health alert for %s", shortID(pubkey))
	} else if err := e.sink.SendHealthAlert(ctx, alert); err != nil {
		logrus.Errorf("Failed to deliver health alert for %s: %v", shortID(pubkey), err)
	}

	e.lastAlert[key] = now
	delete(e.recoverySent, key)
}

// evaluateRecovery closes every open episode for a pod that diagnosed
// healthy. Each opened episode produces at most one recovery event.
func (e *Engine) evaluateRecovery(ctx context.Context, subscriber, pubkey string, node models.PodReport, score models.ScoreResult) {
	for _, cat := range models.CategoryPriority {
		key := Key{subscriber, pubkey, cat}
		if _, open := e.lastAlert[key]; !open || e.recoverySent[key] {
			continue
		}

		n := models.RecoveryNotification{
			Subscriber: subscriber,
			Pubkey:     pubkey,
			Category:   cat,
			Score:      score,
			Report:     node,
		}
		if e.sink == nil {
			logrus.Warnf("No alert sink configured, dropping recovery notification for %s", shortID(pubkey))
		} else if err := e.sink.SendRecovery(ctx, n); err != nil {
			logrus.Errorf("Failed to deliver recovery notification for %s: %v", shortID(pubkey), err)
		}

		e.recoverySent[key] = true
		delete(e.lastAlert, key)
	}
}

func (e *Engine) cooldownFor(status models.Status) time.Duration {
	switch status {
	case models.StatusCritical:
		return e.cfg.CriticalCooldown
	case models.StatusWarning:
		return e.cfg.WarningCooldown
	default:
		return e.cfg.DefaultCooldown
	}
}

func shortID(pubkey string) string {
	if len(pubkey) <= 8 {
		return pubkey
	}
	return pubkey[:8]
}
