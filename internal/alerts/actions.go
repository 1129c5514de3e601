package alerts

import (
	"context"
	"time"

	"github.com/0xlajaz/xandeum-nexus/internal/models"

	"github.com/sirupsen/logrus"
)

// Subscriber-triggered actions. These run outside the periodic cycle
// but share the engine mutex, so a button press can never interleave
// with a cycle write to the same key.

// Snooze suppresses alerts for one key for the snooze window (24h by
// default) and returns the expiry.
func (e *Engine) Snooze(ctx context.Context, subscriber, pubkey string, cat models.IssueCategory) time.Time {
	return e.mute(ctx, Key{subscriber, pubkey, cat}, e.cfg.SnoozeDuration)
}

// Ignore suppresses alerts for one key for a year - long enough to be
// permanent in practice without needing an explicit forever flag.
func (e *Engine) Ignore(ctx context.Context, subscriber, pubkey string, cat models.IssueCategory) time.Time {
	return e.mute(ctx, Key{subscriber, pubkey, cat}, e.cfg.IgnoreDuration)
}

func (e *Engine) mute(ctx context.Context, key Key, d time.Duration) time.Time {
	e.mu.Lock()
	until := e.now().Add(d)
	e.mutedUntil[key] = until
	snapshot := e.copyMutesLocked()
	e.mu.Unlock()

	e.persistMutes(ctx, snapshot)
	return until
}

// MarkAlerted seeds the cooldown clock for a key without emitting
// anything. Used after an initial scan already showed the subscriber
// the problem, so the next cycle does not immediately repeat it.
func (e *Engine) MarkAlerted(subscriber, pubkey string, cat models.IssueCategory) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := Key{subscriber, pubkey, cat}
	e.lastAlert[key] = e.now()
	delete(e.recoverySent, key)
}

// ResolveRescan applies a manual re-scan verdict. A healthy diagnosis
// closes the open episode immediately, bypassing the normal
// recovery-detection scan; the caller renders its own confirmation, so
// no recovery event is emitted. Returns whether an episode was closed.
func (e *Engine) ResolveRescan(subscriber, pubkey string, cat models.IssueCategory, diag models.Diagnosis) bool {
	if diag.Status != models.StatusHealthy {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	key := Key{subscriber, pubkey, cat}
	if _, open := e.lastAlert[key]; !open {
		return false
	}
	delete(e.lastAlert, key)
	e.recoverySent[key] = true
	return true
}

// ForgetSubscription garbage-collects all alert state for one
// (subscriber, pod) pair. Called when a subscriber unwatches a pod.
func (e *Engine) ForgetSubscription(ctx context.Context, subscriber, pubkey string) {
	e.mu.Lock()
	changed := false
	for _, cat := range models.CategoryPriority {
		key := Key{subscriber, pubkey, cat}
		delete(e.lastAlert, key)
		delete(e.strikes, key)
		delete(e.recoverySent, key)
		if _, ok := e.mutedUntil[key]; ok {
			delete(e.mutedUntil, key)
			changed = true
		}
	}
	var snapshot map[string]time.Time
	if changed {
		snapshot = e.copyMutesLocked()
	}
	e.mu.Unlock()

	if changed {
		e.persistMutes(ctx, snapshot)
	}
}

func (e *Engine) copyMutesLocked() map[string]time.Time {
	out := make(map[string]time.Time, len(e.mutedUntil))
	for key, until := range e.mutedUntil {
		out[key.String()] = until
	}
	return out
}

func (e *Engine) persistMutes(ctx context.Context, mutes map[string]time.Time) {
	if e.mutes == nil {
		return
	}
	if err := e.mutes.SaveMutes(ctx, mutes); err != nil {
		logrus.Warnf("Failed to persist mutes: %v", err)
	}
}
