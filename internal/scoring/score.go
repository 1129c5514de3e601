package scoring

import (
	"github.com/0xlajaz/xandeum-nexus/internal/config"
	"github.com/0xlajaz/xandeum-nexus/internal/models"
	"github.com/0xlajaz/xandeum-nexus/internal/version"
)

const gb = 1024 * 1024 * 1024

// Scorer computes the 0-100 health score for a pod. It is a pure
// function of the report and the snapshot context; malformed inputs
// clamp instead of failing.
type Scorer struct {
	accepted        []string
	uptimePolicy    config.UptimePolicy
	uptimeTargetSec float64
	storageTargetGB float64
}

// New builds a scorer from the configured policy knobs.
func New(cfg *config.Config) *Scorer {
	return &Scorer{
		accepted:        cfg.AcceptedVersions,
		uptimePolicy:    cfg.UptimePolicy,
		uptimeTargetSec: cfg.UptimeTarget.Seconds(),
		storageTargetGB: cfg.StorageTargetGB,
	}
}

// Context carries the network-wide values scoring is relative to.
type Context struct {
	MaxUptime float64 // seconds, highest uptime in the snapshot
}

// Score computes the four-component health score.
//
// Version compliance is 40 for accepted major.minor prefixes and a
// fixed floor of 10 otherwise - never zero, so an off-version pod does
// not look like a total failure.
func (s *Scorer) Score(report models.PodReport, ctx Context) models.ScoreResult {
	scoreVersion := 10
	if s.VersionAccepted(report.Version) {
		scoreVersion = 40
	}

	uptime := report.Uptime
	if uptime < 0 {
		uptime = 0
	}
	ref := s.uptimeTargetSec
	if s.uptimePolicy == config.UptimeNetworkMax {
		ref = ctx.MaxUptime
	}
	scoreUptime := 0.0
	if ref > 0 {
		scoreUptime = clamp(uptime/ref*30, 0, 30)
	}

	storageGB := report.StorageCommitted / gb
	scoreStorage := 0.0
	if s.storageTargetGB > 0 {
		scoreStorage = clamp(storageGB/s.storageTargetGB*20, 0, 20)
	}

	hitRate := clamp(report.PagingHitRate, 0, 1)
	scorePaging := hitRate * 10
	switch {
	case report.ReportingLatency > 1000:
		scorePaging -= 5
	case report.ReportingLatency > 500:
		scorePaging -= 2
	}
	scorePaging = clamp(scorePaging, 0, 10)

	total := clamp(float64(scoreVersion)+scoreUptime+scoreStorage+scorePaging, 0, 100)

	return models.ScoreResult{
		Total: int(total),
		Breakdown: models.ScoreBreakdown{
			Version: scoreVersion,
			Uptime:  int(scoreUptime),
			Storage: int(scoreStorage),
			Paging:  int(scorePaging),
		},
		HitRate:   hitRate,
		LatencyMS: report.ReportingLatency,
	}
}

// VersionAccepted reports whether the pod's declared version parses to
// one of the accepted major.minor prefixes.
func (s *Scorer) VersionAccepted(v string) bool {
	mm := version.Parse(v).MajorMinor()
	for _, a := range s.accepted {
		if mm == a {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
