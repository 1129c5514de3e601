package telemetry

import (
	"sort"

	"github.com/0xlajaz/xandeum-nexus/internal/geolocation"
	"github.com/0xlajaz/xandeum-nexus/internal/models"
	"github.com/0xlajaz/xandeum-nexus/internal/scoring"
)

const gb = 1024 * 1024 * 1024

// Builder turns a raw snapshot into the scored node rows and
// network-wide KPIs served by the dashboard and the bot.
type Builder struct {
	scorer   *scoring.Scorer
	resolver *geolocation.Resolver
}

// NewBuilder creates a telemetry builder. The resolver may be nil when
// GeoIP enrichment is unavailable.
func NewBuilder(scorer *scoring.Scorer, resolver *geolocation.Resolver) *Builder {
	return &Builder{scorer: scorer, resolver: resolver}
}

// Build scores every pod in the snapshot and aggregates the KPIs.
// Rows are sorted by health score, best first.
func (b *Builder) Build(snap *models.NetworkSnapshot, credits map[string]int) ([]models.NodeSummary, models.NetworkStats) {
	nodes := make([]models.NodeSummary, 0, len(snap.Nodes))
	stats := models.NetworkStats{}

	var healthSum, pagingSum float64
	for pubkey, report := range snap.Nodes {
		score := b.scorer.Score(report, scoring.Context{MaxUptime: snap.MaxUptime})

		location := "Unknown"
		if b.resolver != nil {
			location = b.resolver.Lookup(report.Address)
		}

		storageGB := report.StorageCommitted / gb
		nodes = append(nodes, models.NodeSummary{
			Pubkey:      pubkey,
			ShortID:     shortID(pubkey),
			IP:          report.Address,
			Location:    location,
			Version:     report.Version,
			UptimeSec:   report.Uptime,
			StorageGB:   storageGB,
			HealthScore: score.Total,
			Breakdown:   score.Breakdown,
			LatencyMS:   report.ReportingLatency,
			Witnesses:   report.WitnessCount,
			Credits:     credits[pubkey],
		})

		stats.TotalStorageGB += storageGB
		healthSum += float64(score.Total)
		pagingSum += score.HitRate
		if b.scorer.VersionAccepted(report.Version) {
			stats.CompliantNodes++
		}
	}

	stats.TotalNodes = len(nodes)
	if stats.TotalNodes > 0 {
		stats.AvgHealth = healthSum / float64(stats.TotalNodes)
		stats.AvgPagingEfficiency = pagingSum / float64(stats.TotalNodes)
	}

	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].HealthScore != nodes[j].HealthScore {
			return nodes[i].HealthScore > nodes[j].HealthScore
		}
		return nodes[i].Pubkey < nodes[j].Pubkey
	})

	return nodes, stats
}

func shortID(pubkey string) string {
	if len(pubkey) <= 8 {
		return pubkey
	}
	return pubkey[:8] + "..."
}
