package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/0xlajaz/xandeum-nexus/internal/config"
	"github.com/0xlajaz/xandeum-nexus/internal/models"
	"github.com/0xlajaz/xandeum-nexus/internal/prpc"
	"github.com/0xlajaz/xandeum-nexus/internal/version"

	"github.com/sirupsen/logrus"
)

// PeerClient is the single call the aggregator needs from the RPC layer.
type PeerClient interface {
	FetchPodStats(ctx context.Context, peer string) []models.PodReport
}

// Aggregator fans out one RPC call per seed peer and folds the results
// into a single deduplicated snapshot per cycle.
type Aggregator struct {
	cfg    *config.Config
	client PeerClient
}

// New creates an aggregator over the configured seed set.
func New(cfg *config.Config, client PeerClient) *Aggregator {
	if client == nil {
		client = prpc.NewClient(cfg)
	}
	return &Aggregator{cfg: cfg, client: client}
}

// Collect polls every seed concurrently, waits for all of them, and
// merges the reports into one NetworkSnapshot. A failed or slow peer
// contributes nothing but never blocks the others beyond the per-call
// timeout.
func (a *Aggregator) Collect(ctx context.Context) *models.NetworkSnapshot {
	results := make([][]models.PodReport, len(a.cfg.SeedPeers))

	var wg sync.WaitGroup
	for i, peer := range a.cfg.SeedPeers {
		wg.Add(1)
		go func(i int, peer string) {
			defer wg.Done()
			results[i] = a.client.FetchPodStats(ctx, peer)
		}(i, peer)
	}
	wg.Wait()

	snap := &models.NetworkSnapshot{
		Nodes:     make(map[string]models.PodReport),
		Timestamp: time.Now().Unix(),
	}
	witnesses := make(map[string]int)

	for _, reports := range results {
		if reports == nil {
			continue
		}
		snap.ReachablePeers++
		for _, report := range reports {
			if report.Pubkey == "" {
				continue
			}
			snap.TotalReports++
			witnesses[report.Pubkey]++

			incumbent, seen := snap.Nodes[report.Pubkey]
			if !seen || Prefer(report, incumbent) {
				snap.Nodes[report.Pubkey] = report
			}
		}
	}

	for pubkey, node := range snap.Nodes {
		node.WitnessCount = witnesses[pubkey]
		snap.Nodes[pubkey] = node
		if node.Uptime > snap.MaxUptime {
			snap.MaxUptime = node.Uptime
		}
	}

	logrus.Infof("Aggregated %d unique pods from %d reports (%d/%d seeds reachable)",
		len(snap.Nodes), snap.TotalReports, snap.ReachablePeers, len(a.cfg.SeedPeers))

	return snap
}

// Prefer reports whether candidate should replace incumbent for the
// same pubkey. The merge is deterministic: a strictly higher parsed
// version always wins; on a version tie, strictly greater committed
// storage wins; a full tie keeps the incumbent.
func Prefer(candidate, incumbent models.PodReport) bool {
	switch version.Compare(version.Parse(candidate.Version), version.Parse(incumbent.Version)) {
	case 1:
		return true
	case -1:
		return false
	}
	return candidate.StorageCommitted > incumbent.StorageCommitted
}
