package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/0xlajaz/xandeum-nexus/internal/config"
	"github.com/0xlajaz/xandeum-nexus/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePeers maps peer address to the canned response it returns. A
// missing entry behaves like an unreachable peer.
type fakePeers map[string][]models.PodReport

func (f fakePeers) FetchPodStats(ctx context.Context, peer string) []models.PodReport {
	return f[peer]
}

func testConfig(seeds ...string) *config.Config {
	return &config.Config{
		SeedPeers:  seeds,
		RPCPort:    "6000",
		RPCTimeout: time.Second,
	}
}

func pod(pubkey, version string, storage float64) models.PodReport {
	return models.PodReport{Pubkey: pubkey, Version: version, StorageCommitted: storage}
}

func TestCollectMergesAcrossPeers(t *testing.T) {
	peers := fakePeers{
		"peerA": {pod("pod1", "0.7.0", 100), pod("pod2", "0.8.0", 50)},
		"peerB": {pod("pod1", "0.8.0", 10)},
		"peerC": nil, // unreachable
	}

	agg := New(testConfig("peerA", "peerB", "peerC"), peers)
	snap := agg.Collect(context.Background())

	require.Len(t, snap.Nodes, 2)
	assert.Equal(t, 3, snap.TotalReports)
	assert.Equal(t, 2, snap.ReachablePeers)

	// Peer B's newer version beats peer A's bigger storage.
	winner, ok := snap.Lookup("pod1")
	require.True(t, ok)
	assert.Equal(t, "0.8.0", winner.Version)
	assert.Equal(t, float64(10), winner.StorageCommitted)
	assert.Equal(t, 2, winner.WitnessCount)

	pod2, _ := snap.Lookup("pod2")
	assert.Equal(t, 1, pod2.WitnessCount)
}

func TestCollectStorageBreaksVersionTie(t *testing.T) {
	peers := fakePeers{
		"peerA": {pod("pod1", "0.8.0", 100)},
		"peerB": {pod("pod1", "0.8.0", 500)},
	}

	snap := New(testConfig("peerA", "peerB"), peers).Collect(context.Background())
	winner, _ := snap.Lookup("pod1")
	assert.Equal(t, float64(500), winner.StorageCommitted)
}

func TestCollectIsOrderIndependent(t *testing.T) {
	a := pod("pod1", "0.8.0", 100)
	b := pod("pod1", "0.7.9", 900)

	forward := fakePeers{"p1": {a}, "p2": {b}}
	reverse := fakePeers{"p1": {b}, "p2": {a}}

	s1 := New(testConfig("p1", "p2"), forward).Collect(context.Background())
	s2 := New(testConfig("p1", "p2"), reverse).Collect(context.Background())

	w1, _ := s1.Lookup("pod1")
	w2, _ := s2.Lookup("pod1")
	assert.Equal(t, w1.Version, w2.Version)
	assert.Equal(t, w1.StorageCommitted, w2.StorageCommitted)
}

func TestCollectSkipsEmptyPubkeys(t *testing.T) {
	peers := fakePeers{
		"peerA": {pod("", "0.8.0", 100), pod("pod1", "0.8.0", 1)},
	}

	snap := New(testConfig("peerA"), peers).Collect(context.Background())
	assert.Len(t, snap.Nodes, 1)
	assert.Equal(t, 1, snap.TotalReports)
}

func TestCollectTracksMaxUptime(t *testing.T) {
	p1 := pod("pod1", "0.8.0", 1)
	p1.Uptime = 500
	p2 := pod("pod2", "0.8.0", 1)
	p2.Uptime = 9000

	snap := New(testConfig("peerA"), fakePeers{"peerA": {p1, p2}}).Collect(context.Background())
	assert.Equal(t, float64(9000), snap.MaxUptime)
}

func TestCollectAllPeersDown(t *testing.T) {
	snap := New(testConfig("peerA", "peerB"), fakePeers{}).Collect(context.Background())
	assert.Empty(t, snap.Nodes)
	assert.Equal(t, 0, snap.ReachablePeers)
	assert.True(t, snap.Suspect(10))
}

func TestPreferKeepsIncumbentOnFullTie(t *testing.T) {
	a := pod("pod1", "0.8.0", 100)
	a.Address = "1.1.1.1"
	b := pod("pod1", "0.8.0", 100)
	b.Address = "2.2.2.2"

	assert.False(t, Prefer(b, a))
	assert.False(t, Prefer(a, b))
}

func TestPreferGarbledVersionLoses(t *testing.T) {
	garbled := pod("pod1", "not-a-version", 1e9)
	real := pod("pod1", "0.1.0", 1)

	assert.True(t, Prefer(real, garbled))
	assert.False(t, Prefer(garbled, real))
}
