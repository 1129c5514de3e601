package prpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/0xlajaz/xandeum-nexus/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient points a client at an httptest server by splitting its
// listen address into the peer/port form the client expects.
func newTestClient(t *testing.T, srv *httptest.Server) (*Client, string) {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	cfg := &config.Config{
		RPCPort:     u.Port(),
		RPCEndpoint: "/rpc",
		RPCTimeout:  2 * time.Second,
	}
	return NewClient(cfg), u.Hostname()
}

func TestFetchPodStatsWrappedResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rpc", r.URL.Path)

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "get-pods-with-stats", req["method"])
		assert.Equal(t, "2.0", req["jsonrpc"])

		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"pods":[
			{"pubkey":"pod1","version":"0.8.0","uptime":1000,"paging_hit_rate":0.9},
			{"pubkey":"pod2","version":"0.7.0","uptime":-5,"paging_hit_rate":1.7}
		]}}`))
	}))
	defer srv.Close()

	client, peer := newTestClient(t, srv)
	pods := client.FetchPodStats(context.Background(), peer)

	require.Len(t, pods, 2)
	assert.Equal(t, "pod1", pods[0].Pubkey)
	assert.Equal(t, peer, pods[0].SourcePeer)
	assert.GreaterOrEqual(t, pods[0].ReportingLatency, float64(0))

	// Out-of-range fields are normalized, not rejected.
	assert.Equal(t, float64(0), pods[1].Uptime)
	assert.Equal(t, float64(1), pods[1].PagingHitRate)
}

func TestFetchPodStatsBareArrayResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":[{"pubkey":"pod1","version":"0.8.0"}]}`))
	}))
	defer srv.Close()

	client, peer := newTestClient(t, srv)
	pods := client.FetchPodStats(context.Background(), peer)

	require.Len(t, pods, 1)
	assert.Equal(t, "pod1", pods[0].Pubkey)
}

func TestFetchPodStatsEmptyWrapperMeansNoPods(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))
	}))
	defer srv.Close()

	client, peer := newTestClient(t, srv)
	pods := client.FetchPodStats(context.Background(), peer)

	// The peer answered, it just knows no pods: reachable, empty list.
	require.NotNil(t, pods)
	assert.Empty(t, pods)
}

func TestFetchPodStatsFailuresReturnNil(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"http error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"malformed json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"result": not json`))
		}},
		{"unrecognized shape", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"result": 42}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			client, peer := newTestClient(t, srv)
			assert.Nil(t, client.FetchPodStats(context.Background(), peer))
		})
	}
}

func TestFetchPodStatsUnreachablePeer(t *testing.T) {
	cfg := &config.Config{
		RPCPort:     "1", // nothing listens here
		RPCEndpoint: "/rpc",
		RPCTimeout:  200 * time.Millisecond,
	}
	client := NewClient(cfg)
	assert.Nil(t, client.FetchPodStats(context.Background(), "127.0.0.1"))
}
