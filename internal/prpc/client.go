package prpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/0xlajaz/xandeum-nexus/internal/config"
	"github.com/0xlajaz/xandeum-nexus/internal/models"

	"github.com/sirupsen/logrus"
)

// Client issues pod-stats RPC calls against individual seed peers.
// Peers are unreliable by design: any transport error, non-200 status
// or malformed payload yields a nil report list, never an error. A
// future cycle re-polls naturally, so there are no retries.
type Client struct {
	cfg    *config.Config
	client *http.Client
}

// NewClient creates a peer RPC client with the configured per-call timeout.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.RPCTimeout},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	ID      int    `json:"id"`
}

// The result field is either {"pods": [...]} or a bare array depending
// on the peer's software revision.
type rpcResponse struct {
	Result json.RawMessage `json:"result"`
}

type rpcResult struct {
	Pods []models.PodReport `json:"pods"`
}

// FetchPodStats polls one seed peer for its view of the pod network.
// Every report in the result is stamped with the measured round-trip
// latency and the responding peer's address.
func (c *Client) FetchPodStats(ctx context.Context, peer string) []models.PodReport {
	url := fmt.Sprintf("http://%s:%s%s", peer, c.cfg.RPCPort, c.cfg.RPCEndpoint)

	payload, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: "get-pods-with-stats", ID: 1})
	if err != nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		// Unreachable peers are routine in this network, keep quiet.
		logrus.Debugf("Seed %s unreachable: %v", peer, err)
		return nil
	}
	defer resp.Body.Close()

	latency := float64(time.Since(start).Milliseconds())

	if resp.StatusCode != http.StatusOK {
		logrus.Debugf("Seed %s returned status %d", peer, resp.StatusCode)
		return nil
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		logrus.Warnf("Seed %s sent malformed payload: %v", peer, err)
		return nil
	}

	pods := decodePods(rpcResp.Result)
	if pods == nil {
		logrus.Warnf("Seed %s sent unrecognized result shape", peer)
		return nil
	}

	for i := range pods {
		pods[i].Normalize()
		pods[i].ReportingLatency = latency
		pods[i].SourcePeer = peer
	}
	return pods
}

func decodePods(raw json.RawMessage) []models.PodReport {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var wrapped rpcResult
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		// A wrapper object without a pods field is a pod-less peer,
		// not a broken one.
		if wrapped.Pods == nil {
			return []models.PodReport{}
		}
		return wrapped.Pods
	}

	var bare []models.PodReport
	if err := json.Unmarshal(raw, &bare); err == nil {
		return bare
	}
	return nil
}
