package credits

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/0xlajaz/xandeum-nexus/internal/config"

	"github.com/sirupsen/logrus"
)

// Client looks up reputation credits per pod identity. The lookup is
// best-effort: any failure yields an empty map so a flaky credits
// service can never abort a polling cycle.
type Client struct {
	url    string
	client *http.Client
}

// NewClient creates a credits client. An empty URL disables lookups.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		url:    cfg.CreditsURL,
		client: &http.Client{Timeout: cfg.CreditsTimeout},
	}
}

type creditsResponse struct {
	Credits map[string]int `json:"credits"`
}

// Fetch returns the pubkey -> credits mapping, or an empty map.
func (c *Client) Fetch(ctx context.Context) map[string]int {
	if c.url == "" {
		return map[string]int{}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return map[string]int{}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		logrus.Warnf("Credits lookup failed: %v", err)
		return map[string]int{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logrus.Warnf("Credits lookup returned status %d", resp.StatusCode)
		return map[string]int{}
	}

	var parsed creditsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		logrus.Warnf("Credits lookup sent malformed payload: %v", err)
		return map[string]int{}
	}
	if parsed.Credits == nil {
		return map[string]int{}
	}
	return parsed.Credits
}
