package gemini

import (
	"context"
	"fmt"

	"github.com/0xlajaz/xandeum-nexus/internal/models"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Client generates short natural-language network summaries for the bot.
type Client struct {
	model *genai.GenerativeModel
}

func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel("gemini-2.5-flash")
	return &Client{model: model}, nil
}

// NetworkSummary turns the cycle's KPIs into a short markdown briefing.
func (c *Client) NetworkSummary(ctx context.Context, stats models.NetworkStats) (string, error) {
	prompt := fmt.Sprintf(`
Analyze the following snapshot of the Xandeum pod network and provide a concise,
insightful summary in markdown. Focus on overall health and storage capacity,
and give one key recommendation for node operators. Four paragraphs at most.

Network Data:
- Total pods: %d
- Average health score: %.1f/100
- Total committed storage: %.2f GB
- Pods on an accepted version: %d
- Average paging efficiency: %.1f%%
`, stats.TotalNodes, stats.AvgHealth, stats.TotalStorageGB, stats.CompliantNodes, stats.AvgPagingEfficiency*100)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	summary, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("unexpected response format from API")
	}

	return string(summary), nil
}
