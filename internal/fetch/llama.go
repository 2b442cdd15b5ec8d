package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/lp-apy/internal/model"
)

// LlamaClient fetches pool yields from a DeFiLlama-compatible endpoint.
type LlamaClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewLlamaClient creates a client for the given base URL, e.g.
// "https://yields.llama.fi".
func NewLlamaClient(baseURL string, timeout time.Duration) *LlamaClient {
	return &LlamaClient{
		baseURL:    baseURL,
		httpClient: newRetryClient(timeout),
	}
}

// Fetch retrieves the full pool list from the upstream API.
func (c *LlamaClient) Fetch(ctx context.Context) (*model.PoolSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/pools", nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	logrus.Debugf("Fetching pools from %s", c.baseURL)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching pools: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("yields API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Status string                `json:"status"`
		Data   []model.RawPoolRecord `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}

	if len(response.Data) == 0 {
		return nil, fmt.Errorf("no pool data returned from %s", c.baseURL)
	}

	logrus.Debugf("Received %d pool records", len(response.Data))
	return &model.PoolSnapshot{
		FetchedAt: time.Now(),
		Pools:     response.Data,
	}, nil
}
