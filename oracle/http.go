// Package oracle implements pricing.Oracle against a JSON HTTP spot
// price feed. The feed itself is out of scope for this engine (the
// specification treats the metals price provider as pluggable); this
// is the one concrete adapter a deployment wires in by default.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spikeycoins/tradeengine/money"
	"github.com/spikeycoins/tradeengine/pricing"
)

// HTTPClient is the JSON spot-price adapter. It expects the endpoint
// to return {"gold": "2850.00", "silver": "32.10"}.
type HTTPClient struct {
	endpoint string
	client   *http.Client
	now      func() time.Time
}

// NewHTTPClient builds an HTTPClient against endpoint, using timeout
// as the per-request deadline.
func NewHTTPClient(endpoint string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		now:      time.Now,
	}
}

type spotPriceResponse struct {
	Gold   string `json:"gold"`
	Silver string `json:"silver"`
}

// FetchMetalPrices implements pricing.Oracle.
func (c *HTTPClient) FetchMetalPrices(ctx context.Context) (pricing.IndexPrices, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return pricing.IndexPrices{}, fmt.Errorf("oracle: build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return pricing.IndexPrices{}, fmt.Errorf("oracle: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return pricing.IndexPrices{}, fmt.Errorf("oracle: unexpected status %d", resp.StatusCode)
	}

	var body spotPriceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return pricing.IndexPrices{}, fmt.Errorf("oracle: decode response: %w", err)
	}

	gold, err := money.NewFromString(body.Gold)
	if err != nil {
		return pricing.IndexPrices{}, fmt.Errorf("oracle: parse gold price: %w", err)
	}
	silver, err := money.NewFromString(body.Silver)
	if err != nil {
		return pricing.IndexPrices{}, fmt.Errorf("oracle: parse silver price: %w", err)
	}

	return pricing.IndexPrices{Gold: gold, Silver: silver, Timestamp: c.now()}, nil
}
