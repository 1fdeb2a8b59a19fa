package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/swaplane/offersvc/internal/core/domain"
)

// CatalogClient is the raw HTTP client for the item catalog service.
// Resilience (retry, breaker) is layered on top by Client.
type CatalogClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewCatalogClient creates a catalog client with a pooled transport.
func NewCatalogClient(baseURL string, timeout time.Duration) *CatalogClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CatalogClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type validateItemsRequest struct {
	ItemIDs []uuid.UUID `json:"item_ids"`
}

type validateItemsResponse struct {
	Results []domain.ValidationResult `json:"results"`
}

// ValidateItems performs a batched existence/activity/ownership check.
// Connection failures and 5xx responses come back as TransientError.
func (c *CatalogClient) ValidateItems(ctx context.Context, itemIDs []uuid.UUID) ([]domain.ValidationResult, error) {
	body, err := json.Marshal(validateItemsRequest{ItemIDs: itemIDs})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/internal/items/validate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransientError{Op: "catalog validate", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, &domain.TransientError{Op: "catalog validate", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog validate: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransientError{Op: "catalog validate", Err: err}
	}

	var out validateItemsResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("catalog validate: decode response: %w", err)
	}
	return out.Results, nil
}
