package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/markato-labs/markato/internal/platform/httpx"
)

// Pricer resolves the current unit price for a product.
type Pricer interface {
	Price(ctx context.Context, productID string) (float64, error)
}

// CatalogPricer fetches prices from the catalog service over HTTP.
type CatalogPricer struct {
	baseURL string
	client  *http.Client
}

func NewCatalogPricer(baseURL string, timeout time.Duration) *CatalogPricer {
	return &CatalogPricer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *CatalogPricer) Price(ctx context.Context, productID string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/products/"+productID, nil)
	if err != nil {
		return 0, fmt.Errorf("orders: build price request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("orders: catalog unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, fmt.Errorf("%w: unknown product %s", httpx.ErrValidation, productID)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("orders: catalog returned %d", resp.StatusCode)
	}

	var product struct {
		Price float64 `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
		return 0, fmt.Errorf("orders: decode product: %w", err)
	}
	return product.Price, nil
}
