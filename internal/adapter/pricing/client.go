package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thudocloud/food-ordering-platform/internal/domain/orders"
	"github.com/thudocloud/food-ordering-platform/internal/ports"
	"github.com/thudocloud/food-ordering-platform/internal/shared/logger"
)

// ItemNotFoundError reports an item id the pricing collaborator doesn't know.
type ItemNotFoundError struct {
	Message string
}

func (e *ItemNotFoundError) Error() string { return e.Message }

// HTTPClient implements ports.PricingClient via the pricing service HTTP API.
// Any timeout or non-success response is a hard failure of order creation.
type HTTPClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *logger.Logger
}

var _ ports.PricingClient = (*HTTPClient)(nil)

// NewHTTPClient creates a pricing client with the given request timeout. The
// timeout bounds every call so a stalled collaborator cannot hang requests.
func NewHTTPClient(baseURL string, timeout time.Duration, log *logger.Logger) (*HTTPClient, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse pricing url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, errors.New("pricing url must be absolute")
	}
	return &HTTPClient{
		baseURL: parsed,
		logger:  log,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// --- wire types ---

type calculateRequest struct {
	Items []calculateItem `json:"items"`
}

type calculateItem struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

type calculateResponse struct {
	Items []struct {
		ItemID    string  `json:"item_id"`
		Name      string  `json:"name"`
		Quantity  int     `json:"quantity"`
		UnitPrice float64 `json:"unit_price"`
		Subtotal  float64 `json:"subtotal"`
	} `json:"items"`
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Calculate prices an item list. 404 means an unknown item id (a validation
// failure for the caller); anything else non-200 or a transport error is a
// DependencyError.
func (c *HTTPClient) Calculate(ctx context.Context, items []ports.ItemRequest) (*ports.PriceQuote, error) {
	payload := calculateRequest{Items: make([]calculateItem, len(items))}
	for i, it := range items {
		payload.Items[i] = calculateItem{ItemID: it.ItemID, Quantity: it.Quantity}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal pricing request: %w", err)
	}

	endpoint := c.baseURL.JoinPath("/calculate")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &orders.DependencyError{Service: "pricing", Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var data calculateResponse
		if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
			return nil, &orders.DependencyError{Service: "pricing", Err: err}
		}
		return toQuote(data), nil
	case http.StatusNotFound:
		var errBody errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if errBody.Error == "" {
			errBody.Error = "item not found"
		}
		return nil, &ItemNotFoundError{Message: errBody.Error}
	default:
		raw, _ := io.ReadAll(resp.Body)
		c.logger.Error(ctx, "pricing_request_failed",
			fmt.Sprintf("pricing returned %s: %s", resp.Status, string(raw)), errors.New(resp.Status))
		return nil, &orders.DependencyError{Service: "pricing", Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
}

// Menu fetches the raw menu payload for proxying to API clients.
func (c *HTTPClient) Menu(ctx context.Context) (json.RawMessage, error) {
	endpoint := c.baseURL.JoinPath("/menu")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &orders.DependencyError{Service: "pricing", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &orders.DependencyError{Service: "pricing", Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &orders.DependencyError{Service: "pricing", Err: err}
	}
	return json.RawMessage(raw), nil
}

// toQuote converts wire floats into exact cent-rounded decimals.
func toQuote(data calculateResponse) *ports.PriceQuote {
	quote := &ports.PriceQuote{
		Items:    make([]ports.PriceLine, len(data.Items)),
		Subtotal: decimal.NewFromFloat(data.Subtotal).Round(2),
		Tax:      decimal.NewFromFloat(data.Tax).Round(2),
		Total:    decimal.NewFromFloat(data.Total).Round(2),
	}
	for i, it := range data.Items {
		quote.Items[i] = ports.PriceLine{
			ItemID:    it.ItemID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: decimal.NewFromFloat(it.UnitPrice).Round(2),
			Subtotal:  decimal.NewFromFloat(it.Subtotal).Round(2),
		}
	}
	return quote
}
