package lemonsqueezy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"todoapp/internal/domain"
	"todoapp/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("lemonsqueezy: api key is required")

const mediaType = "application/vnd.api+json"

// Options configures the Lemon Squeezy client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client reads the store catalog and manages subscriptions.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// APIError carries the first JSON:API error object of a failed call. It
// unwraps to domain.ErrNotFound for 404 answers.
type APIError struct {
	Status int
	Title  string
	Detail string
}

func (e *APIError) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Title
	}
	return fmt.Sprintf("lemonsqueezy: status %d: %s", e.Status, msg)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return domain.ErrNotFound
	}
	return nil
}

type resource[T any] struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes T      `json:"attributes"`
}

type listDocument[T any] struct {
	Data []resource[T] `json:"data"`
}

type singleDocument[T any] struct {
	Data resource[T] `json:"data"`
}

type errorDocument struct {
	Errors []struct {
		Status string `json:"status"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// Store is a merchant store.
type Store struct {
	ID       string
	Name     string
	Currency string
}

type storeAttributes struct {
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

// Product is a catalog product; Price is in minor units.
type Product struct {
	ID          string
	StoreID     string
	Name        string
	Description string
	Price       int64
	BuyNowURL   string
	Status      string
}

type productAttributes struct {
	StoreID     json.Number `json:"store_id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Price       int64       `json:"price"`
	BuyNowURL   string      `json:"buy_now_url"`
	Status      string      `json:"status"`
}

// Variant is a priced option of a product.
type Variant struct {
	ID             string
	ProductID      string
	Name           string
	Price          int64
	Interval       string
	IsSubscription bool
}

type variantAttributes struct {
	ProductID      json.Number `json:"product_id"`
	Name           string      `json:"name"`
	Price          int64       `json:"price"`
	Interval       string      `json:"interval"`
	IsSubscription bool        `json:"is_subscription"`
}

// SubscriptionAttributes is the provider view of a subscription.
type SubscriptionAttributes struct {
	StoreID     json.Number `json:"store_id"`
	OrderID     json.Number `json:"order_id"`
	ProductID   json.Number `json:"product_id"`
	VariantID   json.Number `json:"variant_id"`
	ProductName string      `json:"product_name"`
	VariantName string      `json:"variant_name"`
	UserEmail   string      `json:"user_email"`
	Status      string      `json:"status"`
	RenewsAt    *time.Time  `json:"renews_at"`
	EndsAt      *time.Time  `json:"ends_at"`
	TrialEndsAt *time.Time  `json:"trial_ends_at"`
	URLs        struct {
		CustomerPortal      string `json:"customer_portal"`
		UpdatePaymentMethod string `json:"update_payment_method"`
	} `json:"urls"`
}

// ToDomain maps provider attributes onto the mirrored record for userID.
func (a SubscriptionAttributes) ToDomain(userID, subscriptionID string) *domain.Subscription {
	return &domain.Subscription{
		UserID:         userID,
		SubscriptionID: subscriptionID,
		OrderID:        a.OrderID.String(),
		ProductID:      a.ProductID.String(),
		ProductName:    a.ProductName,
		VariantID:      a.VariantID.String(),
		VariantName:    a.VariantName,
		Status:         domain.NormalizeStatus(a.Status),
		RenewsAt:       a.RenewsAt,
		EndsAt:         a.EndsAt,
		TrialEndsAt:    a.TrialEndsAt,
		URL:            a.URLs.CustomerPortal,
	}
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.lemonsqueezy.com/v1"
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Client{apiKey: apiKey, baseURL: baseURL, httpClient: httpClient, logger: logger}, nil
}

// ListStores returns the stores visible to the API key in provider order.
func (c *Client) ListStores(ctx context.Context) ([]Store, error) {
	var doc listDocument[storeAttributes]
	if err := c.do(ctx, http.MethodGet, "/stores", &doc); err != nil {
		return nil, err
	}
	stores := make([]Store, 0, len(doc.Data))
	for _, r := range doc.Data {
		stores = append(stores, Store{ID: r.ID, Name: r.Attributes.Name, Currency: r.Attributes.Currency})
	}
	return stores, nil
}

// ListProducts returns products, filtered to storeID when it is set.
func (c *Client) ListProducts(ctx context.Context, storeID string) ([]Product, error) {
	path := "/products"
	if storeID != "" {
		path += "?" + url.Values{"filter[store_id]": {storeID}}.Encode()
	}
	var doc listDocument[productAttributes]
	if err := c.do(ctx, http.MethodGet, path, &doc); err != nil {
		return nil, err
	}
	products := make([]Product, 0, len(doc.Data))
	for _, r := range doc.Data {
		a := r.Attributes
		products = append(products, Product{
			ID:          r.ID,
			StoreID:     a.StoreID.String(),
			Name:        a.Name,
			Description: a.Description,
			Price:       a.Price,
			BuyNowURL:   a.BuyNowURL,
			Status:      a.Status,
		})
	}
	return products, nil
}

// ListVariants returns the variants of productID.
func (c *Client) ListVariants(ctx context.Context, productID string) ([]Variant, error) {
	var doc listDocument[variantAttributes]
	if err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(productID)+"/variants", &doc); err != nil {
		return nil, err
	}
	variants := make([]Variant, 0, len(doc.Data))
	for _, r := range doc.Data {
		a := r.Attributes
		variants = append(variants, Variant{
			ID:             r.ID,
			ProductID:      a.ProductID.String(),
			Name:           a.Name,
			Price:          a.Price,
			Interval:       a.Interval,
			IsSubscription: a.IsSubscription,
		})
	}
	return variants, nil
}

// GetSubscription fetches a subscription by provider id.
func (c *Client) GetSubscription(ctx context.Context, id string) (*SubscriptionAttributes, error) {
	var doc singleDocument[SubscriptionAttributes]
	if err := c.do(ctx, http.MethodGet, "/subscriptions/"+url.PathEscape(id), &doc); err != nil {
		return nil, err
	}
	return &doc.Data.Attributes, nil
}

// CancelSubscription cancels id at the provider. The subscription stays
// active until the end of the paid period.
func (c *Client) CancelSubscription(ctx context.Context, id string) (*SubscriptionAttributes, error) {
	var doc singleDocument[SubscriptionAttributes]
	if err := c.do(ctx, http.MethodDelete, "/subscriptions/"+url.PathEscape(id), &doc); err != nil {
		return nil, err
	}
	return &doc.Data.Attributes, nil
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("lemonsqueezy: build request: %w", err)
	}
	req.Header.Set("Accept", mediaType)
	req.Header.Set("Content-Type", mediaType)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("method", method).Str("path", path).Msg("lemonsqueezy request failed")
		return fmt.Errorf("%w: lemonsqueezy: %w", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: lemonsqueezy: read response: %w", domain.ErrNetwork, err)
	}
	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("lemonsqueezy call")

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var detail errorDocument
		if err := json.Unmarshal(raw, &detail); err == nil && len(detail.Errors) > 0 {
			apiErr.Title = detail.Errors[0].Title
			apiErr.Detail = detail.Errors[0].Detail
		}
		if apiErr.Title == "" && apiErr.Detail == "" {
			apiErr.Detail = strings.TrimSpace(string(raw))
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: %w", domain.ErrNetwork, apiErr)
		}
		return apiErr
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("lemonsqueezy: decode response: %w", err)
	}
	return nil
}
