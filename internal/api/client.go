package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "http://localhost:8080/api"
	userAgent      = "shopcli/1.0"
)

// Client is an HTTP client for the catalog backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit throttles outgoing requests to rps with the given burst.
// A non-positive rps disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a catalog API client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the root every endpoint path is resolved against.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) do(ctx context.Context, method, path string, tok *oauth2.Token, body, out any) error {
	reqURL := c.baseURL + path

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != nil && tok.AccessToken != "" {
		tok.SetAuthHeader(req)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Bool("authenticated", tok != nil),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, URL: reqURL}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if err := dec.Decode(new(struct{})); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding response: trailing JSON content")
	}
	return nil
}

// FetchCatalog returns every product in the catalog.
func (c *Client) FetchCatalog(ctx context.Context) ([]Product, error) {
	var out []Product
	if err := c.do(ctx, http.MethodGet, "/products", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}
	return out, nil
}

// FetchFacets returns the raw facet listing.
func (c *Client) FetchFacets(ctx context.Context) (*FacetsResponse, error) {
	var out FacetsResponse
	if err := c.do(ctx, http.MethodGet, "/products/filters", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("fetching facets: %w", err)
	}
	return &out, nil
}

// SearchProducts runs an authenticated search. Empty facet parameters are
// omitted from the query string.
func (c *Client) SearchProducts(ctx context.Context, q SearchQuery, tok *oauth2.Token) ([]Product, error) {
	params := url.Values{"searchTerm": {q.Term}}
	for key, value := range map[string]string{
		"brand":        q.Brand,
		"category":     q.Category,
		"manufacturer": q.Manufacturer,
		"ingredients":  q.Ingredients,
	} {
		if value != "" {
			params.Set(key, value)
		}
	}

	var out []Product
	if err := c.do(ctx, http.MethodGet, "/products/search?"+params.Encode(), tok, nil, &out); err != nil {
		return nil, fmt.Errorf("searching products: %w", err)
	}
	return out, nil
}

// SearchProductsGuest runs an unauthenticated search by free text only.
func (c *Client) SearchProductsGuest(ctx context.Context, term string) ([]Product, error) {
	params := url.Values{"searchTerm": {term}}

	var out []Product
	if err := c.do(ctx, http.MethodGet, "/products/public/search?"+params.Encode(), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("searching products as guest: %w", err)
	}
	return out, nil
}

// FetchProduct fetches a single product by id.
func (c *Client) FetchProduct(ctx context.Context, id string, tok *oauth2.Token) (*Product, error) {
	var out Product
	if err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(id), tok, nil, &out); err != nil {
		return nil, fmt.Errorf("fetching product %s: %w", id, err)
	}
	return &out, nil
}

// FetchFavorites returns the caller's favorites collection.
func (c *Client) FetchFavorites(ctx context.Context, tok *oauth2.Token) ([]Favorite, error) {
	var out []Favorite
	if err := c.do(ctx, http.MethodGet, "/favorites", tok, nil, &out); err != nil {
		return nil, fmt.Errorf("fetching favorites: %w", err)
	}
	return out, nil
}

// FetchReviews returns the rating records for a product.
func (c *Client) FetchReviews(ctx context.Context, productID string) ([]Review, error) {
	var out []Review
	if err := c.do(ctx, http.MethodGet, "/ratings/"+url.PathEscape(productID), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("fetching reviews: %w", err)
	}
	return out, nil
}

// FetchRatingSummary returns the rating aggregate for a product.
func (c *Client) FetchRatingSummary(ctx context.Context, productID string) (*RatingSummary, error) {
	var out RatingSummary
	if err := c.do(ctx, http.MethodGet, "/ratings/"+url.PathEscape(productID)+"/summary", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("fetching rating summary: %w", err)
	}
	return &out, nil
}

// SubmitRating posts a rating for a product.
func (c *Client) SubmitRating(ctx context.Context, productID string, sub RatingSubmission, tok *oauth2.Token) error {
	if err := c.do(ctx, http.MethodPost, "/ratings/"+url.PathEscape(productID), tok, sub, nil); err != nil {
		return fmt.Errorf("submitting rating: %w", err)
	}
	return nil
}
