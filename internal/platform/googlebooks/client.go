// Package googlebooks implements catalog.Provider on the Google Books
// volumes API.
//
// Requests are rate limited client side and transient failures (transport
// errors, 429 and 5xx responses) are retried with exponential backoff.
package googlebooks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/imhighyat/book-swap-api/internal/catalog"
	"github.com/imhighyat/book-swap-api/internal/config"
	"github.com/imhighyat/book-swap-api/internal/domain"
	"github.com/imhighyat/book-swap-api/internal/platform/logger"
	jsoniter "github.com/json-iterator/go"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBodyBytes caps how much of a response is read.
const maxBodyBytes = 4 << 20

// Client queries the Google Books volumes endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	maxRetries uint64
	retryBase  time.Duration
	logger     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRetryBase sets the first backoff delay.
func WithRetryBase(d time.Duration) Option {
	return func(c *Client) {
		c.retryBase = d
	}
}

// Ensure Client implements catalog.Provider
var _ catalog.Provider = (*Client)(nil)

// NewClient creates a Client from cfg.
func NewClient(cfg config.CatalogConfig, log *slog.Logger, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL cannot be empty", catalog.ErrInvalidConfig)
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("%w: invalid base URL: %v", catalog.ErrInvalidConfig, err)
	}
	if cfg.RequestsPerSecond <= 0 {
		return nil, fmt.Errorf("%w: requests per second must be positive", catalog.ErrInvalidConfig)
	}
	if log == nil {
		log = slog.Default()
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		maxRetries: uint64(max(cfg.MaxRetries, 0)),
		retryBase:  250 * time.Millisecond,
		logger:     log.With(slog.String("component", "googlebooks")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// queryPrefix maps a search category to the volumes API keyword.
func queryPrefix(c domain.SearchCriteria) (string, error) {
	switch c.(type) {
	case domain.ISBNCriteria:
		return "isbn:", nil
	case domain.AuthorCriteria:
		return "inauthor:", nil
	case domain.TitleCriteria:
		return "intitle:", nil
	}
	return "", fmt.Errorf("%w: unsupported criteria %T", domain.ErrInvalidSearchCriteria, c)
}

func (c *Client) volumesURL(q catalog.Query) (string, error) {
	prefix, err := queryPrefix(q.Criteria)
	if err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("q", prefix+q.Criteria.Value())
	params.Set("startIndex", strconv.Itoa(q.StartIndex))
	if q.MaxResults > 0 {
		params.Set("maxResults", strconv.Itoa(q.MaxResults))
	}
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	return c.baseURL + "/volumes?" + params.Encode(), nil
}

// Search implements catalog.Provider.Search
func (c *Client) Search(ctx context.Context, q catalog.Query) (*catalog.Result, error) {
	log := logger.FromContextOrDefault(ctx, c.logger).With(
		slog.String("category", string(q.Criteria.Category())),
		slog.Int("start_index", q.StartIndex))

	target, err := c.volumesURL(q)
	if err != nil {
		return nil, err
	}

	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.retryBase))
	attempt := 0

	var body []byte
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		b, err := c.fetch(ctx, target)
		if err != nil {
			log.Warn("provider call failed",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrProviderRejected), errors.Is(err, catalog.ErrInvalidResponse):
			return nil, err
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, fmt.Errorf("%w: %v", catalog.ErrProviderUnavailable, err)
		}
		log.Error("provider unavailable after retries",
			slog.Int("attempts", attempt),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", catalog.ErrProviderUnavailable, err)
	}

	result, err := decodeVolumes(body)
	if err != nil {
		log.Error("failed to decode provider response", slog.String("error", err.Error()))
		return nil, err
	}

	log.Debug("provider search complete",
		slog.Int("returned", len(result.Books)),
		slog.Int("total_items", result.TotalItems))
	return result, nil
}

// fetch performs one GET. Transient failures are marked retryable.
func (c *Client) fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", catalog.ErrProviderRejected, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, retry.RetryableError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, retry.RetryableError(fmt.Errorf("read body: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, retry.RetryableError(fmt.Errorf("provider returned status %d", resp.StatusCode))
	default:
		return nil, fmt.Errorf("%w: status %d: %s",
			catalog.ErrProviderRejected, resp.StatusCode, providerMessage(body))
	}
}

// providerMessage extracts error.message from an API error body.
func providerMessage(body []byte) string {
	var apiErr struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Error.Message == "" {
		return http.StatusText(http.StatusBadRequest)
	}
	return apiErr.Error.Message
}
