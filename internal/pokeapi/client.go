package pokeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"

	"github.com/mrlokans/catalogmirror/internal/logger"
	"github.com/mrlokans/catalogmirror/internal/metrics"
)

const (
	defaultBaseURL     = "https://pokeapi.co/api/v2"
	defaultTimeout     = 30 * time.Second
	defaultConcurrency = 8
	defaultBatchDelay  = 100 * time.Millisecond
	maxRetries         = 3
	initialRetryDelay  = 1 * time.Second
	maxRetryDelay      = 30 * time.Second
	retryBackoffFactor = 2
)

type Config struct {
	BaseURL        string
	Concurrency    int
	BatchDelay     time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	MaxRetryDelay  time.Duration
	Timeout        time.Duration
	UserAgent      string
}

func DefaultConfig() Config {
	return Config{
		BaseURL:        defaultBaseURL,
		Concurrency:    defaultConcurrency,
		BatchDelay:     defaultBatchDelay,
		MaxRetries:     maxRetries,
		RetryBaseDelay: initialRetryDelay,
		MaxRetryDelay:  maxRetryDelay,
		Timeout:        defaultTimeout,
		UserAgent:      "catalogmirror/1.0",
	}
}

// Client fetches listings and resource details from PokeAPI.
type Client struct {
	http    *resty.Client
	cfg     Config
	metrics *metrics.Collectors
	log     *logger.Logger
}

// Detail is one fetched resource; Err is set when the fetch failed.
type Detail struct {
	URL  string
	ID   int
	Body json.RawMessage
	Err  error
}

// NewClient creates a client. Zero config fields fall back to defaults.
func NewClient(cfg Config, m *metrics.Collectors) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = def.RetryBaseDelay
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = def.MaxRetryDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}

	rc := resty.New()
	rc.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	rc.SetTimeout(cfg.Timeout)
	rc.SetHeader("Accept", "application/json")
	rc.SetHeader("User-Agent", cfg.UserAgent)

	return &Client{
		http:    rc,
		cfg:     cfg,
		metrics: m,
		log:     logger.Default().Component("pokeapi"),
	}
}

// Concurrency is the number of detail requests issued per batch.
func (c *Client) Concurrency() int {
	return c.cfg.Concurrency
}

// ListPage fetches one page of a listing endpoint.
func (c *Client) ListPage(ctx context.Context, kind string, offset, limit int) (*ResourceList, error) {
	body, err := c.get(ctx, "/"+kind+"/", map[string]string{
		"offset": strconv.Itoa(offset),
		"limit":  strconv.Itoa(limit),
	})
	if err != nil {
		return nil, err
	}

	var list ResourceList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("failed to decode %s listing: %w", kind, err)
	}
	return &list, nil
}

// Count returns the upstream total for kind.
func (c *Client) Count(ctx context.Context, kind string) (int, error) {
	list, err := c.ListPage(ctx, kind, 0, 1)
	if err != nil {
		return 0, err
	}
	return list.Count, nil
}

// FetchDetail fetches one resource by its absolute or base-relative URL.
func (c *Client) FetchDetail(ctx context.Context, url string) (json.RawMessage, error) {
	return c.get(ctx, url, nil)
}

// FetchDetails fetches urls with at most Concurrency requests in flight,
// pausing BatchDelay before each further group of Concurrency launches.
// Results keep input order and failures stay per item. Once ctx is cancelled
// no more requests start and the remaining items carry ctx.Err().
func (c *Client) FetchDetails(ctx context.Context, urls []string) []Detail {
	results := make([]Detail, len(urls))
	for i, u := range urls {
		results[i] = Detail{URL: u, ID: IDFromURL(u)}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)

	launched := 0
	for i := range urls {
		if i > 0 && i%c.cfg.Concurrency == 0 && c.cfg.BatchDelay > 0 {
			select {
			case <-gctx.Done():
			case <-time.After(c.cfg.BatchDelay):
			}
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			body, err := c.FetchDetail(gctx, urls[i])
			results[i].Body = body
			results[i].Err = err
			// Item failures are recorded above; only cancellation stops the group.
			return ctx.Err()
		})
		launched++
	}

	err := g.Wait()
	if launched < len(urls) {
		if err == nil {
			err = ctx.Err()
		}
		for i := launched; i < len(urls); i++ {
			results[i].Err = err
		}
	}
	return results
}

func (c *Client) get(ctx context.Context, path string, query map[string]string) (json.RawMessage, error) {
	attempt := 0
	operation := func() (json.RawMessage, error) {
		attempt++
		req := c.http.R().SetContext(ctx)
		if len(query) > 0 {
			req.SetQueryParams(query)
		}

		resp, err := req.Get(path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, fmt.Errorf("request failed: %w", err)
		}

		switch {
		case resp.StatusCode() == http.StatusTooManyRequests:
			if secs, convErr := strconv.Atoi(resp.Header().Get("Retry-After")); convErr == nil && secs > 0 {
				return nil, backoff.RetryAfter(secs)
			}
			return nil, ErrRateLimited
		case !resp.IsSuccess():
			return nil, &HTTPError{StatusCode: resp.StatusCode(), URL: path}
		}
		return resp.Body(), nil
	}

	b := &backoff.ExponentialBackOff{
		InitialInterval:     c.cfg.RetryBaseDelay,
		RandomizationFactor: 0,
		Multiplier:          retryBackoffFactor,
		MaxInterval:         c.cfg.MaxRetryDelay,
	}

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.cfg.MaxRetries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.metrics.UpstreamRetry()
			c.log.WithFields(logger.Fields{
				logger.FieldAttempt: attempt,
				"path":              path,
				"retry_in":          next.String(),
			}).WithError(err).Debug("Retrying upstream request")
		}),
	)
	if err != nil {
		c.metrics.UpstreamRequest("error")
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrUpstreamUnavailable, path, err)
	}

	c.metrics.UpstreamRequest("ok")
	return body, nil
}
