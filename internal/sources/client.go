package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/Kamar-Folarin/brand-sync/internal/config"
	"github.com/Kamar-Folarin/brand-sync/internal/metrics"
)

// ClientOption allows configuring a source client
type ClientOption func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
}

// WithHTTPClient sets the base HTTP client used under the credential transport
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.httpClient = c
	}
}

func applyOptions(opts []ClientOption) clientOptions {
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// guard combines the per-source rate limiter and circuit breaker
type guard struct {
	name    string
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
}

func newGuard(name string, cfg config.SourceConfig, logger *logrus.Logger) *guard {
	rps := cfg.RateLimit.RequestsPerSecond
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	burst := cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 1
	}

	trips := cfg.Breaker.ConsecutiveFailures
	if trips == 0 {
		trips = 5
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= trips
		},
		IsSuccessful: breakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"source": name,
				"from":   from.String(),
				"to":     to.String(),
			}).Warn("Circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	return &guard{name: name, limiter: rate.NewLimiter(limit, burst), breaker: breaker}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return 0
}

// do runs fn through the breaker and records the outcome
func (g *guard) do(fn func() ([]byte, error)) ([]byte, error) {
	body, err := g.breaker.Execute(fn)
	switch {
	case err == nil:
		metrics.SourceRequests.WithLabelValues(g.name, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.SourceRequests.WithLabelValues(g.name, "rejected").Inc()
		return nil, fmt.Errorf("%s: %w", g.name, err)
	default:
		metrics.SourceRequests.WithLabelValues(g.name, "failure").Inc()
	}
	return body, err
}

// restClient is a JSON-over-HTTP client with bearer credentials, rate limiting,
// retries with exponential backoff and a circuit breaker
type restClient struct {
	name    string
	baseURL string
	client  *http.Client
	logger  *logrus.Logger
	guard   *guard

	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	multiplier     float64
}

func newRESTClient(name, baseURL, token string, cfg config.SourceConfig, logger *logrus.Logger, opts ...ClientOption) *restClient {
	o := applyOptions(opts)
	base := o.httpClient
	if base == nil {
		base = &http.Client{}
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	httpClient.Timeout = cfg.RequestTimeout

	multiplier := cfg.RateLimit.RetryMultiplier
	if multiplier < 1 {
		multiplier = 2
	}

	return &restClient{
		name:           name,
		baseURL:        strings.TrimRight(baseURL, "/"),
		client:         httpClient,
		logger:         logger,
		guard:          newGuard(name, cfg, logger),
		maxRetries:     cfg.RateLimit.MaxRetries,
		initialBackoff: cfg.RateLimit.InitialBackoff,
		maxBackoff:     cfg.RateLimit.MaxBackoff,
		multiplier:     multiplier,
	}
}

// get fetches path relative to the base URL and returns the response body
func (c *restClient) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return c.guard.do(func() ([]byte, error) {
		return c.doRequestWithBackoff(ctx, target)
	})
}

func (c *restClient) nextBackoff(backoff time.Duration) time.Duration {
	next := time.Duration(float64(backoff) * c.multiplier)
	if c.maxBackoff > 0 {
		next = time.Duration(math.Min(float64(next), float64(c.maxBackoff)))
	}
	return next
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func retryAfter(resp *http.Response, fallback time.Duration) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}

// doRequestWithBackoff performs a GET with exponential backoff on transport
// errors, 429 and 5xx responses
func (c *restClient) doRequestWithBackoff(ctx context.Context, target string) ([]byte, error) {
	var lastErr error
	backoff := c.initialBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, backoff); err != nil {
				return nil, err
			}
			backoff = c.nextBackoff(backoff)
		}

		if err := c.guard.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
		if err != nil {
			return nil, NewAPIError(c.name, 0, "failed to build request", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = NewAPIError(c.name, 0, "request failed", err)
			c.logger.WithFields(logrus.Fields{"source": c.name, "attempt": attempt + 1}).Warnf("Request failed: %v", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = NewAPIError(c.name, resp.StatusCode, "failed to read response body", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = NewAPIError(c.name, resp.StatusCode, "rate limit exceeded", nil)
			wait := retryAfter(resp, backoff)
			c.logger.WithFields(logrus.Fields{"source": c.name, "wait": wait.String()}).Warn("Rate limit exceeded")
			if wait > backoff {
				backoff = wait
			}
			continue
		case resp.StatusCode >= 500:
			lastErr = NewAPIError(c.name, resp.StatusCode, string(body), nil)
			continue
		default:
			return nil, NewAPIError(c.name, resp.StatusCode, string(body), nil)
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
