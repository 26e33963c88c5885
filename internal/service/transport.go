package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/vzahanych/weather-alert-bot/internal/config"
	"github.com/vzahanych/weather-alert-bot/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

const maxErrorBody = 512

// HTTPClient performs provider GET requests through a rate limiter and a
// circuit breaker. 5xx and 429 responses count as breaker failures.
type HTTPClient struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	limiter *rate.Limiter
	tele    *telemetry.Telemetry
}

func NewHTTPClient(name string, timeout time.Duration, rl config.RateLimitConfig, tele *telemetry.Telemetry) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	limit := rate.Inf
	burst := rl.Burst
	if rl.RequestsPerSecond > 0 {
		limit = rate.Limit(rl.RequestsPerSecond)
		if burst <= 0 {
			burst = 1
		}
	}

	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		breaker: newBreaker(name),
		limiter: rate.NewLimiter(limit, burst),
		tele:    tele,
	}
}

func newBreaker(name string) *gobreaker.CircuitBreaker[*http.Response] {
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
}

// GetJSON fetches rawURL and decodes a 200 response body into out.
func (c *HTTPClient) GetJSON(ctx context.Context, rawURL string, out any) error {
	ctx, span := c.tele.GetTracer().Start(ctx, "http.GetJSON")
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		r, doErr := c.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
			return r, fmt.Errorf("upstream returned %d", r.StatusCode)
		}
		return r, nil
	})
	if resp != nil {
		defer resp.Body.Close()
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	}
	if err != nil {
		c.tele.RecordError(ctx, err, nil)
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: API request failed with status %d: %s", ErrUpstream, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}
	return nil
}
