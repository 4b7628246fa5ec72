// Package retry provides bounded retry with backoff for market-data
// fetches. Order submission is deliberately not retried; a failed order must
// be confirmed unposted before any resubmission.
package retry

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/eddiefleurent/schrute_wheel/internal/gateway"
	"github.com/eddiefleurent/schrute_wheel/internal/models"
)

// Config controls retry behavior.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Timeout        time.Duration
}

// DefaultConfig is the default retry configuration.
var DefaultConfig = Config{
	MaxRetries:     3,
	InitialBackoff: 1 * time.Second,
	MaxBackoff:     30 * time.Second,
	Timeout:        2 * time.Minute,
}

// Client wraps a Gateway's market-data reads with transient-fault retry.
type Client struct {
	gateway gateway.Gateway
	logger  *log.Logger
	config  Config
}

// NewClient creates a retrying market-data client.
func NewClient(gw gateway.Gateway, logger *log.Logger, config ...Config) *Client {
	cfg := DefaultConfig
	if len(config) > 0 {
		cfg = config[0]
	}

	return &Client{
		gateway: gw,
		logger:  logger,
		config:  cfg,
	}
}

// PortfolioPositions fetches the portfolio snapshot with retry.
func (c *Client) PortfolioPositions(ctx context.Context) (models.PortfolioSnapshot, error) {
	return withRetry(ctx, c, "portfolio positions", func(fetchCtx context.Context) (models.PortfolioSnapshot, error) {
		return c.gateway.PortfolioPositions(fetchCtx)
	})
}

// AccountSummary fetches the account summary with retry.
func (c *Client) AccountSummary(ctx context.Context) (*models.AccountSummary, error) {
	return withRetry(ctx, c, "account summary", func(fetchCtx context.Context) (*models.AccountSummary, error) {
		return c.gateway.AccountSummary(fetchCtx)
	})
}

// Quotes fetches a batch of quotes with retry.
func (c *Client) Quotes(ctx context.Context, contracts []models.Contract) ([]models.Ticker, error) {
	return withRetry(ctx, c, "quotes", func(fetchCtx context.Context) ([]models.Ticker, error) {
		return c.gateway.Quotes(fetchCtx, contracts)
	})
}

// withRetry runs fetch until it succeeds, the error is permanent, or the
// attempt/timeout budget is exhausted.
func withRetry[T any](ctx context.Context, c *Client, what string, fetch func(context.Context) (T, error)) (T, error) {
	var zero T

	fetchCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var lastErr error
	backoff := c.config.InitialBackoff

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err := fetchCtx.Err(); err != nil {
			return zero, fmt.Errorf("%s fetch timed out after %v: %w", what, c.config.Timeout, err)
		}

		result, err := fetch(fetchCtx)
		if err == nil {
			return result, nil
		}

		lastErr = err
		c.logger.Printf("%s fetch attempt %d/%d failed: %v", what, attempt+1, c.config.MaxRetries+1, err)

		if !isTransientError(err) || attempt >= c.config.MaxRetries {
			break
		}

		c.logger.Printf("Transient error detected, retrying in %v", backoff)
		select {
		case <-time.After(backoff):
			backoff = c.nextBackoff(backoff)
		case <-fetchCtx.Done():
			return zero, fmt.Errorf("%s fetch timed out during backoff: %w", what, fetchCtx.Err())
		}
	}

	return zero, fmt.Errorf("%s fetch failed after %d attempts: %w", what, c.config.MaxRetries+1, lastErr)
}

func (c *Client) nextBackoff(currentBackoff time.Duration) time.Duration {
	backoff := time.Duration(float64(currentBackoff) * 1.5)
	if backoff > c.config.MaxBackoff {
		backoff = c.config.MaxBackoff
	}

	maxJitter := int64(backoff / 4)
	if maxJitter > 0 {
		jitterVal, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
		if err != nil {
			log.Printf("Failed to generate jitter: %v", err)
		} else {
			backoff += time.Duration(jitterVal.Int64())
		}
	}

	return backoff
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	transientPatterns := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"server error",
		"rate limit",
		"429", // HTTP 429 Too Many Requests
		"502", // HTTP 502 Bad Gateway
		"503", // HTTP 503 Service Unavailable
		"504", // HTTP 504 Gateway Timeout
		"network",
		"dns",
		"tcp",
	}

	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
