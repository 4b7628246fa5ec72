package gateway

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/eddiefleurent/schrute_wheel/internal/models"
	"github.com/sony/gobreaker"
)

// CircuitBreakerGateway wraps a Gateway with circuit breaker functionality
type CircuitBreakerGateway struct {
	gateway Gateway
	breaker *gobreaker.CircuitBreaker
}

// execCircuitBreaker is a generic helper for circuit breaker wrapper methods
func execCircuitBreaker[T any](
	breaker *gobreaker.CircuitBreaker,
	gw Gateway,
	fn func(Gateway) (T, error),
) (T, error) {
	var zero T
	res, err := breaker.Execute(func() (interface{}, error) { return fn(gw) })
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, errors.New("circuit breaker: type assertion failed")
	}
	return v, nil
}

// CircuitBreakerSettings configures circuit breaker behavior
type CircuitBreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// NewCircuitBreakerGateway creates a new CircuitBreakerGateway with sensible defaults
func NewCircuitBreakerGateway(gw Gateway) *CircuitBreakerGateway {
	return NewCircuitBreakerGatewayWithSettings(gw, CircuitBreakerSettings{
		MaxRequests:  3,                // Allow 3 requests when half-open
		Interval:     60 * time.Second, // Reset counts every minute
		Timeout:      30 * time.Second, // Open circuit for 30 seconds
		MinRequests:  5,                // Minimum requests before tripping
		FailureRatio: 0.6,              // Trip if 60% failure rate
	})
}

// NewCircuitBreakerGatewayWithSettings creates a CircuitBreakerGateway with custom settings
func NewCircuitBreakerGatewayWithSettings(gw Gateway, settings CircuitBreakerSettings) *CircuitBreakerGateway {
	gbSettings := gobreaker.Settings{
		Name:        "GatewayCircuitBreaker",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s state changed from %s to %s", name, from, to)
		},
	}

	return &CircuitBreakerGateway{
		gateway: gw,
		breaker: gobreaker.NewCircuitBreaker(gbSettings),
	}
}

// PortfolioPositions wraps the underlying gateway call with circuit breaker
func (c *CircuitBreakerGateway) PortfolioPositions(ctx context.Context) (models.PortfolioSnapshot, error) {
	return execCircuitBreaker(c.breaker, c.gateway, func(g Gateway) (models.PortfolioSnapshot, error) {
		return g.PortfolioPositions(ctx)
	})
}

// AccountSummary wraps the underlying gateway call with circuit breaker
func (c *CircuitBreakerGateway) AccountSummary(ctx context.Context) (*models.AccountSummary, error) {
	return execCircuitBreaker(c.breaker, c.gateway, func(g Gateway) (*models.AccountSummary, error) {
		return g.AccountSummary(ctx)
	})
}

// ResolveInstrument wraps the underlying gateway call with circuit breaker
func (c *CircuitBreakerGateway) ResolveInstrument(ctx context.Context, symbol string) (models.Contract, error) {
	return execCircuitBreaker(c.breaker, c.gateway, func(g Gateway) (models.Contract, error) {
		return g.ResolveInstrument(ctx, symbol)
	})
}

// QualifyContracts wraps the underlying gateway call with circuit breaker
func (c *CircuitBreakerGateway) QualifyContracts(ctx context.Context, contracts []models.Contract) ([]models.Contract, error) {
	return execCircuitBreaker(c.breaker, c.gateway, func(g Gateway) ([]models.Contract, error) {
		return g.QualifyContracts(ctx, contracts)
	})
}

// Quotes wraps the underlying gateway call with circuit breaker
func (c *CircuitBreakerGateway) Quotes(ctx context.Context, contracts []models.Contract) ([]models.Ticker, error) {
	return execCircuitBreaker(c.breaker, c.gateway, func(g Gateway) ([]models.Ticker, error) {
		return g.Quotes(ctx, contracts)
	})
}

// OptionChainParams wraps the underlying gateway call with circuit breaker
func (c *CircuitBreakerGateway) OptionChainParams(ctx context.Context, underlying models.Contract) ([]models.Chain, error) {
	return execCircuitBreaker(c.breaker, c.gateway, func(g Gateway) ([]models.Chain, error) {
		return g.OptionChainParams(ctx, underlying)
	})
}

// LiveOpenInterest wraps the underlying gateway call with circuit breaker.
// The returned feed polls the inner gateway directly; only the subscription
// setup counts against the breaker.
func (c *CircuitBreakerGateway) LiveOpenInterest(ctx context.Context, contract models.Contract) (OpenInterestFeed, error) {
	return execCircuitBreaker(c.breaker, c.gateway, func(g Gateway) (OpenInterestFeed, error) {
		return g.LiveOpenInterest(ctx, contract)
	})
}

// SubmitOrder wraps the underlying gateway call with circuit breaker
func (c *CircuitBreakerGateway) SubmitOrder(ctx context.Context, contract models.Contract, spec OrderSpec) (*Trade, error) {
	return execCircuitBreaker(c.breaker, c.gateway, func(g Gateway) (*Trade, error) {
		return g.SubmitOrder(ctx, contract, spec)
	})
}

// SubmitComboOrder wraps the underlying gateway call with circuit breaker
func (c *CircuitBreakerGateway) SubmitComboOrder(ctx context.Context, symbol string, legs []ComboLeg, spec OrderSpec) (*Trade, error) {
	return execCircuitBreaker(c.breaker, c.gateway, func(g Gateway) (*Trade, error) {
		return g.SubmitComboOrder(ctx, symbol, legs, spec)
	})
}

// Ensure CircuitBreakerGateway implements Gateway at compile time.
var _ Gateway = (*CircuitBreakerGateway)(nil)
