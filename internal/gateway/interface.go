// Package gateway provides the market gateway used by the strategy core.
// It owns connectivity, batching, and fault handling; the core issues
// synchronous request/response calls and awaits each result.
package gateway

import (
	"context"
	"errors"

	"github.com/eddiefleurent/schrute_wheel/internal/models"
)

// ErrMarketDataUnavailable indicates a quote or open-interest value could
// not be obtained within the polling/timeout budget. The affected symbol's
// action is aborted for the cycle; other symbols continue.
var ErrMarketDataUnavailable = errors.New("market data unavailable")

// OrderAction is the side of an order.
type OrderAction string

const (
	// ActionBuy opens or closes with a buy
	ActionBuy OrderAction = "BUY"
	// ActionSell opens or closes with a sell
	ActionSell OrderAction = "SELL"
)

// OrderSpec describes a limit order to submit. The adaptive/patient fields
// express the execution-style preference; the gateway maps them onto
// whatever its wire protocol expects.
type OrderSpec struct {
	Action       OrderAction `json:"action"`
	Quantity     int         `json:"quantity"`
	LimitPrice   float64     `json:"limit_price"`
	TIF          string      `json:"tif"` // e.g. DAY
	AlgoStrategy string      `json:"algo_strategy,omitempty"`
	AlgoPriority string      `json:"algo_priority,omitempty"`
	Tag          string      `json:"tag,omitempty"`
}

// ComboLeg is one leg of an atomic combo order. Legs reference resolved
// contracts by conid.
type ComboLeg struct {
	ConID    int64       `json:"conid"`
	Ratio    int         `json:"ratio"`
	Action   OrderAction `json:"action"`
	Exchange string      `json:"exchange"`
}

// Trade is the handle returned for a submitted order.
type Trade struct {
	OrderID     string  `json:"order_id"`
	Status      string  `json:"status"`
	Symbol      string  `json:"symbol"`
	LimitPrice  float64 `json:"limit_price"`
	Quantity    int     `json:"quantity"`
	SubmittedAt string  `json:"submitted_at"`
}

// OpenInterestFeed is a live market-data subscription for one contract.
// Snapshot returns the current ticker; the open-interest fields stay NaN
// until the feed populates them. Close must be called as soon as the check
// completes, regardless of outcome.
type OpenInterestFeed interface {
	Snapshot(ctx context.Context) (models.Ticker, error)
	Close() error
}

// Gateway defines the operations the strategy core consumes. Batch quote
// results carry the contract they answer for, so callers correlate by
// contract identity rather than by position in the slice.
type Gateway interface {
	// Portfolio and account state
	PortfolioPositions(ctx context.Context) (models.PortfolioSnapshot, error)
	AccountSummary(ctx context.Context) (*models.AccountSummary, error)

	// Instrument resolution
	ResolveInstrument(ctx context.Context, symbol string) (models.Contract, error)
	QualifyContracts(ctx context.Context, contracts []models.Contract) ([]models.Contract, error)

	// Market data
	Quotes(ctx context.Context, contracts []models.Contract) ([]models.Ticker, error)
	OptionChainParams(ctx context.Context, underlying models.Contract) ([]models.Chain, error)
	LiveOpenInterest(ctx context.Context, contract models.Contract) (OpenInterestFeed, error)

	// Order submission
	SubmitOrder(ctx context.Context, contract models.Contract, spec OrderSpec) (*Trade, error)
	SubmitComboOrder(ctx context.Context, symbol string, legs []ComboLeg, spec OrderSpec) (*Trade, error)
}
