package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/eddiefleurent/schrute_wheel/internal/models"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// quoteFanOutLimit bounds how many snapshot requests run concurrently when
// a batch quote is fanned out.
const quoteFanOutLimit = 8

// APIError represents a gateway API error with status code and response body
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Status, e.Body)
}

// ClientPortalAPI talks to the broker's client-portal style REST bridge.
type ClientPortalAPI struct {
	client    *http.Client
	apiKey    string
	baseURL   string
	accountID string
	timeout   time.Duration
}

// Ensure ClientPortalAPI implements Gateway at compile time.
var _ Gateway = (*ClientPortalAPI)(nil)

// NewClientPortalAPI creates a gateway client with default settings.
func NewClientPortalAPI(baseURL, apiKey, accountID string) *ClientPortalAPI {
	return NewClientPortalAPIWithClient(baseURL, apiKey, accountID, nil)
}

// NewClientPortalAPIWithClient creates a gateway client with a custom HTTP
// client (tests, custom transport).
func NewClientPortalAPIWithClient(baseURL, apiKey, accountID string, client *http.Client) *ClientPortalAPI {
	const defaultTimeout = 10 * time.Second
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &ClientPortalAPI{
		client:    client,
		apiKey:    apiKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		accountID: accountID,
		timeout:   defaultTimeout,
	}
}

// WithTimeout sets the HTTP client timeout duration.
func (g *ClientPortalAPI) WithTimeout(timeout time.Duration) *ClientPortalAPI {
	g.timeout = timeout
	if g.client != nil {
		g.client.Timeout = timeout
	}
	return g
}

// ============ API Response Structures ============

type positionPayload struct {
	ConID        int64   `json:"conid"`
	SecType      string  `json:"sec_type"`
	Symbol       string  `json:"symbol"`
	Expiration   string  `json:"expiration,omitempty"`
	Strike       float64 `json:"strike,omitempty"`
	Right        string  `json:"right,omitempty"`
	Currency     string  `json:"currency"`
	Exchange     string  `json:"exchange"`
	TradingClass string  `json:"trading_class,omitempty"`
	Position     float64 `json:"position"`
	MarketPrice  float64 `json:"market_price"`
	MarketValue  float64 `json:"market_value"`
	AvgCost      float64 `json:"avg_cost"`
}

type positionsResponse struct {
	Positions []positionPayload `json:"positions"`
}

type summaryResponse struct {
	BuyingPower     decimal.Decimal `json:"buying_power"`
	ExcessLiquidity decimal.Decimal `json:"excess_liquidity"`
	NetLiquidation  decimal.Decimal `json:"net_liquidation"`
}

type contractPayload struct {
	ConID        int64   `json:"conid"`
	SecType      string  `json:"sec_type"`
	Symbol       string  `json:"symbol"`
	Expiration   string  `json:"expiration,omitempty"`
	Strike       float64 `json:"strike,omitempty"`
	Right        string  `json:"right,omitempty"`
	Exchange     string  `json:"exchange"`
	TradingClass string  `json:"trading_class,omitempty"`
	Currency     string  `json:"currency"`
}

type chainPayload struct {
	Exchange     string    `json:"exchange"`
	TradingClass string    `json:"trading_class"`
	Strikes      []float64 `json:"strikes"`
	Expirations  []string  `json:"expirations"`
}

type chainsResponse struct {
	Chains []chainPayload `json:"chains"`
}

// snapshotPayload carries one market data snapshot. Open interest fields
// are pointers because the bridge omits them until the exchange reports.
type snapshotPayload struct {
	ConID            int64    `json:"conid"`
	MarketPrice      float64  `json:"market_price"`
	Delta            *float64 `json:"delta,omitempty"`
	PutOpenInterest  *float64 `json:"put_open_interest,omitempty"`
	CallOpenInterest *float64 `json:"call_open_interest,omitempty"`
}

type subscriptionResponse struct {
	SubscriptionID string `json:"subscription_id"`
}

type orderPayload struct {
	AccountID    string           `json:"account_id"`
	Contract     *contractPayload `json:"contract,omitempty"`
	Symbol       string           `json:"symbol,omitempty"`
	Legs         []ComboLeg       `json:"legs,omitempty"`
	Action       string           `json:"action"`
	Quantity     int              `json:"quantity"`
	OrderType    string           `json:"order_type"`
	LimitPrice   float64          `json:"limit_price"`
	TIF          string           `json:"tif"`
	AlgoStrategy string           `json:"algo_strategy,omitempty"`
	AlgoPriority string           `json:"algo_priority,omitempty"`
	Tag          string           `json:"tag,omitempty"`
}

// ============ API Methods ============

// PortfolioPositions retrieves the current portfolio grouped by symbol.
func (g *ClientPortalAPI) PortfolioPositions(ctx context.Context) (models.PortfolioSnapshot, error) {
	endpoint := fmt.Sprintf("%s/portfolio/%s/positions", g.baseURL, g.accountID)

	var response positionsResponse
	if err := g.makeRequestCtx(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	snapshot := make(models.PortfolioSnapshot)
	for _, p := range response.Positions {
		pos := models.Position{
			Contract: models.Contract{
				SecType:      models.SecType(p.SecType),
				Symbol:       p.Symbol,
				ConID:        p.ConID,
				Expiration:   p.Expiration,
				Strike:       p.Strike,
				Right:        models.Right(strings.ToUpper(p.Right)),
				Exchange:     p.Exchange,
				TradingClass: p.TradingClass,
				Currency:     p.Currency,
			},
			Kind:        positionKind(p),
			Quantity:    p.Position,
			MarketPrice: p.MarketPrice,
			MarketValue: p.MarketValue,
			AvgCost:     p.AvgCost,
		}
		snapshot[p.Symbol] = append(snapshot[p.Symbol], pos)
	}
	return snapshot, nil
}

func positionKind(p positionPayload) models.PositionKind {
	if models.SecType(p.SecType) == models.SecTypeOption {
		return models.KindForRight(p.Right)
	}
	return models.KindStock
}

// AccountSummary retrieves the account-wide balance figures.
func (g *ClientPortalAPI) AccountSummary(ctx context.Context) (*models.AccountSummary, error) {
	endpoint := fmt.Sprintf("%s/portfolio/%s/summary", g.baseURL, g.accountID)

	var response summaryResponse
	if err := g.makeRequestCtx(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	return &models.AccountSummary{
		BuyingPower:     response.BuyingPower,
		ExcessLiquidity: response.ExcessLiquidity,
		NetLiquidation:  response.NetLiquidation,
	}, nil
}

// ResolveInstrument resolves a symbol to its tradeable stock contract.
func (g *ClientPortalAPI) ResolveInstrument(ctx context.Context, symbol string) (models.Contract, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("sec_type", string(models.SecTypeStock))
	endpoint := g.baseURL + "/instruments/search?" + params.Encode()

	var response contractPayload
	if err := g.makeRequestCtx(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return models.Contract{}, err
	}
	if response.ConID == 0 {
		return models.Contract{}, fmt.Errorf("no instrument found for symbol: %s", symbol)
	}
	return contractFromPayload(response), nil
}

// QualifyContracts resolves partial contracts to fully-qualified ones.
// Results come back in request order.
func (g *ClientPortalAPI) QualifyContracts(ctx context.Context, contracts []models.Contract) ([]models.Contract, error) {
	endpoint := g.baseURL + "/contracts/qualify"

	payload := make([]contractPayload, 0, len(contracts))
	for _, c := range contracts {
		payload = append(payload, payloadFromContract(c))
	}

	var response struct {
		Contracts []contractPayload `json:"contracts"`
	}
	if err := g.makeJSONRequestCtx(ctx, http.MethodPost, endpoint, payload, &response); err != nil {
		return nil, err
	}

	qualified := make([]models.Contract, 0, len(response.Contracts))
	for _, c := range response.Contracts {
		qualified = append(qualified, contractFromPayload(c))
	}
	return qualified, nil
}

// Quotes fetches market data snapshots for a batch of contracts. The bridge
// serves one snapshot per request, so the batch fans out concurrently; the
// result slice preserves request order and every ticker carries its
// contract for identity correlation.
func (g *ClientPortalAPI) Quotes(ctx context.Context, contracts []models.Contract) ([]models.Ticker, error) {
	tickers := make([]models.Ticker, len(contracts))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(quoteFanOutLimit)
	for i, contract := range contracts {
		i, contract := i, contract
		eg.Go(func() error {
			snap, err := g.snapshot(egCtx, contract.ConID, "market_price,delta")
			if err != nil {
				return fmt.Errorf("quote for %s: %w", contract.LocalSymbol(), err)
			}
			tickers[i] = tickerFromSnapshot(contract, snap)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return tickers, nil
}

// OptionChainParams retrieves chain parameters for the underlying, one entry
// per venue.
func (g *ClientPortalAPI) OptionChainParams(ctx context.Context, underlying models.Contract) ([]models.Chain, error) {
	endpoint := fmt.Sprintf("%s/instruments/%d/chains", g.baseURL, underlying.ConID)

	var response chainsResponse
	if err := g.makeRequestCtx(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	chains := make([]models.Chain, 0, len(response.Chains))
	for _, c := range response.Chains {
		chains = append(chains, models.Chain{
			Exchange:     c.Exchange,
			TradingClass: c.TradingClass,
			Strikes:      c.Strikes,
			Expirations:  c.Expirations,
		})
	}
	return chains, nil
}

// LiveOpenInterest opens a live market-data subscription for the contract's
// open interest. Callers must Close the feed when the check completes.
func (g *ClientPortalAPI) LiveOpenInterest(ctx context.Context, contract models.Contract) (OpenInterestFeed, error) {
	endpoint := g.baseURL + "/marketdata/subscriptions"

	body := map[string]interface{}{
		"conid":  contract.ConID,
		"fields": []string{"put_open_interest", "call_open_interest"},
	}
	var response subscriptionResponse
	if err := g.makeJSONRequestCtx(ctx, http.MethodPost, endpoint, body, &response); err != nil {
		return nil, err
	}
	if response.SubscriptionID == "" {
		return nil, fmt.Errorf("%w: empty subscription for %s", ErrMarketDataUnavailable, contract.LocalSymbol())
	}

	return &httpOpenInterestFeed{api: g, contract: contract, subID: response.SubscriptionID}, nil
}

// SubmitOrder submits a single-leg limit order.
func (g *ClientPortalAPI) SubmitOrder(ctx context.Context, contract models.Contract, spec OrderSpec) (*Trade, error) {
	cp := payloadFromContract(contract)
	return g.submit(ctx, orderPayload{
		AccountID:    g.accountID,
		Contract:     &cp,
		Action:       string(spec.Action),
		Quantity:     spec.Quantity,
		OrderType:    "LMT",
		LimitPrice:   spec.LimitPrice,
		TIF:          spec.TIF,
		AlgoStrategy: spec.AlgoStrategy,
		AlgoPriority: spec.AlgoPriority,
		Tag:          spec.Tag,
	})
}

// SubmitComboOrder submits a multi-leg combo as one atomic order.
func (g *ClientPortalAPI) SubmitComboOrder(ctx context.Context, symbol string, legs []ComboLeg, spec OrderSpec) (*Trade, error) {
	return g.submit(ctx, orderPayload{
		AccountID:    g.accountID,
		Symbol:       symbol,
		Legs:         legs,
		Action:       string(spec.Action),
		Quantity:     spec.Quantity,
		OrderType:    "LMT",
		LimitPrice:   spec.LimitPrice,
		TIF:          spec.TIF,
		AlgoStrategy: spec.AlgoStrategy,
		AlgoPriority: spec.AlgoPriority,
		Tag:          spec.Tag,
	})
}

func (g *ClientPortalAPI) submit(ctx context.Context, order orderPayload) (*Trade, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s/orders", g.baseURL, g.accountID)

	var trade Trade
	if err := g.makeJSONRequestCtx(ctx, http.MethodPost, endpoint, order, &trade); err != nil {
		return nil, err
	}
	return &trade, nil
}

// snapshot fetches one market data snapshot for a conid.
func (g *ClientPortalAPI) snapshot(ctx context.Context, conID int64, fields string) (*snapshotPayload, error) {
	params := url.Values{}
	params.Set("conid", strconv.FormatInt(conID, 10))
	params.Set("fields", fields)
	endpoint := g.baseURL + "/marketdata/snapshot?" + params.Encode()

	var response snapshotPayload
	if err := g.makeRequestCtx(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func tickerFromSnapshot(contract models.Contract, snap *snapshotPayload) models.Ticker {
	t := models.Ticker{
		Contract:         contract,
		MarketPrice:      snap.MarketPrice,
		Delta:            snap.Delta,
		PutOpenInterest:  math.NaN(),
		CallOpenInterest: math.NaN(),
	}
	if snap.PutOpenInterest != nil {
		t.PutOpenInterest = *snap.PutOpenInterest
	}
	if snap.CallOpenInterest != nil {
		t.CallOpenInterest = *snap.CallOpenInterest
	}
	return t
}

func contractFromPayload(p contractPayload) models.Contract {
	return models.Contract{
		SecType:      models.SecType(p.SecType),
		Symbol:       p.Symbol,
		ConID:        p.ConID,
		Expiration:   p.Expiration,
		Strike:       p.Strike,
		Right:        models.Right(strings.ToUpper(p.Right)),
		Exchange:     p.Exchange,
		TradingClass: p.TradingClass,
		Currency:     p.Currency,
	}
}

func payloadFromContract(c models.Contract) contractPayload {
	return contractPayload{
		ConID:        c.ConID,
		SecType:      string(c.SecType),
		Symbol:       c.Symbol,
		Expiration:   c.Expiration,
		Strike:       c.Strike,
		Right:        string(c.Right),
		Exchange:     c.Exchange,
		TradingClass: c.TradingClass,
		Currency:     c.Currency,
	}
}

// httpOpenInterestFeed polls the bridge's subscription endpoint.
type httpOpenInterestFeed struct {
	api      *ClientPortalAPI
	contract models.Contract
	subID    string
}

func (f *httpOpenInterestFeed) Snapshot(ctx context.Context) (models.Ticker, error) {
	endpoint := fmt.Sprintf("%s/marketdata/subscriptions/%s", f.api.baseURL, f.subID)

	var response snapshotPayload
	if err := f.api.makeRequestCtx(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return models.Ticker{}, err
	}
	return tickerFromSnapshot(f.contract, &response), nil
}

func (f *httpOpenInterestFeed) Close() error {
	endpoint := fmt.Sprintf("%s/marketdata/subscriptions/%s", f.api.baseURL, f.subID)
	return f.api.makeRequestCtx(context.Background(), http.MethodDelete, endpoint, nil, nil)
}

// ============ HTTP plumbing ============

func (g *ClientPortalAPI) makeRequestCtx(ctx context.Context, method, endpoint string,
	params url.Values, response interface{}) error {
	var req *http.Request
	var err error

	if method == http.MethodPost && params != nil {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(params.Encode()))
		if err != nil {
			return err
		}
		req.Header.Add("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, http.NoBody)
		if err != nil {
			return err
		}
	}

	return g.do(req, response)
}

func (g *ClientPortalAPI) makeJSONRequestCtx(ctx context.Context, method, endpoint string,
	body interface{}, response interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")

	return g.do(req, response)
}

func (g *ClientPortalAPI) do(req *http.Request, response interface{}) error {
	req.Header.Add("Authorization", "Bearer "+g.apiKey)
	req.Header.Add("Accept", "application/json")
	req.Header.Add("User-Agent", "schrute-wheel/1.0")

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated &&
		resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusNoContent {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10)) // 64KB cap to avoid huge payloads
		if err != nil {
			return &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("%s %s -> failed to read error body", req.Method, req.URL.Path)}
		}
		return &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("%s %s -> %s", req.Method, req.URL.Path, string(body))}
	}

	if resp.StatusCode == http.StatusNoContent || response == nil {
		return nil
	}

	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(response); err != nil {
		return fmt.Errorf("decoding response from %s: %w", req.URL.Path, err)
	}
	return nil
}
