package orders

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"testing"

	"github.com/eddiefleurent/schrute_wheel/internal/gateway"
	"github.com/eddiefleurent/schrute_wheel/internal/models"
)

// captureGateway records submitted orders and answers quotes from a table.
type captureGateway struct {
	quotePrice float64
	quoteErr   error
	submitErr  error

	lastContract models.Contract
	lastLegs     []gateway.ComboLeg
	lastSpec     gateway.OrderSpec
}

func (g *captureGateway) PortfolioPositions(context.Context) (models.PortfolioSnapshot, error) {
	return nil, errors.New("not implemented")
}

func (g *captureGateway) AccountSummary(context.Context) (*models.AccountSummary, error) {
	return nil, errors.New("not implemented")
}

func (g *captureGateway) ResolveInstrument(_ context.Context, symbol string) (models.Contract, error) {
	return models.NewStock(symbol), nil
}

func (g *captureGateway) QualifyContracts(_ context.Context, contracts []models.Contract) ([]models.Contract, error) {
	return contracts, nil
}

func (g *captureGateway) Quotes(_ context.Context, contracts []models.Contract) ([]models.Ticker, error) {
	if g.quoteErr != nil {
		return nil, g.quoteErr
	}
	tickers := make([]models.Ticker, len(contracts))
	for i, c := range contracts {
		tickers[i] = models.Ticker{Contract: c, MarketPrice: g.quotePrice}
	}
	return tickers, nil
}

func (g *captureGateway) OptionChainParams(context.Context, models.Contract) ([]models.Chain, error) {
	return nil, errors.New("not implemented")
}

func (g *captureGateway) LiveOpenInterest(context.Context, models.Contract) (gateway.OpenInterestFeed, error) {
	return nil, errors.New("not implemented")
}

func (g *captureGateway) SubmitOrder(_ context.Context, contract models.Contract, spec gateway.OrderSpec) (*gateway.Trade, error) {
	if g.submitErr != nil {
		return nil, g.submitErr
	}
	g.lastContract = contract
	g.lastSpec = spec
	return &gateway.Trade{OrderID: "1", Status: "Submitted", Symbol: contract.Symbol, LimitPrice: spec.LimitPrice, Quantity: spec.Quantity}, nil
}

func (g *captureGateway) SubmitComboOrder(_ context.Context, symbol string, legs []gateway.ComboLeg, spec gateway.OrderSpec) (*gateway.Trade, error) {
	if g.submitErr != nil {
		return nil, g.submitErr
	}
	g.lastLegs = legs
	g.lastSpec = spec
	return &gateway.Trade{OrderID: "2", Status: "Submitted", Symbol: symbol, LimitPrice: spec.LimitPrice, Quantity: spec.Quantity}, nil
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestWriteContract(t *testing.T) {
	gw := &captureGateway{}
	b := NewBuilder(gw, testLogger())

	contract := models.NewOption("ABC", "20250620", 90, models.RightPut, "ABC")
	contract.ConID = 42
	ticker := &models.Ticker{Contract: contract, MarketPrice: 1.2345}

	trade, err := b.WriteContract(context.Background(), ticker, 3)
	if err != nil {
		t.Fatalf("WriteContract returned error: %v", err)
	}

	if gw.lastSpec.Action != gateway.ActionSell {
		t.Errorf("action = %s, expected SELL", gw.lastSpec.Action)
	}
	if math.Abs(gw.lastSpec.LimitPrice-1.23) > 1e-10 {
		t.Errorf("limit price = %v, expected 1.23", gw.lastSpec.LimitPrice)
	}
	if gw.lastSpec.Quantity != 3 {
		t.Errorf("quantity = %d, expected 3", gw.lastSpec.Quantity)
	}
	if gw.lastSpec.TIF != "DAY" {
		t.Errorf("tif = %q, expected DAY", gw.lastSpec.TIF)
	}
	if gw.lastSpec.AlgoStrategy != "Adaptive" || gw.lastSpec.AlgoPriority != "Patient" {
		t.Errorf("algo = %q/%q", gw.lastSpec.AlgoStrategy, gw.lastSpec.AlgoPriority)
	}
	if gw.lastSpec.Tag == "" {
		t.Error("order tag must be set")
	}
	if trade.OrderID == "" {
		t.Error("trade handle missing order id")
	}
}

func TestWriteContractRejectsNonPositiveQuantity(t *testing.T) {
	b := NewBuilder(&captureGateway{}, testLogger())
	ticker := &models.Ticker{Contract: models.NewOption("ABC", "20250620", 90, models.RightPut, "ABC")}

	if _, err := b.WriteContract(context.Background(), ticker, 0); err == nil {
		t.Error("zero quantity must be rejected")
	}
}

func TestWriteContractWrapsSubmissionError(t *testing.T) {
	gw := &captureGateway{submitErr: errors.New("rejected")}
	b := NewBuilder(gw, testLogger())
	ticker := &models.Ticker{Contract: models.NewOption("ABC", "20250620", 90, models.RightPut, "ABC"), MarketPrice: 1.0}

	_, err := b.WriteContract(context.Background(), ticker, 1)
	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if subErr.Symbol != "ABC" {
		t.Errorf("error symbol = %q", subErr.Symbol)
	}
}

func TestRollPosition(t *testing.T) {
	gw := &captureGateway{quotePrice: 1.80}
	b := NewBuilder(gw, testLogger())

	held := models.NewOption("ABC", "20250620", 90, models.RightPut, "ABC")
	held.ConID = 10
	position := models.Position{Contract: held, Kind: models.KindPut, Quantity: -2, AvgCost: 2.0}

	replacementContract := models.NewOption("ABC", "20250718", 85, models.RightPut, "ABC")
	replacementContract.ConID = 20
	replacement := &models.Ticker{Contract: replacementContract, MarketPrice: 2.10}

	trade, err := b.RollPosition(context.Background(), position, replacement)
	if err != nil {
		t.Fatalf("RollPosition returned error: %v", err)
	}

	if len(gw.lastLegs) != 2 {
		t.Fatalf("combo has %d legs, expected 2", len(gw.lastLegs))
	}
	if gw.lastLegs[0].ConID != 10 || gw.lastLegs[0].Action != gateway.ActionBuy {
		t.Errorf("first leg = %+v, expected BUY of held conid 10", gw.lastLegs[0])
	}
	if gw.lastLegs[1].ConID != 20 || gw.lastLegs[1].Action != gateway.ActionSell {
		t.Errorf("second leg = %+v, expected SELL of replacement conid 20", gw.lastLegs[1])
	}
	if gw.lastSpec.Quantity != 2 {
		t.Errorf("quantity = %d, expected 2", gw.lastSpec.Quantity)
	}
	// Net price: buy at 1.80, sell at 2.10, for a 0.30 credit.
	if math.Abs(gw.lastSpec.LimitPrice-(-0.30)) > 1e-10 {
		t.Errorf("net price = %v, expected -0.30", gw.lastSpec.LimitPrice)
	}
	if trade.OrderID == "" {
		t.Error("trade handle missing order id")
	}
}

func TestRollPositionQuoteFailure(t *testing.T) {
	gw := &captureGateway{quoteErr: errors.New("feed down")}
	b := NewBuilder(gw, testLogger())

	held := models.NewOption("ABC", "20250620", 90, models.RightPut, "ABC")
	position := models.Position{Contract: held, Kind: models.KindPut, Quantity: -1}
	replacement := &models.Ticker{Contract: models.NewOption("ABC", "20250718", 85, models.RightPut, "ABC")}

	if _, err := b.RollPosition(context.Background(), position, replacement); err == nil {
		t.Error("quote failure must abort the roll")
	}
}
