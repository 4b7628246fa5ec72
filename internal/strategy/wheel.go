package strategy

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/eddiefleurent/schrute_wheel/internal/config"
	"github.com/eddiefleurent/schrute_wheel/internal/gateway"
	"github.com/eddiefleurent/schrute_wheel/internal/journal"
	"github.com/eddiefleurent/schrute_wheel/internal/models"
	"github.com/eddiefleurent/schrute_wheel/internal/orders"
	"github.com/eddiefleurent/schrute_wheel/internal/retry"
	"github.com/eddiefleurent/schrute_wheel/internal/selector"
)

// WheelStrategy runs the maintenance cycle: roll expiring or profitable
// short options, cover uncovered stock with calls, then deploy remaining
// buying power into new short puts.
type WheelStrategy struct {
	gateway   gateway.Gateway
	retryer   *retry.Client
	cfg       *config.Config
	logger    *log.Logger
	evaluator *RollEvaluator
	allocator *AllocationCalculator
	selector  *selector.Selector
	builder   *orders.Builder
	recorder  journal.Recorder
}

// NewWheelStrategy wires the cycle's collaborators around one gateway.
// recorder may be nil; the cycle then runs without journaling.
func NewWheelStrategy(gw gateway.Gateway, cfg *config.Config, logger *log.Logger, recorder journal.Recorder) *WheelStrategy {
	return &WheelStrategy{
		gateway:   gw,
		retryer:   retry.NewClient(gw, logger),
		cfg:       cfg,
		logger:    logger,
		evaluator: NewRollEvaluator(gw, cfg, logger),
		allocator: NewAllocationCalculator(gw, cfg, logger),
		selector:  selector.New(gw, cfg, logger),
		builder:   orders.NewBuilder(gw, logger),
		recorder:  recorder,
	}
}

// Manage runs one full maintenance cycle. Failures scoped to one symbol are
// logged and recorded but do not stop the cycle; account-wide fetch failures
// abort it.
func (w *WheelStrategy) Manage(ctx context.Context) error {
	report := journal.CycleReport{StartedAt: time.Now()}

	account, err := w.retryer.AccountSummary(ctx)
	if err != nil {
		return fmt.Errorf("fetching account summary: %w", err)
	}
	snapshot, err := w.retryer.PortfolioPositions(ctx)
	if err != nil {
		return fmt.Errorf("fetching portfolio positions: %w", err)
	}
	snapshot = FilterToConfiguredSymbols(snapshot, w.cfg)
	w.logger.Printf("Managing %d configured symbols, net liquidation %s",
		len(w.cfg.Symbols), account.NetLiquidation.StringFixed(0))

	w.checkPuts(ctx, snapshot, &report)
	w.checkCalls(ctx, snapshot, &report)
	w.checkForUncoveredPositions(ctx, snapshot, &report)

	// New writes must see the rolls just submitted, so refresh before
	// computing put targets.
	snapshot, err = w.retryer.PortfolioPositions(ctx)
	if err != nil {
		return fmt.Errorf("refreshing portfolio positions: %w", err)
	}
	snapshot = FilterToConfiguredSymbols(snapshot, w.cfg)

	w.checkIfCanWritePuts(ctx, account, snapshot, &report)

	report.FinishedAt = time.Now()
	w.logger.Printf("Cycle complete: %d actions, %d errors", len(report.Actions), len(report.Errors))
	if w.recorder != nil {
		if err := w.recorder.Record(report); err != nil {
			w.logger.Printf("Warning: failed to record cycle report: %v", err)
		}
	}
	return nil
}

// checkPuts rolls each eligible short put. In-the-money puts are left to be
// assigned; that is the wheel turning.
func (w *WheelStrategy) checkPuts(ctx context.Context, snapshot models.PortfolioSnapshot, report *journal.CycleReport) {
	for _, put := range OptionPositions(snapshot, models.RightPut) {
		ok, reason, err := w.evaluator.PutCanBeRolled(ctx, put)
		if err != nil {
			w.recordError(report, fmt.Errorf("evaluating put %s: %w", put.Contract.LocalSymbol(), err))
			continue
		}
		if !ok {
			w.logger.Printf("%s", reason)
			continue
		}
		w.logger.Printf("%s", reason)
		w.rollPosition(ctx, put, models.RightPut, "roll_put", report)
	}
}

// checkCalls rolls each eligible short call regardless of moneyness.
func (w *WheelStrategy) checkCalls(ctx context.Context, snapshot models.PortfolioSnapshot, report *journal.CycleReport) {
	for _, call := range OptionPositions(snapshot, models.RightCall) {
		ok, reason, err := w.evaluator.CallCanBeRolled(call)
		if err != nil {
			w.recordError(report, fmt.Errorf("evaluating call %s: %w", call.Contract.LocalSymbol(), err))
			continue
		}
		if !ok {
			w.logger.Printf("%s", reason)
			continue
		}
		w.logger.Printf("%s", reason)
		w.rollPosition(ctx, call, models.RightCall, "roll_call", report)
	}
}

// checkForUncoveredPositions writes covered calls against stock not already
// spoken for by open calls. One contract covers one hundred shares; partial
// lots stay uncovered.
func (w *WheelStrategy) checkForUncoveredPositions(ctx context.Context, snapshot models.PortfolioSnapshot, report *journal.CycleReport) {
	for symbol := range w.cfg.Symbols {
		shares := stockQuantity(snapshot, symbol)
		callCount := CountOptionPositions(snapshot, symbol, models.RightCall)

		targetCalls := shares/sharesPerContract - callCount
		if targetCalls <= 0 {
			continue
		}
		w.logger.Printf("%s: %d shares, %d calls open, writing %d covered calls", symbol, shares, callCount, targetCalls)
		w.writeContracts(ctx, symbol, models.RightCall, targetCalls, "write_call", report)
	}
}

// checkIfCanWritePuts deploys remaining buying power into new short puts per
// the allocation targets.
func (w *WheelStrategy) checkIfCanWritePuts(ctx context.Context, account *models.AccountSummary, snapshot models.PortfolioSnapshot, report *journal.CycleReport) {
	needs, failed := w.allocator.AdditionalPutsNeeded(ctx, account, snapshot)
	for symbol, err := range failed {
		w.recordError(report, fmt.Errorf("allocating %s: %w", symbol, err))
	}
	for symbol, count := range needs {
		w.logger.Printf("%s: writing %d additional puts", symbol, count)
		w.writeContracts(ctx, symbol, models.RightPut, count, "write_put", report)
	}
}

// rollPosition selects a replacement and submits the two-leg roll. Any
// failure is scoped to this position.
func (w *WheelStrategy) rollPosition(ctx context.Context, pos models.Position, right models.Right, kind string, report *journal.CycleReport) {
	replacement, err := w.selector.SelectBestContract(ctx, pos.Contract.Symbol, right)
	if err != nil {
		w.recordError(report, fmt.Errorf("selecting replacement for %s: %w", pos.Contract.LocalSymbol(), err))
		return
	}

	trade, err := w.builder.RollPosition(ctx, pos, replacement)
	if err != nil {
		w.recordError(report, err)
		return
	}

	report.Actions = append(report.Actions, journal.Action{
		Time:    time.Now(),
		Kind:    kind,
		Symbol:  pos.Contract.Symbol,
		Detail:  fmt.Sprintf("%s -> %s x%d", pos.Contract.LocalSymbol(), replacement.Contract.LocalSymbol(), int(math.Abs(pos.Quantity))),
		OrderID: trade.OrderID,
	})
}

// writeContracts selects one contract for the symbol and sells count of it.
func (w *WheelStrategy) writeContracts(ctx context.Context, symbol string, right models.Right, count int, kind string, report *journal.CycleReport) {
	ticker, err := w.selector.SelectBestContract(ctx, symbol, right)
	if err != nil {
		w.recordError(report, fmt.Errorf("selecting contract for %s: %w", symbol, err))
		return
	}

	trade, err := w.builder.WriteContract(ctx, ticker, count)
	if err != nil {
		w.recordError(report, err)
		return
	}

	report.Actions = append(report.Actions, journal.Action{
		Time:    time.Now(),
		Kind:    kind,
		Symbol:  symbol,
		Detail:  fmt.Sprintf("sell %d %s @ %.2f", count, ticker.Contract.LocalSymbol(), trade.LimitPrice),
		OrderID: trade.OrderID,
	})
}

func (w *WheelStrategy) recordError(report *journal.CycleReport, err error) {
	w.logger.Printf("Error: %v", err)
	report.Errors = append(report.Errors, err.Error())
}
