package dashboard

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/eddiefleurent/schrute_wheel/internal/journal"
	"github.com/eddiefleurent/schrute_wheel/internal/mock"
	"github.com/eddiefleurent/schrute_wheel/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func testServer(t *testing.T, authToken string) *Server {
	t.Helper()

	jrnl, err := journal.New(filepath.Join(t.TempDir(), "journal.json"))
	if err != nil {
		t.Fatalf("opening journal: %v", err)
	}
	report := journal.CycleReport{
		StartedAt:  time.Now().Add(-time.Minute),
		FinishedAt: time.Now(),
		Actions: []journal.Action{
			{Time: time.Now(), Kind: "write_put", Symbol: "ABC", Detail: "sell 2", OrderID: "SIM-1"},
		},
	}
	if err := jrnl.Record(report); err != nil {
		t.Fatalf("recording cycle: %v", err)
	}

	gw := mock.NewSimGateway()
	gw.SetAccount(models.AccountSummary{
		BuyingPower:     decimal.NewFromInt(100000),
		ExcessLiquidity: decimal.NewFromInt(90000),
		NetLiquidation:  decimal.NewFromInt(80000),
	})
	gw.SetPositions(models.PortfolioSnapshot{
		"ABC": {{Contract: models.NewStock("ABC"), Kind: models.KindStock, Quantity: 100, MarketPrice: 50, MarketValue: 5000, AvgCost: 45}},
	})

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return NewServer(Config{Port: 0, AuthToken: authToken}, jrnl, gw, logger)
}

func get(t *testing.T, s *Server, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := testServer(t, "")
	rec := get(t, s, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
}

func TestSummaryEndpoint(t *testing.T) {
	s := testServer(t, "")
	rec := get(t, s, "/api/summary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary status = %d", rec.Code)
	}

	var view SummaryView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("decoding summary: %v", err)
	}
	if view.Cycles.TotalCycles != 1 || view.Cycles.ActionCounts["write_put"] != 1 {
		t.Errorf("cycle summary = %+v", view.Cycles)
	}
	if view.Account.NetLiquidation != "80000.00" {
		t.Errorf("net liquidation = %q", view.Account.NetLiquidation)
	}
}

func TestPositionsEndpoint(t *testing.T) {
	s := testServer(t, "")
	rec := get(t, s, "/api/positions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("positions status = %d", rec.Code)
	}

	var views []PositionView
	if err := json.NewDecoder(rec.Body).Decode(&views); err != nil {
		t.Fatalf("decoding positions: %v", err)
	}
	if len(views) != 1 || views[0].Symbol != "ABC" || views[0].Quantity != 100 {
		t.Errorf("positions = %+v", views)
	}
}

func TestCyclesEndpoints(t *testing.T) {
	s := testServer(t, "")

	rec := get(t, s, "/api/cycles", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cycles status = %d", rec.Code)
	}

	rec = get(t, s, "/api/cycles/latest", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("latest cycle status = %d", rec.Code)
	}
	var cycle journal.CycleReport
	if err := json.NewDecoder(rec.Body).Decode(&cycle); err != nil {
		t.Fatalf("decoding cycle: %v", err)
	}
	if len(cycle.Actions) != 1 || cycle.Actions[0].OrderID != "SIM-1" {
		t.Errorf("cycle = %+v", cycle)
	}
}

func TestAuthMiddleware(t *testing.T) {
	s := testServer(t, "sekrit")

	if rec := get(t, s, "/api/summary", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing token status = %d, expected 401", rec.Code)
	}
	if rec := get(t, s, "/api/summary", map[string]string{"X-Auth-Token": "sekrit"}); rec.Code != http.StatusOK {
		t.Errorf("valid token status = %d, expected 200", rec.Code)
	}
	// Health stays open for probes.
	if rec := get(t, s, "/health", nil); rec.Code != http.StatusOK {
		t.Errorf("health status = %d, expected 200 without token", rec.Code)
	}
}
