// Package dashboard serves a read-only status API over the cycle journal
// and the live portfolio. It observes; it never trades.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/eddiefleurent/schrute_wheel/internal/gateway"
	"github.com/eddiefleurent/schrute_wheel/internal/journal"
	"github.com/eddiefleurent/schrute_wheel/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

type Server struct {
	router    *chi.Mux
	server    *http.Server
	journal   *journal.Journal
	gateway   gateway.Gateway
	logger    *logrus.Logger
	port      int
	authToken string
}

type Config struct {
	Port      int
	AuthToken string
}

// SummaryView is the headline status payload.
type SummaryView struct {
	Account      AccountView     `json:"account"`
	Cycles       journal.Summary `json:"cycles"`
	MarketStatus string          `json:"market_status"`
	LastUpdate   time.Time       `json:"last_update"`
}

type AccountView struct {
	NetLiquidation  string `json:"net_liquidation"`
	BuyingPower     string `json:"buying_power"`
	ExcessLiquidity string `json:"excess_liquidity"`
}

// PositionView is one portfolio row.
type PositionView struct {
	Symbol      string  `json:"symbol"`
	Description string  `json:"description"`
	Kind        string  `json:"kind"`
	Quantity    float64 `json:"quantity"`
	MarketPrice float64 `json:"market_price"`
	MarketValue float64 `json:"market_value"`
	AvgCost     float64 `json:"avg_cost"`
	PnLPercent  float64 `json:"pnl_percent"`
}

func NewServer(cfg Config, jrnl *journal.Journal, gw gateway.Gateway, logger *logrus.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		journal:   jrnl,
		gateway:   gw,
		logger:    logger,
		port:      cfg.Port,
		authToken: cfg.AuthToken,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	if s.authToken != "" {
		s.router.Use(s.authMiddleware)
	}

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/api/summary", s.handleSummary)
	s.router.Get("/api/positions", s.handlePositions)
	s.router.Get("/api/cycles", s.handleCycles)
	s.router.Get("/api/cycles/latest", s.handleLatestCycle)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}

		if token != s.authToken {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.router,
	}

	s.logger.Infof("Starting dashboard server on port %d", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	}
	s.writeJSON(w, health)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	view := SummaryView{
		Cycles:       s.journal.Stats(),
		MarketStatus: marketStatus(),
		LastUpdate:   time.Now(),
	}

	account, err := s.gateway.AccountSummary(r.Context())
	if err != nil {
		s.logger.WithError(err).Warn("Failed to get account summary")
	} else {
		view.Account = AccountView{
			NetLiquidation:  account.NetLiquidation.StringFixed(2),
			BuyingPower:     account.BuyingPower.StringFixed(2),
			ExcessLiquidity: account.ExcessLiquidity.StringFixed(2),
		}
	}

	s.writeJSON(w, view)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.gateway.PortfolioPositions(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to get portfolio positions")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	views := make([]PositionView, 0)
	for _, positions := range snapshot {
		for _, pos := range positions {
			views = append(views, positionView(pos))
		}
	}

	s.writeJSON(w, views)
}

func (s *Server) handleCycles(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.journal.Cycles())
}

func (s *Server) handleLatestCycle(w http.ResponseWriter, _ *http.Request) {
	cycle, ok := s.journal.LastCycle()
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, cycle)
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func positionView(pos models.Position) PositionView {
	pnl := pos.ProfitFraction() * 100
	if math.IsNaN(pnl) || math.IsInf(pnl, 0) {
		pnl = 0
	}
	return PositionView{
		Symbol:      pos.Contract.Symbol,
		Description: pos.Contract.LocalSymbol(),
		Kind:        string(pos.Kind),
		Quantity:    pos.Quantity,
		MarketPrice: pos.MarketPrice,
		MarketValue: pos.MarketValue,
		AvgCost:     pos.AvgCost,
		PnLPercent:  pnl,
	}
}

func marketStatus() string {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return "Unknown"
	}
	nyTime := time.Now().In(loc)

	if nyTime.Weekday() == time.Saturday || nyTime.Weekday() == time.Sunday {
		return "Closed"
	}

	totalMinutes := nyTime.Hour()*60 + nyTime.Minute()
	marketOpen := 9*60 + 30
	marketClose := 16 * 60

	if totalMinutes >= marketOpen && totalMinutes < marketClose {
		return "Open"
	}
	return "Closed"
}
