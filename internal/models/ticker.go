package models

import "math"

// Chain describes the option chain parameters for one underlying at one
// venue. Strikes and expirations are ordered ascending as returned by the
// gateway; expirations use the YYYYMMDD format.
type Chain struct {
	Exchange     string    `json:"exchange"`
	TradingClass string    `json:"trading_class"`
	Strikes      []float64 `json:"strikes"`
	Expirations  []string  `json:"expirations"`
}

// Ticker is a transient quote attached to a contract during selection.
// Delta is nil when the model greeks have not been computed. Open interest
// starts as NaN and stays NaN until the live feed populates it; callers must
// wait for both sides before filtering on it.
type Ticker struct {
	Contract         Contract `json:"contract"`
	MarketPrice      float64  `json:"market_price"`
	Delta            *float64 `json:"delta,omitempty"`
	PutOpenInterest  float64  `json:"put_open_interest"`
	CallOpenInterest float64  `json:"call_open_interest"`
}

// AbsDelta returns |delta|, or NaN when the model delta is missing.
func (t Ticker) AbsDelta() float64 {
	if t.Delta == nil {
		return math.NaN()
	}
	return math.Abs(*t.Delta)
}

// OpenInterestPopulated reports whether both open-interest sides have
// arrived from the live feed.
func (t Ticker) OpenInterestPopulated() bool {
	return !math.IsNaN(t.PutOpenInterest) && !math.IsNaN(t.CallOpenInterest)
}

// OpenInterestFor returns the open interest on the side relevant to the
// given right.
func (t Ticker) OpenInterestFor(right Right) float64 {
	if right == RightPut {
		return t.PutOpenInterest
	}
	return t.CallOpenInterest
}
