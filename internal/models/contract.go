// Package models defines the market data and portfolio value types shared
// between the gateway and the strategy core.
package models

import (
	"fmt"
	"strings"
)

// SecType identifies the security type of a contract.
type SecType string

const (
	// SecTypeStock represents a common stock contract
	SecTypeStock SecType = "STK"
	// SecTypeOption represents an option contract
	SecTypeOption SecType = "OPT"
	// SecTypeCombo represents a multi-leg combo (BAG) contract
	SecTypeCombo SecType = "BAG"
)

// Right identifies the right of an option contract.
type Right string

const (
	// RightPut represents a put option
	RightPut Right = "P"
	// RightCall represents a call option
	RightCall Right = "C"
)

// Matches reports whether the right matches by prefix, so "PUT"/"CALL" style
// values coming back from the gateway also match "P"/"C".
func (r Right) Matches(other string) bool {
	if r == "" || other == "" {
		return false
	}
	return strings.HasPrefix(strings.ToUpper(other), string(r))
}

// Contract is a unified security descriptor. Stock contracts leave the
// option fields zero; option contracts carry expiration, strike, and right.
type Contract struct {
	SecType      SecType `json:"sec_type"`
	Symbol       string  `json:"symbol"`
	ConID        int64   `json:"conid"`
	Expiration   string  `json:"expiration,omitempty"` // YYYYMMDD
	Strike       float64 `json:"strike,omitempty"`
	Right        Right   `json:"right,omitempty"`
	Exchange     string  `json:"exchange"`
	TradingClass string  `json:"trading_class,omitempty"`
	Currency     string  `json:"currency"`
}

// NewStock returns a SMART-routed USD stock contract for the symbol.
func NewStock(symbol string) Contract {
	return Contract{
		SecType:  SecTypeStock,
		Symbol:   symbol,
		Exchange: "SMART",
		Currency: "USD",
	}
}

// NewOption returns a SMART-routed USD option contract.
func NewOption(symbol, expiration string, strike float64, right Right, tradingClass string) Contract {
	return Contract{
		SecType:      SecTypeOption,
		Symbol:       symbol,
		Expiration:   expiration,
		Strike:       strike,
		Right:        right,
		Exchange:     "SMART",
		TradingClass: tradingClass,
		Currency:     "USD",
	}
}

// LocalSymbol returns a short human-readable identifier for log lines.
func (c Contract) LocalSymbol() string {
	if c.SecType != SecTypeOption {
		return c.Symbol
	}
	return fmt.Sprintf("%s %s %s%.2f", c.Symbol, c.Expiration, c.Right, c.Strike)
}

// SameContract reports whether two contracts refer to the same instrument.
// Resolved contracts compare by conid; unresolved ones by field identity.
func SameContract(a, b Contract) bool {
	if a.ConID != 0 && b.ConID != 0 {
		return a.ConID == b.ConID
	}
	return a.SecType == b.SecType &&
		a.Symbol == b.Symbol &&
		a.Expiration == b.Expiration &&
		a.Strike == b.Strike &&
		a.Right == b.Right
}
