package models

import "github.com/shopspring/decimal"

// AccountSummary holds the account-wide figures used for allocation.
// Values are decimals because broker balances are exact quantities; they are
// refreshed once per management cycle.
type AccountSummary struct {
	BuyingPower     decimal.Decimal `json:"buying_power"`
	ExcessLiquidity decimal.Decimal `json:"excess_liquidity"`
	NetLiquidation  decimal.Decimal `json:"net_liquidation"`
}

// RemainingBuyingPower returns the deployable capital after withholding the
// configured cushion: floor(min(BuyingPower, ExcessLiquidity -
// NetLiquidation * cushion)). The cushion reservation makes the result safe
// to spend down to zero.
func (a AccountSummary) RemainingBuyingPower(cushion float64) decimal.Decimal {
	withheld := a.ExcessLiquidity.Sub(a.NetLiquidation.Mul(decimal.NewFromFloat(cushion)))
	remaining := a.BuyingPower
	if withheld.LessThan(remaining) {
		remaining = withheld
	}
	return remaining.Floor()
}
