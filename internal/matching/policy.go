// Package matching decides whether an order executes against a reference
// price and computes the ledger effect of an execution. Everything here is
// pure: no clock, no randomness, no I/O.
package matching

import (
	"spot-sandbox/internal/model"
	"spot-sandbox/internal/types"

	"github.com/shopspring/decimal"
)

const (
	// Scale is the fractional precision of cost and fee.
	Scale = 8

	DefaultBandPct = 5
)

// DefaultFeeRate is the taker fee as a fraction (0.26%).
var DefaultFeeRate = decimal.RequireFromString("0.0026")

type Decision struct {
	Execute bool
	Price   decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// Decide executes market orders at the reference price and limit-family
// orders at their limit price when it lies within bandPct percent of the
// reference. Everything else rests.
func Decide(o model.Order, ref, bandPct decimal.Decimal) Decision {
	switch {
	case o.Kind == types.OrderKindMarket:
		return Decision{Execute: true, Price: ref}
	case o.Kind.LimitFamily():
		if o.Price == nil || !ref.IsPositive() {
			return Decision{}
		}
		if DiffPct(*o.Price, ref).LessThanOrEqual(bandPct) {
			return Decision{Execute: true, Price: *o.Price}
		}
	}
	return Decision{}
}

// DiffPct is |price-ref| / ref * 100. ref must be positive.
func DiffPct(price, ref decimal.Decimal) decimal.Decimal {
	return price.Sub(ref).Abs().Div(ref).Mul(hundred)
}

type Settlement struct {
	Cost   decimal.Decimal
	Fee    decimal.Decimal
	Deltas []model.Delta
}

// Settle prices an execution of o at price. Buys pay cost in quote and
// receive volume in base; sells give up volume in base and receive cost
// net of fee in quote.
func Settle(o model.Order, price, feeRate decimal.Decimal, pair model.Pair) Settlement {
	cost := o.Volume.Mul(price).RoundBank(Scale)
	fee := cost.Mul(feeRate).RoundBank(Scale)
	s := Settlement{Cost: cost, Fee: fee}
	if o.Side == types.OrderSideBuy {
		s.Deltas = []model.Delta{
			{Account: o.Account, Asset: pair.Quote, Amount: cost.Neg()},
			{Account: o.Account, Asset: pair.Base, Amount: o.Volume},
		}
	} else {
		s.Deltas = []model.Delta{
			{Account: o.Account, Asset: pair.Quote, Amount: cost.Sub(fee)},
			{Account: o.Account, Asset: pair.Base, Amount: o.Volume.Neg()},
		}
	}
	return s
}

// Required returns the asset and amount an account must hold before the
// order can be accepted. Buys are estimated at the limit price, or at ref
// when the order carries none.
func Required(o model.Order, ref decimal.Decimal, pair model.Pair) (string, decimal.Decimal) {
	if o.Side == types.OrderSideSell {
		return pair.Base, o.Volume
	}
	price := ref
	if o.Price != nil {
		price = *o.Price
	}
	return pair.Quote, o.Volume.Mul(price).RoundBank(Scale)
}
