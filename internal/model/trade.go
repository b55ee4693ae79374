package model

import (
	"time"

	"spot-sandbox/internal/types"

	"github.com/shopspring/decimal"
)

type Trade struct {
	ID         string          `json:"id"`
	Account    string          `json:"account"`
	OrderID    string          `json:"order_id"`
	Pair       string          `json:"pair"`
	Side       types.OrderSide `json:"side"`
	Price      decimal.Decimal `json:"price"`
	Cost       decimal.Decimal `json:"cost"`
	Fee        decimal.Decimal `json:"fee"`
	Volume     decimal.Decimal `json:"volume"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// OrderSummary aggregates the trades of one order.
type OrderSummary struct {
	TotalCost decimal.Decimal
	TotalFee  decimal.Decimal
	VWAP      decimal.Decimal
	Volume    decimal.Decimal
	Count     int
}

// Summarize computes the cost, fee and volume weighted price of trades.
func Summarize(trades []Trade) OrderSummary {
	var s OrderSummary
	notional := decimal.Zero
	for _, t := range trades {
		s.TotalCost = s.TotalCost.Add(t.Cost)
		s.TotalFee = s.TotalFee.Add(t.Fee)
		s.Volume = s.Volume.Add(t.Volume)
		notional = notional.Add(t.Price.Mul(t.Volume))
		s.Count++
	}
	if s.Volume.IsPositive() {
		s.VWAP = notional.DivRound(s.Volume, 8)
	}
	return s
}
