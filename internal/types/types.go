package types

type OrderSide string

type OrderKind string

type OrderStatus string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

const (
	OrderKindMarket          OrderKind = "market"
	OrderKindLimit           OrderKind = "limit"
	OrderKindStopLoss        OrderKind = "stop-loss"
	OrderKindTakeProfit      OrderKind = "take-profit"
	OrderKindStopLossLimit   OrderKind = "stop-loss-limit"
	OrderKindTakeProfitLimit OrderKind = "take-profit-limit"
	OrderKindSettlePosition  OrderKind = "settle-position"
)

const (
	OrderStatusOpen     OrderStatus = "open"
	OrderStatusClosed   OrderStatus = "closed"
	OrderStatusCanceled OrderStatus = "canceled"
)

func (s OrderSide) Valid() bool {
	return s == OrderSideBuy || s == OrderSideSell
}

func (k OrderKind) Valid() bool {
	switch k {
	case OrderKindMarket, OrderKindLimit, OrderKindStopLoss, OrderKindTakeProfit,
		OrderKindStopLossLimit, OrderKindTakeProfitLimit, OrderKindSettlePosition:
		return true
	}
	return false
}

// LimitFamily reports whether the kind carries a mandatory limit price.
func (k OrderKind) LimitFamily() bool {
	return k == OrderKindLimit || k == OrderKindStopLossLimit || k == OrderKindTakeProfitLimit
}

func (s OrderStatus) Valid() bool {
	return s == OrderStatusOpen || s == OrderStatusClosed || s == OrderStatusCanceled
}

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusClosed || s == OrderStatusCanceled
}
