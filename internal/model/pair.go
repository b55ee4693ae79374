package model

import "github.com/shopspring/decimal"

type Pair struct {
	Name         string          `json:"name" yaml:"name"`
	AltName      string          `json:"altname" yaml:"altname"`
	Base         string          `json:"base" yaml:"base"`
	Quote        string          `json:"quote" yaml:"quote"`
	PairDecimals int32           `json:"pair_decimals" yaml:"pair_decimals"`
	CostDecimals int32           `json:"cost_decimals" yaml:"cost_decimals"`
	LotDecimals  int32           `json:"lot_decimals" yaml:"lot_decimals"`
	OrderMin     decimal.Decimal `json:"ordermin" yaml:"ordermin"`
	CostMin      decimal.Decimal `json:"costmin" yaml:"costmin"`
	Status       string          `json:"status" yaml:"status"`
}

const PairStatusOnline = "online"

func (p Pair) Online() bool {
	return p.Status == "" || p.Status == PairStatusOnline
}

// Delta is a signed balance adjustment for one (account, asset) tuple.
type Delta struct {
	Account string
	Asset   string
	Amount  decimal.Decimal
}

type BalanceKey struct {
	Account string
	Asset   string
}
