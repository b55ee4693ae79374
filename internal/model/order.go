package model

import (
	"time"

	"spot-sandbox/internal/types"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID             string            `json:"id"`
	Account        string            `json:"account"`
	Pair           string            `json:"pair"`
	Side           types.OrderSide   `json:"side"`
	Kind           types.OrderKind   `json:"kind"`
	Price          *decimal.Decimal  `json:"price,omitempty"`
	Price2         *decimal.Decimal  `json:"price2,omitempty"`
	Volume         decimal.Decimal   `json:"volume"`
	ExecutedVolume decimal.Decimal   `json:"executed_volume"`
	Status         types.OrderStatus `json:"status"`
	OpenedAt       time.Time         `json:"opened_at"`
	ClosedAt       *time.Time        `json:"closed_at,omitempty"`
	ClientRef      string            `json:"client_ref,omitempty"`
	Aux            AuxData           `json:"aux,omitempty"`
	// ReplacesID links a cancel-replace order to the order it replaced.
	ReplacesID string `json:"replaces_id,omitempty"`
}

func (o Order) IsOpen() bool {
	return o.Status == types.OrderStatusOpen
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (o Order) Clone() Order {
	cp := o
	if o.Price != nil {
		p := *o.Price
		cp.Price = &p
	}
	if o.Price2 != nil {
		p := *o.Price2
		cp.Price2 = &p
	}
	if o.ClosedAt != nil {
		t := *o.ClosedAt
		cp.ClosedAt = &t
	}
	cp.Aux = o.Aux.Clone()
	return cp
}

// FieldUpdate carries the mutable fields of an open order. Nil means untouched.
type FieldUpdate struct {
	Price  *decimal.Decimal
	Price2 *decimal.Decimal
	Volume *decimal.Decimal
	Aux    AuxData
}

func (u FieldUpdate) Empty() bool {
	return u.Price == nil && u.Price2 == nil && u.Volume == nil && len(u.Aux) == 0
}

// Apply returns o with the update applied. Aux keys are merged.
func (u FieldUpdate) Apply(o Order) Order {
	out := o.Clone()
	if u.Price != nil {
		p := *u.Price
		out.Price = &p
	}
	if u.Price2 != nil {
		p := *u.Price2
		out.Price2 = &p
	}
	if u.Volume != nil {
		out.Volume = *u.Volume
	}
	if len(u.Aux) > 0 {
		if out.Aux == nil {
			out.Aux = AuxData{}
		}
		for k, v := range u.Aux {
			out.Aux[k] = v
		}
	}
	return out
}
