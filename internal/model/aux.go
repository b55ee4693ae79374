package model

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

type AuxKey string

// AuxDisplayQty is the visible slice of an iceberg order.
const AuxDisplayQty AuxKey = "display_qty"

var knownAuxKeys = map[AuxKey]struct{}{
	AuxDisplayQty: {},
}

// AuxData is the order's auxiliary key/value data. Only known keys are accepted.
type AuxData map[AuxKey]string

func (a AuxData) Clone() AuxData {
	if a == nil {
		return nil
	}
	out := make(AuxData, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

func (a AuxData) Validate() error {
	for k := range a {
		if _, ok := knownAuxKeys[k]; !ok {
			return fmt.Errorf("unknown aux key %q", k)
		}
	}
	if raw, ok := a[AuxDisplayQty]; ok {
		if _, err := decimal.NewFromString(raw); err != nil {
			return fmt.Errorf("invalid %s: %w", AuxDisplayQty, err)
		}
	}
	return nil
}

func (a AuxData) DisplayQty() (decimal.Decimal, bool) {
	raw, ok := a[AuxDisplayQty]
	if !ok {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func (a AuxData) WithDisplayQty(q decimal.Decimal) AuxData {
	out := a.Clone()
	if out == nil {
		out = AuxData{}
	}
	out[AuxDisplayQty] = q.String()
	return out
}

// Encode renders the map as a JSON object; nil encodes as {}.
func (a AuxData) Encode() ([]byte, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[AuxKey]string(a))
}

func DecodeAux(raw []byte) (AuxData, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[AuxKey]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}
	out := AuxData(m)
	return out, out.Validate()
}
