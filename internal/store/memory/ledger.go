package memory

import (
	"context"
	"errors"

	"spot-sandbox/internal/model"
	"spot-sandbox/internal/store"

	"github.com/shopspring/decimal"
)

type ledgerStore struct {
	tx *memTx
}

func (l ledgerStore) Get(ctx context.Context, account, asset string) (decimal.Decimal, error) {
	return l.tx.s.balances[model.BalanceKey{Account: account, Asset: asset}], nil
}

func (l ledgerStore) All(ctx context.Context, account string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal)
	for k, v := range l.tx.s.balances {
		if k.Account == account {
			out[k.Asset] = v
		}
	}
	return out, nil
}

func (l ledgerStore) ApplyDelta(ctx context.Context, d model.Delta) (decimal.Decimal, error) {
	res, err := l.ApplyMultiDelta(ctx, []model.Delta{d})
	if err != nil {
		return decimal.Zero, err
	}
	return res[model.BalanceKey{Account: d.Account, Asset: d.Asset}], nil
}

// ApplyMultiDelta checks every resulting balance before writing any of them.
func (l ledgerStore) ApplyMultiDelta(ctx context.Context, ds []model.Delta) (map[model.BalanceKey]decimal.Decimal, error) {
	next := make(map[model.BalanceKey]decimal.Decimal, len(ds))
	for _, d := range ds {
		if d.Account == "" || d.Asset == "" {
			return nil, errors.New("delta requires account and asset")
		}
		k := model.BalanceKey{Account: d.Account, Asset: d.Asset}
		cur, ok := next[k]
		if !ok {
			cur = l.tx.s.balances[k]
		}
		next[k] = cur.Add(d.Amount)
	}
	for _, v := range next {
		if v.IsNegative() {
			return nil, store.ErrInsufficientBalance
		}
	}
	for k, v := range next {
		l.set(k, v)
	}
	return next, nil
}

func (l ledgerStore) Seed(ctx context.Context, account, asset string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return store.ErrInsufficientBalance
	}
	l.set(model.BalanceKey{Account: account, Asset: asset}, amount)
	return nil
}

func (l ledgerStore) set(k model.BalanceKey, v decimal.Decimal) {
	s := l.tx.s
	prev, existed := s.balances[k]
	s.balances[k] = v
	l.tx.onRollback(func() {
		if existed {
			s.balances[k] = prev
		} else {
			delete(s.balances, k)
		}
	})
}
