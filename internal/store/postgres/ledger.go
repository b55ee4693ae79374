package postgres

import (
	"context"
	"errors"
	"sort"

	"spot-sandbox/internal/model"
	"spot-sandbox/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type ledgerStore struct {
	tx pgx.Tx
}

func (l ledgerStore) Get(ctx context.Context, account, asset string) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := l.tx.QueryRow(ctx, "select amount from balances where account = $1 and asset = $2", account, asset).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	return amount, err
}

func (l ledgerStore) All(ctx context.Context, account string) (map[string]decimal.Decimal, error) {
	rows, err := l.tx.Query(ctx, "select asset, amount from balances where account = $1 order by asset", account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]decimal.Decimal)
	for rows.Next() {
		var asset string
		var amount decimal.Decimal
		if err := rows.Scan(&asset, &amount); err != nil {
			return nil, err
		}
		out[asset] = amount
	}
	return out, rows.Err()
}

func (l ledgerStore) ApplyDelta(ctx context.Context, d model.Delta) (decimal.Decimal, error) {
	res, err := l.ApplyMultiDelta(ctx, []model.Delta{d})
	if err != nil {
		return decimal.Zero, err
	}
	return res[model.BalanceKey{Account: d.Account, Asset: d.Asset}], nil
}

// ApplyMultiDelta runs inside a savepoint so a rejected leg leaves no partial
// writes behind in the enclosing transaction. Keys are applied in sorted
// order to keep row lock acquisition consistent across writers.
func (l ledgerStore) ApplyMultiDelta(ctx context.Context, ds []model.Delta) (map[model.BalanceKey]decimal.Decimal, error) {
	sums := make(map[model.BalanceKey]decimal.Decimal, len(ds))
	for _, d := range ds {
		if d.Account == "" || d.Asset == "" {
			return nil, errors.New("delta requires account and asset")
		}
		k := model.BalanceKey{Account: d.Account, Asset: d.Asset}
		sums[k] = sums[k].Add(d.Amount)
	}
	keys := make([]model.BalanceKey, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Account != keys[j].Account {
			return keys[i].Account < keys[j].Account
		}
		return keys[i].Asset < keys[j].Asset
	})

	sp, err := l.tx.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer sp.Rollback(ctx)

	out := make(map[model.BalanceKey]decimal.Decimal, len(keys))
	for _, k := range keys {
		var amount decimal.Decimal
		err := sp.QueryRow(ctx, `insert into balances (account, asset, amount, updated_at) values ($1, $2, $3, now())
			on conflict (account, asset) do update set amount = balances.amount + excluded.amount, updated_at = now()
			where balances.amount + excluded.amount >= 0
			returning amount`, k.Account, k.Asset, sums[k]).Scan(&amount)
		if errors.Is(err, pgx.ErrNoRows) || pgCode(err) == pgCheckViolation {
			return nil, store.ErrInsufficientBalance
		}
		if err != nil {
			return nil, err
		}
		out[k] = amount
	}
	if err := sp.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (l ledgerStore) Seed(ctx context.Context, account, asset string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return store.ErrInsufficientBalance
	}
	_, err := l.tx.Exec(ctx, `insert into balances (account, asset, amount, updated_at) values ($1, $2, $3, now())
		on conflict (account, asset) do update set amount = excluded.amount, updated_at = now()`, account, asset, amount)
	return err
}
