package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"spot-sandbox/internal/model"
	"spot-sandbox/internal/store"
	"spot-sandbox/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const tradeColumns = "id, account, order_id, pair, side, price, cost, fee, volume, executed_at"

type tradeStore struct {
	tx pgx.Tx
}

func (t tradeStore) Create(ctx context.Context, tr model.Trade) error {
	_, err := t.tx.Exec(ctx, "insert into trades ("+tradeColumns+") values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)",
		tr.ID, tr.Account, tr.OrderID, tr.Pair, string(tr.Side), tr.Price, tr.Cost, tr.Fee, tr.Volume, tr.ExecutedAt)
	return err
}

func (t tradeStore) GetByID(ctx context.Context, account, id string) (model.Trade, error) {
	row := t.tx.QueryRow(ctx, "select "+tradeColumns+" from trades where id = $1 and ($2 = '' or account = $2)", id, account)
	tr, err := scanTrade(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Trade{}, store.ErrTradeNotFound
	}
	return tr, err
}

func (t tradeStore) GetMany(ctx context.Context, account string, ids []string) ([]model.Trade, error) {
	if len(ids) == 0 {
		return []model.Trade{}, nil
	}
	rows, err := t.tx.Query(ctx, "select "+tradeColumns+" from trades where account = $1 and id = any($2)", account, ids)
	if err != nil {
		return nil, err
	}
	byID, err := collectTrades(rows)
	if err != nil {
		return nil, err
	}
	index := make(map[string]model.Trade, len(byID))
	for _, tr := range byID {
		index[tr.ID] = tr
	}
	// keep the caller's order
	out := make([]model.Trade, 0, len(byID))
	for _, id := range ids {
		if tr, ok := index[id]; ok {
			out = append(out, tr)
		}
	}
	return out, nil
}

func (t tradeStore) ListByOrder(ctx context.Context, orderID string) ([]model.Trade, error) {
	rows, err := t.tx.Query(ctx, "select "+tradeColumns+" from trades where order_id = $1 order by seq asc", orderID)
	if err != nil {
		return nil, err
	}
	return collectTrades(rows)
}

func (t tradeStore) ListByAccount(ctx context.Context, f store.TradeFilter) ([]model.Trade, int, error) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Account != "" {
		add("account = $%d", f.Account)
	}
	if f.Side != "" {
		add("side = $%d", string(f.Side))
	}
	if f.From != nil {
		add("executed_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("executed_at <= $%d", *f.To)
	}
	where := ""
	if len(conds) > 0 {
		where = " where " + strings.Join(conds, " and ")
	}
	var total int
	if err := t.tx.QueryRow(ctx, "select count(*) from trades"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	q := "select " + tradeColumns + " from trades" + where + " order by executed_at desc, seq desc"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" limit $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += fmt.Sprintf(" offset $%d", len(args))
	}
	rows, err := t.tx.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	out, err := collectTrades(rows)
	return out, total, err
}

func (t tradeStore) AggregateByOrder(ctx context.Context, orderID string) (model.OrderSummary, error) {
	var s model.OrderSummary
	var notional decimal.Decimal
	err := t.tx.QueryRow(ctx, `select coalesce(sum(cost), 0), coalesce(sum(fee), 0), coalesce(sum(volume), 0),
		coalesce(sum(price * volume), 0), count(*) from trades where order_id = $1`, orderID).
		Scan(&s.TotalCost, &s.TotalFee, &s.Volume, &notional, &s.Count)
	if err != nil {
		return s, err
	}
	if s.Volume.IsPositive() {
		s.VWAP = notional.DivRound(s.Volume, 8)
	}
	return s, nil
}

func collectTrades(rows pgx.Rows) ([]model.Trade, error) {
	defer rows.Close()
	var out []model.Trade
	for rows.Next() {
		tr, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

func scanTrade(row pgx.Row) (model.Trade, error) {
	var tr model.Trade
	var side string
	err := row.Scan(&tr.ID, &tr.Account, &tr.OrderID, &tr.Pair, &side, &tr.Price, &tr.Cost, &tr.Fee, &tr.Volume, &tr.ExecutedAt)
	if err != nil {
		return tr, err
	}
	tr.Side = types.OrderSide(side)
	tr.ExecutedAt = tr.ExecutedAt.UTC()
	return tr, nil
}
