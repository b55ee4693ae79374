package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"spot-sandbox/internal/model"
	"spot-sandbox/internal/store"
)

type tradeStore struct {
	tx *memTx
}

func (t tradeStore) Create(ctx context.Context, trade model.Trade) error {
	s := t.tx.s
	if trade.ID == "" || trade.OrderID == "" {
		return errors.New("trade id and order id required")
	}
	if _, ok := s.trades[trade.ID]; ok {
		return fmt.Errorf("trade %s already exists", trade.ID)
	}
	s.trades[trade.ID] = trade
	s.tradeSeq = append(s.tradeSeq, trade.ID)
	s.byOrder[trade.OrderID] = append(s.byOrder[trade.OrderID], trade.ID)
	t.tx.onRollback(func() {
		delete(s.trades, trade.ID)
		s.tradeSeq = removeLast(s.tradeSeq, trade.ID)
		s.byOrder[trade.OrderID] = removeLast(s.byOrder[trade.OrderID], trade.ID)
		if len(s.byOrder[trade.OrderID]) == 0 {
			delete(s.byOrder, trade.OrderID)
		}
	})
	return nil
}

func (t tradeStore) GetByID(ctx context.Context, account, id string) (model.Trade, error) {
	tr, ok := t.tx.s.trades[id]
	if !ok || (account != "" && tr.Account != account) {
		return model.Trade{}, store.ErrTradeNotFound
	}
	return tr, nil
}

func (t tradeStore) GetMany(ctx context.Context, account string, ids []string) ([]model.Trade, error) {
	out := make([]model.Trade, 0, len(ids))
	for _, id := range ids {
		tr, ok := t.tx.s.trades[id]
		if ok && tr.Account == account {
			out = append(out, tr)
		}
	}
	return out, nil
}

func (t tradeStore) ListByOrder(ctx context.Context, orderID string) ([]model.Trade, error) {
	ids := t.tx.s.byOrder[orderID]
	out := make([]model.Trade, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.tx.s.trades[id])
	}
	return out, nil
}

func (t tradeStore) ListByAccount(ctx context.Context, f store.TradeFilter) ([]model.Trade, int, error) {
	var matched []model.Trade
	// newest first: walk creation order backwards, then stable sort by time
	for i := len(t.tx.s.tradeSeq) - 1; i >= 0; i-- {
		tr := t.tx.s.trades[t.tx.s.tradeSeq[i]]
		if f.Account != "" && tr.Account != f.Account {
			continue
		}
		if f.Side != "" && tr.Side != f.Side {
			continue
		}
		if f.From != nil && tr.ExecutedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && tr.ExecutedAt.After(*f.To) {
			continue
		}
		matched = append(matched, tr)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].ExecutedAt.After(matched[j].ExecutedAt)
	})
	total := len(matched)
	start, end := store.Page(f.Offset, f.Limit, total)
	return matched[start:end], total, nil
}

func (t tradeStore) AggregateByOrder(ctx context.Context, orderID string) (model.OrderSummary, error) {
	trades, err := t.ListByOrder(ctx, orderID)
	if err != nil {
		return model.OrderSummary{}, err
	}
	return model.Summarize(trades), nil
}

func removeLast(ids []string, id string) []string {
	for i := len(ids) - 1; i >= 0; i-- {
		if ids[i] == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
