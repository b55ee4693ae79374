package orders

import (
	"context"
	"strings"
	"time"

	"spot-sandbox/internal/errs"
	"spot-sandbox/internal/model"
	"spot-sandbox/internal/store"
	"spot-sandbox/internal/types"

	"github.com/shopspring/decimal"
)

// PageSize is the number of rows returned by paginated history reads.
const PageSize = 50

// OrderView is an order with its execution summary.
type OrderView struct {
	model.Order
	Cost     decimal.Decimal
	Fee      decimal.Decimal
	AvgPrice decimal.Decimal
	TradeIDs []string
}

// TradeView is a trade with the kind of the order that produced it.
type TradeView struct {
	model.Trade
	OrderKind types.OrderKind
}

type OpenOrdersQuery struct {
	ClientRef string
	Trades    bool
}

type ClosedOrdersQuery struct {
	ClientRef string
	Start     *time.Time
	End       *time.Time
	Offset    int
	Trades    bool
}

type ClosedOrdersPage struct {
	Orders []OrderView
	Count  int
}

type TradesHistoryQuery struct {
	Side   types.OrderSide
	Start  *time.Time
	End    *time.Time
	Offset int
}

type TradesPage struct {
	Trades []TradeView
	Count  int
}

func (s *Service) ListOpenOrders(ctx context.Context, account string, q OpenOrdersQuery) ([]OrderView, error) {
	if account == "" {
		return nil, errs.New(errs.InvalidArguments, "account required")
	}
	var out []OrderView
	err := s.inTx(ctx, func(ctx context.Context, tx store.Tx) error {
		list, _, err := tx.Orders().List(ctx, store.OrderFilter{
			Account:   account,
			Statuses:  []types.OrderStatus{types.OrderStatusOpen},
			ClientRef: q.ClientRef,
		})
		if err != nil {
			return err
		}
		out, err = orderViews(ctx, tx, list, q.Trades)
		return err
	})
	return out, errs.Internal(err, "open orders")
}

// ListClosedOrders pages closed and canceled orders, most recently closed
// first. Count is the total across all pages.
func (s *Service) ListClosedOrders(ctx context.Context, account string, q ClosedOrdersQuery) (ClosedOrdersPage, error) {
	if account == "" {
		return ClosedOrdersPage{}, errs.New(errs.InvalidArguments, "account required")
	}
	if q.Offset < 0 {
		return ClosedOrdersPage{}, errs.New(errs.InvalidArguments, "ofs must not be negative")
	}
	var page ClosedOrdersPage
	err := s.inTx(ctx, func(ctx context.Context, tx store.Tx) error {
		list, total, err := tx.Orders().List(ctx, store.OrderFilter{
			Account:           account,
			Statuses:          []types.OrderStatus{types.OrderStatusClosed, types.OrderStatusCanceled},
			ClientRef:         q.ClientRef,
			ClosedFrom:        q.Start,
			ClosedTo:          q.End,
			NewestClosedFirst: true,
			Offset:            q.Offset,
			Limit:             PageSize,
		})
		if err != nil {
			return err
		}
		page.Count = total
		page.Orders, err = orderViews(ctx, tx, list, q.Trades)
		return err
	})
	return page, errs.Internal(err, "closed orders")
}

// QueryTrades returns the caller's trades with the given ids. A single id
// that names no trade is looked up as an order id instead.
func (s *Service) QueryTrades(ctx context.Context, account string, ids []string) ([]TradeView, error) {
	if account == "" {
		return nil, errs.New(errs.InvalidArguments, "account required")
	}
	clean := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			clean = append(clean, id)
		}
	}
	if len(clean) == 0 {
		return nil, errs.New(errs.InvalidArguments, "txid required")
	}
	var out []TradeView
	err := s.inTx(ctx, func(ctx context.Context, tx store.Tx) error {
		trades, err := tx.Trades().GetMany(ctx, account, clean)
		if err != nil {
			return err
		}
		if len(trades) == 0 && len(clean) == 1 {
			if _, err := tx.Orders().GetByID(ctx, account, clean[0]); err == nil {
				if trades, err = tx.Trades().ListByOrder(ctx, clean[0]); err != nil {
					return err
				}
			}
		}
		out, err = tradeViews(ctx, tx, account, trades)
		return err
	})
	return out, errs.Internal(err, "query trades")
}

func (s *Service) TradesHistory(ctx context.Context, account string, q TradesHistoryQuery) (TradesPage, error) {
	if account == "" {
		return TradesPage{}, errs.New(errs.InvalidArguments, "account required")
	}
	if q.Side != "" && !q.Side.Valid() {
		return TradesPage{}, errs.Newf(errs.InvalidArguments, "invalid type %q", q.Side)
	}
	if q.Offset < 0 {
		return TradesPage{}, errs.New(errs.InvalidArguments, "ofs must not be negative")
	}
	var page TradesPage
	err := s.inTx(ctx, func(ctx context.Context, tx store.Tx) error {
		trades, total, err := tx.Trades().ListByAccount(ctx, store.TradeFilter{
			Account: account,
			Side:    q.Side,
			From:    q.Start,
			To:      q.End,
			Offset:  q.Offset,
			Limit:   PageSize,
		})
		if err != nil {
			return err
		}
		page.Count = total
		page.Trades, err = tradeViews(ctx, tx, account, trades)
		return err
	})
	return page, errs.Internal(err, "trades history")
}

func orderViews(ctx context.Context, tx store.Tx, list []model.Order, withTrades bool) ([]OrderView, error) {
	out := make([]OrderView, 0, len(list))
	for _, o := range list {
		v := OrderView{Order: o}
		if o.ExecutedVolume.IsPositive() {
			sum, err := tx.Trades().AggregateByOrder(ctx, o.ID)
			if err != nil {
				return nil, err
			}
			v.Cost, v.Fee, v.AvgPrice = sum.TotalCost, sum.TotalFee, sum.VWAP
			if withTrades {
				trades, err := tx.Trades().ListByOrder(ctx, o.ID)
				if err != nil {
					return nil, err
				}
				for _, t := range trades {
					v.TradeIDs = append(v.TradeIDs, t.ID)
				}
			}
		}
		out = append(out, v)
	}
	return out, nil
}

func tradeViews(ctx context.Context, tx store.Tx, account string, trades []model.Trade) ([]TradeView, error) {
	kinds := make(map[string]types.OrderKind)
	out := make([]TradeView, 0, len(trades))
	for _, t := range trades {
		kind, ok := kinds[t.OrderID]
		if !ok {
			o, err := tx.Orders().GetByID(ctx, account, t.OrderID)
			switch {
			case err == nil:
				kind = o.Kind
			case errs.CodeOf(err) == errs.UnknownOrder:
				kind = types.OrderKindMarket
			default:
				return nil, err
			}
			kinds[t.OrderID] = kind
		}
		out = append(out, TradeView{Trade: t, OrderKind: kind})
	}
	return out, nil
}
