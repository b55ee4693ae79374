// Package store declares the persistence contracts of the engine: balances,
// orders, trades and read-only pair metadata, plus the unit of work that
// spans the first three.
package store

import (
	"context"
	"time"

	"spot-sandbox/internal/errs"
	"spot-sandbox/internal/model"
	"spot-sandbox/internal/types"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientBalance = errs.New(errs.InsufficientFunds, "balance would become negative")
	ErrOrderNotFound       = errs.New(errs.UnknownOrder, "order not found")
	ErrOrderNotOpen        = errs.New(errs.OrderNotOpen, "order is not open")
	ErrOrderNotEditable    = errs.New(errs.OrderNotEditable, "order is not open")
	ErrDuplicateOrder      = errs.New(errs.DuplicateOrder, "order already exists")
	ErrPairNotFound        = errs.New(errs.UnknownPair, "pair not found")
	// Kraken answers an unknown trade id with EGeneral:Invalid arguments.
	ErrTradeNotFound   = errs.New(errs.InvalidArguments, "trade not found")
	ErrNothingToUpdate = errs.New(errs.InvalidArguments, "no fields to update")
)

type Balances interface {
	Get(ctx context.Context, account, asset string) (decimal.Decimal, error)
	All(ctx context.Context, account string) (map[string]decimal.Decimal, error)
	ApplyDelta(ctx context.Context, d model.Delta) (decimal.Decimal, error)
	ApplyMultiDelta(ctx context.Context, ds []model.Delta) (map[model.BalanceKey]decimal.Decimal, error)
	Seed(ctx context.Context, account, asset string, amount decimal.Decimal) error
}

type OrderFilter struct {
	Account   string
	Statuses  []types.OrderStatus
	ClientRef string
	// ClosedFrom and ClosedTo bound the close time, both inclusive.
	ClosedFrom *time.Time
	ClosedTo   *time.Time
	// NewestClosedFirst orders by close time descending instead of creation order.
	NewestClosedFirst bool
	Offset            int
	Limit             int
}

type Orders interface {
	Create(ctx context.Context, o model.Order) (model.Order, error)
	GetByID(ctx context.Context, account, id string) (model.Order, error)
	GetByClientRef(ctx context.Context, account, ref string) (model.Order, error)
	List(ctx context.Context, f OrderFilter) ([]model.Order, int, error)
	UpdateStatus(ctx context.Context, id string, to types.OrderStatus, closedAt time.Time) (model.Order, error)
	UpdateExecution(ctx context.Context, id string, executed decimal.Decimal, closedAt time.Time, status types.OrderStatus) (model.Order, error)
	UpdateFields(ctx context.Context, id string, u model.FieldUpdate) (model.Order, error)
}

type TradeFilter struct {
	Account string
	// Side filters by side; empty means all.
	Side   types.OrderSide
	From   *time.Time
	To     *time.Time
	Offset int
	Limit  int
}

type Trades interface {
	Create(ctx context.Context, t model.Trade) error
	GetByID(ctx context.Context, account, id string) (model.Trade, error)
	GetMany(ctx context.Context, account string, ids []string) ([]model.Trade, error)
	ListByOrder(ctx context.Context, orderID string) ([]model.Trade, error)
	ListByAccount(ctx context.Context, f TradeFilter) ([]model.Trade, int, error)
	AggregateByOrder(ctx context.Context, orderID string) (model.OrderSummary, error)
}

type Pairs interface {
	Get(ctx context.Context, nameOrAlt string) (model.Pair, error)
	List(ctx context.Context) ([]model.Pair, error)
}

// Tx is a view of the stores bound to one unit of work.
type Tx interface {
	Balances() Balances
	Orders() Orders
	Trades() Trades
}

// UnitOfWork runs fn atomically. If fn returns an error nothing it wrote is
// visible to any other unit of work.
type UnitOfWork interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Pairs() Pairs
}

// Page clamps offset and limit for paginated reads.
func Page(offset, limit, total int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return offset, end
}
