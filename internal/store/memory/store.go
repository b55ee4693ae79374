// Package memory is an in-process implementation of the store contracts.
// Units of work are serialized by a single semaphore and rolled back with an
// undo log, which gives serializable isolation across all three stores.
package memory

import (
	"context"
	"strings"

	"spot-sandbox/internal/model"
	"spot-sandbox/internal/store"

	"github.com/shopspring/decimal"
)

type orderRow struct {
	order model.Order
	seq   int
}

type Store struct {
	sem chan struct{}

	pairs    map[string]model.Pair
	pairList []model.Pair

	balances map[model.BalanceKey]decimal.Decimal

	orders   map[string]*orderRow
	orderSeq []string
	nextSeq  int

	trades   map[string]model.Trade
	tradeSeq []string
	byOrder  map[string][]string
}

func New(pairs ...model.Pair) *Store {
	s := &Store{
		sem:      make(chan struct{}, 1),
		pairs:    make(map[string]model.Pair),
		balances: make(map[model.BalanceKey]decimal.Decimal),
		orders:   make(map[string]*orderRow),
		trades:   make(map[string]model.Trade),
		byOrder:  make(map[string][]string),
	}
	for _, p := range pairs {
		s.pairList = append(s.pairList, p)
		s.pairs[strings.ToUpper(p.Name)] = p
		if p.AltName != "" {
			s.pairs[strings.ToUpper(p.AltName)] = p
		}
	}
	return s
}

func (s *Store) Pairs() store.Pairs { return pairStore{s: s} }

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.sem }()

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{s: s}
	defer func() {
		if r := recover(); r != nil {
			tx.rollback()
			panic(r)
		}
	}()
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

type memTx struct {
	s    *Store
	undo []func()
}

func (t *memTx) Balances() store.Balances { return ledgerStore{tx: t} }
func (t *memTx) Orders() store.Orders     { return orderStore{tx: t} }
func (t *memTx) Trades() store.Trades     { return tradeStore{tx: t} }

func (t *memTx) onRollback(fn func()) {
	t.undo = append(t.undo, fn)
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

var _ store.UnitOfWork = (*Store)(nil)
