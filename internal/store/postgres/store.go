// Package postgres implements the store contracts on PostgreSQL through pgx.
// Balance safety is enforced by the database: every debit is a conditional
// upsert and the balances table carries a non-negative check.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"spot-sandbox/internal/model"
	"spot-sandbox/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the schema if needed and upserts the configured pairs.
func (s *Store) Migrate(ctx context.Context, pairs []model.Pair) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	for _, p := range pairs {
		_, err := s.pool.Exec(ctx, `insert into pairs (name, altname, base, quote, pair_decimals, cost_decimals, lot_decimals, ordermin, costmin, status)
			values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			on conflict (name) do update set altname = excluded.altname, base = excluded.base, quote = excluded.quote,
				pair_decimals = excluded.pair_decimals, cost_decimals = excluded.cost_decimals, lot_decimals = excluded.lot_decimals,
				ordermin = excluded.ordermin, costmin = excluded.costmin, status = excluded.status`,
			p.Name, p.AltName, p.Base, p.Quote, p.PairDecimals, p.CostDecimals, p.LotDecimals, p.OrderMin, p.CostMin, pairStatus(p))
		if err != nil {
			return fmt.Errorf("upsert pair %s: %w", p.Name, err)
		}
	}
	return nil
}

func pairStatus(p model.Pair) string {
	if p.Status == "" {
		return model.PairStatusOnline
	}
	return p.Status
}

func (s *Store) Pairs() store.Pairs { return pairStore{pool: s.pool} }

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := fn(ctx, pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgTx struct {
	tx pgx.Tx
}

func (t pgTx) Balances() store.Balances { return ledgerStore{tx: t.tx} }
func (t pgTx) Orders() store.Orders     { return orderStore{tx: t.tx} }
func (t pgTx) Trades() store.Trades     { return tradeStore{tx: t.tx} }

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

var _ store.UnitOfWork = (*Store)(nil)
