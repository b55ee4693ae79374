package postgres

import (
	"context"
	"errors"
	"strings"

	"spot-sandbox/internal/model"
	"spot-sandbox/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pairColumns = "name, altname, base, quote, pair_decimals, cost_decimals, lot_decimals, ordermin, costmin, status"

type pairStore struct {
	pool *pgxpool.Pool
}

func (p pairStore) Get(ctx context.Context, nameOrAlt string) (model.Pair, error) {
	key := strings.ToUpper(strings.TrimSpace(nameOrAlt))
	row := p.pool.QueryRow(ctx, "select "+pairColumns+" from pairs where upper(name) = $1 or upper(altname) = $1 limit 1", key)
	pair, err := scanPair(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Pair{}, store.ErrPairNotFound
	}
	if err != nil {
		return model.Pair{}, err
	}
	if !pair.Online() {
		return model.Pair{}, store.ErrPairNotFound
	}
	return pair, nil
}

func (p pairStore) List(ctx context.Context) ([]model.Pair, error) {
	rows, err := p.pool.Query(ctx, "select "+pairColumns+" from pairs order by name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Pair
	for rows.Next() {
		pair, err := scanPair(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pair)
	}
	return out, rows.Err()
}

func scanPair(row pgx.Row) (model.Pair, error) {
	var p model.Pair
	err := row.Scan(&p.Name, &p.AltName, &p.Base, &p.Quote, &p.PairDecimals, &p.CostDecimals, &p.LotDecimals, &p.OrderMin, &p.CostMin, &p.Status)
	return p, err
}
