package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"spot-sandbox/internal/model"
	"spot-sandbox/internal/store"
	"spot-sandbox/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	orderColumns     = "id, account, pair, side, kind, price, price2, volume, executed_volume, status, opened_at, closed_at, client_ref, aux, replaces_id"
	orderSelectItems = "id, account, pair, side, kind, price, price2, volume, executed_volume, status, opened_at, closed_at, client_ref, aux::text, replaces_id"
)

type orderStore struct {
	tx pgx.Tx
}

func (o orderStore) Create(ctx context.Context, order model.Order) (model.Order, error) {
	aux, err := order.Aux.Encode()
	if err != nil {
		return model.Order{}, err
	}
	_, err = o.tx.Exec(ctx, "insert into orders ("+orderColumns+") values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14::text::jsonb,$15)",
		order.ID, order.Account, order.Pair, string(order.Side), string(order.Kind), order.Price, order.Price2,
		order.Volume, order.ExecutedVolume, string(order.Status), order.OpenedAt, order.ClosedAt, order.ClientRef, string(aux), order.ReplacesID)
	if pgCode(err) == pgUniqueViolation {
		return model.Order{}, fmt.Errorf("order %s: %w", order.ID, store.ErrDuplicateOrder)
	}
	if err != nil {
		return model.Order{}, err
	}
	return order.Clone(), nil
}

func (o orderStore) GetByID(ctx context.Context, account, id string) (model.Order, error) {
	row := o.tx.QueryRow(ctx, "select "+orderSelectItems+" from orders where id = $1 and ($2 = '' or account = $2)", id, account)
	return scanOrderRow(row)
}

func (o orderStore) GetByClientRef(ctx context.Context, account, ref string) (model.Order, error) {
	if ref == "" {
		return model.Order{}, store.ErrOrderNotFound
	}
	row := o.tx.QueryRow(ctx, "select "+orderSelectItems+" from orders where account = $1 and client_ref = $2 order by (status = 'open') desc, seq desc limit 1", account, ref)
	return scanOrderRow(row)
}

func (o orderStore) List(ctx context.Context, f store.OrderFilter) ([]model.Order, int, error) {
	where, args := orderWhere(f)
	var total int
	if err := o.tx.QueryRow(ctx, "select count(*) from orders"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	order := " order by seq asc"
	if f.NewestClosedFirst {
		order = " order by closed_at desc nulls last, seq asc"
	}
	q := "select " + orderSelectItems + " from orders" + where + order
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" limit $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += fmt.Sprintf(" offset $%d", len(args))
	}
	rows, err := o.tx.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []model.Order
	for rows.Next() {
		ord, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, ord)
	}
	return out, total, rows.Err()
}

func orderWhere(f store.OrderFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Account != "" {
		add("account = $%d", f.Account)
	}
	if len(f.Statuses) > 0 {
		st := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			st[i] = string(s)
		}
		add("status = any($%d)", st)
	}
	if f.ClientRef != "" {
		add("client_ref = $%d", f.ClientRef)
	}
	if f.ClosedFrom != nil {
		add("closed_at >= $%d", *f.ClosedFrom)
	}
	if f.ClosedTo != nil {
		add("closed_at <= $%d", *f.ClosedTo)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " where " + strings.Join(conds, " and "), args
}

func (o orderStore) UpdateStatus(ctx context.Context, id string, to types.OrderStatus, closedAt time.Time) (model.Order, error) {
	if !to.Terminal() {
		return model.Order{}, fmt.Errorf("status %s is not terminal", to)
	}
	row := o.tx.QueryRow(ctx, "update orders set status = $1, closed_at = $2 where id = $3 and status = 'open' returning "+orderSelectItems, string(to), closedAt, id)
	ord, err := scanOrderRow(row)
	if errors.Is(err, store.ErrOrderNotFound) {
		return model.Order{}, o.notOpen(ctx, id, store.ErrOrderNotOpen)
	}
	return ord, err
}

func (o orderStore) UpdateExecution(ctx context.Context, id string, executed decimal.Decimal, closedAt time.Time, status types.OrderStatus) (model.Order, error) {
	var closed *time.Time
	if status.Terminal() {
		closed = &closedAt
	}
	row := o.tx.QueryRow(ctx, `update orders set executed_volume = $1, status = $2, closed_at = $3
		where id = $4 and status = 'open' and executed_volume <= $1 and $1 <= volume
		returning `+orderSelectItems, executed, string(status), closed, id)
	ord, err := scanOrderRow(row)
	if errors.Is(err, store.ErrOrderNotFound) {
		cur, gerr := o.GetByID(ctx, "", id)
		if gerr != nil {
			return model.Order{}, gerr
		}
		if !cur.IsOpen() {
			return model.Order{}, store.ErrOrderNotOpen
		}
		return model.Order{}, fmt.Errorf("executed volume %s out of range for order %s", executed, id)
	}
	return ord, err
}

func (o orderStore) UpdateFields(ctx context.Context, id string, u model.FieldUpdate) (model.Order, error) {
	if u.Empty() {
		return model.Order{}, store.ErrNothingToUpdate
	}
	row := o.tx.QueryRow(ctx, "select "+orderSelectItems+" from orders where id = $1 for update", id)
	cur, err := scanOrderRow(row)
	if err != nil {
		return model.Order{}, err
	}
	if !cur.IsOpen() {
		return model.Order{}, store.ErrOrderNotEditable
	}
	next := u.Apply(cur)
	if next.Volume.LessThan(next.ExecutedVolume) {
		return model.Order{}, fmt.Errorf("volume %s below executed %s", next.Volume, next.ExecutedVolume)
	}
	aux, err := next.Aux.Encode()
	if err != nil {
		return model.Order{}, err
	}
	row = o.tx.QueryRow(ctx, "update orders set price = $1, price2 = $2, volume = $3, aux = $4::text::jsonb where id = $5 and status = 'open' returning "+orderSelectItems,
		next.Price, next.Price2, next.Volume, string(aux), id)
	ord, err := scanOrderRow(row)
	if errors.Is(err, store.ErrOrderNotFound) {
		return model.Order{}, store.ErrOrderNotEditable
	}
	return ord, err
}

// notOpen distinguishes a missing order from one that already left open.
func (o orderStore) notOpen(ctx context.Context, id string, notOpen error) error {
	var exists bool
	if err := o.tx.QueryRow(ctx, "select exists(select 1 from orders where id = $1)", id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return store.ErrOrderNotFound
	}
	return notOpen
}

func scanOrderRow(row pgx.Row) (model.Order, error) {
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Order{}, store.ErrOrderNotFound
	}
	return o, err
}

func scanOrder(row pgx.Row) (model.Order, error) {
	var o model.Order
	var side, kind, status, aux string
	var price, price2 *decimal.Decimal
	var closedAt *time.Time
	err := row.Scan(&o.ID, &o.Account, &o.Pair, &side, &kind, &price, &price2, &o.Volume, &o.ExecutedVolume,
		&status, &o.OpenedAt, &closedAt, &o.ClientRef, &aux, &o.ReplacesID)
	if err != nil {
		return o, err
	}
	o.Side = types.OrderSide(side)
	o.Kind = types.OrderKind(kind)
	o.Status = types.OrderStatus(status)
	o.Price = price
	o.Price2 = price2
	o.OpenedAt = o.OpenedAt.UTC()
	if closedAt != nil {
		t := closedAt.UTC()
		o.ClosedAt = &t
	}
	o.Aux, err = model.DecodeAux([]byte(aux))
	return o, err
}
