package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"spot-sandbox/internal/model"
	"spot-sandbox/internal/store"
	"spot-sandbox/internal/types"

	"github.com/shopspring/decimal"
)

type orderStore struct {
	tx *memTx
}

func (o orderStore) Create(ctx context.Context, order model.Order) (model.Order, error) {
	s := o.tx.s
	if order.ID == "" {
		return model.Order{}, errors.New("order id required")
	}
	if _, ok := s.orders[order.ID]; ok {
		return model.Order{}, store.ErrDuplicateOrder
	}
	if order.ClientRef != "" {
		for _, row := range s.orders {
			ex := row.order
			if ex.Account == order.Account && ex.ClientRef == order.ClientRef && ex.IsOpen() {
				return model.Order{}, fmt.Errorf("client ref %s: %w", order.ClientRef, store.ErrDuplicateOrder)
			}
		}
	}
	s.nextSeq++
	row := &orderRow{order: order.Clone(), seq: s.nextSeq}
	s.orders[order.ID] = row
	s.orderSeq = append(s.orderSeq, order.ID)
	o.tx.onRollback(func() {
		delete(s.orders, order.ID)
		for i := len(s.orderSeq) - 1; i >= 0; i-- {
			if s.orderSeq[i] == order.ID {
				s.orderSeq = append(s.orderSeq[:i], s.orderSeq[i+1:]...)
				break
			}
		}
	})
	return order.Clone(), nil
}

func (o orderStore) GetByID(ctx context.Context, account, id string) (model.Order, error) {
	row, ok := o.tx.s.orders[id]
	if !ok || (account != "" && row.order.Account != account) {
		return model.Order{}, store.ErrOrderNotFound
	}
	return row.order.Clone(), nil
}

func (o orderStore) GetByClientRef(ctx context.Context, account, ref string) (model.Order, error) {
	if ref == "" {
		return model.Order{}, store.ErrOrderNotFound
	}
	var latest *orderRow
	for i := len(o.tx.s.orderSeq) - 1; i >= 0; i-- {
		row := o.tx.s.orders[o.tx.s.orderSeq[i]]
		if row.order.Account != account || row.order.ClientRef != ref {
			continue
		}
		if row.order.IsOpen() {
			return row.order.Clone(), nil
		}
		if latest == nil {
			latest = row
		}
	}
	if latest == nil {
		return model.Order{}, store.ErrOrderNotFound
	}
	return latest.order.Clone(), nil
}

func (o orderStore) List(ctx context.Context, f store.OrderFilter) ([]model.Order, int, error) {
	var matched []model.Order
	for _, id := range o.tx.s.orderSeq {
		ord := o.tx.s.orders[id].order
		if !matchOrder(ord, f) {
			continue
		}
		matched = append(matched, ord.Clone())
	}
	if f.NewestClosedFirst {
		sort.SliceStable(matched, func(i, j int) bool {
			return closedAfter(matched[i], matched[j])
		})
	}
	total := len(matched)
	start, end := store.Page(f.Offset, f.Limit, total)
	return matched[start:end], total, nil
}

func matchOrder(o model.Order, f store.OrderFilter) bool {
	if f.Account != "" && o.Account != f.Account {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if o.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.ClientRef != "" && o.ClientRef != f.ClientRef {
		return false
	}
	if f.ClosedFrom != nil && (o.ClosedAt == nil || o.ClosedAt.Before(*f.ClosedFrom)) {
		return false
	}
	if f.ClosedTo != nil && (o.ClosedAt == nil || o.ClosedAt.After(*f.ClosedTo)) {
		return false
	}
	return true
}

// closedAfter orders by close time descending; unclosed orders sort last.
func closedAfter(a, b model.Order) bool {
	switch {
	case a.ClosedAt == nil:
		return false
	case b.ClosedAt == nil:
		return true
	}
	return a.ClosedAt.After(*b.ClosedAt)
}

func (o orderStore) UpdateStatus(ctx context.Context, id string, to types.OrderStatus, closedAt time.Time) (model.Order, error) {
	if !to.Terminal() {
		return model.Order{}, fmt.Errorf("status %s is not terminal", to)
	}
	return o.mutate(id, store.ErrOrderNotOpen, func(ord *model.Order) error {
		ord.Status = to
		t := closedAt
		ord.ClosedAt = &t
		return nil
	})
}

func (o orderStore) UpdateExecution(ctx context.Context, id string, executed decimal.Decimal, closedAt time.Time, status types.OrderStatus) (model.Order, error) {
	return o.mutate(id, store.ErrOrderNotOpen, func(ord *model.Order) error {
		if executed.LessThan(ord.ExecutedVolume) {
			return fmt.Errorf("executed volume cannot decrease from %s to %s", ord.ExecutedVolume, executed)
		}
		if executed.GreaterThan(ord.Volume) {
			return fmt.Errorf("executed volume %s exceeds volume %s", executed, ord.Volume)
		}
		ord.ExecutedVolume = executed
		ord.Status = status
		if status.Terminal() {
			t := closedAt
			ord.ClosedAt = &t
		}
		return nil
	})
}

func (o orderStore) UpdateFields(ctx context.Context, id string, u model.FieldUpdate) (model.Order, error) {
	if u.Empty() {
		return model.Order{}, store.ErrNothingToUpdate
	}
	return o.mutate(id, store.ErrOrderNotEditable, func(ord *model.Order) error {
		next := u.Apply(*ord)
		if next.Volume.LessThan(next.ExecutedVolume) {
			return fmt.Errorf("volume %s below executed %s", next.Volume, next.ExecutedVolume)
		}
		*ord = next
		return nil
	})
}

// mutate applies fn to the stored order only while it is still open.
func (o orderStore) mutate(id string, notOpen error, fn func(*model.Order) error) (model.Order, error) {
	row, ok := o.tx.s.orders[id]
	if !ok {
		return model.Order{}, store.ErrOrderNotFound
	}
	if !row.order.IsOpen() {
		return model.Order{}, notOpen
	}
	prev := row.order.Clone()
	next := row.order.Clone()
	if err := fn(&next); err != nil {
		return model.Order{}, err
	}
	row.order = next
	o.tx.onRollback(func() { row.order = prev })
	return next.Clone(), nil
}
