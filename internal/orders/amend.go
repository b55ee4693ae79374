package orders

import (
	"context"
	"errors"
	"time"

	"spot-sandbox/internal/errs"
	"spot-sandbox/internal/events"
	"spot-sandbox/internal/metrics"
	"spot-sandbox/internal/model"
	"spot-sandbox/internal/store"
	"spot-sandbox/internal/types"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var icebergMinFraction = decimal.NewFromInt(15)

type EditOrderRequest struct {
	Account   string
	OrderID   string
	ClientRef string
	// Pair, when set, must name the order's pair.
	Pair          string
	Volume        *decimal.Decimal
	DisplayVolume *decimal.Decimal
	Price         *decimal.Decimal
	Price2        *decimal.Decimal
	NewClientRef  string
	// Validate checks the edit and describes it without writing anything.
	Validate bool
}

type EditOrderResult struct {
	NewOrderID      string
	OriginalOrderID string
	Volume          decimal.Decimal
	Price           *decimal.Decimal
	Price2          *decimal.Decimal
	OldClientRef    string
	NewClientRef    string
	Description     string
	OrdersCanceled  int
}

// EditOrder cancels an open order and opens a replacement carrying the
// edited fields under a new id. The replacement is not matched again.
func (s *Service) EditOrder(ctx context.Context, req EditOrderRequest) (EditOrderResult, error) {
	defer metrics.ObserveOp("edit", time.Now())
	res, err := s.editOrder(ctx, req)
	if err != nil {
		err = errs.Internal(err, "edit order")
		s.logFailure("edit order", err, zap.String("account", req.Account), zap.String("order_id", req.OrderID))
		return EditOrderResult{}, err
	}
	if req.Validate {
		return res, nil
	}
	metrics.OrdersAmended.WithLabelValues("edit").Inc()
	s.pub.Publish(events.Event{Type: events.TypeOrderReplaced, Account: req.Account, Data: res})
	s.log.Info("order replaced",
		zap.String("account", req.Account),
		zap.String("order_id", res.OriginalOrderID),
		zap.String("new_order_id", res.NewOrderID))
	return res, nil
}

func (s *Service) editOrder(ctx context.Context, req EditOrderRequest) (EditOrderResult, error) {
	if err := validateEdit(req); err != nil {
		return EditOrderResult{}, err
	}
	var res EditOrderResult
	err := s.inTx(ctx, func(ctx context.Context, tx store.Tx) error {
		orig, err := locate(ctx, tx, req.Account, req.OrderID, req.ClientRef)
		if err != nil {
			return err
		}
		if !orig.IsOpen() {
			return errs.Newf(errs.OrderNotOpen, "order %s is %s", orig.ID, orig.Status)
		}
		if orig.Kind == types.OrderKindMarket {
			return errs.ErrCannotEditMarketOrder
		}
		if req.Pair != "" {
			pair, err := s.uow.Pairs().Get(ctx, req.Pair)
			if err != nil || pair.Name != orig.Pair {
				return errs.Newf(errs.InvalidArguments, "pair %s does not match order", req.Pair)
			}
		}
		pair, err := s.uow.Pairs().Get(ctx, orig.Pair)
		if err != nil {
			return err
		}
		if req.Volume != nil && req.Volume.LessThan(orig.ExecutedVolume) {
			return errs.Newf(errs.InvalidVolume, "new volume %s below executed %s", req.Volume, orig.ExecutedVolume)
		}

		update := model.FieldUpdate{Price: req.Price, Price2: req.Price2, Volume: req.Volume}
		if req.DisplayVolume != nil {
			update.Aux = model.AuxData{}.WithDisplayQty(*req.DisplayVolume)
		}
		next := update.Apply(orig)
		if err := checkFields(pair, &next.Volume, next.Price, next.Price2); err != nil {
			return err
		}
		next.ExecutedVolume = decimal.Zero
		next.ReplacesID = orig.ID
		if req.NewClientRef != "" {
			next.ClientRef = req.NewClientRef
		}
		res = EditOrderResult{
			OriginalOrderID: orig.ID,
			Volume:          next.Volume,
			Price:           next.Price,
			Price2:          next.Price2,
			OldClientRef:    orig.ClientRef,
			NewClientRef:    next.ClientRef,
			Description:     Describe(next.Side, next.Volume, next.Pair, next.Kind, next.Price),
		}
		if req.Validate {
			return nil
		}

		to, err := types.Transition(orig.Status, types.OrderOpReplace)
		if err != nil {
			return errs.Wrap(errs.OrderNotOpen, err, orig.ID)
		}
		now := s.clock.Now()
		if _, err := tx.Orders().UpdateStatus(ctx, orig.ID, to, now); err != nil {
			return err
		}
		next.ID = s.ids.OrderID()
		next.OpenedAt = now
		next.ClosedAt = nil
		next.Status = types.OrderStatusOpen
		if _, err := tx.Orders().Create(ctx, next); err != nil {
			return err
		}
		res.NewOrderID = next.ID
		res.OrdersCanceled = 1
		return nil
	})
	return res, err
}

func validateEdit(req EditOrderRequest) error {
	switch {
	case req.Account == "":
		return errs.New(errs.InvalidArguments, "account required")
	case req.OrderID == "" && req.ClientRef == "":
		return errs.New(errs.InvalidArguments, "txid or userref required")
	case req.Volume == nil && req.DisplayVolume == nil && req.Price == nil && req.Price2 == nil:
		return errs.New(errs.InvalidArguments, "no parameters to edit")
	}
	for name, v := range map[string]*decimal.Decimal{
		"volume": req.Volume, "displayvol": req.DisplayVolume, "price": req.Price, "price2": req.Price2,
	} {
		if v != nil && !v.IsPositive() {
			return errs.Newf(errs.InvalidArguments, "%s must be positive", name)
		}
	}
	return nil
}

type AmendOrderRequest struct {
	Account       string
	OrderID       string
	ClientOrderID string
	OrderQty      *decimal.Decimal
	DisplayQty    *decimal.Decimal
	LimitPrice    *decimal.Decimal
	TriggerPrice  *decimal.Decimal
}

type AmendOrderResult struct {
	AmendID string
	OrderID string
}

// AmendOrder changes the supplied fields of an open order in place. The
// order keeps its id and nothing else about it changes.
func (s *Service) AmendOrder(ctx context.Context, req AmendOrderRequest) (AmendOrderResult, error) {
	defer metrics.ObserveOp("amend", time.Now())
	res, err := s.amendOrder(ctx, req)
	if err != nil {
		err = errs.Internal(err, "amend order")
		s.logFailure("amend order", err, zap.String("account", req.Account), zap.String("order_id", req.OrderID))
		return AmendOrderResult{}, err
	}
	metrics.OrdersAmended.WithLabelValues("amend").Inc()
	s.pub.Publish(events.Event{Type: events.TypeOrderAmended, Account: req.Account, Data: res})
	s.log.Info("order amended",
		zap.String("account", req.Account),
		zap.String("order_id", res.OrderID),
		zap.String("amend_id", res.AmendID))
	return res, nil
}

func (s *Service) amendOrder(ctx context.Context, req AmendOrderRequest) (AmendOrderResult, error) {
	if err := validateAmend(req); err != nil {
		return AmendOrderResult{}, err
	}
	var res AmendOrderResult
	err := s.inTx(ctx, func(ctx context.Context, tx store.Tx) error {
		o, err := locate(ctx, tx, req.Account, req.OrderID, req.ClientOrderID)
		if err != nil {
			return err
		}
		if _, err := types.Transition(o.Status, types.OrderOpAmend); err != nil {
			return errs.Wrap(errs.OrderNotOpen, err, o.ID)
		}
		if o.Kind == types.OrderKindMarket {
			return errs.ErrCannotAmendMarketOrder
		}
		pair, err := s.uow.Pairs().Get(ctx, o.Pair)
		if err != nil {
			return err
		}
		if err := checkFields(pair, req.OrderQty, req.LimitPrice, req.TriggerPrice); err != nil {
			return err
		}
		qty := o.Volume
		if req.OrderQty != nil {
			if req.OrderQty.LessThan(o.ExecutedVolume) {
				return errs.Newf(errs.InvalidOrderQty, "order_qty %s below executed %s", req.OrderQty, o.ExecutedVolume)
			}
			qty = *req.OrderQty
		}
		update := model.FieldUpdate{Volume: req.OrderQty, Price: req.LimitPrice, Price2: req.TriggerPrice}
		if req.DisplayQty != nil {
			if req.DisplayQty.Mul(icebergMinFraction).LessThan(qty) {
				return errs.Newf(errs.InvalidDisplayQty, "display_qty %s below 1/15 of %s", req.DisplayQty, qty)
			}
			update.Aux = model.AuxData{}.WithDisplayQty(*req.DisplayQty)
		}
		_, err = tx.Orders().UpdateFields(ctx, o.ID, update)
		if errors.Is(err, store.ErrOrderNotEditable) {
			return errs.Newf(errs.OrderNotOpen, "order %s closed during amend", o.ID)
		}
		if err != nil {
			return err
		}
		res = AmendOrderResult{AmendID: s.ids.AmendID(), OrderID: o.ID}
		return nil
	})
	return res, err
}

func validateAmend(req AmendOrderRequest) error {
	switch {
	case req.Account == "":
		return errs.New(errs.InvalidArguments, "account required")
	case req.OrderID == "" && req.ClientOrderID == "":
		return errs.New(errs.InvalidArguments, "txid or cl_ord_id required")
	case req.OrderQty == nil && req.DisplayQty == nil && req.LimitPrice == nil && req.TriggerPrice == nil:
		return errs.New(errs.InvalidArguments, "no parameters to amend")
	case req.OrderQty != nil && !req.OrderQty.IsPositive():
		return errs.New(errs.InvalidOrderQty, "order_qty must be positive")
	case req.DisplayQty != nil && !req.DisplayQty.IsPositive():
		return errs.New(errs.InvalidDisplayQty, "display_qty must be positive")
	case req.LimitPrice != nil && !req.LimitPrice.IsPositive():
		return errs.New(errs.InvalidArguments, "limit_price must be positive")
	case req.TriggerPrice != nil && !req.TriggerPrice.IsPositive():
		return errs.New(errs.InvalidArguments, "trigger_price must be positive")
	}
	return nil
}

func locate(ctx context.Context, tx store.Tx, account, id, clientRef string) (model.Order, error) {
	if id != "" {
		return tx.Orders().GetByID(ctx, account, id)
	}
	return tx.Orders().GetByClientRef(ctx, account, clientRef)
}
