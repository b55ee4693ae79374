package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"spot-sandbox/internal/clock"
	"spot-sandbox/internal/errs"
	"spot-sandbox/internal/events"
	"spot-sandbox/internal/ids"
	"spot-sandbox/internal/matching"
	"spot-sandbox/internal/metrics"
	"spot-sandbox/internal/model"
	"spot-sandbox/internal/pricing"
	"spot-sandbox/internal/store"
	"spot-sandbox/internal/types"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Options struct {
	// FeeRate is the taker fee as a fraction, 0.0026 for 0.26%.
	FeeRate       decimal.Decimal
	BandPct       decimal.Decimal
	OracleTimeout time.Duration
	StoreTimeout  time.Duration
}

func DefaultOptions() Options {
	return Options{
		FeeRate:       matching.DefaultFeeRate,
		BandPct:       decimal.NewFromInt(matching.DefaultBandPct),
		OracleTimeout: 2 * time.Second,
		StoreTimeout:  5 * time.Second,
	}
}

type Service struct {
	uow    store.UnitOfWork
	oracle pricing.Oracle
	clock  clock.Clock
	ids    ids.Generator
	pub    events.Publisher
	log    *zap.Logger
	opts   Options
}

func NewService(uow store.UnitOfWork, oracle pricing.Oracle, clk clock.Clock, gen ids.Generator, pub events.Publisher, log *zap.Logger, opts Options) *Service {
	if pub == nil {
		pub = events.Discard{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		uow:    uow,
		oracle: pricing.WithTimeout(oracle, opts.OracleTimeout),
		clock:  clk,
		ids:    gen,
		pub:    pub,
		log:    log,
		opts:   opts,
	}
}

type PlaceOrderRequest struct {
	Account   string
	Pair      string
	Side      types.OrderSide
	Kind      types.OrderKind
	Volume    decimal.Decimal
	Price     *decimal.Decimal
	Price2    *decimal.Decimal
	ClientRef string
	Aux       model.AuxData
}

type PlaceOrderResult struct {
	OrderID     string
	TradeID     string
	Description string
	Status      types.OrderStatus
}

// PlaceOrder validates and persists an order, then executes it immediately
// when the matching policy allows. The order is written open before
// settlement; a failed settlement leaves it open and unexecuted and the
// returned error carries its id.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (PlaceOrderResult, error) {
	defer metrics.ObserveOp("place", time.Now())
	res, err := s.placeOrder(ctx, req)
	metrics.OrdersPlaced.WithLabelValues(kindLabel(req.Kind), sideLabel(req.Side), placeOutcome(res, err)).Inc()
	if err != nil {
		s.logFailure("place order", err, zap.String("account", req.Account), zap.String("pair", req.Pair))
		return res, err
	}
	s.log.Info("order placed",
		zap.String("account", req.Account),
		zap.String("order_id", res.OrderID),
		zap.String("status", string(res.Status)),
		zap.String("descr", res.Description))
	return res, nil
}

func placeOutcome(res PlaceOrderResult, err error) string {
	switch {
	case err == nil && res.Status == types.OrderStatusClosed:
		return "executed"
	case err == nil:
		return "resting"
	case errs.CodeOf(err) == errs.InternalError:
		return "failed"
	default:
		return "rejected"
	}
}

func kindLabel(k types.OrderKind) string {
	if !k.Valid() {
		return "invalid"
	}
	return string(k)
}

func sideLabel(sd types.OrderSide) string {
	if !sd.Valid() {
		return "invalid"
	}
	return string(sd)
}

func (s *Service) placeOrder(ctx context.Context, req PlaceOrderRequest) (PlaceOrderResult, error) {
	if err := validatePlace(req); err != nil {
		return PlaceOrderResult{}, err
	}
	pair, err := s.pair(ctx, req.Pair)
	if err != nil {
		return PlaceOrderResult{}, err
	}
	if err := checkPrecision(req, pair); err != nil {
		return PlaceOrderResult{}, err
	}

	order := model.Order{
		Account:   req.Account,
		Pair:      pair.Name,
		Side:      req.Side,
		Kind:      req.Kind,
		Price:     req.Price,
		Price2:    req.Price2,
		Volume:    req.Volume,
		Status:    types.OrderStatusOpen,
		ClientRef: req.ClientRef,
		Aux:       req.Aux.Clone(),
	}

	ref, err := s.oracle.ReferencePrice(ctx, pair.Name)
	if err != nil {
		return PlaceOrderResult{}, errs.Wrap(errs.InternalError, err, "reference price unavailable")
	}
	asset, need := matching.Required(order, ref, pair)
	if pair.CostMin.IsPositive() && req.Side == types.OrderSideBuy && need.LessThan(pair.CostMin) {
		return PlaceOrderResult{}, errs.Newf(errs.InvalidArguments, "cost %s below minimum %s", need, pair.CostMin)
	}
	var have decimal.Decimal
	err = s.inTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		have, err = tx.Balances().Get(ctx, order.Account, asset)
		return err
	})
	if err != nil {
		return PlaceOrderResult{}, errs.Internal(err, "read balance")
	}
	if have.LessThan(need) {
		return PlaceOrderResult{}, errs.Newf(errs.InsufficientFunds, "%s balance %s below required %s", asset, have, need)
	}

	order.ID = s.ids.OrderID()
	order.OpenedAt = s.clock.Now()
	err = s.inTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.Orders().Create(ctx, order)
		return err
	})
	if err != nil {
		return PlaceOrderResult{}, errs.Internal(err, "persist order")
	}
	res := PlaceOrderResult{
		OrderID:     order.ID,
		Description: Describe(order.Side, order.Volume, order.Pair, order.Kind, order.Price),
		Status:      types.OrderStatusOpen,
	}
	s.pub.Publish(events.Event{Type: events.TypeOrderPlaced, Account: order.Account, Data: order})

	decision := matching.Decide(order, ref, s.opts.BandPct)
	if !decision.Execute {
		return res, nil
	}
	trade, err := s.settle(ctx, order, decision.Price, pair)
	if errors.Is(err, errSettleRejected) {
		res.Status = types.OrderStatusCanceled
		s.pub.Publish(events.Event{Type: events.TypeOrderCanceled, Account: order.Account, Data: order.ID})
		return res, errs.WithOrder(errs.New(errs.InsufficientFunds, "balance changed before settlement"), order.ID)
	}
	if err != nil {
		return res, errs.WithOrder(errs.Internal(err, "settle order"), order.ID)
	}
	res.TradeID = trade.ID
	res.Status = types.OrderStatusClosed
	metrics.TradesExecuted.WithLabelValues(pair.Name).Inc()
	s.pub.Publish(events.Event{Type: events.TypeTradeExecuted, Account: order.Account, Data: trade})
	return res, nil
}

var errSettleRejected = errors.New("ledger rejected settlement")

// settle records the trade, moves the balances and closes the order in one
// unit of work. It is detached from the caller's cancellation so a commit
// is never abandoned halfway through a client disconnect.
func (s *Service) settle(ctx context.Context, order model.Order, price decimal.Decimal, pair model.Pair) (model.Trade, error) {
	to, err := types.Transition(order.Status, types.OrderOpExecute)
	if err != nil {
		return model.Trade{}, errs.Wrap(errs.OrderNotOpen, err, order.ID)
	}
	st := matching.Settle(order, price, s.opts.FeeRate, pair)
	now := s.clock.Now()
	trade := model.Trade{
		ID:         s.ids.TradeID(),
		Account:    order.Account,
		OrderID:    order.ID,
		Pair:       order.Pair,
		Side:       order.Side,
		Price:      price,
		Cost:       st.Cost,
		Fee:        st.Fee,
		Volume:     order.Volume,
		ExecutedAt: now,
	}
	rejected := false
	err = s.inTx(context.WithoutCancel(ctx), func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.Balances().ApplyMultiDelta(ctx, st.Deltas); err != nil {
			if !errors.Is(err, store.ErrInsufficientBalance) {
				return err
			}
			// Funds moved after the pre-check; the order is canceled instead.
			canceled, terr := types.Transition(order.Status, types.OrderOpCancel)
			if terr != nil {
				return errs.Wrap(errs.OrderNotOpen, terr, order.ID)
			}
			if _, err := tx.Orders().UpdateStatus(ctx, order.ID, canceled, now); err != nil {
				return err
			}
			rejected = true
			return nil
		}
		if err := tx.Trades().Create(ctx, trade); err != nil {
			return fmt.Errorf("create trade: %w", err)
		}
		_, err := tx.Orders().UpdateExecution(ctx, order.ID, order.Volume, now, to)
		return err
	})
	if err == nil && rejected {
		return model.Trade{}, errSettleRejected
	}
	return trade, err
}

// CancelOrder moves an open order to canceled and returns the number of
// orders affected.
func (s *Service) CancelOrder(ctx context.Context, account, orderID string) (int, error) {
	defer metrics.ObserveOp("cancel", time.Now())
	if account == "" || orderID == "" {
		return 0, errs.New(errs.InvalidArguments, "account and txid required")
	}
	var canceled model.Order
	err := s.inTx(ctx, func(ctx context.Context, tx store.Tx) error {
		o, err := tx.Orders().GetByID(ctx, account, orderID)
		if err != nil {
			return err
		}
		to, err := types.Transition(o.Status, types.OrderOpCancel)
		if err != nil {
			return errs.Wrap(errs.OrderNotOpen, err, orderID)
		}
		canceled, err = tx.Orders().UpdateStatus(ctx, o.ID, to, s.clock.Now())
		return err
	})
	if err != nil {
		err = errs.Internal(err, "cancel order")
		s.logFailure("cancel order", err, zap.String("account", account), zap.String("order_id", orderID))
		return 0, err
	}
	metrics.OrdersCanceled.Inc()
	s.pub.Publish(events.Event{Type: events.TypeOrderCanceled, Account: account, Data: canceled})
	s.log.Info("order canceled", zap.String("account", account), zap.String("order_id", orderID))
	return 1, nil
}

func (s *Service) pair(ctx context.Context, name string) (model.Pair, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	p, err := s.uow.Pairs().Get(ctx, name)
	if err != nil {
		return model.Pair{}, errs.Internal(err, "pair lookup")
	}
	return p, nil
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.uow.InTx(ctx, fn)
}

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.StoreTimeout)
}

func (s *Service) logFailure(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("code", string(errs.CodeOf(err))), zap.Error(err))
	var e *errs.Error
	if errors.As(err, &e) && e.OrderID != "" {
		fields = append(fields, zap.String("order_id", e.OrderID))
	}
	if errs.CodeOf(err) == errs.InternalError {
		s.log.Error(msg, fields...)
		return
	}
	s.log.Info(msg, fields...)
}

func validatePlace(req PlaceOrderRequest) error {
	switch {
	case strings.TrimSpace(req.Account) == "":
		return errs.New(errs.InvalidArguments, "account required")
	case req.Pair == "":
		return errs.New(errs.InvalidArguments, "pair required")
	case !req.Side.Valid():
		return errs.Newf(errs.InvalidArguments, "invalid side %q", req.Side)
	case !req.Kind.Valid():
		return errs.Newf(errs.InvalidArguments, "invalid ordertype %q", req.Kind)
	case !req.Volume.IsPositive():
		return errs.New(errs.InvalidArguments, "volume must be positive")
	case req.Kind.LimitFamily() && req.Price == nil:
		return errs.Newf(errs.InvalidArguments, "price required for %s order", req.Kind)
	case req.Kind == types.OrderKindMarket && req.Price != nil:
		return errs.New(errs.InvalidArguments, "price not allowed for market order")
	case req.Price != nil && !req.Price.IsPositive():
		return errs.New(errs.InvalidArguments, "price must be positive")
	case req.Price2 != nil && !req.Price2.IsPositive():
		return errs.New(errs.InvalidArguments, "price2 must be positive")
	}
	if err := req.Aux.Validate(); err != nil {
		return errs.Wrap(errs.InvalidArguments, err, "aux")
	}
	return nil
}

func checkPrecision(req PlaceOrderRequest, pair model.Pair) error {
	return checkFields(pair, &req.Volume, req.Price, req.Price2)
}

// checkFields applies the pair's lot and price precision and its minimum
// order size to whichever of the fields are set.
func checkFields(pair model.Pair, volume, price, price2 *decimal.Decimal) error {
	if volume != nil {
		if !fits(*volume, pair.LotDecimals) {
			return errs.Newf(errs.InvalidArguments, "volume has more than %d decimals", pair.LotDecimals)
		}
		if pair.OrderMin.IsPositive() && volume.LessThan(pair.OrderMin) {
			return errs.Newf(errs.InvalidArguments, "volume below minimum %s", pair.OrderMin)
		}
	}
	for _, p := range []*decimal.Decimal{price, price2} {
		if p != nil && !fits(*p, pair.PairDecimals) {
			return errs.Newf(errs.InvalidArguments, "price has more than %d decimals", pair.PairDecimals)
		}
	}
	return nil
}

func fits(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Truncate(places))
}

// Describe renders an order the way it is echoed back to clients, e.g.
// "buy 0.01 XXBTZUSD @ market" or "sell 1.5 XETHZUSD @ limit 2000".
func Describe(side types.OrderSide, volume decimal.Decimal, pair string, kind types.OrderKind, price *decimal.Decimal) string {
	out := fmt.Sprintf("%s %s %s @ %s", side, volume.String(), pair, kind)
	if price != nil && kind != types.OrderKindMarket {
		out += " " + price.String()
	}
	return out
}
