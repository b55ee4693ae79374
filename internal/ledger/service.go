package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"spot-sandbox/internal/errs"
	"spot-sandbox/internal/events"
	"spot-sandbox/internal/model"
	"spot-sandbox/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrFaucetDisabled = errors.New("faucet disabled")

type Options struct {
	FaucetEnabled bool
	// FaucetMax caps a single funding call. Zero means no cap.
	FaucetMax    decimal.Decimal
	StoreTimeout time.Duration
}

type Service struct {
	uow  store.UnitOfWork
	pub  events.Publisher
	log  *zap.Logger
	opts Options
}

func NewService(uow store.UnitOfWork, pub events.Publisher, log *zap.Logger, opts Options) *Service {
	if pub == nil {
		pub = events.Discard{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{uow: uow, pub: pub, log: log, opts: opts}
}

func (s *Service) Balances(ctx context.Context, account string) (map[string]decimal.Decimal, error) {
	if account == "" {
		return nil, errs.New(errs.InvalidArguments, "account required")
	}
	var out map[string]decimal.Decimal
	err := s.inTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Balances().All(ctx, account)
		return err
	})
	return out, errs.Internal(err, "balances")
}

type Funding struct {
	Account string          `json:"account"`
	Asset   string          `json:"asset"`
	Amount  decimal.Decimal `json:"amount"`
	Balance decimal.Decimal `json:"balance"`
}

// Fund credits amount of asset to account. The asset must be the base or
// quote of a listed pair.
func (s *Service) Fund(ctx context.Context, account, asset string, amount decimal.Decimal) (Funding, error) {
	if !s.opts.FaucetEnabled {
		return Funding{}, ErrFaucetDisabled
	}
	asset = strings.ToUpper(strings.TrimSpace(asset))
	switch {
	case account == "":
		return Funding{}, errs.New(errs.InvalidArguments, "account required")
	case asset == "":
		return Funding{}, errs.New(errs.InvalidArguments, "asset required")
	case !amount.IsPositive():
		return Funding{}, errs.New(errs.InvalidArguments, "amount must be positive")
	case s.opts.FaucetMax.IsPositive() && amount.GreaterThan(s.opts.FaucetMax):
		return Funding{}, errs.Newf(errs.InvalidArguments, "amount exceeds faucet limit %s", s.opts.FaucetMax)
	}
	known, err := s.knownAsset(ctx, asset)
	if err != nil {
		return Funding{}, errs.Internal(err, "list pairs")
	}
	if !known {
		return Funding{}, errs.Newf(errs.InvalidArguments, "unknown asset %s", asset)
	}

	out := Funding{Account: account, Asset: asset, Amount: amount}
	err = s.inTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out.Balance, err = tx.Balances().ApplyDelta(ctx, model.Delta{Account: account, Asset: asset, Amount: amount})
		return err
	})
	if err != nil {
		err = errs.Internal(err, "fund")
		s.log.Error("fund failed", zap.String("account", account), zap.String("asset", asset), zap.Error(err))
		return Funding{}, err
	}
	s.pub.Publish(events.Event{Type: events.TypeBalanceFunded, Account: account, Data: out})
	s.log.Info("account funded",
		zap.String("account", account),
		zap.String("asset", asset),
		zap.String("amount", amount.String()))
	return out, nil
}

func (s *Service) knownAsset(ctx context.Context, asset string) (bool, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	pairs, err := s.uow.Pairs().List(ctx)
	if err != nil {
		return false, err
	}
	for _, p := range pairs {
		if p.Base == asset || p.Quote == asset {
			return true, nil
		}
	}
	return false, nil
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
