// Package pricing supplies reference prices for pairs.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNoPrice      = errors.New("no reference price")
	ErrInvalidPrice = errors.New("reference price must be positive")
)

type Oracle interface {
	ReferencePrice(ctx context.Context, pair string) (decimal.Decimal, error)
}

// Static serves prices from an in-memory table that can be updated at runtime.
type Static struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

func NewStatic(prices map[string]decimal.Decimal) *Static {
	s := &Static{prices: make(map[string]decimal.Decimal, len(prices))}
	for pair, p := range prices {
		s.prices[strings.ToUpper(pair)] = p
	}
	return s
}

func (s *Static) Set(pair string, price decimal.Decimal) error {
	if !price.IsPositive() {
		return ErrInvalidPrice
	}
	s.mu.Lock()
	s.prices[strings.ToUpper(pair)] = price
	s.mu.Unlock()
	return nil
}

func (s *Static) ReferencePrice(ctx context.Context, pair string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	s.mu.RLock()
	p, ok := s.prices[strings.ToUpper(pair)]
	s.mu.RUnlock()
	if !ok {
		return decimal.Zero, fmt.Errorf("%s: %w", pair, ErrNoPrice)
	}
	if !p.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s: %w", pair, ErrInvalidPrice)
	}
	return p, nil
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, pair string) (decimal.Decimal, error)

func (f OracleFunc) ReferencePrice(ctx context.Context, pair string) (decimal.Decimal, error) {
	return f(ctx, pair)
}

type timeoutOracle struct {
	next    Oracle
	timeout time.Duration
}

// WithTimeout bounds every call to next. A slow oracle that ignores its
// context is abandoned once the deadline passes.
func WithTimeout(next Oracle, d time.Duration) Oracle {
	if d <= 0 {
		return next
	}
	return timeoutOracle{next: next, timeout: d}
}

func (t timeoutOracle) ReferencePrice(ctx context.Context, pair string) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type result struct {
		price decimal.Decimal
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		p, err := t.next.ReferencePrice(ctx, pair)
		ch <- result{p, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			return decimal.Zero, r.err
		}
		if !r.price.IsPositive() {
			return decimal.Zero, fmt.Errorf("%s: %w", pair, ErrInvalidPrice)
		}
		return r.price, nil
	case <-ctx.Done():
		return decimal.Zero, fmt.Errorf("reference price %s: %w", pair, ctx.Err())
	}
}
