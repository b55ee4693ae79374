package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticLookupIsCaseInsensitive(t *testing.T) {
	o := NewStatic(map[string]decimal.Decimal{"XXBTZUSD": decimal.NewFromInt(60000)})
	p, err := o.ReferencePrice(context.Background(), "xxbtzusd")
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.NewFromInt(60000)))

	_, err = o.ReferencePrice(context.Background(), "XETHZUSD")
	assert.ErrorIs(t, err, ErrNoPrice)
}

func TestStaticRejectsNonPositive(t *testing.T) {
	o := NewStatic(map[string]decimal.Decimal{"ZERO": decimal.Zero})
	_, err := o.ReferencePrice(context.Background(), "ZERO")
	assert.ErrorIs(t, err, ErrInvalidPrice)
	assert.ErrorIs(t, o.Set("XXBTZUSD", decimal.NewFromInt(-1)), ErrInvalidPrice)
}

func TestWithTimeoutAbandonsSlowOracle(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	slow := OracleFunc(func(ctx context.Context, pair string) (decimal.Decimal, error) {
		<-block
		return decimal.NewFromInt(1), nil
	})
	start := time.Now()
	_, err := WithTimeout(slow, 20*time.Millisecond).ReferencePrice(context.Background(), "X")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWithTimeoutRejectsNonPositive(t *testing.T) {
	bad := OracleFunc(func(ctx context.Context, pair string) (decimal.Decimal, error) {
		return decimal.Zero, nil
	})
	_, err := WithTimeout(bad, time.Second).ReferencePrice(context.Background(), "X")
	assert.ErrorIs(t, err, ErrInvalidPrice)
}
