package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"spot-sandbox/internal/errs"
	"spot-sandbox/internal/events"
	"spot-sandbox/internal/model"
	"spot-sandbox/internal/store/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pairs = []model.Pair{
	{Name: "XXBTZUSD", Base: "XXBT", Quote: "ZUSD"},
	{Name: "XETHZUSD", Base: "XETH", Quote: "ZUSD"},
}

func newService(enabled bool, pub events.Publisher) *Service {
	return NewService(memory.New(pairs...), pub, nil, Options{
		FaucetEnabled: enabled,
		FaucetMax:     decimal.NewFromInt(100000),
	})
}

func TestFundCreditsAndAccumulates(t *testing.T) {
	ctx := context.Background()
	bus := events.NewBus()
	ch := bus.Subscribe("alice")
	defer bus.Unsubscribe(ch)
	svc := newService(true, bus)

	res, err := svc.Fund(ctx, "alice", "zusd", decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.Equal(t, "ZUSD", res.Asset)
	assert.True(t, res.Balance.Equal(decimal.NewFromInt(1000)))

	res, err = svc.Fund(ctx, "alice", "ZUSD", decimal.RequireFromString("0.5"))
	require.NoError(t, err)
	assert.True(t, res.Balance.Equal(decimal.RequireFromString("1000.5")))

	bal, err := svc.Balances(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, bal, 1)
	assert.True(t, bal["ZUSD"].Equal(decimal.RequireFromString("1000.5")))

	evt := <-ch
	assert.Equal(t, events.TypeBalanceFunded, evt.Type)
}

func TestFundRejections(t *testing.T) {
	ctx := context.Background()
	svc := newService(true, nil)
	cases := []struct {
		name    string
		account string
		asset   string
		amount  string
	}{
		{"no account", "", "ZUSD", "1"},
		{"no asset", "alice", "", "1"},
		{"zero", "alice", "ZUSD", "0"},
		{"negative", "alice", "ZUSD", "-5"},
		{"over cap", "alice", "ZUSD", "100000.01"},
		{"unknown asset", "alice", "ZEUR", "1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Fund(ctx, tc.account, tc.asset, decimal.RequireFromString(tc.amount))
			require.Error(t, err)
			assert.Equal(t, errs.InvalidArguments, errs.CodeOf(err))
		})
	}
	bal, err := svc.Balances(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, bal)
}

func TestBalancesArePerAccount(t *testing.T) {
	ctx := context.Background()
	svc := newService(true, nil)
	_, err := svc.Fund(ctx, "alice", "ZUSD", decimal.NewFromInt(400))
	require.NoError(t, err)
	_, err = svc.Fund(ctx, "alice", "XXBT", decimal.RequireFromString("0.01"))
	require.NoError(t, err)

	bal, err := svc.Balances(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, bal, 2)
	assert.True(t, bal["ZUSD"].Equal(decimal.NewFromInt(400)))
	assert.True(t, bal["XXBT"].Equal(decimal.RequireFromString("0.01")))

	empty, err := svc.Balances(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = svc.Balances(ctx, "")
	assert.Equal(t, errs.InvalidArguments, errs.CodeOf(err))
}

func TestFundDisabled(t *testing.T) {
	_, err := newService(false, nil).Fund(context.Background(), "alice", "ZUSD", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrFaucetDisabled)
}

func TestFaucetHandler(t *testing.T) {
	h := NewHandler(newService(true, nil))
	post := func(fn func(http.ResponseWriter, *http.Request, string), form url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		fn(rec, req, "alice")
		return rec
	}

	rec := post(h.Faucet, url.Values{"asset": {"XXBT"}, "amount": {"1.25"}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = post(h.Balance, url.Values{})
	require.Equal(t, http.StatusOK, rec.Code)
	var env struct {
		Error  []string          `json:"error"`
		Result map[string]string `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Empty(t, env.Error)
	assert.Equal(t, "1.25000000", env.Result["XXBT"])

	rec = post(h.Faucet, url.Values{"asset": {"XXBT"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	disabled := NewHandler(newService(false, nil))
	rec = post(disabled.Faucet, url.Values{"asset": {"XXBT"}, "amount": {"1"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
