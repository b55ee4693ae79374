package orders

import (
	"context"
	"testing"
	"time"

	"spot-sandbox/internal/errs"
	"spot-sandbox/internal/model"
	"spot-sandbox/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// partiallyExecuted is an open order with 3 of 5 executed, a state the
// all-or-nothing engine never produces on its own.
func partiallyExecuted(id string) model.Order {
	return model.Order{
		ID:             id,
		Account:        "alice",
		Pair:           "XXBTZUSD",
		Side:           types.OrderSideBuy,
		Kind:           types.OrderKindLimit,
		Price:          decp("50000"),
		Volume:         dec("5"),
		ExecutedVolume: dec("3"),
		Status:         types.OrderStatusOpen,
		OpenedAt:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestEditOrderReplaces(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, "alice", "ZUSD", "1000")
	res, err := f.svc.PlaceOrder(ctx, PlaceOrderRequest{
		Account:   "alice",
		Pair:      "XXBTZUSD",
		Side:      types.OrderSideBuy,
		Kind:      types.OrderKindLimit,
		Volume:    dec("0.01"),
		Price:     decp("50000"),
		ClientRef: "r1",
		Aux:       model.AuxData{}.WithDisplayQty(dec("0.005")),
	})
	require.NoError(t, err)
	orig := res.OrderID

	edit, err := f.svc.EditOrder(ctx, EditOrderRequest{
		Account:      "alice",
		OrderID:      orig,
		Price:        decp("50500"),
		NewClientRef: "r2",
	})
	require.NoError(t, err)
	assert.Equal(t, orig, edit.OriginalOrderID)
	assert.Equal(t, "O-000002", edit.NewOrderID)
	assert.Equal(t, 1, edit.OrdersCanceled)
	assert.Equal(t, "r1", edit.OldClientRef)
	assert.Equal(t, "r2", edit.NewClientRef)
	assert.True(t, edit.Volume.Equal(dec("0.01")))
	require.NotNil(t, edit.Price)
	assert.True(t, edit.Price.Equal(dec("50500")))
	assert.Equal(t, "buy 0.01 XXBTZUSD @ limit 50500", edit.Description)

	old := f.order(t, orig)
	assert.Equal(t, types.OrderStatusCanceled, old.Status)
	require.NotNil(t, old.ClosedAt)

	next := f.order(t, edit.NewOrderID)
	assert.Equal(t, types.OrderStatusOpen, next.Status)
	assert.Equal(t, orig, next.ReplacesID)
	assert.True(t, next.ExecutedVolume.IsZero())
	assert.Equal(t, "r2", next.ClientRef)
	dq, ok := next.Aux.DisplayQty()
	require.True(t, ok)
	assert.True(t, dq.Equal(dec("0.005")))

	assert.True(t, f.balance(t, "alice", "ZUSD").Equal(dec("1000")))

	open, err := f.svc.ListOpenOrders(ctx, "alice", OpenOrdersQuery{})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, edit.NewOrderID, open[0].ID)
}

func TestEditWithinBandDoesNotExecute(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", "ZUSD", "1000")
	id := f.restingBuy(t, "alice", "0.01", "50000")

	edit, err := f.svc.EditOrder(context.Background(), EditOrderRequest{Account: "alice", OrderID: id, Price: decp("60000")})
	require.NoError(t, err)
	next := f.order(t, edit.NewOrderID)
	assert.Equal(t, types.OrderStatusOpen, next.Status)
	assert.True(t, f.balance(t, "alice", "ZUSD").Equal(dec("1000")))
}

func TestEditValidateWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", "ZUSD", "1000")
	id := f.restingBuy(t, "alice", "0.01", "50000")

	edit, err := f.svc.EditOrder(context.Background(), EditOrderRequest{
		Account:  "alice",
		OrderID:  id,
		Volume:   decp("0.02"),
		Validate: true,
	})
	require.NoError(t, err)
	assert.Empty(t, edit.NewOrderID)
	assert.Equal(t, "buy 0.02 XXBTZUSD @ limit 50000", edit.Description)

	o := f.order(t, id)
	assert.Equal(t, types.OrderStatusOpen, o.Status)
	assert.True(t, o.Volume.Equal(dec("0.01")))
}

func TestEditByClientRef(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, "alice", "ZUSD", "1000")
	_, err := f.svc.PlaceOrder(ctx, PlaceOrderRequest{
		Account: "alice", Pair: "XXBTZUSD", Side: types.OrderSideBuy, Kind: types.OrderKindLimit,
		Volume: dec("0.01"), Price: decp("50000"), ClientRef: "ladder-3",
	})
	require.NoError(t, err)

	edit, err := f.svc.EditOrder(ctx, EditOrderRequest{Account: "alice", ClientRef: "ladder-3", Volume: decp("0.015")})
	require.NoError(t, err)
	assert.Equal(t, "ladder-3", edit.NewClientRef)
	assert.True(t, f.order(t, edit.NewOrderID).Volume.Equal(dec("0.015")))
}

func TestEditRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, "alice", "ZUSD", "1000")
	resting := f.restingBuy(t, "alice", "0.01", "50000")
	executed, err := f.svc.PlaceOrder(ctx, marketBuy("alice", "0.001"))
	require.NoError(t, err)
	f.insert(t, partiallyExecuted("O-PARTIAL"))
	market := partiallyExecuted("O-MARKET")
	market.Kind = types.OrderKindMarket
	market.Price = nil
	market.ExecutedVolume = dec("0")
	f.insert(t, market)

	cases := []struct {
		name string
		req  EditOrderRequest
		code errs.Code
	}{
		{"nothing to edit", EditOrderRequest{Account: "alice", OrderID: resting}, errs.InvalidArguments},
		{"no locator", EditOrderRequest{Account: "alice", Price: decp("1")}, errs.InvalidArguments},
		{"unknown id", EditOrderRequest{Account: "alice", OrderID: "O-NOPE", Price: decp("1")}, errs.UnknownOrder},
		{"unknown client ref", EditOrderRequest{Account: "alice", ClientRef: "nope", Price: decp("1")}, errs.UnknownOrder},
		{"other account", EditOrderRequest{Account: "bob", OrderID: resting, Price: decp("1")}, errs.UnknownOrder},
		{"closed order", EditOrderRequest{Account: "alice", OrderID: executed.OrderID, Price: decp("1")}, errs.OrderNotOpen},
		{"market order", EditOrderRequest{Account: "alice", OrderID: "O-MARKET", Volume: decp("6")}, errs.CannotEditMarketOrder},
		{"pair mismatch", EditOrderRequest{Account: "alice", OrderID: resting, Pair: "XETHZUSD", Price: decp("1")}, errs.InvalidArguments},
		{"volume below executed", EditOrderRequest{Account: "alice", OrderID: "O-PARTIAL", Volume: decp("2")}, errs.InvalidVolume},
		{"negative price", EditOrderRequest{Account: "alice", OrderID: resting, Price: decp("-1")}, errs.InvalidArguments},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.EditOrder(ctx, tc.req)
			assertCode(t, err, tc.code)
		})
	}

	assert.Equal(t, types.OrderStatusOpen, f.order(t, resting).Status)
	p := f.order(t, "O-PARTIAL")
	assert.Equal(t, types.OrderStatusOpen, p.Status)
	assert.True(t, p.Volume.Equal(dec("5")))
}

func TestEditCanceledOriginalCannotBeEditedAgain(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, "alice", "ZUSD", "1000")
	id := f.restingBuy(t, "alice", "0.01", "50000")

	_, err := f.svc.EditOrder(ctx, EditOrderRequest{Account: "alice", OrderID: id, Price: decp("49000")})
	require.NoError(t, err)
	_, err = f.svc.EditOrder(ctx, EditOrderRequest{Account: "alice", OrderID: id, Price: decp("48000")})
	assertCode(t, err, errs.OrderNotOpen)
}

func TestAmendOrderInPlace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, "alice", "ZUSD", "100000")
	id := f.restingBuy(t, "alice", "1.5", "50000")

	res, err := f.svc.AmendOrder(ctx, AmendOrderRequest{
		Account:    "alice",
		OrderID:    id,
		LimitPrice: decp("49000"),
		DisplayQty: decp("0.1"),
	})
	require.NoError(t, err)
	assert.Equal(t, "A-000001", res.AmendID)
	assert.Equal(t, id, res.OrderID)

	o := f.order(t, id)
	assert.Equal(t, types.OrderStatusOpen, o.Status)
	require.NotNil(t, o.Price)
	assert.True(t, o.Price.Equal(dec("49000")))
	assert.True(t, o.Volume.Equal(dec("1.5")))
	dq, ok := o.Aux.DisplayQty()
	require.True(t, ok)
	assert.True(t, dq.Equal(dec("0.1")))

	open, err := f.svc.ListOpenOrders(ctx, "alice", OpenOrdersQuery{})
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestAmendDisplayQtyBelowFloor(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", "ZUSD", "100000")
	id := f.restingBuy(t, "alice", "1.5", "50000")

	_, err := f.svc.AmendOrder(context.Background(), AmendOrderRequest{
		Account:    "alice",
		OrderID:    id,
		DisplayQty: decp("0.09"),
		LimitPrice: decp("49000"),
	})
	assertCode(t, err, errs.InvalidDisplayQty)

	o := f.order(t, id)
	assert.Nil(t, o.Aux)
	assert.True(t, o.Price.Equal(dec("50000")))

	// The floor follows the amended quantity when one is supplied.
	_, err = f.svc.AmendOrder(context.Background(), AmendOrderRequest{
		Account:    "alice",
		OrderID:    id,
		OrderQty:   decp("1.35"),
		DisplayQty: decp("0.09"),
	})
	require.NoError(t, err)
}

func TestAmendRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, "alice", "ZUSD", "1000")
	resting := f.restingBuy(t, "alice", "0.01", "50000")
	executed, err := f.svc.PlaceOrder(ctx, marketBuy("alice", "0.001"))
	require.NoError(t, err)
	f.insert(t, partiallyExecuted("O-PARTIAL"))
	market := partiallyExecuted("O-MARKET")
	market.Kind = types.OrderKindMarket
	market.Price = nil
	market.ExecutedVolume = dec("0")
	f.insert(t, market)

	cases := []struct {
		name string
		req  AmendOrderRequest
		code errs.Code
	}{
		{"nothing to amend", AmendOrderRequest{Account: "alice", OrderID: resting}, errs.InvalidArguments},
		{"unknown order", AmendOrderRequest{Account: "alice", OrderID: "O-NOPE", LimitPrice: decp("1")}, errs.UnknownOrder},
		{"unknown cl_ord_id", AmendOrderRequest{Account: "alice", ClientOrderID: "nope", LimitPrice: decp("1")}, errs.UnknownOrder},
		{"closed order", AmendOrderRequest{Account: "alice", OrderID: executed.OrderID, LimitPrice: decp("1")}, errs.OrderNotOpen},
		{"market order", AmendOrderRequest{Account: "alice", OrderID: "O-MARKET", OrderQty: decp("6")}, errs.CannotAmendMarketOrder},
		{"qty below executed", AmendOrderRequest{Account: "alice", OrderID: "O-PARTIAL", OrderQty: decp("2")}, errs.InvalidOrderQty},
		{"zero qty", AmendOrderRequest{Account: "alice", OrderID: resting, OrderQty: decp("0")}, errs.InvalidOrderQty},
		{"zero display", AmendOrderRequest{Account: "alice", OrderID: resting, DisplayQty: decp("0")}, errs.InvalidDisplayQty},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.AmendOrder(ctx, tc.req)
			assertCode(t, err, tc.code)
		})
	}
	assert.True(t, f.order(t, "O-PARTIAL").Volume.Equal(dec("5")))
}

func TestEditOrderAppliesPairPrecision(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, "alice", "ZUSD", "1000")
	id := f.restingBuy(t, "alice", "0.01", "50000")

	cases := map[string]EditOrderRequest{
		"price decimals":   {Account: "alice", OrderID: id, Price: decp("50000.123456")},
		"price2 decimals":  {Account: "alice", OrderID: id, Price2: decp("49000.55")},
		"lot decimals":     {Account: "alice", OrderID: id, Volume: decp("0.000100001")},
		"below ordermin":   {Account: "alice", OrderID: id, Volume: decp("0.00001")},
		"validate as well": {Account: "alice", OrderID: id, Price: decp("50000.05"), Validate: true},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.EditOrder(ctx, req)
			assertCode(t, err, errs.InvalidArguments)
		})
	}

	o := f.order(t, id)
	assert.Equal(t, types.OrderStatusOpen, o.Status)
	assert.True(t, o.Price.Equal(dec("50000")))
	assert.True(t, o.Volume.Equal(dec("0.01")))
	open, err := f.svc.ListOpenOrders(ctx, "alice", OpenOrdersQuery{})
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestAmendOrderAppliesPairPrecision(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, "alice", "ZUSD", "1000")
	id := f.restingBuy(t, "alice", "0.01", "50000")

	cases := map[string]AmendOrderRequest{
		"limit price decimals":   {Account: "alice", OrderID: id, LimitPrice: decp("1.000000001")},
		"trigger price decimals": {Account: "alice", OrderID: id, TriggerPrice: decp("49000.25")},
		"lot decimals":           {Account: "alice", OrderID: id, OrderQty: decp("0.000000001")},
		"below ordermin":         {Account: "alice", OrderID: id, OrderQty: decp("0.00005")},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.AmendOrder(ctx, req)
			assertCode(t, err, errs.InvalidArguments)
		})
	}

	o := f.order(t, id)
	assert.True(t, o.Price.Equal(dec("50000")))
	assert.True(t, o.Volume.Equal(dec("0.01")))
	assert.Nil(t, o.Price2)

	_, err := f.svc.AmendOrder(ctx, AmendOrderRequest{Account: "alice", OrderID: id, LimitPrice: decp("49500.5"), OrderQty: decp("0.0001")})
	require.NoError(t, err)
	o = f.order(t, id)
	assert.True(t, o.Price.Equal(dec("49500.5")))
	assert.True(t, o.Volume.Equal(dec("0.0001")))
}
