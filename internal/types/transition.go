package types

import "fmt"

// OrderOp is an operation that may change an order's status.
type OrderOp string

const (
	OrderOpExecute OrderOp = "execute"
	OrderOpCancel  OrderOp = "cancel"
	OrderOpReplace OrderOp = "replace"
	OrderOpAmend   OrderOp = "amend"
)

type transitionKey struct {
	from OrderStatus
	op   OrderOp
}

var transitions = map[transitionKey]OrderStatus{
	{OrderStatusOpen, OrderOpExecute}: OrderStatusClosed,
	{OrderStatusOpen, OrderOpCancel}:  OrderStatusCanceled,
	{OrderStatusOpen, OrderOpReplace}: OrderStatusCanceled,
	{OrderStatusOpen, OrderOpAmend}:   OrderStatusOpen,
}

// IllegalTransitionError is returned for a (status, op) pair missing from the table.
type IllegalTransitionError struct {
	From OrderStatus
	Op   OrderOp
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("cannot %s order in status %s", e.Op, e.From)
}

// Transition returns the status an order moves to when op is applied in status from.
func Transition(from OrderStatus, op OrderOp) (OrderStatus, error) {
	to, ok := transitions[transitionKey{from, op}]
	if !ok {
		return from, &IllegalTransitionError{From: from, Op: op}
	}
	return to, nil
}
