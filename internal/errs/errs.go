// Package errs defines the engine's error taxonomy. Every error returned by an
// engine operation maps to exactly one Code.
package errs

import (
	"context"
	"errors"
	"fmt"
)

type Code string

const (
	InvalidArguments       Code = "invalid_arguments"
	UnknownPair            Code = "unknown_pair"
	UnknownOrder           Code = "unknown_order"
	OrderNotOpen           Code = "order_not_open"
	OrderNotEditable       Code = "order_not_editable"
	CannotEditMarketOrder  Code = "cannot_edit_market_order"
	CannotAmendMarketOrder Code = "cannot_amend_market_order"
	InvalidVolume          Code = "invalid_volume"
	InvalidOrderQty        Code = "invalid_order_qty"
	InvalidDisplayQty      Code = "invalid_display_qty"
	InsufficientFunds      Code = "insufficient_funds"
	DuplicateOrder         Code = "duplicate_order"
	InternalError          Code = "internal_error"
)

var wire = map[Code]string{
	InvalidArguments:       "EGeneral:Invalid arguments",
	UnknownPair:            "EQuery:Unknown asset pair",
	UnknownOrder:           "EOrder:Unknown order",
	OrderNotOpen:           "EOrder:Order not open",
	OrderNotEditable:       "EOrder:Order not editable",
	CannotEditMarketOrder:  "EOrder:Cannot edit market order",
	CannotAmendMarketOrder: "EOrder:Cannot amend market order",
	InvalidVolume:          "EOrder:Invalid volume",
	InvalidOrderQty:        "EOrder:Invalid order_qty",
	InvalidDisplayQty:      "EOrder:Invalid display_qty",
	InsufficientFunds:      "EOrder:Insufficient funds",
	DuplicateOrder:         "EOrder:Duplicate order",
	InternalError:          "EGeneral:Internal error",
}

// Wire returns the Kraken-style error string for the code.
func (c Code) Wire() string {
	if s, ok := wire[c]; ok {
		return s
	}
	return wire[InternalError]
}

// Retryable reports whether a caller may reasonably retry after this code.
func (c Code) Retryable() bool {
	return c == InternalError
}

type Error struct {
	Code    Code
	Msg     string
	OrderID string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidArguments       = &Error{Code: InvalidArguments}
	ErrUnknownPair            = &Error{Code: UnknownPair}
	ErrUnknownOrder           = &Error{Code: UnknownOrder}
	ErrOrderNotOpen           = &Error{Code: OrderNotOpen}
	ErrOrderNotEditable       = &Error{Code: OrderNotEditable}
	ErrCannotEditMarketOrder  = &Error{Code: CannotEditMarketOrder}
	ErrCannotAmendMarketOrder = &Error{Code: CannotAmendMarketOrder}
	ErrInvalidVolume          = &Error{Code: InvalidVolume}
	ErrInvalidOrderQty        = &Error{Code: InvalidOrderQty}
	ErrInvalidDisplayQty      = &Error{Code: InvalidDisplayQty}
	ErrInsufficientFunds      = &Error{Code: InsufficientFunds}
	ErrDuplicateOrder         = &Error{Code: DuplicateOrder}
	ErrInternal               = &Error{Code: InternalError}
)

func New(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to err. A nil err yields nil.
func Wrap(code Code, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Msg: msg, Err: err}
}

// CodeOf maps any error onto the taxonomy. Untyped errors are internal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return InternalError
}

// Internal converts err into an InternalError unless it already carries a
// domain code. Context expiry is always internal.
func Internal(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Code: InternalError, Msg: msg, Err: err}
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Code: InternalError, Msg: msg, Err: err}
}

// WithOrder returns a copy of err annotated with the order id.
func WithOrder(err error, orderID string) error {
	var e *Error
	if !errors.As(err, &e) {
		return &Error{Code: InternalError, OrderID: orderID, Err: err}
	}
	cp := *e
	cp.OrderID = orderID
	return &cp
}
