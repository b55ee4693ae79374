// Package httputil holds the JSON and form plumbing shared by handlers.
package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"spot-sandbox/internal/errs"

	"github.com/shopspring/decimal"
)

// Envelope is the response shape of every private endpoint.
type Envelope struct {
	Error  []string `json:"error"`
	Result any      `json:"result"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteResult(w http.ResponseWriter, result any) {
	WriteJSON(w, http.StatusOK, Envelope{Error: []string{}, Result: result})
}

// WriteError renders err in the envelope. Domain errors are 400, internal 500.
func WriteError(w http.ResponseWriter, err error) {
	WriteErrorResult(w, err, map[string]any{})
}

// WriteErrorResult is WriteError with a partial result, used when the
// failure still produced something the client must know about.
func WriteErrorResult(w http.ResponseWriter, err error, result any) {
	code := errs.CodeOf(err)
	status := http.StatusBadRequest
	if code == errs.InternalError {
		status = http.StatusInternalServerError
	}
	WriteJSON(w, status, Envelope{Error: []string{code.Wire()}, Result: result})
}

// Form reads typed values from a parsed request form and remembers the
// first malformed field.
type Form struct {
	r   *http.Request
	err error
}

func ParseForm(r *http.Request) (*Form, error) {
	if err := r.ParseForm(); err != nil {
		return nil, errs.Wrap(errs.InvalidArguments, err, "form")
	}
	return &Form{r: r}, nil
}

func (f *Form) String(key string) string {
	return strings.TrimSpace(f.r.Form.Get(key))
}

func (f *Form) Bool(key string) bool {
	raw := f.String(key)
	if raw == "" {
		return false
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		f.fail(key, err)
	}
	return b
}

func (f *Form) Int(key string) int {
	raw := f.String(key)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		f.fail(key, err)
	}
	return n
}

// Decimal returns nil when the field is absent.
func (f *Form) Decimal(key string) *decimal.Decimal {
	raw := f.String(key)
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		f.fail(key, err)
		return nil
	}
	return &d
}

// Time parses unix seconds, fractional allowed. Nil when absent.
func (f *Form) Time(key string) *time.Time {
	d := f.Decimal(key)
	if d == nil {
		return nil
	}
	t, err := UnixTime(*d)
	if err != nil {
		f.fail(key, err)
		return nil
	}
	return &t
}

func (f *Form) List(key string) []string {
	raw := f.String(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (f *Form) Err() error { return f.err }

func (f *Form) fail(key string, err error) {
	if f.err == nil {
		f.err = errs.Wrap(errs.InvalidArguments, err, key)
	}
}

var nanosPerSecond = decimal.NewFromInt(int64(time.Second))

// UnixTime converts unix seconds to a time, rejecting values that do not
// fit in int64 nanoseconds.
func UnixTime(sec decimal.Decimal) (time.Time, error) {
	ns := sec.Mul(nanosPerSecond).Truncate(0)
	if !ns.BigInt().IsInt64() {
		return time.Time{}, fmt.Errorf("timestamp %s out of range", sec)
	}
	return time.Unix(0, ns.IntPart()).UTC(), nil
}

// Timestamp renders t as unix seconds with four fractional digits.
func Timestamp(t time.Time) decimal.Decimal {
	return decimal.New(t.UnixNano(), -9).Truncate(4)
}
