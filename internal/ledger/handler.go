package ledger

import (
	"errors"
	"net/http"

	"spot-sandbox/internal/errs"
	"spot-sandbox/internal/httputil"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request, account string) {
	balances, err := h.svc.Balances(r.Context(), account)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make(map[string]string, len(balances))
	for asset, amt := range balances {
		out[asset] = amt.StringFixed(8)
	}
	httputil.WriteResult(w, out)
}

func (h *Handler) Faucet(w http.ResponseWriter, r *http.Request, account string) {
	f, err := httputil.ParseForm(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	asset := f.String("asset")
	amount := f.Decimal("amount")
	if err := f.Err(); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if amount == nil {
		httputil.WriteError(w, errs.New(errs.InvalidArguments, "amount required"))
		return
	}
	res, err := h.svc.Fund(r.Context(), account, asset, *amount)
	if errors.Is(err, ErrFaucetDisabled) {
		httputil.WriteJSON(w, http.StatusForbidden, httputil.Envelope{
			Error:  []string{"EGeneral:Permission denied"},
			Result: map[string]any{},
		})
		return
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteResult(w, map[string]string{
		"asset":   res.Asset,
		"amount":  res.Amount.String(),
		"balance": res.Balance.StringFixed(8),
	})
}
