package orders

import (
	"errors"
	"net/http"
	"strings"

	"spot-sandbox/internal/errs"
	"spot-sandbox/internal/httputil"
	"spot-sandbox/internal/model"
	"spot-sandbox/internal/types"

	"github.com/shopspring/decimal"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type orderDescr struct {
	Pair      string `json:"pair,omitempty"`
	Type      string `json:"type,omitempty"`
	OrderType string `json:"ordertype,omitempty"`
	Price     string `json:"price,omitempty"`
	Price2    string `json:"price2,omitempty"`
	Order     string `json:"order"`
}

type orderInfo struct {
	RefID   *string          `json:"refid"`
	UserRef string           `json:"userref,omitempty"`
	Status  string           `json:"status"`
	OpenTm  decimal.Decimal  `json:"opentm"`
	CloseTm *decimal.Decimal `json:"closetm,omitempty"`
	Descr   orderDescr       `json:"descr"`
	Vol     string           `json:"vol"`
	VolExec string           `json:"vol_exec"`
	Cost    string           `json:"cost"`
	Fee     string           `json:"fee"`
	Price   string           `json:"price"`
	Misc    string           `json:"misc"`
	Oflags  string           `json:"oflags"`
	Trades  []string         `json:"trades,omitempty"`
	Display string           `json:"display_qty,omitempty"`
}

type tradeInfo struct {
	OrderTxID string          `json:"ordertxid"`
	Pair      string          `json:"pair"`
	Time      decimal.Decimal `json:"time"`
	Type      string          `json:"type"`
	OrderType string          `json:"ordertype"`
	Price     string          `json:"price"`
	Cost      string          `json:"cost"`
	Fee       string          `json:"fee"`
	Vol       string          `json:"vol"`
	Margin    string          `json:"margin"`
	Misc      string          `json:"misc"`
}

func (h *Handler) AddOrder(w http.ResponseWriter, r *http.Request, account string) {
	f, err := httputil.ParseForm(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req := PlaceOrderRequest{
		Account:   account,
		Pair:      strings.ToUpper(f.String("pair")),
		Side:      types.OrderSide(strings.ToLower(f.String("type"))),
		Kind:      types.OrderKind(strings.ToLower(f.String("ordertype"))),
		Price:     f.Decimal("price"),
		Price2:    f.Decimal("price2"),
		ClientRef: f.String("userref"),
	}
	if v := f.Decimal("volume"); v != nil {
		req.Volume = *v
	}
	if dq := f.Decimal("displayvol"); dq != nil {
		req.Aux = model.AuxData{}.WithDisplayQty(*dq)
	}
	if err := f.Err(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.svc.PlaceOrder(r.Context(), req)
	if err != nil {
		var e *errs.Error
		if errors.As(err, &e) && e.OrderID != "" {
			httputil.WriteErrorResult(w, err, map[string]any{"txid": []string{e.OrderID}})
			return
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteResult(w, map[string]any{
		"descr": orderDescr{Order: res.Description},
		"txid":  []string{res.OrderID},
	})
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request, account string) {
	f, err := httputil.ParseForm(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	n, err := h.svc.CancelOrder(r.Context(), account, f.String("txid"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteResult(w, map[string]any{"count": n})
}

func (h *Handler) EditOrder(w http.ResponseWriter, r *http.Request, account string) {
	f, err := httputil.ParseForm(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req := EditOrderRequest{
		Account:       account,
		OrderID:       f.String("txid"),
		ClientRef:     f.String("userref"),
		Pair:          strings.ToUpper(f.String("pair")),
		Volume:        f.Decimal("volume"),
		DisplayVolume: f.Decimal("displayvol"),
		Price:         f.Decimal("price"),
		Price2:        f.Decimal("price2"),
		NewClientRef:  f.String("newuserref"),
		Validate:      f.Bool("validate"),
	}
	if err := f.Err(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.svc.EditOrder(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	descr := orderDescr{Order: res.Description}
	if req.Validate {
		httputil.WriteResult(w, map[string]any{"descr": descr})
		return
	}
	out := map[string]any{
		"status":           "ok",
		"txid":             res.NewOrderID,
		"originaltxid":     res.OriginalOrderID,
		"volume":           res.Volume.String(),
		"price":            decString(res.Price),
		"price2":           decString(res.Price2),
		"orders_cancelled": res.OrdersCanceled,
		"descr":            descr,
	}
	if res.OldClientRef != "" {
		out["olduserref"] = res.OldClientRef
	}
	if res.NewClientRef != "" {
		out["newuserref"] = res.NewClientRef
	}
	httputil.WriteResult(w, out)
}

func (h *Handler) AmendOrder(w http.ResponseWriter, r *http.Request, account string) {
	f, err := httputil.ParseForm(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req := AmendOrderRequest{
		Account:       account,
		OrderID:       f.String("txid"),
		ClientOrderID: f.String("cl_ord_id"),
		OrderQty:      f.Decimal("order_qty"),
		DisplayQty:    f.Decimal("display_qty"),
		LimitPrice:    f.Decimal("limit_price"),
		TriggerPrice:  f.Decimal("trigger_price"),
	}
	if err := f.Err(); err != nil {
		httputil.WriteError(w, err)
		return
	}
	res, err := h.svc.AmendOrder(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteResult(w, map[string]any{"amend_id": res.AmendID})
}

func (h *Handler) OpenOrders(w http.ResponseWriter, r *http.Request, account string) {
	f, err := httputil.ParseForm(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	q := OpenOrdersQuery{ClientRef: f.String("userref"), Trades: f.Bool("trades")}
	if err := f.Err(); err != nil {
		httputil.WriteError(w, err)
		return
	}
	list, err := h.svc.ListOpenOrders(r.Context(), account, q)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteResult(w, map[string]any{"open": orderInfos(list)})
}

func (h *Handler) ClosedOrders(w http.ResponseWriter, r *http.Request, account string) {
	f, err := httputil.ParseForm(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	q := ClosedOrdersQuery{
		ClientRef: f.String("userref"),
		Start:     f.Time("start"),
		End:       f.Time("end"),
		Offset:    f.Int("ofs"),
		Trades:    f.Bool("trades"),
	}
	if err := f.Err(); err != nil {
		httputil.WriteError(w, err)
		return
	}
	page, err := h.svc.ListClosedOrders(r.Context(), account, q)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteResult(w, map[string]any{"closed": orderInfos(page.Orders), "count": page.Count})
}

func (h *Handler) QueryTrades(w http.ResponseWriter, r *http.Request, account string) {
	f, err := httputil.ParseForm(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	trades, err := h.svc.QueryTrades(r.Context(), account, f.List("txid"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteResult(w, tradeInfos(trades))
}

func (h *Handler) TradesHistory(w http.ResponseWriter, r *http.Request, account string) {
	f, err := httputil.ParseForm(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	q := TradesHistoryQuery{
		Start:  f.Time("start"),
		End:    f.Time("end"),
		Offset: f.Int("ofs"),
	}
	if side := strings.ToLower(f.String("type")); side != "" && side != "all" {
		q.Side = types.OrderSide(side)
	}
	if err := f.Err(); err != nil {
		httputil.WriteError(w, err)
		return
	}
	page, err := h.svc.TradesHistory(r.Context(), account, q)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteResult(w, map[string]any{"trades": tradeInfos(page.Trades), "count": page.Count})
}

func orderInfos(list []OrderView) map[string]orderInfo {
	out := make(map[string]orderInfo, len(list))
	for _, v := range list {
		out[v.ID] = toOrderInfo(v)
	}
	return out
}

func toOrderInfo(v OrderView) orderInfo {
	info := orderInfo{
		UserRef: v.ClientRef,
		Status:  string(v.Status),
		OpenTm:  httputil.Timestamp(v.OpenedAt),
		Descr: orderDescr{
			Pair:      v.Pair,
			Type:      string(v.Side),
			OrderType: string(v.Kind),
			Price:     decOrZero(v.Price),
			Price2:    decOrZero(v.Price2),
			Order:     Describe(v.Side, v.Volume, v.Pair, v.Kind, v.Price),
		},
		Vol:     v.Volume.String(),
		VolExec: v.ExecutedVolume.String(),
		Cost:    v.Cost.String(),
		Fee:     v.Fee.String(),
		Price:   decOrZero(v.Price),
		Trades:  v.TradeIDs,
	}
	if v.ReplacesID != "" {
		id := v.ReplacesID
		info.RefID = &id
	}
	if v.ClosedAt != nil {
		ts := httputil.Timestamp(*v.ClosedAt)
		info.CloseTm = &ts
	}
	if v.ExecutedVolume.IsPositive() {
		info.Price = v.AvgPrice.String()
	}
	if dq, ok := v.Aux.DisplayQty(); ok {
		info.Display = dq.String()
	}
	return info
}

func tradeInfos(list []TradeView) map[string]tradeInfo {
	out := make(map[string]tradeInfo, len(list))
	for _, t := range list {
		out[t.ID] = tradeInfo{
			OrderTxID: t.OrderID,
			Pair:      t.Pair,
			Time:      httputil.Timestamp(t.ExecutedAt),
			Type:      string(t.Side),
			OrderType: string(t.OrderKind),
			Price:     t.Price.String(),
			Cost:      t.Cost.String(),
			Fee:       t.Fee.String(),
			Vol:       t.Volume.String(),
			Margin:    "0",
		}
	}
	return out
}

func decString(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func decOrZero(d *decimal.Decimal) string {
	if d == nil {
		return "0"
	}
	return d.String()
}
