package orders

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

func call(t *testing.T, fn func(http.ResponseWriter, *http.Request, string), account string, form url.Values) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	fn(rec, req, account)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec.Code, env
}

func TestHandlerAddOrderAndQuery(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", "ZUSD", "1000")
	h := NewHandler(f.svc)

	code, env := call(t, h.AddOrder, "alice", url.Values{
		"pair":      {"XBTUSD"},
		"type":      {"buy"},
		"ordertype": {"market"},
		"volume":    {"0.01"},
	})
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, env.Error)
	var added struct {
		Descr struct {
			Order string `json:"order"`
		} `json:"descr"`
		TxID []string `json:"txid"`
	}
	require.NoError(t, json.Unmarshal(env.Result, &added))
	assert.Equal(t, "buy 0.01 XXBTZUSD @ market", added.Descr.Order)
	assert.Equal(t, []string{"O-000001"}, added.TxID)

	code, env = call(t, h.ClosedOrders, "alice", url.Values{"trades": {"true"}})
	require.Equal(t, http.StatusOK, code)
	var closed struct {
		Closed map[string]struct {
			Status  string   `json:"status"`
			Vol     string   `json:"vol"`
			VolExec string   `json:"vol_exec"`
			Cost    string   `json:"cost"`
			Fee     string   `json:"fee"`
			Price   string   `json:"price"`
			Trades  []string `json:"trades"`
		} `json:"closed"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(env.Result, &closed))
	assert.Equal(t, 1, closed.Count)
	o := closed.Closed["O-000001"]
	assert.Equal(t, "closed", o.Status)
	assert.Equal(t, "0.01", o.VolExec)
	assert.Equal(t, "600", o.Cost)
	assert.Equal(t, "1.56", o.Fee)
	assert.Equal(t, "60000", o.Price)
	assert.Equal(t, []string{"T-000001"}, o.Trades)

	code, env = call(t, h.QueryTrades, "alice", url.Values{"txid": {"T-000001"}})
	require.Equal(t, http.StatusOK, code)
	var trades map[string]struct {
		OrderTxID string `json:"ordertxid"`
		OrderType string `json:"ordertype"`
		Type      string `json:"type"`
		Cost      string `json:"cost"`
	}
	require.NoError(t, json.Unmarshal(env.Result, &trades))
	require.Contains(t, trades, "T-000001")
	assert.Equal(t, "O-000001", trades["T-000001"].OrderTxID)
	assert.Equal(t, "market", trades["T-000001"].OrderType)
	assert.Equal(t, "buy", trades["T-000001"].Type)
}

func TestHandlerErrors(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", "ZUSD", "10")
	h := NewHandler(f.svc)

	code, env := call(t, h.AddOrder, "alice", url.Values{
		"pair": {"NOPE"}, "type": {"buy"}, "ordertype": {"market"}, "volume": {"1"},
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, []string{"EQuery:Unknown asset pair"}, env.Error)

	code, env = call(t, h.AddOrder, "alice", url.Values{
		"pair": {"XXBTZUSD"}, "type": {"buy"}, "ordertype": {"market"}, "volume": {"abc"},
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, []string{"EGeneral:Invalid arguments"}, env.Error)

	code, env = call(t, h.AddOrder, "alice", url.Values{
		"pair": {"XXBTZUSD"}, "type": {"buy"}, "ordertype": {"market"}, "volume": {"0.01"},
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, []string{"EOrder:Insufficient funds"}, env.Error)

	code, env = call(t, h.CancelOrder, "alice", url.Values{"txid": {"O-NOPE"}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, []string{"EOrder:Unknown order"}, env.Error)

	code, env = call(t, h.AddOrder, "alice", url.Values{
		"pair": {"XXBTZAUD"}, "type": {"sell"}, "ordertype": {"market"}, "volume": {"0.01"},
	})
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, []string{"EGeneral:Internal error"}, env.Error)
}

func TestHandlerEditAndAmend(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", "ZUSD", "100000")
	h := NewHandler(f.svc)
	id := f.restingBuy(t, "alice", "1.5", "50000")

	code, env := call(t, h.AmendOrder, "alice", url.Values{"txid": {id}, "display_qty": {"0.01"}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, []string{"EOrder:Invalid display_qty"}, env.Error)

	code, env = call(t, h.AmendOrder, "alice", url.Values{"txid": {id}, "limit_price": {"49000"}})
	require.Equal(t, http.StatusOK, code)
	var amended struct {
		AmendID string `json:"amend_id"`
	}
	require.NoError(t, json.Unmarshal(env.Result, &amended))
	assert.Equal(t, "A-000001", amended.AmendID)

	code, env = call(t, h.EditOrder, "alice", url.Values{"txid": {id}, "volume": {"2"}, "newuserref": {"x"}})
	require.Equal(t, http.StatusOK, code)
	var edited struct {
		Status         string `json:"status"`
		TxID           string `json:"txid"`
		OriginalTxID   string `json:"originaltxid"`
		Volume         string `json:"volume"`
		Price          string `json:"price"`
		OrdersCanceled int    `json:"orders_cancelled"`
		NewUserRef     string `json:"newuserref"`
		Descr          struct {
			Order string `json:"order"`
		} `json:"descr"`
	}
	require.NoError(t, json.Unmarshal(env.Result, &edited))
	assert.Equal(t, "ok", edited.Status)
	assert.Equal(t, id, edited.OriginalTxID)
	assert.NotEqual(t, id, edited.TxID)
	assert.Equal(t, "2", edited.Volume)
	assert.Equal(t, "49000", edited.Price)
	assert.Equal(t, 1, edited.OrdersCanceled)
	assert.Equal(t, "x", edited.NewUserRef)
	assert.Equal(t, "buy 2 XXBTZUSD @ limit 49000", edited.Descr.Order)

	code, env = call(t, h.OpenOrders, "alice", url.Values{})
	require.Equal(t, http.StatusOK, code)
	var open struct {
		Open map[string]struct {
			RefID  *string `json:"refid"`
			Status string  `json:"status"`
		} `json:"open"`
	}
	require.NoError(t, json.Unmarshal(env.Result, &open))
	require.Len(t, open.Open, 1)
	o, ok := open.Open[edited.TxID]
	require.True(t, ok)
	require.NotNil(t, o.RefID)
	assert.Equal(t, id, *o.RefID)
}
