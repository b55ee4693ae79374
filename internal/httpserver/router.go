package httpserver

import (
	"net/http"
	"time"

	"spot-sandbox/internal/health"
	"spot-sandbox/internal/httputil"
	"spot-sandbox/internal/ledger"
	"spot-sandbox/internal/orders"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterDeps struct {
	OrderHandler  *orders.Handler
	LedgerHandler *ledger.Handler
	StreamHandler http.Handler
	HealthHandler *health.Handler
	Log           *zap.Logger
	// RateLimit is requests per second per client; zero disables limiting.
	RateLimit float64
	RateBurst float64
}

type accountHandler func(w http.ResponseWriter, r *http.Request, account string)

// withAccount adapts an account-scoped handler to the router.
func withAccount(fn accountHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, ok := AccountID(r)
		if !ok {
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Envelope{
				Error:  []string{"EAPI:Invalid key"},
				Result: map[string]any{},
			})
			return
		}
		fn(w, r, account)
	}
}

func NewRouter(d RouterDeps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				origin = "*"
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, API-Key, API-Sign")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(log))
	r.Use(SecurityHeaders)
	if d.RateLimit > 0 {
		burst := d.RateBurst
		if burst < 1 {
			burst = d.RateLimit * 3
		}
		r.Use(newRateLimiter(d.RateLimit, burst).Middleware)
	}

	hh := d.HealthHandler
	if hh == nil {
		hh = health.NewHandler(nil, "memory", time.Now())
	}
	r.Get("/health", hh.Ready)
	r.Get("/health/live", hh.Live)
	r.Get("/health/full", hh.Full)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/0/private", func(r chi.Router) {
		if d.StreamHandler != nil {
			r.Get("/stream", d.StreamHandler.ServeHTTP)
		}
		r.Group(func(r chi.Router) {
			r.Use(WithAPIKey)
			r.Post("/Balance", withAccount(d.LedgerHandler.Balance))
			r.Post("/Faucet", withAccount(d.LedgerHandler.Faucet))
			r.Post("/AddOrder", withAccount(d.OrderHandler.AddOrder))
			r.Post("/CancelOrder", withAccount(d.OrderHandler.CancelOrder))
			r.Post("/EditOrder", withAccount(d.OrderHandler.EditOrder))
			r.Post("/AmendOrder", withAccount(d.OrderHandler.AmendOrder))
			r.Post("/OpenOrders", withAccount(d.OrderHandler.OpenOrders))
			r.Post("/ClosedOrders", withAccount(d.OrderHandler.ClosedOrders))
			r.Post("/QueryTrades", withAccount(d.OrderHandler.QueryTrades))
			r.Post("/TradesHistory", withAccount(d.OrderHandler.TradesHistory))
		})
	})
	return r
}
