package health

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"spot-sandbox/internal/httputil"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Handler reports liveness and store readiness. A nil pool means the
// in-memory backend, which is always ready.
type Handler struct {
	pool      *pgxpool.Pool
	backend   string
	startedAt time.Time
	now       func() time.Time
}

func NewHandler(pool *pgxpool.Pool, backend string, startedAt time.Time) *Handler {
	start := startedAt.UTC()
	if start.IsZero() {
		start = time.Now().UTC()
	}
	return &Handler{pool: pool, backend: backend, startedAt: start, now: time.Now}
}

type liveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	UptimeSec int64  `json:"uptime_sec"`
	Uptime    string `json:"uptime"`
}

type storeStats struct {
	Backend   string     `json:"backend"`
	Reachable bool       `json:"reachable"`
	PingMs    int64      `json:"ping_ms"`
	Error     string     `json:"error,omitempty"`
	Pool      *poolStats `json:"pool,omitempty"`
}

type poolStats struct {
	TotalConns    int32 `json:"total_conns"`
	IdleConns     int32 `json:"idle_conns"`
	AcquiredConns int32 `json:"acquired_conns"`
	MaxConns      int32 `json:"max_conns"`
	AcquireCount  int64 `json:"acquire_count"`
}

type runtimeStats struct {
	GoVersion  string `json:"go_version"`
	Goroutines int    `json:"goroutines"`
	GoMaxProcs int    `json:"gomaxprocs"`
	HeapAlloc  uint64 `json:"heap_alloc_bytes"`
	NumGC      uint32 `json:"num_gc"`
	PID        int    `json:"pid"`
}

type readyResponse struct {
	liveResponse
	Store   storeStats    `json:"store"`
	Runtime *runtimeStats `json:"runtime,omitempty"`
}

func (h *Handler) live() liveResponse {
	now := h.now().UTC()
	uptime := now.Sub(h.startedAt)
	if uptime < 0 {
		uptime = 0
	}
	return liveResponse{
		Status:    "ok",
		Timestamp: now.Format(time.RFC3339),
		UptimeSec: int64(uptime.Seconds()),
		Uptime:    uptime.String(),
	}
}

func (h *Handler) collectStore(ctx context.Context, includePool bool) storeStats {
	st := storeStats{Backend: h.backend, Reachable: true}
	if h.pool == nil {
		return st
	}
	if includePool {
		stat := h.pool.Stat()
		st.Pool = &poolStats{
			TotalConns:    stat.TotalConns(),
			IdleConns:     stat.IdleConns(),
			AcquiredConns: stat.AcquiredConns(),
			MaxConns:      stat.MaxConns(),
			AcquireCount:  stat.AcquireCount(),
		}
	}
	start := time.Now()
	pingCtx, cancel := context.WithTimeout(ctx, time.Second)
	err := h.pool.Ping(pingCtx)
	cancel()
	st.PingMs = time.Since(start).Milliseconds()
	if err != nil {
		st.Reachable = false
		st.Error = err.Error()
	}
	return st
}

// Live does not touch the store.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.live())
}

// Ready returns 503 when the store cannot be reached.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	h.ready(w, r, false)
}

// Full adds pool and runtime diagnostics to the readiness report.
func (h *Handler) Full(w http.ResponseWriter, r *http.Request) {
	h.ready(w, r, true)
}

func (h *Handler) ready(w http.ResponseWriter, r *http.Request, full bool) {
	resp := readyResponse{liveResponse: h.live(), Store: h.collectStore(r.Context(), full)}
	status := http.StatusOK
	if !resp.Store.Reachable {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	if full {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		resp.Runtime = &runtimeStats{
			GoVersion:  runtime.Version(),
			Goroutines: runtime.NumGoroutine(),
			GoMaxProcs: runtime.GOMAXPROCS(0),
			HeapAlloc:  mem.HeapAlloc,
			NumGC:      mem.NumGC,
			PID:        os.Getpid(),
		}
	}
	httputil.WriteJSON(w, status, resp)
}
