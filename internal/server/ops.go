package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/threadwise/agentd/internal/runtime"
	"github.com/threadwise/agentd/internal/store"
)

// trackedRequests are the per-endpoint counters surfaced in stats.
var trackedRequests = []string{"chat", "ask", "embed_file", "embed_upload", "search", "keyword_search"}

// RequestCounter tracks per-endpoint request counts in redis so the numbers
// survive restarts and aggregate across replicas.
type RequestCounter struct {
	rdb *redis.Client
}

func NewRequestCounter(rdb *redis.Client) *RequestCounter {
	return &RequestCounter{rdb: rdb}
}

// Inc bumps the counter for name and stamps last activity. Counting is
// best-effort.
func (r *RequestCounter) Inc(ctx context.Context, name string) {
	if r == nil || r.rdb == nil {
		return
	}
	_ = r.rdb.Incr(ctx, "stats:requests:"+name).Err()
	_ = r.rdb.Set(ctx, "stats:last_activity", time.Now().Format(time.RFC3339), 0).Err()
}

// LastActivity returns the timestamp of the most recent counted request.
func (r *RequestCounter) LastActivity(ctx context.Context) string {
	if r == nil || r.rdb == nil {
		return ""
	}
	v, _ := r.rdb.Get(ctx, "stats:last_activity").Result()
	return v
}

// Snapshot reads all tracked counters.
func (r *RequestCounter) Snapshot(ctx context.Context) map[string]int64 {
	out := make(map[string]int64, len(trackedRequests))
	for _, name := range trackedRequests {
		var n int64
		if r != nil && r.rdb != nil {
			n, _ = r.rdb.Get(ctx, "stats:requests:"+name).Int64()
		}
		out[name] = n
	}
	return out
}

// OpsHandler exposes operational endpoints.
type OpsHandler struct {
	Store   *store.Store
	Counter *RequestCounter
}

func (h *OpsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(runtime.EchoAuthMiddleware(secret))
	g.GET("", h.stats)
}

func (h *OpsHandler) stats(c echo.Context) error {
	ctx := c.Request().Context()
	docs, chunks, err := h.Store.CountDocuments(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, StatsResponse{
		Documents:    docs,
		Chunks:       chunks,
		Requests:     h.Counter.Snapshot(ctx),
		LastActivity: h.Counter.LastActivity(ctx),
	})
}
