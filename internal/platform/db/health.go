package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats is the JSON view of pgxpool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// Pinger is a backing service that can report liveness. The Redis cache and
// the AMQP publisher implement it.
type Pinger interface {
	Name() string
	Ping(ctx context.Context) error
}

// poolPinger adapts the pgx pool to Pinger.
type poolPinger struct{ pool *pgxpool.Pool }

func (p poolPinger) Name() string                   { return "postgres" }
func (p poolPinger) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

// DependencyStatus is one entry of the health report.
type DependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthHandler pings postgres and every extra dependency. Postgres being
// down makes the service unhealthy; the others only degrade it.
func HealthHandler(pool *pgxpool.Pool, deps ...Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		body := map[string]interface{}{}
		primary := checkAll(ctx, poolPinger{pool})
		optional := checkAll(ctx, deps...)
		for name, st := range optional {
			primary[name] = st
		}
		body["dependencies"] = primary
		body["pool"] = GetPoolStats(pool)

		code, status := overallStatus(primary)
		body["status"] = status
		return c.JSON(code, body)
	}
}

func checkAll(ctx context.Context, deps ...Pinger) map[string]DependencyStatus {
	out := make(map[string]DependencyStatus, len(deps))
	for _, d := range deps {
		if err := d.Ping(ctx); err != nil {
			out[d.Name()] = DependencyStatus{Status: "down", Error: err.Error()}
			continue
		}
		out[d.Name()] = DependencyStatus{Status: "up"}
	}
	return out
}

func overallStatus(deps map[string]DependencyStatus) (int, string) {
	if pg, ok := deps["postgres"]; ok && pg.Status != "up" {
		return http.StatusServiceUnavailable, "unhealthy"
	}
	for _, d := range deps {
		if d.Status != "up" {
			return http.StatusOK, "degraded"
		}
	}
	return http.StatusOK, "healthy"
}
