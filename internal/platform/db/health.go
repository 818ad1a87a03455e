package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats is the pool snapshot reported by the health endpoint.
type PoolStats struct {
	Total     int32  `json:"total"`
	Idle      int32  `json:"idle"`
	InUse     int32  `json:"in_use"`
	Max       int32  `json:"max"`
	WaitCount int64  `json:"wait_count"`
	WaitTime  string `json:"wait_time"`
}

// Health is the body of the database health check response.
type Health struct {
	Status string    `json:"status"`
	Error  string    `json:"error,omitempty"`
	Pool   PoolStats `json:"pool"`
}

// Stats snapshots the pool. WaitCount tracks acquires that found no idle
// connection, the first sign the pool is undersized for the query load.
func Stats(pool *pgxpool.Pool) PoolStats {
	s := pool.Stat()
	return PoolStats{
		Total:     s.TotalConns(),
		Idle:      s.IdleConns(),
		InUse:     s.AcquiredConns(),
		Max:       s.MaxConns(),
		WaitCount: s.EmptyAcquireCount(),
		WaitTime:  s.AcquireDuration().String(),
	}
}

// HealthHandler reports database reachability plus a pool snapshot.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		if err := pool.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, Health{
				Status: "unavailable",
				Error:  err.Error(),
				Pool:   Stats(pool),
			})
		}

		return c.JSON(http.StatusOK, Health{
			Status: "ok",
			Pool:   Stats(pool),
		})
	}
}
