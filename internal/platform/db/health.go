package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolHealth is the pool snapshot served by the health endpoint.
type PoolHealth struct {
	OpenConns    int32  `json:"open_conns"`
	IdleConns    int32  `json:"idle_conns"`
	InUseConns   int32  `json:"in_use_conns"`
	MaxConns     int32  `json:"max_conns"`
	AcquireCount int64  `json:"acquire_count"`
	AcquireWait  string `json:"acquire_wait"`
}

func snapshotPool(pool *pgxpool.Pool) PoolHealth {
	stat := pool.Stat()
	return PoolHealth{
		OpenConns:    stat.TotalConns(),
		IdleConns:    stat.IdleConns(),
		InUseConns:   stat.AcquiredConns(),
		MaxConns:     stat.MaxConns(),
		AcquireCount: stat.AcquireCount(),
		AcquireWait:  stat.AcquireDuration().String(),
	}
}

// healthPayload maps a ping result onto the response status and body.
func healthPayload(pool PoolHealth, pingErr error) (int, echo.Map) {
	if pingErr != nil {
		return http.StatusServiceUnavailable, echo.Map{
			"status": "unhealthy",
			"error":  pingErr.Error(),
			"pool":   pool,
		}
	}
	return http.StatusOK, echo.Map{
		"status": "healthy",
		"pool":   pool,
	}
}

// HealthHandler pings the database with a bounded timeout and reports
// the pool snapshot alongside the verdict.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		status, body := healthPayload(snapshotPool(pool), pool.Ping(ctx))
		return c.JSON(status, body)
	}
}
