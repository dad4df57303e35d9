package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// poolGauges is the pool snapshot reported by the health endpoint. Enough
// for an operator to spot saturation without a metrics stack.
type poolGauges struct {
	Total    int32 `json:"total"`
	Idle     int32 `json:"idle"`
	Acquired int32 `json:"acquired"`
	Max      int32 `json:"max"`
}

func snapshot(pool *pgxpool.Pool) poolGauges {
	s := pool.Stat()
	return poolGauges{
		Total:    s.TotalConns(),
		Idle:     s.IdleConns(),
		Acquired: s.AcquiredConns(),
		Max:      s.MaxConns(),
	}
}

// healthPayload builds the response for one health probe. pingErr nil means
// the database answered.
func healthPayload(g poolGauges, pingErr error) (int, map[string]any) {
	if pingErr != nil {
		return http.StatusServiceUnavailable, map[string]any{
			"status":   "unavailable",
			"database": pingErr.Error(),
			"pool":     g,
		}
	}
	return http.StatusOK, map[string]any{
		"status": "ok",
		"pool":   g,
	}
}

// HealthHandler pings the database with a short deadline and reports the
// verdict alongside pool gauges.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
		defer cancel()

		code, body := healthPayload(snapshot(pool), pool.Ping(ctx))
		return c.JSON(code, body)
	}
}
