package handler

import (
	"context"
	"net/http"
	"time"

	"caixapdv/internal/infra"
	"caixapdv/internal/journal"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Health returns a JSON health check response for the agent itself.
// Checks the local Redis and journal database; reports the circuit
// breaker state so operators can tell "agent down" from "backend down".
func Health(diario *journal.SQLiteJournal, rdb *redis.Client, cb *infra.CircuitBreaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		diarioStatus := "connected"
		sqlDB, err := diario.DB().DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			diarioStatus = "error"
		}

		redisStatus := "connected"
		if rdb.Ping(ctx).Err() != nil {
			redisStatus = "error"
		}

		status := http.StatusOK
		if diarioStatus != "connected" || redisStatus != "connected" {
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"ok":       status == http.StatusOK,
			"diario":   diarioStatus,
			"redis":    redisStatus,
			"circuito": cb.State().String(),
		})
	}
}
