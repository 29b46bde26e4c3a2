package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// StartWorkerPool launches numWorkers goroutines consuming the fechamento
// queue. Each worker blocks on BRPOP — zero CPU while idle.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, fechamento *FechamentoWorker, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, fechamento, i)
	}
	log.Info().Msgf("worker pool iniciado com %d workers", numWorkers)
}

func runWorker(ctx context.Context, rdb *redis.Client, fechamento *FechamentoWorker, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d encerrando", id)
			return
		default:
			// Blocking pop — waits up to 5s then loops to re-check ctx.
			result, err := rdb.BRPop(ctx, 5*time.Second, QueueFechamento).Result()
			if err != nil {
				continue // timeout or cancelled context
			}
			if len(result) < 2 {
				continue
			}
			processJob(ctx, rdb, fechamento, result[0], result[1])
		}
	}
}

// maxAttempts bounds the in-process retries (exponential backoff) before a
// job is parked in the DLQ.
const maxAttempts = 3

func processJob(ctx context.Context, rdb *redis.Client, fechamento *FechamentoWorker, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("worker: job ilegível")
		return
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		switch job.Type {
		case "fechamento":
			err = fechamento.Processar(ctx, job.Payload)
		default:
			log.Warn().Str("type", job.Type).Msg("worker: tipo de job desconhecido")
			return
		}
		if err == nil {
			return
		}
		log.Warn().Err(err).
			Str("type", job.Type).
			Int("attempt", attempt).
			Msg("worker: job falhou")
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempt*attempt) * time.Second):
			}
		}
	}

	SendToDLQ(ctx, rdb, queue, job.Type, job.Payload, err.Error())
}
