// Package worker runs the asynchronous closing pipeline: after a session is
// closed the worksheet PDF is rendered and, on an alerta difference, emailed
// to the supervisor. Jobs flow through redis lists so a crash between close
// and render loses nothing.
package worker

import (
	"context"
	"encoding/json"
	"time"

	"caixapdv/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const QueueFechamento = "caixapdv:jobs:fechamento"

// Job is the generic envelope for queued tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// FechamentoJob carries the snapshot of a closed session.
type FechamentoJob struct {
	Sessao        model.SessaoCaixa `json:"sessao"`
	Diferenca     decimal.Decimal   `json:"diferenca"`
	Classificacao string            `json:"classificacao"`
	FechadoEm     time.Time         `json:"fechado_em"`
}

// Dispatcher enqueues jobs; it satisfies the controller's Notificador.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher { return &Dispatcher{rdb: rdb} }

// FechamentoConcluido queues the closing pipeline for a just-closed session.
func (d *Dispatcher) FechamentoConcluido(ctx context.Context, s model.SessaoCaixa, diferenca decimal.Decimal, classificacao string) error {
	return d.enqueue(ctx, QueueFechamento, "fechamento", FechamentoJob{
		Sessao:        s,
		Diferenca:     diferenca,
		Classificacao: classificacao,
		FechadoEm:     time.Now(),
	})
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(Job{Type: jobType, Payload: data})
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}
