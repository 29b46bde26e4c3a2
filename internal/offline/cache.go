package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"caixapdv/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// keyNamespace keeps the session slot away from unrelated local state
// (worker queues, DLQ lists) sharing the same store.
const keyNamespace = "caixapdv:offline:sessao"

// SessionCache is the single-slot fallback for one open session per
// (empresa, terminal). It is a slot, not a queue: Save overwrites.
type SessionCache struct {
	store Store
}

func NewSessionCache(store Store) *SessionCache { return &SessionCache{store: store} }

func slotKey(empresaID, terminal string) string {
	return fmt.Sprintf("%s:%s:%s", keyNamespace, empresaID, terminal)
}

// Save serializes the session into its slot, overwriting any prior value.
func (c *SessionCache) Save(ctx context.Context, s *model.SessaoCaixa) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("offline: marshal sessao: %w", err)
	}
	return c.store.Set(ctx, slotKey(s.EmpresaID, s.Terminal), data)
}

// Load returns the cached open session for (empresa, terminal), or nil.
// Missing, corrupt, foreign-company and already-closed slots are all treated
// as absent — the offline path must never fail the operator over a bad cache.
func (c *SessionCache) Load(ctx context.Context, empresaID, terminal string) *model.SessaoCaixa {
	data, err := c.store.Get(ctx, slotKey(empresaID, terminal))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Warn().Err(err).Msg("offline: cache read failed, treating as empty")
		}
		return nil
	}

	var s model.SessaoCaixa
	if err := json.Unmarshal(data, &s); err != nil {
		log.Warn().Err(err).Msg("offline: corrupt cache slot, treating as empty")
		return nil
	}
	if s.EmpresaID != empresaID || !s.Aberta() {
		return nil
	}
	return &s
}

// Clear removes the slot. Called after a successful close or when the
// session is adopted by the backend.
func (c *SessionCache) Clear(ctx context.Context, empresaID, terminal string) error {
	return c.store.Delete(ctx, slotKey(empresaID, terminal))
}

// NewOfflineSession builds a fresh open session with a locally generated,
// visibly tagged id and all accumulators zeroed. The caller persists it via
// Save and must reconcile it with the backend when connectivity returns.
func NewOfflineSession(empresaID, operadorID string, saldoInicial decimal.Decimal, terminal string) *model.SessaoCaixa {
	return &model.SessaoCaixa{
		ID:               model.OfflineIDPrefix + uuid.NewString(),
		EmpresaID:        empresaID,
		Terminal:         terminal,
		Status:           model.StatusAberto,
		OperadorAbertura: operadorID,
		AbertaEm:         time.Now(),
		SaldoInicial:     saldoInicial,
		TotalDinheiro:    decimal.Zero,
		TotalDebito:      decimal.Zero,
		TotalCredito:     decimal.Zero,
		TotalPix:         decimal.Zero,
		TotalOutros:      decimal.Zero,
		TotalSangria:     decimal.Zero,
		TotalSuprimento:  decimal.Zero,
		TotalVendas:      decimal.Zero,
	}
}
