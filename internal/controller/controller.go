// Package controller orchestrates the cash-session lifecycle on one terminal:
// open, manual movements, close-with-reconciliation — against the remote
// backend when reachable, against the offline slot when not.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"caixapdv/internal/connectivity"
	"caixapdv/internal/dto"
	"caixapdv/internal/journal"
	"caixapdv/internal/model"
	"caixapdv/internal/offline"
	"caixapdv/internal/reconcile"
	"caixapdv/internal/remote"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var (
	ErrSemSessaoAberta = errors.New("não há sessão de caixa aberta neste terminal")
	ErrSessaoJaAberta  = errors.New("já existe uma sessão de caixa aberta neste terminal")
	// ErrSessaoOffline guards movements and close on a locally created
	// session: the backend has no record of it, so there is nothing to
	// mutate centrally. The operator must wait for the shift to be
	// regularized before these operations.
	ErrSessaoOffline = errors.New("sessão aberta offline: operação exige o servidor central")
)

// Gaveta opens the physical cash drawer. Fire-and-forget: no ack, no retry.
type Gaveta interface {
	Abrir()
}

// Notificador receives the snapshot of a successfully closed session so the
// closing pipeline (worksheet PDF, alert email) can run asynchronously.
type Notificador interface {
	FechamentoConcluido(ctx context.Context, s model.SessaoCaixa, diferenca decimal.Decimal, classificacao string) error
}

// CaixaController owns the session state machine for a single terminal.
// Mutating operations serialize on the mutex — the controller never issues
// overlapping mutating calls for the same session.
type CaixaController struct {
	mu     sync.Mutex
	estado Estado
	sessao *model.SessaoCaixa

	svc    remote.SessaoService
	probe  connectivity.Checker
	cache  *offline.SessionCache
	// Optional collaborators; diario writes are best-effort.
	gaveta Gaveta
	diario journal.Recorder
	notif  Notificador

	empresaID string
	terminal  string
}

func NewCaixaController(
	svc remote.SessaoService,
	probe connectivity.Checker,
	cache *offline.SessionCache,
	empresaID, terminal string,
) *CaixaController {
	return &CaixaController{
		estado:    EstadoCarregando,
		svc:       svc,
		probe:     probe,
		cache:     cache,
		empresaID: empresaID,
		terminal:  terminal,
	}
}

// WithGaveta attaches the drawer-open side effect.
func (c *CaixaController) WithGaveta(g Gaveta) *CaixaController { c.gaveta = g; return c }

// WithDiario attaches the local audit journal.
func (c *CaixaController) WithDiario(d journal.Recorder) *CaixaController { c.diario = d; return c }

// WithNotificador attaches the async closing pipeline.
func (c *CaixaController) WithNotificador(n Notificador) *CaixaController { c.notif = n; return c }

// Estado returns the controller's current lifecycle state.
func (c *CaixaController) Estado() Estado {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.estado
}

// Sessao returns the controller's view of the current session without
// touching the network, or nil when no shift is open.
func (c *CaixaController) Sessao() *dto.SessaoResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessao == nil {
		return nil
	}
	resp := sessaoResponse(c.sessao)
	return &resp
}

// ── Carregar ─────────────────────────────────────────────────────────────────

// Carregar resolves the current session: remote record when reachable, the
// offline slot otherwise (and also when the remote fetch itself fails).
// Absence is not an error — a nil session just means no shift is open.
func (c *CaixaController) Carregar(ctx context.Context) *dto.SessaoResponse {
	c.mu.Lock()
	defer c.mu.Unlock()

	var sessao *model.SessaoCaixa
	if c.probe.CanReachServer(ctx) {
		s, err := c.svc.Atual(ctx, c.empresaID, c.terminal)
		if err != nil {
			log.Warn().Err(err).Msg("caixa: falha ao consultar sessão remota, usando cache offline")
			sessao = c.cache.Load(ctx, c.empresaID, c.terminal)
		} else {
			sessao = s
		}
	} else {
		sessao = c.cache.Load(ctx, c.empresaID, c.terminal)
	}

	if sessao == nil {
		c.aplicar(EventoCarregouVazio)
		c.sessao = nil
		return nil
	}
	c.aplicar(EventoCarregouSessao)
	c.sessao = sessao
	resp := sessaoResponse(sessao)
	return &resp
}

// ── Abrir ────────────────────────────────────────────────────────────────────

// Abrir opens a shift. Unreachable backend (no path, transport failure, open
// circuit) degrades to an offline session — reported as success with the
// explicit offline qualifier. A backend *rejection* is a different animal:
// the network is fine and the refusal (duplicate open, validation) is
// surfaced to the operator instead of being masked by a silent fallback.
func (c *CaixaController) Abrir(ctx context.Context, operadorID string, req dto.AbrirCaixaRequest) (*dto.AberturaResponse, error) {
	terminal := req.Terminal
	if terminal == "" {
		terminal = c.terminal
	}
	// One agent process serves one terminal; a foreign id would write an
	// offline slot Carregar never reads back.
	if terminal != c.terminal {
		return nil, fmt.Errorf("terminal %q não corresponde ao terminal configurado %q", terminal, c.terminal)
	}
	if req.SaldoInicial.IsNegative() {
		return nil, errors.New("saldo inicial não pode ser negativo")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.estado == EstadoAberta {
		return nil, ErrSessaoJaAberta
	}

	if !c.probe.CanReachServer(ctx) {
		return c.abrirOffline(ctx, operadorID, req.SaldoInicial, terminal)
	}

	sessao, err := c.svc.Abrir(ctx, remote.AbrirPayload{
		EmpresaID:    c.empresaID,
		OperadorID:   operadorID,
		Terminal:     terminal,
		SaldoInicial: req.SaldoInicial,
	})
	if err != nil {
		if errors.Is(err, remote.ErrIndisponivel) {
			// Probe said yes but the call died in flight — same degraded path.
			log.Warn().Err(err).Msg("caixa: backend sumiu durante a abertura, caindo para offline")
			return c.abrirOffline(ctx, operadorID, req.SaldoInicial, terminal)
		}
		return nil, err
	}

	if err := c.aplicar(EventoAbriu); err != nil {
		return nil, err
	}
	c.sessao = sessao
	c.registrar(ctx, journal.Entrada{
		SessaoID: sessao.ID,
		Evento:   journal.EventoAbertura,
		Detalhe:  fmt.Sprintf("saldo inicial %s", req.SaldoInicial.StringFixed(2)),
		Operador: operadorID,
	})

	return &dto.AberturaResponse{
		Sessao:   sessaoResponse(sessao),
		Offline:  false,
		Mensagem: "Caixa aberto",
	}, nil
}

// abrirOffline synthesizes and persists a local session. Caller holds the lock.
func (c *CaixaController) abrirOffline(ctx context.Context, operadorID string, saldoInicial decimal.Decimal, terminal string) (*dto.AberturaResponse, error) {
	sessao := offline.NewOfflineSession(c.empresaID, operadorID, saldoInicial, terminal)
	if err := c.cache.Save(ctx, sessao); err != nil {
		// Without the slot the shift would evaporate on restart; that is
		// worse than telling the operator to try again.
		return nil, fmt.Errorf("falha ao gravar sessão offline: %w", err)
	}
	if err := c.aplicar(EventoAbriu); err != nil {
		return nil, err
	}
	c.sessao = sessao
	c.registrar(ctx, journal.Entrada{
		SessaoID: sessao.ID,
		Evento:   journal.EventoAberturaOffline,
		Detalhe:  fmt.Sprintf("saldo inicial %s", saldoInicial.StringFixed(2)),
		Operador: operadorID,
		Offline:  true,
	})
	log.Warn().Str("sessao_id", sessao.ID).Msg("caixa: sessão aberta OFFLINE — não registrada no servidor")

	return &dto.AberturaResponse{
		Sessao:   sessaoResponse(sessao),
		Offline:  true,
		Mensagem: "Caixa aberto OFFLINE — a sessão será regularizada quando o servidor voltar",
	}, nil
}

// ── RegistrarMovimento ───────────────────────────────────────────────────────

// RegistrarMovimento records a sangria or suprimento on the backend and, on
// success, mirrors the accumulator locally and fires the drawer. There is no
// offline fallback for movements: on any failure nothing is mutated and the
// error is surfaced, safe for the operator to retry.
func (c *CaixaController) RegistrarMovimento(ctx context.Context, operadorID string, req dto.MovimentoRequest) error {
	if req.Tipo != model.MovimentoSangria && req.Tipo != model.MovimentoSuprimento {
		return fmt.Errorf("tipo de movimento inválido: %q", req.Tipo)
	}
	if !req.Valor.IsPositive() {
		return errors.New("valor do movimento deve ser maior que zero")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.estado != EstadoAberta || c.sessao == nil {
		return ErrSemSessaoAberta
	}
	if c.sessao.Offline() {
		return ErrSessaoOffline
	}

	err := c.svc.RegistrarMovimento(ctx, remote.MovimentoPayload{
		EmpresaID:  c.empresaID,
		OperadorID: operadorID,
		SessaoID:   c.sessao.ID,
		Tipo:       req.Tipo,
		Valor:      req.Valor,
		Descricao:  req.Descricao,
	})
	if err != nil {
		c.registrar(ctx, journal.Entrada{
			SessaoID: c.sessao.ID,
			Evento:   journal.EventoFalhaMovimento,
			Detalhe:  err.Error(),
			Operador: operadorID,
		})
		return err
	}

	// Mirror the accumulator so the local expected-cash display stays right.
	switch req.Tipo {
	case model.MovimentoSangria:
		c.sessao.TotalSangria = c.sessao.TotalSangria.Add(req.Valor)
	case model.MovimentoSuprimento:
		c.sessao.TotalSuprimento = c.sessao.TotalSuprimento.Add(req.Valor)
	}

	c.registrar(ctx, journal.Entrada{
		SessaoID: c.sessao.ID,
		Evento:   journal.EventoMovimento,
		Detalhe:  fmt.Sprintf("%s %s: %s", req.Tipo, req.Valor.StringFixed(2), req.Descricao),
		Operador: operadorID,
	})

	if c.gaveta != nil {
		go c.gaveta.Abrir()
	}
	return nil
}

// ── Conferencia ──────────────────────────────────────────────────────────────

// Conferencia returns the closing worksheet for the current session without
// closing it. Display-only: the authoritative diferenca is the backend's.
func (c *CaixaController) Conferencia(req dto.ConferenciaRequest) (*dto.PlanilhaResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.estado != EstadoAberta || c.sessao == nil {
		return nil, ErrSemSessaoAberta
	}
	planilha := montarPlanilha(c.sessao, conferencia(req.Conferencia))
	return &planilha, nil
}

// ── Fechar ───────────────────────────────────────────────────────────────────

// Fechar closes the shift at the backend. On failure the session stays open
// and untouched; on success it leaves the Open state entirely — the offline
// slot is cleared and the closing pipeline is notified.
func (c *CaixaController) Fechar(ctx context.Context, operadorID string, req dto.FecharCaixaRequest) (*dto.FechamentoResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.estado != EstadoAberta || c.sessao == nil {
		return nil, ErrSemSessaoAberta
	}
	if c.sessao.Offline() {
		return nil, ErrSessaoOffline
	}

	if err := c.aplicar(EventoFechamentoIniciado); err != nil {
		return nil, err
	}

	conf := conferencia(req.Conferencia)
	err := c.svc.Fechar(ctx, remote.FecharPayload{
		SessaoID:          c.sessao.ID,
		EmpresaID:         c.empresaID,
		OperadorID:        operadorID,
		ConferidoDinheiro: conf.Dinheiro,
		ConferidoDebito:   conf.Debito,
		ConferidoCredito:  conf.Credito,
		ConferidoPix:      conf.Pix,
		Observacoes:       req.Observacoes,
	})
	if err != nil {
		c.aplicar(EventoFechamentoFalhou)
		c.registrar(ctx, journal.Entrada{
			SessaoID: c.sessao.ID,
			Evento:   journal.EventoFalhaFechamento,
			Detalhe:  err.Error(),
			Operador: operadorID,
		})
		return nil, err
	}

	planilha := montarPlanilha(c.sessao, conf)

	// Snapshot of the closed session for the journal and the closing
	// pipeline. The backend's persisted record is the authoritative one;
	// this mirror carries the same numbers for the local worksheet.
	agora := time.Now()
	fechada := *c.sessao
	fechada.Status = model.StatusFechado
	fechada.OperadorFechamento = &operadorID
	fechada.FechadaEm = &agora
	fechada.ConferidoDinheiro = &conf.Dinheiro
	fechada.ConferidoDebito = &conf.Debito
	fechada.ConferidoCredito = &conf.Credito
	fechada.ConferidoPix = &conf.Pix
	saldoFinal := planilha.TotalConferido
	fechada.SaldoFinal = &saldoFinal
	diferenca := planilha.Diferenca
	fechada.Diferenca = &diferenca
	fechada.Observacoes = req.Observacoes

	c.aplicar(EventoFechou)
	c.sessao = nil
	if err := c.cache.Clear(ctx, c.empresaID, fechada.Terminal); err != nil {
		log.Warn().Err(err).Msg("caixa: falha ao limpar slot offline após fechamento")
	}
	c.registrar(ctx, journal.Entrada{
		SessaoID: fechada.ID,
		Evento:   journal.EventoFechamento,
		Detalhe:  fmt.Sprintf("diferença %s (%s)", planilha.Diferenca.StringFixed(2), planilha.Classificacao),
		Operador: operadorID,
	})

	if c.notif != nil {
		if err := c.notif.FechamentoConcluido(ctx, fechada, planilha.Diferenca, planilha.Classificacao); err != nil {
			log.Error().Err(err).Msg("caixa: falha ao enfileirar relatório de fechamento")
		}
	}

	return &dto.FechamentoResponse{
		Planilha: planilha,
		Status:   model.StatusFechado,
	}, nil
}

// ── internals ────────────────────────────────────────────────────────────────

// aplicar feeds an event through the reducer; an invalid transition is a
// programming error worth logging loudly.
func (c *CaixaController) aplicar(ev Evento) error {
	prox, err := transicao(c.estado, ev)
	if err != nil {
		log.Error().
			Stringer("estado", c.estado).
			Stringer("evento", ev).
			Msg("caixa: transição inválida")
		return fmt.Errorf("%w: %s + %s", ErrTransicaoInvalida, c.estado, ev)
	}
	c.estado = prox
	return nil
}

func (c *CaixaController) registrar(ctx context.Context, e journal.Entrada) {
	if c.diario == nil {
		return
	}
	if err := c.diario.Registrar(ctx, e); err != nil {
		log.Warn().Err(err).Str("evento", e.Evento).Msg("caixa: falha ao gravar no diário")
	}
}

func conferencia(d dto.ConferenciaDeclarada) reconcile.Conferencia {
	return reconcile.Conferencia{
		Dinheiro: d.Dinheiro,
		Debito:   d.Debito,
		Credito:  d.Credito,
		Pix:      d.Pix,
	}
}

func montarPlanilha(s *model.SessaoCaixa, conf reconcile.Conferencia) dto.PlanilhaResponse {
	diferenca := reconcile.Diferenca(s, conf)
	return dto.PlanilhaResponse{
		SessaoID:         s.ID,
		DinheiroEsperado: reconcile.DinheiroEsperado(s),
		TotalEsperado:    reconcile.TotalEsperado(s),
		TotalConferido:   reconcile.TotalConferido(conf),
		Diferenca:        diferenca,
		Classificacao:    reconcile.Classificar(diferenca),
	}
}

func sessaoResponse(s *model.SessaoCaixa) dto.SessaoResponse {
	return dto.SessaoResponse{
		ID:               s.ID,
		EmpresaID:        s.EmpresaID,
		Terminal:         s.Terminal,
		Status:           s.Status,
		Offline:          s.Offline(),
		OperadorAbertura: s.OperadorAbertura,
		AbertaEm:         s.AbertaEm.Format("2006-01-02T15:04:05Z07:00"),
		SaldoInicial:     s.SaldoInicial,
		TotalDinheiro:    s.TotalDinheiro,
		TotalDebito:      s.TotalDebito,
		TotalCredito:     s.TotalCredito,
		TotalPix:         s.TotalPix,
		TotalOutros:      s.TotalOutros,
		TotalSangria:     s.TotalSangria,
		TotalSuprimento:  s.TotalSuprimento,
		TotalVendas:      s.TotalVendas,
		QtdVendas:        s.QtdVendas,
		DinheiroEsperado: reconcile.DinheiroEsperado(s),
	}
}
