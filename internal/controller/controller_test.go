package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"caixapdv/internal/dto"
	"caixapdv/internal/journal"
	"caixapdv/internal/model"
	"caixapdv/internal/offline"
	"caixapdv/internal/reconcile"
	"caixapdv/internal/remote"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

// ── Fakes ────────────────────────────────────────────────────────────────────

type fakeProbe struct{ reachable bool }

func (p *fakeProbe) CanReachServer(context.Context) bool { return p.reachable }

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, offline.ErrNotFound
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// fakeService is an in-memory stand-in for the backend.
type fakeService struct {
	atual     *model.SessaoCaixa
	atualErr  error
	abrirErr  error
	movErr    error
	fecharErr error

	// sessaoAberta seeds the session Abrir returns (accumulators included),
	// simulating sales already applied server-side.
	sessaoAberta *model.SessaoCaixa

	movimentos  []remote.MovimentoPayload
	fechamentos []remote.FecharPayload
}

func (f *fakeService) Atual(context.Context, string, string) (*model.SessaoCaixa, error) {
	return f.atual, f.atualErr
}

func (f *fakeService) Abrir(_ context.Context, p remote.AbrirPayload) (*model.SessaoCaixa, error) {
	if f.abrirErr != nil {
		return nil, f.abrirErr
	}
	if f.sessaoAberta != nil {
		s := *f.sessaoAberta
		return &s, nil
	}
	return &model.SessaoCaixa{
		ID:               "srv-1",
		EmpresaID:        p.EmpresaID,
		Terminal:         p.Terminal,
		Status:           model.StatusAberto,
		OperadorAbertura: p.OperadorID,
		AbertaEm:         time.Now(),
		SaldoInicial:     p.SaldoInicial,
	}, nil
}

func (f *fakeService) RegistrarMovimento(_ context.Context, p remote.MovimentoPayload) error {
	if f.movErr != nil {
		return f.movErr
	}
	f.movimentos = append(f.movimentos, p)
	return nil
}

func (f *fakeService) Fechar(_ context.Context, p remote.FecharPayload) error {
	if f.fecharErr != nil {
		return f.fecharErr
	}
	f.fechamentos = append(f.fechamentos, p)
	return nil
}

var _ remote.SessaoService = (*fakeService)(nil)

type fakeGaveta struct{ aberturas atomic.Int32 }

func (g *fakeGaveta) Abrir() { g.aberturas.Add(1) }

type fakeDiario struct {
	mu       sync.Mutex
	entradas []journal.Entrada
}

func (d *fakeDiario) Registrar(_ context.Context, e journal.Entrada) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entradas = append(d.entradas, e)
	return nil
}

func (d *fakeDiario) eventos() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.entradas))
	for i, e := range d.entradas {
		out[i] = e.Evento
	}
	return out
}

type fakeNotif struct {
	sessao        *model.SessaoCaixa
	diferenca     decimal.Decimal
	classificacao string
}

func (n *fakeNotif) FechamentoConcluido(_ context.Context, s model.SessaoCaixa, d decimal.Decimal, c string) error {
	n.sessao = &s
	n.diferenca = d
	n.classificacao = c
	return nil
}

type fixture struct {
	ctl    *CaixaController
	svc    *fakeService
	probe  *fakeProbe
	cache  *offline.SessionCache
	gaveta *fakeGaveta
	diario *fakeDiario
	notif  *fakeNotif
}

func newFixture(reachable bool) *fixture {
	f := &fixture{
		svc:    &fakeService{},
		probe:  &fakeProbe{reachable: reachable},
		cache:  offline.NewSessionCache(newMemStore()),
		gaveta: &fakeGaveta{},
		diario: &fakeDiario{},
		notif:  &fakeNotif{},
	}
	f.ctl = NewCaixaController(f.svc, f.probe, f.cache, "emp-1", "01").
		WithGaveta(f.gaveta).
		WithDiario(f.diario).
		WithNotificador(f.notif)
	return f
}

// ── Carregar ─────────────────────────────────────────────────────────────────

func TestCarregarOnline(t *testing.T) {
	f := newFixture(true)
	f.svc.atual = &model.SessaoCaixa{ID: "srv-9", EmpresaID: "emp-1", Terminal: "01", Status: model.StatusAberto}

	resp := f.ctl.Carregar(context.Background())
	require.NotNil(t, resp)
	assert.Equal(t, "srv-9", resp.ID)
	assert.False(t, resp.Offline)
	assert.Equal(t, EstadoAberta, f.ctl.Estado())
}

func TestCarregarVazio(t *testing.T) {
	f := newFixture(true)

	resp := f.ctl.Carregar(context.Background())
	assert.Nil(t, resp)
	assert.Equal(t, EstadoSemSessao, f.ctl.Estado())
}

func TestCarregarOfflineUsaCache(t *testing.T) {
	f := newFixture(false)
	s := offline.NewOfflineSession("emp-1", "op-1", dec(200), "01")
	require.NoError(t, f.cache.Save(context.Background(), s))

	resp := f.ctl.Carregar(context.Background())
	require.NotNil(t, resp)
	assert.Equal(t, s.ID, resp.ID)
	assert.True(t, resp.Offline)
}

func TestCarregarCaiParaCacheQuandoRemotoFalha(t *testing.T) {
	f := newFixture(true)
	f.svc.atualErr = fmt.Errorf("%w: boom", remote.ErrIndisponivel)
	s := offline.NewOfflineSession("emp-1", "op-1", dec(200), "01")
	require.NoError(t, f.cache.Save(context.Background(), s))

	resp := f.ctl.Carregar(context.Background())
	require.NotNil(t, resp)
	assert.Equal(t, s.ID, resp.ID)
}

func TestCarregarRemotoAutoritativo(t *testing.T) {
	// The backend closed the session from another station; a reload drops it.
	f := newFixture(true)
	_, err := f.ctl.Abrir(context.Background(), "op-1", dto.AbrirCaixaRequest{SaldoInicial: dec(100)})
	require.NoError(t, err)

	resp := f.ctl.Carregar(context.Background())
	assert.Nil(t, resp)
	assert.Equal(t, EstadoSemSessao, f.ctl.Estado())
	assert.Nil(t, f.ctl.Sessao())
}

// ── Abrir ────────────────────────────────────────────────────────────────────

func TestAbrirOnline(t *testing.T) {
	f := newFixture(true)

	resp, err := f.ctl.Abrir(context.Background(), "op-1", dto.AbrirCaixaRequest{SaldoInicial: dec(200)})
	require.NoError(t, err)
	assert.False(t, resp.Offline)
	assert.Equal(t, "srv-1", resp.Sessao.ID)
	assert.Equal(t, model.StatusAberto, resp.Sessao.Status)
	assert.Equal(t, EstadoAberta, f.ctl.Estado())
	assert.Equal(t, []string{journal.EventoAbertura}, f.diario.eventos())
}

func TestAbrirOfflineQuandoSemConectividade(t *testing.T) {
	f := newFixture(false)

	resp, err := f.ctl.Abrir(context.Background(), "op-1", dto.AbrirCaixaRequest{SaldoInicial: dec(200), Terminal: "01"})
	require.NoError(t, err, "abertura offline é sucesso do ponto de vista do operador")
	assert.True(t, resp.Offline)
	assert.Contains(t, resp.Mensagem, "OFFLINE")
	assert.Equal(t, model.StatusAberto, resp.Sessao.Status)
	assert.Equal(t, "200", resp.Sessao.SaldoInicial.String())
	assert.True(t, resp.Sessao.TotalDinheiro.IsZero())
	assert.True(t, resp.Sessao.TotalSangria.IsZero())
	assert.Contains(t, resp.Sessao.ID, model.OfflineIDPrefix)

	// Retrievable through the cache slot.
	cached := f.cache.Load(context.Background(), "emp-1", "01")
	require.NotNil(t, cached)
	assert.Equal(t, resp.Sessao.ID, cached.ID)

	assert.Equal(t, []string{journal.EventoAberturaOffline}, f.diario.eventos())
}

func TestAbrirCaiParaOfflineQuandoTransporteFalha(t *testing.T) {
	f := newFixture(true)
	f.svc.abrirErr = fmt.Errorf("%w: connection reset", remote.ErrIndisponivel)

	resp, err := f.ctl.Abrir(context.Background(), "op-1", dto.AbrirCaixaRequest{SaldoInicial: dec(100)})
	require.NoError(t, err)
	assert.True(t, resp.Offline)
	assert.Contains(t, resp.Sessao.ID, model.OfflineIDPrefix)
}

func TestAbrirRejeicaoDoBackendNaoCaiParaOffline(t *testing.T) {
	f := newFixture(true)
	f.svc.abrirErr = &remote.ServiceError{Status: http.StatusConflict, Detail: "Já existe caixa aberto"}

	_, err := f.ctl.Abrir(context.Background(), "op-1", dto.AbrirCaixaRequest{SaldoInicial: dec(100)})
	var se *remote.ServiceError
	require.ErrorAs(t, err, &se, "rejeição do backend deve ser exposta, não mascarada")
	assert.NotEqual(t, EstadoAberta, f.ctl.Estado())
	assert.Nil(t, f.cache.Load(context.Background(), "emp-1", "01"), "rejeição não pode gravar sessão offline")
}

func TestAbrirDuplicado(t *testing.T) {
	f := newFixture(true)
	_, err := f.ctl.Abrir(context.Background(), "op-1", dto.AbrirCaixaRequest{SaldoInicial: dec(100)})
	require.NoError(t, err)

	_, err = f.ctl.Abrir(context.Background(), "op-1", dto.AbrirCaixaRequest{SaldoInicial: dec(100)})
	assert.ErrorIs(t, err, ErrSessaoJaAberta)
}

func TestAbrirTerminalDivergente(t *testing.T) {
	// Opening with a terminal id other than the configured one would write an
	// offline slot that a reload of this agent never finds. Reject it outright.
	f := newFixture(false)

	_, err := f.ctl.Abrir(context.Background(), "op-1", dto.AbrirCaixaRequest{SaldoInicial: dec(100), Terminal: "02"})
	require.Error(t, err)
	assert.Nil(t, f.cache.Load(context.Background(), "emp-1", "02"))
	assert.Nil(t, f.cache.Load(context.Background(), "emp-1", "01"))

	// The configured id (explicit or defaulted) still opens, and is
	// recoverable through Carregar.
	resp, err := f.ctl.Abrir(context.Background(), "op-1", dto.AbrirCaixaRequest{SaldoInicial: dec(100), Terminal: "01"})
	require.NoError(t, err)
	assert.True(t, resp.Offline)

	recarregado := f.ctl.Carregar(context.Background())
	require.NotNil(t, recarregado)
	assert.Equal(t, resp.Sessao.ID, recarregado.ID)
}

func TestAbrirSaldoNegativo(t *testing.T) {
	f := newFixture(true)
	_, err := f.ctl.Abrir(context.Background(), "op-1", dto.AbrirCaixaRequest{SaldoInicial: dec(-1)})
	assert.Error(t, err)
}

// ── RegistrarMovimento ───────────────────────────────────────────────────────

func abrir(t *testing.T, f *fixture, saldo float64) {
	t.Helper()
	_, err := f.ctl.Abrir(context.Background(), "op-1", dto.AbrirCaixaRequest{SaldoInicial: dec(saldo)})
	require.NoError(t, err)
}

func TestMovimentoSangria(t *testing.T) {
	f := newFixture(true)
	abrir(t, f, 500)
	antes := f.ctl.Sessao().DinheiroEsperado

	err := f.ctl.RegistrarMovimento(context.Background(), "op-1", dto.MovimentoRequest{
		Tipo: model.MovimentoSangria, Valor: dec(80), Descricao: "pagamento fornecedor",
	})
	require.NoError(t, err)

	depois := f.ctl.Sessao()
	assert.Equal(t, "80", depois.TotalSangria.String())
	assert.True(t, depois.TotalSuprimento.IsZero())
	assert.True(t, depois.TotalDinheiro.IsZero())
	assert.Equal(t, antes.Sub(dec(80)).String(), depois.DinheiroEsperado.String())

	require.Len(t, f.svc.movimentos, 1)
	assert.Equal(t, model.MovimentoSangria, f.svc.movimentos[0].Tipo)

	assert.Eventually(t, func() bool { return f.gaveta.aberturas.Load() == 1 },
		time.Second, 10*time.Millisecond, "gaveta deve abrir após o movimento")
}

func TestMovimentoSuprimento(t *testing.T) {
	f := newFixture(true)
	abrir(t, f, 500)

	err := f.ctl.RegistrarMovimento(context.Background(), "op-1", dto.MovimentoRequest{
		Tipo: model.MovimentoSuprimento, Valor: dec(50), Descricao: "troco",
	})
	require.NoError(t, err)
	assert.Equal(t, "50", f.ctl.Sessao().TotalSuprimento.String())
}

func TestMovimentoFalhaNaoMutaEstado(t *testing.T) {
	f := newFixture(true)
	abrir(t, f, 500)
	f.svc.movErr = &remote.ServiceError{Status: http.StatusBadRequest, Detail: "sessão fechada"}

	err := f.ctl.RegistrarMovimento(context.Background(), "op-1", dto.MovimentoRequest{
		Tipo: model.MovimentoSangria, Valor: dec(80),
	})
	require.Error(t, err)

	s := f.ctl.Sessao()
	assert.True(t, s.TotalSangria.IsZero(), "falha não pode mutar acumuladores")
	assert.Equal(t, int32(0), f.gaveta.aberturas.Load(), "gaveta não abre em falha")

	// Same request is safe to retry once the backend recovers.
	f.svc.movErr = nil
	require.NoError(t, f.ctl.RegistrarMovimento(context.Background(), "op-1", dto.MovimentoRequest{
		Tipo: model.MovimentoSangria, Valor: dec(80),
	}))
}

func TestMovimentoSemSessao(t *testing.T) {
	f := newFixture(true)
	err := f.ctl.RegistrarMovimento(context.Background(), "op-1", dto.MovimentoRequest{
		Tipo: model.MovimentoSangria, Valor: dec(10),
	})
	assert.ErrorIs(t, err, ErrSemSessaoAberta)
}

func TestMovimentoValidacao(t *testing.T) {
	f := newFixture(true)
	abrir(t, f, 100)

	err := f.ctl.RegistrarMovimento(context.Background(), "op-1", dto.MovimentoRequest{Tipo: "deposito", Valor: dec(10)})
	assert.Error(t, err)

	err = f.ctl.RegistrarMovimento(context.Background(), "op-1", dto.MovimentoRequest{Tipo: model.MovimentoSangria, Valor: dec(0)})
	assert.Error(t, err)

	err = f.ctl.RegistrarMovimento(context.Background(), "op-1", dto.MovimentoRequest{Tipo: model.MovimentoSangria, Valor: dec(-5)})
	assert.Error(t, err)
}

func TestMovimentoEmSessaoOffline(t *testing.T) {
	f := newFixture(false)
	abrir(t, f, 100)

	err := f.ctl.RegistrarMovimento(context.Background(), "op-1", dto.MovimentoRequest{
		Tipo: model.MovimentoSangria, Valor: dec(10),
	})
	assert.ErrorIs(t, err, ErrSessaoOffline)
}

// ── Conferencia / Fechar ─────────────────────────────────────────────────────

// sessaoComVendas seeds the backend fake with the worked reconciliation
// scenario: saldo 200, dinheiro 500, debito 300, suprimento 50, sangria 100.
func sessaoComVendas() *model.SessaoCaixa {
	return &model.SessaoCaixa{
		ID:              "srv-1",
		EmpresaID:       "emp-1",
		Terminal:        "01",
		Status:          model.StatusAberto,
		AbertaEm:        time.Now(),
		SaldoInicial:    dec(200),
		TotalDinheiro:   dec(500),
		TotalDebito:     dec(300),
		TotalSuprimento: dec(50),
		TotalSangria:    dec(100),
	}
}

func TestConferenciaPreview(t *testing.T) {
	f := newFixture(true)
	f.svc.sessaoAberta = sessaoComVendas()
	abrir(t, f, 200)

	planilha, err := f.ctl.Conferencia(dto.ConferenciaRequest{
		Conferencia: dto.ConferenciaDeclarada{Dinheiro: dec(640), Debito: dec(300)},
	})
	require.NoError(t, err)
	assert.Equal(t, "650", planilha.DinheiroEsperado.String())
	assert.Equal(t, "950", planilha.TotalEsperado.String())
	assert.Equal(t, "940", planilha.TotalConferido.String())
	assert.Equal(t, "-10", planilha.Diferenca.String())
	assert.Equal(t, reconcile.ClassAlerta, planilha.Classificacao)

	// Preview does not close anything.
	assert.Equal(t, EstadoAberta, f.ctl.Estado())
	assert.Empty(t, f.svc.fechamentos)
}

func TestFecharSucesso(t *testing.T) {
	f := newFixture(true)
	f.svc.sessaoAberta = sessaoComVendas()
	abrir(t, f, 200)

	resp, err := f.ctl.Fechar(context.Background(), "op-2", dto.FecharCaixaRequest{
		Conferencia: dto.ConferenciaDeclarada{Dinheiro: dec(640), Debito: dec(300)},
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusFechado, resp.Status)
	assert.Equal(t, "-10", resp.Planilha.Diferenca.String())
	assert.Equal(t, reconcile.ClassAlerta, resp.Planilha.Classificacao)

	assert.Equal(t, EstadoSemSessao, f.ctl.Estado())
	require.Len(t, f.svc.fechamentos, 1)
	assert.Equal(t, "640", f.svc.fechamentos[0].ConferidoDinheiro.String())

	// Closing pipeline received the snapshot.
	require.NotNil(t, f.notif.sessao)
	assert.Equal(t, "srv-1", f.notif.sessao.ID)
	assert.Equal(t, reconcile.ClassAlerta, f.notif.classificacao)
}

func TestFecharEhTerminal(t *testing.T) {
	f := newFixture(true)
	abrir(t, f, 100)

	_, err := f.ctl.Fechar(context.Background(), "op-1", dto.FecharCaixaRequest{
		Conferencia: dto.ConferenciaDeclarada{Dinheiro: dec(100)},
	})
	require.NoError(t, err)

	// No further movement against the closed session.
	err = f.ctl.RegistrarMovimento(context.Background(), "op-1", dto.MovimentoRequest{
		Tipo: model.MovimentoSangria, Valor: dec(10),
	})
	assert.ErrorIs(t, err, ErrSemSessaoAberta)

	// And no double close.
	_, err = f.ctl.Fechar(context.Background(), "op-1", dto.FecharCaixaRequest{})
	assert.ErrorIs(t, err, ErrSemSessaoAberta)
}

func TestFecharFalhaMantemSessaoAberta(t *testing.T) {
	f := newFixture(true)
	abrir(t, f, 100)
	f.svc.fecharErr = fmt.Errorf("%w: timeout", remote.ErrIndisponivel)

	_, err := f.ctl.Fechar(context.Background(), "op-1", dto.FecharCaixaRequest{
		Conferencia: dto.ConferenciaDeclarada{Dinheiro: dec(100)},
	})
	require.Error(t, err)
	assert.Equal(t, EstadoAberta, f.ctl.Estado(), "falha no fechamento mantém a sessão aberta")

	// Retry once the backend is back.
	f.svc.fecharErr = nil
	_, err = f.ctl.Fechar(context.Background(), "op-1", dto.FecharCaixaRequest{
		Conferencia: dto.ConferenciaDeclarada{Dinheiro: dec(100)},
	})
	assert.NoError(t, err)
}

func TestFecharSessaoOffline(t *testing.T) {
	f := newFixture(false)
	abrir(t, f, 100)

	_, err := f.ctl.Fechar(context.Background(), "op-1", dto.FecharCaixaRequest{})
	assert.ErrorIs(t, err, ErrSessaoOffline)
}

func TestFecharLimpaSlotOffline(t *testing.T) {
	// A session opened offline and later adopted by the backend under the
	// same terminal must leave no stale slot after close. Simulate by
	// seeding the slot manually before an online open+close.
	f := newFixture(true)
	stale := offline.NewOfflineSession("emp-1", "op-1", dec(100), "01")
	require.NoError(t, f.cache.Save(context.Background(), stale))

	abrir(t, f, 100)
	_, err := f.ctl.Fechar(context.Background(), "op-1", dto.FecharCaixaRequest{
		Conferencia: dto.ConferenciaDeclarada{Dinheiro: dec(100)},
	})
	require.NoError(t, err)
	assert.Nil(t, f.cache.Load(context.Background(), "emp-1", "01"))
}

func TestErroNoFechamentoRegistradoNoDiario(t *testing.T) {
	f := newFixture(true)
	abrir(t, f, 100)
	f.svc.fecharErr = &remote.ServiceError{Status: http.StatusUnprocessableEntity, Detail: "conferência inválida"}

	_, err := f.ctl.Fechar(context.Background(), "op-1", dto.FecharCaixaRequest{})
	require.Error(t, err)
	assert.Contains(t, f.diario.eventos(), journal.EventoFalhaFechamento)

	var se *remote.ServiceError
	assert.True(t, errors.As(err, &se))
}
