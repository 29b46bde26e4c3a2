package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Session status values as the backend reports them.
const (
	StatusAberto  = "aberto"
	StatusFechado = "fechado"
)

// Manual movement types. Sangria drains cash from the drawer (safe drop),
// suprimento adds change money to it.
const (
	MovimentoSangria    = "sangria"
	MovimentoSuprimento = "suprimento"
)

// OfflineIDPrefix tags sessions created locally while the backend was
// unreachable. The backend has no record of these until regularization.
const OfflineIDPrefix = "offline-"

// SessaoCaixa mirrors the backend's cash-session record. The backend is the
// source of truth; the agent holds this snapshot for display, reconciliation
// and the offline slot. JSON tags double as the wire and cache format.
type SessaoCaixa struct {
	ID        string `json:"id"`
	EmpresaID string `json:"empresa_id"`
	Terminal  string `json:"terminal_id"`
	Status    string `json:"status"` // aberto | fechado

	OperadorAbertura   string     `json:"operador_abertura"`
	OperadorFechamento *string    `json:"operador_fechamento,omitempty"`
	AbertaEm           time.Time  `json:"aberta_em"`
	FechadaEm          *time.Time `json:"fechada_em,omitempty"`

	SaldoInicial decimal.Decimal `json:"saldo_inicial"`

	// Accumulators maintained by the backend as sales and movements land.
	TotalDinheiro   decimal.Decimal `json:"total_dinheiro"`
	TotalDebito     decimal.Decimal `json:"total_debito"`
	TotalCredito    decimal.Decimal `json:"total_credito"`
	TotalPix        decimal.Decimal `json:"total_pix"`
	TotalOutros     decimal.Decimal `json:"total_outros"`
	TotalSangria    decimal.Decimal `json:"total_sangria"`
	TotalSuprimento decimal.Decimal `json:"total_suprimento"`
	TotalVendas     decimal.Decimal `json:"total_vendas"`
	QtdVendas       int             `json:"qtd_vendas"`

	// Filled on close.
	ConferidoDinheiro *decimal.Decimal `json:"conferido_dinheiro,omitempty"`
	ConferidoDebito   *decimal.Decimal `json:"conferido_debito,omitempty"`
	ConferidoCredito  *decimal.Decimal `json:"conferido_credito,omitempty"`
	ConferidoPix      *decimal.Decimal `json:"conferido_pix,omitempty"`
	SaldoFinal        *decimal.Decimal `json:"saldo_final,omitempty"`
	Diferenca         *decimal.Decimal `json:"diferenca,omitempty"`
	Observacoes       *string          `json:"observacoes,omitempty"`
}

// Aberta reports whether the session is still open.
func (s *SessaoCaixa) Aberta() bool { return s.Status == StatusAberto }

// Offline reports whether the session was created locally, without a
// backend record.
func (s *SessaoCaixa) Offline() bool { return strings.HasPrefix(s.ID, OfflineIDPrefix) }

// MovimentoCaixa is one manual movement as echoed by the backend. Movements
// are never modified or deleted — corrections create inverse entries.
type MovimentoCaixa struct {
	ID        string          `json:"id"`
	SessaoID  string          `json:"sessao_id"`
	Tipo      string          `json:"tipo"` // sangria | suprimento
	Valor     decimal.Decimal `json:"valor"`
	Descricao string          `json:"descricao"`
	Operador  string          `json:"operador"`
	CriadoEm  time.Time       `json:"criado_em"`
}
