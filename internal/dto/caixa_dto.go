package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type AbrirCaixaRequest struct {
	SaldoInicial decimal.Decimal `json:"saldo_inicial" validate:"min=0"`
	// Terminal is optional; when present it must match the agent's configured
	// terminal id, which is also the default.
	Terminal string `json:"terminal_id"   validate:"omitempty,max=20"`
}

type MovimentoRequest struct {
	Tipo      string          `json:"tipo"      validate:"required,oneof=sangria suprimento"`
	Valor     decimal.Decimal `json:"valor"     validate:"required,gt=0"`
	Descricao string          `json:"descricao" validate:"omitempty,max=200"`
}

// ConferenciaDeclarada is the operator's blind count. Absent methods are
// zero-valued decimals and count as zero.
type ConferenciaDeclarada struct {
	Dinheiro decimal.Decimal `json:"dinheiro" validate:"min=0"`
	Debito   decimal.Decimal `json:"debito"   validate:"min=0"`
	Credito  decimal.Decimal `json:"credito"  validate:"min=0"`
	Pix      decimal.Decimal `json:"pix"      validate:"min=0"`
}

type FecharCaixaRequest struct {
	Conferencia ConferenciaDeclarada `json:"conferencia" validate:"required"`
	Observacoes *string              `json:"observacoes"`
}

// ConferenciaRequest asks for the closing worksheet without closing.
type ConferenciaRequest struct {
	Conferencia ConferenciaDeclarada `json:"conferencia" validate:"required"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SessaoResponse struct {
	ID               string          `json:"id"`
	EmpresaID        string          `json:"empresa_id"`
	Terminal         string          `json:"terminal_id"`
	Status           string          `json:"status"`
	Offline          bool            `json:"offline"`
	OperadorAbertura string          `json:"operador_abertura"`
	AbertaEm         string          `json:"aberta_em"`
	SaldoInicial     decimal.Decimal `json:"saldo_inicial"`
	TotalDinheiro    decimal.Decimal `json:"total_dinheiro"`
	TotalDebito      decimal.Decimal `json:"total_debito"`
	TotalCredito     decimal.Decimal `json:"total_credito"`
	TotalPix         decimal.Decimal `json:"total_pix"`
	TotalOutros      decimal.Decimal `json:"total_outros"`
	TotalSangria     decimal.Decimal `json:"total_sangria"`
	TotalSuprimento  decimal.Decimal `json:"total_suprimento"`
	TotalVendas      decimal.Decimal `json:"total_vendas"`
	QtdVendas        int             `json:"qtd_vendas"`
	DinheiroEsperado decimal.Decimal `json:"dinheiro_esperado"`
}

// AberturaResponse reports a successful open. Offline is the explicit
// qualifier the operator must see: the shift exists but is not yet recorded
// centrally.
type AberturaResponse struct {
	Sessao   SessaoResponse `json:"sessao"`
	Offline  bool           `json:"offline"`
	Mensagem string         `json:"mensagem"`
}

// PlanilhaResponse is the reconciliation worksheet, used both as the close
// preview and as the final closing summary.
type PlanilhaResponse struct {
	SessaoID         string          `json:"sessao_id"`
	DinheiroEsperado decimal.Decimal `json:"dinheiro_esperado"`
	TotalEsperado    decimal.Decimal `json:"total_esperado"`
	TotalConferido   decimal.Decimal `json:"total_conferido"`
	Diferenca        decimal.Decimal `json:"diferenca"`
	Classificacao    string          `json:"classificacao"` // exato | atencao | alerta
}

type FechamentoResponse struct {
	Planilha PlanilhaResponse `json:"planilha"`
	Status   string           `json:"status"` // fechado
}
