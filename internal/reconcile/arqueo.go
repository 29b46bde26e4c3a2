// Package reconcile holds the pure arithmetic for the cash-count worksheet.
// No I/O, no state: the same functions back the live "expected so far" display
// and the closing arqueo. All amounts are decimal with two-decimal semantics —
// float accumulation over a shift of small movements is not acceptable here.
package reconcile

import (
	"caixapdv/internal/model"

	"github.com/shopspring/decimal"
)

// Classification of the closing difference.
// exato: |diferenca| < 0.01, atencao: < 5.00, alerta: >= 5.00.
const (
	ClassExato   = "exato"
	ClassAtencao = "atencao"
	ClassAlerta  = "alerta"
)

var (
	limiteExato   = decimal.NewFromFloat(0.01)
	limiteAtencao = decimal.NewFromInt(5)
)

// Conferencia is the operator's blind count, per method. Zero values count as
// zero — a method the operator left blank simply contributes nothing.
type Conferencia struct {
	Dinheiro decimal.Decimal
	Debito   decimal.Decimal
	Credito  decimal.Decimal
	Pix      decimal.Decimal
}

// DinheiroEsperado returns the cash the drawer should physically contain:
// saldo_inicial + total_dinheiro + total_suprimento − total_sangria.
func DinheiroEsperado(s *model.SessaoCaixa) decimal.Decimal {
	return s.SaldoInicial.
		Add(s.TotalDinheiro).
		Add(s.TotalSuprimento).
		Sub(s.TotalSangria)
}

// TotalEsperado returns the expected total across all counted methods.
// total_outros is deliberately excluded — "outros" covers methods that are
// never physically counted at close (vouchers, credit notes).
func TotalEsperado(s *model.SessaoCaixa) decimal.Decimal {
	return DinheiroEsperado(s).
		Add(s.TotalDebito).
		Add(s.TotalCredito).
		Add(s.TotalPix)
}

// TotalConferido sums the operator's declared amounts.
func TotalConferido(c Conferencia) decimal.Decimal {
	return c.Dinheiro.Add(c.Debito).Add(c.Credito).Add(c.Pix)
}

// Diferenca is conferido − esperado: negative means the drawer is short.
func Diferenca(s *model.SessaoCaixa, c Conferencia) decimal.Decimal {
	return TotalConferido(c).Sub(TotalEsperado(s))
}

// Classificar maps a difference to its audit classification.
func Classificar(diferenca decimal.Decimal) string {
	abs := diferenca.Abs()
	switch {
	case abs.LessThan(limiteExato):
		return ClassExato
	case abs.LessThan(limiteAtencao):
		return ClassAtencao
	default:
		return ClassAlerta
	}
}
