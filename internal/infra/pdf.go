package infra

// pdf.go — closing worksheet (planilha de arqueo) rendered with go-pdf/fpdf
// in the same thermal-receipt format as the sales tickets, so the sheet can
// be printed on the session's printer and dropped in the cash envelope.

import (
	"fmt"
	"os"
	"path/filepath"

	"caixapdv/internal/model"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

// GerarPlanilhaPDF renders the closing worksheet for a closed session.
// storagePath is created if needed; returns the absolute file path.
func GerarPlanilhaPDF(s *model.SessaoCaixa, classificacao, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0o755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}
	filePath := filepath.Join(storagePath, fmt.Sprintf("arqueo_%s.pdf", s.ID))

	// 74mm × 140mm — thermal receipt width, taller than a sales ticket.
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 74, Ht: 140},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 8

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(contentW, 7, "CaixaPDV", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW, 5, "Planilha de Fechamento de Caixa", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(contentW, 5, fmt.Sprintf("Sessão %s", s.ID), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, fmt.Sprintf("Terminal %s", s.Terminal), "", 1, "L", false, 0, "")
	if s.FechadaEm != nil {
		pdf.CellFormat(contentW, 4, s.FechadaEm.Format("02/01/2006  15:04"), "", 1, "L", false, 0, "")
	}
	pdf.Ln(2)

	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	col1 := contentW * 0.40
	col2 := contentW * 0.30
	col3 := contentW * 0.30

	pdf.SetFont("Helvetica", "B", 7)
	pdf.CellFormat(col1, 5, "Método", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col2, 5, "Esperado", "B", 0, "R", false, 0, "")
	pdf.CellFormat(col3, 5, "Conferido", "B", 1, "R", false, 0, "")

	esperadoDinheiro := s.SaldoInicial.Add(s.TotalDinheiro).Add(s.TotalSuprimento).Sub(s.TotalSangria)
	linhas := []struct {
		metodo    string
		esperado  decimal.Decimal
		conferido *decimal.Decimal
	}{
		{"Dinheiro", esperadoDinheiro, s.ConferidoDinheiro},
		{"Débito", s.TotalDebito, s.ConferidoDebito},
		{"Crédito", s.TotalCredito, s.ConferidoCredito},
		{"Pix", s.TotalPix, s.ConferidoPix},
	}

	pdf.SetFont("Helvetica", "", 7)
	for _, l := range linhas {
		conferido := "-"
		if l.conferido != nil {
			conferido = "R$ " + l.conferido.StringFixed(2)
		}
		pdf.CellFormat(col1, 5, l.metodo, "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 5, "R$ "+l.esperado.StringFixed(2), "", 0, "R", false, 0, "")
		pdf.CellFormat(col3, 5, conferido, "", 1, "R", false, 0, "")
	}

	pdf.Ln(1)
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(col1+col2, 4, "Saldo inicial:", "", 0, "L", false, 0, "")
	pdf.CellFormat(col3, 4, "R$ "+s.SaldoInicial.StringFixed(2), "", 1, "R", false, 0, "")
	pdf.CellFormat(col1+col2, 4, "Suprimentos:", "", 0, "L", false, 0, "")
	pdf.CellFormat(col3, 4, "R$ "+s.TotalSuprimento.StringFixed(2), "", 1, "R", false, 0, "")
	pdf.CellFormat(col1+col2, 4, "Sangrias:", "", 0, "L", false, 0, "")
	pdf.CellFormat(col3, 4, "R$ "+s.TotalSangria.StringFixed(2), "", 1, "R", false, 0, "")

	pdf.Ln(2)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 9)
	diferenca := "0.00"
	if s.Diferenca != nil {
		diferenca = s.Diferenca.StringFixed(2)
	}
	pdf.CellFormat(col1+col2, 6, "DIFERENÇA:", "", 0, "L", false, 0, "")
	pdf.CellFormat(col3, 6, "R$ "+diferenca, "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW, 5, "Classificação: "+classificacao, "", 1, "L", false, 0, "")

	if s.Observacoes != nil && *s.Observacoes != "" {
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "I", 7)
		pdf.MultiCell(contentW, 4, "Obs: "+*s.Observacoes, "", "L", false)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, "Operador: ________________________", "", 1, "L", false, 0, "")
	pdf.Ln(2)
	pdf.CellFormat(contentW, 4, "Supervisor: ______________________", "", 1, "L", false, 0, "")

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}
