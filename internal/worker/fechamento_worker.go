package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"caixapdv/internal/infra"
	"caixapdv/internal/reconcile"

	"github.com/rs/zerolog/log"
)

// FechamentoWorker renders the closing worksheet and mails it on alerta.
type FechamentoWorker struct {
	mailer      *infra.Mailer
	alertaEmail string
	pdfDir      string
}

func NewFechamentoWorker(mailer *infra.Mailer, alertaEmail, pdfDir string) *FechamentoWorker {
	return &FechamentoWorker{mailer: mailer, alertaEmail: alertaEmail, pdfDir: pdfDir}
}

// Processar handles one fechamento job.
func (w *FechamentoWorker) Processar(_ context.Context, raw json.RawMessage) error {
	var job FechamentoJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return fmt.Errorf("fechamento: unmarshal job: %w", err)
	}

	pdfPath, err := infra.GerarPlanilhaPDF(&job.Sessao, job.Classificacao, w.pdfDir)
	if err != nil {
		return fmt.Errorf("fechamento: gerar planilha: %w", err)
	}
	log.Info().
		Str("sessao_id", job.Sessao.ID).
		Str("pdf", pdfPath).
		Str("classificacao", job.Classificacao).
		Msg("fechamento: planilha gerada")

	if job.Classificacao != reconcile.ClassAlerta {
		return nil
	}
	if w.mailer == nil || w.alertaEmail == "" {
		log.Warn().Str("sessao_id", job.Sessao.ID).Msg("fechamento: alerta sem destinatário configurado")
		return nil
	}

	subject := fmt.Sprintf("[ALERTA] Diferença de caixa — sessão %s", job.Sessao.ID)
	body := fmt.Sprintf(
		"Fechamento do terminal %s com diferença de R$ %s (classificação: %s).\nPlanilha em anexo.",
		job.Sessao.Terminal, job.Diferenca.StringFixed(2), job.Classificacao,
	)
	if err := w.mailer.SendRelatorio(w.alertaEmail, subject, body, pdfPath); err != nil {
		return fmt.Errorf("fechamento: enviar alerta: %w", err)
	}
	return nil
}
