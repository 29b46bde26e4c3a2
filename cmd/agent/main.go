package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"caixapdv/internal/config"
	"caixapdv/internal/infra"
	"caixapdv/internal/journal"
	"caixapdv/internal/router"
	"caixapdv/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Structured logger — dev: pretty, prod: JSON
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	diario, err := journal.Open(cfg.JournalPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open local journal")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	// One breaker guards every call to the central backend; the health
	// endpoint exposes its state.
	cb := infra.NewCircuitBreaker(infra.DefaultCBConfig())

	// Start goroutine worker pool for the closing pipeline (worksheet PDF,
	// alert email). Workers are wired here (composition root) so the pool
	// has full access to all infrastructure dependencies.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mailer := infra.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	fechamento := worker.NewFechamentoWorker(mailer, cfg.AlertaEmail, cfg.PDFStoragePath)
	worker.StartWorkerPool(ctx, rdb, fechamento, cfg.WorkerPoolSize)

	r, err := router.New(cfg, diario, rdb, cb)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire router")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().
			Str("empresa_id", cfg.EmpresaID).
			Str("terminal", cfg.Terminal).
			Msgf("CaixaPDV agent listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down agent…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("agent exited")
}
