package router

import (
	"time"

	"caixapdv/internal/config"
	"caixapdv/internal/connectivity"
	"caixapdv/internal/controller"
	"caixapdv/internal/handler"
	"caixapdv/internal/infra"
	"caixapdv/internal/journal"
	"caixapdv/internal/middleware"
	"caixapdv/internal/offline"
	"caixapdv/internal/remote"
	"caixapdv/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Controller ← Remote client / Offline cache / Journal
func New(cfg *config.Config, diario *journal.SQLiteJournal, rdb *redis.Client, cb *infra.CircuitBreaker) (*gin.Engine, error) {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(600, time.Minute)) // 600 req/min per IP

	// ── Infrastructure ───────────────────────────────────────────────────────
	probe := connectivity.NewHTTPProbe(cfg.BackendURL, time.Duration(cfg.ProbeTimeoutMS)*time.Millisecond)
	svc := remote.NewClient(cfg.BackendURL, cfg.BackendToken, cb)

	var store offline.Store
	if cfg.OfflineStore == "file" {
		fs, err := offline.NewFileStore(cfg.OfflineDir)
		if err != nil {
			return nil, err
		}
		store = fs
	} else {
		store = offline.NewRedisStore(rdb)
	}
	cache := offline.NewSessionCache(store)

	gaveta := infra.NewGavetaTCP(cfg.DrawerAddr)
	dispatcher := worker.NewDispatcher(rdb)

	// ── Controller ───────────────────────────────────────────────────────────
	ctrl := controller.NewCaixaController(svc, probe, cache, cfg.EmpresaID, cfg.Terminal).
		WithGaveta(gaveta).
		WithDiario(diario).
		WithNotificador(dispatcher)

	// ── Handlers ─────────────────────────────────────────────────────────────
	caixaH := handler.NewCaixaHandler(ctrl, diario)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(diario, rdb, cb))

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW)
	{
		caixa := v1.Group("/caixa")
		{
			caixa.GET("/atual", middleware.RequireRole("operador", "gerente", "administrador"), caixaH.Atual)
			caixa.POST("/abrir", middleware.RequireRole("operador", "gerente", "administrador"), caixaH.Abrir)
			caixa.POST("/movimento", middleware.RequireRole("operador", "gerente", "administrador"), caixaH.RegistrarMovimento)
			caixa.POST("/conferencia", middleware.RequireRole("operador", "gerente", "administrador"), caixaH.Conferencia)
			caixa.POST("/fechar", middleware.RequireRole("operador", "gerente", "administrador"), caixaH.Fechar)
			caixa.GET("/diario/:sessao_id", middleware.RequireRole("gerente", "administrador"), caixaH.Diario)
		}
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r, nil
}
