package config

import (
	"github.com/spf13/viper"
)

// Config holds all runtime configuration loaded from environment variables.
// One agent process serves one terminal of one company.
type Config struct {
	// Server
	Port int    `mapstructure:"PORT"`
	Env  string `mapstructure:"APP_ENV"` // development | production

	// Identity
	EmpresaID string `mapstructure:"EMPRESA_ID"`
	Terminal  string `mapstructure:"TERMINAL_ID"`

	// Central backend
	BackendURL     string `mapstructure:"BACKEND_URL"`
	BackendToken   string `mapstructure:"BACKEND_TOKEN"`
	ProbeTimeoutMS int    `mapstructure:"PROBE_TIMEOUT_MS"`

	// Auth (tokens minted by the backend, validated locally)
	JWTSecret string `mapstructure:"JWT_SECRET"`

	// Local state
	RedisURL     string `mapstructure:"REDIS_URL"`
	OfflineStore string `mapstructure:"OFFLINE_STORE"` // redis | file
	OfflineDir   string `mapstructure:"OFFLINE_DIR"`
	JournalPath  string `mapstructure:"JOURNAL_PATH"`

	// Peripherals
	DrawerAddr string `mapstructure:"DRAWER_ADDR"`

	// Closing pipeline
	WorkerPoolSize int    `mapstructure:"WORKER_POOL_SIZE"`
	PDFStoragePath string `mapstructure:"PDF_STORAGE_PATH"`
	AlertaEmail    string `mapstructure:"ALERTA_EMAIL"`
	SMTPHost       string `mapstructure:"SMTP_HOST"`
	SMTPPort       int    `mapstructure:"SMTP_PORT"`
	SMTPUser       string `mapstructure:"SMTP_USER"`
	SMTPPassword   string `mapstructure:"SMTP_PASSWORD"`
}

// Load reads configuration from the environment (and optional .env file).
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	viper.SetDefault("PORT", 8100)
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("TERMINAL_ID", "01")
	viper.SetDefault("BACKEND_URL", "http://localhost:8000")
	viper.SetDefault("PROBE_TIMEOUT_MS", 1000)
	viper.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	viper.SetDefault("OFFLINE_STORE", "redis")
	viper.SetDefault("OFFLINE_DIR", "/var/lib/caixapdv/offline")
	viper.SetDefault("JOURNAL_PATH", "/var/lib/caixapdv/diario.db")
	viper.SetDefault("WORKER_POOL_SIZE", 2)
	viper.SetDefault("PDF_STORAGE_PATH", "/var/lib/caixapdv/planilhas")
	viper.SetDefault("SMTP_PORT", 587)

	// Optional .env for local development — missing file is fine.
	_ = viper.ReadInConfig()

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
