// Package journal keeps a terminal-local, append-only record of cash-session
// lifecycle events. It exists for the cash-handling audit trail: even when the
// backend was unreachable, the terminal can show what happened and when.
// Writes are best-effort — a journal failure must never block the drawer.
package journal

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Event names recorded in the journal.
const (
	EventoAbertura        = "abertura"
	EventoAberturaOffline = "abertura_offline"
	EventoMovimento       = "movimento"
	EventoFechamento      = "fechamento"
	EventoFalhaMovimento  = "falha_movimento"
	EventoFalhaFechamento = "falha_fechamento"
)

// Entrada is one journal line. Detalhe is a free-form string: the journal is
// a log, not a ledger — the authoritative numbers live on the backend record.
type Entrada struct {
	ID       uint   `gorm:"primaryKey"`
	SessaoID string `gorm:"index;not null"`
	Evento   string `gorm:"not null"`
	Detalhe  string
	Operador string
	Offline  bool
	CriadoEm time.Time `gorm:"autoCreateTime"`
}

func (Entrada) TableName() string { return "diario_caixa" }

// Recorder is what the controller depends on; fakes replace it in tests.
type Recorder interface {
	Registrar(ctx context.Context, e Entrada) error
}

// SQLiteJournal stores entries in an embedded SQLite database on the
// terminal's disk.
type SQLiteJournal struct {
	db *gorm.DB
}

// Open creates/migrates the journal database at path.
func Open(path string) (*SQLiteJournal, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Entrada{}); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	return &SQLiteJournal{db: db}, nil
}

// Registrar appends one entry.
func (j *SQLiteJournal) Registrar(ctx context.Context, e Entrada) error {
	return j.db.WithContext(ctx).Create(&e).Error
}

// PorSessao lists a session's entries in insertion order.
func (j *SQLiteJournal) PorSessao(ctx context.Context, sessaoID string) ([]Entrada, error) {
	var entradas []Entrada
	err := j.db.WithContext(ctx).
		Where("sessao_id = ?", sessaoID).
		Order("id ASC").
		Find(&entradas).Error
	return entradas, err
}

// DB exposes the underlying handle for the health check.
func (j *SQLiteJournal) DB() *gorm.DB { return j.db }

var _ Recorder = (*SQLiteJournal)(nil)
