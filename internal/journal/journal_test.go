package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func abrirTemp(t *testing.T) *SQLiteJournal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "diario.db"))
	require.NoError(t, err)
	return j
}

func TestRegistrarEPorSessao(t *testing.T) {
	j := abrirTemp(t)
	ctx := context.Background()

	require.NoError(t, j.Registrar(ctx, Entrada{
		SessaoID: "sessao-1", Evento: EventoAbertura, Operador: "op-9",
	}))
	require.NoError(t, j.Registrar(ctx, Entrada{
		SessaoID: "sessao-1", Evento: EventoMovimento, Detalhe: "sangria 80.00", Operador: "op-9",
	}))
	require.NoError(t, j.Registrar(ctx, Entrada{
		SessaoID: "sessao-2", Evento: EventoAberturaOffline, Offline: true,
	}))

	entradas, err := j.PorSessao(ctx, "sessao-1")
	require.NoError(t, err)
	require.Len(t, entradas, 2)
	assert.Equal(t, EventoAbertura, entradas[0].Evento)
	assert.Equal(t, EventoMovimento, entradas[1].Evento)
	assert.Equal(t, "sangria 80.00", entradas[1].Detalhe)
	assert.False(t, entradas[0].CriadoEm.IsZero())
}

func TestPorSessaoVazia(t *testing.T) {
	j := abrirTemp(t)

	entradas, err := j.PorSessao(context.Background(), "nao-existe")
	require.NoError(t, err)
	assert.Empty(t, entradas)
}
