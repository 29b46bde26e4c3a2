package controller

import "errors"

// The session lifecycle on a terminal is a small, explicit state machine.
// Orchestration (probe, HTTP calls, cache) lives in CaixaController; the
// transition table below is pure so the lifecycle rules are testable without
// any I/O.

// Estado is the controller's view of the terminal's session.
type Estado int

const (
	EstadoCarregando Estado = iota // startup, current session unknown
	EstadoSemSessao                // no open session on this terminal
	EstadoAberta                   // session open, accumulating
	EstadoFechando                 // close in flight at the backend
)

func (e Estado) String() string {
	switch e {
	case EstadoCarregando:
		return "carregando"
	case EstadoSemSessao:
		return "sem_sessao"
	case EstadoAberta:
		return "aberta"
	case EstadoFechando:
		return "fechando"
	default:
		return "desconhecido"
	}
}

// Evento is a typed lifecycle event fed to the reducer.
type Evento int

const (
	EventoCarregouSessao     Evento = iota // load found an open session
	EventoCarregouVazio                    // load found nothing
	EventoAbriu                            // open succeeded (online or offline)
	EventoFechamentoIniciado               // close request sent to the backend
	EventoFechou                           // backend confirmed the close
	EventoFechamentoFalhou                 // backend refused or vanished mid-close
)

func (ev Evento) String() string {
	switch ev {
	case EventoCarregouSessao:
		return "carregou_sessao"
	case EventoCarregouVazio:
		return "carregou_vazio"
	case EventoAbriu:
		return "abriu"
	case EventoFechamentoIniciado:
		return "fechamento_iniciado"
	case EventoFechou:
		return "fechou"
	case EventoFechamentoFalhou:
		return "fechamento_falhou"
	default:
		return "desconhecido"
	}
}

// ErrTransicaoInvalida is returned when an event is not legal in the current
// state (e.g. closing with no open session).
var ErrTransicaoInvalida = errors.New("transição de estado inválida")

// transicao is the pure reducer: current state + event → next state.
// Close is one-way: there is no event that leaves fechado back to aberta
// other than a failed close attempt, which never reached the backend record.
func transicao(atual Estado, ev Evento) (Estado, error) {
	switch atual {
	case EstadoCarregando:
		switch ev {
		case EventoCarregouSessao:
			return EstadoAberta, nil
		case EventoCarregouVazio:
			return EstadoSemSessao, nil
		case EventoAbriu:
			// Open requested before the first load finished; legal.
			return EstadoAberta, nil
		}
	case EstadoSemSessao:
		switch ev {
		case EventoAbriu:
			return EstadoAberta, nil
		case EventoCarregouSessao:
			return EstadoAberta, nil
		case EventoCarregouVazio:
			return EstadoSemSessao, nil
		}
	case EstadoAberta:
		switch ev {
		case EventoFechamentoIniciado:
			return EstadoFechando, nil
		case EventoCarregouSessao:
			return EstadoAberta, nil
		case EventoCarregouVazio:
			// The remote record is authoritative: a reload that finds no
			// session (closed from a supervisor station) drops ours.
			return EstadoSemSessao, nil
		}
	case EstadoFechando:
		switch ev {
		case EventoFechou:
			return EstadoSemSessao, nil
		case EventoFechamentoFalhou:
			return EstadoAberta, nil
		}
	}
	return atual, ErrTransicaoInvalida
}
