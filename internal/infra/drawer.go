package infra

import (
	"net"
	"time"

	"github.com/rs/zerolog/log"
)

// escposPulse is the ESC/POS "generate pulse" command (ESC p 0 25ms 250ms)
// that kicks the drawer solenoid on pin 2 of the printer's drawer port.
var escposPulse = []byte{0x1B, 0x70, 0x00, 0x19, 0xFA}

// GavetaTCP opens the physical cash drawer through the receipt printer's
// network interface. The command has no acknowledgment and is never retried:
// if the drawer did not open the operator uses the key.
type GavetaTCP struct {
	addr    string
	timeout time.Duration
}

func NewGavetaTCP(addr string) *GavetaTCP {
	return &GavetaTCP{addr: addr, timeout: 2 * time.Second}
}

// Abrir sends the pulse. Errors are logged and swallowed — this is a side
// effect, never part of the operation's outcome.
func (g *GavetaTCP) Abrir() {
	conn, err := net.DialTimeout("tcp", g.addr, g.timeout)
	if err != nil {
		log.Warn().Err(err).Str("addr", g.addr).Msg("gaveta: impressora inacessível")
		return
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(g.timeout))
	if _, err := conn.Write(escposPulse); err != nil {
		log.Warn().Err(err).Str("addr", g.addr).Msg("gaveta: falha ao enviar pulso")
	}
}
