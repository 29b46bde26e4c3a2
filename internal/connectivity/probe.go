// Package connectivity answers one question with a hard deadline: is there a
// network path to the central backend right now? UI-facing operations consult
// the probe before deciding between the remote service and the offline slot,
// so the probe must never hang and never return an error.
package connectivity

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Checker is the connectivity contract the controller depends on.
// Implementations must be bounded in time and must not panic or error —
// any doubt maps to false.
type Checker interface {
	CanReachServer(ctx context.Context) bool
}

// DefaultTimeout bounds the probe round trip. A dead network must not stall
// the operator for more than this.
const DefaultTimeout = 1000 * time.Millisecond

// HTTPProbe checks reachability with a minimal GET against the backend health
// endpoint. Any HTTP response — any status code — counts as reachable: the
// probe only cares whether the path is alive, not whether the API is healthy.
type HTTPProbe struct {
	healthURL  string
	httpClient *http.Client

	// attached is swappable so tests against a loopback httptest server
	// don't depend on the host's real interfaces.
	attached func() bool
}

// NewHTTPProbe builds a probe against baseURL's /health. A non-positive
// timeout falls back to DefaultTimeout.
func NewHTTPProbe(baseURL string, timeout time.Duration) *HTTPProbe {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPProbe{
		healthURL:  baseURL + "/health",
		httpClient: &http.Client{Timeout: timeout},
		attached:   hasNetworkAttachment,
	}
}

// CanReachServer reports whether the backend is reachable. When the host has
// no usable network attachment at all, it answers false without a round trip.
func (p *HTTPProbe) CanReachServer(ctx context.Context) bool {
	if !p.attached() {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.healthURL, nil)
	if err != nil {
		return false
	}
	// Bypass any intermediary cache — a cached 200 says nothing about now.
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Msg("probe: backend unreachable")
		return false
	}
	resp.Body.Close()
	return true
}

// hasNetworkAttachment reports whether any non-loopback interface is up with
// an address assigned. Cheap local check, no traffic generated.
func hasNetworkAttachment() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		// Cannot enumerate interfaces — let the HTTP attempt decide.
		return true
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err == nil && len(addrs) > 0 {
			return true
		}
	}
	return false
}
