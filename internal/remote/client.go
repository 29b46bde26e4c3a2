// Package remote is the HTTP client for the central backend's cash-session
// operations. The backend is the authoritative record; this client only
// transports. Failures are split into two classes the controller treats very
// differently: transport failures (ErrIndisponivel — the offline path may
// apply) and backend rejections (*ServiceError — must be surfaced, the
// network is fine).
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"caixapdv/internal/infra"
	"caixapdv/internal/model"

	"github.com/shopspring/decimal"
)

// ErrIndisponivel marks transport-level failures: timeout, refused
// connection, DNS, or an open circuit. The backend never saw the request
// (or its answer never arrived).
var ErrIndisponivel = errors.New("backend indisponível")

// ServiceError is a backend rejection: the request arrived and was refused
// (validation failure, duplicate open, closed session, auth).
type ServiceError struct {
	Status int
	Detail string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("backend rejeitou a operação (%d): %s", e.Status, e.Detail)
}

// SessaoService is the consumed contract, fake-able in tests.
type SessaoService interface {
	Atual(ctx context.Context, empresaID, terminal string) (*model.SessaoCaixa, error)
	Abrir(ctx context.Context, req AbrirPayload) (*model.SessaoCaixa, error)
	RegistrarMovimento(ctx context.Context, req MovimentoPayload) error
	Fechar(ctx context.Context, req FecharPayload) error
}

// AbrirPayload opens a session on the backend.
type AbrirPayload struct {
	EmpresaID    string          `json:"empresa_id"`
	OperadorID   string          `json:"operador_id"`
	Terminal     string          `json:"terminal_id"`
	SaldoInicial decimal.Decimal `json:"saldo_inicial"`
}

// MovimentoPayload registers a sangria or suprimento.
type MovimentoPayload struct {
	EmpresaID  string          `json:"empresa_id"`
	OperadorID string          `json:"operador_id"`
	SessaoID   string          `json:"sessao_id"`
	Tipo       string          `json:"tipo"`
	Valor      decimal.Decimal `json:"valor"`
	Descricao  string          `json:"descricao,omitempty"`
}

// FecharPayload closes a session with the operator's blind count. The
// authoritative diferenca is computed and persisted by the backend.
type FecharPayload struct {
	SessaoID          string          `json:"sessao_id"`
	EmpresaID         string          `json:"empresa_id"`
	OperadorID        string          `json:"operador_id"`
	ConferidoDinheiro decimal.Decimal `json:"conferido_dinheiro"`
	ConferidoDebito   decimal.Decimal `json:"conferido_debito"`
	ConferidoCredito  decimal.Decimal `json:"conferido_credito"`
	ConferidoPix      decimal.Decimal `json:"conferido_pix"`
	Observacoes       *string         `json:"observacoes,omitempty"`
}

// Client talks to the backend through the circuit breaker. One instance per
// agent process; safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	cb         *infra.CircuitBreaker
}

func NewClient(baseURL, token string, cb *infra.CircuitBreaker) *Client {
	if cb == nil {
		cb = infra.NewCircuitBreaker(infra.DefaultCBConfig())
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cb:         cb,
	}
}

// Atual fetches the current open session for (empresa, terminal).
// No open session is not an error: returns (nil, nil).
func (c *Client) Atual(ctx context.Context, empresaID, terminal string) (*model.SessaoCaixa, error) {
	path := fmt.Sprintf("/v1/caixa/atual?empresa_id=%s&terminal_id=%s", empresaID, terminal)
	var sessao model.SessaoCaixa
	err := c.do(ctx, http.MethodGet, path, nil, &sessao)
	if err != nil {
		var se *ServiceError
		if errors.As(err, &se) && se.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sessao, nil
}

// Abrir opens a session and returns the backend's record (server-issued id).
func (c *Client) Abrir(ctx context.Context, req AbrirPayload) (*model.SessaoCaixa, error) {
	var sessao model.SessaoCaixa
	if err := c.do(ctx, http.MethodPost, "/v1/caixa/abrir", req, &sessao); err != nil {
		return nil, err
	}
	return &sessao, nil
}

// RegistrarMovimento records a sangria/suprimento against an open session.
func (c *Client) RegistrarMovimento(ctx context.Context, req MovimentoPayload) error {
	return c.do(ctx, http.MethodPost, "/v1/caixa/movimento", req, nil)
}

// Fechar closes the session. The backend computes and freezes the diferenca.
func (c *Client) Fechar(ctx context.Context, req FecharPayload) error {
	return c.do(ctx, http.MethodPost, "/v1/caixa/fechar", req, nil)
}

// errorEnvelope mirrors the backend's apierror shape.
type errorEnvelope struct {
	Detail string `json:"detail"`
}

func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("remote: marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("remote: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	var resp *http.Response
	err = c.cb.Execute(func() error {
		var doErr error
		resp, doErr = c.httpClient.Do(req)
		return doErr
	})
	if err != nil {
		if errors.Is(err, infra.ErrCircuitOpen) {
			return fmt.Errorf("%w: circuito aberto", ErrIndisponivel)
		}
		return fmt.Errorf("%w: %v", ErrIndisponivel, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var env errorEnvelope
		_ = json.NewDecoder(resp.Body).Decode(&env)
		if env.Detail == "" {
			env.Detail = http.StatusText(resp.StatusCode)
		}
		return &ServiceError{Status: resp.StatusCode, Detail: env.Detail}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("remote: decode response: %w", err)
		}
	}
	return nil
}

var _ SessaoService = (*Client)(nil)
