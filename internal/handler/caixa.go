package handler

import (
	"errors"
	"net/http"

	"caixapdv/internal/apierror"
	"caixapdv/internal/controller"
	"caixapdv/internal/dto"
	"caixapdv/internal/journal"
	"caixapdv/internal/middleware"
	"caixapdv/internal/remote"

	"github.com/gin-gonic/gin"
)

type CaixaHandler struct {
	ctrl   *controller.CaixaController
	diario *journal.SQLiteJournal
}

func NewCaixaHandler(ctrl *controller.CaixaController, diario *journal.SQLiteJournal) *CaixaHandler {
	return &CaixaHandler{ctrl: ctrl, diario: diario}
}

// respondeErro maps controller errors to HTTP status codes. Backend
// rejections carry their own status; transport failures become 503.
func respondeErro(c *gin.Context, err error) {
	var se *remote.ServiceError
	switch {
	case errors.As(err, &se):
		c.JSON(se.Status, apierror.New(se.Detail))
	case errors.Is(err, remote.ErrIndisponivel):
		c.JSON(http.StatusServiceUnavailable, apierror.New("Servidor central indisponível"))
	case errors.Is(err, controller.ErrSemSessaoAberta),
		errors.Is(err, controller.ErrSessaoJaAberta),
		errors.Is(err, controller.ErrSessaoOffline):
		c.JSON(http.StatusConflict, apierror.New(err.Error()))
	default:
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
	}
}

// Atual godoc
// @Summary Retorna a sessão de caixa atual do terminal
// @Tags caixa
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.SessaoResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/caixa/atual [get]
func (h *CaixaHandler) Atual(c *gin.Context) {
	sessao := h.ctrl.Carregar(c.Request.Context())
	if sessao == nil {
		c.JSON(http.StatusNotFound, apierror.New("Sem sessão de caixa aberta"))
		return
	}
	c.JSON(http.StatusOK, sessao)
}

// Abrir godoc
// @Summary Abre uma sessão de caixa no terminal
// @Tags caixa
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.AbrirCaixaRequest true "Dados de abertura"
// @Success 201 {object} dto.AberturaResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/caixa/abrir [post]
func (h *CaixaHandler) Abrir(c *gin.Context) {
	var req dto.AbrirCaixaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)

	resp, err := h.ctrl.Abrir(c.Request.Context(), claims.OperadorID, req)
	if err != nil {
		respondeErro(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// RegistrarMovimento godoc
// @Summary Registra uma sangria ou suprimento na sessão aberta
// @Tags caixa
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.MovimentoRequest true "Movimento de caixa"
// @Success 204
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/caixa/movimento [post]
func (h *CaixaHandler) RegistrarMovimento(c *gin.Context) {
	var req dto.MovimentoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)

	if err := h.ctrl.RegistrarMovimento(c.Request.Context(), claims.OperadorID, req); err != nil {
		respondeErro(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Conferencia godoc
// @Summary Calcula a planilha de conferência sem fechar a sessão
// @Tags caixa
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.ConferenciaRequest true "Valores conferidos"
// @Success 200 {object} dto.PlanilhaResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/caixa/conferencia [post]
func (h *CaixaHandler) Conferencia(c *gin.Context) {
	var req dto.ConferenciaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.ctrl.Conferencia(req)
	if err != nil {
		respondeErro(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Fechar godoc
// @Summary Fecha a sessão de caixa com a conferência declarada
// @Tags caixa
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.FecharCaixaRequest true "Dados de fechamento"
// @Success 200 {object} dto.FechamentoResponse
// @Failure 409 {object} apierror.APIError
// @Failure 503 {object} apierror.APIError
// @Router /v1/caixa/fechar [post]
func (h *CaixaHandler) Fechar(c *gin.Context) {
	var req dto.FecharCaixaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)

	resp, err := h.ctrl.Fechar(c.Request.Context(), claims.OperadorID, req)
	if err != nil {
		respondeErro(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Diario godoc
// @Summary Lista o diário local de eventos de uma sessão
// @Tags caixa
// @Produce json
// @Security BearerAuth
// @Param sessao_id path string true "ID da sessão"
// @Success 200 {array} journal.Entrada
// @Router /v1/caixa/diario/{sessao_id} [get]
func (h *CaixaHandler) Diario(c *gin.Context) {
	sessaoID := c.Param("sessao_id")
	if sessaoID == "" {
		c.JSON(http.StatusBadRequest, apierror.New("ID de sessão inválido"))
		return
	}
	entradas, err := h.diario.PorSessao(c.Request.Context(), sessaoID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("Falha ao consultar o diário local"))
		return
	}
	c.JSON(http.StatusOK, entradas)
}
