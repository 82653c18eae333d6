package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fairtest/fairtest-backend/internal/model"
	"github.com/fairtest/fairtest-backend/internal/payment"
	"github.com/fairtest/fairtest-backend/internal/response"
	"github.com/fairtest/fairtest-backend/internal/validator"
)

// PaymentHandler exposes fee sessions for listing and registration.
type PaymentHandler struct {
	network *payment.Network
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(network *payment.Network) *PaymentHandler {
	return &PaymentHandler{network: network}
}

// OpenSession godoc
// POST /api/v1/payments/sessions
func (h *PaymentHandler) OpenSession(c *gin.Context) {
	var req payment.OpenParams
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	id, err := h.network.OpenSession(c.Request.Context(), req)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, model.OpenSessionResponse{SessionID: id})
}

// GetSession godoc
// GET /api/v1/payments/sessions/:id
func (h *PaymentHandler) GetSession(c *gin.Context) {
	sess, err := h.network.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": sess})
}

// RecordEvent godoc
// POST /api/v1/payments/sessions/:id/events
func (h *PaymentHandler) RecordEvent(c *gin.Context) {
	var req model.PaymentEventRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.network.RecordEvent(c.Request.Context(), c.Param("id"), req.Type, req.Data); err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// SettleSession godoc
// POST /api/v1/payments/sessions/:id/settle
// Settles an open session. A second settle fails with SESSION_SETTLED.
func (h *PaymentHandler) SettleSession(c *gin.Context) {
	settlement, err := h.network.SettleSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, settlement)
}
