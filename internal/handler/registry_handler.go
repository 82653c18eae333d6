package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fairtest/fairtest-backend/internal/model"
	"github.com/fairtest/fairtest-backend/internal/registry"
	"github.com/fairtest/fairtest-backend/internal/response"
	"github.com/fairtest/fairtest-backend/internal/service"
	"github.com/fairtest/fairtest-backend/internal/validator"
)

// RegistryHandler exposes the exam name registry.
type RegistryHandler struct {
	registryService *service.RegistryService
}

// NewRegistryHandler creates a new RegistryHandler.
func NewRegistryHandler(registryService *service.RegistryService) *RegistryHandler {
	return &RegistryHandler{registryService: registryService}
}

// ListExams godoc
// GET /api/v1/exams?q=
// Lists registered exams, filtered by a case-insensitive query.
func (h *RegistryHandler) ListExams(c *gin.Context) {
	entries, err := h.registryService.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		failFromError(c, err)
		return
	}
	if entries == nil {
		entries = []registry.Entry{}
	}
	response.Success(c, http.StatusOK, gin.H{"exams": entries})
}

// GetExam godoc
// GET /api/v1/exams/:name
// Resolves a registered name such as neet-practice-2024.fairtest.eth.
func (h *RegistryHandler) GetExam(c *gin.Context) {
	entry, err := h.registryService.Lookup(c.Request.Context(), c.Param("name"))
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": entry})
}

// RegisterExam godoc
// POST /api/v1/evaluator/exams/register
// Claims a registry name for an exam and anchors it on the ledger.
func (h *RegistryHandler) RegisterExam(c *gin.Context) {
	var req model.RegisterExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	entry, err := h.registryService.Register(c.Request.Context(), &req)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"exam": entry})
}
