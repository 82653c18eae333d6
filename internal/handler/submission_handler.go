package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fairtest/fairtest-backend/internal/model"
	"github.com/fairtest/fairtest-backend/internal/response"
	"github.com/fairtest/fairtest-backend/internal/service"
	"github.com/fairtest/fairtest-backend/internal/validator"
)

// SubmissionHandler serves the identity-free test-taker endpoints.
type SubmissionHandler struct {
	submissionService *service.SubmissionService
	evaluationService *service.EvaluationService
}

// NewSubmissionHandler creates a new SubmissionHandler.
func NewSubmissionHandler(submissionService *service.SubmissionService, evaluationService *service.EvaluationService) *SubmissionHandler {
	return &SubmissionHandler{
		submissionService: submissionService,
		evaluationService: evaluationService,
	}
}

// Submit godoc
// POST /api/v1/submissions
// Records a pseudonymous submission on the ledger and returns its auto-graded result.
func (h *SubmissionHandler) Submit(c *gin.Context) {
	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.submissionService.Submit(c.Request.Context(), req.Payload, req.Answers)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, res)
}

// GetResult godoc
// GET /api/v1/results/:pseudonym_hash
// Returns the published ranked result, or the pending evaluation before publication.
func (h *SubmissionHandler) GetResult(c *gin.Context) {
	ph := c.Param("pseudonym_hash")
	if !validator.IsSHA256Hex(ph) {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	res, err := h.evaluationService.GetPublishedResult(c.Request.Context(), ph)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}
