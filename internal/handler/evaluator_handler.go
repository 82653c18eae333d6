package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fairtest/fairtest-backend/internal/middleware"
	"github.com/fairtest/fairtest-backend/internal/model"
	"github.com/fairtest/fairtest-backend/internal/response"
	"github.com/fairtest/fairtest-backend/internal/service"
	"github.com/fairtest/fairtest-backend/internal/validator"
)

// EvaluatorHandler handles answer keys, grading, publication and ledger audit.
type EvaluatorHandler struct {
	answerKeyService  *service.AnswerKeyService
	evaluationService *service.EvaluationService
}

// NewEvaluatorHandler creates a new EvaluatorHandler.
func NewEvaluatorHandler(answerKeyService *service.AnswerKeyService, evaluationService *service.EvaluationService) *EvaluatorHandler {
	return &EvaluatorHandler{
		answerKeyService:  answerKeyService,
		evaluationService: evaluationService,
	}
}

// ─── Answer Keys ────────────────────────────────────────────────────

// PutAnswerKey godoc
// PUT /api/v1/evaluator/exams/:exam_id/answer-key
// Replaces an exam's question set and warms the answer-key cache. Any invalid
// question rejects the whole upload.
func (h *EvaluatorHandler) PutAnswerKey(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.PutAnswerKeyRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	key, err := h.answerKeyService.Put(c.Request.Context(), c.Param("exam_id"), claims.UserID, req.Questions)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"exam_id":    key.ExamID,
		"questions":  len(key.Questions),
		"updated_at": key.UpdatedAt,
	})
}

// ─── Submissions ────────────────────────────────────────────────────

// ListSubmissions godoc
// GET /api/v1/evaluator/exams/:exam_id/submissions?page=&per_page=
func (h *EvaluatorHandler) ListSubmissions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	subs, pagination, err := h.evaluationService.ListSubmissions(c.Request.Context(), c.Param("exam_id"), page, perPage)
	if err != nil {
		failFromError(c, err)
		return
	}
	if subs == nil {
		subs = []model.Submission{}
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"submissions": subs}, pagination)
}

// GetSubmission godoc
// GET /api/v1/evaluator/exams/:exam_id/submissions/:pseudonym_hash
func (h *EvaluatorHandler) GetSubmission(c *gin.Context) {
	ph := c.Param("pseudonym_hash")
	if !validator.IsSHA256Hex(ph) {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	detail, err := h.evaluationService.GetSubmission(c.Request.Context(), c.Param("exam_id"), ph)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, detail)
}

// ApplyManualGrades godoc
// POST /api/v1/evaluator/exams/:exam_id/results/:pseudonym_hash/manual-grades
// Merges human grades into free-text questions. Re-sending the same grades is idempotent.
func (h *EvaluatorHandler) ApplyManualGrades(c *gin.Context) {
	ph := c.Param("pseudonym_hash")
	if !validator.IsSHA256Hex(ph) {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.ManualGradesRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	merged, err := h.evaluationService.ApplyManualGrades(c.Request.Context(), c.Param("exam_id"), ph, req.Grades)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": merged})
}

// Publish godoc
// POST /api/v1/evaluator/exams/:exam_id/publish
// Ranks every result of the exam and writes the leaderboard to the ledger.
func (h *EvaluatorHandler) Publish(c *gin.Context) {
	published, err := h.evaluationService.Publish(c.Request.Context(), c.Param("exam_id"))
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, published)
}

// ─── Stateless Engine ───────────────────────────────────────────────

// Evaluate godoc
// POST /api/v1/evaluator/evaluate
func (h *EvaluatorHandler) Evaluate(c *gin.Context) {
	var req model.EvaluateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.evaluationService.Evaluate(&req)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": res})
}

// Rank godoc
// POST /api/v1/evaluator/rank
func (h *EvaluatorHandler) Rank(c *gin.Context) {
	var req model.RankRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"leaderboard": h.evaluationService.Rank(req.Results)})
}

// ─── Ledger ─────────────────────────────────────────────────────────

// GetLedgerObject godoc
// GET /api/v1/evaluator/ledger/:id
func (h *EvaluatorHandler) GetLedgerObject(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	obj, err := h.evaluationService.LedgerObject(c.Request.Context(), id)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"object": obj})
}

// VerifyLedger godoc
// GET /api/v1/evaluator/ledger/verify
// Walks the hash chain and reports the first broken link, if any.
func (h *EvaluatorHandler) VerifyLedger(c *gin.Context) {
	report, err := h.evaluationService.VerifyLedger(c.Request.Context())
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"report": report})
}
