package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"github.com/fairtest/fairtest-backend/internal/middleware"
	"github.com/fairtest/fairtest-backend/internal/model"
	"github.com/fairtest/fairtest-backend/internal/response"
	"github.com/fairtest/fairtest-backend/internal/service"
	"github.com/fairtest/fairtest-backend/internal/validator"
)

// AuthHandler handles evaluator authentication endpoints. Test-takers never
// authenticate.
type AuthHandler struct {
	authService      *service.AuthService
	evaluatorService *service.EvaluatorService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, evaluatorService *service.EvaluatorService) *AuthHandler {
	return &AuthHandler{
		authService:      authService,
		evaluatorService: evaluatorService,
	}
}

// EvaluatorLogin godoc
// POST /api/v1/auth/evaluator/login
// Validates email + password and returns a JWT.
func (h *AuthHandler) EvaluatorLogin(c *gin.Context) {
	var req model.EvaluatorLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	evaluator, err := h.evaluatorService.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			log := response.Logger(c)
			log.Error().Err(err).Msg("Evaluator lookup failed")
		}
		// Unknown email and wrong password are indistinguishable.
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	if err := h.authService.CheckPassword(evaluator.PasswordHash, req.Password); err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	token, err := h.authService.GenerateEvaluatorToken(evaluator.ID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, model.EvaluatorLoginResponse{
		Token:     token,
		Evaluator: *evaluator,
	})
}

// GetEvaluatorProfile godoc
// GET /api/v1/auth/evaluator/me
// Returns the profile of the currently authenticated evaluator.
func (h *AuthHandler) GetEvaluatorProfile(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	evaluator, err := h.evaluatorService.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"evaluator": evaluator})
}

// EvaluatorLogout godoc
// POST /api/v1/auth/evaluator/logout
// Revokes the presented token until it would have expired.
func (h *AuthHandler) EvaluatorLogout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.authService.Revoke(c.Request.Context(), claims); err != nil {
		log := response.Logger(c)
		log.Error().Err(err).Int("evaluator_id", claims.UserID).Msg("Token revocation failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}
