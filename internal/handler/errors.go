package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fairtest/fairtest-backend/internal/evaluation"
	"github.com/fairtest/fairtest-backend/internal/ledger"
	"github.com/fairtest/fairtest-backend/internal/payment"
	"github.com/fairtest/fairtest-backend/internal/registry"
	"github.com/fairtest/fairtest-backend/internal/response"
	"github.com/fairtest/fairtest-backend/internal/service"
	"github.com/fairtest/fairtest-backend/internal/submission"
)

// classify maps a service error onto an HTTP status and error code.
func classify(err error) (int, response.ErrCode) {
	var invalid *service.InvalidQuestionsError
	switch {
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity, response.ErrInvalidQuestion
	case errors.Is(err, submission.ErrAnswerHashMismatch):
		return http.StatusUnprocessableEntity, response.ErrAnswerHashMismatch
	case errors.Is(err, submission.ErrMissingPseudonym),
		errors.Is(err, submission.ErrMissingExamID),
		errors.Is(err, submission.ErrMalformedHash),
		errors.Is(err, evaluation.ErrInvalidInput),
		errors.Is(err, payment.ErrInvalidAmount),
		errors.Is(err, payment.ErrInvalidParams),
		errors.Is(err, registry.ErrInvalidName):
		return http.StatusBadRequest, response.ErrInvalidPayload
	case errors.Is(err, evaluation.ErrInvalidGrade):
		return http.StatusUnprocessableEntity, response.ErrInvalidGrade
	case errors.Is(err, payment.ErrInvalidAddress):
		return http.StatusBadRequest, response.ErrInvalidAddress
	case errors.Is(err, service.ErrDuplicateSubmission):
		return http.StatusConflict, response.ErrDuplicateSubmission
	case errors.Is(err, registry.ErrNameTaken):
		return http.StatusConflict, response.ErrNameTaken
	case errors.Is(err, payment.ErrSessionSettled):
		return http.StatusConflict, response.ErrSessionSettled
	case errors.Is(err, service.ErrAnswerKeyMissing):
		return http.StatusNotFound, response.ErrAnswerKeyMissing
	case errors.Is(err, service.ErrNoResults):
		return http.StatusNotFound, response.ErrNoResults
	case errors.Is(err, service.ErrResultNotFound),
		errors.Is(err, registry.ErrNotFound),
		errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, payment.ErrSessionNotFound):
		return http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, service.ErrLedgerUnavailable):
		return http.StatusServiceUnavailable, response.ErrLedgerUnavailable
	}
	return http.StatusInternalServerError, response.ErrInternal
}

// failFromError writes the error response for err. Unclassified errors are
// logged with the request logger and reported as internal.
func failFromError(c *gin.Context, err error) {
	status, code := classify(err)

	var invalid *service.InvalidQuestionsError
	switch {
	case errors.As(err, &invalid):
		response.FailWithFields(c, status, code, invalid.Fields())
		return
	case status == http.StatusInternalServerError || status == http.StatusServiceUnavailable:
		log := response.Logger(c)
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	case code == response.ErrInvalidPayload || code == response.ErrInvalidGrade:
		response.FailWithDetail(c, status, code, err.Error())
		return
	}
	response.Fail(c, status, code)
}
