package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"
	ErrEvaluatorOnly      ErrCode = "EVALUATOR_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation      ErrCode = "VALIDATION_ERROR"
	ErrInvalidID       ErrCode = "INVALID_ID"
	ErrInvalidPayload  ErrCode = "INVALID_PAYLOAD"
	ErrInvalidQuestion ErrCode = "INVALID_QUESTION"
	ErrInvalidGrade    ErrCode = "INVALID_GRADE"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound  ErrCode = "NOT_FOUND"
	ErrConflict  ErrCode = "CONFLICT"
	ErrNameTaken ErrCode = "NAME_TAKEN"

	// ─── Submission ────────────────────────────────────────────────────
	ErrAnswerHashMismatch  ErrCode = "ANSWER_HASH_MISMATCH"
	ErrDuplicateSubmission ErrCode = "DUPLICATE_SUBMISSION"
	ErrAnswerKeyMissing    ErrCode = "ANSWER_KEY_MISSING"
	ErrNoResults           ErrCode = "NO_RESULTS"

	// ─── Payment ───────────────────────────────────────────────────────
	ErrInvalidAddress ErrCode = "INVALID_ADDRESS"
	ErrSessionSettled ErrCode = "SESSION_SETTLED"

	// ─── Ledger ────────────────────────────────────────────────────────
	ErrLedgerUnavailable ErrCode = "LEDGER_UNAVAILABLE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Invalid email or password."
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."
	case ErrEvaluatorOnly:
		return "This resource is restricted to evaluators."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrInvalidQuestion:
		return "One or more questions are structurally invalid."
	case ErrInvalidGrade:
		return "Manual grade is outside the question's mark range."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."
	case ErrNameTaken:
		return "This exam name is already registered."

	// ─── Submission ────────────────────────────────────────────────────
	case ErrAnswerHashMismatch:
		return "Answer hash does not match the submitted answers."
	case ErrDuplicateSubmission:
		return "This answer set has already been submitted."
	case ErrAnswerKeyMissing:
		return "No answer key has been uploaded for this exam."
	case ErrNoResults:
		return "No results to rank for this exam."

	// ─── Payment ───────────────────────────────────────────────────────
	case ErrInvalidAddress:
		return "Wallet address is not a valid EVM address."
	case ErrSessionSettled:
		return "Payment session is already settled."

	// ─── Ledger ────────────────────────────────────────────────────────
	case ErrLedgerUnavailable:
		return "Ledger write failed. Please retry."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
