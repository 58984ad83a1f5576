package chi

// errorCode is the machine-readable code in API error payloads.
type errorCode string

const (
	codeBadRequest        errorCode = "bad_request"
	codeValidationFailed  errorCode = "validation_failed"
	codeComplaintNotFound errorCode = "complaint_not_found"
	codeAlreadyVoted      errorCode = "already_voted"
	codeStatusTransition  errorCode = "invalid_status_transition"
	codeRateLimited       errorCode = "rate_limited"
	codeAIProviderError   errorCode = "ai_provider_error"
	codeInternalError     errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}
